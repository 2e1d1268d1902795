package core

import (
	"context"
	"testing"
)

func newTestPackage(id ObjectID, module string) *Object {
	return &Object{
		ID:      id,
		Version: 1,
		Owner:   NewImmutableOwner(),
		Kind:    DataPackage,
		Modules: []ModuleBytecode{{Name: module, Code: []byte{1, 2, 3}}},
	}
}

func TestTypeCacheResolveFunctionKnownNative(t *testing.T) {
	overlay := NewLocalOverlayStore(nil)
	remote := newFakeRemote()
	store := NewReadThroughStore(overlay, remote)
	cache := NewTypeCache(store)

	pkgID := ObjectID{1}
	overlay.Put(newTestPackage(pkgID, "bridge"))

	if _, err := cache.ResolveFunction(context.Background(), pkgID, "bridge", "register_bridge"); err != nil {
		t.Fatalf("expected register_bridge to resolve, got %v", err)
	}
}

func TestTypeCacheResolveFunctionUnknown(t *testing.T) {
	overlay := NewLocalOverlayStore(nil)
	store := NewReadThroughStore(overlay, newFakeRemote())
	cache := NewTypeCache(store)

	pkgID := ObjectID{1}
	overlay.Put(newTestPackage(pkgID, "bridge"))

	if _, err := cache.ResolveFunction(context.Background(), pkgID, "bridge", "not_a_real_function"); err == nil {
		t.Fatalf("expected an error for an unregistered function")
	}
	if _, err := cache.ResolveFunction(context.Background(), pkgID, "nope", "register_bridge"); err == nil {
		t.Fatalf("expected an error for an unknown module")
	}
}

func TestTypeCacheLoadPackageRejectsNonPackage(t *testing.T) {
	overlay := NewLocalOverlayStore(nil)
	store := NewReadThroughStore(overlay, newFakeRemote())
	cache := NewTypeCache(store)

	id := ObjectID{1}
	overlay.Put(&Object{ID: id, Version: 1, Kind: DataMoveObject})

	if _, err := cache.LoadPackage(context.Background(), id); err == nil {
		t.Fatalf("expected an error loading a non-package object as a package")
	}
}

func TestTypeCacheResolveTypeMemoizes(t *testing.T) {
	overlay := NewLocalOverlayStore(nil)
	store := NewReadThroughStore(overlay, newFakeRemote())
	cache := NewTypeCache(store)

	pkgID := ObjectID{1}
	overlay.Put(newTestPackage(pkgID, "coin"))

	first, err := cache.ResolveType(context.Background(), pkgID, "coin", "Coin")
	if err != nil {
		t.Fatalf("ResolveType: %v", err)
	}
	second, err := cache.ResolveType(context.Background(), pkgID, "coin", "Coin")
	if err != nil {
		t.Fatalf("ResolveType (memoized): %v", err)
	}
	if first.String() != second.String() {
		t.Fatalf("expected memoized ResolveType to return an identical tag")
	}
}

func TestTypeCacheInvalidateForcesReload(t *testing.T) {
	overlay := NewLocalOverlayStore(nil)
	store := NewReadThroughStore(overlay, newFakeRemote())
	cache := NewTypeCache(store)

	pkgID := ObjectID{1}
	overlay.Put(newTestPackage(pkgID, "coin"))

	if _, err := cache.LoadPackage(context.Background(), pkgID); err != nil {
		t.Fatalf("initial LoadPackage: %v", err)
	}
	cache.Invalidate(pkgID)

	overlay.Put(newTestPackage(pkgID, "bridge"))
	entry, err := cache.LoadPackage(context.Background(), pkgID)
	if err != nil {
		t.Fatalf("LoadPackage after invalidate: %v", err)
	}
	if _, ok := entry.modules["bridge"]; !ok {
		t.Fatalf("expected the reloaded entry to reflect the updated package contents")
	}
}
