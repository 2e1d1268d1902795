package core

import "testing"

func TestComputeDigestDeterministicAndSensitive(t *testing.T) {
	obj := &Object{
		ID:       ObjectID{1},
		Version:  1,
		Owner:    NewAddressOwner(Address{2}),
		Kind:     DataMoveObject,
		Type:     MoveTypeTag{Module: "coin", Name: "Coin"},
		Contents: []byte{0, 0, 0, 0, 0, 0, 0, 5},
	}
	if err := obj.ComputeDigest(); err != nil {
		t.Fatalf("ComputeDigest: %v", err)
	}
	first := obj.Digest

	again := obj.Clone()
	again.Digest = Digest{}
	if err := again.ComputeDigest(); err != nil {
		t.Fatalf("ComputeDigest (clone): %v", err)
	}
	if again.Digest != first {
		t.Fatalf("digest not deterministic across clones with identical content")
	}

	mutated := obj.Clone()
	SetCoinBalance(mutated, 6)
	mutated.Digest = Digest{}
	if err := mutated.ComputeDigest(); err != nil {
		t.Fatalf("ComputeDigest (mutated): %v", err)
	}
	if mutated.Digest == first {
		t.Fatalf("digest did not change after content mutation")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	obj := &Object{
		ID:          ObjectID{1},
		Contents:    []byte{1, 2, 3},
		Modules:     []ModuleBytecode{{Name: "m", Code: []byte{9}}},
		PackageDeps: []ObjectID{{2}},
	}
	clone := obj.Clone()
	clone.Contents[0] = 99
	clone.Modules[0].Code[0] = 99
	clone.PackageDeps[0] = ObjectID{3}

	if obj.Contents[0] == 99 {
		t.Fatalf("Clone shared Contents backing array")
	}
	if obj.Modules[0].Code[0] == 99 {
		t.Fatalf("Clone shared Modules[].Code backing array")
	}
	if obj.PackageDeps[0] == (ObjectID{3}) {
		t.Fatalf("Clone shared PackageDeps backing array")
	}
}

func TestOwnerIsMutableByAddress(t *testing.T) {
	addr := Address{7}
	owner := NewAddressOwner(addr)
	if !owner.IsMutableByAddress(addr) {
		t.Fatalf("address owner should be mutable by its own address")
	}
	if owner.IsMutableByAddress(Address{8}) {
		t.Fatalf("address owner should not be mutable by a different address")
	}

	shared := NewSharedOwner(1)
	if shared.IsMutableByAddress(addr) {
		t.Fatalf("a shared owner is never mutable by address alone")
	}
}

func TestMoveTypeTagStringWithParams(t *testing.T) {
	inner := MoveTypeTag{Module: "coin", Name: "Coin"}
	outer := MoveTypeTag{Module: "vector", Name: "Vector", TypeParams: []MoveTypeTag{inner}}
	s := outer.String()
	if s == "" {
		t.Fatalf("expected non-empty type tag string")
	}
}

func TestIsPackage(t *testing.T) {
	pkg := &Object{Kind: DataPackage}
	val := &Object{Kind: DataMoveObject}
	if !pkg.IsPackage() {
		t.Fatalf("expected DataPackage object to report IsPackage true")
	}
	if val.IsPackage() {
		t.Fatalf("expected DataMoveObject to report IsPackage false")
	}
}
