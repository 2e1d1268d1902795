package core

import (
	"context"
	"testing"
)

type fakeRemote struct {
	objects map[ObjectID]*Object
	calls   int
}

func newFakeRemote() *fakeRemote { return &fakeRemote{objects: make(map[ObjectID]*Object)} }

func (f *fakeRemote) GetObject(ctx context.Context, id ObjectID, version Version) (*Object, bool, error) {
	f.calls++
	obj, ok := f.objects[id]
	return obj, ok, nil
}

func (f *fakeRemote) CheckpointInfo(ctx context.Context) (CheckpointSeq, Digest, error) {
	return 1, Digest{}, nil
}

func TestReadThroughPromotesRemoteHitIntoOverlay(t *testing.T) {
	remote := newFakeRemote()
	id := ObjectID{1}
	remote.objects[id] = &Object{ID: id, Version: 3}

	overlay := NewLocalOverlayStore(nil)
	store := NewReadThroughStore(overlay, remote)

	obj, ok, err := store.GetObject(context.Background(), id, 0)
	if err != nil || !ok {
		t.Fatalf("expected remote hit, got ok=%v err=%v", ok, err)
	}
	if obj.Version != 3 {
		t.Fatalf("expected version 3, got %d", obj.Version)
	}
	if remote.calls != 1 {
		t.Fatalf("expected exactly one remote call, got %d", remote.calls)
	}

	if _, ok := overlay.GetLatest(id); !ok {
		t.Fatalf("expected the remote hit to be promoted into the overlay")
	}

	if _, _, err := store.GetObject(context.Background(), id, 0); err != nil {
		t.Fatalf("second read failed: %v", err)
	}
	if remote.calls != 1 {
		t.Fatalf("expected the second read to be served locally, remote calls = %d", remote.calls)
	}
}

func TestNoNegativeCaching(t *testing.T) {
	remote := newFakeRemote()
	overlay := NewLocalOverlayStore(nil)
	store := NewReadThroughStore(overlay, remote)
	id := ObjectID{1}

	_, ok, err := store.GetObject(context.Background(), id, 0)
	if err != nil || ok {
		t.Fatalf("expected a miss on first read, got ok=%v err=%v", ok, err)
	}
	if remote.calls != 1 {
		t.Fatalf("expected one remote call after first miss, got %d", remote.calls)
	}

	remote.objects[id] = &Object{ID: id, Version: 1}

	obj, ok, err := store.GetObject(context.Background(), id, 0)
	if err != nil || !ok {
		t.Fatalf("expected the second read to hit now that remote has the object, got ok=%v err=%v", ok, err)
	}
	if obj.Version != 1 {
		t.Fatalf("expected version 1, got %d", obj.Version)
	}
	if remote.calls != 2 {
		t.Fatalf("expected a second remote call (miss not cached), got %d", remote.calls)
	}
}

func TestReadThroughLocalWriteShadowsRemote(t *testing.T) {
	remote := newFakeRemote()
	id := ObjectID{1}
	remote.objects[id] = &Object{ID: id, Version: 1}

	overlay := NewLocalOverlayStore(nil)
	store := NewReadThroughStore(overlay, remote)
	store.CommitWrite(&Object{ID: id, Version: 5})

	obj, ok, err := store.GetObject(context.Background(), id, 0)
	if err != nil || !ok {
		t.Fatalf("expected a hit, got ok=%v err=%v", ok, err)
	}
	if obj.Version != 5 {
		t.Fatalf("expected the local write (version 5) to shadow the remote object, got %d", obj.Version)
	}
	if remote.calls != 0 {
		t.Fatalf("expected no remote calls when the overlay already has the object, got %d", remote.calls)
	}
}
