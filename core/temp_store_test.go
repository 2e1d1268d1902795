package core

import (
	"context"
	"testing"
)

func TestTempStoreWriteAssignsSharedLamportVersion(t *testing.T) {
	overlay := NewLocalOverlayStore(nil)
	store := NewReadThroughStore(overlay, newFakeRemote())
	ts := NewTempStore(store, []Version{3, 5, 2})

	a := ts.Write(&Object{ID: ObjectID{1}})
	b := ts.Write(&Object{ID: ObjectID{2}})

	if a != 6 {
		t.Fatalf("expected first write to be seeded at max(inputs)+1=6, got %d", a)
	}
	if b != 6 {
		t.Fatalf("expected second write to share the transaction's version 6, got %d", b)
	}
}

func TestTempStoreReadPrefersPendingWrite(t *testing.T) {
	overlay := NewLocalOverlayStore(nil)
	remote := newFakeRemote()
	id := ObjectID{1}
	remote.objects[id] = &Object{ID: id, Version: 1}
	store := NewReadThroughStore(overlay, remote)
	ts := NewTempStore(store, nil)

	written := &Object{ID: id, Version: 0}
	ts.Write(written)

	got, ok, err := ts.Read(context.Background(), id, 0)
	if err != nil || !ok {
		t.Fatalf("Read: ok=%v err=%v", ok, err)
	}
	if got != written {
		t.Fatalf("expected Read to return the pending write, not the remote copy")
	}
}

func TestTempStoreDeleteHidesObjectFromRead(t *testing.T) {
	overlay := NewLocalOverlayStore(nil)
	remote := newFakeRemote()
	id := ObjectID{1}
	remote.objects[id] = &Object{ID: id, Version: 1}
	store := NewReadThroughStore(overlay, remote)
	ts := NewTempStore(store, []Version{1})

	ts.Delete(id)

	if _, ok, _ := ts.Read(context.Background(), id, 0); ok {
		t.Fatalf("expected a deleted object to be hidden from subsequent reads")
	}
	if _, ok := ts.Writes()[id]; ok {
		t.Fatalf("expected delete to clear any pending write for the same id")
	}
	if _, ok := ts.Deletes()[id]; !ok {
		t.Fatalf("expected id to be recorded in Deletes()")
	}
}

func TestTempStoreWriteClearsPriorDelete(t *testing.T) {
	ts := NewTempStore(NewReadThroughStore(NewLocalOverlayStore(nil), newFakeRemote()), nil)
	id := ObjectID{1}

	ts.Delete(id)
	ts.Write(&Object{ID: id})

	if _, ok := ts.Deletes()[id]; ok {
		t.Fatalf("expected a subsequent write to clear the earlier delete")
	}
	if _, ok := ts.Writes()[id]; !ok {
		t.Fatalf("expected the write to be staged")
	}
}

func TestTempStoreInputVersionTracksFirstRead(t *testing.T) {
	overlay := NewLocalOverlayStore(nil)
	remote := newFakeRemote()
	id := ObjectID{1}
	remote.objects[id] = &Object{ID: id, Version: 4}
	store := NewReadThroughStore(overlay, remote)
	ts := NewTempStore(store, []Version{4})

	if _, ok := ts.InputVersion(id); ok {
		t.Fatalf("expected no recorded input version before any read")
	}
	if _, _, err := ts.Read(context.Background(), id, 0); err != nil {
		t.Fatalf("Read: %v", err)
	}
	v, ok := ts.InputVersion(id)
	if !ok || v != 4 {
		t.Fatalf("expected InputVersion to report 4, got %d, ok=%v", v, ok)
	}
}
