package core

import "context"

// TempStore is the C5 component: a scratch space for one transaction's
// execution. Reads fall through to the ReadThroughStore and are
// memoized for the transaction's duration; writes and deletes are held
// here, invisible to any other execution, until the engine commits them
// atomically at the end of a successful run.
//
// New object versions are assigned from a single Lamport counter seeded
// one past the highest version among the transaction's declared inputs,
// following the fork crate's approach in original_source (every object
// touched by a transaction leaves it at the same version number,
// keeping effects easy to reason about without a wall clock).
type TempStore struct {
	store *ReadThroughStore

	reads   map[ObjectID]*Object
	writes  map[ObjectID]*Object
	deleted map[ObjectID]Version

	lamport Version
}

// NewTempStore seeds the Lamport counter from the versions of the
// transaction's declared inputs.
func NewTempStore(store *ReadThroughStore, inputVersions []Version) *TempStore {
	var max Version
	for _, v := range inputVersions {
		if v > max {
			max = v
		}
	}
	return &TempStore{
		store:   store,
		reads:   make(map[ObjectID]*Object),
		writes:  make(map[ObjectID]*Object),
		deleted: make(map[ObjectID]Version),
		lamport: max + 1,
	}
}

// Read resolves id, preferring this transaction's own pending writes,
// then its read cache, then the underlying read-through store.
func (t *TempStore) Read(ctx context.Context, id ObjectID, version Version) (*Object, bool, error) {
	if obj, ok := t.writes[id]; ok {
		return obj, true, nil
	}
	if _, gone := t.deleted[id]; gone {
		return nil, false, nil
	}
	if obj, ok := t.reads[id]; ok && (version == 0 || obj.Version == version) {
		return obj, true, nil
	}

	obj, ok, err := t.store.GetObject(ctx, id, version)
	if err != nil || !ok {
		return nil, false, err
	}
	t.reads[id] = obj
	return obj, true, nil
}

// Write assigns the transaction's Lamport version to obj and stages it.
// It returns the assigned version.
func (t *TempStore) Write(obj *Object) Version {
	obj.Version = t.lamport
	t.writes[obj.ID] = obj
	delete(t.deleted, obj.ID)
	return obj.Version
}

// Delete stages id for deletion at the transaction's Lamport version.
func (t *TempStore) Delete(id ObjectID) Version {
	v := t.lamport
	t.deleted[id] = v
	delete(t.writes, id)
	return v
}

// Writes returns every object staged by this transaction.
func (t *TempStore) Writes() map[ObjectID]*Object { return t.writes }

// Deletes returns every id staged for deletion, with the version at
// which the deletion takes effect.
func (t *TempStore) Deletes() map[ObjectID]Version { return t.deleted }

// InputVersion reports the version at which id was first observed by
// this transaction (its own reads cache), used by the engine to build
// ObjectEffect.InputVersion entries.
func (t *TempStore) InputVersion(id ObjectID) (Version, bool) {
	if obj, ok := t.reads[id]; ok {
		return obj.Version, true
	}
	return 0, false
}
