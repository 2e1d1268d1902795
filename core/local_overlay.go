package core

import "sync"

// LocalOverlayStore is the C2 component: every object version written
// since the fork, held in memory behind one RWMutex, following
// core/ledger.go's Ledger struct (plain maps guarded by a single mutex)
// rather than a sharded or lock-free design.
type LocalOverlayStore struct {
	mu sync.RWMutex

	// versions holds every version ever written for an object id, so a
	// transaction can still reference an older version it read before a
	// later write landed (shared-object reference semantics, §4.7).
	versions map[ObjectID]map[Version]*Object

	// latest is the highest version known locally for each id; absent
	// means the overlay has never observed this id (it may still exist
	// remotely).
	latest map[ObjectID]Version

	// deleted records ids whose latest known state is "deleted", so a
	// lookup doesn't fall through to the remote reader and resurrect a
	// since-deleted object.
	deleted map[ObjectID]Version

	// ownedIndex maps each address owner to the ids of the objects whose
	// latest version it owns (other owner kinds are not indexed), used to
	// answer GetOwnedObjects without a remote round trip.
	ownedIndex map[Address]map[ObjectID]struct{}

	metrics *Metrics
}

func NewLocalOverlayStore(m *Metrics) *LocalOverlayStore {
	return &LocalOverlayStore{
		versions:   make(map[ObjectID]map[Version]*Object),
		latest:     make(map[ObjectID]Version),
		deleted:    make(map[ObjectID]Version),
		ownedIndex: make(map[Address]map[ObjectID]struct{}),
		metrics:    m,
	}
}

// GetLatest returns the newest version of id known locally, or
// (nil,false) if the overlay has never observed it (it may still exist
// remotely, or never have existed).
func (s *LocalOverlayStore) GetLatest(id ObjectID) (*Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, gone := s.deleted[id]; gone {
		return nil, false
	}
	v, ok := s.latest[id]
	if !ok {
		return nil, false
	}
	return s.versions[id][v], true
}

// GetVersion returns the exact version requested, if the overlay holds
// it.
func (s *LocalOverlayStore) GetVersion(id ObjectID, version Version) (*Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vs, ok := s.versions[id]
	if !ok {
		return nil, false
	}
	o, ok := vs[version]
	return o, ok
}

// HasSeen reports whether the overlay has ever written any version of
// id, independent of whether it is currently deleted.
func (s *LocalOverlayStore) HasSeen(id ObjectID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.latest[id]
	if ok {
		return true
	}
	_, ok = s.deleted[id]
	return ok
}

// Put commits a new version of obj, updating the owned-object index and
// metrics. Callers (the engine, or cache-promotion in ReadThroughStore)
// are responsible for version-ordering; Put does not itself enforce
// monotonicity so that cache promotion can backfill older versions.
func (s *LocalOverlayStore) Put(obj *Object) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(obj)
}

func (s *LocalOverlayStore) putLocked(obj *Object) {
	if _, ok := s.versions[obj.ID]; !ok {
		s.versions[obj.ID] = make(map[Version]*Object)
	}
	s.versions[obj.ID][obj.Version] = obj
	delete(s.deleted, obj.ID)

	if cur, ok := s.latest[obj.ID]; !ok || obj.Version > cur {
		if ok {
			s.unindexOwner(obj.ID, s.versions[obj.ID][cur])
		}
		s.latest[obj.ID] = obj.Version
		s.indexOwner(obj.ID, obj)
	}

	if s.metrics != nil {
		s.metrics.OverlayObjectCount.Set(float64(len(s.latest)))
		s.metrics.LastCommittedVersion.Set(float64(obj.Version))
	}
}

// MarkDeleted records id as deleted as of version, removing it from the
// owned index and causing future GetLatest calls to report absent
// without consulting the remote reader.
func (s *LocalOverlayStore) MarkDeleted(id ObjectID, version Version) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.latest[id]; ok {
		s.unindexOwner(id, s.versions[id][cur])
	}
	delete(s.latest, id)
	s.deleted[id] = version
}

func (s *LocalOverlayStore) indexOwner(id ObjectID, obj *Object) {
	if obj.Owner.Kind != OwnerAddressOwned {
		return
	}
	set, ok := s.ownedIndex[obj.Owner.Address]
	if !ok {
		set = make(map[ObjectID]struct{})
		s.ownedIndex[obj.Owner.Address] = set
	}
	set[id] = struct{}{}
}

func (s *LocalOverlayStore) unindexOwner(id ObjectID, prev *Object) {
	if prev == nil || prev.Owner.Kind != OwnerAddressOwned {
		return
	}
	if set, ok := s.ownedIndex[prev.Owner.Address]; ok {
		delete(set, id)
	}
}

// ObjectsOwnedBy returns every object id currently indexed as owned by
// addr. This index only reflects writes made since the fork; it cannot
// answer for objects the address owned before the checkpoint and never
// touched locally (see the seed_owned_objects limitation in DESIGN.md).
func (s *LocalOverlayStore) ObjectsOwnedBy(addr Address) []ObjectID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.ownedIndex[addr]
	out := make([]ObjectID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// OverlayDump is a flat, JSON-friendly copy of everything the overlay
// holds, used by the persistence envelope (§4.9) to save and restore a
// forked node's full state across process restarts. Unlike
// overlaySnapshot it omits ownedIndex, which LoadState rebuilds from
// versions/latest so the dump format doesn't have to track a derived
// index.
type OverlayDump struct {
	Versions map[ObjectID]map[Version]*Object `json:"versions"`
	Latest   map[ObjectID]Version             `json:"latest"`
	Deleted  map[ObjectID]Version             `json:"deleted"`
}

// DumpState returns a full copy of the overlay's contents.
func (s *LocalOverlayStore) DumpState() OverlayDump {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dump := OverlayDump{
		Versions: make(map[ObjectID]map[Version]*Object, len(s.versions)),
		Latest:   make(map[ObjectID]Version, len(s.latest)),
		Deleted:  make(map[ObjectID]Version, len(s.deleted)),
	}
	for id, vs := range s.versions {
		inner := make(map[Version]*Object, len(vs))
		for v, o := range vs {
			inner[v] = o
		}
		dump.Versions[id] = inner
	}
	for id, v := range s.latest {
		dump.Latest[id] = v
	}
	for id, v := range s.deleted {
		dump.Deleted[id] = v
	}
	return dump
}

// LoadState replaces the overlay's contents with dump, rebuilding the
// owned-object index from scratch. It is only safe to call on a freshly
// constructed, unshared overlay (process startup, before the facade is
// reachable by any RPC handler).
func (s *LocalOverlayStore) LoadState(dump OverlayDump) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions = dump.Versions
	s.latest = dump.Latest
	s.deleted = dump.Deleted
	s.ownedIndex = make(map[Address]map[ObjectID]struct{})
	for id, v := range s.latest {
		if obj, ok := s.versions[id][v]; ok {
			s.indexOwner(id, obj)
		}
	}
	if s.metrics != nil {
		s.metrics.OverlayObjectCount.Set(float64(len(s.latest)))
	}
}

// overlaySnapshot is an immutable copy of overlay state used by C8's
// snapshot/revert; it is cheap relative to transaction execution because
// it copies only the top-level maps (object values are treated as
// immutable once written, following the VM's convention of always
// writing a fresh *Object rather than mutating one in place).
type overlaySnapshot struct {
	versions   map[ObjectID]map[Version]*Object
	latest     map[ObjectID]Version
	deleted    map[ObjectID]Version
	ownedIndex map[Address]map[ObjectID]struct{}
}

func (s *LocalOverlayStore) snapshot() overlaySnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := overlaySnapshot{
		versions:   make(map[ObjectID]map[Version]*Object, len(s.versions)),
		latest:     make(map[ObjectID]Version, len(s.latest)),
		deleted:    make(map[ObjectID]Version, len(s.deleted)),
		ownedIndex: make(map[Address]map[ObjectID]struct{}, len(s.ownedIndex)),
	}
	for id, vs := range s.versions {
		inner := make(map[Version]*Object, len(vs))
		for v, o := range vs {
			inner[v] = o
		}
		snap.versions[id] = inner
	}
	for id, v := range s.latest {
		snap.latest[id] = v
	}
	for id, v := range s.deleted {
		snap.deleted[id] = v
	}
	for a, set := range s.ownedIndex {
		inner := make(map[ObjectID]struct{}, len(set))
		for id := range set {
			inner[id] = struct{}{}
		}
		snap.ownedIndex[a] = inner
	}
	return snap
}

func (s *LocalOverlayStore) restore(snap overlaySnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions = snap.versions
	s.latest = snap.latest
	s.deleted = snap.deleted
	s.ownedIndex = snap.ownedIndex
	if s.metrics != nil {
		s.metrics.OverlayObjectCount.Set(float64(len(s.latest)))
	}
}
