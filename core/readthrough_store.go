package core

import "context"

// ReadThroughStore is the C3 component: it satisfies a read by
// consulting the local overlay first and falling back to the remote
// reader, promoting whatever the remote reader returns into the overlay
// so later reads of the same id are local. It never caches a miss.
type ReadThroughStore struct {
	local  *LocalOverlayStore
	remote RemoteReader
}

func NewReadThroughStore(local *LocalOverlayStore, remote RemoteReader) *ReadThroughStore {
	return &ReadThroughStore{local: local, remote: remote}
}

// GetObject resolves id at the requested version (0 meaning "latest
// known"). It is the single read path the engine and facade use; both
// rely on it never returning a stale promoted version once a local write
// exists, since the overlay is always consulted first.
//
// Negative lookups are intentionally not cached. Every call that misses
// both the overlay and the deleted-set re-issues a remote query. A
// cached-miss index would avoid repeat remote traffic for ids that
// genuinely never existed, at the cost of a second index to keep
// consistent with overlay writes (an object can come into existence
// later via MakeMoveVec/Publish without ever round-tripping through
// MarkDeleted). Given the fork's read-mostly, bounded-lifetime workload,
// the extra remote traffic is judged cheaper than that consistency
// hazard; see DESIGN.md.
func (s *ReadThroughStore) GetObject(ctx context.Context, id ObjectID, version Version) (*Object, bool, error) {
	if version == 0 {
		if obj, ok := s.local.GetLatest(id); ok {
			return obj, true, nil
		}
		// Seen locally but with no latest version: deleted here, so the
		// remote copy must not be promoted back.
		if s.local.HasSeen(id) {
			return nil, false, nil
		}
	} else if obj, ok := s.local.GetVersion(id, version); ok {
		return obj, true, nil
	}

	obj, ok, err := s.remote.GetObject(ctx, id, version)
	if err != nil {
		storeLog.WithFields(map[string]interface{}{"object": id.String(), "version": uint64(version)}).
			Warn("remote read failed")
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	s.local.Put(obj)
	return obj, true, nil
}

// ObjectsOwnedBy answers purely from the local overlay index. It cannot
// report objects an address owned at the fork checkpoint but has never
// touched locally — the remote data source contract (§6.1) has no
// "objects owned by address" query, so there is no way to seed this
// index eagerly without enumerating the entire remote object set. See
// the seed_owned_objects limitation in DESIGN.md.
func (s *ReadThroughStore) ObjectsOwnedBy(addr Address) []ObjectID {
	return s.local.ObjectsOwnedBy(addr)
}

// CheckpointInfo passes through to the remote reader the fork is pinned
// against.
func (s *ReadThroughStore) CheckpointInfo(ctx context.Context) (CheckpointSeq, Digest, error) {
	return s.remote.CheckpointInfo(ctx)
}

// CommitWrite promotes obj into the overlay as the new latest version.
func (s *ReadThroughStore) CommitWrite(obj *Object) { s.local.Put(obj) }

// CommitDelete marks id deleted as of version.
func (s *ReadThroughStore) CommitDelete(id ObjectID, version Version) {
	s.local.MarkDeleted(id, version)
}
