// Package core implements the forked-network execution engine: a
// read-through object store, type cache, gas-metered VM and the facade
// that ties them together for replay and security testing.
package core

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

// ObjectID is a 32-byte opaque identifier for an object, package or
// well-known singleton.
type ObjectID [32]byte

// Address is a 32-byte account identifier. It shares its representation
// and value space with ObjectID (an address can own objects and can
// itself be read back as an object id when used as a dynamic-field
// parent).
type Address [32]byte

// Digest is a 32-byte content hash naming an object, transaction or
// checkpoint.
type Digest [32]byte

// Version is a per-object, lamport-style monotonic sequence number.
type Version uint64

// CheckpointSeq is the ordinal of a checkpoint.
type CheckpointSeq uint64

// EpochID is the ordinal of a validator epoch.
type EpochID uint64

func (id ObjectID) String() string { return "0x" + hex.EncodeToString(id[:]) }
func (a Address) String() string   { return "0x" + hex.EncodeToString(a[:]) }
func (d Digest) String() string    { return hex.EncodeToString(d[:]) }

func (id ObjectID) IsZero() bool { return id == ObjectID{} }
func (a Address) IsZero() bool   { return a == Address{} }
func (d Digest) IsZero() bool    { return d == Digest{} }

// AsAddress reinterprets an ObjectID as an Address (shared id space).
func (id ObjectID) AsAddress() Address { return Address(id) }

// AsObjectID reinterprets an Address as an ObjectID (shared id space).
func (a Address) AsObjectID() ObjectID { return ObjectID(a) }

// MarshalText/UnmarshalText let these ids serve as JSON object keys and
// round-trip through config/RPC payloads as hex strings.

func (id ObjectID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (a Address) MarshalText() ([]byte, error)   { return []byte(a.String()), nil }
func (d Digest) MarshalText() ([]byte, error)    { return []byte("0x" + d.String()), nil }

func (id *ObjectID) UnmarshalText(b []byte) error {
	v, err := parseHex32(string(b))
	if err != nil {
		return fmt.Errorf("object id: %w", err)
	}
	*id = ObjectID(v)
	return nil
}

func (a *Address) UnmarshalText(b []byte) error {
	v, err := parseHex32(string(b))
	if err != nil {
		return fmt.Errorf("address: %w", err)
	}
	*a = Address(v)
	return nil
}

func (d *Digest) UnmarshalText(b []byte) error {
	v, err := parseHex32(string(b))
	if err != nil {
		return fmt.Errorf("digest: %w", err)
	}
	*d = Digest(v)
	return nil
}

func parseHex32(s string) ([32]byte, error) {
	var out [32]byte
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	if len(b) != 32 {
		return out, fmt.Errorf("want 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}

// ParseObjectID parses a 0x-prefixed or bare hex string into an ObjectID.
func ParseObjectID(s string) (ObjectID, error) {
	v, err := parseHex32(s)
	return ObjectID(v), err
}

// ParseAddress parses a 0x-prefixed or bare hex string into an Address.
func ParseAddress(s string) (Address, error) {
	v, err := parseHex32(s)
	return Address(v), err
}

// ParseDigest parses a hex string into a Digest.
func ParseDigest(s string) (Digest, error) {
	v, err := parseHex32(s)
	return Digest(v), err
}

// DigestOfBytes hashes raw bytes into a Digest. Used by callers that
// already have a canonical byte encoding on hand.
func DigestOfBytes(b []byte) Digest { return Digest(sha256.Sum256(b)) }

// ErrNotFound is returned by store lookups that find nothing, letting
// callers distinguish "no such object" from a decode/transport failure.
var ErrNotFound = errors.New("not found")

// objectIDFromJSON round-trips an ObjectID through an interface{} value
// via JSON. Nothing in the package calls it at present.
func objectIDFromJSON(v interface{}) (ObjectID, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return ObjectID{}, err
	}
	var id ObjectID
	if err := json.Unmarshal(b, &id); err != nil {
		return ObjectID{}, err
	}
	return id, nil
}
