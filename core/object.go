package core

// OwnerKind discriminates the variants of Owner. Kept as a small enum on
// a flat struct (not a Go interface) so Owner stays RLP-encodable and
// needs no type registry, mirroring the teacher's AssetRef shape in
// cross_chain_bridge.go.
type OwnerKind uint8

const (
	OwnerAddressOwned OwnerKind = iota
	OwnerObjectOwned
	OwnerShared
	OwnerImmutable
)

func (k OwnerKind) String() string {
	switch k {
	case OwnerAddressOwned:
		return "AddressOwner"
	case OwnerObjectOwned:
		return "ObjectOwner"
	case OwnerShared:
		return "Shared"
	case OwnerImmutable:
		return "Immutable"
	default:
		return "Unknown"
	}
}

// Owner names who or what controls an object. Exactly one of Address /
// Parent is meaningful, selected by Kind; InitialSharedVersion is only
// meaningful for OwnerShared.
type Owner struct {
	Kind                 OwnerKind
	Address              Address
	Parent               ObjectID
	InitialSharedVersion Version
}

func NewAddressOwner(a Address) Owner { return Owner{Kind: OwnerAddressOwned, Address: a} }
func NewObjectOwner(parent ObjectID) Owner {
	return Owner{Kind: OwnerObjectOwned, Parent: parent}
}
func NewSharedOwner(initial Version) Owner {
	return Owner{Kind: OwnerShared, InitialSharedVersion: initial}
}
func NewImmutableOwner() Owner { return Owner{Kind: OwnerImmutable} }

func (o Owner) IsMutableByAddress(a Address) bool {
	return o.Kind == OwnerAddressOwned && o.Address == a
}

// ObjectDataKind discriminates the payload carried by an Object.
type ObjectDataKind uint8

const (
	DataMoveObject ObjectDataKind = iota
	DataPackage
)

// MoveTypeTag names the runtime type of a Move-like object's contents.
// Flat and slice-based (no nested interfaces/maps) so it survives RLP
// round trips for digesting.
type MoveTypeTag struct {
	Address    Address
	Module     string
	Name       string
	TypeParams []MoveTypeTag
}

func (t MoveTypeTag) String() string {
	s := t.Address.String() + "::" + t.Module + "::" + t.Name
	if len(t.TypeParams) == 0 {
		return s
	}
	s += "<"
	for i, p := range t.TypeParams {
		if i > 0 {
			s += ","
		}
		s += p.String()
	}
	return s + ">"
}

// ModuleBytecode is one compiled module within a package object.
type ModuleBytecode struct {
	Name string
	Code []byte
}

// Object is the unit of state in the store: either a typed Move-like
// value (DataMoveObject) or a versioned package (DataPackage).
type Object struct {
	ID      ObjectID
	Version Version
	Digest  Digest
	Owner   Owner

	Kind ObjectDataKind

	// DataMoveObject fields.
	Type     MoveTypeTag
	Contents []byte

	// DataPackage fields.
	Modules         []ModuleBytecode
	PackageDeps     []ObjectID
	PreviousVersion ObjectID // zero for the original publish

	// PreviousTransaction is the digest of the transaction that produced
	// this exact version.
	PreviousTransaction Digest
	StorageRebate       uint64
}

func (o *Object) IsPackage() bool { return o.Kind == DataPackage }

// ComputeDigest derives and sets o.Digest from the canonical RLP
// encoding of the object's content fields (everything except Digest
// itself, to avoid self-reference).
func (o *Object) ComputeDigest() error {
	body := struct {
		ID                  ObjectID
		Version             Version
		Owner               Owner
		Kind                ObjectDataKind
		Type                MoveTypeTag
		Contents            []byte
		Modules             []ModuleBytecode
		PackageDeps         []ObjectID
		PreviousVersion     ObjectID
		PreviousTransaction Digest
		StorageRebate       uint64
	}{
		o.ID, o.Version, o.Owner, o.Kind, o.Type, o.Contents,
		o.Modules, o.PackageDeps, o.PreviousVersion, o.PreviousTransaction, o.StorageRebate,
	}
	enc, err := rlpEncode(body)
	if err != nil {
		return err
	}
	o.Digest = DigestOfBytes(enc)
	return nil
}

// Clone returns a deep copy safe to mutate independently of o.
func (o *Object) Clone() *Object {
	c := *o
	c.Contents = append([]byte(nil), o.Contents...)
	c.Modules = make([]ModuleBytecode, len(o.Modules))
	for i, m := range o.Modules {
		c.Modules[i] = ModuleBytecode{Name: m.Name, Code: append([]byte(nil), m.Code...)}
	}
	c.PackageDeps = append([]ObjectID(nil), o.PackageDeps...)
	c.Type.TypeParams = append([]MoveTypeTag(nil), o.Type.TypeParams...)
	return &c
}
