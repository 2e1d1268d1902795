package core

// TransactionKind discriminates the five transaction shapes §3.2
// defines. The zero value is KindProgrammableTransaction, so existing
// PT-only construction (a Transaction literal with Kind left unset)
// keeps its prior meaning.
type TransactionKind uint8

const (
	KindProgrammableTransaction TransactionKind = iota
	KindChangeEpoch
	KindConsensusCommitPrologue
	KindGenesis
	KindEndOfEpoch
)

// CommandKind enumerates the programmable-transaction command variants
// from §4.7.1. Represented as a flat tagged struct (Command) rather than
// one Go type per variant so a transaction's command list stays a plain
// slice for RLP digesting.
type CommandKind uint8

const (
	CmdPublish CommandKind = iota
	CmdUpgrade
	CmdMoveCall
	CmdTransferObjects
	CmdSplitCoins
	CmdMergeCoins
	CmdMakeMoveVec
)

// ArgumentKind discriminates where a Command argument's value comes from.
type ArgumentKind uint8

const (
	ArgGasCoin ArgumentKind = iota
	ArgInput
	ArgResult
	ArgNestedResult
)

// Argument is a reference into the PT argument table: either the gas
// coin, a transaction input, or the Nth output of a prior command (with
// an optional nested index for commands that return multiple values).
type Argument struct {
	Kind   ArgumentKind
	Index  uint16 // Input or Result index
	Nested uint16 // NestedResult secondary index
}

func GasCoinArg() Argument             { return Argument{Kind: ArgGasCoin} }
func InputArg(i uint16) Argument       { return Argument{Kind: ArgInput, Index: i} }
func ResultArg(i uint16) Argument      { return Argument{Kind: ArgResult, Index: i} }
func NestedResultArg(i, j uint16) Argument {
	return Argument{Kind: ArgNestedResult, Index: i, Nested: j}
}

// CallArgKind distinguishes a pure BCS-style value input from an object
// input (which additionally carries the version/mutability the sender
// claimed at signing time, per §4.7 invariants).
type CallArgKind uint8

const (
	CallArgPure CallArgKind = iota
	CallArgObject
)

// ObjectArgMode records how an object input may be used by the PT.
type ObjectArgMode uint8

const (
	ObjectArgImmOrOwned ObjectArgMode = iota
	ObjectArgShared
	ObjectArgReceiving
)

// CallArg is one entry of the transaction's input table.
type CallArg struct {
	Kind CallArgKind

	// CallArgPure.
	PureBytes []byte

	// CallArgObject.
	Object        ObjectID
	ObjectVersion Version // claimed version; SharedVersion for shared objects
	Mutable       bool
	Mode          ObjectArgMode
}

func PureArg(b []byte) CallArg { return CallArg{Kind: CallArgPure, PureBytes: b} }
func OwnedObjectArg(id ObjectID, v Version, mutable bool) CallArg {
	return CallArg{Kind: CallArgObject, Object: id, ObjectVersion: v, Mutable: mutable, Mode: ObjectArgImmOrOwned}
}
func SharedObjectArg(id ObjectID, initial Version, mutable bool) CallArg {
	return CallArg{Kind: CallArgObject, Object: id, ObjectVersion: initial, Mutable: mutable, Mode: ObjectArgShared}
}

// Command is one step of a programmable transaction. Only the fields
// relevant to Kind are populated; this keeps the type flat and
// RLP/JSON-safe without a variant-per-struct design.
type Command struct {
	Kind CommandKind

	// CmdPublish / CmdUpgrade.
	Modules     []ModuleBytecode
	Deps        []ObjectID
	UpgradeTicket ObjectID

	// CmdMoveCall.
	Package  ObjectID
	Module   string
	Function string
	TypeArgs []MoveTypeTag
	Args     []Argument

	// CmdTransferObjects.
	Objects  []Argument
	Receiver Argument

	// CmdSplitCoins.
	Coin    Argument
	Amounts []Argument

	// CmdMergeCoins.
	Destination Argument
	Sources     []Argument

	// CmdMakeMoveVec.
	ElemType MoveTypeTag
	Elems    []Argument
}

// Transaction is the signed, executable unit: a sender, a gas payment
// set, a budget/price, an explicit input table, and an ordered command
// list referencing that table. Kind selects which of §4.7's phase
// diagram branches runs; fields below Commands are only meaningful for
// the Kind that names them.
type Transaction struct {
	Sender       Address
	GasPayment   []ObjectID
	GasBudget    uint64
	GasPrice     uint64
	Inputs       []CallArg
	Commands     []Command
	ExpiresEpoch EpochID

	Kind TransactionKind

	// KindConsensusCommitPrologue: the absolute timestamp the Clock
	// object is set to (§4.7.3).
	PrologueTimestampMs uint64

	// KindGenesis: the initial object set written directly, unmetered.
	GenesisObjects []*Object
}

// Digest computes the canonical transaction digest over its RLP
// encoding (never over JSON: field order there is not canonical).
func (t *Transaction) Digest() (Digest, error) {
	enc, err := rlpEncode(t)
	if err != nil {
		return Digest{}, err
	}
	return DigestOfBytes(enc), nil
}

// ExecutionStatusKind enumerates the outcome of running a transaction.
type ExecutionStatusKind uint8

const (
	StatusSuccess ExecutionStatusKind = iota
	StatusFailure
)

// ExecutionStatus is a flat tagged result: on StatusFailure, Kind/Code
// explain what went wrong without requiring callers to parse a string.
type ExecutionStatus struct {
	Status  ExecutionStatusKind
	Kind    ErrorKind
	Code    string
	Message string
}

func SuccessStatus() ExecutionStatus { return ExecutionStatus{Status: StatusSuccess} }
func FailureStatus(kind ErrorKind, code, msg string) ExecutionStatus {
	return ExecutionStatus{Status: StatusFailure, Kind: kind, Code: code, Message: msg}
}

// ObjectEffect records a single object's before/after state in a
// transaction's effects.
type ObjectEffect struct {
	ID             ObjectID
	InputVersion   Version // 0 if the object did not previously exist
	OutputVersion  Version // 0 if the object was deleted
	OutputDigest   Digest
	OutputOwner    Owner
}

// TransactionEffects is the receipt of executing a Transaction: status,
// gas summary, and the per-object before/after table. Flat/slice-based
// so it is both RLP-digestible (for the effects digest) and JSON
// persistable without a parallel DTO.
type TransactionEffects struct {
	TransactionDigest Digest
	Status            ExecutionStatus

	GasUsed          uint64
	StorageCost      uint64
	StorageRebate    uint64
	NonRefundableFee uint64

	Created  []ObjectEffect
	Mutated  []ObjectEffect
	Deleted  []ObjectEffect
	Wrapped  []ObjectEffect
	Unwrapped []ObjectEffect

	Dependencies []Digest
}

func (e *TransactionEffects) Digest() (Digest, error) {
	enc, err := rlpEncode(e)
	if err != nil {
		return Digest{}, err
	}
	return DigestOfBytes(enc), nil
}
