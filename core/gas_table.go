// Core Gas Schedule
// -----------------
// Canonical gas pricing for every programmable-transaction command kind
// and every registered native function. Mirrors the shape of the
// teacher's original opcode gas table: a flat map keyed by a stable
// name, a punitive DefaultGasCost fallback for anything un-priced, and
// lock-free reads since the tables are populated once at init and never
// mutated afterward.
package core

// DefaultGasCost is charged for any native function that has slipped
// through the cracks of nativeGasTable.
const DefaultGasCost uint64 = 1_000

// commandBaseGas prices the fixed overhead of each PT command kind,
// charged before any command-specific work (native function gas, byte
// copies, etc).
var commandBaseGas = map[CommandKind]uint64{
	CmdPublish:         500_000,
	CmdUpgrade:         400_000,
	CmdMoveCall:        1_000,
	CmdTransferObjects: 100,
	CmdSplitCoins:      200,
	CmdMergeCoins:      150,
	CmdMakeMoveVec:     100,
}

// nativeGasTable prices each registered native function by its
// "module::function" key.
var nativeGasTable = map[string]uint64{
	"bridge::register_bridge":   5_000,
	"bridge::lock_and_mint":     8_000,
	"bridge::burn_and_release":  8_000,
	"bridge::authorize_relayer": 3_000,
}

// CommandGasCost returns the fixed overhead charged for kind before its
// command-specific work.
func CommandGasCost(kind CommandKind) uint64 {
	if cost, ok := commandBaseGas[kind]; ok {
		return cost
	}
	gasLog.WithField("command_kind", kind).Warn("gas_table: missing cost for command kind, charging default")
	return DefaultGasCost
}

// NativeGasCost returns the gas cost of calling the named native
// function ("module::function").
func NativeGasCost(key string) uint64 {
	if cost, ok := nativeGasTable[key]; ok {
		return cost
	}
	gasLog.WithField("native", key).Warn("gas_table: missing cost for native function, charging default")
	return DefaultGasCost
}

// Storage pricing, per §4.6: bytes written are charged at storagePricePerByte
// and a storageRebateFraction of that charge is refunded when the object is
// later deleted.
const (
	storagePricePerByte   uint64  = 76
	storageRebateFraction float64 = 0.99
	minGasBudget          uint64  = 2_000_000

	// maxGasBudget caps a transaction's declared budget; referenceGasPrice
	// is the protocol-wide floor a transaction's gas_price must clear,
	// standing in for the validator-set-derived reference price a real
	// epoch's EpochState would carry.
	maxGasBudget      uint64 = 50_000_000_000
	referenceGasPrice uint64 = 1

	// defaultReferenceGasPrice seeds EpochState.ReferenceGasPrice for a
	// freshly initialized facade, before any epoch change has run.
	defaultReferenceGasPrice uint64 = referenceGasPrice
)
