// Core - Execution Engine
// -----------------------
//
// Engine is the C7 component: it interprets a programmable
// transaction's command list against a TempStore, charging gas per
// §4.6, checking ownership/borrow rules before each command touches an
// object, and validating conservation of native coin value before
// committing. The command loop mirrors the original opcode
// dispatcher's gas-then-invoke shape (Dispatch(ctx, op) in the file
// this one's sibling replaces); the VM-selection switch in the original
// virtual_machine.go generalizes here from three bytecode tiers
// (SuperLight/Light/Heavy) to the seven PT command kinds of §4.7.1, since
// this engine dispatches by command structure rather than by bytecode
// opcode stream.
package core

import (
	"context"
	"encoding/json"
	"fmt"
)

// Engine ties a ReadThroughStore and TypeCache to the PT interpreter.
type Engine struct {
	types *TypeCache
	rts   *ReadThroughStore
}

func NewEngine(rts *ReadThroughStore, types *TypeCache) *Engine {
	return &Engine{types: types, rts: rts}
}

// execContext is the engine's per-transaction implementation of
// NativeContext, handed to every dispatched native function.
type execContext struct {
	ctx     context.Context
	sender  Address
	round   uint64
	temp    *TempStore
	gas     *GasCharger
	digest  Digest
	counter uint64
	delta   int64
}

func (e *execContext) Sender() Address { return e.sender }
func (e *execContext) Round() uint64   { return e.round }
func (e *execContext) ReadObject(id ObjectID) (*Object, error) {
	obj, ok, err := e.temp.Read(e.ctx, id, 0)
	if err != nil {
		return nil, wrapRemote("engine_read_failed", err)
	}
	if !ok {
		return nil, wrapUserInput("engine_object_not_found", fmt.Errorf("object %s not found", id))
	}
	return obj, nil
}
func (e *execContext) WriteObject(obj *Object) Version { return e.temp.Write(obj) }
func (e *execContext) DeleteObject(id ObjectID) Version { return e.temp.Delete(id) }
func (e *execContext) ChargeGas(amount uint64) error    { return e.gas.ChargeComputation(amount) }
func (e *execContext) RecordValueDelta(delta int64)     { e.delta += delta }

func (e *execContext) nextObjectID() ObjectID {
	e.counter++
	body, _ := rlpEncode(struct {
		Digest  Digest
		Counter uint64
	}{e.digest, e.counter})
	return ObjectID(DigestOfBytes(body))
}
func (e *execContext) NewObjectID() ObjectID { return e.nextObjectID() }

// Execute runs tx to completion, dispatching on tx.Kind per §4.7's
// phase diagram. ProgrammableTransaction is the only kind that retries
// once if the conservation check fails before declaring an
// InvariantViolation (§4.7.4's reset-and-retry-once recovery path); the
// system-transaction kinds below never move native coin value, so they
// have no conservation check to retry.
//
// The system kinds derive their digest from the consensus round rather
// than tx.Digest(): their content (e.g. a Clock timestamp) can recur
// across a revert, and the round counter is exactly what §10 restores
// on revert to keep such replays from colliding with a prior live
// digest.
func (e *Engine) Execute(ctx context.Context, tx *Transaction, round uint64) (*TransactionEffects, error) {
	switch tx.Kind {
	case KindConsensusCommitPrologue:
		return e.executeConsensusPrologue(ctx, tx, round, syntheticDigest("consensus_prologue", round))
	case KindChangeEpoch, KindEndOfEpoch:
		return e.executeEpochChange(ctx, tx, round, syntheticDigest("end_of_epoch", round))
	case KindGenesis:
		digest, err := tx.Digest()
		if err != nil {
			return nil, wrapExecution("engine_digest_failed", err)
		}
		return e.executeGenesis(ctx, tx, round, digest)
	}

	digest, err := tx.Digest()
	if err != nil {
		return nil, wrapExecution("engine_digest_failed", err)
	}

	effects, err := e.executeOnce(ctx, tx, round, digest)
	if kind, ok := KindOf(err); ok && kind == InvariantViolation {
		engineLog.WithField("tx", digest.String()).Warn("conservation check failed, retrying once")
		effects, err = e.executeOnce(ctx, tx, round, digest)
		if err != nil {
			return nil, NewForkError(InvariantViolation, "conservation_violated_after_retry", err)
		}
	}
	return effects, err
}

// executeConsensusPrologue implements §4.7.3: set the Clock object's
// timestamp to tx.PrologueTimestampMs, which must strictly increase
// (P6). Unmetered: consensus-prologue transactions never charge gas.
func (e *Engine) executeConsensusPrologue(ctx context.Context, tx *Transaction, round uint64, digest Digest) (*TransactionEffects, error) {
	existing, ok, err := e.rts.GetObject(ctx, ClockObjectID, 0)
	if err != nil {
		return failureEffects(digest, wrapRemote("clock_read_failed", err)), nil
	}
	// Seed the lamport counter from the clock's own current version, the
	// same way a PT seeds it from its declared inputs, so each prologue
	// leaves the object at a strictly higher version than the last.
	var seed []Version
	clockObj := &Object{ID: ClockObjectID, Owner: NewSharedOwner(1)}
	var cur clockState
	if ok {
		seed = []Version{existing.Version}
		clockObj = existing
		cur, err = decodeClock(existing)
		if err != nil {
			return failureEffects(digest, err), nil
		}
	}
	if tx.PrologueTimestampMs <= cur.TimestampMs {
		return failureEffects(digest, wrapUserInput("clock_not_monotonic", ErrClockNotMonotonic)), nil
	}
	temp := NewTempStore(e.rts, seed)
	updated := clockObj.Clone()
	encodeClock(updated, clockState{TimestampMs: tx.PrologueTimestampMs})
	temp.Write(updated)
	return e.buildEffects(digest, tx, temp, unmeteredGasCharger(), nil), nil
}

// executeEpochChange implements §4.7.2's EndOfEpoch/ChangeEpoch
// transaction: re-derive EpochState from the system-state object with
// the epoch counter bumped and the consensus round carried forward.
// Reward minting/burning and the system-module `advance_epoch` call are
// out of scope without a language front-end (§1); this still exercises
// the re-derivation contract §4.8 requires of `advance_epoch()`.
func (e *Engine) executeEpochChange(ctx context.Context, tx *Transaction, round uint64, digest Digest) (*TransactionEffects, error) {
	existing, ok, err := e.rts.GetObject(ctx, SystemStateObjectID, 0)
	if err != nil {
		return failureEffects(digest, wrapRemote("system_state_read_failed", err)), nil
	}
	var seed []Version
	stateObj := &Object{ID: SystemStateObjectID, Owner: NewSharedOwner(1)}
	state := EpochState{ReferenceGasPrice: defaultReferenceGasPrice, ProtocolVersion: 1}
	if ok {
		seed = []Version{existing.Version}
		stateObj = existing
		if decoded, derr := decodeEpochState(existing); derr == nil {
			state = decoded
		} else {
			// Safe-mode fallback (§4.7.2): the normal re-derivation
			// failed, so advance the epoch counter only, carrying
			// forward no other state.
			engineLog.WithField("tx", digest.String()).Warn("epoch state corrupt, falling back to safe mode")
		}
	}
	temp := NewTempStore(e.rts, seed)
	state.Epoch++
	state.NextConsensusRound = round
	updated := stateObj.Clone()
	encodeEpochState(updated, state)
	temp.Write(updated)
	return e.buildEffects(digest, tx, temp, unmeteredGasCharger(), nil), nil
}

// executeGenesis writes tx.GenesisObjects directly at version 1,
// unmetered and without a conservation check — genesis is the one
// non-genesis-check exception §4.7.4 carves out, since it is the
// transaction that mints the chain's initial native-token supply.
func (e *Engine) executeGenesis(ctx context.Context, tx *Transaction, round uint64, digest Digest) (*TransactionEffects, error) {
	temp := NewTempStore(e.rts, nil)
	for _, obj := range tx.GenesisObjects {
		o := obj.Clone()
		o.Version = 1
		temp.Write(o)
	}
	return e.buildEffects(digest, tx, temp, unmeteredGasCharger(), nil), nil
}

func (e *Engine) executeOnce(ctx context.Context, tx *Transaction, round uint64, digest Digest) (*TransactionEffects, error) {
	inputVersions := make([]Version, 0, len(tx.Inputs))
	for _, in := range tx.Inputs {
		if in.Kind == CallArgObject {
			inputVersions = append(inputVersions, in.ObjectVersion)
		}
	}
	temp := NewTempStore(e.rts, inputVersions)

	if err := e.validateInputs(ctx, tx, temp); err != nil {
		return failureEffects(digest, err), nil
	}

	gasCoin, err := SmashGasCoins(ctx, temp, tx.GasPayment)
	if err != nil {
		return failureEffects(digest, err), nil
	}
	gasBalance, err := CoinBalance(gasCoin)
	if err != nil {
		return failureEffects(digest, wrapUserInput("engine_gas_coin_not_a_coin", err)), nil
	}
	gas, err := NewGasCharger(tx.GasBudget, tx.GasPrice, gasBalance)
	if err != nil {
		return failureEffects(digest, err), nil
	}
	if err := gas.ChargeInputs(len(tx.Inputs)); err != nil {
		return e.chargeAndFail(digest, gas, gasCoin, err)
	}

	ec := &execContext{ctx: ctx, sender: tx.Sender, round: round, temp: temp, gas: gas, digest: digest}

	coinTotalBefore := coinTotalOfReads(temp)

	results := make([][]*Object, len(tx.Commands))
	for i, cmd := range tx.Commands {
		if err := gas.ChargeComputation(CommandGasCost(cmd.Kind)); err != nil {
			return e.chargeAndFail(digest, gas, gasCoin, err)
		}
		out, err := e.execCommand(ctx, ec, tx, results, cmd)
		if err != nil {
			return e.chargeAndFail(digest, gas, gasCoin, err)
		}
		results[i] = out
	}

	storageFailed := false
	for _, obj := range temp.Writes() {
		if obj.ID == gasCoin.ID {
			continue
		}
		if err := gas.ChargeStorage(uint64(len(obj.Contents) + 32*len(obj.Modules))); err != nil {
			storageFailed = true
			break
		}
	}
	if storageFailed {
		// §4.6 step 5: retry storage charging once, keeping only the gas
		// coin's own mutation (every other write is discarded on failure
		// regardless). This is what distinguishes out_of_gas_storage
		// (the minimal retry would still have fit) from
		// out_of_gas_storage_minimal (even that minimal charge overflows
		// the budget) for P8.
		gas.ResetStorage()
		minimalCost := uint64(len(gasCoin.Contents) + 32*len(gasCoin.Modules))
		if err := gas.ChargeStorage(minimalCost); err != nil {
			return e.chargeAndFail(digest, gas, gasCoin, NewForkError(StorageError, "out_of_gas_storage_minimal", ErrOutOfGasStorageMinimal))
		}
		return e.chargeAndFail(digest, gas, gasCoin, NewForkError(StorageError, "out_of_gas_storage", ErrOutOfGasStorage))
	}
	for id, v := range temp.Deletes() {
		if prev, ok := temp.reads[id]; ok {
			gas.Rebate(uint64(len(prev.Contents) + 32*len(prev.Modules)))
		}
		_ = v
	}

	// Finalize the gas debit before comparing totals: the written gas
	// coin must already reflect what it will settle at, or its charge
	// would look like an unexplained loss of value on every transaction.
	if err := gas.Finalize(gasCoin); err != nil {
		return failureEffects(digest, err), nil
	}

	coinTotalAfter := coinTotalOfWrites(temp)
	if coinTotalBefore+ec.delta-gas.NetCoinDelta() != coinTotalAfter {
		return nil, NewForkError(InvariantViolation, "conservation_violated", ErrConservationViolated)
	}

	return e.buildEffects(digest, tx, temp, gas, gasCoin), nil
}

// chargeAndFail finalizes gas's net effect onto gasCoin (a failed
// transaction still pays for the computation/storage it burned, §4.6)
// and reports the gas summary on the failure effects so a caller can
// observe gas_used = budget on an out-of-gas abort (S4).
func (e *Engine) chargeAndFail(digest Digest, gas *GasCharger, gasCoin *Object, cause error) (*TransactionEffects, error) {
	_ = gas.Finalize(gasCoin)
	eff := failureEffects(digest, cause)
	eff.GasUsed, eff.StorageCost, eff.StorageRebate, eff.NonRefundableFee = gas.Summary()
	return eff, nil
}

func failureEffects(digest Digest, err error) *TransactionEffects {
	kind, ok := KindOf(err)
	if !ok {
		kind = ExecutionFailure
	}
	return &TransactionEffects{
		TransactionDigest: digest,
		Status:            FailureStatus(kind, "execution_failed", err.Error()),
	}
}

// validateInputs checks ownership/version claims for every object
// input before any command runs, and rejects a command argument table
// that names the same argument twice within one command (the
// borrow-exclusivity check §4.7 requires). Only the gas coin is exempt:
// a repeated argument is rejected even when both uses are immutable.
func (e *Engine) validateInputs(ctx context.Context, tx *Transaction, temp *TempStore) error {
	for _, in := range tx.Inputs {
		if in.Kind != CallArgObject {
			continue
		}
		// A shared input carries its initial shared version; the object
		// itself is read at its latest version.
		version := in.ObjectVersion
		if in.Mode == ObjectArgShared {
			version = 0
		}
		obj, ok, err := temp.Read(ctx, in.Object, version)
		if err != nil {
			return wrapRemote("engine_input_read_failed", err)
		}
		if !ok {
			return wrapUserInput("engine_input_not_found", fmt.Errorf("object %s not found", in.Object))
		}
		switch in.Mode {
		case ObjectArgImmOrOwned:
			if !obj.Owner.IsMutableByAddress(tx.Sender) && in.Mutable {
				return wrapUserInput("engine_not_owner", ErrObjectNotOwned)
			}
			if obj.Version != in.ObjectVersion {
				return wrapUserInput("engine_version_conflict", ErrVersionConflict)
			}
		case ObjectArgShared:
			if obj.Owner.Kind != OwnerShared {
				return wrapUserInput("engine_not_shared", fmt.Errorf("object %s is not shared", in.Object))
			}
		}
	}
	for _, cmd := range tx.Commands {
		if err := checkBorrowExclusivity(cmd); err != nil {
			return wrapUserInput("engine_borrow_conflict", err)
		}
	}
	return nil
}

func checkBorrowExclusivity(cmd Command) error {
	seen := make(map[Argument]bool)
	mark := func(a Argument) error {
		if a.Kind == ArgGasCoin {
			return nil
		}
		if seen[a] {
			return ErrBorrowConflict
		}
		seen[a] = true
		return nil
	}
	for _, a := range cmd.Args {
		if err := mark(a); err != nil {
			return err
		}
	}
	for _, a := range cmd.Objects {
		if err := mark(a); err != nil {
			return err
		}
	}
	for _, a := range cmd.Sources {
		if err := mark(a); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) resolveObject(ctx context.Context, ec *execContext, tx *Transaction, results [][]*Object, arg Argument) (*Object, error) {
	switch arg.Kind {
	case ArgGasCoin:
		return nil, fmt.Errorf("gas coin argument not valid here")
	case ArgInput:
		in := tx.Inputs[arg.Index]
		if in.Kind != CallArgObject {
			return nil, fmt.Errorf("input %d is not an object", arg.Index)
		}
		version := in.ObjectVersion
		if in.Mode == ObjectArgShared {
			version = 0
		}
		obj, ok, err := ec.temp.Read(ctx, in.Object, version)
		if err != nil || !ok {
			return nil, fmt.Errorf("object input %d unresolved: %w", arg.Index, err)
		}
		return obj, nil
	case ArgResult:
		slot := results[arg.Index]
		if len(slot) != 1 {
			return nil, fmt.Errorf("result %d does not hold exactly one value", arg.Index)
		}
		return slot[0], nil
	case ArgNestedResult:
		slot := results[arg.Index]
		if int(arg.Nested) >= len(slot) {
			return nil, fmt.Errorf("nested result %d.%d out of range", arg.Index, arg.Nested)
		}
		return slot[arg.Nested], nil
	default:
		return nil, fmt.Errorf("unknown argument kind %d", arg.Kind)
	}
}

func (e *Engine) resolvePure(tx *Transaction, arg Argument) ([]byte, error) {
	if arg.Kind != ArgInput {
		return nil, fmt.Errorf("pure value must come from an input")
	}
	in := tx.Inputs[arg.Index]
	if in.Kind != CallArgPure {
		return nil, fmt.Errorf("input %d is not a pure value", arg.Index)
	}
	return in.PureBytes, nil
}

func (e *Engine) execCommand(ctx context.Context, ec *execContext, tx *Transaction, results [][]*Object, cmd Command) ([]*Object, error) {
	switch cmd.Kind {
	case CmdPublish:
		return e.execPublish(ec, cmd)
	case CmdUpgrade:
		return e.execUpgrade(ctx, ec, tx, results, cmd)
	case CmdMoveCall:
		return e.execMoveCall(ctx, ec, tx, results, cmd)
	case CmdTransferObjects:
		return nil, e.execTransferObjects(ctx, ec, tx, results, cmd)
	case CmdSplitCoins:
		return e.execSplitCoins(ctx, ec, tx, results, cmd)
	case CmdMergeCoins:
		return nil, e.execMergeCoins(ctx, ec, tx, results, cmd)
	case CmdMakeMoveVec:
		return e.execMakeMoveVec(ctx, ec, tx, results, cmd)
	default:
		return nil, wrapUserInput("engine_unknown_command", fmt.Errorf("unknown command kind %d", cmd.Kind))
	}
}

func (e *Engine) execPublish(ec *execContext, cmd Command) ([]*Object, error) {
	id := ec.nextObjectID()
	obj := &Object{
		ID:      id,
		Owner:   NewImmutableOwner(),
		Kind:    DataPackage,
		Modules: cmd.Modules,
		PackageDeps: cmd.Deps,
	}
	ec.temp.Write(obj)
	return []*Object{obj}, nil
}

func (e *Engine) execUpgrade(ctx context.Context, ec *execContext, tx *Transaction, results [][]*Object, cmd Command) ([]*Object, error) {
	old, err := e.resolveObject(ctx, ec, tx, results, InputArg(0))
	if err != nil || !old.IsPackage() {
		return nil, wrapUserInput("engine_upgrade_bad_target", fmt.Errorf("upgrade ticket does not resolve to a package"))
	}
	id := ec.nextObjectID()
	obj := &Object{
		ID:              id,
		Owner:           NewImmutableOwner(),
		Kind:            DataPackage,
		Modules:         cmd.Modules,
		PackageDeps:     cmd.Deps,
		PreviousVersion: old.ID,
	}
	ec.temp.Write(obj)
	e.types.Invalidate(old.ID)
	return []*Object{obj}, nil
}

func (e *Engine) execMoveCall(ctx context.Context, ec *execContext, tx *Transaction, results [][]*Object, cmd Command) ([]*Object, error) {
	// A call with no package id addresses a built-in native (such as the
	// bridge module) directly; there is no published package to resolve.
	if cmd.Package != (ObjectID{}) {
		if _, err := e.types.ResolveFunction(ctx, cmd.Package, cmd.Module, cmd.Function); err != nil {
			return nil, err
		}
	}
	var objArgs []*Object
	var pureArgs [][]byte
	for _, a := range cmd.Args {
		if obj, err := e.resolveObject(ctx, ec, tx, results, a); err == nil {
			// Natives update their object arguments in place, so they get
			// a copy rather than the stored object.
			objArgs = append(objArgs, obj.Clone())
			continue
		}
		b, err := e.resolvePure(tx, a)
		if err != nil {
			return nil, wrapUserInput("engine_arg_resolution_failed", err)
		}
		pureArgs = append(pureArgs, b)
	}
	return DispatchNative(ec, cmd.Module, cmd.Function, objArgs, pureArgs)
}

func (e *Engine) execTransferObjects(ctx context.Context, ec *execContext, tx *Transaction, results [][]*Object, cmd Command) error {
	recvBytes, err := e.resolvePure(tx, cmd.Receiver)
	if err != nil {
		return wrapUserInput("engine_transfer_bad_receiver", err)
	}
	var receiver Address
	if err := json.Unmarshal(recvBytes, &receiver); err != nil {
		return wrapUserInput("engine_transfer_bad_receiver", err)
	}
	for _, a := range cmd.Objects {
		obj, err := e.resolveObject(ctx, ec, tx, results, a)
		if err != nil {
			return wrapUserInput("engine_transfer_bad_object", err)
		}
		moved := obj.Clone()
		moved.Owner = NewAddressOwner(receiver)
		ec.temp.Write(moved)
	}
	return nil
}

func (e *Engine) execSplitCoins(ctx context.Context, ec *execContext, tx *Transaction, results [][]*Object, cmd Command) ([]*Object, error) {
	coin, err := e.resolveObject(ctx, ec, tx, results, cmd.Coin)
	if err != nil {
		return nil, wrapUserInput("engine_split_bad_coin", err)
	}
	bal, err := CoinBalance(coin)
	if err != nil {
		return nil, wrapUserInput("engine_split_not_a_coin", err)
	}
	out := make([]*Object, 0, len(cmd.Amounts))
	var total uint64
	for _, a := range cmd.Amounts {
		b, err := e.resolvePure(tx, a)
		if err != nil {
			return nil, wrapUserInput("engine_split_bad_amount", err)
		}
		amt, err := decodeUint64(b)
		if err != nil {
			return nil, wrapUserInput("engine_split_bad_amount", err)
		}
		total += amt
		newCoin := NewCoinObject(ec.nextObjectID(), coin.Type, coin.Owner, amt)
		ec.temp.Write(newCoin)
		out = append(out, newCoin)
	}
	if total > bal {
		return nil, wrapExecution("engine_split_insufficient_balance", fmt.Errorf("balance %d < %d", bal, total))
	}
	remaining := coin.Clone()
	SetCoinBalance(remaining, bal-total)
	ec.temp.Write(remaining)
	return out, nil
}

func (e *Engine) execMergeCoins(ctx context.Context, ec *execContext, tx *Transaction, results [][]*Object, cmd Command) error {
	dest, err := e.resolveObject(ctx, ec, tx, results, cmd.Destination)
	if err != nil {
		return wrapUserInput("engine_merge_bad_destination", err)
	}
	destBal, err := CoinBalance(dest)
	if err != nil {
		return wrapUserInput("engine_merge_not_a_coin", err)
	}
	merged := dest.Clone()
	for _, a := range cmd.Sources {
		src, err := e.resolveObject(ctx, ec, tx, results, a)
		if err != nil {
			return wrapUserInput("engine_merge_bad_source", err)
		}
		bal, err := CoinBalance(src)
		if err != nil {
			return wrapUserInput("engine_merge_not_a_coin", err)
		}
		destBal += bal
		ec.temp.Delete(src.ID)
	}
	SetCoinBalance(merged, destBal)
	ec.temp.Write(merged)
	return nil
}

func (e *Engine) execMakeMoveVec(ctx context.Context, ec *execContext, tx *Transaction, results [][]*Object, cmd Command) ([]*Object, error) {
	ids := make([]ObjectID, 0, len(cmd.Elems))
	for _, a := range cmd.Elems {
		obj, err := e.resolveObject(ctx, ec, tx, results, a)
		if err != nil {
			return nil, wrapUserInput("engine_vec_bad_element", err)
		}
		ids = append(ids, obj.ID)
	}
	body, _ := json.Marshal(ids)
	vec := &Object{
		ID:       ec.nextObjectID(),
		Owner:    NewAddressOwner(tx.Sender),
		Kind:     DataMoveObject,
		Type:     MoveTypeTag{Module: "vector", Name: "Vector", TypeParams: []MoveTypeTag{cmd.ElemType}},
		Contents: body,
	}
	ec.temp.Write(vec)
	return []*Object{vec}, nil
}

func decodeUint64(b []byte) (uint64, error) {
	var v uint64
	if err := json.Unmarshal(b, &v); err != nil {
		return 0, err
	}
	return v, nil
}

// isNativeCoin reports whether obj is a native (gas-type) coin, the only
// kind of object the conservation check sums.
func isNativeCoin(obj *Object) bool {
	return obj.Type.Module == GasCoinType.Module && obj.Type.Name == GasCoinType.Name
}

func coinTotalOfReads(t *TempStore) uint64 {
	var total uint64
	for _, obj := range t.reads {
		if bal, err := CoinBalance(obj); err == nil && isNativeCoin(obj) {
			total += bal
		}
	}
	return total
}

func coinTotalOfWrites(t *TempStore) uint64 {
	var total uint64
	seen := make(map[ObjectID]bool)
	for id, obj := range t.writes {
		seen[id] = true
		if bal, err := CoinBalance(obj); err == nil && isNativeCoin(obj) {
			total += bal
		}
	}
	for id, obj := range t.reads {
		if seen[id] {
			continue
		}
		if _, deleted := t.deleted[id]; deleted {
			continue
		}
		if bal, err := CoinBalance(obj); err == nil && isNativeCoin(obj) {
			total += bal
		}
	}
	return total
}

// buildEffects assembles the TransactionEffects for a successful run.
func (e *Engine) buildEffects(digest Digest, tx *Transaction, temp *TempStore, gas *GasCharger, gasCoin *Object) *TransactionEffects {
	gasUsed, storageCost, storageRebate, nonRefundable := gas.Summary()
	eff := &TransactionEffects{
		TransactionDigest: digest,
		Status:            SuccessStatus(),
		GasUsed:           gasUsed,
		StorageCost:       storageCost,
		StorageRebate:     storageRebate,
		NonRefundableFee:  nonRefundable,
	}
	for id, obj := range temp.Writes() {
		_ = obj.ComputeDigest()
		inputVer, hadInput := temp.InputVersion(id)
		effect := ObjectEffect{ID: id, OutputVersion: obj.Version, OutputDigest: obj.Digest, OutputOwner: obj.Owner}
		if hadInput {
			effect.InputVersion = inputVer
			eff.Mutated = append(eff.Mutated, effect)
		} else {
			eff.Created = append(eff.Created, effect)
		}
		e.rts.CommitWrite(obj)
	}
	for id, v := range temp.Deletes() {
		inputVer, _ := temp.InputVersion(id)
		eff.Deleted = append(eff.Deleted, ObjectEffect{ID: id, InputVersion: inputVer, OutputVersion: v})
		e.rts.CommitDelete(id, v)
	}

	sortObjectEffects(eff.Created)
	sortObjectEffects(eff.Mutated)
	sortObjectEffects(eff.Deleted)
	return eff
}

// sortObjectEffects orders effects by object id so TransactionEffects
// is deterministic (and therefore digestible) despite being built from
// Go maps, which iterate in random order.
func sortObjectEffects(effs []ObjectEffect) {
	for i := 1; i < len(effs); i++ {
		for j := i; j > 0 && bytesLess(effs[j].ID[:], effs[j-1].ID[:]); j-- {
			effs[j], effs[j-1] = effs[j-1], effs[j]
		}
	}
}

func bytesLess(a, b []byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
