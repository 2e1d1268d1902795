// Core - Forked Node Facade
// -------------------------
//
// Facade is the C8 component: the single entry point the RPC server and
// CLI drive. It serializes every state-changing call behind one
// sync.Mutex (§5's simple mutex-guarded struct, not an actor/queue,
// matching the teacher's preference throughout core/) and owns the
// snapshot/revert stack and the consensus-round counter that keeps
// synthetic transaction digests collision-free across reverts (§10).
package core

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"sync"
)

// snapshotRecord captures everything Revert needs to restore: the
// overlay's content, and the facade's own counters (round, epoch)
// which are not part of the overlay but move in lock-step with it:
// after a revert, synthetic transactions are numbered from the restored
// round, so none of them reuses the round of a transaction that is
// still live.
type snapshotRecord struct {
	overlay overlaySnapshot
	round   uint64
	epoch   EpochID
}

// Facade is the forked node: one overlay, one read-through store, one
// type cache, one engine, all reachable only through this struct's
// methods.
type Facade struct {
	mu sync.Mutex

	network    string
	checkpoint CheckpointSeq

	overlay *LocalOverlayStore
	store   *ReadThroughStore
	types   *TypeCache
	engine  *Engine
	metrics *Metrics

	round   uint64
	epoch   EpochID
	history []*TransactionEffects

	// txRecords indexes every transaction this facade has executed by
	// its effects digest, so Replay can re-run one later. Not part of
	// snapshot/revert or the persistence envelope, the same way the
	// snapshot stack isn't (see dumpState): replaying a transaction from
	// before the current process existed is out of scope.
	txRecords map[Digest]*Transaction

	snapshots []snapshotRecord
}

// NewFacade wires a fresh forked node against remote, pinned at
// checkpoint.
func NewFacade(network string, checkpoint CheckpointSeq, remote RemoteReader, metrics *Metrics) *Facade {
	overlay := NewLocalOverlayStore(metrics)
	seedSystemObjects(overlay)
	store := NewReadThroughStore(overlay, remote)
	types := NewTypeCache(store)
	engine := NewEngine(store, types)
	return &Facade{
		network:    network,
		checkpoint: checkpoint,
		overlay:    overlay,
		store:      store,
		types:      types,
		engine:     engine,
		metrics:    metrics,
		round:      1,
		epoch:      1,
		txRecords:  make(map[Digest]*Transaction),
	}
}

// ExecuteTransaction runs tx through the engine and records its effects
// in the facade's history.
func (f *Facade) ExecuteTransaction(ctx context.Context, tx *Transaction) (*TransactionEffects, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.executeLocked(ctx, tx)
}

// executeLocked runs tx through the engine and records its effects,
// assuming f.mu is already held. ExecuteTransaction, SetClock,
// AdvanceClock, and AdvanceEpoch all funnel through this so a synthetic
// system transaction can execute without re-entering the facade's
// non-reentrant mutex.
func (f *Facade) executeLocked(ctx context.Context, tx *Transaction) (*TransactionEffects, error) {
	eff, err := f.engine.Execute(ctx, tx, f.round)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		if f.metrics != nil {
			f.metrics.InvariantAborts.Inc()
		}
	} else if eff.Status.Status == StatusFailure {
		outcome = "failure"
	}
	if f.metrics != nil {
		f.metrics.FacadeRequests.WithLabelValues("execute_transaction", outcome).Inc()
	}
	if err != nil {
		facadeLog.WithError(err).Error("transaction execution aborted")
		return nil, err
	}
	f.round++
	f.history = append(f.history, eff)
	f.txRecords[eff.TransactionDigest] = tx
	return eff, nil
}

// GetObject resolves id (0 = latest) through the read-through store.
func (f *Facade) GetObject(ctx context.Context, id ObjectID, version Version) (*Object, bool, error) {
	return f.store.GetObject(ctx, id, version)
}

// GetOwnedObjects answers from the local owned-object index only; see
// the seed_owned_objects limitation in DESIGN.md.
func (f *Facade) GetOwnedObjects(addr Address) []ObjectID {
	return f.store.ObjectsOwnedBy(addr)
}

// GetBalance sums the balance of every coin object of coinType the
// overlay currently indexes as owned by addr. It cannot see objects the
// address owned at the checkpoint but has never touched locally, and
// returns a typed StorageError rather than a silently partial total
// when the index is empty for addr.
func (f *Facade) GetBalance(ctx context.Context, addr Address, coinType MoveTypeTag) (uint64, error) {
	ids := f.store.ObjectsOwnedBy(addr)
	if len(ids) == 0 {
		return 0, wrapStorage("balance_no_local_index",
			fmt.Errorf("no locally indexed objects for %s; remote has no owned-object query (seed_owned_objects limitation)", addr))
	}
	var total uint64
	for _, id := range ids {
		obj, ok, err := f.store.GetObject(ctx, id, 0)
		if err != nil {
			return 0, wrapRemote("balance_read_failed", err)
		}
		if !ok || obj.Type.Module != coinType.Module || obj.Type.Name != coinType.Name {
			continue
		}
		bal, err := CoinBalance(obj)
		if err != nil {
			continue
		}
		total += bal
	}
	return total, nil
}

// GetAllBalances groups GetBalance's result by every distinct coin type
// the overlay's owned index currently holds for addr.
func (f *Facade) GetAllBalances(ctx context.Context, addr Address) (map[string]uint64, error) {
	ids := f.store.ObjectsOwnedBy(addr)
	if len(ids) == 0 {
		return nil, wrapStorage("balances_no_local_index",
			fmt.Errorf("no locally indexed objects for %s (seed_owned_objects limitation)", addr))
	}
	out := make(map[string]uint64)
	for _, id := range ids {
		obj, ok, err := f.store.GetObject(ctx, id, 0)
		if err != nil {
			return nil, wrapRemote("balances_read_failed", err)
		}
		if !ok {
			continue
		}
		bal, err := CoinBalance(obj)
		if err != nil {
			continue
		}
		out[obj.Type.String()] += bal
	}
	return out, nil
}

// Fund mints a fresh gas-type coin of amount owned by addr directly
// into the overlay, bypassing the engine and gas metering entirely.
// This is a test/bootstrap faucet (`fork_fund`), not a normal
// value-creating operation — it exists because a forked node otherwise
// has no way to hand a brand-new address spending money without first
// already having a funded gas coin to pay for the transaction that
// would create one.
func (f *Facade) Fund(addr Address, amount uint64) ObjectID {
	f.mu.Lock()
	defer f.mu.Unlock()
	var idSeed [32]byte
	_, _ = rand.Read(idSeed[:])
	id := ObjectID(idSeed)
	obj := NewCoinObject(id, GasCoinType, NewAddressOwner(addr), amount)
	obj.Version = 1
	f.overlay.Put(obj)
	facadeLog.WithFields(map[string]interface{}{"address": addr.String(), "amount": amount}).Info("faucet funded address")
	return id
}

// DryRun executes tx against a throwaway snapshot and reverts
// immediately afterward, so callers can inspect effects without
// mutating durable state.
func (f *Facade) DryRun(ctx context.Context, tx *Transaction) (*TransactionEffects, error) {
	f.mu.Lock()
	historyLen := len(f.history)
	f.mu.Unlock()
	snap := f.Snapshot()
	eff, err := f.ExecuteTransaction(ctx, tx)
	if revertErr := f.Revert(snap); revertErr != nil {
		facadeLog.WithError(revertErr).Error("dry run failed to revert snapshot")
	}
	f.mu.Lock()
	f.history = f.history[:historyLen]
	f.snapshots = f.snapshots[:snap]
	f.mu.Unlock()
	return eff, err
}

// SeedObject forces id into the local overlay from the remote reader,
// reporting whether it was found. Used by `fork_seedObject` to warm the
// overlay/owned-index before a client starts submitting transactions
// against an address it knows is funded remotely.
func (f *Facade) SeedObject(ctx context.Context, id ObjectID) (bool, error) {
	_, ok, err := f.store.GetObject(ctx, id, 0)
	return ok, err
}

// Reset discards all local history, snapshots and overlay state,
// re-pinning the facade at a new checkpoint (or the same one, if
// checkpoint is zero) against the same remote.
func (f *Facade) Reset(checkpoint CheckpointSeq) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if checkpoint != 0 {
		f.checkpoint = checkpoint
	}
	f.overlay.LoadState(OverlayDump{
		Versions: make(map[ObjectID]map[Version]*Object),
		Latest:   make(map[ObjectID]Version),
		Deleted:  make(map[ObjectID]Version),
	})
	seedSystemObjects(f.overlay)
	f.round = 1
	f.epoch = 1
	f.history = nil
	f.snapshots = nil
	f.txRecords = make(map[Digest]*Transaction)
}

// Snapshot pushes the overlay's current state and returns its index,
// usable as the snapshotID argument to Revert.
func (f *Facade) Snapshot() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots = append(f.snapshots, snapshotRecord{
		overlay: f.overlay.snapshot(),
		round:   f.round,
		epoch:   f.epoch,
	})
	return uint64(len(f.snapshots) - 1)
}

// Revert restores the overlay and counters to the state captured by
// Snapshot(snapshotID), discarding every later snapshot (they describe
// states that no longer exist once their ancestor is restored).
func (f *Facade) Revert(snapshotID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if snapshotID >= uint64(len(f.snapshots)) {
		return wrapUserInput("revert_unknown_snapshot", ErrNoSnapshot)
	}
	rec := f.snapshots[snapshotID]
	f.overlay.restore(rec.overlay)
	f.round = rec.round
	f.epoch = rec.epoch
	f.snapshots = f.snapshots[:snapshotID+1]
	facadeLog.WithField("snapshot", snapshotID).Info("reverted to snapshot")
	return nil
}

// SetClock implements §4.7.3/§4.8's set_clock(ts): runs a
// consensus-commit-prologue transaction that sets the Clock object's
// timestamp to the absolute value ts. ts must strictly exceed the
// clock's current value (P6); the engine enforces this and reports a
// non-monotonic request as an ordinary execution failure on the
// returned effects, not as a Go error.
func (f *Facade) SetClock(ctx context.Context, ts uint64) (*TransactionEffects, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx := &Transaction{Kind: KindConsensusCommitPrologue, PrologueTimestampMs: ts}
	return f.executeLocked(ctx, tx)
}

// AdvanceClock implements §4.7.3/§4.8's advance_clock(delta): reads the
// Clock object's current timestamp and issues a consensus-prologue
// transaction setting it to current_ts + delta.
func (f *Facade) AdvanceClock(ctx context.Context, delta uint64) (*TransactionEffects, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, err := f.clockTimestampLocked(ctx)
	if err != nil {
		return nil, err
	}
	tx := &Transaction{Kind: KindConsensusCommitPrologue, PrologueTimestampMs: cur + delta}
	return f.executeLocked(ctx, tx)
}

func (f *Facade) clockTimestampLocked(ctx context.Context) (uint64, error) {
	obj, ok, err := f.store.GetObject(ctx, ClockObjectID, 0)
	if err != nil {
		return 0, wrapRemote("clock_read_failed", err)
	}
	if !ok {
		return 0, nil
	}
	c, err := decodeClock(obj)
	if err != nil {
		return 0, err
	}
	return c.TimestampMs, nil
}

// AdvanceEpoch implements §4.7.2/§4.8's advance_epoch(): runs an
// end-of-epoch transaction and re-derives EpochState from the
// system-state object, returning the epoch it landed on.
func (f *Facade) AdvanceEpoch(ctx context.Context) (EpochID, *TransactionEffects, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx := &Transaction{Kind: KindEndOfEpoch}
	eff, err := f.executeLocked(ctx, tx)
	if err != nil {
		return f.epoch, nil, err
	}
	if obj, ok, gerr := f.store.GetObject(ctx, SystemStateObjectID, 0); gerr == nil && ok {
		if state, derr := decodeEpochState(obj); derr == nil {
			f.epoch = state.Epoch
		}
	}
	return f.epoch, eff, nil
}

// Replay implements §4.8/§6.2's replay(digest): re-runs the transaction
// previously recorded under digest against a throwaway snapshot and
// reverts immediately afterward (the same non-mutating idiom DryRun
// uses) — a replay inspects a past transaction's effects, it does not
// apply them a second time.
func (f *Facade) Replay(ctx context.Context, digest Digest) (*TransactionEffects, error) {
	f.mu.Lock()
	tx, ok := f.txRecords[digest]
	f.mu.Unlock()
	if !ok {
		return nil, wrapUserInput("replay_unknown_digest", ErrReplayUnknownDigest)
	}
	return f.DryRun(ctx, tx)
}

// SetObjectBcs implements §6.2's set_object_bcs: a test-fixture
// operation that overwrites an existing object's raw contents directly
// in the overlay, bypassing the engine and gas metering entirely —
// the same direct-write idiom Fund uses to mint a coin out of thin air.
func (f *Facade) SetObjectBcs(ctx context.Context, id ObjectID, contents []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok, err := f.store.GetObject(ctx, id, 0)
	if err != nil {
		return wrapRemote("set_object_bcs_read_failed", err)
	}
	if !ok {
		return wrapUserInput("set_object_bcs_not_found", fmt.Errorf("object %s not found", id))
	}
	updated := obj.Clone()
	updated.Version++
	updated.Contents = contents
	_ = updated.ComputeDigest()
	f.overlay.Put(updated)
	return nil
}

// SetOwner implements §6.2's set_owner: a test-fixture operation that
// reassigns an object's owner directly, bypassing the engine.
func (f *Facade) SetOwner(ctx context.Context, id ObjectID, owner Owner) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok, err := f.store.GetObject(ctx, id, 0)
	if err != nil {
		return wrapRemote("set_owner_read_failed", err)
	}
	if !ok {
		return wrapUserInput("set_owner_not_found", fmt.Errorf("object %s not found", id))
	}
	updated := obj.Clone()
	updated.Version++
	updated.Owner = owner
	_ = updated.ComputeDigest()
	f.overlay.Put(updated)
	return nil
}

func syntheticDigest(kind string, counter uint64) Digest {
	body, _ := rlpEncode(struct {
		Kind    string
		Counter uint64
	}{kind, counter})
	return DigestOfBytes(body)
}

// History returns every transaction effects record produced so far, in
// execution order.
func (f *Facade) History() []*TransactionEffects {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*TransactionEffects, len(f.history))
	copy(out, f.history)
	return out
}

// Network reports the remote network name the facade is forked from.
func (f *Facade) Network() string { return f.network }

// Overlay exposes the facade's local overlay store for health/metrics
// sampling (core.HealthReporter) and nothing else; callers outside this
// package must not mutate it directly.
func (f *Facade) Overlay() *LocalOverlayStore { return f.overlay }

// Checkpoint reports the remote checkpoint the facade is pinned at.
func (f *Facade) Checkpoint() CheckpointSeq { return f.checkpoint }

// stateSnapshot is the full persistable state of a Facade, used by
// SaveState/LoadState (core/persistence.go).
type stateSnapshot struct {
	Network    string                 `json:"network"`
	Checkpoint CheckpointSeq          `json:"checkpoint"`
	Round      uint64                 `json:"round"`
	Epoch      EpochID                `json:"epoch"`
	Overlay    OverlayDump            `json:"overlay"`
	History    []*TransactionEffects  `json:"history"`
}

// dumpState captures everything persistence.SaveState needs to write
// out. Snapshots/revert history are intentionally excluded: a restored
// node starts with an empty snapshot stack, matching the "process
// restart" semantics of §4.9 (there is nothing to revert to before the
// process that took the snapshot existed).
func (f *Facade) dumpState() stateSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	hist := make([]*TransactionEffects, len(f.history))
	copy(hist, f.history)
	return stateSnapshot{
		Network:    f.network,
		Checkpoint: f.checkpoint,
		Round:      f.round,
		Epoch:      f.epoch,
		Overlay:    f.overlay.DumpState(),
		History:    hist,
	}
}

// loadState restores a previously dumped state into the facade. Like
// LocalOverlayStore.LoadState, it is only safe before the facade is
// reachable by concurrent callers.
func (f *Facade) loadState(snap stateSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.network = snap.Network
	f.checkpoint = snap.Checkpoint
	f.round = snap.Round
	f.epoch = snap.Epoch
	f.overlay.LoadState(snap.Overlay)
	f.history = snap.History
	f.snapshots = nil
	f.txRecords = make(map[Digest]*Transaction)
}

// --- Bridge simulation helpers (§4.8.1) ---

// SeedBridgeCommittee builds a fresh bridge config object on-chain, a
// shared object holding the committee and its threshold, by running a
// single-command MoveCall transaction against the bridge native.
func (f *Facade) SeedBridgeCommittee(ctx context.Context, sender Address, gasPayment []ObjectID, gasBudget, gasPrice uint64, committee []ed25519.PublicKey, threshold int) (ObjectID, error) {
	committeeBytes := make([][]byte, len(committee))
	for i, pk := range committee {
		committeeBytes[i] = pk
	}
	req, _ := json.Marshal(struct {
		Committee [][]byte `json:"committee"`
		Threshold int      `json:"threshold"`
	}{committeeBytes, threshold})

	tx := &Transaction{
		Sender:     sender,
		GasPayment: gasPayment,
		GasBudget:  gasBudget,
		GasPrice:   gasPrice,
		Inputs:     []CallArg{PureArg(req)},
		Commands: []Command{{
			Kind:     CmdMoveCall,
			Module:   "bridge",
			Function: "register_bridge",
			Args:     []Argument{InputArg(0)},
		}},
	}
	eff, err := f.ExecuteTransaction(ctx, tx)
	if err != nil {
		return ObjectID{}, err
	}
	if eff.Status.Status != StatusSuccess {
		return ObjectID{}, NewForkError(eff.Status.Kind, eff.Status.Code, fmt.Errorf("%s", eff.Status.Message))
	}
	if len(eff.Created) == 0 {
		return ObjectID{}, wrapExecution("bridge_seed_no_object_created", fmt.Errorf("register_bridge produced no object"))
	}
	return eff.Created[0].ID, nil
}
