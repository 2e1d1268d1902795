package core

import (
	"context"
	"encoding/json"
	"testing"
)

func newTestEngine() (*Engine, *LocalOverlayStore) {
	overlay := NewLocalOverlayStore(nil)
	store := NewReadThroughStore(overlay, newFakeRemote())
	cache := NewTypeCache(store)
	return NewEngine(store, cache), overlay
}

func TestEngineSplitCoinsSuccess(t *testing.T) {
	engine, overlay := newTestEngine()
	sender := Address{1}
	coinID := ObjectID{2}
	gasID := ObjectID{3}

	coin := NewCoinObject(coinID, GasCoinType, NewAddressOwner(sender), 1000)
	coin.Version = 1
	overlay.Put(coin)

	gasCoin := NewCoinObject(gasID, GasCoinType, NewAddressOwner(sender), 5_000_000)
	gasCoin.Version = 1
	overlay.Put(gasCoin)

	amtBytes, err := json.Marshal(uint64(100))
	if err != nil {
		t.Fatalf("marshal amount: %v", err)
	}

	tx := &Transaction{
		Sender:     sender,
		GasPayment: []ObjectID{gasID},
		GasBudget:  minGasBudget,
		GasPrice:   1,
		Inputs: []CallArg{
			OwnedObjectArg(coinID, 1, true),
			PureArg(amtBytes),
		},
		Commands: []Command{
			{Kind: CmdSplitCoins, Coin: InputArg(0), Amounts: []Argument{InputArg(1)}},
		},
	}

	eff, err := engine.Execute(context.Background(), tx, 1)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if eff.Status.Status != StatusSuccess {
		t.Fatalf("expected success, got failure: %+v", eff.Status)
	}
	if len(eff.Created) != 1 {
		t.Fatalf("expected exactly one created object (the split coin), got %d", len(eff.Created))
	}
	if len(eff.Mutated) != 2 {
		t.Fatalf("expected two mutated objects (remaining coin + gas coin), got %d", len(eff.Mutated))
	}
}

func TestEngineSplitCoinsInsufficientBalanceFails(t *testing.T) {
	engine, overlay := newTestEngine()
	sender := Address{1}
	coinID := ObjectID{2}
	gasID := ObjectID{3}

	coin := NewCoinObject(coinID, GasCoinType, NewAddressOwner(sender), 100)
	coin.Version = 1
	overlay.Put(coin)

	gasCoin := NewCoinObject(gasID, GasCoinType, NewAddressOwner(sender), 5_000_000)
	gasCoin.Version = 1
	overlay.Put(gasCoin)

	amtBytes, _ := json.Marshal(uint64(200))

	tx := &Transaction{
		Sender:     sender,
		GasPayment: []ObjectID{gasID},
		GasBudget:  minGasBudget,
		GasPrice:   1,
		Inputs: []CallArg{
			OwnedObjectArg(coinID, 1, true),
			PureArg(amtBytes),
		},
		Commands: []Command{
			{Kind: CmdSplitCoins, Coin: InputArg(0), Amounts: []Argument{InputArg(1)}},
		},
	}

	eff, err := engine.Execute(context.Background(), tx, 1)
	if err != nil {
		t.Fatalf("Execute should report failure through effects, not an error: %v", err)
	}
	if eff.Status.Status != StatusFailure {
		t.Fatalf("expected a failure status for an over-large split")
	}
	if eff.Status.Kind != ExecutionFailure {
		t.Fatalf("expected ExecutionFailure kind, got %v", eff.Status.Kind)
	}
}

func TestEngineRejectsVersionConflict(t *testing.T) {
	engine, overlay := newTestEngine()
	sender := Address{1}
	coinID := ObjectID{2}
	gasID := ObjectID{3}

	coin := NewCoinObject(coinID, GasCoinType, NewAddressOwner(sender), 1000)
	coin.Version = 2
	overlay.Put(coin)
	gasCoin := NewCoinObject(gasID, GasCoinType, NewAddressOwner(sender), 5_000_000)
	gasCoin.Version = 1
	overlay.Put(gasCoin)

	tx := &Transaction{
		Sender:     sender,
		GasPayment: []ObjectID{gasID},
		GasBudget:  minGasBudget,
		GasPrice:   1,
		Inputs: []CallArg{
			OwnedObjectArg(coinID, 1, true), // stale version claim
		},
		Commands: []Command{
			{Kind: CmdTransferObjects, Objects: []Argument{InputArg(0)}, Receiver: InputArg(0)},
		},
	}

	eff, err := engine.Execute(context.Background(), tx, 1)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if eff.Status.Status != StatusFailure {
		t.Fatalf("expected a version-conflict failure")
	}
}

func TestCheckBorrowExclusivityRejectsDuplicateArgument(t *testing.T) {
	cmd := Command{
		Kind:     CmdTransferObjects,
		Objects:  []Argument{InputArg(0), InputArg(0)},
		Receiver: InputArg(1),
	}
	if err := checkBorrowExclusivity(cmd); err == nil {
		t.Fatalf("expected a borrow-exclusivity error for a duplicated argument")
	}
}

func TestCheckBorrowExclusivityAllowsRepeatedGasCoin(t *testing.T) {
	cmd := Command{
		Kind:    CmdMoveCall,
		Args:    []Argument{GasCoinArg(), GasCoinArg()},
	}
	if err := checkBorrowExclusivity(cmd); err != nil {
		t.Fatalf("gas coin argument should be exempt from the exclusivity check, got %v", err)
	}
}

func TestSortObjectEffectsOrdersByID(t *testing.T) {
	effs := []ObjectEffect{{ID: ObjectID{9}}, {ID: ObjectID{1}}, {ID: ObjectID{5}}}
	sortObjectEffects(effs)
	if effs[0].ID != (ObjectID{1}) || effs[1].ID != (ObjectID{5}) || effs[2].ID != (ObjectID{9}) {
		t.Fatalf("expected effects sorted ascending by object id, got %+v", effs)
	}
}

// TestEngineGasBalanceTooLowProducesNoEffects covers S3: a gas coin
// whose balance cannot cover budget*price is rejected before any
// command runs, and no object writes land anywhere.
func TestEngineGasBalanceTooLowProducesNoEffects(t *testing.T) {
	engine, overlay := newTestEngine()
	sender := Address{1}
	gasID := ObjectID{3}

	gasCoin := NewCoinObject(gasID, GasCoinType, NewAddressOwner(sender), minGasBudget-1)
	gasCoin.Version = 1
	overlay.Put(gasCoin)

	tx := &Transaction{
		Sender:     sender,
		GasPayment: []ObjectID{gasID},
		GasBudget:  minGasBudget,
		GasPrice:   1,
		Commands: []Command{
			{Kind: CmdPublish, Modules: []ModuleBytecode{{Name: "widget", Code: []byte{1}}}},
		},
	}

	eff, err := engine.Execute(context.Background(), tx, 1)
	if err != nil {
		t.Fatalf("Execute should report failure through effects, not an error: %v", err)
	}
	if eff.Status.Status != StatusFailure {
		t.Fatalf("expected a gas-balance-too-low failure")
	}
	if eff.Status.Kind != UserInputError {
		t.Fatalf("expected UserInputError kind, got %v", eff.Status.Kind)
	}
	if len(eff.Created) != 0 || len(eff.Mutated) != 0 {
		t.Fatalf("expected no effects when gas validation rejects the transaction up front")
	}
}

// TestEngineOutOfGasDuringComputation covers S4: a budget that cannot
// cover every command's fixed cost runs out mid-computation, never
// reaching the storage-charging phase.
func TestEngineOutOfGasDuringComputation(t *testing.T) {
	engine, overlay := newTestEngine()
	sender := Address{1}
	gasID := ObjectID{3}
	gasCoin := NewCoinObject(gasID, GasCoinType, NewAddressOwner(sender), 50_000_000)
	gasCoin.Version = 1
	overlay.Put(gasCoin)

	// CmdPublish costs 500_000; four of them exactly exhaust a
	// minGasBudget budget, so the fifth command's charge overflows it.
	cmds := make([]Command, 5)
	for i := range cmds {
		cmds[i] = Command{Kind: CmdPublish, Modules: []ModuleBytecode{{Name: "widget", Code: []byte{1}}}}
	}
	tx := &Transaction{
		Sender:     sender,
		GasPayment: []ObjectID{gasID},
		GasBudget:  minGasBudget,
		GasPrice:   1,
		Commands:   cmds,
	}

	eff, err := engine.Execute(context.Background(), tx, 1)
	if err != nil {
		t.Fatalf("Execute should report failure through effects, not an error: %v", err)
	}
	if eff.Status.Status != StatusFailure || eff.Status.Kind != ExecutionFailure {
		t.Fatalf("expected an ExecutionFailure for computation exhaustion, got %+v", eff.Status)
	}
	if eff.GasUsed != minGasBudget {
		t.Fatalf("expected gas_used to equal the full budget on OOG, got %d", eff.GasUsed)
	}
	if eff.StorageCost != 0 || eff.StorageRebate != 0 || eff.NonRefundableFee != 0 {
		t.Fatalf("expected zero storage accounting for a computation-phase OOG, got cost=%d rebate=%d nonRefundable=%d",
			eff.StorageCost, eff.StorageRebate, eff.NonRefundableFee)
	}
}

// TestEngineOutOfGasIsDeterministicAcrossRuns covers P8: identical
// inputs against identically laid-out gas coins produce a bit-identical
// OOG category on repeated runs.
func TestEngineOutOfGasIsDeterministicAcrossRuns(t *testing.T) {
	run := func() ExecutionStatus {
		engine, overlay := newTestEngine()
		sender := Address{1}
		gasID := ObjectID{3}
		gasCoin := NewCoinObject(gasID, GasCoinType, NewAddressOwner(sender), 50_000_000)
		gasCoin.Version = 1
		overlay.Put(gasCoin)

		cmds := make([]Command, 5)
		for i := range cmds {
			cmds[i] = Command{Kind: CmdPublish, Modules: []ModuleBytecode{{Name: "widget", Code: []byte{1}}}}
		}
		tx := &Transaction{
			Sender:     sender,
			GasPayment: []ObjectID{gasID},
			GasBudget:  minGasBudget,
			GasPrice:   1,
			Commands:   cmds,
		}
		eff, err := engine.Execute(context.Background(), tx, 1)
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		return eff.Status
	}

	first := run()
	second := run()
	if first != second {
		t.Fatalf("expected identical OOG status across repeated runs, got %+v vs %+v", first, second)
	}
}

func TestEnginePublishCreatesPackageObject(t *testing.T) {
	engine, overlay := newTestEngine()
	sender := Address{1}
	gasID := ObjectID{3}
	gasCoin := NewCoinObject(gasID, GasCoinType, NewAddressOwner(sender), 5_000_000)
	gasCoin.Version = 1
	overlay.Put(gasCoin)

	tx := &Transaction{
		Sender:     sender,
		GasPayment: []ObjectID{gasID},
		GasBudget:  minGasBudget,
		GasPrice:   1,
		Commands: []Command{
			{Kind: CmdPublish, Modules: []ModuleBytecode{{Name: "widget", Code: []byte{1}}}},
		},
	}

	eff, err := engine.Execute(context.Background(), tx, 1)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if eff.Status.Status != StatusSuccess {
		t.Fatalf("expected publish to succeed: %+v", eff.Status)
	}
	if len(eff.Created) != 1 {
		t.Fatalf("expected exactly one created package object, got %d", len(eff.Created))
	}
}
