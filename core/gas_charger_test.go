package core

import (
	"context"
	"testing"
)

func TestNewGasChargerRejectsBudgetBelowMinimum(t *testing.T) {
	if _, err := NewGasCharger(minGasBudget-1, 1, minGasBudget*2); err == nil {
		t.Fatalf("expected an error for a budget below the protocol minimum")
	}
}

func TestNewGasChargerRejectsBudgetAboveMaximum(t *testing.T) {
	if _, err := NewGasCharger(maxGasBudget+1, 1, maxGasBudget*2); err == nil {
		t.Fatalf("expected an error for a budget above the protocol maximum")
	}
}

func TestNewGasChargerRejectsZeroPrice(t *testing.T) {
	if _, err := NewGasCharger(minGasBudget, 0, minGasBudget*2); err == nil {
		t.Fatalf("expected an error for a zero gas price")
	}
}

func TestNewGasChargerRejectsPriceBelowReference(t *testing.T) {
	if referenceGasPrice < 2 {
		t.Skip("reference gas price too low to exercise a below-reference price")
	}
	if _, err := NewGasCharger(minGasBudget, referenceGasPrice-1, minGasBudget*2); err == nil {
		t.Fatalf("expected an error for a price below the reference price")
	}
}

func TestNewGasChargerRejectsBalanceBelowBudgetTimesPrice(t *testing.T) {
	_, err := NewGasCharger(minGasBudget, 2, minGasBudget*2-1)
	if err == nil {
		t.Fatalf("expected S3 GasBalanceTooLow for an insufficient gas coin balance")
	}
	kind, ok := KindOf(err)
	if !ok || kind != UserInputError {
		t.Fatalf("expected UserInputError kind for gas balance too low, got %v (ok=%v)", kind, ok)
	}
}

func TestChargeComputationExhaustsBudget(t *testing.T) {
	g, err := NewGasCharger(minGasBudget, 1, minGasBudget*2)
	if err != nil {
		t.Fatalf("NewGasCharger: %v", err)
	}
	if err := g.ChargeComputation(minGasBudget - 1); err != nil {
		t.Fatalf("expected charge within budget to succeed: %v", err)
	}
	err = g.ChargeComputation(10)
	if err == nil {
		t.Fatalf("expected out-of-gas error once the budget is exceeded")
	}
	kind, ok := KindOf(err)
	if !ok || kind != ExecutionFailure {
		t.Fatalf("expected ExecutionFailure kind for computation exhaustion, got %v (ok=%v)", kind, ok)
	}
}

func TestChargeStorageExhaustsBudgetDistinctly(t *testing.T) {
	g, err := NewGasCharger(minGasBudget, 1, minGasBudget*2)
	if err != nil {
		t.Fatalf("NewGasCharger: %v", err)
	}
	if err := g.ChargeComputation(minGasBudget - 10); err != nil {
		t.Fatalf("setup computation charge: %v", err)
	}
	err = g.ChargeStorage(1000)
	if err == nil {
		t.Fatalf("expected out-of-gas error from storage charging")
	}
	kind, ok := KindOf(err)
	if !ok || kind != StorageError {
		t.Fatalf("expected StorageError kind for storage exhaustion, got %v (ok=%v)", kind, ok)
	}
}

func TestResetStorageDiscardsStorageChargesOnly(t *testing.T) {
	g, err := NewGasCharger(minGasBudget, 1, minGasBudget*2)
	if err != nil {
		t.Fatalf("NewGasCharger: %v", err)
	}
	if err := g.ChargeComputation(100); err != nil {
		t.Fatalf("ChargeComputation: %v", err)
	}
	if err := g.ChargeStorage(10); err != nil {
		t.Fatalf("ChargeStorage: %v", err)
	}
	g.Rebate(10)
	g.ResetStorage()

	gasUsed, storageCost, storageRebate, nonRefundable := g.Summary()
	if storageCost != 0 || storageRebate != 0 || nonRefundable != 0 {
		t.Fatalf("expected ResetStorage to zero storage accounting, got cost=%d rebate=%d nonRefundable=%d", storageCost, storageRebate, nonRefundable)
	}
	if gasUsed != 100 {
		t.Fatalf("expected computation charge to survive ResetStorage, got gasUsed=%d", gasUsed)
	}
}

func TestRebateAndNetCoinDeltaCanGoNegative(t *testing.T) {
	g, err := NewGasCharger(minGasBudget, 1, minGasBudget*2)
	if err != nil {
		t.Fatalf("NewGasCharger: %v", err)
	}
	if err := g.ChargeComputation(100); err != nil {
		t.Fatalf("ChargeComputation: %v", err)
	}
	g.Rebate(1_000_000)

	delta := g.NetCoinDelta()
	if delta >= 0 {
		t.Fatalf("expected a large storage rebate to produce a negative net coin delta, got %d", delta)
	}
}

func TestFinalizeDebitsGasCoin(t *testing.T) {
	g, err := NewGasCharger(minGasBudget, 2, minGasBudget*4)
	if err != nil {
		t.Fatalf("NewGasCharger: %v", err)
	}
	if err := g.ChargeComputation(500); err != nil {
		t.Fatalf("ChargeComputation: %v", err)
	}

	coin := NewCoinObject(ObjectID{1}, GasCoinType, NewAddressOwner(Address{1}), 10_000)
	if err := g.Finalize(coin); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	bal, err := CoinBalance(coin)
	if err != nil {
		t.Fatalf("CoinBalance: %v", err)
	}
	if bal != 10_000-1000 {
		t.Fatalf("expected balance debited by 500*2=1000, got %d", bal)
	}
}

func TestFinalizeCreditsGasCoinOnNetRebate(t *testing.T) {
	g, err := NewGasCharger(minGasBudget, 1, minGasBudget*2)
	if err != nil {
		t.Fatalf("NewGasCharger: %v", err)
	}
	if err := g.ChargeComputation(10); err != nil {
		t.Fatalf("ChargeComputation: %v", err)
	}
	g.Rebate(1000)

	coin := NewCoinObject(ObjectID{1}, GasCoinType, NewAddressOwner(Address{1}), 10_000)
	if err := g.Finalize(coin); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	bal, err := CoinBalance(coin)
	if err != nil {
		t.Fatalf("CoinBalance: %v", err)
	}
	if bal <= 10_000 {
		t.Fatalf("expected a net storage rebate to credit the gas coin, got %d", bal)
	}
}

func TestSmashGasCoinsConsolidatesBalanceAndDeletesExtras(t *testing.T) {
	overlay := NewLocalOverlayStore(nil)
	store := NewReadThroughStore(overlay, newFakeRemote())
	ts := NewTempStore(store, nil)

	idA, idB, idC := ObjectID{1}, ObjectID{2}, ObjectID{3}
	overlay.Put(NewCoinObject(idA, GasCoinType, NewAddressOwner(Address{1}), 100))
	overlay.Put(NewCoinObject(idB, GasCoinType, NewAddressOwner(Address{1}), 50))
	overlay.Put(NewCoinObject(idC, GasCoinType, NewAddressOwner(Address{1}), 25))

	primary, err := SmashGasCoins(context.Background(), ts, []ObjectID{idA, idB, idC})
	if err != nil {
		t.Fatalf("SmashGasCoins: %v", err)
	}
	bal, err := CoinBalance(primary)
	if err != nil {
		t.Fatalf("CoinBalance: %v", err)
	}
	if bal != 175 {
		t.Fatalf("expected consolidated balance of 175, got %d", bal)
	}
	if primary.ID != idA {
		t.Fatalf("expected the first coin in payment to survive as the primary")
	}
	if _, ok := ts.Deletes()[idB]; !ok {
		t.Fatalf("expected idB to be staged for deletion")
	}
	if _, ok := ts.Deletes()[idC]; !ok {
		t.Fatalf("expected idC to be staged for deletion")
	}
}

func TestSmashGasCoinsRejectsEmptyPayment(t *testing.T) {
	overlay := NewLocalOverlayStore(nil)
	store := NewReadThroughStore(overlay, newFakeRemote())
	ts := NewTempStore(store, nil)

	if _, err := SmashGasCoins(context.Background(), ts, nil); err == nil {
		t.Fatalf("expected an error for empty gas payment")
	}
}
