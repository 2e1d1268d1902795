package core

import (
	"context"
	"fmt"
)

// GasCharger is the C6 component: it enforces a transaction's gas
// budget across three distinct phases — input access, computation, and
// storage — and converts a final gas-unit total into a coin-balance
// deduction (or, when deleted objects rebate more than this transaction
// spent on storage, a credit) on the transaction's smashed gas coin.
//
// Out-of-gas during computation and out-of-gas during storage charging
// are deliberately distinguishable (§4.6): both discard the
// transaction's object writes, but in either case the gas coin's
// mutation (the budget being fully consumed) is kept, exactly as a
// successful transaction's gas deduction would be — a failed
// transaction still pays for the computation it burned.
type GasCharger struct {
	budget uint64
	price  uint64

	computationUsed uint64
	storageCost     uint64
	storageRebate   uint64
	nonRefundable   uint64
}

// NewGasCharger validates a transaction's declared budget/price against
// the protocol bounds and the smashed gas coin's balance (§4.6 step 2)
// and returns a fresh charger for one transaction. gasBalance is the
// smashed gas coin's balance at the moment of validation, so a coin that
// cannot even cover its own stated budget is rejected as a user input
// error before any computation runs.
func NewGasCharger(budget, price, gasBalance uint64) (*GasCharger, error) {
	if budget < minGasBudget {
		return nil, wrapUserInput("gas_budget_too_low",
			fmt.Errorf("budget %d below minimum %d", budget, minGasBudget))
	}
	if budget > maxGasBudget {
		return nil, wrapUserInput("gas_budget_too_high",
			fmt.Errorf("budget %d above maximum %d", budget, maxGasBudget))
	}
	if price == 0 {
		return nil, wrapUserInput("gas_price_zero", fmt.Errorf("gas price must be positive"))
	}
	if price < referenceGasPrice {
		return nil, wrapUserInput("gas_price_below_reference",
			fmt.Errorf("price %d below reference price %d", price, referenceGasPrice))
	}
	if required := budget * price; gasBalance < required {
		return nil, NewForkError(UserInputError, "gas_balance_too_low", ErrGasBalanceTooLow)
	}
	return &GasCharger{budget: budget, price: price}, nil
}

// ChargeInputs charges the fixed per-object access fee for n input
// objects, before any command runs.
func (g *GasCharger) ChargeInputs(n int) error {
	return g.chargeComputation(uint64(n) * 50)
}

// ChargeComputation charges the cost of one command's execution (its
// CommandGasCost/NativeGasCost).
func (g *GasCharger) ChargeComputation(amount uint64) error {
	return g.chargeComputation(amount)
}

func (g *GasCharger) chargeComputation(amount uint64) error {
	if g.computationUsed+g.storageCost+amount > g.budget {
		g.computationUsed = g.budget
		return NewForkError(ExecutionFailure, "out_of_gas_computation", ErrOutOfGas)
	}
	g.computationUsed += amount
	return nil
}

// ChargeStorage charges the cost of writing newBytes of new object
// content. Distinguished from computation so callers (and tests) can
// tell which phase exhausted the budget.
func (g *GasCharger) ChargeStorage(newBytes uint64) error {
	cost := newBytes * storagePricePerByte
	if g.computationUsed+g.storageCost+cost > g.budget {
		return NewForkError(StorageError, "out_of_gas_storage", ErrOutOfGasStorage)
	}
	g.storageCost += cost
	return nil
}

// Rebate credits the storage rebate for an object of deletedBytes being
// removed from the store; storageRebateFraction of its original storage
// charge is returned to the sender, and the remainder becomes a
// non-refundable protocol fee.
func (g *GasCharger) Rebate(deletedBytes uint64) {
	gross := deletedBytes * storagePricePerByte
	reb := uint64(float64(gross) * storageRebateFraction)
	g.storageRebate += reb
	g.nonRefundable += gross - reb
}

// ResetStorage discards everything charged/rebated in the storage phase,
// leaving computation charges untouched. Used by the engine's
// minimal-storage retry (§4.6 step 5): when storage charging OOGs, the
// transaction retries keeping only the gas coin's own mutation, whose
// storage the engine charges again after this reset.
func (g *GasCharger) ResetStorage() {
	g.storageCost = 0
	g.storageRebate = 0
	g.nonRefundable = 0
}

// Summary reports the gas accounting for the effects record.
func (g *GasCharger) Summary() (gasUsed, storageCost, storageRebate, nonRefundableFee uint64) {
	return g.computationUsed + g.storageCost, g.storageCost, g.storageRebate, g.nonRefundable
}

// NetCoinDelta reports the signed effect Finalize would have on the gas
// coin's balance, without mutating anything: positive means the coin
// would be debited, negative means credited (net storage rebate).
func (g *GasCharger) NetCoinDelta() int64 {
	used := g.computationUsed + g.storageCost
	if used >= g.storageRebate {
		return int64((used - g.storageRebate) * g.price)
	}
	return -int64((g.storageRebate - used) * g.price)
}

// Finalize applies this charger's net effect to gasCoin's balance: the
// total gas used (computation + storage) minus any storage rebate
// earned, priced at g.price.
func (g *GasCharger) Finalize(gasCoin *Object) error {
	bal, err := CoinBalance(gasCoin)
	if err != nil {
		return wrapExecution("gas_finalize_not_a_coin", err)
	}
	used := g.computationUsed + g.storageCost
	switch {
	case used >= g.storageRebate:
		delta := (used - g.storageRebate) * g.price
		if delta > bal {
			delta = bal
		}
		SetCoinBalance(gasCoin, bal-delta)
	default:
		delta := (g.storageRebate - used) * g.price
		SetCoinBalance(gasCoin, bal+delta)
	}
	return nil
}

// SmashGasCoins consolidates every coin object named in payment into a
// single coin, following §4.6's smash step: the first coin in payment
// becomes the surviving object holding the combined balance, and every
// other coin is staged for deletion. temp is the transaction's scratch
// store, so the smash itself participates in the same commit/discard
// lifecycle as the rest of the transaction's writes.
func SmashGasCoins(ctx context.Context, temp *TempStore, payment []ObjectID) (*Object, error) {
	if len(payment) == 0 {
		return nil, wrapUserInput("gas_smash_empty_payment", fmt.Errorf("gas payment must name at least one coin"))
	}
	var total uint64
	var primary *Object
	for i, id := range payment {
		obj, ok, err := temp.Read(ctx, id, 0)
		if err != nil {
			return nil, wrapRemote("gas_smash_read_failed", err)
		}
		if !ok {
			return nil, wrapUserInput("gas_smash_coin_not_found", fmt.Errorf("gas coin %s not found", id))
		}
		bal, err := CoinBalance(obj)
		if err != nil {
			return nil, wrapUserInput("gas_smash_not_a_coin", err)
		}
		total += bal
		if i == 0 {
			primary = obj.Clone()
		} else {
			temp.Delete(id)
		}
	}
	SetCoinBalance(primary, total)
	temp.Write(primary)
	return primary, nil
}
