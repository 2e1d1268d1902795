package core

import (
	"encoding/binary"
	"fmt"
)

// Coin objects store their balance as the first 8 bytes of Contents,
// big-endian. This stands in for a real Move Coin<T> struct layout,
// which this engine does not fully model (no language front-end, per
// scope) — every place that needs a balance (gas charging, SplitCoins,
// MergeCoins, the bridge escrow) goes through these two helpers so the
// layout only needs to be right in one place.
const coinBalanceSize = 8

func CoinBalance(obj *Object) (uint64, error) {
	if len(obj.Contents) < coinBalanceSize {
		return 0, fmt.Errorf("object %s is not a coin: contents too short", obj.ID)
	}
	return binary.BigEndian.Uint64(obj.Contents[:coinBalanceSize]), nil
}

func SetCoinBalance(obj *Object, amount uint64) {
	if len(obj.Contents) < coinBalanceSize {
		obj.Contents = make([]byte, coinBalanceSize)
	}
	binary.BigEndian.PutUint64(obj.Contents[:coinBalanceSize], amount)
}

// NewCoinObject builds a fresh coin object of the given type owned by
// owner, seeded with amount.
func NewCoinObject(id ObjectID, coinType MoveTypeTag, owner Owner, amount uint64) *Object {
	o := &Object{
		ID:       id,
		Version:  0,
		Owner:    owner,
		Kind:     DataMoveObject,
		Type:     coinType,
		Contents: make([]byte, coinBalanceSize),
	}
	SetCoinBalance(o, amount)
	return o
}

// GasCoinType is the well-known type tag used for the engine's native
// gas/value coin.
var GasCoinType = MoveTypeTag{Module: "coin", Name: "Coin"}
