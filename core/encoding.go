package core

import "github.com/ethereum/go-ethereum/rlp"

// rlpEncode produces the canonical binary encoding used for digesting
// objects, transactions and effects. RLP has no notion of maps, which is
// exactly why every wire-critical type in this package (Object,
// Transaction, Command, TransactionEffects, ...) is built from structs
// and slices only — the same discipline the teacher's ledger.go applies
// to its Block type, just carried further here since our object graph is
// richer.
func rlpEncode(v interface{}) ([]byte, error) {
	return rlp.EncodeToBytes(v)
}

func rlpDecode(b []byte, v interface{}) error {
	return rlp.DecodeBytes(b, v)
}
