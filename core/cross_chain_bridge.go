// Core - Bridge Simulation
// ------------------------
//
// A minimal, test-grade bridge module used to exercise the engine's
// native-call path end to end (§4.8.1): a committee of validators signs
// a certified action off-chain, and the action is submitted on-chain as
// a MoveCall into one of the natives registered below. This is grounded
// in the original StartBridgeTransfer/CompleteBridgeTransfer pair
// (escrow-address derivation by module name, a uuid-keyed transfer
// record, a Broadcast-style event) generalized from this chain's
// uuid-keyed record store onto object-store semantics: the bridge's
// state (committee, relayers, escrow balance) is itself an Object, and
// every transition is an ordinary PT command instead of a side-channel
// write.
package core

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
)

// bridgeConfig is the JSON payload carried in a bridge config object's
// Contents. It is deliberately simple (no Merkle/SPV proof verification,
// no real relayer network) since the point of this module is to
// exercise native dispatch, gas charging and object mutation, not to be
// a production bridge.
type bridgeConfig struct {
	Committee [][]byte  `json:"committee"` // ed25519 public keys
	Threshold int       `json:"threshold"`
	Relayers  []Address `json:"relayers"`
	Escrowed  uint64    `json:"escrowed"`
	Nonce     uint64    `json:"nonce"` // replay guard, bumped per certified action consumed
}

func decodeBridgeConfig(obj *Object) (bridgeConfig, error) {
	var cfg bridgeConfig
	if err := json.Unmarshal(obj.Contents, &cfg); err != nil {
		return bridgeConfig{}, wrapExecution("bridge_bad_config", err)
	}
	return cfg, nil
}

func encodeBridgeConfig(obj *Object, cfg bridgeConfig) {
	body, _ := json.Marshal(cfg)
	obj.Contents = body
}

// CertifiedAction is an off-chain artifact: a payload signed by a
// quorum of the bridge committee. SignCertifiedAction builds these and
// the bridge natives verify them; on-chain natives only ever see the
// serialized bytes.
type CertifiedAction struct {
	Payload    []byte  `json:"payload"`
	Signers    []int   `json:"signers"`
	Signatures [][]byte `json:"signatures"`
}

// SignCertifiedAction signs payload with the committee private keys at
// the given signer indices, producing a CertifiedAction ready to submit
// as a MoveCall pure argument. It is a test/simulation helper, not
// something the engine itself calls.
func SignCertifiedAction(keys []ed25519.PrivateKey, signerIdx []int, payload []byte) CertifiedAction {
	sigs := make([][]byte, len(signerIdx))
	for i, idx := range signerIdx {
		sigs[i] = ed25519.Sign(keys[idx], payload)
	}
	return CertifiedAction{Payload: payload, Signers: signerIdx, Signatures: sigs}
}

func verifyCertifiedAction(cfg bridgeConfig, action CertifiedAction) error {
	if len(action.Signers) != len(action.Signatures) {
		return fmt.Errorf("signer/signature count mismatch")
	}
	valid := 0
	seen := make(map[int]bool, len(action.Signers))
	for i, idx := range action.Signers {
		if idx < 0 || idx >= len(cfg.Committee) {
			continue
		}
		if seen[idx] {
			continue // no double counting the same committee member
		}
		if ed25519.Verify(ed25519.PublicKey(cfg.Committee[idx]), action.Payload, action.Signatures[i]) {
			seen[idx] = true
			valid++
		}
	}
	if valid < cfg.Threshold {
		return fmt.Errorf("certified action has %d valid signatures, need %d", valid, cfg.Threshold)
	}
	return nil
}

// bridgeActionPayload is the structure a certified action's Payload
// decodes to for lock/mint and burn/release calls.
type bridgeActionPayload struct {
	Recipient Address `json:"recipient"`
	Amount    uint64  `json:"amount"`
	Nonce     uint64  `json:"nonce"`
}

func init() {
	RegisterNative("bridge", "register_bridge", nativeRegisterBridge)
	RegisterNative("bridge", "authorize_relayer", nativeAuthorizeRelayer)
	RegisterNative("bridge", "lock_and_mint", nativeLockAndMint)
	RegisterNative("bridge", "burn_and_release", nativeBurnAndRelease)
}

// nativeRegisterBridge creates a new bridge config object. pureArgs[0]
// is the JSON-encoded {committee, threshold}.
func nativeRegisterBridge(ctx NativeContext, objArgs []*Object, pureArgs [][]byte) ([]*Object, error) {
	if len(pureArgs) != 1 {
		return nil, wrapUserInput("bridge_register_bad_args", fmt.Errorf("expected 1 pure arg"))
	}
	var req struct {
		Committee [][]byte `json:"committee"`
		Threshold int      `json:"threshold"`
	}
	if err := json.Unmarshal(pureArgs[0], &req); err != nil {
		return nil, wrapUserInput("bridge_register_bad_args", err)
	}
	if req.Threshold <= 0 || req.Threshold > len(req.Committee) {
		return nil, wrapUserInput("bridge_register_bad_threshold",
			fmt.Errorf("threshold %d invalid for committee of %d", req.Threshold, len(req.Committee)))
	}

	id := ctx.NewObjectID()
	obj := &Object{
		ID:    id,
		Owner: NewSharedOwner(1),
		Kind:  DataMoveObject,
		Type:  MoveTypeTag{Module: "bridge", Name: "BridgeConfig"},
	}
	encodeBridgeConfig(obj, bridgeConfig{Committee: req.Committee, Threshold: req.Threshold})
	ctx.WriteObject(obj)
	bridgeLog.WithFields(map[string]interface{}{"bridge": id.String(), "threshold": req.Threshold}).
		Info("bridge registered")
	return []*Object{obj}, nil
}

// nativeAuthorizeRelayer appends an address to a bridge config's
// relayer allow-list. objArgs[0] is the bridge config; pureArgs[0] is
// the JSON-encoded Address.
func nativeAuthorizeRelayer(ctx NativeContext, objArgs []*Object, pureArgs [][]byte) ([]*Object, error) {
	if len(objArgs) != 1 || len(pureArgs) != 1 {
		return nil, wrapUserInput("bridge_authorize_bad_args", fmt.Errorf("expected 1 object and 1 pure arg"))
	}
	cfg, err := decodeBridgeConfig(objArgs[0])
	if err != nil {
		return nil, err
	}
	var relayer Address
	if err := json.Unmarshal(pureArgs[0], &relayer); err != nil {
		return nil, wrapUserInput("bridge_authorize_bad_address", err)
	}
	cfg.Relayers = append(cfg.Relayers, relayer)
	encodeBridgeConfig(objArgs[0], cfg)
	ctx.WriteObject(objArgs[0])
	return nil, nil
}

// nativeLockAndMint validates a certified action against the bridge's
// committee and, if valid, credits the recipient's coin with the
// certified amount by increasing the bridge's escrow counter and
// minting into the supplied coin object. objArgs = [bridgeConfig, coin];
// pureArgs[0] = JSON-encoded CertifiedAction.
func nativeLockAndMint(ctx NativeContext, objArgs []*Object, pureArgs [][]byte) ([]*Object, error) {
	if len(objArgs) != 2 || len(pureArgs) != 1 {
		return nil, wrapUserInput("bridge_lock_bad_args", fmt.Errorf("expected 2 objects and 1 pure arg"))
	}
	bridgeObj, coinObj := objArgs[0], objArgs[1]
	cfg, err := decodeBridgeConfig(bridgeObj)
	if err != nil {
		return nil, err
	}
	var action CertifiedAction
	if err := json.Unmarshal(pureArgs[0], &action); err != nil {
		return nil, wrapUserInput("bridge_lock_bad_action", err)
	}
	if err := verifyCertifiedAction(cfg, action); err != nil {
		return nil, wrapExecution("bridge_lock_unauthorized", err)
	}
	var payload bridgeActionPayload
	if err := json.Unmarshal(action.Payload, &payload); err != nil {
		return nil, wrapUserInput("bridge_lock_bad_payload", err)
	}
	if payload.Nonce != cfg.Nonce {
		return nil, wrapExecution("bridge_lock_replayed_nonce",
			fmt.Errorf("expected nonce %d, got %d", cfg.Nonce, payload.Nonce))
	}

	bal, err := CoinBalance(coinObj)
	if err != nil {
		return nil, wrapUserInput("bridge_lock_not_a_coin", err)
	}
	SetCoinBalance(coinObj, bal+payload.Amount)
	cfg.Escrowed += payload.Amount
	cfg.Nonce++
	encodeBridgeConfig(bridgeObj, cfg)

	ctx.WriteObject(bridgeObj)
	ctx.WriteObject(coinObj)
	ctx.RecordValueDelta(int64(payload.Amount))
	bridgeLog.WithFields(map[string]interface{}{
		"bridge": bridgeObj.ID.String(), "amount": payload.Amount, "recipient": payload.Recipient.String(),
	}).Info("bridge lock_and_mint applied")
	return nil, nil
}

// nativeBurnAndRelease is the mirror of nativeLockAndMint: it debits the
// supplied coin and decreases the bridge's escrow counter by the same
// amount, simulating releasing funds back to the origin chain.
func nativeBurnAndRelease(ctx NativeContext, objArgs []*Object, pureArgs [][]byte) ([]*Object, error) {
	if len(objArgs) != 2 || len(pureArgs) != 1 {
		return nil, wrapUserInput("bridge_burn_bad_args", fmt.Errorf("expected 2 objects and 1 pure arg"))
	}
	bridgeObj, coinObj := objArgs[0], objArgs[1]
	cfg, err := decodeBridgeConfig(bridgeObj)
	if err != nil {
		return nil, err
	}
	var action CertifiedAction
	if err := json.Unmarshal(pureArgs[0], &action); err != nil {
		return nil, wrapUserInput("bridge_burn_bad_action", err)
	}
	if err := verifyCertifiedAction(cfg, action); err != nil {
		return nil, wrapExecution("bridge_burn_unauthorized", err)
	}
	var payload bridgeActionPayload
	if err := json.Unmarshal(action.Payload, &payload); err != nil {
		return nil, wrapUserInput("bridge_burn_bad_payload", err)
	}
	if payload.Nonce != cfg.Nonce {
		return nil, wrapExecution("bridge_burn_replayed_nonce",
			fmt.Errorf("expected nonce %d, got %d", cfg.Nonce, payload.Nonce))
	}

	bal, err := CoinBalance(coinObj)
	if err != nil {
		return nil, wrapUserInput("bridge_burn_not_a_coin", err)
	}
	if bal < payload.Amount {
		return nil, wrapExecution("bridge_burn_insufficient_balance",
			fmt.Errorf("coin balance %d < %d", bal, payload.Amount))
	}
	if cfg.Escrowed < payload.Amount {
		return nil, wrapInvariant("bridge_burn_escrow_underflow",
			fmt.Errorf("escrow %d < release amount %d", cfg.Escrowed, payload.Amount))
	}

	SetCoinBalance(coinObj, bal-payload.Amount)
	cfg.Escrowed -= payload.Amount
	cfg.Nonce++
	encodeBridgeConfig(bridgeObj, cfg)

	ctx.WriteObject(bridgeObj)
	ctx.WriteObject(coinObj)
	ctx.RecordValueDelta(-int64(payload.Amount))
	bridgeLog.WithFields(map[string]interface{}{
		"bridge": bridgeObj.ID.String(), "amount": payload.Amount,
	}).Info("bridge burn_and_release applied")
	return nil, nil
}
