// Core - Well-known System Objects
// ---------------------------------
//
// §4's Clock and System State singletons: one fixed-id object each,
// mutated only by the dedicated transaction kinds in transaction.go
// (ConsensusCommitPrologue / ChangeEpoch / EndOfEpoch), following the
// same "JSON payload in Object.Contents" idiom cross_chain_bridge.go
// uses for its bridgeConfig object.
package core

import "encoding/json"

func wellKnownID(name string) ObjectID {
	return ObjectID(DigestOfBytes([]byte(name)))
}

var (
	// ClockObjectID names the one Clock object every fork carries. Only a
	// ConsensusCommitPrologue transaction may advance it, and only
	// forward (§4.7.3, P6).
	ClockObjectID = wellKnownID("forknet::clock")

	// SystemStateObjectID names the one object EpochState is derived
	// from. Only ChangeEpoch/EndOfEpoch transactions mutate it.
	SystemStateObjectID = wellKnownID("forknet::system_state")
)

// clockState is the JSON payload carried in the Clock object's Contents.
type clockState struct {
	TimestampMs uint64 `json:"timestamp_ms"`
}

func decodeClock(obj *Object) (clockState, error) {
	var c clockState
	if err := json.Unmarshal(obj.Contents, &c); err != nil {
		return clockState{}, wrapInvariant("clock_bad_contents", err)
	}
	return c, nil
}

func encodeClock(obj *Object, c clockState) {
	obj.Kind = DataMoveObject
	obj.Type = MoveTypeTag{Module: "clock", Name: "Clock"}
	body, _ := json.Marshal(c)
	obj.Contents = body
}

// EpochState mirrors spec §3.2's EpochState entity: the validator-facing
// parameters derived from the system-state object at each epoch
// boundary.
type EpochState struct {
	Epoch              EpochID   `json:"epoch"`
	ProtocolVersion    uint64    `json:"protocol_version"`
	ReferenceGasPrice  uint64    `json:"reference_gas_price"`
	NextConsensusRound uint64    `json:"next_consensus_round"`
	Validators         []Address `json:"validators"`
}

func decodeEpochState(obj *Object) (EpochState, error) {
	var s EpochState
	if err := json.Unmarshal(obj.Contents, &s); err != nil {
		return EpochState{}, wrapInvariant("system_state_bad_contents", err)
	}
	return s, nil
}

func encodeEpochState(obj *Object, s EpochState) {
	obj.Kind = DataMoveObject
	obj.Type = MoveTypeTag{Module: "system_state", Name: "SystemState"}
	body, _ := json.Marshal(s)
	obj.Contents = body
}

// seedSystemObjects writes the initial Clock and SystemState objects
// directly into overlay, bypassing the engine and gas metering exactly
// as Fund does — a freshly forked node has no prior epoch to derive
// these from, so they start at their protocol-defined zero values.
func seedSystemObjects(overlay *LocalOverlayStore) {
	clock := &Object{ID: ClockObjectID, Version: 1, Owner: NewSharedOwner(1)}
	encodeClock(clock, clockState{TimestampMs: 0})
	overlay.Put(clock)

	state := &Object{ID: SystemStateObjectID, Version: 1, Owner: NewSharedOwner(1)}
	encodeEpochState(state, EpochState{Epoch: 1, ProtocolVersion: 1, ReferenceGasPrice: defaultReferenceGasPrice})
	overlay.Put(state)
}

// unmeteredGasCharger returns a zero-valued GasCharger for the
// unmetered system-transaction category §4.6 describes (consensus
// prologue, epoch change): no budget was declared, so nothing is
// charged or rebated.
func unmeteredGasCharger() *GasCharger { return &GasCharger{} }
