// Core - JSON-RPC Server
// ----------------------
//
// RPCServer exposes the facade's fork_* method surface over HTTP using
// gorilla/mux, the same router the xchainserver package this replaces
// was built on. One POST endpoint, JSON-RPC 2.0 envelope in and out;
// transaction and effects bodies travel as plain JSON rather than BCS,
// since this engine never had a BCS encoder to begin with — RLP stays
// reserved for canonical digesting (encoding.go), matching the rest of
// this package's wire-format split.
package core

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// rpcRequest is a JSON-RPC 2.0 request envelope.
type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// rpcResponse is a JSON-RPC 2.0 response envelope.
type rpcResponse struct {
	ID     json.RawMessage `json:"id"`
	Result interface{}     `json:"result,omitempty"`
	Error  *rpcError       `json:"error,omitempty"`
}

// rpcError follows §6.2's code-range taxonomy: -32000..-32099 user
// input, -32100..-32199 execution, -32200..-32299 remote/IO,
// -32300..-32399 invariant.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

func errorCode(kind ErrorKind) int {
	switch kind {
	case UserInputError:
		return -32000
	case ExecutionFailure:
		return -32100
	case RemoteError, StorageError:
		return -32200
	case InvariantViolation:
		return -32300
	default:
		return -32100
	}
}

func toRPCError(err error) *rpcError {
	kind, ok := KindOf(err)
	if !ok {
		kind = ExecutionFailure
	}
	return &rpcError{Code: errorCode(kind), Message: err.Error()}
}

// RPCServer binds a Facade to gorilla/mux routes.
type RPCServer struct {
	facade *Facade
	router *mux.Router
	http   *http.Server
}

// NewRPCServer builds a server listening at addr (e.g. ":9000"),
// handling every fork_* method at POST /rpc.
func NewRPCServer(facade *Facade, addr string) *RPCServer {
	s := &RPCServer{facade: facade, router: mux.NewRouter()}
	s.router.HandleFunc("/rpc", s.handleRPC).Methods(http.MethodPost)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return s
}

// Start begins serving in the background. Callers should Shutdown to
// stop it cleanly.
func (s *RPCServer) Start() error {
	rpcLog.WithField("addr", s.http.Addr).Info("rpc server listening")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the server, waiting for in-flight requests to finish
// or ctx to expire.
func (s *RPCServer) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *RPCServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeRPC(w http.ResponseWriter, id json.RawMessage, result interface{}, err error) {
	resp := rpcResponse{ID: id}
	if err != nil {
		resp.Error = toRPCError(err)
	} else {
		resp.Result = result
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *RPCServer) handleRPC(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.NewString()
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rpcLog.WithField("request_id", reqID).WithError(err).Warn("malformed rpc request body")
		writeRPC(w, nil, nil, wrapUserInput("rpc_malformed_request", err))
		return
	}
	log := rpcLog.WithField("request_id", reqID).WithField("method", req.Method)
	log.Info("rpc request received")

	ctx := r.Context()
	result, err := s.dispatch(ctx, req.Method, req.Params)
	if err != nil {
		log.WithError(err).Warn("rpc method failed")
	}
	writeRPC(w, req.ID, result, err)
}

func (s *RPCServer) dispatch(ctx context.Context, method string, params json.RawMessage) (interface{}, error) {
	switch method {
	case "fork_execute":
		var tx Transaction
		if err := json.Unmarshal(params, &tx); err != nil {
			return nil, wrapUserInput("rpc_bad_params", err)
		}
		return s.facade.ExecuteTransaction(ctx, &tx)

	case "fork_dryRun":
		var tx Transaction
		if err := json.Unmarshal(params, &tx); err != nil {
			return nil, wrapUserInput("rpc_bad_params", err)
		}
		return s.facade.DryRun(ctx, &tx)

	case "fork_advanceClock":
		var p struct {
			DeltaMs uint64 `json:"delta_ms"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, wrapUserInput("rpc_bad_params", err)
		}
		return s.facade.AdvanceClock(ctx, p.DeltaMs)

	case "fork_setClock":
		var p struct {
			TimestampMs uint64 `json:"timestamp_ms"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, wrapUserInput("rpc_bad_params", err)
		}
		return s.facade.SetClock(ctx, p.TimestampMs)

	case "fork_advanceEpoch":
		epoch, eff, err := s.facade.AdvanceEpoch(ctx)
		if err != nil {
			return nil, err
		}
		return struct {
			NewEpoch EpochID            `json:"new_epoch"`
			Effects  *TransactionEffects `json:"effects"`
		}{epoch, eff}, nil

	case "fork_replay":
		var p struct {
			Digest Digest `json:"digest"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, wrapUserInput("rpc_bad_params", err)
		}
		return s.facade.Replay(ctx, p.Digest)

	case "fork_setObjectBcs":
		var p struct {
			ID       ObjectID `json:"id"`
			Contents []byte   `json:"contents"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, wrapUserInput("rpc_bad_params", err)
		}
		if err := s.facade.SetObjectBcs(ctx, p.ID, p.Contents); err != nil {
			return nil, err
		}
		return struct{}{}, nil

	case "fork_setOwner":
		var p struct {
			ID    ObjectID `json:"id"`
			Owner Owner    `json:"owner"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, wrapUserInput("rpc_bad_params", err)
		}
		if err := s.facade.SetOwner(ctx, p.ID, p.Owner); err != nil {
			return nil, err
		}
		return struct{}{}, nil

	case "fork_fund":
		var p struct {
			Address Address `json:"address"`
			Amount  uint64  `json:"amount"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, wrapUserInput("rpc_bad_params", err)
		}
		id := s.facade.Fund(p.Address, p.Amount)
		return struct {
			CoinID ObjectID `json:"coin_id"`
		}{id}, nil

	case "fork_seedObject":
		var p struct {
			ID ObjectID `json:"id"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, wrapUserInput("rpc_bad_params", err)
		}
		found, err := s.facade.SeedObject(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		return struct {
			Found bool `json:"found"`
		}{found}, nil

	case "fork_snapshot":
		return struct {
			ID uint64 `json:"id"`
		}{s.facade.Snapshot()}, nil

	case "fork_revert":
		var p struct {
			ID uint64 `json:"id"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, wrapUserInput("rpc_bad_params", err)
		}
		if err := s.facade.Revert(p.ID); err != nil {
			return nil, err
		}
		return struct{}{}, nil

	case "fork_reset":
		var p struct {
			Checkpoint CheckpointSeq `json:"checkpoint"`
		}
		_ = json.Unmarshal(params, &p)
		s.facade.Reset(p.Checkpoint)
		return struct{}{}, nil

	case "fork_getBalance":
		var p struct {
			Address  Address     `json:"address"`
			CoinType MoveTypeTag `json:"coin_type"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, wrapUserInput("rpc_bad_params", err)
		}
		total, err := s.facade.GetBalance(ctx, p.Address, p.CoinType)
		if err != nil {
			return nil, err
		}
		return struct {
			Total uint64 `json:"total"`
		}{total}, nil

	case "fork_getAllBalances":
		var p struct {
			Address Address `json:"address"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, wrapUserInput("rpc_bad_params", err)
		}
		balances, err := s.facade.GetAllBalances(ctx, p.Address)
		if err != nil {
			return nil, err
		}
		return balances, nil

	case "fork_dumpState":
		var p struct {
			Path string `json:"path"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, wrapUserInput("rpc_bad_params", err)
		}
		if err := SaveState(s.facade, p.Path); err != nil {
			return nil, err
		}
		return struct{}{}, nil

	case "fork_natives":
		return DebugDumpNatives(), nil

	default:
		return nil, wrapUserInput("rpc_unknown_method", errUnknownMethod(method))
	}
}

func errUnknownMethod(method string) error {
	return &unknownMethodError{method: method}
}

type unknownMethodError struct{ method string }

func (e *unknownMethodError) Error() string { return "unknown rpc method: " + e.method }
