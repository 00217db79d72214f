package rpc

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"mintvault/native/auction"
	nativecommon "mintvault/native/common"
	"mintvault/native/position"
	"mintvault/observability"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeRejected       = -32020
	codeModulePaused   = -32021
)

// RPCRequest is the inbound JSON-RPC 2.0 envelope.
type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      interface{}       `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

// RPCError is the JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// RPCResponse is the outbound JSON-RPC 2.0 envelope.
type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// Server exposes the position and auction engines over JSON-RPC. Mutating
// methods are serialized under a single mutex so each state transition applies
// as one full operation, matching the engines' execution model.
type Server struct {
	positions *position.Engine
	auctions  *auction.Engine
	logger    *slog.Logger
	auth      *Authorizer
	metrics   *observability.RPCMetrics

	mu sync.Mutex
}

// NewServer constructs the RPC server. A nil authorizer disables bearer-token
// checks; intended only for tests and loopback development.
func NewServer(positions *position.Engine, auctions *auction.Engine, logger *slog.Logger, auth *Authorizer) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		positions: positions,
		auctions:  auctions,
		logger:    logger,
		auth:      auth,
		metrics:   observability.Metrics(),
	}
}

// Router builds the HTTP routing table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Post("/rpc", s.handleRPC)
	return r
}

type handlerFunc func(w http.ResponseWriter, r *http.Request, req *RPCRequest)

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req RPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	method := strings.TrimSpace(req.Method)
	if method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	handler, mutating, ok := s.route(method)
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "unknown method "+method, nil)
		return
	}

	requestID := uuid.NewString()
	started := time.Now()
	s.logger.Debug("rpc request", "requestId", requestID, "method", method)

	if mutating {
		if err := s.authorize(r); err != nil {
			s.metrics.ObserveError(moduleOf(method), method, strconv.Itoa(codeUnauthorized))
			writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, err.Error(), nil)
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
	}

	recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	handler(recorder, r, &req)

	outcome := "ok"
	if recorder.status >= http.StatusBadRequest {
		outcome = "error"
	}
	s.metrics.ObserveRequest(moduleOf(method), method, outcome, time.Since(started))
}

func (s *Server) route(method string) (handlerFunc, bool, bool) {
	switch method {
	case "vault_initialize":
		return s.handleVaultInitialize, true, true
	case "vault_borrow":
		return s.handleVaultBorrow, true, true
	case "vault_repay":
		return s.handleVaultRepay, true, true
	case "vault_liquidate":
		return s.handleVaultLiquidate, true, true
	case "vault_getPosition":
		return s.handleVaultGetPosition, false, true
	case "vault_healthCheck":
		return s.handleVaultHealthCheck, false, true
	case "vault_requiredCollateral":
		return s.handleVaultRequiredCollateral, false, true
	case "vault_getSupply":
		return s.handleVaultGetSupply, false, true
	case "auction_getPrice":
		return s.handleAuctionGetPrice, false, true
	case "auction_get":
		return s.handleAuctionGet, false, true
	case "auction_bid":
		return s.handleAuctionBid, true, true
	default:
		return nil, false, false
	}
}

func moduleOf(method string) string {
	if idx := strings.IndexByte(method, '_'); idx > 0 {
		return method[:idx]
	}
	return method
}

func (s *Server) authorize(r *http.Request) error {
	if s.auth == nil {
		return nil
	}
	return s.auth.Authorize(r)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: "2.0", ID: id, Result: result})
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(RPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &RPCError{Code: code, Message: message, Data: data},
	})
}

// writeEngineError maps engine failures onto JSON-RPC error codes. Input
// validation failures are client errors; everything else is a server fault.
func (s *Server) writeEngineError(w http.ResponseWriter, req *RPCRequest, method string, err error) {
	status := http.StatusInternalServerError
	code := codeServerError
	switch {
	case errors.Is(err, nativecommon.ErrModulePaused):
		status = http.StatusServiceUnavailable
		code = codeModulePaused
	case errors.Is(err, position.ErrAlreadyInitialized),
		errors.Is(err, position.ErrPositionNotInitialized),
		errors.Is(err, position.ErrInvalidCollateral),
		errors.Is(err, position.ErrInvalidBorrowAmount),
		errors.Is(err, position.ErrInsufficientCollateral),
		errors.Is(err, position.ErrNoActiveLoan),
		errors.Is(err, position.ErrInvalidRepayAmount),
		errors.Is(err, position.ErrNotLiquidatable),
		errors.Is(err, position.ErrTransferFailed),
		errors.Is(err, auction.ErrAuctionNotActive),
		errors.Is(err, auction.ErrAuctionEnded),
		errors.Is(err, auction.ErrBidTooLow),
		errors.Is(err, auction.ErrTransferFailed):
		status = http.StatusBadRequest
		code = codeRejected
	default:
		s.logger.Error("rpc handler failure", "method", method, "error", err)
	}
	s.metrics.ObserveError(moduleOf(method), method, strconv.Itoa(code))
	writeError(w, status, req.ID, code, err.Error(), nil)
}
