package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"apexcore/core"
	"apexcore/native/amm"
	"apexcore/native/lending"
	"apexcore/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeStateConflict  = -32030
	codeNotFound       = -32040
)

// Server exposes the node's operations over JSON-RPC 2.0 on /rpc, with health
// and metrics endpoints alongside.
type Server struct {
	node   *core.Node
	logger *slog.Logger
}

func NewServer(node *core.Node) *Server {
	return &Server{node: node, logger: slog.Default()}
}

// SetLogger overrides the server's logger.
func (s *Server) SetLogger(logger *slog.Logger) {
	if s == nil || logger == nil {
		return
	}
	s.logger = logger
}

// Router assembles the HTTP surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Post("/rpc", s.handle)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Start serves the router until the listener fails.
func (s *Server) Start(addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.logger.Info("rpc server listening", "addr", addr)
	return server.ListenAndServe()
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeEngineError maps the engines' sentinel errors onto JSON-RPC codes.
// Invalid inputs surface as parameter errors, business-rule rejections as
// state conflicts, and missing records as not-found.
func writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, amm.ErrInvalidAmount),
		errors.Is(err, amm.ErrInvalidAsset),
		errors.Is(err, lending.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, id, codeInvalidParams, err.Error(), nil)
	case errors.Is(err, lending.ErrPositionNotFound):
		writeError(w, http.StatusNotFound, id, codeNotFound, err.Error(), nil)
	case errors.Is(err, amm.ErrInsufficientLiquidity),
		errors.Is(err, amm.ErrSlippageExceeded),
		errors.Is(err, amm.ErrRatioMismatch),
		errors.Is(err, amm.ErrInsufficientShares),
		errors.Is(err, lending.ErrInsufficientBalance),
		errors.Is(err, lending.ErrInsufficientCollateral),
		errors.Is(err, lending.ErrWouldUndercollateralize),
		errors.Is(err, lending.ErrNoDebtToRepay),
		errors.Is(err, lending.ErrNotLiquidatable),
		errors.Is(err, lending.ErrPriceUnavailable):
		writeError(w, http.StatusConflict, id, codeStateConflict, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, id, codeServerError, err.Error(), nil)
	}
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	recorder := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
	s.dispatch(recorder, r, req)

	module := req.Method
	if idx := strings.IndexByte(module, '_'); idx > 0 {
		module = module[:idx]
	}
	observability.ModuleMetrics().Observe(module, req.Method, recorder.Status(), time.Since(start))
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	switch req.Method {
	case "dex_swap":
		s.handleDexSwap(w, r, req)
	case "dex_quote":
		s.handleDexQuote(w, r, req)
	case "dex_addLiquidity":
		s.handleDexAddLiquidity(w, r, req)
	case "dex_removeLiquidity":
		s.handleDexRemoveLiquidity(w, r, req)
	case "dex_getReserves":
		s.handleDexGetReserves(w, r, req)
	case "dex_spotPrice":
		s.handleDexSpotPrice(w, r, req)
	case "dex_liquidityOf":
		s.handleDexLiquidityOf(w, r, req)
	case "lend_depositCollateral":
		s.handleLendDeposit(w, r, req)
	case "lend_withdrawCollateral":
		s.handleLendWithdraw(w, r, req)
	case "lend_borrow":
		s.handleLendBorrow(w, r, req)
	case "lend_repay":
		s.handleLendRepay(w, r, req)
	case "lend_repayInterest":
		s.handleLendRepayInterest(w, r, req)
	case "lend_liquidate":
		s.handleLendLiquidate(w, r, req)
	case "lend_getPosition":
		s.handleLendGetPosition(w, r, req)
	case "lend_getTotals":
		s.handleLendGetTotals(w, r, req)
	case "lend_collateralRatio":
		s.handleLendCollateralRatio(w, r, req)
	case "lend_isLiquidatable":
		s.handleLendIsLiquidatable(w, r, req)
	case "oracle_price":
		s.handleOraclePrice(w, r, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
	}
}
