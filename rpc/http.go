package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"wacgbridge/native/bridge"
	"wacgbridge/observability"
)

const (
	maxRequestBytes = 1 << 20 // 1 MiB
	routeRPC        = "rpc"
)

// Backend is the controller surface served over RPC. core.Node satisfies it.
type Backend interface {
	Mint(ctx context.Context, caller, recipient common.Address, amount *big.Int, proof string) (common.Hash, error)
	Burn(ctx context.Context, caller, holder common.Address, amount *big.Int, destination string) (common.Hash, error)
	EmergencyMint(ctx context.Context, caller, recipient common.Address, amount *big.Int) error
	BurnFrom(ctx context.Context, caller, holder common.Address, amount *big.Int) error
	Pause(ctx context.Context, caller common.Address) error
	Unpause(ctx context.Context, caller common.Address) error
	SetOperator(ctx context.Context, caller, next common.Address) error
	SetAdministrator(ctx context.Context, caller, next common.Address) error
	SetEmergencyRecovery(ctx context.Context, caller, next common.Address) error
	UpdateBounds(ctx context.Context, caller common.Address, minimum, maxIn, maxOut *big.Int) error
	UpdateDailyCaps(ctx context.Context, caller common.Address, capIn, capOut *big.Int) error
	RecoverForeignAsset(ctx context.Context, caller, asset, to common.Address, amount *big.Int) error
	RecordForeignDeposit(ctx context.Context, caller, asset common.Address, amount *big.Int, ref string) error
	Transfer(ctx context.Context, caller, to common.Address, amount *big.Int) error
	Approve(ctx context.Context, caller, spender common.Address, amount *big.Int) error
	TransferFrom(ctx context.Context, caller, from, to common.Address, amount *big.Int) error

	Stats() (bridge.Stats, error)
	Params() (bridge.Params, error)
	BalanceOf(addr common.Address) (*big.Int, error)
	Allowance(owner, spender common.Address) (*big.Int, error)
	DailyUsage(account common.Address, d bridge.Direction, day uint64) (*big.Int, error)
	IsProcessed(fp common.Hash) (bool, error)
	ForeignHolding(asset common.Address) (*big.Int, error)
	Today() (uint64, error)
	Metadata() bridge.Metadata
}

// Config tunes the RPC server.
type Config struct {
	ListenAddress      string
	RateLimitPerSecond float64
	Burst              int
	SignatureWindow    time.Duration
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	// Seen records accepted signatures; nil keeps them in memory.
	Seen               SeenStore
}

// Server exposes the controller as JSON-RPC 2.0 over HTTP.
type Server struct {
	cfg     Config
	backend Backend
	log     *slog.Logger
	metrics *observability.BridgeMetrics
	auth    *verifier
	limiter *rateLimiter
	methods map[string]methodHandler
}

type methodHandler struct {
	signed bool
	fn     func(ctx context.Context, caller common.Address, params []json.RawMessage) (interface{}, error)
}

// NewServer constructs a server over backend. now overrides the clock used for
// signature freshness and rate limiting; nil selects time.Now.
func NewServer(cfg Config, backend Backend, log *slog.Logger, metrics *observability.BridgeMetrics, now func() time.Time) (*Server, error) {
	if backend == nil {
		return nil, fmt.Errorf("rpc: backend required")
	}
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		backend: backend,
		log:     log.With(slog.String("component", "rpc")),
		metrics: metrics,
		auth:    newVerifier(cfg.SignatureWindow, now, cfg.Seen),
		limiter: newRateLimiter(cfg.RateLimitPerSecond, cfg.Burst, now),
	}
	s.methods = s.bridgeMethods()
	return s, nil
}

// Handler returns the HTTP handler serving health checks and JSON-RPC.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodPost, "/", otelhttp.NewHandler(http.HandlerFunc(s.handle), "wacg.rpc"))
	return r
}

// Run serves until ctx is cancelled, then shuts the listener down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("rpc: listen %s: %w", s.cfg.ListenAddress, err)
	}
	return s.Serve(ctx, listener)
}

// Serve is Run over an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("rpc shutdown", slog.Any("error", err))
		}
	}()
	s.log.Info("rpc listening", slog.String("address", listener.Addr().String()))
	err := srv.Serve(listener)
	<-done
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	method := s.serve(rec, r)
	s.metrics.ObserveRPC(method, rec.status, time.Since(start))
}

// serve handles one request and returns the method label for metrics.
func (s *Server) serve(w http.ResponseWriter, r *http.Request) string {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()
	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
		}
		writeError(w, status, nil, codeInvalidRequest, "failed to read request body", nil)
		return routeRPC
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "failed to parse request", err.Error())
		return routeRPC
	}
	handler, ok := s.methods[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("unknown method %q", req.Method), nil)
		return routeRPC
	}

	var (
		caller common.Address
		seenID common.Hash
	)
	source := clientSource(r)
	if handler.signed {
		signer, id, err := s.auth.verify(req.Method, req.Params)
		if err != nil {
			s.rejectAuth(w, r, &req, source, err)
			return req.Method
		}
		caller, seenID = signer, id
		source = signer.Hex()
	}
	if !s.limiter.allow(source) {
		s.metrics.RecordThrottle(req.Method, "rate_limit")
		writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "rate limit exceeded", source)
		return req.Method
	}
	// Throttled requests never reach the seen store, so a caller may resend
	// the same signed request once the limiter admits it.
	if handler.signed {
		if err := s.auth.remember(seenID); err != nil {
			s.rejectAuth(w, r, &req, source, err)
			return req.Method
		}
	}

	result, err := handler.fn(r.Context(), caller, req.Params)
	if err != nil {
		var perr *paramError
		if errors.As(err, &perr) {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, perr.Error(), nil)
			return req.Method
		}
		status, rpcErr := controllerError(err)
		if status == http.StatusInternalServerError {
			s.log.ErrorContext(r.Context(), "rpc call failed", slog.String("method", req.Method), slog.Any("error", err))
		}
		writeRPCError(w, status, req.ID, rpcErr)
		return req.Method
	}
	writeResult(w, req.ID, result)
	return req.Method
}

func (s *Server) rejectAuth(w http.ResponseWriter, r *http.Request, req *RPCRequest, source string, err error) {
	switch {
	case errors.Is(err, errStaleRequest):
		s.metrics.RecordThrottle(req.Method, "stale_signature")
		writeError(w, http.StatusUnauthorized, req.ID, codeStaleRequest, err.Error(), nil)
	case errors.Is(err, errSeenStore):
		s.log.ErrorContext(r.Context(), "rpc signature store failed", slog.String("method", req.Method), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "internal error", nil)
	case errors.Is(err, errReplayedRequest):
		s.metrics.RecordThrottle(req.Method, "replayed_signature")
		writeError(w, http.StatusConflict, req.ID, codeDuplicate, err.Error(), nil)
	default:
		s.log.WarnContext(r.Context(), "rpc signature rejected",
			slog.String("method", req.Method),
			slog.String("source", source),
			slog.Any("error", err))
		writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "invalid request signature", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	writeRPCError(w, status, id, errObj)
}

func writeRPCError(w http.ResponseWriter, status int, id interface{}, errObj *RPCError) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}
