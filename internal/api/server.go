package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/rickgao/track-market/internal/auth"
	"github.com/rickgao/track-market/internal/ledger"
	"github.com/rickgao/track-market/internal/market"
	"github.com/rickgao/track-market/internal/model"
	"github.com/rickgao/track-market/internal/registry"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Server serves the HTTP API.
type Server struct {
	registry *registry.Registry
	market   *market.Marketplace
	ledger   *ledger.Ledger
	verifier *auth.Verifier // nil disables request signing
	logger   *slog.Logger
	mux      *http.ServeMux
}

// NewServer creates a Server and registers all routes.
func NewServer(reg *registry.Registry, mkt *market.Marketplace, l *ledger.Ledger, verifier *auth.Verifier, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		registry: reg,
		market:   mkt,
		ledger:   l,
		verifier: verifier,
		logger:   logger,
		mux:      http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.Handle("POST /v1/tracks", http.HandlerFunc(s.handleMint))
	s.Handle("POST /v1/tracks/batch", http.HandlerFunc(s.handleMintBatch))
	s.Handle("GET /v1/tracks/{id}", http.HandlerFunc(s.handleTrack))
	s.Handle("GET /v1/tracks/{id}/name", http.HandlerFunc(s.handleTrackName))
	s.Handle("GET /v1/tracks/{id}/balances/{holder}", http.HandlerFunc(s.handleBalance))

	s.Handle("GET /v1/listings", http.HandlerFunc(s.handleListings))
	s.Handle("GET /v1/listings/{id}", http.HandlerFunc(s.handleListing))
	s.Handle("POST /v1/listings", http.HandlerFunc(s.handleCreateListing))
	s.Handle("POST /v1/listings/{id}/buy", http.HandlerFunc(s.handleBuy))
	s.Handle("POST /v1/listings/{id}/cancel", http.HandlerFunc(s.handleCancel))

	s.Handle("GET /v1/events", http.HandlerFunc(s.handleEvents))

	return s
}

// Handle registers h behind request verification.
func (s *Server) Handle(pattern string, h http.Handler) {
	s.mux.Handle(pattern, s.authenticate(h))
}

// Handler returns the route table.
func (s *Server) Handler() *http.ServeMux {
	return s.mux
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	if s.verifier == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keyID, err := s.verifier.Verify(r)
		if err != nil {
			s.logger.Warn("rejected request",
				"method", r.Method,
				"path", r.URL.Path,
				"error", err,
			)
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{
				Error: ErrorBody{Code: CodeUnauthenticated, Message: err.Error()},
			})
			return
		}
		s.logger.Debug("verified request", "key", keyID, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

// -----------------------------------------------------------------------------
// Request parsing
// -----------------------------------------------------------------------------

// requestError is a malformed request, reported as 400 bad_request.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("decode body: %v", err)
	}
	return nil
}

func pathID(r *http.Request, name string) (uint64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, badRequest("invalid %s %q", name, raw)
	}
	return id, nil
}

func queryUint(r *http.Request, name string) (uint64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, badRequest("invalid %s %q", name, raw)
	}
	return v, nil
}

func callerOf(r *http.Request) (model.Address, error) {
	return model.ParseAddress(r.Header.Get(HeaderCaller))
}

func paymentOf(r *http.Request) (model.Amount, error) {
	amt, err := model.ParseAmount(r.Header.Get(HeaderPayment))
	if err != nil {
		return 0, badRequest("invalid %s: %v", HeaderPayment, err)
	}
	return amt, nil
}

// -----------------------------------------------------------------------------
// Responses
// -----------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// StatusForCode maps an error code to its HTTP status.
func StatusForCode(code string) int {
	switch code {
	case model.CodeInsufficientPayment, model.CodeIncorrectPayment, model.CodePaymentFailed:
		return http.StatusPaymentRequired
	case model.CodeUnauthorized:
		return http.StatusForbidden
	case model.CodeUnknownTrack, model.CodeUnknownListing:
		return http.StatusNotFound
	case model.CodeListingInactive, model.CodeInsufficientBalance, model.CodeQuantityExceedsAvailable:
		return http.StatusConflict
	case model.CodeInvalidQuantity, model.CodeArrayLengthMismatch, model.CodeInvalidAddress, CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var reqErr *requestError
	code := model.ErrorCode(err)
	if errors.As(err, &reqErr) {
		code = CodeBadRequest
	}

	msg := err.Error()
	status := StatusForCode(code)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		msg = "internal error"
	} else {
		s.logger.Debug("request rejected",
			"method", r.Method,
			"path", r.URL.Path,
			"code", code,
			"error", err,
		)
	}

	writeJSON(w, status, ErrorResponse{Error: ErrorBody{Code: code, Message: msg}})
}
