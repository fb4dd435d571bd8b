package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"expvar"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ajitpratap0/unenki/internal/metrics"
	"github.com/ajitpratap0/unenki/pkg/ansiencode"
)

// RequestIDHeader carries the per-request correlation ID.
const RequestIDHeader = "X-Request-ID"

// Server is an HTTP API server that exposes the encode and strip operations.
type Server struct {
	encoder      *ansiencode.Encoder
	defaults     *ansiencode.Options
	logger       *slog.Logger
	authToken    string // empty = no auth required
	maxBodyBytes int64
}

// NewServer creates a new Server. defaults are merged under the options of
// every encode request.
func NewServer(enc *ansiencode.Encoder, defaults *ansiencode.Options, logger *slog.Logger, authToken string, maxBodyBytes int64) *Server {
	if enc == nil {
		enc = ansiencode.New(nil)
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = 1 << 20
	}
	return &Server{
		encoder:      enc,
		defaults:     defaults,
		logger:       logger,
		authToken:    authToken,
		maxBodyBytes: maxBodyBytes,
	}
}

// Handler returns an http.Handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check and counters: no auth required.
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /debug/vars", expvar.Handler())

	mux.HandleFunc("POST /v1/encode", s.auth(s.handleEncode))
	mux.HandleFunc("POST /v1/strip", s.auth(s.handleStrip))
	mux.HandleFunc("POST /v1/strip-encoded", s.auth(s.handleStripEncoded))

	return s.requestID(mux)
}

// --- middleware ---

// requestID propagates an incoming X-Request-ID or assigns a fresh one.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request", "id", id, "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// auth wraps a handler with Bearer token authentication when authToken is set.
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.authToken == "" {
			next(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

// --- handlers ---

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// encodeRequest is the body accepted by POST /v1/encode. Text is untyped so
// that non-string values reach the encoder and are rejected there.
type encodeRequest struct {
	Text  any               `json:"text"`
	Keep  []string          `json:"keep"`
	Force map[string]string `json:"force"`
}

// textRequest is the body accepted by the strip endpoints.
type textRequest struct {
	Text any `json:"text"`
}

// resultResponse is returned by every transform endpoint.
type resultResponse struct {
	Result string `json:"result"`
}

func (s *Server) handleEncode(w http.ResponseWriter, r *http.Request) {
	var req encodeRequest
	if !s.decode(w, r, &req) {
		return
	}

	opts, err := requestOptions(req.Keep, req.Force)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := s.encoder.EncodeValue(req.Text, s.defaults.Merge(opts))
	if err != nil {
		s.writeTransformError(w, err)
		return
	}
	metrics.Inc(metrics.EncodeTotal)
	s.writeJSON(w, http.StatusOK, resultResponse{Result: out})
}

func (s *Server) handleStrip(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !s.decode(w, r, &req) {
		return
	}
	out, err := s.encoder.StripValue(req.Text)
	if err != nil {
		s.writeTransformError(w, err)
		return
	}
	metrics.Inc(metrics.StripTotal)
	s.writeJSON(w, http.StatusOK, resultResponse{Result: out})
}

func (s *Server) handleStripEncoded(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !s.decode(w, r, &req) {
		return
	}
	out, err := ansiencode.StripEncodedValue(req.Text)
	if err != nil {
		s.writeTransformError(w, err)
		return
	}
	metrics.Inc(metrics.StripEncodedTotal)
	s.writeJSON(w, http.StatusOK, resultResponse{Result: out})
}

// --- helpers ---

// requestOptions converts the JSON keep/force fields to encoder options.
// Every keep entry and force key must be exactly one character.
func requestOptions(keep []string, force map[string]string) (*ansiencode.Options, error) {
	opts := &ansiencode.Options{}
	for _, k := range keep {
		if utf8.RuneCountInString(k) != 1 {
			return nil, fmt.Errorf("keep entries must be single characters, got %q", k)
		}
		r, _ := utf8.DecodeRuneInString(k)
		opts.Keep = append(opts.Keep, r)
	}
	for k, repl := range force {
		if utf8.RuneCountInString(k) != 1 {
			return nil, fmt.Errorf("force keys must be single characters, got %q", k)
		}
		if opts.Force == nil {
			opts.Force = make(map[rune]string, len(force))
		}
		r, _ := utf8.DecodeRuneInString(k)
		opts.Force[r] = repl
	}
	return opts, nil
}

// decode reads a size-limited JSON body into v, writing a 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeTransformError maps an encoder error to a response.
func (s *Server) writeTransformError(w http.ResponseWriter, err error) {
	if errors.Is(err, ansiencode.ErrInvalidArgument) {
		metrics.Inc(metrics.InvalidArgumentTotal)
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Error("transform failed", "error", err)
	s.writeError(w, http.StatusInternalServerError, "transform failed")
}

// writeJSON encodes v as JSON and writes it to w with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(v); encErr != nil {
		s.logger.Error("failed to encode response", "error", encErr)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// Shutdown gracefully shuts down an http.Server with the given timeout.
// This is a convenience helper used by the serve command.
func Shutdown(srv *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
