package api

import (
	"bufio"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/profile-scraper/internal/metrics"
	"github.com/JakeFAU/profile-scraper/internal/middleware"
	"github.com/JakeFAU/profile-scraper/internal/proxy"
	"github.com/JakeFAU/profile-scraper/internal/proxy/pool"
	"github.com/JakeFAU/profile-scraper/internal/scrape"
)

// StatusClientClosedRequest reports a scrape abandoned by the caller.
const StatusClientClosedRequest = 499

// Pool is the subset of the proxy pool the API needs.
type Pool interface {
	Snapshot() pool.Snapshot
	Initialize(ctx context.Context) error
}

// Scraper resolves a single profile URL.
type Scraper interface {
	ScrapeWithRotation(ctx context.Context, rawURL string) (scrape.Result, error)
}

// Config controls server behavior.
type Config struct {
	// APIKey guards /v1 routes when non-empty.
	APIKey         string
	RequestTimeout time.Duration
}

// Server wires HTTP handlers to the pool and the orchestrator.
type Server struct {
	router  chi.Router
	pool    Pool
	scraper Scraper
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(p Pool, scraper Scraper, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Minute
	}
	s := &Server{
		pool:    p,
		scraper: scraper,
		logger:  logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(middleware.Metrics)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.APIKey != "" {
			r.Use(apiKeyMiddleware(cfg.APIKey))
		}
		r.Use(timeoutMiddleware(cfg.RequestTimeout))
		r.Get("/proxies", s.listProxies)
		r.Post("/proxies/refresh", s.refreshProxies)
		r.Post("/scrape", s.scrape)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readyz reports ready once the pool holds at least one working proxy.
func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	snap := s.pool.Snapshot()
	if len(snap.Working) == 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "no working proxies", "generation": snap.Generation})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready", "working": len(snap.Working)})
}

func (s *Server) listProxies(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.pool.Snapshot())
}

func (s *Server) refreshProxies(w http.ResponseWriter, r *http.Request) {
	err := s.pool.Initialize(r.Context())
	snap := s.pool.Snapshot()
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, snap)
	case errors.Is(err, proxy.ErrNoCandidates), errors.Is(err, proxy.ErrNoWorkingProxies):
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": err.Error(), "pool": snap})
	default:
		writeError(w, contextStatus(err, http.StatusInternalServerError), err.Error())
	}
}

type scrapeRequest struct {
	URL string `json:"url"`
}

type scrapeResponse struct {
	scrape.Result
	Error string `json:"error,omitempty"`
}

func (s *Server) scrape(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := scrape.ValidateURL(req.URL); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.scraper.ScrapeWithRotation(r.Context(), req.URL)
	if err == nil {
		writeJSON(w, http.StatusOK, scrapeResponse{Result: res})
		return
	}
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, scrape.ErrExhausted), errors.Is(err, scrape.ErrAttemptLimit):
		status = http.StatusBadGateway
	case errors.Is(err, scrape.ErrInvalidURL):
		status = http.StatusBadRequest
	case errors.Is(err, scrape.ErrRateLimited):
		status = http.StatusTooManyRequests
	case scrape.KindOf(err).Fatal():
		status = http.StatusServiceUnavailable
	default:
		status = contextStatus(err, status)
	}
	writeJSON(w, status, scrapeResponse{Result: res, Error: err.Error()})
}

func contextStatus(err error, fallback int) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest
	default:
		return fallback
	}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("Request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", requestID(r.Context())),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("Panic recovered", zap.Any("panic", rec), zap.String("path", r.URL.Path))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// timeoutMiddleware bounds the request context; handlers map the deadline to 504.
func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if subtle.ConstantTimeCompare([]byte(key), []byte(expected)) != 1 {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
