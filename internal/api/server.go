package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bolagsradar/listings-scraper/internal/config"
	"github.com/bolagsradar/listings-scraper/internal/metrics"
	"github.com/bolagsradar/listings-scraper/internal/scraper"
	"github.com/bolagsradar/listings-scraper/internal/store"
)

const apiVersion = "1.0.0"

// ScrapeRunner runs one scrape of the configured target page.
type ScrapeRunner interface {
	Scrape(ctx context.Context) (scraper.Result, error)
}

// Server wires HTTP handlers to the scrape service and the run store.
type Server struct {
	router  chi.Router
	scraper ScrapeRunner
	ready   *atomic.Bool
	cfg     config.Config
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes. The ready flag
// gates /readyz; pass nil to report ready immediately.
func NewServer(
	cfg config.Config,
	scrape ScrapeRunner,
	runs store.RunRepository,
	ready *atomic.Bool,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		scraper: scrape,
		ready:   ready,
		cfg:     cfg,
		logger:  logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(cfg.ScrapeBudget() + 5*time.Second))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/", s.root)
	r.Get("/health", s.health)
	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Get("/scrape", s.scrape)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	runsHandler := NewRunHandler(runs, logger)
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", runsHandler.ListRuns)
		r.Route("/{run_id}", func(r chi.Router) {
			r.Get("/", runsHandler.GetRun)
			r.Get("/steps", runsHandler.ListSteps)
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Swedish Business Listings Scraper API",
		"endpoints": map[string]string{
			"/scrape": "GET - Scrape business listings from bolagsplatsen.se",
		},
		"version": apiVersion,
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "scraper-api"})
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.ready != nil && !s.ready.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// scrape runs the pipeline and returns the bare listings array. Failures all
// map to 500 with an {error, message} body; the error label distinguishes
// timeouts, upstream fetch problems and everything else.
func (s *Server) scrape(w http.ResponseWriter, r *http.Request) {
	result, err := s.scraper.Scrape(r.Context())
	if err != nil {
		s.logger.Error("scrape failed", zap.Error(err), zap.String("request_id", requestIDFrom(r.Context())))
		writeScrapeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result.Listings)
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeScrapeError(w http.ResponseWriter, err error) {
	switch {
	case scraper.IsTimeout(err):
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "Request timeout",
			Message: "The target website took too long to respond",
		})
	case scraper.IsFetchFailure(err):
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "Failed to fetch data from target website",
			Message: fmt.Sprintf("HTTP error: %v", err),
		})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "Internal server error",
			Message: fmt.Sprintf("An unexpected error occurred: %v", err),
		})
	}
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
				zap.String("request_id", requestIDFrom(r.Context())),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rec),
						zap.String("path", r.URL.Path),
					)
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
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

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
