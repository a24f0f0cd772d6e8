// Package server wires config, logging, the snapshot store and the HTTP
// handler into a runnable process. cmd/server and the "serve" subcommand of
// cmd/cli both call Run so the two entry points can never drift apart.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/radsched/radsched/internal/config"
	"github.com/radsched/radsched/internal/database"
	"github.com/radsched/radsched/internal/handler"
	"github.com/radsched/radsched/internal/metrics"
	"github.com/radsched/radsched/internal/repository"
	"github.com/radsched/radsched/pkg/logger"
)

// Run starts the HTTP server and blocks until SIGINT/SIGTERM triggers a
// graceful shutdown.
func Run(cfg *config.Config, info handler.BuildInfo) error {
	logger.Info().
		Str("version", info.Version).
		Str("build_time", info.BuildTime).
		Str("git_commit", info.GitCommit).
		Str("env", cfg.App.Env).
		Msg("radsched starting")

	snapshots := NewSnapshotRepository(cfg)

	h := handler.New(snapshots, cfg.Scheduler)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handler.Health)
	mux.HandleFunc("/version", handler.Version(info))
	mux.HandleFunc("/solve", h.Solve)
	mux.HandleFunc("/solve/week", h.SolveWeek)
	mux.HandleFunc("/state", h.State)
	mux.Handle("/metrics", metrics.Handler())

	rl := newRateLimiter(float64(cfg.Server.RateLimit))
	wrapped := requestIDMiddleware(rateLimitMiddleware(rl, corsMiddleware(cfg.Server.CORS, loggingMiddleware(mux))))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      wrapped,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Int("port", cfg.Server.Port).
			Str("url", fmt.Sprintf("http://localhost:%d", cfg.Server.Port)).
			Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed to start: %w", err)
	case <-quit:
	}

	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info().Msg("shut down cleanly")
	return nil
}

// NewSnapshotRepository connects to Postgres when a DSN is configured,
// falling back to an in-process holder otherwise (the snapshot store is
// optional infrastructure, not a required dependency of the solver).
func NewSnapshotRepository(cfg *config.Config) repository.SnapshotRepositoryInterface {
	if !cfg.Database.Enabled() {
		logger.Info().Msg("no database configured, using in-memory snapshot store")
		return repository.NewInMemorySnapshotRepository()
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to snapshot database, falling back to in-memory store")
		return repository.NewInMemorySnapshotRepository()
	}
	return repository.NewSnapshotRepository(db)
}

type ctxKey string

const ctxKeyRequestID ctxKey = "request_id"

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID, _ := r.Context().Value(ctxKeyRequestID).(string)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start)

		logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rw.statusCode).
			Dur("duration", duration).
			Msg("request handled")

		metrics.RecordRequestMetrics(r.Method, r.URL.Path, rw.statusCode, duration)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// rateLimiter is a token-bucket limiter shared across every request.
type rateLimiter struct {
	tokens     float64
	maxTokens  float64
	refillRate float64
	lastRefill time.Time
	mu         sync.Mutex
}

func newRateLimiter(requestsPerSecond float64) *rateLimiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 100
	}
	return &rateLimiter{
		tokens:     requestsPerSecond,
		maxTokens:  requestsPerSecond * 2,
		refillRate: requestsPerSecond,
		lastRefill: time.Now(),
	}
}

func (rl *rateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(rl.lastRefill).Seconds()
	rl.tokens += elapsed * rl.refillRate
	if rl.tokens > rl.maxTokens {
		rl.tokens = rl.maxTokens
	}
	rl.lastRefill = now

	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}
	return false
}

func rateLimitMiddleware(rl *rateLimiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow() {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"error":true,"code":"RATE_LIMITED","message":"too many requests"}`)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(cfg config.CORSConfig, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cfg.Enabled {
			origin := "*"
			if len(cfg.Origins) > 0 {
				origin = cfg.Origins[0]
			}
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-User-ID, X-Request-ID")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
