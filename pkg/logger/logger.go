// Package logger provides the process-wide structured logging setup.
package logger

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	once   sync.Once
	logger zerolog.Logger
)

// Level is a zerolog severity level.
type Level = zerolog.Level

const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	FatalLevel = zerolog.FatalLevel
)

// Config controls output shape and destination.
type Config struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"` // json/console
	Output     string `yaml:"output" json:"output"` // stdout/stderr/file
	FilePath   string `yaml:"file_path,omitempty" json:"file_path,omitempty"`
	TimeFormat string `yaml:"time_format,omitempty" json:"time_format,omitempty"`
}

// DefaultConfig returns the fallback used when no config is loaded.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	}
}

// Init sets up the global logger. Safe to call more than once; only the
// first call takes effect.
func Init(cfg Config) {
	once.Do(func() {
		level := parseLevel(cfg.Level)
		zerolog.SetGlobalLevel(level)

		var output io.Writer
		switch cfg.Output {
		case "stderr":
			output = os.Stderr
		case "file":
			if cfg.FilePath != "" {
				f, err := os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
				if err == nil {
					output = f
				} else {
					output = os.Stdout
				}
			} else {
				output = os.Stdout
			}
		default:
			output = os.Stdout
		}

		if cfg.Format == "console" {
			output = zerolog.ConsoleWriter{
				Out:        output,
				TimeFormat: cfg.TimeFormat,
			}
		}

		logger = zerolog.New(output).With().Timestamp().Logger()
	})
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Get returns the global logger, initializing it with DefaultConfig if
// Init was never called.
func Get() *zerolog.Logger {
	Init(DefaultConfig())
	return &logger
}

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "request_id"
	ctxKeyUserID    ctxKey = "user_id"
)

// WithRequestID attaches a request ID to ctx for later retrieval by
// WithContext.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, requestID)
}

// WithUserID attaches a user ID to ctx for later retrieval by WithContext.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKeyUserID, userID)
}

// WithContext builds a logger enriched with whatever request-scoped fields
// ctx carries.
func WithContext(ctx context.Context) *zerolog.Logger {
	l := Get().With().Logger()

	if reqID, ok := ctx.Value(ctxKeyRequestID).(string); ok && reqID != "" {
		l = l.With().Str("request_id", reqID).Logger()
	}
	if userID, ok := ctx.Value(ctxKeyUserID).(string); ok && userID != "" {
		l = l.With().Str("user_id", userID).Logger()
	}

	return &l
}

// Debug logs at debug level.
func Debug() *zerolog.Event {
	return Get().Debug()
}

// Info logs at info level.
func Info() *zerolog.Event {
	return Get().Info()
}

// Warn logs at warn level.
func Warn() *zerolog.Event {
	return Get().Warn()
}

// Error logs at error level.
func Error() *zerolog.Event {
	return Get().Error()
}

// Fatal logs at fatal level and terminates the process.
func Fatal() *zerolog.Event {
	return Get().Fatal()
}

// WithError starts an error-level event carrying err.
func WithError(err error) *zerolog.Event {
	return Get().Error().Err(err)
}

// WithField returns a logger with one extra structured field attached.
func WithField(key string, value interface{}) *zerolog.Logger {
	l := Get().With().Interface(key, value).Logger()
	return &l
}

// WithFields returns a logger with several extra structured fields attached.
func WithFields(fields map[string]interface{}) *zerolog.Logger {
	ctx := Get().With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	l := ctx.Logger()
	return &l
}

// SolveLogger narrates one Solver Driver run: shard boundaries, incumbent
// arrivals and the terminal outcome.
type SolveLogger struct {
	base *zerolog.Logger
}

// NewSolveLogger scopes a logger to the "solver" component.
func NewSolveLogger() *SolveLogger {
	l := Get().With().Str("component", "solver").Logger()
	return &SolveLogger{base: &l}
}

// StartSolve records the beginning of a solve over [startISO, endISO].
func (l *SolveLogger) StartSolve(requestID, backend, startISO, endISO string, shardCount int) {
	l.base.Info().
		Str("request_id", requestID).
		Str("backend", backend).
		Str("start", startISO).
		Str("end", endISO).
		Int("shards", shardCount).
		Msg("solve started")
}

// Incumbent records one improving solution reaching the observer.
func (l *SolveLogger) Incumbent(requestID string, solutionNum int, objective float64, timeMs int64) {
	l.base.Debug().
		Str("request_id", requestID).
		Int("solution_num", solutionNum).
		Float64("objective", objective).
		Int64("time_ms", timeMs).
		Msg("incumbent found")
}

// InfeasiblePin records a manual pin that conflicts with a hard constraint.
func (l *SolveLogger) InfeasiblePin(requestID, rowID, dateISO, clinicianID string) {
	l.base.Warn().
		Str("request_id", requestID).
		Str("row_id", rowID).
		Str("date", dateISO).
		Str("clinician_id", clinicianID).
		Msg("infeasible manual pin")
}

// SolveComplete records the terminal status of a solve.
func (l *SolveLogger) SolveComplete(requestID string, status string, duration time.Duration, objective float64, assignmentCount int) {
	l.base.Info().
		Str("request_id", requestID).
		Str("status", status).
		Dur("duration", duration).
		Float64("objective", objective).
		Int("assignments", assignmentCount).
		Msg("solve complete")
}
