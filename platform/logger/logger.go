// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// IdentityKey is the context key for the chat identity being processed
	IdentityKey contextKey = "identity"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	return NewWithWriter(env, os.Stdout)
}

// NewWithWriter creates a logger that writes to w. Tests use it with io.Discard.
func NewWithWriter(env string, w io.Writer) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") || strings.EqualFold(env, "test") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return NewWithWriter("production", io.Discard)
}

// WithContext returns a logger with context values extracted.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = newLogger.WithRequestID(requestID)
	}

	if identity, ok := ctx.Value(IdentityKey).(string); ok && identity != "" {
		newLogger = newLogger.WithIdentity(identity)
	}

	return newLogger
}

// WithRequestID returns a logger with request ID
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("request_id", requestID)),
	}
}

// WithIdentity returns a logger scoped to one chat identity
func (l *Logger) WithIdentity(identity string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("identity", identity)),
	}
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// BatchFlushed logs the outcome of a debounce flush.
func (l *Logger) BatchFlushed(key string, total, meaningful int, waited time.Duration) {
	l.Info("batch_flushed",
		slog.String("key", key),
		slog.Int("units", total),
		slog.Int("meaningful", meaningful),
		slog.Duration("waited", waited),
	)
}

// ClaimTransition logs a claim stage change
func (l *Logger) ClaimTransition(claimID, identity string, productID int64, from, to string, source string) {
	l.Info("claim_transition",
		slog.String("claim_id", claimID),
		slog.String("identity", identity),
		slog.Int64("product_id", productID),
		slog.String("from", from),
		slog.String("to", to),
		slog.String("source", source),
	)
}

// RateLimitExceeded logs rate limit events
func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}
