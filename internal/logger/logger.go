// Package logger configures the slog loggers used by the servers and CLI.
//
// Two loggers are in play: the application logger created at startup with
// InitLogger, and per-request loggers created by the RequestLogging
// middleware. Request-scoped log attributes can be accumulated with
// ContextWithLogAttrs and are emitted on the final request log line.
package logger

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/lmittmann/tint"
)

// LevelNone disables logging entirely (used in tests).
const LevelNone slog.Level = slog.LevelError + 128

// ParseLogLevel converts a config string to a slog.Level.
// Unrecognized values default to info.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "none":
		return LevelNone
	default:
		return slog.LevelInfo
	}
}

// InitLogger creates the application logger.
//
// dev and test environments get a colorized tint handler, everything else
// gets JSON output suitable for log shipping.
func InitLogger(level slog.Level, environment string) *slog.Logger {
	if level == LevelNone {
		return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: level}))
	}

	switch environment {
	case "dev", "test":
		return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
		}))
	default:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}
}

type contextKey int

const requestLogKey contextKey = iota

// requestLog carries the request-scoped logger and any attributes
// accumulated during request handling.
type requestLog struct {
	logger *slog.Logger

	mu    sync.Mutex
	attrs []slog.Attr
}

// ContextRequestLogger returns the request-scoped logger stored by the
// RequestLogging middleware. Outside a request context it returns
// slog.Default so callers never need a nil check.
func ContextRequestLogger(ctx context.Context) *slog.Logger {
	if rl, ok := ctx.Value(requestLogKey).(*requestLog); ok {
		return rl.logger
	}
	return slog.Default()
}

// ContextWithLogAttrs appends attributes to the request's log record.
// The attributes appear on the completion line logged by RequestLogging.
func ContextWithLogAttrs(ctx context.Context, attrs ...slog.Attr) {
	rl, ok := ctx.Value(requestLogKey).(*requestLog)
	if !ok {
		return
	}
	rl.mu.Lock()
	rl.attrs = append(rl.attrs, attrs...)
	rl.mu.Unlock()
}

// RequestLogging returns a middleware that attaches a request-scoped logger
// to the context and logs one line per completed request.
//
// Must be installed after chi's RequestID middleware so the request id is
// available.
func RequestLogging(appLogger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			reqLogger := appLogger.With(
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			rl := &requestLog{logger: reqLogger}
			ctx := context.WithValue(r.Context(), requestLogKey, rl)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				rl.mu.Lock()
				extra := make([]slog.Attr, len(rl.attrs))
				copy(extra, rl.attrs)
				rl.mu.Unlock()

				attrs := append([]slog.Attr{
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", ww.Status()),
					slog.Int("bytes", ww.BytesWritten()),
					slog.Duration("duration", time.Since(start)),
				}, extra...)

				reqLogger.LogAttrs(r.Context(), slog.LevelInfo, "request completed", attrs...)
			}()

			next.ServeHTTP(ww, r.WithContext(ctx))
		})
	}
}
