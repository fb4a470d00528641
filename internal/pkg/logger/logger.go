// Package logger provides the process-wide structured logger, with
// request_id and content_id/report_id fields attached via Logger.With().
package logger

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type contextKey string

const RequestIDKey contextKey = "request_id"

// New builds the process-wide zerolog.Logger. format is "json" or
// "console"; level is one of debug|info|warn|error.
func New(level, format string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}

	var writer = os.Stderr
	var logger zerolog.Logger
	if format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: writer, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger()
	} else {
		logger = zerolog.New(writer).With().Timestamp().Logger()
	}
	return logger.Level(parsed)
}

// WithRequestID returns ctx carrying id, retrievable via FromContext.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// FromContext returns the request ID stashed in ctx, or "".
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// RequestEvent logs a single structured line for a completed HTTP
// request, leveled by status code.
func RequestEvent(logger zerolog.Logger, reqID, method, path string, status int, duration time.Duration, errMsg string) {
	var event *zerolog.Event
	switch {
	case status >= 500:
		event = logger.Error()
	case status >= 400:
		event = logger.Warn()
	default:
		event = logger.Info()
	}

	event = event.
		Str("request_id", reqID).
		Str("method", method).
		Str("path", path).
		Int("status", status).
		Dur("duration", duration)
	if errMsg != "" {
		event = event.Str("error", errMsg)
	}
	event.Msg("http_request")
}
