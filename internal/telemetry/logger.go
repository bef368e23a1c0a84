package telemetry

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
)

type contextKey string

const correlationIDKey contextKey = "correlation_id"

// NewLogger creates a structured JSON logger tagged with the service name.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With(slog.String("service", "tripweaver"))
}

// WithCorrelationID stores a correlation ID on the context, minting a
// random one when the caller did not supply any.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		b := make([]byte, 16)
		_, _ = rand.Read(b)
		id = hex.EncodeToString(b)
	}
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationID retrieves the correlation ID from context, or "".
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}

// RequestLogger scopes a logger to one turn: session ID always, the
// correlation ID when the request carried or was assigned one.
func RequestLogger(logger *slog.Logger, ctx context.Context, sessionID string) *slog.Logger {
	scoped := logger.With(slog.String("session_id", sessionID))
	if id := CorrelationID(ctx); id != "" {
		scoped = scoped.With(slog.String("correlation_id", id))
	}
	return scoped
}
