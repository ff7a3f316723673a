// Package correlation carries a per-request identifier through context so a
// failure can be traced across every log line and downstream call of one
// logical request.
package correlation

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type contextKey string

const idKey contextKey = "correlation_id"

// NewID generates a fresh correlation id.
func NewID() string {
	return uuid.NewString()
}

// WithID returns a context carrying the given correlation id.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, idKey, id)
}

// FromContext retrieves the correlation id from context, if present.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(idKey).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// Ensure returns a context that carries a correlation id, generating one if
// the incoming context has none, along with the id in effect.
func Ensure(ctx context.Context) (context.Context, string) {
	if id, ok := FromContext(ctx); ok {
		return ctx, id
	}
	id := NewID()
	return WithID(ctx, id), id
}

// Field returns a zap field for the context's correlation id. Logs an empty
// string when the context carries none, which keeps log shapes uniform.
func Field(ctx context.Context) zap.Field {
	id, _ := FromContext(ctx)
	return zap.String("correlation_id", id)
}
