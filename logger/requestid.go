package logger

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey string

const requestIDKey = ctxKey("x-request-id")

// WithRequestID returns a context carrying id, generating a uuid when id is empty.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request id stored in ctx, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
