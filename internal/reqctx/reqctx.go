// Package reqctx carries request-scoped identifiers through context.Context.
// Values live only as long as the request's context.
package reqctx

import (
	"context"

	"github.com/google/uuid"
)

type (
	requestIDKey struct{}
	userIDKey    struct{}
)

// NewRequestID generates a random UUID v4 request ID.
func NewRequestID() string {
	return uuid.NewString()
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns "" if absent.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// WithUserID records the authenticated user for the rest of the request.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey{}, id)
}

func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey{}).(string)
	return id
}
