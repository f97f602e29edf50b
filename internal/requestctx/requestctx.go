// Package requestctx carries per-request values set by the HTTP middleware.
package requestctx

import (
	"context"
	"time"
)

type contextKey string

const (
	requestIDKey   contextKey = "request_id"
	requestTimeKey contextKey = "request_time"
)

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the id assigned by the middleware, or "".
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

func WithRequestTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey, t)
}

// Since returns the time elapsed since the request was received, or zero
// when no start time was recorded.
func Since(ctx context.Context) time.Duration {
	t, ok := ctx.Value(requestTimeKey).(time.Time)
	if !ok {
		return 0
	}
	return time.Since(t)
}
