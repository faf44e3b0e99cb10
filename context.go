package goSession

import "context"

type withoutAuthContextKey struct{}
type retriedContextKey struct{}

// WithoutAuth marks ctx so requests made with it are sent without a credential and
// bypass the refresh coordinator. Use it for public endpoints.
func WithoutAuth(ctx context.Context) context.Context {
	return context.WithValue(ctx, withoutAuthContextKey{}, true)
}

func withoutAuthFromContext(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	v, _ := ctx.Value(withoutAuthContextKey{}).(bool)
	return v
}

// withRetried marks a replayed request. A replay that fails authorization again is
// returned to the caller unchanged.
func withRetried(ctx context.Context) context.Context {
	return context.WithValue(ctx, retriedContextKey{}, true)
}

// IsRetried reports whether ctx belongs to a request replayed after a refresh. Base
// transports and middlewares can use it to tag replays.
func IsRetried(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	v, _ := ctx.Value(retriedContextKey{}).(bool)
	return v
}
