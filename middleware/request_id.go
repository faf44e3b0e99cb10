package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader is the header set by [RequestID].
const RequestIDHeader = "X-Request-ID"

type requestIDContextKey struct{}

// WithRequestID pins the request ID used for requests made with ctx. Replays of a request
// then carry the same ID as the original attempt.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

// RequestIDFromContext returns the ID pinned with [WithRequestID].
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDContextKey{}).(string)
	return id, ok && id != ""
}

// RequestID sets X-Request-ID on requests that lack it: the context-pinned ID if any,
// otherwise a random UUID.
func RequestID() Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if req.Header.Get(RequestIDHeader) != "" {
				return next.RoundTrip(req)
			}
			id, ok := RequestIDFromContext(req.Context())
			if !ok {
				id = uuid.NewString()
			}
			out := req.Clone(req.Context())
			out.Header.Set(RequestIDHeader, id)
			return next.RoundTrip(out)
		})
	}
}
