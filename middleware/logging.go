package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// Logging logs each attempt at debug level, and failed attempts (transport error or
// status >= 500) at warn. Only method, host, path, status, duration and request ID are
// logged.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.RoundTrip(req)

			attrs := []any{
				"method", req.Method,
				"host", req.URL.Host,
				"path", req.URL.Path,
				"duration", time.Since(start),
			}
			if id := req.Header.Get(RequestIDHeader); id != "" {
				attrs = append(attrs, "request_id", id)
			}

			ctx := req.Context()
			switch {
			case err != nil:
				logger.WarnContext(ctx, "http request failed", append(attrs, "error", err)...)
			case resp.StatusCode >= 500:
				logger.WarnContext(ctx, "http request", append(attrs, "status", resp.StatusCode)...)
			default:
				logger.DebugContext(ctx, "http request", append(attrs, "status", resp.StatusCode)...)
			}
			return resp, err
		})
	}
}
