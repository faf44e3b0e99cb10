// Package middleware provides http.RoundTripper middlewares for session clients and a
// bearer-token guard for servers.
//
// # Client middlewares
//
//   - [Chain] composes middlewares around a base transport.
//   - [RequestID] sets X-Request-ID when the caller did not.
//   - [Logging] logs method, path, status and duration of every attempt.
//
// Client middlewares sit below the session transport, so they see every attempt on the
// wire, replays included.
//
// # Guard
//
// [Guard] rejects requests without a valid bearer token with 401 and stores the
// verified subject in the request context. The fake backend in authtest is built on it.
//
// # What this package must NOT do
//
//   - Import goSession.
//   - Log header values; Authorization in particular.
package middleware
