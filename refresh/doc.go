// Package refresh implements the token transports used to obtain credentials from the
// backend: a JSON-over-HTTP exchanger (login, refresh, logout) and an OAuth2
// refresh-token grant exchanger.
//
// # Failure classes
//
// Every error returned by an exchanger wraps exactly one of [ErrRejected] (the backend
// refused the presented token or password) or [ErrTransient] (network failure, timeout,
// 429 or 5xx). Callers decide session teardown from that class alone.
//
// # Architecture boundaries
//
// This package owns wire formats and failure classification. Single-flight coordination,
// credential storage and replay are handled by goSession.
//
// # What this package must NOT do
//
//   - Import goSession, credstore or jwt.
//   - Use an http.Client whose transport routes through the session coordinator.
//   - Retry; the coordinator bounds retries.
package refresh
