// Package goSession provides an authenticated HTTP session coordinator for API clients:
// bearer-token injection, single-flight credential refresh on 401, transparent replay of
// the failed requests, and a clean logout cascade when recovery is impossible.
//
// The package is designed for concurrent client workloads: [Client] and its
// [http.RoundTripper] are safe to call from multiple goroutines after initialization
// through [Builder.Build].
//
// # Architecture boundaries
//
// goSession is the public surface. It exposes [Client], [Builder], [Config],
// [CredentialStore], [NavigationBridge], [RequestInterceptor], [SessionState] and value
// types (Credential, Identity, MetricsSnapshot). Flow orchestration lives under
// internal/flows; credential media live in credstore; refresh transports live in
// refresh.
//
// # Refresh contract
//
// At most one refresh episode is in flight at any instant. Every request that fails with
// an authorization failure while an episode is active joins it instead of starting
// another. A request is replayed at most once; a second authorization failure is returned
// to the caller unchanged. A failed episode clears the credential and invokes the
// navigation bridge exactly once.
//
// # What this package must NOT do
//
//   - Render UI or depend on a router; leaving the authenticated area goes through
//     [NavigationBridge].
//   - Retry a request more than once or refresh more than once per episode.
//   - Log or audit token values.
package goSession
