// Package flows contains pure-function orchestrators for the session operations.
//
// Each flow function (RunRefresh, RunLogin, RunInit, RunLogout) accepts a typed
// dependency struct and returns a result without side effects beyond those
// dependencies. The root package turns results into credential writes, metrics, audit
// events and navigation.
//
// # Architecture boundaries
//
// Flows decide; they do not own. Single-flight, the credential store and the
// navigation bridge stay with goSession.Client.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goSession (to avoid import cycles).
//   - Perform I/O directly; all I/O is mediated through dependency functions.
package flows
