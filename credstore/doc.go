// Package credstore provides durable media for the session credential: an in-memory map,
// a Redis hash, and JSON files on disk.
//
// # Architecture boundaries
//
// A [Backend] persists exactly one [Record] per profile. The in-memory view, concurrency
// semantics and the never-fail contract of the credential store live in goSession; this
// package only moves bytes and reports errors.
//
// # What this package must NOT do
//
//   - Import goSession, refresh or jwt.
//   - Log token values or include them in errors.
package credstore
