// Package authtest runs an in-process backend that speaks the session wire format:
// login, rotating single-use refresh tokens, identity, logout and guarded resources.
//
// Tests drive session edge cases through its controls: [Server.ExpireAccessTokens],
// [Server.RevokeRefreshTokens], [Server.HoldRefresh], [Server.FailRefresh], and observe
// them through [Server.RefreshCalls] and [Server.Seen].
//
// Access tokens are HS256 JWTs issued by jwt.Signer. Refresh tokens are opaque and
// valid exactly once; presenting a used token answers 401, as a rotating backend does.
package authtest
