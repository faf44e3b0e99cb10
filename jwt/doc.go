// Package jwt issues and verifies access tokens for the in-process test backend and lets
// clients read token claims without the signing key.
//
// Clients must treat [Inspect] output as advisory: it does not verify the signature.
package jwt
