package flows

import "time"

// TokenPair is the flow-local credential shape.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Deps groups flow dependency sets. The root client builds this once and delegates
// operations to the matching flow.
type Deps struct {
	Refresh RefreshDeps
	Login   LoginDeps
	Init    InitDeps
	Logout  LogoutDeps
}
