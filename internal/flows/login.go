package flows

import (
	"context"
	"errors"
	"strings"
)

// LoginFailureKind classifies login failures.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureInvalidInput
	LoginFailureRejected
	LoginFailureTransient
)

// LoginResult is the flow-local login response shape.
type LoginResult struct {
	Failure LoginFailureKind
	Err     error
	Tokens  TokenPair
}

// LoginDeps captures login flow dependencies.
type LoginDeps struct {
	Exchange    func(ctx context.Context, username, password string) (TokenPair, error)
	IsTransient func(error) bool
}

// RunLogin exchanges a username and password for a credential. It does not store the
// result.
func RunLogin(ctx context.Context, username, password string, deps LoginDeps) LoginResult {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return LoginResult{
			Failure: LoginFailureInvalidInput,
			Err:     errors.New("username and password are required"),
		}
	}
	if deps.Exchange == nil {
		return LoginResult{
			Failure: LoginFailureInvalidInput,
			Err:     errors.New("login endpoint not configured"),
		}
	}

	tokens, err := deps.Exchange(ctx, username, password)
	if err != nil {
		kind := LoginFailureRejected
		if deps.IsTransient != nil && deps.IsTransient(err) {
			kind = LoginFailureTransient
		}
		return LoginResult{Failure: kind, Err: err}
	}
	if tokens.AccessToken == "" {
		return LoginResult{
			Failure: LoginFailureRejected,
			Err:     errors.New("login returned no access token"),
		}
	}
	return LoginResult{Failure: LoginFailureNone, Tokens: tokens}
}
