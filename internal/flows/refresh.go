package flows

import (
	"context"
	"errors"
	"time"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	// RefreshFailureNoToken means no refresh token was stored.
	RefreshFailureNoToken
	// RefreshFailureRejected means the backend refused the refresh token.
	RefreshFailureRejected
	// RefreshFailureTransient means the refresh endpoint could not answer.
	RefreshFailureTransient
	// RefreshFailureSessionEnded means the session was torn down after the failing
	// request was sent.
	RefreshFailureSessionEnded
)

// RefreshResult carries either the credential to replay with or failure metadata.
type RefreshResult struct {
	Failure RefreshFailureKind
	Err     error
	Tokens  TokenPair
	// Stale is set when the credential was already rotated by an earlier episode and no
	// refresh call was made.
	Stale bool
	// Exchanged is set when the refresh endpoint was called.
	Exchanged bool
	Latency   time.Duration
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	CurrentTokens func() TokenPair
	Exchange      func(ctx context.Context, refreshToken string) (TokenPair, error)
	IsTransient   func(error) bool
	Now           func() time.Time
}

// RunRefresh decides the outcome of one refresh episode.
//
// sentToken is the access token the failing request carried. If the stored access token
// has changed since, that token is returned without calling the endpoint. If the store
// has been emptied since, the session already ended.
func RunRefresh(ctx context.Context, sentToken string, deps RefreshDeps) RefreshResult {
	current := deps.CurrentTokens()

	if current.AccessToken != "" && current.AccessToken != sentToken {
		return RefreshResult{
			Failure: RefreshFailureNone,
			Tokens:  current,
			Stale:   true,
		}
	}
	if sentToken != "" && current.AccessToken == "" && current.RefreshToken == "" {
		return RefreshResult{
			Failure: RefreshFailureSessionEnded,
			Err:     errors.New("credential cleared before refresh"),
		}
	}
	if current.RefreshToken == "" {
		return RefreshResult{
			Failure: RefreshFailureNoToken,
			Err:     errors.New("no refresh token stored"),
		}
	}

	now := time.Now
	if deps.Now != nil {
		now = deps.Now
	}
	start := now()
	tokens, err := deps.Exchange(ctx, current.RefreshToken)
	latency := now().Sub(start)
	if err != nil {
		kind := RefreshFailureRejected
		if deps.IsTransient != nil && deps.IsTransient(err) {
			kind = RefreshFailureTransient
		}
		return RefreshResult{
			Failure:   kind,
			Err:       err,
			Exchanged: true,
			Latency:   latency,
		}
	}
	if tokens.AccessToken == "" {
		return RefreshResult{
			Failure:   RefreshFailureRejected,
			Err:       errors.New("refresh returned no access token"),
			Exchanged: true,
			Latency:   latency,
		}
	}

	return RefreshResult{
		Failure:   RefreshFailureNone,
		Tokens:    tokens,
		Exchanged: true,
		Latency:   latency,
	}
}
