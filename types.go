package goSession

import (
	"context"
	"time"

	"github.com/MrEthical07/goSession/refresh"
)

// Credential is the access/refresh token pair held by [CredentialStore].
//
// Empty strings mean absent. A refresh token without an access token is a valid
// transient state; an access token without a refresh token cannot be recovered
// automatically once it expires. ExpiresAt is informational only: validity is enforced
// by the backend.
type Credential struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// HasAccess reports whether an access token is present.
func (c Credential) HasAccess() bool { return c.AccessToken != "" }

// HasRefresh reports whether a refresh token is present.
func (c Credential) HasRefresh() bool { return c.RefreshToken != "" }

// IsZero reports whether both tokens are absent.
func (c Credential) IsZero() bool { return c.AccessToken == "" && c.RefreshToken == "" }

// Identity is the caller identity returned by the backend identity endpoint.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Refresher exchanges a refresh token for a new credential.
//
// Implementations must return an error wrapping [refresh.ErrRejected] when the backend
// rejects the token, and [refresh.ErrTransient] when the endpoint is unreachable or
// failing. Any other error is treated as a rejection.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (Credential, error)
}

// RefresherFunc adapts a function to [Refresher].
type RefresherFunc func(ctx context.Context, refreshToken string) (Credential, error)

// Refresh calls f.
func (f RefresherFunc) Refresh(ctx context.Context, refreshToken string) (Credential, error) {
	return f(ctx, refreshToken)
}

// Exchanger is the token transport contract implemented by the refresh package.
type Exchanger interface {
	Refresh(ctx context.Context, refreshToken string) (refresh.Tokens, error)
}

// FromExchanger adapts a refresh-package exchanger to [Refresher].
func FromExchanger(ex Exchanger) Refresher {
	return RefresherFunc(func(ctx context.Context, refreshToken string) (Credential, error) {
		tokens, err := ex.Refresh(ctx, refreshToken)
		if err != nil {
			return Credential{}, err
		}
		return credentialFromTokens(tokens), nil
	})
}

func credentialFromTokens(t refresh.Tokens) Credential {
	cred := Credential{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
	}
	if t.ExpiresIn > 0 {
		cred.ExpiresAt = time.Now().Add(t.ExpiresIn)
	}
	return cred
}
