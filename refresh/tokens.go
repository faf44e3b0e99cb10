package refresh

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrRejected marks a definitive refusal by the backend.
	ErrRejected = errors.New("token rejected")
	// ErrTransient marks a failure that says nothing about the token's validity.
	ErrTransient = errors.New("token endpoint unavailable")
)

// Tokens is the credential material returned by a token endpoint.
//
// RefreshToken is empty when the endpoint does not rotate it. ExpiresIn is zero when the
// endpoint does not report a lifetime.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// StatusError carries the HTTP status of a failed token call.
type StatusError struct {
	StatusCode int
	Body       string
	class      error
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.class, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.class, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error { return e.class }

// Classify maps an HTTP status from a token endpoint to its failure class.
func Classify(status int) error {
	switch {
	case status == http.StatusTooManyRequests, status >= 500:
		return ErrTransient
	default:
		return ErrRejected
	}
}

// IsRejected reports whether err is a definitive refusal.
func IsRejected(err error) bool { return errors.Is(err, ErrRejected) }

// IsTransient reports whether err is a transport-level failure.
func IsTransient(err error) bool { return errors.Is(err, ErrTransient) }

type tokenResponse struct {
	AccessToken       string `json:"accessToken"`
	RefreshToken      string `json:"refreshToken"`
	ExpiresIn         int64  `json:"expiresIn"`
	AccessTokenSnake  string `json:"access_token"`
	RefreshTokenSnake string `json:"refresh_token"`
	ExpiresInSnake    int64  `json:"expires_in"`
}

func (r tokenResponse) tokens() (Tokens, error) {
	t := Tokens{
		AccessToken:  firstNonEmpty(r.AccessToken, r.AccessTokenSnake),
		RefreshToken: firstNonEmpty(r.RefreshToken, r.RefreshTokenSnake),
	}
	secs := r.ExpiresIn
	if secs == 0 {
		secs = r.ExpiresInSnake
	}
	if secs > 0 {
		t.ExpiresIn = time.Duration(secs) * time.Second
	}
	if t.AccessToken == "" {
		return Tokens{}, fmt.Errorf("%w: response carries no access token", ErrRejected)
	}
	return t, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
