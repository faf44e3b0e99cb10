package goSession

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrUnauthorized is the authorization-failure class. Every terminal outcome of the
	// refresh coordinator matches it with errors.Is.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRefreshRejected is returned when the backend rejects the refresh token.
	ErrRefreshRejected = errors.New("refresh token rejected")
	// ErrNoRefreshToken is returned when an authorization failure occurs and no refresh
	// token is stored.
	ErrNoRefreshToken = errors.New("no refresh token available")
	// ErrSessionEnded is returned to requests whose 401 arrives after the session was
	// already torn down.
	ErrSessionEnded = errors.New("session ended")
	// ErrRefreshUnavailable is returned when the refresh endpoint could not be reached
	// or answered with a server error.
	ErrRefreshUnavailable = errors.New("refresh endpoint unavailable")
	// ErrRequestNotReplayable is returned when a request body cannot be rewound for replay.
	ErrRequestNotReplayable = errors.New("request body cannot be replayed")
	// ErrLoginFailed is returned when the backend rejects the login credentials.
	ErrLoginFailed = errors.New("login failed")
	// ErrClientNotReady is returned when a nil or unbuilt client is used.
	ErrClientNotReady = errors.New("client not initialized")
	// ErrInvalidConfig wraps every configuration validation failure.
	ErrInvalidConfig = errors.New("invalid config")
)

// AuthError describes a terminal coordinator outcome delivered to a pending request.
//
// It unwraps to its cause and, for session-ending causes, to [ErrUnauthorized].
type AuthError struct {
	Op        string
	EpisodeID string
	Err       error
}

func (e *AuthError) Error() string {
	var b strings.Builder
	b.WriteString("goSession: ")
	b.WriteString(e.Op)
	if e.EpisodeID != "" {
		b.WriteString(" (episode ")
		b.WriteString(e.EpisodeID)
		b.WriteByte(')')
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *AuthError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUnauthorized}
	}
	// A transient refresh failure keeps the session, so it is not an authorization failure.
	if errors.Is(e.Err, ErrRefreshUnavailable) && !errors.Is(e.Err, ErrSessionEnded) {
		return []error{e.Err}
	}
	return []error{e.Err, ErrUnauthorized}
}

// APIError is produced by the JSON helpers for non-2xx responses.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("goSession: %s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("goSession: %s %s: %d %s: %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// Is reports 401 responses as [ErrUnauthorized].
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}
