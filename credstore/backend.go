package credstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Load when no record exists for the profile.
var ErrNotFound = errors.New("credstore: record not found")

// DefaultProfile is used when a backend is created with an empty profile name.
const DefaultProfile = "default"

// Record is the persisted form of a credential.
type Record struct {
	AccessToken  string    `json:"access_token,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitzero"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsZero reports whether both tokens are empty.
func (r Record) IsZero() bool {
	return r.AccessToken == "" && r.RefreshToken == ""
}

// Backend persists one credential record.
type Backend interface {
	Load(ctx context.Context) (Record, error)
	Save(ctx context.Context, rec Record) error
	Clear(ctx context.Context) error
}

func profileOrDefault(profile string) string {
	if profile == "" {
		return DefaultProfile
	}
	return profile
}
