package goSession

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/MrEthical07/goSession/credstore"
	"github.com/MrEthical07/goSession/jwt"
)

const persistTimeout = 5 * time.Second

// CredentialStore is the single owner of the session credential.
//
// Reads are served from memory and never touch the backing medium. Writes update memory
// first and then write through; persistence failures are logged, never returned, so a
// caller's view of the store is always the in-memory one.
type CredentialStore struct {
	mu   sync.RWMutex
	cred Credential

	// persistMu serializes write-through so the medium sees writes in memory order.
	persistMu sync.Mutex
	backend   credstore.Backend
	logger    *slog.Logger
}

// NewCredentialStore returns an empty store over backend. A nil backend keeps the
// credential in memory only; a nil logger discards.
func NewCredentialStore(backend credstore.Backend, logger *slog.Logger) *CredentialStore {
	if backend == nil {
		backend = credstore.NewMemory()
	}
	if logger == nil {
		logger = discardLogger()
	}
	return &CredentialStore{backend: backend, logger: logger}
}

// Load replaces the in-memory credential with the one held by the backing medium. A
// missing record leaves the store empty and is not an error.
func (s *CredentialStore) Load(ctx context.Context) error {
	rec, err := s.backend.Load(ctx)
	if errors.Is(err, credstore.ErrNotFound) {
		s.mu.Lock()
		s.cred = Credential{}
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.cred = Credential{
		AccessToken:  rec.AccessToken,
		RefreshToken: rec.RefreshToken,
		ExpiresAt:    rec.ExpiresAt,
	}
	s.mu.Unlock()
	return nil
}

// AccessToken returns the access token and whether one is present.
func (s *CredentialStore) AccessToken() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred.AccessToken, s.cred.AccessToken != ""
}

// RefreshToken returns the refresh token and whether one is present.
func (s *CredentialStore) RefreshToken() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred.RefreshToken, s.cred.RefreshToken != ""
}

// Credential returns a snapshot of both tokens.
func (s *CredentialStore) Credential() Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred
}

// IsAuthenticated reports whether an access token is present. It is a local signal only;
// the backend decides whether the token is valid.
func (s *CredentialStore) IsAuthenticated() bool {
	_, ok := s.AccessToken()
	return ok
}

// SetAccessToken overwrites the access token and keeps the refresh token.
func (s *CredentialStore) SetAccessToken(token string) {
	s.update(func(c *Credential) {
		c.AccessToken = token
		c.ExpiresAt = expiryHint(token, time.Time{})
	})
}

// SetRefreshToken overwrites the refresh token and keeps the access token.
func (s *CredentialStore) SetRefreshToken(token string) {
	s.update(func(c *Credential) {
		c.RefreshToken = token
	})
}

// Set overwrites both tokens. An empty RefreshToken in cred removes the stored one; use
// [CredentialStore.Apply] to keep it.
func (s *CredentialStore) Set(cred Credential) {
	s.update(func(c *Credential) {
		*c = cred
		c.ExpiresAt = expiryHint(cred.AccessToken, cred.ExpiresAt)
	})
}

// Apply stores a refresh result: the access token is replaced, the refresh token only
// when a rotated one is present.
func (s *CredentialStore) Apply(cred Credential) {
	s.update(applyRefresh(cred))
}

// Clear removes both tokens.
func (s *CredentialStore) Clear() {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	s.cred = Credential{}
	s.mu.Unlock()

	s.clearMedium()
}

// applyIfCurrent is Apply guarded by the refresh token the result was obtained with. A
// store whose refresh token changed meanwhile (login, logout, another client write) is
// left alone and false is returned.
func (s *CredentialStore) applyIfCurrent(refreshToken string, cred Credential) bool {
	return s.updateIf(
		func(cur Credential) bool { return cur.RefreshToken == refreshToken },
		applyRefresh(cred),
	)
}

func applyRefresh(cred Credential) func(*Credential) {
	return func(c *Credential) {
		c.AccessToken = cred.AccessToken
		if cred.RefreshToken != "" {
			c.RefreshToken = cred.RefreshToken
		}
		c.ExpiresAt = expiryHint(cred.AccessToken, cred.ExpiresAt)
	}
}

// clearIfCurrent clears the store only while it still holds refreshToken.
func (s *CredentialStore) clearIfCurrent(refreshToken string) bool {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	if s.cred.RefreshToken != refreshToken {
		s.mu.Unlock()
		return false
	}
	s.cred = Credential{}
	s.mu.Unlock()

	s.clearMedium()
	return true
}

func (s *CredentialStore) update(fn func(*Credential)) {
	s.updateIf(nil, fn)
}

// updateIf applies fn when cond accepts the current credential, then writes through.
// The check and the write happen under one lock.
func (s *CredentialStore) updateIf(cond func(Credential) bool, fn func(*Credential)) bool {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	if cond != nil && !cond(s.cred) {
		s.mu.Unlock()
		return false
	}
	fn(&s.cred)
	snap := s.cred
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	rec := credstore.Record{
		AccessToken:  snap.AccessToken,
		RefreshToken: snap.RefreshToken,
		ExpiresAt:    snap.ExpiresAt,
		UpdatedAt:    time.Now(),
	}
	if err := s.backend.Save(ctx, rec); err != nil {
		s.logger.Error("credential persist failed", "error", err)
	}
	return true
}

// clearMedium must be called with persistMu held.
func (s *CredentialStore) clearMedium() {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.backend.Clear(ctx); err != nil {
		s.logger.Error("credential clear failed", "error", err)
	}
}

// expiryHint prefers an explicit expiry, then the token's exp claim.
func expiryHint(token string, explicit time.Time) time.Time {
	if !explicit.IsZero() || token == "" {
		return explicit
	}
	claims, err := jwt.Inspect(token)
	if err != nil {
		return time.Time{}
	}
	return claims.ExpiresAt
}
