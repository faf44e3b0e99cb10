package goSession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/refresh"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// CoordinatorState is the refresh coordinator's state.
type CoordinatorState int

const (
	StateIdle CoordinatorState = iota
	StateRefreshing
)

func (s CoordinatorState) String() string {
	switch s {
	case StateRefreshing:
		return "refreshing"
	default:
		return "idle"
	}
}

// All episodes share one key: there is only ever one credential to refresh.
const refreshKey = "refresh"

type episode struct {
	id      string
	started time.Time
}

type refreshOutcome struct {
	cred      Credential
	episodeID string
}

// refreshCoordinator guarantees at most one refresh episode at a time. Every request that
// fails authorization while an episode is in flight waits for that episode's outcome.
type refreshCoordinator struct {
	group  singleflight.Group
	active atomic.Pointer[episode]

	cfg       RefreshConfig
	store     *CredentialStore
	refresher Refresher
	nav       *NavigationBridge
	logger    *slog.Logger
	metrics   *Metrics

	// Called inside the episode, before navigation.
	onRefreshed func(ctx context.Context, episodeID string)
	onFailed    func(ctx context.Context, episodeID string, cause error, teardown bool)
}

func (c *refreshCoordinator) State() CoordinatorState {
	if c.active.Load() != nil {
		return StateRefreshing
	}
	return StateIdle
}

// resolve returns the credential a request that failed with sentToken should be replayed
// with. The caller stops waiting when ctx ends; the episode itself runs on a detached
// context bounded by the refresh timeout.
func (c *refreshCoordinator) resolve(ctx context.Context, sentToken string) (Credential, error) {
	led := false
	ch := c.group.DoChan(refreshKey, func() (any, error) {
		led = true
		return c.run(ctx, sentToken)
	})

	select {
	case res := <-ch:
		if !led {
			c.metrics.Inc(MetricRefreshJoined)
		}
		if res.Err != nil {
			return Credential{}, res.Err
		}
		return res.Val.(refreshOutcome).cred, nil
	case <-ctx.Done():
		return Credential{}, ctx.Err()
	}
}

func (c *refreshCoordinator) run(ctx context.Context, sentToken string) (refreshOutcome, error) {
	ep := &episode{id: uuid.NewString(), started: time.Now()}
	defer c.active.CompareAndSwap(ep, nil)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.Timeout)
	defer cancel()

	log := c.logger.With("episode_id", ep.id)

	// The refresh token the episode works from. Results are only written back while the
	// store still holds it.
	var held string
	res := flows.RunRefresh(ctx, sentToken, flows.RefreshDeps{
		CurrentTokens: func() flows.TokenPair {
			cred := c.store.Credential()
			held = cred.RefreshToken
			return flows.TokenPair{AccessToken: cred.AccessToken, RefreshToken: cred.RefreshToken, ExpiresAt: cred.ExpiresAt}
		},
		Exchange: func(ctx context.Context, refreshToken string) (flows.TokenPair, error) {
			// Published only once there is something to exchange.
			c.active.Store(ep)
			log.Debug("refresh episode started")
			c.metrics.Inc(MetricRefreshStarted)
			cred, err := c.refresher.Refresh(ctx, refreshToken)
			if err != nil {
				return flows.TokenPair{}, err
			}
			return flows.TokenPair{AccessToken: cred.AccessToken, RefreshToken: cred.RefreshToken, ExpiresAt: cred.ExpiresAt}, nil
		},
		IsTransient: isTransientRefreshError,
	})
	if res.Exchanged {
		c.metrics.Observe(MetricRefreshLatency, res.Latency)
	}

	switch res.Failure {
	case flows.RefreshFailureNone:
		cred := Credential{AccessToken: res.Tokens.AccessToken, RefreshToken: res.Tokens.RefreshToken, ExpiresAt: res.Tokens.ExpiresAt}
		if res.Stale {
			c.metrics.Inc(MetricRefreshSkippedStale)
			log.Debug("refresh skipped, credential already rotated")
			return refreshOutcome{cred: cred, episodeID: ep.id}, nil
		}
		if !c.store.applyIfCurrent(held, cred) {
			return c.superseded(log, ep.id)
		}
		c.metrics.Inc(MetricRefreshSuccess)
		if c.onRefreshed != nil {
			c.onRefreshed(ctx, ep.id)
		}
		log.Debug("refresh episode settled", "outcome", "refreshed", "duration", time.Since(ep.started))
		return refreshOutcome{cred: cred, episodeID: ep.id}, nil

	case flows.RefreshFailureSessionEnded:
		log.Debug("refresh skipped, session already ended")
		return refreshOutcome{}, &AuthError{Op: "refresh", EpisodeID: ep.id, Err: ErrSessionEnded}

	case flows.RefreshFailureTransient:
		c.metrics.Inc(MetricRefreshFailure)
		if !c.cfg.TeardownOnTransportError {
			log.Warn("refresh endpoint unavailable, keeping session", "error", res.Err)
			if c.onFailed != nil {
				c.onFailed(ctx, ep.id, res.Err, false)
			}
			return refreshOutcome{}, &AuthError{Op: "refresh", EpisodeID: ep.id, Err: fmt.Errorf("%w: %w", ErrRefreshUnavailable, res.Err)}
		}
		cause := fmt.Errorf("%w: %w", ErrRefreshUnavailable, ErrSessionEnded)
		if !c.teardown(ctx, log, ep.id, held, cause) {
			return c.superseded(log, ep.id)
		}
		return refreshOutcome{}, &AuthError{Op: "refresh", EpisodeID: ep.id, Err: fmt.Errorf("%w: %w", cause, res.Err)}

	case flows.RefreshFailureNoToken:
		if !c.teardown(ctx, log, ep.id, held, ErrNoRefreshToken) {
			return c.superseded(log, ep.id)
		}
		return refreshOutcome{}, &AuthError{Op: "refresh", EpisodeID: ep.id, Err: ErrNoRefreshToken}

	default:
		c.metrics.Inc(MetricRefreshFailure)
		err := fmt.Errorf("%w: %w", ErrRefreshRejected, res.Err)
		if !c.teardown(ctx, log, ep.id, held, err) {
			return c.superseded(log, ep.id)
		}
		return refreshOutcome{}, &AuthError{Op: "refresh", EpisodeID: ep.id, Err: err}
	}
}

// teardown clears the credential and navigates, once per failed episode. It does nothing
// and returns false when the credential was replaced while the episode ran.
func (c *refreshCoordinator) teardown(ctx context.Context, log *slog.Logger, episodeID, held string, cause error) bool {
	if !c.store.clearIfCurrent(held) {
		return false
	}
	c.metrics.Inc(MetricSessionTeardown)
	log.Warn("session torn down", "cause", cause)
	if c.onFailed != nil {
		c.onFailed(ctx, episodeID, cause, true)
	}
	c.nav.Invoke()
	return true
}

// superseded settles an episode whose credential was replaced by a login or logout
// while it ran. Its own result is dropped; waiters replay with whatever is stored now,
// or learn that the session ended.
func (c *refreshCoordinator) superseded(log *slog.Logger, episodeID string) (refreshOutcome, error) {
	cur := c.store.Credential()
	if cur.AccessToken == "" {
		log.Debug("refresh result dropped, session ended during episode")
		return refreshOutcome{}, &AuthError{Op: "refresh", EpisodeID: episodeID, Err: ErrSessionEnded}
	}
	c.metrics.Inc(MetricRefreshSkippedStale)
	log.Debug("refresh result dropped, credential replaced during episode")
	return refreshOutcome{cred: cur, episodeID: episodeID}, nil
}

func isTransientRefreshError(err error) bool {
	if refresh.IsTransient(err) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
