package goSession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/refresh"
)

// Client is an authenticated session over one backend.
//
// Client instances are created by [Builder.Build] and are safe for concurrent use. Every
// request sent through [Client.HTTPClient] or the JSON helpers carries the session
// credential and is refreshed and replayed once on authorization failure.
type Client struct {
	config      Config
	store       *CredentialStore
	nav         *NavigationBridge
	interceptor *RequestInterceptor
	coord       *refreshCoordinator
	transport   *Transport
	httpClient  *http.Client
	exchanger   *refresh.HTTP
	state       *SessionState
	audit       *auditDispatcher
	metrics     *Metrics
	logger      *slog.Logger

	initMu   sync.Mutex
	initDone bool
	initErr  error
}

// Close stops the audit dispatcher after draining queued events. Close does not touch
// the stored credential.
func (c *Client) Close() {
	if c == nil {
		return
	}
	if c.audit != nil {
		c.audit.Close()
	}
	if t, ok := c.transport.base.(interface{ CloseIdleConnections() }); ok {
		t.CloseIdleConnections()
	}
}

// AuditDropped returns the number of audit events dropped because the buffer was full.
func (c *Client) AuditDropped() uint64 {
	if c == nil || c.audit == nil {
		return 0
	}
	return c.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the client counters.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	if c == nil || c.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return c.metrics.Snapshot()
}

// Credentials returns the credential store.
func (c *Client) Credentials() *CredentialStore { return c.store }

// Navigation returns the bridge invoked when the session ends.
func (c *Client) Navigation() *NavigationBridge { return c.nav }

// State returns the session state consumed by UIs.
func (c *Client) State() *SessionState { return c.state }

// CoordinatorState reports whether a refresh episode is in flight.
func (c *Client) CoordinatorState() CoordinatorState { return c.coord.State() }

// HTTPClient returns the coordinated client. Its Transport is [Client.Transport].
func (c *Client) HTTPClient() *http.Client { return c.httpClient }

// Transport returns the coordinated round tripper, for callers that bring their own
// http.Client.
func (c *Client) Transport() *Transport { return c.transport }

// Load re-reads the credential from the backing medium, replacing the in-memory one.
func (c *Client) Load(ctx context.Context) error {
	if c == nil {
		return ErrClientNotReady
	}
	return c.store.Load(ctx)
}

// Init confirms the stored credential against the identity endpoint and settles the
// session state. Once it settles, later calls return the first result.
//
// With no stored access token the state becomes unauthenticated without a network
// call. A refused confirmation clears the credential. When ctx ends or the refresh
// endpoint is unreachable, the credential is kept, the state stays loading, and Init
// may be called again.
func (c *Client) Init(ctx context.Context) error {
	if c == nil {
		return ErrClientNotReady
	}

	c.initMu.Lock()
	defer c.initMu.Unlock()
	if c.initDone {
		return c.initErr
	}
	err := c.runInit(ctx)
	if retryableInit(err) {
		return err
	}
	c.initDone = true
	c.initErr = err
	return err
}

// retryableInit reports failures that say nothing about the credential itself. A
// session torn down along the way is settled, whatever else went wrong.
func retryableInit(err error) bool {
	if errors.Is(err, ErrSessionEnded) {
		return false
	}
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, ErrRefreshUnavailable)
}

func (c *Client) runInit(ctx context.Context) error {
	var id Identity
	res := flows.RunInit(ctx, flows.InitDeps{
		HasAccessToken: c.store.IsAuthenticated,
		FetchIdentity: func(ctx context.Context) error {
			return c.GetJSON(ctx, c.config.Endpoints.Identity, &id)
		},
	})

	switch {
	case res.Outcome == flows.InitNoCredential:
		c.state.setUnauthenticated()
		c.emitAudit(ctx, auditEventSessionInit, "", false, nil, map[string]string{"outcome": "no_credential"})
		return nil

	case res.Outcome == flows.InitConfirmed:
		c.state.setAuthenticated(&id)
		c.emitAudit(ctx, auditEventSessionInit, "", true, nil, nil)
		c.logger.Debug("session confirmed", "subject", id.ID)
		return nil

	case retryableInit(res.Err):
		c.emitAudit(ctx, auditEventSessionInit, "", false, res.Err, map[string]string{"outcome": "retryable"})
		c.logger.Warn("stored session not confirmed yet, keeping credential", "error", res.Err)
		return res.Err

	default:
		c.store.Clear()
		c.state.setUnauthenticated()
		c.emitAudit(ctx, auditEventSessionInit, "", false, res.Err, nil)
		c.logger.Warn("stored session could not be confirmed", "error", res.Err)
		return res.Err
	}
}

// Login exchanges username and password for a credential, stores it, and moves the
// session to authenticated.
//
// A refusal by the backend is returned wrapping [ErrLoginFailed]. Transport failures are
// returned as is and leave the session unchanged.
func (c *Client) Login(ctx context.Context, username, password string) (Identity, error) {
	if c == nil {
		return Identity{}, ErrClientNotReady
	}

	res := flows.RunLogin(ctx, username, password, flows.LoginDeps{
		Exchange: func(ctx context.Context, u, p string) (flows.TokenPair, error) {
			tokens, err := c.exchanger.Login(ctx, u, p)
			if err != nil {
				return flows.TokenPair{}, err
			}
			cred := credentialFromTokens(tokens)
			return flows.TokenPair{AccessToken: cred.AccessToken, RefreshToken: cred.RefreshToken, ExpiresAt: cred.ExpiresAt}, nil
		},
		IsTransient: refresh.IsTransient,
	})

	if res.Failure != flows.LoginFailureNone {
		c.metricInc(MetricLoginFailure)
		c.emitAudit(ctx, auditEventLogin, "", false, res.Err, nil)
		if res.Failure == flows.LoginFailureTransient {
			return Identity{}, res.Err
		}
		return Identity{}, fmt.Errorf("%w: %w", ErrLoginFailed, res.Err)
	}

	c.store.Set(Credential{
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
		ExpiresAt:    res.Tokens.ExpiresAt,
	})

	id, err := c.fetchIdentity(ctx, res.Tokens.AccessToken)
	if err != nil {
		c.logger.Warn("identity fetch after login failed, using token claims", "error", err)
	}

	c.state.setAuthenticated(&id)
	c.metricInc(MetricLoginSuccess)
	c.emitAudit(ctx, auditEventLogin, "", true, nil, nil)
	return id, nil
}

// fetchIdentity asks the backend, and falls back to the access token's claims.
func (c *Client) fetchIdentity(ctx context.Context, accessToken string) (Identity, error) {
	var id Identity
	err := c.GetJSON(ctx, c.config.Endpoints.Identity, &id)
	if err == nil {
		return id, nil
	}
	claims, cerr := jwt.Inspect(accessToken)
	if cerr != nil {
		return Identity{}, err
	}
	return Identity{ID: claims.Subject, Email: claims.Email, Name: claims.Name}, err
}

// Logout revokes the session on the backend when a logout endpoint is configured, then
// clears the credential and moves the session to unauthenticated. The local session
// always ends; a failed revocation is logged, not returned.
//
// Logout does not invoke the navigation bridge: the caller asked to leave.
func (c *Client) Logout(ctx context.Context) error {
	if c == nil {
		return ErrClientNotReady
	}

	err := flows.RunLogout(ctx, flows.LogoutDeps{
		CurrentTokens: func() flows.TokenPair {
			cred := c.store.Credential()
			return flows.TokenPair{AccessToken: cred.AccessToken, RefreshToken: cred.RefreshToken}
		},
		Revoke: c.exchanger.Logout,
		Clear:  c.store.Clear,
	})
	if err != nil {
		c.logger.Warn("server-side logout failed", "error", err)
	}

	c.emitAudit(ctx, auditEventLogout, "", err == nil, err, nil)
	c.state.setUnauthenticated()
	c.metricInc(MetricLogout)
	return nil
}

// onRefreshed runs inside a successful refresh episode.
func (c *Client) onRefreshed(ctx context.Context, episodeID string) {
	c.emitAudit(ctx, auditEventRefreshSuccess, episodeID, true, nil, nil)
}

// onRefreshFailed runs inside a failed refresh episode, before navigation.
func (c *Client) onRefreshFailed(ctx context.Context, episodeID string, cause error, teardown bool) {
	if !teardown {
		c.emitAudit(ctx, auditEventRefreshFailure, episodeID, false, cause, map[string]string{"teardown": "false"})
		return
	}
	kind := "rejected"
	switch {
	case errors.Is(cause, ErrNoRefreshToken):
		kind = "no_refresh_token"
	case errors.Is(cause, ErrRefreshUnavailable):
		kind = "unavailable"
	}
	c.emitAudit(ctx, auditEventRefreshFailure, episodeID, false, cause, map[string]string{"teardown": "true", "reason": kind})
	c.emitAudit(ctx, auditEventSessionTeardown, episodeID, true, nil, map[string]string{"reason": kind})
	c.state.setUnauthenticated()
}

func (c *Client) metricInc(id MetricID) {
	if c == nil || c.metrics == nil {
		return
	}
	c.metrics.Inc(id)
}
