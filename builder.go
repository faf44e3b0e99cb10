package goSession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/MrEthical07/goSession/credstore"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/MrEthical07/goSession/refresh"
	"golang.org/x/oauth2"
)

// Builder assembles a [Client]. A Builder is single use: Build may only succeed once.
type Builder struct {
	config Config

	backend       credstore.Backend
	refresher     Refresher
	oauth2Config  *oauth2.Config
	baseTransport http.RoundTripper
	middlewares   []middleware.Middleware
	logger        *slog.Logger
	auditSink     AuditSink
	fallbackNav   func()

	built bool
}

// New returns a Builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithBaseURL sets Config.BaseURL.
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.BaseURL = baseURL
	return b
}

// WithCredentialBackend sets the durable medium. Without one the credential lives in
// memory only.
func (b *Builder) WithCredentialBackend(backend credstore.Backend) *Builder {
	b.backend = backend
	return b
}

// WithRefresher replaces the HTTP refresh transport.
func (b *Builder) WithRefresher(r Refresher) *Builder {
	b.refresher = r
	return b
}

// WithOAuth2 refreshes through an OAuth2 token endpoint (refresh_token grant) instead of
// Endpoints.Refresh. Login and logout still use the JSON endpoints.
func (b *Builder) WithOAuth2(cfg *oauth2.Config) *Builder {
	b.oauth2Config = cfg
	return b
}

// WithBaseTransport sets the transport used for every network call. Config.Transport is
// ignored when set.
func (b *Builder) WithBaseTransport(rt http.RoundTripper) *Builder {
	b.baseTransport = rt
	return b
}

// WithMiddleware appends client middlewares. They wrap the base transport, so they see
// every attempt including replays and refresh calls.
func (b *Builder) WithMiddleware(mws ...middleware.Middleware) *Builder {
	b.middlewares = append(b.middlewares, mws...)
	return b
}

// WithLogger sets the logger. Without one, Config.Log decides.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the audit sink and enables auditing.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = sink != nil
	return b
}

// WithFallbackNavigation sets the function run on session teardown when no navigation
// callback is registered.
func (b *Builder) WithFallbackNavigation(fn func()) *Builder {
	b.fallbackNav = fn
	return b
}

// WithMetricsEnabled turns the in-process counters on or off.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms records refresh latency; it needs metrics enabled.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, hydrates the credential from the backend and
// returns a ready client.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		if cfg.Log.Level == "" {
			logger = discardLogger()
		} else {
			logger = NewLogger(cfg.Log.Level, cfg.Log.Format)
		}
	}

	// -------- WIRE --------
	base := b.baseTransport
	if base == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.MaxIdleConns = cfg.Transport.MaxIdleConns
		t.MaxIdleConnsPerHost = cfg.Transport.MaxIdleConns
		t.IdleConnTimeout = cfg.Transport.IdleConnTimeout
		base = t
	}
	wire := middleware.Chain(base, b.middlewares...)

	// Token calls never go through the session transport.
	tokenClient := &http.Client{Transport: wire, Timeout: cfg.Refresh.Timeout}
	exchanger, err := refresh.NewHTTP(refresh.HTTPConfig{
		BaseURL:     cfg.BaseURL,
		LoginPath:   cfg.Endpoints.Login,
		RefreshPath: cfg.Endpoints.Refresh,
		LogoutPath:  cfg.Endpoints.Logout,
		Mode:        refresh.Mode(cfg.Refresh.Mode),
		Client:      tokenClient,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	refresher := b.refresher
	if refresher == nil && b.oauth2Config != nil {
		ex, err := refresh.NewOAuth2(b.oauth2Config, tokenClient)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		refresher = FromExchanger(ex)
	}
	if refresher == nil {
		refresher = FromExchanger(exchanger)
	}

	// -------- SESSION --------
	metrics := NewMetrics(cfg.Metrics)
	store := NewCredentialStore(b.backend, logger)
	nav := NewNavigationBridge(b.fallbackNav, logger)
	nav.metrics = metrics

	client := &Client{
		config:      cfg,
		store:       store,
		nav:         nav,
		interceptor: NewRequestInterceptor(store, cfg.Auth.HeaderName, cfg.Auth.Scheme),
		exchanger:   exchanger,
		state:       newSessionState(),
		audit:       newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:     metrics,
		logger:      logger,
	}

	client.coord = &refreshCoordinator{
		cfg:         cfg.Refresh,
		store:       store,
		refresher:   refresher,
		nav:         nav,
		logger:      logger,
		metrics:     metrics,
		onRefreshed: client.onRefreshed,
		onFailed:    client.onRefreshFailed,
	}
	client.transport = &Transport{
		base:        wire,
		interceptor: client.interceptor,
		coord:       client.coord,
		cfg:         &client.config,
		metrics:     metrics,
	}
	client.httpClient = &http.Client{
		Transport: client.transport,
		Timeout:   cfg.Transport.Timeout,
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := store.Load(ctx); err != nil {
		logger.Error("credential load failed, starting without a session", "error", err)
	}

	b.built = true

	return client, nil
}
