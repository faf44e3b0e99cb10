package goSession

import (
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"
)

// Config holds everything a [Client] needs. Build one with [DefaultConfig] and
// override fields, or load it with [LoadConfigFromEnv].
//
// Config values are copied at [Builder.Build]; mutating the original afterwards has no
// effect on the client.
type Config struct {
	BaseURL   string
	Endpoints EndpointsConfig
	Auth      AuthConfig
	Refresh   RefreshConfig
	Transport TransportConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
	Log       LogConfig
}

/*
====================================
ENDPOINTS CONFIG
====================================
*/

// EndpointsConfig holds backend paths relative to Config.BaseURL.
type EndpointsConfig struct {
	Login    string
	Refresh  string
	Identity string
	Logout   string // optional; empty disables the server-side logout call
}

/*
====================================
AUTH CONFIG
====================================
*/

// AuthConfig controls how credentials are attached and which responses count as an
// authorization failure.
type AuthConfig struct {
	HeaderName      string
	Scheme          string
	FailureStatuses []int
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig controls the refresh episode.
type RefreshConfig struct {
	Mode    string // "body" (default) or "bearer"
	Timeout time.Duration
	// TeardownOnTransportError ends the session when the refresh endpoint is unreachable
	// or answers 5xx. When false those requests fail with ErrRefreshUnavailable and the
	// credential is kept.
	TeardownOnTransportError bool
}

/*
====================================
TRANSPORT CONFIG
====================================
*/

// TransportConfig tunes the default base transport. It is ignored when a transport is
// supplied through [Builder.WithBaseTransport].
type TransportConfig struct {
	Timeout         time.Duration
	MaxIdleConns    int
	IdleConnTimeout time.Duration
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// LogConfig is consumed by [NewLogger] when no logger is supplied to the builder. An
// empty Level disables logging.
type LogConfig struct {
	Level  string // "", debug, info, warn, error
	Format string // json or text
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns a configuration with every field except BaseURL filled in.
func DefaultConfig() Config {
	return Config{
		Endpoints: EndpointsConfig{
			Login:    "/auth/login",
			Refresh:  "/auth/refresh",
			Identity: "/auth/me",
			Logout:   "/auth/logout",
		},
		Auth: AuthConfig{
			HeaderName:      "Authorization",
			Scheme:          "Bearer",
			FailureStatuses: []int{http.StatusUnauthorized},
		},
		Refresh: RefreshConfig{
			Mode:    "body",
			Timeout: 10 * time.Second,
		},
		Transport: TransportConfig{
			Timeout:         30 * time.Second,
			MaxIdleConns:    100,
			IdleConnTimeout: 90 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
		Log: LogConfig{
			Format: "json",
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Auth.FailureStatuses = slices.Clone(cfg.Auth.FailureStatuses)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid field. Every error wraps [ErrInvalidConfig].
func (c *Config) Validate() error {
	// Base URL
	if strings.TrimSpace(c.BaseURL) == "" {
		return invalidConfig("BaseURL is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return invalidConfig("BaseURL is not a valid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return invalidConfig("BaseURL scheme must be http or https")
	}
	if u.Host == "" {
		return invalidConfig("BaseURL host is required")
	}

	// Endpoints
	if c.Endpoints.Refresh == "" {
		return invalidConfig("Endpoints Refresh is required")
	}
	for name, path := range map[string]string{
		"Login":    c.Endpoints.Login,
		"Refresh":  c.Endpoints.Refresh,
		"Identity": c.Endpoints.Identity,
		"Logout":   c.Endpoints.Logout,
	} {
		if path != "" && !strings.HasPrefix(path, "/") {
			return invalidConfig("Endpoints %s must start with '/'", name)
		}
	}

	// Auth
	if strings.TrimSpace(c.Auth.HeaderName) == "" {
		return invalidConfig("Auth HeaderName is required")
	}
	if len(c.Auth.FailureStatuses) == 0 {
		return invalidConfig("Auth FailureStatuses must not be empty")
	}
	for _, s := range c.Auth.FailureStatuses {
		if s < 400 || s > 499 {
			return invalidConfig("Auth FailureStatuses must be 4xx, got %d", s)
		}
	}

	// Refresh
	if c.Refresh.Mode != "body" && c.Refresh.Mode != "bearer" {
		return invalidConfig("Refresh Mode must be 'body' or 'bearer'")
	}
	if c.Refresh.Timeout <= 0 {
		return invalidConfig("Refresh Timeout must be > 0")
	}

	// Transport
	if c.Transport.Timeout < 0 {
		return invalidConfig("Transport Timeout must be >= 0")
	}
	if c.Transport.MaxIdleConns < 0 {
		return invalidConfig("Transport MaxIdleConns must be >= 0")
	}
	if c.Transport.IdleConnTimeout < 0 {
		return invalidConfig("Transport IdleConnTimeout must be >= 0")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return invalidConfig("Audit BufferSize must be > 0 when audit is enabled")
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return invalidConfig("Log Level %q is not supported", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "json", "text":
	default:
		return invalidConfig("Log Format must be 'json' or 'text'")
	}

	return nil
}

func invalidConfig(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

func (c *Config) isFailureStatus(status int) bool {
	return slices.Contains(c.Auth.FailureStatuses, status)
}

func (c *Config) endpointURL(path string) string {
	return strings.TrimRight(c.BaseURL, "/") + path
}
