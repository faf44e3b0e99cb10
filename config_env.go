package goSession

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadConfigFromEnv starts from [DefaultConfig] and overrides fields from GOSESSION_*
// environment variables. Unset or unparsable values keep the default. The result is
// validated.
//
//	GOSESSION_BASE_URL                      GOSESSION_REFRESH_MODE
//	GOSESSION_LOGIN_PATH                    GOSESSION_REFRESH_TIMEOUT
//	GOSESSION_REFRESH_PATH                  GOSESSION_REFRESH_TEARDOWN_ON_TRANSPORT_ERROR
//	GOSESSION_IDENTITY_PATH                 GOSESSION_HTTP_TIMEOUT
//	GOSESSION_LOGOUT_PATH                   GOSESSION_AUDIT_ENABLED
//	GOSESSION_AUTH_HEADER                   GOSESSION_METRICS_ENABLED
//	GOSESSION_AUTH_SCHEME                   GOSESSION_LOG_LEVEL
//	                                        GOSESSION_LOG_FORMAT
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	cfg.BaseURL = EnvString("GOSESSION_BASE_URL", cfg.BaseURL)
	cfg.Endpoints.Login = EnvString("GOSESSION_LOGIN_PATH", cfg.Endpoints.Login)
	cfg.Endpoints.Refresh = EnvString("GOSESSION_REFRESH_PATH", cfg.Endpoints.Refresh)
	cfg.Endpoints.Identity = EnvString("GOSESSION_IDENTITY_PATH", cfg.Endpoints.Identity)
	cfg.Endpoints.Logout = EnvString("GOSESSION_LOGOUT_PATH", cfg.Endpoints.Logout)

	cfg.Auth.HeaderName = EnvString("GOSESSION_AUTH_HEADER", cfg.Auth.HeaderName)
	cfg.Auth.Scheme = EnvString("GOSESSION_AUTH_SCHEME", cfg.Auth.Scheme)

	cfg.Refresh.Mode = strings.ToLower(EnvString("GOSESSION_REFRESH_MODE", cfg.Refresh.Mode))
	cfg.Refresh.Timeout = EnvDuration("GOSESSION_REFRESH_TIMEOUT", cfg.Refresh.Timeout)
	cfg.Refresh.TeardownOnTransportError = EnvBool("GOSESSION_REFRESH_TEARDOWN_ON_TRANSPORT_ERROR", cfg.Refresh.TeardownOnTransportError)

	cfg.Transport.Timeout = EnvDuration("GOSESSION_HTTP_TIMEOUT", cfg.Transport.Timeout)

	cfg.Audit.Enabled = EnvBool("GOSESSION_AUDIT_ENABLED", cfg.Audit.Enabled)
	cfg.Metrics.Enabled = EnvBool("GOSESSION_METRICS_ENABLED", cfg.Metrics.Enabled)

	cfg.Log.Level = EnvString("GOSESSION_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = EnvString("GOSESSION_LOG_FORMAT", cfg.Log.Format)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// EnvString reads a string env var with a default.
func EnvString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

// EnvBool reads a bool env var with a default.
func EnvBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// EnvDuration reads a positive duration env var with a default.
func EnvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
