package goSession

import (
	"errors"
	"testing"
	"time"
)

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("GOSESSION_BASE_URL", "https://api.example.test")
	t.Setenv("GOSESSION_REFRESH_PATH", "/v2/token")
	t.Setenv("GOSESSION_LOGOUT_PATH", "/v2/logout")
	t.Setenv("GOSESSION_AUTH_SCHEME", "Token")
	t.Setenv("GOSESSION_REFRESH_MODE", "BEARER")
	t.Setenv("GOSESSION_REFRESH_TIMEOUT", "3s")
	t.Setenv("GOSESSION_REFRESH_TEARDOWN_ON_TRANSPORT_ERROR", "true")
	t.Setenv("GOSESSION_HTTP_TIMEOUT", "not-a-duration")
	t.Setenv("GOSESSION_METRICS_ENABLED", "false")
	t.Setenv("GOSESSION_LOG_LEVEL", "debug")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BaseURL != "https://api.example.test" || cfg.Endpoints.Refresh != "/v2/token" || cfg.Endpoints.Logout != "/v2/logout" {
		t.Fatalf("unexpected endpoints %+v", cfg.Endpoints)
	}
	if cfg.Endpoints.Login != "/auth/login" {
		t.Fatal("unset variables keep their default")
	}
	if cfg.Auth.Scheme != "Token" || cfg.Refresh.Mode != "bearer" {
		t.Fatalf("unexpected auth/refresh %+v %+v", cfg.Auth, cfg.Refresh)
	}
	if cfg.Refresh.Timeout != 3*time.Second || !cfg.Refresh.TeardownOnTransportError {
		t.Fatalf("unexpected refresh config %+v", cfg.Refresh)
	}
	if cfg.Transport.Timeout != DefaultConfig().Transport.Timeout {
		t.Fatal("an unparsable duration keeps the default")
	}
	if cfg.Metrics.Enabled || cfg.Log.Level != "debug" {
		t.Fatalf("unexpected metrics/log %+v %+v", cfg.Metrics, cfg.Log)
	}
}

func TestLoadConfigFromEnvValidates(t *testing.T) {
	t.Setenv("GOSESSION_BASE_URL", "")
	if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("GS_TEST_BOOL", "nope")
	if !EnvBool("GS_TEST_BOOL", true) {
		t.Fatal("invalid bool keeps the default")
	}
	t.Setenv("GS_TEST_DURATION", "-5s")
	if EnvDuration("GS_TEST_DURATION", time.Minute) != time.Minute {
		t.Fatal("non-positive duration keeps the default")
	}
	t.Setenv("GS_TEST_STRING", "  value  ")
	if EnvString("GS_TEST_STRING", "def") != "value" {
		t.Fatal("expected trimmed value")
	}
}
