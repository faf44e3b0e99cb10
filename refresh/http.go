package refresh

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Mode selects how the refresh token is presented to the refresh endpoint.
type Mode string

const (
	// ModeBody sends {"refreshToken": "..."} as the JSON request body.
	ModeBody Mode = "body"
	// ModeBearer sends the refresh token as "Authorization: Bearer <token>".
	ModeBearer Mode = "bearer"
)

const maxErrorBody = 512

// HTTPConfig configures an [HTTP] exchanger.
type HTTPConfig struct {
	// BaseURL is joined with the endpoint paths below.
	BaseURL     string
	LoginPath   string
	RefreshPath string
	LogoutPath  string
	Mode        Mode
	// Client must not route through the session coordinator. Defaults to a client with
	// a 10s timeout.
	Client *http.Client
}

// HTTP talks to JSON login/refresh/logout endpoints.
type HTTP struct {
	base   *url.URL
	cfg    HTTPConfig
	client *http.Client
}

// NewHTTP validates cfg and returns an exchanger.
func NewHTTP(cfg HTTPConfig) (*HTTP, error) {
	base, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("refresh: invalid base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, errors.New("refresh: base url scheme must be http or https")
	}
	if cfg.RefreshPath == "" {
		return nil, errors.New("refresh: refresh path required")
	}
	switch cfg.Mode {
	case "":
		cfg.Mode = ModeBody
	case ModeBody, ModeBearer:
	default:
		return nil, fmt.Errorf("refresh: unsupported mode %q", cfg.Mode)
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return &HTTP{base: base, cfg: cfg, client: client}, nil
}

// Refresh exchanges refreshToken for a new token pair.
func (h *HTTP) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	if refreshToken == "" {
		return Tokens{}, fmt.Errorf("%w: empty refresh token", ErrRejected)
	}

	var (
		body   any
		header = http.Header{}
	)
	switch h.cfg.Mode {
	case ModeBearer:
		header.Set("Authorization", "Bearer "+refreshToken)
	default:
		body = map[string]string{"refreshToken": refreshToken}
	}

	return h.exchange(ctx, h.cfg.RefreshPath, header, body)
}

// Login exchanges a username and password for a token pair.
func (h *HTTP) Login(ctx context.Context, username, password string) (Tokens, error) {
	if h.cfg.LoginPath == "" {
		return Tokens{}, errors.New("refresh: login path not configured")
	}
	return h.exchange(ctx, h.cfg.LoginPath, http.Header{}, map[string]string{
		"username": username,
		"password": password,
	})
}

// Logout tells the backend to revoke the session. It is best effort: a missing logout
// path is not an error.
func (h *HTTP) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if h.cfg.LogoutPath == "" {
		return nil
	}
	header := http.Header{}
	if accessToken != "" {
		header.Set("Authorization", "Bearer "+accessToken)
	}
	var body any
	if refreshToken != "" {
		body = map[string]string{"refreshToken": refreshToken}
	}

	resp, err := h.do(ctx, h.cfg.LogoutPath, header, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusUnauthorized {
		return &StatusError{StatusCode: resp.StatusCode, class: Classify(resp.StatusCode)}
	}
	return nil
}

func (h *HTTP) exchange(ctx context.Context, path string, header http.Header, body any) (Tokens, error) {
	resp, err := h.do(ctx, path, header, body)
	if err != nil {
		return Tokens{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return Tokens{}, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
			class:      Classify(resp.StatusCode),
		}
	}

	var decoded tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Tokens{}, fmt.Errorf("%w: decode token response: %v", ErrRejected, err)
	}
	return decoded.tokens()
}

func (h *HTTP) do(ctx context.Context, path string, header http.Header, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.base.JoinPath(path).String(), reader)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return resp, nil
}
