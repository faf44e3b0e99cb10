package refresh

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// OAuth2 refreshes through an OAuth2 token endpoint using the refresh_token grant.
type OAuth2 struct {
	cfg    *oauth2.Config
	client *http.Client
}

// NewOAuth2 returns an exchanger for cfg. client may be nil, in which case
// http.DefaultClient is used by x/oauth2.
func NewOAuth2(cfg *oauth2.Config, client *http.Client) (*OAuth2, error) {
	if cfg == nil {
		return nil, errors.New("refresh: oauth2 config required")
	}
	if cfg.Endpoint.TokenURL == "" {
		return nil, errors.New("refresh: oauth2 token url required")
	}
	return &OAuth2{cfg: cfg, client: client}, nil
}

// Refresh exchanges refreshToken through the token endpoint.
func (o *OAuth2) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	if refreshToken == "" {
		return Tokens{}, fmt.Errorf("%w: empty refresh token", ErrRejected)
	}
	if o.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, o.client)
	}

	// An expired token forces the source to hit the endpoint.
	expired := &oauth2.Token{
		RefreshToken: refreshToken,
		Expiry:       time.Now().Add(-time.Hour),
	}
	tok, err := o.cfg.TokenSource(ctx, expired).Token()
	if err != nil {
		return Tokens{}, classifyOAuth2(err)
	}
	if tok.AccessToken == "" {
		return Tokens{}, fmt.Errorf("%w: response carries no access token", ErrRejected)
	}

	out := Tokens{AccessToken: tok.AccessToken}
	// x/oauth2 copies the old refresh token forward when the server does not rotate it.
	if tok.RefreshToken != refreshToken {
		out.RefreshToken = tok.RefreshToken
	}
	if !tok.Expiry.IsZero() {
		if d := time.Until(tok.Expiry); d > 0 {
			out.ExpiresIn = d
		}
	}
	return out, nil
}

func classifyOAuth2(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return &StatusError{
			StatusCode: re.Response.StatusCode,
			Body:       re.ErrorCode,
			class:      Classify(re.Response.StatusCode),
		}
	}
	return fmt.Errorf("%w: %v", ErrTransient, err)
}
