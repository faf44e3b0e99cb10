package authtest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
)

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	payload, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func TestServerLifecycle(t *testing.T) {
	srv := NewServer(Options{})
	defer srv.Close()

	resp := postJSON(t, srv.URL+LoginPath, map[string]string{"username": "ada", "password": "lovelace"})
	var tokens tokenBody
	_ = json.NewDecoder(resp.Body).Decode(&tokens)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatalf("login: %d %+v", resp.StatusCode, tokens)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+IdentityPath, nil)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("identity: %v", err)
	}
	var id Identity
	_ = json.NewDecoder(resp.Body).Decode(&id)
	resp.Body.Close()
	if id.ID != "user-ada" {
		t.Fatalf("unexpected identity %+v", id)
	}

	srv.ExpireAccessTokens()
	resp, _ = http.DefaultClient.Do(req)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expired token must be refused, got %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+RefreshPath, map[string]string{"refreshToken": tokens.RefreshToken})
	var next tokenBody
	_ = json.NewDecoder(resp.Body).Decode(&next)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || next.RefreshToken == tokens.RefreshToken {
		t.Fatalf("refresh must rotate: %d %+v", resp.StatusCode, next)
	}

	// The rotated-out token is single use.
	resp = postJSON(t, srv.URL+RefreshPath, map[string]string{"refreshToken": tokens.RefreshToken})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized || srv.RefreshCalls() != 2 {
		t.Fatalf("reused refresh token: %d calls=%d", resp.StatusCode, srv.RefreshCalls())
	}
	if seen := srv.Seen(IdentityPath); len(seen) != 2 || seen[0] != "Bearer "+tokens.AccessToken {
		t.Fatalf("unexpected seen headers %v", seen)
	}
}

func TestServerFailRefresh(t *testing.T) {
	srv := NewServer(Options{KeepRefreshToken: true})
	defer srv.Close()

	_, refresh := srv.Issue("ada")
	srv.FailRefresh(http.StatusServiceUnavailable)
	resp := postJSON(t, srv.URL+RefreshPath, map[string]string{"refreshToken": refresh})
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}

	srv.FailRefresh(0)
	for range 2 {
		resp = postJSON(t, srv.URL+RefreshPath, map[string]string{"refreshToken": refresh})
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("a kept refresh token stays valid, got %d", resp.StatusCode)
		}
	}
}
