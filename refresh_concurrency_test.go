package goSession

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/authtest"
)

func TestRefreshConcurrencySingleFlight(t *testing.T) {
	srv := authtest.NewServer(authtest.Options{})
	defer srv.Close()
	srv.HandleOK("/r", "ok")

	client := newTestClient(t, srv, nil)
	old := signIn(t, srv, client, "ada")
	srv.ExpireAccessTokens()

	const n = 16
	paths := make([]string, n)
	for i := range paths {
		paths[i] = "/r"
	}

	results := fanOutHeld(t, srv, client, paths...)

	for _, r := range results {
		if r.err != nil {
			t.Fatalf("unexpected error: %v", r.err)
		}
		if r.status != http.StatusOK || r.body != "ok" {
			t.Fatalf("expected 200 ok, got %d %q", r.status, r.body)
		}
	}
	if got := srv.RefreshCalls(); got != 1 {
		t.Fatalf("expected exactly one refresh call, got %d", got)
	}

	cred := client.Credentials().Credential()
	if cred.AccessToken == old.AccessToken || cred.RefreshToken == old.RefreshToken {
		t.Fatal("expected both tokens to be rotated")
	}

	// n first attempts with the old token, then n replays with the new one.
	seen := srv.Seen("/r")
	if len(seen) != 2*n {
		t.Fatalf("expected %d requests on the wire, got %d", 2*n, len(seen))
	}
	replays := 0
	for _, h := range seen {
		switch h {
		case "Bearer " + old.AccessToken:
		case "Bearer " + cred.AccessToken:
			replays++
		default:
			t.Fatalf("unexpected Authorization header %q", h)
		}
	}
	if replays != n {
		t.Fatalf("expected %d replays with the new token, got %d", n, replays)
	}

	snap := client.MetricsSnapshot()
	if snap.Counters[MetricRefreshStarted] != 1 || snap.Counters[MetricRefreshSuccess] != 1 {
		t.Fatalf("expected one started and one successful refresh, got %+v", snap.Counters)
	}
	if snap.Counters[MetricReplaySent] != n {
		t.Fatalf("expected %d replays, got %d", n, snap.Counters[MetricReplaySent])
	}
	if client.CoordinatorState() != StateIdle {
		t.Fatal("coordinator must return to idle")
	}
}

func TestRefreshScenarioABCSuccess(t *testing.T) {
	srv := authtest.NewServer(authtest.Options{})
	defer srv.Close()
	srv.HandleOK("/a", "alpha")
	srv.HandleOK("/b", "bravo")
	srv.Handle("/c", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "missing", http.StatusNotFound)
	}))

	client := newTestClient(t, srv, nil)
	signIn(t, srv, client, "ada")
	srv.ExpireAccessTokens()

	results := fanOutHeld(t, srv, client, "/a", "/b", "/c")

	if got := srv.RefreshCalls(); got != 1 {
		t.Fatalf("expected one refresh call, got %d", got)
	}
	fresh, _ := client.Credentials().AccessToken()
	for _, p := range []string{"/a", "/b", "/c"} {
		seen := srv.Seen(p)
		if len(seen) != 2 {
			t.Fatalf("%s: expected original and one replay, got %d requests", p, len(seen))
		}
		if seen[1] != "Bearer "+fresh {
			t.Fatalf("%s: replay carried %q, want the new token", p, seen[1])
		}
	}

	want := map[string]struct {
		status int
		body   string
	}{
		"/a": {http.StatusOK, "alpha"},
		"/b": {http.StatusOK, "bravo"},
		"/c": {http.StatusNotFound, "missing"},
	}
	for _, r := range results {
		if r.err != nil {
			t.Fatalf("%s: unexpected error %v", r.path, r.err)
		}
		w := want[r.path]
		if r.status != w.status || !strings.Contains(r.body, w.body) {
			t.Fatalf("%s: expected %d %q, got %d %q", r.path, w.status, w.body, r.status, r.body)
		}
	}
}

func TestRefreshScenarioABCRejected(t *testing.T) {
	srv := authtest.NewServer(authtest.Options{})
	defer srv.Close()
	for _, p := range []string{"/a", "/b", "/c"} {
		srv.HandleOK(p, p)
	}

	nav := &navCounter{}
	client := newTestClient(t, srv, nil)
	client.Navigation().Register(nav.invoke)
	signIn(t, srv, client, "ada")
	srv.ExpireAccessTokens()
	srv.RevokeRefreshTokens()

	results := fanOutHeld(t, srv, client, "/a", "/b", "/c")

	if got := srv.RefreshCalls(); got != 1 {
		t.Fatalf("expected one refresh call, got %d", got)
	}
	for _, r := range results {
		if !errors.Is(r.err, ErrUnauthorized) {
			t.Fatalf("%s: expected ErrUnauthorized, got status=%d err=%v", r.path, r.status, r.err)
		}
		if srv.Hits(r.path) != 1 {
			t.Fatalf("%s: a rejected request must not be replayed", r.path)
		}
	}
	if !client.Credentials().Credential().IsZero() {
		t.Fatal("expected credential store to be cleared")
	}
	if got := nav.count(); got != 1 {
		t.Fatalf("expected one navigation, got %d", got)
	}
	if client.State().Status() != StatusUnauthenticated {
		t.Fatalf("expected unauthenticated, got %s", client.State().Status())
	}
}

func TestTeardownIdempotentAcrossTenRequests(t *testing.T) {
	srv := authtest.NewServer(authtest.Options{})
	defer srv.Close()

	const n = 10
	paths := make([]string, n)
	for i := range paths {
		paths[i] = fmt.Sprintf("/r%d", i)
		srv.HandleOK(paths[i], "ok")
	}

	nav := &navCounter{}
	client := newTestClient(t, srv, nil)
	client.Navigation().Register(nav.invoke)
	signIn(t, srv, client, "ada")
	srv.ExpireAccessTokens()
	srv.RevokeRefreshTokens()

	results := fanOutHeld(t, srv, client, paths...)

	for _, r := range results {
		var authErr *AuthError
		if !errors.As(r.err, &authErr) {
			t.Fatalf("%s: expected *AuthError, got %v", r.path, r.err)
		}
		if !errors.Is(r.err, ErrRefreshRejected) && !errors.Is(r.err, ErrSessionEnded) {
			t.Fatalf("%s: unexpected cause %v", r.path, r.err)
		}
	}
	if got := nav.count(); got != 1 {
		t.Fatalf("expected exactly one navigation, got %d", got)
	}
	if got := client.MetricsSnapshot().Counters[MetricSessionTeardown]; got != 1 {
		t.Fatalf("expected one teardown, got %d", got)
	}
}

func TestRefreshWithoutRefreshTokenTearsDownWithoutNetwork(t *testing.T) {
	srv := authtest.NewServer(authtest.Options{})
	defer srv.Close()
	srv.HandleOK("/r", "ok")

	nav := &navCounter{}
	client := newTestClient(t, srv, nil)
	client.Navigation().Register(nav.invoke)
	access, _ := srv.Issue("ada")
	client.Credentials().SetAccessToken(access)
	srv.ExpireAccessTokens()

	r := get(client, "/r")
	if !errors.Is(r.err, ErrNoRefreshToken) || !errors.Is(r.err, ErrUnauthorized) {
		t.Fatalf("expected ErrNoRefreshToken, got %v", r.err)
	}
	if srv.RefreshCalls() != 0 {
		t.Fatal("refresh endpoint must not be called without a refresh token")
	}
	if nav.count() != 1 {
		t.Fatalf("expected one navigation, got %d", nav.count())
	}
}

func TestStaleUnauthorizedReplaysWithCurrentToken(t *testing.T) {
	srv := authtest.NewServer(authtest.Options{})
	defer srv.Close()
	srv.HandleOK("/r", "ok")

	client := newTestClient(t, srv, nil)
	old := signIn(t, srv, client, "ada")
	srv.ExpireAccessTokens()

	// Another part of the program already rotated the credential.
	fresh := signIn(t, srv, client, "ada")

	cred, err := client.coord.resolve(context.Background(), old.AccessToken)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cred.AccessToken != fresh.AccessToken {
		t.Fatal("expected the current token without a refresh")
	}
	if srv.RefreshCalls() != 0 {
		t.Fatalf("expected no refresh call, got %d", srv.RefreshCalls())
	}
	if got := client.MetricsSnapshot().Counters[MetricRefreshSkippedStale]; got != 1 {
		t.Fatalf("expected one stale skip, got %d", got)
	}
}

func TestLateUnauthorizedAfterTeardownDoesNotNavigateAgain(t *testing.T) {
	srv := authtest.NewServer(authtest.Options{})
	defer srv.Close()

	nav := &navCounter{}
	client := newTestClient(t, srv, nil)
	client.Navigation().Register(nav.invoke)

	_, err := client.coord.resolve(context.Background(), "token-sent-before-teardown")
	if !errors.Is(err, ErrSessionEnded) || !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrSessionEnded, got %v", err)
	}
	if nav.count() != 0 {
		t.Fatal("a late failure must not navigate")
	}
}

func TestTransientRefreshFailureKeepsSession(t *testing.T) {
	srv := authtest.NewServer(authtest.Options{})
	defer srv.Close()
	srv.HandleOK("/r", "ok")

	nav := &navCounter{}
	client := newTestClient(t, srv, nil)
	client.Navigation().Register(nav.invoke)
	cred := signIn(t, srv, client, "ada")
	srv.ExpireAccessTokens()
	srv.FailRefresh(http.StatusServiceUnavailable)

	r := get(client, "/r")
	if !errors.Is(r.err, ErrRefreshUnavailable) {
		t.Fatalf("expected ErrRefreshUnavailable, got %v", r.err)
	}
	if errors.Is(r.err, ErrUnauthorized) {
		t.Fatal("a transient failure must not read as an authorization failure")
	}
	if got := client.Credentials().Credential(); got.RefreshToken != cred.RefreshToken {
		t.Fatal("credential must be kept after a transient failure")
	}
	if nav.count() != 0 {
		t.Fatal("transient failure must not navigate")
	}

	// The endpoint recovers; the same credential refreshes normally.
	srv.FailRefresh(0)
	if r := get(client, "/r"); r.err != nil || r.status != http.StatusOK {
		t.Fatalf("expected recovery, got %d %v", r.status, r.err)
	}
}

func TestTransientRefreshFailureTearsDownWhenConfigured(t *testing.T) {
	srv := authtest.NewServer(authtest.Options{})
	defer srv.Close()
	srv.HandleOK("/r", "ok")

	nav := &navCounter{}
	client := newTestClient(t, srv, func(b *Builder) {
		cfg := DefaultConfig()
		cfg.BaseURL = srv.URL
		cfg.Refresh.TeardownOnTransportError = true
		b.WithConfig(cfg)
	})
	client.Navigation().Register(nav.invoke)
	signIn(t, srv, client, "ada")
	srv.ExpireAccessTokens()
	srv.FailRefresh(http.StatusBadGateway)

	r := get(client, "/r")
	if !errors.Is(r.err, ErrRefreshUnavailable) || !errors.Is(r.err, ErrUnauthorized) {
		t.Fatalf("expected unavailable teardown, got %v", r.err)
	}
	if client.Credentials().IsAuthenticated() {
		t.Fatal("expected credential to be cleared")
	}
	if nav.count() != 1 {
		t.Fatalf("expected one navigation, got %d", nav.count())
	}
}

func TestCallerCancellationDoesNotAbortEpisode(t *testing.T) {
	srv := authtest.NewServer(authtest.Options{})
	defer srv.Close()
	srv.HandleOK("/r", "ok")

	client := newTestClient(t, srv, nil)
	old := signIn(t, srv, client, "ada")
	srv.ExpireAccessTokens()
	srv.HoldRefresh()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		req, _ := client.NewRequest(ctx, http.MethodGet, "/r", nil)
		resp, err := client.Do(req)
		if err == nil {
			resp.Body.Close()
		}
		errCh <- err
	}()

	select {
	case <-srv.Refreshing():
	case <-time.After(5 * time.Second):
		t.Fatal("refresh endpoint was never called")
	}
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled caller did not return")
	}

	srv.ReleaseRefresh()
	waitFor(t, func() bool { return client.CoordinatorState() == StateIdle })

	if got, _ := client.Credentials().AccessToken(); got == old.AccessToken {
		t.Fatal("episode should have completed and stored the new token")
	}
}
