package goSession

import (
	"context"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/authtest"
)

func newTestClient(t *testing.T, srv *authtest.Server, configure func(*Builder)) *Client {
	t.Helper()

	b := New().WithBaseURL(srv.URL)
	if configure != nil {
		configure(b)
	}
	client, err := b.Build()
	if err != nil {
		t.Fatalf("build client: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

// signIn stores a freshly issued credential for username without a login round trip.
func signIn(t *testing.T, srv *authtest.Server, client *Client, username string) Credential {
	t.Helper()
	access, refresh := srv.Issue(username)
	cred := Credential{AccessToken: access, RefreshToken: refresh}
	client.Credentials().Set(cred)
	return cred
}

type navCounter struct {
	calls atomic.Int32
}

func (n *navCounter) invoke() { n.calls.Add(1) }

func (n *navCounter) count() int { return int(n.calls.Load()) }

type result struct {
	path   string
	status int
	body   string
	err    error
}

func get(client *Client, path string) result {
	req, err := client.NewRequest(context.Background(), http.MethodGet, path, nil)
	if err != nil {
		return result{path: path, err: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return result{path: path, err: err}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return result{path: path, status: resp.StatusCode, body: string(body)}
}

// fanOut issues one GET per path concurrently and returns results in path order.
func fanOut(client *Client, paths ...string) []result {
	out := make([]result, len(paths))
	start := make(chan struct{})
	done := make(chan int, len(paths))
	for i, p := range paths {
		go func(i int, p string) {
			<-start
			out[i] = get(client, p)
			done <- i
		}(i, p)
	}
	close(start)
	for range paths {
		<-done
	}
	return out
}

// fanOutHeld is fanOut with the refresh endpoint held until every path has been hit
// once, so all requests fail authorization while one episode is in flight.
func fanOutHeld(t *testing.T, srv *authtest.Server, client *Client, paths ...string) []result {
	t.Helper()

	srv.HoldRefresh()
	var released atomic.Bool
	release := func() {
		if released.CompareAndSwap(false, true) {
			srv.ReleaseRefresh()
		}
	}
	defer release()

	want := make(map[string]int)
	for _, p := range paths {
		want[p]++
	}

	resCh := make(chan []result, 1)
	go func() { resCh <- fanOut(client, paths...) }()

	select {
	case <-srv.Refreshing():
	case <-time.After(5 * time.Second):
		t.Fatal("refresh endpoint was never called")
	}
	waitFor(t, func() bool {
		for p, n := range want {
			if srv.Hits(p) < n {
				return false
			}
		}
		return true
	})
	if got := client.CoordinatorState(); got != StateRefreshing {
		t.Fatalf("expected coordinator refreshing while held, got %s", got)
	}
	release()

	select {
	case res := <-resCh:
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("requests did not settle")
		return nil
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(2 * time.Millisecond)
	}
}
