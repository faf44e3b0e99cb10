// Command gosession-loadtest drives concurrent requests through a goSession client
// against an in-process fake backend and checks that every expiry round costs exactly
// one refresh call.
//
// Run:
//
//	go run ./cmd/gosession-loadtest -rounds 50 -concurrency 64
//	go run ./cmd/gosession-loadtest -backend redis   # credential persisted in miniredis
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/authtest"
	"github.com/MrEthical07/goSession/credstore"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		rounds      = flag.Int("rounds", 20, "number of expiry rounds")
		concurrency = flag.Int("concurrency", 64, "concurrent requests per round")
		backend     = flag.String("backend", "memory", "credential backend: memory or redis")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		verbose     = flag.Bool("v", false, "log client activity to stderr")
	)
	flag.Parse()

	if *rounds <= 0 || *concurrency <= 0 {
		fmt.Fprintln(os.Stderr, "rounds and concurrency must be > 0")
		os.Exit(2)
	}

	srv := authtest.NewServer(authtest.Options{})
	defer srv.Close()
	srv.HandleOK("/work", "ok")

	cfg := goSession.DefaultConfig()
	cfg.BaseURL = srv.URL
	if *verbose {
		cfg.Log.Level = "debug"
		cfg.Log.Format = "text"
	}

	builder := goSession.New().
		WithConfig(cfg).
		WithLatencyHistograms(true).
		WithMiddleware(middleware.RequestID())

	if *backend == "redis" {
		store, cleanup, err := redisBackend(*redisAddr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "redis backend: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()
		builder.WithCredentialBackend(store)
	} else if *backend != "memory" {
		fmt.Fprintf(os.Stderr, "unknown backend %q\n", *backend)
		os.Exit(2)
	}

	client, err := builder.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build client: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	var navigations atomic.Int32
	client.Navigation().Register(func() { navigations.Add(1) })

	ctx := context.Background()
	if _, err := client.Login(ctx, "ada", "lovelace"); err != nil {
		fmt.Fprintf(os.Stderr, "login: %v\n", err)
		os.Exit(1)
	}

	var (
		failedRounds int
		stats        []roundStats
	)
	for r := 0; r < *rounds; r++ {
		before := srv.RefreshCalls()
		srv.ExpireAccessTokens()

		s := runRound(client, *concurrency)
		s.refreshes = srv.RefreshCalls() - before
		stats = append(stats, s)

		if s.refreshes != 1 || s.failures > 0 {
			failedRounds++
			fmt.Printf("round %d: refreshes=%d failures=%d\n", r, s.refreshes, s.failures)
		}
	}

	fmt.Println("---- results ----")
	printStats(stats)
	snap := client.MetricsSnapshot()
	fmt.Printf("refresh_success=%d refresh_joined=%d stale=%d navigations=%d\n",
		snap.Counters[goSession.MetricRefreshSuccess],
		snap.Counters[goSession.MetricRefreshJoined],
		snap.Counters[goSession.MetricRefreshSkippedStale],
		navigations.Load(),
	)

	if failedRounds > 0 || navigations.Load() != 0 {
		fmt.Fprintf(os.Stderr, "%d of %d rounds did not refresh exactly once\n", failedRounds, *rounds)
		os.Exit(1)
	}
}

func redisBackend(addr string) (*credstore.Redis, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		rdb     redis.UniversalClient
		cleanup func()
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		cleanup = func() {
			_ = rdb.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = rdb.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}

	store, err := credstore.NewRedis(rdb, credstore.RedisConfig{Prefix: "gs-loadtest", TTL: time.Hour})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return store, cleanup, nil
}

type roundStats struct {
	total     time.Duration
	latencies []time.Duration
	failures  int64
	refreshes int
}

func runRound(client *goSession.Client, concurrency int) roundStats {
	var (
		wg        sync.WaitGroup
		failures  atomic.Int64
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, concurrency)
		start     = make(chan struct{})
	)

	t0 := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			began := time.Now()
			err := call(client)
			d := time.Since(began)
			if err != nil {
				failures.Add(1)
			}
			mu.Lock()
			latencies = append(latencies, d)
			mu.Unlock()
		}()
	}
	close(start)
	wg.Wait()

	return roundStats{total: time.Since(t0), latencies: latencies, failures: failures.Load()}
}

func call(client *goSession.Client) error {
	req, err := client.NewRequest(context.Background(), http.MethodGet, "/work", nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return errors.New(resp.Status)
	}
	return nil
}

func printStats(rounds []roundStats) {
	var (
		all      []time.Duration
		failures int64
		total    time.Duration
	)
	for _, r := range rounds {
		all = append(all, r.latencies...)
		failures += r.failures
		total += r.total
	}
	slices.Sort(all)
	fmt.Printf("requests=%d failures=%d total=%s p50=%s p95=%s p99=%s\n",
		len(all),
		failures,
		total.Round(time.Millisecond),
		percentile(all, 50).Round(time.Microsecond),
		percentile(all, 95).Round(time.Microsecond),
		percentile(all, 99).Round(time.Microsecond),
	)
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}
