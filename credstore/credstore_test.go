package credstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisBackendTest(t *testing.T, cfg RedisConfig) (*Redis, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	backend, err := NewRedis(rdb, cfg)
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	return backend, mr, func() {
		rdb.Close()
		mr.Close()
	}
}

func sampleRecord() Record {
	return Record{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.UnixMilli(time.Now().Add(time.Hour).UnixMilli()),
		UpdatedAt:    time.UnixMilli(time.Now().UnixMilli()),
	}
}

// exerciseBackend runs the contract every backend must satisfy.
func exerciseBackend(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	if _, err := b.Load(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty backend, got %v", err)
	}

	want := sampleRecord()
	if err := b.Save(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := b.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.AccessToken != want.AccessToken || got.RefreshToken != want.RefreshToken {
		t.Fatalf("tokens mismatch: got %+v want %+v", got, want)
	}
	if !got.ExpiresAt.Equal(want.ExpiresAt) {
		t.Fatalf("expires_at mismatch: got %v want %v", got.ExpiresAt, want.ExpiresAt)
	}

	// Refresh-only is a valid state.
	refreshOnly := Record{RefreshToken: "refresh-2"}
	if err := b.Save(ctx, refreshOnly); err != nil {
		t.Fatalf("save refresh-only: %v", err)
	}
	got, err = b.Load(ctx)
	if err != nil {
		t.Fatalf("load refresh-only: %v", err)
	}
	if got.AccessToken != "" || got.RefreshToken != "refresh-2" {
		t.Fatalf("expected refresh-only record, got %+v", got)
	}

	if err := b.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := b.Clear(ctx); err != nil {
		t.Fatalf("second clear must be idempotent: %v", err)
	}
	if _, err := b.Load(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after clear, got %v", err)
	}

	if err := b.Save(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := b.Save(ctx, Record{}); err != nil {
		t.Fatalf("save empty: %v", err)
	}
	if _, err := b.Load(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("saving an empty record must clear, got %v", err)
	}
}

func TestMemoryBackendContract(t *testing.T) {
	exerciseBackend(t, NewMemory())
}

func TestMemorySharedProfilesAreIsolated(t *testing.T) {
	ctx := context.Background()
	base := NewMemory()
	work := base.NewMemoryShared("work")
	sameDefault := base.NewMemoryShared("")

	if err := base.Save(ctx, sampleRecord()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := work.Load(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("profiles must not share records, got %v", err)
	}
	if _, err := sameDefault.Load(ctx); err != nil {
		t.Fatalf("same profile must see shared write: %v", err)
	}
}

func TestRedisBackendContract(t *testing.T) {
	backend, _, done := newRedisBackendTest(t, RedisConfig{})
	defer done()

	if backend.Key() != "gs:cred:default" {
		t.Fatalf("unexpected key %q", backend.Key())
	}
	exerciseBackend(t, backend)
}

func TestRedisBackendTTL(t *testing.T) {
	backend, mr, done := newRedisBackendTest(t, RedisConfig{Prefix: "app", Profile: "cli", TTL: time.Minute})
	defer done()
	ctx := context.Background()

	if err := backend.Save(ctx, sampleRecord()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if ttl := mr.TTL("app:cred:cli"); ttl != time.Minute {
		t.Fatalf("expected ttl 1m, got %v", ttl)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := backend.Load(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected record to expire, got %v", err)
	}
}

func TestRedisBackendUnavailable(t *testing.T) {
	backend, mr, done := newRedisBackendTest(t, RedisConfig{})
	defer done()
	mr.Close()

	ctx := context.Background()
	if _, err := backend.Load(ctx); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
	if err := backend.Save(ctx, sampleRecord()); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}

func TestNewRedisRejectsNilClient(t *testing.T) {
	if _, err := NewRedis(nil, RedisConfig{}); err == nil {
		t.Fatal("expected error for nil client")
	}
}

func TestDiskBackendContract(t *testing.T) {
	backend, err := NewDisk(DiskConfig{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewDisk: %v", err)
	}
	exerciseBackend(t, backend)
}

func TestDiskBackendFilePermissions(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "creds")
	backend, err := NewDisk(DiskConfig{Dir: dir, Profile: "cli"})
	if err != nil {
		t.Fatalf("NewDisk: %v", err)
	}
	if err := backend.Save(context.Background(), sampleRecord()); err != nil {
		t.Fatalf("save: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, "cli.json"))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected 0600 file, got %o", perm)
	}
}

func TestDiskBackendSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := NewDisk(DiskConfig{Dir: dir})
	if err != nil {
		t.Fatalf("NewDisk: %v", err)
	}
	if err := first.Save(ctx, sampleRecord()); err != nil {
		t.Fatalf("save: %v", err)
	}

	second, err := NewDisk(DiskConfig{Dir: dir})
	if err != nil {
		t.Fatalf("NewDisk: %v", err)
	}
	got, err := second.Load(ctx)
	if err != nil {
		t.Fatalf("load after reopen: %v", err)
	}
	if got.RefreshToken != "refresh-1" {
		t.Fatalf("unexpected refresh token %q", got.RefreshToken)
	}
}

func TestDiskBackendCorruptFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "default.json"), []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	backend, err := NewDisk(DiskConfig{Dir: dir})
	if err != nil {
		t.Fatalf("NewDisk: %v", err)
	}
	if _, err := backend.Load(context.Background()); err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestNewDiskRequiresDir(t *testing.T) {
	if _, err := NewDisk(DiskConfig{}); err == nil {
		t.Fatal("expected error for empty dir")
	}
}
