package credstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every Redis command failure.
var ErrRedisUnavailable = errors.New("credstore: redis unavailable")

const (
	fieldAccess    = "access"
	fieldRefresh   = "refresh"
	fieldExpiresAt = "expires_at"
	fieldUpdatedAt = "updated_at"
)

// RedisConfig configures a [Redis] backend.
type RedisConfig struct {
	Prefix  string // key prefix, default "gs"
	Profile string // default [DefaultProfile]
	// TTL expires the record when > 0. Each Save resets it.
	TTL time.Duration
}

// Redis stores the record as a hash at "<prefix>:cred:<profile>".
type Redis struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

// NewRedis returns a Redis backend. client may be a single-node, sentinel or cluster
// client.
func NewRedis(client redis.UniversalClient, cfg RedisConfig) (*Redis, error) {
	if client == nil {
		return nil, errors.New("credstore: redis client required")
	}
	if cfg.TTL < 0 {
		return nil, errors.New("credstore: redis TTL must be >= 0")
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "gs"
	}
	return &Redis{
		client: client,
		key:    prefix + ":cred:" + profileOrDefault(cfg.Profile),
		ttl:    cfg.TTL,
	}, nil
}

// Key returns the Redis key holding the record.
func (r *Redis) Key() string { return r.key }

func (r *Redis) Load(ctx context.Context) (Record, error) {
	fields, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(fields) == 0 {
		return Record{}, ErrNotFound
	}

	rec := Record{
		AccessToken:  fields[fieldAccess],
		RefreshToken: fields[fieldRefresh],
		ExpiresAt:    parseUnixMilli(fields[fieldExpiresAt]),
		UpdatedAt:    parseUnixMilli(fields[fieldUpdatedAt]),
	}
	if rec.IsZero() {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (r *Redis) Save(ctx context.Context, rec Record) error {
	if rec.IsZero() {
		return r.Clear(ctx)
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}

	values := map[string]any{
		fieldAccess:    rec.AccessToken,
		fieldRefresh:   rec.RefreshToken,
		fieldExpiresAt: formatUnixMilli(rec.ExpiresAt),
		fieldUpdatedAt: formatUnixMilli(rec.UpdatedAt),
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key)
		pipe.HSet(ctx, r.key, values)
		if r.ttl > 0 {
			pipe.Expire(ctx, r.key, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (r *Redis) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func formatUnixMilli(t time.Time) string {
	if t.IsZero() {
		return "0"
	}
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func parseUnixMilli(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
