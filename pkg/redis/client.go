// Package redis holds the two short-lived coordination records the billing
// processes keep outside Postgres: webhook replay markers and the cron lock.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/artisancrate/billing-engine/pkg/config"
	"github.com/artisancrate/billing-engine/pkg/logger"
)

const keyNamespace = "ac"

// releaseScript deletes KEYS[1] only while it still holds ARGV[1], so a
// holder whose TTL lapsed cannot free a lock someone else now owns.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

var errNotInitialized = errors.New("redis client not initialized")

type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	SetNX(context.Context, string, any, time.Duration) *redis.BoolCmd
	Del(context.Context, ...string) *redis.IntCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

// ReplayStore records webhook deliveries already seen within a TTL.
type ReplayStore interface {
	MarkOnce(ctx context.Context, scope, id string, ttl time.Duration) (bool, error)
	Unmark(ctx context.Context, scope, id string) error
}

// LockStore is an owner-tagged mutex with expiry.
type LockStore interface {
	AcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name, owner string) (bool, error)
}

type Client struct {
	store cmdable
	raw   *redis.Client
}

var (
	_ ReplayStore = (*Client)(nil)
	_ LockStore   = (*Client)(nil)
)

// New connects and pings before returning.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"redis_addr": opts.Addr, "redis_db": opts.DB}), "redis connection established")
	}
	return &Client{store: raw, raw: raw}, nil
}

// optionsFromConfig prefers the URL form; explicit config only fills the
// settings the URL left unset.
func optionsFromConfig(cfg config.RedisConfig) (*redis.Options, error) {
	var opts *redis.Options
	switch {
	case cfg.URL != "":
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	case cfg.Address != "":
		opts = &redis.Options{Addr: cfg.Address, Password: cfg.Password}
	default:
		return nil, errors.New("redis url or address is required")
	}

	fillInt(&opts.DB, cfg.DB)
	fillInt(&opts.PoolSize, cfg.PoolSize)
	fillInt(&opts.MinIdleConns, cfg.MinIdleConns)
	fillDuration(&opts.DialTimeout, cfg.DialTimeout)
	fillDuration(&opts.ReadTimeout, cfg.ReadTimeout)
	fillDuration(&opts.WriteTimeout, cfg.WriteTimeout)
	return opts, nil
}

func fillInt(dst *int, v int) {
	if *dst == 0 {
		*dst = v
	}
}

func fillDuration(dst *time.Duration, v time.Duration) {
	if *dst == 0 {
		*dst = v
	}
}

// MarkOnce stores a replay marker and reports whether it was new.
func (c *Client) MarkOnce(ctx context.Context, scope, id string, ttl time.Duration) (bool, error) {
	if c.store == nil {
		return false, errNotInitialized
	}
	return c.store.SetNX(ctx, ReplayKey(scope, id), "1", ttl).Result()
}

// Unmark drops a replay marker.
func (c *Client) Unmark(ctx context.Context, scope, id string) error {
	if c.store == nil {
		return errNotInitialized
	}
	return c.store.Del(ctx, ReplayKey(scope, id)).Err()
}

// AcquireLock takes lock name for owner unless someone else holds it.
func (c *Client) AcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	if c.store == nil {
		return false, errNotInitialized
	}
	return c.store.SetNX(ctx, LockKey(name), owner, ttl).Result()
}

// ReleaseLock frees lock name if owner still holds it and reports whether a
// key was deleted.
func (c *Client) ReleaseLock(ctx context.Context, name, owner string) (bool, error) {
	if c.store == nil {
		return false, errNotInitialized
	}
	n, err := c.store.Eval(ctx, releaseScript, []string{LockKey(name)}, owner).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (c *Client) Ping(ctx context.Context) error {
	if c.store == nil {
		return errNotInitialized
	}
	return c.store.Ping(ctx).Err()
}

func (c *Client) Close() error {
	if c.raw == nil {
		return nil
	}
	return c.raw.Close()
}

// ReplayKey is ac:replay:<scope>:<id>.
func ReplayKey(scope, id string) string { return buildKey("replay", scope, id) }

// LockKey is ac:lock:<name>.
func LockKey(name string) string { return buildKey("lock", name) }

func buildKey(parts ...string) string {
	clean := []string{keyNamespace}
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			clean = append(clean, part)
		}
	}
	return strings.Join(clean, ":")
}
