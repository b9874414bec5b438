package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zqadmin/ojadmin/config"
)

// Login attempt limits.
const (
	MaxLoginFailures   = 15
	LoginFailureWindow = 5 * time.Minute
	LoginLockout       = 15 * time.Minute
)

// LoginGuard counts failed logins per username and locks out the client
// addresses that keep failing against a username past the limit.
type LoginGuard interface {
	// Locked returns the remaining lockout for addr, or zero. An address
	// trying a username that is over the limit is locked out on the spot.
	Locked(ctx context.Context, username, addr string) (time.Duration, error)
	// Fail records a failed login for username and reports whether addr is
	// now locked out.
	Fail(ctx context.Context, username, addr string) (bool, error)
	// Reset clears the failure count of username after a successful login.
	Reset(ctx context.Context, username string) error
}

// NewRedisClient builds a client for cfg, or returns nil when no address is
// configured.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
}

// NewLoginGuard returns a Redis backed guard, or a guard that never locks
// when client is nil.
func NewLoginGuard(client *redis.Client) LoginGuard {
	if client == nil {
		return nopLoginGuard{}
	}
	return &redisLoginGuard{
		client:   client,
		max:      MaxLoginFailures,
		window:   LoginFailureWindow,
		lockout:  LoginLockout,
		keySpace: "ojadmin:login",
	}
}

type redisLoginGuard struct {
	client   *redis.Client
	max      int64
	window   time.Duration
	lockout  time.Duration
	keySpace string
}

func (g *redisLoginGuard) failKey(username string) string {
	return g.keySpace + ":fail:user:" + username
}

func (g *redisLoginGuard) lockKey(addr string) string {
	return g.keySpace + ":lock:" + addr
}

func (g *redisLoginGuard) Locked(ctx context.Context, username, addr string) (time.Duration, error) {
	ttl, err := g.client.PTTL(ctx, g.lockKey(addr)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("login guard ttl: %w", err)
	}
	switch {
	case ttl > 0:
		return ttl, nil
	case ttl == -1: // lock key without expiry
		return g.lockout, nil
	}

	failures, err := g.client.Get(ctx, g.failKey(username)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("login guard count: %w", err)
	}
	if failures < g.max {
		return 0, nil
	}
	if err := g.lock(ctx, addr); err != nil {
		return 0, err
	}
	return g.lockout, nil
}

func (g *redisLoginGuard) Fail(ctx context.Context, username, addr string) (bool, error) {
	key := g.failKey(username)

	pipe := g.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, g.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("login guard incr: %w", err)
	}
	if incr.Val() < g.max {
		return false, nil
	}
	if err := g.lock(ctx, addr); err != nil {
		return false, err
	}
	return true, nil
}

func (g *redisLoginGuard) Reset(ctx context.Context, username string) error {
	return g.client.Del(ctx, g.failKey(username)).Err()
}

func (g *redisLoginGuard) lock(ctx context.Context, addr string) error {
	if err := g.client.Set(ctx, g.lockKey(addr), 1, g.lockout).Err(); err != nil {
		return fmt.Errorf("login guard lock: %w", err)
	}
	return nil
}

type nopLoginGuard struct{}

func (nopLoginGuard) Locked(context.Context, string, string) (time.Duration, error) { return 0, nil }
func (nopLoginGuard) Fail(context.Context, string, string) (bool, error)            { return false, nil }
func (nopLoginGuard) Reset(context.Context, string) error                           { return nil }
