package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenBlacklist records revoked access tokens until they would have
// expired anyway.
type TokenBlacklist interface {
	// Revoke blacklists the token with the given id until expiresAt.
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	// RevokeUser blacklists every token of userID issued up to now. The
	// record is kept for ttl, which should cover the token lifetime.
	RevokeUser(ctx context.Context, userID int, ttl time.Duration) error
	// Revoked reports whether a token of userID with the given id and issue
	// time has been revoked.
	Revoked(ctx context.Context, tokenID string, userID int, issuedAt time.Time) (bool, error)
}

// NewTokenBlacklist returns a Redis backed blacklist, or one that never
// revokes anything when client is nil.
func NewTokenBlacklist(client *redis.Client) TokenBlacklist {
	if client == nil {
		return nopBlacklist{}
	}
	return &redisBlacklist{client: client, keySpace: "ojadmin:token"}
}

type redisBlacklist struct {
	client   *redis.Client
	keySpace string
}

func (b *redisBlacklist) tokenKey(tokenID string) string {
	return b.keySpace + ":revoked:" + tokenID
}

func (b *redisBlacklist) userKey(userID int) string {
	return b.keySpace + ":revoked-before:" + strconv.Itoa(userID)
}

func (b *redisBlacklist) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if tokenID == "" || ttl <= 0 {
		return nil
	}
	if err := b.client.Set(ctx, b.tokenKey(tokenID), 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (b *redisBlacklist) RevokeUser(ctx context.Context, userID int, ttl time.Duration) error {
	if err := b.client.Set(ctx, b.userKey(userID), time.Now().Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("revoke user tokens: %w", err)
	}
	return nil
}

func (b *redisBlacklist) Revoked(ctx context.Context, tokenID string, userID int, issuedAt time.Time) (bool, error) {
	pipe := b.client.Pipeline()
	var byID *redis.IntCmd
	if tokenID != "" {
		byID = pipe.Exists(ctx, b.tokenKey(tokenID))
	}
	cutoff := pipe.Get(ctx, b.userKey(userID))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("token blacklist: %w", err)
	}
	if byID != nil && byID.Val() > 0 {
		return true, nil
	}

	before, err := cutoff.Int64()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("token blacklist: %w", err)
	}
	// Issue times have second precision, so a token from the revoking
	// second is revoked as well.
	return issuedAt.Unix() <= before, nil
}

type nopBlacklist struct{}

func (nopBlacklist) Revoke(context.Context, string, time.Time) error               { return nil }
func (nopBlacklist) RevokeUser(context.Context, int, time.Duration) error          { return nil }
func (nopBlacklist) Revoked(context.Context, string, int, time.Time) (bool, error) { return false, nil }
