package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"codearena/internal/common/cache"
)

// TokenRepository is the blocklist for revoked access tokens. Entries
// expire together with the token they block, so the list stays small.
type TokenRepository interface {
	Block(ctx context.Context, token string, until time.Time) error
	IsBlocked(ctx context.Context, token string) (bool, error)
}

type RedisTokenRepository struct {
	cache cache.KeyOps
}

const tokenBlocklistKeyPrefix = "token:blocked:"

func NewTokenRepository(cacheClient cache.KeyOps) TokenRepository {
	return &RedisTokenRepository{cache: cacheClient}
}

func (r *RedisTokenRepository) Block(ctx context.Context, token string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		// Already expired, nothing to block.
		return nil
	}
	return r.cache.Set(ctx, tokenBlocklistKey(token), "blocked", ttl)
}

func (r *RedisTokenRepository) IsBlocked(ctx context.Context, token string) (bool, error) {
	n, err := r.cache.Exists(ctx, tokenBlocklistKey(token))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// tokenBlocklistKey hashes the token so raw credentials never land in Redis.
func tokenBlocklistKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return tokenBlocklistKeyPrefix + hex.EncodeToString(sum[:])
}
