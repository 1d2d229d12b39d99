package auth

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrRevocationUnavailable is returned by Revoke when no revocation store
// is attached.
var ErrRevocationUnavailable = errors.New("token revocation unavailable")

// RedisConfig holds connection settings for the revocation store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisRevocationList stores revoked token hashes in Redis with a TTL equal
// to the remaining token lifetime, so entries disappear once the token
// could no longer verify anyway.
type RedisRevocationList struct {
	client *redis.Client
	prefix string
	logger zerolog.Logger
}

// NewRedisRevocationList creates a revocation list. Call Ping before use to
// learn whether Redis is reachable.
func NewRedisRevocationList(cfg RedisConfig, logger zerolog.Logger) *RedisRevocationList {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisRevocationList{
		client: client,
		prefix: cfg.Prefix,
		logger: logger.With().Str("component", "revocation").Logger(),
	}
}

// Ping checks connectivity.
func (r *RedisRevocationList) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Revoke records tokenHash until the given time. Already expired tokens are
// not stored.
func (r *RedisRevocationList) Revoke(ctx context.Context, tokenHash string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, r.key(tokenHash), 1, ttl).Err(); err != nil {
		return err
	}
	r.logger.Debug().Dur("ttl", ttl).Msg("token revoked")
	return nil
}

// IsRevoked reports whether tokenHash was revoked.
func (r *RedisRevocationList) IsRevoked(ctx context.Context, tokenHash string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(tokenHash)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Close releases the Redis connection pool.
func (r *RedisRevocationList) Close() error {
	return r.client.Close()
}

func (r *RedisRevocationList) key(tokenHash string) string {
	return r.prefix + "revoked:" + tokenHash
}
