package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is the expiring cache contract shared by all strategies.
//
// Get returns (nil, nil) on a miss; an expired entry counts as a miss and
// is deleted on access. A ttl of zero or less in Set stores the entry
// without expiry.
type Store interface {
	// Get returns the value for key, or nil if absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key with the given time-to-live.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is a no-op.
	Delete(ctx context.Context, key string) error

	// Has reports whether key is present and unexpired.
	Has(ctx context.Context, key string) (bool, error)

	// Clear removes every entry owned by this store.
	Clear(ctx context.Context) error

	// Cleanup sweeps the keyspace and removes entries whose TTL has lapsed.
	Cleanup(ctx context.Context) error
}

// Strategy selects a cache backend.
type Strategy string

const (
	// StrategyMemory keeps entries in an in-process map.
	StrategyMemory Strategy = "memory"
	// StrategyRedis keeps entries in Redis, surviving process restarts.
	StrategyRedis Strategy = "redis"
	// StrategyNone disables caching: every read misses, writes are dropped.
	StrategyNone Strategy = "none"
)

// DefaultKeyPrefix namespaces sealbox entries in a shared Redis.
const DefaultKeyPrefix = "sealbox:"

// ErrRedisUnavailable is returned when the Redis strategy is requested but
// the server cannot be reached.
var ErrRedisUnavailable = errors.New("redis store unavailable")

// Config holds construction parameters shared by all strategies.
type Config struct {
	// Strategy names the backend. Empty defaults to StrategyMemory.
	Strategy Strategy

	// Redis is an already-configured client. Takes precedence over RedisAddr.
	Redis *redis.Client

	// RedisAddr is a host:port used to build a client when Redis is nil.
	RedisAddr     string
	RedisUsername string
	RedisPassword string

	// KeyPrefix namespaces keys. Empty defaults to DefaultKeyPrefix.
	KeyPrefix string
}

// New constructs the store named by cfg.Strategy. Requesting the Redis
// strategy without a reachable server is an error rather than a silent
// fallback: the caller asked for durability.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Strategy {
	case StrategyNone:
		return NewNoop(), nil
	case StrategyRedis:
		client := cfg.Redis
		if client == nil {
			if cfg.RedisAddr == "" {
				return nil, fmt.Errorf("%w: no client or address configured", ErrRedisUnavailable)
			}
			client = redis.NewClient(&redis.Options{
				Addr:     cfg.RedisAddr,
				Username: cfg.RedisUsername,
				Password: cfg.RedisPassword,
			})
		}
		return NewRedis(ctx, client, cfg.KeyPrefix)
	case StrategyMemory, "":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown cache strategy %q", cfg.Strategy)
	}
}
