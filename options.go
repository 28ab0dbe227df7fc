package sealbox

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/walrus-haulout/sealbox-go/internal/crypto"
	"github.com/walrus-haulout/sealbox-go/internal/store"
)

// Cache is the expiring key/value store used for session handles and key
// material. Three interchangeable strategies ship with the SDK: memory
// ([NewMemoryCache]), Redis-backed ([NewRedisCache]), and disabled
// ([NewNoopCache]). Select one when constructing the client; strategies are
// never swapped at runtime.
type Cache = store.Store

// NewMemoryCache returns an in-process cache. Entries do not survive
// process restarts.
func NewMemoryCache() Cache { return store.NewMemory() }

// NewNoopCache disables caching entirely without touching call sites.
func NewNoopCache() Cache { return store.NewNoop() }

// NewRedisCache returns a durable cache on an existing Redis client.
// The connection is verified; an unreachable server is an error because the
// caller asked for durability.
func NewRedisCache(ctx context.Context, client *redis.Client, keyPrefix string) (Cache, error) {
	c, err := store.NewRedis(ctx, client, keyPrefix)
	if err != nil {
		return nil, &CacheError{Op: "connect", Err: err}
	}
	return c, nil
}

// Default client configuration values.
const (
	// DefaultEnvelopeThreshold is the payload size above which envelope
	// encryption is used. Preserved across versions: changing it only
	// affects newly encrypted data, detection is size-independent.
	DefaultEnvelopeThreshold = crypto.DefaultEnvelopeThreshold

	// DefaultKeyMaterialTTL bounds how long unsealed DEM keys stay cached.
	DefaultKeyMaterialTTL = 10 * time.Minute

	// DefaultRefreshThreshold is how close to expiry a session must be
	// before RefreshSession replaces it.
	DefaultRefreshThreshold = 2 * time.Minute
)

// clientConfig holds configuration for the client.
type clientConfig struct {
	cache             Cache
	envelopeThreshold int
	keyMaterialTTL    time.Duration
	refreshThreshold  time.Duration
	errorHook         func(error)
	now               func() time.Time
}

// Option configures the client.
type Option func(*clientConfig)

// WithCache sets the cache used for sessions and key material. The cache's
// lifecycle is owned by the caller; pass the same instance to cooperating
// clients to share cached sessions.
func WithCache(cache Cache) Option {
	return func(c *clientConfig) {
		c.cache = cache
	}
}

// WithEnvelopeThreshold sets the payload size, in bytes, above which
// envelope encryption is used. Default: 1 MiB.
func WithEnvelopeThreshold(bytes int) Option {
	return func(c *clientConfig) {
		c.envelopeThreshold = bytes
	}
}

// WithKeyMaterialTTL sets how long unsealed DEM keys are cached.
// Default: 10 minutes.
func WithKeyMaterialTTL(ttl time.Duration) Option {
	return func(c *clientConfig) {
		c.keyMaterialTTL = ttl
	}
}

// WithRefreshThreshold sets how close to expiry a session must be before
// RefreshSession replaces it. Default: 2 minutes.
func WithRefreshThreshold(threshold time.Duration) Option {
	return func(c *clientConfig) {
		c.refreshThreshold = threshold
	}
}

// WithErrorHook registers a callback for non-fatal background failures
// (cache writes that degraded, skipped batch items, monitor refresh
// failures). The hook must not block.
func WithErrorHook(hook func(error)) Option {
	return func(c *clientConfig) {
		c.errorHook = hook
	}
}

// withClock overrides the client clock. Test use only.
func withClock(now func() time.Time) Option {
	return func(c *clientConfig) {
		c.now = now
	}
}
