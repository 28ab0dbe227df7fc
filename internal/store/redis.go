package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// scanBatch is the COUNT hint for keyspace scans.
const scanBatch = 100

// Redis is the durable cache strategy. Entries carry native Redis TTLs, so
// the server expires them even while no sealbox process is running.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis wraps an existing client. The connection is verified with a
// ping: the caller asked for a durable store, so an unreachable server is
// an error, not a silent degradation.
func NewRedis(ctx context.Context, client *redis.Client, prefix string) (*Redis, error) {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return &Redis{client: client, prefix: prefix}, nil
}

func (r *Redis) key(k string) string { return r.prefix + k }

// Get returns the value for key, or nil when absent or expired. Redis
// expires entries server-side, so an expired entry reads as absent.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %q: %v", ErrRedisUnavailable, key, err)
	}
	return value, nil
}

// Set stores value under key. A non-positive ttl stores without expiry.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: set %q: %v", ErrRedisUnavailable, key, err)
	}
	return nil
}

// Delete removes key.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: delete %q: %v", ErrRedisUnavailable, key, err)
	}
	return nil
}

// Has reports whether key is present and unexpired.
func (r *Redis) Has(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: exists %q: %v", ErrRedisUnavailable, key, err)
	}
	return n > 0, nil
}

// Clear removes every entry under this store's prefix.
func (r *Redis) Clear(ctx context.Context) error {
	return r.scanDelete(ctx, func(context.Context, string) (bool, error) {
		return true, nil
	})
}

// Cleanup removes prefix entries whose TTL has lapsed. Redis normally does
// this on its own; the explicit sweep keeps the Store contract uniform and
// covers keys written without TTL bookkeeping by older clients.
func (r *Redis) Cleanup(ctx context.Context) error {
	return r.scanDelete(ctx, func(ctx context.Context, key string) (bool, error) {
		ttl, err := r.client.TTL(ctx, key).Result()
		if err != nil {
			return false, err
		}
		// -1s means no expiry: keep. Anything else at or below zero has
		// lapsed (or is already gone, where the delete is a no-op).
		return ttl <= 0 && ttl != -1*time.Second, nil
	})
}

func (r *Redis) scanDelete(ctx context.Context, shouldDelete func(context.Context, string) (bool, error)) error {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		del, err := shouldDelete(ctx, key)
		if err != nil {
			continue
		}
		if del {
			if err := r.client.Del(ctx, key).Err(); err != nil {
				return fmt.Errorf("%w: delete %q: %v", ErrRedisUnavailable, key, err)
			}
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("%w: scan: %v", ErrRedisUnavailable, err)
	}
	return nil
}
