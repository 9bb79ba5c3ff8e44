// Package cache provides a small Redis-backed key/value layer with JSON
// serialization. The gateway keeps OAuth CSRF state in it so a callback can
// land on any instance.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Cache wraps a Redis client and stores every value as JSON.
type Cache struct {
	client *redis.Client
}

// NewCache creates a new cache instance wrapping a Redis client.
//
// Example:
//
//	cache := cache.NewCache(redisDB.Client())
func NewCache(client *redis.Client) *Cache {
	return &Cache{
		client: client,
	}
}

// Take atomically reads and deletes a key (GETDEL). A second Take on the same
// key returns ErrCacheMiss, which makes it suitable for single-use values.
func (c *Cache) Take(ctx context.Context, key string, target interface{}) error {
	data, err := c.client.GetDel(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		log.Error().Err(err).Str("key", key).Msg("Failed to take from cache")
		return fmt.Errorf("cache getdel error: %w", err)
	}

	return decode(key, data, target)
}

// Set stores a value with the specified TTL.
//
// Example:
//
//	err := c.Set(ctx, cache.OAuthStateKey(state), OAuthState{Provider: "google"}, 10*time.Minute)
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to marshal data for cache")
		return fmt.Errorf("marshal error: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to set cache")
		return fmt.Errorf("cache set error: %w", err)
	}

	log.Debug().Str("key", key).Dur("ttl", ttl).Msg("Cached data")
	return nil
}

func decode(key string, data []byte, target interface{}) error {
	if err := json.Unmarshal(data, target); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to unmarshal cached data")
		return fmt.Errorf("unmarshal error: %w", err)
	}
	return nil
}
