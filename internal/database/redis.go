// Package database wraps the gateway's Redis connection. Redis holds the
// server-side browser contexts that stand in for local storage, the device
// record of each context, and the rate limiting counters.
package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ieraasyl/ChatGateway/pkg/config"
	"github.com/ieraasyl/ChatGateway/pkg/utils"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisDB wraps a Redis client with the operations the gateway needs.
//
// Key patterns:
//   - "browser_ctx:{contextID}"       hash of session keys (accessToken, userData, ...)
//   - "browser_ctx_info:{contextID}"  hash with device_info, ip_address, created_at
//   - "ratelimit:{ip}:{endpoint}"     counter with TTL equal to the window
type RedisDB struct {
	client *redis.Client
}

// ContextInfo describes the device that opened a browser context.
type ContextInfo struct {
	DeviceInfo string    `json:"device_info"`
	IPAddress  string    `json:"ip_address"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewRedisDB creates a Redis connection and verifies it with retries.
//
// Parameters:
//   - cfg: Redis configuration including host, port, password, database, and pool size
//
// Returns the connected client or an error if every attempt fails.
//
// Example:
//
//	redisDB, err := database.NewRedisDB(&cfg.Redis)
//	if err != nil {
//	    log.Fatal().Err(err).Msg("Redis connection failed")
//	}
//	defer redisDB.Close()
func NewRedisDB(cfg *config.RedisConfig) (*RedisDB, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := utils.Retry(ctx, utils.DatabaseRetryConfig(), func() error {
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		defer pingCancel()

		if err := client.Ping(pingCtx).Err(); err != nil {
			log.Warn().Err(err).Msg("Failed to ping Redis, retrying...")
			return err
		}
		return nil
	})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info().Str("addr", cfg.Address()).Msg("Successfully connected to Redis")

	return &RedisDB{client: client}, nil
}

// Close closes the Redis connection.
func (r *RedisDB) Close() error {
	return r.client.Close()
}

// Client returns the underlying client, used by pkg/cache.
func (r *RedisDB) Client() *redis.Client {
	return r.client
}

// Ping checks if Redis is alive. Used by the readiness probe.
func (r *RedisDB) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func contextKey(contextID string) string {
	return fmt.Sprintf("browser_ctx:%s", contextID)
}

func contextInfoKey(contextID string) string {
	return fmt.Sprintf("browser_ctx_info:%s", contextID)
}

// GetContextField reads one field of a browser context.
// The boolean is false when the field (or the whole context) is missing.
func (r *RedisDB) GetContextField(ctx context.Context, contextID, field string) (string, bool, error) {
	v, err := r.client.HGet(ctx, contextKey(contextID), field).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get context field: %w", err)
	}
	return v, true, nil
}

// SetContextFields writes fields of a browser context and resets its TTL.
// Both commands run in one MULTI/EXEC transaction.
//
// Example:
//
//	err := redisDB.SetContextFields(ctx, contextID, map[string]string{
//	    "accessToken":  "A",
//	    "authProvider": "local",
//	}, 7*24*time.Hour)
func (r *RedisDB) SetContextFields(ctx context.Context, contextID string, fields map[string]string, ttl time.Duration) error {
	if len(fields) == 0 {
		return nil
	}
	key := contextKey(contextID)
	values := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		values[k] = v
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, values)
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to set context fields: %w", err)
	}
	return nil
}

// DeleteContextFields removes fields from a browser context.
func (r *RedisDB) DeleteContextFields(ctx context.Context, contextID string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	if err := r.client.HDel(ctx, contextKey(contextID), fields...).Err(); err != nil {
		return fmt.Errorf("failed to delete context fields: %w", err)
	}
	return nil
}

// TouchContext extends the TTL of a browser context and its device record.
// Called on every request that carries the context cookie, giving contexts
// a sliding expiry.
func (r *RedisDB) TouchContext(ctx context.Context, contextID string, ttl time.Duration) error {
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Expire(ctx, contextKey(contextID), ttl)
		pipe.Expire(ctx, contextInfoKey(contextID), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to refresh context expiry: %w", err)
	}
	return nil
}

// SetContextInfo records the device that created a browser context.
func (r *RedisDB) SetContextInfo(ctx context.Context, contextID string, info ContextInfo, ttl time.Duration) error {
	key := contextInfoKey(contextID)
	data := map[string]interface{}{
		"device_info": info.DeviceInfo,
		"ip_address":  info.IPAddress,
		"created_at":  info.CreatedAt.Unix(),
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, data)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to set context info: %w", err)
	}
	return nil
}

// GetContextInfo returns the device record of a browser context.
func (r *RedisDB) GetContextInfo(ctx context.Context, contextID string) (*ContextInfo, error) {
	result, err := r.client.HGetAll(ctx, contextInfoKey(contextID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get context info: %w", err)
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("context info not found")
	}

	info := &ContextInfo{
		DeviceInfo: result["device_info"],
		IPAddress:  result["ip_address"],
	}
	if ts, err := strconv.ParseInt(result["created_at"], 10, 64); err == nil {
		info.CreatedAt = time.Unix(ts, 0)
	}
	return info, nil
}

// DeleteContext removes a browser context and its device record.
func (r *RedisDB) DeleteContext(ctx context.Context, contextID string) error {
	if err := r.client.Del(ctx, contextKey(contextID), contextInfoKey(contextID)).Err(); err != nil {
		return fmt.Errorf("failed to delete context: %w", err)
	}
	return nil
}

// IncrementRateLimit increments the fixed-window counter for ip+endpoint
// and returns the count including this request. The window starts with the
// first request.
func (r *RedisDB) IncrementRateLimit(ctx context.Context, ip, endpoint string, window time.Duration) (int64, error) {
	key := fmt.Sprintf("ratelimit:%s:%s", ip, endpoint)

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	if count == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, fmt.Errorf("failed to set rate limit expiry: %w", err)
		}
	}

	return count, nil
}
