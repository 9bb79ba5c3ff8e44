package testutil

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/ieraasyl/ChatGateway/internal/database"
	"github.com/ieraasyl/ChatGateway/pkg/config"
	"github.com/redis/go-redis/v9"
)

// SetupMiniRedis starts a miniredis instance that is closed when the test ends.
func SetupMiniRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	return miniredis.RunT(t)
}

// NewTestRedisDB creates a RedisDB connected to miniredis.
func NewTestRedisDB(t *testing.T, mr *miniredis.Miniredis) *database.RedisDB {
	t.Helper()

	cfg := &config.RedisConfig{
		Host:     mr.Host(),
		Port:     mr.Port(),
		PoolSize: 5,
	}

	db, err := database.NewRedisDB(cfg)
	if err != nil {
		t.Fatalf("Failed to create test Redis DB: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

// NewTestRedisClient creates a bare Redis client connected to miniredis.
func NewTestRedisClient(t *testing.T, mr *miniredis.Miniredis) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return client
}
