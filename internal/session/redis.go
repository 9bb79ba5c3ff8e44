package session

import (
	"context"
	"fmt"
	"time"
)

// ContextBackend is the Redis-side storage of browser contexts. Each
// context is one hash whose fields are the Store keys.
// Implemented by *database.RedisDB.
type ContextBackend interface {
	GetContextField(ctx context.Context, contextID, field string) (string, bool, error)
	SetContextFields(ctx context.Context, contextID string, fields map[string]string, ttl time.Duration) error
	DeleteContextFields(ctx context.Context, contextID string, fields ...string) error
}

// RedisStore is the Store of one browser context, identified by the value
// of the context cookie. Every write refreshes the context TTL.
type RedisStore struct {
	backend   ContextBackend
	contextID string
	ttl       time.Duration
}

// NewRedisStore binds a backend to a browser context.
//
// Example:
//
//	store := session.NewRedisStore(redisDB, contextID, cfg.Session.TTL)
//	sess, err := session.Load(ctx, store)
func NewRedisStore(backend ContextBackend, contextID string, ttl time.Duration) *RedisStore {
	return &RedisStore{backend: backend, contextID: contextID, ttl: ttl}
}

// ContextID returns the browser context this store is bound to.
func (s *RedisStore) ContextID() string {
	return s.contextID
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := s.backend.GetContextField(ctx, s.contextID, key)
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return v, ok, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	return s.SetMany(ctx, map[string]string{key: value})
}

// SetMany writes all fields in one round trip.
func (s *RedisStore) SetMany(ctx context.Context, values map[string]string) error {
	if err := s.backend.SetContextFields(ctx, s.contextID, values, s.ttl); err != nil {
		return fmt.Errorf("failed to write browser context: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.backend.DeleteContextFields(ctx, s.contextID, keys...); err != nil {
		return fmt.Errorf("failed to delete from browser context: %w", err)
	}
	return nil
}
