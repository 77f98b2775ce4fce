package codes

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements AttemptStore on Redis, so the attempt budget holds
// across server instances.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore initializes a Redis-backed attempt store and verifies the
// connection.
func NewRedisStore(addr, password string, db int, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func attemptKey(fileID string) string {
	return fmt.Sprintf("code_attempts:%s", fileID)
}

func (s *RedisStore) Incr(ctx context.Context, fileID string) (int64, error) {
	key := attemptKey(fileID)

	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to incr attempts: %w", err)
	}
	if n == 1 {
		// first attempt opens the window
		if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
			return n, fmt.Errorf("failed to set attempts ttl: %w", err)
		}
	}
	return n, nil
}

func (s *RedisStore) Reset(ctx context.Context, fileID string) error {
	if err := s.client.Del(ctx, attemptKey(fileID)).Err(); err != nil {
		return fmt.Errorf("failed to reset attempts: %w", err)
	}
	return nil
}
