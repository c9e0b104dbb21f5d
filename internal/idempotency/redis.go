package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	pendingValue = "pending"
	donePrefix   = "order:"
)

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Reserve(ctx context.Context, key string) (string, error) {
	ok, err := s.client.SetNX(ctx, key, pendingValue, pendingTTL).Result()
	if err != nil {
		return "", fmt.Errorf("failed to reserve idempotency key: %w", err)
	}
	if ok {
		return "", nil
	}

	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between the two calls; try once more.
		ok, err = s.client.SetNX(ctx, key, pendingValue, pendingTTL).Result()
		if err != nil {
			return "", fmt.Errorf("failed to reserve idempotency key: %w", err)
		}
		if ok {
			return "", nil
		}
		return "", ErrInFlight
	}
	if err != nil {
		return "", fmt.Errorf("failed to read idempotency key: %w", err)
	}
	if orderID, done := strings.CutPrefix(val, donePrefix); done {
		return orderID, nil
	}
	return "", ErrInFlight
}

func (s *RedisStore) Complete(ctx context.Context, key, orderID string) error {
	if err := s.client.Set(ctx, key, donePrefix+orderID, doneTTL).Err(); err != nil {
		return fmt.Errorf("failed to complete idempotency key: %w", err)
	}
	return nil
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}
