package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

// Redis is a Store backend over a local redis instance. All operations run
// through a circuit breaker so a flaky redis degrades to fast
// ErrUnavailable failures instead of hanging every request.
type Redis struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker
}

// NewRedis connects to redis using a connection string and verifies
// connectivity before returning.
func NewRedis(ctx context.Context, connString string) (*Redis, error) {
	opt, err := redis.ParseURL(connString)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return NewRedisWithClient(client), nil
}

// NewRedisWithClient wraps an existing client, mainly for tests.
func NewRedisWithClient(client *redis.Client) *Redis {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "redis-store",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Redis{client: client, breaker: breaker}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := r.breaker.Execute(func() (any, error) {
		data, err := r.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			// Absence is a valid outcome, not a breaker failure.
			return []byte(nil), nil
		}
		return data, err
	})
	if err != nil {
		return nil, mapRedisErr(err)
	}
	data := result.([]byte)
	if data == nil {
		return nil, ErrKeyNotFound
	}
	return data, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	_, err := r.breaker.Execute(func() (any, error) {
		return nil, r.client.Set(ctx, key, value, 0).Err()
	})
	if err != nil {
		return mapRedisErr(err)
	}
	return nil
}

func (r *Redis) Remove(ctx context.Context, key string) error {
	_, err := r.breaker.Execute(func() (any, error) {
		return nil, r.client.Del(ctx, key).Err()
	})
	if err != nil {
		return mapRedisErr(err)
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (r *Redis) Close() error { return r.client.Close() }

func mapRedisErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: circuit open", ErrUnavailable)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
