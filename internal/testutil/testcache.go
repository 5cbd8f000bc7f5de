package testutil

import (
	"context"
	"time"

	"github.com/localink/localink/internal/store"
	"github.com/testcontainers/testcontainers-go"
	redisTC "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestRedis holds a containerized redis store for integration tests.
type TestRedis struct {
	Store     *store.Redis
	container *redisTC.RedisContainer
}

// SetupTestRedis starts a redis container and opens a store against it.
func SetupTestRedis(ctx context.Context) (*TestRedis, error) {
	container, err := redisTC.Run(ctx,
		"redis:8-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, err
	}

	connString, err := container.ConnectionString(ctx)
	if err != nil {
		if terr := container.Terminate(ctx); terr != nil {
			err = terr
		}
		return nil, err
	}

	st, err := store.NewRedis(ctx, connString)
	if err != nil {
		if terr := container.Terminate(ctx); terr != nil {
			err = terr
		}
		return nil, err
	}

	return &TestRedis{Store: st, container: container}, nil
}

// Teardown closes the store and terminates the container.
func (t *TestRedis) Teardown(ctx context.Context) {
	if t.Store != nil {
		t.Store.Close()
	}
	if t.container != nil {
		if err := t.container.Terminate(ctx); err != nil {
			return
		}
	}
}
