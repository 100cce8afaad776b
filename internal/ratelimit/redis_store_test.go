package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		container.Terminate(context.Background())
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() {
		rdb.Close()
	})
	require.NoError(t, rdb.Ping(ctx).Err())
	return rdb
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	store := NewRedisStore(setupRedis(t), time.Hour)

	_, ok, err := store.LastAction(ctx, "alice", ActionComment)
	require.NoError(t, err)
	assert.False(t, ok)

	at := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, store.SetLastAction(ctx, "alice", ActionComment, at))

	last, ok, err := store.LastAction(ctx, "alice", ActionComment)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, at.Equal(last))

	clock := &fakeClock{now: at.Add(3 * time.Second)}
	limiter := NewLimiter(store, WithClock(clock.Now))
	decision, err := limiter.Check(ctx, "alice", ActionComment)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, 7, decision.RemainingSeconds())
}

func TestRateLimitKey(t *testing.T) {
	assert.Equal(t, "rate-limit:alice:comment", RateLimitKey("alice", ActionComment))
}
