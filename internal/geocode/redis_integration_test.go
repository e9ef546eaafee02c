package geocode

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestIntegration_RedisCache(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	endpoint, err := ctr.Endpoint(ctx, "")
	require.NoError(t, err)

	client, err := DialRedis(ctx, "redis://"+endpoint+"/0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	cache := NewRedisCache(client, time.Minute)

	_, ok, err := cache.Get(ctx, "rev:53.75700,21.73500")
	require.NoError(t, err)
	assert.False(t, ok)

	want := Place{Category: "natural", Type: "water", DisplayName: "Jezioro Śniardwy"}
	require.NoError(t, cache.Set(ctx, "rev:53.75700,21.73500", want))

	got, ok, err := cache.Get(ctx, "rev:53.75700,21.73500")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)

	ttl, err := client.TTL(ctx, redisKeyPrefix+"rev:53.75700,21.73500").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
