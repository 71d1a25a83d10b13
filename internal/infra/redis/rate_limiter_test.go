package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_FixedWindow(t *testing.T) {
	client := newMemClient()
	rl := NewRateLimiter(client)
	ctx := context.Background()
	key := ClientKey("ip:10.0.0.1", "/api/v1/analyze")

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, key, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "request %d should pass", i+1)
	}
	ok, err := rl.Allow(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Minute, client.ttl[key], "first hit sets the window expiry")

	other, err := rl.Allow(ctx, ClientKey("ip:10.0.0.2", "/api/v1/analyze"), 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, other)
}

func TestRateLimiter_BackendError(t *testing.T) {
	client := newMemClient()
	client.failAll = errors.New("redis down")

	ok, err := NewRateLimiter(client).Allow(context.Background(), "k", 1, time.Minute)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestClientKey(t *testing.T) {
	assert.Equal(t, "rate_limit:sub:alice:/api/v1/analyze", ClientKey("sub:alice", "/api/v1/analyze"))
}
