package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// REDIS_TEST_URL が設定されている場合のみ実行します（例: redis://127.0.0.1:6379/15）。
func TestRedisBackend(t *testing.T) {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL is not set")
	}
	ctx := context.Background()
	backend, err := NewRedisBackendFromURL(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	token, err := NewToken()
	require.NoError(t, err)

	id := mustIdentity(t, "alice", "Alice")
	require.NoError(t, backend.Set(ctx, token, NewRecord(id, time.Now(), time.Minute)))

	ttl, err := backend.rdb.TTL(ctx, redisKey(token)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)

	got, err := backend.Get(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Alice", got.UserName)

	require.NoError(t, backend.Destroy(ctx, token))
	got, err = backend.Get(ctx, token)
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.Error(t, backend.Set(ctx, token, NewRecord(id, time.Now().Add(-time.Hour), time.Minute)))
}

func TestNewRedisBackendFromURLInvalid(t *testing.T) {
	_, err := NewRedisBackendFromURL(context.Background(), "not-a-url://")
	assert.Error(t, err)
}
