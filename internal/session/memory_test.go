package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryBackend(t *testing.T) *MemoryBackend {
	t.Helper()
	backend, err := NewMemoryBackend(context.Background(), time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })
	return backend
}

func mustIdentity(t *testing.T, userID, userName string) Identity {
	t.Helper()
	id, err := NewIdentity(userID, userName)
	require.NoError(t, err)
	return id
}

func TestMemoryBackendRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := newMemoryBackend(t)

	got, err := backend.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	record := NewRecord(mustIdentity(t, "alice", "Alice"), time.Now(), time.Hour)
	require.NoError(t, backend.Set(ctx, "tok", record))

	got, err = backend.Get(ctx, "tok")
	require.NoError(t, err)
	require.NotNil(t, got)
	id, ok := got.Identity()
	require.True(t, ok)
	assert.Equal(t, "alice", id.UserID())
	assert.Equal(t, "Alice", id.UserName())

	require.NoError(t, backend.Destroy(ctx, "tok"))
	got, err = backend.Get(ctx, "tok")
	require.NoError(t, err)
	assert.Nil(t, got)

	// 存在しないトークンの削除はエラーにならない
	assert.NoError(t, backend.Destroy(ctx, "tok"))
}

func TestMemoryBackendLazyExpiry(t *testing.T) {
	ctx := context.Background()
	backend := newMemoryBackend(t)
	now := time.Now()
	backend.now = func() time.Time { return now }

	require.NoError(t, backend.Set(ctx, "tok", NewRecord(mustIdentity(t, "alice", "Alice"), now, time.Minute)))

	got, err := backend.Get(ctx, "tok")
	require.NoError(t, err)
	require.NotNil(t, got)

	backend.now = func() time.Time { return now.Add(time.Minute) }
	got, err = backend.Get(ctx, "tok")
	require.NoError(t, err)
	assert.Nil(t, got)

	// 期限切れのレコードは読み出し時に削除されている
	backend.now = func() time.Time { return now }
	got, err = backend.Get(ctx, "tok")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryBackendSetValidation(t *testing.T) {
	backend := newMemoryBackend(t)
	assert.Error(t, backend.Set(context.Background(), "", &Record{}))
	assert.Error(t, backend.Set(context.Background(), "tok", nil))
}

func TestMemoryBackendConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	backend := newMemoryBackend(t)
	id := mustIdentity(t, "alice", "Alice")

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token := fmt.Sprintf("tok-%d", i%4)
			for j := 0; j < 50; j++ {
				_ = backend.Set(ctx, token, NewRecord(id, time.Now(), time.Hour))
				if _, err := backend.Get(ctx, token); err != nil {
					t.Errorf("Get(%s): %v", token, err)
				}
				if j%10 == 0 {
					_ = backend.Destroy(ctx, token)
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestRecordIdentity(t *testing.T) {
	_, err := NewIdentity("", "Alice")
	assert.ErrorIs(t, err, ErrIncompleteIdentity)
	_, err = NewIdentity("alice", "")
	assert.ErrorIs(t, err, ErrIncompleteIdentity)

	cases := map[string]*Record{
		"nil":               nil,
		"not authenticated": {UserID: "alice", UserName: "Alice"},
		"missing user id":   {UserName: "Alice", IsAuthenticated: true},
		"missing user name": {UserID: "alice", IsAuthenticated: true},
	}
	for name, rec := range cases {
		t.Run(name, func(t *testing.T) {
			_, ok := rec.Identity()
			assert.False(t, ok)
		})
	}

	rec := &Record{UserID: "alice", UserName: "Alice", IsAuthenticated: true}
	_, ok := rec.Identity()
	assert.True(t, ok)
}
