package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
)

// MemoryBackend はプロセス内に保存する Backend です。再起動でセッションは失われます。
// 期限切れのレコードは読み出し時に削除し、bigcache の LifeWindow 経過後のエントリも定期的に破棄されます。
type MemoryBackend struct {
	cache *bigcache.BigCache
	now   func() time.Time
}

var _ Backend = (*MemoryBackend)(nil)

// NewMemoryBackend は maxAge をエントリ寿命とした MemoryBackend を作成します。
func NewMemoryBackend(ctx context.Context, maxAge time.Duration) (*MemoryBackend, error) {
	cfg := bigcache.DefaultConfig(maxAge)
	// セッション数は少ないため、初期確保量を既定値より小さくする
	cfg.Shards = 64
	cfg.MaxEntriesInWindow = 1024
	cfg.MaxEntrySize = 256
	cfg.CleanWindow = time.Minute
	cfg.Verbose = false
	cache, err := bigcache.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("session: create memory cache: %w", err)
	}
	return &MemoryBackend{
		cache: cache,
		now:   time.Now,
	}, nil
}

// Get はレコードを取得します。
func (m *MemoryBackend) Get(_ context.Context, token string) (*Record, error) {
	data, err := m.cache.Get(token)
	if err != nil {
		if errors.Is(err, bigcache.ErrEntryNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("session: failed to unmarshal: %w", err)
	}
	if record.Expired(m.now()) {
		_ = m.cache.Delete(token)
		return nil, nil
	}
	return &record, nil
}

// Set はレコードを保存します。
func (m *MemoryBackend) Set(_ context.Context, token string, record *Record) error {
	if token == "" || record == nil {
		return fmt.Errorf("session: missing token or record")
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("session: failed to marshal: %w", err)
	}
	return m.cache.Set(token, data)
}

// Destroy はレコードを削除します。
func (m *MemoryBackend) Destroy(_ context.Context, token string) error {
	err := m.cache.Delete(token)
	if err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
		return err
	}
	return nil
}

// Close はバックグラウンドの掃除処理を停止します。
func (m *MemoryBackend) Close() error {
	return m.cache.Close()
}
