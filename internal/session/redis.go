package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "session:"

// RedisBackend は Redis に保存する Backend です。複数プロセスでセッションを共有できます。
// 有効期限は Redis の TTL で管理します。
type RedisBackend struct {
	rdb *redis.Client
}

var _ Backend = (*RedisBackend)(nil)

// NewRedisBackend は RedisBackend を作成します。
func NewRedisBackend(rdb *redis.Client) *RedisBackend {
	return &RedisBackend{rdb: rdb}
}

// NewRedisBackendFromURL は接続URLからクライアントを生成し、疎通を確認します。
func NewRedisBackendFromURL(ctx context.Context, rawURL string) (*RedisBackend, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("session: parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("session: ping redis: %w", err)
	}
	return NewRedisBackend(rdb), nil
}

// Get はレコードを取得します。
func (r *RedisBackend) Get(ctx context.Context, token string) (*Record, error) {
	data, err := r.rdb.Get(ctx, redisKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("session: failed to unmarshal: %w", err)
	}
	if record.Expired(time.Now()) {
		return nil, nil
	}
	return &record, nil
}

// Set はレコードを ExpiresAt までの TTL 付きで保存します。
func (r *RedisBackend) Set(ctx context.Context, token string, record *Record) error {
	if token == "" || record == nil {
		return fmt.Errorf("session: missing token or record")
	}
	ttl := time.Until(record.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session: expires_at must be in the future")
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("session: failed to marshal: %w", err)
	}
	return r.rdb.Set(ctx, redisKey(token), data, ttl).Err()
}

// Destroy はレコードを削除します。
func (r *RedisBackend) Destroy(ctx context.Context, token string) error {
	return r.rdb.Del(ctx, redisKey(token)).Err()
}

// Close は Redis クライアントを閉じます。
func (r *RedisBackend) Close() error {
	return r.rdb.Close()
}

func redisKey(token string) string {
	return keyPrefix + token
}
