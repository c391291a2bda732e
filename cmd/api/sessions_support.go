package main

import (
	"context"
	"fmt"
	"io"

	"github.com/kdlab/kdlab-server/internal/config"
	"github.com/kdlab/kdlab-server/internal/session"
)

type closableBackend interface {
	session.Backend
	io.Closer
}

// setupSessions は設定に応じたセッションの保存先を作成します。
func setupSessions(ctx context.Context, cfg *config.Config) (closableBackend, error) {
	switch cfg.SessionBackend {
	case config.SessionBackendRedis:
		backend, err := session.NewRedisBackendFromURL(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return backend, nil
	case config.SessionBackendMemory:
		backend, err := session.NewMemoryBackend(ctx, cfg.SessionMaxAge)
		if err != nil {
			return nil, err
		}
		return backend, nil
	default:
		return nil, fmt.Errorf("unknown session backend: %q", cfg.SessionBackend)
	}
}
