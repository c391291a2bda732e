// Package users は起動時に読み込む静的なユーザー一覧と、その照合機能を提供します。
package users

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// ErrInvalidCredentials は ID またはパスワードが一致しない場合のエラーです。
// どちらが誤っていたかは区別しません。
var ErrInvalidCredentials = errors.New("invalid credentials")

// User は認証情報ファイルの1レコードです。
type User struct {
	ID       string `json:"id" yaml:"id"`
	Password string `json:"password" yaml:"password"`
	Name     string `json:"name" yaml:"name"`
}

// Verifier は ID とパスワードを検証し、対応するユーザーを返します。
// 将来ハッシュ化パスワードや外部IdPに差し替えられるよう、認証フローはこのインターフェースにのみ依存します。
type Verifier interface {
	Verify(ctx context.Context, id, password string) (User, error)
}

// Store は読み込み済みユーザー一覧を保持します。読み込み後は変更されません。
type Store struct {
	users []User
}

var _ Verifier = (*Store)(nil)

// NewStore は与えられたユーザー一覧から Store を作成します。
func NewStore(users []User) *Store {
	copied := make([]User, len(users))
	copy(copied, users)
	return &Store{users: copied}
}

// Load はファイルからユーザー一覧を読み込みます。
// 読み込みに失敗してもプロセスは停止させず、エラーを記録して空の一覧を返します。
// この場合、すべてのログインは 401 になります。
func Load(path string, logger zerolog.Logger) *Store {
	users, err := LoadStrict(path)
	if err != nil {
		logger.Error().Err(err).Str("path", path).Msg("failed to load users; all logins will be rejected")
		return NewStore(nil)
	}
	logger.Info().Str("path", path).Int("count", len(users)).Msg("users loaded")
	return NewStore(users)
}

// LoadStrict はファイルを解析し、失敗時はエラーを返します。
// 拡張子が .yaml / .yml の場合は YAML、それ以外は JSON として扱います。
// 未知のフィールドはエラーになります。
func LoadStrict(path string) ([]User, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read users file: %w", err)
	}

	var users []User
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&users); err != nil {
			return nil, fmt.Errorf("parse users yaml: %w", err)
		}
		var extra any
		if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse users yaml: unexpected content after first document")
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&users); err != nil {
			return nil, fmt.Errorf("parse users json: %w", err)
		}
		if _, err := dec.Token(); !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse users json: unexpected content after top-level array")
		}
	}

	seen := make(map[string]struct{}, len(users))
	for i, u := range users {
		if u.ID == "" || u.Password == "" || u.Name == "" {
			return nil, fmt.Errorf("users[%d]: id, password and name are required", i)
		}
		if _, dup := seen[u.ID]; dup {
			return nil, fmt.Errorf("users[%d]: duplicate id %q", i, u.ID)
		}
		seen[u.ID] = struct{}{}
	}
	return users, nil
}

// Len は読み込まれているユーザー数を返します。
func (s *Store) Len() int {
	return len(s.users)
}

// Find はファイル順に線形探索し、ID とパスワードが完全一致するユーザーを返します。
func (s *Store) Find(id, password string) (User, bool) {
	for _, u := range s.users {
		if u.ID == id && u.Password == password {
			return u, true
		}
	}
	return User{}, false
}

// Verify は Verifier の実装です。
func (s *Store) Verify(_ context.Context, id, password string) (User, error) {
	u, ok := s.Find(id, password)
	if !ok {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}
