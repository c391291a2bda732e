// Package session はサーバー側セッションの保存先と、gin-contrib/sessions 用のストアを提供します。
//
// Cookie にはランダムなセッショントークンのみを格納し、ユーザー情報は Backend に保存します。
package session

import (
	"context"
	"errors"
	"time"
)

// ErrIncompleteIdentity は userId / userName のいずれかが空の場合のエラーです。
var ErrIncompleteIdentity = errors.New("session: identity requires user id and user name")

// Identity は認証済みセッションの利用者です。
// NewIdentity を通してのみ作成できるため、フィールドが欠けた Identity は存在しません。
type Identity struct {
	userID   string
	userName string
}

// NewIdentity は Identity を作成します。
func NewIdentity(userID, userName string) (Identity, error) {
	if userID == "" || userName == "" {
		return Identity{}, ErrIncompleteIdentity
	}
	return Identity{userID: userID, userName: userName}, nil
}

// UserID はユーザーIDを返します。
func (i Identity) UserID() string { return i.userID }

// UserName は表示名を返します。
func (i Identity) UserName() string { return i.userName }

// Record は Backend に保存されるセッションの内容です。
type Record struct {
	UserID          string    `json:"userId"`
	UserName        string    `json:"userName"`
	IsAuthenticated bool      `json:"isAuthenticated"`
	CreatedAt       time.Time `json:"createdAt"`
	ExpiresAt       time.Time `json:"expiresAt"`
}

// NewRecord は認証済みのレコードを作成します。
func NewRecord(id Identity, now time.Time, maxAge time.Duration) *Record {
	return &Record{
		UserID:          id.userID,
		UserName:        id.userName,
		IsAuthenticated: true,
		CreatedAt:       now,
		ExpiresAt:       now.Add(maxAge),
	}
}

// Identity はレコードが有効な認証済みセッションであれば Identity を返します。
// isAuthenticated が false、またはフィールドが欠けている場合は「セッションなし」として扱います。
func (r *Record) Identity() (Identity, bool) {
	if r == nil || !r.IsAuthenticated {
		return Identity{}, false
	}
	id, err := NewIdentity(r.UserID, r.UserName)
	if err != nil {
		return Identity{}, false
	}
	return id, true
}

// Expired は now の時点で期限切れかどうかを返します。
func (r *Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

// Backend はトークンをキーにセッションレコードを保存します。
// 実装は複数のリクエストから同時に呼ばれても安全でなければなりません。
type Backend interface {
	// Get はレコードを返します。存在しない、または期限切れの場合は nil, nil を返します。
	Get(ctx context.Context, token string) (*Record, error)
	// Set はレコードを保存します（既存の場合は上書き）。
	Set(ctx context.Context, token string, record *Record) error
	// Destroy はレコードを削除します。存在しない場合もエラーにはなりません。
	Destroy(ctx context.Context, token string) error
}
