package session

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gorilla/securecookie"
	gsessions "github.com/gorilla/sessions"
	"golang.org/x/crypto/hkdf"
)

// CookieName はセッションCookieの名前です。
const CookieName = "kdlab_session"

// DefaultMaxAge は Options で MaxAge が指定されない場合のセッション寿命です。
const DefaultMaxAge = 24 * time.Hour

const tokenBytes = 32 // 256 bits

var keyDerivationInfo = []byte("kdlab-server session cookie v1")

// gorilla の Values に格納する内部キー
type valueKey int

const (
	identityKey valueKey = iota
	rotateKey
	destroyKey
)

// ErrEmptySecret は秘密鍵が空の場合のエラーです。
var ErrEmptySecret = errors.New("session: secret must not be empty")

// Store は gin-contrib/sessions の Store 実装です。
// Cookie には署名・暗号化したトークンのみを格納し、内容は Backend に保存します。
type Store struct {
	backend Backend
	codecs  []securecookie.Codec
	options *gsessions.Options
	now     func() time.Time
}

var _ sessions.Store = (*Store)(nil)

// NewStore は secret から Cookie 用の鍵を導出して Store を作成します。
func NewStore(backend Backend, secret []byte) (*Store, error) {
	if backend == nil {
		return nil, errors.New("session: backend is nil")
	}
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}

	kdf := hkdf.New(sha256.New, secret, nil, keyDerivationInfo)
	hashKey := make([]byte, 64)
	blockKey := make([]byte, 32)
	if _, err := io.ReadFull(kdf, hashKey); err != nil {
		return nil, fmt.Errorf("session: derive hash key: %w", err)
	}
	if _, err := io.ReadFull(kdf, blockKey); err != nil {
		return nil, fmt.Errorf("session: derive block key: %w", err)
	}

	s := &Store{
		backend: backend,
		codecs:  []securecookie.Codec{securecookie.New(hashKey, blockKey)},
		now:     time.Now,
	}
	s.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(DefaultMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return s, nil
}

// Options は Cookie の属性を設定します。MaxAge はレコードの有効期限にも使われます。
func (s *Store) Options(options sessions.Options) {
	s.options = options.ToGorillaOptions()
	if options.MaxAge > 0 {
		for _, codec := range s.codecs {
			if sc, ok := codec.(*securecookie.SecureCookie); ok {
				sc.MaxAge(options.MaxAge)
			}
		}
	}
}

// Get はリクエスト単位でキャッシュされたセッションを返します。
func (s *Store) Get(r *http.Request, name string) (*gsessions.Session, error) {
	return gsessions.GetRegistry(r).Get(s, name)
}

// New は Cookie のトークンから Backend のレコードを読み込みます。
// 改ざん・鍵の変更・期限切れの Cookie は新規の匿名セッションとして扱います。
func (s *Store) New(r *http.Request, name string) (*gsessions.Session, error) {
	sess := gsessions.NewSession(s, name)
	opts := *s.options
	sess.Options = &opts
	sess.IsNew = true

	c, err := r.Cookie(name)
	if err != nil || c.Value == "" {
		return sess, nil
	}
	var token string
	if err := securecookie.DecodeMulti(name, c.Value, &token, s.codecs...); err != nil {
		return sess, nil
	}
	sess.ID = token

	record, err := s.backend.Get(r.Context(), token)
	if err != nil {
		return sess, fmt.Errorf("session: load: %w", err)
	}
	if id, ok := record.Identity(); ok {
		sess.Values[identityKey] = id
		sess.IsNew = false
	}
	return sess, nil
}

// Save はセッションを Backend に反映し、Cookie を書き出します。
//
// 破棄が要求されている場合は Backend から削除してから Cookie を消します。
// 削除に失敗した場合は Cookie に触れずにエラーを返します。
// Identity を持たないセッションは保存しません。
func (s *Store) Save(r *http.Request, w http.ResponseWriter, sess *gsessions.Session) error {
	ctx := r.Context()

	if destroy, _ := sess.Values[destroyKey].(bool); destroy {
		if sess.ID != "" {
			if err := s.backend.Destroy(ctx, sess.ID); err != nil {
				return fmt.Errorf("session: destroy: %w", err)
			}
		}
		clear(sess.Values)
		sess.ID = ""
		expired := *sess.Options
		expired.MaxAge = -1
		http.SetCookie(w, gsessions.NewCookie(sess.Name(), "", &expired))
		return nil
	}

	if rotate, _ := sess.Values[rotateKey].(bool); rotate {
		delete(sess.Values, rotateKey)
		if sess.ID != "" {
			if err := s.backend.Destroy(ctx, sess.ID); err != nil {
				return fmt.Errorf("session: destroy superseded: %w", err)
			}
			sess.ID = ""
		}
	}

	id, ok := sess.Values[identityKey].(Identity)
	if !ok {
		return nil
	}

	if sess.ID == "" {
		token, err := NewToken()
		if err != nil {
			return err
		}
		sess.ID = token
	}

	maxAge := time.Duration(sess.Options.MaxAge) * time.Second
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if err := s.backend.Set(ctx, sess.ID, NewRecord(id, s.now(), maxAge)); err != nil {
		return fmt.Errorf("session: save: %w", err)
	}

	encoded, err := securecookie.EncodeMulti(sess.Name(), sess.ID, s.codecs...)
	if err != nil {
		return fmt.Errorf("session: encode cookie: %w", err)
	}
	http.SetCookie(w, gsessions.NewCookie(sess.Name(), encoded, sess.Options))
	sess.IsNew = false
	return nil
}

// NewToken は推測不能なセッショントークンを生成します。
func NewToken() (string, error) {
	b := securecookie.GenerateRandomKey(tokenBytes)
	if b == nil {
		return "", errors.New("session: failed to generate token")
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// IdentityFrom はセッションが認証済みであれば Identity を返します。
func IdentityFrom(s sessions.Session) (Identity, bool) {
	id, ok := s.Get(identityKey).(Identity)
	if !ok || id.userID == "" || id.userName == "" {
		return Identity{}, false
	}
	return id, true
}

// Token はセッションに紐づくトークンを返します。Cookie が無い場合は空文字です。
func Token(s sessions.Session) string {
	return s.ID()
}

// Establish は新しいトークンで認証済みセッションを保存します。
// 既存のトークンが提示されていた場合、そのレコードは破棄されます。
func Establish(s sessions.Session, id Identity) error {
	if id.userID == "" || id.userName == "" {
		return ErrIncompleteIdentity
	}
	s.Set(rotateKey, true)
	s.Set(identityKey, id)
	return s.Save()
}

// Destroy はセッションを破棄し、Cookie を削除します。
func Destroy(s sessions.Session) error {
	s.Set(destroyKey, true)
	return s.Save()
}
