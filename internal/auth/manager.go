// Package auth はログイン・ログアウトと、セッションによる認可ゲートを提供します。
package auth

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/kdlab/kdlab-server/internal/logutil"
	"github.com/kdlab/kdlab-server/internal/metrics"
	"github.com/kdlab/kdlab-server/internal/session"
	"github.com/kdlab/kdlab-server/internal/users"
)

// ログイン成功後にフロントエンドが遷移する先
const redirectAfterLogin = "/top"

// ContextIdentityKey は、ゲートを通過したセッションの Identity をハンドラー間で共有するためのキーです。
const ContextIdentityKey = "auth.identity"

// エラーコード（レスポンスの error フィールド）
const (
	codeInvalidInput         = "INVALID_INPUT"
	codeInvalidCredentials   = "INVALID_CREDENTIALS"
	codeUnauthorized         = "UNAUTHORIZED"
	codeNoSession            = "NO_SESSION"
	codeSessionSaveFailed    = "SESSION_SAVE_FAILED"
	codeSessionDestroyFailed = "SESSION_DESTROY_FAILED"
	codeInternal             = "INTERNAL_ERROR"
)

// Manager は認証処理をまとめた構造体です。状態はセッションストアにのみ保持します。
type Manager struct {
	verifier users.Verifier
	metrics  *metrics.Auth
}

// NewManager は認証マネージャーを作成します。metrics は nil でも構いません。
func NewManager(verifier users.Verifier, m *metrics.Auth) *Manager {
	return &Manager{
		verifier: verifier,
		metrics:  m,
	}
}

type loginRequest struct {
	ID       string `json:"id" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login は POST /login のハンドラーです。
func (m *Manager) Login(c *gin.Context) {
	logger := logutil.GetOrDefault(c.Request.Context())

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		m.metrics.LoginAttempt(metrics.LoginInvalidInput)
		c.JSON(http.StatusBadRequest, gin.H{
			"message": "id and password are required",
			"error":   codeInvalidInput,
		})
		return
	}

	user, err := m.verifier.Verify(c.Request.Context(), req.ID, req.Password)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) {
			m.metrics.LoginAttempt(metrics.LoginInvalidCredentials)
			logger.Info().Msg("login rejected")
			c.JSON(http.StatusUnauthorized, gin.H{
				"message": "Invalid credentials",
				"error":   codeInvalidCredentials,
			})
			return
		}
		m.metrics.LoginAttempt(metrics.LoginError)
		logger.Error().Err(err).Msg("credential verification failed")
		respondInternal(c, codeInternal)
		return
	}

	identity, err := session.NewIdentity(user.ID, user.Name)
	if err != nil {
		m.metrics.LoginAttempt(metrics.LoginError)
		logger.Error().Err(err).Str("user_id", user.ID).Msg("user record cannot form a session")
		respondInternal(c, codeInternal)
		return
	}

	if err := session.Establish(sessions.Default(c), identity); err != nil {
		m.metrics.LoginAttempt(metrics.LoginError)
		logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to save session")
		respondInternal(c, codeSessionSaveFailed)
		return
	}

	m.metrics.LoginAttempt(metrics.LoginSuccess)
	logger.Info().Str("user_id", user.ID).Msg("login succeeded")
	c.JSON(http.StatusOK, gin.H{
		"message":    "Login successful",
		"redirectTo": redirectAfterLogin,
		"userId":     identity.UserID(),
		"userName":   identity.UserName(),
	})
}

// RequireLogin はセッションを検証するミドルウェアを返します。
// 認証済みで userId / userName が揃っている場合のみ次のハンドラーへ進みます。
// セッションの保存や Cookie の書き込みは行いません。
func (m *Manager) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := session.IdentityFrom(sessions.Default(c))
		if !ok {
			m.metrics.GateDenied()
			abortUnauthorized(c)
			return
		}
		c.Set(ContextIdentityKey, identity)
		c.Next()
	}
}

// Top は GET /top のハンドラーです。
func (m *Manager) Top(c *gin.Context) {
	// ゲートを経由しない登録をされた場合に備えて再確認する
	identity, ok := identityFromContext(c)
	if !ok {
		abortUnauthorized(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  "Welcome to the top page!",
		"userId":   identity.UserID(),
		"userName": identity.UserName(),
	})
}

// Logout は POST /logout のハンドラーです。
// レコードの削除に失敗した場合は Cookie を残したまま 500 を返します。
func (m *Manager) Logout(c *gin.Context) {
	logger := logutil.GetOrDefault(c.Request.Context())

	sess := sessions.Default(c)
	identity, ok := identityFromContext(c)
	if !ok || session.Token(sess) == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"message": "No active session",
			"error":   codeNoSession,
		})
		return
	}

	if err := session.Destroy(sess); err != nil {
		m.metrics.Logout(metrics.LogoutError)
		logger.Error().Err(err).Str("user_id", identity.UserID()).Msg("failed to destroy session")
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": "Logout failed",
			"error":   codeSessionDestroyFailed,
		})
		return
	}

	m.metrics.Logout(metrics.LogoutSuccess)
	logger.Info().Str("user_id", identity.UserID()).Msg("logout succeeded")
	c.JSON(http.StatusOK, gin.H{"message": "Logout successful"})
}

// Recovery はパニックを 500 の定型レスポンスに変換するミドルウェアです。詳細はログにのみ出力します。
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger := logutil.GetOrDefault(c.Request.Context())
		logger.Error().
			Interface("panic", recovered).
			Str("path", c.Request.URL.Path).
			Msg("recovered from panic")
		respondInternal(c, codeInternal)
	})
}

func identityFromContext(c *gin.Context) (session.Identity, bool) {
	v, ok := c.Get(ContextIdentityKey)
	if !ok {
		return session.Identity{}, false
	}
	identity, ok := v.(session.Identity)
	if !ok || identity.UserID() == "" || identity.UserName() == "" {
		return session.Identity{}, false
	}
	return identity, true
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
		"message": "Unauthorized",
		"error":   codeUnauthorized,
	})
}

func respondInternal(c *gin.Context, code string) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"message": "Internal server error",
		"error":   code,
	})
}
