// Package server はルーティングとミドルウェアの配線、HTTPサーバーの起動を行います。
package server

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/kdlab/kdlab-server/internal/auth"
	"github.com/kdlab/kdlab-server/internal/config"
	"github.com/kdlab/kdlab-server/internal/logutil"
	"github.com/kdlab/kdlab-server/internal/metrics"
	"github.com/kdlab/kdlab-server/internal/session"
	"github.com/kdlab/kdlab-server/internal/users"
)

const (
	serviceName    = "kdlab-server"
	serviceVersion = "0.1.0"

	// CSRFHeader はフロントエンドが CSRF トークンを送るために予約しているヘッダーです。
	CSRFHeader = "X-CSRF-Token"
)

// Deps はルーターが必要とする依存関係です。
type Deps struct {
	Logger   zerolog.Logger
	Verifier users.Verifier
	Sessions session.Backend
	Metrics  *metrics.Auth
}

// NewRouter はミドルウェアとルートを登録した gin.Engine を返します。
func NewRouter(cfg *config.Config, deps Deps) (*gin.Engine, error) {
	if deps.Verifier == nil {
		return nil, errors.New("server: verifier is nil")
	}
	if deps.Sessions == nil {
		return nil, errors.New("server: session backend is nil")
	}

	router := gin.New()
	router.Use(logutil.Gin(deps.Logger), auth.Recovery())

	// CORSミドルウェアの設定（許可するのはフロントエンドのオリジンのみ）
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.FrontendURL}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	corsConfig.AllowHeaders = []string{"Content-Type", CSRFHeader}
	router.Use(cors.New(corsConfig))

	// セッションストアの設定（Cookie にはトークンのみを格納する）
	store, err := session.NewStore(deps.Sessions, []byte(cfg.SessionSecret))
	if err != nil {
		return nil, err
	}
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.SessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	router.Use(sessions.Sessions(session.CookieName, store))

	setupRoutes(router, auth.NewManager(deps.Verifier, deps.Metrics), deps.Metrics)
	return router, nil
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": serviceName,
		"version": serviceVersion,
	})
}

func setupRoutes(router *gin.Engine, authManager *auth.Manager, m *metrics.Auth) {
	router.GET("/health", handleHealth)
	if m != nil {
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}

	// ログイン時はセッション未生成なのでゲートは不要
	router.POST("/login", authManager.Login)

	protected := router.Group("")
	protected.Use(authManager.RequireLogin())
	{
		protected.GET("/top", authManager.Top)
		protected.POST("/logout", authManager.Logout)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Not found", "error": "NOT_FOUND"})
	})
}
