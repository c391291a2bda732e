// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// DefaultSessionSecret はローカル開発用のプレースホルダーです。本番では使用できません。
const DefaultSessionSecret = "kdlab-dev-secret"

// minReleaseSecretLength は release モードで要求する SESSION_SECRET の最小バイト数です。
const minReleaseSecretLength = 32

// セッションストアの種別
const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// サーバー設定
	Port    string // APIサーバーのポート番号
	URL     string // 起動ログに表示する公開URL
	GinMode string // Ginの実行モード (debug, release, test)

	// セッション設定
	SessionSecret  string        // セッションCookieの署名・暗号化に使う秘密鍵
	SessionMaxAge  time.Duration // セッションの有効期限
	CookieSecure   bool          // Secure 属性を付与するか（TLS終端環境のみ true）
	SessionBackend string        // memory または redis
	RedisURL       string        // SESSION_BACKEND=redis のときの接続URL

	// CORS設定
	FrontendURL string // クロスオリジンを許可するフロントエンドのオリジン

	// 認証情報
	UsersFile string // ユーザー一覧ファイル（JSON または YAML）

	// ログ設定
	LogLevel  string // zerolog のレベル名
	LogFormat string // json または console
}

// Load は環境変数から設定を読み込みます。
// .env.local / .env ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	// .env 系ファイルを読み込む（存在しない場合はスキップ）
	loadEnvFiles()

	ginMode := getEnv("GIN_MODE", "debug")

	config := &Config{
		// サーバー設定
		Port:    getEnv("PORT", "3000"),
		URL:     getEnv("URL", "http://localhost"),
		GinMode: ginMode,

		// セッション設定
		SessionSecret:  getEnv("SESSION_SECRET", DefaultSessionSecret),
		SessionMaxAge:  time.Duration(getEnvAsInt("SESSION_MAX_AGE_SECONDS", 86400)) * time.Second,
		CookieSecure:   getEnvAsBool("COOKIE_SECURE", ginMode == "release"),
		SessionBackend: getEnv("SESSION_BACKEND", SessionBackendMemory),
		RedisURL:       getEnv("REDIS_URL", "redis://127.0.0.1:6379/0"),

		// CORS設定
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),

		// 認証情報
		UsersFile: getEnv("USERS_FILE", "users.json"),

		// ログ設定
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	// 必須設定のバリデーション
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// loadEnvFiles は .env.local, .env の順にカレントと親ディレクトリから読み込みます。
// godotenv.Load は既存の環境変数を上書きしないため、先に読んだ値が優先されます。
func loadEnvFiles() {
	for _, name := range []string{".env.local", ".env"} {
		if err := godotenv.Load(name); err == nil {
			continue
		}

		cwd, err := os.Getwd()
		if err != nil {
			continue
		}

		parent := filepath.Dir(cwd)
		if parent == "" || parent == cwd {
			continue
		}

		_ = godotenv.Load(filepath.Join(parent, name))
	}
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("PORT must be numeric: %q", c.Port)
	}
	if c.SessionMaxAge <= 0 {
		return fmt.Errorf("SESSION_MAX_AGE_SECONDS must be positive")
	}

	u, err := url.Parse(c.FrontendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("FRONTEND_URL must be an absolute http(s) origin: %q", c.FrontendURL)
	}
	// ブラウザの Origin ヘッダーは scheme://host のみなので、パス等が付くと一致しない
	if u.Path != "" || u.RawQuery != "" || u.Fragment != "" || u.User != nil {
		return fmt.Errorf("FRONTEND_URL must be an origin without path, query or trailing slash: %q", c.FrontendURL)
	}

	switch c.SessionBackend {
	case SessionBackendMemory:
	case SessionBackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when SESSION_BACKEND=redis")
		}
	default:
		return fmt.Errorf("unknown SESSION_BACKEND: %q", c.SessionBackend)
	}

	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}

	// ローカル開発ではプレースホルダーの秘密鍵を許容する
	// 本番環境では厳格にチェックする
	if c.IsRelease() {
		if c.SessionSecret == "" || c.SessionSecret == DefaultSessionSecret {
			return fmt.Errorf("SESSION_SECRET must be set to a non-default value in release mode")
		}
		if len(c.SessionSecret) < minReleaseSecretLength {
			return fmt.Errorf("SESSION_SECRET must be at least %d bytes in release mode", minReleaseSecretLength)
		}
	}

	return nil
}

// IsRelease は本番モードで動作しているかを返します。
func (c *Config) IsRelease() bool {
	return c.GinMode == "release"
}

// UsesDefaultSecret はプレースホルダーの秘密鍵のまま動作しているかを返します。
func (c *Config) UsesDefaultSecret() bool {
	return c.SessionSecret == DefaultSessionSecret
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool は環境変数を真偽値として取得します。
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
