// Package metrics は認証フローの Prometheus メトリクスを提供します。
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ログイン結果のラベル値
const (
	LoginSuccess            = "success"
	LoginInvalidInput       = "invalid_input"
	LoginInvalidCredentials = "invalid_credentials"
	LoginError              = "error"
)

// ログアウト結果のラベル値
const (
	LogoutSuccess = "success"
	LogoutError   = "error"
)

const namespace = "kdlab"

// Auth は認証関連のカウンターをまとめたものです。
// 専用の Registry を持つため、テストごとに独立して作成できます。
type Auth struct {
	registry      *prometheus.Registry
	loginAttempts *prometheus.CounterVec
	logouts       *prometheus.CounterVec
	gateDenials   prometheus.Counter
}

// NewAuth はカウンターを登録した Auth を作成します。
func NewAuth() *Auth {
	m := &Auth{
		registry: prometheus.NewRegistry(),
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		logouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logouts_total",
			Help:      "Logout requests that passed the session gate, by result.",
		}, []string{"result"}),
		gateDenials: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_denials_total",
			Help:      "Requests to protected routes rejected for a missing or invalid session.",
		}),
	}
	m.registry.MustRegister(
		m.loginAttempts,
		m.logouts,
		m.gateDenials,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// LoginAttempt はログイン結果を1件記録します。nil レシーバーでは何もしません。
func (m *Auth) LoginAttempt(result string) {
	if m == nil {
		return
	}
	m.loginAttempts.WithLabelValues(result).Inc()
}

// Logout はログアウト結果を1件記録します。
func (m *Auth) Logout(result string) {
	if m == nil {
		return
	}
	m.logouts.WithLabelValues(result).Inc()
}

// GateDenied は認可ゲートでの拒否を1件記録します。
func (m *Auth) GateDenied() {
	if m == nil {
		return
	}
	m.gateDenials.Inc()
}

// Handler は /metrics 用のハンドラーを返します。
func (m *Auth) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
