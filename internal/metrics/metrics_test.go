package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	m := NewAuth()
	m.LoginAttempt(LoginSuccess)
	m.LoginAttempt(LoginSuccess)
	m.LoginAttempt(LoginInvalidCredentials)
	m.Logout(LogoutSuccess)
	m.GateDenied()

	if got := testutil.ToFloat64(m.loginAttempts.WithLabelValues(LoginSuccess)); got != 2 {
		t.Fatalf("login success = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.loginAttempts.WithLabelValues(LoginInvalidCredentials)); got != 1 {
		t.Fatalf("login invalid = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.logouts.WithLabelValues(LogoutSuccess)); got != 1 {
		t.Fatalf("logouts = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.gateDenials); got != 1 {
		t.Fatalf("gate denials = %v, want 1", got)
	}
}

func TestNilAuthIsNoop(t *testing.T) {
	var m *Auth
	m.LoginAttempt(LoginSuccess)
	m.Logout(LogoutError)
	m.GateDenied()
}

func TestHandlerExposesCounters(t *testing.T) {
	m := NewAuth()
	m.GateDenied()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "kdlab_gate_denials_total 1") {
		t.Fatalf("gate denial counter missing from output:\n%s", body)
	}
}
