package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestCounters(t *testing.T) {
	m := New()

	m.PaymentCreated(false)
	m.PaymentCreated(true)
	m.PaymentCreated(true)
	m.WebhookProcessed("ignored")
	m.GatewayFailed("create_payment", true)
	m.LoginLocked()
	m.AutopayCharged(false)

	body := scrape(t, m)
	assert.Contains(t, body, `velorent_payments_created_total{kind="autopay"} 2`)
	assert.Contains(t, body, `velorent_payments_created_total{kind="interactive"} 1`)
	assert.Contains(t, body, `velorent_payments_webhook_events_total{outcome="ignored"} 1`)
	assert.Contains(t, body, `velorent_gateway_errors_total{operation="create_payment",retryable="true"} 1`)
	assert.Contains(t, body, "velorent_auth_login_lockouts_total 1")
	assert.Contains(t, body, `velorent_autopay_charges_total{result="error"} 1`)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.PaymentCreated(false)
		m.WebhookProcessed("ok")
		m.GatewayFailed("refund", false)
		m.LoginLocked()
		m.AutopayCharged(true)
	})
}
