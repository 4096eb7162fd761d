package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "velorent"

// Metrics holds the service counters. A nil *Metrics is a valid no-op.
type Metrics struct {
	registry *prometheus.Registry

	PaymentsCreated *prometheus.CounterVec
	WebhookEvents   *prometheus.CounterVec
	GatewayErrors   *prometheus.CounterVec
	LoginLockouts   prometheus.Counter
	AutopayCharges  *prometheus.CounterVec
}

// New creates the counters on a dedicated registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		PaymentsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "payments",
				Name:      "created_total",
				Help:      "Gateway payments created",
			},
			[]string{"kind"},
		),
		WebhookEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "payments",
				Name:      "webhook_events_total",
				Help:      "Processed gateway webhook notifications",
			},
			[]string{"outcome"},
		),
		GatewayErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "errors_total",
				Help:      "Failed calls to the payment gateway",
			},
			[]string{"operation", "retryable"},
		),
		LoginLockouts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "login_lockouts_total",
				Help:      "Login attempts rejected by the failure throttle",
			},
		),
		AutopayCharges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "autopay",
				Name:      "charges_total",
				Help:      "Autopay worker charge attempts",
			},
			[]string{"result"},
		),
	}

	m.registry.MustRegister(
		m.PaymentsCreated,
		m.WebhookEvents,
		m.GatewayErrors,
		m.LoginLockouts,
		m.AutopayCharges,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler exposes the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) PaymentCreated(autopay bool) {
	if m == nil {
		return
	}
	kind := "interactive"
	if autopay {
		kind = "autopay"
	}
	m.PaymentsCreated.WithLabelValues(kind).Inc()
}

func (m *Metrics) WebhookProcessed(outcome string) {
	if m == nil {
		return
	}
	m.WebhookEvents.WithLabelValues(outcome).Inc()
}

func (m *Metrics) GatewayFailed(operation string, retryable bool) {
	if m == nil {
		return
	}
	r := "false"
	if retryable {
		r = "true"
	}
	m.GatewayErrors.WithLabelValues(operation, r).Inc()
}

func (m *Metrics) LoginLocked() {
	if m == nil {
		return
	}
	m.LoginLockouts.Inc()
}

func (m *Metrics) AutopayCharged(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.AutopayCharges.WithLabelValues(result).Inc()
}
