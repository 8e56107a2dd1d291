// Package observability provides Prometheus metrics and OpenTelemetry
// tracing for tool invocations.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the runtime's metric instruments on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	ToolInvocations   *prometheus.CounterVec
	ToolLatency       *prometheus.HistogramVec
	StoreDecisions    *prometheus.CounterVec
	PaymentOutcomes   *prometheus.CounterVec
	OrdersPlaced      prometheus.Counter
	RecoveredPanics   prometheus.Counter
	ActiveConnections prometheus.Gauge
}

// NewMetrics creates and registers the metric instruments.
func NewMetrics() *Metrics {
	r := prometheus.NewRegistry()

	invocations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shopper_tool_invocations_total",
		Help: "Tool invocations by tool and result status.",
	}, []string{"tool", "outcome"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shopper_tool_latency_seconds",
		Help:    "Tool invocation latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"tool"})
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shopper_store_decisions_total",
		Help: "Capability decisions by store and reason.",
	}, []string{"store_id", "reason"})
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shopper_payment_outcomes_total",
		Help: "Payment adapter results.",
	}, []string{"result"})
	orders := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shopper_orders_placed_total",
		Help: "Orders placed.",
	})
	panics := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shopper_tool_panics_total",
		Help: "Panics recovered inside tools.",
	})
	conns := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "shopper_live_connections",
		Help: "Open live tool-call websocket connections.",
	})

	r.MustRegister(invocations, latency, decisions, payments, orders, panics, conns)
	return &Metrics{
		reg:               r,
		ToolInvocations:   invocations,
		ToolLatency:       latency,
		StoreDecisions:    decisions,
		PaymentOutcomes:   payments,
		OrdersPlaced:      orders,
		RecoveredPanics:   panics,
		ActiveConnections: conns,
	}
}

// RecordInvocation records one finished tool call.
func (m *Metrics) RecordInvocation(tool, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ToolInvocations.WithLabelValues(tool, outcome).Inc()
	m.ToolLatency.WithLabelValues(tool).Observe(elapsed.Seconds())
}

// RecordDecision records a capability decision.
func (m *Metrics) RecordDecision(storeID, reason string) {
	if m == nil {
		return
	}
	m.StoreDecisions.WithLabelValues(storeID, reason).Inc()
}

// RecordPayment records a payment adapter result.
func (m *Metrics) RecordPayment(result string) {
	if m == nil {
		return
	}
	m.PaymentOutcomes.WithLabelValues(result).Inc()
	if result == "completed" {
		m.OrdersPlaced.Inc()
	}
}

// RecordPanic counts a recovered panic.
func (m *Metrics) RecordPanic() {
	if m == nil {
		return
	}
	m.RecoveredPanics.Inc()
}

// ConnectionOpened and ConnectionClosed track live websocket connections.
func (m *Metrics) ConnectionOpened() {
	if m != nil {
		m.ActiveConnections.Inc()
	}
}

func (m *Metrics) ConnectionClosed() {
	if m != nil {
		m.ActiveConnections.Dec()
	}
}

// Registry exposes the underlying registry for gathering in tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler { return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{}) }
