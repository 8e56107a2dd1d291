package observability

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatherCount(t *testing.T, m *Metrics, name string) int {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name {
			return len(f.GetMetric())
		}
	}
	return 0
}

func TestRecordInvocation(t *testing.T) {
	m := NewMetrics()
	m.RecordInvocation("add_to_checkout", "success", 5*time.Millisecond)
	m.RecordInvocation("add_to_checkout", "denied", time.Millisecond)
	m.RecordInvocation("list_stores", "success", time.Millisecond)

	assert.Equal(t, 3, gatherCount(t, m, "shopper_tool_invocations_total"))
	assert.Equal(t, 2, gatherCount(t, m, "shopper_tool_latency_seconds"))
}

func TestRecordPaymentCountsOrders(t *testing.T) {
	m := NewMetrics()
	m.RecordPayment("completed")
	m.RecordPayment("failed")

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == "shopper_orders_placed_total" {
			assert.Equal(t, float64(1), f.GetMetric()[0].GetCounter().GetValue())
		}
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordInvocation("x", "success", time.Second)
	m.RecordDecision("a", "b")
	m.RecordPayment("completed")
	m.RecordPanic()
}

func TestHandler(t *testing.T) {
	m := NewMetrics()
	m.RecordDecision("tierra_de_cafe", "rejected_with_alternative")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `shopper_store_decisions_total{reason="rejected_with_alternative",store_id="tierra_de_cafe"} 1`)
}

func TestTracerSpans(t *testing.T) {
	tr := NewTracer()
	ctx, span := tr.StartToolSpan(context.Background(), "get_checkout", "s1", "cafe_con_alma")
	require.NotNil(t, ctx)
	tr.EndToolSpan(span, "success", false, "")

	_, span = tr.StartToolSpan(context.Background(), "complete_checkout", "s1", "cafe_con_alma")
	tr.EndToolSpan(span, "error", true, "payment processor error")
}
