package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.Turn("engaged")
	m.Reply("static")
	m.Delivery("success")
	m.StoreError("save")
	m.RiskScore(0.5)
	m.StoreDegraded(true)
	m.TurnStarted()()
	assert.Nil(t, m.Registry())
}

func TestCounters(t *testing.T) {
	t.Parallel()

	m := New()
	m.Turn("engaged")
	m.Turn("engaged")
	m.Delivery("fallback")
	m.StoreDegraded(true)

	assert.InDelta(t, 2, testutil.ToFloat64(m.turns.WithLabelValues("engaged")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.deliveries.WithLabelValues("fallback")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.storeDegraded), 0)

	done := m.TurnStarted()
	assert.InDelta(t, 1, testutil.ToFloat64(m.activeTurns), 0)
	done()
	assert.InDelta(t, 0, testutil.ToFloat64(m.activeTurns), 0)
}

func TestHandlerExposesMetrics(t *testing.T) {
	t.Parallel()

	m := New()
	m.Reply("anthropic")
	m.RiskScore(0.8)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	out := string(body)
	assert.True(t, strings.Contains(out, `decoy_replies_total{provider="anthropic"} 1`))
	assert.True(t, strings.Contains(out, "decoy_risk_score_count 1"))
}
