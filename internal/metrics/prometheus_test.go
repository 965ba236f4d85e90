package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khanglvm/torque-advisor/internal/advisor"
	"github.com/khanglvm/torque-advisor/internal/turn"
)

func TestNewPrometheusMetrics(t *testing.T) {
	m := NewPrometheusMetrics(prometheus.NewRegistry())
	assert.NotNil(t, m)
	assert.NotNil(t, m.turnDuration)
	assert.NotNil(t, m.turns)
	assert.NotNil(t, m.clarifications)
	assert.NotNil(t, m.retrievalLatency)
	assert.NotNil(t, m.upstreamFailures)
	assert.NotNil(t, m.activeSessions)
}

func TestNewPrometheusMetrics_UsesProvidedRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()

	m := NewPrometheusMetrics(registry)
	m.ObserveTurn(turn.KindRecommendation, 200*time.Millisecond)
	m.ObserveClarification("no_results")
	m.ObserveRetrieval(10*time.Millisecond, nil)
	m.ObserveUpstreamFailure(advisor.StageRecommend)
	m.SetActiveSessions(3)

	metrics, err := registry.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(metrics))
	for _, m := range metrics {
		names = append(names, m.GetName())
	}

	assert.Contains(t, names, "torque_advisor_turn_duration_seconds")
	assert.Contains(t, names, "torque_advisor_turns_total")
	assert.Contains(t, names, "torque_advisor_clarifications_total")
	assert.Contains(t, names, "torque_advisor_retrieval_duration_seconds")
	assert.Contains(t, names, "torque_advisor_upstream_failures_total")
	assert.Contains(t, names, "torque_advisor_active_sessions")
}

func TestPrometheusMetrics_Values(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewPrometheusMetrics(registry)

	m.ObserveTurn(turn.KindClarification, time.Millisecond)
	m.ObserveTurn(turn.KindClarification, time.Millisecond)
	m.ObserveClarification("too_many_results")
	m.ObserveRetrieval(time.Millisecond, errors.New("boom"))
	m.SetActiveSessions(7)

	families, err := registry.Gather()
	require.NoError(t, err)

	values := make(map[string]float64)
	for _, f := range families {
		metric := f.GetMetric()[0]
		switch {
		case metric.GetCounter() != nil:
			values[f.GetName()] = metric.GetCounter().GetValue()
		case metric.GetGauge() != nil:
			values[f.GetName()] = metric.GetGauge().GetValue()
		case metric.GetHistogram() != nil:
			values[f.GetName()] = float64(metric.GetHistogram().GetSampleCount())
		}
	}

	assert.Equal(t, 2.0, values["torque_advisor_turns_total"])
	assert.Equal(t, 1.0, values["torque_advisor_clarifications_total"])
	assert.Equal(t, 7.0, values["torque_advisor_active_sessions"])
	assert.Equal(t, 1.0, values["torque_advisor_retrieval_duration_seconds"])
}

func TestHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewPrometheusMetrics(registry)
	m.SetActiveSessions(2)

	rec := httptest.NewRecorder()
	Handler(registry).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), "torque_advisor_active_sessions 2")
}
