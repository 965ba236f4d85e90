// Package metrics exports advisor observations to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/khanglvm/torque-advisor/internal/advisor"
	"github.com/khanglvm/torque-advisor/internal/turn"
)

type PrometheusMetrics struct {
	turnDuration     *prometheus.HistogramVec
	turns            *prometheus.CounterVec
	clarifications   *prometheus.CounterVec
	retrievalLatency *prometheus.HistogramVec
	upstreamFailures *prometheus.CounterVec
	activeSessions   prometheus.Gauge
}

func NewPrometheusMetrics(registerer prometheus.Registerer) *PrometheusMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &PrometheusMetrics{
		turnDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "torque_advisor_turn_duration_seconds",
				Help:    "Duration of conversational turns in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"kind"},
		),
		turns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "torque_advisor_turns_total",
				Help: "Total number of completed turns by response kind",
			},
			[]string{"kind"},
		),
		clarifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "torque_advisor_clarifications_total",
				Help: "Total number of clarification requests by deciding rule",
			},
			[]string{"reason"},
		),
		retrievalLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "torque_advisor_retrieval_duration_seconds",
				Help:    "Latency of candidate retrieval in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"status"},
		),
		upstreamFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "torque_advisor_upstream_failures_total",
				Help: "Total number of failed embedding or recommendation calls",
			},
			[]string{"stage"},
		),
		activeSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "torque_advisor_active_sessions",
				Help: "Current number of sessions held in memory",
			},
		),
	}
}

func (p *PrometheusMetrics) ObserveTurn(kind turn.Kind, duration time.Duration) {
	p.turns.WithLabelValues(string(kind)).Inc()
	p.turnDuration.WithLabelValues(string(kind)).Observe(duration.Seconds())
}

func (p *PrometheusMetrics) ObserveClarification(reason string) {
	p.clarifications.WithLabelValues(reason).Inc()
}

func (p *PrometheusMetrics) ObserveRetrieval(duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	p.retrievalLatency.WithLabelValues(status).Observe(duration.Seconds())
}

func (p *PrometheusMetrics) ObserveUpstreamFailure(stage string) {
	p.upstreamFailures.WithLabelValues(stage).Inc()
}

func (p *PrometheusMetrics) SetActiveSessions(count int) {
	p.activeSessions.Set(float64(count))
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

var _ advisor.Metrics = (*PrometheusMetrics)(nil)
