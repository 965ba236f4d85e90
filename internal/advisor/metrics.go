package advisor

import (
	"time"

	"github.com/khanglvm/torque-advisor/internal/turn"
)

// Upstream stages reported to Metrics.ObserveUpstreamFailure.
const (
	StageRetrieval = "retrieval"
	StageRecommend = "recommend"
)

// Metrics receives per-turn observations.
type Metrics interface {
	ObserveTurn(kind turn.Kind, duration time.Duration)
	ObserveClarification(reason string)
	ObserveRetrieval(duration time.Duration, err error)
	ObserveUpstreamFailure(stage string)
	SetActiveSessions(count int)
}

// NoopMetrics discards every observation.
type NoopMetrics struct{}

func (NoopMetrics) ObserveTurn(_ turn.Kind, _ time.Duration) {}
func (NoopMetrics) ObserveClarification(_ string) {}
func (NoopMetrics) ObserveRetrieval(_ time.Duration, _ error) {}
func (NoopMetrics) ObserveUpstreamFailure(_ string) {}
func (NoopMetrics) SetActiveSessions(_ int) {}

var _ Metrics = NoopMetrics{}
