/*
Package analytics records completed turns in the background.

Turn events are queued without blocking the request path, batched, and
flushed to storage. Queries and session ids are hashed before they leave the
process.
*/
package analytics

import (
	"time"

	"github.com/google/uuid"

	"github.com/khanglvm/torque-advisor/internal/filter"
	"github.com/khanglvm/torque-advisor/internal/storage"
	"github.com/khanglvm/torque-advisor/internal/turn"
)

// TurnEvent describes one completed turn.
type TurnEvent struct {
	TurnID      string
	SessionID   string
	Query       string
	Kind        turn.Kind
	ResultCount int
	Filters     filter.Set
	ToolName    string
	Timestamp   time.Time
}

// NewTurnEvent builds an event for a turn that produced resp.
func NewTurnEvent(sessionID, query string, resp turn.Response, resultCount int, filters filter.Set) TurnEvent {
	ev := TurnEvent{
		TurnID:      uuid.NewString(),
		SessionID:   sessionID,
		Query:       query,
		Kind:        resp.Kind,
		ResultCount: resultCount,
		Filters:     filters.Clone(),
		Timestamp:   time.Now(),
	}
	if resp.Recommendation != nil {
		ev.ToolName = resp.Recommendation.ToolName
	}
	return ev
}

// ToStorage converts the event to its anonymised storage form.
func (e TurnEvent) ToStorage() storage.TurnRecord {
	return storage.TurnRecord{
		TurnID:      e.TurnID,
		SessionHash: storage.HashQuery(e.SessionID),
		QueryHash:   storage.HashQuery(e.Query),
		Kind:        string(e.Kind),
		ResultCount: e.ResultCount,
		Filters:     e.Filters.String(),
		ToolName:    e.ToolName,
		Timestamp:   e.Timestamp,
	}
}
