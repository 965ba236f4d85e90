/*
Package session keeps per-conversation state between turns.

A session accumulates the filters a user has stated so far, remembers the
previous query and counts how often the assistant had to ask for
clarification. Sessions expire after a period of inactivity and are evicted
lazily on lookup.
*/
package session

import (
	"errors"
	"time"

	"github.com/khanglvm/torque-advisor/internal/filter"
	"github.com/khanglvm/torque-advisor/internal/turn"
)

// DefaultTimeout is how long an idle session is kept.
const DefaultTimeout = 30 * time.Minute

// ErrNotFound is returned when a session does not exist or has expired.
var ErrNotFound = errors.New("session not found")

// Turn is one completed exchange.
type Turn struct {
	Timestamp time.Time     `json:"timestamp"`
	Query     string        `json:"query"`
	Response  turn.Response `json:"response"`
}

// Session is a snapshot of a conversation's state.
type Session struct {
	ID                 string     `json:"session_id"`
	History            []Turn     `json:"conversation_history"`
	Filters            filter.Set `json:"extracted_filters"`
	LastQuery          string     `json:"last_query"`
	ClarificationCount int        `json:"clarification_count"`
	CreatedAt          time.Time  `json:"created_at"`
	LastAccessed       time.Time  `json:"last_accessed"`
}

// clone returns a deep copy so callers never share mutable state with the store.
func (s Session) clone() Session {
	out := s
	out.History = make([]Turn, len(s.History))
	copy(out.History, s.History)
	out.Filters = s.Filters.Clone()
	return out
}

// Stats summarises the live sessions.
type Stats struct {
	ActiveSessions               int `json:"active_sessions"`
	TotalConversations           int `json:"total_conversations"`
	SessionsNeedingClarification int `json:"sessions_needing_clarification"`
}

// Store is the session persistence contract used by the advisor.
type Store interface {
	// Create starts a fresh session, replacing any existing one with the same id.
	Create(id string) Session

	// GetOrCreate evicts expired sessions, then returns the live session for id,
	// creating it when absent. The session's last access time is refreshed.
	GetOrCreate(id string) Session

	// Get returns the live session for id without creating it.
	Get(id string) (Session, error)

	// Lock serialises turns for one session id. The returned func releases it.
	Lock(id string) (unlock func())

	// RecordTurn appends a completed exchange and folds its filters into the session.
	RecordTurn(id, query string, resp turn.Response) Session

	// EvictExpired removes idle sessions and returns how many were removed.
	EvictExpired() int

	// Delete removes a session. It reports whether the session existed.
	Delete(id string) bool

	// Stats returns aggregate counts over live sessions.
	Stats() Stats
}
