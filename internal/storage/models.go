package storage

import "time"

// TurnRecord is an anonymised record of one conversational turn.
type TurnRecord struct {
	// TurnID is a unique identifier for this turn (UUID).
	TurnID string `json:"turn_id"`

	// SessionHash is the SHA256 hash of the session id.
	SessionHash string `json:"session_hash"`

	// QueryHash is the SHA256 hash of the user's query.
	QueryHash string `json:"query_hash"`

	// Kind is the response variant: needs_clarification, recommendation or error.
	Kind string `json:"kind"`

	// ResultCount is the number of candidate tools after filtering.
	ResultCount int `json:"result_count"`

	// Filters is the JSON rendering of the filters applied to the turn.
	Filters string `json:"filters"`

	// ToolName is the recommended tool, if any.
	ToolName string `json:"tool_name,omitempty"`

	// Timestamp is when the turn completed.
	Timestamp time.Time `json:"timestamp"`
}

// TurnSummary aggregates recorded turns.
type TurnSummary struct {
	Total    int            `json:"total"`
	ByKind   map[string]int `json:"by_kind"`
	TopTools map[string]int `json:"top_tools"`
	Sessions int            `json:"sessions"`
}
