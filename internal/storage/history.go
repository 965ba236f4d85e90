package storage

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RecordTurns stores a batch of turn records in one transaction.
func (s *SQLiteStorage) RecordTurns(records []TurnRecord) error {
	if !s.enabled || s.db == nil || len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin turn batch: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO turn_history
			(turn_id, session_hash, query_hash, kind, result_count, filters, tool_name, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare turn insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		filters := r.Filters
		if filters == "" {
			filters = "{}"
		}
		if _, err := stmt.Exec(
			r.TurnID,
			r.SessionHash,
			r.QueryHash,
			r.Kind,
			r.ResultCount,
			filters,
			r.ToolName,
			r.Timestamp.UTC().Format(time.RFC3339),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record turn %s: %w", r.TurnID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit turn batch: %w", err)
	}
	return nil
}

// TurnSummary aggregates turns recorded since the given time.
func (s *SQLiteStorage) TurnSummary(since time.Time) (TurnSummary, error) {
	summary := TurnSummary{ByKind: map[string]int{}, TopTools: map[string]int{}}
	if !s.enabled || s.db == nil {
		return summary, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := since.UTC().Format(time.RFC3339)

	rows, err := s.db.Query(`
		SELECT kind, COUNT(*)
		FROM turn_history
		WHERE timestamp >= ?
		GROUP BY kind
	`, cutoff)
	if err != nil {
		return summary, fmt.Errorf("failed to summarise turns: %w", err)
	}
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			rows.Close()
			return summary, fmt.Errorf("failed to scan turn summary: %w", err)
		}
		summary.ByKind[kind] = n
		summary.Total += n
	}
	rows.Close()

	rows, err = s.db.Query(`
		SELECT tool_name, COUNT(*)
		FROM turn_history
		WHERE timestamp >= ? AND tool_name != ''
		GROUP BY tool_name
		ORDER BY COUNT(*) DESC
		LIMIT 10
	`, cutoff)
	if err != nil {
		return summary, fmt.Errorf("failed to summarise tools: %w", err)
	}
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			rows.Close()
			return summary, fmt.Errorf("failed to scan tool summary: %w", err)
		}
		summary.TopTools[name] = n
	}
	rows.Close()

	row := s.db.QueryRow(`SELECT COUNT(DISTINCT session_hash) FROM turn_history WHERE timestamp >= ?`, cutoff)
	if err := row.Scan(&summary.Sessions); err != nil {
		return summary, fmt.Errorf("failed to count sessions: %w", err)
	}

	return summary, nil
}

// Cleanup removes old records based on retention policy.
func (s *SQLiteStorage) Cleanup(retention time.Duration) error {
	if !s.enabled || s.db == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-retention).UTC().Format(time.RFC3339)

	if _, err := s.db.Exec("DELETE FROM turn_history WHERE timestamp < ?", cutoff); err != nil {
		s.log().Warn("failed to cleanup turn_history", zap.Error(err))
	}

	if _, err := s.db.Exec("VACUUM"); err != nil {
		s.log().Warn("failed to vacuum database", zap.Error(err))
	}

	return nil
}
