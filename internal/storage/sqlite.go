package storage

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// runMigrations executes database schema migrations.
func (s *SQLiteStorage) runMigrations() error {
	if !s.enabled || s.db == nil {
		return nil
	}

	if err := s.createMigrationsTable(); err != nil {
		return err
	}

	version, err := s.getCurrentMigrationVersion()
	if err != nil {
		return err
	}

	migrations := []migration{
		{version: 1, name: "initial_schema", up: s.migration001InitialSchema},
		{version: 2, name: "turn_tool_name", up: s.migration002TurnToolName},
	}

	for _, m := range migrations {
		if version < m.version {
			s.log().Info("running migration", zap.Int("version", m.version), zap.String("name", m.name))
			if err := m.up(); err != nil {
				return fmt.Errorf("migration %d failed: %w", m.version, err)
			}
			if err := s.setMigrationVersion(m.version, m.name); err != nil {
				return err
			}
		}
	}

	return nil
}

// migration represents a single database migration.
type migration struct {
	version int
	name    string
	up      func() error
}

// createMigrationsTable creates the schema_migrations table.
func (s *SQLiteStorage) createMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`)
	return err
}

// getCurrentMigrationVersion returns the highest applied migration version.
func (s *SQLiteStorage) getCurrentMigrationVersion() (int, error) {
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")

	var version int
	if err := row.Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}

// setMigrationVersion records a migration as applied.
func (s *SQLiteStorage) setMigrationVersion(version int, name string) error {
	_, err := s.db.Exec("INSERT INTO schema_migrations (version, name) VALUES (?, ?)", version, name)
	return err
}

// migration001InitialSchema creates the embedding cache and turn history tables.
func (s *SQLiteStorage) migration001InitialSchema() error {
	statements := []struct {
		what string
		sql  string
	}{
		{"catalog_embeddings table", `
			CREATE TABLE IF NOT EXISTS catalog_embeddings (
				content_hash TEXT PRIMARY KEY,
				vector BLOB NOT NULL,
				version TEXT NOT NULL,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP
			)`},
		{"turn_history table", `
			CREATE TABLE IF NOT EXISTS turn_history (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				turn_id TEXT NOT NULL UNIQUE,
				session_hash TEXT NOT NULL,
				query_hash TEXT NOT NULL,
				kind TEXT NOT NULL,
				result_count INTEGER NOT NULL,
				filters TEXT NOT NULL DEFAULT '{}',
				timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
			)`},
		{"turn_history timestamp index", `
			CREATE INDEX IF NOT EXISTS idx_turn_history_timestamp
			ON turn_history(timestamp DESC)`},
		{"turn_history kind index", `
			CREATE INDEX IF NOT EXISTS idx_turn_history_kind
			ON turn_history(kind)`},
	}

	for _, st := range statements {
		if _, err := s.db.Exec(st.sql); err != nil {
			return fmt.Errorf("failed to create %s: %w", st.what, err)
		}
	}
	return nil
}

// migration002TurnToolName records which tool a turn recommended.
func (s *SQLiteStorage) migration002TurnToolName() error {
	if _, err := s.db.Exec(`ALTER TABLE turn_history ADD COLUMN tool_name TEXT NOT NULL DEFAULT ''`); err != nil {
		return fmt.Errorf("failed to add turn_history.tool_name: %w", err)
	}
	return nil
}

// vectorToJSON converts a float32 vector to JSON for storage.
func vectorToJSON(vector []float32) (string, error) {
	data, err := json.Marshal(vector)
	if err != nil {
		return "", fmt.Errorf("failed to marshal vector: %w", err)
	}
	return string(data), nil
}

// jsonToVector parses JSON storage back to a float32 vector.
func jsonToVector(jsonStr string) ([]float32, error) {
	var vector []float32
	if err := json.Unmarshal([]byte(jsonStr), &vector); err != nil {
		return nil, err
	}
	return vector, nil
}
