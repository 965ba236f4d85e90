/*
Package storage implements the advisor's local persistence layer.

It caches catalog embedding vectors between runs and records an anonymised
history of turns for analytics. Storage degrades gracefully: if the database
cannot be opened, every operation becomes a no-op and the advisor keeps
working without it.

The database lives at ~/.torque-advisor/advisor.db by default and uses
modernc.org/sqlite (a pure Go, CGo-free implementation).
*/
package storage

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Storage defines the interface for persistent storage operations.
type Storage interface {
	// Init initializes the database and runs migrations.
	Init() error

	// SaveEmbedding caches an embedding vector under a content key.
	SaveEmbedding(key string, vector []float32, version string) error

	// GetEmbedding retrieves a cached embedding and its version.
	GetEmbedding(key string) ([]float32, string, error)

	// RecordTurns stores a batch of turn records.
	RecordTurns(records []TurnRecord) error

	// TurnSummary aggregates turns recorded since the given time.
	TurnSummary(since time.Time) (TurnSummary, error)

	// Cleanup removes old records based on retention policy.
	Cleanup(retention time.Duration) error

	// Close closes the database connection.
	Close() error
}

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db       *sql.DB
	dbPath   string
	enabled  bool
	logger   *zap.Logger
	mu       sync.Mutex
	initOnce sync.Once
}

// DefaultDataDir returns ~/.torque-advisor.
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".torque-advisor"), nil
}

// NewStorage creates a SQLite storage instance at dataDir/advisor.db.
//
// An empty dataDir selects DefaultDataDir. If no location can be resolved
// the storage is disabled but operations will not fail.
func NewStorage(dataDir string, logger *zap.Logger) *SQLiteStorage {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dataDir == "" {
		dir, err := DefaultDataDir()
		if err != nil {
			logger.Warn("storage disabled", zap.Error(err))
			return &SQLiteStorage{enabled: false, logger: logger}
		}
		dataDir = dir
	}

	return &SQLiteStorage{
		dbPath:  filepath.Join(dataDir, "advisor.db"),
		enabled: true,
		logger:  logger,
	}
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string { return s.dbPath }

// Enabled reports whether the storage is usable.
func (s *SQLiteStorage) Enabled() bool { return s.enabled && s.db != nil }

func (s *SQLiteStorage) log() *zap.Logger {
	if s.logger == nil {
		return zap.NewNop()
	}
	return s.logger
}

// Init initializes the database and runs migrations.
//
// If initialization fails, storage is disabled and subsequent operations
// become no-ops (graceful degradation).
func (s *SQLiteStorage) Init() error {
	if !s.enabled {
		return nil
	}

	var initErr error
	s.initOnce.Do(func() {
		dbDir := filepath.Dir(s.dbPath)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			initErr = fmt.Errorf("failed to create db directory: %w", err)
			s.enabled = false
			return
		}

		db, err := sql.Open("sqlite", s.dbPath)
		if err != nil {
			initErr = fmt.Errorf("failed to open database: %w", err)
			s.enabled = false
			s.log().Warn("storage disabled", zap.Error(initErr))
			return
		}
		s.db = db

		if err := db.Ping(); err != nil {
			initErr = fmt.Errorf("failed to ping database: %w", err)
			s.enabled = false
			s.log().Warn("storage disabled", zap.Error(initErr))
			return
		}

		if err := s.runMigrations(); err != nil {
			initErr = fmt.Errorf("failed to run migrations: %w", err)
			s.enabled = false
			s.log().Warn("storage disabled", zap.Error(initErr))
			return
		}
	})

	return initErr
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	if s.db == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.db = nil
	return nil
}

// HashQuery creates a SHA256 hash of a query string for privacy.
func HashQuery(query string) string {
	hash := sha256.Sum256([]byte(query))
	return hex.EncodeToString(hash[:])
}
