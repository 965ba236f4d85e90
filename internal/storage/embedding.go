package storage

import (
	"time"

	"go.uber.org/zap"
)

// SaveEmbedding caches an embedding vector under a content key.
func (s *SQLiteStorage) SaveEmbedding(key string, vector []float32, version string) error {
	if !s.enabled || s.db == nil {
		return nil
	}

	vectorJSON, err := vectorToJSON(vector)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO catalog_embeddings (content_hash, vector, version, created_at)
		VALUES (?, ?, ?, ?)
	`, key, vectorJSON, version, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		s.log().Warn("failed to save embedding", zap.Error(err))
	}

	return nil
}

// GetEmbedding retrieves a cached embedding. A miss returns a nil vector and no error.
func (s *SQLiteStorage) GetEmbedding(key string) ([]float32, string, error) {
	if !s.enabled || s.db == nil {
		return nil, "", nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT vector, version
		FROM catalog_embeddings
		WHERE content_hash = ?
	`, key)
	if err != nil {
		s.log().Warn("failed to query embedding", zap.Error(err))
		return nil, "", nil
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, "", nil
	}

	var vectorJSON, version string
	if err := rows.Scan(&vectorJSON, &version); err != nil {
		s.log().Warn("failed to scan embedding", zap.Error(err))
		return nil, "", nil
	}

	vector, err := jsonToVector(vectorJSON)
	if err != nil {
		s.log().Warn("failed to parse embedding vector", zap.Error(err))
		return nil, "", nil
	}

	return vector, version, nil
}
