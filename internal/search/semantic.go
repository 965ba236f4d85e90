package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/khanglvm/torque-advisor/internal/catalog"
)

// VectorCache persists tool vectors between runs, keyed by content hash.
type VectorCache interface {
	SaveEmbedding(key string, vector []float32, version string) error
	GetEmbedding(key string) ([]float32, string, error)
}

// BuildOptions tunes BuildIndex.
type BuildOptions struct {
	// Version tags cached vectors; a cached vector with another version is recomputed.
	Version string
	// BatchSize is the number of texts per embedding call.
	BatchSize int
	// Concurrency bounds parallel embedding calls.
	Concurrency int
	Logger      *zap.Logger
}

// BuildStats reports what BuildIndex did.
type BuildStats struct {
	Cached   int
	Embedded int
}

// ContentKey is the cache key for a tool's embedding text.
func ContentKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// BuildIndex embeds every catalog tool, reusing cached vectors, and returns
// an index whose positions match the catalog.
func BuildIndex(ctx context.Context, c *catalog.Catalog, e Embedder, cache VectorCache, opts BuildOptions) (*FlatIndex, BuildStats, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 64
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var stats BuildStats
	vectors := make([][]float32, c.Len())
	texts := make([]string, c.Len())
	var pending []int

	for i := 0; i < c.Len(); i++ {
		texts[i] = c.At(i).EmbeddingText()
		if cache != nil {
			vec, version, err := cache.GetEmbedding(ContentKey(texts[i]))
			if err == nil && len(vec) > 0 && version == opts.Version {
				vectors[i] = vec
				stats.Cached++
				continue
			}
		}
		pending = append(pending, i)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for start := 0; start < len(pending); start += opts.BatchSize {
		end := min(start+opts.BatchSize, len(pending))
		batch := pending[start:end]
		g.Go(func() error {
			in := make([]string, len(batch))
			for j, pos := range batch {
				in[j] = texts[pos]
			}
			out, err := e.Embed(gctx, in)
			if err != nil {
				return fmt.Errorf("failed to embed tools %d-%d: %w", batch[0], batch[len(batch)-1], err)
			}
			if len(out) != len(batch) {
				return fmt.Errorf("embedder returned %d vectors for %d tools", len(out), len(batch))
			}
			for j, pos := range batch {
				vectors[pos] = out[j]
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, stats, err
	}
	stats.Embedded = len(pending)

	if cache != nil {
		for _, pos := range pending {
			if err := cache.SaveEmbedding(ContentKey(texts[pos]), vectors[pos], opts.Version); err != nil {
				logger.Warn("failed to cache tool embedding", zap.Int("position", pos), zap.Error(err))
			}
		}
	}

	idx, err := NewFlatIndex(vectors)
	if err != nil {
		return nil, stats, err
	}
	logger.Info("built semantic index",
		zap.Int("tools", idx.Len()),
		zap.Int("dim", idx.Dim()),
		zap.Int("cached", stats.Cached),
		zap.Int("embedded", stats.Embedded))
	return idx, stats, nil
}

// SemanticRanker embeds the query and scans a FlatIndex.
type SemanticRanker struct {
	embedder Embedder
	index    *FlatIndex
}

// NewSemanticRanker creates a ranker over a prebuilt index.
func NewSemanticRanker(e Embedder, idx *FlatIndex) *SemanticRanker {
	return &SemanticRanker{embedder: e, index: idx}
}

// Rank implements Ranker.
func (s *SemanticRanker) Rank(ctx context.Context, query string, k int) ([]Neighbor, error) {
	vec, err := EmbedOne(ctx, s.embedder, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return s.index.Nearest(vec, k)
}
