package search

import (
	"context"
)

// FusionConfig defines weights for hybrid score fusion.
type FusionConfig struct {
	SemanticWeight float64
	KeywordWeight  float64
}

// DefaultFusionConfig provides balanced fusion (70% semantic, 30% keyword).
var DefaultFusionConfig = FusionConfig{
	SemanticWeight: 0.7,
	KeywordWeight:  0.3,
}

// HybridRanker fuses semantic and keyword rankings.
type HybridRanker struct {
	semantic Ranker
	keyword  Ranker
	config   FusionConfig
}

// NewHybridRanker combines two rankers with the given weights.
func NewHybridRanker(semantic, keyword Ranker, config FusionConfig) *HybridRanker {
	return &HybridRanker{semantic: semantic, keyword: keyword, config: config}
}

// Rank implements Ranker. A keyword failure degrades to semantic-only ranking;
// a semantic failure is returned.
func (h *HybridRanker) Rank(ctx context.Context, query string, k int) ([]Neighbor, error) {
	semantic, err := h.semantic.Rank(ctx, query, k)
	if err != nil {
		return nil, err
	}

	keyword, err := h.keyword.Rank(ctx, query, k)
	if err != nil || len(keyword) == 0 {
		return semantic, nil
	}

	fused := fuseScores(semantic, keyword, h.config)
	sortNeighbors(fused)
	return truncate(fused, k), nil
}

// scored is a position with a similarity score (higher is better).
type scored struct {
	index int
	score float64
}

// fuseScores combines both rankings with weighted, normalised similarity.
// The fused distance is 1 - fused similarity.
func fuseScores(semantic, keyword []Neighbor, config FusionConfig) []Neighbor {
	semScores := normalizeScores(toScores(semantic))
	kwScores := normalizeScores(toScores(keyword))

	semMap := make(map[int]float64, len(semScores))
	for _, s := range semScores {
		semMap[s.index] = s.score
	}
	kwMap := make(map[int]float64, len(kwScores))
	for _, s := range kwScores {
		kwMap[s.index] = s.score
	}

	seen := make(map[int]bool, len(semMap)+len(kwMap))
	order := make([]int, 0, len(semMap)+len(kwMap))
	for _, s := range semScores {
		if !seen[s.index] {
			seen[s.index] = true
			order = append(order, s.index)
		}
	}
	for _, s := range kwScores {
		if !seen[s.index] {
			seen[s.index] = true
			order = append(order, s.index)
		}
	}

	out := make([]Neighbor, 0, len(order))
	for _, idx := range order {
		sem, hasSem := semMap[idx]
		kw, hasKw := kwMap[idx]

		var fused float64
		switch {
		case hasSem && hasKw:
			fused = config.SemanticWeight*sem + config.KeywordWeight*kw
		case hasSem:
			fused = config.SemanticWeight * sem
		default:
			fused = config.KeywordWeight * kw
		}
		out = append(out, Neighbor{Index: idx, Distance: 1 - fused})
	}
	return out
}

func toScores(ns []Neighbor) []scored {
	out := make([]scored, len(ns))
	for i, n := range ns {
		out[i] = scored{index: n.Index, score: 1 / (1 + n.Distance)}
	}
	return out
}

// normalizeScores normalizes scores to [0, 1] range.
func normalizeScores(results []scored) []scored {
	if len(results) == 0 {
		return results
	}

	minScore := results[0].score
	maxScore := results[0].score
	for _, r := range results {
		if r.score < minScore {
			minScore = r.score
		}
		if r.score > maxScore {
			maxScore = r.score
		}
	}

	normalized := make([]scored, len(results))
	for i, r := range results {
		normalized[i] = r
		// All scores equal: treat every result as a full match.
		if maxScore == minScore {
			normalized[i].score = 1.0
			continue
		}
		normalized[i].score = (r.score - minScore) / (maxScore - minScore)
	}
	return normalized
}
