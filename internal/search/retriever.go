package search

import (
	"context"

	"go.uber.org/zap"

	"github.com/khanglvm/torque-advisor/internal/catalog"
	"github.com/khanglvm/torque-advisor/internal/filter"
)

// DefaultTopK is the number of neighbours requested for unfiltered queries.
const DefaultTopK = 3

// Retriever finds the best catalog tool for a query, honouring any metadata
// constraints stated in the query itself.
type Retriever struct {
	catalog *catalog.Catalog
	ranker  Ranker
	logger  *zap.Logger
}

// NewRetriever creates a retriever over c using r for similarity ranking.
func NewRetriever(c *catalog.Catalog, r Ranker, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{catalog: c, ranker: r, logger: logger}
}

// Catalog returns the catalog being searched.
func (r *Retriever) Catalog() *catalog.Catalog { return r.catalog }

// Retrieve returns at most one tool. When the query states constraints and
// no tool satisfies them, the result is empty; there is no unfiltered fallback.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]catalog.Tool, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	filters := filter.Extract(query)
	if !filters.IsEmpty() {
		subset := filter.Positions(r.catalog, filters)
		if len(subset) == 0 {
			r.logger.Debug("no tools match query filters", zap.Object("filters", filters))
			return []catalog.Tool{}, nil
		}
		positions, err := r.RankSubset(ctx, query, subset, 1)
		if err != nil {
			return nil, err
		}
		return r.catalog.Pick(positions), nil
	}

	neighbors, err := r.ranker.Rank(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	positions := make([]int, 0, 1)
	for _, n := range neighbors {
		if r.catalog.Valid(n.Index) {
			positions = append(positions, n.Index)
			break
		}
	}
	return r.catalog.Pick(positions), nil
}

// RankSubset ranks the whole catalog and keeps, in similarity order, the first
// topK positions that belong to subset. If none survive, the first topK subset
// positions are returned in catalog order.
func (r *Retriever) RankSubset(ctx context.Context, query string, subset []int, topK int) ([]int, error) {
	if len(subset) == 0 || topK <= 0 {
		return nil, nil
	}

	member := make(map[int]struct{}, len(subset))
	for _, p := range subset {
		member[p] = struct{}{}
	}

	neighbors, err := r.ranker.Rank(ctx, query, r.catalog.Len())
	if err != nil {
		return nil, err
	}

	out := make([]int, 0, topK)
	for _, n := range neighbors {
		if !r.catalog.Valid(n.Index) {
			continue
		}
		if _, ok := member[n.Index]; !ok {
			continue
		}
		out = append(out, n.Index)
		if len(out) == topK {
			return out, nil
		}
	}
	if len(out) > 0 {
		return out, nil
	}

	r.logger.Warn("ranking returned no member of the filtered subset, using catalog order",
		zap.Int("subset", len(subset)))
	return append(out, subset[:min(topK, len(subset))]...), nil
}
