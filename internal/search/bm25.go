package search

import (
	"context"
	"fmt"
	"strconv"

	"github.com/blevesearch/bleve/v2"
)

// Rank performs BM25 keyword ranking. Only tools sharing at least one term
// with the query are returned; distance is 1/(1+score).
func (i *KeywordIndex) Rank(ctx context.Context, q string, k int) ([]Neighbor, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	q = normalizeQuery(q)
	if q == "" || k <= 0 {
		return nil, nil
	}

	searchRequest := bleve.NewSearchRequestOptions(buildMatchQuery(q), k, 0, false)

	results, err := i.bleveIndex.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}

	return convertBleveResults(results, i.size), nil
}

// convertBleveResults maps hits back to catalog positions.
func convertBleveResults(results *bleve.SearchResult, size int) []Neighbor {
	out := make([]Neighbor, 0, len(results.Hits))
	for _, hit := range results.Hits {
		pos, err := strconv.Atoi(hit.ID)
		if err != nil || pos < 0 || pos >= size {
			continue
		}
		out = append(out, Neighbor{Index: pos, Distance: 1 / (1 + hit.Score)})
	}
	sortNeighbors(out)
	return out
}
