/*
Package search ranks catalog tools against a free-text query.

Rankers return catalog positions ordered by ascending distance. Semantic
ranking embeds the query and scans an exact L2 index of tool vectors; keyword
ranking uses a BM25 index; hybrid ranking fuses both. The Retriever combines a
Ranker with metadata filters and restricts ranking to a filtered subset of the
catalog by position.
*/
package search

import (
	"context"
	"sort"
)

// Neighbor is a ranked catalog position. Lower distance is more similar.
type Neighbor struct {
	Index    int     `json:"index"`
	Distance float64 `json:"distance"`
}

// Ranker orders catalog positions by similarity to a query.
type Ranker interface {
	// Rank returns up to k neighbours ordered by ascending distance.
	Rank(ctx context.Context, query string, k int) ([]Neighbor, error)
}

// sortNeighbors orders by distance, then position, so ties are deterministic.
func sortNeighbors(ns []Neighbor) {
	sort.SliceStable(ns, func(i, j int) bool {
		if ns[i].Distance != ns[j].Distance {
			return ns[i].Distance < ns[j].Distance
		}
		return ns[i].Index < ns[j].Index
	})
}

func truncate(ns []Neighbor, k int) []Neighbor {
	if k >= 0 && len(ns) > k {
		return ns[:k]
	}
	return ns
}
