package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/khanglvm/torque-advisor/internal/catalog"
)

// staticRanker returns a fixed ordering regardless of the query.
type staticRanker struct {
	order []int
	err   error
	calls []int
}

func (s *staticRanker) Rank(_ context.Context, _ string, k int) ([]Neighbor, error) {
	s.calls = append(s.calls, k)
	if s.err != nil {
		return nil, s.err
	}
	out := make([]Neighbor, 0, len(s.order))
	for i, idx := range s.order {
		out = append(out, Neighbor{Index: idx, Distance: float64(i)})
	}
	return truncate(out, k), nil
}

// keywordEmbedder maps texts to vectors by counting a few marker words.
type keywordEmbedder struct {
	mu    sync.Mutex
	calls int
	texts int
}

var markers = []string{"nutrunner", "spindle", "screwdriver", "controller"}

func (k *keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	k.mu.Lock()
	k.calls++
	k.texts += len(texts)
	k.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, len(markers))
		lower := strings.ToLower(t)
		for j, m := range markers {
			if strings.Contains(lower, m) {
				v[j] = 1
			}
		}
		out[i] = v
	}
	return out, nil
}

func testCatalog() *catalog.Catalog {
	return catalog.New([]catalog.Tool{
		{ToolName: "Cordless Nutrunner", Category: "Nutrunners", Voltage: "18V", ApplicationType: "Manual / Portable", TorqueRange: "5–60 Nm"},
		{ToolName: "Fixtured Spindle", Category: "Spindles", Voltage: "400V", ApplicationType: "Automation", TorqueRange: "20-300 Nm"},
		{ToolName: "Handheld Screwdriver", Category: "Screwdrivers", Voltage: "18V", ApplicationType: "Manual / Portable", TorqueRange: "1-10 Nm"},
		{ToolName: "Tightening Controller", Category: "Controllers", Voltage: "230V", ApplicationType: "Control System"},
	})
}

func TestFlatIndex_Nearest(t *testing.T) {
	idx, err := NewFlatIndex([][]float32{{0, 0}, {1, 0}, {0, 3}, {1, 0}})
	require.NoError(t, err)

	got, err := idx.Nearest([]float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []int{1, 3, 0}, []int{got[0].Index, got[1].Index, got[2].Index}, "ties break on position")
	assert.Equal(t, 0.0, got[0].Distance)
	assert.Equal(t, 1.0, got[2].Distance)

	_, err = idx.Nearest([]float32{1}, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = NewFlatIndex([][]float32{{1, 2}, {1}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestRetriever_NoFilters_TopOne(t *testing.T) {
	ranker := &staticRanker{order: []int{2, 0, 1}}
	r := NewRetriever(testCatalog(), ranker, zaptest.NewLogger(t))

	got, err := r.Retrieve(context.Background(), "something handy", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Handheld Screwdriver", got[0].ToolName)
	assert.Equal(t, []int{DefaultTopK}, ranker.calls)
}

func TestRetriever_FilteredSubsetKeepsSimilarityOrder(t *testing.T) {
	// Similarity prefers the spindle, but only 18V tools qualify.
	ranker := &staticRanker{order: []int{1, 2, 0, 3}}
	r := NewRetriever(testCatalog(), ranker, zaptest.NewLogger(t))

	got, err := r.Retrieve(context.Background(), "18V tool", DefaultTopK)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Handheld Screwdriver", got[0].ToolName)
	assert.Equal(t, []int{4}, ranker.calls, "subset ranking scans the full catalog")
}

func TestRetriever_FiltersWithNoMatchReturnEmpty(t *testing.T) {
	ranker := &staticRanker{order: []int{0, 1, 2, 3}}
	r := NewRetriever(testCatalog(), ranker, nil)

	got, err := r.Retrieve(context.Background(), "IP67 nutrunner", DefaultTopK)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, ranker.calls, "no unfiltered fallback")
}

func TestRetriever_RankerError(t *testing.T) {
	boom := errors.New("upstream down")
	r := NewRetriever(testCatalog(), &staticRanker{err: boom}, nil)

	_, err := r.Retrieve(context.Background(), "nutrunner", DefaultTopK)
	assert.ErrorIs(t, err, boom)

	_, err = r.Retrieve(context.Background(), "18V nutrunner", DefaultTopK)
	assert.ErrorIs(t, err, boom)
}

func TestRankSubset_FallbackToCatalogOrder(t *testing.T) {
	// The ranker only ever returns position 3, which is outside the subset.
	r := NewRetriever(testCatalog(), &staticRanker{order: []int{3}}, zaptest.NewLogger(t))

	got, err := r.RankSubset(context.Background(), "q", []int{2, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, got)

	got, err = r.RankSubset(context.Background(), "q", []int{2, 0}, 5)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0}, got)
}

func TestRankSubset_DuplicateToolsByPosition(t *testing.T) {
	twin := catalog.Tool{ToolName: "Twin", Voltage: "18V"}
	c := catalog.New([]catalog.Tool{twin, {ToolName: "Other"}, twin})
	r := NewRetriever(c, &staticRanker{order: []int{0, 1, 2}}, nil)

	got, err := r.RankSubset(context.Background(), "q", []int{2}, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, got, "identical tools are told apart by position")
}

func TestRankSubset_SkipsOutOfRangeNeighbors(t *testing.T) {
	r := NewRetriever(testCatalog(), &staticRanker{order: []int{99, -1, 3, 0}}, nil)

	got, err := r.RankSubset(context.Background(), "q", []int{0, 3}, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 0}, got)
}

type memCache struct {
	mu   sync.Mutex
	vecs map[string][]float32
	ver  map[string]string
}

func newMemCache() *memCache {
	return &memCache{vecs: map[string][]float32{}, ver: map[string]string{}}
}

func (m *memCache) SaveEmbedding(key string, v []float32, version string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vecs[key] = v
	m.ver[key] = version
	return nil
}

func (m *memCache) GetEmbedding(key string) ([]float32, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vecs[key], m.ver[key], nil
}

func TestBuildIndex_UsesCache(t *testing.T) {
	c := testCatalog()
	emb := &keywordEmbedder{}
	cache := newMemCache()

	idx, stats, err := BuildIndex(context.Background(), c, emb, cache, BuildOptions{Version: "v1", BatchSize: 3})
	require.NoError(t, err)
	assert.Equal(t, 4, idx.Len())
	assert.Equal(t, BuildStats{Embedded: 4}, stats)
	assert.Equal(t, 2, emb.calls)

	_, stats, err = BuildIndex(context.Background(), c, emb, cache, BuildOptions{Version: "v1"})
	require.NoError(t, err)
	assert.Equal(t, BuildStats{Cached: 4}, stats)

	_, stats, err = BuildIndex(context.Background(), c, emb, cache, BuildOptions{Version: "v2"})
	require.NoError(t, err)
	assert.Equal(t, BuildStats{Embedded: 4}, stats, "version change invalidates cache")
}

func TestSemanticRanker_EndToEnd(t *testing.T) {
	c := testCatalog()
	emb := &keywordEmbedder{}
	idx, _, err := BuildIndex(context.Background(), c, emb, nil, BuildOptions{})
	require.NoError(t, err)

	r := NewRetriever(c, NewSemanticRanker(emb, idx), nil)
	got, err := r.Retrieve(context.Background(), "spindle", DefaultTopK)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Fixtured Spindle", got[0].ToolName)
}

func TestCachedEmbedder(t *testing.T) {
	emb := &keywordEmbedder{}
	cached, err := NewCachedEmbedder(emb, 8)
	require.NoError(t, err)

	_, err = cached.Embed(context.Background(), []string{"a nutrunner", "a spindle"})
	require.NoError(t, err)
	got, err := cached.Embed(context.Background(), []string{"a spindle", "a controller"})
	require.NoError(t, err)

	assert.Equal(t, []float32{0, 1, 0, 0}, got[0])
	assert.Equal(t, []float32{0, 0, 0, 1}, got[1])
	assert.Equal(t, 3, emb.texts, "cached text is not re-embedded")
	assert.Equal(t, 3, cached.Len())
}

func TestHTTPEmbedder(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultEmbeddingModel, req.Model)

		// Reply out of order to check reassembly by index.
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}]}`))
	}))
	defer srv.Close()

	e, err := NewHTTPEmbedder(HTTPEmbedderConfig{APIKey: "secret", BaseURL: srv.URL + "/v1/"})
	require.NoError(t, err)

	got, err := e.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, got)
	assert.EqualValues(t, 1, hits.Load())
}

func TestHTTPEmbedder_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
	}))
	defer srv.Close()

	e, err := NewHTTPEmbedder(HTTPEmbedderConfig{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slow down")

	_, err = NewHTTPEmbedder(HTTPEmbedderConfig{})
	assert.Error(t, err)
}

func TestKeywordIndex(t *testing.T) {
	idx, err := NewKeywordIndex(testCatalog(), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer idx.Close()

	count, err := idx.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 4, count)

	got, err := idx.Rank(context.Background(), "spindle", 4)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, 1, got[0].Index)

	got, err = idx.Rank(context.Background(), "   ", 4)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestKeywordIndex_SubsetFallbackIsReachable(t *testing.T) {
	idx, err := NewKeywordIndex(testCatalog(), nil)
	require.NoError(t, err)
	defer idx.Close()

	// "18V" filters to positions 0 and 2; neither mentions "controller".
	r := NewRetriever(testCatalog(), idx, nil)
	got, err := r.RankSubset(context.Background(), "controller", []int{0, 2}, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, got)
}

func TestHybridRanker(t *testing.T) {
	semantic := &staticRanker{order: []int{0, 1, 2}}
	keyword := &staticRanker{order: []int{2}}

	h := NewHybridRanker(semantic, keyword, DefaultFusionConfig)
	got, err := h.Rank(context.Background(), "q", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 0, got[0].Index)

	// Keyword failures degrade to semantic ranking.
	h = NewHybridRanker(semantic, &staticRanker{err: errors.New("x")}, DefaultFusionConfig)
	got, err = h.Rank(context.Background(), "q", 2)
	require.NoError(t, err)
	assert.Equal(t, []Neighbor{{Index: 0, Distance: 0}, {Index: 1, Distance: 1}}, got)
}

func TestNormalizeScores(t *testing.T) {
	assert.Empty(t, normalizeScores(nil))

	single := normalizeScores([]scored{{index: 0, score: 0.5}})
	assert.Equal(t, 1.0, single[0].score)

	multi := normalizeScores([]scored{{0, 0}, {1, 0.5}, {2, 1}})
	assert.InDelta(t, 0.0, multi[0].score, 0.001)
	assert.InDelta(t, 0.5, multi[1].score, 0.001)
	assert.InDelta(t, 1.0, multi[2].score, 0.001)
}
