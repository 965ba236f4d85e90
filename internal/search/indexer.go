package search

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"go.uber.org/zap"

	"github.com/khanglvm/torque-advisor/internal/catalog"
)

// KeywordIndex is an in-memory BM25 index over catalog tools. Document ids
// are catalog positions.
type KeywordIndex struct {
	bleveIndex bleve.Index
	mu         sync.RWMutex
	size       int
}

// NewKeywordIndex indexes every tool in the catalog.
func NewKeywordIndex(c *catalog.Catalog, logger *zap.Logger) (*KeywordIndex, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create bleve index: %w", err)
	}

	batch := index.NewBatch()
	for i := 0; i < c.Len(); i++ {
		t := c.At(i)
		doc := map[string]interface{}{
			"name":        t.ToolName,
			"category":    t.Category,
			"application": t.ApplicationType,
			"text":        t.EmbeddingText(),
		}
		if err := batch.Index(strconv.Itoa(i), doc); err != nil {
			logger.Warn("failed to index tool", zap.Int("position", i), zap.String("tool", t.ToolName), zap.Error(err))
		}
	}
	if err := index.Batch(batch); err != nil {
		index.Close()
		return nil, fmt.Errorf("failed to batch index tools: %w", err)
	}

	return &KeywordIndex{bleveIndex: index, size: c.Len()}, nil
}

// buildIndexMapping creates the Bleve index mapping.
func buildIndexMapping() mapping.IndexMapping {
	toolMapping := bleve.NewDocumentMapping()

	for _, field := range []string{"name", "category", "application", "text"} {
		toolMapping.AddFieldMappingsAt(field, bleve.NewTextFieldMapping())
	}

	indexMapping := bleve.NewIndexMapping()
	indexMapping.AddDocumentMapping("_default", toolMapping)
	return indexMapping
}

// Count returns the total number of indexed tools.
func (i *KeywordIndex) Count() (uint64, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	docCount, err := i.bleveIndex.DocCount()
	if err != nil {
		return 0, fmt.Errorf("failed to get doc count: %w", err)
	}
	return docCount, nil
}

// Close closes the index and releases resources.
func (i *KeywordIndex) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.bleveIndex != nil {
		return i.bleveIndex.Close()
	}
	return nil
}

// buildMatchQuery matches the query against all text fields, boosting the tool name.
func buildMatchQuery(searchText string) query.Query {
	name := bleve.NewMatchQuery(searchText)
	name.SetField("name")
	name.SetBoost(2)

	text := bleve.NewMatchQuery(searchText)
	text.SetField("text")

	category := bleve.NewMatchQuery(searchText)
	category.SetField("category")

	return bleve.NewDisjunctionQuery(name, text, category)
}

func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(q), " ")
}
