package clarify

import (
	"sort"
	"strings"

	"github.com/khanglvm/torque-advisor/internal/catalog"
)

// stopWords are dropped from the vocabulary; they name no specific tool.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "for": true, "with": true,
	"and": true, "or": true, "-": true,
	"tool": true, "machine": true, "device": true, "equipment": true, "system": true,
}

// Vocabulary is the set of lowercase keywords that name specific tools or
// categories in the catalog.
type Vocabulary struct {
	keywords []string
}

// NewVocabulary builds the vocabulary from full tool names, the words of tool
// names and the words of category names.
func NewVocabulary(c *catalog.Catalog) *Vocabulary {
	set := make(map[string]bool)
	for i := 0; i < c.Len(); i++ {
		t := c.At(i)
		if name := strings.ToLower(t.ToolName); name != "" {
			set[name] = true
			for _, w := range strings.Fields(name) {
				set[w] = true
			}
		}
		for _, w := range strings.Fields(strings.ToLower(t.Category)) {
			set[w] = true
		}
	}

	keywords := make([]string, 0, len(set))
	for k := range set {
		if !stopWords[k] {
			keywords = append(keywords, k)
		}
	}
	sort.Strings(keywords)
	return &Vocabulary{keywords: keywords}
}

// Contains reports whether the query mentions any keyword as a substring.
func (v *Vocabulary) Contains(query string) bool {
	if v == nil {
		return false
	}
	lower := strings.ToLower(query)
	for _, k := range v.keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// Keywords returns the sorted keyword list.
func (v *Vocabulary) Keywords() []string {
	if v == nil {
		return nil
	}
	out := make([]string, len(v.keywords))
	copy(out, v.keywords)
	return out
}

// Len returns the number of keywords.
func (v *Vocabulary) Len() int {
	if v == nil {
		return 0
	}
	return len(v.keywords)
}
