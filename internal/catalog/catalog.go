/*
Package catalog holds the immutable tool catalog the advisor recommends from.

The catalog is loaded once at startup from a JSON array of tool records.
Positional index is the identity of a tool: two records with identical fields
are still distinct entries, and every other package refers to tools by their
position in the catalog.
*/
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrEmptyCatalog is returned when a catalog file contains no tools.
var ErrEmptyCatalog = errors.New("catalog contains no tools")

// Tool is a single catalog record.
type Tool struct {
	ToolName        string   `json:"tool_name"`
	Model           string   `json:"model,omitempty"`
	Category        string   `json:"category"`
	ApplicationType string   `json:"application_type"`
	Voltage         string   `json:"voltage"`
	TorqueRange     string   `json:"torque_range"`
	IPRating        string   `json:"ip_rating"`
	UseCase         string   `json:"use_case,omitempty"`
	Specifications  []string `json:"specifications"`
	ImagePath       string   `json:"image_path"`
}

// UnmarshalJSON accepts the loosely typed exports the catalog is produced from:
// torque_range may be null, a number, or the literal "NaN", and
// specifications may be a single string.
func (t *Tool) UnmarshalJSON(data []byte) error {
	type plain Tool
	var raw struct {
		plain
		TorqueRange    json.RawMessage `json:"torque_range"`
		Specifications json.RawMessage `json:"specifications"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*t = Tool(raw.plain)
	t.TorqueRange = looseString(raw.TorqueRange)

	switch {
	case len(raw.Specifications) == 0 || string(raw.Specifications) == "null":
		t.Specifications = nil
	case raw.Specifications[0] == '[':
		if err := json.Unmarshal(raw.Specifications, &t.Specifications); err != nil {
			return fmt.Errorf("invalid specifications for %q: %w", t.ToolName, err)
		}
	default:
		if s := looseString(raw.Specifications); s != "" {
			t.Specifications = []string{s}
		}
	}
	return nil
}

// looseString renders a scalar JSON value as a string; null becomes "".
func looseString(v json.RawMessage) string {
	if len(v) == 0 || string(v) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(v))
}

// EmbeddingText is the document text used to embed and keyword-index a tool.
func (t Tool) EmbeddingText() string {
	lines := []string{
		t.ToolName,
		t.UseCase,
		t.TorqueRange,
		t.ApplicationType,
		strings.Join(t.Specifications, " "),
	}
	return strings.Join(lines, "\n")
}

// Catalog is an ordered, read-only sequence of tools.
type Catalog struct {
	tools []Tool
}

// New builds a catalog from tools in the given order.
func New(tools []Tool) *Catalog {
	cp := make([]Tool, len(tools))
	copy(cp, tools)
	return &Catalog{tools: cp}
}

// Load reads a catalog from a JSON file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a JSON array of tools.
func Parse(data []byte) (*Catalog, error) {
	var tools []Tool
	if err := json.Unmarshal(data, &tools); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if len(tools) == 0 {
		return nil, ErrEmptyCatalog
	}
	return &Catalog{tools: tools}, nil
}

// Len returns the number of tools.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.tools)
}

// At returns the tool at position i.
func (c *Catalog) At(i int) Tool {
	return c.tools[i]
}

// Valid reports whether i is a position inside the catalog.
func (c *Catalog) Valid(i int) bool {
	return i >= 0 && i < c.Len()
}

// Tools returns a copy of all tools in catalog order.
func (c *Catalog) Tools() []Tool {
	if c == nil {
		return nil
	}
	cp := make([]Tool, len(c.tools))
	copy(cp, c.tools)
	return cp
}

// Pick returns the tools at the given positions, in the given order.
func (c *Catalog) Pick(positions []int) []Tool {
	out := make([]Tool, 0, len(positions))
	for _, p := range positions {
		if c.Valid(p) {
			out = append(out, c.tools[p])
		}
	}
	return out
}
