package recommend

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/khanglvm/torque-advisor/internal/turn"
)

const (
	errNoJSON      = "No JSON found in response"
	errInvalidJSON = "Invalid JSON"
)

// ExtractJSONObject returns the first balanced {...} block in s. Braces
// inside JSON strings are ignored.
func ExtractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// looseRecommendation accepts the type drift models tend to produce, such as
// a numeric confidence or a single string for key_specs.
type looseRecommendation struct {
	ToolName       json.RawMessage `json:"tool_name"`
	Model          json.RawMessage `json:"model"`
	WhyRecommended json.RawMessage `json:"why_recommended"`
	KeySpecs       json.RawMessage `json:"key_specs"`
	Voltage        json.RawMessage `json:"voltage"`
	IPRating       json.RawMessage `json:"ip_rating"`
	ImagePath      json.RawMessage `json:"image_path"`
	Confidence     json.RawMessage `json:"confidence"`
}

// Parse turns raw model output into a turn response. Output without a
// usable JSON object becomes an error payload carrying the raw text.
func Parse(raw string) turn.Response {
	obj, ok := ExtractJSONObject(raw)
	if !ok {
		return turn.NewError(errNoJSON, raw)
	}

	var loose looseRecommendation
	if err := json.Unmarshal([]byte(obj), &loose); err != nil {
		return turn.NewError(errInvalidJSON, raw)
	}

	return turn.NewRecommendation(turn.Recommendation{
		ToolName:       text(loose.ToolName),
		Model:          text(loose.Model),
		WhyRecommended: text(loose.WhyRecommended),
		KeySpecs:       texts(loose.KeySpecs),
		Voltage:        text(loose.Voltage),
		IPRating:       text(loose.IPRating),
		ImagePath:      text(loose.ImagePath),
		Confidence:     text(loose.Confidence),
	})
}

func text(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func texts(raw json.RawMessage) []string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return []string{}
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return []string{text(raw)}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, text(item))
	}
	return out
}
