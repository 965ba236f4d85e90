/*
Package turn defines the payloads returned for a single conversational turn.

A Response is a tagged union: exactly one of Clarification, Recommendation or
Error is set, and Kind says which. On the wire the variant's own fields are
emitted at the top level, so clients can keep switching on the "status" or
"error" keys they already understand.
*/
package turn

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/khanglvm/torque-advisor/internal/filter"
)

// Kind identifies the variant held by a Response.
type Kind string

const (
	KindClarification  Kind = "needs_clarification"
	KindRecommendation Kind = "recommendation"
	KindError          Kind = "error"
)

// StatusNeedsClarification is the status value carried by clarification payloads.
const StatusNeedsClarification = "needs_clarification"

// Clarification asks the user for more detail.
type Clarification struct {
	Status      string              `json:"status"`
	Message     string              `json:"message"`
	Questions   []string            `json:"questions"`
	Suggestions map[string][]string `json:"suggestions"`
	Filters     filter.Set          `json:"filters"`
}

// Recommendation is the structured answer produced by the recommender.
type Recommendation struct {
	ToolName       string   `json:"tool_name"`
	Model          string   `json:"model"`
	WhyRecommended string   `json:"why_recommended"`
	KeySpecs       []string `json:"key_specs"`
	Voltage        string   `json:"voltage"`
	IPRating       string   `json:"ip_rating"`
	ImagePath      string   `json:"image_path"`
	Confidence     string   `json:"confidence"`
}

// ErrorPayload reports a recommendation that could not be parsed.
type ErrorPayload struct {
	Error string `json:"error"`
	Raw   string `json:"raw"`
}

// Response is the result of one turn.
type Response struct {
	Kind           Kind
	Clarification  *Clarification
	Recommendation *Recommendation
	Error          *ErrorPayload
}

// NewClarification wraps c in a Response.
func NewClarification(c Clarification) Response {
	if c.Status == "" {
		c.Status = StatusNeedsClarification
	}
	if c.Questions == nil {
		c.Questions = []string{}
	}
	if c.Suggestions == nil {
		c.Suggestions = map[string][]string{}
	}
	return Response{Kind: KindClarification, Clarification: &c}
}

// NewRecommendation wraps r in a Response.
func NewRecommendation(r Recommendation) Response {
	return Response{Kind: KindRecommendation, Recommendation: &r}
}

// NewError wraps an unparseable recommender reply in a Response.
func NewError(msg, raw string) Response {
	return Response{Kind: KindError, Error: &ErrorPayload{Error: msg, Raw: raw}}
}

// IsClarification reports whether the response asks a follow-up question.
func (r Response) IsClarification() bool {
	return r.Kind == KindClarification && r.Clarification != nil
}

// Filters returns the filters carried by the response, if any.
func (r Response) Filters() filter.Set {
	if r.IsClarification() {
		return r.Clarification.Filters
	}
	return filter.Set{}
}

// MarshalJSON emits the active variant's fields.
func (r Response) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case KindClarification:
		if r.Clarification == nil {
			break
		}
		return json.Marshal(r.Clarification)
	case KindRecommendation:
		if r.Recommendation == nil {
			break
		}
		return json.Marshal(r.Recommendation)
	case KindError:
		if r.Error == nil {
			break
		}
		return json.Marshal(r.Error)
	}
	return nil, fmt.Errorf("turn: response of kind %q has no payload", r.Kind)
}

// UnmarshalJSON detects the variant from the keys present.
func (r *Response) UnmarshalJSON(data []byte) error {
	var probe struct {
		Status *string `json:"status"`
		Error  *string `json:"error"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}

	switch {
	case probe.Status != nil && *probe.Status == StatusNeedsClarification:
		var c Clarification
		if err := json.Unmarshal(data, &c); err != nil {
			return err
		}
		*r = NewClarification(c)
	case probe.Error != nil:
		var e ErrorPayload
		if err := json.Unmarshal(data, &e); err != nil {
			return err
		}
		*r = Response{Kind: KindError, Error: &e}
	default:
		var rec Recommendation
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		if rec.ToolName == "" {
			return errors.New("turn: payload is neither a clarification, a recommendation nor an error")
		}
		*r = NewRecommendation(rec)
	}
	return nil
}
