/*
Package clarify decides whether a turn has enough signal to recommend a tool
and, when it does not, builds the follow-up questions to ask.
*/
package clarify

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/khanglvm/torque-advisor/internal/catalog"
	"github.com/khanglvm/torque-advisor/internal/filter"
	"github.com/khanglvm/torque-advisor/internal/turn"
)

// MaxQuestions caps the follow-up questions in one clarification.
const MaxQuestions = 2

// maxCandidates is the most results a turn may have and still be answered.
const maxCandidates = 3

var (
	genericTerms = []string{"tool", "machine", "device", "equipment"}
	vaguePhrases = []string{"i want", "i need", "looking for", "show me", "give me", "find me", "help with"}

	exampleQueries = []string{"cordless nutrunner", "handheld screwdriver", "automation spindle", "verification system"}
	vagueExamples  = []string{"cordless nutrunner", "handheld screwdriver", "automation spindle", "torque verification system"}
)

// Reason names the rule that decided a clarification outcome.
type Reason string

const (
	ReasonFilteredFew    Reason = "filtered_few"
	ReasonSpecificTool   Reason = "specific_tool"
	ReasonGenericQuery   Reason = "generic_query"
	ReasonShortQuery     Reason = "short_query"
	ReasonTooManyResults Reason = "too_many_results"
	ReasonNoResults      Reason = "no_results"
	ReasonAnswerable     Reason = "answerable"
)

// Engine holds the catalog vocabulary and applies the clarification policy.
type Engine struct {
	vocab atomic.Pointer[Vocabulary]
}

// NewEngine builds an engine with a vocabulary drawn from c.
func NewEngine(c *catalog.Catalog) *Engine {
	e := &Engine{}
	e.Rebuild(c)
	return e
}

// Rebuild swaps in a vocabulary built from c.
func (e *Engine) Rebuild(c *catalog.Catalog) {
	e.vocab.Store(NewVocabulary(c))
}

// Vocabulary returns the current vocabulary.
func (e *Engine) Vocabulary() *Vocabulary {
	return e.vocab.Load()
}

// NamesSpecificTool reports whether the query mentions a catalog keyword.
func (e *Engine) NamesSpecificTool(query string) bool {
	return e.vocab.Load().Contains(query)
}

// NeedsClarification reports whether the turn should ask a follow-up question.
func (e *Engine) NeedsClarification(query string, filters filter.Set, results int) bool {
	need, _ := e.Decide(query, filters, results)
	return need
}

// Decide applies the policy rules in order and returns the outcome together
// with the rule that produced it.
func (e *Engine) Decide(query string, filters filter.Set, results int) (bool, Reason) {
	lower := strings.ToLower(query)
	words := strings.Fields(lower)
	hasFilters := !filters.IsEmpty()

	if hasFilters && results >= 1 && results <= maxCandidates {
		return false, ReasonFilteredFew
	}

	specific := e.NamesSpecificTool(query)
	if specific && results > 0 {
		if results > maxCandidates {
			return true, ReasonTooManyResults
		}
		return false, ReasonSpecificTool
	}

	generic := containsWord(words, genericTerms) || containsPhrase(lower, vaguePhrases)
	if generic && !specific && !hasFilters {
		return true, ReasonGenericQuery
	}

	if len(words) < 2 && !hasFilters && !specific {
		return true, ReasonShortQuery
	}

	if results > maxCandidates {
		return true, ReasonTooManyResults
	}
	if results == 0 {
		return true, ReasonNoResults
	}
	return false, ReasonAnswerable
}

// Explain builds the clarification payload for a turn that needs one. The
// returned value carries no filters; the caller attaches them.
func (e *Engine) Explain(query string, filters filter.Set, results []catalog.Tool, all *catalog.Catalog) turn.Clarification {
	switch {
	case len(results) == 0:
		return noResults(all)
	case len(results) > maxCandidates:
		return tooMany(filters, results)
	case len(strings.Fields(query)) < 2 && filters.IsEmpty():
		return turn.Clarification{
			Status:  turn.StatusNeedsClarification,
			Message: "Your query is too vague. Could you be more specific?",
			Questions: []string{
				"What type of tool are you looking for?",
				"What is your intended use case?",
			},
			Suggestions: map[string][]string{"examples": clone(vagueExamples)},
		}
	default:
		return fallback(filters)
	}
}

func noResults(all *catalog.Catalog) turn.Clarification {
	tools := all.Tools()
	return turn.Clarification{
		Status:  turn.StatusNeedsClarification,
		Message: "I couldn't find any tools matching your criteria. Could you provide more details?",
		Questions: []string{
			"What type of tool are you looking for?",
			"What will be the primary use case?",
		},
		Suggestions: map[string][]string{
			"categories":        distinct(tools, func(t catalog.Tool) string { return t.Category }, true),
			"application_types": distinct(tools, func(t catalog.Tool) string { return t.ApplicationType }, true),
			"examples":          clone(exampleQueries),
		},
	}
}

// tooMany proposes the unspecified dimensions that still split the
// candidates: voltage, then application type, then torque. IP rating is
// offered only when none of those applied.
func tooMany(filters filter.Set, results []catalog.Tool) turn.Clarification {
	var questions []string
	suggestions := map[string][]string{}

	if !filters.Has(filter.KeyVoltage) {
		if v := distinct(results, func(t catalog.Tool) string { return t.Voltage }, false); len(v) > 1 {
			questions = append(questions, "What voltage do you need?")
			suggestions["voltage_options"] = v
		}
	}

	if !filters.Has(filter.KeyApplicationType) {
		if v := distinct(results, func(t catalog.Tool) string { return t.ApplicationType }, true); len(v) > 1 {
			questions = append(questions, "Is this for manual use or automation?")
			suggestions["application_types"] = v
		}
	}

	if !filters.Has(filter.KeyTorque) {
		ranges := torqueRanges(results)
		if len(uniq(ranges)) > 1 {
			questions = append(questions, "What torque range do you require?")
			suggestions["torque_examples"] = ranges[:min(3, len(ranges))]
		}
	}

	if !filters.Has(filter.KeyIPRating) && len(questions) == 0 {
		if v := distinct(results, func(t catalog.Tool) string { return t.IPRating }, false); len(v) > 1 {
			questions = append(questions, "Do you need a specific IP rating?")
			suggestions["ip_rating_options"] = v
		}
	}

	return turn.Clarification{
		Status:      turn.StatusNeedsClarification,
		Message:     fmt.Sprintf("I found %d tools that might match. Please provide more details:", len(results)),
		Questions:   capQuestions(questions),
		Suggestions: suggestions,
	}
}

func fallback(filters filter.Set) turn.Clarification {
	var questions []string
	if !filters.Has(filter.KeyTorque) {
		questions = append(questions, "What torque range do you require (in Nm)?")
	}
	if !filters.Has(filter.KeyApplicationType) {
		questions = append(questions, "Is this for automation or manual use?")
	}
	if !filters.Has(filter.KeyVoltage) {
		questions = append(questions, "Do you have any voltage preference (e.g., 18V, 230V, 400V)?")
	}
	return turn.Clarification{
		Status:      turn.StatusNeedsClarification,
		Message:     "Could you provide more details about your requirements?",
		Questions:   capQuestions(questions),
		Suggestions: map[string][]string{},
	}
}

// distinct returns the sorted distinct values of field. Empty values become
// "N/A" when keepMissing is set and are skipped otherwise.
func distinct(tools []catalog.Tool, field func(catalog.Tool) string, keepMissing bool) []string {
	seen := make(map[string]bool)
	for _, t := range tools {
		v := field(t)
		if v == "" {
			if !keepMissing {
				continue
			}
			v = "N/A"
		}
		seen[v] = true
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// torqueRanges lists usable torque ranges in candidate order.
func torqueRanges(tools []catalog.Tool) []string {
	var out []string
	for _, t := range tools {
		if t.TorqueRange != "" && t.TorqueRange != "NaN" {
			out = append(out, t.TorqueRange)
		}
	}
	return out
}

func uniq(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

func capQuestions(q []string) []string {
	if q == nil {
		return []string{}
	}
	return q[:min(MaxQuestions, len(q))]
}

func containsWord(words, terms []string) bool {
	for _, w := range words {
		for _, t := range terms {
			if w == t {
				return true
			}
		}
	}
	return false
}

func containsPhrase(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func clone(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}
