package clarify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khanglvm/torque-advisor/internal/catalog"
	"github.com/khanglvm/torque-advisor/internal/filter"
	"github.com/khanglvm/torque-advisor/internal/turn"
)

func testCatalog() *catalog.Catalog {
	return catalog.New([]catalog.Tool{
		{ToolName: "Cordless Nutrunner", Category: "Nutrunner", ApplicationType: filter.ManualPortable, Voltage: "18V", TorqueRange: "5-50", IPRating: "IP54"},
		{ToolName: "Fixtured Nutrunner", Category: "Nutrunner", ApplicationType: filter.Automation, Voltage: "400V", TorqueRange: "20-200", IPRating: "IP54"},
		{ToolName: "Pistol Nutrunner", Category: "Nutrunner", ApplicationType: filter.ManualPortable, Voltage: "18V", TorqueRange: "10-60"},
		{ToolName: "Angle Nutrunner", Category: "Nutrunner", ApplicationType: filter.Manual, Voltage: "230V", TorqueRange: "30-150"},
		{ToolName: "Torque Analyzer", Category: "Verification System", ApplicationType: filter.Verification, TorqueRange: "NaN", IPRating: "IP40"},
	})
}

func TestVocabulary(t *testing.T) {
	v := NewVocabulary(testCatalog())

	kw := v.Keywords()
	assert.Contains(t, kw, "cordless nutrunner")
	assert.Contains(t, kw, "nutrunner")
	assert.Contains(t, kw, "verification")
	assert.NotContains(t, kw, "system")
	assert.Equal(t, len(kw), v.Len())

	assert.True(t, v.Contains("I want a PISTOL grip"))
	assert.False(t, v.Contains("something heavy duty"))

	var nilVocab *Vocabulary
	assert.False(t, nilVocab.Contains("nutrunner"))
	assert.Zero(t, nilVocab.Len())
}

func TestDecide(t *testing.T) {
	e := NewEngine(testCatalog())
	voltage := filter.Set{Voltage: "18V"}

	tests := []struct {
		name    string
		query   string
		filters filter.Set
		results int
		want    bool
		reason  Reason
	}{
		{"filters with few results", "18V cordless nutrunner for 50Nm", voltage, 1, false, ReasonFilteredFew},
		{"specific tool with many results", "nutrunner", filter.Set{}, 5, true, ReasonTooManyResults},
		{"specific tool with one result", "nutrunner", filter.Set{}, 1, false, ReasonSpecificTool},
		{"generic noun", "I need a tool", filter.Set{}, 1, true, ReasonGenericQuery},
		{"generic noun as part of a word", "toolbox for heavy duty", filter.Set{}, 1, false, ReasonAnswerable},
		{"single word", "hello", filter.Set{}, 1, true, ReasonShortQuery},
		{"unspecific with one result", "something heavy duty", filter.Set{}, 1, false, ReasonAnswerable},
		{"unspecific without results", "something heavy duty", filter.Set{}, 0, true, ReasonNoResults},
		{"unspecific with many results", "something heavy duty", filter.Set{}, 4, true, ReasonTooManyResults},
		{"filters without results", "24V gadget stuff", filter.Set{Voltage: "24V"}, 0, true, ReasonNoResults},
		{"filters with many results", "24V gadget stuff", filter.Set{Voltage: "24V"}, 4, true, ReasonTooManyResults},
		{"specific tool without results", "nutrunner please now", filter.Set{}, 0, true, ReasonNoResults},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := e.Decide(tt.query, tt.filters, tt.results)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.reason, reason)
			assert.Equal(t, tt.want, e.NeedsClarification(tt.query, tt.filters, tt.results))
		})
	}
}

func TestExplain_NoResults(t *testing.T) {
	c := testCatalog()
	e := NewEngine(c)

	got := e.Explain("flux capacitor", filter.Set{Voltage: "48V"}, nil, c)

	assert.Equal(t, turn.StatusNeedsClarification, got.Status)
	assert.Equal(t, "I couldn't find any tools matching your criteria. Could you provide more details?", got.Message)
	assert.Equal(t, []string{"What type of tool are you looking for?", "What will be the primary use case?"}, got.Questions)
	assert.Equal(t, []string{"Nutrunner", "Verification System"}, got.Suggestions["categories"])
	assert.Equal(t, []string{filter.Automation, filter.Manual, filter.ManualPortable, filter.Verification}, got.Suggestions["application_types"])
	assert.Len(t, got.Suggestions["examples"], 4)
}

func TestExplain_NoResultsMissingValues(t *testing.T) {
	c := catalog.New([]catalog.Tool{{ToolName: "Mystery"}, {ToolName: "Spindle", Category: "Spindle", ApplicationType: filter.Automation}})
	got := NewEngine(c).Explain("anything at all", filter.Set{}, nil, c)

	assert.Equal(t, []string{"N/A", "Spindle"}, got.Suggestions["categories"])
	assert.Equal(t, []string{filter.Automation, "N/A"}, got.Suggestions["application_types"])
}

func TestExplain_TooManyResults(t *testing.T) {
	c := testCatalog()
	e := NewEngine(c)

	got := e.Explain("nutrunner", filter.Set{}, c.Tools(), c)

	assert.Equal(t, "I found 5 tools that might match. Please provide more details:", got.Message)
	assert.Equal(t, []string{"What voltage do you need?", "Is this for manual use or automation?"}, got.Questions)
	assert.Equal(t, []string{"18V", "230V", "400V"}, got.Suggestions["voltage_options"])
	assert.Equal(t, []string{"5-50", "20-200", "10-60"}, got.Suggestions["torque_examples"])
	assert.NotContains(t, got.Suggestions, "ip_rating_options")
}

func TestExplain_TooManyOnlyIPRatingLeft(t *testing.T) {
	c := testCatalog()
	e := NewEngine(c)
	filters := filter.Set{Voltage: "18V", ApplicationType: filter.ManualPortable}.WithTorque(40)

	got := e.Explain("nutrunner", filters, c.Tools(), c)

	assert.Equal(t, []string{"Do you need a specific IP rating?"}, got.Questions)
	assert.Equal(t, []string{"IP40", "IP54"}, got.Suggestions["ip_rating_options"])
}

func TestExplain_TooManyUniformCandidates(t *testing.T) {
	tool := catalog.Tool{ToolName: "Spindle", Voltage: "400V", ApplicationType: filter.Automation, TorqueRange: "10-100", IPRating: "IP54"}
	results := []catalog.Tool{tool, tool, tool, tool}
	c := catalog.New(results)

	got := NewEngine(c).Explain("spindle", filter.Set{}, results, c)

	assert.Empty(t, got.Questions)
	assert.NotNil(t, got.Questions)
	assert.Empty(t, got.Suggestions)
}

func TestExplain_Vague(t *testing.T) {
	c := testCatalog()
	got := NewEngine(c).Explain("drill", filter.Set{}, c.Tools()[:1], c)

	assert.Equal(t, "Your query is too vague. Could you be more specific?", got.Message)
	assert.Equal(t, []string{"What type of tool are you looking for?", "What is your intended use case?"}, got.Questions)
	assert.Contains(t, got.Suggestions["examples"], "torque verification system")
}

func TestExplain_Default(t *testing.T) {
	c := testCatalog()
	e := NewEngine(c)

	got := e.Explain("heavy duty job", filter.Set{Voltage: "18V"}, c.Tools()[:2], c)
	assert.Equal(t, "Could you provide more details about your requirements?", got.Message)
	assert.Equal(t, []string{"What torque range do you require (in Nm)?", "Is this for automation or manual use?"}, got.Questions)
	assert.Empty(t, got.Suggestions)

	got = e.Explain("heavy duty job", filter.Set{}.WithTorque(30), c.Tools()[:2], c)
	assert.Equal(t, []string{"Is this for automation or manual use?", "Do you have any voltage preference (e.g., 18V, 230V, 400V)?"}, got.Questions)
}

func TestExplain_Deterministic(t *testing.T) {
	c := testCatalog()
	e := NewEngine(c)

	first := e.Explain("nutrunner", filter.Set{}, c.Tools(), c)
	second := e.Explain("nutrunner", filter.Set{}, c.Tools(), c)
	assert.Equal(t, first, second)
}

func TestEngine_Rebuild(t *testing.T) {
	e := NewEngine(catalog.New(nil))
	require.False(t, e.NamesSpecificTool("angle nutrunner"))

	e.Rebuild(testCatalog())
	assert.True(t, e.NamesSpecificTool("angle nutrunner"))
	assert.NotZero(t, e.Vocabulary().Len())
}
