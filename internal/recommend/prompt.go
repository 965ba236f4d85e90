package recommend

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/khanglvm/torque-advisor/internal/catalog"
	"github.com/khanglvm/torque-advisor/internal/filter"
)

const (
	agentRole      = "Industrial Tool Expert"
	agentGoal      = "Recommend the best tool from provided database"
	agentBackstory = "Expert in industrial tightening systems with deep knowledge of tool specifications, use cases, and industry standards"
)

const promptTemplate = `
## User Query
%s

## Available Tools Database
%s

## Your Task
Analyze the user's requirements and recommend the BEST matching tool from the available database.

## Required Output Format
Please provide a comprehensive recommendation with the following details:

Return ONLY valid JSON in this format:
{
  "tool_name": "",
  "model": "",
  "why_recommended": "",
  "key_specs": [],
  "voltage": "",
  "ip_rating": "",
  "image_path": "",
  "confidence": ""
}

## Important Guidelines
- Only recommend tools from the provided database
- Ensure all specifications are accurate and from the database
- If multiple tools match, recommend the one that best fits the user's needs
- Be specific and detailed in your justification
`

// SystemPrompt describes the persona the recommendation model plays.
func SystemPrompt() string {
	return fmt.Sprintf("You are an %s. Your goal: %s. %s.", agentRole, agentGoal, agentBackstory)
}

// BuildPrompt renders the task prompt for req. Candidates are embedded as
// JSON; the applied filters section is appended only when filters are set.
func BuildPrompt(req Request) (string, error) {
	candidates := req.Candidates
	if candidates == nil {
		candidates = []catalog.Tool{}
	}
	toolContext, err := json.MarshalIndent(candidates, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode candidates: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, promptTemplate, req.Query, toolContext)
	if !req.Filters.IsEmpty() {
		b.WriteString("\n\n## Applied Filters\n")
		b.WriteString(req.Filters.String())
	}
	return b.String(), nil
}

// Request is the input to a recommendation call.
type Request struct {
	Query      string
	Candidates []catalog.Tool
	Filters    filter.Set
}
