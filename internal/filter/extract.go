package filter

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	voltagePattern = regexp.MustCompile(`(?i)\d+\s?V`)
	torquePattern  = regexp.MustCompile(`(?i)(\d+)\s*Nm`)
	ipPattern      = regexp.MustCompile(`(?i)IP\d+`)
)

// applicationRule maps trigger phrases to an application type.
type applicationRule struct {
	value   string
	anyOf   []string
	exclude []string
}

// applicationRules is evaluated in order; the first matching rule wins.
var applicationRules = []applicationRule{
	{value: ManualPortable, anyOf: []string{"cordless", "portable"}},
	{value: Automation, anyOf: []string{"automation", "assembly line", "automated"}},
	{value: Manual, anyOf: []string{"manual"}, exclude: []string{"portable"}},
	{value: ControlSystem, anyOf: []string{"controller", "control system"}},
	{value: Verification, anyOf: []string{"verification", "calibration"}},
}

// Extract parses a query into a filter Set. Rules are independent; a key is
// absent when its rule finds nothing.
func Extract(query string) Set {
	var s Set

	if m := voltagePattern.FindString(query); m != "" {
		s.Voltage = strings.ToUpper(strings.Join(strings.Fields(m), ""))
	}

	if m := torquePattern.FindStringSubmatch(query); m != nil {
		if nm, err := strconv.Atoi(m[1]); err == nil {
			s = s.WithTorque(nm)
		}
	}

	if m := ipPattern.FindString(query); m != "" {
		s.IPRating = strings.ToUpper(m)
	}

	s.ApplicationType = applicationType(strings.ToLower(query))
	return s
}

func applicationType(lower string) string {
	for _, rule := range applicationRules {
		if containsAny(lower, rule.anyOf) && !containsAny(lower, rule.exclude) {
			return rule.value
		}
	}
	return ""
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
