package filter

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/khanglvm/torque-advisor/internal/catalog"
)

var rangePattern = regexp.MustCompile(`(\d+)[–\-](\d+)`)

// Apply returns the tools that satisfy every constraint in s, in input order.
// An empty set returns the input unchanged.
func Apply(tools []catalog.Tool, s Set) []catalog.Tool {
	if s.IsEmpty() {
		return tools
	}
	out := make([]catalog.Tool, 0, len(tools))
	for _, t := range tools {
		if Match(t, s) {
			out = append(out, t)
		}
	}
	return out
}

// Positions returns the catalog positions of the tools that satisfy s, ascending.
func Positions(c *catalog.Catalog, s Set) []int {
	out := make([]int, 0, c.Len())
	for i := 0; i < c.Len(); i++ {
		if Match(c.At(i), s) {
			out = append(out, i)
		}
	}
	return out
}

// Match reports whether a single tool satisfies all constraints in s.
func Match(t catalog.Tool, s Set) bool {
	if s.Voltage != "" && !strings.Contains(strings.ToUpper(t.Voltage), s.Voltage) {
		return false
	}
	if s.IPRating != "" && !strings.EqualFold(t.IPRating, s.IPRating) {
		return false
	}
	if s.ApplicationType != "" && t.ApplicationType != s.ApplicationType {
		return false
	}
	if s.Has(KeyTorque) && !TorqueInRange(s.TorqueValue(), t.TorqueRange) {
		return false
	}
	return true
}

// TorqueInRange reports whether nm lies inside a "min-max Nm" range string,
// inclusive. Missing, "NaN" and unparseable ranges never match.
func TorqueInRange(nm int, torqueRange string) bool {
	r := strings.TrimSpace(torqueRange)
	if r == "" || r == "NaN" {
		return false
	}
	m := rangePattern.FindStringSubmatch(r)
	if m == nil {
		return false
	}
	lo, err := strconv.Atoi(m[1])
	if err != nil {
		return false
	}
	hi, err := strconv.Atoi(m[2])
	if err != nil {
		return false
	}
	return lo <= nm && nm <= hi
}
