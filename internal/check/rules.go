package check

import (
	"strconv"
	"strings"

	"github.com/vigilhq/vigil/internal/config"
	"github.com/vigilhq/vigil/internal/health"
)

// ApplyRules applies the static threshold table to a set of results. For
// each result, every rule whose component pattern matches and whose
// condition evaluates true against the result's metrics raises the result
// to at least the rule's severity and deduction. Results are returned as a
// new slice; inputs are not mutated.
func ApplyRules(rules []config.ThresholdRule, results []health.Result) []health.Result {
	if len(rules) == 0 {
		return results
	}

	out := make([]health.Result, len(results))
	copy(out, results)

	for i := range out {
		for _, rule := range rules {
			if !matchPattern(rule.ComponentPattern, out[i].Component) {
				continue
			}
			fires, _ := evalCondition(rule.Condition, out[i].Metrics)
			if !fires {
				continue
			}
			sev := health.StatusWarn
			if rule.Severity == "CRITICAL" {
				sev = health.StatusCritical
			}
			if !out[i].Status.AtLeast(sev) {
				out[i].Status = sev
			}
			if rule.Deduction > out[i].Deduction {
				out[i].Deduction = rule.Deduction
			}
		}
	}
	return out
}

// matchPattern matches a collector ID against a pattern: "*" matches
// everything, a trailing "*" matches a prefix, anything else is exact.
func matchPattern(pattern, component string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(component, strings.TrimSuffix(pattern, "*"))
	}
	return pattern == component
}

// evalCondition evaluates a "field operator value" expression against a
// metrics map, e.g. "disk_used_pct > 95". Returns (fires, observed value).
// Returns (false, 0) if the expression cannot be parsed or the field is
// absent from the metrics.
func evalCondition(cond string, metrics map[string]float64) (bool, float64) {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return false, 0
	}
	field, op, rhs := parts[0], parts[1], parts[2]

	v, ok := metrics[field]
	if !ok {
		return false, 0
	}
	threshold, err := strconv.ParseFloat(rhs, 64)
	if err != nil {
		return false, 0
	}
	return compareFloat(v, op, threshold), v
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	default:
		return false
	}
}
