package score

import "github.com/vigilhq/vigil/internal/health"

// Grade boundaries. Bands are exact and contiguous: a score of 89 is B+,
// a score of 90 is A.
const (
	gradeAPlus = 95
	gradeA     = 90
	gradeBPlus = 85
	gradeB     = 80
	gradeC     = 70
	gradeD     = 60
)

// Compute derives the composite score and grade from a set of results:
//
//	score = clamp(100 − Σ deductions, 0, 100)
//
// Deductions sum across all results, including synthetic ones from faulted
// collectors. The function is pure and deterministic: identical inputs
// always yield identical output.
func Compute(results []health.Result) (int, string) {
	total := 0
	for _, r := range results {
		if r.Deduction > 0 {
			total += r.Deduction
		}
	}
	s := clamp(100-total, 0, 100)
	return s, GradeFor(s)
}

// GradeFor maps a score to its letter grade.
func GradeFor(score int) string {
	switch {
	case score >= gradeAPlus:
		return "A+"
	case score >= gradeA:
		return "A"
	case score >= gradeBPlus:
		return "B+"
	case score >= gradeB:
		return "B"
	case score >= gradeC:
		return "C"
	case score >= gradeD:
		return "D"
	default:
		return "F"
	}
}

// ExitCode maps a score to the CLI exit code contract: 0 when the score is
// in the A bands, 1 for B/C, 2 below 70. The code reflects the computed
// band even when persistence or notification failed.
func ExitCode(score int) int {
	switch {
	case score >= gradeA:
		return 0
	case score >= gradeC:
		return 1
	default:
		return 2
	}
}

// clamp restricts v to [lo, hi].
func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
