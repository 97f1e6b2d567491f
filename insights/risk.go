package insights

import "sort"

const (
	RiskCritical = "Critical"
	RiskHigh     = "High"
	RiskMedium   = "Medium"
	RiskLow      = "Low"
	RiskSafe     = "Safe"
)

// RiskLevel buckets the highest category score. Scores at or below 0.5
// are Low when the remote flagged the input and Safe otherwise.
func RiskLevel(maxScore float64, flagged bool) string {
	switch {
	case maxScore > 0.9:
		return RiskCritical
	case maxScore > 0.7:
		return RiskHigh
	case maxScore > 0.5:
		return RiskMedium
	case flagged:
		return RiskLow
	default:
		return RiskSafe
	}
}

func RequiresReview(maxScore float64, flagged bool) bool {
	return flagged || maxScore > 0.7
}

// TopCategory returns the highest scoring category, ties broken by name.
func TopCategory(scores map[string]float64) (string, float64) {
	var (
		top  string
		best = -1.0
	)
	for _, name := range keys(scores) {
		if s := scores[name]; s > best {
			top, best = name, s
		}
	}
	if best < 0 {
		return "", 0
	}
	return top, best
}

// FlaggedCategories lists categories marked true, sorted.
func FlaggedCategories(categories map[string]bool) []string {
	var out []string
	for name, on := range categories {
		if on {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
