package normalizer

import (
	"math"
	"regexp"
	"strings"
)

// conditionPattern matches the UAD condition codes C1 through C6 anywhere in
// free text ("C3", "c 3" does not count, "Condition: C4" does).
var conditionPattern = regexp.MustCompile(`(?i)C([1-6])`)

// NormalizeConditionCode reduces free-form condition text to a canonical
// C1..C6 code, or "" when none is present.
func NormalizeConditionCode(value any) string {
	text, ok := value.(string)
	if !ok {
		return ""
	}
	m := conditionPattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return ""
	}
	return "C" + m[1]
}

// ConditionRank resolves a condition code, numeric rank, or object carrying
// either into its 1..6 rank; 0 means unresolvable.
func ConditionRank(value any) int {
	switch v := value.(type) {
	case int:
		if v >= 1 && v <= 6 {
			return v
		}
	case float64:
		n := int(v)
		if n >= 1 && n <= 6 && float64(n) == v {
			return n
		}
	case string:
		code := NormalizeConditionCode(v)
		if code != "" {
			return int(code[1] - '0')
		}
	case map[string]any:
		if rank := ConditionRank(v["condition_rank"]); rank != 0 {
			return rank
		}
		if rank := ConditionRank(v["condition"]); rank != 0 {
			return rank
		}
		return ConditionRank(v["code"])
	}
	return 0
}

// ConditionStats returns the mean and population standard deviation of a set
// of condition ranks, used to judge comparable-set consistency.
func ConditionStats(ranks []int) (mean, stdDev float64) {
	if len(ranks) == 0 {
		return 0, 0
	}
	var sum float64
	for _, r := range ranks {
		sum += float64(r)
	}
	mean = sum / float64(len(ranks))
	if len(ranks) == 1 {
		return mean, 0
	}
	var variance float64
	for _, r := range ranks {
		variance += (float64(r) - mean) * (float64(r) - mean)
	}
	variance /= float64(len(ranks))
	return mean, math.Sqrt(variance)
}
