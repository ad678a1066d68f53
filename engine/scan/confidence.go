package scan

import "sort"

// DefaultConfidenceThreshold is the inclusive lower bound for acceptable
// extraction confidence.
const DefaultConfidenceThreshold = 0.8

// LowConfidence returns the canonical paths whose confidence falls strictly
// below the threshold; a value exactly at the threshold is acceptable. A zero
// threshold flags nothing. Range enforcement belongs to pkg/config. The
// output is advisory and never a finding on its own.
func LowConfidence(confidence map[string]float64, threshold float64) []string {
	var flagged []string
	for path, conf := range confidence {
		if conf < threshold {
			flagged = append(flagged, path)
		}
	}
	sort.Strings(flagged)
	return flagged
}
