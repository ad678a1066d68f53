package scan

import (
	"sort"

	"github.com/uadcheck/uadcheck/engine/core"
)

// CompletenessReport separates leaves the structural validator already owns
// (required) from the advisory optional-but-empty ones.
type CompletenessReport struct {
	// Missing lists every canonical leaf whose value is empty, required or
	// not, for the result's advisory missing_fields list.
	Missing []string
	// BusinessFlags lists only optional-but-empty leaves; required-field
	// absence is the structural validator's to report and is not repeated
	// here.
	BusinessFlags []string
}

// Completeness walks the canonical leaves depth-first. A leaf counts as
// missing when it is nil, empty, or the "(none selected)" sentinel.
func Completeness(payload map[string]any, required map[string]struct{}) *CompletenessReport {
	report := &CompletenessReport{}
	for _, leaf := range core.Leaves(payload) {
		if !core.IsEmpty(leaf.Value) {
			continue
		}
		report.Missing = append(report.Missing, leaf.Path)
		if _, isRequired := required[leaf.Path]; !isRequired {
			report.BusinessFlags = append(report.BusinessFlags, leaf.Path)
		}
	}
	sort.Strings(report.Missing)
	sort.Strings(report.BusinessFlags)
	return report
}
