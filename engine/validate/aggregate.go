package validate

import "github.com/uadcheck/uadcheck/engine/core"

// mergeFindings concatenates the finding streams in their fixed stage order
// and drops exact (field, rule) duplicates, keeping the first occurrence.
func mergeFindings(streams ...[]core.Finding) []core.Finding {
	var out []core.Finding
	seen := map[[2]string]struct{}{}
	for _, stream := range streams {
		for i := range stream {
			key := [2]string{stream[i].Field, stream[i].Rule}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, stream[i])
		}
	}
	return out
}

// statusOf derives the overall status by severity precedence: any error
// fails the run, otherwise any warn downgrades it, otherwise it passes.
func statusOf(findings []core.Finding) core.Status {
	status := core.StatusPass
	for i := range findings {
		switch findings[i].Severity {
		case core.SeverityError:
			return core.StatusFail
		case core.SeverityWarn:
			status = core.StatusWarn
		}
	}
	return status
}
