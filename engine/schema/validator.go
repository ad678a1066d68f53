package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kaptinlin/jsonschema"

	"github.com/uadcheck/uadcheck/engine/core"
)

// RuleID is the rule id stamped on every structural finding. Requirement
// rules dedupe against it so one absence is never reported under two ids.
const RuleID = "schema"

// Validator turns structural schema violations into findings. It runs before
// the rule engine so a missing top-level section is still reported even when
// rule predicates cannot dereference it.
type Validator struct {
	compiled *jsonschema.Schema
}

// NewValidator compiles the schema document once; the validator is immutable
// and safe for concurrent use afterwards.
func NewValidator(doc *Schema) (*Validator, error) {
	compiled, err := doc.Compile()
	if err != nil {
		return nil, fmt.Errorf("failed to build structural validator: %w", err)
	}
	return &Validator{compiled: compiled}, nil
}

// Validate evaluates the payload and returns one error-severity finding per
// violation, ordered by instance location. Structural problems never abort
// the run.
func (v *Validator) Validate(payload map[string]any) []core.Finding {
	if v == nil || v.compiled == nil {
		return nil
	}
	result := v.compiled.Validate(payload)
	if result == nil || result.IsValid() {
		return nil
	}
	findings := collectViolations(result.ToList())
	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Field != findings[j].Field {
			return findings[i].Field < findings[j].Field
		}
		return findings[i].Message < findings[j].Message
	})
	return findings
}

func collectViolations(list *jsonschema.List) []core.Finding {
	if list == nil {
		return nil
	}
	var findings []core.Finding
	seen := map[string]struct{}{}
	var walk func(node *jsonschema.List)
	walk = func(node *jsonschema.List) {
		if node == nil || node.Valid {
			return
		}
		field := pointerToPath(node.InstanceLocation)
		for _, keyword := range sortedKeys(node.Errors) {
			key := field + "\x00" + keyword
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			findings = append(findings, core.Finding{
				Field:    field,
				Message:  node.Errors[keyword],
				Severity: core.SeverityError,
				Rule:     RuleID,
			})
		}
		for i := range node.Details {
			walk(&node.Details[i])
		}
	}
	walk(list)
	return findings
}

func sortedKeys(errors map[string]string) []string {
	keys := make([]string, 0, len(errors))
	for k := range errors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// pointerToPath converts a JSON Pointer instance location to the engine's dot
// path form; the document root becomes "$".
func pointerToPath(pointer string) string {
	trimmed := strings.TrimPrefix(pointer, "/")
	if trimmed == "" {
		return "$"
	}
	parts := strings.Split(trimmed, "/")
	for i, part := range parts {
		part = strings.ReplaceAll(part, "~1", "/")
		parts[i] = strings.ReplaceAll(part, "~0", "~")
	}
	return strings.Join(parts, ".")
}
