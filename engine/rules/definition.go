package rules

import (
	"github.com/uadcheck/uadcheck/engine/core"
)

// -----------------------------------------------------------------------------
// Scopes
// -----------------------------------------------------------------------------

// Scope determines a rule's predicate shape and its evaluation phase. Phases
// run in a fixed order (requirement, cross_field, condition_consistency,
// cross_source) so identical input always yields identical finding order.
type Scope string

const (
	ScopeRequirement Scope = "requirement"
	ScopeCrossField  Scope = "cross_field"
	// ScopeConditionConsistency compares each comparable's condition rank
	// against the subject's, one finding per outlier.
	ScopeConditionConsistency Scope = "condition_consistency"
	ScopeCrossSource          Scope = "cross_source"
)

func (s Scope) Valid() bool {
	switch s {
	case ScopeRequirement, ScopeCrossField, ScopeConditionConsistency, ScopeCrossSource:
		return true
	}
	return false
}

// scopeOrder fixes the cross-scope evaluation sequence.
var scopeOrder = []Scope{ScopeRequirement, ScopeCrossField, ScopeConditionConsistency, ScopeCrossSource}

// RequirementRuleID is the finding label requirement rules emit unless the
// definition names its own; the aggregator dedupes it against the structural
// validator by field path.
const RequirementRuleID = "uad_requirement"

// -----------------------------------------------------------------------------
// Escalation
// -----------------------------------------------------------------------------

// EscalationPolicy lets a recorded human acknowledgment downgrade a rule's
// effective severity. The acknowledgment reference always lands in the
// finding for audit.
type EscalationPolicy struct {
	RequiresAcknowledgment bool          `json:"requires_acknowledgment" yaml:"requires_acknowledgment" mapstructure:"requires_acknowledgment"`
	DowngradeTo            core.Severity `json:"downgrade_to"            yaml:"downgrade_to"            mapstructure:"downgrade_to"`
}

// -----------------------------------------------------------------------------
// Rule definition
// -----------------------------------------------------------------------------

// Definition is one declarative rule. IDs are unique within a registry
// version; rules evaluate in declaration order within their scope.
type Definition struct {
	ID    string `json:"id"    yaml:"id"    mapstructure:"id"`
	Scope Scope  `json:"scope" yaml:"scope" mapstructure:"scope"`
	// Emit overrides the rule id stamped on findings; requirement rules
	// default to RequirementRuleID, other scopes to ID.
	Emit     string        `json:"emit,omitempty"     yaml:"emit,omitempty"     mapstructure:"emit"`
	Severity core.Severity `json:"severity"           yaml:"severity"           mapstructure:"severity"`
	// Field is the canonical dot path a requirement or cross_source rule
	// targets. Cross-field rules may set it to attribute their finding.
	Field string `json:"field,omitempty" yaml:"field,omitempty" mapstructure:"field"`
	// When is the CEL antecedent; an error or false means "not triggered".
	When string `json:"when,omitempty" yaml:"when,omitempty" mapstructure:"when"`
	// Expr is the CEL consequent for cross-field rules: the rule triggers
	// when the antecedent holds and the consequent does not.
	Expr string `json:"expr,omitempty" yaml:"expr,omitempty" mapstructure:"expr"`
	// Message is a text/template (sprig funcs available) rendered with the
	// finding context; empty falls back to a scope-specific default.
	Message string `json:"message,omitempty" yaml:"message,omitempty" mapstructure:"message"`
	// SourceMessage templates the per-source attribution fragment for
	// cross-source findings.
	SourceMessage string `json:"source_message,omitempty" yaml:"source_message,omitempty" mapstructure:"source_message"`
	// Sources restricts a cross_source rule to specific source names;
	// empty means every source the caller supplied.
	Sources []string `json:"sources,omitempty" yaml:"sources,omitempty" mapstructure:"sources"`
	// Tolerance is the maximum allowed rank gap for condition_consistency
	// rules; zero means the built-in default of 2.
	Tolerance int `json:"tolerance,omitempty" yaml:"tolerance,omitempty" mapstructure:"tolerance"`
	// Supersedes names rules whose findings on the same field are dropped
	// when this rule triggers. This is the explicit registry-declared
	// precedence between competing rules.
	Supersedes []string          `json:"supersedes,omitempty" yaml:"supersedes,omitempty" mapstructure:"supersedes"`
	Escalation *EscalationPolicy `json:"escalation,omitempty" yaml:"escalation,omitempty" mapstructure:"escalation"`
}

// EmitID is the rule id recorded on findings from this definition.
func (d *Definition) EmitID() string {
	if d.Emit != "" {
		return d.Emit
	}
	if d.Scope == ScopeRequirement {
		return RequirementRuleID
	}
	return d.ID
}

// Document is the wire form of a rule registry.
type Document struct {
	Version string       `json:"version" yaml:"version" mapstructure:"version"`
	Rules   []Definition `json:"rules"   yaml:"rules"   mapstructure:"rules"`
}
