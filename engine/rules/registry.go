package rules

import (
	"errors"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/goccy/go-yaml"

	"github.com/uadcheck/uadcheck/engine/core"
)

// ErrRegistryLoad marks a malformed registry document. Load failures are
// fatal for the incoming document: the previous registry stays in service and
// the engine refuses the new one until it is corrected.
var ErrRegistryLoad = errors.New("rule registry load failed")

// Registry is an immutable, validated, ordered rule collection. Build one
// with NewRegistry or ParseRegistry; never mutate it afterwards.
type Registry struct {
	version  string
	rules    []Definition
	byScope  map[Scope][]int
	template *templateSet
}

// ParseRegistry decodes a YAML (or JSON, which YAML subsumes) registry
// document and validates it against the evaluator's environment.
func ParseRegistry(data []byte, eval *Evaluator) (*Registry, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRegistryLoad, err)
	}
	var doc Document
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &doc,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRegistryLoad, err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRegistryLoad, err)
	}
	return NewRegistry(&doc, eval)
}

// NewRegistry validates a registry document: unique ids, known scopes and
// severities, compilable predicates and message templates.
func NewRegistry(doc *Document, eval *Evaluator) (*Registry, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: document is nil", ErrRegistryLoad)
	}
	if doc.Version == "" {
		return nil, fmt.Errorf("%w: version is required", ErrRegistryLoad)
	}
	if err := validateDefinitions(doc.Rules, eval); err != nil {
		return nil, err
	}
	templates, err := newTemplateSet(doc.Rules)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRegistryLoad, err)
	}
	reg := &Registry{
		version:  doc.Version,
		rules:    make([]Definition, len(doc.Rules)),
		byScope:  map[Scope][]int{},
		template: templates,
	}
	copy(reg.rules, doc.Rules)
	for i := range reg.rules {
		scope := reg.rules[i].Scope
		reg.byScope[scope] = append(reg.byScope[scope], i)
	}
	return reg, nil
}

func validateDefinitions(defs []Definition, eval *Evaluator) error {
	seen := map[string]struct{}{}
	for i := range defs {
		def := &defs[i]
		if def.ID == "" {
			return fmt.Errorf("%w: rule[%d] id is required", ErrRegistryLoad, i)
		}
		if _, dup := seen[def.ID]; dup {
			return fmt.Errorf("%w: duplicate rule id %q", ErrRegistryLoad, def.ID)
		}
		seen[def.ID] = struct{}{}
		if !def.Scope.Valid() {
			return fmt.Errorf("%w: rule %q has unknown scope %q", ErrRegistryLoad, def.ID, def.Scope)
		}
		// Cross-source rules may omit severity and take the configured
		// default; everything else declares its own.
		if def.Severity == "" {
			if def.Scope != ScopeCrossSource {
				return fmt.Errorf("%w: rule %q is missing a severity", ErrRegistryLoad, def.ID)
			}
		} else if !def.Severity.Valid() {
			return fmt.Errorf("%w: rule %q has unknown severity %q", ErrRegistryLoad, def.ID, def.Severity)
		}
		if err := validateShape(def); err != nil {
			return err
		}
		for _, expr := range []string{def.When, def.Expr} {
			if expr == "" {
				continue
			}
			if err := eval.Compile(expr); err != nil {
				return fmt.Errorf("%w: rule %q predicate invalid: %w", ErrRegistryLoad, def.ID, err)
			}
		}
		if def.Escalation != nil && def.Escalation.DowngradeTo != "" && !def.Escalation.DowngradeTo.Valid() {
			return fmt.Errorf(
				"%w: rule %q escalation downgrade severity %q is unknown",
				ErrRegistryLoad, def.ID, def.Escalation.DowngradeTo,
			)
		}
	}
	return nil
}

func validateShape(def *Definition) error {
	switch def.Scope {
	case ScopeRequirement:
		if def.Field == "" {
			return fmt.Errorf("%w: requirement rule %q needs a field path", ErrRegistryLoad, def.ID)
		}
	case ScopeCrossField:
		if def.Expr == "" && def.When == "" {
			return fmt.Errorf("%w: cross-field rule %q needs a predicate", ErrRegistryLoad, def.ID)
		}
	case ScopeCrossSource:
		if def.Field == "" {
			return fmt.Errorf("%w: cross-source rule %q needs a field path", ErrRegistryLoad, def.ID)
		}
	}
	return nil
}

// Version returns the registry document's ruleset_version string.
func (r *Registry) Version() string {
	return r.version
}

// Rules returns the definitions for one scope, in declaration order.
func (r *Registry) Rules(scope Scope) []*Definition {
	indices := r.byScope[scope]
	out := make([]*Definition, 0, len(indices))
	for _, idx := range indices {
		out = append(out, &r.rules[idx])
	}
	return out
}

// Len reports the total number of rules.
func (r *Registry) Len() int {
	return len(r.rules)
}

// supersededBy returns, for every rule id, the set of definition ids that
// declare precedence over it.
func (r *Registry) supersededBy() map[string]map[string]struct{} {
	out := map[string]map[string]struct{}{}
	for i := range r.rules {
		for _, target := range r.rules[i].Supersedes {
			if out[target] == nil {
				out[target] = map[string]struct{}{}
			}
			out[target][r.rules[i].ID] = struct{}{}
		}
	}
	return out
}

// renderMessage renders a rule's message template with the finding context.
func (r *Registry) renderMessage(def *Definition, ctx map[string]any) (string, error) {
	return r.template.render(def.ID, ctx)
}

// renderSourceMessage renders the per-source attribution fragment.
func (r *Registry) renderSourceMessage(def *Definition, ctx map[string]any) (string, error) {
	return r.template.renderSource(def.ID, ctx)
}

// hasMessage reports whether a custom message template exists for the rule.
func (r *Registry) hasMessage(def *Definition) bool {
	return r.template.has(def.ID)
}

// hasSourceMessage reports whether a source attribution template exists.
func (r *Registry) hasSourceMessage(def *Definition) bool {
	return r.template.hasSource(def.ID)
}

// severityOrDefault resolves a definition's severity with a registry-level
// fallback for cross-source rules.
func severityOrDefault(def *Definition, crossSourceDefault core.Severity) core.Severity {
	if def.Severity != "" {
		return def.Severity
	}
	if def.Scope == ScopeCrossSource && crossSourceDefault.Valid() {
		return crossSourceDefault
	}
	return core.SeverityWarn
}
