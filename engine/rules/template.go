package rules

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// templateSet holds the compiled message templates for one registry version.
// Templates compile at registry load so a bad template is a load failure, not
// a runtime surprise.
type templateSet struct {
	messages map[string]*template.Template
	sources  map[string]*template.Template
}

func newTemplateSet(defs []Definition) (*templateSet, error) {
	set := &templateSet{
		messages: map[string]*template.Template{},
		sources:  map[string]*template.Template{},
	}
	for i := range defs {
		def := &defs[i]
		if def.Message != "" {
			tmpl, err := parseMessageTemplate(def.ID+":message", def.Message)
			if err != nil {
				return nil, fmt.Errorf("rule %q message template invalid: %w", def.ID, err)
			}
			set.messages[def.ID] = tmpl
		}
		if def.SourceMessage != "" {
			tmpl, err := parseMessageTemplate(def.ID+":source", def.SourceMessage)
			if err != nil {
				return nil, fmt.Errorf("rule %q source template invalid: %w", def.ID, err)
			}
			set.sources[def.ID] = tmpl
		}
	}
	return set, nil
}

func parseMessageTemplate(name, text string) (*template.Template, error) {
	return template.New(name).Funcs(sprig.FuncMap()).Parse(text)
}

func (s *templateSet) has(ruleID string) bool {
	_, ok := s.messages[ruleID]
	return ok
}

func (s *templateSet) hasSource(ruleID string) bool {
	_, ok := s.sources[ruleID]
	return ok
}

func (s *templateSet) render(ruleID string, ctx map[string]any) (string, error) {
	return s.execute(s.messages[ruleID], ctx)
}

func (s *templateSet) renderSource(ruleID string, ctx map[string]any) (string, error) {
	return s.execute(s.sources[ruleID], ctx)
}

func (s *templateSet) execute(tmpl *template.Template, ctx map[string]any) (string, error) {
	if tmpl == nil {
		return "", fmt.Errorf("no template registered")
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("failed to render message template: %w", err)
	}
	return buf.String(), nil
}
