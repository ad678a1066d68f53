package rules

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/uadcheck/uadcheck/engine/core"
	"github.com/uadcheck/uadcheck/engine/normalizer"
	"github.com/uadcheck/uadcheck/pkg/logger"
)

// Input is everything one rule-engine pass consumes. The payload and source
// payloads are read-only; the engine holds no per-call mutable state.
type Input struct {
	// Payload is the canonical tree, including any extra sections the
	// submission carried (photos, certifications, reconciliation, ...).
	Payload map[string]any
	// Sources maps source name (loan_docs, title, public_records) to that
	// source's canonical payload, normalized through the same contract.
	Sources map[string]map[string]any
	// Acks is the submission-level acknowledgment metadata.
	Acks core.AckSet
	// SchemaErrorFields holds paths the structural validator already
	// reported; requirement rules skip them so one absence is never
	// reported under two rule ids.
	SchemaErrorFields map[string]struct{}
	// CrossSourceSeverity is the configured default severity for
	// cross-source mismatches whose rule does not declare one.
	CrossSourceSeverity core.Severity
}

// Engine evaluates a registry against one submission. It is immutable and
// reentrant; construct once per registry snapshot.
type Engine struct {
	registry *Registry
	eval     *Evaluator
}

func NewEngine(registry *Registry, eval *Evaluator) *Engine {
	return &Engine{registry: registry, eval: eval}
}

// tagged pairs a finding with the definition that produced it, so precedence
// can be applied before the findings leave the engine.
type tagged struct {
	finding core.Finding
	defID   string
}

// Evaluate runs every rule in fixed scope order (requirement, cross_field,
// cross_source), declaration order within each scope. A malformed predicate
// skips its rule only; evaluation always continues.
func (e *Engine) Evaluate(ctx context.Context, in *Input) []core.Finding {
	activation := e.buildActivation(in)
	var out []tagged
	for _, scope := range scopeOrder {
		for _, def := range e.registry.Rules(scope) {
			findings := e.evaluateRule(ctx, def, in, activation)
			out = append(out, findings...)
		}
	}
	return e.applyPrecedence(out)
}

func (e *Engine) evaluateRule(
	ctx context.Context,
	def *Definition,
	in *Input,
	activation map[string]any,
) []tagged {
	switch def.Scope {
	case ScopeRequirement:
		return e.evaluateRequirement(ctx, def, in, activation)
	case ScopeCrossField:
		return e.evaluateCrossField(ctx, def, in, activation)
	case ScopeConditionConsistency:
		return e.evaluateConditionConsistency(ctx, def, in, activation)
	case ScopeCrossSource:
		return e.evaluateCrossSource(ctx, def, in, activation)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Requirement rules
// -----------------------------------------------------------------------------

func (e *Engine) evaluateRequirement(
	ctx context.Context,
	def *Definition,
	in *Input,
	activation map[string]any,
) []tagged {
	gated, ok := e.antecedent(ctx, def, activation)
	if !ok || !gated {
		return nil
	}
	value, _ := core.GetPath(in.Payload, def.Field)
	if !core.IsEmpty(value) {
		return nil
	}
	// The structural validator already owns this absence.
	if _, dup := in.SchemaErrorFields[def.Field]; dup {
		return nil
	}
	message := fmt.Sprintf("Field '%s' is required", def.Field)
	if e.registry.hasMessage(def) {
		if rendered, err := e.renderMessage(ctx, def, in, nil); err == nil {
			message = rendered
		}
	}
	severity, ackRef := e.effectiveSeverity(def, def.Severity, in.Acks)
	return []tagged{{
		defID: def.ID,
		finding: core.Finding{
			Field:    def.Field,
			Message:  message,
			Severity: severity,
			Rule:     def.EmitID(),
			AckRef:   ackRef,
		},
	}}
}

// -----------------------------------------------------------------------------
// Cross-field rules
// -----------------------------------------------------------------------------

func (e *Engine) evaluateCrossField(
	ctx context.Context,
	def *Definition,
	in *Input,
	activation map[string]any,
) []tagged {
	gated, ok := e.antecedent(ctx, def, activation)
	if !ok || !gated {
		return nil
	}
	triggered := true
	if def.Expr != "" {
		holds, err := e.eval.Evaluate(ctx, def.Expr, activation)
		switch {
		case err == nil:
			triggered = !holds
		case IsRuntimeMiss(err):
			// A consequent that cannot dereference its fields does not
			// hold, so the rule fires.
			triggered = true
		default:
			e.logPredicateFailure(ctx, def, err)
			return nil
		}
	}
	if !triggered {
		return nil
	}
	field := def.Field
	if field == "" {
		field = def.ID
	}
	message := fmt.Sprintf("Rule '%s' did not hold", def.EmitID())
	if e.registry.hasMessage(def) {
		if rendered, err := e.renderMessage(ctx, def, in, nil); err == nil {
			message = rendered
		}
	}
	severity, ackRef := e.effectiveSeverity(def, def.Severity, in.Acks)
	return []tagged{{
		defID: def.ID,
		finding: core.Finding{
			Field:    field,
			Message:  message,
			Severity: severity,
			Rule:     def.EmitID(),
			AckRef:   ackRef,
		},
	}}
}

// -----------------------------------------------------------------------------
// Comparable condition consistency
// -----------------------------------------------------------------------------

// defaultConditionTolerance is the maximum rank gap between the subject's
// condition and a comparable's before the comparable counts as an outlier.
const defaultConditionTolerance = 2

func (e *Engine) evaluateConditionConsistency(
	ctx context.Context,
	def *Definition,
	in *Input,
	activation map[string]any,
) []tagged {
	gated, ok := e.antecedent(ctx, def, activation)
	if !ok || !gated {
		return nil
	}
	base := def.Field
	if base == "" {
		base = "sales_comparison"
	}
	section, _ := core.GetPath(in.Payload, base)
	grid, isMap := section.(map[string]any)
	if !isMap {
		return nil
	}
	subjectRank := normalizer.ConditionRank(grid["subject"])
	if subjectRank == 0 {
		return nil
	}
	comparables, isList := grid["comparables"].([]any)
	if !isList {
		return nil
	}
	tolerance := def.Tolerance
	if tolerance <= 0 {
		tolerance = defaultConditionTolerance
	}
	ranks := []int{subjectRank}
	type outlier struct {
		index int
		ident string
		rank  int
	}
	var outliers []outlier
	for i, comp := range comparables {
		rank := normalizer.ConditionRank(comp)
		if rank == 0 {
			continue
		}
		ranks = append(ranks, rank)
		if abs(rank-subjectRank) <= tolerance {
			continue
		}
		ident := fmt.Sprintf("Comp%d", i+1)
		if m, isMap := comp.(map[string]any); isMap {
			if id, isStr := m["id"].(string); isStr && id != "" {
				ident = id
			}
		}
		outliers = append(outliers, outlier{index: i, ident: ident, rank: rank})
	}
	if len(outliers) == 0 {
		return nil
	}
	mean, stdDev := normalizer.ConditionStats(ranks)
	severity, ackRef := e.effectiveSeverity(def, def.Severity, in.Acks)
	out := make([]tagged, 0, len(outliers))
	for _, o := range outliers {
		message := fmt.Sprintf(
			"Comparable %s condition C%d deviates from subject C%d beyond tolerance "+
				"(Δ=%.2f; set mean %.2f, σ %.2f)",
			o.ident, o.rank, subjectRank, float64(abs(o.rank-subjectRank)), mean, stdDev,
		)
		out = append(out, tagged{
			defID: def.ID,
			finding: core.Finding{
				Field:    fmt.Sprintf("%s.comparables.%d", base, o.index),
				Message:  message,
				Severity: severity,
				Rule:     def.EmitID(),
				AckRef:   ackRef,
			},
		})
	}
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// -----------------------------------------------------------------------------
// Cross-source alignment rules
// -----------------------------------------------------------------------------

func (e *Engine) evaluateCrossSource(
	ctx context.Context,
	def *Definition,
	in *Input,
	activation map[string]any,
) []tagged {
	if len(in.Sources) == 0 {
		return nil
	}
	gated, ok := e.antecedent(ctx, def, activation)
	if !ok || !gated {
		return nil
	}
	canonical, _ := core.GetPath(in.Payload, def.Field)
	if core.IsEmpty(canonical) {
		return nil
	}
	attribution := map[string]core.SourceValue{}
	var disagreeing []string
	for _, name := range e.sourceNames(def, in) {
		payload, provided := in.Sources[name]
		if !provided {
			continue
		}
		value, _ := core.GetPath(payload, def.Field)
		missing := core.IsEmpty(value)
		attribution[name] = core.SourceValue{Value: value, Missing: missing}
		if !missing && !valuesEqual(canonical, value) {
			disagreeing = append(disagreeing, name)
		}
	}
	if len(disagreeing) == 0 {
		return nil
	}
	message := e.crossSourceMessage(ctx, def, in, canonical, attribution, disagreeing)
	base := severityOrDefault(def, in.CrossSourceSeverity)
	severity, ackRef := e.effectiveSeverity(def, base, in.Acks)
	return []tagged{{
		defID: def.ID,
		finding: core.Finding{
			Field:    def.Field,
			Message:  message,
			Severity: severity,
			Rule:     def.EmitID(),
			Sources:  attribution,
			AckRef:   ackRef,
		},
	}}
}

func (e *Engine) crossSourceMessage(
	ctx context.Context,
	def *Definition,
	in *Input,
	canonical any,
	attribution map[string]core.SourceValue,
	disagreeing []string,
) string {
	if e.registry.hasMessage(def) {
		extra := map[string]any{
			"value":       canonical,
			"sources":     attribution,
			"disagreeing": disagreeing,
		}
		if rendered, err := e.renderMessage(ctx, def, in, extra); err == nil {
			return rendered
		}
	}
	fragments := make([]string, 0, len(disagreeing))
	for _, name := range disagreeing {
		fragment := fmt.Sprintf("%s reports %v", sourceLabel(name), attribution[name].Value)
		if e.registry.hasSourceMessage(def) {
			extra := map[string]any{
				"source": name,
				"label":  sourceLabel(name),
				"value":  attribution[name].Value,
			}
			if rendered, err := e.renderSourceMessage(ctx, def, in, extra); err == nil {
				fragment = rendered
			}
		}
		fragments = append(fragments, fragment)
	}
	return fmt.Sprintf(
		"Field '%s' (%v) disagrees with %s",
		def.Field, canonical, strings.Join(fragments, "; "),
	)
}

// sourceNames resolves which sources a rule consults, in deterministic order.
func (e *Engine) sourceNames(def *Definition, in *Input) []string {
	if len(def.Sources) > 0 {
		return def.Sources
	}
	names := make([]string, 0, len(in.Sources))
	for name := range in.Sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// -----------------------------------------------------------------------------
// Shared pieces
// -----------------------------------------------------------------------------

// antecedent evaluates the When gate. ok=false means the rule must be
// skipped because of a configuration defect; gated=false means not triggered.
func (e *Engine) antecedent(ctx context.Context, def *Definition, activation map[string]any) (gated, ok bool) {
	if def.When == "" {
		return true, true
	}
	holds, err := e.eval.Evaluate(ctx, def.When, activation)
	switch {
	case err == nil:
		return holds, true
	case IsRuntimeMiss(err):
		// Referencing a field the payload does not have means not
		// triggered, never a secondary failure.
		return false, true
	default:
		e.logPredicateFailure(ctx, def, err)
		return false, false
	}
}

// effectiveSeverity applies the escalation policy: an acknowledged rule emits
// at the downgraded severity with the acknowledgment reference recorded.
func (e *Engine) effectiveSeverity(
	def *Definition,
	declared core.Severity,
	acks core.AckSet,
) (core.Severity, string) {
	if def.Escalation == nil || !def.Escalation.RequiresAcknowledgment {
		return declared, ""
	}
	ack, found := acks.Get(def.ID)
	if !found || !ack.Acknowledged {
		return declared, ""
	}
	severity := declared
	if def.Escalation.DowngradeTo.Valid() {
		severity = def.Escalation.DowngradeTo
	}
	ref := fmt.Sprintf("acknowledged by %s at %s", ack.By, ack.At.UTC().Format(time.RFC3339))
	return severity, ref
}

func (e *Engine) renderMessage(
	ctx context.Context,
	def *Definition,
	in *Input,
	extra map[string]any,
) (string, error) {
	tctx := map[string]any{
		"field":   def.Field,
		"rule":    def.EmitID(),
		"payload": in.Payload,
	}
	for k, v := range extra {
		tctx[k] = v
	}
	rendered, err := e.registry.renderMessage(def, tctx)
	if err != nil {
		e.logPredicateFailure(ctx, def, err)
	}
	return rendered, err
}

func (e *Engine) renderSourceMessage(
	ctx context.Context,
	def *Definition,
	in *Input,
	extra map[string]any,
) (string, error) {
	tctx := map[string]any{
		"field":   def.Field,
		"rule":    def.EmitID(),
		"payload": in.Payload,
	}
	for k, v := range extra {
		tctx[k] = v
	}
	rendered, err := e.registry.renderSourceMessage(def, tctx)
	if err != nil {
		e.logPredicateFailure(ctx, def, err)
	}
	return rendered, err
}

func (e *Engine) logPredicateFailure(ctx context.Context, def *Definition, err error) {
	// Configuration defect, not a data error: log rule id only, keep going.
	logger.FromContext(ctx).Error("rule predicate failed, skipping rule",
		"rule", def.ID, "scope", string(def.Scope), "error", err)
}

// buildActivation binds every declared predicate variable: payload sections
// first, empty maps for anything absent, plus the source payloads.
func (e *Engine) buildActivation(in *Input) map[string]any {
	activation := make(map[string]any, len(contextVars))
	for _, name := range contextVars {
		activation[name] = map[string]any{}
	}
	for key, value := range in.Payload {
		activation[key] = value
	}
	sources := map[string]any{}
	for name, payload := range in.Sources {
		sources[name] = payload
	}
	activation["sources"] = sources
	return activation
}

// applyPrecedence drops findings superseded by another triggered rule on the
// same field, then strips the internal tags.
func (e *Engine) applyPrecedence(found []tagged) []core.Finding {
	if len(found) == 0 {
		return nil
	}
	superseded := e.registry.supersededBy()
	triggeredOnField := map[string]map[string]struct{}{}
	for _, t := range found {
		if triggeredOnField[t.finding.Field] == nil {
			triggeredOnField[t.finding.Field] = map[string]struct{}{}
		}
		triggeredOnField[t.finding.Field][t.defID] = struct{}{}
	}
	out := make([]core.Finding, 0, len(found))
	for _, t := range found {
		if winners, contested := superseded[t.defID]; contested {
			dropped := false
			for winner := range winners {
				if _, onField := triggeredOnField[t.finding.Field][winner]; onField {
					dropped = true
					break
				}
			}
			if dropped {
				continue
			}
		}
		out = append(out, t.finding)
	}
	return out
}

// valuesEqual compares a canonical value with a source value, tolerating the
// numeric type drift JSON decoding introduces.
func valuesEqual(a, b any) bool {
	if na, ok := asNumber(a); ok {
		if nb, ok := asNumber(b); ok {
			return na == nb
		}
		return false
	}
	if sa, ok := a.(string); ok {
		if sb, ok := b.(string); ok {
			return strings.TrimSpace(sa) == strings.TrimSpace(sb)
		}
		return false
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// sourceLabel renders a source name for messages ("loan_docs" -> "Loan docs").
func sourceLabel(name string) string {
	cleaned := strings.ReplaceAll(name, "_", " ")
	if cleaned == "" {
		return name
	}
	return strings.ToUpper(cleaned[:1]) + cleaned[1:]
}
