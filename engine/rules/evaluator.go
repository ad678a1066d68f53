package rules

import (
	"context"
	"fmt"
	"strings"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/uadcheck/uadcheck/engine/normalizer"
)

// contextVars lists every variable a rule predicate may reference. Sections
// absent from a submission are bound to empty maps so dereferencing them is a
// runtime miss, never a compile failure.
var contextVars = []string{
	"subject",
	"contract",
	"appraiser",
	"photos",
	"certifications",
	"sections",
	"reconciliation",
	"review",
	"sales_comparison",
	"sources",
}

const (
	defaultCostLimit     = 1000
	programCacheCounters = 10_000
	programCacheMaxCost  = 1 << 20
)

// Evaluator compiles and runs CEL rule predicates. Programs are cached by
// expression text; the evaluator is safe for concurrent use.
type Evaluator struct {
	env          *cel.Env
	costLimit    uint64
	programCache *ristretto.Cache[string, cel.Program]
}

// EvaluatorOption configures the evaluator.
type EvaluatorOption func(*Evaluator)

// WithCostLimit caps the CEL evaluation cost per expression.
func WithCostLimit(limit uint64) EvaluatorOption {
	return func(e *Evaluator) {
		e.costLimit = limit
	}
}

// NewEvaluator builds the CEL environment with the payload section variables
// and the appraisal helper functions.
func NewEvaluator(opts ...EvaluatorOption) (*Evaluator, error) {
	envOpts := make([]cel.EnvOption, 0, len(contextVars)+2)
	for _, name := range contextVars {
		envOpts = append(envOpts, cel.Variable(name, cel.MapType(cel.StringType, cel.DynType)))
	}
	envOpts = append(envOpts,
		cel.Function("lastName",
			cel.Overload("lastName_string", []*cel.Type{cel.StringType}, cel.StringType,
				cel.UnaryBinding(func(v ref.Val) ref.Val {
					s, ok := v.Value().(string)
					if !ok {
						return types.String("")
					}
					return types.String(lastNameOf(s))
				}))),
		cel.Function("conditionRank",
			cel.Overload("conditionRank_dyn", []*cel.Type{cel.DynType}, cel.IntType,
				cel.UnaryBinding(func(v ref.Val) ref.Val {
					return types.Int(normalizer.ConditionRank(v.Value()))
				}))),
	)
	env, err := cel.NewEnv(envOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, cel.Program]{
		NumCounters: programCacheCounters,
		MaxCost:     programCacheMaxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program cache: %w", err)
	}
	e := &Evaluator{env: env, costLimit: defaultCostLimit, programCache: cache}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Compile checks an expression against the rule environment without running
// it. Registry load uses this to reject malformed predicates up front.
func (e *Evaluator) Compile(expr string) error {
	_, err := e.program(expr)
	return err
}

// Evaluate runs a boolean predicate against the activation data. Compile
// problems come back as errors (configuration defects); runtime problems such
// as a missing key are reported via the error too so the caller can decide
// between "not triggered" and "skip".
func (e *Evaluator) Evaluate(ctx context.Context, expr string, data map[string]any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("context error before CEL evaluation: %w", err)
	}
	prog, err := e.program(expr)
	if err != nil {
		return false, err
	}
	out, _, err := prog.ContextEval(ctx, data)
	if err != nil {
		return false, fmt.Errorf("CEL evaluation failed: %w", err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression must produce a boolean, got %T", out.Value())
	}
	return result, nil
}

// runtimeMissMessages are the interpreter error texts cel-go v0.26 produces
// when an expression dereferences data the activation does not have. cel-go
// surfaces these as opaque types.Err values with no exported sentinel, so the
// message text is the only classification handle; revisit on cel-go upgrades.
var runtimeMissMessages = []string{
	"no such key",
	"no such attribute",
	"no such overload",
}

// IsRuntimeMiss reports whether an evaluation error came from dereferencing
// data the payload does not have, as opposed to a malformed expression or an
// exhausted cost budget. Rule predicates treat these as "not triggered";
// everything else is a configuration defect.
func IsRuntimeMiss(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, miss := range runtimeMissMessages {
		if strings.Contains(msg, miss) {
			return true
		}
	}
	return false
}

func (e *Evaluator) program(expr string) (cel.Program, error) {
	if prog, found := e.programCache.Get(expr); found {
		return prog, nil
	}
	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compilation failed: %w", issues.Err())
	}
	prog, err := e.env.Program(ast,
		cel.EvalOptions(cel.OptOptimize, cel.OptTrackCost),
		cel.CostLimit(e.costLimit),
	)
	if err != nil {
		return nil, fmt.Errorf("CEL program construction failed: %w", err)
	}
	e.programCache.Set(expr, prog, int64(len(expr)))
	return prog, nil
}

// lastNameOf extracts the family name from a borrower or owner string,
// tolerating joint spellings like "Alex & Jamie Morgan".
func lastNameOf(name string) string {
	cleaned := strings.NewReplacer("&", " ", ",", " ", "/", " ").Replace(name)
	fields := strings.Fields(cleaned)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[len(fields)-1])
}
