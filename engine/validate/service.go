package validate

import (
	"context"
	"errors"

	"github.com/mohae/deepcopy"

	"github.com/uadcheck/uadcheck/engine/core"
	"github.com/uadcheck/uadcheck/engine/normalizer"
	"github.com/uadcheck/uadcheck/engine/rules"
	"github.com/uadcheck/uadcheck/engine/scan"
	"github.com/uadcheck/uadcheck/pkg/logger"
)

// ErrNotConfigured is returned when no configuration snapshot is loaded.
var ErrNotConfigured = errors.New("validation engine is not configured")

// Request is one submission to validate. All inputs are read-only; the
// service copies what it must and never mutates caller data.
type Request struct {
	// Snapshot is the raw extraction output.
	Snapshot *core.RawSnapshot
	// Sections carries additional canonical sections the caller resolved
	// outside extraction (photos, certifications, sections, reconciliation,
	// review). They are merged into the payload before validation.
	Sections map[string]any
	// Sources maps source name to that source's raw field set; each is
	// normalized through the same contract as the subject document.
	Sources map[string]*core.RawSnapshot
	// Acks is the submission-level acknowledgment metadata.
	Acks core.AckSet
}

// Option configures the service.
type Option func(*Service)

// WithConfidenceThreshold overrides the low-confidence threshold.
func WithConfidenceThreshold(threshold float64) Option {
	return func(s *Service) {
		s.threshold = threshold
	}
}

// WithCrossSourceSeverity overrides the default severity for cross-source
// mismatch findings.
func WithCrossSourceSeverity(severity core.Severity) Option {
	return func(s *Service) {
		s.crossSourceSeverity = severity
	}
}

// WithNormalizer substitutes a custom mapping table.
func WithNormalizer(n *normalizer.Normalizer) Option {
	return func(s *Service) {
		s.norm = n
	}
}

// Service runs the full validation pipeline: normalize, structural check,
// scans, rule evaluation, aggregation. Each run is a pure function of its
// inputs plus the current configuration snapshot; the service is reentrant.
type Service struct {
	store               *rules.Store
	eval                *rules.Evaluator
	norm                *normalizer.Normalizer
	threshold           float64
	crossSourceSeverity core.Severity
}

// New builds the service around a configuration store and the evaluator the
// store's registry was validated with.
func New(store *rules.Store, eval *rules.Evaluator, opts ...Option) *Service {
	s := &Service{
		store:               store,
		eval:                eval,
		norm:                normalizer.New(nil),
		threshold:           scan.DefaultConfidenceThreshold,
		crossSourceSeverity: core.SeverityWarn,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validate executes the pipeline stages strictly in order; every stage
// consumes the prior stage's output. The engine performs no I/O here.
func (s *Service) Validate(ctx context.Context, req *Request) (*core.ValidationResult, error) {
	snapshot := s.store.Snapshot()
	if snapshot == nil {
		return nil, ErrNotConfigured
	}
	log := logger.FromContext(ctx)

	// Stage 1: normalize the raw extraction into the canonical payload.
	normalized := s.norm.Normalize(ctx, req.Snapshot)
	payload := normalized.Payload
	for name, section := range req.Sections {
		payload[name] = deepcopy.Copy(section)
	}
	if len(normalized.Unmapped) > 0 {
		log.Debug("raw fields left unmapped", "count", len(normalized.Unmapped))
	}

	// Stage 2: structural validation, before any rule runs, so missing
	// sections are reported even when predicates cannot dereference them.
	structural := snapshot.Validator.Validate(payload)
	schemaFields := make(map[string]struct{}, len(structural))
	for i := range structural {
		schemaFields[structural[i].Field] = struct{}{}
	}
	// Required-property violations carry the parent object's location, so the
	// absent leaves are marked from the schema's required paths directly. A
	// leaf that is present but empty does not violate "required" and stays
	// the requirement rules' to report.
	for path := range snapshot.Required {
		if _, found := core.GetPath(payload, path); !found {
			schemaFields[path] = struct{}{}
		}
	}

	// Stage 3: completeness and confidence scans, advisory only.
	completeness := scan.Completeness(payload, snapshot.Required)
	lowConfidence := scan.LowConfidence(normalized.Confidence, s.threshold)

	// Stage 4: rule evaluation.
	engine := rules.NewEngine(snapshot.Registry, s.eval)
	ruleFindings := engine.Evaluate(ctx, &rules.Input{
		Payload:             payload,
		Sources:             s.normalizeSources(ctx, req.Sources),
		Acks:                req.Acks,
		SchemaErrorFields:   schemaFields,
		CrossSourceSeverity: s.crossSourceSeverity,
	})

	// Stage 5: aggregate.
	findings := mergeFindings(structural, ruleFindings)
	result := &core.ValidationResult{
		Payload:             payload,
		Status:              statusOf(findings),
		Findings:            findings,
		MissingFields:       completeness.Missing,
		LowConfidenceFields: lowConfidence,
		BusinessFlags:       completeness.BusinessFlags,
		NormalizationMisses: normalized.Misses,
		UsedFallback:        normalized.UsedFallback,
		RulesetVersion:      snapshot.Registry.Version(),
	}
	if req.Snapshot != nil {
		result.RawFields = req.Snapshot.Fields
	}
	return result, nil
}

// normalizeSources runs each external source payload through the same
// normalizer contract before cross-source comparison.
func (s *Service) normalizeSources(
	ctx context.Context,
	sources map[string]*core.RawSnapshot,
) map[string]map[string]any {
	if len(sources) == 0 {
		return nil
	}
	out := make(map[string]map[string]any, len(sources))
	for name, snapshot := range sources {
		out[name] = s.norm.Normalize(ctx, snapshot).Payload
	}
	return out
}
