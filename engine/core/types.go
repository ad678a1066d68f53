package core

import "time"

// -----------------------------------------------------------------------------
// Severity
// -----------------------------------------------------------------------------

// Severity classifies a finding; error outranks warn outranks info.
type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warn"
	SeverityInfo  Severity = "info"
)

func (s Severity) String() string {
	return string(s)
}

// Valid reports whether the severity is one of the declared values.
func (s Severity) Valid() bool {
	switch s {
	case SeverityError, SeverityWarn, SeverityInfo:
		return true
	}
	return false
}

// Rank returns the precedence rank of the severity, higher is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityError:
		return 3
	case SeverityWarn:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// -----------------------------------------------------------------------------
// Status
// -----------------------------------------------------------------------------

// Status is the overall outcome of one validation run.
type Status string

const (
	StatusPass Status = "pass"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
)

func (s Status) String() string {
	return string(s)
}

// -----------------------------------------------------------------------------
// Raw extraction snapshot
// -----------------------------------------------------------------------------

// NoneSelected is the vendor sentinel for selection marks the extractor could
// not resolve; it is treated as an empty value everywhere.
const NoneSelected = "(none selected)"

// RawField is one (name, value, confidence) triple as produced by the
// document extraction provider. Names use the vendor vocabulary and are not
// guaranteed to map onto the canonical schema.
type RawField struct {
	Name       string  `json:"name"`
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence"`
}

// RawSnapshot is the full, immutable output of one extraction call.
type RawSnapshot struct {
	Fields       []RawField `json:"fields"`
	UsedFallback bool       `json:"used_fallback"`
}

// Field returns the first raw field with the given vendor name.
func (s *RawSnapshot) Field(name string) (RawField, bool) {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return s.Fields[i], true
		}
	}
	return RawField{}, false
}

// -----------------------------------------------------------------------------
// Acknowledgments
// -----------------------------------------------------------------------------

// Acknowledgment records that a human reviewed and accepted a rule hit on this
// submission. Keyed by rule id in AckSet.
type Acknowledgment struct {
	Acknowledged bool      `json:"acknowledged"`
	By           string    `json:"by"`
	At           time.Time `json:"at"`
}

// AckSet is the submission-level acknowledgment metadata.
type AckSet map[string]Acknowledgment

// Get returns the acknowledgment for a rule id, if one was recorded.
func (a AckSet) Get(ruleID string) (Acknowledgment, bool) {
	if a == nil {
		return Acknowledgment{}, false
	}
	ack, ok := a[ruleID]
	return ack, ok
}

// -----------------------------------------------------------------------------
// Findings
// -----------------------------------------------------------------------------

// SourceValue is one external source's view of a canonical field, attached to
// cross-source findings so reviewers can see which source disagreed.
type SourceValue struct {
	Value   any  `json:"value"`
	Missing bool `json:"missing"`
}

// Finding is one reported validation outcome. Findings are created once and
// never mutated afterwards; the aggregator only merges and reorders them.
type Finding struct {
	Field    string                 `json:"field"`
	Message  string                 `json:"message"`
	Severity Severity               `json:"severity"`
	Rule     string                 `json:"rule"`
	Sources  map[string]SourceValue `json:"sources,omitempty"`
	AckRef   string                 `json:"ack_ref,omitempty"`
}

// -----------------------------------------------------------------------------
// Validation result
// -----------------------------------------------------------------------------

// ValidationResult is the engine's complete output for one submission.
type ValidationResult struct {
	Payload             map[string]any `json:"payload"`
	Status              Status         `json:"status"`
	Findings            []Finding      `json:"findings"`
	MissingFields       []string       `json:"missing_fields"`
	LowConfidenceFields []string       `json:"low_confidence_fields"`
	BusinessFlags       []string       `json:"business_flags"`
	NormalizationMisses []string       `json:"normalization_misses,omitempty"`
	RawFields           []RawField     `json:"raw_fields"`
	UsedFallback        bool           `json:"used_fallback"`
	RulesetVersion      string         `json:"ruleset_version"`
}
