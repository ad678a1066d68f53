package normalizer

import (
	"context"
	"strings"

	"github.com/uadcheck/uadcheck/engine/core"
	"github.com/uadcheck/uadcheck/pkg/logger"
)

// Result carries everything the downstream stages need from normalization.
// The payload is built once per request and treated as immutable afterwards.
type Result struct {
	// Payload is the canonical tree; sections exist even when empty so rule
	// predicates can dereference them safely.
	Payload map[string]any
	// Confidence maps each canonical leaf path to the confidence of the raw
	// field it came from.
	Confidence map[string]float64
	// Misses lists raw names whose enum value had no canonical mapping; the
	// value passes through, flagged rather than dropped.
	Misses []string
	// Unmapped lists raw names absent from the mapping table; they stay in
	// the raw snapshot only.
	Unmapped     []string
	UsedFallback bool
}

// Normalizer maps raw (name, value, confidence) triples onto the canonical
// payload. It is immutable and safe for concurrent use.
type Normalizer struct {
	mappings []FieldMapping
	byRaw    map[string]int
}

// New builds a normalizer over the given mapping table; nil means the
// built-in UAD 1004 table.
func New(mappings []FieldMapping) *Normalizer {
	if mappings == nil {
		mappings = DefaultMappings()
	}
	byRaw := make(map[string]int, len(mappings))
	for i := range mappings {
		byRaw[mappings[i].Raw] = i
	}
	return &Normalizer{mappings: mappings, byRaw: byRaw}
}

// Normalize converts the raw snapshot into the canonical payload. It fails
// soft: an unmappable field never aborts the run.
func (n *Normalizer) Normalize(ctx context.Context, snapshot *core.RawSnapshot) *Result {
	log := logger.FromContext(ctx)
	result := &Result{
		Payload: map[string]any{
			"subject":  map[string]any{},
			"contract": map[string]any{},
		},
		Confidence: map[string]float64{},
	}
	if snapshot == nil {
		return result
	}
	result.UsedFallback = snapshot.UsedFallback
	for i := range snapshot.Fields {
		field := snapshot.Fields[i]
		idx, mapped := n.byRaw[field.Name]
		if !mapped {
			result.Unmapped = append(result.Unmapped, field.Name)
			continue
		}
		mapping := n.mappings[idx]
		value, ok, miss := coerce(mapping, field.Value)
		if miss {
			result.Misses = append(result.Misses, field.Name)
			log.Debug("normalization miss", "raw", field.Name, "path", mapping.Path)
		}
		if !ok {
			continue
		}
		setValue(result, mapping.Path, value, clampConfidence(field.Confidence))
	}
	return result
}

func coerce(mapping FieldMapping, raw any) (value any, ok, miss bool) {
	switch mapping.Kind {
	case KindDate:
		v, ok := coerceDate(raw)
		return v, ok, false
	case KindMoney:
		v, ok := coerceMoney(raw)
		return v, ok, false
	case KindBool:
		v, ok := coerceBool(raw)
		return v, ok, false
	case KindEnum:
		v, ok := coerceEnum(raw, mapping.Aliases)
		if v == "" {
			return nil, false, false
		}
		// Unmapped vocabulary passes through flagged as a miss.
		return v, true, !ok
	case KindHOAFreq:
		v, ok := coerceHOAFreq(raw)
		return v, ok, false
	case KindDOM:
		v, ok := coerceDOM(raw)
		return v, ok, false
	case KindAddress:
		v, ok := coerceAddress(raw)
		return v, ok, false
	case KindCondition:
		code := NormalizeConditionCode(raw)
		return code, code != "", false
	default:
		v, ok := asText(raw)
		return v, ok, false
	}
}

// setValue writes a coerced value at the mapping's dot path, creating
// intermediate sections as needed. Address objects fan out into per-component
// leaves sharing the source field's confidence.
func setValue(result *Result, path string, value any, confidence float64) {
	if obj, isObj := value.(map[string]any); isObj {
		for key, component := range obj {
			setLeaf(result, path+"."+key, component, confidence)
		}
		return
	}
	setLeaf(result, path, value, confidence)
}

func setLeaf(result *Result, path string, value any, confidence float64) {
	parts := strings.Split(path, ".")
	current := result.Payload
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
	result.Confidence[path] = confidence
}

func clampConfidence(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}
