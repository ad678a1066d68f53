package rules

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uadcheck/uadcheck/engine/core"
)

// canonicalPayload builds a submission that passes every default rule.
func canonicalPayload() map[string]any {
	return map[string]any{
		"subject": map[string]any{
			"address": map[string]any{
				"street": "123 Main St",
				"city":   "Springfield",
				"state":  "CA",
				"zip":    "90210",
			},
			"parcel_number":       "APN-0042",
			"pud_indicator":       true,
			"hoa_amount":          250,
			"hoa_frequency":       "PerMonth",
			"tax_year":            "2023",
			"real_estate_taxes":   4100,
			"borrower_name":       "John Smith",
			"public_record_owner": "Jane Smith",
		},
		"contract": map[string]any{
			"assignment_type": "Purchase",
			"contract_price":  425000,
			"contract_date":   "05/15/2024",
		},
	}
}

func newDefaultEngine(t *testing.T) (*Engine, *Evaluator) {
	t.Helper()
	eval := newEval(t)
	reg, err := NewRegistry(DefaultDocument(), eval)
	require.NoError(t, err)
	return NewEngine(reg, eval), eval
}

func findingsFor(findings []core.Finding, rule string) []core.Finding {
	var out []core.Finding
	for _, f := range findings {
		if f.Rule == rule {
			out = append(out, f)
		}
	}
	return out
}

func TestEngine_RequirementRules(t *testing.T) {
	engine, _ := newDefaultEngine(t)
	ctx := context.Background()

	t.Run("Should pass a complete purchase payload", func(t *testing.T) {
		findings := engine.Evaluate(ctx, &Input{Payload: canonicalPayload()})
		assert.Empty(t, findingsFor(findings, RequirementRuleID))
	})
	t.Run("Should require contract price and date on a purchase", func(t *testing.T) {
		payload := canonicalPayload()
		contract := payload["contract"].(map[string]any)
		delete(contract, "contract_price")
		delete(contract, "contract_date")
		findings := findingsFor(engine.Evaluate(ctx, &Input{Payload: payload}), RequirementRuleID)
		require.Len(t, findings, 2)
		assert.Equal(t, "contract.contract_price", findings[0].Field)
		assert.Equal(t, "Field 'contract.contract_price' is required", findings[0].Message)
		assert.Equal(t, core.SeverityError, findings[0].Severity)
		assert.Equal(t, "contract.contract_date", findings[1].Field)
	})
	t.Run("Should not require contract fields on a refinance", func(t *testing.T) {
		payload := canonicalPayload()
		payload["contract"] = map[string]any{"assignment_type": "Refinance"}
		findings := engine.Evaluate(ctx, &Input{Payload: payload})
		assert.Empty(t, findingsFor(findings, RequirementRuleID))
	})
	t.Run("Should treat the none-selected sentinel as empty", func(t *testing.T) {
		payload := canonicalPayload()
		payload["contract"].(map[string]any)["contract_price"] = core.NoneSelected
		findings := findingsFor(engine.Evaluate(ctx, &Input{Payload: payload}), RequirementRuleID)
		require.Len(t, findings, 1)
		assert.Equal(t, "contract.contract_price", findings[0].Field)
	})
	t.Run("Should defer to the structural validator for reported fields", func(t *testing.T) {
		payload := canonicalPayload()
		delete(payload["contract"].(map[string]any), "contract_price")
		findings := engine.Evaluate(ctx, &Input{
			Payload:           payload,
			SchemaErrorFields: map[string]struct{}{"contract.contract_price": {}},
		})
		assert.Empty(t, findingsFor(findings, RequirementRuleID))
	})
	t.Run("Should not trigger when the antecedent cannot resolve", func(t *testing.T) {
		payload := canonicalPayload()
		payload["contract"] = map[string]any{}
		findings := engine.Evaluate(ctx, &Input{Payload: payload})
		assert.Empty(t, findingsFor(findings, RequirementRuleID))
	})
}

func TestEngine_CrossFieldRules(t *testing.T) {
	engine, _ := newDefaultEngine(t)
	ctx := context.Background()

	t.Run("Should flag a PUD without an HOA interval", func(t *testing.T) {
		payload := canonicalPayload()
		payload["subject"].(map[string]any)["hoa_frequency"] = "None"
		findings := findingsFor(engine.Evaluate(ctx, &Input{Payload: payload}), "X002")
		require.Len(t, findings, 1)
		assert.Equal(t, "subject.hoa_frequency", findings[0].Field)
		assert.Equal(t, core.SeverityWarn, findings[0].Severity)
		assert.Equal(t, "PUD projects must report the HOA payment interval", findings[0].Message)
	})
	t.Run("Should flag a PUD whose HOA interval is absent entirely", func(t *testing.T) {
		payload := canonicalPayload()
		delete(payload["subject"].(map[string]any), "hoa_frequency")
		findings := findingsFor(engine.Evaluate(ctx, &Input{Payload: payload}), "X002")
		require.Len(t, findings, 1)
	})
	t.Run("Should stay quiet for a non-PUD subject", func(t *testing.T) {
		payload := canonicalPayload()
		payload["subject"].(map[string]any)["pud_indicator"] = false
		payload["subject"].(map[string]any)["hoa_frequency"] = "None"
		findings := engine.Evaluate(ctx, &Input{Payload: payload})
		assert.Empty(t, findingsFor(findings, "X002"))
	})
	t.Run("Should flag a refinance last-name mismatch with both values", func(t *testing.T) {
		payload := canonicalPayload()
		payload["contract"].(map[string]any)["assignment_type"] = "Refinance"
		payload["subject"].(map[string]any)["borrower_name"] = "John Smith"
		payload["subject"].(map[string]any)["public_record_owner"] = "Mary Jones"
		findings := findingsFor(engine.Evaluate(ctx, &Input{Payload: payload}), "X010")
		require.Len(t, findings, 1)
		assert.Equal(t, "subject.borrower_name", findings[0].Field)
		assert.Contains(t, findings[0].Message, "John Smith")
		assert.Contains(t, findings[0].Message, "Mary Jones")
	})
	t.Run("Should match joint owners through the shared family name", func(t *testing.T) {
		payload := canonicalPayload()
		payload["contract"].(map[string]any)["assignment_type"] = "Refinance"
		payload["subject"].(map[string]any)["borrower_name"] = "Alex & Jamie Morgan"
		payload["subject"].(map[string]any)["public_record_owner"] = "Sam Morgan"
		findings := engine.Evaluate(ctx, &Input{Payload: payload})
		assert.Empty(t, findingsFor(findings, "X010"))
	})
	t.Run("Should skip the name check when a name is absent", func(t *testing.T) {
		payload := canonicalPayload()
		payload["contract"].(map[string]any)["assignment_type"] = "Refinance"
		delete(payload["subject"].(map[string]any), "public_record_owner")
		findings := engine.Evaluate(ctx, &Input{Payload: payload})
		assert.Empty(t, findingsFor(findings, "X010"))
	})
}

func signedPayload() map[string]any {
	payload := canonicalPayload()
	payload["appraiser"] = map[string]any{
		"signature_present": true,
		"signature_date":    "06/01/2024",
		"name":              "Pat Diaz",
	}
	payload["certifications"] = map[string]any{"appraiser": "signed"}
	payload["photos"] = map[string]any{
		"front_exterior": "front.jpg",
		"rear_exterior":  "rear.jpg",
		"street_scene":   "street.jpg",
	}
	payload["sections"] = map[string]any{
		"section_a": "complete",
		"section_b": "complete",
		"section_c": "complete",
		"section_d": "complete",
	}
	return payload
}

func TestEngine_SignatureCompleteness(t *testing.T) {
	engine, _ := newDefaultEngine(t)
	ctx := context.Background()

	t.Run("Should accept a signed report with full inventory", func(t *testing.T) {
		findings := engine.Evaluate(ctx, &Input{Payload: signedPayload()})
		assert.Empty(t, findingsFor(findings, "R-01"))
	})
	t.Run("Should flag a signed report missing a photo", func(t *testing.T) {
		payload := signedPayload()
		delete(payload["photos"].(map[string]any), "street_scene")
		findings := findingsFor(engine.Evaluate(ctx, &Input{Payload: payload}), "R-01")
		require.Len(t, findings, 1)
		assert.Equal(t, core.SeverityError, findings[0].Severity)
	})
	t.Run("Should stay quiet for an unsigned report", func(t *testing.T) {
		payload := signedPayload()
		payload["appraiser"].(map[string]any)["signature_present"] = false
		findings := engine.Evaluate(ctx, &Input{Payload: payload})
		assert.Empty(t, findingsFor(findings, "R-01"))
	})
}

func TestEngine_Escalation(t *testing.T) {
	engine, _ := newDefaultEngine(t)
	ctx := context.Background()
	subjectTo := func() map[string]any {
		payload := canonicalPayload()
		payload["reconciliation"] = map[string]any{
			"appraisal_type": "Subject to completion per plans and specifications",
		}
		return payload
	}

	t.Run("Should escalate an unacknowledged subject-to appraisal", func(t *testing.T) {
		findings := findingsFor(engine.Evaluate(ctx, &Input{Payload: subjectTo()}), "R-12")
		require.Len(t, findings, 1)
		assert.Equal(t, core.SeverityError, findings[0].Severity)
		assert.Empty(t, findings[0].AckRef)
	})
	t.Run("Should downgrade when a reviewer acknowledged the condition", func(t *testing.T) {
		at := time.Date(2024, 6, 2, 15, 30, 0, 0, time.UTC)
		findings := findingsFor(engine.Evaluate(ctx, &Input{
			Payload: subjectTo(),
			Acks: core.AckSet{
				"R-12": {Acknowledged: true, By: "reviewer@lender.test", At: at},
			},
		}), "R-12")
		require.Len(t, findings, 1)
		assert.Equal(t, core.SeverityWarn, findings[0].Severity)
		assert.Equal(t, "acknowledged by reviewer@lender.test at 2024-06-02T15:30:00Z", findings[0].AckRef)
	})
	t.Run("Should ignore an unacknowledged ack record", func(t *testing.T) {
		findings := findingsFor(engine.Evaluate(ctx, &Input{
			Payload: subjectTo(),
			Acks:    core.AckSet{"R-12": {Acknowledged: false, By: "reviewer@lender.test"}},
		}), "R-12")
		require.Len(t, findings, 1)
		assert.Equal(t, core.SeverityError, findings[0].Severity)
	})
	t.Run("Should stay quiet for an as-is appraisal", func(t *testing.T) {
		payload := canonicalPayload()
		payload["reconciliation"] = map[string]any{"appraisal_type": `"As is"`}
		findings := engine.Evaluate(ctx, &Input{Payload: payload})
		assert.Empty(t, findingsFor(findings, "R-12"))
	})
}

func salesComparison(subject string, comps ...string) map[string]any {
	rank := func(code string) int { return int(code[1] - '0') }
	comparables := make([]any, 0, len(comps))
	for i, code := range comps {
		comparables = append(comparables, map[string]any{
			"id":             fmt.Sprintf("Comp%d", i+1),
			"condition":      code,
			"condition_rank": rank(code),
		})
	}
	return map[string]any{
		"subject":     map[string]any{"condition": subject, "condition_rank": rank(subject)},
		"comparables": comparables,
	}
}

func TestEngine_ConditionConsistency(t *testing.T) {
	engine, _ := newDefaultEngine(t)
	ctx := context.Background()

	t.Run("Should pass comparables within tolerance", func(t *testing.T) {
		payload := canonicalPayload()
		payload["sales_comparison"] = salesComparison("C3", "C2", "C3", "C4")
		findings := engine.Evaluate(ctx, &Input{Payload: payload})
		assert.Empty(t, findingsFor(findings, "R-13"))
	})
	t.Run("Should allow a gap exactly at the tolerance bound", func(t *testing.T) {
		payload := canonicalPayload()
		payload["sales_comparison"] = salesComparison("C4", "C2", "C4")
		findings := engine.Evaluate(ctx, &Input{Payload: payload})
		assert.Empty(t, findingsFor(findings, "R-13"))
	})
	t.Run("Should flag every outlier comparable", func(t *testing.T) {
		payload := canonicalPayload()
		payload["sales_comparison"] = salesComparison("C5", "C2", "C2")
		findings := findingsFor(engine.Evaluate(ctx, &Input{Payload: payload}), "R-13")
		require.Len(t, findings, 2)
		for _, f := range findings {
			assert.Equal(t, core.SeverityError, f.Severity)
			assert.Contains(t, f.Message, "Δ=3.00")
		}
		assert.Equal(t, "sales_comparison.comparables.0", findings[0].Field)
		assert.Equal(t, "sales_comparison.comparables.1", findings[1].Field)
		assert.Contains(t, findings[0].Message, "Comp1")
	})
	t.Run("Should skip the grid when the subject rank is unknown", func(t *testing.T) {
		payload := canonicalPayload()
		payload["sales_comparison"] = map[string]any{
			"comparables": []any{map[string]any{"condition": "C2"}},
		}
		findings := engine.Evaluate(ctx, &Input{Payload: payload})
		assert.Empty(t, findingsFor(findings, "R-13"))
	})
	t.Run("Should ignore comparables without a resolvable rank", func(t *testing.T) {
		payload := canonicalPayload()
		grid := salesComparison("C5", "C2")
		grid["comparables"] = append(grid["comparables"].([]any), map[string]any{"id": "CompX"})
		payload["sales_comparison"] = grid
		findings := findingsFor(engine.Evaluate(ctx, &Input{Payload: payload}), "R-13")
		require.Len(t, findings, 1)
	})
}

func TestEngine_CrossSourceRules(t *testing.T) {
	engine, _ := newDefaultEngine(t)
	ctx := context.Background()

	alignedSources := func() map[string]map[string]any {
		return map[string]map[string]any{
			"loan_docs": {
				"subject": map[string]any{
					"address":       map[string]any{"street": "123 Main St"},
					"borrower_name": "John Smith",
				},
				"contract": map[string]any{"contract_price": 425000},
			},
			"title": {
				"subject": map[string]any{
					"parcel_number":       "APN-0042",
					"public_record_owner": "Jane Smith",
				},
			},
		}
	}

	t.Run("Should stay quiet when every source aligns", func(t *testing.T) {
		findings := engine.Evaluate(ctx, &Input{
			Payload:             canonicalPayload(),
			Sources:             alignedSources(),
			CrossSourceSeverity: core.SeverityWarn,
		})
		assert.Empty(t, findingsFor(findings, "R-06"))
	})
	t.Run("Should skip alignment entirely with no sources", func(t *testing.T) {
		findings := engine.Evaluate(ctx, &Input{Payload: canonicalPayload()})
		assert.Empty(t, findingsFor(findings, "R-06"))
	})
	t.Run("Should attribute a disagreeing source", func(t *testing.T) {
		sources := alignedSources()
		sources["title"]["subject"].(map[string]any)["public_record_owner"] = "Jane Smythe"
		findings := findingsFor(engine.Evaluate(ctx, &Input{
			Payload:             canonicalPayload(),
			Sources:             sources,
			CrossSourceSeverity: core.SeverityWarn,
		}), "R-06")
		require.Len(t, findings, 1)
		f := findings[0]
		assert.Equal(t, "subject.public_record_owner", f.Field)
		assert.Equal(t, core.SeverityWarn, f.Severity)
		assert.Contains(t, f.Message, "Jane Smith")
		assert.Contains(t, f.Message, "Title reports Jane Smythe")
		require.Contains(t, f.Sources, "title")
		assert.Equal(t, core.SourceValue{Value: "Jane Smythe"}, f.Sources["title"])
		require.Contains(t, f.Sources, "loan_docs")
		assert.True(t, f.Sources["loan_docs"].Missing)
	})
	t.Run("Should honor the configured default severity", func(t *testing.T) {
		sources := alignedSources()
		sources["loan_docs"]["contract"].(map[string]any)["contract_price"] = 430000
		findings := findingsFor(engine.Evaluate(ctx, &Input{
			Payload:             canonicalPayload(),
			Sources:             sources,
			CrossSourceSeverity: core.SeverityError,
		}), "R-06")
		require.Len(t, findings, 1)
		assert.Equal(t, core.SeverityError, findings[0].Severity)
	})
	t.Run("Should tolerate numeric type drift across sources", func(t *testing.T) {
		sources := alignedSources()
		sources["loan_docs"]["contract"].(map[string]any)["contract_price"] = float64(425000)
		findings := engine.Evaluate(ctx, &Input{
			Payload:             canonicalPayload(),
			Sources:             sources,
			CrossSourceSeverity: core.SeverityWarn,
		})
		assert.Empty(t, findingsFor(findings, "R-06"))
	})
	t.Run("Should treat a silent source as missing, not disagreeing", func(t *testing.T) {
		sources := alignedSources()
		delete(sources["title"]["subject"].(map[string]any), "parcel_number")
		findings := engine.Evaluate(ctx, &Input{
			Payload:             canonicalPayload(),
			Sources:             sources,
			CrossSourceSeverity: core.SeverityWarn,
		})
		assert.Empty(t, findingsFor(findings, "R-06"))
	})
	t.Run("Should skip fields the canonical payload does not carry", func(t *testing.T) {
		payload := canonicalPayload()
		delete(payload["subject"].(map[string]any), "parcel_number")
		sources := alignedSources()
		findings := engine.Evaluate(ctx, &Input{
			Payload:             payload,
			Sources:             sources,
			CrossSourceSeverity: core.SeverityWarn,
		})
		assert.Empty(t, findingsFor(findings, "R-06"))
	})
}

func TestEngine_Determinism(t *testing.T) {
	engine, _ := newDefaultEngine(t)
	ctx := context.Background()
	payload := canonicalPayload()
	payload["subject"].(map[string]any)["hoa_frequency"] = "None"
	delete(payload["contract"].(map[string]any), "contract_price")
	in := &Input{Payload: payload, CrossSourceSeverity: core.SeverityWarn}

	first := engine.Evaluate(ctx, in)
	for range 5 {
		assert.Equal(t, first, engine.Evaluate(ctx, in))
	}
	// Requirement findings come before cross-field findings.
	require.Len(t, first, 2)
	assert.Equal(t, RequirementRuleID, first[0].Rule)
	assert.Equal(t, "X002", first[1].Rule)
}

func TestEngine_Precedence(t *testing.T) {
	eval := newEval(t)
	doc := &Document{
		Version: "test",
		Rules: []Definition{
			{
				ID:       "loose",
				Scope:    ScopeCrossField,
				Field:    "subject.tax_year",
				Expr:     `subject.tax_year != ""`,
				Severity: core.SeverityWarn,
			},
			{
				ID:         "strict",
				Scope:      ScopeCrossField,
				Field:      "subject.tax_year",
				Expr:       `subject.tax_year.matches("^[0-9]{4}$")`,
				Severity:   core.SeverityError,
				Supersedes: []string{"loose"},
			},
		},
	}
	reg, err := NewRegistry(doc, eval)
	require.NoError(t, err)
	engine := NewEngine(reg, eval)
	ctx := context.Background()

	t.Run("Should drop the superseded finding when both trigger", func(t *testing.T) {
		payload := map[string]any{"subject": map[string]any{"tax_year": ""}}
		findings := engine.Evaluate(ctx, &Input{Payload: payload})
		require.Len(t, findings, 1)
		assert.Equal(t, "strict", findings[0].Rule)
		assert.Equal(t, core.SeverityError, findings[0].Severity)
	})
	t.Run("Should emit nothing when both predicates hold", func(t *testing.T) {
		payload := map[string]any{"subject": map[string]any{"tax_year": "2023"}}
		findings := engine.Evaluate(ctx, &Input{Payload: payload})
		assert.Empty(t, findings)
	})
}

func TestValuesEqual(t *testing.T) {
	assert.True(t, valuesEqual(425000, float64(425000)))
	assert.True(t, valuesEqual("123 Main St", " 123 Main St "))
	assert.False(t, valuesEqual(425000, "425000"))
	assert.False(t, valuesEqual("C4", "C5"))
	assert.True(t, valuesEqual(true, true))
}

func TestSourceLabel(t *testing.T) {
	assert.Equal(t, "Loan docs", sourceLabel("loan_docs"))
	assert.Equal(t, "Title", sourceLabel("title"))
	assert.Equal(t, "Public records", sourceLabel("public_records"))
}
