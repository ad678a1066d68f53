package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompleteness(t *testing.T) {
	required := map[string]struct{}{
		"subject.tax_year": {},
	}
	t.Run("Should flag optional empty leaves as business flags only", func(t *testing.T) {
		payload := map[string]any{
			"subject": map[string]any{
				"tax_year": "",
				"county":   "",
				"parcel_number": "1234567890",
			},
		}
		report := Completeness(payload, required)
		assert.Equal(t, []string{"subject.county", "subject.tax_year"}, report.Missing)
		assert.Equal(t, []string{"subject.county"}, report.BusinessFlags)
	})
	t.Run("Should treat the sentinel as empty", func(t *testing.T) {
		payload := map[string]any{
			"contract": map[string]any{"seller_owner_public_record": "(none selected)"},
		}
		report := Completeness(payload, nil)
		assert.Equal(t, []string{"contract.seller_owner_public_record"}, report.BusinessFlags)
	})
	t.Run("Should report nothing for a complete payload", func(t *testing.T) {
		payload := map[string]any{
			"subject": map[string]any{"tax_year": "2024"},
		}
		report := Completeness(payload, required)
		assert.Empty(t, report.Missing)
		assert.Empty(t, report.BusinessFlags)
	})
}

func TestLowConfidence(t *testing.T) {
	confidence := map[string]float64{
		"contract.contract_price": 0.79,
		"contract.contract_date":  0.80,
		"subject.tax_year":        0.99,
	}
	t.Run("Should flag strictly below the threshold only", func(t *testing.T) {
		flagged := LowConfidence(confidence, 0.8)
		assert.Equal(t, []string{"contract.contract_price"}, flagged)
	})
	t.Run("Should keep a value exactly at the threshold", func(t *testing.T) {
		flagged := LowConfidence(map[string]float64{"a": 0.8}, 0.8)
		assert.Empty(t, flagged)
	})
	t.Run("Should sort flagged paths", func(t *testing.T) {
		flagged := LowConfidence(map[string]float64{"z.b": 0.1, "a.c": 0.1}, 0.8)
		assert.Equal(t, []string{"a.c", "z.b"}, flagged)
	})
	t.Run("Should flag nothing at a zero threshold", func(t *testing.T) {
		flagged := LowConfidence(map[string]float64{"a": 0.0, "b": 0.4}, 0)
		assert.Empty(t, flagged)
	})
}
