package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvaluator(t *testing.T) {
	t.Run("Should create evaluator with defaults", func(t *testing.T) {
		eval, err := NewEvaluator()
		require.NoError(t, err)
		assert.NotNil(t, eval.env)
		assert.Equal(t, uint64(defaultCostLimit), eval.costLimit)
		assert.NotNil(t, eval.programCache)
	})
	t.Run("Should honor a custom cost limit", func(t *testing.T) {
		eval, err := NewEvaluator(WithCostLimit(500))
		require.NoError(t, err)
		assert.Equal(t, uint64(500), eval.costLimit)
	})
}

func TestEvaluator_Evaluate(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)
	ctx := context.Background()
	data := map[string]any{
		"subject": map[string]any{
			"pud_indicator": true,
			"hoa_frequency": "None",
			"borrower_name": "Alex & Jamie Morgan",
		},
		"contract": map[string]any{"assignment_type": "Purchase", "contract_price": 525000},
	}

	t.Run("Should evaluate a simple predicate", func(t *testing.T) {
		result, err := eval.Evaluate(ctx, `contract.assignment_type == "Purchase"`, data)
		require.NoError(t, err)
		assert.True(t, result)
	})
	t.Run("Should evaluate a conjunction across sections", func(t *testing.T) {
		result, err := eval.Evaluate(ctx,
			`subject.pud_indicator == true && contract.contract_price > 500000`, data)
		require.NoError(t, err)
		assert.True(t, result)
	})
	t.Run("Should report a missing key as a runtime miss", func(t *testing.T) {
		result, err := eval.Evaluate(ctx, `subject.missing_field == "x"`, data)
		require.Error(t, err)
		assert.False(t, result)
		assert.True(t, IsRuntimeMiss(err))
	})
	t.Run("Should report a compile failure as a configuration defect", func(t *testing.T) {
		_, err := eval.Evaluate(ctx, `contract.assignment_type ==`, data)
		require.Error(t, err)
		assert.False(t, IsRuntimeMiss(err))
	})
	t.Run("Should reject non-boolean expressions", func(t *testing.T) {
		_, err := eval.Evaluate(ctx, `contract.assignment_type`, data)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boolean")
	})
	t.Run("Should support has on optional fields", func(t *testing.T) {
		result, err := eval.Evaluate(ctx, `has(subject.borrower_name)`, data)
		require.NoError(t, err)
		assert.True(t, result)
		result, err = eval.Evaluate(ctx, `has(subject.public_record_owner)`, data)
		require.NoError(t, err)
		assert.False(t, result)
	})
	t.Run("Should not mistake a cost-limit breach for a runtime miss", func(t *testing.T) {
		capped, err := NewEvaluator(WithCostLimit(1))
		require.NoError(t, err)
		_, err = capped.Evaluate(ctx,
			`subject.pud_indicator == true && subject.hoa_frequency == "None" && `+
				`subject.borrower_name != ""`, data)
		require.Error(t, err)
		assert.False(t, IsRuntimeMiss(err))
	})
	t.Run("Should stop on canceled context", func(t *testing.T) {
		canceled, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := eval.Evaluate(canceled, `true`, data)
		require.Error(t, err)
	})
	t.Run("Should reuse cached programs deterministically", func(t *testing.T) {
		for range 3 {
			result, err := eval.Evaluate(ctx, `subject.hoa_frequency == "None"`, data)
			require.NoError(t, err)
			assert.True(t, result)
		}
	})
}

func TestEvaluator_DomainFunctions(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("Should compare family names through lastName", func(t *testing.T) {
		data := map[string]any{
			"subject": map[string]any{
				"borrower_name":       "Alex & Jamie Morgan",
				"public_record_owner": "Jamie Morgan",
			},
		}
		result, err := eval.Evaluate(ctx,
			`lastName(subject.borrower_name) == lastName(subject.public_record_owner)`, data)
		require.NoError(t, err)
		assert.True(t, result)
	})
	t.Run("Should detect differing family names", func(t *testing.T) {
		data := map[string]any{
			"subject": map[string]any{
				"borrower_name":       "Alex Morgan",
				"public_record_owner": "Taylor Smith",
			},
		}
		result, err := eval.Evaluate(ctx,
			`lastName(subject.borrower_name) == lastName(subject.public_record_owner)`, data)
		require.NoError(t, err)
		assert.False(t, result)
	})
	t.Run("Should rank condition codes", func(t *testing.T) {
		data := map[string]any{
			"subject": map[string]any{"condition_code": "C4"},
		}
		result, err := eval.Evaluate(ctx, `conditionRank(subject.condition_code) >= 4`, data)
		require.NoError(t, err)
		assert.True(t, result)
	})
}

func TestLastNameOf(t *testing.T) {
	assert.Equal(t, "morgan", lastNameOf("Alex Morgan"))
	assert.Equal(t, "morgan", lastNameOf("Alex & Jamie Morgan"))
	assert.Equal(t, "", lastNameOf("   "))
}
