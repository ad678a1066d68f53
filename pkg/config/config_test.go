package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("Should apply defaults when nothing is set", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)
		assert.InDelta(t, 0.8, cfg.ConfidenceThreshold, 1e-9)
		assert.Equal(t, "warn", cfg.CrossSourceSeverity)
		assert.Equal(t, "info", cfg.LogLevel)
	})
	t.Run("Should honor environment overrides", func(t *testing.T) {
		t.Setenv("UADCHECK_CONFIDENCE_THRESHOLD", "0.65")
		t.Setenv("UADCHECK_CROSS_SOURCE_SEVERITY", "error")
		cfg, err := Load()
		require.NoError(t, err)
		assert.InDelta(t, 0.65, cfg.ConfidenceThreshold, 1e-9)
		assert.Equal(t, "error", cfg.CrossSourceSeverity)
	})
	t.Run("Should reject a threshold outside the unit interval", func(t *testing.T) {
		t.Setenv("UADCHECK_CONFIDENCE_THRESHOLD", "1.5")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "validation")
	})
	t.Run("Should reject unknown severities", func(t *testing.T) {
		t.Setenv("UADCHECK_CROSS_SOURCE_SEVERITY", "condition")
		_, err := Load()
		require.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	t.Run("Should accept the built-in defaults", func(t *testing.T) {
		require.NoError(t, Validate(Default()))
	})
}
