package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	t.Run("Should write structured key-values", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewLogger(&Config{Level: DebugLevel, Output: &buf})
		log.Info("registry loaded", "version", "2024.1", "rules", 6)
		out := buf.String()
		assert.Contains(t, out, "registry loaded")
		assert.Contains(t, out, "version")
		assert.Contains(t, out, "2024.1")
	})
	t.Run("Should suppress entries below the configured level", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewLogger(&Config{Level: WarnLevel, Output: &buf})
		log.Info("quiet")
		log.Warn("loud")
		assert.NotContains(t, buf.String(), "quiet")
		assert.Contains(t, buf.String(), "loud")
	})
	t.Run("Should emit JSON when configured", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewLogger(&Config{Level: InfoLevel, Output: &buf, JSON: true})
		log.Info("hello", "rule", "X002")
		assert.True(t, strings.Contains(buf.String(), `"rule"`))
	})
	t.Run("Should carry With fields forward", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewLogger(&Config{Level: InfoLevel, Output: &buf}).With("component", "rules")
		log.Info("evaluated")
		assert.Contains(t, buf.String(), "component")
	})
}

func TestFromContext(t *testing.T) {
	t.Run("Should round-trip a logger through the context", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewLogger(&Config{Level: InfoLevel, Output: &buf})
		ctx := ContextWithLogger(context.Background(), log)
		FromContext(ctx).Info("from ctx")
		assert.Contains(t, buf.String(), "from ctx")
	})
	t.Run("Should fall back to a no-op logger", func(t *testing.T) {
		log := FromContext(context.Background())
		require.NotNil(t, log)
		log.Info("goes nowhere")
	})
}
