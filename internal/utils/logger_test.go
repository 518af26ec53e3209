package utils

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(level string, buf *bytes.Buffer) *Logger {
	return NewLogger(LoggerOptions{Level: level, Format: "json", Output: buf})
}

func TestNewLogger(t *testing.T) {
	t.Run("nop", func(t *testing.T) {
		require.NotNil(t, NewNopLogger())
		assert.NotPanics(t, func() { NewNopLogger().WithItem("1").Info().Msg("dropped") })
	})

	t.Run("json output", func(t *testing.T) {
		var buf bytes.Buffer
		newBufferLogger("info", &buf).Info().Msg("generation reused")
		assert.Contains(t, buf.String(), `"message":"generation reused"`)
	})

	t.Run("pretty output", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(LoggerOptions{Level: "info", Format: FormatPretty, Output: &buf})
		logger.Info().Msg("snapshot saved")
		assert.Contains(t, buf.String(), "snapshot saved")
	})

	t.Run("verbose forces debug", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(LoggerOptions{Level: "error", Format: "json", Output: &buf, Verbose: true})
		logger.Debug().Msg("stale update ignored")
		assert.Contains(t, buf.String(), "stale update ignored")
	})
}

func TestLoggerLevels(t *testing.T) {
	tests := []struct {
		level     string
		debugSeen bool
		infoSeen  bool
		warnSeen  bool
	}{
		{"debug", true, true, true},
		{"info", false, true, true},
		{"warn", false, false, true},
		{"error", false, false, false},
		{"bogus", false, true, true},
		{"", false, true, true},
		{" WARN ", false, false, true},
		{"trace", true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := newBufferLogger(tt.level, &buf)
			logger.Debug().Msg("d-line")
			logger.Info().Msg("i-line")
			logger.Warn().Msg("w-line")

			out := buf.String()
			assert.Equal(t, tt.debugSeen, bytes.Contains([]byte(out), []byte("d-line")))
			assert.Equal(t, tt.infoSeen, bytes.Contains([]byte(out), []byte("i-line")))
			assert.Equal(t, tt.warnSeen, bytes.Contains([]byte(out), []byte("w-line")))
		})
	}
}

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger("info", &buf)

	logger.WithComponent("ledger").WithItem("941618511").WithURL("https://example.com").
		Info().Msg("chained")

	out := buf.String()
	assert.Contains(t, out, `"component":"ledger"`)
	assert.Contains(t, out, `"item":"941618511"`)
	assert.Contains(t, out, `"url":"https://example.com"`)
}
