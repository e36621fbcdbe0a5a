package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		level string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"bogus", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := NewLogger(LogConfig{Level: tt.level, Format: "json"}, false)
			require.NotNil(t, logger)
			assert.True(t, logger.Core().Enabled(tt.want))
			if tt.want > zapcore.DebugLevel {
				assert.False(t, logger.Core().Enabled(tt.want-1))
			}
		})
	}
}

func TestNewLogger_DebugOverride(t *testing.T) {
	logger := NewLogger(LogConfig{Level: "error", Format: "json"}, true)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel), "--debug forces debug level")
}

func TestNewLogger_ConsoleFormat(t *testing.T) {
	logger := NewLogger(LogConfig{Level: "info", Format: "console"}, false)
	require.NotNil(t, logger)
}
