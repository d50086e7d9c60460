package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/nutrinani/nutrinani/internal/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		cfg    config.Log
		level  zapcore.Level
		errors bool
	}{
		{"json info", config.Log{Level: "info", Format: "json"}, zapcore.InfoLevel, false},
		{"console debug", config.Log{Level: "DEBUG", Format: "console"}, zapcore.DebugLevel, false},
		{"empty level defaults to info", config.Log{Format: "json"}, zapcore.InfoLevel, false},
		{"unknown level", config.Log{Level: "loud"}, zapcore.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if tt.errors {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.level))
			assert.False(t, logger.Core().Enabled(tt.level-1))
		})
	}
}
