package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		development bool
		level       string
		enabled     zapcore.Level
		disabled    zapcore.Level
	}{
		{name: "development default", development: true, enabled: zapcore.DebugLevel, disabled: zapcore.InvalidLevel},
		{name: "production default", development: false, enabled: zapcore.InfoLevel, disabled: zapcore.DebugLevel},
		{name: "explicit warn", development: true, level: "warn", enabled: zapcore.WarnLevel, disabled: zapcore.InfoLevel},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			logger, err := New(tc.development, tc.level)
			require.NoError(t, err)
			defer logger.Sync() //nolint:errcheck // best-effort flush
			require.True(t, logger.Core().Enabled(tc.enabled))
			if tc.disabled != zapcore.InvalidLevel {
				require.False(t, logger.Core().Enabled(tc.disabled))
			}
		})
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	_, err := New(false, "loud")
	require.ErrorContains(t, err, "parse log level")
}
