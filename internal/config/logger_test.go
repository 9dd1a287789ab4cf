package config

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger_DefaultsToInfoLevel(t *testing.T) {
	logger := NewLogger(LogConfig{})
	defer logger.Sync()

	require.NotNil(t, logger)
	require.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	require.False(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestNewLogger_RespectsExplicitLevel(t *testing.T) {
	logger := NewLogger(LogConfig{Level: "debug"})
	defer logger.Sync()

	require.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestNewLogger_ConsoleFormatBuildsWithoutError(t *testing.T) {
	logger := NewLogger(LogConfig{Format: "console"})
	defer logger.Sync()

	require.NotNil(t, logger)
}
