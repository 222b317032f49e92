package observability

import (
	"testing"

	"github.com/railzwaylabs/callsync/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	res, err := NewLogger(config.Config{AppEnv: "production", LogLevel: "warn"})
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, res.Level.Level())
	assert.False(t, res.Logger.Core().Enabled(zapcore.InfoLevel))

	res.Level.SetLevel(zapcore.DebugLevel)
	assert.True(t, res.Logger.Core().Enabled(zapcore.DebugLevel))
}

func TestNewLogger_InvalidLevelFallsBackToInfo(t *testing.T) {
	res, err := NewLogger(config.Config{AppEnv: "local", LogLevel: "chatty"})
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, res.Level.Level())
}

func TestSetupTracing_Disabled(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	require.NoError(t, SetupTracing(lc, config.Config{}, zap.NewNop()))
	lc.RequireStart().RequireStop()
}
