package redis

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/railzwaylabs/callsync/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

func TestNewClient_Disabled(t *testing.T) {
	client, err := NewClient(fxtest.NewLifecycle(t), config.Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestNewClient_Connects(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	lc := fxtest.NewLifecycle(t)
	cfg := config.Config{Redis: config.RedisConfig{Enabled: true, Addr: s.Addr()}}

	client, err := NewClient(lc, cfg, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, client)

	lc.RequireStart()
	lc.RequireStop()
}

func TestNewClient_Unreachable(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	addr := s.Addr()
	s.Close()

	cfg := config.Config{Redis: config.RedisConfig{Enabled: true, Addr: addr}}
	_, err = NewClient(fxtest.NewLifecycle(t), cfg, zap.NewNop())
	assert.Error(t, err)
}
