package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewAppRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.JWTSecret = ""

	_, err := NewApp(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestNewAppWiresPool(t *testing.T) {
	cfg := testConfig()
	cfg.ScratchDir = t.TempDir()
	cfg.PoolSize = 2

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := NewApp(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, application.Server)

	warmCtx, stop := context.WithTimeout(ctx, 10*time.Second)
	defer stop()
	require.NoError(t, application.Pool.Warm(warmCtx))

	s := application.Sessions.Create()
	_, err = application.Sessions.Get(s.ID)
	require.NoError(t, err)

	application.Close()
}
