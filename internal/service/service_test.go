package service

import (
	"testing"

	"visitor-counter/pkg/logger"
	"visitor-counter/pkg/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// setupTestStore starts a miniredis instance and returns a wired client
func setupTestStore(t *testing.T) (*miniredis.Miniredis, *redis.Client, *logger.Logger) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := redis.NewClient("redis://"+mr.Addr(), "test", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return mr, client, &logger.Logger{Logger: zap.NewNop()}
}
