package backends

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"tourdesk/pkg/config"
	"tourdesk/pkg/logger"
	"tourdesk/pkg/store/memstore"
)

func TestOpenMemoryBackend(t *testing.T) {
	s, err := Open(context.Background(), config.StoreConfig{Backend: "memory", Janitor: "@every 1h"}, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, ok := s.(*memstore.Store)
	require.True(t, ok, "memory backend should be *memstore.Store, got %T", s)
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Backend: "etcd"}, logger.Discard())
	require.ErrorContains(t, err, "unsupported store backend")
}

func TestOpenRedisRequiresAddr(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Backend: "redis"}, logger.Discard())
	require.Error(t, err)
}
