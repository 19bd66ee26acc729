package app

import (
	"context"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitRuntimeDependencies_MemoryWiresEveryPort(t *testing.T) {
	deps, err := initRuntimeDependencies(context.Background(), Config{StorageDriver: StorageDriverMemory},
		log.WithField("component", "test"))
	require.NoError(t, err)

	assert.NotNil(t, deps.sessions)
	assert.NotNil(t, deps.products)
	assert.NotNil(t, deps.customers)
	assert.NotNil(t, deps.orders)
	assert.NotNil(t, deps.outboxRepo)
	assert.NotNil(t, deps.timelineRepo)
	assert.NotNil(t, deps.idempotencyRepo)
	assert.Nil(t, deps.storageChecker, "memory storage has nothing to ping")
	assert.Nil(t, deps.closeFn)

	// Каталог и сессии смотрят в одно хранилище.
	sess, err := deps.sessions.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, sess.Rollback(context.Background()))
}

func TestInitRuntimeDependencies_Errors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantMsg string
	}{
		{name: "postgres without dsn", cfg: Config{StorageDriver: StorageDriverPostgres}, wantMsg: "postgres dsn is required"},
		{name: "postgres blank dsn", cfg: Config{StorageDriver: StorageDriverPostgres, PostgresDSN: "  "}, wantMsg: "postgres dsn is required"},
		{name: "unknown driver", cfg: Config{StorageDriver: "sqlite"}, wantMsg: `unsupported storage driver "sqlite"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := initRuntimeDependencies(context.Background(), tt.cfg, log.WithField("component", "test"))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestInitRuntimeDependencies_DriverIsCaseInsensitive(t *testing.T) {
	deps, err := initRuntimeDependencies(context.Background(), Config{StorageDriver: " Memory "},
		log.WithField("component", "test"))
	require.NoError(t, err)
	assert.NotNil(t, deps.orders)
}
