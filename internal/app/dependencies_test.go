package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/backoffice/internal/health"
)

func TestInitStatusCache_Disabled(t *testing.T) {
	cache, client := initStatusCache(context.Background(), DefaultConfig(), log.WithField("test", "redis"))
	assert.Nil(t, cache)
	assert.Nil(t, client)
}

func TestInitStatusCache_UnreachableRedis(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RedisAddr = "127.0.0.1:1"

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	cache, client := initStatusCache(ctx, cfg, log.WithField("test", "redis"))
	assert.Nil(t, cache, "unreachable redis disables the cache")
	assert.Nil(t, client)
	closeRedis(client, log.WithField("test", "redis"))
}

func TestRegisterCheckers_OutboxBacklog(t *testing.T) {
	ctx := context.Background()
	deps, err := initRuntimeDependencies(ctx, DefaultConfig(), log.WithField("test", "checkers"))
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.OutboxMaxPending = 1

	h := healthcheck.NewHandler("test")
	registerCheckers(h, cfg, deps, nil)

	read := func() healthcheck.Response {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var resp healthcheck.Response
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		return resp
	}

	resp := read()
	assert.Equal(t, healthcheck.StatusHealthy, resp.Status)
	assert.Contains(t, resp.Checks, "outbox")
	assert.NotContains(t, resp.Checks, "storage", "memory storage has no ping check")
	assert.NotContains(t, resp.Checks, "redis")

	for _, id := range []string{"o-1", "o-2"} {
		_, err := deps.outboxRepo.Enqueue(ctx, domain.OutboxMessage{
			AggregateType: domain.AggregateOrder,
			AggregateID:   id,
			EventType:     domain.EventOrderCreated,
			Payload:       []byte(`{}`),
		})
		require.NoError(t, err)
	}

	resp = read()
	assert.Equal(t, healthcheck.StatusDegraded, resp.Status)
	assert.Equal(t, healthcheck.StatusDegraded, resp.Checks["outbox"].Status)
}

func TestRuntimeDependencies_CloseWithoutStore(_ *testing.T) {
	runtimeDependencies{}.close(log.WithField("test", "close"))
}
