package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

func orderEvent(orderID, eventType string) domain.OutboxMessage {
	return domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   orderID,
		EventType:     eventType,
		Payload:       []byte(`{"order_id":"` + orderID + `"}`),
	}
}

func TestOutboxRepository_PostgresLifecycle(t *testing.T) {
	repo := NewOutboxRepository(openTestStore(t))
	ctx := context.Background()

	created, err := repo.Enqueue(ctx, orderEvent("order-1", "OrderCreated"))
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	fixed := orderEvent("order-2", "OrderDeleted")
	fixed.ID = "outbox-fixed-id"
	deleted, err := repo.Enqueue(ctx, fixed)
	require.NoError(t, err)
	require.Equal(t, "outbox-fixed-id", deleted.ID)

	pending, err := repo.PullPending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, created.ID, pending[0].ID)
	require.JSONEq(t, `{"order_id":"order-1"}`, string(pending[0].Payload))

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, stats.PendingCount)
	require.Zero(t, stats.FailedCount)
	require.False(t, stats.OldestPendingAt.IsZero())

	require.NoError(t, repo.MarkSent(ctx, created.ID))
	require.NoError(t, repo.MarkFailed(ctx, deleted.ID))

	pending, err = repo.PullPending(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, pending)

	stats, err = repo.Stats(ctx)
	require.NoError(t, err)
	require.Zero(t, stats.PendingCount)
	require.Equal(t, 1, stats.FailedCount)
	require.True(t, stats.OldestPendingAt.IsZero())
}

func TestOutboxRepository_PostgresUnknownMessage(t *testing.T) {
	repo := NewOutboxRepository(openTestStore(t))
	ctx := context.Background()

	require.ErrorIs(t, repo.MarkSent(ctx, "missing-outbox"), domain.ErrOutboxPublish)
	require.ErrorIs(t, repo.MarkFailed(ctx, "missing-outbox"), domain.ErrOutboxPublish)
}

func TestOutboxRepository_PostgresOldestPendingMovesForward(t *testing.T) {
	repo := NewOutboxRepository(openTestStore(t))
	ctx := context.Background()

	first, err := repo.Enqueue(ctx, orderEvent("order-old", "OrderCreated"))
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = repo.Enqueue(ctx, orderEvent("order-new", "OrderCreated"))
	require.NoError(t, err)

	before, err := repo.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, before.PendingCount)

	require.NoError(t, repo.MarkSent(ctx, first.ID))

	after, err := repo.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, after.PendingCount)
	require.True(t, after.OldestPendingAt.After(before.OldestPendingAt))
}

func TestOutboxRepository_PostgresSessionWriteRollsBack(t *testing.T) {
	store := openTestStore(t)
	repo := NewOutboxRepository(store)
	ctx := context.Background()

	sess, err := store.Begin(ctx)
	require.NoError(t, err)
	_, err = sess.Outbox().Enqueue(ctx, orderEvent("order-rb", "OrderCreated"))
	require.NoError(t, err)
	require.NoError(t, sess.Rollback(ctx))

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	require.Zero(t, stats.PendingCount)
}
