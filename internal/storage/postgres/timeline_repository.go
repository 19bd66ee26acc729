package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

const (
	appendTimelineSQL = `INSERT INTO timeline_events (order_id, type, reason, occurred) VALUES ($1, $2, $3, $4)`
	listTimelineSQL   = `SELECT order_id, type, reason, occurred FROM timeline_events WHERE order_id = $1 ORDER BY occurred, id`
)

// timelineRepository ведёт журнал заказа. Внутри сессии пишет в её транзакцию.
type timelineRepository struct {
	q queryer
}

// NewTimelineRepository создаёт PostgreSQL-реализацию TimelineRepository.
func NewTimelineRepository(store *Store) domain.TimelineRepository {
	return &timelineRepository{q: store.DB()}
}

func (r *timelineRepository) Append(ctx context.Context, event domain.TimelineEvent) error {
	orderID := strings.TrimSpace(event.OrderID)
	if orderID == "" {
		return domain.ErrOrderIDRequired
	}
	occurred := event.Occurred
	if occurred.IsZero() {
		occurred = time.Now()
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if _, err := r.q.ExecContext(ctx, appendTimelineSQL, orderID, event.Type, event.Reason, occurred.UTC()); err != nil {
		return domain.PersistenceError("append timeline event "+event.Type, err)
	}
	return nil
}

func (r *timelineRepository) List(ctx context.Context, orderID string) ([]domain.TimelineEvent, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := r.q.QueryContext(ctx, listTimelineSQL, strings.TrimSpace(orderID))
	if err != nil {
		return nil, fmt.Errorf("list timeline of %s: %w", orderID, err)
	}
	defer rows.Close()

	var journal []domain.TimelineEvent
	for rows.Next() {
		var ev domain.TimelineEvent
		if err := rows.Scan(&ev.OrderID, &ev.Type, &ev.Reason, &ev.Occurred); err != nil {
			return nil, fmt.Errorf("scan timeline event: %w", err)
		}
		ev.Occurred = ev.Occurred.UTC()
		journal = append(journal, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timeline events: %w", err)
	}
	return journal, nil
}

var _ domain.TimelineRepository = (*timelineRepository)(nil)
