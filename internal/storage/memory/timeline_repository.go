package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

// orderTimelines хранит журнал событий каждого заказа отсортированным по времени.
type orderTimelines struct {
	mu      sync.RWMutex
	byOrder map[string][]domain.TimelineEvent
}

// NewTimelineRepository создаёт in-memory реализацию TimelineRepository.
func NewTimelineRepository() *orderTimelines {
	return &orderTimelines{byOrder: make(map[string][]domain.TimelineEvent)}
}

// Append вставляет событие после всех событий с тем же или более ранним временем.
func (t *orderTimelines) Append(_ context.Context, event domain.TimelineEvent) error {
	event.OrderID = strings.TrimSpace(event.OrderID)
	if event.OrderID == "" {
		return domain.ErrOrderIDRequired
	}
	if event.Occurred.IsZero() {
		event.Occurred = time.Now().UTC()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	journal := t.byOrder[event.OrderID]
	at := len(journal)
	for at > 0 && journal[at-1].Occurred.After(event.Occurred) {
		at--
	}
	t.byOrder[event.OrderID] = slices.Insert(journal, at, event)
	return nil
}

func (t *orderTimelines) List(_ context.Context, orderID string) ([]domain.TimelineEvent, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return slices.Clone(t.byOrder[strings.TrimSpace(orderID)]), nil
}

var _ domain.TimelineRepository = (*orderTimelines)(nil)
