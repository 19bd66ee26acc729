package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

const defaultIdempotencyTTL = 24 * time.Hour

// idempotencyKeys хранит ответы на запросы оформления заказов по ключу.
type idempotencyKeys struct {
	mu      sync.RWMutex
	records map[string]domain.IdempotencyRecord
	now     func() time.Time
}

// NewIdempotencyRepository создаёт in-memory реализацию IdempotencyRepository.
func NewIdempotencyRepository() domain.IdempotencyRepository {
	return &idempotencyKeys{
		records: make(map[string]domain.IdempotencyRecord),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func normalizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", domain.ErrIdempotencyKeyRequired
	}
	return key, nil
}

// CreateProcessing занимает ключ. Просроченную запись, которую ещё не удалил
// cleanup worker, можно занять заново.
func (k *idempotencyKeys) CreateProcessing(_ context.Context, key, requestHash string, ttlAt time.Time) (domain.IdempotencyRecord, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}
	requestHash = strings.TrimSpace(requestHash)
	if requestHash == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyRequestHashRequired
	}

	now := k.now()
	if ttlAt.IsZero() {
		ttlAt = now.Add(defaultIdempotencyTTL)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if held, ok := k.records[key]; ok && !held.Expired(now) {
		held = copyRecord(held)
		if held.RequestHash != requestHash {
			return held, domain.ErrIdempotencyHashMismatch
		}
		return held, domain.ErrIdempotencyKeyAlreadyExists
	}

	claimed := domain.IdempotencyRecord{
		Key:         key,
		RequestHash: requestHash,
		Status:      domain.IdempotencyStatusProcessing,
		TTLAt:       ttlAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	k.records[key] = claimed
	return copyRecord(claimed), nil
}

func (k *idempotencyKeys) Get(_ context.Context, key string) (domain.IdempotencyRecord, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}

	k.mu.RLock()
	defer k.mu.RUnlock()

	rec, ok := k.records[key]
	if !ok {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyNotFound
	}
	return copyRecord(rec), nil
}

func (k *idempotencyKeys) MarkDone(_ context.Context, key string, body []byte, httpStatus int) error {
	return k.finish(key, domain.IdempotencyStatusDone, body, httpStatus)
}

func (k *idempotencyKeys) MarkFailed(_ context.Context, key string, body []byte, httpStatus int) error {
	return k.finish(key, domain.IdempotencyStatusFailed, body, httpStatus)
}

func (k *idempotencyKeys) Release(_ context.Context, key string) error {
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}

	k.mu.Lock()
	delete(k.records, key)
	k.mu.Unlock()
	return nil
}

// DeleteExpired удаляет записи с TTL не позже before, начиная с самых старых.
// limit <= 0 снимает ограничение.
func (k *idempotencyKeys) DeleteExpired(_ context.Context, before time.Time, limit int) (int, error) {
	if before.IsZero() {
		before = k.now()
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	var expired []domain.IdempotencyRecord
	for _, rec := range k.records {
		if !rec.TTLAt.After(before) {
			expired = append(expired, rec)
		}
	}
	slices.SortFunc(expired, func(a, b domain.IdempotencyRecord) int {
		return a.TTLAt.Compare(b.TTLAt)
	})
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}

	for _, rec := range expired {
		delete(k.records, rec.Key)
	}
	return len(expired), nil
}

func (k *idempotencyKeys) finish(key string, status domain.IdempotencyStatus, body []byte, httpStatus int) error {
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	rec, ok := k.records[key]
	if !ok {
		return domain.ErrIdempotencyKeyNotFound
	}
	rec.Status = status
	rec.ResponseBody = slices.Clone(body)
	rec.HTTPStatus = httpStatus
	rec.UpdatedAt = k.now()
	k.records[key] = rec
	return nil
}

func copyRecord(rec domain.IdempotencyRecord) domain.IdempotencyRecord {
	rec.ResponseBody = slices.Clone(rec.ResponseBody)
	return rec
}

var _ domain.IdempotencyRepository = (*idempotencyKeys)(nil)
