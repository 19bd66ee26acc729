// Package rediscache хранит статусы оплаты заказов в Redis.
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

const (
	keyOrderStatus = "order_status:%s"

	// DefaultTTL используется, если TTL не задан.
	DefaultTTL = 30 * time.Second
	opTimeout  = 2 * time.Second
)

// NewClient создаёт клиента Redis с короткими таймаутами.
func NewClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  opTimeout,
		ReadTimeout:  opTimeout,
		WriteTimeout: opTimeout,
	})
}

// StatusCache реализует domain.OrderStatusCache поверх Redis.
type StatusCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewStatusCache создаёт кэш. ttl <= 0 заменяется на DefaultTTL.
func NewStatusCache(rdb redis.Cmdable, ttl time.Duration) *StatusCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &StatusCache{rdb: rdb, ttl: ttl}
}

// Get возвращает статус и признак попадания в кэш.
func (c *StatusCache) Get(ctx context.Context, orderID string) (domain.PaymentStatus, bool, error) {
	val, err := c.rdb.Get(ctx, statusKey(orderID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get order status: %w", err)
	}
	return domain.PaymentStatus(val), true, nil
}

func (c *StatusCache) Set(ctx context.Context, orderID string, status domain.PaymentStatus) error {
	if err := c.rdb.Set(ctx, statusKey(orderID), string(status), c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set order status: %w", err)
	}
	return nil
}

func (c *StatusCache) Invalidate(ctx context.Context, orderID string) error {
	if err := c.rdb.Del(ctx, statusKey(orderID)).Err(); err != nil {
		return fmt.Errorf("redis del order status: %w", err)
	}
	return nil
}

// Ping проверяет доступность Redis (для health checker).
func (c *StatusCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func statusKey(orderID string) string {
	return fmt.Sprintf(keyOrderStatus, orderID)
}

var _ domain.OrderStatusCache = (*StatusCache)(nil)
