package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/backoffice/internal/health"
	"github.com/vladislavdragonenkov/backoffice/internal/storage/memory"
	"github.com/vladislavdragonenkov/backoffice/internal/storage/postgres"
	rediscache "github.com/vladislavdragonenkov/backoffice/internal/storage/redis"
)

// runtimeDependencies — хранилище, выбранное по StorageDriver.
type runtimeDependencies struct {
	sessions        domain.SessionFactory
	products        domain.ProductRepository
	customers       domain.CustomerRepository
	orders          domain.OrderRepository
	outboxRepo      domain.OutboxRepository
	timelineRepo    domain.TimelineRepository
	idempotencyRepo domain.IdempotencyRepository
	// storageChecker — nil для in-memory хранилища.
	storageChecker healthcheck.Checker
	closeFn        func() error
}

func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (runtimeDependencies, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.StorageDriver)) {
	case StorageDriverMemory:
		store := memory.NewStore()
		logger.Info("using in-memory storage")
		return runtimeDependencies{
			sessions:        store,
			products:        store.Products(),
			customers:       store.Customers(),
			orders:          store.Orders(),
			outboxRepo:      store.Outbox(),
			timelineRepo:    store.Timeline(),
			idempotencyRepo: memory.NewIdempotencyRepository(),
		}, nil

	case StorageDriverPostgres:
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return runtimeDependencies{}, errors.New("postgres dsn is required for postgres storage driver")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return runtimeDependencies{}, err
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return runtimeDependencies{}, fmt.Errorf("apply migrations: %w", err)
			}
			logger.Info("postgres migrations applied")
		}
		logger.Info("using postgres storage")
		return runtimeDependencies{
			sessions:        store,
			products:        postgres.NewProductRepository(store),
			customers:       postgres.NewCustomerRepository(store),
			orders:          postgres.NewOrderRepository(store),
			outboxRepo:      postgres.NewOutboxRepository(store),
			timelineRepo:    postgres.NewTimelineRepository(store),
			idempotencyRepo: postgres.NewIdempotencyRepository(store),
			storageChecker:  healthcheck.NewPingChecker("postgres", 0, store.Ping),
			closeFn:         store.Close,
		}, nil

	default:
		return runtimeDependencies{}, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

func (d runtimeDependencies) close(logger *log.Entry) {
	if d.closeFn == nil {
		return
	}
	if err := d.closeFn(); err != nil {
		logger.WithError(err).Warn("failed to close storage")
	}
}

// initStatusCache подключает Redis, если задан адрес. Недоступный на старте
// Redis не мешает запуску: сервис работает без кэша.
func initStatusCache(ctx context.Context, cfg Config, logger *log.Entry) (*rediscache.StatusCache, *redis.Client) {
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil, nil
	}
	client := rediscache.NewClient(cfg.RedisAddr)
	cache := rediscache.NewStatusCache(client, cfg.StatusCacheTTL)
	if err := cache.Ping(ctx); err != nil {
		logger.WithError(err).WithField("addr", cfg.RedisAddr).Warn("redis is unavailable, status cache disabled")
		_ = client.Close()
		return nil, nil
	}
	logger.WithField("addr", cfg.RedisAddr).Info("order status cache enabled")
	return cache, client
}
