package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска приложения. Структура сравнима по значению,
// поэтому списки (например, брокеры Kafka) хранятся строкой через запятую.
type Config struct {
	HTTPAddr    string
	GRPCAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	// RedisAddr пустой — кэш статуса выключен.
	RedisAddr      string
	StatusCacheTTL time.Duration

	// KafkaBrokers пустой — outbox не публикуется.
	KafkaBrokers       string
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration
	// OutboxMaxPending — порог backlog, после которого /healthz отдаёт degraded.
	OutboxMaxPending int

	IdempotencyTTL              time.Duration
	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int

	RequestTimeout time.Duration
}

// DefaultConfig возвращает настройки для локального запуска на in-memory хранилище.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:                    ":8080",
		GRPCAddr:                    ":9090",
		MetricsAddr:                 ":9091",
		StorageDriver:               StorageDriverMemory,
		PostgresAutoMigrate:         true,
		StatusCacheTTL:              30 * time.Second,
		OutboxPollInterval:          time.Second,
		OutboxBatchSize:             100,
		OutboxMaxAttempts:           3,
		OutboxRetryDelay:            200 * time.Millisecond,
		OutboxMaxPending:            1000,
		IdempotencyTTL:              24 * time.Hour,
		IdempotencyCleanupInterval:  time.Minute,
		IdempotencyCleanupBatchSize: 500,
		RequestTimeout:              15 * time.Second,
	}
}

// LoadConfigFromEnv накладывает переменные BACKOFFICE_* на DefaultConfig.
// Некорректное значение переменной — ошибка, а не тихий откат к умолчанию.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("BACKOFFICE_HTTP_ADDR", &cfg.HTTPAddr)
	str("BACKOFFICE_GRPC_ADDR", &cfg.GRPCAddr)
	str("BACKOFFICE_METRICS_ADDR", &cfg.MetricsAddr)
	str("BACKOFFICE_STORAGE_DRIVER", &cfg.StorageDriver)
	str("BACKOFFICE_POSTGRES_DSN", &cfg.PostgresDSN)
	flag("BACKOFFICE_POSTGRES_AUTO_MIGRATE", &cfg.PostgresAutoMigrate)
	str("BACKOFFICE_REDIS_ADDR", &cfg.RedisAddr)
	dur("BACKOFFICE_STATUS_CACHE_TTL", &cfg.StatusCacheTTL)
	str("BACKOFFICE_KAFKA_BROKERS", &cfg.KafkaBrokers)
	dur("BACKOFFICE_OUTBOX_POLL_INTERVAL", &cfg.OutboxPollInterval)
	num("BACKOFFICE_OUTBOX_BATCH_SIZE", &cfg.OutboxBatchSize)
	num("BACKOFFICE_OUTBOX_MAX_ATTEMPTS", &cfg.OutboxMaxAttempts)
	dur("BACKOFFICE_OUTBOX_RETRY_DELAY", &cfg.OutboxRetryDelay)
	num("BACKOFFICE_OUTBOX_MAX_PENDING", &cfg.OutboxMaxPending)
	dur("BACKOFFICE_IDEMPOTENCY_TTL", &cfg.IdempotencyTTL)
	dur("BACKOFFICE_IDEMPOTENCY_CLEANUP_INTERVAL", &cfg.IdempotencyCleanupInterval)
	num("BACKOFFICE_IDEMPOTENCY_CLEANUP_BATCH_SIZE", &cfg.IdempotencyCleanupBatchSize)
	dur("BACKOFFICE_REQUEST_TIMEOUT", &cfg.RequestTimeout)

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	cfg.StorageDriver = strings.ToLower(cfg.StorageDriver)
	return cfg, cfg.Validate()
}

// Validate проверяет согласованность настроек перед запуском.
func (c Config) Validate() error {
	var errs []error

	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errors.New("postgres dsn is required for postgres storage driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q", c.StorageDriver))
	}
	if c.HTTPAddr == "" || c.GRPCAddr == "" || c.MetricsAddr == "" {
		errs = append(errs, errors.New("http, grpc and metrics addresses are required"))
	}
	if c.OutboxBatchSize <= 0 || c.OutboxMaxAttempts <= 0 || c.OutboxPollInterval <= 0 {
		errs = append(errs, errors.New("outbox poll interval, batch size and max attempts must be positive"))
	}
	if c.OutboxRetryDelay < 0 {
		errs = append(errs, errors.New("outbox retry delay must not be negative"))
	}
	if c.IdempotencyCleanupInterval <= 0 || c.IdempotencyCleanupBatchSize <= 0 {
		errs = append(errs, errors.New("idempotency cleanup interval and batch size must be positive"))
	}
	if c.RequestTimeout < 0 || c.StatusCacheTTL < 0 || c.IdempotencyTTL < 0 {
		errs = append(errs, errors.New("timeouts and ttls must not be negative"))
	}

	return errors.Join(errs...)
}

// kafkaBrokerList разбирает список брокеров, пропуская пустые элементы.
func (c Config) kafkaBrokerList() []string {
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}
