// Package app собирает хранилище, сервисы и серверы бэк-офиса и управляет их жизненным циклом.
package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	healthcheck "github.com/vladislavdragonenkov/backoffice/internal/health"
	"github.com/vladislavdragonenkov/backoffice/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/backoffice/internal/metrics"
	"github.com/vladislavdragonenkov/backoffice/internal/service/catalog"
	"github.com/vladislavdragonenkov/backoffice/internal/service/httpapi"
	"github.com/vladislavdragonenkov/backoffice/internal/service/idempotency"
	"github.com/vladislavdragonenkov/backoffice/internal/service/order"
	"github.com/vladislavdragonenkov/backoffice/internal/service/outbox"
	rediscache "github.com/vladislavdragonenkov/backoffice/internal/storage/redis"
	"github.com/vladislavdragonenkov/backoffice/internal/version"
)

const shutdownTimeout = 5 * time.Second

// Run запускает HTTP API, gRPC health, сервер метрик и фоновые воркеры
// и блокируется до отмены ctx или падения одного из серверов.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")
	if err := cfg.Validate(); err != nil {
		return err
	}

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.close(logger)

	cache, redisClient := initStatusCache(ctx, cfg, logger)
	defer closeRedis(redisClient, logger)

	orderOpts := []order.Option{
		order.WithMetrics(metrics.NewOrderMetrics()),
		order.WithLogger(log.WithField("component", "order-service")),
	}
	if cache != nil {
		orderOpts = append(orderOpts, order.WithStatusCache(cache))
	}
	orderService := order.NewService(deps.sessions, deps.customers, deps.orders, deps.timelineRepo, orderOpts...)
	catalogService := catalog.NewService(deps.products, deps.customers, log.WithField("component", "catalog-service"))

	router := httpapi.NewRouter(httpapi.Config{
		Orders:         orderService,
		Catalog:        catalogService,
		Idempotency:    deps.idempotencyRepo,
		IdempotencyTTL: cfg.IdempotencyTTL,
		RequestTimeout: cfg.RequestTimeout,
		Metrics:        metrics.NewHTTPMetrics(prometheus.DefaultRegisterer),
		Logger:         log.WithField("component", "http-api"),
	})

	// Ошибка подключения уже записана в лог; без Kafka события пишутся в лог.
	kafkaProducer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	defer closeKafka(kafkaProducer, logger)

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	registerCheckers(healthHandler, cfg, deps, cache)

	workerCtx, stopWorkers := context.WithCancel(ctx)
	workersDone := startWorkers(workerCtx, cfg, deps, kafkaProducer)

	grpcServer, healthServer := newGRPCServer(logger)

	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		shutdownWorkers(stopWorkers, workersDone, logger)
		return err
	}
	httpLis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		_ = grpcLis.Close()
		shutdownWorkers(stopWorkers, workersDone, logger)
		return err
	}

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)
	apiSrv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Infof("gRPC сервер слушает %s", grpcLis.Addr())
		errCh <- grpcServer.Serve(grpcLis)
	}()
	go func() {
		logger.Infof("HTTP API слушает %s", httpLis.Addr())
		if err := apiSrv.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем серверы")
		runErr = ctx.Err()
	case err := <-errCh:
		if !errors.Is(err, grpc.ErrServerStopped) {
			runErr = err
		}
	}

	healthHandler.Drain()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	shutdownHTTP(apiSrv, logger)
	stopGRPC(grpcServer, logger)
	shutdownWorkers(stopWorkers, workersDone, logger)
	shutdownHTTP(metricsSrv, logger)
	return runErr
}

func registerCheckers(h *healthcheck.Handler, cfg Config, deps runtimeDependencies, cache *rediscache.StatusCache) {
	if deps.storageChecker != nil {
		h.RegisterChecker("storage", deps.storageChecker)
	}
	h.RegisterChecker("outbox", healthcheck.NewBacklogChecker("outbox", cfg.OutboxMaxPending,
		func(ctx context.Context) (int, error) {
			stats, err := deps.outboxRepo.Stats(ctx)
			return stats.PendingCount, err
		}))
	if cache != nil {
		h.RegisterChecker("redis", healthcheck.Optional(healthcheck.NewPingChecker("redis", 0, cache.Ping)))
	}
}

// startWorkers запускает outbox relay и очистку ключей идемпотентности.
// Канал закрывается, когда оба воркера вернулись.
func startWorkers(ctx context.Context, cfg Config, deps runtimeDependencies, producer *kafka.Producer) <-chan struct{} {
	publisher, dlq := outboxPublishers(producer, log.WithField("component", "outbox-worker"))
	relay := outbox.NewWorker(deps.outboxRepo, publisher,
		outbox.WithLogger(log.WithField("component", "outbox-worker")),
		outbox.WithMetrics(metrics.NewOutboxMetrics(prometheus.DefaultRegisterer)),
		outbox.WithDLQPublisher(dlq),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	)
	cleanup := idempotency.NewCleanupWorker(deps.idempotencyRepo,
		idempotency.WithLogger(log.WithField("component", "idempotency-cleanup")),
		idempotency.WithMetrics(metrics.NewCleanupMetrics(prometheus.DefaultRegisterer)),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		finished := make(chan struct{})
		go func() {
			defer close(finished)
			cleanup.Run(ctx)
		}()
		relay.Run(ctx)
		<-finished
	}()
	return done
}

func shutdownWorkers(cancel context.CancelFunc, done <-chan struct{}, logger *log.Entry) {
	if cancel != nil {
		cancel()
	}
	if done == nil {
		return
	}
	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		logger.Warn("background workers did not stop in time")
	}
}

// newGRPCServer собирает gRPC сервер со стандартным health сервисом и reflection.
// Health сразу отвечает SERVING.
func newGRPCServer(logger *log.Entry) (*grpc.Server, *health.Server) {
	grpcMetrics := grpcServerMetrics(logger)
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(srv, healthServer)
	reflection.Register(srv)
	grpcMetrics.InitializeMetrics(srv)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	return srv, healthServer
}

func grpcServerMetrics(logger *log.Entry) *promgrpc.ServerMetrics {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*promgrpc.ServerMetrics); ok {
				return existing
			}
		}
		logger.WithError(err).Warn("failed to register grpc metrics")
	}
	return grpcMetrics
}

func stopGRPC(srv *grpc.Server, logger *log.Entry) {
	stopped := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownTimeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		srv.Stop()
	}
}

func closeRedis(client *redis.Client, logger *log.Entry) {
	if client == nil {
		return
	}
	if err := client.Close(); err != nil {
		logger.WithError(err).Warn("failed to close redis client")
	}
}

// startMetricsServer запускает HTTP сервер с /metrics и пробами здоровья.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	srv := &http.Server{Addr: addr, Handler: metricsMux(healthHandler), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

func metricsMux(healthHandler *healthcheck.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	return mux
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
