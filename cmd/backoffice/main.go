// Команда backoffice запускает HTTP API заказов и склада.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/backoffice/internal/app"
	"github.com/vladislavdragonenkov/backoffice/internal/version"
)

const envLogLevel = "BACKOFFICE_LOG_LEVEL"

// setupLogger настраивает формат и уровень логирования; неизвестный уровень заменяется на info.
func setupLogger(level string) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	lvl, err := log.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}

func main() {
	// .env необязателен: в контейнере переменные приходят из окружения.
	_ = godotenv.Load()
	setupLogger(os.Getenv(envLogLevel))

	cfg, err := app.LoadConfigFromEnv()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(version.Fields()).WithFields(log.Fields{
		"http_addr":    cfg.HTTPAddr,
		"grpc_addr":    cfg.GRPCAddr,
		"metrics_addr": cfg.MetricsAddr,
		"storage":      cfg.StorageDriver,
	}).Info("запускаем backoffice")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		stop()
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("backoffice остановлен")
}
