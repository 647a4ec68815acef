package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"scanpipeline/internal/admin"
	"scanpipeline/internal/config"
	"scanpipeline/internal/lock"
	"scanpipeline/internal/observability"
	"scanpipeline/internal/queue"
	"scanpipeline/internal/store"
	"scanpipeline/internal/sync"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config:", err)
	}

	logger := observability.GetLoggerFromEnv("sync", cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting scan sync service", zap.String("log_level", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOpenTelemetry("scan-sync", logger)
	if err != nil {
		logger.Fatal("failed to set up opentelemetry", zap.Error(err))
	}
	defer shutdownOTel()

	metrics, err := observability.NewMetrics("scan-sync")
	if err != nil {
		logger.Fatal("failed to register metrics", zap.Error(err))
	}

	db, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.RunMigrations("migrations"); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	jobs := store.NewJobStore(db)

	redisClient, err := lock.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()

	q, err := queue.NewNATSQueue(cfg.QueueURL, logger)
	if err != nil {
		logger.Fatal("failed to connect to queue", zap.Error(err))
	}
	defer q.Close()

	svc := sync.New(logger, metrics, q, jobs, redisClient, cfg)

	admSrv := &http.Server{Addr: cfg.AdminAddr, Handler: admin.NewRouter(func(ctx context.Context) error {
		if err := db.HealthCheck(ctx); err != nil {
			return err
		}
		if err := redisClient.HealthCheck(ctx); err != nil {
			return err
		}
		return q.HealthCheck(ctx)
	}, cfg.MetricsEnabled, cfg.AdminUser, cfg.AdminPassword)}
	go func() {
		if err := admSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin server failed", zap.Error(err))
		}
	}()

	logger.Info("sync service ready, consuming results")
	if err := svc.Run(ctx); err != nil {
		logger.Error("sync service stopped with error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownDrainTimeout)
	defer cancel()
	_ = admSrv.Shutdown(shutdownCtx)

	logger.Info("sync service shut down")
}
