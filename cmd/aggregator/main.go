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
	"scanpipeline/internal/aggregate"
	"scanpipeline/internal/config"
	"scanpipeline/internal/observability"
	"scanpipeline/internal/queue"
	"scanpipeline/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config:", err)
	}

	logger := observability.GetLoggerFromEnv("aggregator", cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting scan status aggregator", zap.String("log_level", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOpenTelemetry("scan-aggregator", logger)
	if err != nil {
		logger.Fatal("failed to set up opentelemetry", zap.Error(err))
	}
	defer shutdownOTel()

	metrics, err := observability.NewMetrics("scan-aggregator")
	if err != nil {
		logger.Fatal("failed to register metrics", zap.Error(err))
	}

	db, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	jobs := store.NewJobStore(db)
	aggs := store.NewAggregateStore(db)

	q, err := queue.NewNATSQueue(cfg.QueueURL, logger)
	if err != nil {
		logger.Fatal("failed to connect to queue", zap.Error(err))
	}
	defer q.Close()

	if err := metrics.RegisterQueueDepth("scan-aggregator", func(ctx context.Context) (int64, error) {
		depth, err := q.GetMessagesCount("scan.jobs")
		return int64(depth), err
	}); err != nil {
		logger.Fatal("failed to register queue depth gauge", zap.Error(err))
	}

	svc := aggregate.New(logger, jobs, aggs, q, cfg)

	admSrv := &http.Server{Addr: cfg.AdminAddr, Handler: admin.NewRouter(func(ctx context.Context) error {
		if err := db.HealthCheck(ctx); err != nil {
			return err
		}
		return q.HealthCheck(ctx)
	}, cfg.MetricsEnabled, cfg.AdminUser, cfg.AdminPassword)}
	go func() {
		if err := admSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin server failed", zap.Error(err))
		}
	}()

	logger.Info("status aggregator ready")
	if err := svc.Run(ctx); err != nil {
		logger.Error("status aggregator stopped with error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownDrainTimeout)
	defer cancel()
	_ = admSrv.Shutdown(shutdownCtx)

	logger.Info("status aggregator shut down")
}
