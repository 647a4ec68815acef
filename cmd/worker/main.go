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
	"scanpipeline/internal/observability"
	"scanpipeline/internal/queue"
	"scanpipeline/internal/runner"
	"scanpipeline/internal/worker"
)

func main() {
	// Re-exec dispatch: when invoked as `<binary> __scanrunner__` this
	// process is a Scan Runner child, not the Worker Service itself.
	if len(os.Args) > 1 && os.Args[1] == runner.ReexecArg {
		os.Exit(runner.Main())
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config:", err)
	}

	logger := observability.GetLoggerFromEnv("worker", cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting scan worker service", zap.String("log_level", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOpenTelemetry("scan-worker", logger)
	if err != nil {
		logger.Fatal("failed to set up opentelemetry", zap.Error(err))
	}
	defer shutdownOTel()

	metrics, err := observability.NewMetrics("scan-worker")
	if err != nil {
		logger.Fatal("failed to register metrics", zap.Error(err))
	}

	q, err := queue.NewNATSQueue(cfg.QueueURL, logger)
	if err != nil {
		logger.Fatal("failed to connect to queue", zap.Error(err))
	}
	defer q.Close()

	svc := worker.New(logger, metrics, q, cfg)

	admSrv := &http.Server{Addr: cfg.AdminAddr, Handler: admin.NewRouter(func(ctx context.Context) error {
		return q.HealthCheck(ctx)
	}, cfg.MetricsEnabled, cfg.AdminUser, cfg.AdminPassword)}
	go func() {
		if err := admSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin server failed", zap.Error(err))
		}
	}()

	logger.Info("worker service ready, consuming sub-jobs")
	if err := svc.Run(ctx); err != nil {
		logger.Error("worker service stopped with error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownDrainTimeout)
	defer cancel()
	_ = admSrv.Shutdown(shutdownCtx)

	logger.Info("worker service shut down")
}
