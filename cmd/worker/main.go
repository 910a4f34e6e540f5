package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/case-intake/internal/bootstrap"
	"github.com/kirillkom/case-intake/internal/config"
	"github.com/kirillkom/case-intake/internal/core/domain"
	"github.com/kirillkom/case-intake/internal/core/ports"
	"github.com/kirillkom/case-intake/internal/observability/logging"
	"github.com/kirillkom/case-intake/internal/observability/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_error", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.New(os.Stdout, "worker", cfg.LogLevel, cfg.LogFormat))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_error", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("worker_metrics_listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeObjectFinalized(ctx, func(handlerCtx context.Context, event ports.ObjectFinalized) error {
		ingestCtx, cancel := context.WithTimeout(handlerCtx, cfg.IngestTimeout)
		defer cancel()

		workerMetrics.StartDocument()
		start := time.Now()
		err := app.IngestUC.IngestObject(ingestCtx, event)
		workerMetrics.FinishDocument("worker", time.Since(start), err)
		if domain.IsKind(err, domain.ErrInvalidInput) {
			// Objects outside {processId}/{fileName} can never be ingested.
			slog.Warn("object_event_skipped", "bucket", event.Bucket, "name", event.Name, "error", err)
			return nil
		}
		return err
	})
	if err != nil {
		slog.Error("worker_subscribe_error", "error", err)
		os.Exit(1)
	}
}
