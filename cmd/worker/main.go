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

	"github.com/kirillkom/fiscal-doc-analyzer/internal/bootstrap"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/config"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/observability/logging"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/observability/metrics"
)

const serviceName = "worker"

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, logger, workerMetrics.Registry())
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject, "job_timeout", cfg.WorkerJobTimeout.String())
	err = app.Queue.SubscribeJobSubmitted(ctx, func(handlerCtx context.Context, jobID string) error {
		if job, err := app.JobsUC.GetByID(handlerCtx, jobID); err == nil {
			workerMetrics.ObserveQueueLag(serviceName, time.Since(job.CreatedAt))
		}

		workerMetrics.StartJob()
		start := time.Now()
		processCtx, cancel := context.WithTimeout(handlerCtx, cfg.WorkerJobTimeout)
		defer cancel()

		err := app.ProcessUC.ProcessByID(processCtx, jobID)
		workerMetrics.FinishJob(serviceName, time.Since(start), err)
		return err
	})
	if err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}
