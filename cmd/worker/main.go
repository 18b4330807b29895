package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mklenk/belegwerk/internal/bootstrap"
	"github.com/mklenk/belegwerk/internal/config"
	"github.com/mklenk/belegwerk/internal/core/ports"
	"github.com/mklenk/belegwerk/internal/observability/logging"
	"github.com/mklenk/belegwerk/internal/observability/metrics"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := logging.NewJSONLogger("worker", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	extractionMetrics := metrics.NewExtractionMetrics("worker")
	app.SetExtractionObserver(extractionMetrics)
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: extractionMetrics.Handler(),
	}
	go func() {
		logger.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics_server_error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeExtractionRequested(ctx, func(handlerCtx context.Context, req ports.ExtractionRequest) error {
		runCtx, cancel := context.WithTimeout(handlerCtx, 10*time.Minute)
		defer cancel()

		extractionMetrics.StartRun()
		start := time.Now()
		runErr := app.ExtractUC.RunExtraction(runCtx, req.DocumentID, ports.ExtractionOptions{
			SkipClassification: req.SkipClassification,
		})
		extractionMetrics.FinishRun("worker", time.Since(start), runErr)
		if runErr != nil {
			return runErr
		}

		// Matching is best effort after a clean extraction; a failure
		// here must not fail the document.
		if _, err := app.PartnerUC.MatchPartner(runCtx, req.DocumentID); err != nil {
			logger.Warn("partner_match_failed", "document_id", req.DocumentID, "error", err)
		}
		if _, err := app.TransactionUC.MatchTransactions(runCtx, req.DocumentID); err != nil {
			logger.Warn("transaction_match_failed", "document_id", req.DocumentID, "error", err)
		}
		return nil
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
