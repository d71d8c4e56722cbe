package main

import (
	"context"
	"errors"
	"time"

	"shiire/internal/amqp"
	"shiire/internal/backend"
	"shiire/internal/cli"
	"shiire/internal/config"
	"shiire/internal/log"
	"shiire/internal/services"
	"shiire/internal/sheets"
	gsheet "shiire/internal/sheets/google"
	memsheet "shiire/internal/sheets/memory"
	"shiire/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(log.New(log.DefaultConfig()))
	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentWorker)

	logger.Info("Starting shiire-worker", log.FieldOperation, log.OpStartup)
	if cfg.AMQPURL == "" {
		cli.Fatal(logger, "Worker needs a message broker", errors.New("AMQP_URL is empty"))
	}

	// the worker only reads: no publisher and no report cache
	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	backendConfig.AMQPURL = ""
	backendConfig.Cache.Type = backend.MemoryCache
	be, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendConfig)
	if err != nil {
		cli.Fatal(logger, "Failed to create backend", err, "backend", cfg.DataBackend)
	}

	mirror, err := newMirror(cfg, logger)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize sheet mirror", err)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize AMQP client", err)
	}

	mirrorWorker := worker.NewMirrorWorker(
		services.NewAnalysisService(be.Repository, cfg.DefaultPlatformFeeRate),
		be.Repository,
		mirror,
	)
	reconciler := worker.NewReconciler(mirrorWorker, cfg.ReconcileInterval)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := reconciler.Stop(ctx); err != nil {
			logger.Warn("Reconciler stop", log.FieldError, err)
		}
		if err := client.Close(); err != nil {
			logger.Warn("AMQP close", log.FieldError, err)
		}
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	// catch up on anything missed while the worker was down
	synced, failed, err := mirrorWorker.ReconcileAll(ctx)
	if err != nil {
		logger.Error("Startup reconcile failed", log.FieldError, err)
	} else {
		logger.Info("Startup reconcile done", "synced", synced, "failed", failed)
	}

	if err := reconciler.Start(ctx); err != nil {
		cli.Fatal(logger, "Failed to start reconciler", err)
	}

	go func() {
		err := client.ConsumeSessionChanged(ctx, mirrorWorker.HandleSessionChanged)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption stopped", log.FieldError, err)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped", log.FieldOperation, log.OpShutdown)
}

// newMirror returns the Google Sheets mirror when a spreadsheet is
// configured and an in-process one otherwise.
func newMirror(cfg *config.Config, logger *log.Logger) (sheets.SessionMirror, error) {
	if !cfg.MirrorEnabled() {
		logger.Warn("GOOGLE_SPREADSHEET_ID not set, mirroring to memory only")
		return memsheet.New(), nil
	}
	client, err := gsheet.New(context.Background(), gsheet.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Google Sheets mirror initialized",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleSheetName)
	return client, nil
}
