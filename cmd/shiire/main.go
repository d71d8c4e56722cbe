package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"shiire/internal/backend"
	"shiire/internal/cache"
	"shiire/internal/cli"
	apphttp "shiire/internal/http"
	"shiire/internal/log"
	"shiire/internal/middleware/ratelimit"
	"shiire/internal/services"
	"shiire/internal/view"
)

const cacheSweepInterval = time.Minute

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(log.New(log.DefaultConfig()))
	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentApp)

	logger.Info("Starting shiire",
		log.FieldOperation, log.OpStartup,
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"cache", cfg.CacheBackend)

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	be, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendConfig)
	if err != nil {
		cli.Fatal(logger, "Failed to create backend", err, "backend", cfg.DataBackend)
	}

	notifier := services.NewNotifier(be.Publisher)
	views := view.NewRegistry(cfg.MaxViews, cfg.ViewTTL)
	reports := services.NewReportService(be.Repository, be.ReportCache, cfg.DefaultPlatformFeeRate, cfg.SlowMovingDays)
	notifier.OnChange(views.Invalidate)
	notifier.OnChange(reports.Invalidate)

	caches := cache.NewManager()
	caches.Register("views", views.Cleaner())
	for name, c := range be.Cleaners {
		caches.Register(name, c)
	}
	caches.StartCleanup(cacheSweepInterval)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Sessions: services.NewSessionService(be.Repository, notifier),
		Products: services.NewProductService(be.Repository, notifier),
		Analysis: services.NewAnalysisService(be.Repository, cfg.DefaultPlatformFeeRate),
		Reports:  reports,
		Exporter: services.NewExporter(cfg.ExportDelay),
		Views:    views,
		Store:    be.Repository,
	}, apphttp.Options{
		Logger:    logger,
		RateLimit: ratelimit.DefaultConfig(),
	})
	srv.ReadTimeout = 15 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		cli.Fatal(logger, "Server error", err, "port", cfg.Port)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully", log.FieldOperation, log.OpShutdown)
}
