package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tracker/internal/backend"
	"tracker/internal/cli"
	"tracker/internal/config"
	"tracker/internal/services"
	"tracker/internal/sheets"
	gsheet "tracker/internal/sheets/google"
	mem "tracker/internal/sheets/memory"
	"tracker/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting report-worker")

	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateExport)
	logger = cli.SetupLogger(cfg.LogLevel)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	// The server owns the snapshot cache; a worker-side copy would never
	// see its invalidations.
	backendCfg.Cache = backend.NoCache
	if backendCfg.Type == backend.MemoryBackend {
		logger.Warn("Memory backend is private to this process, reports will be empty")
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	b, err := backend.NewFactory(logger.Logger).CreateBackend(startCtx, backendCfg)
	cancelStart()
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err)
		os.Exit(1)
	}
	if b.Events == nil {
		logger.Error("AMQP client unavailable, nothing to consume", "url_set", cfg.AMQPURL != "")
		_ = b.Close()
		os.Exit(1)
	}

	var writer sheets.ReportWriter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(context.Background(), gsheet.Config{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			ReportSheet:        cfg.GoogleReportSheet,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			_ = b.Close()
			os.Exit(1)
		}
		writer = client
		logger.Info("Google Sheets export enabled",
			"spreadsheet_id", cfg.GoogleSpreadsheetID,
			"sheet", cfg.GoogleReportSheet)
	} else {
		writer = mem.New()
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, reports kept in memory")
	}

	tracker := services.NewTrackerService(b.Store, services.WithLocation(cfg.Location()))
	users := services.NewUserService(b.Store)
	reportWorker := worker.NewReportWorker(tracker, writer)

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	metricsSrv := &http.Server{Addr: ":" + cfg.Port, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logger.Error("Metrics server shutdown error", "error", err)
		}
		if err := b.Close(); err != nil {
			logger.Error("Backend close error", "error", err)
		}
	})

	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server error", "error", err, "port", cfg.Port)
		}
	}()

	today := tracker.Today()
	logger.Info("Performing startup export", "year", today.Year, "month", today.Month)
	if err := reportWorker.StartupExport(ctx, users, today.Year, today.Month); err != nil {
		logger.Error("Startup export failed", "error", err)
	}

	go func() {
		if err := b.Events.ConsumeMonthChanged(ctx, reportWorker.HandleMonthChanged); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", "error", err)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Report worker stopped")
}
