package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"tracker/internal/auth"
	"tracker/internal/backend"
	"tracker/internal/cli"
	"tracker/internal/config"
	apphttp "tracker/internal/http"
	"tracker/internal/log"
	"tracker/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))

	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateServer)
	logger = cli.SetupLogger(cfg.LogLevel)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	b, err := backend.NewFactory(logger.Logger).CreateBackend(startCtx, backendCfg)
	cancelStart()
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	opts := []services.Option{services.WithLocation(cfg.Location())}
	if b.Cache != nil {
		opts = append(opts, services.WithCache(b.Cache))
	}
	if b.Events != nil {
		opts = append(opts, services.WithPublisher(b.Events))
	}
	tracker := services.NewTrackerService(b.Store, opts...)
	users := services.NewUserService(b.Store)

	srv := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		Tracker:            tracker,
		Users:              users,
		Tokens:             auth.NewTokens(cfg.SessionSecret, cfg.SessionTTL),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		SecureCookies:      cfg.SecureCookies,
		Logger:             logger,
	})
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if err := b.Close(); err != nil {
			logger.Error("Backend close error", "error", err)
		}
	})

	logger.Info("Starting tracker server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"cache", cfg.CacheBackend,
		"timezone", cfg.Timezone,
		"events", b.Events != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.LogError(ctx, "Server error", err, log.ErrorTypeInternal, log.OpStartup,
			log.NewFields().WithComponent(log.ComponentHTTP))
		_ = b.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
