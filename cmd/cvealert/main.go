package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/daimoniac/cvealert/internal/advisory"
	"github.com/daimoniac/cvealert/internal/api"
	"github.com/daimoniac/cvealert/internal/config"
	"github.com/daimoniac/cvealert/internal/notify"
	"github.com/daimoniac/cvealert/internal/nvd"
	"github.com/daimoniac/cvealert/internal/observability"
	"github.com/daimoniac/cvealert/internal/policy"
	"github.com/daimoniac/cvealert/internal/statestore"
	"github.com/daimoniac/cvealert/internal/watcher"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, logCloser, err := observability.NewFileLogger(observability.LogOptions{
		Level:      cfg.Observability.LogLevel,
		Dir:        cfg.Observability.LogDir,
		MaxSizeMB:  cfg.Observability.LogMaxSizeMB,
		MaxBackups: cfg.Observability.LogMaxBackups,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logCloser.Close()

	logger.Info("starting cvealert",
		"vendors", cfg.Vendors,
		"poll_interval", cfg.Watcher.PollInterval.String(),
		"notifier", cfg.Notifier.Type,
		"state_dir", cfg.StateStore.Dir,
		"log_level", cfg.Observability.LogLevel)

	for _, name := range cfg.MissingCredentials() {
		logger.Warn("credential not set", "variable", name)
	}

	_ = observability.GetMetrics()
	logger.Debug("metrics initialized",
		"metrics_port", cfg.Observability.MetricsPort)

	healthChecker := observability.NewHealthChecker(logger)

	healthChecker.RegisterCritical(observability.ComponentConfig)
	healthChecker.RegisterCritical(observability.ComponentState)
	healthChecker.RegisterCritical(observability.ComponentWatcher)
	healthChecker.RegisterComponent(observability.ComponentNVD)
	healthChecker.RegisterComponent(observability.ComponentAdvisory)
	healthChecker.RegisterComponent(observability.ComponentNotifier)

	healthChecker.UpdateComponentHealth(observability.ComponentConfig, observability.StatusHealthy, "")

	obsServer := observability.NewServer(
		cfg.Observability.MetricsPort,
		cfg.Observability.HealthCheckPort,
		logger,
		healthChecker,
	)

	go func() {
		if err := obsServer.Start(ctx); err != nil {
			logger.Error("observability server error",
				"error", err.Error())
		}
	}()

	logger.Debug("initializing state store",
		"dir", cfg.StateStore.Dir)
	store, err := statestore.NewFileStore(cfg.StateStore.Dir, logger)
	if err != nil {
		healthChecker.UpdateComponentHealth(observability.ComponentState, observability.StatusUnhealthy, err.Error())
		return fmt.Errorf("failed to initialize state store: %w", err)
	}
	healthChecker.UpdateComponentHealth(observability.ComponentState, observability.StatusHealthy, "")
	seen := store.Load()

	logger.Debug("initializing filter",
		"max_age_days", cfg.Filter.MaxAgeDays)
	engine, err := policy.NewEngine(logger, policy.PolicyConfig{
		Expression: cfg.Filter.Expression,
		MaxAgeDays: cfg.Filter.MaxAgeDays,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize filter: %w", err)
	}
	logger.Debug("filter initialized", "expression", engine.Expression())

	feed, err := nvd.NewClient(cfg.Feed, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize CVE feed client: %w", err)
	}

	scraper, err := advisory.NewScraper(cfg.Advisory, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize advisory scraper: %w", err)
	}

	notifier, err := notify.New(cfg.Notifier, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize notifier: %w", err)
	}
	logger.Debug("notifier initialized", "channel", notifier.Channel())

	cveWatcher := watcher.NewWatcher(watcher.Dependencies{
		Feed:       feed,
		Advisories: scraper,
		Filter:     engine,
		Store:      store,
		Notifier:   notifier,
		Health:     healthChecker,
	}, seen, watcher.Config{
		Vendors:      cfg.Vendors,
		PollInterval: cfg.Watcher.PollInterval,
		MaxAgeDays:   cfg.Filter.MaxAgeDays,
	}, logger)

	go healthChecker.StartPeriodicChecks(ctx, time.Minute, map[string]observability.HealthCheckFunc{
		observability.ComponentState: store.HealthCheck,
	})

	var apiServer *api.APIServer
	if cfg.API.Enabled {
		logger.Debug("initializing API server",
			"port", cfg.API.Port,
			"read_only", cfg.API.ReadOnly)
		apiServer = api.NewAPIServer(&cfg.API, cfg.Vendors, seen, cveWatcher, healthChecker, logger)
	}

	var wg sync.WaitGroup
	errChan := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := cveWatcher.Start(ctx); err != nil && err != context.Canceled {
			logger.Error("watcher error",
				"error", err.Error())
			errChan <- fmt.Errorf("watcher error: %w", err)
		}
		logger.Debug("watcher stopped")
	}()

	if apiServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := apiServer.Start(ctx); err != nil && err != context.Canceled {
				logger.Error("API server error",
					"error", err.Error())
				errChan <- fmt.Errorf("API server error: %w", err)
			}
			logger.Debug("API server stopped")
		}()
	}

	logger.Info("all components started successfully")

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-errChan:
		logger.Error("component error, initiating shutdown",
			"error", err.Error())
		cancel()
	}

	logger.Info("shutting down gracefully")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("all components stopped gracefully")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout exceeded, forcing exit")
	}

	if err := obsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down observability server",
			"error", err.Error())
	}

	logger.Info("shutdown complete")
	return nil
}
