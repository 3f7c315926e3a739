package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tokenpulse/tokenpulse/internal/cache"
	"github.com/tokenpulse/tokenpulse/internal/config"
	"github.com/tokenpulse/tokenpulse/internal/logger"
	"github.com/tokenpulse/tokenpulse/internal/storage"
	"github.com/tokenpulse/tokenpulse/internal/upstream"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	store, err := storage.New(cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	client := upstream.NewClient(cfg.Upstream.Timeout, upstream.ClientConfig{
		MaxRetries:     cfg.Upstream.MaxRetries,
		RetryDelayBase: cfg.Upstream.RetryDelayBase,
	})

	amc := cache.New(store, client, cache.Config{
		TokenAddress:              cfg.Upstream.TokenAddress,
		EndpointURL:               cfg.Upstream.EndpointURL,
		CacheKey:                  cfg.Cache.Key,
		Source:                    cfg.Upstream.Source,
		HighVolatilityInterval:    cfg.Cache.HighVolatilityInterval,
		MediumVolatilityInterval:  cfg.Cache.MediumVolatilityInterval,
		LowVolatilityInterval:     cfg.Cache.LowVolatilityInterval,
		StaleInterval:             cfg.Cache.StaleInterval,
		HighVolatilityThreshold:   cfg.Cache.HighVolatilityThreshold,
		MediumVolatilityThreshold: cfg.Cache.MediumVolatilityThreshold,
		LowVolatilityThreshold:    cfg.Cache.LowVolatilityThreshold,
		VolatilityWindow:          cfg.Cache.VolatilityWindow,
		MaxWindowSamples:          cfg.Cache.MaxWindowSamples,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	logger.Info("Starting metrics polling for %s (tiers: %v/%v/%v/%v, retention: %dd)",
		cfg.Upstream.TokenAddress,
		cfg.Cache.HighVolatilityInterval,
		cfg.Cache.MediumVolatilityInterval,
		cfg.Cache.LowVolatilityInterval,
		cfg.Cache.StaleInterval,
		cfg.Storage.RetentionDays,
	)

	sweepTicker := time.NewTicker(cfg.Storage.SweepInterval)
	defer sweepTicker.Stop()

	consecutiveFailures := 0

	runCycle := func() time.Duration {
		start := time.Now()
		result, err := amc.FetchTokenMetrics(ctx)
		if err != nil {
			consecutiveFailures++
			logger.Error("Metrics fetch failed (%d consecutive): %v", consecutiveFailures, err)
		} else {
			if consecutiveFailures > 0 {
				logger.Info("Metrics fetch recovered after %d failures", consecutiveFailures)
			}
			consecutiveFailures = 0
			logger.Debug("Fetched metrics in %v (fromCache=%t changed=%t price=%v)",
				time.Since(start), result.FromCache, result.Changed, result.Metrics.Price)
		}
		return amc.PollInterval(ctx, cfg.Upstream.TokenAddress)
	}

	// The timer is re-armed each cycle so the cadence follows volatility.
	timer := time.NewTimer(runCycle())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Service stopped")
			return

		case <-timer.C:
			interval := runCycle()
			logger.Debug("Next poll in %v", interval)
			timer.Reset(interval)

		case <-sweepTicker.C:
			if err := amc.CleanupOldData(ctx, cfg.Storage.RetentionDays); err != nil {
				logger.Warn("Retention sweep failed: %v", err)
			}
		}
	}
}
