// Command ingest runs one fetch cycle against every configured source and
// prints the cycle reports as JSON. Useful for cron-style deployments and
// for backfilling a fresh database without starting the server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/worldpulse/hazard-aqi-service/internal/config"
	"github.com/worldpulse/hazard-aqi-service/internal/ingest"
	"github.com/worldpulse/hazard-aqi-service/internal/observability"
	"github.com/worldpulse/hazard-aqi-service/internal/store"
)

func main() {
	var (
		disastersOnly = flag.Bool("disasters-only", false, "fetch only disaster sources")
		aqiOnly       = flag.Bool("aqi-only", false, "fetch only air-quality sources")
		timeout       = flag.Duration("timeout", 30*time.Minute, "overall cycle timeout")
		days          = flag.Int("days", 0, "lookback window in days (0 uses INGEST_LOOKBACK)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetricsForTesting() // one-shot run, nothing scrapes the registry

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	pool, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	disasterRepo := store.NewDisasterRepository(pool)
	aqiRepo := store.NewAQIRepository(pool)
	cityResolver := store.NewCachedCityResolver(store.NewCityRepository(pool), cfg.Ingest.CityCacheSize)

	upserter := ingest.NewUpserter(disasterRepo, aqiRepo, cityResolver, nil, logger, metrics)
	runner := ingest.NewRunner(
		ingest.BuildDisasterSources(cfg, logger),
		ingest.BuildAQISources(cfg, logger),
		upserter, cfg.Ingest.Lookback, logger, metrics,
	)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	lookback := time.Duration(*days) * 24 * time.Hour
	failed := false

	if !*aqiOnly {
		report, err := runner.RunDisasters(ctx, lookback)
		if err != nil {
			logger.Error("disaster cycle failed", "error", err)
			failed = true
		} else {
			enc.Encode(report) //nolint:errcheck
		}
	}
	if !*disastersOnly {
		report, err := runner.RunAQI(ctx, lookback)
		if err != nil {
			logger.Error("aqi cycle failed", "error", err)
			failed = true
		} else {
			enc.Encode(report) //nolint:errcheck
		}
	}

	if failed {
		os.Exit(1)
	}
}
