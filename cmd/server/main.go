package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/worldpulse/hazard-aqi-service/internal/adapter/http"
	"github.com/worldpulse/hazard-aqi-service/internal/adapter/stream"
	"github.com/worldpulse/hazard-aqi-service/internal/config"
	"github.com/worldpulse/hazard-aqi-service/internal/correlate"
	"github.com/worldpulse/hazard-aqi-service/internal/domain"
	"github.com/worldpulse/hazard-aqi-service/internal/ingest"
	"github.com/worldpulse/hazard-aqi-service/internal/observability"
	"github.com/worldpulse/hazard-aqi-service/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	disasterRepo := store.NewDisasterRepository(pool)
	aqiRepo := store.NewAQIRepository(pool)
	cityRepo := store.NewCityRepository(pool)
	cityResolver := store.NewCachedCityResolver(cityRepo, cfg.Ingest.CityCacheSize)

	// The change feed is feature-flagged via KAFKA_ENABLED.
	var publisher ingest.ChangePublisher
	var streamPub *stream.Publisher
	if cfg.Kafka.Enabled {
		streamPub = stream.NewPublisher(cfg, logger)
		publisher = streamPub
		logger.Info("change feed enabled", "topic", cfg.Kafka.Topic)
	} else {
		logger.Info("change feed disabled")
	}

	upserter := ingest.NewUpserter(disasterRepo, aqiRepo, cityResolver, publisher, logger, metrics)
	runner := ingest.NewRunner(
		ingest.BuildDisasterSources(cfg, logger),
		ingest.BuildAQISources(cfg, logger),
		upserter, cfg.Ingest.Lookback, logger, metrics,
	)
	engine := correlate.NewEngine(correlateDisasters{disasterRepo}, aqiRepo, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, runner, engine,
		disasterRepo, aqiRepo, cityRepo, cfg.Correlation, logger)

	scheduler := ingest.NewScheduler(runner, cfg.Ingest.DisasterInterval, cfg.Ingest.AQIInterval, logger)
	if err := scheduler.Start(cfg.Ingest.OnStart); err != nil {
		logger.Error("scheduler start failed", "error", err)
		os.Exit(1)
	}

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	scheduler.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if streamPub != nil {
		if err := streamPub.Close(); err != nil {
			logger.Error("change feed close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// correlateDisasters adapts the disaster repository's filter type to the
// correlation engine's query shape.
type correlateDisasters struct {
	repo *store.DisasterRepository
}

func (c correlateDisasters) List(ctx context.Context, q correlate.DisasterQuery) ([]domain.Disaster, error) {
	return c.repo.List(ctx, store.DisasterFilter{
		ID:       q.ID,
		Kind:     q.Kind,
		Severity: q.Severity,
		Since:    q.Since,
		Limit:    q.Limit,
	})
}
