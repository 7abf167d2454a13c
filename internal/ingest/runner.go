package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/worldpulse/hazard-aqi-service/internal/domain"
	"github.com/worldpulse/hazard-aqi-service/internal/observability"
	"github.com/worldpulse/hazard-aqi-service/internal/source"
)

// ErrCycleInFlight is returned when a fetch cycle is requested while another
// of the same kind is still running.
var ErrCycleInFlight = errors.New("fetch cycle already in flight")

// maxConcurrentSources bounds how many providers are polled at once.
const maxConcurrentSources = 4

// CycleReport describes one completed fetch cycle. Summaries holds one entry
// per source, including failed ones at zero counts; Failed repeats the names
// of the sources whose fetch errored.
type CycleReport struct {
	CycleID   string    `json:"cycle_id"`
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration"`
	Summaries []Summary `json:"summaries"`
	Failed    []string  `json:"failed_sources,omitempty"`
}

// Totals sums the per-source summaries.
func (r CycleReport) Totals() Summary {
	var t Summary
	for _, s := range r.Summaries {
		t.Fetched += s.Fetched
		t.Created += s.Created
		t.Updated += s.Updated
		t.Rejected += s.Rejected
		t.Dropped += s.Dropped
	}
	return t
}

// Runner fans fetch cycles out across source adapters. Sources run
// concurrently; one provider failing is logged and reported, never fatal.
// Only a store outage aborts a cycle.
type Runner struct {
	disasterSources []source.DisasterSource
	aqiSources      []source.AQISource
	upserter        *Upserter
	lookback        time.Duration
	logger          *slog.Logger
	metrics         *observability.Metrics

	disasterBusy atomic.Bool
	aqiBusy      atomic.Bool
	ready        atomic.Bool
}

// NewRunner creates the cycle orchestrator.
func NewRunner(disasterSources []source.DisasterSource, aqiSources []source.AQISource, upserter *Upserter, lookback time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Runner {
	return &Runner{
		disasterSources: disasterSources,
		aqiSources:      aqiSources,
		upserter:        upserter,
		lookback:        lookback,
		logger:          logger,
		metrics:         metrics,
	}
}

// CheckReadiness returns nil once at least one cycle has completed.
func (r *Runner) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		return errors.New("no fetch cycle has completed yet")
	}
	return nil
}

// RunDisasters fetches every disaster source concurrently and upserts the
// results. A non-positive lookback means the configured default. Overlapping
// calls are rejected with ErrCycleInFlight.
func (r *Runner) RunDisasters(ctx context.Context, lookback time.Duration) (CycleReport, error) {
	if !r.disasterBusy.CompareAndSwap(false, true) {
		return CycleReport{}, ErrCycleInFlight
	}
	defer r.disasterBusy.Store(false)

	return r.runCycle(ctx, "disasters", lookback, len(r.disasterSources), func(ctx context.Context, i int, window domain.TimeRange) (Summary, error) {
		src := r.disasterSources[i]
		start := time.Now()
		batch, err := src.Fetch(ctx, window)
		r.metrics.FetchDuration.WithLabelValues(src.Name()).Observe(time.Since(start).Seconds())
		if err != nil {
			return Summary{Source: src.Name()}, err
		}
		r.metrics.BatchSize.WithLabelValues(src.Name()).Observe(float64(len(batch.Events)))
		return r.upserter.UpsertEvents(ctx, src.Name(), batch.Events, batch.Dropped)
	})
}

// RunAQI fetches every air-quality source concurrently and upserts the
// results.
func (r *Runner) RunAQI(ctx context.Context, lookback time.Duration) (CycleReport, error) {
	if !r.aqiBusy.CompareAndSwap(false, true) {
		return CycleReport{}, ErrCycleInFlight
	}
	defer r.aqiBusy.Store(false)

	return r.runCycle(ctx, "aqi", lookback, len(r.aqiSources), func(ctx context.Context, i int, window domain.TimeRange) (Summary, error) {
		src := r.aqiSources[i]
		start := time.Now()
		batch, err := src.Fetch(ctx, window)
		r.metrics.FetchDuration.WithLabelValues(src.Name()).Observe(time.Since(start).Seconds())
		if err != nil {
			return Summary{Source: src.Name()}, err
		}
		r.metrics.BatchSize.WithLabelValues(src.Name()).Observe(float64(len(batch.Observations)))
		return r.upserter.UpsertObservations(ctx, src.Name(), batch.Observations, batch.Dropped)
	})
}

type fetchFn func(ctx context.Context, i int, window domain.TimeRange) (Summary, error)

func (r *Runner) runCycle(ctx context.Context, kind string, lookback time.Duration, n int, fetch fetchFn) (CycleReport, error) {
	if lookback <= 0 {
		lookback = r.lookback
	}
	report := CycleReport{
		CycleID:   uuid.NewString(),
		StartedAt: domain.Now(),
	}
	now := report.StartedAt
	window := domain.TimeRange{From: now.Add(-lookback), To: now}

	r.logger.Info("fetch cycle started", "kind", kind, "cycle_id", report.CycleID, "sources", n)
	r.metrics.IngestRunning.Set(1)
	defer r.metrics.IngestRunning.Set(0)

	var (
		summaries = make([]Summary, n)
		errs      = make([]error, n)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentSources)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			s, err := fetch(gctx, i, window)
			summaries[i] = s
			if err != nil {
				if errors.Is(err, domain.ErrStoreUnavailable) {
					// Sink the whole cycle; the other sources would hit the
					// same wall.
					return err
				}
				errs[i] = err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		report.Summaries = summaries
		return report, err
	}

	for i, err := range errs {
		summary := summaries[i]
		if err != nil {
			r.metrics.SourceFailures.WithLabelValues(summary.Source).Inc()
			r.logger.Error("source fetch failed", "kind", kind,
				"cycle_id", report.CycleID, "source", summary.Source, "error", err)
			report.Failed = append(report.Failed, summary.Source)
			// The zero-count summary still goes in, so every source shows
			// up in the report.
			report.Summaries = append(report.Summaries, summary)
			continue
		}
		report.Summaries = append(report.Summaries, summary)
		r.logger.Info("source cycle complete", "kind", kind,
			"cycle_id", report.CycleID, "source", summary.Source,
			"fetched", summary.Fetched, "created", summary.Created,
			"updated", summary.Updated, "rejected", summary.Rejected,
			"dropped", summary.Dropped)
	}

	report.Duration = domain.Now().Sub(now).String()
	r.metrics.IngestCycles.Inc()
	r.metrics.LastIngestEpoch.Set(float64(domain.Now().Unix()))
	r.ready.Store(true)

	totals := report.Totals()
	r.logger.Info("fetch cycle complete", "kind", kind, "cycle_id", report.CycleID,
		"created", totals.Created, "updated", totals.Updated,
		"rejected", totals.Rejected, "failed_sources", len(report.Failed))
	return report, nil
}
