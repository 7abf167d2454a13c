package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ingestion and correlation paths.
type Metrics struct {
	EventsUpserted  *prometheus.CounterVec // labels: source, result={created,updated}
	EventsRejected  *prometheus.CounterVec // labels: source
	SourceFailures  *prometheus.CounterVec // labels: source
	IngestRunning   prometheus.Gauge
	IngestCycles    prometheus.Counter
	LastIngestEpoch prometheus.Gauge

	// Per-source fetch metrics.
	FetchDuration *prometheus.HistogramVec // labels: source
	BatchSize     *prometheus.HistogramVec // labels: source

	// Correlation query metrics.
	CorrelationRequests prometheus.Counter
	CorrelationDuration prometheus.Histogram
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		EventsUpserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazard_aqi",
			Name:      "events_upserted_total",
			Help:      "Records written to the store by source and result.",
		}, []string{"source", "result"}),
		EventsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazard_aqi",
			Name:      "events_rejected_total",
			Help:      "Records rejected by validation or persistence, by source.",
		}, []string{"source"}),
		SourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazard_aqi",
			Name:      "source_failures_total",
			Help:      "Whole-source fetch failures by source.",
		}, []string{"source"}),
		IngestRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hazard_aqi",
			Name:      "ingest_running",
			Help:      "1 while an ingest cycle is in flight, 0 otherwise.",
		}),
		IngestCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_aqi",
			Name:      "ingest_cycles_total",
			Help:      "Completed ingest cycles.",
		}),
		LastIngestEpoch: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hazard_aqi",
			Name:      "last_ingest_timestamp_seconds",
			Help:      "Unix time of the last completed ingest cycle.",
		}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hazard_aqi",
			Name:      "source_fetch_duration_seconds",
			Help:      "Duration of one source's fetch, per source.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"source"}),
		BatchSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hazard_aqi",
			Name:      "source_batch_size",
			Help:      "Records returned by one source fetch.",
			Buckets:   []float64{0, 1, 10, 50, 100, 250, 500, 1000, 2500},
		}, []string{"source"}),
		CorrelationRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_aqi",
			Name:      "correlation_requests_total",
			Help:      "Disaster-AQI correlation analyses served.",
		}),
		CorrelationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hazard_aqi",
			Name:      "correlation_duration_seconds",
			Help:      "Duration of a complete correlation analysis.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
	}

	prometheus.MustRegister(
		m.EventsUpserted,
		m.EventsRejected,
		m.SourceFailures,
		m.IngestRunning,
		m.IngestCycles,
		m.LastIngestEpoch,
		m.FetchDuration,
		m.BatchSize,
		m.CorrelationRequests,
		m.CorrelationDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		EventsUpserted:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "hazard_aqi", Name: "events_upserted_total"}, []string{"source", "result"}),
		EventsRejected:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "hazard_aqi", Name: "events_rejected_total"}, []string{"source"}),
		SourceFailures:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "hazard_aqi", Name: "source_failures_total"}, []string{"source"}),
		IngestRunning:       prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "hazard_aqi", Name: "ingest_running"}),
		IngestCycles:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "hazard_aqi", Name: "ingest_cycles_total"}),
		LastIngestEpoch:     prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "hazard_aqi", Name: "last_ingest_timestamp_seconds"}),
		FetchDuration:       prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "hazard_aqi", Name: "source_fetch_duration_seconds"}, []string{"source"}),
		BatchSize:           prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "hazard_aqi", Name: "source_batch_size"}, []string{"source"}),
		CorrelationRequests: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "hazard_aqi", Name: "correlation_requests_total"}),
		CorrelationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "hazard_aqi", Name: "correlation_duration_seconds"}),
	}
}
