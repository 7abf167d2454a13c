// Package source contains one adapter per external data provider. Every
// adapter normalizes its provider's payload into the common domain shape and
// absorbs provider failures: a record that cannot be resolved is dropped and
// counted, and a provider that cannot be reached contributes zero records for
// the cycle without affecting other sources.
package source

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/worldpulse/hazard-aqi-service/internal/domain"
)

// Batch is the output of one disaster-source fetch: the records that
// normalized cleanly plus a count of the upstream records dropped for missing
// coordinates, missing provider keys, or unparsable rows.
type Batch struct {
	Events  []domain.NormalizedEvent
	Dropped int
}

// AQIBatch is the air-quality equivalent of Batch.
type AQIBatch struct {
	Observations []domain.AQIObservation
	Dropped      int
}

// DisasterSource fetches disaster events for a time window. Implementations
// differ in capability: some honor the window (USGS), some only expose a
// latest-events feed (GDACS, EONET), some fan out over a spatial tile grid
// (FIRMS). All of them satisfy the same output contract.
type DisasterSource interface {
	Name() string
	Fetch(ctx context.Context, window domain.TimeRange) (Batch, error)
}

// AQISource fetches air-quality observations.
type AQISource interface {
	Name() string
	Fetch(ctx context.Context, window domain.TimeRange) (AQIBatch, error)
}

// parseFloatPtr parses s as a float64, returning nil for empty or
// non-numeric input such as "UNK". Numeric sentinels like "-999" parse as
// real values and pass through unchanged.
func parseFloatPtr(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// parseTimePtr parses s with the given layout, returning nil on failure so
// records with broken timestamps stay storable but drop out of correlation.
func parseTimePtr(layout, s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
