// Package ingest orchestrates fetch cycles: source adapters produce
// normalized batches, the upserter validates each record and writes it to the
// store on its natural key. One bad record never sinks a batch; only a store
// outage aborts a cycle.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/worldpulse/hazard-aqi-service/internal/domain"
	"github.com/worldpulse/hazard-aqi-service/internal/observability"
)

// DisasterWriter persists one normalized event, reporting whether the row was
// newly created.
type DisasterWriter interface {
	Upsert(ctx context.Context, ev domain.NormalizedEvent, fetchedAt time.Time) (bool, error)
}

// AQIWriter persists one air-quality observation with its resolved city.
type AQIWriter interface {
	Upsert(ctx context.Context, obs domain.AQIObservation, cityID *int64, fetchedAt time.Time) (bool, error)
}

// CityResolver attaches a reference city to an observation by name.
// A miss is (nil, nil).
type CityResolver interface {
	ByName(ctx context.Context, name string) (*domain.City, error)
}

// ChangePublisher emits a record-change notification after a successful
// upsert. Optional; a nil publisher disables the feed.
type ChangePublisher interface {
	PublishChange(ctx context.Context, change domain.Change) error
}

// Summary reports one source's batch outcome within a cycle.
type Summary struct {
	Source   string `json:"source"`
	Fetched  int    `json:"fetched"`
	Created  int    `json:"created"`
	Updated  int    `json:"updated"`
	Rejected int    `json:"rejected"`
	Dropped  int    `json:"dropped"`
}

// Upserter validates and persists normalized batches.
type Upserter struct {
	disasters DisasterWriter
	aqi       AQIWriter
	cities    CityResolver
	publisher ChangePublisher
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewUpserter creates the batch persistence engine. publisher may be nil.
func NewUpserter(disasters DisasterWriter, aqi AQIWriter, cities CityResolver, publisher ChangePublisher, logger *slog.Logger, metrics *observability.Metrics) *Upserter {
	return &Upserter{
		disasters: disasters,
		aqi:       aqi,
		cities:    cities,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
	}
}

// UpsertEvents persists one source's disaster batch. Validation failures and
// per-record persistence errors are counted and skipped; a store outage
// aborts immediately with the partial summary.
func (u *Upserter) UpsertEvents(ctx context.Context, sourceName string, events []domain.NormalizedEvent, dropped int) (Summary, error) {
	s := Summary{Source: sourceName, Fetched: len(events), Dropped: dropped}
	fetchedAt := domain.Now()

	for _, ev := range events {
		if err := ev.Validate(); err != nil {
			u.reject(sourceName, &s, "invalid event", err, ev.SourceID)
			continue
		}
		created, err := u.disasters.Upsert(ctx, ev, fetchedAt)
		if err != nil {
			if errors.Is(err, domain.ErrStoreUnavailable) {
				return s, err
			}
			u.reject(sourceName, &s, "upsert failed", err, ev.SourceID)
			continue
		}
		u.record(ctx, sourceName, &s, created, domain.Change{
			Entity:   domain.ChangeEntityDisaster,
			Action:   changeAction(created),
			Source:   ev.Source,
			SourceID: ev.SourceID,
			At:       fetchedAt,
		})
	}
	return s, nil
}

// UpsertObservations persists one source's air-quality batch, resolving each
// observation's city name against the reference table first. An unresolvable
// name stores the record with a null city id.
func (u *Upserter) UpsertObservations(ctx context.Context, sourceName string, observations []domain.AQIObservation, dropped int) (Summary, error) {
	s := Summary{Source: sourceName, Fetched: len(observations), Dropped: dropped}
	fetchedAt := domain.Now()

	for _, obs := range observations {
		if err := obs.Validate(); err != nil {
			u.reject(sourceName, &s, "invalid observation", err, obs.SourceID)
			continue
		}

		var cityID *int64
		if obs.CityName != "" {
			city, err := u.cities.ByName(ctx, obs.CityName)
			if err != nil {
				if errors.Is(err, domain.ErrStoreUnavailable) {
					return s, err
				}
				u.logger.Warn("city lookup failed, storing without city id",
					"source", sourceName, "city", obs.CityName, "error", err)
			} else if city != nil {
				cityID = &city.ID
			}
		}

		created, err := u.aqi.Upsert(ctx, obs, cityID, fetchedAt)
		if err != nil {
			if errors.Is(err, domain.ErrStoreUnavailable) {
				return s, err
			}
			u.reject(sourceName, &s, "upsert failed", err, obs.SourceID)
			continue
		}
		u.record(ctx, sourceName, &s, created, domain.Change{
			Entity:   domain.ChangeEntityAQI,
			Action:   changeAction(created),
			Source:   obs.Source,
			SourceID: obs.SourceID,
			At:       fetchedAt,
		})
	}
	return s, nil
}

func (u *Upserter) reject(sourceName string, s *Summary, msg string, err error, sourceID string) {
	s.Rejected++
	u.metrics.EventsRejected.WithLabelValues(sourceName).Inc()
	u.logger.Warn(msg+", skipping record", "source", sourceName, "source_id", sourceID, "error", err)
}

func (u *Upserter) record(ctx context.Context, sourceName string, s *Summary, created bool, change domain.Change) {
	if created {
		s.Created++
		u.metrics.EventsUpserted.WithLabelValues(sourceName, "created").Inc()
	} else {
		s.Updated++
		u.metrics.EventsUpserted.WithLabelValues(sourceName, "updated").Inc()
	}
	if u.publisher == nil {
		return
	}
	if err := u.publisher.PublishChange(ctx, change); err != nil {
		// The change feed is advisory; the store already has the record.
		u.logger.Warn("change publish failed", "source", sourceName,
			"source_id", change.SourceID, "error", err)
	}
}

func changeAction(created bool) domain.ChangeAction {
	if created {
		return domain.ChangeCreated
	}
	return domain.ChangeUpdated
}
