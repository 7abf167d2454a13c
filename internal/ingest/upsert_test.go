package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worldpulse/hazard-aqi-service/internal/domain"
	"github.com/worldpulse/hazard-aqi-service/internal/observability"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeDisasterWriter struct {
	existing map[string]bool // source|source_id already stored
	failOn   map[string]error
	upserts  int
}

func (f *fakeDisasterWriter) Upsert(_ context.Context, ev domain.NormalizedEvent, _ time.Time) (bool, error) {
	if err := f.failOn[ev.SourceID]; err != nil {
		return false, err
	}
	f.upserts++
	key := ev.Source + "|" + ev.SourceID
	if f.existing == nil {
		f.existing = make(map[string]bool)
	}
	created := !f.existing[key]
	f.existing[key] = true
	return created, nil
}

type fakeAQIWriter struct {
	existing map[string]bool
	failOn   map[string]error
	cityIDs  []*int64
}

func (f *fakeAQIWriter) Upsert(_ context.Context, obs domain.AQIObservation, cityID *int64, _ time.Time) (bool, error) {
	if err := f.failOn[obs.SourceID]; err != nil {
		return false, err
	}
	f.cityIDs = append(f.cityIDs, cityID)
	key := obs.Source + "|" + obs.SourceID
	if f.existing == nil {
		f.existing = make(map[string]bool)
	}
	created := !f.existing[key]
	f.existing[key] = true
	return created, nil
}

type fakeCityResolver struct {
	cities map[string]*domain.City
	err    error
}

func (f *fakeCityResolver) ByName(_ context.Context, name string) (*domain.City, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.cities[name], nil
}

type recordingPublisher struct {
	changes []domain.Change
	err     error
}

func (p *recordingPublisher) PublishChange(_ context.Context, c domain.Change) error {
	if p.err != nil {
		return p.err
	}
	p.changes = append(p.changes, c)
	return nil
}

func event(id string) domain.NormalizedEvent {
	return domain.NormalizedEvent{
		Kind:     domain.KindEarthquake,
		Source:   "USGS",
		SourceID: id,
		Latitude: 35.0, Longitude: 139.0,
	}
}

func newTestUpserter(dw DisasterWriter, aw AQIWriter, cr CityResolver, pub ChangePublisher) *Upserter {
	return NewUpserter(dw, aw, cr, pub, testLogger(), observability.NewMetricsForTesting())
}

func TestUpsertEvents_CreatedThenUpdated(t *testing.T) {
	w := &fakeDisasterWriter{}
	u := newTestUpserter(w, nil, nil, nil)
	ctx := context.Background()

	batch := []domain.NormalizedEvent{event("a"), event("b")}

	s, err := u.UpsertEvents(ctx, "USGS", batch, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Created)
	assert.Zero(t, s.Updated)

	// Same natural keys on the next cycle replace, not duplicate.
	s, err = u.UpsertEvents(ctx, "USGS", batch, 0)
	require.NoError(t, err)
	assert.Zero(t, s.Created)
	assert.Equal(t, 2, s.Updated)
}

func TestUpsertEvents_RejectsInvalidRecords(t *testing.T) {
	w := &fakeDisasterWriter{}
	u := newTestUpserter(w, nil, nil, nil)

	bad := event("") // no source_id
	worse := event("c")
	worse.Latitude = 95

	s, err := u.UpsertEvents(context.Background(), "USGS",
		[]domain.NormalizedEvent{bad, worse, event("ok")}, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Rejected)
	assert.Equal(t, 1, s.Created)
	assert.Equal(t, 1, s.Dropped)
	assert.Equal(t, 1, w.upserts, "invalid records never reach the store")
}

func TestUpsertEvents_PerRecordFailureIsIsolated(t *testing.T) {
	w := &fakeDisasterWriter{failOn: map[string]error{"bad": errors.New("constraint violation")}}
	u := newTestUpserter(w, nil, nil, nil)

	s, err := u.UpsertEvents(context.Background(), "USGS",
		[]domain.NormalizedEvent{event("a"), event("bad"), event("b")}, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Created)
	assert.Equal(t, 1, s.Rejected)
}

func TestUpsertEvents_StoreOutageAborts(t *testing.T) {
	w := &fakeDisasterWriter{failOn: map[string]error{"b": domain.ErrStoreUnavailable}}
	u := newTestUpserter(w, nil, nil, nil)

	s, err := u.UpsertEvents(context.Background(), "USGS",
		[]domain.NormalizedEvent{event("a"), event("b"), event("c")}, 0)
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Equal(t, 1, s.Created, "partial summary reflects work done before the outage")
}

func TestUpsertEvents_PublishesChanges(t *testing.T) {
	pub := &recordingPublisher{}
	u := newTestUpserter(&fakeDisasterWriter{}, nil, nil, pub)

	_, err := u.UpsertEvents(context.Background(), "USGS", []domain.NormalizedEvent{event("a")}, 0)
	require.NoError(t, err)
	require.Len(t, pub.changes, 1)
	assert.Equal(t, domain.ChangeEntityDisaster, pub.changes[0].Entity)
	assert.Equal(t, domain.ChangeCreated, pub.changes[0].Action)
	assert.Equal(t, "a", pub.changes[0].SourceID)
}

func TestUpsertEvents_PublishFailureIsNonFatal(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	u := newTestUpserter(&fakeDisasterWriter{}, nil, nil, pub)

	s, err := u.UpsertEvents(context.Background(), "USGS", []domain.NormalizedEvent{event("a")}, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Created)
}

func obs(id, city string) domain.AQIObservation {
	return domain.AQIObservation{
		CityName: city,
		Source:   "OpenAQ",
		SourceID: id,
		Latitude: 48.85, Longitude: 2.35,
	}
}

func TestUpsertObservations_ResolvesCityID(t *testing.T) {
	aw := &fakeAQIWriter{}
	cities := &fakeCityResolver{cities: map[string]*domain.City{
		"Paris": {ID: 42, Name: "Paris"},
	}}
	u := newTestUpserter(nil, aw, cities, nil)

	s, err := u.UpsertObservations(context.Background(), "OpenAQ",
		[]domain.AQIObservation{obs("p1", "Paris"), obs("x1", "Nowhere")}, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Created)

	require.Len(t, aw.cityIDs, 2)
	require.NotNil(t, aw.cityIDs[0])
	assert.EqualValues(t, 42, *aw.cityIDs[0])
	assert.Nil(t, aw.cityIDs[1], "unmatched city stores with null city id")
}

func TestUpsertObservations_CityLookupErrorIsNonFatal(t *testing.T) {
	aw := &fakeAQIWriter{}
	cities := &fakeCityResolver{err: errors.New("query timeout")}
	u := newTestUpserter(nil, aw, cities, nil)

	s, err := u.UpsertObservations(context.Background(), "OpenAQ",
		[]domain.AQIObservation{obs("p1", "Paris")}, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Created)
	require.Len(t, aw.cityIDs, 1)
	assert.Nil(t, aw.cityIDs[0])
}

func TestUpsertObservations_StoreOutageDuringLookupAborts(t *testing.T) {
	aw := &fakeAQIWriter{}
	cities := &fakeCityResolver{err: domain.ErrStoreUnavailable}
	u := newTestUpserter(nil, aw, cities, nil)

	_, err := u.UpsertObservations(context.Background(), "OpenAQ",
		[]domain.AQIObservation{obs("p1", "Paris")}, 0)
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
}
