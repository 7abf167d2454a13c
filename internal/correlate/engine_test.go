package correlate

import (
	"context"
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

var eventTime = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

type fakeDisasterLister struct {
	disasters []domain.Disaster
	queries   []DisasterQuery
}

func (f *fakeDisasterLister) List(_ context.Context, q DisasterQuery) ([]domain.Disaster, error) {
	f.queries = append(f.queries, q)
	return f.disasters, nil
}

type fakeAQIWindower struct {
	measurements []domain.AQIMeasurement
	boxes        []domain.BoundingBox
	froms, tos   []time.Time
}

func (f *fakeAQIWindower) InBounds(_ context.Context, box domain.BoundingBox, from, to time.Time) ([]domain.AQIMeasurement, error) {
	f.boxes = append(f.boxes, box)
	f.froms = append(f.froms, from)
	f.tos = append(f.tos, to)

	var out []domain.AQIMeasurement
	for _, m := range f.measurements {
		if m.MeasuredAt == nil {
			continue
		}
		at := *m.MeasuredAt
		if !at.Before(from) && !at.After(to) && box.Contains(m.Latitude, m.Longitude) {
			out = append(out, m)
		}
	}
	return out, nil
}

func disaster(id int64, at time.Time) domain.Disaster {
	return domain.Disaster{
		ID:         id,
		Kind:       domain.KindWildfire,
		Latitude:   34.05,
		Longitude:  -118.24,
		OccurredAt: &at,
		Source:     "NASA_FIRMS",
		SourceID:   "h1",
	}
}

func measurement(city string, cityID *int64, at time.Time, aqi *int) domain.AQIMeasurement {
	return domain.AQIMeasurement{
		CityID:     cityID,
		CityName:   city,
		Latitude:   34.0,
		Longitude:  -118.2,
		MeasuredAt: &at,
		AQIValue:   aqi,
		Source:     "OpenAQ",
	}
}

func aqi(v int) *int { return &v }

func id(v int64) *int64 { return &v }

func defaultParams() Params {
	return Params{
		RadiusKm:   100,
		PreWindow:  7 * 24 * time.Hour,
		PostWindow: 7 * 24 * time.Hour,
	}
}

func newTestEngine(d *fakeDisasterLister, a *fakeAQIWindower) *Engine {
	return NewEngine(d, a, testLogger(), observability.NewMetricsForTesting())
}

func TestCorrelate_ComputesChangePercent(t *testing.T) {
	d := &fakeDisasterLister{disasters: []domain.Disaster{disaster(1, eventTime)}}
	a := &fakeAQIWindower{measurements: []domain.AQIMeasurement{
		// Pre window average (40+60)/2 = 50.
		measurement("Los Angeles", id(9), eventTime.Add(-48*time.Hour), aqi(40)),
		measurement("Los Angeles", id(9), eventTime.Add(-24*time.Hour), aqi(60)),
		// Post window average (80+120)/2 = 100.
		measurement("Los Angeles", id(9), eventTime.Add(24*time.Hour), aqi(80)),
		measurement("Los Angeles", id(9), eventTime.Add(48*time.Hour), aqi(120)),
	}}
	e := newTestEngine(d, a)

	report, err := e.Correlate(context.Background(), defaultParams())
	require.NoError(t, err)

	require.Len(t, report.Impacts, 1)
	require.Len(t, report.Impacts[0].Cities, 1)

	city := report.Impacts[0].Cities[0]
	assert.Equal(t, "Los Angeles", city.CityName)
	require.NotNil(t, city.PreAvgAQI)
	assert.Equal(t, 50.0, *city.PreAvgAQI)
	require.NotNil(t, city.PostAvgAQI)
	assert.Equal(t, 100.0, *city.PostAvgAQI)
	require.NotNil(t, city.ChangePercent)
	assert.InDelta(t, 100.0, *city.ChangePercent, 1e-9, "AQI doubling reads as +100%")
	require.NotNil(t, city.PostMaxAQI)
	assert.Equal(t, 120.0, *city.PostMaxAQI)

	assert.Equal(t, 1, report.Impacts[0].Summary.CitiesAffected)
	require.NotNil(t, report.Impacts[0].Summary.AvgChangePercent)
	assert.InDelta(t, 100.0, *report.Impacts[0].Summary.AvgChangePercent, 1e-9)

	require.NotNil(t, report.Summary.AvgChangePercent)
	assert.InDelta(t, 100.0, *report.Summary.AvgChangePercent, 1e-9)
	assert.Equal(t, 1, report.Summary.DisastersAnalyzed)
	assert.Equal(t, 1, report.Summary.CitiesAffected)
}

func TestCorrelate_PostOnlyCityHasNilChange(t *testing.T) {
	d := &fakeDisasterLister{disasters: []domain.Disaster{disaster(1, eventTime)}}
	a := &fakeAQIWindower{measurements: []domain.AQIMeasurement{
		measurement("Los Angeles", nil, eventTime.Add(6*time.Hour), aqi(150)),
	}}
	e := newTestEngine(d, a)

	report, err := e.Correlate(context.Background(), defaultParams())
	require.NoError(t, err)

	require.Len(t, report.Impacts, 1)
	require.Len(t, report.Impacts[0].Cities, 1)

	city := report.Impacts[0].Cities[0]
	assert.Nil(t, city.PreAvgAQI, "no pre-event data means no baseline")
	assert.Nil(t, city.ChangePercent, "no baseline means no change, never a division error")
	require.NotNil(t, city.PostAvgAQI)
	assert.Equal(t, 150.0, *city.PostAvgAQI)

	// The city still counts; only the change aggregation skips it.
	assert.Equal(t, 1, report.Summary.CitiesAffected)
	assert.Nil(t, report.Summary.AvgChangePercent)
}

func TestCorrelate_PreOnlyCityIsExcluded(t *testing.T) {
	d := &fakeDisasterLister{disasters: []domain.Disaster{disaster(1, eventTime)}}
	a := &fakeAQIWindower{measurements: []domain.AQIMeasurement{
		measurement("Los Angeles", nil, eventTime.Add(-6*time.Hour), aqi(60)),
	}}
	e := newTestEngine(d, a)

	report, err := e.Correlate(context.Background(), defaultParams())
	require.NoError(t, err)

	require.Len(t, report.Impacts, 1)
	assert.Empty(t, report.Impacts[0].Cities, "a city with no post-event data is not reported")
	assert.Zero(t, report.Impacts[0].Summary.CitiesAffected)
	assert.Equal(t, 1, report.Summary.DisastersAnalyzed)
	assert.Zero(t, report.Summary.CitiesAffected)
}

func TestCorrelate_ReportsDisastersWithoutMatches(t *testing.T) {
	d := &fakeDisasterLister{disasters: []domain.Disaster{
		disaster(1, eventTime),
		disaster(2, eventTime.Add(-72*time.Hour)),
	}}
	a := &fakeAQIWindower{}
	e := newTestEngine(d, a)

	report, err := e.Correlate(context.Background(), defaultParams())
	require.NoError(t, err)

	// Every analyzed disaster gets an entry, with or without nearby data.
	require.Len(t, report.Impacts, 2)
	for _, impact := range report.Impacts {
		assert.Empty(t, impact.Cities)
		assert.Zero(t, impact.Summary.CitiesAffected)
		assert.Nil(t, impact.Summary.AvgChangePercent)
		assert.Nil(t, impact.Summary.MaxChangePercent)
	}
	assert.Equal(t, 2, report.Summary.DisastersAnalyzed)
	assert.Zero(t, report.Summary.CitiesAffected)
}

func TestCorrelate_EventTimeBelongsToPostWindow(t *testing.T) {
	d := &fakeDisasterLister{disasters: []domain.Disaster{disaster(1, eventTime)}}
	a := &fakeAQIWindower{measurements: []domain.AQIMeasurement{
		measurement("Los Angeles", nil, eventTime, aqi(90)),
	}}
	e := newTestEngine(d, a)

	report, err := e.Correlate(context.Background(), defaultParams())
	require.NoError(t, err)

	require.Len(t, report.Impacts, 1)
	city := report.Impacts[0].Cities[0]
	assert.Equal(t, 1, city.PostSamples)
	assert.Zero(t, city.PreSamples)
}

func TestCorrelate_GroupsByCityIDOverName(t *testing.T) {
	d := &fakeDisasterLister{disasters: []domain.Disaster{disaster(1, eventTime)}}
	a := &fakeAQIWindower{measurements: []domain.AQIMeasurement{
		// Same reference city reported under different provider spellings.
		measurement("Los Angeles", id(9), eventTime.Add(-time.Hour), aqi(40)),
		measurement("los angeles", id(9), eventTime.Add(time.Hour), aqi(80)),
		// Unresolved station groups by name.
		measurement("Pasadena", nil, eventTime.Add(time.Hour), aqi(70)),
	}}
	e := newTestEngine(d, a)

	report, err := e.Correlate(context.Background(), defaultParams())
	require.NoError(t, err)
	require.Len(t, report.Impacts, 1)
	assert.Len(t, report.Impacts[0].Cities, 2)
}

func TestCorrelate_StrictGroupingDropsUnresolved(t *testing.T) {
	d := &fakeDisasterLister{disasters: []domain.Disaster{disaster(1, eventTime)}}
	a := &fakeAQIWindower{measurements: []domain.AQIMeasurement{
		measurement("Los Angeles", id(9), eventTime.Add(time.Hour), aqi(80)),
		measurement("Pasadena", nil, eventTime.Add(time.Hour), aqi(70)),
	}}
	e := newTestEngine(d, a)

	p := defaultParams()
	p.StrictCityGrouping = true
	report, err := e.Correlate(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, report.Impacts, 1)
	require.Len(t, report.Impacts[0].Cities, 1)
	assert.Equal(t, "Los Angeles", report.Impacts[0].Cities[0].CityName)
}

func TestCorrelate_SkipsDisastersWithoutTime(t *testing.T) {
	noTime := disaster(1, eventTime)
	noTime.OccurredAt = nil
	d := &fakeDisasterLister{disasters: []domain.Disaster{noTime}}
	a := &fakeAQIWindower{}
	e := newTestEngine(d, a)

	report, err := e.Correlate(context.Background(), defaultParams())
	require.NoError(t, err)
	assert.Zero(t, report.Summary.DisastersAnalyzed)
	assert.Empty(t, a.boxes, "no window query without an event time")
}

func TestCorrelate_RejectsNonPositiveRadius(t *testing.T) {
	e := newTestEngine(&fakeDisasterLister{}, &fakeAQIWindower{})
	p := defaultParams()
	p.RadiusKm = 0
	_, err := e.Correlate(context.Background(), p)
	require.Error(t, err)
}

func TestCorrelate_PinsSingleDisaster(t *testing.T) {
	d := &fakeDisasterLister{disasters: []domain.Disaster{disaster(7, eventTime)}}
	e := newTestEngine(d, &fakeAQIWindower{})

	p := defaultParams()
	p.DisasterID = 7
	p.Kind = domain.KindEarthquake // ignored when an id is given
	_, err := e.Correlate(context.Background(), p)
	require.NoError(t, err)

	require.Len(t, d.queries, 1)
	assert.Equal(t, int64(7), d.queries[0].ID)
	assert.Empty(t, d.queries[0].Kind)
	assert.Nil(t, d.queries[0].Since)
}

func TestCorrelate_UnknownDisasterID(t *testing.T) {
	e := newTestEngine(&fakeDisasterLister{}, &fakeAQIWindower{})

	p := defaultParams()
	p.DisasterID = 404
	_, err := e.Correlate(context.Background(), p)
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}

func TestCorrelate_QueriesFullWindow(t *testing.T) {
	d := &fakeDisasterLister{disasters: []domain.Disaster{disaster(1, eventTime)}}
	a := &fakeAQIWindower{}
	e := newTestEngine(d, a)

	p := defaultParams()
	p.PreWindow = 48 * time.Hour
	p.PostWindow = 24 * time.Hour
	_, err := e.Correlate(context.Background(), p)
	require.NoError(t, err)

	require.Len(t, a.froms, 1)
	assert.Equal(t, eventTime.Add(-48*time.Hour), a.froms[0])
	assert.Equal(t, eventTime.Add(24*time.Hour), a.tos[0])
}

func TestBoundingBox(t *testing.T) {
	t.Run("mid latitude", func(t *testing.T) {
		box := boundingBox(45, 10, 111)
		assert.InDelta(t, 44, box.MinLat, 1e-9)
		assert.InDelta(t, 46, box.MaxLat, 1e-9)
		// Longitude span widens by the 90/|lat| factor: 1 degree * 2 = 2.
		assert.InDelta(t, 8, box.MinLon, 1e-9)
		assert.InDelta(t, 12, box.MaxLon, 1e-9)
	})

	t.Run("equator falls back to latitude span", func(t *testing.T) {
		box := boundingBox(0, 0, 111)
		assert.InDelta(t, -1, box.MinLon, 1e-9)
		assert.InDelta(t, 1, box.MaxLon, 1e-9)
	})

	t.Run("near-equator span is capped", func(t *testing.T) {
		box := boundingBox(0.5, 0, 500)
		assert.GreaterOrEqual(t, box.MinLon, -180.0)
		assert.LessOrEqual(t, box.MaxLon, 180.0)
	})

	t.Run("pole clamping", func(t *testing.T) {
		box := boundingBox(89.5, 0, 200)
		assert.LessOrEqual(t, box.MaxLat, 90.0)
	})
}
