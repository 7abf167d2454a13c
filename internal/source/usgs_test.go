package source

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worldpulse/hazard-aqi-service/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testWindow() domain.TimeRange {
	to := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	return domain.TimeRange{From: to.AddDate(0, 0, -1), To: to}
}

const usgsPayload = `{
  "type": "FeatureCollection",
  "metadata": {"generated": 1750000000000, "title": "USGS Earthquakes"},
  "features": [
    {
      "type": "Feature",
      "id": "us7000abcd",
      "properties": {
        "mag": 7.0,
        "place": "120 km SSE of Tokyo, Japan",
        "title": "M 7.0 - 120 km SSE of Tokyo, Japan",
        "url": "https://earthquake.usgs.gov/earthquakes/eventpage/us7000abcd",
        "time": 1749970800000,
        "tsunami": 1,
        "unknown_field": "ignored"
      },
      "geometry": {"type": "Point", "coordinates": [140.1, 34.6, 10.0]}
    },
    {
      "type": "Feature",
      "id": "us7000efgh",
      "properties": {"mag": 4.2, "title": "M 4.2", "time": 1749960000000},
      "geometry": {"type": "Point", "coordinates": [-120.5, 36.2, 4.1]}
    },
    {
      "type": "Feature",
      "id": "",
      "properties": {"mag": 5.0, "time": 1749950000000},
      "geometry": {"type": "Point", "coordinates": [10.0, 10.0]}
    },
    {
      "type": "Feature",
      "id": "us7000nogeom",
      "properties": {"mag": 5.0, "time": 1749950000000},
      "geometry": {"type": "Point", "coordinates": []}
    }
  ]
}`

func TestUSGS_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "geojson", r.URL.Query().Get("format"))
		assert.Equal(t, "time", r.URL.Query().Get("orderby"))
		assert.NotEmpty(t, r.URL.Query().Get("starttime"))
		assert.NotEmpty(t, r.URL.Query().Get("endtime"))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, usgsPayload)
	}))
	defer srv.Close()

	s := NewUSGS(testLogger())
	s.baseURL = srv.URL

	batch, err := s.Fetch(context.Background(), testWindow())
	require.NoError(t, err)

	assert.Len(t, batch.Events, 2)
	assert.Equal(t, 2, batch.Dropped, "missing id and missing coordinates both drop")

	quake := batch.Events[0]
	assert.Equal(t, domain.KindEarthquake, quake.Kind)
	assert.Equal(t, "USGS", quake.Source)
	assert.Equal(t, "us7000abcd", quake.SourceID)
	assert.Equal(t, 34.6, quake.Latitude)
	assert.Equal(t, 140.1, quake.Longitude)
	require.NotNil(t, quake.Magnitude)
	assert.Equal(t, 7.0, *quake.Magnitude)
	assert.Equal(t, domain.SeverityVeryHigh, quake.Severity, "magnitude 7.0 is in the top band")
	require.NotNil(t, quake.OccurredAt)
	assert.Equal(t, time.UnixMilli(1749970800000).UTC(), *quake.OccurredAt)

	assert.Equal(t, domain.SeverityModerate, batch.Events[1].Severity)
}

func TestUSGS_Fetch_SameInputSameIDs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, usgsPayload)
	}))
	defer srv.Close()

	s := NewUSGS(testLogger())
	s.baseURL = srv.URL

	first, err := s.Fetch(context.Background(), testWindow())
	require.NoError(t, err)
	second, err := s.Fetch(context.Background(), testWindow())
	require.NoError(t, err)

	require.Equal(t, len(first.Events), len(second.Events))
	for i := range first.Events {
		assert.Equal(t, first.Events[i].SourceID, second.Events[i].SourceID)
	}
}

func TestUSGS_Fetch_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewUSGS(testLogger())
	s.baseURL = srv.URL
	s.client.maxRetries = 0

	_, err := s.Fetch(context.Background(), testWindow())
	require.Error(t, err)
}
