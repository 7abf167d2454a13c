package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worldpulse/hazard-aqi-service/internal/domain"
)

func TestOpenWeather_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key123", r.URL.Query().Get("appid"))
		lat := r.URL.Query().Get("lat")
		if lat == "99" {
			http.Error(w, "bad coordinate", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"list": [{
			"dt": 1749542400,
			"main": {"aqi": 4},
			"components": {"pm2_5": 48.1, "pm10": 80.2, "o3": 30.5, "no2": 22.0, "co": 1500.0, "so2": 5.1}
		}]}`)
	}))
	defer srv.Close()

	cities := []CityTarget{
		{Name: "Jakarta", Lat: -6.2088, Lon: 106.8456},
		{Name: "Broken", Lat: 99, Lon: 0},
	}
	s := NewOpenWeather("key123", cities, testLogger())
	s.baseURL = srv.URL
	s.reqDelay = 0
	s.client.maxRetries = 0

	batch, err := s.Fetch(context.Background(), testWindow())
	require.NoError(t, err)

	require.Len(t, batch.Observations, 1)
	assert.Equal(t, 1, batch.Dropped, "failing city is skipped, not fatal")

	obs := batch.Observations[0]
	assert.Equal(t, "Jakarta", obs.CityName)
	assert.Equal(t, -6.2088, obs.Latitude)
	assert.Equal(t, "OpenWeather", obs.Source)
	assert.Equal(t, "Jakarta_1749542400", obs.SourceID)
	require.NotNil(t, obs.MeasuredAt)
	assert.Equal(t, time.Unix(1749542400, 0).UTC(), obs.MeasuredAt.UTC())
	require.NotNil(t, obs.AQIValue)
	assert.Equal(t, 225, *obs.AQIValue, "index 4 maps to the poor band midpoint")
	assert.Equal(t, domain.AQICategoryVeryBad, obs.AQICategory)
	require.NotNil(t, obs.CO)
	assert.InDelta(t, 1.5, *obs.CO, 1e-9, "CO converts from µg/m³ to mg/m³")
	require.NotNil(t, obs.PM25)
	assert.Equal(t, 48.1, *obs.PM25)
}

func TestOpenWeather_Fetch_CapsCityList(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		io.WriteString(w, `{"list": [{"dt": 1, "main": {"aqi": 1}, "components": {}}]}`)
	}))
	defer srv.Close()

	cities := make([]CityTarget, 15)
	for i := range cities {
		cities[i] = CityTarget{Name: fmt.Sprintf("city-%d", i)}
	}
	s := NewOpenWeather("k", cities, testLogger())
	s.baseURL = srv.URL
	s.reqDelay = 0

	batch, err := s.Fetch(context.Background(), testWindow())
	require.NoError(t, err)
	assert.Equal(t, 10, calls)
	assert.Len(t, batch.Observations, 10)
}

func TestNewOpenWeather_DefaultCities(t *testing.T) {
	s := NewOpenWeather("k", nil, testLogger())
	assert.Equal(t, DefaultCityTargets, s.cities)
}
