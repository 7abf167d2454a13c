package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/worldpulse/hazard-aqi-service/internal/domain"
)

// CityTarget is one coordinate the OpenWeather adapter polls.
type CityTarget struct {
	Name string
	Lat  float64
	Lon  float64
}

// DefaultCityTargets is the fallback polling list used when no cities are
// configured.
var DefaultCityTargets = []CityTarget{
	{Name: "New York", Lat: 40.7128, Lon: -74.0060},
	{Name: "London", Lat: 51.5074, Lon: -0.1278},
	{Name: "Tokyo", Lat: 35.6762, Lon: 139.6503},
	{Name: "Paris", Lat: 48.8566, Lon: 2.3522},
	{Name: "Sydney", Lat: -33.8688, Lon: 151.2093},
}

// OpenWeather fetches per-city air pollution data. Requests run sequentially
// with a fixed delay between cities; a failing city is logged and skipped so
// the rest of the list still reports.
type OpenWeather struct {
	client   *Client
	baseURL  string
	apiKey   string
	cities   []CityTarget
	maxCity  int
	reqDelay time.Duration
	logger   *slog.Logger
}

// NewOpenWeather creates the OpenWeather air-quality adapter.
func NewOpenWeather(apiKey string, cities []CityTarget, logger *slog.Logger) *OpenWeather {
	if len(cities) == 0 {
		cities = DefaultCityTargets
	}
	return &OpenWeather{
		client:   NewClient("openweather", 30*time.Second),
		baseURL:  "https://api.openweathermap.org/data/2.5",
		apiKey:   apiKey,
		cities:   cities,
		maxCity:  10,
		reqDelay: 200 * time.Millisecond,
		logger:   logger,
	}
}

func (s *OpenWeather) Name() string { return "OpenWeather" }

type openWeatherResponse struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			AQI int `json:"aqi"` // 1-5 scale
		} `json:"main"`
		Components struct {
			PM25 *float64 `json:"pm2_5"`
			PM10 *float64 `json:"pm10"`
			O3   *float64 `json:"o3"`
			NO2  *float64 `json:"no2"`
			CO   *float64 `json:"co"` // µg/m³; stored as mg/m³
			SO2  *float64 `json:"so2"`
		} `json:"components"`
	} `json:"list"`
}

func (s *OpenWeather) Fetch(ctx context.Context, _ domain.TimeRange) (AQIBatch, error) {
	cities := s.cities
	if len(cities) > s.maxCity {
		cities = cities[:s.maxCity]
	}

	var batch AQIBatch
	for i, city := range cities {
		if ctx.Err() != nil {
			return batch, ctx.Err()
		}
		if i > 0 && s.reqDelay > 0 {
			select {
			case <-ctx.Done():
				return batch, ctx.Err()
			case <-time.After(s.reqDelay):
			}
		}

		obs, err := s.fetchCity(ctx, city)
		if err != nil {
			s.logger.Warn("openweather city fetch failed, skipping",
				"city", city.Name, "error", err)
			batch.Dropped++
			continue
		}
		batch.Observations = append(batch.Observations, obs)
	}
	return batch, nil
}

func (s *OpenWeather) fetchCity(ctx context.Context, city CityTarget) (domain.AQIObservation, error) {
	params := url.Values{
		"lat":   {fmt.Sprint(city.Lat)},
		"lon":   {fmt.Sprint(city.Lon)},
		"appid": {s.apiKey},
	}

	var resp openWeatherResponse
	if err := s.client.GetJSON(ctx, s.baseURL+"/air_pollution?"+params.Encode(), nil, &resp); err != nil {
		return domain.AQIObservation{}, err
	}
	if len(resp.List) == 0 {
		return domain.AQIObservation{}, fmt.Errorf("empty air pollution list for %s", city.Name)
	}

	entry := resp.List[0]
	measuredAt := time.Unix(entry.Dt, 0).UTC()
	aqi := domain.AQIFromOpenWeatherIndex(entry.Main.AQI)

	co := entry.Components.CO
	if co != nil {
		v := *co / 1000.0
		co = &v
	}

	return domain.AQIObservation{
		CityName:    city.Name,
		Latitude:    city.Lat,
		Longitude:   city.Lon,
		MeasuredAt:  &measuredAt,
		AQIValue:    &aqi,
		AQICategory: domain.AQICategory(aqi),
		PM25:        entry.Components.PM25,
		PM10:        entry.Components.PM10,
		O3:          entry.Components.O3,
		NO2:         entry.Components.NO2,
		CO:          co,
		SO2:         entry.Components.SO2,
		Source:      s.Name(),
		SourceID:    fmt.Sprintf("%s_%d", city.Name, entry.Dt),
	}, nil
}
