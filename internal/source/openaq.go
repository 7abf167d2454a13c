package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/worldpulse/hazard-aqi-service/internal/domain"
)

// OpenAQ fetches the latest station measurements from the OpenAQ API.
// Stations report pollutant concentrations, not an AQI: when PM2.5 is present
// an AQI is derived via the EPA breakpoints, otherwise the value stays null.
type OpenAQ struct {
	client  *Client
	baseURL string
	apiKey  string
	limit   int
	logger  *slog.Logger
}

// NewOpenAQ creates the OpenAQ air-quality adapter. The API key is optional
// for low request volumes.
func NewOpenAQ(apiKey string, limit int, logger *slog.Logger) *OpenAQ {
	if limit <= 0 {
		limit = 50
	}
	return &OpenAQ{
		client:  NewClient("openaq", 30*time.Second),
		baseURL: "https://api.openaq.org/v2",
		apiKey:  apiKey,
		limit:   limit,
		logger:  logger,
	}
}

func (s *OpenAQ) Name() string { return "OpenAQ" }

type openaqResponse struct {
	Results []openaqResult `json:"results"`
}

type openaqResult struct {
	Location struct {
		ID   any    `json:"id"`
		Name string `json:"name"`
	} `json:"location"`
	Coordinates struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	} `json:"coordinates"`
	LastUpdated  string `json:"lastUpdated"`
	Measurements []struct {
		Parameter string   `json:"parameter"`
		Value     *float64 `json:"value"`
	} `json:"measurements"`
}

func (s *OpenAQ) Fetch(ctx context.Context, _ domain.TimeRange) (AQIBatch, error) {
	params := url.Values{
		"limit": {fmt.Sprint(s.limit)},
		"page":  {"1"},
	}
	var header http.Header
	if s.apiKey != "" {
		header = http.Header{"X-API-Key": {s.apiKey}}
	}

	var resp openaqResponse
	if err := s.client.GetJSON(ctx, s.baseURL+"/latest?"+params.Encode(), header, &resp); err != nil {
		return AQIBatch{}, fmt.Errorf("openaq fetch: %w", err)
	}

	var batch AQIBatch
	for _, result := range resp.Results {
		if result.Coordinates.Latitude == nil || result.Coordinates.Longitude == nil {
			batch.Dropped++
			continue
		}
		locationID := stringifyID(result.Location.ID)
		if locationID == "" && result.Location.Name == "" {
			batch.Dropped++
			continue
		}

		pollutants := make(map[string]*float64, len(result.Measurements))
		for _, m := range result.Measurements {
			if m.Value != nil {
				pollutants[m.Parameter] = m.Value
			}
		}

		var aqiValue *int
		var category string
		if pm25 := pollutants["pm25"]; pm25 != nil {
			v := domain.AQIFromPM25(*pm25)
			aqiValue = &v
			category = domain.AQICategory(v)
		}

		cityName := result.Location.Name
		if cityName == "" {
			cityName = "Unknown"
		}

		batch.Observations = append(batch.Observations, domain.AQIObservation{
			CityName:    cityName,
			Latitude:    *result.Coordinates.Latitude,
			Longitude:   *result.Coordinates.Longitude,
			MeasuredAt:  parseISOTime(result.LastUpdated),
			AQIValue:    aqiValue,
			AQICategory: category,
			PM25:        pollutants["pm25"],
			PM10:        pollutants["pm10"],
			O3:          pollutants["o3"],
			NO2:         pollutants["no2"],
			CO:          pollutants["co"],
			SO2:         pollutants["so2"],
			Source:      s.Name(),
			SourceID:    locationID + "_" + result.LastUpdated,
			URL:         "https://openaq.org/#/location/" + locationID,
		})
	}
	return batch, nil
}

// parseISOTime accepts the RFC3339 variants OpenAQ emits.
func parseISOTime(s string) *time.Time {
	if t := parseTimePtr(time.RFC3339, s); t != nil {
		return t
	}
	return parseTimePtr("2006-01-02T15:04:05", s)
}
