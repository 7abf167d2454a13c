package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/worldpulse/hazard-aqi-service/internal/domain"
)

// USGS fetches earthquakes from the USGS FDSN event service as a GeoJSON
// FeatureCollection. It supports true time-range queries.
type USGS struct {
	client  *Client
	baseURL string
	limit   int
	logger  *slog.Logger
}

// NewUSGS creates the earthquake adapter.
func NewUSGS(logger *slog.Logger) *USGS {
	return &USGS{
		client:  NewClient("usgs", 30*time.Second),
		baseURL: "https://earthquake.usgs.gov/fdsnws/event/1/query",
		limit:   500,
		logger:  logger,
	}
}

func (s *USGS) Name() string { return "USGS" }

// usgsResponse is the subset of the GeoJSON FeatureCollection we read.
// Unknown properties are ignored by the decoder.
type usgsResponse struct {
	Features []usgsFeature `json:"features"`
}

type usgsFeature struct {
	ID         string `json:"id"`
	Properties struct {
		Mag   *float64 `json:"mag"`
		Place string   `json:"place"`
		Title string   `json:"title"`
		URL   string   `json:"url"`
		Time  *int64   `json:"time"` // epoch milliseconds
	} `json:"properties"`
	Geometry struct {
		Coordinates []float64 `json:"coordinates"` // [lon, lat, depth]
	} `json:"geometry"`
}

func (s *USGS) Fetch(ctx context.Context, window domain.TimeRange) (Batch, error) {
	params := url.Values{
		"format":    {"geojson"},
		"starttime": {window.From.UTC().Format("2006-01-02T15:04:05")},
		"endtime":   {window.To.UTC().Format("2006-01-02T15:04:05")},
		"orderby":   {"time"},
		"limit":     {fmt.Sprint(s.limit)},
	}

	var resp usgsResponse
	if err := s.client.GetJSON(ctx, s.baseURL+"?"+params.Encode(), nil, &resp); err != nil {
		return Batch{}, fmt.Errorf("usgs fetch: %w", err)
	}

	var batch Batch
	for _, feat := range resp.Features {
		if feat.ID == "" || len(feat.Geometry.Coordinates) < 2 {
			batch.Dropped++
			continue
		}
		lon, lat := feat.Geometry.Coordinates[0], feat.Geometry.Coordinates[1]

		var occurredAt *time.Time
		if feat.Properties.Time != nil {
			t := time.UnixMilli(*feat.Properties.Time).UTC()
			occurredAt = &t
		}

		batch.Events = append(batch.Events, domain.NormalizedEvent{
			Kind:        domain.KindEarthquake,
			Title:       feat.Properties.Title,
			Description: feat.Properties.Place,
			Latitude:    lat,
			Longitude:   lon,
			OccurredAt:  occurredAt,
			Magnitude:   feat.Properties.Mag,
			Severity:    domain.ClassifySeverity(domain.KindEarthquake, feat.Properties.Mag),
			Status:      "resolved",
			Source:      s.Name(),
			SourceID:    feat.ID,
			URL:         feat.Properties.URL,
		})
	}
	return batch, nil
}
