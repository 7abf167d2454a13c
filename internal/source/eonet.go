package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/worldpulse/hazard-aqi-service/internal/domain"
)

// EONET fetches open volcanic events from NASA's Earth Observatory Natural
// Event Tracker. Each event carries a series of observation points; the most
// recent one becomes the record's location and time.
type EONET struct {
	client  *Client
	baseURL string
	logger  *slog.Logger
}

// NewEONET creates the volcano adapter.
func NewEONET(logger *slog.Logger) *EONET {
	return &EONET{
		client:  NewClient("eonet", 30*time.Second),
		baseURL: "https://eonet.gsfc.nasa.gov/api/v3/events",
		logger:  logger,
	}
}

func (s *EONET) Name() string { return "NASA_EONET" }

type eonetResponse struct {
	Events []eonetEvent `json:"events"`
}

type eonetEvent struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Sources []struct {
		URL string `json:"url"`
	} `json:"sources"`
	Geometry []struct {
		Date        string    `json:"date"`
		Coordinates []float64 `json:"coordinates"` // [lon, lat]
	} `json:"geometry"`
}

func (s *EONET) Fetch(ctx context.Context, _ domain.TimeRange) (Batch, error) {
	url := s.baseURL + "?category=volcanoes&status=open"

	var resp eonetResponse
	if err := s.client.GetJSON(ctx, url, nil, &resp); err != nil {
		return Batch{}, fmt.Errorf("eonet fetch: %w", err)
	}

	var batch Batch
	for _, ev := range resp.Events {
		if ev.ID == "" || len(ev.Geometry) == 0 {
			batch.Dropped++
			continue
		}
		latest := ev.Geometry[len(ev.Geometry)-1]
		if len(latest.Coordinates) < 2 {
			batch.Dropped++
			continue
		}

		sourceURL := "https://eonet.gsfc.nasa.gov"
		if len(ev.Sources) > 0 && ev.Sources[0].URL != "" {
			sourceURL = ev.Sources[0].URL
		}

		batch.Events = append(batch.Events, domain.NormalizedEvent{
			Kind:       domain.KindVolcano,
			Title:      ev.Title,
			Latitude:   latest.Coordinates[1],
			Longitude:  latest.Coordinates[0],
			OccurredAt: parseTimePtr("2006-01-02T15:04:05Z", latest.Date),
			Severity:   domain.SeverityUnknown,
			Status:     "active",
			Source:     s.Name(),
			SourceID:   ev.ID,
			URL:        sourceURL,
		})
	}
	return batch, nil
}
