package source

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/worldpulse/hazard-aqi-service/internal/domain"
)

// NCEITsunami fetches historical tsunami events from the NOAA NCEI hazard
// service. Event times arrive as separate year/month/day/hour/minute fields,
// frequently partial for older records; missing components default to the
// start of the period.
type NCEITsunami struct {
	client  *Client
	baseURL string
	minYear int
	logger  *slog.Logger
}

// NewNCEITsunami creates the tsunami adapter.
func NewNCEITsunami(logger *slog.Logger) *NCEITsunami {
	return &NCEITsunami{
		client:  NewClient("ncei-tsunami", 60*time.Second),
		baseURL: "https://www.ngdc.noaa.gov/hazel/hazard-service/api/v1/tsunamis/events",
		minYear: 2010,
		logger:  logger,
	}
}

func (s *NCEITsunami) Name() string { return "NOAA" }

type nceiResponse struct {
	Items []nceiTsunamiEvent `json:"items"`
}

type nceiTsunamiEvent struct {
	ID             any      `json:"id"`
	Country        string   `json:"country"`
	LocationName   string   `json:"locationName"`
	MaxWaterHeight *float64 `json:"maxWaterHeight"`
	Latitude       *float64 `json:"latitude"`
	Longitude      *float64 `json:"longitude"`
	Year           *int     `json:"year"`
	Month          *int     `json:"month"`
	Day            *int     `json:"day"`
	Hour           *int     `json:"hour"`
	Minute         *int     `json:"minute"`
}

func (s *NCEITsunami) Fetch(ctx context.Context, _ domain.TimeRange) (Batch, error) {
	url := fmt.Sprintf("%s?minYear=%d", s.baseURL, s.minYear)

	var resp nceiResponse
	if err := s.client.GetJSON(ctx, url, nil, &resp); err != nil {
		return Batch{}, fmt.Errorf("ncei tsunami fetch: %w", err)
	}

	var batch Batch
	for _, ev := range resp.Items {
		sourceID := stringifyID(ev.ID)
		if sourceID == "" || ev.Latitude == nil || ev.Longitude == nil {
			batch.Dropped++
			continue
		}

		title := strings.Trim(strings.Join(nonEmpty(ev.Country, ev.LocationName), ", "), ", ")
		if title == "" {
			title = "Unknown Tsunami Event"
		}

		batch.Events = append(batch.Events, domain.NormalizedEvent{
			Kind:       domain.KindTsunami,
			Title:      title,
			Latitude:   *ev.Latitude,
			Longitude:  *ev.Longitude,
			OccurredAt: assembleTime(ev.Year, ev.Month, ev.Day, ev.Hour, ev.Minute),
			Magnitude:  ev.MaxWaterHeight,
			Severity:   domain.ClassifySeverity(domain.KindTsunami, ev.MaxWaterHeight),
			Source:     s.Name(),
			SourceID:   sourceID,
		})
	}
	return batch, nil
}

// stringifyID normalizes the service's numeric-or-string event IDs.
func stringifyID(id any) string {
	switch v := id.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatInt(int64(v), 10)
	default:
		return ""
	}
}

// assembleTime builds a UTC timestamp from partial date components. A nil
// year means no usable timestamp at all; other missing components default to
// the start of the period. Out-of-range components fall back to January 1st.
func assembleTime(year, month, day, hour, minute *int) *time.Time {
	if year == nil {
		return nil
	}
	m, d, h, min := 1, 1, 0, 0
	if month != nil {
		m = *month
	}
	if day != nil {
		d = *day
	}
	if hour != nil {
		h = *hour
	}
	if minute != nil {
		min = *minute
	}
	if m < 1 || m > 12 || d < 1 || d > 31 || h < 0 || h > 23 || min < 0 || min > 59 {
		t := time.Date(*year, 1, 1, 0, 0, 0, 0, time.UTC)
		return &t
	}
	t := time.Date(*year, time.Month(m), d, h, min, 0, 0, time.UTC)
	return &t
}

func nonEmpty(parts ...string) []string {
	out := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}
