package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/worldpulse/hazard-aqi-service/internal/domain"
)

// FIRMS fetches wildfire hotspot detections from NASA FIRMS. The area API
// caps request extents, so the globe is partitioned into fixed 30°×30° tiles
// fetched independently: a failing tile is logged and skipped, and a fixed
// inter-tile delay keeps request rates polite.
type FIRMS struct {
	client    *Client
	baseURL   string
	apiKey    string
	satSource string
	days      int
	tileSize  int
	tileDelay time.Duration
	logger    *slog.Logger
}

// NewFIRMS creates the wildfire adapter.
func NewFIRMS(apiKey string, logger *slog.Logger) *FIRMS {
	return &FIRMS{
		client:    NewClient("firms", 60*time.Second),
		baseURL:   "https://firms.modaps.eosdis.nasa.gov/api/area/csv",
		apiKey:    apiKey,
		satSource: "VIIRS_SNPP_NRT",
		days:      1,
		tileSize:  30,
		tileDelay: 1 * time.Second,
		logger:    logger,
	}
}

func (s *FIRMS) Name() string { return "NASA_FIRMS" }

func (s *FIRMS) Fetch(ctx context.Context, _ domain.TimeRange) (Batch, error) {
	var batch Batch
	first := true

	for lon := -180; lon < 180; lon += s.tileSize {
		for lat := -90; lat < 90; lat += s.tileSize {
			if ctx.Err() != nil {
				return batch, ctx.Err()
			}
			if !first && s.tileDelay > 0 {
				select {
				case <-ctx.Done():
					return batch, ctx.Err()
				case <-time.After(s.tileDelay):
				}
			}
			first = false

			tile, err := s.fetchTile(ctx, lon, lat, lon+s.tileSize, lat+s.tileSize)
			if err != nil {
				s.logger.Warn("firms tile fetch failed, skipping",
					"west", lon, "south", lat, "error", err)
				continue
			}
			batch.Events = append(batch.Events, tile.Events...)
			batch.Dropped += tile.Dropped
		}
	}
	return batch, nil
}

func (s *FIRMS) fetchTile(ctx context.Context, west, south, east, north int) (Batch, error) {
	url := fmt.Sprintf("%s/%s/%s/%d,%d,%d,%d/%d",
		s.baseURL, s.apiKey, s.satSource, west, south, east, north, s.days)

	resp, err := s.client.Get(ctx, url, nil)
	if err != nil {
		return Batch{}, err
	}
	defer resp.Body.Close()

	return s.parseTile(resp.Body)
}

// parseTile decodes one tile's CSV body. FIRMS returns a header row followed
// by detections; an empty tile is just the header.
func (s *FIRMS) parseTile(r io.Reader) (Batch, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.Comment = '#'

	header, err := reader.Read()
	if err == io.EOF {
		return Batch{}, nil
	}
	if err != nil {
		return Batch{}, fmt.Errorf("firms header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}

	var batch Batch
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			batch.Dropped++
			continue
		}
		field := func(name string) string {
			if i, ok := col[name]; ok && i < len(row) {
				return row[i]
			}
			return ""
		}

		lat := parseFloatPtr(field("latitude"))
		lon := parseFloatPtr(field("longitude"))
		if lat == nil || lon == nil {
			batch.Dropped++
			continue
		}

		acqDate := field("acq_date")
		acqTime := zeroPad4(field("acq_time"))
		occurredAt := parseTimePtr("2006-01-02 1504", acqDate+" "+acqTime)
		brightness := parseFloatPtr(field("bright_ti4"))

		batch.Events = append(batch.Events, domain.NormalizedEvent{
			Kind:       domain.KindWildfire,
			Title:      "Wildfire hotspot",
			Latitude:   *lat,
			Longitude:  *lon,
			OccurredAt: occurredAt,
			Magnitude:  brightness,
			Severity:   domain.ClassifySeverity(domain.KindWildfire, brightness),
			Source:     s.Name(),
			SourceID:   hotspotID(*lat, *lon, acqDate, acqTime),
		})
	}
	return batch, nil
}

// hotspotID builds the deterministic natural key for a detection: FIRMS has
// no event IDs, so position and acquisition time stand in for one.
func hotspotID(lat, lon float64, acqDate, acqTime string) string {
	return strconv.FormatFloat(lat, 'g', -1, 64) + "_" +
		strconv.FormatFloat(lon, 'g', -1, 64) + "_" + acqDate + "_" + acqTime
}

func zeroPad4(s string) string {
	for len(s) < 4 {
		s = "0" + s
	}
	return s
}
