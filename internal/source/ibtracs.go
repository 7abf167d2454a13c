package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/worldpulse/hazard-aqi-service/internal/domain"
)

// IBTrACS fetches hurricane track points from the NOAA IBTrACS CSV archive.
// The file is large, so rows are streamed and decoding stops at maxRecords.
// Each track point is its own event: source_id = SID + ISO_TIME, so a storm
// observed at six-hour intervals yields one record per fix.
type IBTrACS struct {
	client     *Client
	csvURL     string
	maxRecords int
	minYear    int
	logger     *slog.Logger
}

// NewIBTrACS creates the hurricane adapter.
func NewIBTrACS(logger *slog.Logger) *IBTrACS {
	return &IBTrACS{
		client:     NewClient("ibtracs", 120*time.Second),
		csvURL:     "https://www.ncei.noaa.gov/data/international-best-track-archive-for-climate-stewardship-ibtracs/v04r00/access/csv/ibtracs.ALL.list.v04r00.csv",
		maxRecords: 1000,
		minYear:    2015,
		logger:     logger,
	}
}

func (s *IBTrACS) Name() string { return "NOAA_IBTrACS" }

func (s *IBTrACS) Fetch(ctx context.Context, _ domain.TimeRange) (Batch, error) {
	resp, err := s.client.Get(ctx, s.csvURL, nil)
	if err != nil {
		return Batch{}, fmt.Errorf("ibtracs fetch: %w", err)
	}
	defer resp.Body.Close()

	reader := csv.NewReader(resp.Body)
	reader.FieldsPerRecord = -1 // the archive mixes column counts across eras

	header, err := reader.Read()
	if err != nil {
		return Batch{}, fmt.Errorf("ibtracs header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, required := range []string{"SID", "ISO_TIME", "LAT", "LON"} {
		if _, ok := col[required]; !ok {
			return Batch{}, fmt.Errorf("ibtracs header: missing column %s", required)
		}
	}

	var batch Batch
	for len(batch.Events) < s.maxRecords {
		if ctx.Err() != nil {
			return batch, ctx.Err()
		}
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Malformed row (the file has a units row right under the
			// header); count and keep streaming.
			batch.Dropped++
			continue
		}

		field := func(name string) string {
			if i, ok := col[name]; ok && i < len(row) {
				return row[i]
			}
			return ""
		}

		occurredAt := parseTimePtr("2006-01-02 15:04:05", field("ISO_TIME"))
		if occurredAt == nil || occurredAt.Year() < s.minYear {
			batch.Dropped++
			continue
		}
		lat := parseFloatPtr(field("LAT"))
		lon := parseFloatPtr(field("LON"))
		if lat == nil || lon == nil {
			batch.Dropped++
			continue
		}
		sid := field("SID")
		if sid == "" {
			batch.Dropped++
			continue
		}

		wind := parseFloatPtr(field("USA_WIND"))
		name := field("NAME")
		if name == "" || name == "NOT_NAMED" || name == "NOT NAMED" {
			name = "Hurricane"
		}

		batch.Events = append(batch.Events, domain.NormalizedEvent{
			Kind:       domain.KindHurricane,
			Title:      name,
			Latitude:   *lat,
			Longitude:  *lon,
			OccurredAt: occurredAt,
			Magnitude:  wind,
			Severity:   domain.ClassifySeverity(domain.KindHurricane, wind),
			Source:     s.Name(),
			SourceID:   sid + "_" + field("ISO_TIME"),
		})
	}
	return batch, nil
}
