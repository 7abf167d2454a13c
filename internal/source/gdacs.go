package source

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/worldpulse/hazard-aqi-service/internal/domain"
)

// GDACS fetches flood events from the GDACS GeoRSS feed. The feed is
// latest-only: the time window is ignored and every current FL item is
// returned; dedup against prior cycles happens downstream on the natural key.
type GDACS struct {
	client  *Client
	feedURL string
	logger  *slog.Logger
}

// NewGDACS creates the flood adapter.
func NewGDACS(logger *slog.Logger) *GDACS {
	return &GDACS{
		client:  NewClient("gdacs", 30*time.Second),
		feedURL: "https://www.gdacs.org/xml/rss.xml",
		logger:  logger,
	}
}

func (s *GDACS) Name() string { return "GDACS" }

// gdacsFeed maps the namespaced GeoRSS elements we extract. Extra elements
// in the feed are ignored.
type gdacsFeed struct {
	Items []gdacsItem `xml:"channel>item"`
}

type gdacsItem struct {
	Title       string `xml:"title"`
	Description string `xml:"description"`
	Link        string `xml:"link"`
	PubDate     string `xml:"pubDate"`
	EventType   string `xml:"http://www.gdacs.org eventtype"`
	EventID     string `xml:"http://www.gdacs.org eventid"`
	AlertLevel  string `xml:"http://www.gdacs.org alertlevel"`
	Country     string `xml:"http://www.gdacs.org country"`
	Lat         string `xml:"http://www.w3.org/2003/01/geo/wgs84_pos# lat"`
	Lon         string `xml:"http://www.w3.org/2003/01/geo/wgs84_pos# long"`
}

func (s *GDACS) Fetch(ctx context.Context, _ domain.TimeRange) (Batch, error) {
	resp, err := s.client.Get(ctx, s.feedURL, nil)
	if err != nil {
		return Batch{}, fmt.Errorf("gdacs fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Batch{}, fmt.Errorf("gdacs read: %w", err)
	}

	var feed gdacsFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return Batch{}, fmt.Errorf("gdacs parse: %w", err)
	}

	var batch Batch
	for _, item := range feed.Items {
		if item.EventType != "FL" {
			continue
		}
		if item.EventID == "" {
			batch.Dropped++
			continue
		}
		lat := parseFloatPtr(item.Lat)
		lon := parseFloatPtr(item.Lon)
		if lat == nil || lon == nil {
			batch.Dropped++
			continue
		}

		batch.Events = append(batch.Events, domain.NormalizedEvent{
			Kind:        domain.KindFlood,
			Title:       item.Title,
			Description: item.Description,
			Latitude:    *lat,
			Longitude:   *lon,
			OccurredAt:  parsePubDate(item.PubDate),
			Severity:    domain.SeverityFromAlertLevel(item.AlertLevel),
			Status:      "active",
			Source:      s.Name(),
			SourceID:    item.EventID,
			URL:         item.Link,
		})
	}
	return batch, nil
}

// parsePubDate handles both RFC1123 variants seen in the wild ("GMT" and
// numeric zone). Anything else reads as a missing timestamp.
func parsePubDate(s string) *time.Time {
	if t := parseTimePtr(time.RFC1123, s); t != nil {
		return t
	}
	return parseTimePtr(time.RFC1123Z, s)
}
