// Package correlate implements the disaster/air-quality correlation
// analysis: for each disaster it windows AQI measurements around the event
// time inside a geographic bounding box, and reports per-city before/after
// averages and the percentage change.
package correlate

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/worldpulse/hazard-aqi-service/internal/domain"
	"github.com/worldpulse/hazard-aqi-service/internal/observability"
)

// DisasterLister supplies the disasters to analyze.
type DisasterLister interface {
	List(ctx context.Context, f DisasterQuery) ([]domain.Disaster, error)
}

// AQIWindower supplies AQI measurements inside a box over [from, to].
type AQIWindower interface {
	InBounds(ctx context.Context, box domain.BoundingBox, from, to time.Time) ([]domain.AQIMeasurement, error)
}

// DisasterQuery mirrors the store's disaster filter without importing it.
type DisasterQuery struct {
	ID       int64
	Kind     domain.DisasterKind
	Severity domain.Severity
	Since    *time.Time
	Limit    int
}

// Params controls one correlation run. A non-zero DisasterID pins the
// analysis to that single disaster; otherwise Kind/Severity select the set.
type Params struct {
	DisasterID   int64               `json:"disaster_id,omitempty"`
	Kind         domain.DisasterKind `json:"disaster_type,omitempty"`
	Severity     domain.Severity     `json:"severity,omitempty"`
	RadiusKm     float64             `json:"radius_km"`
	PreWindow    time.Duration       `json:"-"`
	PostWindow   time.Duration       `json:"-"`
	MaxDisasters int                 `json:"max_disasters"`

	// StrictCityGrouping drops measurements without a resolved city id
	// instead of falling back to name grouping.
	StrictCityGrouping bool `json:"-"`
}

// CityImpact is one city's before/after comparison around a disaster.
type CityImpact struct {
	CityID        *int64   `json:"city_id,omitempty"`
	CityName      string   `json:"city_name"`
	PreAvgAQI     *float64 `json:"pre_avg_aqi,omitempty"`
	PostAvgAQI    *float64 `json:"post_avg_aqi,omitempty"`
	PostMaxAQI    *float64 `json:"post_max_aqi,omitempty"`
	ChangePercent *float64 `json:"change_percent,omitempty"`
	PreSamples    int      `json:"pre_samples"`
	PostSamples   int      `json:"post_samples"`
}

// DisasterImpact pairs a disaster with the cities it affected. A disaster
// whose windows match no measurements still appears with an empty city list
// and a zero summary.
type DisasterImpact struct {
	Disaster domain.Disaster `json:"disaster"`
	Cities   []CityImpact    `json:"cities"`
	Summary  ImpactSummary   `json:"summary"`
}

// ImpactSummary aggregates one disaster's city comparisons.
type ImpactSummary struct {
	CitiesAffected   int      `json:"cities_affected"`
	AvgChangePercent *float64 `json:"avg_change_percent,omitempty"`
	MaxChangePercent *float64 `json:"max_change_percent,omitempty"`
}

// Summary aggregates change percentages across every analyzed city-disaster
// pairing. Averages consider only pairings where a change could be computed;
// a zero change still counts.
type Summary struct {
	DisastersAnalyzed int      `json:"disasters_analyzed"`
	CitiesAffected    int      `json:"cities_affected"`
	AvgChangePercent  *float64 `json:"avg_change_percent,omitempty"`
	MaxChangePercent  *float64 `json:"max_change_percent,omitempty"`
}

// Report is the complete correlation result.
type Report struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Params      Params           `json:"params"`
	Impacts     []DisasterImpact `json:"impacts"`
	Summary     Summary          `json:"summary"`
}

// Engine runs correlation analyses against the store.
type Engine struct {
	disasters DisasterLister
	aqi       AQIWindower
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewEngine creates the correlation engine.
func NewEngine(disasters DisasterLister, aqi AQIWindower, logger *slog.Logger, metrics *observability.Metrics) *Engine {
	return &Engine{disasters: disasters, aqi: aqi, logger: logger, metrics: metrics}
}

const defaultMaxDisasters = 50

// Correlate analyzes recent disasters against nearby AQI measurements.
// Disasters without a known occurrence time cannot be windowed and are
// skipped.
func (e *Engine) Correlate(ctx context.Context, p Params) (Report, error) {
	start := domain.Now()
	e.metrics.CorrelationRequests.Inc()
	defer func() {
		e.metrics.CorrelationDuration.Observe(domain.Now().Sub(start).Seconds())
	}()

	if p.RadiusKm <= 0 {
		return Report{}, fmt.Errorf("radius must be positive, got %v", p.RadiusKm)
	}
	if p.MaxDisasters <= 0 {
		p.MaxDisasters = defaultMaxDisasters
	}

	query := DisasterQuery{Limit: p.MaxDisasters}
	if p.DisasterID != 0 {
		query.ID = p.DisasterID
	} else {
		// Only disasters recent enough for their post window to overlap
		// stored data are interesting; going back one pre window further
		// than the oldest conceivable overlap keeps the list bounded.
		since := start.Add(-(p.PreWindow + p.PostWindow + 30*24*time.Hour))
		query.Kind = p.Kind
		query.Severity = p.Severity
		query.Since = &since
	}
	disasters, err := e.disasters.List(ctx, query)
	if err != nil {
		return Report{}, fmt.Errorf("list disasters: %w", err)
	}
	if p.DisasterID != 0 && len(disasters) == 0 {
		return Report{}, &domain.ValidationError{Field: "disaster_id", Reason: fmt.Sprintf("no disaster with id %d", p.DisasterID)}
	}

	report := Report{GeneratedAt: start, Params: p}
	var changes []float64

	for _, d := range disasters {
		if d.OccurredAt == nil {
			continue
		}
		impact, err := e.analyzeDisaster(ctx, d, p)
		if err != nil {
			return Report{}, err
		}
		report.Summary.DisastersAnalyzed++
		report.Impacts = append(report.Impacts, impact)
		for _, c := range impact.Cities {
			report.Summary.CitiesAffected++
			if c.ChangePercent != nil {
				changes = append(changes, *c.ChangePercent)
			}
		}
	}

	report.Summary.AvgChangePercent = domain.Mean(changes)
	report.Summary.MaxChangePercent = domain.Max(changes)
	return report, nil
}

func (e *Engine) analyzeDisaster(ctx context.Context, d domain.Disaster, p Params) (DisasterImpact, error) {
	t := d.OccurredAt.UTC()
	box := boundingBox(d.Latitude, d.Longitude, p.RadiusKm)

	measurements, err := e.aqi.InBounds(ctx, box, t.Add(-p.PreWindow), t.Add(p.PostWindow))
	if err != nil {
		return DisasterImpact{}, fmt.Errorf("aqi window for disaster %d: %w", d.ID, err)
	}

	groups := groupByCity(measurements, p.StrictCityGrouping)
	impact := DisasterImpact{Disaster: d}

	for _, g := range groups {
		city := e.compareWindows(g, t)
		// A city is only reported when the disaster's aftermath is
		// observable: at least one post-event AQI value.
		if city.PostSamples == 0 {
			continue
		}
		impact.Cities = append(impact.Cities, city)
	}

	sort.Slice(impact.Cities, func(i, j int) bool {
		return impact.Cities[i].CityName < impact.Cities[j].CityName
	})

	impact.Summary.CitiesAffected = len(impact.Cities)
	var changes []float64
	for _, c := range impact.Cities {
		if c.ChangePercent != nil {
			changes = append(changes, *c.ChangePercent)
		}
	}
	impact.Summary.AvgChangePercent = domain.Mean(changes)
	impact.Summary.MaxChangePercent = domain.Max(changes)
	return impact, nil
}

// compareWindows splits one city's measurements into the pre window
// [T-pre, T) and the post window [T, T+post], then averages the AQI values
// on each side. Measurements without an AQI value contribute nothing.
func (e *Engine) compareWindows(g cityGroup, t time.Time) CityImpact {
	city := CityImpact{CityID: g.cityID, CityName: g.cityName}

	var pre, post []float64
	for _, m := range g.measurements {
		if m.MeasuredAt == nil || m.AQIValue == nil {
			continue
		}
		at := m.MeasuredAt.UTC()
		switch {
		case at.Before(t):
			pre = append(pre, float64(*m.AQIValue))
		default:
			post = append(post, float64(*m.AQIValue))
		}
	}

	city.PreSamples = len(pre)
	city.PostSamples = len(post)
	city.PreAvgAQI = domain.Mean(pre)
	city.PostAvgAQI = domain.Mean(post)
	city.PostMaxAQI = domain.Max(post)
	city.ChangePercent = domain.PercentChange(city.PreAvgAQI, city.PostAvgAQI)
	return city
}

type cityGroup struct {
	cityID       *int64
	cityName     string
	measurements []domain.AQIMeasurement
}

// groupByCity buckets measurements by resolved city id, falling back to the
// lowercased city name. Strict mode drops unresolved measurements instead.
func groupByCity(measurements []domain.AQIMeasurement, strict bool) []cityGroup {
	index := make(map[string]int)
	var groups []cityGroup

	for _, m := range measurements {
		var key string
		switch {
		case m.CityID != nil:
			key = fmt.Sprintf("id:%d", *m.CityID)
		case strict:
			continue
		case m.CityName != "":
			key = "name:" + strings.ToLower(m.CityName)
		default:
			continue
		}

		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, cityGroup{cityID: m.CityID, cityName: m.CityName})
		}
		groups[i].measurements = append(groups[i].measurements, m)
	}
	return groups
}

// boundingBox builds the lat/lon window around a point. The longitude span
// widens toward the poles; within a tenth of a degree of the equator the
// formula's latitude term vanishes, so the box falls back to the latitude
// span there. Spans never exceed a hemisphere.
func boundingBox(lat, lon, radiusKm float64) domain.BoundingBox {
	latSpan := radiusKm / 111.0

	var lonSpan float64
	if math.Abs(lat) < 0.1 {
		lonSpan = latSpan
	} else {
		lonSpan = radiusKm / (111.0 * math.Abs(lat) / 90.0)
		if lonSpan > 180 {
			lonSpan = 180
		}
	}

	return domain.BoundingBox{
		MinLat: math.Max(lat-latSpan, -90),
		MaxLat: math.Min(lat+latSpan, 90),
		MinLon: math.Max(lon-lonSpan, -180),
		MaxLon: math.Min(lon+lonSpan, 180),
	}
}
