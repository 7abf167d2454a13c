package correlate

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/worldpulse/hazard-aqi-service/internal/domain"
)

// LatestAQIReader supplies each requested city's most recent measurement,
// optionally as of a cutoff instant.
type LatestAQIReader interface {
	LatestByCity(ctx context.Context, cityNames []string, before *time.Time) ([]domain.AQIMeasurement, error)
}

// CityReading is one city's entry in a comparison, ranked best air first.
type CityReading struct {
	CityName    string     `json:"city_name"`
	AQIValue    *int       `json:"aqi_value,omitempty"`
	AQICategory string     `json:"aqi_category,omitempty"`
	MeasuredAt  *time.Time `json:"measured_at,omitempty"`
	Source      string     `json:"source"`
}

// Comparison ranks the requested cities by their latest AQI.
type Comparison struct {
	GeneratedAt time.Time     `json:"generated_at"`
	AsOf        *time.Time    `json:"as_of,omitempty"`
	Cities      []CityReading `json:"cities"`
	Missing     []string      `json:"missing_cities,omitempty"`
	BestCity    string        `json:"best_city,omitempty"`
	WorstCity   string        `json:"worst_city,omitempty"`
	AvgAQI      *float64      `json:"avg_aqi,omitempty"`
}

// CompareCities ranks cities by their most recent AQI value, best air first.
// A non-nil before pins "most recent" to that instant. Cities without any
// stored measurement are reported under Missing; cities whose latest
// measurement has no AQI value rank last.
func (e *Engine) CompareCities(ctx context.Context, latest LatestAQIReader, cityNames []string, before *time.Time) (Comparison, error) {
	if len(cityNames) < 2 {
		return Comparison{}, fmt.Errorf("need at least two cities to compare, got %d", len(cityNames))
	}

	measurements, err := latest.LatestByCity(ctx, cityNames, before)
	if err != nil {
		return Comparison{}, fmt.Errorf("latest aqi by city: %w", err)
	}

	found := make(map[string]domain.AQIMeasurement, len(measurements))
	for _, m := range measurements {
		found[strings.ToLower(m.CityName)] = m
	}

	cmp := Comparison{GeneratedAt: domain.Now(), AsOf: before}
	for _, name := range cityNames {
		m, ok := found[strings.ToLower(name)]
		if !ok {
			cmp.Missing = append(cmp.Missing, name)
			continue
		}
		cmp.Cities = append(cmp.Cities, CityReading{
			CityName:    m.CityName,
			AQIValue:    m.AQIValue,
			AQICategory: m.AQICategory,
			MeasuredAt:  m.MeasuredAt,
			Source:      m.Source,
		})
	}

	sort.SliceStable(cmp.Cities, func(i, j int) bool {
		a, b := cmp.Cities[i].AQIValue, cmp.Cities[j].AQIValue
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return *a < *b
	})

	var values []float64
	for _, c := range cmp.Cities {
		if c.AQIValue != nil {
			values = append(values, float64(*c.AQIValue))
		}
	}
	if len(values) > 0 {
		cmp.BestCity = cmp.Cities[0].CityName
		cmp.WorstCity = lastRanked(cmp.Cities)
		cmp.AvgAQI = domain.Mean(values)
	}
	return cmp, nil
}

// lastRanked returns the worst-ranked city that actually has an AQI value.
func lastRanked(cities []CityReading) string {
	for i := len(cities) - 1; i >= 0; i-- {
		if cities[i].AQIValue != nil {
			return cities[i].CityName
		}
	}
	return ""
}
