package domain

import (
	"fmt"
	"time"
)

// DisasterKind identifies the disaster taxonomy a record belongs to.
type DisasterKind string

const (
	KindEarthquake DisasterKind = "earthquake"
	KindFlood      DisasterKind = "flood"
	KindHurricane  DisasterKind = "hurricane"
	KindTsunami    DisasterKind = "tsunami"
	KindVolcano    DisasterKind = "volcano"
	KindWildfire   DisasterKind = "wildfire"
)

// KnownKinds lists every kind a source adapter may emit.
var KnownKinds = []DisasterKind{
	KindEarthquake, KindFlood, KindHurricane, KindTsunami, KindVolcano, KindWildfire,
}

// NormalizedEvent is the common shape every disaster source adapter produces.
// It exists only in memory between fetch and upsert; the persisted form is
// Disaster. Source plus SourceID is the natural key, and SourceID must be
// deterministically derived from the provider payload so repeated fetches of
// the same upstream event collapse into one stored record.
type NormalizedEvent struct {
	Kind        DisasterKind `json:"disaster_type"`
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Latitude    float64      `json:"latitude"`
	Longitude   float64      `json:"longitude"`
	OccurredAt  *time.Time   `json:"occurred_at,omitempty"`
	Magnitude   *float64     `json:"magnitude,omitempty"`
	Severity    Severity     `json:"severity,omitempty"`
	Status      string       `json:"status,omitempty"`
	Source      string       `json:"source"`
	SourceID    string       `json:"source_id"`
	URL         string       `json:"url,omitempty"`
}

// Validate checks the constraints an event must satisfy before persistence.
// Events failing validation are rejected, never stored.
func (e NormalizedEvent) Validate() error {
	if e.Source == "" {
		return &ValidationError{Field: "source", Reason: "missing"}
	}
	if e.SourceID == "" {
		return &ValidationError{Field: "source_id", Reason: "missing"}
	}
	if e.Latitude < -90 || e.Latitude > 90 {
		return &ValidationError{Field: "latitude", Reason: fmt.Sprintf("out of range: %v", e.Latitude)}
	}
	if e.Longitude < -180 || e.Longitude > 180 {
		return &ValidationError{Field: "longitude", Reason: fmt.Sprintf("out of range: %v", e.Longitude)}
	}
	return nil
}

// AQIObservation is the common shape air-quality source adapters produce.
// CityID is resolved later against the cities reference table; adapters only
// know the provider's city name.
type AQIObservation struct {
	CityName    string     `json:"city_name,omitempty"`
	Latitude    float64    `json:"latitude"`
	Longitude   float64    `json:"longitude"`
	MeasuredAt  *time.Time `json:"measured_at,omitempty"`
	AQIValue    *int       `json:"aqi_value,omitempty"`
	AQICategory string     `json:"aqi_category,omitempty"`
	PM25        *float64   `json:"pm25,omitempty"`
	PM10        *float64   `json:"pm10,omitempty"`
	O3          *float64   `json:"o3,omitempty"`
	NO2         *float64   `json:"no2,omitempty"`
	CO          *float64   `json:"co,omitempty"`
	SO2         *float64   `json:"so2,omitempty"`
	Source      string     `json:"source"`
	SourceID    string     `json:"source_id"`
	URL         string     `json:"url,omitempty"`
}

// Validate mirrors NormalizedEvent.Validate for air-quality records.
func (o AQIObservation) Validate() error {
	if o.Source == "" {
		return &ValidationError{Field: "source", Reason: "missing"}
	}
	if o.SourceID == "" {
		return &ValidationError{Field: "source_id", Reason: "missing"}
	}
	if o.Latitude < -90 || o.Latitude > 90 {
		return &ValidationError{Field: "latitude", Reason: fmt.Sprintf("out of range: %v", o.Latitude)}
	}
	if o.Longitude < -180 || o.Longitude > 180 {
		return &ValidationError{Field: "longitude", Reason: fmt.Sprintf("out of range: %v", o.Longitude)}
	}
	return nil
}

// Disaster is the persisted form of a NormalizedEvent. The store keeps a
// PostGIS point column in lockstep with Latitude/Longitude on every write.
type Disaster struct {
	ID            int64        `json:"id"`
	Kind          DisasterKind `json:"disaster_type"`
	Title         string       `json:"title,omitempty"`
	Description   string       `json:"description,omitempty"`
	Latitude      float64      `json:"latitude"`
	Longitude     float64      `json:"longitude"`
	OccurredAt    *time.Time   `json:"occurred_at,omitempty"`
	Magnitude     *float64     `json:"magnitude,omitempty"`
	Severity      Severity     `json:"severity,omitempty"`
	Status        string       `json:"status,omitempty"`
	Source        string       `json:"source"`
	SourceID      string       `json:"source_id"`
	URL           string       `json:"url,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
	DataFetchedAt *time.Time   `json:"data_fetched_at,omitempty"`
}

// AQIMeasurement is the persisted form of an AQIObservation.
type AQIMeasurement struct {
	ID            int64      `json:"id"`
	CityID        *int64     `json:"city_id,omitempty"`
	CityName      string     `json:"city_name,omitempty"`
	Latitude      float64    `json:"latitude"`
	Longitude     float64    `json:"longitude"`
	MeasuredAt    *time.Time `json:"measured_at,omitempty"`
	AQIValue      *int       `json:"aqi_value,omitempty"`
	AQICategory   string     `json:"aqi_category,omitempty"`
	PM25          *float64   `json:"pm25,omitempty"`
	PM10          *float64   `json:"pm10,omitempty"`
	O3            *float64   `json:"o3,omitempty"`
	NO2           *float64   `json:"no2,omitempty"`
	CO            *float64   `json:"co,omitempty"`
	SO2           *float64   `json:"so2,omitempty"`
	Source        string     `json:"source"`
	SourceID      string     `json:"source_id"`
	URL           string     `json:"url,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DataFetchedAt *time.Time `json:"data_fetched_at,omitempty"`
}

// City is a read-only reference entity used to attach a city_id to
// measurements by name match.
type City struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Country     string  `json:"country"`
	CountryCode string  `json:"country_code,omitempty"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Population  *int64  `json:"population,omitempty"`
	Timezone    string  `json:"timezone,omitempty"`
}

// BoundingBox is a planar latitude/longitude window.
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// Contains reports whether the point falls inside the box (closed bounds).
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// TimeRange is a half-open [From, To) fetch window passed to source adapters.
type TimeRange struct {
	From time.Time
	To   time.Time
}
