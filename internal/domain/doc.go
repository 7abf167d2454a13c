// Package domain models disaster events and air-quality measurements ingested
// from heterogeneous public feeds.
//
// # Data Sources
//
// Disaster records come from six providers, each with its own protocol and
// schema, normalized by the adapters in internal/source:
//
//	USGS FDSN event service  — earthquakes, GeoJSON FeatureCollection
//	GDACS GeoRSS feed        — floods, namespaced RSS/XML
//	NOAA IBTrACS archive     — hurricanes, streamed CSV
//	NOAA NCEI hazard service — tsunamis, JSON
//	NASA EONET               — volcanic activity, JSON
//	NASA FIRMS               — wildfire hotspots, per-tile CSV
//
// Air-quality measurements come from OpenAQ (station latest values) and the
// OpenWeather air pollution API (per-city queries).
//
// # Natural Keys
//
// Every record carries a (source, source_id) pair as its natural key. The
// source_id is derived deterministically from the provider payload — USGS
// event IDs, IBTrACS SID + ISO_TIME, FIRMS lat_lon_date_time, and so on —
// never generated randomly, so refetching the same upstream event always
// resolves to the same stored row.
//
// # Severity Bands
//
// Severity is an ordinal label derived from a kind-specific metric via fixed
// thresholds with closed lower bounds (a magnitude of exactly 7.0 is in the
// top earthquake band):
//
//	earthquake: <3 low | <5 moderate | <7 high | ≥7 very_high   (magnitude)
//	hurricane:  Saffir-Simpson tropical_storm through category_5 (wind, knots)
//	tsunami:    <0.5 low | <2 moderate | <5 high | ≥5 very_high  (height, m)
//	wildfire:   <320 low | <340 moderate | <360 high | ≥360 very_high (K)
//
// Floods take their band from the GDACS alert level (red/orange/green);
// volcanic events have no numeric metric and classify as unknown.
//
// # AQI Conventions
//
// AQI values are on the US EPA 0-500 scale. Providers that only report
// pollutant concentrations get an AQI derived from PM2.5 via the EPA
// breakpoint formula; OpenWeather's coarse 1-5 index is mapped onto
// representative points of the same scale.
package domain
