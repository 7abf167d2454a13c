package domain

// Severity is an ordinal band derived from a kind-specific magnitude-like
// metric. Hurricanes use the Saffir-Simpson names; everything else uses the
// shared low..very_high scale.
type Severity string

const (
	SeverityUnknown  Severity = "unknown"
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
	SeverityVeryHigh Severity = "very_high"

	SeverityTropicalStorm Severity = "tropical_storm"
	SeverityCategory1     Severity = "category_1"
	SeverityCategory2     Severity = "category_2"
	SeverityCategory3     Severity = "category_3"
	SeverityCategory4     Severity = "category_4"
	SeverityCategory5     Severity = "category_5"
)

// ClassifySeverity maps a kind's primary metric to its severity band.
// Thresholds are fixed per kind with closed lower bounds: a value exactly on
// a boundary belongs to the higher band (magnitude 7.0 is very_high).
// A nil metric, or a kind without a numeric metric, yields SeverityUnknown;
// flood severity comes from the GDACS alert level inside the adapter.
//
// Metrics per kind: earthquake magnitude (Richter/Mw), hurricane sustained
// wind (knots, Saffir-Simpson breakpoints), tsunami max water height (meters),
// wildfire hotspot brightness (Kelvin).
func ClassifySeverity(kind DisasterKind, metric *float64) Severity {
	if metric == nil {
		return SeverityUnknown
	}
	m := *metric

	switch kind {
	case KindEarthquake:
		switch {
		case m >= 7:
			return SeverityVeryHigh
		case m >= 5:
			return SeverityHigh
		case m >= 3:
			return SeverityModerate
		default:
			return SeverityLow
		}
	case KindHurricane:
		switch {
		case m >= 137:
			return SeverityCategory5
		case m >= 113:
			return SeverityCategory4
		case m >= 96:
			return SeverityCategory3
		case m >= 83:
			return SeverityCategory2
		case m >= 64:
			return SeverityCategory1
		default:
			return SeverityTropicalStorm
		}
	case KindTsunami:
		switch {
		case m >= 5:
			return SeverityVeryHigh
		case m >= 2:
			return SeverityHigh
		case m >= 0.5:
			return SeverityModerate
		default:
			return SeverityLow
		}
	case KindWildfire:
		switch {
		case m >= 360:
			return SeverityVeryHigh
		case m >= 340:
			return SeverityHigh
		case m >= 320:
			return SeverityModerate
		default:
			return SeverityLow
		}
	default:
		return SeverityUnknown
	}
}

// SeverityFromAlertLevel maps a GDACS alert level (red/orange/green) to a
// severity band. Unrecognized levels fall back to low.
func SeverityFromAlertLevel(level string) Severity {
	switch level {
	case "Red", "red", "RED":
		return SeverityVeryHigh
	case "Orange", "orange", "ORANGE":
		return SeverityHigh
	case "Green", "green", "GREEN":
		return SeverityModerate
	default:
		return SeverityLow
	}
}
