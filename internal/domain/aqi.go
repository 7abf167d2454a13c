package domain

// AQI category names follow the US EPA bands.
const (
	AQICategoryGood      = "good"
	AQICategoryModerate  = "moderate"
	AQICategoryUSG       = "unhealthy_for_sensitive_groups"
	AQICategoryUnhealthy = "unhealthy"
	AQICategoryVeryBad   = "very_unhealthy"
	AQICategoryHazardous = "hazardous"
)

// AQICategory maps an AQI value (0-500) to its EPA band name.
func AQICategory(aqi int) string {
	switch {
	case aqi <= 50:
		return AQICategoryGood
	case aqi <= 100:
		return AQICategoryModerate
	case aqi <= 150:
		return AQICategoryUSG
	case aqi <= 200:
		return AQICategoryUnhealthy
	case aqi <= 300:
		return AQICategoryVeryBad
	default:
		return AQICategoryHazardous
	}
}

// pm25Breakpoints holds the EPA PM2.5 (µg/m³, 24h) to AQI piecewise-linear
// mapping. Each row is concentration low/high and index low/high.
var pm25Breakpoints = []struct {
	cLow, cHigh float64
	iLow, iHigh int
}{
	{0, 12.0, 0, 50},
	{12.0, 35.4, 51, 100},
	{35.4, 55.4, 101, 150},
	{55.4, 150.4, 151, 200},
	{150.4, 250.4, 201, 300},
}

// AQIFromPM25 converts a PM2.5 concentration to an AQI value using the EPA
// breakpoint formula. Values beyond the top breakpoint are capped at 500.
// Some providers report AQI directly; this covers the ones that only report
// concentrations.
func AQIFromPM25(pm25 float64) int {
	if pm25 < 0 {
		return 0
	}
	for i, bp := range pm25Breakpoints {
		if pm25 <= bp.cHigh {
			if i == 0 {
				return int((pm25 / bp.cHigh) * float64(bp.iHigh))
			}
			frac := (pm25 - bp.cLow) / (bp.cHigh - bp.cLow)
			return int(frac*float64(bp.iHigh-bp.iLow)) + bp.iLow
		}
	}
	top := pm25Breakpoints[len(pm25Breakpoints)-1]
	aqi := int((pm25-top.cHigh)/(top.cHigh-top.cLow)*100) + 301
	if aqi > 500 {
		return 500
	}
	return aqi
}

// owIndexToAQI translates the OpenWeather 1-5 air quality index to a
// representative point on the 0-500 scale. Unrecognized values map to 100.
var owIndexToAQI = map[int]int{
	1: 25,  // good
	2: 75,  // fair
	3: 125, // moderate
	4: 225, // poor
	5: 400, // very poor
}

// AQIFromOpenWeatherIndex converts OpenWeather's coarse 1-5 index to the
// standard 0-500 scale.
func AQIFromOpenWeatherIndex(idx int) int {
	if v, ok := owIndexToAQI[idx]; ok {
		return v
	}
	return 100
}
