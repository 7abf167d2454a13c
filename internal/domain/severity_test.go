package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func f(v float64) *float64 { return &v }

func TestClassifySeverity(t *testing.T) {
	tests := []struct {
		name     string
		kind     DisasterKind
		metric   *float64
		expected Severity
	}{
		{"earthquake minor", KindEarthquake, f(2.1), SeverityLow},
		{"earthquake moderate boundary", KindEarthquake, f(3.0), SeverityModerate},
		{"earthquake high", KindEarthquake, f(5.5), SeverityHigh},
		{"earthquake just below top band", KindEarthquake, f(6.99), SeverityHigh},
		{"earthquake top band closed bound", KindEarthquake, f(7.0), SeverityVeryHigh},
		{"earthquake major", KindEarthquake, f(9.1), SeverityVeryHigh},

		{"hurricane tropical storm", KindHurricane, f(50), SeverityTropicalStorm},
		{"hurricane cat1 boundary", KindHurricane, f(64), SeverityCategory1},
		{"hurricane cat2", KindHurricane, f(90), SeverityCategory2},
		{"hurricane cat3", KindHurricane, f(100), SeverityCategory3},
		{"hurricane cat4", KindHurricane, f(120), SeverityCategory4},
		{"hurricane cat5 boundary", KindHurricane, f(137), SeverityCategory5},

		{"tsunami low", KindTsunami, f(0.3), SeverityLow},
		{"tsunami moderate boundary", KindTsunami, f(0.5), SeverityModerate},
		{"tsunami high", KindTsunami, f(3.2), SeverityHigh},
		{"tsunami very high boundary", KindTsunami, f(5.0), SeverityVeryHigh},

		{"wildfire low", KindWildfire, f(300), SeverityLow},
		{"wildfire moderate", KindWildfire, f(325), SeverityModerate},
		{"wildfire high", KindWildfire, f(345), SeverityHigh},
		{"wildfire very high", KindWildfire, f(367), SeverityVeryHigh},

		{"nil metric", KindEarthquake, nil, SeverityUnknown},
		{"volcano has no metric scale", KindVolcano, f(10), SeverityUnknown},
		{"flood classified by alert level, not here", KindFlood, f(2), SeverityUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifySeverity(tt.kind, tt.metric))
		})
	}
}

func TestSeverityFromAlertLevel(t *testing.T) {
	assert.Equal(t, SeverityVeryHigh, SeverityFromAlertLevel("Red"))
	assert.Equal(t, SeverityHigh, SeverityFromAlertLevel("orange"))
	assert.Equal(t, SeverityModerate, SeverityFromAlertLevel("GREEN"))
	assert.Equal(t, SeverityLow, SeverityFromAlertLevel(""))
	assert.Equal(t, SeverityLow, SeverityFromAlertLevel("purple"))
}
