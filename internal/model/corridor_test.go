package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRiskLevelFor(t *testing.T) {
	t.Parallel()

	cases := []struct {
		stopsPerMile float64
		want         RiskLevel
	}{
		{0, RiskLow},
		{3.9, RiskLow},
		{4.0, RiskModerate},
		{7.9, RiskModerate},
		{8.0, RiskHigh},
		{14.9, RiskHigh},
		{15.0, RiskCritical},
		{15.1, RiskCritical},
		{250, RiskCritical},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, RiskLevelFor(tc.stopsPerMile, 15, 8, 4), "stops/mile %.1f", tc.stopsPerMile)
	}
}
