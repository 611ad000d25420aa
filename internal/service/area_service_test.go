package service

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"enforcement-analytics/internal/model"
	"enforcement-analytics/internal/repository"
)

func TestShareMetricsCloseToHundred(t *testing.T) {
	t.Parallel()

	rows := []repository.LabelCount{
		{Label: "HONDA", Count: 1},
		{Label: "TOYOTA", Count: 1},
		{Label: "FORD", Count: 1},
	}
	shares := shareMetrics(rows)
	require.Len(t, shares, 3)

	var sum float64
	for _, share := range shares {
		sum += share.Percentage
	}
	assert.InDelta(t, 100, sum, 0.1)
}

func TestShareMetricsClosureManyLabels(t *testing.T) {
	t.Parallel()

	// 300 equal labels would sum to 99.0 under independent per-entry
	// rounding (each 0.3333 -> 0.33); apportionment must close exactly.
	rows := make([]repository.LabelCount, 300)
	for i := range rows {
		rows[i] = repository.LabelCount{Label: fmt.Sprintf("MAKE-%03d", i), Count: 1}
	}
	shares := shareMetrics(rows)
	require.Len(t, shares, 300)

	var sum float64
	for _, share := range shares {
		assert.True(t, share.Percentage == 0.33 || share.Percentage == 0.34, "percentage %v", share.Percentage)
		sum += share.Percentage
	}
	assert.InDelta(t, 100, sum, 1e-9)
}

func TestShareMetricsSkewedClosure(t *testing.T) {
	t.Parallel()

	rows := []repository.LabelCount{
		{Label: "HONDA", Count: 7},
		{Label: "TOYOTA", Count: 7},
		{Label: "FORD", Count: 7},
		{Label: "JEEP", Count: 7},
		{Label: "KIA", Count: 7},
		{Label: "BMW", Count: 7},
		{Label: "AUDI", Count: 1},
	}
	shares := shareMetrics(rows)

	var sum float64
	for _, share := range shares {
		sum += share.Percentage
	}
	assert.InDelta(t, 100, sum, 1e-9)
}

func TestShareMetricsZeroTotal(t *testing.T) {
	t.Parallel()

	shares := shareMetrics([]repository.LabelCount{{Label: "HONDA", Count: 0}})
	assert.Empty(t, shares)

	shares = shareMetrics(nil)
	assert.NotNil(t, shares)
	assert.Empty(t, shares)
}

func TestFoldMethodCounts(t *testing.T) {
	t.Parallel()

	rows := []repository.LabelCount{
		{Label: "E", Count: 10},
		{Label: "F - radar moving", Count: 5},
		{Label: "Q", Count: 7},
		{Label: "A", Count: 2},
		{Label: "Z", Count: 1},
		{Label: "", Count: 3},
	}
	folded := foldMethodCounts(rows)

	byLabel := make(map[string]int64)
	for _, row := range folded {
		byLabel[row.Label] = row.Count
	}
	assert.Equal(t, int64(15), byLabel["radar"])
	assert.Equal(t, int64(7), byLabel["laser"])
	assert.Equal(t, int64(2), byLabel["patrol"])
	assert.Equal(t, int64(4), byLabel["unknown"])

	// Category order is fixed so payloads are byte-stable.
	assert.Equal(t, "radar", folded[0].Label)
}

func TestHourDistributionAlwaysTwentyFour(t *testing.T) {
	t.Parallel()

	dist := hourDistribution([]repository.HourDayCount{
		{Day: 1, Hour: 8, Count: 3},
		{Day: 2, Hour: 8, Count: 2},
		{Day: 3, Hour: 17, Count: 4},
		{Day: 0, Hour: 99, Count: 9}, // out of range, dropped
	})
	require.Len(t, dist, 24)
	assert.Equal(t, int64(5), dist[8].Count)
	assert.Equal(t, int64(4), dist[17].Count)
	assert.Equal(t, int64(0), dist[0].Count)
}

func TestDayDistributionAlwaysSeven(t *testing.T) {
	t.Parallel()

	dist := dayDistribution([]repository.HourDayCount{
		{Day: 5, Hour: 9, Count: 3},
		{Day: 5, Hour: 15, Count: 2},
	})
	require.Len(t, dist, 7)
	assert.Equal(t, int64(5), dist[5].Count)
}

func TestMonthlyDistributionExactlyTwelve(t *testing.T) {
	t.Parallel()

	t.Run("zero filled", func(t *testing.T) {
		t.Parallel()
		dist := monthlyDistribution(nil)
		require.Len(t, dist, 12)
		for i, entry := range dist {
			assert.Equal(t, i+1, entry.Period)
			assert.Equal(t, int64(0), entry.Count)
		}
	})

	t.Run("sparse input", func(t *testing.T) {
		t.Parallel()
		dist := monthlyDistribution([]repository.PeriodCountRow{
			{Period: 3, Count: 40},
			{Period: 12, Count: 7},
			{Period: 13, Count: 99}, // impossible month, dropped
		})
		require.Len(t, dist, 12)
		assert.Equal(t, int64(40), dist[2].Count)
		assert.Equal(t, int64(7), dist[11].Count)
		assert.Equal(t, int64(0), dist[0].Count)
	})
}

func TestEmptyAreaSummaryShape(t *testing.T) {
	t.Parallel()

	summary := emptyAreaSummary()
	assert.Equal(t, int64(0), summary.TotalStops)
	assert.Len(t, summary.HourDistribution, 24)
	assert.Len(t, summary.DayDistribution, 7)
	assert.Len(t, summary.Monthly, 12)
	assert.NotNil(t, summary.Vehicles)
	assert.NotNil(t, summary.Methods)
	assert.NotNil(t, summary.ChargeTypes)
	assert.NotNil(t, summary.Yearly)
	assert.Nil(t, summary.SpeedStats)
}

func TestSpeedRestricted(t *testing.T) {
	t.Parallel()

	minOver := 10
	assert.False(t, speedRestricted(model.SpatialFilter{}))
	assert.True(t, speedRestricted(model.SpatialFilter{SpeedOnly: true}))
	assert.True(t, speedRestricted(model.SpatialFilter{MinSpeedOver: &minOver}))
}

func TestRound2(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 3.33, round2(10.0/3.0))
	assert.Equal(t, 0.0, round2(math.NaN()))
	assert.Equal(t, 0.0, round2(math.Inf(1)))
	assert.Equal(t, 0.0, round2(math.Inf(-1)))
}
