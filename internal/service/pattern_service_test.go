package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"enforcement-analytics/internal/config"
	"enforcement-analytics/internal/model"
	"enforcement-analytics/internal/repository"
)

func patternTestService() *PatternService {
	return &PatternService{cfg: config.AnalyticsConfig{
		PatternMinSamples:  50,
		HourClusterCutoff:  0.5,
		DayClusterCutoff:   0.4,
		MethodZoneRatio:    2.0,
		MethodZoneMinShare: 0.5,
		QuotaBoundaryRatio: 1.25,
	}}
}

func TestFoldCellSignatures(t *testing.T) {
	t.Parallel()

	rows := []repository.GridTemporalRow{
		{Lat: 39.08, Lng: -77.15, Day: 1, Hour: 7, Count: 10, Total: 60},
		{Lat: 39.08, Lng: -77.15, Day: 1, Hour: 8, Count: 50, Total: 60},
		{Lat: 39.10, Lng: -77.20, Day: 5, Hour: 17, Count: 80, Total: 80},
	}
	cells := foldCellSignatures(rows)
	require.Len(t, cells, 2)

	assert.Equal(t, "39.08,-77.15", cells[0].gridID)
	assert.Equal(t, int64(60), cells[0].total)
	assert.Equal(t, int64(50), cells[0].hours[8])
	assert.Equal(t, int64(60), cells[0].days[1])

	assert.Equal(t, "39.10,-77.20", cells[1].gridID)
	assert.Equal(t, int64(80), cells[1].days[5])
}

func TestTimeClusterPatterns(t *testing.T) {
	t.Parallel()

	s := patternTestService()

	clustered := cellSignature{gridID: "39.08,-77.15", total: 100}
	clustered.hours[7] = 30
	clustered.hours[8] = 30
	clustered.hours[9] = 20
	clustered.hours[14] = 20

	spread := cellSignature{gridID: "39.10,-77.20", total: 96}
	for hour := 0; hour < 24; hour++ {
		spread.hours[hour] = 4
	}

	patterns := s.timeClusterPatterns([]cellSignature{clustered, spread})
	require.Len(t, patterns, 1)

	p := patterns[0]
	assert.Equal(t, model.PatternTimeCluster, p.Type)
	assert.Equal(t, []string{"39.08,-77.15"}, p.Locations)
	// 0.8 share scaled by the 100/(4*50) sample factor.
	assert.InDelta(t, 0.4, p.Confidence, 0.001)
	assert.GreaterOrEqual(t, p.Confidence, 0.0)
	assert.LessOrEqual(t, p.Confidence, 1.0)
	assert.InDelta(t, 0.8, p.Statistics["top_hours_share"], 0.001)
	assert.InDelta(t, 0.5, p.Statistics["sample_factor"], 0.001)
	assert.Equal(t, 100.0, p.Statistics["sample_size"])
}

func TestPatternConfidenceScalesWithSampleSize(t *testing.T) {
	t.Parallel()

	s := patternTestService()

	small := cellSignature{gridID: "39.08,-77.15", total: 60}
	small.hours[7] = 20
	small.hours[8] = 20
	small.hours[9] = 20

	large := cellSignature{gridID: "39.10,-77.20", total: 6000}
	large.hours[7] = 2000
	large.hours[8] = 2000
	large.hours[9] = 2000

	patterns := s.timeClusterPatterns([]cellSignature{small, large})
	require.Len(t, patterns, 2)

	// Identical concentration, more data: strictly higher confidence,
	// saturating at the raw share.
	assert.Greater(t, patterns[1].Confidence, patterns[0].Confidence)
	assert.InDelta(t, 0.3, patterns[0].Confidence, 0.001)
	assert.InDelta(t, 1.0, patterns[1].Confidence, 0.001)
	assert.InDelta(t, 1.0, patterns[1].Statistics["sample_factor"], 0.001)
}

func TestDayPatterns(t *testing.T) {
	t.Parallel()

	s := patternTestService()

	weekend := cellSignature{gridID: "39.08,-77.15", total: 100}
	weekend.days[0] = 30
	weekend.days[6] = 30
	weekend.days[2] = 10
	weekend.days[3] = 10
	weekend.days[4] = 10
	weekend.days[5] = 10

	patterns := s.dayPatterns([]cellSignature{weekend})
	require.Len(t, patterns, 1)
	assert.Equal(t, model.PatternDayOfWeek, patterns[0].Type)
	assert.Contains(t, patterns[0].Description, "Sunday")
	assert.Contains(t, patterns[0].Description, "Saturday")
	// 0.6 share scaled by the 100/(4*50) sample factor.
	assert.InDelta(t, 0.3, patterns[0].Confidence, 0.001)
	assert.InDelta(t, 0.6, patterns[0].Statistics["top_days_share"], 0.001)
}

func TestMethodZonePatterns(t *testing.T) {
	t.Parallel()

	s := patternTestService()

	// System-wide: laser is 20% of stops.
	baseline := []repository.LabelCount{
		{Label: "E", Count: 800},
		{Label: "Q", Count: 200},
	}
	rows := []repository.GridMethodRow{
		// 75% laser locally, 3.75x the 20% baseline: qualifies.
		{Lat: 39.08, Lng: -77.15, Method: "laser", Count: 75, Total: 100},
		{Lat: 39.08, Lng: -77.15, Method: "radar", Count: 25, Total: 100},
		// Dominant but matches the baseline mix: does not qualify.
		{Lat: 39.10, Lng: -77.20, Method: "radar", Count: 80, Total: 100},
	}

	patterns := s.methodZonePatterns(rows, baseline)
	require.Len(t, patterns, 1)

	p := patterns[0]
	assert.Equal(t, model.PatternMethodZone, p.Type)
	assert.Equal(t, []string{"39.08,-77.15"}, p.Locations)
	assert.InDelta(t, 0.75, p.Statistics["local_share"], 0.001)
	assert.InDelta(t, 0.2, p.Statistics["baseline_share"], 0.001)
	assert.InDelta(t, 3.75, p.Statistics["lift"], 0.001)
	assert.InDelta(t, 0.5, p.Statistics["sample_factor"], 0.001)
	assert.InDelta(t, 0.38, p.Confidence, 0.001)
}

func TestMethodZoneIgnoresUnknown(t *testing.T) {
	t.Parallel()

	s := patternTestService()
	rows := []repository.GridMethodRow{
		{Lat: 39.08, Lng: -77.15, Method: "unknown", Count: 90, Total: 100},
	}
	patterns := s.methodZonePatterns(rows, nil)
	assert.Empty(t, patterns)
}

func TestQuotaEffectPattern(t *testing.T) {
	t.Parallel()

	s := patternTestService()

	t.Run("detected", func(t *testing.T) {
		t.Parallel()
		var rows []repository.PeriodCountRow
		for day := 1; day <= 31; day++ {
			count := int64(100)
			if day >= 25 || day <= 2 {
				count = 150
			}
			rows = append(rows, repository.PeriodCountRow{Period: day, Count: count})
		}
		pattern, ok := s.quotaEffectPattern(rows)
		require.True(t, ok)
		assert.Equal(t, model.PatternQuotaEffect, pattern.Type)
		assert.InDelta(t, 1.5, pattern.Statistics["ratio"], 0.001)
		assert.GreaterOrEqual(t, pattern.Confidence, 0.0)
		assert.LessOrEqual(t, pattern.Confidence, 1.0)
	})

	t.Run("flat volume", func(t *testing.T) {
		t.Parallel()
		var rows []repository.PeriodCountRow
		for day := 1; day <= 31; day++ {
			rows = append(rows, repository.PeriodCountRow{Period: day, Count: 100})
		}
		_, ok := s.quotaEffectPattern(rows)
		assert.False(t, ok)
	})

	t.Run("no data", func(t *testing.T) {
		t.Parallel()
		_, ok := s.quotaEffectPattern(nil)
		assert.False(t, ok)
	})
}

func TestTopIndexes(t *testing.T) {
	t.Parallel()

	counts := []int64{5, 20, 20, 1, 30}
	top := topIndexes(counts, 3)
	// Ties break by index order for determinism.
	assert.Equal(t, []int{4, 1, 2}, top)

	assert.Len(t, topIndexes(counts, 99), len(counts))
}

func TestPeakHours(t *testing.T) {
	t.Parallel()

	var hours [24]int64
	for hour := range hours {
		hours[hour] = 10
	}
	hours[8] = 40
	hours[17] = 35

	peaks := peakHours(hours)
	assert.Equal(t, []int{8, 17}, peaks)
}

func TestPeakHoursFallback(t *testing.T) {
	t.Parallel()

	var hours [24]int64
	for hour := range hours {
		hours[hour] = 10
	}
	hours[12] = 11

	// Nothing clears the 1.5x bar; the busiest hour is still reported.
	assert.Equal(t, []int{12}, peakHours(hours))

	var empty [24]int64
	assert.Empty(t, peakHours(empty))
}

func TestPeakDays(t *testing.T) {
	t.Parallel()

	var days [7]int64
	for day := range days {
		days[day] = 10
	}
	days[5] = 30

	assert.Equal(t, []string{"Friday"}, peakDays(days))
}

func TestClampUnit(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.0, clampUnit(-0.5))
	assert.Equal(t, 1.0, clampUnit(1.5))
	assert.Equal(t, 0.33, clampUnit(1.0/3.0))
}

func TestEmptyPatternReportShape(t *testing.T) {
	t.Parallel()

	report := emptyPatternReport(50)
	assert.NotNil(t, report.Patterns)
	assert.Empty(t, report.Patterns)
	assert.Equal(t, int64(50), report.Summary.SampleFloor)
	assert.False(t, report.Summary.QuotaEffectDetected)
}
