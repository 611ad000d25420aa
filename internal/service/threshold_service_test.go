package service

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"enforcement-analytics/internal/model"
	"enforcement-analytics/internal/repository"
)

func TestBuildHistogramFixedOrder(t *testing.T) {
	t.Parallel()

	rows := []repository.LabelCount{
		{Label: "30+", Count: 5},
		{Label: "10-14", Count: 45},
		{Label: "5-9", Count: 50},
	}
	buckets := buildHistogram(rows)

	want := []model.SpeedBucket{
		{Range: "1-4", Count: 0, Percentage: 0, CumulativePc: 0},
		{Range: "5-9", Count: 50, Percentage: 50, CumulativePc: 50},
		{Range: "10-14", Count: 45, Percentage: 45, CumulativePc: 95},
		{Range: "15-19", Count: 0, Percentage: 0, CumulativePc: 95},
		{Range: "20-24", Count: 0, Percentage: 0, CumulativePc: 95},
		{Range: "25-29", Count: 0, Percentage: 0, CumulativePc: 95},
		{Range: "30+", Count: 5, Percentage: 5, CumulativePc: 100},
	}
	if diff := cmp.Diff(want, buckets); diff != "" {
		t.Fatalf("histogram mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildHistogramEmpty(t *testing.T) {
	t.Parallel()

	buckets := buildHistogram(nil)
	require.Len(t, buckets, 7)
	for _, b := range buckets {
		assert.Equal(t, int64(0), b.Count)
		assert.Equal(t, 0.0, b.Percentage)
		assert.Equal(t, 0.0, b.CumulativePc)
	}
}

func TestRankLocations(t *testing.T) {
	t.Parallel()

	rows := []repository.GridSpeedRow{
		{Lat: 39.01, Lng: -77.01, Count: 30, Avg: 18.0, Min: 10},
		{Lat: 39.02, Lng: -77.02, Count: 25, Avg: 9.5, Min: 5},
		{Lat: 39.03, Lng: -77.03, Count: 40, Avg: 13.0, Min: 7},
	}
	strict, lenient := rankLocations(rows, 2, 12, 15)

	require.Len(t, strict, 2)
	assert.Equal(t, "39.02,-77.02", strict[0].GridID)
	assert.Equal(t, model.StrictnessStrict, strict[0].Strictness)
	assert.Equal(t, "39.03,-77.03", strict[1].GridID)
	assert.Equal(t, model.StrictnessModerate, strict[1].Strictness)

	require.Len(t, lenient, 2)
	assert.Equal(t, "39.01,-77.01", lenient[0].GridID)
	assert.Equal(t, model.StrictnessLenient, lenient[0].Strictness)
}

func TestRankLocationsFewerThanRankSize(t *testing.T) {
	t.Parallel()

	rows := []repository.GridSpeedRow{{Lat: 39.01, Lng: -77.01, Count: 30, Avg: 11, Min: 6}}
	strict, lenient := rankLocations(rows, 10, 12, 15)
	assert.Len(t, strict, 1)
	assert.Len(t, lenient, 1)
}

func TestBuildRecommendations(t *testing.T) {
	t.Parallel()

	t.Run("typical", func(t *testing.T) {
		t.Parallel()
		rec := buildRecommendations(model.Percentiles{P10: 11.4}, 5000)
		assert.Equal(t, 11, rec.General)
		assert.Equal(t, 9, rec.SafeBuffer)
		assert.Contains(t, rec.Insight, "5000")
	})

	t.Run("buffer floor", func(t *testing.T) {
		t.Parallel()
		rec := buildRecommendations(model.Percentiles{P10: 6}, 200)
		assert.Equal(t, 6, rec.General)
		assert.Equal(t, 5, rec.SafeBuffer)
	})

	t.Run("no samples", func(t *testing.T) {
		t.Parallel()
		rec := buildRecommendations(model.Percentiles{}, 0)
		assert.Equal(t, 5, rec.SafeBuffer)
		assert.Contains(t, rec.Insight, "not enough")
	})
}

func TestEmptyThresholdProfileShape(t *testing.T) {
	t.Parallel()

	profile := emptyThresholdProfile()
	assert.Equal(t, int64(0), profile.SampleCount)
	assert.Len(t, profile.Histogram, 7)
	assert.NotNil(t, profile.ByMethod)
	assert.NotNil(t, profile.StrictLocations)
	assert.NotNil(t, profile.LenientLocations)
	assert.NotNil(t, profile.BySpeedLimit)
}
