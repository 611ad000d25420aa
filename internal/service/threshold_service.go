package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"enforcement-analytics/internal/cache"
	"enforcement-analytics/internal/config"
	"enforcement-analytics/internal/metrics"
	"enforcement-analytics/internal/model"
	"enforcement-analytics/internal/query"
	"enforcement-analytics/internal/repository"
)

var speedBucketOrder = []string{"1-4", "5-9", "10-14", "15-19", "20-24", "25-29", "30+"}

// ThresholdService profiles how far over the limit drivers are actually
// ticketed, globally and segmented by method, location, and posted
// limit. Its five sub-queries are independent narrow aggregates and run
// concurrently.
type ThresholdService struct {
	stops   *repository.StopRepository
	cfg     config.AnalyticsConfig
	reports *cache.ReportCache
	log     zerolog.Logger
}

func NewThresholdService(stops *repository.StopRepository, cfg config.AnalyticsConfig, reports *cache.ReportCache, log zerolog.Logger) *ThresholdService {
	return &ThresholdService{stops: stops, cfg: cfg, reports: reports, log: log}
}

func (s *ThresholdService) Analyze(ctx context.Context, filter model.SpatialFilter) (*model.ThresholdProfile, string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.PipelineTimeout)
	defer cancel()

	// Only the unfiltered profile is cached; filtered variants are rare
	// and cheap enough to recompute.
	cacheable := filter.IsZero()
	const cacheKey = "report:thresholds"
	if cacheable {
		var cached model.ThresholdProfile
		if s.reports.Get(ctx, cacheKey, &cached) {
			return &cached, "", nil
		}
	}

	if !s.stops.DatasetReady(ctx) {
		return emptyThresholdProfile(), datasetNotReadyNote, nil
	}

	pred := query.Compile(filter)

	var (
		histogram   []repository.LabelCount
		percentiles model.Percentiles
		samples     int64
		methodRows  []repository.MethodSpeedRow
		gridRows    []repository.GridSpeedRow
		limitRows   []repository.SpeedLimitRow
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.cfg.WorkerPoolSize)
	group.Go(func() error {
		var err error
		histogram, err = s.stops.SpeedHistogram(groupCtx, pred)
		return err
	})
	group.Go(func() error {
		var err error
		percentiles, samples, err = s.stops.SpeedPercentiles(groupCtx, pred)
		return err
	})
	group.Go(func() error {
		var err error
		methodRows, err = s.stops.MethodSpeedRows(groupCtx, pred)
		return err
	})
	group.Go(func() error {
		var err error
		gridRows, err = s.stops.GridSpeedRows(groupCtx, pred, s.cfg.LocationMinSamples)
		return err
	})
	group.Go(func() error {
		var err error
		limitRows, err = s.stops.SpeedLimitRows(groupCtx, pred, s.cfg.SpeedLimitMinSamples)
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, "", s.mapStoreErr(err)
	}
	metrics.SubQueriesTotal.WithLabelValues("threshold").Add(5)

	strict, lenient := rankLocations(gridRows, s.cfg.LocationRankSize, s.cfg.StrictAvgBelow, s.cfg.ModerateAvgBelow)

	profile := &model.ThresholdProfile{
		SampleCount:      samples,
		Histogram:        buildHistogram(histogram),
		Overall:          percentiles,
		ByMethod:         s.buildMethodThresholds(methodRows),
		StrictLocations:  strict,
		LenientLocations: lenient,
		BySpeedLimit:     buildSpeedLimitThresholds(limitRows),
		Recommendations:  buildRecommendations(percentiles, samples),
	}

	if cacheable {
		s.reports.Set(ctx, cacheKey, profile)
	}
	return profile, "", nil
}

func (s *ThresholdService) mapStoreErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrQueryTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrUpstreamTimeout
	default:
		return err
	}
}

// buildHistogram emits the buckets in fixed order with percentage and
// cumulative percentage over the observed samples.
func buildHistogram(rows []repository.LabelCount) []model.SpeedBucket {
	counts := make(map[string]int64, len(rows))
	var total int64
	for _, row := range rows {
		counts[row.Label] = row.Count
		total += row.Count
	}

	buckets := make([]model.SpeedBucket, 0, len(speedBucketOrder))
	var cumulative float64
	for _, label := range speedBucketOrder {
		count := counts[label]
		pct := 0.0
		if total > 0 {
			pct = float64(count) / float64(total) * 100
		}
		cumulative += pct
		buckets = append(buckets, model.SpeedBucket{
			Range:        label,
			Count:        count,
			Percentage:   round2(pct),
			CumulativePc: round2(cumulative),
		})
	}
	return buckets
}

func (s *ThresholdService) buildMethodThresholds(rows []repository.MethodSpeedRow) []model.MethodThreshold {
	result := make([]model.MethodThreshold, 0, len(rows))
	for _, row := range rows {
		result = append(result, model.MethodThreshold{
			Method:         model.MethodCategory(row.Method),
			Count:          row.Count,
			AvgSpeedOver:   round2(row.Avg),
			MedianSpeed:    round2(row.Median),
			MinimumTypical: round2(row.P10),
			Strictness:     model.StrictnessFor(row.Avg, s.cfg.StrictAvgBelow, s.cfg.ModerateAvgBelow),
		})
	}
	return result
}

// rankLocations splits qualifying grid cells into the strictest and
// most lenient groups by average speed-over.
func rankLocations(rows []repository.GridSpeedRow, rankSize int, strictBelow, moderateBelow float64) (strict, lenient []model.LocationThreshold) {
	converted := make([]model.LocationThreshold, 0, len(rows))
	for _, row := range rows {
		converted = append(converted, model.LocationThreshold{
			GridID:       model.GridID(row.Lat, row.Lng),
			Count:        row.Count,
			AvgSpeedOver: round2(row.Avg),
			MinSpeedOver: round2(row.Min),
			Strictness:   model.StrictnessFor(row.Avg, strictBelow, moderateBelow),
		})
	}

	byAvgAsc := make([]model.LocationThreshold, len(converted))
	copy(byAvgAsc, converted)
	sort.SliceStable(byAvgAsc, func(i, j int) bool { return byAvgAsc[i].AvgSpeedOver < byAvgAsc[j].AvgSpeedOver })

	strict = make([]model.LocationThreshold, 0, rankSize)
	lenient = make([]model.LocationThreshold, 0, rankSize)
	for i := 0; i < len(byAvgAsc) && i < rankSize; i++ {
		strict = append(strict, byAvgAsc[i])
	}
	for i := len(byAvgAsc) - 1; i >= 0 && len(lenient) < rankSize; i-- {
		lenient = append(lenient, byAvgAsc[i])
	}
	return strict, lenient
}

func buildSpeedLimitThresholds(rows []repository.SpeedLimitRow) []model.SpeedLimitThreshold {
	result := make([]model.SpeedLimitThreshold, 0, len(rows))
	for _, row := range rows {
		result = append(result, model.SpeedLimitThreshold{
			PostedLimit:  row.PostedLimit,
			Count:        row.Count,
			AvgSpeedOver: round2(row.Avg),
			MedianSpeed:  round2(row.Median),
		})
	}
	return result
}

// buildRecommendations: the general threshold is the rounded 10th
// percentile (nearly everyone ticketed was going at least that far
// over); the safe buffer backs off two more but never below 5.
func buildRecommendations(p model.Percentiles, samples int64) model.ThresholdRecommendations {
	general := int(math.Round(p.P10))
	buffer := general - 2
	if buffer < 5 {
		buffer = 5
	}
	insight := "not enough speed-violation samples for a recommendation"
	if samples > 0 {
		insight = fmt.Sprintf(
			"across %d speed violations, 90%% of tickets were written at %d+ over; staying under %d over is the conservative margin",
			samples, general, buffer)
	}
	return model.ThresholdRecommendations{
		General:    general,
		SafeBuffer: buffer,
		Insight:    insight,
	}
}

func emptyThresholdProfile() *model.ThresholdProfile {
	return &model.ThresholdProfile{
		Histogram:        buildHistogram(nil),
		ByMethod:         []model.MethodThreshold{},
		StrictLocations:  []model.LocationThreshold{},
		LenientLocations: []model.LocationThreshold{},
		BySpeedLimit:     []model.SpeedLimitThreshold{},
		Recommendations:  buildRecommendations(model.Percentiles{}, 0),
	}
}
