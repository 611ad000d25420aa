package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"enforcement-analytics/internal/config"
	"enforcement-analytics/internal/metrics"
	"enforcement-analytics/internal/model"
	"enforcement-analytics/internal/query"
	"enforcement-analytics/internal/repository"
)

// AreaService runs the fixed 8-query drill-down pipeline for a bounding
// box. Sub-queries execute sequentially by default so peak working-set
// size against the store stays bounded; parallel mode is an explicit
// opt-in and produces byte-identical payloads.
type AreaService struct {
	stops *repository.StopRepository
	cfg   config.AnalyticsConfig
	log   zerolog.Logger
}

func NewAreaService(stops *repository.StopRepository, cfg config.AnalyticsConfig, log zerolog.Logger) *AreaService {
	return &AreaService{stops: stops, cfg: cfg, log: log}
}

// Summarize builds the composite area report. The returned note is
// non-empty only for the not-yet-imported dataset state.
func (s *AreaService) Summarize(ctx context.Context, filter model.SpatialFilter) (*model.AreaSummary, string, error) {
	if filter.Bounds == nil {
		return nil, "", fmt.Errorf("%w: bounds are required", ErrInvalidFilter)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.PipelineTimeout)
	defer cancel()

	if !s.stops.DatasetReady(ctx) {
		return emptyAreaSummary(), datasetNotReadyNote, nil
	}

	pred := query.Compile(filter)

	total, err := s.stops.Count(ctx, pred)
	if err != nil {
		return nil, "", s.mapStoreErr(err)
	}
	if total > s.cfg.MaxAreaRows {
		metrics.AreaGuardTripsTotal.Inc()
		s.log.Warn().
			Int64("rows", total).
			Int64("ceiling", s.cfg.MaxAreaRows).
			Msg("area exceeds row ceiling, proceeding with resource risk")
	}

	var (
		summary  repository.SummaryRow
		vehicles []repository.LabelCount
		hourDay  []repository.HourDayCount
		methods  []repository.LabelCount
		speed    repository.SpeedAggregateRow
		charges  []repository.LabelCount
		monthly  []repository.PeriodCountRow
		yearly   []repository.PeriodCountRow
	)

	// The fixed order matters in sequential mode: diagnostics from logs
	// must reproduce deterministically.
	steps := []func(context.Context) error{
		func(ctx context.Context) error { var err error; summary, err = s.stops.Summary(ctx, pred); return err },
		func(ctx context.Context) error { var err error; vehicles, err = s.stops.VehicleCounts(ctx, pred); return err },
		func(ctx context.Context) error { var err error; hourDay, err = s.stops.HourDayCounts(ctx, pred); return err },
		func(ctx context.Context) error { var err error; methods, err = s.stops.MethodCounts(ctx, pred); return err },
		func(ctx context.Context) error {
			if !speedRestricted(filter) {
				return nil
			}
			var err error
			speed, err = s.stops.SpeedAggregate(ctx, pred)
			return err
		},
		func(ctx context.Context) error { var err error; charges, err = s.stops.ChargeCounts(ctx, pred); return err },
		func(ctx context.Context) error { var err error; monthly, err = s.stops.MonthlyCounts(ctx, pred); return err },
		func(ctx context.Context) error { var err error; yearly, err = s.stops.YearlyCounts(ctx, pred); return err },
	}

	if s.cfg.AreaParallel {
		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(s.cfg.WorkerPoolSize)
		for _, step := range steps {
			step := step
			group.Go(func() error { return step(groupCtx) })
		}
		err = group.Wait()
	} else {
		for _, step := range steps {
			if err = step(ctx); err != nil {
				break
			}
		}
	}
	if err != nil {
		// All-or-nothing: partial analytics would be misleading.
		return nil, "", s.mapStoreErr(err)
	}
	metrics.SubQueriesTotal.WithLabelValues("area").Add(float64(len(steps)))

	result := &model.AreaSummary{
		TotalStops:       summary.Total,
		Vehicles:         shareMetrics(vehicles),
		HourDistribution: hourDistribution(hourDay),
		DayDistribution:  dayDistribution(hourDay),
		Methods:          shareMetrics(foldMethodCounts(methods)),
		ChargeTypes:      shareMetrics(charges),
		Monthly:          monthlyDistribution(monthly),
		Yearly:           yearlyDistribution(yearly),
	}
	if summary.FirstStop != nil {
		result.FirstStopDate = summary.FirstStop.Format("2006-01-02")
	}
	if summary.LastStop != nil {
		result.LastStopDate = summary.LastStop.Format("2006-01-02")
	}
	if summary.TopLocation != nil {
		result.TopLocation = *summary.TopLocation
	}
	if speedRestricted(filter) && summary.Total > 0 {
		result.SpeedStats = &model.SpeedStats{
			AvgSpeedOver: round2(speed.AvgSpeedOver),
			MaxSpeedOver: speed.MaxSpeedOver,
		}
	}

	return result, "", nil
}

func (s *AreaService) mapStoreErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrResourceExhausted):
		return fmt.Errorf("%w: %v", ErrAreaTooLarge, err)
	case errors.Is(err, repository.ErrQueryTimeout):
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	case errors.Is(err, context.DeadlineExceeded):
		return ErrUpstreamTimeout
	default:
		return err
	}
}

// speedRestricted reports whether the filter limits the dataset to
// speed violations; speed statistics are only meaningful then.
func speedRestricted(filter model.SpatialFilter) bool {
	return filter.SpeedOnly || filter.MinSpeedOver != nil
}

func emptyAreaSummary() *model.AreaSummary {
	return &model.AreaSummary{
		Vehicles:         []model.ShareMetric{},
		HourDistribution: hourDistribution(nil),
		DayDistribution:  dayDistribution(nil),
		Methods:          []model.ShareMetric{},
		ChargeTypes:      []model.ShareMetric{},
		Monthly:          monthlyDistribution(nil),
		Yearly:           []model.PeriodCount{},
	}
}

// shareMetrics attaches percentages that close to exactly 100 over the
// listed counts. Rounding is largest-remainder apportionment in basis
// points: independent per-entry rounding drifts by up to 0.01 per label
// and breaks closure once a distribution has dozens of labels. A zero
// total yields an empty list, never NaN.
func shareMetrics(rows []repository.LabelCount) []model.ShareMetric {
	var total int64
	for _, row := range rows {
		total += row.Count
	}
	result := make([]model.ShareMetric, 0, len(rows))
	if total == 0 {
		return result
	}

	points := make([]int64, len(rows))
	remainders := make([]float64, len(rows))
	var used int64
	for i, row := range rows {
		exact := float64(row.Count) * 10000 / float64(total)
		points[i] = int64(math.Floor(exact))
		remainders[i] = exact - float64(points[i])
		used += points[i]
	}

	order := make([]int, len(rows))
	for i := range order {
		order[i] = i
	}
	// Ties keep input order so payloads stay deterministic.
	sort.SliceStable(order, func(a, b int) bool { return remainders[order[a]] > remainders[order[b]] })
	for i := int64(0); i < 10000-used; i++ {
		points[order[i]]++
	}

	for i, row := range rows {
		result = append(result, model.ShareMetric{
			Label:      row.Label,
			Count:      row.Count,
			Percentage: float64(points[i]) / 100,
		})
	}
	return result
}

// foldMethodCounts collapses raw detection codes into categories via
// the closed lookup table.
func foldMethodCounts(rows []repository.LabelCount) []repository.LabelCount {
	order := []model.MethodCategory{
		model.MethodRadar, model.MethodLaser, model.MethodVascar,
		model.MethodPatrol, model.MethodAutomated, model.MethodUnknown,
	}
	byCategory := make(map[model.MethodCategory]int64)
	for _, row := range rows {
		byCategory[model.CategoryForCode(row.Label)] += row.Count
	}
	result := make([]repository.LabelCount, 0, len(byCategory))
	for _, category := range order {
		if count, ok := byCategory[category]; ok {
			result = append(result, repository.LabelCount{Label: string(category), Count: count})
		}
	}
	return result
}

func hourDistribution(rows []repository.HourDayCount) []model.HourCount {
	counts := make([]int64, 24)
	for _, row := range rows {
		if row.Hour >= 0 && row.Hour < 24 {
			counts[row.Hour] += row.Count
		}
	}
	result := make([]model.HourCount, 24)
	for hour, count := range counts {
		result[hour] = model.HourCount{Hour: hour, Count: count}
	}
	return result
}

func dayDistribution(rows []repository.HourDayCount) []model.DayCount {
	counts := make([]int64, 7)
	for _, row := range rows {
		if row.Day >= 0 && row.Day < 7 {
			counts[row.Day] += row.Count
		}
	}
	result := make([]model.DayCount, 7)
	for day, count := range counts {
		result[day] = model.DayCount{Day: day, Count: count}
	}
	return result
}

// monthlyDistribution always has exactly 12 entries, zero-filled for
// absent months.
func monthlyDistribution(rows []repository.PeriodCountRow) []model.PeriodCount {
	counts := make([]int64, 13)
	for _, row := range rows {
		if row.Period >= 1 && row.Period <= 12 {
			counts[row.Period] = row.Count
		}
	}
	result := make([]model.PeriodCount, 0, 12)
	for month := 1; month <= 12; month++ {
		result = append(result, model.PeriodCount{Period: month, Count: counts[month]})
	}
	return result
}

func yearlyDistribution(rows []repository.PeriodCountRow) []model.PeriodCount {
	result := make([]model.PeriodCount, 0, len(rows))
	for _, row := range rows {
		result = append(result, model.PeriodCount{Period: row.Period, Count: row.Count})
	}
	return result
}

func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*100) / 100
}
