package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"enforcement-analytics/internal/cache"
	"enforcement-analytics/internal/config"
	"enforcement-analytics/internal/metrics"
	"enforcement-analytics/internal/model"
	"enforcement-analytics/internal/query"
	"enforcement-analytics/internal/repository"
	"enforcement-analytics/internal/stats"
)

// PatternService mines the full dataset for recurring enforcement
// behaviors. All discovery is deterministic: same rows in, same
// patterns out, so responses are safe to cache.
type PatternService struct {
	stops   *repository.StopRepository
	cfg     config.AnalyticsConfig
	reports *cache.ReportCache
	log     zerolog.Logger
}

func NewPatternService(stops *repository.StopRepository, cfg config.AnalyticsConfig, reports *cache.ReportCache, log zerolog.Logger) *PatternService {
	return &PatternService{stops: stops, cfg: cfg, reports: reports, log: log}
}

// cellSignature is one grid cell's temporal fingerprint.
type cellSignature struct {
	gridID string
	total  int64
	hours  [24]int64
	days   [7]int64
}

// Discover runs the four pattern detectors over every grid cell that
// clears the sample floor. The returned note is non-empty only for the
// not-yet-imported dataset state.
func (s *PatternService) Discover(ctx context.Context) (*model.PatternReport, string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.PipelineTimeout)
	defer cancel()

	const cacheKey = "report:patterns"
	var cached model.PatternReport
	if s.reports.Get(ctx, cacheKey, &cached) {
		return &cached, "", nil
	}

	if !s.stops.DatasetReady(ctx) {
		return emptyPatternReport(s.cfg.PatternMinSamples), datasetNotReadyNote, nil
	}

	var (
		temporalRows []repository.GridTemporalRow
		methodRows   []repository.GridMethodRow
		baselineRows []repository.LabelCount
		dayOfMonth   []repository.PeriodCountRow
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.cfg.WorkerPoolSize)
	group.Go(func() error {
		var err error
		temporalRows, err = s.stops.GridTemporalRows(groupCtx, s.cfg.PatternMinSamples)
		return err
	})
	group.Go(func() error {
		var err error
		methodRows, err = s.stops.GridMethodRows(groupCtx, s.cfg.PatternMinSamples)
		return err
	})
	group.Go(func() error {
		var err error
		baselineRows, err = s.stops.MethodCounts(groupCtx, query.Predicate{})
		return err
	})
	group.Go(func() error {
		var err error
		dayOfMonth, err = s.stops.DayOfMonthCounts(groupCtx)
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, "", s.mapStoreErr(err)
	}
	metrics.SubQueriesTotal.WithLabelValues("pattern").Add(4)

	cells := foldCellSignatures(temporalRows)

	patterns := make([]model.Pattern, 0, len(cells))
	patterns = append(patterns, s.timeClusterPatterns(cells)...)
	patterns = append(patterns, s.methodZonePatterns(methodRows, baselineRows)...)
	patterns = append(patterns, s.dayPatterns(cells)...)
	quotaDetected := false
	if quota, ok := s.quotaEffectPattern(dayOfMonth); ok {
		patterns = append(patterns, quota)
		quotaDetected = true
	}

	report := &model.PatternReport{
		Patterns: patterns,
		Summary: model.PatternSummary{
			CellsScanned:        len(cells),
			PatternCount:        len(patterns),
			QuotaEffectDetected: quotaDetected,
			SampleFloor:         s.cfg.PatternMinSamples,
		},
	}
	s.reports.Set(ctx, cacheKey, report)
	return report, "", nil
}

// Profile builds the drill-down for one grid cell.
func (s *PatternService) Profile(ctx context.Context, gridID string) (*model.LocationProfile, error) {
	lat, lng, err := model.ParseGridID(gridID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.PipelineTimeout)
	defer cancel()

	if !s.stops.DatasetReady(ctx) {
		return nil, ErrLocationNotFound
	}

	hourDay, err := s.stops.CellHourDayCounts(ctx, lat, lng)
	if err != nil {
		return nil, s.mapStoreErr(err)
	}

	var hours [24]int64
	var days [7]int64
	var total int64
	for _, row := range hourDay {
		if row.Hour >= 0 && row.Hour < 24 {
			hours[row.Hour] += row.Count
		}
		if row.Day >= 0 && row.Day < 7 {
			days[row.Day] += row.Count
		}
		total += row.Count
	}
	if total == 0 {
		return nil, ErrLocationNotFound
	}

	var (
		methodCounts []repository.LabelCount
		avgSpeed     float64
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		methodCounts, err = s.stops.CellMethodCounts(groupCtx, lat, lng)
		return err
	})
	group.Go(func() error {
		var err error
		avgSpeed, err = s.stops.CellSpeedAvg(groupCtx, lat, lng)
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, s.mapStoreErr(err)
	}

	hourDist := stats.Normalize(hours[:])
	dayDist := stats.Normalize(days[:])

	methodShares := shareMetrics(foldMethodCounts(methodCounts))
	primary := model.MethodUnknown
	if len(methodShares) > 0 {
		top := methodShares[0]
		for _, share := range methodShares[1:] {
			if share.Count > top.Count {
				top = share
			}
		}
		primary = model.MethodCategory(top.Label)
	}

	chi, pValue := stats.ChiSquareUniform(hours[:])

	profile := &model.LocationProfile{
		GridID:            model.GridID(lat, lng),
		TotalStops:        total,
		HourDistribution:  roundDist(hourDist),
		DayDistribution:   roundDist(dayDist),
		PeakHours:         peakHours(hours),
		PeakDays:          peakDays(days),
		HourConcentration: round2(stats.Concentration(hourDist)),
		DayConcentration:  round2(stats.Concentration(dayDist)),
		Methods:           methodShares,
		PrimaryMethod:     primary,
		AvgSpeedOver:      round2(avgSpeed),
		Strictness:        model.StrictnessFor(avgSpeed, s.cfg.StrictAvgBelow, s.cfg.ModerateAvgBelow),
		Significance: model.SignificanceResult{
			ChiSquare:       round2(chi),
			PValue:          pValue,
			IsSignificant:   pValue < 0.05,
			ConfidenceLevel: stats.ConfidenceLevel(pValue),
		},
	}
	return profile, nil
}

func (s *PatternService) mapStoreErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrQueryTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrUpstreamTimeout
	default:
		return err
	}
}

// foldCellSignatures groups the temporal rows per grid cell, preserving
// the repository's lat,lng ordering so pattern output is stable.
func foldCellSignatures(rows []repository.GridTemporalRow) []cellSignature {
	var cells []cellSignature
	index := make(map[string]int)
	for _, row := range rows {
		id := model.GridID(row.Lat, row.Lng)
		i, ok := index[id]
		if !ok {
			i = len(cells)
			index[id] = i
			cells = append(cells, cellSignature{gridID: id, total: row.Total})
		}
		if row.Hour >= 0 && row.Hour < 24 {
			cells[i].hours[row.Hour] += row.Count
		}
		if row.Day >= 0 && row.Day < 7 {
			cells[i].days[row.Day] += row.Count
		}
	}
	return cells
}

// sampleFactor scales pattern confidence by how far a cell's sample
// size clears the emission floor: linear up to four times the floor,
// saturating at 1. Two cells with the same concentration but different
// volumes must not score identically.
func (s *PatternService) sampleFactor(samples int64) float64 {
	saturation := float64(4 * s.cfg.PatternMinSamples)
	if saturation <= 0 {
		return 1
	}
	factor := float64(samples) / saturation
	if factor > 1 {
		return 1
	}
	return factor
}

// timeClusterPatterns flags cells where enforcement concentrates into a
// narrow daily window: the top three hours carry at least the cutoff
// share of all stops.
func (s *PatternService) timeClusterPatterns(cells []cellSignature) []model.Pattern {
	var patterns []model.Pattern
	for _, cell := range cells {
		dist := stats.Normalize(cell.hours[:])
		share := stats.TopShare(dist, 3)
		if share < s.cfg.HourClusterCutoff {
			continue
		}
		top := topIndexes(cell.hours[:], 3)
		hourLabels := make([]string, len(top))
		for i, h := range top {
			hourLabels[i] = fmt.Sprintf("%02d:00", h)
		}
		factor := s.sampleFactor(cell.total)
		patterns = append(patterns, model.Pattern{
			Type:        model.PatternTimeCluster,
			Name:        fmt.Sprintf("time cluster at %s", cell.gridID),
			Description: fmt.Sprintf("%.0f%% of stops fall in just three hours of the day", share*100),
			Locations:   []string{cell.gridID},
			Confidence:  clampUnit(share * factor),
			Statistics: map[string]float64{
				"top_hours_share": round2(share),
				"sample_factor":   round2(factor),
				"sample_size":     float64(cell.total),
			},
			Insight: fmt.Sprintf("enforcement at %s concentrates around %s", cell.gridID, strings.Join(hourLabels, ", ")),
		})
	}
	return patterns
}

// methodZonePatterns flags cells where one detection category is both
// dominant locally and heavily over-represented against the system
// baseline.
func (s *PatternService) methodZonePatterns(rows []repository.GridMethodRow, baselineRows []repository.LabelCount) []model.Pattern {
	baseline := make(map[string]float64)
	var baselineTotal int64
	for _, row := range foldMethodCounts(baselineRows) {
		baselineTotal += row.Count
	}
	if baselineTotal > 0 {
		for _, row := range foldMethodCounts(baselineRows) {
			baseline[row.Label] = float64(row.Count) / float64(baselineTotal)
		}
	}

	var patterns []model.Pattern
	seen := make(map[string]bool)
	for _, row := range rows {
		if row.Total == 0 || row.Method == string(model.MethodUnknown) {
			continue
		}
		id := model.GridID(row.Lat, row.Lng)
		// One zone pattern per cell; rows arrive count-descending so the
		// first qualifying method is the dominant one.
		if seen[id] {
			continue
		}
		share := float64(row.Count) / float64(row.Total)
		base := baseline[row.Method]
		if share < s.cfg.MethodZoneMinShare {
			continue
		}
		if base > 0 && share < base*s.cfg.MethodZoneRatio {
			continue
		}
		seen[id] = true
		lift := 0.0
		if base > 0 {
			lift = share / base
		}
		factor := s.sampleFactor(row.Total)
		patterns = append(patterns, model.Pattern{
			Type:        model.PatternMethodZone,
			Name:        fmt.Sprintf("%s zone at %s", row.Method, id),
			Description: fmt.Sprintf("%s accounts for %.0f%% of stops here versus %.0f%% system-wide", row.Method, share*100, base*100),
			Locations:   []string{id},
			Confidence:  clampUnit(share * factor),
			Statistics: map[string]float64{
				"local_share":    round2(share),
				"baseline_share": round2(base),
				"lift":           round2(lift),
				"sample_factor":  round2(factor),
				"sample_size":    float64(row.Total),
			},
			Insight: fmt.Sprintf("%s is effectively a dedicated %s enforcement zone", id, row.Method),
		})
	}
	return patterns
}

// dayPatterns flags cells whose activity piles onto one or two weekdays.
func (s *PatternService) dayPatterns(cells []cellSignature) []model.Pattern {
	var patterns []model.Pattern
	for _, cell := range cells {
		dist := stats.Normalize(cell.days[:])
		share := stats.TopShare(dist, 2)
		if share < s.cfg.DayClusterCutoff {
			continue
		}
		top := topIndexes(cell.days[:], 2)
		labels := make([]string, len(top))
		for i, d := range top {
			labels[i] = dayNames[d]
		}
		factor := s.sampleFactor(cell.total)
		patterns = append(patterns, model.Pattern{
			Type:        model.PatternDayOfWeek,
			Name:        fmt.Sprintf("day-of-week pattern at %s", cell.gridID),
			Description: fmt.Sprintf("%.0f%% of stops fall on %s", share*100, strings.Join(labels, " and ")),
			Locations:   []string{cell.gridID},
			Confidence:  clampUnit(share * factor),
			Statistics: map[string]float64{
				"top_days_share": round2(share),
				"sample_factor":  round2(factor),
				"sample_size":    float64(cell.total),
			},
			Insight: fmt.Sprintf("patrols at %s favor %s schedules", cell.gridID, strings.Join(labels, "/")),
		})
	}
	return patterns
}

// quotaEffectPattern compares activity near the month boundary (days
// 25 through 31 plus 1 and 2) against the mid-month baseline (days 8
// through 24).
func (s *PatternService) quotaEffectPattern(rows []repository.PeriodCountRow) (model.Pattern, bool) {
	var boundarySum, boundaryDays, midSum, midDays int64
	for _, row := range rows {
		switch {
		case row.Period >= 25 || row.Period <= 2:
			boundarySum += row.Count
			boundaryDays++
		case row.Period >= 8 && row.Period <= 24:
			midSum += row.Count
			midDays++
		}
	}
	if boundaryDays == 0 || midDays == 0 || midSum == 0 {
		return model.Pattern{}, false
	}
	boundaryAvg := float64(boundarySum) / float64(boundaryDays)
	midAvg := float64(midSum) / float64(midDays)
	ratio := boundaryAvg / midAvg
	if ratio < s.cfg.QuotaBoundaryRatio {
		return model.Pattern{}, false
	}
	return model.Pattern{
		Type:        model.PatternQuotaEffect,
		Name:        "month-boundary surge",
		Description: fmt.Sprintf("daily stop volume near the month boundary runs %.0f%% above mid-month", (ratio-1)*100),
		Locations:   []string{},
		Confidence:  clampUnit(ratio - 1),
		Statistics: map[string]float64{
			"boundary_daily_avg":  round2(boundaryAvg),
			"mid_month_daily_avg": round2(midAvg),
			"ratio":               round2(ratio),
		},
		Insight: "enforcement volume rises as the month closes, consistent with period-end productivity pressure",
	}, true
}

func emptyPatternReport(sampleFloor int64) *model.PatternReport {
	return &model.PatternReport{
		Patterns: []model.Pattern{},
		Summary:  model.PatternSummary{SampleFloor: sampleFloor},
	}
}

// topIndexes returns the indexes of the k largest counts, largest
// first, with index order breaking ties for determinism.
func topIndexes(counts []int64, k int) []int {
	idx := make([]int, len(counts))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return counts[idx[a]] > counts[idx[b]] })
	if k > len(idx) {
		k = len(idx)
	}
	top := make([]int, k)
	copy(top, idx[:k])
	return top
}

// peakHours lists hours carrying at least 1.5x the mean load. Falls
// back to the single busiest hour when no hour stands out.
func peakHours(hours [24]int64) []int {
	var total int64
	for _, c := range hours {
		total += c
	}
	if total == 0 {
		return []int{}
	}
	mean := float64(total) / 24
	var peaks []int
	for hour, c := range hours {
		if float64(c) >= mean*1.5 && c > 0 {
			peaks = append(peaks, hour)
		}
	}
	if len(peaks) == 0 {
		peaks = topIndexes(hours[:], 1)
	}
	return peaks
}

func peakDays(days [7]int64) []string {
	var total int64
	for _, c := range days {
		total += c
	}
	if total == 0 {
		return []string{}
	}
	mean := float64(total) / 7
	var peaks []string
	for day, c := range days {
		if float64(c) >= mean*1.5 && c > 0 {
			peaks = append(peaks, dayNames[day])
		}
	}
	if len(peaks) == 0 {
		for _, day := range topIndexes(days[:], 1) {
			peaks = append(peaks, dayNames[day])
		}
	}
	return peaks
}

func roundDist(dist []float64) []float64 {
	out := make([]float64, len(dist))
	for i, p := range dist {
		out[i] = math.Round(p*10000) / 10000
	}
	return out
}

func clampUnit(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return round2(v)
	}
}
