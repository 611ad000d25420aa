package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"enforcement-analytics/internal/config"
	"enforcement-analytics/internal/metrics"
	"enforcement-analytics/internal/model"
	"enforcement-analytics/internal/query"
	"enforcement-analytics/internal/repository"
	"enforcement-analytics/internal/stats"
)

var dayNames = [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// CorridorService scores latitude-banded road corridors by enforcement
// density.
type CorridorService struct {
	stops *repository.StopRepository
	cfg   config.AnalyticsConfig
	log   zerolog.Logger
}

func NewCorridorService(stops *repository.StopRepository, cfg config.AnalyticsConfig, log zerolog.Logger) *CorridorService {
	return &CorridorService{stops: stops, cfg: cfg, log: log}
}

// Analyze builds the route-risk report. Bounds are optional here;
// malformed bounds never reach this method (the handler drops them).
func (s *CorridorService) Analyze(ctx context.Context, filter model.SpatialFilter, limit int) (*model.CorridorReport, string, error) {
	if limit <= 0 {
		limit = s.cfg.CorridorDefaultLimit
	}
	if limit > s.cfg.CorridorMaxLimit {
		limit = s.cfg.CorridorMaxLimit
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.PipelineTimeout)
	defer cancel()

	if !s.stops.DatasetReady(ctx) {
		return s.emptyReport(), datasetNotReadyNote, nil
	}

	pred := query.Compile(filter)

	var (
		rows          []repository.CorridorRow
		systemAverage float64
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		rows, err = s.stops.CorridorRows(groupCtx, pred, s.cfg.CorridorMinStops)
		return err
	})
	group.Go(func() error {
		var err error
		systemAverage, err = s.stops.SystemAverageCorridorStops(groupCtx, s.cfg.CorridorMinStops)
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, "", s.mapStoreErr(err)
	}

	corridors := make([]model.Corridor, len(rows))
	for i, row := range rows {
		corridors[i] = s.scoreCorridor(row, systemAverage)
	}

	// Day-by-hour cross-tabs only for the highest-volume corridors; the
	// repository already sorts by volume.
	windowCount := s.cfg.TimeWindowCorridors
	if windowCount > len(corridors) {
		windowCount = len(corridors)
	}
	var mu sync.Mutex
	crossGroup, crossCtx := errgroup.WithContext(ctx)
	crossGroup.SetLimit(s.cfg.WorkerPoolSize)
	for i := 0; i < windowCount; i++ {
		i := i
		crossGroup.Go(func() error {
			cross, err := s.stops.CorridorHourCross(crossCtx, pred, corridors[i].CenterLat)
			if err != nil {
				return err
			}
			peak, hot, safe := s.deriveWindows(cross)
			mu.Lock()
			corridors[i].PeakWindows = peak
			corridors[i].HotWindows = hot
			corridors[i].SafeWindows = safe
			corridors[i].Insight = corridorInsight(corridors[i])
			mu.Unlock()
			return nil
		})
	}
	if err := crossGroup.Wait(); err != nil {
		return nil, "", s.mapStoreErr(err)
	}
	metrics.SubQueriesTotal.WithLabelValues("corridor").Add(float64(2 + windowCount))

	for i := range corridors {
		if corridors[i].Insight == "" {
			corridors[i].Insight = corridorInsight(corridors[i])
		}
	}

	sort.SliceStable(corridors, func(i, j int) bool {
		return corridors[i].StopsPerMile > corridors[j].StopsPerMile
	})
	if len(corridors) > limit {
		corridors = corridors[:limit]
	}

	report := &model.CorridorReport{
		Corridors:      corridors,
		Summary:        summarizeCorridors(corridors, systemAverage),
		RiskLevelGuide: s.riskLevelGuide(),
	}
	return report, "", nil
}

func (s *CorridorService) mapStoreErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrQueryTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrUpstreamTimeout
	default:
		return err
	}
}

func (s *CorridorService) scoreCorridor(row repository.CorridorRow, systemAverage float64) model.Corridor {
	lengthMiles := (row.MaxLng - row.MinLng) * s.cfg.MilesPerLngDegree
	if lengthMiles < 0.1 {
		// A band with all stops at one longitude is still a short
		// stretch of road, not a zero-length point.
		lengthMiles = 0.1
	}
	stopsPerMile := float64(row.Stops) / lengthMiles

	multiplier := 0.0
	if systemAverage > 0 {
		multiplier = float64(row.Stops) / systemAverage
	}

	return model.Corridor{
		CenterLat:       row.Lat,
		MinLng:          row.MinLng,
		MaxLng:          row.MaxLng,
		TotalStops:      row.Stops,
		UniqueLocations: row.Locations,
		LengthMiles:     round2(lengthMiles),
		StopsPerMile:    round2(stopsPerMile),
		RiskMultiplier:  round2(multiplier),
		RiskLevel: model.RiskLevelFor(stopsPerMile,
			s.cfg.RiskCriticalPerMile, s.cfg.RiskHighPerMile, s.cfg.RiskModeratePerMile),
		DominantMethod: model.CategoryForCode(row.TopCode),
		PeakWindows:    []model.TimeWindow{},
		HotWindows:     []model.TimeWindow{},
		SafeWindows:    []model.TimeWindow{},
	}
}

// deriveWindows turns a day-of-week x hour-of-day cross-tab into peak,
// hot, and safe windows. Per day, an hour above HotHourRatio times that
// day's hourly average is hot and one below SafeHourRatio is safe;
// contiguous qualifying hours collapse into one window.
func (s *CorridorService) deriveWindows(rows []repository.HourDayCount) (peak, hot, safe []model.TimeWindow) {
	var cross [7][24]int64
	for _, row := range rows {
		if row.Day >= 0 && row.Day < 7 && row.Hour >= 0 && row.Hour < 24 {
			cross[row.Day][row.Hour] = row.Count
		}
	}

	peak = peakWindows(cross, s.cfg.HotHourRatio, s.cfg.MaxWindows)
	hot, safe = hotSafeWindows(cross, s.cfg.HotHourRatio, s.cfg.SafeHourRatio, s.cfg.MaxWindows)
	return peak, hot, safe
}

// peakWindows works on the all-days hourly totals.
func peakWindows(cross [7][24]int64, hotRatio float64, maxWindows int) []model.TimeWindow {
	var hourly [24]int64
	var total int64
	for day := 0; day < 7; day++ {
		for hour := 0; hour < 24; hour++ {
			hourly[hour] += cross[day][hour]
			total += cross[day][hour]
		}
	}
	if total == 0 {
		return []model.TimeWindow{}
	}
	average := float64(total) / 24

	var flags [24]bool
	for hour := 0; hour < 24; hour++ {
		flags[hour] = float64(hourly[hour]) > hotRatio*average
	}
	windows := collapseHours(flags[:], "All days")
	sortWindowsByVolume(windows, hourly)
	if len(windows) > maxWindows {
		windows = windows[:maxWindows]
	}
	return windows
}

func hotSafeWindows(cross [7][24]int64, hotRatio, safeRatio float64, maxWindows int) (hot, safe []model.TimeWindow) {
	hot = []model.TimeWindow{}
	safe = []model.TimeWindow{}
	type scored struct {
		window model.TimeWindow
		volume int64
	}
	var hotScored, safeScored []scored

	for day := 0; day < 7; day++ {
		var dayTotal int64
		for hour := 0; hour < 24; hour++ {
			dayTotal += cross[day][hour]
		}
		if dayTotal == 0 {
			continue
		}
		average := float64(dayTotal) / 24

		var hotFlags, safeFlags [24]bool
		for hour := 0; hour < 24; hour++ {
			count := float64(cross[day][hour])
			hotFlags[hour] = count > hotRatio*average
			safeFlags[hour] = count < safeRatio*average
		}
		for _, w := range collapseHours(hotFlags[:], dayNames[day]) {
			hotScored = append(hotScored, scored{w, windowVolume(cross[day], w)})
		}
		for _, w := range collapseHours(safeFlags[:], dayNames[day]) {
			safeScored = append(safeScored, scored{w, windowVolume(cross[day], w)})
		}
	}

	sort.SliceStable(hotScored, func(i, j int) bool { return hotScored[i].volume > hotScored[j].volume })
	// Safe windows rank by span: the longest quiet stretch is the most
	// useful one to surface.
	sort.SliceStable(safeScored, func(i, j int) bool {
		si := safeScored[i].window.EndHour - safeScored[i].window.StartHour
		sj := safeScored[j].window.EndHour - safeScored[j].window.StartHour
		return si > sj
	})

	for i := 0; i < len(hotScored) && i < maxWindows; i++ {
		hot = append(hot, hotScored[i].window)
	}
	for i := 0; i < len(safeScored) && i < maxWindows; i++ {
		safe = append(safe, safeScored[i].window)
	}
	return hot, safe
}

// collapseHours folds runs of flagged hours into windows. EndHour is
// exclusive, so 15-17 covers 15:00 through 16:59.
func collapseHours(flags []bool, day string) []model.TimeWindow {
	var windows []model.TimeWindow
	start := -1
	for hour := 0; hour <= len(flags); hour++ {
		flagged := hour < len(flags) && flags[hour]
		if flagged && start < 0 {
			start = hour
		}
		if !flagged && start >= 0 {
			windows = append(windows, model.TimeWindow{Day: day, StartHour: start, EndHour: hour})
			start = -1
		}
	}
	return windows
}

func windowVolume(hours [24]int64, w model.TimeWindow) int64 {
	var volume int64
	for hour := w.StartHour; hour < w.EndHour && hour < 24; hour++ {
		volume += hours[hour]
	}
	return volume
}

func sortWindowsByVolume(windows []model.TimeWindow, hourly [24]int64) {
	sort.SliceStable(windows, func(i, j int) bool {
		return windowVolume(hourly, windows[i]) > windowVolume(hourly, windows[j])
	})
}

// corridorInsight is a deterministic template over the computed
// numbers; identical inputs always produce identical text.
func corridorInsight(c model.Corridor) string {
	base := fmt.Sprintf("%d stops across %.2f miles near latitude %.2f (%.2f stops/mile, %s risk); dominant method %s",
		c.TotalStops, c.LengthMiles, c.CenterLat, c.StopsPerMile, c.RiskLevel, c.DominantMethod)
	if len(c.HotWindows) > 0 {
		w := c.HotWindows[0]
		return fmt.Sprintf("%s; heaviest enforcement %s %02d:00-%02d:00.", base, w.Day, w.StartHour, w.EndHour)
	}
	return base + "."
}

func summarizeCorridors(corridors []model.Corridor, systemAverage float64) model.CorridorSummary {
	summary := model.CorridorSummary{
		CorridorCount: len(corridors),
		SystemAverage: round2(systemAverage),
	}
	perMile := make([]float64, 0, len(corridors))
	for _, c := range corridors {
		summary.TotalStops += c.TotalStops
		perMile = append(perMile, c.StopsPerMile)
		switch c.RiskLevel {
		case model.RiskCritical:
			summary.CriticalCount++
		case model.RiskHigh:
			summary.HighCount++
		}
	}
	summary.MedianStopsPerMile = round2(stats.Quantile(0.5, perMile))
	return summary
}

func (s *CorridorService) riskLevelGuide() map[model.RiskLevel]string {
	return map[model.RiskLevel]string{
		model.RiskCritical: fmt.Sprintf(">= %.0f stops per mile", s.cfg.RiskCriticalPerMile),
		model.RiskHigh:     fmt.Sprintf(">= %.0f stops per mile", s.cfg.RiskHighPerMile),
		model.RiskModerate: fmt.Sprintf(">= %.0f stops per mile", s.cfg.RiskModeratePerMile),
		model.RiskLow:      fmt.Sprintf("below %.0f stops per mile", s.cfg.RiskModeratePerMile),
	}
}

func (s *CorridorService) emptyReport() *model.CorridorReport {
	return &model.CorridorReport{
		Corridors:      []model.Corridor{},
		Summary:        model.CorridorSummary{},
		RiskLevelGuide: s.riskLevelGuide(),
	}
}
