package repository

import (
	"context"
	"fmt"
	"strings"

	"enforcement-analytics/internal/model"
	"enforcement-analytics/internal/query"
)

// methodCaseSQL renders the closed detection-method lookup table as a
// CASE expression. Only code letters from the table itself are ever
// interpolated; caller input never reaches this string.
var methodCaseSQL = func() string {
	categories := []model.MethodCategory{
		model.MethodRadar, model.MethodLaser, model.MethodVascar,
		model.MethodPatrol, model.MethodAutomated,
	}
	var b strings.Builder
	b.WriteString("CASE")
	for _, category := range categories {
		codes := model.CodesForMethod(category)
		quoted := make([]string, len(codes))
		for i, code := range codes {
			quoted[i] = "'" + code + "'"
		}
		fmt.Fprintf(&b, " WHEN SUBSTR(detection_method, 1, 1) IN (%s) THEN '%s'", strings.Join(quoted, ","), category)
	}
	b.WriteString(" ELSE 'unknown' END")
	return b.String()
}()

// speedBucketSQL is the fixed speed-over histogram bucketing.
const speedBucketSQL = `CASE
	WHEN speed_over BETWEEN 1 AND 4 THEN '1-4'
	WHEN speed_over BETWEEN 5 AND 9 THEN '5-9'
	WHEN speed_over BETWEEN 10 AND 14 THEN '10-14'
	WHEN speed_over BETWEEN 15 AND 19 THEN '15-19'
	WHEN speed_over BETWEEN 20 AND 24 THEN '20-24'
	WHEN speed_over BETWEEN 25 AND 29 THEN '25-29'
	ELSE '30+'
END`

func (r *StopRepository) SpeedHistogram(ctx context.Context, pred query.Predicate) ([]LabelCount, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	var rows []LabelCount
	q := r.db.WithContext(ctx).
		Table(stopTable).
		Select(speedBucketSQL+" AS label, COUNT(*) AS count").
		Where("speed_over IS NOT NULL AND speed_over > 0").
		Group("1")
	if err := pred.Apply(q).Scan(&rows).Error; err != nil {
		return nil, translate(err)
	}
	return rows, nil
}

func (r *StopRepository) SpeedPercentiles(ctx context.Context, pred query.Predicate) (model.Percentiles, int64, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	var row struct {
		Samples int64
		P10     float64
		P25     float64
		P50     float64
		P75     float64
		P90     float64
	}
	q := r.db.WithContext(ctx).
		Table(stopTable).
		Select(`COUNT(*) AS samples,
			COALESCE(percentile_cont(0.10) WITHIN GROUP (ORDER BY speed_over), 0) AS p10,
			COALESCE(percentile_cont(0.25) WITHIN GROUP (ORDER BY speed_over), 0) AS p25,
			COALESCE(percentile_cont(0.50) WITHIN GROUP (ORDER BY speed_over), 0) AS p50,
			COALESCE(percentile_cont(0.75) WITHIN GROUP (ORDER BY speed_over), 0) AS p75,
			COALESCE(percentile_cont(0.90) WITHIN GROUP (ORDER BY speed_over), 0) AS p90`).
		Where("speed_over IS NOT NULL AND speed_over > 0")
	if err := pred.Apply(q).Scan(&row).Error; err != nil {
		return model.Percentiles{}, 0, translate(err)
	}
	return model.Percentiles{P10: row.P10, P25: row.P25, P50: row.P50, P75: row.P75, P90: row.P90}, row.Samples, nil
}

type MethodSpeedRow struct {
	Method string
	Count  int64
	Avg    float64
	Median float64
	P10    float64
}

// MethodSpeedRows segments the speed-over distribution by detection
// category, keeping only samples with both fields present.
func (r *StopRepository) MethodSpeedRows(ctx context.Context, pred query.Predicate) ([]MethodSpeedRow, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	var rows []MethodSpeedRow
	q := r.db.WithContext(ctx).
		Table(stopTable).
		Select(methodCaseSQL+` AS method,
			COUNT(*) AS count,
			AVG(speed_over) AS avg,
			percentile_cont(0.50) WITHIN GROUP (ORDER BY speed_over) AS median,
			percentile_cont(0.10) WITHIN GROUP (ORDER BY speed_over) AS p10`).
		Where("speed_over IS NOT NULL AND speed_over > 0 AND COALESCE(detection_method, '') <> ''").
		Group("1").
		Order("count DESC")
	if err := pred.Apply(q).Scan(&rows).Error; err != nil {
		return nil, translate(err)
	}
	return rows, nil
}

type GridSpeedRow struct {
	Lat   float64
	Lng   float64
	Count int64
	Avg   float64
	Min   float64
}

func (r *StopRepository) GridSpeedRows(ctx context.Context, pred query.Predicate, minSamples int64) ([]GridSpeedRow, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	var rows []GridSpeedRow
	q := r.db.WithContext(ctx).
		Table(stopTable).
		Select(`ROUND(latitude::numeric, 2)::float8 AS lat,
			ROUND(longitude::numeric, 2)::float8 AS lng,
			COUNT(*) AS count,
			AVG(speed_over) AS avg,
			MIN(speed_over) AS min`).
		Where("speed_over IS NOT NULL AND speed_over > 0").
		Group("1, 2").
		Having("COUNT(*) >= ?", minSamples)
	if err := pred.Apply(q).Scan(&rows).Error; err != nil {
		return nil, translate(err)
	}
	return rows, nil
}

type SpeedLimitRow struct {
	PostedLimit int
	Count       int64
	Avg         float64
	Median      float64
}

func (r *StopRepository) SpeedLimitRows(ctx context.Context, pred query.Predicate, minSamples int64) ([]SpeedLimitRow, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	var rows []SpeedLimitRow
	q := r.db.WithContext(ctx).
		Table(stopTable).
		Select(`posted_speed_limit AS posted_limit,
			COUNT(*) AS count,
			AVG(speed_over) AS avg,
			percentile_cont(0.50) WITHIN GROUP (ORDER BY speed_over) AS median`).
		Where("speed_over IS NOT NULL AND speed_over > 0 AND posted_speed_limit IS NOT NULL").
		Group("1").
		Having("COUNT(*) >= ?", minSamples).
		Order("1")
	if err := pred.Apply(q).Scan(&rows).Error; err != nil {
		return nil, translate(err)
	}
	return rows, nil
}

type GridTemporalRow struct {
	Lat   float64
	Lng   float64
	Day   int
	Hour  int
	Count int64
	Total int64
}

// GridTemporalRows returns the day-of-week x hour-of-day signature for
// every grid cell that clears the pattern sample floor.
func (r *StopRepository) GridTemporalRows(ctx context.Context, minSamples int64) ([]GridTemporalRow, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	var rows []GridTemporalRow
	err := r.db.WithContext(ctx).
		Raw(`WITH cells AS (
			SELECT ROUND(latitude::numeric, 2) AS lat, ROUND(longitude::numeric, 2) AS lng, COUNT(*) AS total
			FROM stop_records
			GROUP BY 1, 2
			HAVING COUNT(*) >= ?
		)
		SELECT s.lat::float8 AS lat, s.lng::float8 AS lng, s.day, s.hour, s.count, c.total
		FROM (
			SELECT ROUND(latitude::numeric, 2) AS lat,
				ROUND(longitude::numeric, 2) AS lng,
				EXTRACT(DOW FROM occurred_at)::int AS day,
				EXTRACT(HOUR FROM occurred_at)::int AS hour,
				COUNT(*) AS count
			FROM stop_records
			GROUP BY 1, 2, 3, 4
		) s
		JOIN cells c ON c.lat = s.lat AND c.lng = s.lng
		ORDER BY s.lat, s.lng, s.day, s.hour`, minSamples).
		Scan(&rows).Error
	if err != nil {
		return nil, translate(err)
	}
	return rows, nil
}

type GridMethodRow struct {
	Lat    float64
	Lng    float64
	Method string
	Count  int64
	Total  int64
}

func (r *StopRepository) GridMethodRows(ctx context.Context, minSamples int64) ([]GridMethodRow, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	var rows []GridMethodRow
	err := r.db.WithContext(ctx).
		Raw(`WITH cells AS (
			SELECT ROUND(latitude::numeric, 2) AS lat, ROUND(longitude::numeric, 2) AS lng, COUNT(*) AS total
			FROM stop_records
			GROUP BY 1, 2
			HAVING COUNT(*) >= ?
		)
		SELECT s.lat::float8 AS lat, s.lng::float8 AS lng, s.method, s.count, c.total
		FROM (
			SELECT ROUND(latitude::numeric, 2) AS lat,
				ROUND(longitude::numeric, 2) AS lng,
				`+methodCaseSQL+` AS method,
				COUNT(*) AS count
			FROM stop_records
			GROUP BY 1, 2, 3
		) s
		JOIN cells c ON c.lat = s.lat AND c.lng = s.lng
		ORDER BY s.lat, s.lng, s.count DESC`, minSamples).
		Scan(&rows).Error
	if err != nil {
		return nil, translate(err)
	}
	return rows, nil
}

// DayOfMonthCounts feeds the quota-effect boundary test.
func (r *StopRepository) DayOfMonthCounts(ctx context.Context) ([]PeriodCountRow, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	var rows []PeriodCountRow
	err := r.db.WithContext(ctx).
		Table(stopTable).
		Select("EXTRACT(DAY FROM occurred_at)::int AS period, COUNT(*) AS count").
		Group("1").
		Order("1").
		Scan(&rows).Error
	if err != nil {
		return nil, translate(err)
	}
	return rows, nil
}

func (r *StopRepository) CellHourDayCounts(ctx context.Context, lat, lng float64) ([]HourDayCount, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	var rows []HourDayCount
	err := r.db.WithContext(ctx).
		Table(stopTable).
		Select(`EXTRACT(DOW FROM occurred_at)::int AS day,
			EXTRACT(HOUR FROM occurred_at)::int AS hour,
			COUNT(*) AS count`).
		Where("ROUND(latitude::numeric, 2) = ? AND ROUND(longitude::numeric, 2) = ?", lat, lng).
		Group("1, 2").
		Order("1, 2").
		Scan(&rows).Error
	if err != nil {
		return nil, translate(err)
	}
	return rows, nil
}

func (r *StopRepository) CellMethodCounts(ctx context.Context, lat, lng float64) ([]LabelCount, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	var rows []LabelCount
	err := r.db.WithContext(ctx).
		Table(stopTable).
		Select("COALESCE(detection_method, '') AS label, COUNT(*) AS count").
		Where("ROUND(latitude::numeric, 2) = ? AND ROUND(longitude::numeric, 2) = ?", lat, lng).
		Group("1").
		Order("count DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, translate(err)
	}
	return rows, nil
}

func (r *StopRepository) CellSpeedAvg(ctx context.Context, lat, lng float64) (float64, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	var avg float64
	err := r.db.WithContext(ctx).
		Table(stopTable).
		Select("COALESCE(AVG(speed_over), 0)").
		Where("ROUND(latitude::numeric, 2) = ? AND ROUND(longitude::numeric, 2) = ?", lat, lng).
		Where("speed_over IS NOT NULL AND speed_over > 0").
		Scan(&avg).Error
	if err != nil {
		return 0, translate(err)
	}
	return avg, nil
}
