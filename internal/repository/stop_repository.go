package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"enforcement-analytics/internal/model"
	"enforcement-analytics/internal/query"
)

// Typed store conditions. Services decide how each surfaces.
var (
	ErrDatasetNotReady   = errors.New("stop record table not ready")
	ErrResourceExhausted = errors.New("store resource limit hit")
	ErrQueryTimeout      = errors.New("store query deadline exceeded")
)

// stopTable comes from the gorm model so the name lives in one place.
var stopTable = model.StopRecord{}.TableName()

type StopRepository struct {
	db           *gorm.DB
	queryTimeout time.Duration
}

func NewStopRepository(db *gorm.DB, queryTimeout time.Duration) *StopRepository {
	return &StopRepository{db: db, queryTimeout: queryTimeout}
}

// DatasetReady reports whether the externally imported table exists yet.
// A missing table is a normal pre-import state, not an error.
func (r *StopRepository) DatasetReady(ctx context.Context) bool {
	var exists bool
	err := r.db.WithContext(ctx).
		Raw(`SELECT EXISTS (
			SELECT 1
			FROM pg_catalog.pg_class c
			JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
			WHERE c.relname = ? AND c.relkind IN ('r','m','v') AND n.nspname = 'public'
		)`, stopTable).
		Scan(&exists).Error
	if err != nil {
		return false
	}
	return exists
}

func (r *StopRepository) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.queryTimeout)
}

// translate folds driver-level failures into the typed conditions above.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrQueryTimeout, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "42P01":
			return fmt.Errorf("%w: %v", ErrDatasetNotReady, err)
		case pgErr.Code == "57014":
			return fmt.Errorf("%w: %v", ErrQueryTimeout, err)
		case strings.HasPrefix(pgErr.Code, "53"):
			return fmt.Errorf("%w: %v", ErrResourceExhausted, err)
		}
	}
	return err
}

type LabelCount struct {
	Label string
	Count int64
}

type HourDayCount struct {
	Day   int
	Hour  int
	Count int64
}

type SummaryRow struct {
	Total       int64
	FirstStop   *time.Time
	LastStop    *time.Time
	TopLocation *string
}

// Count is the cheap pre-flight used by the area resource guard.
func (r *StopRepository) Count(ctx context.Context, pred query.Predicate) (int64, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	var count int64
	q := r.db.WithContext(ctx).Table(stopTable)
	if err := pred.Apply(q).Count(&count).Error; err != nil {
		return 0, translate(err)
	}
	return count, nil
}

func (r *StopRepository) Summary(ctx context.Context, pred query.Predicate) (SummaryRow, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	var row SummaryRow
	q := r.db.WithContext(ctx).
		Table(stopTable).
		Select(`COUNT(*) AS total,
			MIN(occurred_at) AS first_stop,
			MAX(occurred_at) AS last_stop,
			mode() WITHIN GROUP (ORDER BY location) AS top_location`)
	if err := pred.Apply(q).Scan(&row).Error; err != nil {
		return SummaryRow{}, translate(err)
	}
	return row, nil
}

func (r *StopRepository) VehicleCounts(ctx context.Context, pred query.Predicate) ([]LabelCount, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	var rows []LabelCount
	q := r.db.WithContext(ctx).
		Table(stopTable).
		Select("COALESCE(NULLIF(vehicle_make, ''), 'UNKNOWN') AS label, COUNT(*) AS count").
		Group("1").
		Order("count DESC")
	if err := pred.Apply(q).Scan(&rows).Error; err != nil {
		return nil, translate(err)
	}
	return rows, nil
}

func (r *StopRepository) HourDayCounts(ctx context.Context, pred query.Predicate) ([]HourDayCount, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	var rows []HourDayCount
	q := r.db.WithContext(ctx).
		Table(stopTable).
		Select(`EXTRACT(DOW FROM occurred_at)::int AS day,
			EXTRACT(HOUR FROM occurred_at)::int AS hour,
			COUNT(*) AS count`).
		Group("1, 2").
		Order("1, 2")
	if err := pred.Apply(q).Scan(&rows).Error; err != nil {
		return nil, translate(err)
	}
	return rows, nil
}

// MethodCounts groups by raw detection-method code; callers fold codes
// into categories through the closed lookup table.
func (r *StopRepository) MethodCounts(ctx context.Context, pred query.Predicate) ([]LabelCount, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	var rows []LabelCount
	q := r.db.WithContext(ctx).
		Table(stopTable).
		Select("COALESCE(detection_method, '') AS label, COUNT(*) AS count").
		Group("1").
		Order("count DESC")
	if err := pred.Apply(q).Scan(&rows).Error; err != nil {
		return nil, translate(err)
	}
	return rows, nil
}

type SpeedAggregateRow struct {
	AvgSpeedOver float64
	MaxSpeedOver int
}

func (r *StopRepository) SpeedAggregate(ctx context.Context, pred query.Predicate) (SpeedAggregateRow, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	var row SpeedAggregateRow
	q := r.db.WithContext(ctx).
		Table(stopTable).
		Select(`COALESCE(AVG(speed_over), 0) AS avg_speed_over,
			COALESCE(MAX(speed_over), 0) AS max_speed_over`).
		Where("speed_over IS NOT NULL")
	if err := pred.Apply(q).Scan(&row).Error; err != nil {
		return SpeedAggregateRow{}, translate(err)
	}
	return row, nil
}

func (r *StopRepository) ChargeCounts(ctx context.Context, pred query.Predicate) ([]LabelCount, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	var rows []LabelCount
	q := r.db.WithContext(ctx).
		Table(stopTable).
		Select("COALESCE(NULLIF(charge_type, ''), 'UNSPECIFIED') AS label, COUNT(*) AS count").
		Group("1").
		Order("count DESC")
	if err := pred.Apply(q).Scan(&rows).Error; err != nil {
		return nil, translate(err)
	}
	return rows, nil
}

type PeriodCountRow struct {
	Period int
	Count  int64
}

func (r *StopRepository) MonthlyCounts(ctx context.Context, pred query.Predicate) ([]PeriodCountRow, error) {
	return r.periodCounts(ctx, pred, "MONTH")
}

func (r *StopRepository) YearlyCounts(ctx context.Context, pred query.Predicate) ([]PeriodCountRow, error) {
	return r.periodCounts(ctx, pred, "YEAR")
}

func (r *StopRepository) periodCounts(ctx context.Context, pred query.Predicate, part string) ([]PeriodCountRow, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	var rows []PeriodCountRow
	q := r.db.WithContext(ctx).
		Table(stopTable).
		Select(fmt.Sprintf("EXTRACT(%s FROM occurred_at)::int AS period, COUNT(*) AS count", part)).
		Group("1").
		Order("1")
	if err := pred.Apply(q).Scan(&rows).Error; err != nil {
		return nil, translate(err)
	}
	return rows, nil
}

type CorridorRow struct {
	Lat       float64
	Stops     int64
	MinLng    float64
	MaxLng    float64
	Locations int64
	TopCode   string
}

// CorridorRows bands stops into 2-decimal latitude strips, dropping
// bands below the minimum-sample floor.
func (r *StopRepository) CorridorRows(ctx context.Context, pred query.Predicate, minStops int64) ([]CorridorRow, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	var rows []CorridorRow
	q := r.db.WithContext(ctx).
		Table(stopTable).
		Select(`ROUND(latitude::numeric, 2)::float8 AS lat,
			COUNT(*) AS stops,
			MIN(longitude) AS min_lng,
			MAX(longitude) AS max_lng,
			COUNT(DISTINCT location) AS locations,
			COALESCE(mode() WITHIN GROUP (ORDER BY detection_method), '') AS top_code`).
		Group("1").
		Having("COUNT(*) >= ?", minStops).
		Order("stops DESC")
	if err := pred.Apply(q).Scan(&rows).Error; err != nil {
		return nil, translate(err)
	}
	return rows, nil
}

// SystemAverageCorridorStops is intentionally unfiltered: the risk
// multiplier compares a corridor against the whole system, not against
// the caller's viewport.
func (r *StopRepository) SystemAverageCorridorStops(ctx context.Context, minStops int64) (float64, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	var avg float64
	err := r.db.WithContext(ctx).
		Raw(`SELECT COALESCE(AVG(cnt), 0)
			FROM (
				SELECT COUNT(*) AS cnt
				FROM stop_records
				GROUP BY ROUND(latitude::numeric, 2)
				HAVING COUNT(*) >= ?
			) corridors`, minStops).
		Scan(&avg).Error
	if err != nil {
		return 0, translate(err)
	}
	return avg, nil
}

// CorridorHourCross cross-tabulates one corridor's stops by day of week
// and hour of day.
func (r *StopRepository) CorridorHourCross(ctx context.Context, pred query.Predicate, lat float64) ([]HourDayCount, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	var rows []HourDayCount
	q := r.db.WithContext(ctx).
		Table(stopTable).
		Select(`EXTRACT(DOW FROM occurred_at)::int AS day,
			EXTRACT(HOUR FROM occurred_at)::int AS hour,
			COUNT(*) AS count`).
		Where("ROUND(latitude::numeric, 2) = ?", lat).
		Group("1, 2").
		Order("1, 2")
	if err := pred.Apply(q).Scan(&rows).Error; err != nil {
		return nil, translate(err)
	}
	return rows, nil
}
