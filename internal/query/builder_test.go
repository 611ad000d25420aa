package query

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"enforcement-analytics/internal/model"
)

func TestCompileEmptyFilterIsTautology(t *testing.T) {
	t.Parallel()

	sql, args := Compile(model.SpatialFilter{}).Where()
	assert.Equal(t, "1 = 1", sql)
	assert.Empty(t, args)
}

func TestCompileBounds(t *testing.T) {
	t.Parallel()

	filter := model.SpatialFilter{
		Bounds: &model.Bounds{MinLng: -77.25, MinLat: 39.10, MaxLng: -77.05, MaxLat: 39.30},
	}
	sql, args := Compile(filter).Where()

	assert.Contains(t, sql, "longitude BETWEEN ? AND ?")
	assert.Contains(t, sql, "latitude BETWEEN ? AND ?")
	assert.Equal(t, []interface{}{-77.25, -77.05, 39.10, 39.30}, args)
}

func TestCompileMethodBindsTableCodes(t *testing.T) {
	t.Parallel()

	sql, args := Compile(model.SpatialFilter{Method: model.MethodRadar}).Where()
	assert.Contains(t, sql, "SUBSTR(detection_method, 1, 1) IN ?")
	assert.Equal(t, []interface{}{[]string{"E", "F", "G", "H", "I", "J"}}, args)
}

func TestCompileUnknownMethodMatchesNothing(t *testing.T) {
	t.Parallel()

	// "unknown" has no codes in the table; the compiled predicate must
	// exclude every row instead of echoing the input.
	sql, args := Compile(model.SpatialFilter{Method: model.MethodUnknown}).Where()
	assert.Contains(t, sql, "1 = 0")
	assert.Empty(t, args)
}

func TestCompileEveryFieldBindsOnce(t *testing.T) {
	t.Parallel()

	year := 2023
	minOver := 10
	yes := true
	no := false
	filter := model.SpatialFilter{
		Bounds:       &model.Bounds{MinLng: -77.3, MinLat: 39.0, MaxLng: -77.0, MaxLat: 39.3},
		Year:         &year,
		Method:       model.MethodLaser,
		SpeedOnly:    true,
		MinSpeedOver: &minOver,
		VehicleMake:  "HONDA",
		HasAlcohol:   &yes,
		HasAccident:  &no,
	}
	sql, args := Compile(filter).Where()

	// Placeholder count must match the bound-value count exactly; the
	// IN clause binds one slice value.
	assert.Equal(t, len(args), strings.Count(sql, "?"))
	assert.Contains(t, sql, "EXTRACT(YEAR FROM occurred_at) = ?")
	assert.Contains(t, sql, "speed_over IS NOT NULL AND speed_over > 0")
	assert.Contains(t, sql, "speed_over >= ?")
	assert.Contains(t, sql, "UPPER(vehicle_make) = UPPER(?)")
	assert.Contains(t, sql, "has_alcohol = ?")
	assert.Contains(t, sql, "has_accident = ?")

	// Boolean values bind as typed bools, never as strings.
	assert.Contains(t, args, true)
	assert.Contains(t, args, false)
	assert.NotContains(t, args, "true")
	assert.NotContains(t, args, "false")
}

func TestCompileSkipsAbsentFields(t *testing.T) {
	t.Parallel()

	sql, _ := Compile(model.SpatialFilter{SpeedOnly: true}).Where()
	assert.NotContains(t, sql, "EXTRACT(YEAR")
	assert.NotContains(t, sql, "vehicle_make")
	assert.NotContains(t, sql, "has_alcohol")
}
