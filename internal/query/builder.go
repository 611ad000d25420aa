// Package query translates a SpatialFilter into a parameter-bound SQL
// predicate. The builder only ever emits placeholders plus a parallel
// bound-value list; free-text and boolean inputs are always bound, never
// interpolated, and categorical inputs are resolved through the closed
// detection-method table before binding.
package query

import (
	"strings"

	"gorm.io/gorm"

	"enforcement-analytics/internal/model"
)

// Predicate is a conjunction of parameterized clauses. The zero value
// matches every row.
type Predicate struct {
	clauses []string
	args    []interface{}
}

func (p *Predicate) add(clause string, args ...interface{}) {
	p.clauses = append(p.clauses, clause)
	p.args = append(p.args, args...)
}

// Where renders the predicate as placeholder SQL plus bind values for
// raw aggregate statements. An unconstrained predicate renders as a
// tautology so callers can always append it after WHERE.
func (p Predicate) Where() (string, []interface{}) {
	if len(p.clauses) == 0 {
		return "1 = 1", nil
	}
	return strings.Join(p.clauses, " AND "), p.args
}

// Apply attaches the predicate to a gorm query.
func (p Predicate) Apply(q *gorm.DB) *gorm.DB {
	if len(p.clauses) == 0 {
		return q
	}
	sql, args := p.Where()
	return q.Where(sql, args...)
}

// Compile maps every present filter field to exactly one clause. Absent
// fields contribute nothing.
func Compile(f model.SpatialFilter) Predicate {
	var p Predicate

	if f.Bounds != nil {
		p.add("longitude BETWEEN ? AND ?", f.Bounds.MinLng, f.Bounds.MaxLng)
		p.add("latitude BETWEEN ? AND ?", f.Bounds.MinLat, f.Bounds.MaxLat)
	}
	if f.Year != nil {
		p.add("EXTRACT(YEAR FROM occurred_at) = ?", *f.Year)
	}
	if f.Method != "" {
		codes := model.CodesForMethod(f.Method)
		if len(codes) == 0 {
			// Not in the closed table: match nothing rather than echo input.
			p.add("1 = 0")
		} else {
			p.add("SUBSTR(detection_method, 1, 1) IN ?", codes)
		}
	}
	if f.SpeedOnly {
		p.add("speed_over IS NOT NULL AND speed_over > 0")
	}
	if f.MinSpeedOver != nil {
		p.add("speed_over >= ?", *f.MinSpeedOver)
	}
	if f.VehicleMake != "" {
		p.add("UPPER(vehicle_make) = UPPER(?)", f.VehicleMake)
	}
	if f.HasAlcohol != nil {
		p.add("has_alcohol = ?", *f.HasAlcohol)
	}
	if f.HasAccident != nil {
		p.add("has_accident = ?", *f.HasAccident)
	}

	return p
}
