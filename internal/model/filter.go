package model

import (
	"errors"
	"strconv"
	"strings"
)

var ErrInvalidBounds = errors.New("bounds must be minLng,minLat,maxLng,maxLat")

// Bounds is a geographic bounding box in lng/lat order, matching the
// query-string encoding used by the map UI.
type Bounds struct {
	MinLng float64 `json:"min_lng"`
	MinLat float64 `json:"min_lat"`
	MaxLng float64 `json:"max_lng"`
	MaxLat float64 `json:"max_lat"`
}

// ParseBounds parses "minLng,minLat,maxLng,maxLat". Anything other than
// four numeric components is rejected; callers decide whether that is
// fatal or means "no bounds".
func ParseBounds(raw string) (*Bounds, error) {
	parts := strings.Split(strings.TrimSpace(raw), ",")
	if len(parts) != 4 {
		return nil, ErrInvalidBounds
	}
	values := make([]float64, 4)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, ErrInvalidBounds
		}
		values[i] = v
	}
	return &Bounds{MinLng: values[0], MinLat: values[1], MaxLng: values[2], MaxLat: values[3]}, nil
}

// SpatialFilter is the bounded set of recognized stop-record filters.
// Every field is either absent (no constraint) or an allow-listed,
// parameter-bound value.
type SpatialFilter struct {
	Bounds       *Bounds
	Year         *int
	Method       MethodCategory
	SpeedOnly    bool
	MinSpeedOver *int
	VehicleMake  string
	HasAlcohol   *bool
	HasAccident  *bool
}

// IsZero reports whether the filter constrains nothing.
func (f SpatialFilter) IsZero() bool {
	return f.Bounds == nil && f.Year == nil && f.Method == "" && !f.SpeedOnly &&
		f.MinSpeedOver == nil && f.VehicleMake == "" && f.HasAlcohol == nil && f.HasAccident == nil
}
