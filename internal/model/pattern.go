package model

import (
	"fmt"
	"strconv"
	"strings"
)

// PatternType enumerates the discovery categories.
type PatternType string

const (
	PatternTimeCluster PatternType = "time_cluster"
	PatternMethodZone  PatternType = "method_zone"
	PatternDayOfWeek   PatternType = "day_pattern"
	PatternQuotaEffect PatternType = "quota_effect"
)

// Pattern is one statistically validated behavioral discovery. Patterns
// are ephemeral: recomputed on each request, never persisted.
type Pattern struct {
	Type        PatternType        `json:"pattern_type"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Locations   []string           `json:"locations"`
	Confidence  float64            `json:"confidence"`
	Statistics  map[string]float64 `json:"statistics"`
	Insight     string             `json:"insight"`
}

// PatternReport wraps the discoveries with their summary block.
type PatternReport struct {
	Patterns []Pattern      `json:"patterns"`
	Summary  PatternSummary `json:"summary"`
}

type PatternSummary struct {
	CellsScanned        int   `json:"cells_scanned"`
	PatternCount        int   `json:"pattern_count"`
	QuotaEffectDetected bool  `json:"quota_effect_detected"`
	SampleFloor         int64 `json:"sample_floor"`
}

// SignificanceResult is the chi-square goodness-of-fit block.
type SignificanceResult struct {
	ChiSquare       float64 `json:"chi_square"`
	PValue          float64 `json:"p_value"`
	IsSignificant   bool    `json:"is_significant"`
	ConfidenceLevel string  `json:"confidence_level"` // high | medium | low
}

// LocationProfile is the per-grid-cell drill-down.
type LocationProfile struct {
	GridID            string             `json:"grid_id"`
	TotalStops        int64              `json:"total_stops"`
	HourDistribution  []float64          `json:"hour_distribution"` // 24 probabilities
	DayDistribution   []float64          `json:"day_distribution"`  // 7 probabilities
	PeakHours         []int              `json:"peak_hours"`
	PeakDays          []string           `json:"peak_days"`
	HourConcentration float64            `json:"hour_concentration"`
	DayConcentration  float64            `json:"day_concentration"`
	Methods           []ShareMetric      `json:"method_distribution"`
	PrimaryMethod     MethodCategory     `json:"primary_method"`
	AvgSpeedOver      float64            `json:"avg_speed_over"`
	Strictness        Strictness         `json:"strictness"`
	Significance      SignificanceResult `json:"significance"`
}

// GridID encodes a 2-decimal grid cell as "lat,lng". Pattern discovery
// and location profiles must agree on this key byte-for-byte.
func GridID(lat, lng float64) string {
	return fmt.Sprintf("%.2f,%.2f", lat, lng)
}

// ParseGridID decodes a grid key back into its cell center.
func ParseGridID(id string) (lat, lng float64, err error) {
	parts := strings.Split(strings.TrimSpace(id), ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("grid id must be lat,lng: %q", id)
	}
	lat, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("grid id latitude: %w", err)
	}
	lng, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("grid id longitude: %w", err)
	}
	return lat, lng, nil
}
