package model

// Strictness labels average speed-over-limit at ticketing.
type Strictness string

const (
	StrictnessStrict   Strictness = "strict"
	StrictnessModerate Strictness = "moderate"
	StrictnessLenient  Strictness = "lenient"
)

// StrictnessFor labels an average speed-over value. Boundaries are
// exclusive upper bounds: avg < strict is "strict", < moderate is
// "moderate", anything else "lenient".
func StrictnessFor(avg, strict, moderate float64) Strictness {
	switch {
	case avg < strict:
		return StrictnessStrict
	case avg < moderate:
		return StrictnessModerate
	default:
		return StrictnessLenient
	}
}

// SpeedBucket is one fixed histogram bucket of speed-over-limit.
type SpeedBucket struct {
	Range        string  `json:"range"`
	Count        int64   `json:"count"`
	Percentage   float64 `json:"percentage"`
	CumulativePc float64 `json:"cumulative_percentage"`
}

// Percentiles of the speed-over distribution. Non-decreasing by
// construction.
type Percentiles struct {
	P10 float64 `json:"p10"`
	P25 float64 `json:"p25"`
	P50 float64 `json:"p50"`
	P75 float64 `json:"p75"`
	P90 float64 `json:"p90"`
}

type MethodThreshold struct {
	Method         MethodCategory `json:"method"`
	Count          int64          `json:"count"`
	AvgSpeedOver   float64        `json:"avg_speed_over"`
	MedianSpeed    float64        `json:"median_speed_over"`
	MinimumTypical float64        `json:"minimum_typical"` // 10th percentile
	Strictness     Strictness     `json:"strictness"`
}

type LocationThreshold struct {
	GridID       string     `json:"grid_id"`
	Count        int64      `json:"count"`
	AvgSpeedOver float64    `json:"avg_speed_over"`
	MinSpeedOver float64    `json:"min_speed_over"`
	Strictness   Strictness `json:"strictness"`
}

type SpeedLimitThreshold struct {
	PostedLimit  int     `json:"posted_limit"`
	Count        int64   `json:"count"`
	AvgSpeedOver float64 `json:"avg_speed_over"`
	MedianSpeed  float64 `json:"median_speed_over"`
}

type ThresholdRecommendations struct {
	General    int    `json:"general"`     // rounded p10
	SafeBuffer int    `json:"safe_buffer"` // max(5, p10-2)
	Insight    string `json:"insight"`
}

// ThresholdProfile is the full speed-enforcement threshold report.
type ThresholdProfile struct {
	SampleCount      int64                    `json:"sample_count"`
	Histogram        []SpeedBucket            `json:"histogram"`
	Overall          Percentiles              `json:"overall"`
	ByMethod         []MethodThreshold        `json:"by_method"`
	StrictLocations  []LocationThreshold      `json:"strict_locations"`
	LenientLocations []LocationThreshold      `json:"lenient_locations"`
	BySpeedLimit     []SpeedLimitThreshold    `json:"by_speed_limit"`
	Recommendations  ThresholdRecommendations `json:"recommendations"`
}
