package model

// RiskLevel classifies a corridor's enforcement density.
type RiskLevel string

const (
	RiskCritical RiskLevel = "critical"
	RiskHigh     RiskLevel = "high"
	RiskModerate RiskLevel = "moderate"
	RiskLow      RiskLevel = "low"
)

// RiskLevelFor is a pure, monotonic function of stops-per-mile. The
// boundaries are inclusive: exactly 15 stops/mile is critical.
func RiskLevelFor(stopsPerMile, critical, high, moderate float64) RiskLevel {
	switch {
	case stopsPerMile >= critical:
		return RiskCritical
	case stopsPerMile >= high:
		return RiskHigh
	case stopsPerMile >= moderate:
		return RiskModerate
	default:
		return RiskLow
	}
}

// TimeWindow is a contiguous run of hours on one weekday.
type TimeWindow struct {
	Day       string `json:"day"`
	StartHour int    `json:"start_hour"`
	EndHour   int    `json:"end_hour"`
}

// Corridor is a latitude band scored as a road segment.
type Corridor struct {
	CenterLat       float64        `json:"center_lat"`
	MinLng          float64        `json:"min_lng"`
	MaxLng          float64        `json:"max_lng"`
	TotalStops      int64          `json:"total_stops"`
	UniqueLocations int64          `json:"unique_locations"`
	LengthMiles     float64        `json:"length_miles"`
	StopsPerMile    float64        `json:"stops_per_mile"`
	RiskMultiplier  float64        `json:"risk_multiplier"`
	RiskLevel       RiskLevel      `json:"risk_level"`
	DominantMethod  MethodCategory `json:"dominant_method"`
	PeakWindows     []TimeWindow   `json:"peak_windows"`
	HotWindows      []TimeWindow   `json:"hot_windows"`
	SafeWindows     []TimeWindow   `json:"safe_windows"`
	Insight         string         `json:"insight"`
}

// CorridorReport wraps the corridor list with its summary block.
type CorridorReport struct {
	Corridors      []Corridor           `json:"corridors"`
	Summary        CorridorSummary      `json:"summary"`
	RiskLevelGuide map[RiskLevel]string `json:"risk_level_guide"`
}

type CorridorSummary struct {
	CorridorCount      int     `json:"corridor_count"`
	TotalStops         int64   `json:"total_stops"`
	SystemAverage      float64 `json:"system_average_stops"`
	MedianStopsPerMile float64 `json:"median_stops_per_mile"`
	CriticalCount      int     `json:"critical_count"`
	HighCount          int     `json:"high_count"`
}
