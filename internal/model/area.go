package model

// AreaSummary is the composite area-drilldown report. Recomputed per
// request; every distribution's percentages sum to 100 (+-0.1) when the
// total is positive and the list is empty when it is zero.
type AreaSummary struct {
	TotalStops       int64              `json:"total_stops"`
	FirstStopDate    string             `json:"first_stop_date,omitempty"`
	LastStopDate     string             `json:"last_stop_date,omitempty"`
	TopLocation      string             `json:"top_location,omitempty"`
	Vehicles         []ShareMetric      `json:"vehicle_distribution"`
	HourDistribution []HourCount        `json:"hour_distribution"`
	DayDistribution  []DayCount         `json:"day_distribution"`
	Methods          []ShareMetric      `json:"method_distribution"`
	SpeedStats       *SpeedStats        `json:"speed_stats,omitempty"`
	ChargeTypes      []ShareMetric      `json:"charge_type_distribution"`
	Monthly          []PeriodCount      `json:"monthly_distribution"`
	Yearly           []PeriodCount      `json:"yearly_distribution"`
}

// ShareMetric is one labeled slice of a distribution.
type ShareMetric struct {
	Label      string  `json:"label"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

type HourCount struct {
	Hour  int   `json:"hour"`
	Count int64 `json:"count"`
}

type DayCount struct {
	Day   int   `json:"day"` // 0 = Sunday
	Count int64 `json:"count"`
}

type PeriodCount struct {
	Period int   `json:"period"`
	Count  int64 `json:"count"`
}

// SpeedStats is only computed when the filter restricts the dataset to
// speed violations.
type SpeedStats struct {
	AvgSpeedOver float64 `json:"avg_speed_over"`
	MaxSpeedOver int     `json:"max_speed_over"`
}
