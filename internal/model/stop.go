package model

import "time"

// StopRecord is one geotagged traffic stop. The table is populated by an
// external import job; this service only ever reads it.
type StopRecord struct {
	ID               int64     `gorm:"primaryKey"`
	OccurredAt       time.Time `gorm:"column:occurred_at"`
	Latitude         float64   `gorm:"column:latitude"`
	Longitude        float64   `gorm:"column:longitude"`
	DetectionMethod  string    `gorm:"column:detection_method"`
	SpeedOver        *int      `gorm:"column:speed_over"`
	PostedSpeedLimit *int      `gorm:"column:posted_speed_limit"`
	ChargeType       string    `gorm:"column:charge_type"`
	VehicleMake      string    `gorm:"column:vehicle_make"`
	HasAlcohol       bool      `gorm:"column:has_alcohol"`
	HasAccident      bool      `gorm:"column:has_accident"`
	Location         string    `gorm:"column:location"`
	SubAgency        string    `gorm:"column:sub_agency"`
}

func (StopRecord) TableName() string {
	return "stop_records"
}
