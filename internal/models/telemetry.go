package models

import (
	"math"
	"time"
)

// TelemetrySample represents a single reading from the river and supply sensors
type TelemetrySample struct {
	WaterLevelFeet float64   `json:"water_level_ft"`
	PH             float64   `json:"ph"`
	TurbidityNTU   float64   `json:"turbidity_ntu"`
	Timestamp      time.Time `json:"timestamp"`
}

// Validate rejects samples the scorer cannot reason about
func (s TelemetrySample) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{
		{"water_level_ft", s.WaterLevelFeet},
		{"ph", s.PH},
		{"turbidity_ntu", s.TurbidityNTU},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return &ValidationError{Field: f.name, Reason: "must be a finite number"}
		}
	}
	return nil
}

// Severity of an alert event
type Severity string

const (
	SeveritySafe    Severity = "safe"
	SeverityWarning Severity = "warning"
	SeverityDanger  Severity = "danger"
)

// AlertEvent represents a discrete safety signal
type AlertEvent struct {
	ID        string   `json:"id"`
	Message   string   `json:"message"`
	Severity  Severity `json:"severity"`
	Timestamp string   `json:"timestamp"`
}

// SeedAlerts returns the alerts shown before any feed is connected
func SeedAlerts() []AlertEvent {
	return []AlertEvent{
		{ID: "1", Message: "Flood Warning: Panchganga River level rising above 45ft.", Severity: SeverityDanger, Timestamp: "10 mins ago"},
		{ID: "2", Message: "Safe drinking water supply restored in Ward C.", Severity: SeveritySafe, Timestamp: "2 hours ago"},
	}
}
