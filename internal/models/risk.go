package models

import "time"

// FloodLabel buckets the flood risk score
type FloodLabel string

const (
	FloodLow      FloodLabel = "Low"
	FloodMedium   FloodLabel = "Medium"
	FloodHigh     FloodLabel = "High"
	FloodCritical FloodLabel = "Critical"
)

// SafetyStatus classifies drinking water quality
type SafetyStatus string

const (
	SafetySafe     SafetyStatus = "Safe"
	SafetyWarning  SafetyStatus = "Warning"
	SafetyCritical SafetyStatus = "Critical"
)

// DecisionStatus is the tier selected by the risk ladder
type DecisionStatus string

const (
	DecisionCritical DecisionStatus = "critical"
	DecisionWarning  DecisionStatus = "warning"
	DecisionNormal   DecisionStatus = "normal"
)

// Decision is the recommended response for the current conditions
type Decision struct {
	Status  DecisionStatus `json:"status"`
	Label   string         `json:"label"`
	Message string         `json:"message"`
	Actions []string       `json:"actions"`
}

// HistoricalEvent is a past flood used for comparison
type HistoricalEvent struct {
	Year      int     `json:"year"`
	Month     string  `json:"month"`
	LevelFeet float64 `json:"level_ft"`
	Name      string  `json:"name"`
	Impact    string  `json:"impact"`
	Severity  string  `json:"severity"`
}

// Precedent relates the current level to the closest historical event
type Precedent struct {
	Event     HistoricalEvent `json:"event"`
	DeltaFeet float64         `json:"delta_ft"`
	Worse     bool            `json:"worse"`
}

// RiskAssessment is derived from the latest inputs and never stored
type RiskAssessment struct {
	FloodScore     int             `json:"flood_score"`
	FloodLabel     FloodLabel      `json:"flood_label"`
	SafetyStatus   SafetyStatus    `json:"safety_status"`
	Decision       Decision        `json:"decision"`
	Precedent      *Precedent      `json:"precedent,omitempty"`
	Sample         TelemetrySample `json:"sample"`
	DangerAlerts   int             `json:"danger_alerts"`
	OpenComplaints int             `json:"open_complaints"`
	ComputedAt     time.Time       `json:"computed_at"`
}
