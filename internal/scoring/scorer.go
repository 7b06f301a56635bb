// Package scoring turns telemetry, alerts and complaint counts into a risk
// assessment and a ranked set of recommended actions.
//
// Everything here is a pure function of its inputs; the Scorer only carries
// thresholds.
package scoring

import (
	"fmt"
	"math"
	"time"

	"jalrakshak-monitor/internal/models"
)

const (
	// DefaultDangerLevelFeet is the river level treated as 100% flood risk
	DefaultDangerLevelFeet = 45.0

	dangerAlertPenalty = 10

	phMin           = 6.5
	phMax           = 8.5
	turbidityMaxNTU = 5.0
)

// Thresholds configures the risk ladder
type Thresholds struct {
	DangerLevelFeet   float64 `yaml:"danger_level_ft"`
	CriticalLevelFeet float64 `yaml:"critical_level_ft"`
	WarningLevelFeet  float64 `yaml:"warning_level_ft"`
	ComplaintSpike    int     `yaml:"complaint_spike"`
}

// DefaultThresholds mirrors the levels used by the municipal control room
func DefaultThresholds() Thresholds {
	return Thresholds{
		DangerLevelFeet:   DefaultDangerLevelFeet,
		CriticalLevelFeet: 45,
		WarningLevelFeet:  40,
		ComplaintSpike:    5,
	}
}

var (
	criticalActions = []string{"broadcast red alert", "deploy emergency teams", "activate relief camps"}
	warningActions  = []string{"notify ward officers", "standby emergency teams", "issue advisory"}
	normalActions   = []string{"routine maintenance", "review daily logs", "verify backup power"}
)

// FloodScore scales the level against the danger mark and adds a fixed
// penalty per active danger alert. The result is clamped to [0, 100].
func FloodScore(level, dangerLevel float64, dangerAlerts int) int {
	if dangerLevel <= 0 {
		dangerLevel = DefaultDangerLevelFeet
	}
	if dangerAlerts < 0 {
		dangerAlerts = 0
	}
	raw := (level/dangerLevel)*100 + float64(dangerAlerts*dangerAlertPenalty)
	raw = math.Max(0, math.Min(100, raw))
	return int(math.Round(raw))
}

// FloodLabelFor maps a score to its label, highest bucket first
func FloodLabelFor(score int) models.FloodLabel {
	switch {
	case score > 90:
		return models.FloodCritical
	case score > 75:
		return models.FloodHigh
	case score > 50:
		return models.FloodMedium
	default:
		return models.FloodLow
	}
}

// SafetyStatusFor grades drinking water from pH and turbidity
func SafetyStatusFor(ph, turbidity float64) models.SafetyStatus {
	phBad := ph < phMin || ph > phMax
	turbidityBad := turbidity > turbidityMaxNTU
	switch {
	case phBad && turbidityBad:
		return models.SafetyCritical
	case phBad || turbidityBad:
		return models.SafetyWarning
	default:
		return models.SafetySafe
	}
}

// CountDanger returns how many alerts carry danger severity
func CountDanger(alerts []models.AlertEvent) int {
	n := 0
	for _, a := range alerts {
		if a.Severity == models.SeverityDanger {
			n++
		}
	}
	return n
}

// Inputs feeds the risk ladder
type Inputs struct {
	LevelFeet      float64
	DangerAlerts   int
	OpenComplaints int
}

// Scorer evaluates assessments against a fixed set of thresholds
type Scorer struct {
	th      Thresholds
	history []models.HistoricalEvent
}

// New creates a Scorer. Zero-valued thresholds take their defaults.
func New(th Thresholds) *Scorer {
	def := DefaultThresholds()
	if th.DangerLevelFeet <= 0 {
		th.DangerLevelFeet = def.DangerLevelFeet
	}
	if th.CriticalLevelFeet <= 0 {
		th.CriticalLevelFeet = def.CriticalLevelFeet
	}
	if th.WarningLevelFeet <= 0 {
		th.WarningLevelFeet = def.WarningLevelFeet
	}
	if th.ComplaintSpike <= 0 {
		th.ComplaintSpike = def.ComplaintSpike
	}
	return &Scorer{th: th, history: DefaultHistory()}
}

// WithHistory replaces the historical events used for precedents
func (s *Scorer) WithHistory(events []models.HistoricalEvent) *Scorer {
	s.history = events
	return s
}

// Thresholds returns the active thresholds
func (s *Scorer) Thresholds() Thresholds {
	return s.th
}

// Recommend walks the risk ladder top-down; the first matching tier wins.
func (s *Scorer) Recommend(in Inputs) models.Decision {
	if in.LevelFeet > s.th.CriticalLevelFeet || in.DangerAlerts > 0 {
		return models.Decision{
			Status:  models.DecisionCritical,
			Label:   "CRITICAL SITUATION DETECTED",
			Message: fmt.Sprintf("Water level is at %sft, crossing the danger mark. Immediate evacuation protocol required.", formatLevel(in.LevelFeet)),
			Actions: clone(criticalActions),
		}
	}

	spike := in.OpenComplaints > s.th.ComplaintSpike
	if in.LevelFeet > s.th.WarningLevelFeet || spike {
		msg := fmt.Sprintf("Water level rising (%sft). Precautionary measures advised.", formatLevel(in.LevelFeet))
		if spike {
			msg = fmt.Sprintf("Unusual spike in complaints (%d open). Possible infrastructure failure.", in.OpenComplaints)
		}
		return models.Decision{
			Status:  models.DecisionWarning,
			Label:   "WARNING: ACTION REQUIRED",
			Message: msg,
			Actions: clone(warningActions),
		}
	}

	return models.Decision{
		Status:  models.DecisionNormal,
		Label:   "SYSTEM STATUS: NORMAL",
		Message: "All parameters within safe limits. Routine monitoring in progress.",
		Actions: clone(normalActions),
	}
}

// Assess builds a fresh assessment from the current inputs
func (s *Scorer) Assess(sample models.TelemetrySample, alerts []models.AlertEvent, openComplaints int) models.RiskAssessment {
	return s.AssessCounts(sample, CountDanger(alerts), openComplaints)
}

// AssessCounts is Assess for callers that already track the danger count
func (s *Scorer) AssessCounts(sample models.TelemetrySample, danger, openComplaints int) models.RiskAssessment {
	if danger < 0 {
		danger = 0
	}
	score := FloodScore(sample.WaterLevelFeet, s.th.DangerLevelFeet, danger)
	a := models.RiskAssessment{
		FloodScore:   score,
		FloodLabel:   FloodLabelFor(score),
		SafetyStatus: SafetyStatusFor(sample.PH, sample.TurbidityNTU),
		Decision: s.Recommend(Inputs{
			LevelFeet:      sample.WaterLevelFeet,
			DangerAlerts:   danger,
			OpenComplaints: openComplaints,
		}),
		Sample:         sample,
		DangerAlerts:   danger,
		OpenComplaints: openComplaints,
		ComputedAt:     time.Now().UTC(),
	}
	if p, ok := ClosestPrecedent(sample.WaterLevelFeet, s.history); ok {
		a.Precedent = &p
	}
	return a
}

func formatLevel(level float64) string {
	return fmt.Sprintf("%g", math.Round(level*100)/100)
}

func clone(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
