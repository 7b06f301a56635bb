package scoring

import (
	"math"

	"jalrakshak-monitor/internal/models"
)

// DefaultHistory lists the recorded Panchganga flood peaks
func DefaultHistory() []models.HistoricalEvent {
	return []models.HistoricalEvent{
		{Year: 2021, Month: "July", LevelFeet: 54.0, Name: "Great Floods '21", Impact: "City submerged. 15,000 evacuated.", Severity: "high"},
		{Year: 2019, Month: "August", LevelFeet: 46.5, Name: "Monsoon Surge", Impact: "Riverbanks breached. 2 Wards affected.", Severity: "high"},
		{Year: 2023, Month: "August", LevelFeet: 42.0, Name: "Warning Event", Impact: "Traffic halted on Shivaji Bridge.", Severity: "medium"},
		{Year: 2022, Month: "September", LevelFeet: 38.0, Name: "Heavy Rainfall", Impact: "Minor water logging in low areas.", Severity: "low"},
		{Year: 2020, Month: "June", LevelFeet: 35.0, Name: "Early Monsoon", Impact: "No significant impact.", Severity: "low"},
	}
}

// ClosestPrecedent finds the event whose peak is nearest to level.
// Ties keep the earlier entry in history.
func ClosestPrecedent(level float64, history []models.HistoricalEvent) (models.Precedent, bool) {
	if len(history) == 0 {
		return models.Precedent{}, false
	}
	best := history[0]
	for _, ev := range history[1:] {
		if math.Abs(ev.LevelFeet-level) < math.Abs(best.LevelFeet-level) {
			best = ev
		}
	}
	return models.Precedent{
		Event:     best,
		DeltaFeet: math.Round(math.Abs(level-best.LevelFeet)*10) / 10,
		Worse:     level > best.LevelFeet,
	}, true
}
