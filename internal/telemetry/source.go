// Package telemetry produces river and water-quality samples for the monitor.
package telemetry

import (
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"jalrakshak-monitor/internal/models"
)

// Source yields the latest sample on every tick
type Source interface {
	Sample() models.TelemetrySample
}

// Sink receives every sample the monitor scores
type Sink interface {
	Write(s models.TelemetrySample) error
}

// Baseline is the reading the simulator starts from
var Baseline = models.TelemetrySample{WaterLevelFeet: 45.2, PH: 7.2, TurbidityNTU: 2.1}

// Simulator drifts a sample by a small random step on each call
type Simulator struct {
	mu   sync.Mutex
	rng  *rand.Rand
	now  func() time.Time
	last models.TelemetrySample
}

// NewSimulator starts from start; a nil rng is seeded from the clock
func NewSimulator(start models.TelemetrySample, rng *rand.Rand) *Simulator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Simulator{rng: rng, now: time.Now, last: start}
}

// Sample returns the next drifted reading. Water level moves by up to 0.1 ft
// at 2 decimals, pH by up to 0.05 at 1 decimal, turbidity by up to 0.1 NTU at
// 1 decimal.
func (s *Simulator) Sample() models.TelemetrySample {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := models.TelemetrySample{
		WaterLevelFeet: round(s.last.WaterLevelFeet+s.rng.Float64()*0.2-0.1, 2),
		PH:             round(s.last.PH+s.rng.Float64()*0.1-0.05, 1),
		TurbidityNTU:   round(s.last.TurbidityNTU+s.rng.Float64()*0.2-0.1, 1),
		Timestamp:      s.now().UTC(),
	}
	if next.TurbidityNTU < 0 {
		next.TurbidityNTU = 0
	}
	s.last = next
	return next
}

// ErrNoSamples is returned when a replay source is built from nothing
var ErrNoSamples = errors.New("no telemetry samples to replay")

// Replay cycles through recorded samples
type Replay struct {
	mu      sync.Mutex
	samples []models.TelemetrySample
	next    int
}

func NewReplay(samples []models.TelemetrySample) (*Replay, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}
	out := make([]models.TelemetrySample, len(samples))
	copy(out, samples)
	return &Replay{samples: out}, nil
}

func (r *Replay) Sample() models.TelemetrySample {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.samples[r.next]
	r.next = (r.next + 1) % len(r.samples)
	return s
}

// Len returns the number of recorded samples
func (r *Replay) Len() int {
	return len(r.samples)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
