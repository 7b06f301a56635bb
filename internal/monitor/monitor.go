// Package monitor drives the telemetry tick and keeps the current risk
// assessment in step with telemetry, alerts and open complaints.
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"jalrakshak-monitor/internal/metrics"
	"jalrakshak-monitor/internal/models"
	"jalrakshak-monitor/internal/scoring"
	"jalrakshak-monitor/internal/telemetry"
)

// DefaultTick is how often a new sample is taken
const DefaultTick = 3 * time.Second

// ComplaintSource is the part of the reconciler the monitor reads
type ComplaintSource interface {
	OpenCount() int
	Subscribe(fn func([]models.Complaint)) (cancel func())
}

// AlertSource is the part of the alert feed the monitor reads
type AlertSource interface {
	DangerCount() int
	Subscribe(fn func([]models.AlertEvent)) (cancel func())
}

type Config struct {
	TickInterval time.Duration `yaml:"tick_interval"`
}

type inputs struct {
	level, ph, turbidity float64
	dangerAlerts         int
	openComplaints       int
}

// Monitor recomputes the assessment only when its inputs change
type Monitor struct {
	scorer     *scoring.Scorer
	source     telemetry.Source
	sink       telemetry.Sink
	complaints ComplaintSource
	alerts     AlertSource
	cfg        Config
	log        *slog.Logger
	metrics    *metrics.Metrics

	mu       sync.Mutex
	sample   models.TelemetrySample
	danger   int
	open     int
	key      inputs
	current  *models.RiskAssessment
	nextSub  int
	subs     map[int]func(models.RiskAssessment)
	lastTier models.DecisionStatus
}

// New creates a monitor. sink and m may be nil.
func New(scorer *scoring.Scorer, source telemetry.Source, complaints ComplaintSource, alerts AlertSource, cfg Config, logger *slog.Logger, m *metrics.Metrics) *Monitor {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTick
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		scorer:     scorer,
		source:     source,
		complaints: complaints,
		alerts:     alerts,
		cfg:        cfg,
		log:        logger.With("component", "monitor"),
		metrics:    m,
		subs:       make(map[int]func(models.RiskAssessment)),
	}
}

// WithSink forwards every accepted sample to s
func (m *Monitor) WithSink(s telemetry.Sink) *Monitor {
	m.sink = s
	return m
}

// Run subscribes to complaint and alert changes, takes a sample now and then
// one per tick until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	cancelComplaints := m.complaints.Subscribe(func(records []models.Complaint) {
		m.setOpen(countOpen(records))
	})
	defer cancelComplaints()
	cancelAlerts := m.alerts.Subscribe(func(list []models.AlertEvent) {
		m.setDanger(scoring.CountDanger(list))
	})
	defer cancelAlerts()

	m.mu.Lock()
	m.open = m.complaints.OpenCount()
	m.danger = m.alerts.DangerCount()
	m.mu.Unlock()

	m.Tick()

	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Tick()
		}
	}
}

// Tick takes one sample and rescores if anything changed
func (m *Monitor) Tick() {
	s := m.source.Sample()
	if err := s.Validate(); err != nil {
		m.log.Warn("sample_rejected", "error", err)
		return
	}
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now().UTC()
	}
	if m.sink != nil {
		if err := m.sink.Write(s); err != nil {
			m.log.Debug("sink_write_failed", "error", err)
		}
	}

	m.mu.Lock()
	m.sample = s
	m.mu.Unlock()
	m.recompute()
}

func (m *Monitor) setOpen(n int) {
	m.mu.Lock()
	m.open = n
	m.mu.Unlock()
	m.recompute()
}

func (m *Monitor) setDanger(n int) {
	m.mu.Lock()
	m.danger = n
	m.mu.Unlock()
	m.recompute()
}

func (m *Monitor) recompute() {
	m.mu.Lock()
	if m.sample.Timestamp.IsZero() {
		// nothing to score before the first sample
		m.mu.Unlock()
		return
	}
	key := inputs{
		level:          m.sample.WaterLevelFeet,
		ph:             m.sample.PH,
		turbidity:      m.sample.TurbidityNTU,
		dangerAlerts:   m.danger,
		openComplaints: m.open,
	}
	if m.current != nil && key == m.key {
		m.mu.Unlock()
		return
	}

	a := m.scorer.AssessCounts(m.sample, m.danger, m.open)
	m.key = key
	m.current = &a
	prevTier := m.lastTier
	m.lastTier = a.Decision.Status
	subs := make([]func(models.RiskAssessment), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	m.metrics.ObserveAssessment(a)
	if prevTier != a.Decision.Status {
		m.log.Info("risk_tier_changed",
			"from", string(prevTier),
			"to", string(a.Decision.Status),
			"flood_score", a.FloodScore,
			"level_ft", a.Sample.WaterLevelFeet,
			"danger_alerts", a.DangerAlerts,
			"open_complaints", a.OpenComplaints)
	}
	for _, fn := range subs {
		fn(a)
	}
}

// Assessment returns the latest assessment, or false before the first sample
func (m *Monitor) Assessment() (models.RiskAssessment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return models.RiskAssessment{}, false
	}
	return *m.current, true
}

// Sample returns the latest accepted sample
func (m *Monitor) Sample() (models.TelemetrySample, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sample, !m.sample.Timestamp.IsZero()
}

// OnAssessment registers fn to receive every new assessment
func (m *Monitor) OnAssessment(fn func(models.RiskAssessment)) (cancel func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

func countOpen(records []models.Complaint) int {
	n := 0
	for _, c := range records {
		if c.Status == models.StatusOpen {
			n++
		}
	}
	return n
}
