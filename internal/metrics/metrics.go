// Package metrics exposes Prometheus collectors for the reconciler, the
// scorer and the HTTP layer.
//
// All helpers are safe to call on a nil *Metrics so components can run
// without instrumentation in tests and one-shot CLI commands.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"jalrakshak-monitor/internal/models"
)

const namespace = "jalrakshak"

// Refresh outcomes
const (
	RefreshSuccess = "success"
	RefreshFailure = "failure"
	RefreshSkipped = "skipped"
	RefreshStale   = "stale"
)

type Metrics struct {
	RefreshTotal   *prometheus.CounterVec
	ReplayTotal    *prometheus.CounterVec
	FallbackActive prometheus.Gauge
	Records        prometheus.Gauge
	PendingSync    prometheus.Gauge
	Notifications  *prometheus.CounterVec
	FloodScore     prometheus.Gauge
	DecisionTier   *prometheus.GaugeVec
	HTTPRequests   *prometheus.CounterVec
}

// New registers every collector on reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RefreshTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "refresh_total",
			Help:      "Reconciliation attempts by result",
		}, []string{"result"}),
		ReplayTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "replay_total",
			Help:      "Offline changes replayed to the remote store by kind and result",
		}, []string{"kind", "result"}),
		FallbackActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "fallback_active",
			Help:      "1 while the remote store is considered unavailable",
		}),
		Records: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "complaints",
			Name:      "records",
			Help:      "Complaints in the local collection",
		}),
		PendingSync: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "complaints",
			Name:      "pending_sync",
			Help:      "Complaints created or changed offline and not yet replayed",
		}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "complaints",
			Name:      "notifications_total",
			Help:      "Notifications emitted by kind",
		}, []string{"kind"}),
		FloodScore: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "flood_score",
			Help:      "Latest flood risk score (0-100)",
		}),
		DecisionTier: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "decision_tier",
			Help:      "1 for the currently selected risk ladder tier",
		}, []string{"status"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method and route template",
		}, []string{"method", "route"}),
	}
}

func (m *Metrics) ObserveRefresh(result string) {
	if m == nil {
		return
	}
	m.RefreshTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveReplay(kind, result string) {
	if m == nil {
		return
	}
	m.ReplayTotal.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) SetFallback(active bool) {
	if m == nil {
		return
	}
	if active {
		m.FallbackActive.Set(1)
	} else {
		m.FallbackActive.Set(0)
	}
}

func (m *Metrics) SetRecords(total, pending int) {
	if m == nil {
		return
	}
	m.Records.Set(float64(total))
	m.PendingSync.Set(float64(pending))
}

func (m *Metrics) ObserveNotification(kind models.NotificationKind) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) ObserveAssessment(a models.RiskAssessment) {
	if m == nil {
		return
	}
	m.FloodScore.Set(float64(a.FloodScore))
	for _, s := range []models.DecisionStatus{models.DecisionCritical, models.DecisionWarning, models.DecisionNormal} {
		v := 0.0
		if s == a.Decision.Status {
			v = 1
		}
		m.DecisionTier.WithLabelValues(string(s)).Set(v)
	}
}

func (m *Metrics) ObserveRequest(method, route string) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route).Inc()
}
