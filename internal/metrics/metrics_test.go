package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"jalrakshak-monitor/internal/models"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRefresh(RefreshSuccess)
		m.ObserveReplay("create", "success")
		m.SetFallback(true)
		m.SetRecords(3, 1)
		m.ObserveNotification(models.KindInfo)
		m.ObserveAssessment(models.RiskAssessment{})
		m.ObserveRequest("GET", "/health")
	})
}

func TestCollectors(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveRefresh(RefreshSuccess)
	m.ObserveRefresh(RefreshSuccess)
	m.ObserveRefresh(RefreshFailure)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RefreshTotal.WithLabelValues(RefreshSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RefreshTotal.WithLabelValues(RefreshFailure)))

	m.SetFallback(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FallbackActive))
	m.SetFallback(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.FallbackActive))

	m.SetRecords(4, 2)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.Records))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PendingSync))

	m.ObserveAssessment(models.RiskAssessment{FloodScore: 88, Decision: models.Decision{Status: models.DecisionWarning}})
	assert.Equal(t, 88.0, testutil.ToFloat64(m.FloodScore))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DecisionTier.WithLabelValues("warning")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.DecisionTier.WithLabelValues("critical")))
}
