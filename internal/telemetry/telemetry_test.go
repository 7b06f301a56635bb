package telemetry

import (
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jalrakshak-monitor/internal/models"
)

func TestSimulatorDriftStaysWithinStep(t *testing.T) {
	sim := NewSimulator(Baseline, rand.New(rand.NewSource(42)))
	prev := Baseline

	for i := 0; i < 200; i++ {
		s := sim.Sample()
		assert.LessOrEqual(t, math.Abs(s.WaterLevelFeet-prev.WaterLevelFeet), 0.1+1e-9)
		// rounding to one decimal can turn a 0.05 step into 0.1
		assert.LessOrEqual(t, math.Abs(s.PH-prev.PH), 0.1+1e-9)
		assert.LessOrEqual(t, math.Abs(s.TurbidityNTU-prev.TurbidityNTU), 0.15+1e-9)
		assert.GreaterOrEqual(t, s.TurbidityNTU, 0.0)
		assert.Equal(t, s.WaterLevelFeet, math.Round(s.WaterLevelFeet*100)/100)
		assert.Equal(t, s.PH, math.Round(s.PH*10)/10)
		assert.False(t, s.Timestamp.IsZero())
		prev = s
	}
}

func TestSimulatorIsDeterministicForSeed(t *testing.T) {
	a := NewSimulator(Baseline, rand.New(rand.NewSource(7)))
	b := NewSimulator(Baseline, rand.New(rand.NewSource(7)))
	for i := 0; i < 10; i++ {
		sa, sb := a.Sample(), b.Sample()
		assert.Equal(t, sa.WaterLevelFeet, sb.WaterLevelFeet)
		assert.Equal(t, sa.PH, sb.PH)
		assert.Equal(t, sa.TurbidityNTU, sb.TurbidityNTU)
	}
}

func TestReplayCycles(t *testing.T) {
	_, err := NewReplay(nil)
	assert.ErrorIs(t, err, ErrNoSamples)

	r, err := NewReplay([]models.TelemetrySample{{WaterLevelFeet: 1}, {WaterLevelFeet: 2}})
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())

	var got []float64
	for i := 0; i < 5; i++ {
		got = append(got, r.Sample().WaterLevelFeet)
	}
	assert.Equal(t, []float64{1, 2, 1, 2, 1}, got)
}

func TestNewPoint(t *testing.T) {
	ts := time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)
	p := NewPoint("ward-a", models.TelemetrySample{WaterLevelFeet: 41.5, PH: 7.1, TurbidityNTU: 3.2, Timestamp: ts})

	assert.Equal(t, Measurement, p.Name())
	assert.True(t, ts.Equal(p.Time()))

	require.Len(t, p.TagList(), 1)
	assert.Equal(t, "station", p.TagList()[0].Key)
	assert.Equal(t, "ward-a", p.TagList()[0].Value)

	fields := map[string]interface{}{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	assert.Equal(t, 41.5, fields["water_level_ft"])
	assert.Equal(t, 7.1, fields["ph"])
	assert.Equal(t, 3.2, fields["turbidity_ntu"])
}

func TestInfluxSinkWritesLineProtocol(t *testing.T) {
	var mu sync.Mutex
	var body, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		mu.Lock()
		body = string(raw)
		path = r.URL.Path
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewInfluxSink(InfluxConfig{URL: srv.URL, Token: "t", Org: "city", Bucket: "water", Station: "ward-a", Timeout: time.Second}, nil)
	defer sink.Close()

	err := sink.Write(models.TelemetrySample{WaterLevelFeet: 41.5, PH: 7.1, TurbidityNTU: 3.2, Timestamp: time.Now()})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/api/v2/write", path)
	assert.True(t, strings.HasPrefix(body, "water_telemetry,station=ward-a "), body)
	assert.Contains(t, body, "water_level_ft=41.5")
}

func TestInfluxConfigEnabled(t *testing.T) {
	assert.False(t, InfluxConfig{}.Enabled())
	assert.False(t, InfluxConfig{URL: "http://x"}.Enabled())
	assert.False(t, InfluxConfig{URL: "http://x", Org: "o"}.Enabled())
	assert.False(t, InfluxConfig{Org: "o", Bucket: "b"}.Enabled())
	assert.True(t, InfluxConfig{URL: "http://x", Bucket: "b"}.Enabled(), "org is optional")
}
