package parser

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jalrakshak-monitor/internal/models"
)

func TestParseCSV(t *testing.T) {
	in := `timestamp,level,ph,turbidity
2024-07-01T10:00:00Z,41.25,7.1,2.4
2024-07-01T10:00:03Z,not-a-number,7.1,2.4
2024-07-01 10:00:06,41.4,7.2,2.5
`
	samples, err := NewParser("csv").Parse(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, samples, 2)

	assert.Equal(t, 41.25, samples[0].WaterLevelFeet)
	assert.Equal(t, 7.1, samples[0].PH)
	assert.Equal(t, 2.4, samples[0].TurbidityNTU)
	assert.Equal(t, time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC), samples[0].Timestamp)
	assert.Equal(t, 41.4, samples[1].WaterLevelFeet)
}

func TestParseJSONArrayAndLines(t *testing.T) {
	array := `[{"water_level_ft":40.1,"ph":7.0,"turbidity_ntu":1.5},{"water_level_ft":40.2,"ph":7.0,"turbidity_ntu":1.6}]`
	samples, err := NewParser("json").Parse(strings.NewReader(array))
	require.NoError(t, err)
	assert.Len(t, samples, 2)

	lines := "{\"water_level_ft\":40.1,\"ph\":7.0,\"turbidity_ntu\":1.5}\n{broken\n{\"water_level_ft\":40.3,\"ph\":7.0,\"turbidity_ntu\":1.5}\n"
	samples, err = NewParser("json").Parse(strings.NewReader(lines))
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, 40.3, samples[1].WaterLevelFeet)
}

func TestParseLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gauge.log")
	content := `# station ward-a
2024-07-01T10:00:00Z|44.9|7.3|2.0
2024-07-01T10:00:03Z|45.1
bad-time|45.1|7.3|2.0
1719828009|45.3|7.4|2.1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	samples, err := NewParser("log").ParseFile(path)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, 44.9, samples[0].WaterLevelFeet)
	assert.Equal(t, int64(1719828009), samples[1].Timestamp.Unix())
}

func TestUnsupportedFormat(t *testing.T) {
	_, err := NewParser("xml").Parse(strings.NewReader(""))
	assert.Error(t, err)

	_, err = NewParser("csv").ParseFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestValidateSample(t *testing.T) {
	ok := models.TelemetrySample{WaterLevelFeet: 42, PH: 7, TurbidityNTU: 2}
	assert.Empty(t, ValidateSample(&ok))

	bad := models.TelemetrySample{WaterLevelFeet: -1, PH: 15, TurbidityNTU: -0.5}
	assert.Len(t, ValidateSample(&bad), 3)

	nan := models.TelemetrySample{WaterLevelFeet: math.NaN()}
	errs := ValidateSample(&nan)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "water_level_ft")
}
