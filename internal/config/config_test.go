package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5*time.Second, cfg.Sync.PollInterval)
	assert.Equal(t, 4*time.Second, cfg.Sync.RequestTimeout)
	assert.Equal(t, 1, cfg.Sync.Breaker.MaxFailures)
	assert.Zero(t, cfg.Sync.Breaker.Cooldown)
	assert.Equal(t, 45.0, cfg.Scoring.DangerLevelFeet)
	assert.Equal(t, 5, cfg.Scoring.ComplaintSpike)
}

func TestLoadYAMLOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jalrakshak.yaml")
	content := `
portal:
  addr: ":9090"
  store_url: "http://store.internal:8081"
sync:
  poll_interval: 10s
  breaker:
    max_failures: 3
    cooldown: 30s
scoring:
  warning_level_ft: 38
telemetry:
  source: replay
  file: gauge.log
  format: log
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Portal.Addr)
	assert.Equal(t, "jalrakshak_portal.db", cfg.Portal.DBPath, "unset keys keep defaults")
	assert.Equal(t, 10*time.Second, cfg.Sync.PollInterval)
	assert.Equal(t, 3, cfg.Sync.Breaker.MaxFailures)
	assert.Equal(t, 30*time.Second, cfg.Sync.Breaker.Cooldown)
	assert.Equal(t, 38.0, cfg.Scoring.WarningLevelFeet)
	assert.Equal(t, 45.0, cfg.Scoring.CriticalLevelFeet)
	assert.Equal(t, "replay", cfg.Telemetry.Source)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	env := map[string]string{
		"JALRAKSHAK_STORE_URL":            "http://10.0.0.5:8081",
		"JALRAKSHAK_POLL_INTERVAL":        "2s",
		"JALRAKSHAK_BREAKER_MAX_FAILURES": "2",
		"JALRAKSHAK_KAFKA_BROKERS":        "k1:9092, k2:9092,",
		"JALRAKSHAK_LOG_LEVEL":            "debug",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, cfg.applyEnv(lookup))
	assert.Equal(t, "http://10.0.0.5:8081", cfg.Portal.StoreURL)
	assert.Equal(t, 2*time.Second, cfg.Sync.PollInterval)
	assert.Equal(t, 2, cfg.Sync.Breaker.MaxFailures)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Alerts.Kafka.Brokers)
	assert.True(t, cfg.Alerts.Kafka.Enabled())
	assert.Equal(t, "debug", cfg.Log.Level)

	bad := Default()
	err := bad.applyEnv(func(k string) (string, bool) {
		if k == "JALRAKSHAK_TICK_INTERVAL" {
			return "soon", true
		}
		return "", false
	})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"relative store url", func(c *Config) { c.Portal.StoreURL = "store:8081" }},
		{"replay without file", func(c *Config) { c.Telemetry.Source = "replay" }},
		{"unknown source", func(c *Config) { c.Telemetry.Source = "satellite" }},
		{"bad level", func(c *Config) { c.Log.Level = "chatty" }},
		{"negative cooldown", func(c *Config) { c.Sync.Breaker.Cooldown = -time.Second }},
		{"empty addr", func(c *Config) { c.Store.Addr = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	data, err := Default().Marshal()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Sync.PollInterval, cfg.Sync.PollInterval)
}
