// Package config loads settings from defaults, a YAML file and JALRAKSHAK_*
// environment variables, in that order.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"jalrakshak-monitor/internal/alerts"
	"jalrakshak-monitor/internal/logging"
	"jalrakshak-monitor/internal/monitor"
	"jalrakshak-monitor/internal/reconciler"
	"jalrakshak-monitor/internal/scoring"
	"jalrakshak-monitor/internal/telemetry"
)

const envPrefix = "JALRAKSHAK_"

// Config is the full application configuration
type Config struct {
	Log       logging.Config     `yaml:"log"`
	Store     StoreConfig        `yaml:"store"`
	Portal    PortalConfig       `yaml:"portal"`
	Sync      reconciler.Config  `yaml:"sync"`
	Scoring   scoring.Thresholds `yaml:"scoring"`
	Monitor   monitor.Config     `yaml:"monitor"`
	Telemetry TelemetryConfig    `yaml:"telemetry"`
	Alerts    AlertsConfig       `yaml:"alerts"`
}

// StoreConfig configures the complaint store service
type StoreConfig struct {
	Addr   string `yaml:"addr"`
	DBPath string `yaml:"db_path"`
}

// PortalConfig configures the portal and its link to the store
type PortalConfig struct {
	Addr     string `yaml:"addr"`
	StoreURL string `yaml:"store_url"`
	DBPath   string `yaml:"db_path"`
	Snapshot string `yaml:"snapshot"`
}

// TelemetryConfig selects where samples come from and go to
type TelemetryConfig struct {
	Source string                 `yaml:"source"` // simulator or replay
	File   string                 `yaml:"file"`
	Format string                 `yaml:"format"`
	Seed   int64                  `yaml:"seed"`
	Influx telemetry.InfluxConfig `yaml:"influx"`
}

type AlertsConfig struct {
	Kafka alerts.KafkaConfig `yaml:"kafka"`
}

// Default returns a configuration that runs store and portal on one host
func Default() Config {
	return Config{
		Log:   logging.Config{Level: "info", Format: "text"},
		Store: StoreConfig{Addr: ":8081", DBPath: "jalrakshak_store.db"},
		Portal: PortalConfig{
			Addr:     ":8080",
			StoreURL: "http://localhost:8081",
			DBPath:   "jalrakshak_portal.db",
			Snapshot: "complaints",
		},
		Sync:    reconciler.DefaultConfig(),
		Scoring: scoring.DefaultThresholds(),
		Monitor: monitor.Config{TickInterval: monitor.DefaultTick},
		Telemetry: TelemetryConfig{
			Source: "simulator",
			Format: "csv",
			Influx: telemetry.InfluxConfig{Station: "panchganga"},
		},
		Alerts: AlertsConfig{Kafka: alerts.KafkaConfig{GroupID: "jalrakshak-portal", Topic: "water-alerts"}},
	}
}

// Load reads path (optional) over the defaults and applies env overrides
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read the config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok {
			*dst = v
		}
	}
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("LOG_FILE", &c.Log.File)
	str("STORE_ADDR", &c.Store.Addr)
	str("STORE_DB", &c.Store.DBPath)
	str("PORTAL_ADDR", &c.Portal.Addr)
	str("PORTAL_DB", &c.Portal.DBPath)
	str("STORE_URL", &c.Portal.StoreURL)
	str("TELEMETRY_SOURCE", &c.Telemetry.Source)
	str("TELEMETRY_FILE", &c.Telemetry.File)
	str("INFLUX_URL", &c.Telemetry.Influx.URL)
	str("INFLUX_TOKEN", &c.Telemetry.Influx.Token)
	str("INFLUX_ORG", &c.Telemetry.Influx.Org)
	str("INFLUX_BUCKET", &c.Telemetry.Influx.Bucket)
	str("KAFKA_TOPIC", &c.Alerts.Kafka.Topic)

	if v, ok := lookup(envPrefix + "KAFKA_BROKERS"); ok {
		c.Alerts.Kafka.Brokers = splitList(v)
	}

	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{"POLL_INTERVAL", &c.Sync.PollInterval},
		{"REQUEST_TIMEOUT", &c.Sync.RequestTimeout},
		{"BREAKER_COOLDOWN", &c.Sync.Breaker.Cooldown},
		{"TICK_INTERVAL", &c.Monitor.TickInterval},
	}
	for _, d := range durations {
		if v, ok := lookup(envPrefix + d.name); ok {
			parsed, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", envPrefix, d.name, err)
			}
			*d.dst = parsed
		}
	}

	if v, ok := lookup(envPrefix + "BREAKER_MAX_FAILURES"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sBREAKER_MAX_FAILURES: %w", envPrefix, err)
		}
		c.Sync.Breaker.MaxFailures = n
	}
	return nil
}

// Validate rejects settings no command can run with
func (c Config) Validate() error {
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Store.Addr == "" || c.Portal.Addr == "" {
		return fmt.Errorf("listen addresses must not be empty")
	}
	u, err := url.Parse(c.Portal.StoreURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("portal.store_url %q is not an absolute URL", c.Portal.StoreURL)
	}
	switch c.Telemetry.Source {
	case "simulator":
	case "replay":
		if c.Telemetry.File == "" {
			return fmt.Errorf("telemetry.file is required for the replay source")
		}
	default:
		return fmt.Errorf("unknown telemetry source %q", c.Telemetry.Source)
	}
	if c.Sync.PollInterval < 0 || c.Sync.RequestTimeout < 0 || c.Monitor.TickInterval < 0 {
		return fmt.Errorf("intervals must not be negative")
	}
	if c.Sync.Breaker.Cooldown < 0 {
		return fmt.Errorf("breaker cooldown must not be negative")
	}
	return nil
}

// Marshal renders the configuration as YAML
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
