package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"jalrakshak-monitor/internal/models"
)

// Measurement is the InfluxDB measurement samples are written to
const Measurement = "water_telemetry"

// InfluxConfig locates the bucket samples are written to
type InfluxConfig struct {
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token"`
	Org     string        `yaml:"org"`
	Bucket  string        `yaml:"bucket"`
	Station string        `yaml:"station"`
	Timeout time.Duration `yaml:"timeout"`
}

// Enabled reports whether a sink should be created
func (c InfluxConfig) Enabled() bool {
	return c.URL != "" && c.Bucket != ""
}

// InfluxSink writes samples with the blocking write API
type InfluxSink struct {
	client  influxdb2.Client
	writer  api.WriteAPIBlocking
	station string
	timeout time.Duration
	log     *slog.Logger
}

func NewInfluxSink(cfg InfluxConfig, logger *slog.Logger) *InfluxSink {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Station == "" {
		cfg.Station = "default"
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	logger.Info("influx_sink_ready", "url", cfg.URL, "org", cfg.Org, "bucket", cfg.Bucket, "station", cfg.Station)
	return &InfluxSink{
		client:  client,
		writer:  client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		station: cfg.Station,
		timeout: cfg.Timeout,
		log:     logger.With("component", "influx_sink"),
	}
}

// Write stores one sample
func (s *InfluxSink) Write(sample models.TelemetrySample) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.writer.WritePoint(ctx, NewPoint(s.station, sample)); err != nil {
		s.log.Warn("influx_write_failed", "error", err)
		return fmt.Errorf("write telemetry point: %w", err)
	}
	return nil
}

func (s *InfluxSink) Close() {
	s.client.Close()
}

// NewPoint maps a sample onto the water_telemetry measurement
func NewPoint(station string, sample models.TelemetrySample) *write.Point {
	ts := sample.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return influxdb2.NewPoint(
		Measurement,
		map[string]string{"station": station},
		map[string]interface{}{
			"water_level_ft": sample.WaterLevelFeet,
			"ph":             sample.PH,
			"turbidity_ntu":  sample.TurbidityNTU,
		},
		ts,
	)
}
