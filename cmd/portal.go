package main

import (
	"fmt"
	"math/rand"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"jalrakshak-monitor/internal/alerts"
	"jalrakshak-monitor/internal/api"
	"jalrakshak-monitor/internal/config"
	"jalrakshak-monitor/internal/db"
	"jalrakshak-monitor/internal/gateway"
	"jalrakshak-monitor/internal/models"
	"jalrakshak-monitor/internal/monitor"
	"jalrakshak-monitor/internal/parser"
	"jalrakshak-monitor/internal/reconciler"
	"jalrakshak-monitor/internal/scoring"
	"jalrakshak-monitor/internal/telemetry"
)

// portalCmd starts the portal: reconciler, monitor and API
func portalCmd() *cobra.Command {
	var addr, storeURL, dbPath string

	cmd := &cobra.Command{
		Use:   "portal",
		Short: "Start the portal with complaint sync and risk monitoring",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				cfg.Portal.Addr = addr
			}
			if storeURL != "" {
				cfg.Portal.StoreURL = storeURL
			}
			if dbPath != "" {
				cfg.Portal.DBPath = dbPath
			}

			database, err := db.New(cfg.Portal.DBPath)
			if err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			defer database.Close()

			reg, m := newRegistry()

			gw := gateway.New(cfg.Portal.StoreURL, cfg.Sync.RequestTimeout, logger)
			snapshots := db.NewSnapshotStore(database, cfg.Portal.Snapshot, logger)
			rec := reconciler.New(gw, snapshots, cfg.Sync, logger, m)
			rec.Initialize()
			rec.OnNotification(func(n models.Notification) {
				logger.Info("notification", "kind", n.Kind, "title", n.Title, "complaint_id", n.ComplaintID)
			})

			feed := alerts.NewFeed(models.SeedAlerts()...)
			var consumer *alerts.KafkaConsumer
			if cfg.Alerts.Kafka.Enabled() {
				consumer, err = alerts.NewKafkaConsumer(cfg.Alerts.Kafka, feed, logger)
				if err != nil {
					return fmt.Errorf("kafka error: %w", err)
				}
			}

			src, err := telemetrySource(cfg.Telemetry)
			if err != nil {
				return err
			}
			mon := monitor.New(scoring.New(cfg.Scoring), src, rec, feed, cfg.Monitor, logger, m)
			if cfg.Telemetry.Influx.Enabled() {
				sink := telemetry.NewInfluxSink(cfg.Telemetry.Influx, logger)
				defer sink.Close()
				mon.WithSink(sink)
			}

			server := api.NewPortalServer(rec, mon, feed, logger, m)
			server.ExposeMetrics(reg)

			ctx, stop := signalContext()
			defer stop()

			fmt.Printf("Portal listening on %s (store: %s, snapshot db: %s)\n",
				cfg.Portal.Addr, cfg.Portal.StoreURL, cfg.Portal.DBPath)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				rec.Run(gctx)
				return nil
			})
			g.Go(func() error {
				mon.Run(gctx)
				return nil
			})
			if consumer != nil {
				g.Go(func() error {
					consumer.Run(gctx)
					return nil
				})
			}
			g.Go(func() error {
				return serve(gctx, cfg.Portal.Addr, server.Handler())
			})
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides portal.addr)")
	cmd.Flags().StringVar(&storeURL, "store-url", "", "Complaint store base URL (overrides portal.store_url)")
	cmd.Flags().StringVar(&dbPath, "db", "", "Snapshot database path (overrides portal.db_path)")
	return cmd
}

// telemetrySource builds the configured sample source
func telemetrySource(tc config.TelemetryConfig) (telemetry.Source, error) {
	if tc.Source == "replay" {
		samples, err := parser.NewParser(tc.Format).WithLogger(logger).ParseFile(tc.File)
		if err != nil {
			return nil, fmt.Errorf("telemetry file: %w", err)
		}
		replay, err := telemetry.NewReplay(samples)
		if err != nil {
			return nil, fmt.Errorf("telemetry file %s: %w", tc.File, err)
		}
		logger.Info("telemetry_replay_loaded", "file", tc.File, "samples", replay.Len())
		return replay, nil
	}

	var rng *rand.Rand
	if tc.Seed != 0 {
		rng = rand.New(rand.NewSource(tc.Seed))
	}
	return telemetry.NewSimulator(telemetry.Baseline, rng), nil
}
