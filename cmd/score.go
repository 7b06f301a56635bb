package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"jalrakshak-monitor/internal/models"
	"jalrakshak-monitor/internal/parser"
	"jalrakshak-monitor/internal/scoring"
	"jalrakshak-monitor/internal/telemetry"
)

// scoreCmd scores a single reading
func scoreCmd() *cobra.Command {
	var level, ph, turbidity float64
	var danger, open int
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score one reading into a risk assessment",
		RunE: func(cmd *cobra.Command, args []string) error {
			sample := models.TelemetrySample{
				WaterLevelFeet: level,
				PH:             ph,
				TurbidityNTU:   turbidity,
				Timestamp:      time.Now().UTC(),
			}
			if errs := parser.ValidateSample(&sample); len(errs) > 0 {
				return fmt.Errorf("invalid reading: %s", strings.Join(errs, "; "))
			}

			a := scoring.New(cfg.Scoring).AssessCounts(sample, danger, open)
			if outputFormat == "json" {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(a)
			}

			fmt.Printf("Flood score:   %d (%s)\n", a.FloodScore, a.FloodLabel)
			fmt.Printf("Water safety:  %s\n", a.SafetyStatus)
			fmt.Printf("Decision:      %s - %s\n", a.Decision.Label, a.Decision.Message)
			for i, action := range a.Decision.Actions {
				fmt.Printf("  %d. %s\n", i+1, action)
			}
			if a.Precedent != nil {
				dir := "below"
				if a.Precedent.Worse {
					dir = "above"
				}
				fmt.Printf("Precedent:     %s %d (%.1f ft), %.1f ft %s it\n",
					a.Precedent.Event.Month, a.Precedent.Event.Year, a.Precedent.Event.LevelFeet,
					a.Precedent.DeltaFeet, dir)
			}
			return nil
		},
	}

	cmd.Flags().Float64VarP(&level, "level", "l", telemetry.Baseline.WaterLevelFeet, "River level in feet")
	cmd.Flags().Float64Var(&ph, "ph", telemetry.Baseline.PH, "pH")
	cmd.Flags().Float64VarP(&turbidity, "turbidity", "t", telemetry.Baseline.TurbidityNTU, "Turbidity in NTU")
	cmd.Flags().IntVarP(&danger, "danger", "d", 0, "Active danger alerts")
	cmd.Flags().IntVar(&open, "open", 0, "Open complaints")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, json)")
	return cmd
}

// replayCmd scores every reading in telemetry files
func replayCmd() *cobra.Command {
	var format string
	var danger, open int
	var toInflux bool

	cmd := &cobra.Command{
		Use:   "replay [file...]",
		Short: "Score recorded telemetry files reading by reading",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scorer := scoring.New(cfg.Scoring)
			p := parser.NewParser(format).WithLogger(logger)

			var sink *telemetry.InfluxSink
			if toInflux {
				if !cfg.Telemetry.Influx.Enabled() {
					return fmt.Errorf("--influx needs telemetry.influx url and bucket")
				}
				sink = telemetry.NewInfluxSink(cfg.Telemetry.Influx, logger)
				defer sink.Close()
			}

			tiers := map[models.DecisionStatus]int{}
			invalid := 0
			for _, file := range args {
				fmt.Printf("Processing %s...\n", file)
				start := time.Now()

				samples, err := p.ParseFile(file)
				if err != nil {
					fmt.Printf("  Error: %v\n", err)
					continue
				}

				for _, s := range samples {
					if errs := parser.ValidateSample(&s); len(errs) > 0 {
						invalid++
						continue
					}
					a := scorer.AssessCounts(s, danger, open)
					tiers[a.Decision.Status]++
					fmt.Printf("[%s] level %.2f ft | pH %.1f | %.1f NTU -> %3d %-8s %-8s %s\n",
						s.Timestamp.Format("2006-01-02 15:04:05"),
						s.WaterLevelFeet, s.PH, s.TurbidityNTU,
						a.FloodScore, a.FloodLabel, a.SafetyStatus, a.Decision.Status)

					if sink != nil {
						// the sink logs its own failures
						_ = sink.Write(s)
					}
				}
				fmt.Printf("  %d readings in %v\n", len(samples), time.Since(start))
			}

			fmt.Printf("\nCritical: %d  Warning: %d  Normal: %d",
				tiers[models.DecisionCritical], tiers[models.DecisionWarning], tiers[models.DecisionNormal])
			if invalid > 0 {
				fmt.Printf("  Invalid: %d", invalid)
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "csv", "File format (csv, json, log)")
	cmd.Flags().IntVarP(&danger, "danger", "d", 0, "Active danger alerts to assume")
	cmd.Flags().IntVar(&open, "open", 0, "Open complaints to assume")
	cmd.Flags().BoolVar(&toInflux, "influx", false, "Also write each reading to InfluxDB")
	return cmd
}
