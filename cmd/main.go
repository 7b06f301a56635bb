package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"jalrakshak-monitor/internal/api"
	"jalrakshak-monitor/internal/config"
	"jalrakshak-monitor/internal/db"
	"jalrakshak-monitor/internal/logging"
	"jalrakshak-monitor/internal/metrics"
	"jalrakshak-monitor/internal/models"
)

var (
	cfgPath   string
	logLevel  string
	cfg       config.Config
	logger    *slog.Logger
	logCloser io.Closer
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "jalrakshak",
		Short: "JalRakshak - municipal water risk monitoring",
		Long: `Runs the complaint store and the citizen/administrator portal, and scores
river level and water quality readings into flood and safety risk.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(cfgPath)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			logger, logCloser, err = logging.New(cfg.Log, os.Stderr)
			if err != nil {
				return err
			}
			logging.Install(logger)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logCloser != nil {
				logCloser.Close()
			}
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")

	// Add commands
	rootCmd.AddCommand(storeCmd())
	rootCmd.AddCommand(portalCmd())
	rootCmd.AddCommand(scoreCmd())
	rootCmd.AddCommand(replayCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// newRegistry returns a registry with the runtime collectors and our metrics
func newRegistry() (*prometheus.Registry, *metrics.Metrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.New(reg)
}

// serve runs an HTTP server until ctx is done, then drains it
func serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	logger.Info("http_listening", "addr", addr)

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Info("http_shutdown", "addr", addr)
		return srv.Shutdown(shutdownCtx)
	}
}

// storeCmd starts the complaint store service
func storeCmd() *cobra.Command {
	var addr, dbPath string

	cmd := &cobra.Command{
		Use:   "store",
		Short: "Start the complaint store service",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				cfg.Store.Addr = addr
			}
			if dbPath != "" {
				cfg.Store.DBPath = dbPath
			}

			database, err := db.New(cfg.Store.DBPath)
			if err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			defer database.Close()

			reg, m := newRegistry()
			server := api.NewStoreServer(database, logger, m)
			server.ExposeMetrics(reg)

			ctx, stop := signalContext()
			defer stop()

			fmt.Printf("Complaint store listening on %s (database: %s)\n", cfg.Store.Addr, cfg.Store.DBPath)
			fmt.Println("  GET   /api/complaints")
			fmt.Println("  POST  /api/complaints")
			fmt.Println("  GET   /api/complaints/{id}")
			fmt.Println("  PATCH /api/complaints/{id}")
			fmt.Println("  GET   /api/stats")
			fmt.Println()

			return serve(ctx, cfg.Store.Addr, server.Handler())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides store.addr)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (overrides store.db_path)")
	return cmd
}

// seedCmd loads the demo complaints into the store database
func seedCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert the demo complaints into the store database",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath != "" {
				cfg.Store.DBPath = dbPath
			}
			database, err := db.New(cfg.Store.DBPath)
			if err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			defer database.Close()

			n, err := database.SeedComplaints(models.SeedComplaints(time.Now().UTC()))
			if err != nil {
				return fmt.Errorf("seed error: %w", err)
			}
			fmt.Printf("Inserted %d complaints into %s\n", n, cfg.Store.DBPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (overrides store.db_path)")
	return cmd
}

// statsCmd shows complaint statistics
func statsCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show complaint store statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath != "" {
				cfg.Store.DBPath = dbPath
			}
			database, err := db.New(cfg.Store.DBPath)
			if err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			defer database.Close()

			stats, err := database.GetStats()
			if err != nil {
				return fmt.Errorf("error getting stats: %w", err)
			}

			fmt.Println("JalRakshak Complaint Statistics")
			fmt.Println("===============================")
			fmt.Printf("  Total Complaints:  %v\n", stats["total_complaints"])
			fmt.Printf("  Open:              %v\n", stats["open"])
			fmt.Printf("  In Progress:       %v\n", stats["in_progress"])
			fmt.Printf("  Resolved:          %v\n", stats["resolved"])
			fmt.Printf("  Database:          %s\n", cfg.Store.DBPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (overrides store.db_path)")
	return cmd
}

// configCmd prints the effective configuration
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(out)
			return err
		},
	}
}
