// Package main is the CLI entry point for actmon.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/activity_mon/internal/api"
	"github.com/eliteGoblin/focusd/activity_mon/internal/config"
	"github.com/eliteGoblin/focusd/activity_mon/internal/domain"
	"github.com/eliteGoblin/focusd/activity_mon/internal/infra"
	"github.com/eliteGoblin/focusd/activity_mon/internal/notify"
	"github.com/eliteGoblin/focusd/activity_mon/internal/usecase"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "actmon",
	Short: "Activity monitor - tracks time spent per window",
	Long: `actmon polls the focused window once per second and adds up how long
each (window title, application) pair has been in front of you.
Totals are kept per calendar day in activity-YYYY-MM-DD.json files.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Track activity until interrupted",
	Long: `Starts monitoring and serves the local control API.
Monitoring can be stopped and restarted through the API without
restarting the process.`,
	RunE: runRun,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the activity recorded for a day",
	RunE:  runShow,
}

var goalsCmd = &cobra.Command{
	Use:   "goals",
	Short: "Manage today's goals",
}

var goalsSetCmd = &cobra.Command{
	Use:   "set [goal...]",
	Short: "Replace today's goals",
	Long: `Replaces today's goal list. When 'actmon run' is serving the API the
change goes through it; otherwise the day file is written directly.`,
	RunE: runGoalsSet,
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Query the focused window once",
	Long:  `Runs the permission check and a single window probe, printing remediation on failure.`,
	RunE:  runProbe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	noStart    bool
	showDate   string
	showFormat string
	jsonOutput bool
)

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.actmon/config.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "", "Directory holding day files")
	rootCmd.PersistentFlags().String("backend", "", "Store backend: json or encrypted")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("listen", "", "Control API address (empty disables it)")

	runCmd.Flags().Duration("interval", time.Second, "Poll interval")
	runCmd.Flags().String("self-name", "", "Owner name to exclude (default: this process name)")
	runCmd.Flags().String("probe", "", "Custom probe command printing pid and title lines")
	runCmd.Flags().BoolVar(&noStart, "no-start", false, "Serve the API without starting the monitor")

	showCmd.Flags().StringVar(&showDate, "date", "", "Day to show, YYYY-MM-DD (default today)")
	showCmd.Flags().StringVar(&showFormat, "format", "table", "Output format: table, json or yaml")

	probeCmd.Flags().String("probe", "", "Custom probe command printing pid and title lines")

	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	goalsCmd.AddCommand(goalsSetCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(goalsCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(versionCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd)
	if err != nil {
		return err
	}
	paths, err := prepareDataDir(cfg)
	if err != nil {
		return err
	}

	logger := createLogger(paths.LogPath, cfg.Log.Level, true)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lock, err := infra.AcquireInstanceLock(ctx, paths.LockPath, infra.DefaultLockConfig(), logger)
	if err != nil {
		return fmt.Errorf("another actmon seems to be running on %s: %w", paths.DataDir, err)
	}
	defer lock.Unlock()

	store, closeStore, err := openStore(cfg, paths, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	app, err := buildApp(cfg, store, logger)
	if err != nil {
		return err
	}

	// Surface failures on the terminal as well as in the log.
	failures, unsubscribe := app.hub.Subscribe()
	defer unsubscribe()
	go reportFailures(failures)

	apiDone := make(chan error, 1)
	if cfg.API.Listen != "" {
		server := api.NewServer(app.monitor, app.hub, logger)
		go func() { apiDone <- server.ListenAndServe(ctx, cfg.API.Listen) }()
	} else {
		close(apiDone)
	}

	logger.Info("actmon running",
		zap.String("version", Version),
		zap.String("data_dir", paths.DataDir),
		zap.String("backend", cfg.Store.Backend),
		zap.String("listen", cfg.API.Listen))

	if !noStart {
		if _, err := app.monitor.Start(ctx); err != nil {
			printFailure(os.Stderr, err)
			if cfg.API.Listen == "" {
				stop()
				return err
			}
			fmt.Fprintln(os.Stderr, "Monitoring is not running; retry with POST /monitor/start once fixed.")
		}
	}

	<-ctx.Done()
	logger.Info("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.monitor.Dispose(shutdownCtx); err != nil {
		logger.Warn("final flush failed", zap.Error(err))
	}
	app.hub.Close()

	if err := <-apiDone; err != nil {
		return err
	}
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd)
	if err != nil {
		return err
	}
	paths, err := prepareDataDir(cfg)
	if err != nil {
		return err
	}
	logger := createLogger(paths.LogPath, cfg.Log.Level, false)
	defer func() { _ = logger.Sync() }()

	date := showDate
	if date == "" {
		date = domain.DayKey(time.Now())
	}

	store, closeStore, err := openStore(cfg, paths, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	record, err := usecase.NewDayStoreResolver(store, logger).Lookup(cmd.Context(), date)
	if err != nil {
		return err
	}
	return printRecord(os.Stdout, record, showFormat)
}

func runGoalsSet(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd)
	if err != nil {
		return err
	}

	if cfg.API.Listen != "" {
		saved, err := saveGoalsRemote(cmd.Context(), cfg.API.Listen, args)
		if err == nil {
			printGoals(os.Stdout, saved)
			return nil
		}
		if !errors.Is(err, errAPIUnreachable) {
			return err
		}
	}

	paths, err := prepareDataDir(cfg)
	if err != nil {
		return err
	}
	logger := createLogger(paths.LogPath, cfg.Log.Level, false)
	defer func() { _ = logger.Sync() }()

	lock, err := infra.AcquireInstanceLock(cmd.Context(), paths.LockPath, infra.DefaultLockConfig(), logger)
	if err != nil {
		return fmt.Errorf("actmon is running without an API; stop it or enable api.listen: %w", err)
	}
	defer lock.Unlock()

	store, closeStore, err := openStore(cfg, paths, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	agg := usecase.NewAggregator(usecase.AggregatorConfig{}, nil, store, nil, nil, nil, nil, logger)
	saved, err := agg.SaveGoals(cmd.Context(), args)
	if err != nil {
		return err
	}
	printGoals(os.Stdout, saved)
	return nil
}

func runProbe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd)
	if err != nil {
		return err
	}
	logger := zap.NewNop()

	timeout, err := cfg.Probe.TimeoutDuration()
	if err != nil {
		return err
	}
	runner := &infra.RealCommandRunner{}
	pm := infra.NewProcessManager()

	trusted, err := infra.NewPermissionChecker(runner, logger).Check(cmd.Context())
	if err != nil {
		printFailure(os.Stderr, domain.NewProbeFailure(domain.ErrProbeUnavailable, err))
		return err
	}
	if !trusted {
		failure := domain.NewProbeFailure(domain.ErrPermissionDenied, domain.ErrPermissionDenied)
		printFailure(os.Stderr, failure)
		return failure
	}

	probe, err := infra.NewCommandWindowProbe(infra.ProbeConfig{
		Command: cfg.Probe.Command,
		Timeout: timeout,
	}, runner, pm, logger)
	if err != nil {
		return err
	}

	info, err := probe.Probe(cmd.Context())
	if err != nil {
		failure := domain.NewProbeFailure(domain.ErrProbeUnavailable, err)
		printFailure(os.Stderr, failure)
		return failure
	}
	printWindow(os.Stdout, info)
	return nil
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		out, _ := json.Marshal(map[string]string{
			"version":    Version,
			"commit":     Commit,
			"build_time": BuildTime,
		})
		fmt.Println(string(out))
	} else {
		fmt.Printf("actmon %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}

func reportFailures(ch <-chan notify.Notification) {
	for n := range ch {
		if n.Kind != notify.KindFailure || n.Failure == nil {
			continue
		}
		fmt.Fprintf(os.Stderr, "\nMonitoring stopped: %s\n", strings.TrimSpace(n.Failure.Message))
		if n.Failure.Remediation != "" {
			fmt.Fprintf(os.Stderr, "  %s\n", n.Failure.Remediation)
		}
	}
}
