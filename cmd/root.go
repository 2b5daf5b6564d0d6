package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"trafficsim/internal/banner"
	"trafficsim/internal/config"
	"trafficsim/internal/health"
	"trafficsim/internal/metrics"
	"trafficsim/internal/payload"
	"trafficsim/internal/profile"
	"trafficsim/internal/ratelimit"
	"trafficsim/internal/sim"
	"trafficsim/internal/stats"
	"trafficsim/internal/storage"
	"trafficsim/internal/target"
	"trafficsim/internal/tui/live"
	"trafficsim/internal/tui/styles"
)

var (
	cfgFile    string
	liveUI     bool
	duration   int
	verbose    bool
	skipHealth bool
)

var rootCmd = &cobra.Command{
	Use:   "trafficsim",
	Short: "Synthetic HTTP traffic simulator",
	Long: `
trafficsim generates realistic API traffic against configured services:
weighted virtual-user sessions with per-type behavior, regional client
identities and a globally rate-limited request stream.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print a sample configuration file",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(config.Example)
	},
}

var targetCmd = &cobra.Command{
	Use:   "target",
	Short: "Run a built-in demo service to simulate against",
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")

		logger, err := newLogger("info")
		if err != nil {
			return err
		}
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return target.NewServer(port, logger).Run(ctx)
	},
}

func Execute() {
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Println(banner.GetString())
		cmd.Usage()
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(targetCmd)

	rootCmd.Flags().StringVarP(&cfgFile, "config", "c", "config.yaml", "path to the simulation config")
	rootCmd.Flags().BoolVar(&liveUI, "live", false, "show the live terminal dashboard")
	rootCmd.Flags().IntVarP(&duration, "duration", "d", 0, "override duration_minutes from the config")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.Flags().BoolVar(&skipHealth, "skip-health-check", false, "start traffic without waiting for targets")

	targetCmd.Flags().IntP("port", "p", 8001, "port to serve the demo target on")
}

func newLogger(level string) (*zap.Logger, error) {
	if verbose {
		level = "debug"
	}
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = lvl
	zcfg.Encoding = "console"
	return zcfg.Build()
}

func run(cmd *cobra.Command) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cmd.Flags().Changed("duration") {
		cfg.Simulation.DurationMinutes = duration
	}

	logger, err := newLogger(cfg.Reporting.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	fmt.Println(banner.GetString())
	fmt.Println(banner.Summary(cfg, cfgFile))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !skipHealth {
		urls := make(map[string]string, len(cfg.Services))
		for name, svc := range cfg.Services {
			urls[name] = svc.BaseURL
		}
		if err := health.NewChecker(logger).WaitAll(ctx, urls); err != nil {
			return fmt.Errorf("target services not ready: %w", err)
		}
	}

	var observer stats.Observer
	if addr := cfg.Reporting.MetricsListen; addr != "" {
		collector := metrics.NewCollector()
		collector.Serve(addr, func(err error) {
			logger.Error("metrics listener failed", zap.Error(err))
		})
		logger.Info("metrics exposed", zap.String("addr", addr))
		observer = collector
	}

	catalog, err := profile.NewCatalog(cfg)
	if err != nil {
		return err
	}
	provider := payload.NewProvider()

	startedAt := time.Now()
	agg := stats.NewAggregator(startedAt, observer)
	limiter := ratelimit.NewLimiter(
		cfg.Simulation.RequestsPerSecond,
		time.Duration(cfg.Simulation.RampUpSeconds)*time.Second,
	)
	executor := sim.NewExecutor(
		time.Duration(cfg.Simulation.TimeoutSeconds)*time.Second,
		provider,
		logger,
		cfg.Reporting.DetailedLogging,
	)
	sup := sim.NewSupervisor(cfg, catalog, provider, limiter, executor, agg, logger)

	logger.Info("simulation starting",
		zap.Int("workers", cfg.Simulation.Workers),
		zap.Float64("rate", cfg.Simulation.RequestsPerSecond))

	var final stats.Snapshot
	if liveUI {
		final, err = runWithDashboard(ctx, stop, sup, cfg)
		if err != nil {
			return err
		}
	} else {
		final = sup.Run(ctx)
	}

	printReport(final)

	if dir := cfg.Reporting.HistoryDir; dir != "" {
		if err := saveHistory(dir, cfgFile, startedAt, final); err != nil {
			logger.Warn("could not persist run history", zap.Error(err))
		}
	}
	return nil
}

// runWithDashboard runs the supervisor in the background and the
// bubbletea dashboard in the foreground. Quitting the dashboard stops
// the run; the run ending on its own closes the dashboard.
func runWithDashboard(ctx context.Context, stop func(), sup *sim.Supervisor, cfg *config.Config) (stats.Snapshot, error) {
	dur := time.Duration(cfg.Simulation.DurationMinutes) * time.Minute
	p := tea.NewProgram(live.NewModel(dur, stop), tea.WithAltScreen())

	done := make(chan stats.Snapshot, 1)
	go func() {
		done <- sup.Run(ctx)
		p.Send(live.DoneMsg{})
	}()
	go func() {
		for snap := range sup.Updates {
			p.Send(snap)
		}
	}()

	if _, err := p.Run(); err != nil {
		stop()
		<-done
		return stats.Snapshot{}, fmt.Errorf("dashboard failed: %w", err)
	}
	stop()
	return <-done, nil
}

func printReport(snap stats.Snapshot) {
	var b strings.Builder
	line := func(key, val string) {
		b.WriteString(styles.Subtle.Render(fmt.Sprintf("  %-16s", key)))
		b.WriteString(val)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(styles.Title.Render("simulation report"))
	b.WriteString("\n\n")

	line("duration", snap.Elapsed.Truncate(time.Second).String())
	line("requests", styles.Value.Render(fmt.Sprintf("%d", snap.Total)))
	line("success", styles.Success.Render(fmt.Sprintf("%d", snap.Success)))
	failStyle := styles.Subtle
	if snap.Failed > 0 {
		failStyle = styles.Error
	}
	line("failed", failStyle.Render(fmt.Sprintf("%d", snap.Failed)))
	line("throughput", fmt.Sprintf("%.2f req/s", snap.RPS))
	line("latency avg", fmt.Sprintf("%.2f ms", snap.AvgLatencyMs))
	line("latency p50", fmt.Sprintf("%.2f ms", snap.P50LatencyMs))
	line("latency p90", fmt.Sprintf("%.2f ms", snap.P90LatencyMs))
	line("latency p99", fmt.Sprintf("%.2f ms", snap.P99LatencyMs))
	line("latency max", fmt.Sprintf("%.2f ms", snap.MaxLatencyMs))

	if len(snap.StatusCodes) > 0 {
		b.WriteString("\n")
		b.WriteString(styles.Subtle.Render("  status codes"))
		b.WriteString("\n")
		codes := make([]int, 0, len(snap.StatusCodes))
		for code := range snap.StatusCodes {
			codes = append(codes, code)
		}
		sort.Ints(codes)
		for _, code := range codes {
			st := styles.Value
			if code >= 400 {
				st = styles.Error
			}
			b.WriteString(fmt.Sprintf("    %s %d\n", st.Render(fmt.Sprintf("%d", code)), snap.StatusCodes[code]))
		}
	}

	if len(snap.TopEndpoints) > 0 {
		b.WriteString("\n")
		b.WriteString(styles.Subtle.Render("  top endpoints"))
		b.WriteString("\n")
		for _, hit := range snap.TopEndpoints {
			b.WriteString(fmt.Sprintf("    %-44s %d\n", hit.Endpoint, hit.Count))
		}
	}

	if snap.ErrorCount > 0 {
		b.WriteString("\n")
		b.WriteString(styles.Error.Render(fmt.Sprintf("  %d transport errors", snap.ErrorCount)))
		b.WriteString("\n")
		shown := snap.Errors
		if len(shown) > 5 {
			shown = shown[:5]
		}
		for _, e := range shown {
			b.WriteString(styles.Subtle.Render("    " + e))
			b.WriteString("\n")
		}
	}

	fmt.Println(b.String())
}

func saveHistory(dir, configPath string, startedAt time.Time, snap stats.Snapshot) error {
	store, err := storage.Open(dir)
	if err != nil {
		return err
	}
	defer store.Close()

	rec := storage.NewRunRecord(uuid.NewString(), configPath, startedAt, snap)
	if err := store.Save(rec); err != nil {
		return err
	}
	fmt.Println(styles.Subtle.Render("  run saved to history as " + rec.ID))
	return nil
}
