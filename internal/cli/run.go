package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/macrokit/macroguard/internal/alert"
	"github.com/macrokit/macroguard/internal/config"
	"github.com/macrokit/macroguard/internal/daemon"
	"github.com/macrokit/macroguard/internal/history"
	"github.com/macrokit/macroguard/internal/intervene"
	"github.com/macrokit/macroguard/internal/logger"
	"github.com/macrokit/macroguard/internal/resource"
	"github.com/macrokit/macroguard/internal/supervisor"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the macro safety supervisor",
	Long: `Start the macro safety supervisor.

Loads the merged configuration, compiles the pattern rules, and starts the
full pipeline: ingestion shards, pattern matcher, risk scorer, guard policy,
resource monitor, alert dispatcher, and the HTTP/SSE status daemon.

Macros register and submit events through the daemon API:
  POST /api/macros   {"id": "...", "name": "..."}
  POST /api/events   {"macro_id": "...", "content": "..."}

Example:
  macroguard run
  macroguard run --config custom.yaml`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	if verbose {
		_ = logger.Init("debug", cfg.Settings.LogFile)
	} else {
		_ = logger.Init(cfg.Settings.LogLevel, cfg.Settings.LogFile)
	}

	registry, err := supervisor.CompileRules(cfg.Rules)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Alert history store; supervision continues without it on failure
	var store history.Store
	if cfg.History.Enabled {
		sqlStore, storeErr := history.NewSQLiteStore(cfg.History.StoragePath)
		if storeErr != nil {
			logger.Warn().Err(storeErr).Msg("Failed to open alert history store, continuing without persistence")
		} else {
			store = sqlStore
			if retention, rErr := time.ParseDuration(cfg.History.Retention); rErr == nil && retention > 0 {
				history.MaybeRunCleanup(store, retention, cfg.History.CleanupProbability)
			}
		}
	}

	emergency := resource.NewEmergency()

	var controller intervene.Controller
	if cfg.Settings.ControllerURL != "" {
		controller = intervene.NewWebhookController(cfg.Settings.ControllerURL)
	} else {
		controller = intervene.NewLogController()
	}

	// Sinks: structured log always, sqlite history and the daemon's SSE
	// feed when enabled
	sinks := []alert.Sink{alert.LogSink{}}
	if store != nil {
		sinks = append(sinks, history.NewSink(store))
	}

	dispatcher := alert.NewDispatcher(cfg.RateLimitWindow(), sinks...)
	executor := intervene.NewExecutor(controller, dispatcher, emergency, cancel)

	sup := supervisor.New(registry, executor, supervisor.Options{
		GuardLevel:      cfg.GuardLevel(),
		DecayHalfLife:   cfg.DecayHalfLife(),
		Shards:          cfg.Queue.Shards,
		QueueCapacity:   cfg.Queue.Capacity,
		AutoResumeAfter: cfg.AutoResumeAfter(),
	})

	sampler, err := resource.NewProcessSampler()
	if err != nil {
		sup.Close()
		dispatcher.Close()
		return fmt.Errorf("failed to create resource sampler: %w", err)
	}

	monitor := resource.NewMonitor(sampler, emergency, executor, resource.Options{
		Interval:    parseDurationOr(cfg.Resources.Interval, 2*time.Second),
		Sustained:   parseDurationOr(cfg.Resources.Sustained, 5*time.Second),
		HistorySize: cfg.Resources.History,
		Thresholds:  resourceThresholds(cfg),
	})

	go monitor.Run(ctx)

	var server *daemon.Server
	if cfg.DaemonEnabled() {
		server = daemon.NewServer(cfg, sup, monitor, emergency, store, Version)
		dispatcher.AddSink(server.Broadcaster().Sink())

		if err := server.Start(ctx); err != nil {
			sup.Close()
			dispatcher.Close()
			return fmt.Errorf("failed to start daemon: %w", err)
		}

		fmt.Printf("Supervisor running, API at http://127.0.0.1:%d\n", server.Port())
	} else {
		logger.Info().Msg("Status daemon disabled by configuration")
		fmt.Println("Supervisor running, status daemon disabled")
	}
	fmt.Println("Press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	case <-ctx.Done():
		// Emergency shutdown requested through the executor
		logger.Warn().Msg("Shutting down on emergency request")
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if server != nil {
		if err := server.Stop(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Error during daemon shutdown")
		}
	}

	sup.Close()
	dispatcher.Close()

	if store != nil {
		_ = store.Close()
	}

	return nil
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func resourceThresholds(cfg *config.Config) map[string]resource.Thresholds {
	thresholds := make(map[string]resource.Thresholds)

	set := func(metric string, mt config.MetricThresholds) {
		if mt.Warning == 0 && mt.Critical == 0 {
			return
		}
		thresholds[metric] = resource.Thresholds{
			Warning:  mt.Warning,
			Critical: mt.Critical,
		}
	}

	set(resource.MetricMemoryPct, cfg.Resources.MemoryPct)
	set(resource.MetricCPUPct, cfg.Resources.CPUPct)
	set(resource.MetricThreads, cfg.Resources.Threads)
	set(resource.MetricHandles, cfg.Resources.Handles)

	return thresholds
}
