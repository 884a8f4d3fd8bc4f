// Command racewatch notifies shortly before boat-race betting deadlines.
//
// Usage:
//
//	racewatch batch
//	racewatch batch --dry-run
//	racewatch schedule
//	racewatch monitor --listen
//	racewatch venues --date 20240101
//	racewatch races --date 20240101 --venue 01
//	racewatch favorite --venue 01 --race 5
//	racewatch notify-test
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/albapepper/racewatch/internal/api"
	"github.com/albapepper/racewatch/internal/api/handler"
	"github.com/albapepper/racewatch/internal/batch"
	"github.com/albapepper/racewatch/internal/cache"
	"github.com/albapepper/racewatch/internal/config"
	"github.com/albapepper/racewatch/internal/db"
	"github.com/albapepper/racewatch/internal/fetch"
	"github.com/albapepper/racewatch/internal/history"
	"github.com/albapepper/racewatch/internal/maintenance"
	"github.com/albapepper/racewatch/internal/markup"
	"github.com/albapepper/racewatch/internal/monitor"
	"github.com/albapepper/racewatch/internal/notifications"
	"github.com/albapepper/racewatch/internal/odds"
	"github.com/albapepper/racewatch/internal/race"
	"github.com/albapepper/racewatch/internal/schedule"
)

var (
	logLevel slog.LevelVar
	logger   = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &logLevel}))
)

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")
	slog.SetDefault(logger)

	root := &cobra.Command{
		Use:           "racewatch",
		Short:         "Boat-race deadline notifier",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(batchCmd())
	root.AddCommand(scheduleCmd())
	root.AddCommand(monitorCmd())
	root.AddCommand(venuesCmd())
	root.AddCommand(racesCmd())
	root.AddCommand(favoriteCmd())
	root.AddCommand(notifyTestCmd())

	if err := root.Execute(); err != nil {
		logger.Error("racewatch failed", "error", err)
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// batch / schedule commands
// --------------------------------------------------------------------------

func batchCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Check the deadline window once and notify",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config) error {
				if err := requireWebhook(cfg, dryRun); err != nil {
					return err
				}
				a, err := newApp(ctx, cfg, true)
				if err != nil {
					return err
				}
				defer a.close()

				runner := batch.NewRunner(a.acq, a.dispatcher(dryRun), cfg.Preset().Window(), nil, logger)
				result := runner.RunOnce(ctx)
				logger.Info("Batch finished", "summary", result.Summary())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log notifications instead of sending them")
	return cmd
}

func scheduleCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the batch check on the window's cadence until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config) error {
				if err := requireWebhook(cfg, dryRun); err != nil {
					return err
				}
				a, err := newApp(ctx, cfg, true)
				if err != nil {
					return err
				}
				defer a.close()

				mctx, stop := context.WithCancel(ctx)
				defer stop()
				go maintenance.Start(mctx, a.pruners, cfg.MaintenanceConfig(), logger)

				preset := cfg.Preset()
				runner := batch.NewRunner(a.acq, a.dispatcher(dryRun), preset.Window(), nil, logger)
				return batch.Schedule(ctx, runner, preset, cfg.Location, 0)
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log notifications instead of sending them")
	return cmd
}

// requireWebhook fails before any network activity when batch delivery has
// nowhere to go.
func requireWebhook(cfg *config.Config, dryRun bool) error {
	if cfg.DiscordWebhookURL == "" && !dryRun {
		return fmt.Errorf("DISCORD_WEBHOOK_URL is required (use --dry-run to log only)")
	}
	return nil
}

// --------------------------------------------------------------------------
// monitor command
// --------------------------------------------------------------------------

func monitorCmd() *cobra.Command {
	var (
		dryRun bool
		listen bool
		addr   string
	)
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Poll today's schedule and notify once per race near its deadline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config) error {
				a, err := newApp(ctx, cfg, true)
				if err != nil {
					return err
				}
				defer a.close()

				mctx, stop := context.WithCancel(ctx)
				defer stop()
				go maintenance.Start(mctx, a.pruners, cfg.MaintenanceConfig(), logger)

				m := monitor.New(a.acq, a.dispatcher(dryRun), monitor.Config{
					Offset:   cfg.MonitorOffset,
					Poll:     cfg.MonitorPoll,
					Location: cfg.Location,
				}, logger)

				if !listen {
					return m.Run(ctx)
				}
				if addr == "" {
					addr = cfg.ListenAddr()
				}
				return runWithStatusAPI(ctx, cfg, m, a.historyReader, addr)
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log notifications instead of sending them")
	cmd.Flags().BoolVar(&listen, "listen", false, "Serve the status API while monitoring")
	cmd.Flags().StringVar(&addr, "addr", "", "Status API address (default API_HOST:API_PORT)")
	return cmd
}

// runWithStatusAPI runs the monitor alongside the status server. The server
// stops when the monitor returns.
func runWithStatusAPI(ctx context.Context, cfg *config.Config, m *monitor.Monitor, hist handler.HistoryReader, addr string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	appCache := cache.New(true)
	go appCache.Run(ctx)

	router := api.NewRouter(m, hist, appCache, cfg.CORSAllowOrigins, logger)
	serveErr := make(chan error, 1)
	go func() { serveErr <- api.Serve(ctx, addr, router, logger) }()

	monErr := m.Run(ctx)
	cancel()
	if err := <-serveErr; err != nil {
		return fmt.Errorf("status api: %w", err)
	}
	return monErr
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

// app holds the components every command builds from config.
type app struct {
	cfg      *config.Config
	strategy markup.Strategy
	client   *fetch.Client
	acq      *schedule.Acquirer
	odds     *odds.Evaluator

	recorder      *history.Multi
	historyReader handler.HistoryReader
	pruners       []maintenance.Pruner
}

// newApp wires the fetch and parse stack. History sinks are opened only when
// withHistory is set.
func newApp(ctx context.Context, cfg *config.Config, withHistory bool) (*app, error) {
	strategy, err := markup.Lookup(cfg.MarkupVersion)
	if err != nil {
		return nil, err
	}
	client := fetch.NewClient(cfg.FetchConfig(), logger)

	a := &app{
		cfg:      cfg,
		strategy: strategy,
		client:   client,
		acq:      schedule.NewAcquirer(client, strategy, cfg.ScheduleConfig(), logger),
		odds:     odds.NewEvaluator(client, strategy.Odds, cfg.BaseURL, logger),
	}
	if withHistory {
		a.openHistory(ctx)
	}
	return a, nil
}

// openHistory builds each configured sink. A sink that cannot be opened is
// logged and left out; history never blocks notifications.
func (a *app) openHistory(ctx context.Context) {
	var sinks []history.Recorder

	if path := a.cfg.HistoryDBPath; path != "" {
		s, err := history.OpenSQLite(path)
		if err != nil {
			logger.Warn("Local history disabled", "path", path, "error", err)
		} else {
			sinks = append(sinks, s)
			a.pruners = append(a.pruners, s)
			a.historyReader = s
		}
	}

	if a.cfg.HistoryDatabaseURL != "" {
		pool, err := db.New(ctx, a.cfg)
		if err != nil {
			logger.Warn("Remote history disabled", "table", a.cfg.HistoryTable, "error", err)
		} else {
			s := history.NewPostgresSink(pool)
			sinks = append(sinks, s)
			a.pruners = append(a.pruners, s)
			if a.historyReader == nil {
				a.historyReader = s
			}
		}
	}

	if a.cfg.RedisURL != "" {
		s, err := history.NewStreamSink(ctx, a.cfg.RedisURL, a.cfg.HistoryStream)
		if err != nil {
			logger.Warn("History stream disabled", "stream", a.cfg.HistoryStream, "error", err)
		} else {
			sinks = append(sinks, s)
		}
	}

	a.recorder = history.NewMulti(logger, sinks...)
	logger.Info("History sinks ready", "count", a.recorder.Len())
}

func (a *app) dispatcher(dryRun bool) *notifications.Dispatcher {
	sender := notifications.NewSender(a.cfg.DiscordWebhookURL, dryRun, logger)
	cfg := notifications.DispatcherConfig{MonitorOffset: a.cfg.MonitorOffset}
	if a.cfg.FavoriteFilter {
		cfg.Favorites = a.odds
	}
	var rec history.Recorder
	if a.recorder != nil {
		rec = a.recorder
	}
	logger.Info("Notifications ready", "sender", sender.Name(), "favorite_filter", a.cfg.FavoriteFilter)
	return notifications.NewDispatcher(sender, rec, cfg, logger)
}

func (a *app) close() {
	if a.recorder != nil {
		a.recorder.Close()
	}
}

// run handles config loading and context cancellation.
func run(fn func(ctx context.Context, cfg *config.Config) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logLevel.Set(cfg.LogLevel)

	start := time.Now()
	err = fn(ctx, cfg)
	logger.Debug("Command finished", "duration", time.Since(start).Round(time.Millisecond))
	return err
}

// today returns date or, when empty, today's date in the configured zone.
func today(cfg *config.Config, date string) (string, error) {
	if date == "" {
		return race.Today(time.Now(), cfg.Location), nil
	}
	if _, err := race.ParseDate(date); err != nil {
		return "", err
	}
	return date, nil
}
