package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gmsas95/dosewise/internal/api"
	"github.com/gmsas95/dosewise/internal/catalog"
	"github.com/gmsas95/dosewise/internal/clock"
	"github.com/gmsas95/dosewise/internal/config"
	"github.com/gmsas95/dosewise/internal/cron"
	"github.com/gmsas95/dosewise/internal/medication"
	"github.com/gmsas95/dosewise/internal/metrics"
	"github.com/gmsas95/dosewise/internal/reminder"
	"github.com/gmsas95/dosewise/internal/store"
)

// RolloverJob is the cron job that recomputes agendas at local midnight
const RolloverJob = "rollover"

type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Clock   clock.Clock
	Metrics *metrics.Metrics
	Version string

	Backend    store.Backend
	Store      *medication.Store
	Catalog    *catalog.Catalog
	Lookup     *catalog.Lookup
	Watcher    *catalog.Watcher
	Notifier   *reminder.MultiNotifier
	Scheduler  *reminder.Scheduler
	CronRunner *cron.Runner
	Server     *api.Server
}

func New(cfg *config.Config, logger *zap.Logger, version string) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		Config:  cfg,
		Logger:  logger,
		Version: version,
	}
}

// NewLogger builds the process logger from the log config
func NewLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		zc.Level = zap.NewAtomicLevelAt(level)
	}
	return zc.Build()
}

// Open wires storage, the prescription store and medicine lookup. Commands
// that only read or edit prescriptions need nothing more.
func (app *App) Open(ctx context.Context) error {
	if app.Clock == nil {
		app.Clock = clock.NewReal()
	}
	if app.Metrics == nil {
		app.Metrics = metrics.Default()
	}

	backend, err := store.Open(app.Config)
	if err != nil {
		return fmt.Errorf("failed to open %s storage: %w", app.Config.Storage.Driver, err)
	}

	st, err := medication.NewStore(ctx, backend, app.Clock, app.Logger, medication.Options{
		RetentionDays: app.Config.Reminders.RetentionDays,
		Metrics:       app.Metrics,
	})
	if err != nil {
		backend.Close()
		return err
	}

	cat, err := catalog.New()
	if err != nil {
		backend.Close()
		return err
	}
	if err := cat.LoadFile(app.Config.Catalog.Path); err != nil {
		app.Logger.Warn("Failed to load user catalog", zap.Error(err))
	}

	var remote catalog.Suggester
	if app.Config.Catalog.RemoteEnabled && app.Config.Catalog.RemoteURL != "" {
		remote = catalog.NewRxNav(catalog.RxNavConfig{
			BaseURL:       app.Config.Catalog.RemoteURL,
			Timeout:       time.Duration(app.Config.Catalog.TimeoutSeconds) * time.Second,
			RatePerSecond: app.Config.Catalog.RatePerSecond,
		}, app.Logger)
	}

	app.Backend = backend
	app.Store = st
	app.Catalog = cat
	app.Lookup = catalog.NewLookup(cat, remote, app.Logger, app.Metrics)

	app.Logger.Debug("Application opened",
		zap.String("driver", app.Config.Storage.Driver),
		zap.Bool("onboarded", st.Onboarded()),
		zap.Int("medicines", cat.Len()),
	)
	return nil
}

// Run starts the reminder daemon and blocks until ctx is cancelled or the
// API fails
func (app *App) Run(ctx context.Context) error {
	if app.Store == nil {
		if err := app.Open(ctx); err != nil {
			return err
		}
	}
	cfg := app.Config

	hub := api.NewHub(app.Store, app.Logger, app.Metrics)
	app.Notifier = reminder.NewMultiNotifier(reminder.NewLogNotifier(app.Logger), hub)
	app.Scheduler = reminder.NewScheduler(app.Clock, app.Notifier, app.Logger, app.Metrics, reminder.Config{
		Lead:         cfg.Lead(),
		LateFollowUp: cfg.Reminders.MissedFollowUp,
		Granted:      cfg.Notifications.Granted,
	})
	app.Store.OnChange(app.Scheduler.Rearm)
	app.Store.OnChange(hub.PushAgenda)

	app.Watcher = catalog.NewWatcher(app.Catalog, cfg.Catalog.Path, app.Logger)
	if err := app.Watcher.Start(ctx); err != nil {
		app.Logger.Warn("Catalog watcher disabled", zap.Error(err))
		app.Watcher = nil
	}

	app.CronRunner = cron.NewRunner(cron.Config{Location: app.Clock.Now().Location()}, app.Logger)
	if err := app.CronRunner.AddJob(RolloverJob, "@midnight", app.rollover); err != nil {
		app.shutdown()
		return err
	}
	if err := app.CronRunner.Start(); err != nil {
		app.shutdown()
		return err
	}

	app.Server = api.New(cfg, api.Deps{
		Store:     app.Store,
		Scheduler: app.Scheduler,
		Lookup:    app.Lookup,
		Hub:       hub,
		Clock:     app.Clock,
		Metrics:   app.Metrics,
		Logger:    app.Logger,
		Version:   app.Version,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Server.Start()
	}()

	app.Logger.Info("DoseWise started",
		zap.String("version", app.Version),
		zap.String("url", fmt.Sprintf("http://%s", cfg.Listen())),
		zap.Bool("onboarded", app.Store.Onboarded()),
		zap.Int("timers", len(app.Scheduler.Armed())),
	)

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			runErr = fmt.Errorf("server error: %w", err)
		}
	}

	app.Logger.Info("Shutting down...")
	app.shutdown()
	return runErr
}

// RunServer runs the daemon until SIGINT or SIGTERM
func (app *App) RunServer() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return app.Run(ctx)
}

// Close releases storage
func (app *App) Close() error {
	if app.Backend == nil {
		return nil
	}
	err := app.Backend.Close()
	app.Backend = nil
	return err
}

func (app *App) rollover(ctx context.Context) error {
	snap := app.Store.Refresh()
	app.Logger.Info("Day rolled over",
		zap.String("date", medication.DateKey(app.Clock.Now())),
		zap.Int("doses", len(snap.Today)),
	)
	return nil
}

func (app *App) shutdown() {
	if app.CronRunner != nil {
		app.CronRunner.Stop()
	}
	if app.Watcher != nil {
		app.Watcher.Stop()
	}
	if app.Scheduler != nil {
		app.Scheduler.Stop()
	}
	if app.Server != nil {
		if err := app.Server.Shutdown(); err != nil && !errors.Is(err, context.Canceled) {
			app.Logger.Error("Server shutdown error", zap.Error(err))
		}
	}
}
