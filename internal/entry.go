// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/starford/dagaz/internal/eventservice"
	"github.com/starford/dagaz/internal/index"
	"github.com/starford/dagaz/internal/shell"
	"github.com/starford/dagaz/internal/storage"
	"github.com/starford/dagaz/internal/timestr"
)

// Runtime bundles the wired application components for one-shot commands.
type Runtime struct {
	Config  *Config
	Logger  *slog.Logger
	Store   *storage.FS
	DB      *index.DB
	Service *eventservice.Service
}

// Close releases the runtime's resources.
func (rt *Runtime) Close() error {
	return rt.DB.Close()
}

// Bootstrap wires storage, index and the event service from cfg.
func Bootstrap(cfg *Config) (*Runtime, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Debug("Configuration loaded",
		slog.String("data_dir", cfg.Data.Dir),
		slog.String("index_path", cfg.Index.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	store, err := storage.NewFS(cfg.Data.Dir)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.Index.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	settings := eventservice.Settings{
		FirstWeekday:    cfg.Calendar.FirstWeekday,
		RecurrenceLimit: cfg.Calendar.RecurrenceLimit,
		DefaultCalendar: cfg.Calendar.DefaultCalendar,
		DefaultReminder: cfg.Calendar.DefaultReminder,
		UserName:        cfg.User.Name,
		UserEmail:       cfg.User.Email,
	}
	if d, ok := timestr.Span(cfg.Calendar.DefaultDuration); ok {
		settings.DefaultDuration = d
	}

	svc, err := eventservice.New(store, db, logger, settings)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init service: %w", err)
	}

	return &Runtime{Config: cfg, Logger: logger, Store: store, DB: db, Service: svc}, nil
}

// Run starts the interactive shell supervised together with the data
// directory watcher and signal handling.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	if app.in == nil {
		app.in = os.Stdin
	}
	if app.out == nil {
		app.out = os.Stdout
	}

	rt, err := Bootstrap(app.config)
	if err != nil {
		return err
	}
	defer rt.Close()
	logger := rt.Logger

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)

	// Reload the snapshot whenever event files change on disk.
	g.Go(func() error {
		return index.Watch(gCtx, rt.Store.Root(), logger, func() {
			if err := rt.Service.Refresh(); err != nil {
				logger.Warn("watcher refresh failed", slog.String("error", err.Error()))
			}
		})
	})

	g.Go(func() error {
		defer cancel()
		sh := shell.New(rt.Service, logger, app.in, app.out)
		return sh.Run(gCtx)
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
			cancel()
		case <-gCtx.Done():
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Shell stopped")
	return nil
}
