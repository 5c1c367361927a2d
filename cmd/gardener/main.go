package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"

	"gardener/internal/config"
	"gardener/internal/session"
	"gardener/internal/storage/sqlstore"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds what every command needs once the config is loaded.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	db       *sqlx.DB
	items    *sqlstore.ItemStore
	patterns *sqlstore.PatternStore

	closers []func() error
}

// newApp loads the config and sets up logging. Logs go to logOut unless a
// log file is given.
func newApp(opts *options, logOut io.Writer) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	a := &app{cfg: cfg}

	out := logOut
	if opts.logPath != "" {
		f, err := os.OpenFile(opts.logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		a.closers = append(a.closers, f.Close)
		out = f
	}

	level := cfg.LogLevel
	if opts.debug {
		level = "debug"
	}
	a.logger = setupLogger(level, out)

	return a, nil
}

// openStores connects to the database and makes sure both tables exist.
func (a *app) openStores(ctx context.Context) error {
	db, err := sqlstore.Open(ctx, a.cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	a.db = db
	a.closers = append(a.closers, db.Close)

	a.patterns = sqlstore.NewPatternStore(db, sqlstore.SchemaFor(a.cfg.Schema, sqlstore.PatternsTable))
	a.items = sqlstore.NewItemStore(db, sqlstore.SchemaFor(a.cfg.Schema, sqlstore.ItemsTable))

	// patterns first, items reference them
	if err := sqlstore.Bootstrap(ctx, sqlstore.NewTransactionManager(db), a.patterns, a.items); err != nil {
		return fmt.Errorf("bootstrap schema: %w", err)
	}

	a.logger.Info("connected to database", "driver", a.cfg.Database.Driver)
	return nil
}

// session logs in to the catalog. Prompting is only allowed in interactive
// mode.
func (a *app) session(ctx context.Context, interactive bool) (*session.Session, error) {
	var prompter session.Prompter
	if interactive {
		prompter = session.NewTerminalPrompter(os.Stdin, os.Stderr, a.cfg.Catalog.CheckCode)
	}

	provider, err := session.NewProvider(session.Config{
		BaseURL:           a.cfg.Catalog.BaseURL,
		Timeout:           a.cfg.Catalog.Timeout.Std(),
		RequestsPerSecond: a.cfg.Catalog.RequestsPerSecond,
		UserAgent:         a.cfg.Catalog.UserAgent,
		LoginFailedMarker: a.cfg.Catalog.LoginFailedMarker,
		LoggedInMarker:    a.cfg.Catalog.LoggedInMarker,
		Interactive:       interactive,
	}, session.NewFileStore(a.cfg.Credentials.File), prompter, a.logger)
	if err != nil {
		return nil, err
	}

	return provider.Acquire(ctx)
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

func setupLogger(level string, w io.Writer) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(w, opts)
	return slog.New(handler)
}
