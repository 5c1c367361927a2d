package main

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/spf13/cobra"

	"gardener/internal/patternfile"
	"gardener/internal/publisher"
	"gardener/internal/scheduler"
	"gardener/internal/service"
	"gardener/internal/source/catalog"
	"gardener/internal/storage/artifacts"
)

type options struct {
	configPath  string
	interval    int
	logPath     string
	debug       bool
	interactive bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "gardener",
		Short: "Download catalog items whose titles match your patterns",
		Long: `gardener watches a private tracker listing, records every entry it sees
and downloads the payload of entries matching a pattern from the patterns file.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(opts, cmd.OutOrStdout())
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to config file (yaml or toml)")
	flags.IntVarP(&opts.interval, "interval", "i", 0, "seconds between cycles, 0 runs a single cycle")
	flags.StringVarP(&opts.logPath, "log", "l", "", "log file (default stdout)")
	flags.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	flags.BoolVar(&opts.interactive, "interactive", false, "prompt for credentials when needed")
	_ = cmd.MarkPersistentFlagRequired("config")

	cmd.AddCommand(newStatusCmd(opts))
	cmd.AddCommand(newRatioCmd(opts))

	return cmd
}

func runDaemon(opts *options, logOut io.Writer) error {
	a, err := newApp(opts, logOut)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signalContext(a.logger)
	defer cancel()

	if err := a.openStores(ctx); err != nil {
		a.logger.Error("failed to open stores", "error", err)
		return err
	}

	sess, err := a.session(ctx, opts.interactive)
	if err != nil {
		a.logger.Error("failed to log in", "error", err)
		return err
	}

	var pub service.Publisher
	if a.cfg.RabbitMQ.Enabled() {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        a.cfg.RabbitMQ.URL,
			Exchange:   a.cfg.RabbitMQ.Exchange,
			RoutingKey: a.cfg.RabbitMQ.RoutingKey,
			QueueName:  a.cfg.RabbitMQ.QueueName,
		}, a.logger)
		if err != nil {
			a.logger.Error("failed to connect to rabbitmq", "error", err)
			return err
		}
		defer rabbitMQ.Close()
		pub = rabbitMQ
	}

	syncService := service.NewSyncService(
		a.items,
		a.patterns,
		patternfile.New(a.cfg.Patterns.File),
		catalog.New(sess, a.logger),
		artifacts.New(a.cfg.Storage.Dir),
		pub,
		a.logger,
	)

	interval := time.Duration(opts.interval) * time.Second
	sched := scheduler.NewScheduler(syncService, interval, a.logger)

	a.logger.Info("starting gardener",
		"catalog", a.cfg.Catalog.BaseURL,
		"interval", interval,
		"patterns_file", a.cfg.Patterns.File,
		"storage_dir", a.cfg.Storage.Dir,
	)

	if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("scheduler error", "error", err)
		return err
	}
	return nil
}
