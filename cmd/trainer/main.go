// Command trainer builds, imports and inspects crime classification bundles.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	chclient "crimewatch/internal/adapters/clickhouse"
	"crimewatch/internal/adapters/config"
	redisclient "crimewatch/internal/adapters/redis"
	"crimewatch/internal/artifact"
	"crimewatch/internal/bootstrap"
	"crimewatch/internal/domain/modelrun"
	"crimewatch/internal/metrics"
	chrepo "crimewatch/internal/repository/clickhouse"
	"crimewatch/pkg/errors"
	"crimewatch/pkg/logger"
)

// env holds what every subcommand needs, built once in PersistentPreRunE
type env struct {
	cfg     *config.Config
	log     *logger.Logger
	tracker errors.Tracker
	redis   *redisclient.Client // nil without REDIS_HOST
	ch      *chclient.Client    // nil without CLICKHOUSE_HOST
	store   artifact.Store
	runs    modelrun.Repository // nil without ClickHouse
}

var app env

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:               "trainer",
		Short:             "Train and manage crime prediction model bundles",
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) { teardown() },
	}

	trainMain(rootCmd)
	importMain(rootCmd)
	inspectMain(rootCmd)
	historyMain(rootCmd)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if app.log != nil {
			app.log.ErrorWithContext(ctx, err, map[string]string{"component": "trainer"})
		}
		teardown()
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		return errors.Wrap(err, "init logger")
	}
	app.cfg = cfg
	app.tracker = bootstrap.ProvideErrorTracker(cfg, logger.Get())
	logger.SetErrorTracker(app.tracker)
	// child loggers copy the tracker, so derive after it is attached
	app.log = logger.Get().With("component", "trainer")
	metrics.Init()

	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()

	if app.redis, err = bootstrap.ProvideRedis(ctx, cfg, app.log); err != nil {
		return err
	}
	if app.store, err = bootstrap.ProvideArtifactStore(cfg, app.redis); err != nil {
		return err
	}

	if cfg.ClickHouse.Enabled() {
		if app.ch, err = chclient.NewClient(ctx, cfg.ClickHouse); err != nil {
			return err
		}
		if err := chrepo.Migrate(ctx, app.ch.Conn()); err != nil {
			return err
		}
		app.runs = chrepo.NewModelRunRepository(app.ch.Conn())
	}
	return nil
}

func teardown() {
	if app.ch != nil {
		_ = app.ch.Close()
		app.ch = nil
	}
	if app.redis != nil {
		_ = app.redis.Close()
		app.redis = nil
	}
	if app.tracker != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = app.tracker.Flush(ctx)
		cancel()
		app.tracker = nil
	}
	_ = logger.Sync()
}
