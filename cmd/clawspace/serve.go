package main

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openclaw/clawspace/pkg/logger"
	"github.com/openclaw/clawspace/pkg/presenter"
	"github.com/openclaw/clawspace/pkg/scheduler"
	"github.com/openclaw/clawspace/pkg/watcher"
	"github.com/openclaw/clawspace/pkg/workspace"
)

// ServeConfig holds configuration for the serve command
type ServeConfig struct {
	MaxAge          time.Duration
	SweepInterval   time.Duration
	MetricsInterval time.Duration
	Watch           bool
	WatchDelay      time.Duration
}

// NewServeConfig creates a new ServeConfig with default values
func NewServeConfig() *ServeConfig {
	return &ServeConfig{
		MaxAge:          7 * 24 * time.Hour,
		SweepInterval:   time.Hour,
		MetricsInterval: time.Minute,
		Watch:           true,
		WatchDelay:      2 * time.Second,
	}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run periodic maintenance of the session workspaces",
	Long: `Run in the foreground and keep the workspaces tidy:

  - sweep workspaces unused for longer than --max-age every --sweep-interval
  - report copied sessions that drift when the global skills root changes
  - write Prometheus metrics to --metrics-textfile every --metrics-interval

The process stops on SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		config, err := getServeConfigFromFlags(cmd)
		if err != nil {
			return err
		}
		if err := validateServeConfig(config); err != nil {
			return errors.Wrap(err, "invalid serve configuration")
		}
		return runServe(cmd.Context(), config)
	},
}

func init() {
	defaults := NewServeConfig()
	serveCmd.Flags().Duration("max-age", 0, "Remove workspaces unused for longer than this (default from sweep.max_age, 168h)")
	serveCmd.Flags().Duration("sweep-interval", 0, "Time between sweeps (default from sweep.interval, 1h)")
	serveCmd.Flags().Duration("metrics-interval", defaults.MetricsInterval, "Time between metrics textfile writes")
	serveCmd.Flags().Bool("watch", defaults.Watch, "Report drifted sessions when the global skills root changes")
	serveCmd.Flags().Duration("watch-delay", defaults.WatchDelay, "Quiet period before reacting to global skills changes")
}

// getServeConfigFromFlags extracts serve configuration from command flags and viper
func getServeConfigFromFlags(cmd *cobra.Command) (*ServeConfig, error) {
	config := NewServeConfig()

	var err error
	if config.MaxAge, err = durationSetting(cmd, "max-age", "sweep.max_age"); err != nil {
		return nil, err
	}
	if config.SweepInterval, err = durationSetting(cmd, "sweep-interval", "sweep.interval"); err != nil {
		return nil, err
	}
	if interval, err := cmd.Flags().GetDuration("metrics-interval"); err == nil {
		config.MetricsInterval = interval
	}
	if watch, err := cmd.Flags().GetBool("watch"); err == nil {
		config.Watch = watch
	}
	if delay, err := cmd.Flags().GetDuration("watch-delay"); err == nil {
		config.WatchDelay = delay
	}
	return config, nil
}

// validateServeConfig validates the serve configuration
func validateServeConfig(config *ServeConfig) error {
	if config.MaxAge <= 0 {
		return errors.Errorf("max age must be positive, got %s", config.MaxAge)
	}
	if config.SweepInterval <= 0 {
		return errors.Errorf("sweep interval must be positive, got %s", config.SweepInterval)
	}
	if config.MetricsInterval <= 0 {
		return errors.Errorf("metrics interval must be positive, got %s", config.MetricsInterval)
	}
	if config.Watch && config.WatchDelay <= 0 {
		return errors.Errorf("watch delay must be positive, got %s", config.WatchDelay)
	}
	return nil
}

// reloadingSweeper picks up sessions created by other processes before sweeping
type reloadingSweeper struct {
	manager *workspace.Manager
}

func (s *reloadingSweeper) Sweep(ctx context.Context, maxAge time.Duration) (int, error) {
	if _, err := s.manager.Load(ctx); err != nil {
		logger.G(ctx).WithError(err).Warn("failed to reload workspace records")
	}
	return s.manager.Sweep(ctx, maxAge)
}

func runServe(ctx context.Context, config *ServeConfig) error {
	recorder := newRecorder()
	manager, closeStore, err := openManager(ctx, workspace.WithObserver(recorder))
	if err != nil {
		return err
	}
	defer closeStore()

	sched, err := scheduler.New(ctx)
	if err != nil {
		return err
	}
	afterSweep := func(_ int, _ error) {
		if err := writeMetrics(ctx, manager, recorder); err != nil {
			logger.G(ctx).WithError(err).Warn("failed to write metrics")
		}
	}
	if _, err := sched.ScheduleSweep(&reloadingSweeper{manager: manager}, config.SweepInterval, config.MaxAge, afterSweep); err != nil {
		return err
	}
	if viper.GetString("metrics.textfile") != "" {
		if _, err := sched.Every("metrics-textfile", config.MetricsInterval, func(ctx context.Context) {
			if err := writeMetrics(ctx, manager, recorder); err != nil {
				logger.G(ctx).WithError(err).Warn("failed to write metrics")
			}
		}); err != nil {
			return err
		}
	}

	sched.Start()
	defer func() {
		if err := sched.Stop(); err != nil {
			logger.G(ctx).WithError(err).Warn("failed to stop scheduler")
		}
	}()

	logger.G(ctx).WithFields(logrus.Fields{
		"base_dir":       manager.Config().BaseDir,
		"max_age":        config.MaxAge.String(),
		"sweep_interval": config.SweepInterval.String(),
		"watch":          config.Watch,
	}).Info("workspace maintenance started")
	presenter.Info("Press Ctrl+C to stop")

	if config.Watch {
		w := watcher.New(manager.Config().GlobalSkillsDir, config.WatchDelay, func(ctx context.Context, paths []string) {
			reportDrift(ctx, manager, paths)
		})
		if err := w.Run(ctx); err != nil {
			return err
		}
	}
	<-ctx.Done()
	return nil
}

// reportDrift logs the copied sessions that miss global skills after a change
func reportDrift(ctx context.Context, manager *workspace.Manager, changed []string) {
	if _, err := manager.Load(ctx); err != nil {
		logger.G(ctx).WithError(err).Warn("failed to reload workspace records")
	}
	drift, err := manager.Drift(ctx)
	if err != nil {
		logger.G(ctx).WithError(err).Warn("failed to compute skills drift")
		return
	}
	log := logger.G(ctx).WithField("changed", len(changed))
	if len(drift) == 0 {
		log.Debug("global skills changed, no session drifted")
		return
	}
	for _, entry := range drift {
		log.WithFields(logrus.Fields{
			"session_id": entry.SessionID,
			"missing":    entry.Missing,
		}).Warn("session skills copy is missing global skills")
	}
}
