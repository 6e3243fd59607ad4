// Package scheduler runs periodic maintenance, such as retention sweeps, on
// top of gocron. Workspace operations themselves never start timers.
package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/openclaw/clawspace/pkg/logger"
)

// Sweeper removes workspaces unused for longer than maxAge
type Sweeper interface {
	Sweep(ctx context.Context, maxAge time.Duration) (int, error)
}

// SweepFunc is called after every scheduled sweep with its outcome
type SweepFunc func(removed int, err error)

// Scheduler wraps a gocron scheduler. Tasks receive the context passed to
// New, which is cancelled by Stop.
type Scheduler struct {
	scheduler gocron.Scheduler
	ctx       context.Context
	cancel    context.CancelFunc
}

// New creates a stopped scheduler
func New(ctx context.Context) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create gocron scheduler")
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Scheduler{scheduler: s, ctx: ctx, cancel: cancel}, nil
}

// Start begins running scheduled jobs
func (s *Scheduler) Start() {
	logger.G(s.ctx).WithField("jobs", len(s.scheduler.Jobs())).Info("starting scheduler")
	s.scheduler.Start()
}

// Stop cancels running tasks and waits for them to return
func (s *Scheduler) Stop() error {
	logger.G(s.ctx).Info("stopping scheduler")
	s.cancel()
	return errors.Wrap(s.scheduler.Shutdown(), "failed to shut down scheduler")
}

// Every runs task every interval, starting immediately once the scheduler is
// started. Runs of the same task never overlap; a tick that arrives while the
// previous run is still going is skipped. It returns the job ID.
func (s *Scheduler) Every(name string, interval time.Duration, task func(context.Context)) (string, error) {
	if interval <= 0 {
		return "", errors.Errorf("interval of job %s must be positive, got %s", name, interval)
	}
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if s.ctx.Err() != nil {
				return
			}
			task(s.ctx)
		}),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return "", errors.Wrapf(err, "failed to schedule job %s", name)
	}
	logger.G(s.ctx).WithFields(logrus.Fields{"job": name, "interval": interval.String()}).Debug("job scheduled")
	return job.ID().String(), nil
}

// ScheduleSweep sweeps workspaces older than maxAge every interval. after,
// if not nil, observes each sweep.
func (s *Scheduler) ScheduleSweep(sweeper Sweeper, interval, maxAge time.Duration, after SweepFunc) (string, error) {
	if maxAge <= 0 {
		return "", errors.Errorf("sweep max age must be positive, got %s", maxAge)
	}
	return s.Every("workspace-sweep", interval, func(ctx context.Context) {
		removed, err := sweeper.Sweep(ctx, maxAge)
		log := logger.G(ctx).WithField("removed", removed)
		if err != nil {
			log.WithError(err).Warn("scheduled sweep finished with failures")
		} else {
			log.Debug("scheduled sweep finished")
		}
		if after != nil {
			after(removed, err)
		}
	})
}
