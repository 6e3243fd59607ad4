package workspace

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/openclaw/clawspace/pkg/logger"
	"github.com/openclaw/clawspace/pkg/telemetry"
)

// Sweep deletes every workspace whose LastUsedAt is strictly older than
// now-maxAge and forgets its session. A failed deletion does not stop the
// sweep: the session is kept and the failure is reported in a *SweepError
// alongside the number of workspaces that were removed.
func (m *Manager) Sweep(ctx context.Context, maxAge time.Duration) (int, error) {
	var removed int
	err := telemetry.WithSpan(ctx, "workspace.sweep", func(ctx context.Context) error {
		cutoff := m.now().Add(-maxAge)

		var candidates []string
		m.mu.RLock()
		for id, rec := range m.sessions {
			if rec.LastUsedAt.Before(cutoff) {
				candidates = append(candidates, id)
			}
		}
		m.mu.RUnlock()

		var (
			mu     sync.Mutex
			errs   *multierror.Error
			failed []string
		)
		g := new(errgroup.Group)
		g.SetLimit(m.cfg.SweepConcurrency)
		for _, id := range candidates {
			g.Go(func() error {
				ok, err := m.sweepOne(ctx, id, cutoff)

				mu.Lock()
				defer mu.Unlock()
				switch {
				case err != nil:
					errs = multierror.Append(errs, errors.Wrapf(err, "session %s", id))
					failed = append(failed, id)
				case ok:
					removed++
				}
				return nil
			})
		}
		_ = g.Wait()

		m.observer.SessionsSwept(removed, len(failed))
		telemetry.SetAttributes(ctx,
			attribute.Int("sweep.candidates", len(candidates)),
			attribute.Int("sweep.removed", removed),
			attribute.Int("sweep.failed", len(failed)),
		)
		logger.G(ctx).WithField("removed", removed).WithField("failed", len(failed)).Info("workspace sweep finished")

		if errs != nil {
			return &SweepError{Failed: failed, Errs: errs}
		}
		return nil
	}, attribute.String("sweep.max_age", maxAge.String()))
	return removed, err
}

// sweepOne removes one stale session under its lock. It reports false when the
// session disappeared or was used again after the candidates were collected.
func (m *Manager) sweepOne(ctx context.Context, sessionID string, cutoff time.Time) (bool, error) {
	unlock, err := m.locks.lock(sessionID)
	if err != nil {
		return false, err
	}
	defer unlock()

	rec, err := m.Get(sessionID)
	if err != nil || !rec.LastUsedAt.Before(cutoff) {
		return false, nil
	}

	log := logger.G(logger.WithSession(ctx, sessionID))
	if err := m.removeTree(rec.Path); err != nil {
		log.WithError(err).Error("failed to clean up workspace")
		return false, err
	}
	m.forget(ctx, sessionID)
	log.Info("cleaned up workspace")
	return true, nil
}

// removeAll is swapped out by tests to simulate undeletable workspaces
var removeAll = os.RemoveAll

// removeTree deletes a workspace directory, retrying transient failures such
// as files held open by another process. Symlinks inside the tree are removed,
// never followed.
func (m *Manager) removeTree(path string) error {
	err := retry.Do(
		func() error {
			return removeAll(path)
		},
		retry.Attempts(m.cfg.SweepRetryAttempts),
		retry.Delay(m.cfg.SweepRetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	return ioError("remove", path, err)
}
