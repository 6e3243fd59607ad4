package workspace

import (
	"context"

	"github.com/openclaw/clawspace/pkg/types/workspaces"
)

// Store persists workspace records across process restarts and shares them
// between processes. The store is written through after every mutation and
// read back by Manager.Load.
type Store interface {
	Save(ctx context.Context, record workspaces.Record) error
	Delete(ctx context.Context, sessionID string) error
	List(ctx context.Context) ([]workspaces.Record, error)
	Close() error
}

// Observer receives lifecycle events, typically to update metrics
type Observer interface {
	SessionCreated(strategy workspaces.Strategy)
	StrategyConverted(from, to workspaces.Strategy)
	SessionsSwept(removed, failed int)
}

type noopObserver struct{}

func (noopObserver) SessionCreated(workspaces.Strategy) {}
func (noopObserver) StrategyConverted(_, _ workspaces.Strategy) {}
func (noopObserver) SessionsSwept(_, _ int) {}
