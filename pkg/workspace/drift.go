package workspace

import (
	"context"

	"github.com/openclaw/clawspace/pkg/logger"
	"github.com/openclaw/clawspace/pkg/types/workspaces"
)

// Drift lists copied sessions that lack skills present in the global skills
// root, i.e. whose independent copy has gone stale. Sessions that cannot be
// inspected are logged and skipped.
func (m *Manager) Drift(ctx context.Context) ([]workspaces.DriftEntry, error) {
	global, err := entryNames(m.cfg.GlobalSkillsDir)
	if err != nil {
		return nil, err
	}

	var drift []workspaces.DriftEntry
	for _, rec := range m.ListSessions() {
		if rec.Strategy != workspaces.StrategyCopy {
			continue
		}
		local, err := entryNames(m.skillsDir(rec))
		if err != nil {
			logger.G(ctx).WithError(err).WithField("session_id", rec.SessionID).Warn("cannot inspect session skills")
			continue
		}
		if missing := m.difference(global, local); len(missing) > 0 {
			drift = append(drift, workspaces.DriftEntry{SessionID: rec.SessionID, Missing: missing})
		}
	}
	return drift, nil
}
