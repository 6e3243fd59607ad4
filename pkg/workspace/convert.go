package workspace

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/openclaw/clawspace/pkg/logger"
	"github.com/openclaw/clawspace/pkg/telemetry"
	"github.com/openclaw/clawspace/pkg/types/workspaces"
)

// SkillFileName is the descriptor written for a custom skill
const SkillFileName = "SKILL.md"

// lockExisting takes the session lock of a session known to the registry and
// returns its record as seen after the lock was acquired
func (m *Manager) lockExisting(sessionID string) (workspaces.Record, func(), error) {
	if _, err := m.Get(sessionID); err != nil {
		return workspaces.Record{}, nil, err
	}
	unlock, err := m.locks.lock(sessionID)
	if err != nil {
		return workspaces.Record{}, nil, err
	}
	// the sweeper may have removed the session while we waited
	rec, err := m.Get(sessionID)
	if err != nil {
		unlock()
		return workspaces.Record{}, nil, err
	}
	return rec, unlock, nil
}

// BreakSymlink turns a symlinked shared_skills into an independent copy of the
// global skills root. It is a no-op for a session whose skills are already
// independent.
func (m *Manager) BreakSymlink(ctx context.Context, sessionID string) (workspaces.BreakResult, error) {
	var result workspaces.BreakResult
	err := telemetry.WithSpan(ctx, "workspace.break_symlink", func(ctx context.Context) error {
		ctx = logger.WithSession(ctx, sessionID)
		rec, unlock, err := m.lockExisting(sessionID)
		if err != nil {
			return err
		}
		defer unlock()

		result, err = m.breakSymlink(ctx, rec)
		return err
	}, attribute.String("session.id", sessionID))
	return result, err
}

func (m *Manager) breakSymlink(ctx context.Context, rec workspaces.Record) (workspaces.BreakResult, error) {
	skillsDir := m.skillsDir(rec)
	result := workspaces.BreakResult{Path: rec.Path, SkillsDir: skillsDir}
	log := logger.G(ctx)

	state, err := probe(skillsDir)
	if err != nil {
		return result, err
	}
	switch state {
	case PathAbsent:
		return result, errors.Wrapf(ErrSkillsDirMissing, "%s", skillsDir)
	case PathDirectory, PathOther:
		result.AlreadyIndependent = true
		if rec.Strategy != workspaces.StrategyCopy {
			// shared_skills fell back to a plain directory when it was created
			if _, err := m.update(ctx, rec.SessionID, func(r *workspaces.Record) {
				r.Strategy = workspaces.StrategyCopy
			}); err != nil {
				return result, err
			}
			m.observer.StrategyConverted(rec.Strategy, workspaces.StrategyCopy)
		}
		log.Debug("session already has independent skills")
		return result, nil
	}

	log.Info("breaking skills symlink")
	if err := os.Remove(skillsDir); err != nil {
		return result, ioError("unlink", skillsDir, err)
	}

	if err := m.copyGlobalSkills(ctx, skillsDir); err != nil {
		if rbErr := m.relink(skillsDir); rbErr != nil {
			log.WithError(rbErr).Error("failed to restore skills symlink after a failed copy")
		}
		return result, errors.Wrapf(err, "failed to copy skills for session %s", rec.SessionID)
	}

	if _, err := m.update(ctx, rec.SessionID, func(r *workspaces.Record) {
		r.Strategy = workspaces.StrategyCopy
		r.CustomSkillsMarked = true
	}); err != nil {
		return result, err
	}
	m.observer.StrategyConverted(rec.Strategy, workspaces.StrategyCopy)
	log.Info("session now has independent skills")
	return result, nil
}

// copyGlobalSkills fills a fresh skillsDir with a deep copy of the global root
func (m *Manager) copyGlobalSkills(ctx context.Context, skillsDir string) error {
	if _, err := os.Stat(m.cfg.GlobalSkillsDir); err != nil {
		if os.IsNotExist(err) {
			return ensureDir(skillsDir)
		}
		return ioError("stat", m.cfg.GlobalSkillsDir, err)
	}
	skipped, err := copySkillsTree(m.cfg.GlobalSkillsDir, skillsDir)
	for _, p := range skipped {
		logger.G(ctx).WithField("source", p).Warn("skipped entry while copying skills")
	}
	return err
}

// relink replaces whatever is at skillsDir with a symlink to the global root
func (m *Manager) relink(skillsDir string) error {
	if err := os.RemoveAll(skillsDir); err != nil {
		return ioError("remove", skillsDir, err)
	}
	if err := os.MkdirAll(m.cfg.GlobalSkillsDir, dirPerm); err != nil {
		return ioError("mkdir", m.cfg.GlobalSkillsDir, err)
	}
	return ioError("symlink", skillsDir, os.Symlink(m.cfg.GlobalSkillsDir, skillsDir))
}

// RestoreSymlink replaces an independent shared_skills with a symlink to the
// global skills root. Without force it refuses to run when the session has
// skills the global root does not; with force those skills are deleted.
func (m *Manager) RestoreSymlink(ctx context.Context, sessionID string, force bool) (workspaces.RestoreResult, error) {
	var result workspaces.RestoreResult
	err := telemetry.WithSpan(ctx, "workspace.restore_symlink", func(ctx context.Context) error {
		ctx = logger.WithSession(ctx, sessionID)
		rec, unlock, err := m.lockExisting(sessionID)
		if err != nil {
			return err
		}
		defer unlock()

		result, err = m.restoreSymlink(ctx, rec, force)
		return err
	}, attribute.String("session.id", sessionID), attribute.Bool("force", force))
	return result, err
}

func (m *Manager) restoreSymlink(ctx context.Context, rec workspaces.Record, force bool) (workspaces.RestoreResult, error) {
	skillsDir := m.skillsDir(rec)
	result := workspaces.RestoreResult{Path: rec.Path}
	log := logger.G(ctx)

	state, err := probe(skillsDir)
	if err != nil {
		return result, err
	}
	if state == PathSymlink {
		result.AlreadySymlink = true
		if rec.Strategy != workspaces.StrategySymlink || rec.CustomSkillsMarked {
			if _, err := m.update(ctx, rec.SessionID, func(r *workspaces.Record) {
				r.Strategy = workspaces.StrategySymlink
				r.CustomSkillsMarked = false
			}); err != nil {
				return result, err
			}
		}
		log.Debug("session already uses the skills symlink")
		return result, nil
	}

	custom, err := m.customSkills(skillsDir)
	if err != nil {
		return result, err
	}
	if len(custom) > 0 && !force {
		return result, &CustomSkillsPresentError{SessionID: rec.SessionID, Entries: custom}
	}
	result.Discarded = custom

	log.WithField("discarded", custom).Info("restoring skills symlink")
	if err := m.relink(skillsDir); err != nil {
		// keep shared_skills present even though the conversion failed
		if mkErr := ensureDir(skillsDir); mkErr != nil {
			log.WithError(mkErr).Error("failed to recreate shared_skills")
		}
		return result, errors.Wrapf(err, "failed to restore skills symlink for session %s", rec.SessionID)
	}

	if _, err := m.update(ctx, rec.SessionID, func(r *workspaces.Record) {
		r.Strategy = workspaces.StrategySymlink
		r.CustomSkillsMarked = false
	}); err != nil {
		return result, err
	}
	m.observer.StrategyConverted(rec.Strategy, workspaces.StrategySymlink)
	log.Info("session restored to the skills symlink")
	return result, nil
}

// AddCustomSkill gives the session independent skills, if it does not have
// them yet, and writes content as the descriptor of skill name.
func (m *Manager) AddCustomSkill(ctx context.Context, sessionID, name, content string) (workspaces.AddSkillResult, error) {
	var result workspaces.AddSkillResult
	err := telemetry.WithSpan(ctx, "workspace.add_custom_skill", func(ctx context.Context) error {
		if err := ValidateSkillName(name); err != nil {
			return err
		}
		ctx = logger.WithSession(ctx, sessionID)
		rec, unlock, err := m.lockExisting(sessionID)
		if err != nil {
			return err
		}
		defer unlock()

		if _, err := m.breakSymlink(ctx, rec); err != nil {
			return err
		}

		skillPath := filepath.Join(m.skillsDir(rec), name)
		if err := os.MkdirAll(skillPath, dirPerm); err != nil {
			return ioError("mkdir", skillPath, err)
		}
		descriptor := filepath.Join(skillPath, SkillFileName)
		if err := os.WriteFile(descriptor, []byte(content), filePerm); err != nil {
			return ioError("write", descriptor, err)
		}

		if _, err := m.update(ctx, sessionID, func(r *workspaces.Record) {
			r.Strategy = workspaces.StrategyCopy
			r.CustomSkillsMarked = true
		}); err != nil {
			return err
		}
		result.SkillPath = skillPath
		logger.G(ctx).WithField("skill", name).Info("custom skill added")
		return nil
	}, attribute.String("session.id", sessionID), attribute.String("skill.name", name))
	return result, err
}
