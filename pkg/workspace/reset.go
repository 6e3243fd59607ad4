package workspace

import (
	"context"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"

	"github.com/openclaw/clawspace/pkg/logger"
	"github.com/openclaw/clawspace/pkg/telemetry"
	"github.com/openclaw/clawspace/pkg/types/workspaces"
)

const backupsDir = ".backups"

// Reset recreates the workspace of sessionID from scratch. Files in a
// non-empty shared_memory are first backed up under .backups, which survives
// the reset. Default skills missing from the global root are installed when
// a manifest is configured. The session keeps its skills strategy.
func (m *Manager) Reset(ctx context.Context, sessionID string) (workspaces.ResetResult, error) {
	var result workspaces.ResetResult
	err := telemetry.WithSpan(ctx, "workspace.reset", func(ctx context.Context) error {
		ctx = logger.WithSession(ctx, sessionID)
		rec, unlock, err := m.lockExisting(sessionID)
		if err != nil {
			return err
		}
		defer unlock()

		log := logger.G(ctx)
		result.Path = rec.Path
		now := m.now()

		result.BackupDir, err = backupSharedMemory(rec.Path, now.UTC().Format("2006-01-02T15-04-05"))
		if err != nil {
			return err
		}
		if result.BackupDir != "" {
			log.WithField("backup", result.BackupDir).Info("backed up shared_memory")
		}

		if err := clearWorkspace(rec.Path); err != nil {
			return err
		}
		if err := provision(rec.Path, now); err != nil {
			return err
		}
		installed, err := m.InstallDefaultSkills(ctx)
		if err != nil {
			log.WithError(err).Warn("failed to install default skills")
		}
		result.InstalledSkills = installed.Installed
		if _, err := Materialize(ctx, m.skillsDir(rec), m.cfg.GlobalSkillsDir, rec.Strategy); err != nil {
			return err
		}

		if _, err := m.update(ctx, sessionID, func(r *workspaces.Record) {
			r.LastUsedAt = now
		}); err != nil {
			return err
		}
		log.Info("workspace reset")
		return nil
	}, attribute.String("session.id", sessionID))
	return result, err
}

// backupSharedMemory copies the regular files of shared_memory into
// .backups/shared_memory-<stamp>. It returns "" when there was nothing to save.
func backupSharedMemory(workspace, stamp string) (string, error) {
	memDir := filepath.Join(workspace, SharedMemoryDir)
	entries, err := os.ReadDir(memDir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", ioError("readdir", memDir, err)
	}
	if len(entries) == 0 {
		return "", nil
	}

	backupDir := filepath.Join(workspace, backupsDir, "shared_memory-"+stamp)
	if err := os.MkdirAll(backupDir, dirPerm); err != nil {
		return "", ioError("mkdir", backupDir, err)
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if err := copyFile(filepath.Join(memDir, e.Name()), filepath.Join(backupDir, e.Name())); err != nil {
			return "", err
		}
	}
	return backupDir, nil
}

// clearWorkspace removes every top-level entry except the backups directory
func clearWorkspace(workspace string) error {
	entries, err := os.ReadDir(workspace)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return ioError("readdir", workspace, err)
	}
	for _, e := range entries {
		if e.Name() == backupsDir {
			continue
		}
		path := filepath.Join(workspace, e.Name())
		if err := unlinkSymlink(path); err != nil {
			return err
		}
		if err := os.RemoveAll(path); err != nil {
			return ioError("remove", path, err)
		}
	}
	return nil
}
