package workspace

import (
	"context"

	"github.com/shirou/gopsutil/v4/disk"

	"github.com/openclaw/clawspace/pkg/types/workspaces"
)

// Report estimates the disk used by session skills from registry state alone:
// every copied session is assumed to hold AverageSkillsSize bytes and every
// symlinked or empty one nothing. It does not scan the disk and the figures
// are not exact.
func (m *Manager) Report() workspaces.DiskReport {
	report := workspaces.DiskReport{AverageSkillsSize: m.cfg.AverageSkillsSize}

	for _, rec := range m.ListSessions() {
		report.TotalSessions++
		switch rec.Strategy {
		case workspaces.StrategySymlink:
			report.SymlinkedCount++
		case workspaces.StrategyCopy:
			report.CopiedCount++
		case workspaces.StrategyNone:
			report.EmptyCount++
		}
	}

	fullCopy := int64(report.TotalSessions) * report.AverageSkillsSize
	report.EstimatedDiskUsed = int64(report.CopiedCount) * report.AverageSkillsSize
	report.EstimatedDiskSaved = fullCopy - report.EstimatedDiskUsed
	if fullCopy > 0 {
		report.EfficiencyPercent = float64(report.EstimatedDiskSaved) / float64(fullCopy) * 100
	}
	return report
}

// FilesystemUsage measures the volume that holds the base directory. Unlike
// Report this reads real filesystem statistics.
func (m *Manager) FilesystemUsage(ctx context.Context) (workspaces.FilesystemUsage, error) {
	stat, err := disk.UsageWithContext(ctx, m.cfg.BaseDir)
	if err != nil {
		return workspaces.FilesystemUsage{}, ioError("statfs", m.cfg.BaseDir, err)
	}
	return workspaces.FilesystemUsage{
		Path:        m.cfg.BaseDir,
		Total:       stat.Total,
		Used:        stat.Used,
		Free:        stat.Free,
		UsedPercent: stat.UsedPercent,
	}, nil
}
