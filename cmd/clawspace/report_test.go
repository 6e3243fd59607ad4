package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/clawspace/pkg/types/workspaces"
	"github.com/openclaw/clawspace/pkg/workspace"
)

func TestReportFields(t *testing.T) {
	fields := reportFields(workspaces.DiskReport{
		TotalSessions:      3,
		SymlinkedCount:     2,
		CopiedCount:        1,
		AverageSkillsSize:  15 * 1024 * 1024,
		EstimatedDiskUsed:  15 * 1024 * 1024,
		EstimatedDiskSaved: 30 * 1024 * 1024,
		EfficiencyPercent:  200.0 / 3,
	})

	assert.Equal(t, [][2]string{
		{"Sessions", "3"},
		{"Symlinked", "2"},
		{"Copied", "1"},
		{"Empty", "0"},
		{"Average skills size", "15 MiB"},
		{"Estimated used", "15 MiB"},
		{"Estimated saved", "30 MiB"},
		{"Efficiency", "66.7%"},
	}, fields)
}

func TestWriteMetrics(t *testing.T) {
	root := t.TempDir()
	textfile := filepath.Join(root, "clawspace.prom")
	withViper(t, map[string]any{
		"base_dir":          filepath.Join(root, "workspaces"),
		"global_skills_dir": filepath.Join(root, "skills"),
		"store.enabled":     false,
	})

	ctx := t.Context()
	recorder := newRecorder()
	manager, closeStore, err := openManager(ctx, workspace.WithObserver(recorder))
	require.NoError(t, err)
	defer closeStore()

	_, err = manager.GetOrCreate(ctx, "chat-1", workspaces.Profile{})
	require.NoError(t, err)
	_, err = manager.GetOrCreate(ctx, "chat-2", workspaces.Profile{Tier: "premium"})
	require.NoError(t, err)

	// no textfile configured
	require.NoError(t, writeMetrics(ctx, manager, recorder))
	assert.NoFileExists(t, textfile)

	viper.Set("metrics.textfile", textfile)
	require.NoError(t, writeMetrics(ctx, manager, recorder))

	content, err := os.ReadFile(textfile)
	require.NoError(t, err)
	assert.Contains(t, string(content), `clawspace_sessions{strategy="symlink"} 1`)
	assert.Contains(t, string(content), `clawspace_sessions{strategy="copy"} 1`)
	assert.Contains(t, string(content), `clawspace_workspaces_created_total{strategy="copy"} 1`)
	assert.Contains(t, string(content), "clawspace_skills_disk_efficiency_percent 50")
	assert.Contains(t, string(content), "clawspace_last_report_timestamp_seconds")
}
