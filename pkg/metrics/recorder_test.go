package metrics

import (
	"os"
	"path/filepath"
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/clawspace/pkg/types/workspaces"
	"github.com/openclaw/clawspace/pkg/workspace"
)

var _ workspace.Observer = (*Recorder)(nil)

func TestRecorderCounters(t *testing.T) {
	r := NewRecorder(prom.NewRegistry())

	r.SessionCreated(workspaces.StrategySymlink)
	r.SessionCreated(workspaces.StrategySymlink)
	r.SessionCreated(workspaces.StrategyCopy)
	r.StrategyConverted(workspaces.StrategySymlink, workspaces.StrategyCopy)
	r.SessionsSwept(3, 1)
	r.SessionsSwept(0, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.created.WithLabelValues("symlink")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.created.WithLabelValues("copy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.conversions.WithLabelValues("symlink", "copy")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.sweeps))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.sweepRemoved))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.sweepFailed))
}

func TestRecorderReport(t *testing.T) {
	r := NewRecorder(nil)

	r.ObserveReport(workspaces.DiskReport{
		TotalSessions:      4,
		SymlinkedCount:     2,
		CopiedCount:        1,
		EmptyCount:         1,
		AverageSkillsSize:  10,
		EstimatedDiskUsed:  10,
		EstimatedDiskSaved: 30,
		EfficiencyPercent:  75,
	}, 1700000000)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.sessions.WithLabelValues("symlink")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.sessions.WithLabelValues("none")))
	assert.Equal(t, 30.0, testutil.ToFloat64(r.diskSaved))
	assert.Equal(t, 75.0, testutil.ToFloat64(r.efficiency))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(r.lastReportUnix))
}

func TestWriteTextfile(t *testing.T) {
	r := NewRecorder(nil)
	r.SessionCreated(workspaces.StrategyCopy)

	path := filepath.Join(t.TempDir(), "clawspace.prom")
	require.NoError(t, r.WriteTextfile(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `clawspace_workspaces_created_total{strategy="copy"} 1`)
	assert.Contains(t, string(content), "# HELP clawspace_sweeps_total Retention sweeps run")

	err = r.WriteTextfile(filepath.Join(t.TempDir(), "missing", "dir", "x.prom"))
	assert.Error(t, err)
}
