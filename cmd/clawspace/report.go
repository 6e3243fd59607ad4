package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openclaw/clawspace/pkg/logger"
	"github.com/openclaw/clawspace/pkg/metrics"
	"github.com/openclaw/clawspace/pkg/presenter"
	"github.com/openclaw/clawspace/pkg/types/workspaces"
	"github.com/openclaw/clawspace/pkg/workspace"
)

// diskReport is the JSON output of the report command
type diskReport struct {
	Estimate   workspaces.DiskReport       `json:"estimate"`
	Filesystem *workspaces.FilesystemUsage `json:"filesystem,omitempty"`
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Estimate the disk used by session skills",
	Long: `Estimate the disk used and saved by session skills. Every copied session is
assumed to hold --average-skills-size-mb of skills and every symlinked one nothing;
the estimate is derived from the session records and does not scan the disk. The
usage of the volume holding the workspaces is measured separately.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		recorder := newRecorder()
		manager, closeStore, err := openManager(ctx, workspace.WithObserver(recorder))
		if err != nil {
			return err
		}
		defer closeStore()

		out := diskReport{Estimate: manager.Report()}
		if usage, err := manager.FilesystemUsage(ctx); err != nil {
			logger.G(ctx).WithError(err).Warn("failed to measure filesystem usage")
		} else {
			out.Filesystem = &usage
		}

		if err := writeMetrics(ctx, manager, recorder); err != nil {
			return err
		}
		if jsonOutput(cmd) {
			return printJSON(out)
		}
		printDiskReport(out)
		return nil
	},
}

func init() {
	addJSONFlag(reportCmd)

	rootCmd.PersistentFlags().String("metrics-textfile", "", "Write Prometheus metrics to this file after each command")
	viper.BindPFlag("metrics.textfile", rootCmd.PersistentFlags().Lookup("metrics-textfile"))
}

func reportFields(r workspaces.DiskReport) [][2]string {
	return [][2]string{
		{"Sessions", fmt.Sprintf("%d", r.TotalSessions)},
		{"Symlinked", fmt.Sprintf("%d", r.SymlinkedCount)},
		{"Copied", fmt.Sprintf("%d", r.CopiedCount)},
		{"Empty", fmt.Sprintf("%d", r.EmptyCount)},
		{"Average skills size", humanize.IBytes(uint64(r.AverageSkillsSize))},
		{"Estimated used", humanize.IBytes(uint64(r.EstimatedDiskUsed))},
		{"Estimated saved", humanize.IBytes(uint64(r.EstimatedDiskSaved))},
		{"Efficiency", fmt.Sprintf("%.1f%%", r.EfficiencyPercent)},
	}
}

func printDiskReport(out diskReport) {
	presenter.Section("Skills disk usage (estimate)")
	presenter.Fields(reportFields(out.Estimate))

	if out.Filesystem == nil {
		return
	}
	fs := out.Filesystem
	presenter.Separator()
	presenter.Section("Workspace volume")
	presenter.Fields([][2]string{
		{"Path", fs.Path},
		{"Total", humanize.IBytes(fs.Total)},
		{"Used", fmt.Sprintf("%s (%.1f%%)", humanize.IBytes(fs.Used), fs.UsedPercent)},
		{"Free", humanize.IBytes(fs.Free)},
	})
}

// newRecorder returns a metrics recorder on a private registry
func newRecorder() *metrics.Recorder {
	return metrics.NewRecorder(nil)
}

// writeMetrics refreshes the report gauges and writes the textfile when
// metrics.textfile is configured
func writeMetrics(ctx context.Context, manager *workspace.Manager, recorder *metrics.Recorder) error {
	path := viper.GetString("metrics.textfile")
	if path == "" {
		return nil
	}
	path, err := expandHome(path)
	if err != nil {
		return err
	}
	recorder.ObserveReport(manager.Report(), time.Now().Unix())
	if err := recorder.WriteTextfile(path); err != nil {
		return err
	}
	logger.G(ctx).WithField("path", path).Debug("metrics written")
	return nil
}
