package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openclaw/clawspace/pkg/presenter"
	"github.com/openclaw/clawspace/pkg/workspace"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete workspaces that have not been used recently",
	Long: `Delete every workspace whose last use is older than --max-age and forget its
session. A workspace that cannot be deleted is reported and kept; the others are
still removed.

Examples:
  clawspace sweep --max-age 72h
  clawspace sweep --dry-run`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		maxAge, err := durationSetting(cmd, "max-age", "sweep.max_age")
		if err != nil {
			return err
		}
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		recorder := newRecorder()
		manager, closeStore, err := openManager(ctx, workspace.WithObserver(recorder))
		if err != nil {
			return err
		}
		defer closeStore()

		if dryRun {
			printSweepCandidates(manager, maxAge)
			return nil
		}

		removed, sweepErr := manager.Sweep(ctx, maxAge)
		var sweepFailure *workspace.SweepError
		if errors.As(sweepErr, &sweepFailure) {
			presenter.Warning(fmt.Sprintf("Could not remove %d workspace(s): %v", len(sweepFailure.Failed), sweepFailure.Failed))
		}
		presenter.Success(fmt.Sprintf("Removed %d workspace(s) unused for more than %s", removed, maxAge))

		if err := writeMetrics(ctx, manager, recorder); err != nil {
			return err
		}
		return sweepErr
	},
}

func init() {
	sweepCmd.Flags().Duration("max-age", 0, "Remove workspaces unused for longer than this (default from sweep.max_age, 168h)")
	sweepCmd.Flags().Bool("dry-run", false, "List the workspaces that would be removed without deleting them")
}

// durationSetting returns the value of flag when it was given and the viper
// key otherwise. The result must be positive.
func durationSetting(cmd *cobra.Command, flag, key string) (time.Duration, error) {
	d := viper.GetDuration(key)
	if cmd.Flags().Changed(flag) {
		var err error
		if d, err = cmd.Flags().GetDuration(flag); err != nil {
			return 0, err
		}
	}
	if d <= 0 {
		return 0, errors.Errorf("%s must be a positive duration, got %s", flag, d)
	}
	return d, nil
}

func printSweepCandidates(manager *workspace.Manager, maxAge time.Duration) {
	cutoff := time.Now().Add(-maxAge)
	var rows [][]string
	for _, rec := range manager.ListSessions() {
		if rec.LastUsedAt.Before(cutoff) {
			rows = append(rows, []string{rec.SessionID, rec.Strategy.String(), humanize.Time(rec.LastUsedAt), rec.Path})
		}
	}
	if len(rows) == 0 {
		presenter.Info(fmt.Sprintf("No workspace unused for more than %s", maxAge))
		return
	}
	presenter.Table([]string{"SESSION", "STRATEGY", "LAST USED", "PATH"}, rows)
}
