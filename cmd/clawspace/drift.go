package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openclaw/clawspace/pkg/presenter"
)

var driftCmd = &cobra.Command{
	Use:   "drift",
	Short: "List copied sessions missing skills from the global root",
	Long: `List the sessions with an independent skills copy that lack skills added to the
global skills root since they were copied. Symlinked sessions always see the global
skills and never drift.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		manager, closeStore, err := openManager(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		drift, err := manager.Drift(ctx)
		if err != nil {
			return err
		}
		if jsonOutput(cmd) {
			return printJSON(drift)
		}
		if len(drift) == 0 {
			presenter.Success("No copied session is missing global skills")
			return nil
		}

		rows := make([][]string, 0, len(drift))
		for _, entry := range drift {
			rows = append(rows, []string{entry.SessionID, strings.Join(entry.Missing, ", ")})
		}
		presenter.Table([]string{"SESSION", "MISSING SKILLS"}, rows)
		presenter.Info(fmt.Sprintf("%d session(s) drifted, restore and break their skills to pick up the new ones", len(drift)))
		return nil
	},
}

func init() {
	addJSONFlag(driftCmd)
}
