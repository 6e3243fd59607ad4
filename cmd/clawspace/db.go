package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/openclaw/clawspace/pkg/db"
	"github.com/openclaw/clawspace/pkg/db/migrations"
	"github.com/openclaw/clawspace/pkg/presenter"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database management commands",
	Long:  `Commands for managing the workspace record database (migrations, status, etc.)`,
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database migration status",
	Long:  `Shows the current database migration status, including applied and pending migrations.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		path, err := storePath()
		if err != nil {
			return err
		}
		status, err := db.GetMigrationStatus(ctx, path, migrations.All())
		if err != nil {
			return errors.Wrap(err, "failed to get migration status")
		}

		presenter.Section("Database Migration Status")
		presenter.Info(fmt.Sprintf("Database: %s", path))

		appliedCount := 0
		rows := make([][]string, 0, len(status))
		for _, m := range status {
			state, appliedAt := "pending", ""
			if m.Applied {
				state = "applied"
				appliedAt = m.AppliedAt.Local().Format("2006-01-02 15:04:05")
				appliedCount++
			}
			rows = append(rows, []string{fmt.Sprintf("%d", m.Version), m.Description, state, appliedAt})
		}
		presenter.Table([]string{"VERSION", "DESCRIPTION", "STATUS", "APPLIED AT"}, rows)
		presenter.Info(fmt.Sprintf("Applied: %d/%d migrations", appliedCount, len(status)))
		return nil
	},
}

var dbRollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Rollback the last database migration",
	Long:  `Rolls back the most recently applied database migration. Useful for testing or downgrading clawspace.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		path, err := storePath()
		if err != nil {
			return err
		}

		all := migrations.All()
		version, err := db.RollbackMigration(ctx, path, all)
		if err != nil {
			return errors.Wrap(err, "failed to rollback migration")
		}
		if version == 0 {
			presenter.Warning("No migrations to rollback")
			return nil
		}

		var description string
		for _, m := range all {
			if m.Version == version {
				description = m.Description
				break
			}
		}
		presenter.Success(fmt.Sprintf("Successfully rolled back migration %d: %s", version, description))
		return nil
	},
}

func init() {
	dbCmd.AddCommand(dbStatusCmd)
	dbCmd.AddCommand(dbRollbackCmd)
}
