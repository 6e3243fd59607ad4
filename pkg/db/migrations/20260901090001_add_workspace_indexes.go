package migrations

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/openclaw/clawspace/pkg/db"
)

// Migration20260901090001AddWorkspaceIndexes indexes the columns used by sweeps and reports
func Migration20260901090001AddWorkspaceIndexes() db.Migration {
	return db.Migration{
		Version:     20260901090001,
		Description: "Add indexes for workspace retention and strategy queries",
		Up: func(tx *sql.Tx) error {
			indexes := []string{
				"CREATE INDEX IF NOT EXISTS idx_workspaces_last_used_at ON workspaces(last_used_at)",
				"CREATE INDEX IF NOT EXISTS idx_workspaces_strategy ON workspaces(strategy)",
			}
			for _, idx := range indexes {
				if _, err := tx.Exec(idx); err != nil {
					return errors.Wrap(err, "failed to create index")
				}
			}
			return nil
		},
		Down: func(tx *sql.Tx) error {
			for _, drop := range []string{
				"DROP INDEX IF EXISTS idx_workspaces_strategy",
				"DROP INDEX IF EXISTS idx_workspaces_last_used_at",
			} {
				if _, err := tx.Exec(drop); err != nil {
					return errors.Wrap(err, "failed to drop index")
				}
			}
			return nil
		},
	}
}
