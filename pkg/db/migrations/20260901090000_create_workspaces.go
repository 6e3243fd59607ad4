package migrations

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/openclaw/clawspace/pkg/db"
)

// Migration20260901090000CreateWorkspaces creates the workspaces table
func Migration20260901090000CreateWorkspaces() db.Migration {
	return db.Migration{
		Version:     20260901090000,
		Description: "Create workspaces table",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS workspaces (
					session_id TEXT PRIMARY KEY,
					path TEXT NOT NULL,
					strategy TEXT NOT NULL CHECK (strategy IN ('none', 'symlink', 'copy')),
					profile TEXT NOT NULL DEFAULT '{}',
					custom_marked BOOLEAN NOT NULL DEFAULT 0,
					created_at DATETIME NOT NULL,
					last_used_at DATETIME NOT NULL
				)
			`)
			return errors.Wrap(err, "failed to create workspaces table")
		},
		Down: func(tx *sql.Tx) error {
			_, err := tx.Exec("DROP TABLE IF EXISTS workspaces")
			return errors.Wrap(err, "failed to drop workspaces table")
		},
	}
}
