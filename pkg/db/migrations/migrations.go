// Package migrations contains the database migrations for clawspace.
// Migrations use Rails-style timestamp versioning (YYYYMMDDHHmmss).
package migrations

import (
	"github.com/openclaw/clawspace/pkg/db"
)

// All returns all registered migrations in the correct order.
// New migrations should be added to this list.
func All() []db.Migration {
	return []db.Migration{
		Migration20260901090000CreateWorkspaces(),
		Migration20260901090001AddWorkspaceIndexes(),
	}
}
