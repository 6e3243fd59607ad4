// Package sqlite persists workspace records in the shared SQLite database so
// a restarted process can rehydrate its session registry.
package sqlite

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/openclaw/clawspace/pkg/db"
	"github.com/openclaw/clawspace/pkg/db/migrations"
	"github.com/openclaw/clawspace/pkg/types/workspaces"
	"github.com/openclaw/clawspace/pkg/workspace"
)

var _ workspace.Store = (*Store)(nil)

// Store implements workspace.Store on SQLite
type Store struct {
	dbPath string
	db     *sqlx.DB
}

// NewStore opens the database at dbPath and applies pending migrations
func NewStore(ctx context.Context, dbPath string) (*Store, error) {
	sqlDB, err := db.Open(ctx, dbPath)
	if err != nil {
		return nil, err
	}

	if err := db.NewMigrationRunner(sqlDB).Run(ctx, migrations.All()); err != nil {
		sqlDB.Close()
		return nil, errors.Wrap(err, "failed to run migrations")
	}

	return &Store{dbPath: dbPath, db: sqlDB}, nil
}

// Save inserts or replaces the record of a session
func (s *Store) Save(ctx context.Context, record workspaces.Record) error {
	query := `
		INSERT INTO workspaces (session_id, path, strategy, profile, custom_marked, created_at, last_used_at)
		VALUES (:session_id, :path, :strategy, :profile, :custom_marked, :created_at, :last_used_at)
		ON CONFLICT(session_id) DO UPDATE SET
			path = excluded.path,
			strategy = excluded.strategy,
			profile = excluded.profile,
			custom_marked = excluded.custom_marked,
			last_used_at = excluded.last_used_at
	`
	if _, err := s.db.NamedExecContext(ctx, query, fromRecord(record)); err != nil {
		return errors.Wrapf(err, "failed to save workspace %s", record.SessionID)
	}
	return nil
}

// Delete removes the record of a session. Deleting an unknown session is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM workspaces WHERE session_id = ?", sessionID); err != nil {
		return errors.Wrapf(err, "failed to delete workspace %s", sessionID)
	}
	return nil
}

// List returns every persisted record ordered by creation time
func (s *Store) List(ctx context.Context) ([]workspaces.Record, error) {
	var rows []dbWorkspace
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT session_id, path, strategy, profile, custom_marked, created_at, last_used_at
		FROM workspaces
		ORDER BY created_at, session_id
	`); err != nil {
		return nil, errors.Wrap(err, "failed to list workspaces")
	}

	records := make([]workspaces.Record, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].toRecord()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// Path returns the database file backing the store
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}
