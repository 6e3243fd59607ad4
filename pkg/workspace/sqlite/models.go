package sqlite

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/openclaw/clawspace/pkg/types/workspaces"
)

// JSONField stores T as a JSON text column
type JSONField[T any] struct {
	Data T
}

// Scan implements the sql.Scanner interface for reading from database
func (j *JSONField[T]) Scan(value any) error {
	if value == nil {
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.Errorf("cannot scan %T into JSONField", value)
		}
		bytes = []byte(str)
	}

	return json.Unmarshal(bytes, &j.Data)
}

// Value implements the driver.Valuer interface for writing to database
func (j JSONField[T]) Value() (driver.Value, error) {
	b, err := json.Marshal(j.Data)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// dbWorkspace represents the workspaces table structure
type dbWorkspace struct {
	SessionID    string                        `db:"session_id"`
	Path         string                        `db:"path"`
	Strategy     string                        `db:"strategy"`
	Profile      JSONField[workspaces.Profile] `db:"profile"`
	CustomMarked bool                          `db:"custom_marked"`
	CreatedAt    time.Time                     `db:"created_at"`
	LastUsedAt   time.Time                     `db:"last_used_at"`
}

func fromRecord(rec workspaces.Record) dbWorkspace {
	return dbWorkspace{
		SessionID:    rec.SessionID,
		Path:         rec.Path,
		Strategy:     rec.Strategy.String(),
		Profile:      JSONField[workspaces.Profile]{Data: rec.Profile},
		CustomMarked: rec.CustomSkillsMarked,
		CreatedAt:    rec.CreatedAt.UTC(),
		LastUsedAt:   rec.LastUsedAt.UTC(),
	}
}

func (w *dbWorkspace) toRecord() (workspaces.Record, error) {
	strategy, err := workspaces.ParseStrategy(w.Strategy)
	if err != nil {
		return workspaces.Record{}, errors.Wrapf(err, "workspace %s", w.SessionID)
	}
	return workspaces.Record{
		SessionID:          w.SessionID,
		Path:               w.Path,
		Strategy:           strategy,
		Profile:            w.Profile.Data,
		CustomSkillsMarked: w.CustomMarked,
		CreatedAt:          w.CreatedAt,
		LastUsedAt:         w.LastUsedAt,
	}, nil
}
