package workspace

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

var (
	// ErrIO is matched by every *IOError
	ErrIO = errors.New("workspace I/O failure")
	// ErrSessionNotFound is returned when an operation names an unknown session
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidSessionID is returned for identifiers that are not safe path segments
	ErrInvalidSessionID = errors.New("invalid session id")
	// ErrSkillsDirMissing is returned when shared_skills must exist but does not
	ErrSkillsDirMissing = errors.New("skills directory not found")
	// ErrCustomSkillsPresent is returned when a restore would discard local-only skills
	ErrCustomSkillsPresent = errors.New("session has custom skills")
	// ErrInvalidSkillName is returned for skill names that could escape the skills directory
	ErrInvalidSkillName = errors.New("invalid skill name")
	// ErrPartialSweepFailure is matched by *SweepError
	ErrPartialSweepFailure = errors.New("some workspaces could not be removed")
)

// IOError wraps a filesystem failure with the operation and path that caused it
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying filesystem error
func (e *IOError) Unwrap() error { return e.Err }

// Is reports ErrIO as a match
func (e *IOError) Is(target error) bool { return target == ErrIO }

func ioError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Path: path, Err: err}
}

// CustomSkillsPresentError lists the local-only entries that blocked a restore
type CustomSkillsPresentError struct {
	SessionID string
	Entries   []string
}

func (e *CustomSkillsPresentError) Error() string {
	return fmt.Sprintf("session %s has custom skills (%s); use force to delete them and restore the symlink",
		e.SessionID, strings.Join(e.Entries, ", "))
}

// Is reports ErrCustomSkillsPresent as a match
func (e *CustomSkillsPresentError) Is(target error) bool { return target == ErrCustomSkillsPresent }

// SweepError aggregates the per-session failures of one sweep
type SweepError struct {
	Failed []string
	Errs   *multierror.Error
}

func (e *SweepError) Error() string {
	return fmt.Sprintf("failed to remove %d workspace(s): %v", len(e.Failed), e.Errs.ErrorOrNil())
}

// Unwrap exposes the aggregated errors
func (e *SweepError) Unwrap() error { return e.Errs.ErrorOrNil() }

// Is reports ErrPartialSweepFailure as a match
func (e *SweepError) Is(target error) bool { return target == ErrPartialSweepFailure }
