package workspace

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

const sessionDirPrefix = "session-"

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ValidateSessionID rejects identifiers that are not a single safe path segment
func ValidateSessionID(sessionID string) error {
	if !sessionIDPattern.MatchString(sessionID) || strings.Contains(sessionID, "..") {
		return errors.Wrapf(ErrInvalidSessionID, "%q", sessionID)
	}
	return nil
}

// ValidateSkillName rejects skill names that could escape the skills directory
func ValidateSkillName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return errors.Wrapf(ErrInvalidSkillName, "%q", name)
	}
	return nil
}

func workspacePath(baseDir, sessionID string) string {
	return filepath.Join(baseDir, sessionDirPrefix+sessionID)
}
