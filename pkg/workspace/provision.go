package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// SharedMemoryDir persists memory across tasks of one session
	SharedMemoryDir = "shared_memory"
	// SharedSkillsDir is either a symlink to the global skills root or an independent copy
	SharedSkillsDir = "shared_skills"
	// ProjectsDir holds project files
	ProjectsDir = "projects"
	// GeneratedDir holds generated output
	GeneratedDir = "generated"

	descriptorFile = "WORKSPACE.md"
	ignoreFile     = ".gitignore"
	ignoreContent  = "generated/\nprojects/\n"

	dirPerm  = 0o755
	filePerm = 0o644
)

// skeletonDirs is created, in order, under every workspace. shared_skills is
// handled by the materializer.
var skeletonDirs = []string{
	SharedMemoryDir,
	ProjectsDir,
	GeneratedDir,
	filepath.Join(GeneratedDir, "images"),
	filepath.Join(GeneratedDir, "exports"),
}

func descriptorContent(created time.Time) string {
	return fmt.Sprintf(`# Workspace

Created: %s

## Structure

- `+"`shared_memory/`"+` - Persistent memory across tasks
- `+"`shared_skills/`"+` - Skills (symlinked to the global skills or an independent copy)
- `+"`projects/`"+` - Project files
- `+"`generated/`"+` - Generated output
  - `+"`images/`"+` - Generated images
  - `+"`exports/`"+` - Other exports

## Usage

This workspace is isolated from other sessions.
`, created.UTC().Format(time.RFC3339))
}

// Provision creates the workspace skeleton and its metadata files. Every step
// is idempotent so a partially provisioned workspace can be provisioned again.
// Existing metadata files are never overwritten.
func Provision(path string) error {
	return provision(path, time.Now())
}

func provision(path string, now time.Time) error {
	if err := os.MkdirAll(path, dirPerm); err != nil {
		return ioError("mkdir", path, err)
	}
	for _, sub := range skeletonDirs {
		dir := filepath.Join(path, sub)
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return ioError("mkdir", dir, err)
		}
	}

	if err := writeFileOnce(filepath.Join(path, descriptorFile), descriptorContent(now)); err != nil {
		return err
	}
	return writeFileOnce(filepath.Join(path, ignoreFile), ignoreContent)
}

// writeFileOnce creates path with content unless it already exists
func writeFileOnce(path, content string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return ioError("create", path, err)
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		os.Remove(path)
		return ioError("write", path, err)
	}
	return ioError("close", path, f.Close())
}
