package workspace

import (
	"io/fs"
	"os"
)

// PathState is the physical state of a path inspected without following symlinks
type PathState int

const (
	// PathAbsent means nothing exists at the path
	PathAbsent PathState = iota
	// PathSymlink means the path is a symbolic link
	PathSymlink
	// PathDirectory means the path is a regular directory
	PathDirectory
	// PathOther means the path is a file, socket or other non-directory
	PathOther
)

func (s PathState) String() string {
	switch s {
	case PathAbsent:
		return "absent"
	case PathSymlink:
		return "symlink"
	case PathDirectory:
		return "directory"
	default:
		return "other"
	}
}

// probe lstats path. Not-exist is reported as PathAbsent with a nil error;
// any other failure is returned so callers can decide how to degrade.
func probe(path string) (PathState, error) {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return PathAbsent, nil
		}
		return PathAbsent, ioError("lstat", path, err)
	}
	switch {
	case info.Mode()&fs.ModeSymlink != 0:
		return PathSymlink, nil
	case info.IsDir():
		return PathDirectory, nil
	default:
		return PathOther, nil
	}
}
