package workspace

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// treeCopier deep-copies a directory tree. Symbolic links inside the source
// are resolved and their targets copied so no session ends up linked into
// another tree. Broken links, link cycles and special files are skipped and
// reported in skipped.
type treeCopier struct {
	ancestors map[string]bool
	skipped   []string
}

// copySkillsTree is swapped out by tests to simulate failed skill copies
var copySkillsTree = copyTree

// copyTree copies src into dst and returns the source paths it skipped
func copyTree(src, dst string) ([]string, error) {
	c := &treeCopier{ancestors: make(map[string]bool)}
	err := c.copyDir(src, dst)
	return c.skipped, err
}

func (c *treeCopier) copyDir(src, dst string) error {
	real, err := filepath.EvalSymlinks(src)
	if err != nil {
		return ioError("resolve", src, err)
	}
	if c.ancestors[real] {
		c.skipped = append(c.skipped, src)
		return nil
	}
	c.ancestors[real] = true
	defer delete(c.ancestors, real)

	info, err := os.Stat(src)
	if err != nil {
		return ioError("stat", src, err)
	}
	if err := os.MkdirAll(dst, info.Mode().Perm()|0o700); err != nil {
		return ioError("mkdir", dst, err)
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return ioError("readdir", src, err)
	}

	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		mode := entry.Type()
		if mode&fs.ModeSymlink != 0 {
			target, err := os.Stat(srcPath)
			if err != nil {
				c.skipped = append(c.skipped, srcPath)
				continue
			}
			mode = target.Mode().Type()
		}

		switch {
		case mode.IsDir():
			if err := c.copyDir(srcPath, dstPath); err != nil {
				return err
			}
		case mode.IsRegular():
			if err := copyFile(srcPath, dstPath); err != nil {
				return err
			}
		default:
			c.skipped = append(c.skipped, srcPath)
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return ioError("open", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return ioError("stat", src, err)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return ioError("create", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return ioError("copy", dst, err)
	}
	return ioError("close", dst, out.Close())
}
