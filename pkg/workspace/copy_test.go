package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyTreeResolvesLinks(t *testing.T) {
	global := setupGlobalSkills(t)
	external := t.TempDir()
	writeSkill(t, external, "linked", "# linked\n")

	require.NoError(t, os.Symlink(filepath.Join(external, "linked"), filepath.Join(global, "linked")))
	require.NoError(t, os.Symlink(filepath.Join(global, "missing"), filepath.Join(global, "dangling")))
	require.NoError(t, os.Symlink(global, filepath.Join(global, "alpha", "loop")))

	dst := filepath.Join(t.TempDir(), "copy")
	skipped, err := copyTree(global, dst)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		filepath.Join(global, "dangling"),
		filepath.Join(global, "alpha", "loop"),
	}, skipped)

	assert.Equal(t, []string{"alpha", "linked"}, names(t, dst))
	requireState(t, filepath.Join(dst, "linked"), PathDirectory)
	content, err := os.ReadFile(filepath.Join(dst, "linked", SkillFileName))
	require.NoError(t, err)
	assert.Equal(t, "# linked\n", string(content))
	assert.Equal(t, []string{SkillFileName}, names(t, filepath.Join(dst, "alpha")))
}

func TestCopyTreePreservesPermissions(t *testing.T) {
	src := t.TempDir()
	script := filepath.Join(src, "run.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\n"), 0o600))
	require.NoError(t, os.Chmod(script, 0o750))

	dst := filepath.Join(t.TempDir(), "copy")
	_, err := copyTree(src, dst)
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dst, "run.sh"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o750), info.Mode().Perm())
}
