package workspace

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvisionLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session-s1")
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, provision(path, created))

	for _, sub := range []string{"shared_memory", "projects", "generated", "generated/images", "generated/exports"} {
		requireState(t, filepath.Join(path, sub), PathDirectory)
	}
	requireState(t, filepath.Join(path, SharedSkillsDir), PathAbsent)

	ignore, err := os.ReadFile(filepath.Join(path, ".gitignore"))
	require.NoError(t, err)
	assert.Equal(t, "generated/\nprojects/\n", string(ignore))

	descriptor, err := os.ReadFile(filepath.Join(path, "WORKSPACE.md"))
	require.NoError(t, err)
	assert.Contains(t, string(descriptor), "# Workspace")
	assert.Contains(t, string(descriptor), "Created: 2026-03-01T12:00:00Z")
	assert.Contains(t, string(descriptor), "`shared_skills/`")
}

func TestProvisionIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session-s1")
	require.NoError(t, Provision(path))

	descriptor := filepath.Join(path, "WORKSPACE.md")
	require.NoError(t, os.WriteFile(descriptor, []byte("edited by the agent\n"), 0o644))
	require.NoError(t, os.Remove(filepath.Join(path, "generated", "images")))
	require.NoError(t, os.WriteFile(filepath.Join(path, "projects", "main.go"), []byte("package main\n"), 0o644))

	require.NoError(t, Provision(path))

	content, err := os.ReadFile(descriptor)
	require.NoError(t, err)
	assert.Equal(t, "edited by the agent\n", string(content), "existing metadata must not be overwritten")
	requireState(t, filepath.Join(path, "generated", "images"), PathDirectory)
	assert.FileExists(t, filepath.Join(path, "projects", "main.go"))
}

func TestProvisionFailsOnFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session-s1")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	err := Provision(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIO)
}
