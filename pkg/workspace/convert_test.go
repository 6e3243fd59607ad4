package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/clawspace/pkg/types/workspaces"
)

func TestBreakSymlink(t *testing.T) {
	ctx := context.Background()
	obs := newCountingObserver()
	m, _ := newTestManager(t, WithObserver(obs))

	rec, err := m.GetOrCreate(ctx, "s1", workspaces.Profile{})
	require.NoError(t, err)
	skillsDir := filepath.Join(rec.Path, SharedSkillsDir)

	res, err := m.BreakSymlink(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, res.AlreadyIndependent)
	assert.Equal(t, skillsDir, res.SkillsDir)

	requireState(t, skillsDir, PathDirectory)
	assert.Equal(t, names(t, m.Config().GlobalSkillsDir), names(t, skillsDir))

	rec, err = m.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, workspaces.StrategyCopy, rec.Strategy)
	assert.True(t, rec.CustomSkillsMarked)
	assert.True(t, m.IsMarked("s1"))

	// second call is a no-op
	require.NoError(t, os.WriteFile(filepath.Join(skillsDir, "local.txt"), []byte("x"), 0o644))
	res, err = m.BreakSymlink(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, res.AlreadyIndependent)
	assert.FileExists(t, filepath.Join(skillsDir, "local.txt"))

	assert.Equal(t, []string{"symlink->copy"}, obs.converted)
}

func TestBreakSymlinkErrors(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	_, err := m.BreakSymlink(ctx, "unknown")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	rec, err := m.GetOrCreate(ctx, "s1", workspaces.Profile{})
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(rec.Path, SharedSkillsDir)))

	_, err = m.BreakSymlink(ctx, "s1")
	assert.ErrorIs(t, err, ErrSkillsDirMissing)

	rec, err = m.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, workspaces.StrategySymlink, rec.Strategy)
}

func TestBreakSymlinkRelinksAfterFailedCopy(t *testing.T) {
	ctx := context.Background()
	obs := newCountingObserver()
	m, _ := newTestManager(t, WithObserver(obs))

	rec, err := m.GetOrCreate(ctx, "s1", workspaces.Profile{})
	require.NoError(t, err)
	skillsDir := filepath.Join(rec.Path, SharedSkillsDir)

	orig := copySkillsTree
	copySkillsTree = func(_, dst string) ([]string, error) {
		require.NoError(t, os.MkdirAll(filepath.Join(dst, "alpha"), 0o755))
		return nil, &os.PathError{Op: "open", Path: dst, Err: os.ErrPermission}
	}
	defer func() { copySkillsTree = orig }()

	_, err = m.BreakSymlink(ctx, "s1")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrPermission)

	requireState(t, skillsDir, PathSymlink)
	target, err := os.Readlink(skillsDir)
	require.NoError(t, err)
	assert.Equal(t, m.Config().GlobalSkillsDir, target)

	after, err := m.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, workspaces.StrategySymlink, after.Strategy)
	assert.False(t, after.CustomSkillsMarked)
	assert.False(t, m.IsMarked("s1"))
	assert.Empty(t, obs.converted)
}

func TestBreakSymlinkReconcilesFallback(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	// a pre-existing directory makes the symlink fail at creation time
	path := workspacePath(m.Config().BaseDir, "s1")
	require.NoError(t, os.MkdirAll(filepath.Join(path, SharedSkillsDir), 0o755))

	rec, err := m.GetOrCreate(ctx, "s1", workspaces.Profile{})
	require.NoError(t, err)
	assert.Equal(t, workspaces.StrategySymlink, rec.Strategy)

	res, err := m.BreakSymlink(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, res.AlreadyIndependent)

	rec, err = m.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, workspaces.StrategyCopy, rec.Strategy)
	assert.Empty(t, names(t, filepath.Join(path, SharedSkillsDir)), "the filesystem is not touched")
}

func TestRestoreSymlink(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	rec, err := m.GetOrCreate(ctx, "s2", workspaces.Profile{Tier: "premium"})
	require.NoError(t, err)
	skillsDir := filepath.Join(rec.Path, SharedSkillsDir)

	res, err := m.RestoreSymlink(ctx, "s2", false)
	require.NoError(t, err, "a copy without local-only skills restores without force")
	assert.False(t, res.AlreadySymlink)
	assert.Empty(t, res.Discarded)
	requireState(t, skillsDir, PathSymlink)

	rec, err = m.Get("s2")
	require.NoError(t, err)
	assert.Equal(t, workspaces.StrategySymlink, rec.Strategy)
	assert.False(t, rec.CustomSkillsMarked)

	res, err = m.RestoreSymlink(ctx, "s2", false)
	require.NoError(t, err)
	assert.True(t, res.AlreadySymlink)
}

func TestRestoreSymlinkIgnoresPatterns(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	rec, err := m.GetOrCreate(ctx, "s2", workspaces.Profile{Tier: "premium"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(rec.Path, SharedSkillsDir, ".DS_Store"), nil, 0o644))

	_, err = m.RestoreSymlink(ctx, "s2", false)
	require.NoError(t, err)
}

func TestRestoreSymlinkBlockedByAnyLocalEntry(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, setupGlobalSkills(t))
	cfg.IgnorePatterns = nil
	m, err := NewManager(cfg)
	require.NoError(t, err)

	rec, err := m.GetOrCreate(ctx, "s2", workspaces.Profile{Tier: "premium"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(rec.Path, SharedSkillsDir, ".DS_Store"), nil, 0o644))

	_, err = m.RestoreSymlink(ctx, "s2", false)
	var present *CustomSkillsPresentError
	require.ErrorAs(t, err, &present)
	assert.Equal(t, []string{".DS_Store"}, present.Entries)
}

func TestRestoreSymlinkWithoutGlobalRoot(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, filepath.Join(t.TempDir(), "absent"))
	m, err := NewManager(cfg)
	require.NoError(t, err)

	rec, err := m.GetOrCreate(ctx, "s1", workspaces.Profile{RequiresIsolation: true})
	require.NoError(t, err)
	require.Equal(t, workspaces.StrategyCopy, rec.Strategy)
	writeSkill(t, filepath.Join(rec.Path, SharedSkillsDir), "mine", "x")

	_, err = m.RestoreSymlink(ctx, "s1", false)
	assert.ErrorIs(t, err, ErrCustomSkillsPresent)

	res, err := m.RestoreSymlink(ctx, "s1", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"mine"}, res.Discarded)
	requireState(t, filepath.Join(rec.Path, SharedSkillsDir), PathSymlink)
	requireState(t, cfg.GlobalSkillsDir, PathDirectory)
}

func TestAddCustomSkill(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	for _, profile := range []workspaces.Profile{{}, {Tier: "premium"}} {
		id := "free"
		if profile.Tier != "" {
			id = profile.Tier
		}
		_, err := m.GetOrCreate(ctx, id, profile)
		require.NoError(t, err)

		res, err := m.AddCustomSkill(ctx, id, "foo", "# foo\n")
		require.NoError(t, err)

		content, err := os.ReadFile(filepath.Join(res.SkillPath, SkillFileName))
		require.NoError(t, err)
		assert.Equal(t, "# foo\n", string(content))

		rec, err := m.Get(id)
		require.NoError(t, err)
		assert.Equal(t, workspaces.StrategyCopy, rec.Strategy)
		assert.True(t, rec.CustomSkillsMarked)
	}
	assert.Equal(t, []string{"alpha"}, names(t, m.Config().GlobalSkillsDir))
}

func TestAddCustomSkillInvalidName(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	rec, err := m.GetOrCreate(ctx, "s1", workspaces.Profile{})
	require.NoError(t, err)

	for _, name := range []string{"../escape", "a/b", ""} {
		_, err := m.AddCustomSkill(ctx, "s1", name, "x")
		assert.ErrorIs(t, err, ErrInvalidSkillName, name)
	}

	// rejected before any conversion happens
	requireState(t, filepath.Join(rec.Path, SharedSkillsDir), PathSymlink)
	rec, err = m.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, workspaces.StrategySymlink, rec.Strategy)
}

func TestConversionScenario(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)
	global := m.Config().GlobalSkillsDir

	s1, err := m.GetOrCreate(ctx, "s1", workspaces.Profile{Tier: "free"})
	require.NoError(t, err)
	assert.Equal(t, workspaces.StrategySymlink, s1.Strategy)
	s1Skills := filepath.Join(s1.Path, SharedSkillsDir)
	requireState(t, s1Skills, PathSymlink)
	assert.Equal(t, []string{"alpha"}, names(t, s1Skills))

	s2, err := m.GetOrCreate(ctx, "s2", workspaces.Profile{Tier: "premium"})
	require.NoError(t, err)
	assert.Equal(t, workspaces.StrategyCopy, s2.Strategy)
	s2Skills := filepath.Join(s2.Path, SharedSkillsDir)
	requireState(t, filepath.Join(s2Skills, "alpha"), PathDirectory)

	_, err = m.BreakSymlink(ctx, "s1")
	require.NoError(t, err)
	requireState(t, filepath.Join(s1Skills, "alpha"), PathDirectory)

	_, err = m.AddCustomSkill(ctx, "s1", "beta", "# beta\n")
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, names(t, s1Skills))
	assert.Equal(t, []string{"alpha"}, names(t, s2Skills))
	assert.Equal(t, []string{"alpha"}, names(t, global))

	_, err = m.RestoreSymlink(ctx, "s1", false)
	var custom *CustomSkillsPresentError
	require.ErrorAs(t, err, &custom)
	assert.Equal(t, []string{"beta"}, custom.Entries)
	assert.ErrorIs(t, err, ErrCustomSkillsPresent)
	assert.Equal(t, []string{"alpha", "beta"}, names(t, s1Skills), "a refused restore changes nothing")

	res, err := m.RestoreSymlink(ctx, "s1", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"beta"}, res.Discarded)
	requireState(t, s1Skills, PathSymlink)
	assert.Equal(t, []string{"alpha"}, names(t, s1Skills))

	// s2's copy is independently deletable
	require.NoError(t, os.RemoveAll(filepath.Join(s2Skills, "alpha")))
	assert.Equal(t, []string{"alpha"}, names(t, global))
	assert.Equal(t, []string{"alpha"}, names(t, s1Skills))
}
