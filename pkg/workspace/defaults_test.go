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

func writeManifest(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSkillManifest(t *testing.T) {
	dir := t.TempDir()

	t.Run("json", func(t *testing.T) {
		path := writeManifest(t, dir, "default-skills.json",
			`{"skills": [{"name": "brainstorming", "source": "plugin"}, {"name": "notes", "source": "custom"}]}`)
		manifest, err := LoadSkillManifest(path)
		require.NoError(t, err)
		assert.Equal(t, []ManifestSkill{
			{Name: "brainstorming", Source: "plugin"},
			{Name: "notes", Source: "custom"},
		}, manifest.Skills)
	})

	t.Run("yaml", func(t *testing.T) {
		path := writeManifest(t, dir, "default-skills.yaml", "skills:\n  - name: notes\n    source: custom\n")
		manifest, err := LoadSkillManifest(path)
		require.NoError(t, err)
		assert.Equal(t, []ManifestSkill{{Name: "notes", Source: "custom"}}, manifest.Skills)
	})

	t.Run("invalid skill name", func(t *testing.T) {
		path := writeManifest(t, dir, "bad-name.json", `{"skills": [{"name": "../escape", "source": "plugin"}]}`)
		_, err := LoadSkillManifest(path)
		assert.ErrorIs(t, err, ErrInvalidSkillName)
	})

	t.Run("missing source", func(t *testing.T) {
		path := writeManifest(t, dir, "no-source.json", `{"skills": [{"name": "notes"}]}`)
		_, err := LoadSkillManifest(path)
		assert.ErrorContains(t, err, "has no source")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadSkillManifest(filepath.Join(dir, "absent.json"))
		assert.Error(t, err)
	})
}

func TestInstallDefaultSkills(t *testing.T) {
	ctx := context.Background()
	global := setupGlobalSkills(t)
	plugin := t.TempDir()
	custom := t.TempDir()
	writeSkill(t, plugin, "alpha", "# plugin alpha\n")
	writeSkill(t, plugin, "beta", "# beta\n")
	writeSkill(t, custom, "gamma", "# gamma\n")

	manifest := SkillManifest{Skills: []ManifestSkill{
		{Name: "alpha", Source: "plugin"},
		{Name: "beta", Source: "plugin"},
		{Name: "gamma", Source: "custom"},
		{Name: "delta", Source: "superpowers"},
		{Name: "epsilon", Source: "plugin"},
	}}
	sources := map[string]string{"plugin": plugin, "custom": custom}

	res, err := InstallDefaultSkills(ctx, global, manifest, sources)
	require.NoError(t, err)
	assert.Equal(t, []string{"beta", "gamma"}, res.Installed)
	assert.Equal(t, []string{"alpha"}, res.Existing)
	assert.Equal(t, []string{"delta", "epsilon"}, res.Unavailable)

	assert.Equal(t, []string{"alpha", "beta", "gamma"}, names(t, global), "no staging directory is left behind")
	content, err := os.ReadFile(filepath.Join(global, "alpha", SkillFileName))
	require.NoError(t, err)
	assert.Equal(t, "# alpha\n", string(content), "existing skills are never overwritten")
	content, err = os.ReadFile(filepath.Join(global, "beta", SkillFileName))
	require.NoError(t, err)
	assert.Equal(t, "# beta\n", string(content))

	// installing again changes nothing
	res, err = InstallDefaultSkills(ctx, global, manifest, sources)
	require.NoError(t, err)
	assert.Empty(t, res.Installed)
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, res.Existing)
}

func TestInstallDefaultSkillsCreatesRoot(t *testing.T) {
	global := filepath.Join(t.TempDir(), "shared_skills")
	plugin := t.TempDir()
	writeSkill(t, plugin, "alpha", "# alpha\n")

	res, err := InstallDefaultSkills(context.Background(), global,
		SkillManifest{Skills: []ManifestSkill{{Name: "alpha", Source: "plugin"}}},
		map[string]string{"plugin": plugin})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha"}, res.Installed)
	assert.FileExists(t, filepath.Join(global, "alpha", SkillFileName))
}

func TestManagerInstallDefaultSkills(t *testing.T) {
	ctx := context.Background()
	templates := t.TempDir()
	writeSkill(t, filepath.Join(templates, "skills"), "beta", "# beta\n")
	manifest := writeManifest(t, templates, "default-skills.json", `{"skills": [{"name": "beta", "source": "custom"}]}`)

	cfg := testConfig(t, setupGlobalSkills(t))
	cfg.DefaultSkillsManifest = manifest
	cfg.DefaultSkillsSources = map[string]string{"custom": "skills"}
	m, err := NewManager(cfg)
	require.NoError(t, err)

	res, err := m.InstallDefaultSkills(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"beta"}, res.Installed)
	assert.Equal(t, []string{"alpha", "beta"}, names(t, cfg.GlobalSkillsDir))
}

func TestManagerInstallDefaultSkillsWithoutManifest(t *testing.T) {
	m, _ := newTestManager(t)

	res, err := m.InstallDefaultSkills(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Installed)
	assert.Equal(t, []string{"alpha"}, names(t, m.Config().GlobalSkillsDir))
}

func TestResetInstallsDefaultSkills(t *testing.T) {
	ctx := context.Background()
	templates := t.TempDir()
	writeSkill(t, filepath.Join(templates, "skills"), "beta", "# beta\n")
	manifest := writeManifest(t, templates, "default-skills.json", `{"skills": [{"name": "beta", "source": "custom"}]}`)

	cfg := testConfig(t, setupGlobalSkills(t))
	cfg.DefaultSkillsManifest = manifest
	cfg.DefaultSkillsSources = map[string]string{"custom": filepath.Join(templates, "skills")}
	m, err := NewManager(cfg)
	require.NoError(t, err)

	rec, err := m.GetOrCreate(ctx, "s1", workspaces.Profile{Tier: "premium"})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha"}, names(t, filepath.Join(rec.Path, SharedSkillsDir)))

	res, err := m.Reset(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"beta"}, res.InstalledSkills)
	assert.Equal(t, []string{"alpha", "beta"}, names(t, filepath.Join(rec.Path, SharedSkillsDir)),
		"the reset copy picks up the installed skills")
}
