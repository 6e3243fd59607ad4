package workspace

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"

	"github.com/openclaw/clawspace/pkg/logger"
	"github.com/openclaw/clawspace/pkg/telemetry"
)

// SkillManifest lists the skills installed into a fresh global skills root.
// It is read from JSON or YAML:
//
//	{"skills": [{"name": "brainstorming", "source": "plugin"}]}
type SkillManifest struct {
	Skills []ManifestSkill `yaml:"skills" json:"skills"`
}

// ManifestSkill names one skill and the source it is installed from
type ManifestSkill struct {
	Name   string `yaml:"name" json:"name"`
	Source string `yaml:"source" json:"source"`
}

// InstallResult reports what InstallDefaultSkills did with each manifest entry
type InstallResult struct {
	Installed   []string `json:"installed,omitempty"`
	Existing    []string `json:"existing,omitempty"`
	Unavailable []string `json:"unavailable,omitempty"` // no configured source holds the skill
}

// LoadSkillManifest reads and validates a manifest file
func LoadSkillManifest(path string) (SkillManifest, error) {
	var manifest SkillManifest
	data, err := os.ReadFile(path)
	if err != nil {
		return manifest, errors.Wrapf(err, "failed to read skills manifest %s", path)
	}
	// YAML is a superset of the JSON manifests
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return manifest, errors.Wrapf(err, "failed to parse skills manifest %s", path)
	}
	for _, skill := range manifest.Skills {
		if err := ValidateSkillName(skill.Name); err != nil {
			return manifest, errors.Wrapf(err, "skills manifest %s", path)
		}
		if skill.Source == "" {
			return manifest, errors.Errorf("skills manifest %s: skill %s has no source", path, skill.Name)
		}
	}
	return manifest, nil
}

// InstallDefaultSkills copies every manifest skill missing from dest out of
// the directory its source maps to. Entries already in dest are never
// overwritten. Each skill is copied next to dest first and renamed into
// place, so readers of dest never see a half-copied skill.
func InstallDefaultSkills(ctx context.Context, dest string, manifest SkillManifest, sources map[string]string) (InstallResult, error) {
	var result InstallResult
	if err := os.MkdirAll(dest, dirPerm); err != nil {
		return result, ioError("mkdir", dest, err)
	}

	var errs *multierror.Error
	for _, skill := range manifest.Skills {
		log := logger.G(ctx).WithFields(logrus.Fields{"skill": skill.Name, "source": skill.Source})
		target := filepath.Join(dest, skill.Name)
		if _, err := os.Lstat(target); err == nil {
			result.Existing = append(result.Existing, skill.Name)
			continue
		}

		srcDir, ok := sources[skill.Source]
		if !ok {
			log.Warn("no directory configured for skill source, skipping")
			result.Unavailable = append(result.Unavailable, skill.Name)
			continue
		}
		src := filepath.Join(srcDir, skill.Name)
		if info, err := os.Stat(src); err != nil || !info.IsDir() {
			log.WithField("path", src).Warn("default skill not found in its source, skipping")
			result.Unavailable = append(result.Unavailable, skill.Name)
			continue
		}

		installed, err := installSkill(src, target)
		if err != nil {
			errs = multierror.Append(errs, errors.Wrapf(err, "skill %s", skill.Name))
			continue
		}
		if !installed {
			result.Existing = append(result.Existing, skill.Name)
			continue
		}
		log.Info("installed default skill")
		result.Installed = append(result.Installed, skill.Name)
	}
	return result, errs.ErrorOrNil()
}

// installSkill copies src to a staging directory beside target and renames it
// into place. It reports false when target appeared in the meantime.
func installSkill(src, target string) (bool, error) {
	staging := filepath.Join(filepath.Dir(target), ".install-"+uuid.NewString())
	if _, err := copyTree(src, staging); err != nil {
		os.RemoveAll(staging)
		return false, err
	}
	if err := os.Rename(staging, target); err != nil {
		os.RemoveAll(staging)
		if _, statErr := os.Lstat(target); statErr == nil {
			return false, nil
		}
		return false, ioError("rename", target, err)
	}
	return true, nil
}

// InstallDefaultSkills seeds the global skills root from the configured
// manifest. Relative source directories are resolved against the manifest's
// directory. Without a manifest it does nothing.
func (m *Manager) InstallDefaultSkills(ctx context.Context) (InstallResult, error) {
	var result InstallResult
	if m.cfg.DefaultSkillsManifest == "" {
		return result, nil
	}
	err := telemetry.WithSpan(ctx, "workspace.install_default_skills", func(ctx context.Context) error {
		manifest, err := LoadSkillManifest(m.cfg.DefaultSkillsManifest)
		if err != nil {
			return err
		}

		base := filepath.Dir(m.cfg.DefaultSkillsManifest)
		sources := make(map[string]string, len(m.cfg.DefaultSkillsSources))
		for name, dir := range m.cfg.DefaultSkillsSources {
			if !filepath.IsAbs(dir) {
				dir = filepath.Join(base, dir)
			}
			sources[name] = dir
		}

		m.installMu.Lock()
		defer m.installMu.Unlock()
		result, err = InstallDefaultSkills(ctx, m.cfg.GlobalSkillsDir, manifest, sources)
		telemetry.SetAttributes(ctx, attribute.Int("skills.installed", len(result.Installed)))
		return err
	}, attribute.String("manifest", m.cfg.DefaultSkillsManifest))
	return result, err
}
