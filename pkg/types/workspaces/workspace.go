// Package workspaces defines the shared data types for session workspaces:
// skills strategies, user profiles, workspace records and the reports derived
// from them.
package workspaces

import (
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// Strategy describes how a workspace's shared_skills directory relates to the
// global skills root.
type Strategy int

const (
	// StrategyNone leaves shared_skills as an empty directory
	StrategyNone Strategy = iota
	// StrategySymlink points shared_skills at the global skills root
	StrategySymlink
	// StrategyCopy gives the session an independent deep copy of the global skills root
	StrategyCopy
)

// String returns the lower-case name used in config, logs and the database
func (s Strategy) String() string {
	switch s {
	case StrategyNone:
		return "none"
	case StrategySymlink:
		return "symlink"
	case StrategyCopy:
		return "copy"
	default:
		return "unknown"
	}
}

// ParseStrategy converts a strategy name back into a Strategy
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return StrategyNone, nil
	case "symlink":
		return StrategySymlink, nil
	case "copy":
		return StrategyCopy, nil
	default:
		return StrategyNone, errors.Errorf("unknown skills strategy %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler
func (s Strategy) MarshalText() ([]byte, error) {
	if s < StrategyNone || s > StrategyCopy {
		return nil, errors.Errorf("invalid skills strategy %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *Strategy) UnmarshalText(text []byte) error {
	parsed, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Profile is the caller-supplied attribute bag used to pick a skills strategy.
// The core never mutates it.
type Profile struct {
	Tier              string            `json:"tier,omitempty"`
	CustomSkills      bool              `json:"customSkills,omitempty"`
	RequiresIsolation bool              `json:"requiresIsolation,omitempty"`
	Attributes        map[string]string `json:"attributes,omitempty"`
}

// TierOrDefault returns the tier, or "free" when none was supplied
func (p Profile) TierOrDefault() string {
	if p.Tier == "" {
		return "free"
	}
	return p.Tier
}

// Clone returns a deep copy of the profile
func (p Profile) Clone() Profile {
	clone := p
	if p.Attributes != nil {
		clone.Attributes = make(map[string]string, len(p.Attributes))
		for k, v := range p.Attributes {
			clone.Attributes[k] = v
		}
	}
	return clone
}

type profileFields struct {
	Tier              string         `mapstructure:"tier"`
	CustomSkills      bool           `mapstructure:"customskills"`
	RequiresIsolation bool           `mapstructure:"requiresisolation"`
	Extra             map[string]any `mapstructure:",remain"`
}

// normalizeProfileKey folds "custom_skills", "custom-skills" and "customSkills" to one key
func normalizeProfileKey(k string) string {
	k = strings.ToLower(k)
	k = strings.ReplaceAll(k, "_", "")
	return strings.ReplaceAll(k, "-", "")
}

// ProfileFromMap decodes a loosely typed attribute bag into a Profile.
// String values such as "true" are converted, and unknown keys are kept in
// Attributes under their original names.
func ProfileFromMap(m map[string]any) (Profile, error) {
	var p Profile
	if len(m) == 0 {
		return p, nil
	}

	known := map[string]bool{"tier": true, "customskills": true, "requiresisolation": true}
	normalized := make(map[string]any, len(m))
	for k, v := range m {
		if nk := normalizeProfileKey(k); known[nk] {
			normalized[nk] = v
		} else {
			normalized[k] = v
		}
	}

	var fields profileFields
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &fields,
	})
	if err != nil {
		return p, errors.Wrap(err, "failed to create profile decoder")
	}
	if err := decoder.Decode(normalized); err != nil {
		return p, errors.Wrap(err, "failed to decode profile")
	}

	p.Tier = fields.Tier
	p.CustomSkills = fields.CustomSkills
	p.RequiresIsolation = fields.RequiresIsolation
	for k, v := range fields.Extra {
		var s string
		if err := mapstructure.WeakDecode(v, &s); err != nil {
			return p, errors.Wrapf(err, "failed to decode profile attribute %q", k)
		}
		if p.Attributes == nil {
			p.Attributes = make(map[string]string)
		}
		p.Attributes[k] = s
	}
	return p, nil
}

// Record is the registry entry for one live session
type Record struct {
	SessionID          string    `json:"sessionId"`
	Path               string    `json:"workspacePath"`
	Strategy           Strategy  `json:"skillsStrategy"`
	Profile            Profile   `json:"userProfile"`
	CustomSkillsMarked bool      `json:"customSkillsMarked"`
	CreatedAt          time.Time `json:"createdAt"`
	LastUsedAt         time.Time `json:"lastUsedAt"`
}

// Clone returns a copy of the record that shares no mutable state with r
func (r Record) Clone() Record {
	clone := r
	clone.Profile = r.Profile.Clone()
	return clone
}

// DiskReport is an estimate of the disk used by session skills. It is derived
// from registry state and an average skills size, never from scanning the disk.
type DiskReport struct {
	TotalSessions      int     `json:"totalSessions"`
	SymlinkedCount     int     `json:"symlinked"`
	CopiedCount        int     `json:"copied"`
	EmptyCount         int     `json:"empty"`
	AverageSkillsSize  int64   `json:"averageSkillsSize"`
	EstimatedDiskUsed  int64   `json:"estimatedDiskUsed"`
	EstimatedDiskSaved int64   `json:"estimatedDiskSaved"`
	EfficiencyPercent  float64 `json:"efficiencyPercent"`
}

// FilesystemUsage is the measured usage of the volume holding the workspaces
type FilesystemUsage struct {
	Path        string  `json:"path"`
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	Free        uint64  `json:"free"`
	UsedPercent float64 `json:"usedPercent"`
}

// BreakResult describes the outcome of converting a symlinked skills directory into a copy
type BreakResult struct {
	AlreadyIndependent bool   `json:"alreadyIndependent"`
	Path               string `json:"workspacePath"`
	SkillsDir          string `json:"skillsDir"`
}

// RestoreResult describes the outcome of turning a copied skills directory back into a symlink
type RestoreResult struct {
	AlreadySymlink bool     `json:"alreadySymlink"`
	Path           string   `json:"workspacePath"`
	Discarded      []string `json:"discarded,omitempty"`
}

// AddSkillResult describes a custom skill written into a session
type AddSkillResult struct {
	SkillPath string `json:"skillPath"`
}

// ResetResult describes a workspace reset
type ResetResult struct {
	Path      string `json:"workspacePath"`
	BackupDir string `json:"backupDir,omitempty"`

	InstalledSkills []string `json:"installedSkills,omitempty"`
}

// DriftEntry lists global skills that a copied session does not have
type DriftEntry struct {
	SessionID string   `json:"sessionId"`
	Missing   []string `json:"missing"`
}
