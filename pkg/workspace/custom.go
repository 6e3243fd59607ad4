package workspace

import (
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// entryNames lists the names directly under dir. A missing directory is an
// empty set; any other failure is returned.
func entryNames(dir string) (map[string]bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]bool{}, nil
		}
		return nil, ioError("readdir", dir, err)
	}
	names := make(map[string]bool, len(entries))
	for _, e := range entries {
		names[e.Name()] = true
	}
	return names, nil
}

func (m *Manager) ignored(name string) bool {
	for _, pattern := range m.cfg.IgnorePatterns {
		if ok, err := doublestar.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

// difference returns the sorted names in a that are neither in b nor ignored
func (m *Manager) difference(a, b map[string]bool) []string {
	var out []string
	for name := range a {
		if !b[name] && !m.ignored(name) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// customSkills returns the entries of a session's skills directory that do
// not exist in the global skills root
func (m *Manager) customSkills(skillsDir string) ([]string, error) {
	local, err := entryNames(skillsDir)
	if err != nil {
		return nil, err
	}
	global, err := entryNames(m.cfg.GlobalSkillsDir)
	if err != nil {
		return nil, err
	}
	return m.difference(local, global), nil
}
