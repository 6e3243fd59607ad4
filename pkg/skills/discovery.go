package skills

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"
	"gopkg.in/yaml.v3"
)

// Inventory lists the skills under dir sorted by directory name. Symlinked
// skill directories are followed. A missing dir yields no skills.
// Directories without a readable SKILL.md are still listed.
func Inventory(dir string) ([]Skill, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to read skills directory %s", dir)
	}

	var skills []Skill
	for _, entry := range entries {
		entryPath := filepath.Join(dir, entry.Name())

		info, err := os.Stat(entryPath)
		if err != nil || !info.IsDir() {
			continue
		}

		skill := Skill{DirName: entry.Name(), Name: entry.Name(), Directory: entryPath}
		if loaded, err := loadSkill(filepath.Join(entryPath, FileName)); err == nil {
			skill.HasManifest = true
			skill.Content = loaded.Content
			skill.Description = loaded.Description
			if loaded.Name != "" {
				skill.Name = loaded.Name
			}
		}
		skills = append(skills, skill)
	}

	sort.Slice(skills, func(i, j int) bool { return skills[i].DirName < skills[j].DirName })
	return skills, nil
}

// Compare lists the skills of sessionDir, marking each as global when the
// global root has a skill directory of the same name and local otherwise
func Compare(sessionDir, globalDir string) ([]Skill, error) {
	session, err := Inventory(sessionDir)
	if err != nil {
		return nil, err
	}
	global, err := Inventory(globalDir)
	if err != nil {
		return nil, err
	}

	inGlobal := make(map[string]bool, len(global))
	for _, s := range global {
		inGlobal[s.DirName] = true
	}
	for i := range session {
		session[i].Origin = OriginLocal
		if inGlobal[session[i].DirName] {
			session[i].Origin = OriginGlobal
		}
	}
	return session, nil
}

// loadSkill loads a single skill from its SKILL.md file. Frontmatter is optional.
func loadSkill(path string) (*Skill, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read skill file")
	}

	md := goldmark.New(
		goldmark.WithExtensions(meta.Meta),
	)

	var buf bytes.Buffer
	pctx := parser.NewContext()

	if err := md.Convert(content, &buf, parser.WithContext(pctx)); err != nil {
		return nil, errors.Wrap(err, "failed to parse markdown")
	}

	skill := &Skill{Content: extractBodyContent(string(content))}
	if metaData := meta.Get(pctx); metaData != nil {
		skill.Name, _ = metaData["name"].(string)
		skill.Description, _ = metaData["description"].(string)
	}
	return skill, nil
}

// extractBodyContent removes YAML frontmatter and returns the body
func extractBodyContent(content string) string {
	if !strings.HasPrefix(content, "---") {
		return content
	}

	lines := strings.Split(content, "\n")
	frontmatterEnd := -1

	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			frontmatterEnd = i
			break
		}
	}

	if frontmatterEnd == -1 {
		return content
	}

	return strings.TrimLeft(strings.Join(lines[frontmatterEnd+1:], "\n"), "\n")
}

// Render builds SKILL.md content with frontmatter for name and description
// followed by body
func Render(name, description, body string) (string, error) {
	front, err := yaml.Marshal(Metadata{Name: name, Description: description})
	if err != nil {
		return "", errors.Wrap(err, "failed to encode skill frontmatter")
	}

	var sb strings.Builder
	sb.WriteString("---\n")
	sb.Write(front)
	sb.WriteString("---\n\n")
	sb.WriteString(strings.TrimLeft(body, "\n"))
	if !strings.HasSuffix(body, "\n") {
		sb.WriteString("\n")
	}
	return sb.String(), nil
}
