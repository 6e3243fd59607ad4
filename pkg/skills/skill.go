// Package skills reads the skills held in a skills directory, either the
// global skills root or a session's shared_skills. Skills are directories
// containing a SKILL.md file, optionally with YAML frontmatter naming and
// describing the skill.
package skills

// FileName is the descriptor file of a skill
const FileName = "SKILL.md"

// Origin tells where a session's skill comes from
type Origin string

const (
	// OriginGlobal marks a skill that also exists in the global skills root
	OriginGlobal Origin = "global"
	// OriginLocal marks a skill that exists only in the session
	OriginLocal Origin = "local"
)

// Skill is one entry of a skills directory
type Skill struct {
	DirName     string // directory name under the skills directory
	Name        string // name from frontmatter, or DirName when absent
	Description string // description from frontmatter, may be empty
	Directory   string // full path to the skill directory
	Content     string // SKILL.md body without the frontmatter
	HasManifest bool   // SKILL.md exists and is readable
	Origin      Origin // set by Compare
}

// Metadata represents the YAML frontmatter in SKILL.md files
type Metadata struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
}
