package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/openclaw/clawspace/pkg/presenter"
	"github.com/openclaw/clawspace/pkg/skills"
	"github.com/openclaw/clawspace/pkg/workspace"
)

// SkillAddConfig holds configuration for the skills add command
type SkillAddConfig struct {
	File        string
	Content     string
	Description string
}

// NewSkillAddConfig creates a new SkillAddConfig with default values
func NewSkillAddConfig() *SkillAddConfig {
	return &SkillAddConfig{}
}

// SkillInstallConfig holds configuration for the skills install command
type SkillInstallConfig struct {
	Manifest string
	Sources  map[string]string
}

// NewSkillInstallConfig creates a new SkillInstallConfig with default values
func NewSkillInstallConfig() *SkillInstallConfig {
	return &SkillInstallConfig{
		Sources: map[string]string{},
	}
}

var skillsCmd = &cobra.Command{
	Use:   "skills",
	Short: "Manage the skills of session workspaces",
	Long:  `Convert session skills between the shared symlink and an independent copy, and add custom skills.`,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var skillsBreakCmd = &cobra.Command{
	Use:   "break <session-id>",
	Short: "Replace the skills symlink of a session with an independent copy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		manager, closeStore, err := openManager(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		res, err := manager.BreakSymlink(ctx, args[0])
		if err != nil {
			return err
		}
		if res.AlreadyIndependent {
			presenter.Info(fmt.Sprintf("Session %s already has independent skills", args[0]))
			return nil
		}
		presenter.Success(fmt.Sprintf("Copied global skills into %s", res.SkillsDir))
		return nil
	},
}

var skillsRestoreCmd = &cobra.Command{
	Use:   "restore <session-id>",
	Short: "Link the skills of a session back to the global skills root",
	Long: `Replace the independent skills copy of a session with a symlink to the global
skills root. Skills that exist only in the session would be lost, so the command
refuses to run when there are any unless --force is given or the prompt is confirmed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		sessionID := args[0]
		force, _ := cmd.Flags().GetBool("force")

		manager, closeStore, err := openManager(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		res, err := manager.RestoreSymlink(ctx, sessionID, force)
		var present *workspace.CustomSkillsPresentError
		if errors.As(err, &present) {
			question := fmt.Sprintf("Session %s has custom skills (%s) that will be deleted. Continue?", sessionID, strings.Join(present.Entries, ", "))
			if !presenter.Confirm(question) {
				return err
			}
			res, err = manager.RestoreSymlink(ctx, sessionID, true)
		}
		if err != nil {
			return err
		}

		if res.AlreadySymlink {
			presenter.Info(fmt.Sprintf("Session %s already links to the global skills", sessionID))
			return nil
		}
		if len(res.Discarded) > 0 {
			presenter.Warning(fmt.Sprintf("Discarded custom skills: %s", strings.Join(res.Discarded, ", ")))
		}
		presenter.Success(fmt.Sprintf("Session %s links to the global skills again", sessionID))
		return nil
	},
}

var skillsAddCmd = &cobra.Command{
	Use:   "add <session-id> <skill-name>",
	Short: "Add a custom skill to a session",
	Long: `Write a skill into the session's own skills directory, converting the session
to an independent copy first if it still links to the global skills root.

Examples:
  clawspace skills add chat-42 deploy --file ./deploy/SKILL.md
  clawspace skills add chat-42 notes --description "Team notes" --content "# Notes"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		config := getSkillAddConfigFromFlags(cmd)

		content, err := skillContent(args[1], config)
		if err != nil {
			return err
		}

		manager, closeStore, err := openManager(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		res, err := manager.AddCustomSkill(ctx, args[0], args[1], content)
		if err != nil {
			return err
		}
		presenter.Success(fmt.Sprintf("Added skill %s at %s", args[1], res.SkillPath))
		return nil
	},
}

var skillsListCmd = &cobra.Command{
	Use:   "list [session-id]",
	Short: "List the skills of a session, or the global skills",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		manager, closeStore, err := openManager(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		globalDir := manager.Config().GlobalSkillsDir
		var found []skills.Skill
		if len(args) == 0 {
			found, err = skills.Inventory(globalDir)
		} else {
			rec, getErr := manager.Get(args[0])
			if getErr != nil {
				return getErr
			}
			found, err = skills.Compare(filepath.Join(rec.Path, workspace.SharedSkillsDir), globalDir)
		}
		if err != nil {
			return err
		}

		if jsonOutput(cmd) {
			return printJSON(found)
		}
		if len(found) == 0 {
			presenter.Info("No skills found")
			return nil
		}
		rows := make([][]string, 0, len(found))
		for _, s := range found {
			origin := string(s.Origin)
			if origin == "" {
				origin = string(skills.OriginGlobal)
			}
			rows = append(rows, []string{s.DirName, s.Name, origin, s.Description})
		}
		presenter.Table([]string{"DIRECTORY", "NAME", "ORIGIN", "DESCRIPTION"}, rows)
		return nil
	},
}

var skillsInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the default skills into the global skills root",
	Long: `Copy the skills listed in the default skills manifest into the global skills
root. Skills that already exist there are left untouched. Every manifest entry
names a source, which --source or the skills.sources setting maps to a directory.
Relative source directories are resolved against the manifest's directory.

Examples:
  clawspace skills install --manifest ./templates/default-skills.json --source custom=skills
  clawspace skills install --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := applySkillInstallConfig(&cfg, getSkillInstallConfigFromFlags(cmd)); err != nil {
			return err
		}
		if cfg.DefaultSkillsManifest == "" {
			return errors.New("no default skills manifest configured, use --manifest or skills.default_manifest")
		}

		manager, closeStore, err := openManagerWithConfig(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		res, err := manager.InstallDefaultSkills(ctx)
		if jsonOutput(cmd) {
			if jsonErr := printJSON(res); jsonErr != nil {
				return jsonErr
			}
			return err
		}

		rows := installRows(res)
		if len(rows) > 0 {
			presenter.Table([]string{"SKILL", "STATUS"}, rows)
		}
		if err != nil {
			return err
		}
		if len(res.Unavailable) > 0 {
			presenter.Warning(fmt.Sprintf("%d skill(s) not found in their source", len(res.Unavailable)))
		}
		presenter.Success(fmt.Sprintf("Installed %d default skill(s) into %s", len(res.Installed), manager.Config().GlobalSkillsDir))
		return nil
	},
}

func init() {
	skillsRestoreCmd.Flags().BoolP("force", "f", false, "Delete skills that exist only in the session without asking")

	addDefaults := NewSkillAddConfig()
	skillsAddCmd.Flags().String("file", addDefaults.File, "Read the SKILL.md content from this file")
	skillsAddCmd.Flags().String("content", addDefaults.Content, "SKILL.md content")
	skillsAddCmd.Flags().String("description", addDefaults.Description, "Prepend frontmatter with the skill name and this description")

	addJSONFlag(skillsListCmd)

	installDefaults := NewSkillInstallConfig()
	skillsInstallCmd.Flags().String("manifest", installDefaults.Manifest, "Default skills manifest, JSON or YAML (default from skills.default_manifest)")
	skillsInstallCmd.Flags().StringToString("source", installDefaults.Sources, "Directory of a manifest source as name=dir (repeatable)")
	addJSONFlag(skillsInstallCmd)

	skillsCmd.AddCommand(skillsBreakCmd)
	skillsCmd.AddCommand(skillsRestoreCmd)
	skillsCmd.AddCommand(skillsAddCmd)
	skillsCmd.AddCommand(skillsListCmd)
	skillsCmd.AddCommand(skillsInstallCmd)
}

func getSkillInstallConfigFromFlags(cmd *cobra.Command) *SkillInstallConfig {
	config := NewSkillInstallConfig()
	if manifest, err := cmd.Flags().GetString("manifest"); err == nil {
		config.Manifest = manifest
	}
	if sources, err := cmd.Flags().GetStringToString("source"); err == nil {
		config.Sources = sources
	}
	return config
}

// applySkillInstallConfig overrides the configured manifest and adds or
// replaces skill sources given on the command line
func applySkillInstallConfig(cfg *workspace.Config, config *SkillInstallConfig) error {
	if config.Manifest != "" {
		manifest, err := expandHome(config.Manifest)
		if err != nil {
			return err
		}
		cfg.DefaultSkillsManifest = manifest
	}
	sources, err := expandSources(config.Sources)
	if err != nil {
		return err
	}
	if cfg.DefaultSkillsSources == nil {
		cfg.DefaultSkillsSources = make(map[string]string, len(sources))
	}
	for name, dir := range sources {
		cfg.DefaultSkillsSources[name] = dir
	}
	return nil
}

// installRows renders an install result as one row per manifest skill
func installRows(res workspace.InstallResult) [][]string {
	var rows [][]string
	for _, name := range res.Installed {
		rows = append(rows, []string{name, "installed"})
	}
	for _, name := range res.Existing {
		rows = append(rows, []string{name, "already present"})
	}
	for _, name := range res.Unavailable {
		rows = append(rows, []string{name, "not found"})
	}
	return rows
}

func getSkillAddConfigFromFlags(cmd *cobra.Command) *SkillAddConfig {
	config := NewSkillAddConfig()
	if file, err := cmd.Flags().GetString("file"); err == nil {
		config.File = file
	}
	if content, err := cmd.Flags().GetString("content"); err == nil {
		config.Content = content
	}
	if description, err := cmd.Flags().GetString("description"); err == nil {
		config.Description = description
	}
	return config
}

// skillContent returns the SKILL.md written for a custom skill. Without a
// description the content is used as given, and an empty skill gets a title.
func skillContent(name string, config *SkillAddConfig) (string, error) {
	if config.File != "" && config.Content != "" {
		return "", errors.New("--file and --content are mutually exclusive")
	}

	body := config.Content
	if config.File != "" {
		data, err := os.ReadFile(config.File)
		if err != nil {
			return "", errors.Wrapf(err, "failed to read skill file %s", config.File)
		}
		body = string(data)
	}
	if strings.TrimSpace(body) == "" {
		body = fmt.Sprintf("# %s\n", name)
	}
	if config.Description == "" {
		return body, nil
	}
	return skills.Render(name, config.Description, body)
}
