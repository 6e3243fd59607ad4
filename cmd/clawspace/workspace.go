package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/openclaw/clawspace/pkg/presenter"
	"github.com/openclaw/clawspace/pkg/types/workspaces"
	"github.com/openclaw/clawspace/pkg/workspace"
)

var workspaceCmd = &cobra.Command{
	Use:     "workspace",
	Aliases: []string{"ws"},
	Short:   "Manage session workspaces",
	Long:    `Create, inspect, reset and remove the workspaces of agent sessions.`,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var workspaceGetCmd = &cobra.Command{
	Use:   "get [session-id]",
	Short: "Get or create the workspace of a session",
	Long: `Return the workspace of a session, provisioning it on first use. The skills strategy
of a new workspace is decided from the session profile:

  - requiresIsolation=true or a marked session: independent copy
  - customSkills=true: independent copy
  - a premium tier (see --premium-tiers): independent copy
  - anything else: symlink to the global skills root

A random session id is generated when none is given.

Examples:
  clawspace workspace get chat-42
  clawspace workspace get chat-42 -p tier=premium
  clawspace workspace get chat-42 --profile-file profile.yaml --mark`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		sessionID := uuid.NewString()
		if len(args) == 1 {
			sessionID = args[0]
		}
		profile, err := profileFromFlags(cmd)
		if err != nil {
			return err
		}
		mark, _ := cmd.Flags().GetBool("mark")

		manager, closeStore, err := openManager(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		if mark {
			if err := manager.MarkCustom(sessionID); err != nil {
				return err
			}
		}
		rec, err := manager.GetOrCreate(ctx, sessionID, profile)
		if err != nil {
			return err
		}
		return printRecord(cmd, rec)
	},
}

var workspaceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List session workspaces",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		manager, closeStore, err := openManager(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		records := manager.ListSessions()
		if jsonOutput(cmd) {
			return printJSON(records)
		}
		if len(records) == 0 {
			presenter.Info("No session workspaces")
			return nil
		}

		rows := make([][]string, 0, len(records))
		for _, rec := range records {
			rows = append(rows, []string{
				rec.SessionID,
				rec.Strategy.String(),
				rec.Profile.TierOrDefault(),
				strconv.FormatBool(rec.CustomSkillsMarked),
				humanize.Time(rec.CreatedAt),
				humanize.Time(rec.LastUsedAt),
			})
		}
		presenter.Table([]string{"SESSION", "STRATEGY", "TIER", "MARKED", "CREATED", "LAST USED"}, rows)
		return nil
	},
}

var workspaceShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show a session workspace without refreshing its last use",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		manager, closeStore, err := openManager(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		rec, err := manager.Get(args[0])
		if err != nil {
			return err
		}
		return printRecord(cmd, rec)
	},
}

var workspaceRemoveCmd = &cobra.Command{
	Use:     "remove <session-id>",
	Aliases: []string{"rm"},
	Short:   "Delete a session workspace and forget the session",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		sessionID := args[0]

		if !confirmed(cmd, fmt.Sprintf("Delete the workspace of session %s and everything in it?", sessionID)) {
			presenter.Info("Aborted")
			return nil
		}

		manager, closeStore, err := openManager(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		if err := manager.Remove(ctx, sessionID); err != nil {
			return err
		}
		presenter.Success(fmt.Sprintf("Removed workspace of session %s", sessionID))
		return nil
	},
}

var workspaceResetCmd = &cobra.Command{
	Use:   "reset <session-id>",
	Short: "Recreate a session workspace from scratch",
	Long: `Back up shared_memory to .backups/, then clear and re-provision the workspace.
The session keeps its skills strategy.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		sessionID := args[0]

		if !confirmed(cmd, fmt.Sprintf("Reset the workspace of session %s?", sessionID)) {
			presenter.Info("Aborted")
			return nil
		}

		manager, closeStore, err := openManager(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		res, err := manager.Reset(ctx, sessionID)
		if err != nil {
			return err
		}
		if res.BackupDir != "" {
			presenter.Info(fmt.Sprintf("shared_memory backed up to %s", res.BackupDir))
		}
		presenter.Success(fmt.Sprintf("Reset workspace %s", res.Path))
		return nil
	},
}

var workspaceMarkCmd = &cobra.Command{
	Use:   "mark <session-id>",
	Short: "Mark a session as needing its own copy of the skills",
	Long: `Mark a session as having custom skills and create its workspace with an
independent copy of the global skills. An existing session keeps its current
strategy; use "clawspace skills break" to convert it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		sessionID := args[0]

		profile, err := profileFromFlags(cmd)
		if err != nil {
			return err
		}

		manager, closeStore, err := openManager(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		if rec, err := manager.Get(sessionID); err == nil {
			presenter.Warning(fmt.Sprintf("Session %s already uses the %s strategy, run \"clawspace skills break %s\" to convert it", sessionID, rec.Strategy, sessionID))
			return nil
		} else if !errors.Is(err, workspace.ErrSessionNotFound) {
			return err
		}

		if err := manager.MarkCustom(sessionID); err != nil {
			return err
		}
		rec, err := manager.GetOrCreate(ctx, sessionID, profile)
		if err != nil {
			return err
		}
		return printRecord(cmd, rec)
	},
}

func init() {
	addProfileFlags(workspaceGetCmd)
	workspaceGetCmd.Flags().Bool("mark", false, "Mark the session as having custom skills before creating it")
	addJSONFlag(workspaceGetCmd)

	addJSONFlag(workspaceListCmd)
	addJSONFlag(workspaceShowCmd)

	addYesFlag(workspaceRemoveCmd)
	addYesFlag(workspaceResetCmd)

	addProfileFlags(workspaceMarkCmd)
	addJSONFlag(workspaceMarkCmd)

	workspaceCmd.AddCommand(workspaceGetCmd)
	workspaceCmd.AddCommand(workspaceListCmd)
	workspaceCmd.AddCommand(workspaceShowCmd)
	workspaceCmd.AddCommand(workspaceRemoveCmd)
	workspaceCmd.AddCommand(workspaceResetCmd)
	workspaceCmd.AddCommand(workspaceMarkCmd)
}

func addJSONFlag(cmd *cobra.Command) {
	cmd.Flags().Bool("json", false, "Output in JSON format")
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func addYesFlag(cmd *cobra.Command) {
	cmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
}

// confirmed asks question unless --yes was given
func confirmed(cmd *cobra.Command, question string) bool {
	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		return true
	}
	return presenter.Confirm(question)
}

func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return errors.Wrap(encoder.Encode(v), "failed to encode JSON output")
}

// recordFields renders a record as label/value pairs
func recordFields(rec workspaces.Record) [][2]string {
	fields := [][2]string{
		{"Session", rec.SessionID},
		{"Path", rec.Path},
		{"Strategy", rec.Strategy.String()},
		{"Tier", rec.Profile.TierOrDefault()},
		{"Custom skills", strconv.FormatBool(rec.Profile.CustomSkills)},
		{"Isolation", strconv.FormatBool(rec.Profile.RequiresIsolation)},
		{"Marked", strconv.FormatBool(rec.CustomSkillsMarked)},
		{"Created", rec.CreatedAt.Local().Format("2006-01-02 15:04:05")},
		{"Last used", rec.LastUsedAt.Local().Format("2006-01-02 15:04:05")},
	}

	keys := make([]string, 0, len(rec.Profile.Attributes))
	for k := range rec.Profile.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, [2]string{k, rec.Profile.Attributes[k]})
	}
	return fields
}

// printRecord prints rec as JSON, as fields, or only its path in quiet mode
func printRecord(cmd *cobra.Command, rec workspaces.Record) error {
	if jsonOutput(cmd) {
		return printJSON(rec)
	}
	if presenter.IsQuiet() {
		fmt.Println(rec.Path)
		return nil
	}
	presenter.Fields(recordFields(rec))
	return nil
}
