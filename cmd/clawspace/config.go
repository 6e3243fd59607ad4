package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/openclaw/clawspace/pkg/db"
	"github.com/openclaw/clawspace/pkg/logger"
	"github.com/openclaw/clawspace/pkg/types/workspaces"
	"github.com/openclaw/clawspace/pkg/workspace"
	"github.com/openclaw/clawspace/pkg/workspace/sqlite"
)

// setDefaults registers the configuration defaults used when neither the
// config file, the environment nor a flag sets a key
func setDefaults() {
	viper.SetDefault("premium_tiers", workspace.DefaultPremiumTiers)
	viper.SetDefault("average_skills_size_mb", workspace.DefaultAverageSkillsSize/(1024*1024))
	viper.SetDefault("skills.ignore", []string{})
	viper.SetDefault("sweep.max_age", "168h")
	viper.SetDefault("sweep.interval", "1h")
	viper.SetDefault("sweep.concurrency", 4)
	viper.SetDefault("sweep.retry_attempts", 3)
	viper.SetDefault("store.enabled", true)
	viper.SetDefault("file_locks", true)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "fmt")
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("base-dir", "", "Directory holding the session workspaces (default ~/.openclaw/workspaces)")
	flags.String("global-skills-dir", "", "Global skills root shared by symlinked sessions (default ~/.openclaw/shared_skills)")
	flags.StringSlice("premium-tiers", workspace.DefaultPremiumTiers, "Profile tiers that get an independent copy of the skills")
	flags.Int64("average-skills-size-mb", workspace.DefaultAverageSkillsSize/(1024*1024), "Assumed size of one skills copy in MiB, used by report")
	flags.StringSlice("skills-ignore", nil, "Glob patterns ignored when looking for custom skills, e.g. .DS_Store")
	flags.Int("sweep-concurrency", 4, "Workspaces deleted in parallel during a sweep")
	flags.Uint("sweep-retry-attempts", 3, "Attempts to delete one workspace during a sweep")
	flags.Bool("store", true, "Persist workspace records in SQLite")
	flags.String("store-path", "", "SQLite database path (default ~/.clawspace/storage.db)")
	flags.Bool("file-locks", true, "Serialise same-session operations across processes with lock files")
	flags.String("log-level", "info", "Log level (panic, fatal, error, warn, info, debug, trace)")
	flags.String("log-format", "fmt", "Log format (fmt, json)")
	flags.BoolP("quiet", "q", false, "Only print what scripts need, e.g. the workspace path")

	viper.BindPFlag("base_dir", flags.Lookup("base-dir"))
	viper.BindPFlag("global_skills_dir", flags.Lookup("global-skills-dir"))
	viper.BindPFlag("premium_tiers", flags.Lookup("premium-tiers"))
	viper.BindPFlag("average_skills_size_mb", flags.Lookup("average-skills-size-mb"))
	viper.BindPFlag("skills.ignore", flags.Lookup("skills-ignore"))
	viper.BindPFlag("sweep.concurrency", flags.Lookup("sweep-concurrency"))
	viper.BindPFlag("sweep.retry_attempts", flags.Lookup("sweep-retry-attempts"))
	viper.BindPFlag("store.enabled", flags.Lookup("store"))
	viper.BindPFlag("store.path", flags.Lookup("store-path"))
	viper.BindPFlag("file_locks", flags.Lookup("file-locks"))
	viper.BindPFlag("log_level", flags.Lookup("log-level"))
	viper.BindPFlag("log_format", flags.Lookup("log-format"))
	viper.BindPFlag("quiet", flags.Lookup("quiet"))
}

// expandHome replaces a leading ~ with the user's home directory
func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get user home directory")
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// loadConfig builds the manager configuration from the defaults and viper
func loadConfig() (workspace.Config, error) {
	cfg, err := workspace.DefaultConfig()
	if err != nil {
		return cfg, err
	}

	if dir := viper.GetString("base_dir"); dir != "" {
		if cfg.BaseDir, err = expandHome(dir); err != nil {
			return cfg, err
		}
	}
	if dir := viper.GetString("global_skills_dir"); dir != "" {
		if cfg.GlobalSkillsDir, err = expandHome(dir); err != nil {
			return cfg, err
		}
	}
	if tiers := viper.GetStringSlice("premium_tiers"); len(tiers) > 0 {
		cfg.PremiumTiers = tiers
	}
	if size := viper.GetInt64("average_skills_size_mb"); size > 0 {
		cfg.AverageSkillsSize = size * 1024 * 1024
	}
	cfg.IgnorePatterns = viper.GetStringSlice("skills.ignore")
	if n := viper.GetInt("sweep.concurrency"); n > 0 {
		cfg.SweepConcurrency = n
	}
	if n := viper.GetUint("sweep.retry_attempts"); n > 0 {
		cfg.SweepRetryAttempts = n
	}
	if manifest := viper.GetString("skills.default_manifest"); manifest != "" {
		if cfg.DefaultSkillsManifest, err = expandHome(manifest); err != nil {
			return cfg, err
		}
	}
	if cfg.DefaultSkillsSources, err = expandSources(viper.GetStringMapString("skills.sources")); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// expandSources expands ~ in the directories of a skill source map
func expandSources(sources map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(sources))
	for name, dir := range sources {
		expanded, err := expandHome(dir)
		if err != nil {
			return nil, err
		}
		out[name] = expanded
	}
	return out, nil
}

// storePath returns the SQLite database holding workspace records
func storePath() (string, error) {
	if path := viper.GetString("store.path"); path != "" {
		return expandHome(path)
	}
	return db.DefaultDBPath()
}

// openManager creates a manager from the configuration and loads the
// persisted records. The returned function releases the store.
func openManager(ctx context.Context, opts ...workspace.Option) (*workspace.Manager, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	return openManagerWithConfig(ctx, cfg, opts...)
}

func openManagerWithConfig(ctx context.Context, cfg workspace.Config, opts ...workspace.Option) (*workspace.Manager, func(), error) {
	closeStore := func() {}
	if viper.GetBool("file_locks") {
		opts = append(opts, workspace.WithFileLocks())
	}
	if viper.GetBool("store.enabled") {
		path, err := storePath()
		if err != nil {
			return nil, nil, err
		}
		store, err := sqlite.NewStore(ctx, path)
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to open workspace store")
		}
		opts = append(opts, workspace.WithStore(store))
		closeStore = func() {
			if err := store.Close(); err != nil {
				logger.G(ctx).WithError(err).Warn("failed to close workspace store")
			}
		}
	}

	manager, err := workspace.NewManager(cfg, opts...)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	loaded, err := manager.Load(ctx)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	logger.G(ctx).WithField("sessions", loaded).Debug("workspace records loaded")
	return manager, closeStore, nil
}

// parseProfile builds a profile from a YAML file and key=value pairs. Pairs
// override keys read from the file.
func parseProfile(file string, pairs []string) (workspaces.Profile, error) {
	attrs := make(map[string]any)
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return workspaces.Profile{}, errors.Wrapf(err, "failed to read profile file %s", file)
		}
		if err := yaml.Unmarshal(data, &attrs); err != nil {
			return workspaces.Profile{}, errors.Wrapf(err, "failed to parse profile file %s", file)
		}
	}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return workspaces.Profile{}, errors.Errorf("invalid profile attribute %q, expected key=value", pair)
		}
		attrs[key] = strings.TrimSpace(value)
	}
	return workspaces.ProfileFromMap(attrs)
}

// addProfileFlags registers the flags read by profileFromFlags
func addProfileFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayP("profile", "p", nil, "Profile attribute as key=value, e.g. tier=premium (repeatable)")
	cmd.Flags().String("profile-file", "", "YAML file holding profile attributes")
}

func profileFromFlags(cmd *cobra.Command) (workspaces.Profile, error) {
	pairs, _ := cmd.Flags().GetStringArray("profile")
	file, _ := cmd.Flags().GetString("profile-file")
	return parseProfile(file, pairs)
}
