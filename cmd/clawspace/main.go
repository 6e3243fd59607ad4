package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openclaw/clawspace/pkg/logger"
	"github.com/openclaw/clawspace/pkg/presenter"
)

func init() {
	// Environment variables, e.g. CLAWSPACE_BASE_DIR or CLAWSPACE_SWEEP_MAX_AGE
	viper.SetEnvPrefix("CLAWSPACE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Config file support
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.clawspace")
	viper.AddConfigPath(".")

	// Load config file if it exists (ignore errors if it doesn't)
	_ = viper.ReadInConfig()

	setDefaults()
}

// shutdownTracing is set once tracing has been initialised for the running command
var shutdownTracing func(context.Context) error

var rootCmd = &cobra.Command{
	Use:   "clawspace",
	Short: "Manage per-session agent workspaces and their shared skills",
	Long: `Clawspace provisions an isolated workspace directory for every agent session.
Each workspace either links to the global skills root or holds its own copy of it,
and sessions can be converted between the two while others keep running.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := logger.Configure(viper.GetString("log_level"), viper.GetString("log_format")); err != nil {
			return err
		}
		presenter.SetQuiet(viper.GetBool("quiet"))
		shutdown, err := initTracing(cmd.Context())
		if err != nil {
			return err
		}
		shutdownTracing = shutdown
		return nil
	},
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rootCmd.AddCommand(workspaceCmd)
	rootCmd.AddCommand(skillsCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(driftCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(versionCmd)
	traceCommands(rootCmd)

	err := rootCmd.ExecuteContext(ctx)
	if shutdownTracing != nil {
		if shutdownErr := shutdownTracing(context.Background()); shutdownErr != nil {
			logger.G(ctx).WithError(shutdownErr).Warn("failed to shut down tracing")
		}
	}
	if err != nil {
		presenter.Error(err, "")
		os.Exit(1)
	}
}
