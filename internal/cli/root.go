// internal/cli/root.go
package cli

import (
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"mcp-diet-check/internal/config"
	"mcp-diet-check/internal/log"
	"mcp-diet-check/internal/version"
)

const (
	cmdName = "diet-check"
	cmdDesc = `Dietary safety checks for Open Food Facts products, served over MCP.`

	cmdExamples = `  # Serve over stdio for a local MCP client:
  diet-check

  # Serve the HTTP transport on port 8011:
  diet-check --transport http --port 8011

  # Keep the profile in SQLite with change history:
  diet-check --store sqlite --db-path ./diet-check.db

  # Print the effective configuration and exit:
  diet-check --show-config`
)

type RootArgs struct {
	LogLevel  string
	LogFormat string
	LogFile   string
}

func NewRootArgs() *RootArgs {
	return &RootArgs{}
}

func (ra *RootArgs) AddFlags(cmd *cobra.Command) {
	def := config.Default()

	cmd.PersistentFlags().
		StringVar(&ra.LogLevel, "log-level", def.Log.Level, fmt.Sprintf("Log level, one of: %s", log.AllLevels))
	cmd.PersistentFlags().
		StringVar(&ra.LogFormat, "log-format", def.Log.Format, fmt.Sprintf("Log format, one of: %s", log.AllFormats))
	cmd.PersistentFlags().
		StringVar(&ra.LogFile, "log-file", "", "Write logs to this file instead of stderr")

	must(cmd.RegisterFlagCompletionFunc("log-format",
		cobra.FixedCompletions(log.AllFormats, cobra.ShellCompDirectiveNoFileComp),
	))
	must(cmd.RegisterFlagCompletionFunc("log-level",
		cobra.FixedCompletions(log.AllLevels, cobra.ShellCompDirectiveNoFileComp),
	))
}

func NewRootCmd() *cobra.Command {
	// A missing .env file is normal; variables already set win.
	_ = godotenv.Load()

	args := NewRootArgs()
	serveArgs := NewServeArgs(args)

	cmd := &cobra.Command{
		Use:               cmdName,
		Short:             cmdDesc,
		Example:           cmdExamples,
		Args:              cobra.NoArgs,
		SilenceUsage:      true,
		PersistentPreRunE: setupLogging(args),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd, serveArgs)
		},
	}

	args.AddFlags(cmd)
	serveArgs.AddFlags(cmd)
	cmd.AddCommand(newVersionCmd())

	bindEnvVars(cmd)

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s (built %s, %s)\n",
				cmdName, version.GetVersion(), buildDate(), version.GoVersion)
			return err
		},
	}
}

func buildDate() string {
	if version.BuildDate == "" {
		return "unknown"
	}
	return version.BuildDate
}

// setupLogging installs a stderr logger from the log flags so that
// configuration problems are reported. serve replaces it once the
// configuration is final.
func setupLogging(rc *RootArgs) func(cmd *cobra.Command, _ []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		logHandler, err := log.CreateHandlerWithStrings(cmd.ErrOrStderr(), rc.LogLevel, rc.LogFormat)
		if err != nil {
			return fmt.Errorf("create log handler: %w", err)
		}

		slog.SetDefault(slog.New(logHandler))

		return nil
	}
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
