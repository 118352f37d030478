// internal/cli/serve.go
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"mcp-diet-check/internal/config"
	"mcp-diet-check/internal/log"
	"mcp-diet-check/internal/pipeline"
	"mcp-diet-check/internal/server"
	"mcp-diet-check/internal/storage"
)

const shutdownTimeout = 10 * time.Second

type ServeArgs struct {
	*RootArgs

	ConfigPath string
	ShowConfig bool

	Transport string
	Host      string
	Port      int

	Store       string
	ProfilePath string
	DBPath      string
	User        string

	BaseURL           string
	Timeout           time.Duration
	RequestsPerMinute int

	MaxResults             int
	SafeOnlyWithoutProfile string
}

func NewServeArgs(rootArgs *RootArgs) *ServeArgs {
	return &ServeArgs{
		RootArgs: rootArgs,
	}
}

func (sa *ServeArgs) AddFlags(cmd *cobra.Command) {
	def := config.Default()

	cmd.Flags().StringVar(&sa.ConfigPath, "config", "", fmt.Sprintf("Path to the configuration file (default %s)", config.GetPath()))
	cmd.Flags().BoolVar(&sa.ShowConfig, "show-config", false, "Print the effective configuration and exit")

	cmd.Flags().StringVar(&sa.Transport, "transport", def.Transport, "Transport, one of: [stdio http]")
	cmd.Flags().StringVar(&sa.Host, "host", def.Host, "Listen host for the http transport")
	cmd.Flags().IntVar(&sa.Port, "port", def.Port, "Listen port for the http transport")

	cmd.Flags().StringVar(&sa.Store, "store", def.Store.Kind, "Profile store, one of: [json sqlite]")
	cmd.Flags().StringVar(&sa.ProfilePath, "profile-path", def.Store.ProfilePath, "Profile file for the json store")
	cmd.Flags().StringVar(&sa.DBPath, "db-path", def.Store.DBPath, "Database path for the sqlite store")
	cmd.Flags().StringVar(&sa.User, "user", def.Store.User, "Profile owner for the sqlite store")

	cmd.Flags().StringVar(&sa.BaseURL, "off-base-url", def.OpenFoodFacts.BaseURL, "Open Food Facts base URL")
	cmd.Flags().DurationVar(&sa.Timeout, "off-timeout", def.OpenFoodFacts.Timeout, "Open Food Facts request timeout")
	cmd.Flags().IntVar(&sa.RequestsPerMinute, "off-requests-per-minute", def.OpenFoodFacts.RequestsPerMinute,
		"Open Food Facts request rate, 0 disables limiting")

	cmd.Flags().IntVar(&sa.MaxResults, "max-results", def.Search.MaxResults, "Maximum products shown per search")
	cmd.Flags().StringVar(&sa.SafeOnlyWithoutProfile, "safe-only-without-profile", def.Search.SafeOnlyWithoutProfile,
		fmt.Sprintf("Safe-only search behaviour without a profile, one of: %s", pipeline.AllSafeOnlyModes))

	must(cmd.MarkFlagFilename("config", "yaml", "yml"))
	must(cmd.RegisterFlagCompletionFunc("transport",
		cobra.FixedCompletions([]string{config.TransportStdio, config.TransportHTTP}, cobra.ShellCompDirectiveNoFileComp),
	))
	must(cmd.RegisterFlagCompletionFunc("store",
		cobra.FixedCompletions([]string{string(storage.KindJSON), string(storage.KindSQLite)}, cobra.ShellCompDirectiveNoFileComp),
	))
}

// Config builds the effective configuration: defaults, then the config
// file, then flags and their environment variables.
func (sa *ServeArgs) Config(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := sa.loadConfig()
	if err != nil {
		return nil, err
	}

	set := func(name string) bool { return flagSet(cmd, name) }

	if set("log-level") {
		cfg.Log.Level = sa.LogLevel
	}
	if set("log-format") {
		cfg.Log.Format = sa.LogFormat
	}
	if set("log-file") {
		cfg.Log.File = sa.LogFile
	}
	if set("transport") {
		cfg.Transport = sa.Transport
	}
	if set("host") {
		cfg.Host = sa.Host
	}
	if set("port") {
		cfg.Port = sa.Port
	}
	if set("store") {
		cfg.Store.Kind = sa.Store
	}
	if set("profile-path") {
		cfg.Store.ProfilePath = sa.ProfilePath
	}
	if set("db-path") {
		cfg.Store.DBPath = sa.DBPath
	}
	if set("user") {
		cfg.Store.User = sa.User
	}
	if set("off-base-url") {
		cfg.OpenFoodFacts.BaseURL = sa.BaseURL
	}
	if set("off-timeout") {
		cfg.OpenFoodFacts.Timeout = sa.Timeout
	}
	if set("off-requests-per-minute") {
		cfg.OpenFoodFacts.RequestsPerMinute = sa.RequestsPerMinute
	}
	if set("max-results") {
		cfg.Search.MaxResults = sa.MaxResults
	}
	if set("safe-only-without-profile") {
		cfg.Search.SafeOnlyWithoutProfile = sa.SafeOnlyWithoutProfile
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadConfig reads an explicit --config path, or the default path when a
// file exists there.
func (sa *ServeArgs) loadConfig() (*config.Config, error) {
	path := sa.ConfigPath
	if path == "" {
		path = config.GetPath()
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return config.Default(), nil
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	slog.Debug("loaded configuration", slog.String("path", path))

	return cfg, nil
}

func serve(cmd *cobra.Command, sa *ServeArgs) error {
	cfg, err := sa.Config(cmd)
	if err != nil {
		return err
	}

	if sa.ShowConfig {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("encode config: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	}

	w, err := log.OpenFile(cfg.Log.File)
	if err != nil {
		return err
	}
	defer w.Close()

	logHandler, err := log.CreateHandlerWithStrings(w, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("create log handler: %w", err)
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	ctx := cmd.Context()

	srv, err := server.NewDietCheckServer(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.InfoContext(ctx, "received shutdown signal")
	case runErr = <-errCh:
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		return errors.Join(runErr, err)
	}

	return runErr
}

// flagSet reports whether a flag was given on the command line or through
// its environment variable.
func flagSet(cmd *cobra.Command, name string) bool {
	f := cmd.Flags().Lookup(name)
	if f == nil {
		return false
	}
	if f.Changed {
		return true
	}
	_, ok := os.LookupEnv(flagToEnvName(name))
	return ok
}
