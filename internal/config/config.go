// internal/config/config.go

// Package config loads the server configuration.
//
// Values come from built-in defaults, then an optional YAML file, then
// command line flags and DIETCHECK_* environment variables applied by the
// CLI.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"mcp-diet-check/internal/log"
	"mcp-diet-check/internal/offclient"
	"mcp-diet-check/internal/pipeline"
	"mcp-diet-check/internal/rules"
	"mcp-diet-check/internal/storage"
)

const (
	TransportHTTP  = "http"
	TransportStdio = "stdio"

	appName = "diet-check"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	// Transport is "stdio" or "http".
	Transport string `yaml:"transport"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`

	Store         StoreConfig         `yaml:"store"`
	Log           LogConfig           `yaml:"log"`
	OpenFoodFacts OpenFoodFactsConfig `yaml:"openfoodfacts"`
	Search        SearchConfig        `yaml:"search"`

	// MedicalConditions adds to or overrides the built-in condition rules.
	MedicalConditions []rules.ConditionRule `yaml:"medical_conditions,omitempty"`
}

type StoreConfig struct {
	// Kind is "json" or "sqlite".
	Kind        string `yaml:"kind"`
	ProfilePath string `yaml:"profile_path"`
	DBPath      string `yaml:"db_path"`
	User        string `yaml:"user"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// File receives log lines instead of stderr when set.
	File string `yaml:"file,omitempty"`
}

type OpenFoodFactsConfig struct {
	BaseURL           string        `yaml:"base_url"`
	UserAgent         string        `yaml:"user_agent"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	Burst             int           `yaml:"burst"`
}

type SearchConfig struct {
	MaxResults      int `yaml:"max_results"`
	MaxChecked      int `yaml:"max_checked"`
	ReasonsPerEntry int `yaml:"reasons_per_entry"`
	Workers         int `yaml:"workers"`
	// SafeOnlyWithoutProfile is "unrestricted", "error" or "empty".
	SafeOnlyWithoutProfile string `yaml:"safe_only_without_profile"`
}

// Default returns the built-in configuration.
func Default() *Config {
	dir := DataDir()
	opts := pipeline.DefaultOptions()

	return &Config{
		Transport: TransportStdio,
		Host:      "0.0.0.0",
		Port:      8080,
		Store: StoreConfig{
			Kind:        string(storage.KindJSON),
			ProfilePath: filepath.Join(dir, "user_profile.json"),
			DBPath:      filepath.Join(dir, "diet-check.db"),
			User:        localUser(),
		},
		Log: LogConfig{
			Level:  string(log.LevelInfo),
			Format: string(log.FormatLogfmt),
		},
		OpenFoodFacts: OpenFoodFactsConfig{
			BaseURL:           offclient.DefaultBaseURL,
			UserAgent:         offclient.DefaultUserAgent,
			Timeout:           offclient.DefaultTimeout,
			RequestsPerMinute: 10,
			Burst:             3,
		},
		Search: SearchConfig{
			MaxResults:             opts.MaxResults,
			MaxChecked:             opts.MaxChecked,
			ReasonsPerEntry:        opts.ReasonsPerEntry,
			Workers:                opts.Workers,
			SafeOnlyWithoutProfile: string(opts.SafeOnlyWithoutProfile),
		},
	}
}

// Load reads a YAML file over the defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := readConfig(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data), yaml.DisallowUnknownField())
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Transport {
	case TransportHTTP, TransportStdio:
	default:
		errs = append(errs, fmt.Errorf("transport must be %q or %q, got %q", TransportHTTP, TransportStdio, c.Transport))
	}
	if c.Transport == TransportHTTP && (c.Port <= 0 || c.Port > 65535) {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}

	switch storage.Kind(c.Store.Kind) {
	case storage.KindJSON:
		if c.Store.ProfilePath == "" {
			errs = append(errs, errors.New("store.profile_path is required for the json store"))
		}
	case storage.KindSQLite:
		if c.Store.DBPath == "" {
			errs = append(errs, errors.New("store.db_path is required for the sqlite store"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.kind must be %q or %q, got %q", storage.KindJSON, storage.KindSQLite, c.Store.Kind))
	}

	if _, err := log.GetLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level %q: %w", c.Log.Level, err))
	}
	if _, err := log.GetFormat(c.Log.Format); err != nil {
		errs = append(errs, fmt.Errorf("log.format %q: %w", c.Log.Format, err))
	}

	if c.OpenFoodFacts.Timeout <= 0 {
		errs = append(errs, errors.New("openfoodfacts.timeout must be positive"))
	}
	if c.OpenFoodFacts.RequestsPerMinute < 0 || c.OpenFoodFacts.Burst < 0 {
		errs = append(errs, errors.New("openfoodfacts rate limits must not be negative"))
	}

	if c.Search.MaxResults <= 0 || c.Search.MaxChecked <= 0 || c.Search.ReasonsPerEntry <= 0 || c.Search.Workers <= 0 {
		errs = append(errs, errors.New("search limits must be positive"))
	}
	if _, err := pipeline.ParseSafeOnlyMode(c.Search.SafeOnlyWithoutProfile); err != nil {
		errs = append(errs, fmt.Errorf("search.safe_only_without_profile: %w", err))
	}

	if len(c.MedicalConditions) > 0 {
		if _, err := rules.NewConditions(c.MedicalConditions...); err != nil {
			errs = append(errs, fmt.Errorf("medical_conditions: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}

	return nil
}

// StoreOptions returns the profile store selection.
func (c *Config) StoreOptions() storage.Options {
	return storage.Options{
		Kind:        storage.Kind(c.Store.Kind),
		ProfilePath: c.Store.ProfilePath,
		DBPath:      c.Store.DBPath,
		User:        c.Store.User,
	}
}

// ClientConfig returns the food database client settings.
func (c *Config) ClientConfig() offclient.Config {
	return offclient.Config{
		BaseURL:           c.OpenFoodFacts.BaseURL,
		UserAgent:         c.OpenFoodFacts.UserAgent,
		Timeout:           c.OpenFoodFacts.Timeout,
		RequestsPerMinute: c.OpenFoodFacts.RequestsPerMinute,
		Burst:             c.OpenFoodFacts.Burst,
		PageSize:          c.Search.MaxChecked,
	}
}

// PipelineOptions returns the search caps. Call Validate first.
func (c *Config) PipelineOptions() pipeline.Options {
	mode, _ := pipeline.ParseSafeOnlyMode(c.Search.SafeOnlyWithoutProfile)

	return pipeline.Options{
		MaxChecked:             c.Search.MaxChecked,
		MaxResults:             c.Search.MaxResults,
		ReasonsPerEntry:        c.Search.ReasonsPerEntry,
		Workers:                c.Search.Workers,
		SafeOnlyWithoutProfile: mode,
	}
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetPath returns the default config file location.
func GetPath() string {
	return filepath.Join(configHome(), appName, "config.yaml")
}

// DataDir returns the directory holding the stored profile.
func DataDir() string {
	if xdgData, ok := os.LookupEnv("XDG_DATA_HOME"); ok && xdgData != "" {
		return filepath.Join(xdgData, appName)
	}

	usrHome, err := os.UserHomeDir()
	if err == nil && usrHome != "" {
		return filepath.Join(usrHome, ".local", "share", appName)
	}

	return filepath.Join(os.TempDir(), appName)
}

func configHome() string {
	if xdgHome, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && xdgHome != "" {
		return xdgHome
	}

	usrHome, err := os.UserHomeDir()
	if err == nil && usrHome != "" {
		return filepath.Join(usrHome, ".config")
	}

	tmp := os.TempDir()
	slog.Warn("could not determine user config directory, using temp path",
		slog.String("path", tmp),
		slog.Any("error", err),
	)

	return tmp
}

func localUser() string {
	for _, env := range []string{"USER", "USERNAME", "LOGNAME"} {
		if u := strings.TrimSpace(os.Getenv(env)); u != "" {
			return u
		}
	}
	return "default"
}

func readConfig(path string) ([]byte, error) {
	pathInfo, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if pathInfo.IsDir() {
		return nil, fmt.Errorf("%s: path is a directory", path)
	}
	if !pathInfo.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: unknown file state", path)
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: Potential file inclusion via variable.
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}
