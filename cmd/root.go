package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/pir/internal/api"
	"github.com/joescharf/pir/internal/client"
	"github.com/joescharf/pir/internal/output"
	"github.com/joescharf/pir/internal/store"
	"github.com/joescharf/pir/internal/tracker"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui           *output.UI
	dataStore    store.Store
	issueTracker *tracker.Tracker

	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "pir",
	Short: "Project Issue Report - track issues against a REST backend",
	Long: `pir is a small issue tracker.
It lists, creates, re-statuses, and deletes issues held by a REST backend,
from a web page (pir serve), the terminal (pir issue), or an MCP client
(pir mcp). pir api runs the backend itself on SQLite.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (debug logging)")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/pir/config.yaml)")
	rootCmd.PersistentFlags().String("api-url", client.DefaultBaseURL, "Base URL of the issue backend")
	_ = viper.BindPFlag("api_url", rootCmd.PersistentFlags().Lookup("api-url"))
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		viper.AddConfigPath(filepath.Join(home, ".config", "pir"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("PIR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

// setDefaults registers every config key's default value.
func setDefaults() {
	home, _ := os.UserHomeDir()
	defaultStateDir := filepath.Join(home, ".config", "pir")

	viper.SetDefault("api_url", client.DefaultBaseURL)
	viper.SetDefault("port", 5173)
	viper.SetDefault("api.port", 8000)
	viper.SetDefault("api.allowed_origin", api.DefaultAllowedOrigin)
	viper.SetDefault("state_dir", defaultStateDir)
	viper.SetDefault("db_path", filepath.Join(defaultStateDir, "pir.db"))
	viper.SetDefault("log.level", "info")
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	initLogging(os.Stderr)

	// Store and tracker are created lazily, only by commands that need them.
	// This allows config/version commands to run without a backend or db.
}

// initLogging installs the default slog logger. --verbose forces debug.
func initLogging(w io.Writer) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString("log.level"))); err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// getTracker returns the shared tracker, creating it on first call.
func getTracker() *tracker.Tracker {
	if issueTracker == nil {
		ui.VerboseLog("backend: %s", viper.GetString("api_url"))
		issueTracker = tracker.New(client.New(viper.GetString("api_url"), nil))
	}
	return issueTracker
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(context.Background()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}
