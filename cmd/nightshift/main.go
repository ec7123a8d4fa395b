// Package main provides the CLI entry point for nightshift.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	internalconfig "github.com/nightshift-sh/nightshift/internal/config"
	"github.com/nightshift-sh/nightshift/pkg/config"
	"github.com/nightshift-sh/nightshift/pkg/logger"
)

const (
	// ExitCodeOK indicates the invocation completed. Diverted events still
	// exit zero; the deny decision travels via JSON on stdout.
	ExitCodeOK = 0

	// ExitCodeError indicates the invocation failed before a decision
	// could be made.
	ExitCodeError = 1
)

var (
	debugMode bool
	traceMode bool
)

var rootCmd = &cobra.Command{
	Use:   "nightshift",
	Short: "Autonomous continuation engine for unattended agent sessions",
	Long: `nightshift keeps unattended agent sessions productive: blocking
questions are diverted into a persisted blocker log instead of waiting for a
human, and idle sessions receive continuation prompts until the work is done.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		checkVersionFlag()
	},
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&traceMode, "trace", false, "Enable trace logging")
}

func main() {
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		return ExitCodeError
	}

	return ExitCodeOK
}

// loadConfig builds the layered configuration for the current working
// directory. Configuration failures fall back to defaults so a broken TOML
// file never turns the plugin off silently.
func loadConfig(log logger.Logger) (*config.Config, *internalconfig.Loader) {
	loader, err := internalconfig.NewLoader()
	if err != nil {
		log.Error("failed to locate config directories", "error", err)

		return &config.Config{}, nil
	}

	cfg, err := loader.Load()
	if err != nil {
		log.Error("failed to load configuration, using defaults", "error", err)

		return &config.Config{}, loader
	}

	return cfg, loader
}

// setupLogger creates the file logger from configuration and flags. Flag
// values win over config so a one-off --trace works without editing TOML.
func setupLogger(cfg *config.Config) (logger.Logger, error) {
	logCfg := cfg.GetLog()

	level := logger.LevelError

	switch {
	case traceMode || logCfg.Trace:
		level = logger.LevelDebug
	case debugMode || logCfg.Debug:
		level = logger.LevelInfo
	}

	path, err := expandHome(logCfg.GetFile())
	if err != nil {
		return nil, err
	}

	log, err := logger.NewFileLogger(path, level)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create logger")
	}

	return log, nil
}

// expandHome resolves a leading "~/" against the user home directory.
func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}

	return filepath.Join(homeDir, strings.TrimPrefix(path, "~/")), nil
}
