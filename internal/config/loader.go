// Package config loads the nightshift configuration from its layered
// sources. Precedence, highest to lowest: environment variables
// (NIGHTSHIFT_*), project config (.nightshift/config.toml), global config
// (~/.nightshift/config.toml), built-in defaults. Configuration is assumed
// pre-validated here beyond basic shape; the schema accessors in
// pkg/config supply defaults for anything missing.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	tomlparser "github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/nightshift-sh/nightshift/pkg/config"
)

var (
	// ErrInvalidTOML is returned when a config file cannot be parsed.
	ErrInvalidTOML = errors.New("invalid TOML")

	// ErrInvalidPermissions is returned when a config file is world-writable.
	ErrInvalidPermissions = errors.New("config file has insecure permissions")
)

const (
	// ConfigDir is the directory name for both global and project config.
	ConfigDir = ".nightshift"

	// ConfigFile is the configuration file name.
	ConfigFile = "config.toml"

	// EnvPrefix prefixes environment variable overrides.
	EnvPrefix = "NIGHTSHIFT_"
)

// Loader loads configuration from the layered sources using koanf.
type Loader struct {
	k       *koanf.Koanf
	homeDir string
	workDir string
}

// NewLoader creates a Loader rooted at the user's home and working
// directories.
func NewLoader() (*Loader, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.Wrap(err, "resolving home directory")
	}

	workDir, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, "resolving working directory")
	}

	return NewLoaderWithDirs(homeDir, workDir), nil
}

// NewLoaderWithDirs creates a Loader with custom directories (for testing).
func NewLoaderWithDirs(homeDir, workDir string) *Loader {
	return &Loader{
		k:       koanf.New("."),
		homeDir: homeDir,
		workDir: workDir,
	}
}

// Load assembles the configuration from all sources.
func (l *Loader) Load() (*config.Config, error) {
	l.k = koanf.New(".")

	if err := l.k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, errors.Wrap(err, "loading defaults")
	}

	if err := l.loadTOMLFile(l.GlobalConfigPath()); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "loading global config")
	}

	if err := l.loadTOMLFile(l.ProjectConfigPath()); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "loading project config")
	}

	envOpt := env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: envTransform,
	}

	if err := l.k.Load(env.Provider(".", envOpt), nil); err != nil {
		return nil, errors.Wrap(err, "loading environment variables")
	}

	var cfg config.Config

	unmarshalConf := koanf.UnmarshalConf{Tag: "koanf"}
	if err := l.k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, errors.Wrap(err, "unmarshaling config")
	}

	return &cfg, nil
}

// GlobalConfigPath returns the global configuration file location.
func (l *Loader) GlobalConfigPath() string {
	return filepath.Join(l.homeDir, ConfigDir, ConfigFile)
}

// ProjectConfigPath returns the project configuration file location.
func (l *Loader) ProjectConfigPath() string {
	return filepath.Join(l.workDir, ConfigDir, ConfigFile)
}

// loadTOMLFile merges one TOML file into the koanf instance. World-writable
// files are rejected: config decides where blocker records land on disk.
func (l *Loader) loadTOMLFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	if info.Mode().Perm()&0o002 != 0 {
		return errors.Wrapf(ErrInvalidPermissions,
			"%s is world-writable (mode: %s)", path, info.Mode())
	}

	if err := l.k.Load(file.Provider(path), tomlparser.Parser()); err != nil {
		return errors.CombineErrors(ErrInvalidTOML, err)
	}

	return nil
}

// envTransform maps NIGHTSHIFT_DIVERT_MAX_BLOCKERS_PER_RUN to
// divert.max_blockers_per_run. Section names are single words, so only the
// first underscore separates section from key.
func envTransform(key, value string) (string, any) {
	key = strings.TrimPrefix(key, EnvPrefix)
	key = strings.ToLower(key)

	section, rest, found := strings.Cut(key, "_")
	if !found {
		return key, value
	}

	return section + "." + rest, value
}

// defaults is the lowest-priority configuration layer.
func defaults() map[string]any {
	return map[string]any{
		"divert.blockers_file":           config.DefaultBlockersFile,
		"divert.max_blockers_per_run":    config.DefaultMaxBlockersPerRun,
		"divert.cooldown":                config.DefaultBlockerCooldown.String(),
		"divert.max_records_per_file":    config.DefaultMaxRecordsPerFile,
		"divert.template_file":           config.DefaultTemplateFile,
		"continuation.max_reprompts":     config.DefaultMaxReprompts,
		"continuation.reprompt_window":   config.DefaultRepromptWindow.String(),
		"continuation.cooldown":          config.DefaultRepromptCooldown.String(),
		"continuation.completion_marker": config.DefaultCompletionMarker,
		"continuation.inject_timeout":    config.DefaultInjectTimeout.String(),
		"log.file":                       config.DefaultLogFile,
		"state.file":                     config.DefaultStateFile,
	}
}
