package config

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	// configFileMode is the mode for written config files (owner only).
	configFileMode = 0o600

	// configDirMode is the mode for created config directories.
	configDirMode = 0o700
)

// SetProjectDivertEnabled persists the divert enable flag into the project
// configuration file, creating it if needed. Unrelated keys survive the
// rewrite. This backs the enable/disable CLI commands: the toggle must be
// durable across hook invocations, unlike the in-memory session state.
func (l *Loader) SetProjectDivertEnabled(enabled bool) error {
	path := l.ProjectConfigPath()

	raw := map[string]any{}

	data, err := os.ReadFile(path) //nolint:gosec // G304: path is derived from workDir
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "reading project config")
	}

	if err == nil {
		if unmarshalErr := toml.Unmarshal(data, &raw); unmarshalErr != nil {
			return errors.CombineErrors(ErrInvalidTOML, unmarshalErr)
		}
	}

	divert, ok := raw["divert"].(map[string]any)
	if !ok {
		divert = map[string]any{}
	}

	divert["enabled"] = enabled
	raw["divert"] = divert

	encoded, err := toml.Marshal(raw)
	if err != nil {
		return errors.Wrap(err, "encoding project config")
	}

	if mkdirErr := os.MkdirAll(filepath.Dir(path), configDirMode); mkdirErr != nil {
		return errors.Wrap(mkdirErr, "creating config directory")
	}

	if writeErr := os.WriteFile(path, encoded, configFileMode); writeErr != nil {
		return errors.Wrap(writeErr, "writing project config")
	}

	return nil
}
