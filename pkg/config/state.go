package config

// DefaultStateFile is the default session state location, relative to the
// project root.
const DefaultStateFile = ".nightshift/state.json"

// StateConfig configures cross-invocation session state persistence.
type StateConfig struct {
	// File is the session state file path, relative to the project root.
	// Default: ".nightshift/state.json"
	File string `json:"file,omitempty" koanf:"file" toml:"file"`
}

// GetFile returns the session state file path.
func (s *StateConfig) GetFile() string {
	if s == nil || s.File == "" {
		return DefaultStateFile
	}

	return s.File
}
