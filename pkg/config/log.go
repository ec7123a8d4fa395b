package config

// DefaultLogFile is the default plugin log location.
const DefaultLogFile = "~/.nightshift/nightshift.log"

// LogConfig configures plugin logging.
type LogConfig struct {
	// File is the log file path. Supports a leading "~/".
	// Default: "~/.nightshift/nightshift.log"
	File string `json:"file,omitempty" koanf:"file" toml:"file"`

	// Debug enables info-level output.
	Debug bool `json:"debug,omitempty" koanf:"debug" toml:"debug"`

	// Trace enables debug-level output.
	Trace bool `json:"trace,omitempty" koanf:"trace" toml:"trace"`
}

// GetFile returns the log file path.
func (l *LogConfig) GetFile() string {
	if l == nil || l.File == "" {
		return DefaultLogFile
	}

	return l.File
}
