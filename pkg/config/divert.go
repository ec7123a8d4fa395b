package config

import "time"

// Default values for the divert section.
const (
	// DefaultBlockersFile is the default blocker log path, relative to the
	// project root.
	DefaultBlockersFile = ".nightshift/BLOCKERS.md"

	// DefaultMaxBlockersPerRun caps how many blockers a single session may
	// record before further events are suppressed.
	DefaultMaxBlockersPerRun = 25

	// DefaultBlockerCooldown is the minimum time between accepting two
	// blockers with the same fingerprint.
	DefaultBlockerCooldown = 30 * time.Second

	// DefaultMaxRecordsPerFile is the record count at which the blocker log
	// is rotated to a timestamped backup. Independent of the per-session cap.
	DefaultMaxRecordsPerFile = 100

	// DefaultTemplateFile is the conventional project-supplied record
	// template location, relative to the project root.
	DefaultTemplateFile = ".nightshift/blocker.tmpl"
)

// DivertConfig configures blocker diversion and the blocker log.
type DivertConfig struct {
	// Enabled controls whether new sessions start with diversion active.
	// Default: true
	Enabled *bool `json:"enabled,omitempty" koanf:"enabled" toml:"enabled"`

	// BlockersFile is the blocker log path, resolved against the project root.
	// Default: ".nightshift/BLOCKERS.md"
	BlockersFile string `json:"blockers_file,omitempty" koanf:"blockers_file" toml:"blockers_file"`

	// MaxBlockersPerRun is the per-session blocker cap.
	// Default: 25
	MaxBlockersPerRun int `json:"max_blockers_per_run,omitempty" koanf:"max_blockers_per_run" toml:"max_blockers_per_run"`

	// Cooldown is the dedup window for identical blockers.
	// Default: "30s"
	Cooldown Duration `json:"cooldown,omitempty" koanf:"cooldown" toml:"cooldown"`

	// MaxRecordsPerFile is the rotation threshold for the blocker log.
	// Default: 100
	MaxRecordsPerFile int `json:"max_records_per_file,omitempty" koanf:"max_records_per_file" toml:"max_records_per_file"`

	// TemplateFile overrides the project record template location.
	// Default: ".nightshift/blocker.tmpl"
	TemplateFile string `json:"template_file,omitempty" koanf:"template_file" toml:"template_file"`
}

// IsEnabled returns true if diversion is enabled. Nil means enabled.
func (d *DivertConfig) IsEnabled() bool {
	if d == nil || d.Enabled == nil {
		return true
	}

	return *d.Enabled
}

// GetBlockersFile returns the blocker log path.
func (d *DivertConfig) GetBlockersFile() string {
	if d == nil || d.BlockersFile == "" {
		return DefaultBlockersFile
	}

	return d.BlockersFile
}

// GetMaxBlockersPerRun returns the per-session blocker cap.
func (d *DivertConfig) GetMaxBlockersPerRun() int {
	if d == nil || d.MaxBlockersPerRun <= 0 {
		return DefaultMaxBlockersPerRun
	}

	return d.MaxBlockersPerRun
}

// GetCooldown returns the dedup cooldown window.
func (d *DivertConfig) GetCooldown() time.Duration {
	if d == nil || d.Cooldown == 0 {
		return DefaultBlockerCooldown
	}

	return time.Duration(d.Cooldown)
}

// GetMaxRecordsPerFile returns the rotation threshold.
func (d *DivertConfig) GetMaxRecordsPerFile() int {
	if d == nil || d.MaxRecordsPerFile <= 0 {
		return DefaultMaxRecordsPerFile
	}

	return d.MaxRecordsPerFile
}

// GetTemplateFile returns the project template location.
func (d *DivertConfig) GetTemplateFile() string {
	if d == nil || d.TemplateFile == "" {
		return DefaultTemplateFile
	}

	return d.TemplateFile
}
