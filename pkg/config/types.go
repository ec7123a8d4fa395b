// Package config provides the configuration schema for nightshift.
package config

import (
	"time"

	"github.com/cockroachdb/errors"
)

// ErrNegativeDuration is returned when a negative duration is provided.
var ErrNegativeDuration = errors.New("duration must be non-negative")

// Duration wraps time.Duration for TOML parsing.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML parsing.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return errors.Wrapf(err, "parsing duration %q", string(text))
	}

	if parsed < 0 {
		return errors.Wrapf(ErrNegativeDuration, "got %q", string(text))
	}

	*d = Duration(parsed)

	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Config is the root configuration for the nightshift plugin.
type Config struct {
	// Divert configures blocker diversion and persistence.
	Divert *DivertConfig `json:"divert,omitempty" koanf:"divert" toml:"divert"`

	// Continuation configures idle-time continuation prompting.
	Continuation *ContinuationConfig `json:"continuation,omitempty" koanf:"continuation" toml:"continuation"`

	// Log configures plugin logging.
	Log *LogConfig `json:"log,omitempty" koanf:"log" toml:"log"`

	// State configures cross-invocation session state persistence.
	State *StateConfig `json:"state,omitempty" koanf:"state" toml:"state"`
}

// GetDivert returns the divert section, never nil.
func (c *Config) GetDivert() *DivertConfig {
	if c == nil || c.Divert == nil {
		return &DivertConfig{}
	}

	return c.Divert
}

// GetContinuation returns the continuation section, never nil.
func (c *Config) GetContinuation() *ContinuationConfig {
	if c == nil || c.Continuation == nil {
		return &ContinuationConfig{}
	}

	return c.Continuation
}

// GetLog returns the log section, never nil.
func (c *Config) GetLog() *LogConfig {
	if c == nil || c.Log == nil {
		return &LogConfig{}
	}

	return c.Log
}

// GetState returns the state section, never nil.
func (c *Config) GetState() *StateConfig {
	if c == nil || c.State == nil {
		return &StateConfig{}
	}

	return c.State
}
