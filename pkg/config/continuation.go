package config

import "time"

// Default values for the continuation section.
const (
	// DefaultMaxReprompts bounds continuation prompts within one window.
	DefaultMaxReprompts = 5

	// DefaultRepromptWindow is the window after which the reprompt counter
	// resets. The cap is a rate limit within a window, not a lifetime cap.
	DefaultRepromptWindow = 10 * time.Minute

	// DefaultRepromptCooldown is the minimum gap between two continuation
	// prompts.
	DefaultRepromptCooldown = 60 * time.Second

	// DefaultCompletionMarker is the agent-emitted string that signals no
	// more work remains.
	DefaultCompletionMarker = "ALL_TASKS_COMPLETE"

	// DefaultInjectTimeout bounds the outbound prompt-injection call.
	DefaultInjectTimeout = 30 * time.Second
)

// ContinuationConfig configures idle-time continuation prompting.
type ContinuationConfig struct {
	// Enabled controls whether idle ticks may inject continuation prompts.
	// Default: true
	Enabled *bool `json:"enabled,omitempty" koanf:"enabled" toml:"enabled"`

	// MaxReprompts is the per-window continuation prompt cap.
	// Default: 5
	MaxReprompts int `json:"max_reprompts,omitempty" koanf:"max_reprompts" toml:"max_reprompts"`

	// RepromptWindow is the counter reset window.
	// Default: "10m"
	RepromptWindow Duration `json:"reprompt_window,omitempty" koanf:"reprompt_window" toml:"reprompt_window"`

	// Cooldown is the minimum gap between continuation prompts.
	// Default: "60s"
	Cooldown Duration `json:"cooldown,omitempty" koanf:"cooldown" toml:"cooldown"`

	// CompletionMarker is the agent-emitted completion signal.
	// Default: "ALL_TASKS_COMPLETE"
	CompletionMarker string `json:"completion_marker,omitempty" koanf:"completion_marker" toml:"completion_marker"`

	// InjectTimeout bounds the outbound prompt-injection call.
	// Default: "30s"
	InjectTimeout Duration `json:"inject_timeout,omitempty" koanf:"inject_timeout" toml:"inject_timeout"`
}

// IsEnabled returns true if continuation prompting is enabled. Nil means enabled.
func (c *ContinuationConfig) IsEnabled() bool {
	if c == nil || c.Enabled == nil {
		return true
	}

	return *c.Enabled
}

// GetMaxReprompts returns the per-window continuation prompt cap.
func (c *ContinuationConfig) GetMaxReprompts() int {
	if c == nil || c.MaxReprompts <= 0 {
		return DefaultMaxReprompts
	}

	return c.MaxReprompts
}

// GetRepromptWindow returns the counter reset window.
func (c *ContinuationConfig) GetRepromptWindow() time.Duration {
	if c == nil || c.RepromptWindow == 0 {
		return DefaultRepromptWindow
	}

	return time.Duration(c.RepromptWindow)
}

// GetCooldown returns the minimum gap between continuation prompts.
func (c *ContinuationConfig) GetCooldown() time.Duration {
	if c == nil || c.Cooldown == 0 {
		return DefaultRepromptCooldown
	}

	return time.Duration(c.Cooldown)
}

// GetCompletionMarker returns the completion marker string.
func (c *ContinuationConfig) GetCompletionMarker() string {
	if c == nil || c.CompletionMarker == "" {
		return DefaultCompletionMarker
	}

	return c.CompletionMarker
}

// GetInjectTimeout returns the prompt-injection deadline.
func (c *ContinuationConfig) GetInjectTimeout() time.Duration {
	if c == nil || c.InjectTimeout == 0 {
		return DefaultInjectTimeout
	}

	return time.Duration(c.InjectTimeout)
}
