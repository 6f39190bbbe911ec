package runner

import (
	"time"

	"finch/internal/config"
)

// Config holds the per-turn orchestration limits.
type Config struct {
	// MaxSteps is the maximum number of model calls in one turn. Default 10.
	MaxSteps int `json:"max_steps"`

	// FirstContentTimeout bounds the wait for the model's first output.
	// Default 5s.
	FirstContentTimeout time.Duration `json:"first_content_timeout"`

	// SettleDelay is waited after generation completes, before the turn
	// finishes. Default 1s.
	SettleDelay time.Duration `json:"settle_delay"`

	// MaxParallelTools bounds concurrent tool calls within one step.
	MaxParallelTools int `json:"max_parallel_tools"`

	// ToolTimeout bounds a single tool execution.
	ToolTimeout time.Duration `json:"tool_timeout"`

	// MaxToolResultBytes caps tool output fed back to the model.
	MaxToolResultBytes int `json:"max_tool_result_bytes"`

	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// DefaultConfig returns a Config with the standard turn limits.
func DefaultConfig() Config {
	return Config{
		MaxSteps:            10,
		FirstContentTimeout: 5 * time.Second,
		SettleDelay:         time.Second,
		MaxParallelTools:    4,
		ToolTimeout:         45 * time.Second,
		MaxToolResultBytes:  DefaultMaxToolResultBytes,
	}
}

// ConfigFrom maps the turn section of the application config.
func ConfigFrom(cfg *config.Config) Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	t := cfg.Turn
	if t.MaxSteps > 0 {
		c.MaxSteps = t.MaxSteps
	}
	if t.FirstContentTimeout > 0 {
		c.FirstContentTimeout = t.FirstContentTimeout
	}
	if t.SettleDelay >= 0 {
		c.SettleDelay = t.SettleDelay
	}
	if t.MaxParallelTools > 0 {
		c.MaxParallelTools = t.MaxParallelTools
	}
	if cfg.Tools.HTTPTimeout > 0 {
		c.ToolTimeout = cfg.Tools.HTTPTimeout + 15*time.Second
	}
	return c
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxSteps <= 0 {
		c.MaxSteps = d.MaxSteps
	}
	if c.FirstContentTimeout <= 0 {
		c.FirstContentTimeout = d.FirstContentTimeout
	}
	if c.SettleDelay < 0 {
		c.SettleDelay = 0
	}
	if c.MaxParallelTools <= 0 {
		c.MaxParallelTools = d.MaxParallelTools
	}
	if c.MaxToolResultBytes <= 0 {
		c.MaxToolResultBytes = d.MaxToolResultBytes
	}
	return c
}
