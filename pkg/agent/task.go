// Package agent defines the data model of the reflect/act core — tasks,
// session state, structured reflections, tool results — together with the
// schema-validated tool registry and the bounded tool executor.
//
// A Task is immutable once created. All mutable per-session data lives in
// State, which is owned exclusively by the runtime loop for the session's
// lifetime. History is append-only and ordered by the iteration counter,
// which is the unique key correlating a Reflection with the ToolResult it
// produced.
package agent

import (
	"time"

	"github.com/google/uuid"
)

// Defaults for RunConfig fields left at zero.
const (
	DefaultMaxIterations      = 15
	DefaultErrorThreshold     = 3
	DefaultCheckpointInterval = 5
	DefaultProviderTimeout    = 60 * time.Second
	DefaultToolTimeout        = 30 * time.Second
	DefaultToolOutputCap      = 16 * 1024
	DefaultFrameBudget        = 8000
)

// RunConfig carries the per-session knobs. Zero values are replaced by the
// defaults above in WithDefaults.
type RunConfig struct {
	// MaxIterations bounds the number of reflect/act passes.
	MaxIterations int `json:"max_iterations"`
	// ErrorThreshold is the loop-error count that terminates the session.
	ErrorThreshold int `json:"error_threshold"`
	// CheckpointInterval emits a state checkpoint event every N iterations.
	// Zero or negative disables checkpointing.
	CheckpointInterval int `json:"checkpoint_interval"`
	// Provider selects the registered completion provider (e.g. "openai").
	Provider string `json:"provider"`
	// Model is the provider-specific model identifier.
	Model string `json:"model"`
	// ProviderTimeout bounds a single completion call.
	ProviderTimeout time.Duration `json:"provider_timeout"`
	// ToolTimeout bounds a single tool execution.
	ToolTimeout time.Duration `json:"tool_timeout"`
	// ToolOutputCap is the byte cap on tool output before truncation.
	ToolOutputCap int `json:"tool_output_cap"`
	// FrameBudget is the token budget for prompt frame assembly.
	FrameBudget int `json:"frame_budget"`
}

// WithDefaults returns a copy with zero fields replaced by defaults.
func (c RunConfig) WithDefaults() RunConfig {
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.ErrorThreshold <= 0 {
		c.ErrorThreshold = DefaultErrorThreshold
	}
	if c.ProviderTimeout <= 0 {
		c.ProviderTimeout = DefaultProviderTimeout
	}
	if c.ToolTimeout <= 0 {
		c.ToolTimeout = DefaultToolTimeout
	}
	if c.ToolOutputCap <= 0 {
		c.ToolOutputCap = DefaultToolOutputCap
	}
	if c.FrameBudget <= 0 {
		c.FrameBudget = DefaultFrameBudget
	}
	return c
}

// Task is the immutable free-text goal plus run configuration. Created at
// session start, never mutated.
type Task struct {
	ID        string    `json:"id"`
	Goal      string    `json:"goal"`
	Config    RunConfig `json:"config"`
	CreatedAt time.Time `json:"created_at"`
}

// NewTask creates a Task with a fresh ID and defaulted config.
func NewTask(goal string, cfg RunConfig) Task {
	return Task{
		ID:        uuid.NewString(),
		Goal:      goal,
		Config:    cfg.WithDefaults(),
		CreatedAt: time.Now().UTC(),
	}
}
