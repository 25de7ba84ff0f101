// Package store defines persistence interfaces for the agent's memory
// subsystems. Implementations must provide identical append-only semantics
// across backends: records are never mutated after creation and appends are
// idempotent on record ID (at-least-once delivery is safe).
package store

import (
	"context"
	"time"
)

// EntryRecord is the persisted representation of an episodic entry.
// Embeddings are not persisted; they are re-derived against the current
// vocabulary on load.
type EntryRecord struct {
	EntryID   string
	SessionID string
	TaskType  string
	Summary   string
	Outcome   string
	Score     int
	CreatedAt time.Time
}

// EntryFilter constrains ListEntries. Zero values mean "no constraint".
type EntryFilter struct {
	TaskType string
	Since    time.Time
	Until    time.Time
	MinScore int
	Limit    int
}

// OutcomeRecord is one recorded session outcome used for guidance
// aggregation.
type OutcomeRecord struct {
	OutcomeID  string
	TaskType   string
	Success    bool
	ToolsUsed  []string
	Iterations int
	CreatedAt  time.Time
}

// EpisodicStore persists the append-only episodic log.
type EpisodicStore interface {
	// AppendEntry appends an entry. Re-appending an existing EntryID
	// returns the stored record unchanged.
	AppendEntry(ctx context.Context, e EntryRecord) (EntryRecord, error)
	// ListEntries returns entries passing the filter, newest first.
	ListEntries(ctx context.Context, f EntryFilter) ([]EntryRecord, error)
}

// OutcomeStore persists recorded session outcomes.
type OutcomeStore interface {
	AppendOutcome(ctx context.Context, o OutcomeRecord) (OutcomeRecord, error)
	// ListOutcomes returns outcomes for a task type, oldest first. Empty
	// taskType lists everything.
	ListOutcomes(ctx context.Context, taskType string) ([]OutcomeRecord, error)
}

// Store aggregates the episodic and outcome stores.
type Store interface {
	EpisodicStore
	OutcomeStore
}
