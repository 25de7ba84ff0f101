// Package outcome records how sessions ended and aggregates that history
// into guidance for future runs. Nothing is precomputed: every read derives
// its stats from the append-only log so late-arriving records are always
// reflected.
package outcome

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/wilhg/reflex/pkg/errmodel"
	"github.com/wilhg/reflex/pkg/store"
)

// ToolStat summarizes how a tool has performed for a task type.
type ToolStat struct {
	Name        string  `json:"name"`
	Uses        int     `json:"uses"`
	SuccessRate float64 `json:"success_rate"`
}

// Guidance is derived advice for approaching a task type.
type Guidance struct {
	TaskType          string     `json:"task_type"`
	Sessions          int        `json:"sessions"`
	SuccessRate       float64    `json:"success_rate"`
	TypicalIterations int        `json:"typical_iterations"`
	ToolStats         []ToolStat `json:"tool_stats,omitempty"`
	Hints             []string   `json:"hints,omitempty"`
}

// Tracker records session outcomes and serves guidance.
type Tracker struct {
	store  store.OutcomeStore
	logger *zap.Logger
}

// New creates a Tracker over the given store.
func New(st store.OutcomeStore, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{store: st, logger: logger}
}

// Record appends a session outcome.
func (t *Tracker) Record(ctx context.Context, o store.OutcomeRecord) (store.OutcomeRecord, error) {
	rec, err := t.store.AppendOutcome(ctx, o)
	if err != nil {
		return store.OutcomeRecord{}, errmodel.Memory("OUTCOME_APPEND", "append outcome", map[string]any{"outcome_id": o.OutcomeID}, err)
	}
	return rec, nil
}

// Guidance aggregates all recorded outcomes for the task type. With no
// history it returns a zero Guidance carrying only the task type.
func (t *Tracker) Guidance(ctx context.Context, taskType string) (Guidance, error) {
	outs, err := t.store.ListOutcomes(ctx, taskType)
	if err != nil {
		return Guidance{TaskType: taskType}, errmodel.Memory("OUTCOME_LIST", "list outcomes", map[string]any{"task_type": taskType}, err)
	}
	g := Guidance{TaskType: taskType, Sessions: len(outs)}
	if len(outs) == 0 {
		return g, nil
	}

	successes := 0
	var iterations []int
	toolUses := map[string]int{}
	toolWins := map[string]int{}
	for _, o := range outs {
		if o.Success {
			successes++
			iterations = append(iterations, o.Iterations)
		}
		seen := map[string]bool{}
		for _, tool := range o.ToolsUsed {
			if seen[tool] {
				continue
			}
			seen[tool] = true
			toolUses[tool]++
			if o.Success {
				toolWins[tool]++
			}
		}
	}
	g.SuccessRate = float64(successes) / float64(len(outs))
	g.TypicalIterations = median(iterations)

	for name, uses := range toolUses {
		g.ToolStats = append(g.ToolStats, ToolStat{
			Name:        name,
			Uses:        uses,
			SuccessRate: float64(toolWins[name]) / float64(uses),
		})
	}
	// Most used first so prompt assembly can truncate from the tail.
	sort.Slice(g.ToolStats, func(i, j int) bool {
		if g.ToolStats[i].Uses != g.ToolStats[j].Uses {
			return g.ToolStats[i].Uses > g.ToolStats[j].Uses
		}
		return g.ToolStats[i].Name < g.ToolStats[j].Name
	})

	g.Hints = hints(g)
	return g, nil
}

func hints(g Guidance) []string {
	var out []string
	if g.Sessions >= 3 && g.SuccessRate < 0.5 {
		out = append(out, fmt.Sprintf("past %s tasks succeeded only %.0f%% of the time; reconsider the usual approach", g.TaskType, g.SuccessRate*100))
	}
	if g.TypicalIterations > 0 {
		out = append(out, fmt.Sprintf("successful %s tasks typically finish in about %d iterations", g.TaskType, g.TypicalIterations))
	}
	for _, ts := range g.ToolStats {
		if ts.Uses >= 2 && ts.SuccessRate >= 0.75 {
			out = append(out, fmt.Sprintf("the %s tool has a strong track record here", ts.Name))
			break
		}
	}
	for _, ts := range g.ToolStats {
		if ts.Uses >= 3 && ts.SuccessRate <= 0.25 {
			out = append(out, fmt.Sprintf("the %s tool has rarely helped with %s tasks", ts.Name, g.TaskType))
			break
		}
	}
	return out
}

func median(xs []int) int {
	if len(xs) == 0 {
		return 0
	}
	sorted := make([]int, len(xs))
	copy(sorted, xs)
	sort.Ints(sorted)
	return sorted[len(sorted)/2]
}
