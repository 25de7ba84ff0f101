package agent

import "sort"

// ToolResult records one tool invocation. Immutable once produced; appended
// to State.History by the loop.
type ToolResult struct {
	Tool      string         `json:"tool"`
	Args      map[string]any `json:"args,omitempty"`
	Output    string         `json:"output,omitempty"`
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
	Truncated bool           `json:"truncated,omitempty"`
	ElapsedMs int64          `json:"elapsed_ms"`
}

// IterationRecord is one entry in the session history. Iteration correlates
// the reflection with the tool result it produced.
type IterationRecord struct {
	Iteration  int         `json:"iteration"`
	Reflection Reflection  `json:"reflection"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`
	Response   string      `json:"response,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// State is the mutable per-session record. Owned exclusively by the loop;
// history is append-only and iteration strictly increases by 1 per pass.
type State struct {
	SessionID       string            `json:"session_id"`
	Iteration       int               `json:"iteration"`
	History         []IterationRecord `json:"history"`
	Errors          int               `json:"errors"`
	ProgressPercent int               `json:"progress_percent"`
	Confidence      float64           `json:"confidence"`
	IsComplete      bool              `json:"is_complete"`
	Result          string            `json:"result,omitempty"`

	artifacts map[string]struct{}
}

// NewState creates the initial state for a session.
func NewState(sessionID string) *State {
	return &State{SessionID: sessionID, artifacts: make(map[string]struct{})}
}

// Append adds a record to the history. Records arrive in iteration order.
func (s *State) Append(rec IterationRecord) {
	s.History = append(s.History, rec)
}

// AddArtifact records a produced file/command reference. Duplicates collapse.
func (s *State) AddArtifact(ref string) {
	if ref == "" {
		return
	}
	if s.artifacts == nil {
		s.artifacts = make(map[string]struct{})
	}
	s.artifacts[ref] = struct{}{}
}

// Artifacts returns the artifact set in stable sorted order.
func (s *State) Artifacts() []string {
	out := make([]string, 0, len(s.artifacts))
	for a := range s.artifacts {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// LastProgress returns the progress values of the most recent n iterations
// that produced a reflection, oldest first. Iterations that failed before a
// reflection was parsed carry no progress report and are skipped. Used by
// the stuck-loop check.
func (s *State) LastProgress(n int) []int {
	if n <= 0 || len(s.History) == 0 {
		return nil
	}
	out := make([]int, 0, n)
	for i := len(s.History) - 1; i >= 0 && len(out) < n; i-- {
		if s.History[i].Error != "" {
			continue
		}
		out = append(out, s.History[i].Reflection.ProgressPercent)
	}
	for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
		out[l], out[r] = out[r], out[l]
	}
	return out
}
