package agent

import "time"

// StopReason is the terminal reason carried by every SessionResult.
type StopReason string

const (
	StopTaskComplete  StopReason = "TaskComplete"
	StopMaxIterations StopReason = "MaxIterations"
	StopStuckLoop     StopReason = "StuckLoop"
	StopTooManyErrors StopReason = "TooManyErrors"
	StopUserStop      StopReason = "UserStop"
)

// SessionResult is emitted exactly once per session. There is no silent
// failure mode: unrecoverable conditions still produce a terminal result.
type SessionResult struct {
	SessionID           string        `json:"session_id"`
	TaskID              string        `json:"task_id"`
	Reason              StopReason    `json:"reason"`
	IterationsCompleted int           `json:"iterations_completed"`
	FinalProgress       int           `json:"final_progress"`
	Confidence          float64       `json:"confidence"`
	Artifacts           []string      `json:"artifacts,omitempty"`
	Output              string        `json:"output,omitempty"`
	Elapsed             time.Duration `json:"elapsed"`
}

// Succeeded reports whether the session reached its goal.
func (r SessionResult) Succeeded() bool { return r.Reason == StopTaskComplete }
