package agent

import (
	"encoding/json"
	"strings"

	"github.com/wilhg/reflex/pkg/errmodel"
)

// Assessment is the model's self-assessment for the iteration.
type Assessment string

const (
	AssessContinue Assessment = "continue"
	AssessComplete Assessment = "complete"
	AssessStuck    Assessment = "stuck"
	AssessError    Assessment = "error"
)

// NextAction is the model's chosen action for the iteration.
type NextAction string

const (
	ActionUseTool NextAction = "use_tool"
	ActionRespond NextAction = "respond"
	ActionStop    NextAction = "stop"
)

// ToolPlan names the tool the model wants to run and why.
type ToolPlan struct {
	Tool    string         `json:"tool"`
	Purpose string         `json:"purpose,omitempty"`
	Args    map[string]any `json:"args,omitempty"`
}

// Reflection is the structured decision produced once per iteration.
type Reflection struct {
	Assessment      Assessment `json:"assessment"`
	ProgressPercent int        `json:"progress_percent"`
	Confidence      float64    `json:"confidence"`
	NextAction      NextAction `json:"next_action"`
	ToolPlan        *ToolPlan  `json:"tool_plan,omitempty"`
	Response        string     `json:"response,omitempty"`
	Observations    []string   `json:"observations,omitempty"`
	Reasoning       string     `json:"reasoning,omitempty"`
}

// SyntheticStuck is the degraded reflection substituted after a reparse
// attempt also fails. It keeps the loop moving toward its stopping criteria
// instead of crashing on malformed model output.
func SyntheticStuck(reason string) Reflection {
	return Reflection{
		Assessment:   AssessStuck,
		NextAction:   ActionStop,
		Observations: []string{"reflection output was unparseable"},
		Reasoning:    reason,
	}
}

// ParseReflection decodes a semi-structured model response into a Reflection.
// It tolerates fenced code blocks and surrounding prose, but a response with
// no decodable JSON object (or out-of-vocabulary enum values) is a parse
// error the caller must handle explicitly — there is no silent fallback.
func ParseReflection(raw string) (Reflection, error) {
	payload := extractJSONObject(raw)
	if payload == "" {
		return Reflection{}, errmodel.Parse("no_json", "no JSON object in reflection output", map[string]any{"raw": raw})
	}
	var r Reflection
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return Reflection{}, errmodel.Parse("bad_json", "reflection is not valid JSON: "+err.Error(), map[string]any{"raw": payload})
	}
	switch r.Assessment {
	case AssessContinue, AssessComplete, AssessStuck, AssessError:
	case "":
		return Reflection{}, errmodel.Parse("missing_assessment", "reflection has no assessment", map[string]any{"raw": payload})
	default:
		return Reflection{}, errmodel.Parse("bad_assessment", "unknown assessment value", map[string]any{"assessment": string(r.Assessment)})
	}
	switch r.NextAction {
	case ActionUseTool, ActionRespond, ActionStop:
	case "":
		// Default follows the assessment: a completed task responds, the
		// rest stop deciding and loop.
		if r.Assessment == AssessComplete {
			r.NextAction = ActionRespond
		} else {
			r.NextAction = ActionStop
		}
	default:
		return Reflection{}, errmodel.Parse("bad_next_action", "unknown next_action value", map[string]any{"next_action": string(r.NextAction)})
	}
	if r.NextAction == ActionUseTool && (r.ToolPlan == nil || r.ToolPlan.Tool == "") {
		return Reflection{}, errmodel.Parse("missing_tool_plan", "next_action is use_tool but tool_plan is absent", map[string]any{"raw": payload})
	}
	r.ProgressPercent = clampInt(r.ProgressPercent, 0, 100)
	r.Confidence = clampFloat(r.Confidence, 0, 1)
	return r, nil
}

// extractJSONObject pulls the first top-level JSON object out of raw model
// output, stripping an optional ``` fence first.
func extractJSONObject(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		// Drop an optional language tag on the fence line.
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		}
		if j := strings.Index(rest, "```"); j >= 0 {
			s = strings.TrimSpace(rest[:j])
		} else {
			s = strings.TrimSpace(rest)
		}
	}
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
