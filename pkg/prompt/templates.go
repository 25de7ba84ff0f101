package prompt

// Well-known prompt names. The loop looks these up by name and always takes
// the latest version, so operators can hot-swap wording without a rebuild.
const (
	NameReflectionSystem  = "reflection.system"
	NameReflectionReparse = "reflection.reparse"
	guidancePrefix        = "guidance."
)

const reflectionSystemBody = `You are the reflection step of an autonomous agent working on a task.

Given the goal, past experience, and the history of what has been done so
far, decide what to do next. Respond with a single JSON object and nothing
else:

{
  "assessment": one of "continue", "complete", "stuck", "error",
  "reasoning": a short explanation of the assessment,
  "next_action": one of "use_tool", "respond", "stop",
  "tool_plan": {"tool": name, "purpose": why, "args": object} when next_action is "use_tool",
  "response": the final answer text when next_action is "respond",
  "progress_percent": integer 0-100, how far along the goal is,
  "confidence": number 0.0-1.0, how sure you are of this assessment
}

Rules:
- "complete" means the goal is met; pair it with next_action "respond" and
  include the final response.
- "stuck" means repeating the same steps is not helping; say why.
- Use only the tools listed in the prompt. Never invent tool names.
- Keep "reasoning" under three sentences.`

const reflectionReparseBody = `Your previous reply could not be parsed. Reply again with ONLY a single
valid JSON object, no prose and no code fences, with the fields
"assessment", "reasoning", "next_action", "progress_percent", and "confidence"
(plus "tool_plan" or "response" as the action requires).`

// guidanceBodies carries the per-task-type framing added to the system
// section. Keys match the task types the loop infers.
var guidanceBodies = map[string]string{
	"research": `This is a research task. Prefer gathering sources before concluding.
Cross-check claims against at least two results and cite where each fact
came from in the final response.`,
	"multi-step": `This is a multi-step task. Break the goal into ordered steps, finish one
step before starting the next, and restate remaining steps in your
reasoning so progress stays visible.`,
	"self-improvement": `This task changes the agent's own working material. Be conservative:
verify the current state before editing, keep changes minimal, and confirm
the result after each change.`,
	"documentation": `This is a documentation task. Favor clear structure over completeness of
detail, and end with a final response containing the finished text rather
than a description of it.`,
	"simple": `This is a simple task. Aim to finish in very few iterations; if the goal
can be answered directly, respond without using tools.`,
}

func seeds() []Prompt {
	out := []Prompt{
		{Name: NameReflectionSystem, Body: reflectionSystemBody},
		{Name: NameReflectionReparse, Body: reflectionReparseBody},
	}
	for taskType, body := range guidanceBodies {
		out = append(out, Prompt{Name: guidancePrefix + taskType, Body: body})
	}
	return out
}

// System returns the latest reflection system prompt.
func (s *Store) System() string {
	p, _ := s.Get(NameReflectionSystem, 0)
	return p.Body
}

// Reparse returns the corrective instruction sent after a parse failure.
func (s *Store) Reparse() string {
	p, _ := s.Get(NameReflectionReparse, 0)
	return p.Body
}

// Guidance returns the task-type framing, or "" for unknown types.
func (s *Store) Guidance(taskType string) string {
	p, ok := s.Get(guidancePrefix+taskType, 0)
	if !ok {
		return ""
	}
	return p.Body
}
