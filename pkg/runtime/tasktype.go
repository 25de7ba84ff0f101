package runtime

import "strings"

// Task types used to key guidance and memory filters.
const (
	TaskResearch        = "research"
	TaskMultiStep       = "multi-step"
	TaskSelfImprovement = "self-improvement"
	TaskDocumentation   = "documentation"
	TaskSimple          = "simple"
)

// InferTaskType classifies a goal by keyword. Checks run in specificity
// order; a goal matching nothing is "simple".
func InferTaskType(goal string) string {
	g := strings.ToLower(goal)
	contains := func(needles ...string) bool {
		for _, n := range needles {
			if strings.Contains(g, n) {
				return true
			}
		}
		return false
	}
	switch {
	case contains("your own", "yourself", "improve your", "self-improve"):
		return TaskSelfImprovement
	case contains("document", "readme", "changelog", "write a guide", "docs"):
		return TaskDocumentation
	case contains("research", "investigate", "find out", "look up", "search for", "compare"):
		return TaskResearch
	case contains(" then ", "step by step", "first,", "after that", "finally"):
		return TaskMultiStep
	default:
		return TaskSimple
	}
}
