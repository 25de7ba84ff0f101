package assembler

import (
	"strings"
	"testing"
)

// charEstimator makes budgets easy to reason about in tests.
func charEstimator(s string) int { return len(s) }

func TestAssembleKeepsGivenOrder(t *testing.T) {
	a := New(WithTokenEstimator(charEstimator))
	frame, log := a.Assemble([]Section{
		{Name: "system", Text: "be helpful", Pinned: true},
		{Name: "task", Text: "goal text", Pinned: true},
		{Name: "history", Text: "did things", Priority: 5},
	})
	if len(log.Dropped) != 0 {
		t.Fatalf("dropped=%v want none", log.Dropped)
	}
	si := strings.Index(frame, "## system")
	ti := strings.Index(frame, "## task")
	hi := strings.Index(frame, "## history")
	if si < 0 || ti < 0 || hi < 0 || !(si < ti && ti < hi) {
		t.Fatalf("section order wrong:\n%s", frame)
	}
}

func TestAssembleDropsLowPriorityFirst(t *testing.T) {
	a := New(WithTokenEstimator(charEstimator), WithMaxTokens(30))
	frame, log := a.Assemble([]Section{
		{Name: "system", Text: "0123456789", Pinned: true},         // 10
		{Name: "memory", Text: "0123456789", Priority: 2},          // 10
		{Name: "history", Text: "0123456789abcdefghij", Priority: 8}, // 20
	})
	// Pinned takes 10, history (priority 8) takes 20, memory does not fit.
	if len(log.Dropped) != 1 || log.Dropped[0] != "memory" {
		t.Fatalf("dropped=%v want [memory]", log.Dropped)
	}
	if log.IncludedTokens != 30 {
		t.Fatalf("included=%d want 30", log.IncludedTokens)
	}
	if !strings.Contains(frame, "## history") || strings.Contains(frame, "## memory") {
		t.Fatalf("frame:\n%s", frame)
	}
}

func TestAssemblePinnedBeatsPriority(t *testing.T) {
	a := New(WithTokenEstimator(charEstimator), WithMaxTokens(10))
	_, log := a.Assemble([]Section{
		{Name: "big", Text: "0123456789abcdefghij", Priority: 100},
		{Name: "system", Text: "0123456789", Pinned: true},
	})
	if log.Dropped[0] != "big" {
		t.Fatalf("dropped=%v want [big]", log.Dropped)
	}
	if log.IncludedTokens != 10 {
		t.Fatalf("included=%d want 10", log.IncludedTokens)
	}
}

func TestAssembleSkipsEmptySections(t *testing.T) {
	a := New(WithTokenEstimator(charEstimator))
	frame, log := a.Assemble([]Section{
		{Name: "guidance", Text: "   "},
		{Name: "task", Text: "goal", Pinned: true},
	})
	if strings.Contains(frame, "guidance") {
		t.Fatalf("empty section rendered:\n%s", frame)
	}
	if len(log.Dropped) != 0 {
		t.Fatalf("dropped=%v want none, empty sections cost nothing", log.Dropped)
	}
}

func TestAssembleDeterministic(t *testing.T) {
	a := New(WithTokenEstimator(charEstimator), WithMaxTokens(25))
	sections := []Section{
		{Name: "system", Text: "sys prompt", Pinned: true},
		{Name: "a", Text: "aaaaa", Priority: 3},
		{Name: "b", Text: "bbbbb", Priority: 3},
		{Name: "c", Text: "ccccc", Priority: 3},
	}
	first, _ := a.Assemble(sections)
	for i := 0; i < 10; i++ {
		again, _ := a.Assemble(sections)
		if again != first {
			t.Fatalf("assembly not deterministic:\n%s\nvs\n%s", first, again)
		}
	}
}
