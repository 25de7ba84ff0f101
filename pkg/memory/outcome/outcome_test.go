package outcome

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/wilhg/reflex/pkg/store"
	"github.com/wilhg/reflex/pkg/store/sqlstore"
)

func newTestTracker(t *testing.T, name string) *Tracker {
	t.Helper()
	ctx := context.Background()
	st, err := sqlstore.Open(ctx, "sqlite:file:"+name+"?mode=memory&cache=shared&_pragma=busy_timeout(5000)")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if err := st.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	return New(st, nil)
}

func TestGuidanceEmptyHistory(t *testing.T) {
	tr := newTestTracker(t, "emptyhist")
	g, err := tr.Guidance(context.Background(), "research")
	if err != nil {
		t.Fatal(err)
	}
	if g.TaskType != "research" || g.Sessions != 0 || g.SuccessRate != 0 {
		t.Fatalf("got %+v want zero guidance", g)
	}
}

func TestGuidanceAggregates(t *testing.T) {
	tr := newTestTracker(t, "agg")
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	seed := []store.OutcomeRecord{
		{OutcomeID: "o1", TaskType: "research", Success: true, ToolsUsed: []string{"http_get", "file_write"}, Iterations: 3, CreatedAt: base},
		{OutcomeID: "o2", TaskType: "research", Success: true, ToolsUsed: []string{"http_get"}, Iterations: 5, CreatedAt: base.Add(time.Minute)},
		{OutcomeID: "o3", TaskType: "research", Success: false, ToolsUsed: []string{"shell_exec"}, Iterations: 15, CreatedAt: base.Add(2 * time.Minute)},
		{OutcomeID: "o4", TaskType: "research", Success: true, ToolsUsed: []string{"http_get", "http_get"}, Iterations: 4, CreatedAt: base.Add(3 * time.Minute)},
	}
	for _, o := range seed {
		if _, err := tr.Record(ctx, o); err != nil {
			t.Fatal(err)
		}
	}

	g, err := tr.Guidance(ctx, "research")
	if err != nil {
		t.Fatal(err)
	}
	if g.Sessions != 4 {
		t.Fatalf("sessions=%d want 4", g.Sessions)
	}
	if g.SuccessRate != 0.75 {
		t.Fatalf("success_rate=%v want 0.75", g.SuccessRate)
	}
	// Median of successful iterations 3, 4, 5.
	if g.TypicalIterations != 4 {
		t.Fatalf("typical_iterations=%d want 4", g.TypicalIterations)
	}

	if len(g.ToolStats) != 3 {
		t.Fatalf("tool stats len=%d want 3: %+v", len(g.ToolStats), g.ToolStats)
	}
	// http_get used in 3 sessions (duplicate within a session counts once),
	// all successful.
	top := g.ToolStats[0]
	if top.Name != "http_get" || top.Uses != 3 || top.SuccessRate != 1.0 {
		t.Fatalf("top tool stat: %+v", top)
	}

	found := false
	for _, h := range g.Hints {
		if strings.Contains(h, "http_get") {
			found = true
		}
	}
	if !found {
		t.Fatalf("hints missing strong-tool hint: %v", g.Hints)
	}
}

func TestGuidanceLowSuccessHint(t *testing.T) {
	tr := newTestTracker(t, "lowrate")
	ctx := context.Background()
	for i, ok := range []bool{false, false, true, false} {
		if _, err := tr.Record(ctx, store.OutcomeRecord{
			OutcomeID: string(rune('a' + i)), TaskType: "multi-step", Success: ok,
			Iterations: 10, CreatedAt: time.Now().UTC(),
		}); err != nil {
			t.Fatal(err)
		}
	}
	g, err := tr.Guidance(ctx, "multi-step")
	if err != nil {
		t.Fatal(err)
	}
	if g.SuccessRate != 0.25 {
		t.Fatalf("success_rate=%v want 0.25", g.SuccessRate)
	}
	found := false
	for _, h := range g.Hints {
		if strings.Contains(h, "reconsider") {
			found = true
		}
	}
	if !found {
		t.Fatalf("hints missing low-success warning: %v", g.Hints)
	}
}

type brokenOutcomes struct{}

func (brokenOutcomes) AppendOutcome(context.Context, store.OutcomeRecord) (store.OutcomeRecord, error) {
	return store.OutcomeRecord{}, errors.New("disk gone")
}

func (brokenOutcomes) ListOutcomes(context.Context, string) ([]store.OutcomeRecord, error) {
	return nil, errors.New("disk gone")
}

func TestGuidanceStoreError(t *testing.T) {
	tr := New(brokenOutcomes{}, nil)
	g, err := tr.Guidance(context.Background(), "simple")
	if err == nil {
		t.Fatal("want error")
	}
	if g.TaskType != "simple" || g.Sessions != 0 {
		t.Fatalf("got %+v want zero guidance with task type", g)
	}
}
