//go:build integration

package sqlstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/wilhg/reflex/pkg/store"
)

func TestPostgresStoreFlow(t *testing.T) {
	ctx := context.Background()
	pg, err := tcpostgres.RunContainer(ctx,
		tcpostgres.WithDatabase("reflex"),
		tcpostgres.WithUsername("reflex"),
		tcpostgres.WithPassword("reflex"),
		tcpostgres.WithSQLDriver("pgx"),
	)
	if err != nil {
		t.Skipf("skip: cannot start postgres: %v", err)
	}
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}

	st, err := Open(ctx, fmt.Sprintf("postgres://%s", dsn))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })

	if err := st.Migrate(ctx); err != nil {
		t.Fatal(err)
	}

	base := time.Now().UTC().Truncate(time.Microsecond)
	if _, err := st.AppendEntry(ctx, store.EntryRecord{
		EntryID: "pg1", SessionID: "s1", TaskType: "research",
		Summary: "first", Outcome: "success", Score: 60, CreatedAt: base,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := st.AppendEntry(ctx, store.EntryRecord{
		EntryID: "pg2", SessionID: "s1", TaskType: "research",
		Summary: "second", Outcome: "failure", Score: 20, CreatedAt: base.Add(time.Second),
	}); err != nil {
		t.Fatal(err)
	}

	// Duplicate append must not error and must keep the original row.
	if _, err := st.AppendEntry(ctx, store.EntryRecord{
		EntryID: "pg1", SessionID: "s1", TaskType: "research",
		Summary: "overwrite attempt", Outcome: "success", Score: 99,
	}); err != nil {
		t.Fatal(err)
	}

	got, err := st.ListEntries(ctx, store.EntryFilter{TaskType: "research"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("len=%d want 2", len(got))
	}
	if got[0].EntryID != "pg2" || got[1].EntryID != "pg1" {
		t.Fatalf("order=%s,%s want pg2,pg1", got[0].EntryID, got[1].EntryID)
	}
	if got[1].Summary != "first" {
		t.Fatalf("duplicate append overwrote row: %+v", got[1])
	}

	if _, err := st.AppendOutcome(ctx, store.OutcomeRecord{
		OutcomeID: "po1", TaskType: "research", Success: true,
		ToolsUsed: []string{"http_get"}, Iterations: 3, CreatedAt: base,
	}); err != nil {
		t.Fatal(err)
	}
	outs, err := st.ListOutcomes(ctx, "research")
	if err != nil {
		t.Fatal(err)
	}
	if len(outs) != 1 || !outs[0].Success {
		t.Fatalf("outcomes round-trip: %+v", outs)
	}
}
