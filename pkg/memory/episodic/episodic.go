// Package episodic ranks past task summaries against a query so an agent can
// recall what worked before. Entries are persisted append-only; term vectors
// are derived in memory and rebuilt whenever the corpus changes.
package episodic

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/wilhg/reflex/pkg/errmodel"
	"github.com/wilhg/reflex/pkg/similarity"
	"github.com/wilhg/reflex/pkg/store"
)

const (
	// DefaultFloor is the minimum cosine similarity for a match.
	DefaultFloor = 0.1
	// DefaultTopK is the maximum number of matches returned.
	DefaultTopK = 5
)

// Match pairs a stored entry with its similarity to the query.
type Match struct {
	Entry      store.EntryRecord
	Similarity float64
}

// Memory retrieves past entries relevant to the current task.
//
// Writes go through Add, which appends to the store and refits the term
// index over the full corpus so every vector searched against comes from
// the same vocabulary.
type Memory struct {
	store  store.EpisodicStore
	index  *similarity.Index
	logger *zap.Logger

	floor float64
	topK  int
}

// Option configures a Memory.
type Option func(*Memory)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Memory) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithFloor overrides the minimum similarity for a match.
func WithFloor(f float64) Option {
	return func(m *Memory) {
		if f >= 0 {
			m.floor = f
		}
	}
}

// WithTopK overrides the maximum number of matches returned.
func WithTopK(k int) Option {
	return func(m *Memory) {
		if k > 0 {
			m.topK = k
		}
	}
}

// New creates a Memory over the given store.
func New(st store.EpisodicStore, opts ...Option) *Memory {
	m := &Memory{
		store:  st,
		index:  similarity.New(),
		logger: zap.NewNop(),
		floor:  DefaultFloor,
		topK:   DefaultTopK,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Load refits the index from everything already in the store. Call once at
// startup; Add keeps the index current afterwards.
func (m *Memory) Load(ctx context.Context) error {
	return m.refit(ctx)
}

// Add appends an entry and refits the index over the full corpus. The
// append is durable even if the refit fails; the returned error then
// reports the stale index.
func (m *Memory) Add(ctx context.Context, e store.EntryRecord) (store.EntryRecord, error) {
	rec, err := m.store.AppendEntry(ctx, e)
	if err != nil {
		return store.EntryRecord{}, errmodel.Memory("EPISODIC_APPEND", "append entry", map[string]any{"entry_id": e.EntryID}, err)
	}
	if err := m.refit(ctx); err != nil {
		return rec, err
	}
	return rec, nil
}

func (m *Memory) refit(ctx context.Context) error {
	all, err := m.store.ListEntries(ctx, store.EntryFilter{})
	if err != nil {
		return errmodel.Memory("EPISODIC_REFIT", "list entries for refit", nil, err)
	}
	docs := make([]string, len(all))
	for i, rec := range all {
		docs[i] = rec.Summary
	}
	m.index.Fit(docs)
	return nil
}

// IndexVersion reports the current vocabulary version. It increments on
// every refit.
func (m *Memory) IndexVersion() int { return m.index.Version() }

// Search returns up to topK entries passing the filter, ranked by cosine
// similarity to the query, most similar first, newer entries winning ties.
// Matches below the similarity floor are dropped. An empty query skips
// ranking and returns the most recent entries with similarity 1.0.
//
// A store failure degrades to no matches rather than failing the caller:
// recall is advisory, losing it should not stop a task.
func (m *Memory) Search(ctx context.Context, query string, filter store.EntryFilter) []Match {
	entries, err := m.store.ListEntries(ctx, filter)
	if err != nil {
		m.logger.Warn("episodic search degraded, returning no matches", zap.Error(err))
		return nil
	}
	if len(entries) == 0 {
		return nil
	}

	if len(similarity.Tokenize(query)) == 0 {
		// No signal to rank on. Entries arrive newest first.
		n := min(m.topK, len(entries))
		out := make([]Match, 0, n)
		for _, e := range entries[:n] {
			out = append(out, Match{Entry: e, Similarity: 1.0})
		}
		return out
	}

	qv := m.index.Transform(query)
	matches := make([]Match, 0, len(entries))
	for _, e := range entries {
		sim := similarity.Cosine(qv, m.index.Transform(e.Summary))
		if sim < m.floor {
			continue
		}
		matches = append(matches, Match{Entry: e, Similarity: sim})
	}
	// Entries are newest first, so a stable sort keeps recency as the
	// tie-break.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > m.topK {
		matches = matches[:m.topK]
	}
	return matches
}
