// Package assembler builds the reflection prompt from prioritized sections
// under a token budget. Assembly is deterministic: the same sections and
// budget always produce the same frame.
package assembler

import (
	"sort"
	"strings"
)

// Section is one block of the reflection prompt.
type Section struct {
	// Name labels the block in the rendered frame and in drop logs.
	Name string
	Text string
	// Pinned sections are budgeted first and never dropped in favor of
	// unpinned ones.
	Pinned bool
	// Priority orders unpinned sections when the budget forces drops.
	// Higher survives longer.
	Priority int
}

// Log summarizes an assembly decision.
type Log struct {
	IncludedTokens int
	Dropped        []string // section names excluded by the budget
}

// TokenEstimator estimates token usage of text.
type TokenEstimator func(text string) int

// Assembler renders prompt frames under a token budget.
type Assembler struct {
	estimate  TokenEstimator
	maxTokens int
}

// Option configures the Assembler.
type Option func(*Assembler)

// WithTokenEstimator sets the token estimator. Defaults to a rune-count
// heuristic of roughly four runes per token.
func WithTokenEstimator(est TokenEstimator) Option {
	return func(a *Assembler) {
		if est != nil {
			a.estimate = est
		}
	}
}

// WithMaxTokens sets the frame budget.
func WithMaxTokens(n int) Option {
	return func(a *Assembler) {
		if n > 0 {
			a.maxTokens = n
		}
	}
}

// New creates an Assembler.
func New(opts ...Option) *Assembler {
	a := &Assembler{
		estimate:  func(s string) int { return len([]rune(s))/4 + 1 },
		maxTokens: 1_000_000_000,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble selects sections under the budget and renders them in their
// given order. Pinned sections are budgeted first, then unpinned ones by
// descending priority; within equal priority the earlier section wins.
// Empty sections are skipped without charge.
func (a *Assembler) Assemble(sections []Section) (string, Log) {
	type candidate struct {
		idx  int
		cost int
	}
	var pinned, others []candidate
	for i, s := range sections {
		if strings.TrimSpace(s.Text) == "" {
			continue
		}
		c := candidate{idx: i, cost: a.estimate(s.Text)}
		if s.Pinned {
			pinned = append(pinned, c)
		} else {
			others = append(others, c)
		}
	}
	sort.SliceStable(others, func(i, j int) bool {
		return sections[others[i].idx].Priority > sections[others[j].idx].Priority
	})

	budget := a.maxTokens
	included := make(map[int]bool, len(sections))
	log := Log{}
	take := func(c candidate) {
		if c.cost > budget {
			log.Dropped = append(log.Dropped, sections[c.idx].Name)
			return
		}
		budget -= c.cost
		log.IncludedTokens += c.cost
		included[c.idx] = true
	}
	for _, c := range pinned {
		take(c)
	}
	for _, c := range others {
		take(c)
	}

	var buf strings.Builder
	for i, s := range sections {
		if !included[i] {
			continue
		}
		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		if s.Name != "" {
			buf.WriteString("## " + s.Name + "\n")
		}
		buf.WriteString(strings.TrimRight(s.Text, "\n"))
	}
	return buf.String(), log
}
