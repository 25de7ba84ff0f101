// Package similarity implements a sparse term-weighted (TF-IDF) index over
// free-text documents with cosine nearest-neighbor search.
//
// The index trades write cost for query-time consistency: Fit recomputes the
// vocabulary from scratch and swaps it in atomically, so readers never see a
// half-applied refit. Callers that store vectors must re-derive them after
// every Fit; Version lets them detect a stale embedding.
package similarity

import (
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// Vector is a sparse term→weight embedding. Vectors produced by Transform
// are L2-normalized.
type Vector map[string]float64

// Index is safe for concurrent use. Fit swaps an immutable snapshot; reads
// only ever observe a complete vocabulary.
type Index struct {
	mu   sync.RWMutex
	snap *snapshot
}

// snapshot is the immutable fitted state.
type snapshot struct {
	version  int
	docCount int
	idf      map[string]float64
}

// New creates an unfitted index. Until Fit is called every similarity is 0.
func New() *Index {
	return &Index{snap: &snapshot{idf: map[string]float64{}}}
}

// Fit recomputes term weights from scratch over the given corpus and
// atomically replaces the previous vocabulary. O(total tokens).
func (x *Index) Fit(docs []string) {
	df := make(map[string]int)
	for _, d := range docs {
		seen := make(map[string]struct{})
		for _, tok := range Tokenize(d) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}
	n := len(docs)
	idf := make(map[string]float64, len(df))
	for term, count := range df {
		// Smoothed IDF keeps single-document corpora useful.
		idf[term] = math.Log(float64(1+n)/float64(1+count)) + 1
	}
	x.mu.Lock()
	x.snap = &snapshot{version: x.snap.version + 1, docCount: n, idf: idf}
	x.mu.Unlock()
}

// Version returns the fit generation, starting at 0 for an unfitted index.
func (x *Index) Version() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.snap.version
}

// DocCount returns the corpus size of the current fit.
func (x *Index) DocCount() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.snap.docCount
}

// Transform projects text into the current vocabulary. Terms absent from
// the vocabulary contribute zero weight; there is no query-time vocabulary
// growth. The result is L2-normalized.
func (x *Index) Transform(text string) Vector {
	x.mu.RLock()
	snap := x.snap
	x.mu.RUnlock()

	toks := Tokenize(text)
	if len(toks) == 0 || len(snap.idf) == 0 {
		return Vector{}
	}
	tf := make(map[string]int)
	for _, tok := range toks {
		tf[tok]++
	}
	v := make(Vector)
	var norm float64
	for term, count := range tf {
		w, ok := snap.idf[term]
		if !ok {
			continue
		}
		weight := float64(count) / float64(len(toks)) * w
		v[term] = weight
		norm += weight * weight
	}
	if norm == 0 {
		return Vector{}
	}
	norm = math.Sqrt(norm)
	for term := range v {
		v[term] /= norm
	}
	return v
}

// Cosine returns the cosine similarity of two sparse vectors in [0, 1].
// Degenerate inputs (empty vectors) yield 0.
func Cosine(a, b Vector) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot, na, nb float64
	for term, w := range a {
		na += w * w
		if bw, ok := b[term]; ok {
			dot += w * bw
		}
	}
	for _, w := range b {
		nb += w * w
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	// Clamp accumulated float error.
	if sim > 1 {
		sim = 1
	}
	if sim < 0 {
		sim = 0
	}
	return sim
}

// TopTerms returns the n highest-weighted terms of v, weight descending,
// ties broken alphabetically.
func TopTerms(v Vector, n int) []string {
	terms := make([]string, 0, len(v))
	for term := range v {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		wi, wj := v[terms[i]], v[terms[j]]
		if wi != wj {
			return wi > wj
		}
		return terms[i] < terms[j]
	})
	if n > 0 && len(terms) > n {
		terms = terms[:n]
	}
	return terms
}

// stopwords are dropped during tokenization; they carry no ranking signal.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "for": {}, "from": {}, "has": {}, "in": {}, "is": {}, "it": {},
	"of": {}, "on": {}, "or": {}, "that": {}, "the": {}, "to": {}, "was": {},
	"were": {}, "will": {}, "with": {},
}

// Tokenize lowercases text and splits it into letter/digit runs, dropping
// stopwords and single-character tokens.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, ok := stopwords[f]; ok {
			continue
		}
		out = append(out, f)
	}
	return out
}
