// Package prompt holds the versioned prompt texts the loop sends to its
// provider. Prompts are linted on save so a bad edit fails fast instead of
// silently degrading reflection quality.
package prompt

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

// Prompt is one versioned prompt artifact.
type Prompt struct {
	Name    string
	Version int
	Body    string
	Meta    map[string]string
}

// Issue describes a lint finding.
type Issue struct {
	Rule    string
	Message string
}

// ErrLintFailed is returned by Save when lint finds issues.
var ErrLintFailed = errors.New("prompt failed lint checks")

// Lint checks a prompt before it is stored. Reflection prompts must keep
// the response contract intact: the loop parses the fields they name.
func Lint(p Prompt) []Issue {
	var issues []Issue
	if p.Name == "" {
		issues = append(issues, Issue{Rule: "name.required", Message: "name is required"})
	}
	if len(p.Body) == 0 {
		issues = append(issues, Issue{Rule: "body.required", Message: "body is empty"})
	}
	if secretLike(p.Body) {
		issues = append(issues, Issue{Rule: "security.secrets", Message: "body appears to contain secrets-like content"})
	}
	if strings.HasPrefix(p.Name, "reflection.") {
		for _, field := range []string{"assessment", "next_action", "progress_percent", "confidence"} {
			if !strings.Contains(p.Body, `"`+field+`"`) {
				issues = append(issues, Issue{Rule: "contract.field", Message: "body does not mention required field " + field})
			}
		}
	}
	return issues
}

func secretLike(s string) bool {
	if s == "" {
		return false
	}
	lower := strings.ToLower(s)
	for _, needle := range []string{"aws_secret_access_key", "begin private key", "sk-"} {
		if strings.Contains(lower, needle) {
			return true
		}
	}
	return false
}

// Store is an in-memory versioned prompt store.
type Store struct {
	mu   sync.RWMutex
	data map[string][]Prompt // name -> versions, ascending
}

// NewStore returns a store pre-seeded with the default prompt set.
func NewStore() *Store {
	s := &Store{data: make(map[string][]Prompt)}
	for _, p := range seeds() {
		// Seeds are maintained alongside Lint; a failure here is a bug.
		if _, _, err := s.Save(p); err != nil {
			panic("prompt: seed failed lint: " + p.Name)
		}
	}
	return s
}

// Save adds a new version, starting at 1 for a new name. Lint failures are
// reported through the issues slice alongside ErrLintFailed.
func (s *Store) Save(p Prompt) (Prompt, []Issue, error) {
	issues := Lint(p)
	if len(issues) > 0 {
		return Prompt{}, issues, ErrLintFailed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	versions := s.data[p.Name]
	next := 1
	if len(versions) > 0 {
		next = versions[len(versions)-1].Version + 1
	}
	np := Prompt{Name: p.Name, Version: next, Body: p.Body, Meta: p.Meta}
	s.data[p.Name] = append(versions, np)
	return np, nil, nil
}

// Get retrieves a specific version; version 0 means latest.
func (s *Store) Get(name string, version int) (Prompt, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions := s.data[name]
	if len(versions) == 0 {
		return Prompt{}, false
	}
	if version <= 0 {
		return versions[len(versions)-1], true
	}
	i := sort.Search(len(versions), func(i int) bool { return versions[i].Version >= version })
	if i < len(versions) && versions[i].Version == version {
		return versions[i], true
	}
	return Prompt{}, false
}

// List returns all versions for a name, ascending.
func (s *Store) List(name string) []Prompt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Prompt(nil), s.data[name]...)
}

// Diff returns a unified diff between two versions of a prompt, or "" when
// either version is missing or the bodies match.
func (s *Store) Diff(name string, v1, v2 int) string {
	p1, ok1 := s.Get(name, v1)
	p2, ok2 := s.Get(name, v2)
	if !ok1 || !ok2 {
		return ""
	}
	return UnifiedDiff(p1.Body, p2.Body)
}

// UnifiedDiff returns a minimal line diff between two strings.
func UnifiedDiff(a, b string) string {
	if a == b {
		return ""
	}
	var buf strings.Builder
	buf.WriteString("--- a\n+++ b\n")
	al := strings.Split(a, "\n")
	bl := strings.Split(b, "\n")
	i, j := 0, 0
	for i < len(al) || j < len(bl) {
		if i < len(al) && j < len(bl) && al[i] == bl[j] {
			i++
			j++
			continue
		}
		if i < len(al) {
			buf.WriteString("-" + al[i] + "\n")
			i++
		}
		if j < len(bl) {
			buf.WriteString("+" + bl[j] + "\n")
			j++
		}
	}
	return buf.String()
}
