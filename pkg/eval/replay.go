package eval

import (
	"context"
	"errors"
	"sync"

	"github.com/wilhg/reflex/pkg/adapters/llm"
	"github.com/wilhg/reflex/pkg/agent"
	"github.com/wilhg/reflex/pkg/runtime"
)

// ScriptedProvider replays canned reflection replies in order. Once the
// script is exhausted it keeps returning the last reply, so a script can
// end with a terminal reflection and stay consistent however many extra
// passes the loop makes.
type ScriptedProvider struct {
	mu      sync.Mutex
	replies []string
	calls   int
}

// NewScriptedProvider creates a provider from a fixed reply script.
func NewScriptedProvider(replies ...string) *ScriptedProvider {
	return &ScriptedProvider{replies: replies}
}

func (s *ScriptedProvider) Name() string { return "scripted" }

// Generate returns the next scripted reply.
func (s *ScriptedProvider) Generate(_ context.Context, _ []llm.Message, _ map[string]any) (llm.GenerateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.replies) == 0 {
		return llm.GenerateResult{}, errors.New("script is empty")
	}
	idx := s.calls
	s.calls++
	if idx >= len(s.replies) {
		idx = len(s.replies) - 1
	}
	return llm.GenerateResult{Text: s.replies[idx], Model: "scripted"}, nil
}

// Calls reports how many times the provider was invoked.
func (s *ScriptedProvider) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// ReplaySession runs a task against a scripted provider and returns the
// terminal result. Used to regression-test prompt or loop changes against
// captured provider behavior without network access.
func ReplaySession(ctx context.Context, registry *agent.Registry, task agent.Task, replies []string, opts ...runtime.RunnerOption) (agent.SessionResult, error) {
	r := runtime.NewRunner(NewScriptedProvider(replies...), registry, opts...)
	return r.Run(ctx, task)
}
