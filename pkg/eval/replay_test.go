package eval

import (
	"context"
	"testing"

	"github.com/wilhg/reflex/pkg/agent"
)

type pingTool struct{}

func (pingTool) Describe() agent.ToolDescriptor {
	return agent.ToolDescriptor{
		Name:         "ping",
		Description:  "returns pong",
		InputSchema:  []byte(`{"type":"object","additionalProperties":false}`),
		OutputSchema: []byte(`{"type":"object","properties":{"pong":{"type":"boolean"}},"required":["pong"],"additionalProperties":false}`),
	}
}

func (pingTool) Invoke(_ context.Context, _ map[string]any) (map[string]any, error) {
	return map[string]any{"pong": true}, nil
}

func TestReplaySession(t *testing.T) {
	reg := agent.NewRegistry()
	if err := reg.Register(pingTool{}); err != nil {
		t.Fatal(err)
	}
	replies := []string{
		`{"assessment":"continue","next_action":"use_tool","progress_percent":50,"confidence":0.7,"tool_plan":{"tool":"ping","args":{}}}`,
		`{"assessment":"complete","next_action":"respond","progress_percent":100,"confidence":0.9,"response":"pong received"}`,
	}
	task := agent.NewTask("check the ping tool", agent.RunConfig{})

	res, err := ReplaySession(context.Background(), reg, task, replies)
	if err != nil {
		t.Fatal(err)
	}
	if res.Reason != agent.StopTaskComplete {
		t.Fatalf("reason=%s", res.Reason)
	}
	if res.IterationsCompleted != 2 {
		t.Fatalf("iterations=%d want 2", res.IterationsCompleted)
	}
	if res.Output != "pong received" {
		t.Fatalf("output=%q", res.Output)
	}
}

func TestScriptedProviderRepeatsLastReply(t *testing.T) {
	p := NewScriptedProvider("only")
	for i := 0; i < 3; i++ {
		res, err := p.Generate(context.Background(), nil, nil)
		if err != nil {
			t.Fatal(err)
		}
		if res.Text != "only" {
			t.Fatalf("text=%q", res.Text)
		}
	}
	if p.Calls() != 3 {
		t.Fatalf("calls=%d", p.Calls())
	}
}
