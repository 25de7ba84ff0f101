package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

type flakyLLM struct {
	failures int
	calls    int
}

func (f *flakyLLM) Name() string { return "flaky" }

func (f *flakyLLM) Generate(ctx context.Context, _ []Message, _ map[string]any) (GenerateResult, error) {
	f.calls++
	if f.calls <= f.failures {
		return GenerateResult{}, errors.New("transient")
	}
	return GenerateResult{Text: "ok", Model: "test"}, nil
}

func TestRetrySucceedsAfterTransientFailure(t *testing.T) {
	inner := &flakyLLM{failures: 2}
	r := WithRetry(inner, WithMaxAttempts(3))
	res, err := r.Generate(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Text != "ok" {
		t.Fatalf("text=%q", res.Text)
	}
	if inner.calls != 3 {
		t.Fatalf("calls=%d want 3", inner.calls)
	}
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	inner := &flakyLLM{failures: 10}
	r := WithRetry(inner, WithMaxAttempts(2))
	_, err := r.Generate(context.Background(), nil, nil)
	if err == nil {
		t.Fatal("want error")
	}
	if inner.calls != 2 {
		t.Fatalf("calls=%d want 2", inner.calls)
	}
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	inner := &flakyLLM{failures: 100}
	r := WithRetry(inner, WithMaxAttempts(10))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	_, err := r.Generate(ctx, nil, nil)
	if err == nil {
		t.Fatal("want error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("canceled context retried for %v", elapsed)
	}
}

func TestRegistryRoundTrip(t *testing.T) {
	name := "test-roundtrip"
	if err := Register(name, func(ctx context.Context, cfg map[string]any) (LLM, error) {
		return &flakyLLM{}, nil
	}); err != nil {
		t.Fatal(err)
	}
	if err := Register(name, nil); err == nil {
		t.Fatal("nil factory accepted")
	}
	m, err := New(context.Background(), name, nil)
	if err != nil {
		t.Fatal(err)
	}
	if m.Name() != "flaky" {
		t.Fatalf("name=%q", m.Name())
	}
	if _, err := New(context.Background(), "nope", nil); err == nil {
		t.Fatal("unregistered provider resolved")
	}
}
