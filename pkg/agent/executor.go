package agent

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ToolCall names a tool and its arguments for batch dispatch.
type ToolCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// Executor runs registered tools under a deadline and an output byte cap.
// Execute never returns an error: every failure mode is folded into the
// ToolResult so the loop can absorb it as an observation.
type Executor struct {
	reg       *Registry
	validator *Validator
	timeout   time.Duration
	outputCap int
	allowed   map[string]bool
	logger    *zap.Logger
}

// ExecutorOption configures the Executor at construction time.
type ExecutorOption func(*Executor)

// WithTimeout sets the per-call deadline. Defaults to DefaultToolTimeout.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithOutputCap sets the output byte cap. Defaults to DefaultToolOutputCap.
func WithOutputCap(n int) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.outputCap = n
		}
	}
}

// WithPermissions grants the permission set tools are checked against.
func WithPermissions(allowed map[string]bool) ExecutorOption {
	return func(e *Executor) { e.allowed = allowed }
}

// WithLogger sets the executor logger. Defaults to zap.NewNop().
func WithLogger(l *zap.Logger) ExecutorOption {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExecutor constructs an Executor over the given registry.
func NewExecutor(reg *Registry, opts ...ExecutorOption) *Executor {
	e := &Executor{
		reg:       reg,
		validator: NewValidator(),
		timeout:   DefaultToolTimeout,
		outputCap: DefaultToolOutputCap,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs one tool by name. Unknown names fail closed with no side
// effect. A call exceeding the deadline is cancelled and reported as
// "timed out". Output beyond the cap is truncated (prefix kept) and flagged.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]any) ToolResult {
	tr := otel.Tracer("agent/executor")
	ctx, span := tr.Start(ctx, "Executor.Execute", trace.WithAttributes(
		attribute.String("tool.name", name),
	))
	defer span.End()

	start := time.Now()
	fail := func(msg string) ToolResult {
		res := ToolResult{Tool: name, Args: args, Success: false, Error: msg, ElapsedMs: time.Since(start).Milliseconds()}
		span.SetAttributes(attribute.String("tool.error", msg))
		return res
	}

	tool, ok := e.reg.Resolve(name)
	if !ok || tool == nil {
		return fail("not found")
	}
	desc := tool.Describe()
	for _, p := range desc.Permissions {
		if !e.allowed[p.Name] {
			return fail("permission denied: " + p.Name)
		}
	}
	if err := e.validator.Validate(desc.InputSchema, args); err != nil {
		return fail("invalid args: " + err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type outcome struct {
		out map[string]any
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		out, err := tool.Invoke(ctx, args)
		done <- outcome{out: out, err: err}
	}()

	select {
	case <-ctx.Done():
		e.logger.Warn("tool timed out", zap.String("tool", name), zap.Duration("timeout", e.timeout))
		return fail("timed out")
	case oc := <-done:
		elapsed := time.Since(start).Milliseconds()
		if oc.err != nil {
			// The deadline may fire inside the tool before our select sees it.
			if ctx.Err() != nil {
				return fail("timed out")
			}
			e.logger.Warn("tool failed", zap.String("tool", name), zap.Error(oc.err))
			return ToolResult{Tool: name, Args: args, Success: false, Error: oc.err.Error(), ElapsedMs: elapsed}
		}
		if err := e.validator.Validate(desc.OutputSchema, oc.out); err != nil {
			return ToolResult{Tool: name, Args: args, Success: false, Error: "invalid output: " + err.Error(), ElapsedMs: elapsed}
		}
		output, truncated := encodeOutput(oc.out, e.outputCap)
		return ToolResult{
			Tool:      name,
			Args:      args,
			Output:    output,
			Success:   true,
			Truncated: truncated,
			ElapsedMs: elapsed,
		}
	}
}

// ExecuteBatch dispatches several calls concurrently and returns results in
// call order. The reflection loop issues one call at a time; this exists for
// callers that want fan-out.
func (e *Executor) ExecuteBatch(ctx context.Context, calls []ToolCall) []ToolResult {
	results := make([]ToolResult, len(calls))
	var wg sync.WaitGroup
	for i, c := range calls {
		wg.Add(1)
		go func(i int, c ToolCall) {
			defer wg.Done()
			results[i] = e.Execute(ctx, c.Name, c.Args)
		}(i, c)
	}
	wg.Wait()
	return results
}

// Truncate caps s at n bytes keeping the prefix. Idempotent: truncating an
// already-truncated string with the same cap returns the same bytes.
func Truncate(s string, n int) (string, bool) {
	if n <= 0 || len(s) <= n {
		return s, false
	}
	return s[:n], true
}

// encodeOutput renders the tool output map as deterministic JSON (Go sorts
// map keys) and applies the byte cap.
func encodeOutput(out map[string]any, limit int) (string, bool) {
	if len(out) == 0 {
		return "", false
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", false
	}
	return Truncate(string(b), limit)
}
