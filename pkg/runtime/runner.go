// Package runtime drives the reflect/act loop: each pass asks the provider
// for a structured reflection, executes the chosen action, and re-checks
// the stopping criteria until one fires. Every session ends with exactly
// one SessionResult; there is no silent failure path.
package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wilhg/reflex/pkg/adapters/llm"
	"github.com/wilhg/reflex/pkg/agent"
	"github.com/wilhg/reflex/pkg/events"
	"github.com/wilhg/reflex/pkg/memory/episodic"
	"github.com/wilhg/reflex/pkg/memory/outcome"
	"github.com/wilhg/reflex/pkg/prompt"
	"github.com/wilhg/reflex/pkg/runtime/assembler"
	"github.com/wilhg/reflex/pkg/store"
)

// historyTail bounds how many recent iterations are rendered into the
// reflection prompt.
const historyTail = 5

// completeConfidence is the minimum confidence a "complete" assessment needs
// to terminate the session. A less confident completion claim stays in the
// history for the next reflection to reconsider.
const completeConfidence = 0.9

// Runner owns the loop for one or more sessions.
type Runner struct {
	provider  llm.LLM
	registry  *agent.Registry
	prompts   *prompt.Store
	episodic  *episodic.Memory
	outcomes  *outcome.Tracker
	emitter   *events.Emitter
	estimator assembler.TokenEstimator
	logger    *zap.Logger

	mu    sync.Mutex
	stops map[string]chan struct{} // session id -> stop signal
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithEpisodic attaches episodic memory. Without it the loop runs
// memoryless.
func WithEpisodic(m *episodic.Memory) RunnerOption {
	return func(r *Runner) { r.episodic = m }
}

// WithOutcomes attaches outcome history.
func WithOutcomes(t *outcome.Tracker) RunnerOption {
	return func(r *Runner) { r.outcomes = t }
}

// WithEmitter sets the event emitter. Defaults to a private one.
func WithEmitter(e *events.Emitter) RunnerOption {
	return func(r *Runner) {
		if e != nil {
			r.emitter = e
		}
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithPrompts sets the prompt store. Defaults to the seeded store.
func WithPrompts(p *prompt.Store) RunnerOption {
	return func(r *Runner) {
		if p != nil {
			r.prompts = p
		}
	}
}

// WithTokenEstimator sets the estimator for frame budgeting.
func WithTokenEstimator(est assembler.TokenEstimator) RunnerOption {
	return func(r *Runner) { r.estimator = est }
}

// NewRunner constructs a Runner around a provider and a tool registry.
func NewRunner(provider llm.LLM, registry *agent.Registry, opts ...RunnerOption) *Runner {
	r := &Runner{
		provider: provider,
		registry: registry,
		prompts:  prompt.NewStore(),
		logger:   zap.NewNop(),
		stops:    make(map[string]chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.emitter == nil {
		r.emitter = events.NewEmitter()
	}
	return r
}

// Events returns the runner's emitter for subscribing to loop progress.
func (r *Runner) Events() *events.Emitter { return r.emitter }

// Stop requests cooperative termination of all active sessions. The loop
// finishes its current pass and ends with reason UserStop.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, ch := range r.stops {
		close(ch)
		delete(r.stops, id)
	}
}

func (r *Runner) registerStop(sessionID string) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := make(chan struct{})
	r.stops[sessionID] = ch
	return ch
}

func (r *Runner) unregisterStop(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.stops, sessionID)
}

// Run executes the loop for one task until a stopping criterion fires.
// The returned error covers invalid input only; runtime trouble (provider
// failures, unparseable reflections, tool errors) is absorbed into the
// loop and surfaces through the result's stop reason.
func (r *Runner) Run(ctx context.Context, task agent.Task) (agent.SessionResult, error) {
	if strings.TrimSpace(task.Goal) == "" {
		return agent.SessionResult{}, errors.New("task goal is empty")
	}
	cfg := task.Config.WithDefaults()
	sessionID := uuid.NewString()
	state := agent.NewState(sessionID)
	started := time.Now()

	tr := otel.Tracer("runtime/runner")
	ctx, span := tr.Start(ctx, "Runner.Run", trace.WithAttributes(
		attribute.String("task.id", task.ID),
		attribute.String("session.id", sessionID),
	))
	defer span.End()

	stopCh := r.registerStop(sessionID)
	defer r.unregisterStop(sessionID)

	taskType := InferTaskType(task.Goal)
	guidance := r.gatherGuidance(ctx, taskType)
	matches := r.recallEpisodes(ctx, task.Goal, taskType)

	// Registering a tool with the runner grants its declared permissions.
	allowed := make(map[string]bool)
	for _, d := range r.registry.Descriptors() {
		for _, p := range d.Permissions {
			allowed[p.Name] = true
		}
	}
	executor := agent.NewExecutor(r.registry,
		agent.WithTimeout(cfg.ToolTimeout),
		agent.WithOutputCap(cfg.ToolOutputCap),
		agent.WithPermissions(allowed),
		agent.WithLogger(r.logger),
	)
	provider := llm.WithRetry(r.provider, llm.WithCallTimeout(cfg.ProviderTimeout))
	asmOpts := []assembler.Option{assembler.WithMaxTokens(cfg.FrameBudget)}
	if r.estimator != nil {
		asmOpts = append(asmOpts, assembler.WithTokenEstimator(r.estimator))
	}
	asm := assembler.New(asmOpts...)

	r.emitter.Emit(events.Event{Type: events.TypeSessionStarted, SessionID: sessionID, Detail: taskType})
	r.logger.Info("session started",
		zap.String("session_id", sessionID),
		zap.String("task_id", task.ID),
		zap.String("task_type", taskType))

	stuckReason := ""

	for {
		reason, done := r.checkStop(ctx, stopCh, state, cfg, stuckReason)
		if done {
			result := r.finish(ctx, task, taskType, state, reason, started)
			return result, nil
		}

		iter := state.Iteration + 1
		r.emitter.Emit(events.Event{Type: events.TypeIteration, SessionID: sessionID, Iteration: iter})

		refl, perr := r.reflect(ctx, asm, provider, task, taskType, state, guidance, matches, cfg)
		if perr != nil {
			// Provider trouble: count it and move on so the error
			// threshold can fire.
			state.Errors++
			state.Append(agent.IterationRecord{Iteration: iter, Error: perr.Error()})
			state.Iteration = iter
			r.logger.Warn("reflection failed", zap.Int("iteration", iter), zap.Error(perr))
			continue
		}

		state.ProgressPercent = refl.ProgressPercent
		state.Confidence = refl.Confidence
		r.emitter.Emit(events.Event{
			Type:       events.TypeReflection,
			SessionID:  sessionID,
			Iteration:  iter,
			Assessment: string(refl.Assessment),
			Progress:   refl.ProgressPercent,
			Confidence: refl.Confidence,
		})

		rec := agent.IterationRecord{Iteration: iter, Reflection: refl}
		switch refl.NextAction {
		case agent.ActionUseTool:
			plan := refl.ToolPlan
			r.emitter.Emit(events.Event{Type: events.TypeToolStarted, SessionID: sessionID, Iteration: iter, ToolName: plan.Tool})
			res := executor.Execute(ctx, plan.Tool, plan.Args)
			rec.ToolResult = &res
			r.emitter.Emit(events.Event{
				Type: events.TypeToolFinished, SessionID: sessionID, Iteration: iter,
				ToolName: res.Tool, ElapsedMs: res.ElapsedMs, Detail: res.Error,
			})
			if res.Success {
				if ref := artifactRef(res); ref != "" {
					state.AddArtifact(ref)
				}
			} else {
				state.Errors++
			}
		case agent.ActionRespond:
			rec.Response = refl.Response
		case agent.ActionStop:
			if refl.Assessment != agent.AssessComplete && stuckReason == "" {
				stuckReason = refl.Reasoning
				if stuckReason == "" {
					stuckReason = "model chose to stop"
				}
			}
		}

		switch refl.Assessment {
		case agent.AssessComplete:
			// A completion claim terminates only when confident; otherwise it
			// stays in the history for the next reflection to reconsider.
			if refl.Confidence >= completeConfidence {
				state.Result = refl.Response
				state.IsComplete = true
			}
		case agent.AssessStuck:
			if stuckReason == "" {
				stuckReason = refl.Reasoning
				if stuckReason == "" {
					stuckReason = "model reported stuck"
				}
			}
		case agent.AssessError:
			state.Errors++
		}

		state.Append(rec)
		state.Iteration = iter

		if cfg.CheckpointInterval > 0 && iter%cfg.CheckpointInterval == 0 {
			r.emitter.Emit(events.Event{
				Type: events.TypeCheckpoint, SessionID: sessionID, Iteration: iter,
				Progress: state.ProgressPercent,
			})
		}
	}
}

// checkStop evaluates the stopping criteria in priority order: completion,
// then the iteration cap, then the stuck guard, then the error threshold,
// then the external stop signal.
func (r *Runner) checkStop(ctx context.Context, stopCh chan struct{}, state *agent.State, cfg agent.RunConfig, stuckReason string) (agent.StopReason, bool) {
	stopped := false
	select {
	case <-stopCh:
		stopped = true
	default:
	}
	if ctx.Err() != nil {
		stopped = true
	}
	switch {
	case state.IsComplete:
		return agent.StopTaskComplete, true
	case state.Iteration >= cfg.MaxIterations:
		return agent.StopMaxIterations, true
	case stuckReason != "" || stagnant(state):
		return agent.StopStuckLoop, true
	case state.Errors >= cfg.ErrorThreshold:
		return agent.StopTooManyErrors, true
	case stopped:
		r.emitter.Emit(events.Event{Type: events.TypeStopRequested, SessionID: state.SessionID, Iteration: state.Iteration})
		return agent.StopUserStop, true
	}
	return "", false
}

// stagnant reports whether the last three reflections show no progress
// increase. Iterations that produced no reflection (provider failures) do
// not report progress and are not counted.
func stagnant(state *agent.State) bool {
	p := state.LastProgress(3)
	if len(p) < 3 {
		return false
	}
	return p[1] <= p[0] && p[2] <= p[1]
}

// reflect assembles the prompt frame and parses the provider's reply into
// a Reflection. A parse failure counts as a loop error and gets one
// corrective retry; a second failure degrades to a synthetic stuck
// reflection.
func (r *Runner) reflect(ctx context.Context, asm *assembler.Assembler, provider llm.LLM, task agent.Task, taskType string, state *agent.State, guidance string, matches []episodic.Match, cfg agent.RunConfig) (agent.Reflection, error) {
	generate := func(corrective string) (string, error) {
		frame, flog := asm.Assemble(r.frameSections(task, taskType, state, guidance, matches, corrective))
		if len(flog.Dropped) > 0 {
			r.logger.Debug("frame sections dropped", zap.Strings("sections", flog.Dropped))
		}
		res, err := provider.Generate(ctx, []llm.Message{
			{Role: "system", Content: frame},
			{Role: "user", Content: "Decide the next step. Reply with the JSON object only."},
		}, map[string]any{"model": cfg.Model})
		if err != nil {
			return "", err
		}
		return res.Text, nil
	}

	raw, err := generate("")
	if err != nil {
		return agent.Reflection{}, err
	}
	refl, perr := agent.ParseReflection(raw)
	if perr == nil {
		return refl, nil
	}
	state.Errors++
	r.logger.Warn("reflection unparseable, retrying with corrective instruction",
		zap.String("session_id", state.SessionID), zap.Error(perr))

	raw, err = generate(r.prompts.Reparse())
	if err != nil {
		return agent.Reflection{}, err
	}
	refl, perr = agent.ParseReflection(raw)
	if perr != nil {
		return agent.SyntheticStuck("reflection output unparseable after corrective retry"), nil
	}
	return refl, nil
}

// frameSections builds the prompt frame, most critical sections pinned.
func (r *Runner) frameSections(task agent.Task, taskType string, state *agent.State, guidance string, matches []episodic.Match, corrective string) []assembler.Section {
	var tools strings.Builder
	for _, d := range r.registry.Descriptors() {
		fmt.Fprintf(&tools, "- %s: %s\n", d.Name, d.Description)
	}
	system := r.prompts.System()
	if tools.Len() > 0 {
		system += "\n\nAvailable tools:\n" + tools.String()
	}

	var memoryText strings.Builder
	for _, m := range matches {
		fmt.Fprintf(&memoryText, "- [%s, score %d, similarity %.2f] %s\n",
			m.Entry.Outcome, m.Entry.Score, m.Similarity, m.Entry.Summary)
	}

	var history strings.Builder
	tail := state.History
	if len(tail) > historyTail {
		tail = tail[len(tail)-historyTail:]
	}
	for _, rec := range tail {
		b, err := json.Marshal(rec)
		if err != nil {
			continue
		}
		history.Write(b)
		history.WriteByte('\n')
	}

	status := fmt.Sprintf("Iteration %d of %d. Progress %d%%. Loop errors so far: %d.",
		state.Iteration+1, task.Config.WithDefaults().MaxIterations, state.ProgressPercent, state.Errors)

	return []assembler.Section{
		{Name: "instructions", Text: system, Pinned: true},
		{Name: "goal", Text: "Task type: " + taskType + "\nGoal: " + task.Goal, Pinned: true},
		{Name: "corrective", Text: corrective, Pinned: true},
		{Name: "status", Text: status, Priority: 9},
		{Name: "recent history", Text: history.String(), Priority: 8},
		{Name: "guidance", Text: guidance, Priority: 4},
		{Name: "similar past tasks", Text: memoryText.String(), Priority: 3},
	}
}

// gatherGuidance merges the seeded task-type framing with derived outcome
// hints. Outcome store failures are advisory and only logged.
func (r *Runner) gatherGuidance(ctx context.Context, taskType string) string {
	parts := []string{}
	if g := r.prompts.Guidance(taskType); g != "" {
		parts = append(parts, g)
	}
	if r.outcomes != nil {
		g, err := r.outcomes.Guidance(ctx, taskType)
		if err != nil {
			r.logger.Warn("outcome guidance unavailable", zap.Error(err))
		} else {
			for _, h := range g.Hints {
				parts = append(parts, "Hint: "+h)
			}
		}
	}
	return strings.Join(parts, "\n")
}

func (r *Runner) recallEpisodes(ctx context.Context, goal, taskType string) []episodic.Match {
	if r.episodic == nil {
		return nil
	}
	return r.episodic.Search(ctx, goal, store.EntryFilter{TaskType: taskType})
}

// finish builds the terminal result and records the session into memory.
func (r *Runner) finish(ctx context.Context, task agent.Task, taskType string, state *agent.State, reason agent.StopReason, started time.Time) agent.SessionResult {
	result := agent.SessionResult{
		SessionID:           state.SessionID,
		TaskID:              task.ID,
		Reason:              reason,
		IterationsCompleted: state.Iteration,
		FinalProgress:       state.ProgressPercent,
		Confidence:          state.Confidence,
		Artifacts:           state.Artifacts(),
		Output:              state.Result,
		Elapsed:             time.Since(started),
	}

	r.record(ctx, task, taskType, state, result)

	r.emitter.Emit(events.Event{
		Type: events.TypeSessionFinished, SessionID: state.SessionID,
		Iteration: state.Iteration, Progress: state.ProgressPercent,
		Detail: string(reason),
	})
	r.logger.Info("session finished",
		zap.String("session_id", state.SessionID),
		zap.String("reason", string(reason)),
		zap.Int("iterations", state.Iteration),
		zap.Duration("elapsed", result.Elapsed))
	return result
}

// record persists the episode and outcome. Best effort: memory failures
// never change the session result.
func (r *Runner) record(ctx context.Context, task agent.Task, taskType string, state *agent.State, result agent.SessionResult) {
	// Use a detached context so recording survives a canceled run context.
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	outcomeLabel := "failure"
	if result.Succeeded() {
		outcomeLabel = "success"
	} else if state.ProgressPercent > 0 {
		outcomeLabel = "partial"
	}

	if r.episodic != nil {
		summary := summarize(task.Goal, state, result)
		if _, err := r.episodic.Add(recCtx, store.EntryRecord{
			EntryID:   uuid.NewString(),
			SessionID: state.SessionID,
			TaskType:  taskType,
			Summary:   summary,
			Outcome:   outcomeLabel,
			Score:     state.ProgressPercent,
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			r.logger.Warn("episodic record failed", zap.Error(err))
		}
	}
	if r.outcomes != nil {
		if _, err := r.outcomes.Record(recCtx, store.OutcomeRecord{
			OutcomeID:  state.SessionID,
			TaskType:   taskType,
			Success:    result.Succeeded(),
			ToolsUsed:  toolsUsed(state),
			Iterations: state.Iteration,
			CreatedAt:  time.Now().UTC(),
		}); err != nil {
			r.logger.Warn("outcome record failed", zap.Error(err))
		}
	}
}

// summarize produces the searchable text for the episodic entry.
func summarize(goal string, state *agent.State, result agent.SessionResult) string {
	var b strings.Builder
	b.WriteString(goal)
	if tools := toolsUsed(state); len(tools) > 0 {
		b.WriteString(" | tools: " + strings.Join(tools, ", "))
	}
	b.WriteString(" | " + string(result.Reason))
	if state.Result != "" {
		out, _ := agent.Truncate(state.Result, 200)
		b.WriteString(" | " + out)
	}
	return b.String()
}

func toolsUsed(state *agent.State) []string {
	seen := map[string]bool{}
	var out []string
	for _, rec := range state.History {
		if rec.ToolResult == nil || seen[rec.ToolResult.Tool] {
			continue
		}
		seen[rec.ToolResult.Tool] = true
		out = append(out, rec.ToolResult.Tool)
	}
	return out
}

// artifactRef extracts a file path reference from successful tool output.
func artifactRef(res agent.ToolResult) string {
	var m map[string]any
	if err := json.Unmarshal([]byte(res.Output), &m); err != nil {
		return ""
	}
	if p, ok := m["path"].(string); ok {
		return p
	}
	return ""
}
