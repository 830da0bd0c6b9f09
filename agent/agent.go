package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/martinemde/goalagent/agent"

// Defaults applied by New.
const (
	DefaultMaxIterations       = 50
	DefaultLoopDetectionWindow = 6
	DefaultOutputLimit         = 50000
)

// State is the lifecycle state of a run.
type State string

const (
	StateRunning       State = "running"
	StateTerminated    State = "terminated"
	StateMaxIterations State = "max_iterations_reached"
	StateFailed        State = "failed"
)

// RunResult is what a run leaves behind.
type RunResult struct {
	ID         string           `json:"id"`
	State      State            `json:"state"`
	Iterations int              `json:"iterations"`
	Memory     *Memory          `json:"memory"`
	Final      *ExecutionResult `json:"final,omitempty"` // result of the terminal action
}

// Agent runs the decision loop. It holds no per-run state, so one Agent may
// serve concurrent runs.
type Agent struct {
	goals    []Goal
	registry *Registry
	oracle   Oracle
	language Language
	env      *Environment

	maxIterations int
	oracleTimeout time.Duration
	loopWindow    int
	outputLimit   int
	actionTags    []string

	events *EventEmitter
	log    logr.Logger
	tracer trace.Tracer
}

// Option configures an Agent.
type Option func(*Agent)

// WithLanguage replaces the default FunctionCallingLanguage.
func WithLanguage(l Language) Option {
	return func(a *Agent) {
		a.language = l
	}
}

// WithMaxIterations bounds the number of decision cycles per run.
func WithMaxIterations(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxIterations = n
		}
	}
}

// WithOracleTimeout bounds each oracle call. Zero means no bound beyond the
// run's context.
func WithOracleTimeout(d time.Duration) Option {
	return func(a *Agent) {
		a.oracleTimeout = d
	}
}

// WithLoopDetection sets the number of recent tool calls inspected for
// repetition. Zero disables detection.
func WithLoopDetection(window int) Option {
	return func(a *Agent) {
		a.loopWindow = window
	}
}

// WithOutputLimit caps the characters of an action result shown to the
// oracle. Zero disables truncation.
func WithOutputLimit(chars int) Option {
	return func(a *Agent) {
		a.outputLimit = chars
	}
}

// WithActionTags restricts the actions offered to and callable by the oracle
// to those carrying at least one of tags.
func WithActionTags(tags ...string) Option {
	return func(a *Agent) {
		a.actionTags = append([]string(nil), tags...)
	}
}

// WithEvents sets the emitter that receives run events.
func WithEvents(e *EventEmitter) Option {
	return func(a *Agent) {
		a.events = e
	}
}

// WithLogger sets the logger.
func WithLogger(log logr.Logger) Option {
	return func(a *Agent) {
		a.log = log
	}
}

// WithTracerProvider sets the provider used for run and iteration spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(a *Agent) {
		a.tracer = tp.Tracer(tracerName)
	}
}

// New creates an Agent.
func New(goals []Goal, registry *Registry, oracle Oracle, opts ...Option) (*Agent, error) {
	if registry == nil {
		return nil, errors.New("agent: registry is required")
	}
	if oracle == nil {
		return nil, errors.New("agent: oracle is required")
	}

	a := &Agent{
		goals:         append([]Goal(nil), goals...),
		registry:      registry,
		oracle:        oracle,
		language:      FunctionCallingLanguage{},
		maxIterations: DefaultMaxIterations,
		loopWindow:    DefaultLoopDetectionWindow,
		outputLimit:   DefaultOutputLimit,
		log:           logr.Discard(),
		tracer:        otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.env = NewEnvironment(a.log.WithName("environment"))
	return a, nil
}

// Goals returns the agent's goals in priority order.
func (a *Agent) Goals() []Goal {
	return SortGoals(a.goals)
}

// Run executes the decision loop for one input. Tool and decision failures
// are recorded in memory; the only error returned is an
// OracleUnavailableError, together with a result in StateFailed.
func (a *Agent) Run(ctx context.Context, input string) (*RunResult, error) {
	run := &RunResult{
		ID:     uuid.New().String(),
		State:  StateRunning,
		Memory: NewMemory(),
	}
	log := a.log.WithValues("run_id", run.ID)

	ctx, span := a.tracer.Start(ctx, "agent.run", trace.WithAttributes(
		attribute.String("agent.run_id", run.ID),
		attribute.Int("agent.max_iterations", a.maxIterations),
	))
	defer span.End()
	if sc := span.SpanContext(); sc.IsValid() {
		log = log.WithValues("trace_id", sc.TraceID().String())
	}

	run.Memory.Append(MemoryEntry{Type: EntryUser, Content: input})
	a.events.Emit(EventRunStart, run.ID, map[string]any{"input": input})
	log.Info("run started", "goals", len(a.goals), "actions", len(a.registry.List(a.actionTags...)))

	var runErr error
	for run.State == StateRunning {
		if run.Iterations >= a.maxIterations {
			run.State = StateMaxIterations
			a.events.Emit(EventIterationLimit, run.ID, map[string]any{"iterations": run.Iterations})
			log.Info("iteration limit reached", "iterations", run.Iterations)
			break
		}
		run.Iterations++
		if err := a.iterate(ctx, run, log); err != nil {
			run.State = StateFailed
			runErr = err
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			a.events.Emit(EventError, run.ID, map[string]any{"error": err.Error()})
			log.Error(err, "run failed", "iteration", run.Iterations)
		}
	}

	span.SetAttributes(
		attribute.String("agent.state", string(run.State)),
		attribute.Int("agent.iterations", run.Iterations),
	)
	a.events.Emit(EventRunEnd, run.ID, map[string]any{
		"state":      string(run.State),
		"iterations": run.Iterations,
	})
	log.Info("run finished", "state", run.State, "iterations", run.Iterations)
	return run, runErr
}

// iterate performs one decision cycle. It returns an error only when the
// oracle fails.
func (a *Agent) iterate(ctx context.Context, run *RunResult, log logr.Logger) error {
	iteration := run.Iterations
	ctx, span := a.tracer.Start(ctx, "agent.iteration", trace.WithAttributes(
		attribute.Int("agent.iteration", iteration),
	))
	defer span.End()

	prompt := a.language.ConstructPrompt(a.goals, run.Memory, a.registry.Schemas(a.actionTags...))

	raw, err := a.generate(ctx, prompt)
	if err != nil {
		span.RecordError(err)
		return &OracleUnavailableError{Iteration: iteration, Cause: err}
	}

	decision, err := a.language.ParseResponse(raw)
	if err != nil {
		log.V(1).Info("malformed decision", "iteration", iteration, "error", err.Error())
		run.Memory.Append(MemoryEntry{Type: EntryAssistant, Content: raw.String(), Iteration: iteration})
		a.recordResult(run, failedResult("", err), iteration)
		return nil
	}

	a.events.Emit(EventDecision, run.ID, map[string]any{
		"iteration": iteration,
		"kind":      string(decision.Kind),
		"action":    decision.Action,
		"dropped":   decision.Dropped,
	})
	if decision.Dropped > 0 {
		log.Info("extra tool calls ignored", "iteration", iteration, "dropped", decision.Dropped)
	}

	if decision.Kind == DecisionFreeText {
		span.SetAttributes(attribute.String("agent.decision", string(DecisionFreeText)))
		run.Memory.Append(MemoryEntry{
			Type:      EntryAssistant,
			Content:   decision.Text,
			Decision:  &decision,
			Iteration: iteration,
		})
		return nil
	}

	span.SetAttributes(attribute.String("agent.action", decision.Action))
	run.Memory.Append(MemoryEntry{
		Type:      EntryAssistant,
		Content:   decision.String(),
		Decision:  &decision,
		Iteration: iteration,
	})

	action, err := a.lookup(decision.Action)
	if err != nil {
		log.Info("unknown action", "iteration", iteration, "action", decision.Action)
		a.recordResult(run, failedResult(decision.Action, err), iteration)
		return nil
	}

	a.events.Emit(EventActionStart, run.ID, map[string]any{"action": action.Name, "args": decision.Args})
	result := a.env.Execute(ctx, action, decision.Args)
	a.events.Emit(EventActionEnd, run.ID, map[string]any{
		"action":  action.Name,
		"success": result.Success,
		"error":   result.Error,
	})
	a.recordResult(run, result, iteration)

	if action.Terminal {
		run.State = StateTerminated
		run.Final = &result
		a.events.Emit(EventTerminated, run.ID, map[string]any{"action": action.Name, "iteration": iteration})
		return nil
	}

	if a.loopWindow > 0 && DetectLoop(run.Memory.Entries(), a.loopWindow) {
		warning := fmt.Sprintf("Loop detected: the last %d actions follow a repeating pattern. Try a different approach.", a.loopWindow)
		run.Memory.Append(MemoryEntry{Type: EntrySystem, Content: warning, Iteration: iteration})
		a.events.Emit(EventLoopDetected, run.ID, map[string]any{"message": warning})
		log.Info("loop detected", "iteration", iteration, "window", a.loopWindow)
	}
	return nil
}

func (a *Agent) generate(ctx context.Context, prompt Prompt) (RawOutput, error) {
	if err := ctx.Err(); err != nil {
		return RawOutput{}, err
	}
	if a.oracleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.oracleTimeout)
		defer cancel()
	}

	// The oracle may ignore ctx; a reply after the deadline is still a failure.
	type reply struct {
		out RawOutput
		err error
	}
	done := make(chan reply, 1)
	go func() {
		out, err := a.oracle.Generate(ctx, prompt)
		done <- reply{out, err}
	}()
	select {
	case r := <-done:
		if r.err == nil && ctx.Err() != nil {
			return RawOutput{}, ctx.Err()
		}
		return r.out, r.err
	case <-ctx.Done():
		return RawOutput{}, ctx.Err()
	}
}

// lookup resolves an action name within the agent's tag scope.
func (a *Agent) lookup(name string) (*Action, error) {
	action, err := a.registry.Lookup(name)
	if err != nil {
		return nil, err
	}
	if len(a.actionTags) > 0 && !action.HasAnyTag(a.actionTags...) {
		return nil, &UnknownActionError{Name: name}
	}
	return action, nil
}

func (a *Agent) recordResult(run *RunResult, result ExecutionResult, iteration int) {
	run.Memory.Append(MemoryEntry{
		Type:      EntryActionResult,
		Content:   TruncateOutput(result.Render(), a.outputLimit),
		Result:    &result,
		Iteration: iteration,
	})
}
