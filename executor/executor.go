// Package executor runs the tool-calling agent loop. On each step the model
// proposes a structured action; the executor dispatches tool calls through
// the permission ceiling and budget tracker, records every transition on the
// event log, and loops until the model finishes, a limit trips, or the
// context is cancelled.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"agentrun/acceptance"
	"agentrun/artifact"
	"agentrun/budget"
	"agentrun/core"
	"agentrun/eventlog"
	"agentrun/logging"
	"agentrun/provider"
	"agentrun/tool"
)

// Outcome classifies how an agent run ended.
type Outcome string

const (
	// OutcomeSucceeded means the model finished and acceptance passed.
	OutcomeSucceeded Outcome = "SUCCEEDED"

	// OutcomeMaxSteps means the step limit was reached without finishing.
	OutcomeMaxSteps Outcome = "MAX_STEPS"

	// OutcomeBudgetExceeded means a budget limit tripped during the run.
	OutcomeBudgetExceeded Outcome = "BUDGET_EXCEEDED"

	// OutcomeStopped means the context was cancelled.
	OutcomeStopped Outcome = "STOPPED"

	// OutcomeTooManyErrors means the consecutive error cap was hit.
	OutcomeTooManyErrors Outcome = "TOO_MANY_ERRORS"

	// OutcomeFailed means an unrecoverable error ended the run.
	OutcomeFailed Outcome = "FAILED"
)

// PermissionDeniedError reports a tool dispatch blocked by the executor's
// side-effect ceiling.
type PermissionDeniedError struct {
	Tool       string
	SideEffect tool.SideEffect
	Ceiling    tool.SideEffect
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("tool %q denied: side effect %s exceeds ceiling %s",
		e.Tool, e.SideEffect, e.Ceiling)
}

// RunResult summarizes a completed agent run.
type RunResult struct {
	RunID       string
	Outcome     Outcome
	FinalResult string
	Steps       int
	Acceptance  []acceptance.Result
}

// Options configure an Executor.
type Options struct {
	// Name identifies the executor in RunStarted/RunFinished payloads.
	Name string

	// SystemPrompt is prepended to the tool descriptions. Defaults to
	// DefaultSystemPrompt.
	SystemPrompt string

	// MaxSteps caps the number of agent steps per run.
	MaxSteps int

	// MaxConsecutiveErrors caps back-to-back parse, provider and tool
	// failures before the run halts with OutcomeTooManyErrors.
	MaxConsecutiveErrors int

	// MaxSideEffect is the permission ceiling for tool dispatch. Tools
	// classified above it are denied with a PolicyDecision event. Empty
	// means no ceiling.
	MaxSideEffect tool.SideEffect

	// Acceptance, when set, gates finish actions. Failed criteria are fed
	// back to the model as an observation and the loop continues.
	Acceptance *acceptance.Checker

	// Artifacts, when set, receives the final result of successful runs.
	Artifacts artifact.Store

	// EmitRunBoundaries controls RunStarted/RunFinished emission. Disable
	// it when the run identity is owned by an enclosing session.
	EmitRunBoundaries bool

	// Logger receives diagnostic output. Defaults to a NoOpLogger.
	Logger logging.Logger
}

// Executor drives the agent loop for one provider and tool registry.
type Executor struct {
	log      eventlog.Log
	provider provider.Provider
	registry *tool.Registry
	tracker  *budget.Tracker
	opts     Options
}

// New creates an Executor. The tracker may be nil, in which case the run is
// not budget governed.
func New(
	log eventlog.Log,
	p provider.Provider,
	registry *tool.Registry,
	tracker *budget.Tracker,
	optFns ...func(o *Options),
) *Executor {
	opts := Options{
		Name:                 "executor",
		SystemPrompt:         DefaultSystemPrompt,
		MaxSteps:             50,
		MaxConsecutiveErrors: 3,
		EmitRunBoundaries:    true,
		Logger:               logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Executor{
		log:      log,
		provider: p,
		registry: registry,
		tracker:  tracker,
		opts:     opts,
	}
}

// Run executes the agent loop on the given task description. A fresh run id
// and sequence counter are used when runID is empty or seq is nil; callers
// embedding the run in a larger event stream pass their own.
//
// The returned error is non-nil only for infrastructure failures; governed
// terminations (budget, step cap, cancellation) are reported through the
// RunResult outcome.
func (e *Executor) Run(
	ctx context.Context,
	task string,
	runID string,
	seq *core.SeqCounter,
) (*RunResult, error) {
	if runID == "" {
		runID = core.NewRunID()
	}
	if seq == nil {
		seq = core.NewSeqCounter()
	}

	if e.opts.EmitRunBoundaries {
		if err := e.log.Append(core.NewEvent(runID, seq.Next(), core.EventRunStarted, map[string]any{
			"executor":    e.opts.Name,
			"task_length": len(task),
		})); err != nil {
			return nil, fmt.Errorf("append RunStarted: %w", err)
		}
	}

	result := e.runLoop(ctx, task, runID, seq)

	if e.opts.EmitRunBoundaries {
		if err := e.log.Append(core.NewEvent(runID, seq.Next(), core.EventRunFinished, map[string]any{
			"executor":     e.opts.Name,
			"outcome":      string(result.Outcome),
			"final_result": result.FinalResult,
		})); err != nil {
			return nil, fmt.Errorf("append RunFinished: %w", err)
		}
	}

	return result, nil
}

// Delegate runs a nested agent on the same run and sequence stream,
// counting one level of recursion depth against the shared budget. The
// nested loop emits no run boundary events of its own.
func (e *Executor) Delegate(
	ctx context.Context,
	task string,
	runID string,
	seq *core.SeqCounter,
) (*RunResult, error) {
	if e.tracker != nil {
		err := e.tracker.EnterRecursion()
		defer func() {
			if exitErr := e.tracker.ExitRecursion(); exitErr != nil {
				e.opts.Logger.Warn("exit recursion", "error", exitErr)
			}
		}()
		if err != nil {
			var exceeded *budget.ExceededError
			if errors.As(err, &exceeded) {
				return &RunResult{RunID: runID, Outcome: OutcomeBudgetExceeded}, nil
			}
			return nil, err
		}
	}
	return e.runLoop(ctx, task, runID, seq), nil
}

func (e *Executor) runLoop(ctx context.Context, task string, runID string, seq *core.SeqCounter) *RunResult {
	systemContent := e.opts.SystemPrompt + "\n\n# Available Tools\n\n" + BuildToolDescriptions(e.registry)
	history := []provider.Message{
		provider.SystemMessage(systemContent),
		provider.UserMessage(task),
	}

	result := &RunResult{RunID: runID, Outcome: OutcomeMaxSteps}
	consecutiveErrors := 0

	for step := 1; step <= e.opts.MaxSteps; step++ {
		result.Steps = step

		if ctx.Err() != nil {
			result.Outcome = OutcomeStopped
			return result
		}

		if e.tracker != nil {
			if err := e.tracker.Check(); err != nil {
				var exceeded *budget.ExceededError
				if errors.As(err, &exceeded) {
					e.opts.Logger.Info("budget exceeded",
						"run_id", runID, "limit", string(exceeded.Limit))
					result.Outcome = OutcomeBudgetExceeded
					return result
				}
				e.opts.Logger.Error("budget check", "run_id", runID, "error", err)
				result.Outcome = OutcomeFailed
				return result
			}
		}

		e.append(core.NewEvent(runID, seq.Next(), core.EventStepStarted, map[string]any{
			"step": step,
		}))
		e.append(core.NewEvent(runID, seq.Next(), core.EventModelCallStarted, map[string]any{
			"step":           step,
			"history_length": len(history),
		}))

		start := time.Now()
		completion, err := e.provider.Complete(ctx, history)
		elapsed := time.Since(start).Seconds()

		if err != nil {
			if ctx.Err() != nil {
				result.Outcome = OutcomeStopped
				return result
			}
			e.opts.Logger.Warn("model call failed", "run_id", runID, "step", step, "error", err)
			e.append(core.NewEvent(runID, seq.Next(), core.EventModelCallFinished, map[string]any{
				"step":    step,
				"success": false,
				"error":   err.Error(),
			}))
			e.append(stepFinished(runID, seq.Next(), step, "provider_error"))
			consecutiveErrors++
			if consecutiveErrors >= e.opts.MaxConsecutiveErrors {
				result.Outcome = OutcomeTooManyErrors
				return result
			}
			continue
		}

		e.append(core.NewEvent(runID, seq.Next(), core.EventModelCallFinished, map[string]any{
			"step":             step,
			"success":          true,
			"tokens_used":      completion.TokensUsed,
			"duration_seconds": elapsed,
		}))

		if e.tracker != nil {
			if err := e.tracker.Apply(budget.Delta{
				Tokens:      completion.TokensUsed,
				TimeSeconds: elapsed,
			}); err != nil {
				e.opts.Logger.Error("budget apply", "run_id", runID, "error", err)
				result.Outcome = OutcomeFailed
				return result
			}
		}

		action, err := ParseAction(completion.Content)
		if err != nil {
			e.opts.Logger.Warn("parse error", "run_id", runID, "step", step, "error", err)
			history = append(history,
				provider.AssistantMessage(completion.Content),
				provider.UserMessage(fmt.Sprintf(
					"[ERROR] Failed to parse your response as JSON: %v\nPlease respond with a valid JSON object.", err)),
			)
			e.append(stepFinished(runID, seq.Next(), step, "parse_error"))
			consecutiveErrors++
			if consecutiveErrors >= e.opts.MaxConsecutiveErrors {
				result.Outcome = OutcomeTooManyErrors
				return result
			}
			continue
		}

		if action.Action == ActionFinish {
			consecutiveErrors = 0
			finalResult := action.Result

			if e.opts.Acceptance != nil {
				passed, results := e.opts.Acceptance.CheckAll(acceptance.Context{
					RunID:  runID,
					Result: finalResult,
					Events: e.runEvents(runID),
				})
				result.Acceptance = results
				if !passed {
					history = append(history,
						provider.AssistantMessage(completion.Content),
						provider.UserMessage(acceptance.FeedbackMessage(results)),
					)
					e.append(stepFinished(runID, seq.Next(), step, "acceptance_failed"))
					continue
				}
			}

			result.Outcome = OutcomeSucceeded
			result.FinalResult = finalResult
			e.saveArtifact(runID, seq, finalResult)
			e.append(stepFinished(runID, seq.Next(), step, "finish"))
			return result
		}

		stepResult := e.executeToolCall(ctx, action, runID, seq, &history, completion.Content)
		e.append(stepFinished(runID, seq.Next(), step, stepResult))

		switch stepResult {
		case "tool_success":
			consecutiveErrors = 0
		case "tool_error", "validation_error":
			consecutiveErrors++
			if consecutiveErrors >= e.opts.MaxConsecutiveErrors {
				result.Outcome = OutcomeTooManyErrors
				return result
			}
		}
	}

	return result
}

// executeToolCall dispatches one tool call action and returns a short step
// result label. Recoverable failures become observations on the history so
// the model can correct itself.
func (e *Executor) executeToolCall(
	ctx context.Context,
	action *Action,
	runID string,
	seq *core.SeqCounter,
	history *[]provider.Message,
	rawResponse string,
) string {
	observe := func(msg string) {
		*history = append(*history,
			provider.AssistantMessage(rawResponse),
			provider.UserMessage(msg),
		)
	}

	if !e.registry.Has(action.Tool) {
		names := make([]string, 0, e.registry.Len())
		for _, t := range e.registry.ListTools() {
			names = append(names, t.Name())
		}
		observe(fmt.Sprintf("[ERROR] Unknown tool %q. Available tools: %s",
			action.Tool, strings.Join(names, ", ")))
		return "unknown_tool"
	}
	t, err := e.registry.Lookup(action.Tool)
	if err != nil {
		observe(fmt.Sprintf("[ERROR] Unknown tool %q.", action.Tool))
		return "unknown_tool"
	}

	if e.opts.MaxSideEffect != "" {
		allowed := t.SideEffect().AtMost(e.opts.MaxSideEffect)
		reason := fmt.Sprintf("side effect %s within ceiling %s", t.SideEffect(), e.opts.MaxSideEffect)
		if !allowed {
			denied := &PermissionDeniedError{
				Tool:       action.Tool,
				SideEffect: t.SideEffect(),
				Ceiling:    e.opts.MaxSideEffect,
			}
			reason = fmt.Sprintf("side effect %s exceeds ceiling %s", denied.SideEffect, denied.Ceiling)
			e.append(core.NewPolicyDecisionEvent(runID, seq.Next(), action.Tool, false, reason))
			observe(fmt.Sprintf("[ERROR] Permission denied: %v", denied))
			return "permission_denied"
		}
		e.append(core.NewPolicyDecisionEvent(runID, seq.Next(), action.Tool, true, reason))
	}

	// The call is charged before execution so a failing tool still counts
	// against the budget.
	if e.tracker != nil {
		if err := e.tracker.RecordToolCall(); err != nil {
			e.opts.Logger.Error("record tool call", "run_id", runID, "error", err)
		}
	}

	if err := tool.ValidateParams(action.Input, t.InputSchema()); err != nil {
		observe(fmt.Sprintf("[ERROR] Invalid input for tool %q: %v", action.Tool, err))
		return "validation_error"
	}

	e.append(core.NewToolCallStartedEvent(runID, seq.Next(), action.Tool, string(t.SideEffect()), action.Input))

	output, err := t.Execute(ctx, action.Input)
	if err != nil {
		e.append(core.NewToolCallFinishedEvent(runID, seq.Next(), action.Tool, nil, err))
		observe(fmt.Sprintf("[ERROR] Tool %q failed: %v", action.Tool, err))
		return "tool_error"
	}

	e.append(core.NewToolCallFinishedEvent(runID, seq.Next(), action.Tool, output, nil))
	observe(fmt.Sprintf("[TOOL RESULT] %s:\n%s", action.Tool, marshalOutput(output)))
	return "tool_success"
}

// saveArtifact persists the final result when an artifact store is
// configured and records the creation on the event log.
func (e *Executor) saveArtifact(runID string, seq *core.SeqCounter, finalResult string) {
	if e.opts.Artifacts == nil || finalResult == "" {
		return
	}
	const artifactID = "final-result"
	if err := e.opts.Artifacts.Save(runID, artifactID, []byte(finalResult)); err != nil {
		e.opts.Logger.Warn("save artifact", "run_id", runID, "error", err)
		return
	}
	e.append(core.NewArtifactCreatedEvent(runID, seq.Next(), artifactID, len(finalResult)))
}

// runEvents reads the run's event history for acceptance criteria. Errors
// degrade to an empty history rather than failing the finish.
func (e *Executor) runEvents(runID string) []core.Event {
	events, err := e.log.Read(runID, -1)
	if err != nil {
		return nil
	}
	return events
}

// append writes an event, logging rather than propagating failures so a
// flaky log backend does not abort the agent loop mid-step.
func (e *Executor) append(ev core.Event) {
	if err := e.log.Append(ev); err != nil {
		e.opts.Logger.Error("append event", "run_id", ev.RunID, "event_type", string(ev.Type), "error", err)
	}
}

func stepFinished(runID string, seq int64, step int, result string) core.Event {
	return core.NewEvent(runID, seq, core.EventStepFinished, map[string]any{
		"step":   step,
		"result": result,
	})
}

func marshalOutput(output map[string]any) string {
	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", output)
	}
	return string(data)
}
