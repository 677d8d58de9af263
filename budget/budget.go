// Package budget implements the resource accounting engine: hard limit
// specs, monotone usage counters, atomic deltas, and a Tracker that records
// every applied delta as a BudgetUpdated event.
package budget

import (
	"fmt"

	"agentrun/core"
)

// LimitName names a budget limit in check order. The names double as
// diagnostic identifiers in BudgetExceeded events.
type LimitName string

const (
	// LimitTokens is the cumulative token limit.
	LimitTokens LimitName = "max_tokens"
	// LimitToolCalls is the cumulative tool invocation limit.
	LimitToolCalls LimitName = "max_tool_calls"
	// LimitTime is the wall-clock time limit in seconds.
	LimitTime LimitName = "max_time_seconds"
	// LimitRecursionDepth bounds nested executor delegation.
	LimitRecursionDepth LimitName = "max_recursion_depth"
	// LimitParallel bounds concurrently running tasks. Unlike the other
	// limits, parallelism may equal its cap.
	LimitParallel LimitName = "max_parallel"
)

// Spec is the immutable set of hard limits for a run or role. All fields
// must be positive.
type Spec struct {
	MaxTokens         int64   `yaml:"max_tokens" json:"max_tokens"`
	MaxToolCalls      int64   `yaml:"max_tool_calls" json:"max_tool_calls"`
	MaxTimeSeconds    float64 `yaml:"max_time_seconds" json:"max_time_seconds"`
	MaxRecursionDepth int64   `yaml:"max_recursion_depth" json:"max_recursion_depth"`
	MaxParallel       int64   `yaml:"max_parallel" json:"max_parallel"`
}

// Validate rejects non-positive limits with a ConfigurationError.
func (s Spec) Validate() error {
	switch {
	case s.MaxTokens <= 0:
		return core.NewConfigurationError("budget max_tokens must be positive, got %d", s.MaxTokens)
	case s.MaxToolCalls <= 0:
		return core.NewConfigurationError("budget max_tool_calls must be positive, got %d", s.MaxToolCalls)
	case s.MaxTimeSeconds <= 0:
		return core.NewConfigurationError("budget max_time_seconds must be positive, got %g", s.MaxTimeSeconds)
	case s.MaxRecursionDepth <= 0:
		return core.NewConfigurationError("budget max_recursion_depth must be positive, got %d", s.MaxRecursionDepth)
	case s.MaxParallel <= 0:
		return core.NewConfigurationError("budget max_parallel must be positive, got %d", s.MaxParallel)
	}
	return nil
}

// Usage holds the consumption counters for a run. Cumulative counters
// (tokens, tool calls, time) are monotonically non-decreasing; the current
// depth and parallel counters rise and fall but never go negative.
type Usage struct {
	TokensUsed            int64   `json:"tokens_used"`
	ToolCallsUsed         int64   `json:"tool_calls_used"`
	TimeElapsedSeconds    float64 `json:"time_elapsed_seconds"`
	CurrentRecursionDepth int64   `json:"current_recursion_depth"`
	CurrentParallel       int64   `json:"current_parallel"`
}

// Exceeds returns the first violated limit in fixed check order: tokens,
// tool calls, time, recursion depth, parallel. Cumulative and depth
// counters trip at equal-or-greater than their cap (limits are boundaries
// you may not reach); current parallel trips only strictly above its cap,
// so parallelism is allowed to equal max_parallel. The asymmetry is
// intentional; keep it.
func (u Usage) Exceeds(s Spec) (LimitName, bool) {
	if u.TokensUsed >= s.MaxTokens {
		return LimitTokens, true
	}
	if u.ToolCallsUsed >= s.MaxToolCalls {
		return LimitToolCalls, true
	}
	if u.TimeElapsedSeconds >= s.MaxTimeSeconds {
		return LimitTime, true
	}
	if u.CurrentRecursionDepth >= s.MaxRecursionDepth {
		return LimitRecursionDepth, true
	}
	if u.CurrentParallel > s.MaxParallel {
		return LimitParallel, true
	}
	return "", false
}

// Delta is an atomic usage increment, applied exactly once per observed
// step. Tokens, ToolCalls and TimeSeconds must be non-negative; the change
// fields may be negative to release a slot or unwind a recursion level.
type Delta struct {
	Tokens               int64   `json:"tokens,omitempty"`
	ToolCalls            int64   `json:"tool_calls,omitempty"`
	TimeSeconds          float64 `json:"time_seconds,omitempty"`
	RecursionDepthChange int64   `json:"recursion_depth_change,omitempty"`
	ParallelChange       int64   `json:"parallel_change,omitempty"`
}

func (d Delta) validate() error {
	if d.Tokens < 0 || d.ToolCalls < 0 || d.TimeSeconds < 0 {
		return fmt.Errorf("budget delta cumulative fields must be non-negative: %+v", d)
	}
	return nil
}

// ExceededError reports a tripped budget limit. It is always fatal to the
// executor loop that observes it and is never retried.
type ExceededError struct {
	Limit LimitName
	Usage Usage
	Spec  Spec
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("budget limit %q exceeded (usage %+v, spec %+v)", e.Limit, e.Usage, e.Spec)
}
