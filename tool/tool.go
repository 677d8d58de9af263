// Package tool implements the typed capability subsystem: the Tool
// interface with schema-validated input/output and side-effect
// classification, the Registry agents resolve tools from, and a generic
// function adapter.
package tool

import (
	"context"
	"fmt"
)

// SideEffect classifies what a tool does to the world outside the run.
type SideEffect string

const (
	// SideEffectPure marks tools with no observable side effects.
	SideEffectPure SideEffect = "PURE"
	// SideEffectRead marks tools that read external state.
	SideEffectRead SideEffect = "READ"
	// SideEffectWrite marks tools that create or modify external state.
	SideEffectWrite SideEffect = "WRITE"
	// SideEffectDestructive marks tools that irreversibly delete or
	// overwrite external state.
	SideEffectDestructive SideEffect = "DESTRUCTIVE"
)

// rank orders side effects from least to most dangerous for permission
// ceilings.
func (s SideEffect) rank() int {
	switch s {
	case SideEffectPure:
		return 0
	case SideEffectRead:
		return 1
	case SideEffectWrite:
		return 2
	case SideEffectDestructive:
		return 3
	default:
		return 3
	}
}

// AtMost reports whether s is no more dangerous than the ceiling.
func (s SideEffect) AtMost(ceiling SideEffect) bool {
	return s.rank() <= ceiling.rank()
}

// Tool is the interface every agent capability implements. Input and
// output schemas follow the minimal JSON-Schema subset validated by
// ValidateParams. Implementations must be safe for concurrent use.
type Tool interface {
	// Name returns the unique identifier for this tool (snake_case).
	Name() string
	// Version returns the tool's semantic version.
	Version() string
	// Description is shown to models to guide tool selection.
	Description() string
	// InputSchema describes the accepted input object.
	InputSchema() map[string]any
	// OutputSchema describes the produced output object.
	OutputSchema() map[string]any
	// SideEffect classifies the tool for permission policy.
	SideEffect() SideEffect
	// Execute runs the tool with already-validated input.
	Execute(ctx context.Context, input map[string]any) (map[string]any, error)
}

// DuplicateToolError reports a Register call for a name already taken.
type DuplicateToolError struct {
	Name string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool %q is already registered", e.Name)
}

// UnknownToolError reports a Lookup for an unregistered name.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("tool %q is not registered", e.Name)
}

// ExecutionError wraps a failure raised by a tool's Execute.
type ExecutionError struct {
	Tool string
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("tool %q execution failed: %v", e.Tool, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
