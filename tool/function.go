package tool

import (
	"context"
)

// FuncTool is a generic adapter that exposes a plain Go function as a Tool.
// It validates input against the declared schema before invoking the
// function and output against the output schema after. A FuncTool has no
// internal mutable state after construction and is safe for concurrent use.
type FuncTool struct {
	name         string
	version      string
	description  string
	inputSchema  map[string]any
	outputSchema map[string]any
	sideEffect   SideEffect
	fn           func(ctx context.Context, input map[string]any) (map[string]any, error)
}

// FuncOption customizes a FuncTool.
type FuncOption func(*FuncTool)

// WithVersion sets the tool's semantic version (default "1.0.0").
func WithVersion(v string) FuncOption {
	return func(t *FuncTool) { t.version = v }
}

// WithSideEffect sets the tool's side-effect class (default PURE).
func WithSideEffect(s SideEffect) FuncOption {
	return func(t *FuncTool) { t.sideEffect = s }
}

// WithOutputSchema sets the schema the tool's output is validated against.
func WithOutputSchema(schema map[string]any) FuncOption {
	return func(t *FuncTool) { t.outputSchema = schema }
}

// NewFuncTool constructs a FuncTool from explicit schema and function.
//
// Example:
//
//	sum := tool.NewFuncTool(
//	  "calculate_sum",
//	  "Calculate the sum of two numbers",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "a": map[string]any{"type": "number"},
//	      "b": map[string]any{"type": "number"},
//	    },
//	    "required": []any{"a", "b"},
//	  },
//	  func(ctx context.Context, input map[string]any) (map[string]any, error) {
//	    return map[string]any{"sum": input["a"].(float64) + input["b"].(float64)}, nil
//	  },
//	)
func NewFuncTool(
	name, description string,
	inputSchema map[string]any,
	fn func(ctx context.Context, input map[string]any) (map[string]any, error),
	opts ...FuncOption,
) *FuncTool {
	t := &FuncTool{
		name:        name,
		version:     "1.0.0",
		description: description,
		inputSchema: inputSchema,
		outputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		sideEffect: SideEffectPure,
		fn:         fn,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Name implements Tool.
func (t *FuncTool) Name() string { return t.name }

// Version implements Tool.
func (t *FuncTool) Version() string { return t.version }

// Description implements Tool.
func (t *FuncTool) Description() string { return t.description }

// InputSchema implements Tool.
func (t *FuncTool) InputSchema() map[string]any { return t.inputSchema }

// OutputSchema implements Tool.
func (t *FuncTool) OutputSchema() map[string]any { return t.outputSchema }

// SideEffect implements Tool.
func (t *FuncTool) SideEffect() SideEffect { return t.sideEffect }

// Execute validates the input, runs the wrapped function, and validates
// the output.
func (t *FuncTool) Execute(ctx context.Context, input map[string]any) (map[string]any, error) {
	if err := ValidateParams(input, t.inputSchema); err != nil {
		return nil, err
	}
	out, err := t.fn(ctx, input)
	if err != nil {
		return nil, &ExecutionError{Tool: t.name, Err: err}
	}
	if out != nil {
		if err := ValidateParams(out, t.outputSchema); err != nil {
			return nil, err
		}
	}
	return out, nil
}
