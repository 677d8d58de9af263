package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Tool = (*FuncTool)(nil)

func echoTool(opts ...FuncOption) *FuncTool {
	return NewFuncTool(
		"echo",
		"Echo the input text back",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{"type": "string"},
			},
			"required": []any{"text"},
		},
		func(ctx context.Context, input map[string]any) (map[string]any, error) {
			return map[string]any{"text": input["text"]}, nil
		},
		opts...,
	)
}

func TestSideEffect_AtMost(t *testing.T) {
	assert.True(t, SideEffectPure.AtMost(SideEffectRead))
	assert.True(t, SideEffectRead.AtMost(SideEffectRead))
	assert.False(t, SideEffectWrite.AtMost(SideEffectRead))
	assert.False(t, SideEffectDestructive.AtMost(SideEffectWrite))
	assert.True(t, SideEffectDestructive.AtMost(SideEffectDestructive))
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool()))

	got, err := r.Lookup("echo")
	require.NoError(t, err)
	assert.Equal(t, "echo", got.Name())
	assert.True(t, r.Has("echo"))
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_DuplicateRejected(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool()))

	err := r.Register(echoTool())
	var dup *DuplicateToolError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "echo", dup.Name)
}

func TestRegistry_UnknownTool(t *testing.T) {
	r := NewRegistry()
	_, err := r.Lookup("missing")
	var unknown *UnknownToolError
	require.ErrorAs(t, err, &unknown)
	assert.False(t, r.Has("missing"))
}

func TestRegistry_ListToolsSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, r.Register(NewFuncTool(name, "d", map[string]any{"type": "object"},
			func(ctx context.Context, input map[string]any) (map[string]any, error) { return nil, nil })))
	}
	tools := r.ListTools()
	require.Len(t, tools, 3)
	assert.Equal(t, "alpha", tools[0].Name())
	assert.Equal(t, "mid", tools[1].Name())
	assert.Equal(t, "zeta", tools[2].Name())
}

func TestValidateParams(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"x": map[string]any{"type": "integer"},
			"s": map[string]any{"type": "string"},
		},
		"required": []any{"x"},
	}

	assert.NoError(t, ValidateParams(map[string]any{"x": 5}, schema))
	// JSON-decoded numbers arrive as float64; whole floats satisfy integer.
	assert.NoError(t, ValidateParams(map[string]any{"x": float64(5)}, schema))

	err := ValidateParams(map[string]any{}, schema)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "x", vErr.Field)

	err = ValidateParams(map[string]any{"x": "not-int"}, schema)
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Message, "expected type integer")

	// required as []string is tolerated.
	strSchema := map[string]any{
		"type":       "object",
		"properties": map[string]any{},
		"required":   []string{"y"},
	}
	err = ValidateParams(map[string]any{}, strSchema)
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "y", vErr.Field)
}

func TestFuncTool_Execute(t *testing.T) {
	tl := echoTool(WithVersion("2.1.0"), WithSideEffect(SideEffectRead))
	assert.Equal(t, "2.1.0", tl.Version())
	assert.Equal(t, SideEffectRead, tl.SideEffect())

	out, err := tl.Execute(context.Background(), map[string]any{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", out["text"])
}

func TestFuncTool_ExecuteRejectsInvalidInput(t *testing.T) {
	tl := echoTool()
	_, err := tl.Execute(context.Background(), map[string]any{})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "text", vErr.Field)
}

func TestFuncTool_ExecuteWrapsFunctionError(t *testing.T) {
	boom := errors.New("boom")
	tl := NewFuncTool("fail", "always fails", map[string]any{"type": "object"},
		func(ctx context.Context, input map[string]any) (map[string]any, error) {
			return nil, boom
		})
	_, err := tl.Execute(context.Background(), nil)
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.ErrorIs(t, err, boom)
}
