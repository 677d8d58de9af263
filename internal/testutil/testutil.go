// Package testutil contains helpers used across tests to reduce
// boilerplate when scripting model responses and asserting over event
// streams. Not intended for production usage.
package testutil

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"agentrun/core"
)

// ToolCallResponse builds the JSON action a model emits to call a tool.
func ToolCallResponse(tool string, input map[string]any) string {
	if input == nil {
		input = map[string]any{}
	}
	data, err := json.Marshal(map[string]any{
		"action":    "tool_call",
		"tool":      tool,
		"input":     input,
		"reasoning": "test",
	})
	if err != nil {
		panic(fmt.Sprintf("marshal tool call response: %v", err))
	}
	return string(data)
}

// FinishResponse builds the JSON action a model emits to finish with a
// result.
func FinishResponse(result string) string {
	data, err := json.Marshal(map[string]any{
		"action":    "finish",
		"result":    result,
		"reasoning": "test",
	})
	if err != nil {
		panic(fmt.Sprintf("marshal finish response: %v", err))
	}
	return string(data)
}

// RequireContiguousSeqs asserts the events form a gap-free sequence
// starting at 0 for a single run.
func RequireContiguousSeqs(t *testing.T, events []core.Event) {
	t.Helper()
	require.NotEmpty(t, events)
	for i, ev := range events {
		require.Equal(t, int64(i), ev.Seq, "event %d (%s) has unexpected seq", i, ev.Type)
	}
}

// EventTypes projects the stream onto its event types, preserving order.
func EventTypes(events []core.Event) []core.EventType {
	out := make([]core.EventType, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Type)
	}
	return out
}

// CountType returns how many events of the given type the stream holds.
func CountType(events []core.Event, t core.EventType) int {
	n := 0
	for _, ev := range events {
		if ev.Type == t {
			n++
		}
	}
	return n
}
