package executor

import (
	"encoding/json"
	"fmt"
	"strings"

	"agentrun/tool"
)

// DefaultSystemPrompt instructs the model to answer with the structured
// action protocol ParseAction understands.
const DefaultSystemPrompt = "You are an AI agent with access to tools. " +
	"Respond with a JSON object containing your action.\n" +
	"For tool calls: " +
	`{"action": "tool_call", "tool": "<name>", "input": {...}, "reasoning": "..."}` + "\n" +
	"When done: " +
	`{"action": "finish", "result": "...", "reasoning": "..."}`

// BuildToolDescriptions formats every registered tool for inclusion in a
// system prompt. Each tool lists its name, version, side effect
// classification and input/output JSON schemas.
func BuildToolDescriptions(registry *tool.Registry) string {
	tools := registry.ListTools()
	if len(tools) == 0 {
		return "No tools available."
	}

	sections := make([]string, 0, len(tools))
	for _, t := range tools {
		section := fmt.Sprintf(
			"## %s (v%s)\n%s\nSide effect: %s\nInput schema:\n```json\n%s\n```\nOutput schema:\n```json\n%s\n```",
			t.Name(), t.Version(), t.Description(), t.SideEffect(),
			marshalSchema(t.InputSchema()), marshalSchema(t.OutputSchema()),
		)
		sections = append(sections, section)
	}
	return strings.Join(sections, "\n\n")
}

func marshalSchema(schema map[string]any) string {
	if schema == nil {
		return "{}"
	}
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
