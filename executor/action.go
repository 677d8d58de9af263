package executor

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ActionType enumerates the actions an agent can take on each step.
type ActionType string

const (
	// ActionToolCall requests execution of a registered tool.
	ActionToolCall ActionType = "tool_call"

	// ActionFinish declares the task complete with a final result.
	ActionFinish ActionType = "finish"
)

// Action is the structured decision parsed from a model response.
type Action struct {
	Action    ActionType     `json:"action"`
	Tool      string         `json:"tool,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	Result    string         `json:"result,omitempty"`
	Reasoning string         `json:"reasoning,omitempty"`
}

// ParseError is returned when a model response cannot be interpreted as an
// action. Reason is a short machine-friendly label; Content preserves the
// raw response for the retry observation.
type ParseError struct {
	Reason  string
	Content string
	Err     error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse action: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("parse action: %s", e.Reason)
}

// Unwrap returns the underlying error, if any.
func (e *ParseError) Unwrap() error { return e.Err }

// actionAliases maps common model mistakes for action names to canonical
// values.
var actionAliases = map[string]ActionType{
	"tool_call": ActionToolCall,
	"finish":    ActionFinish,
	"finished":  ActionFinish,
	"finishing": ActionFinish,
	"done":      ActionFinish,
	"complete":  ActionFinish,
	"completed": ActionFinish,
	"call":      ActionToolCall,
	"use_tool":  ActionToolCall,
	"call_tool": ActionToolCall,
}

var fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?\\s*```")

// ParseAction extracts an Action from model response text. It handles raw
// JSON or JSON wrapped in markdown code fences, and tolerates common
// small-model mistakes:
//   - multiple JSON objects (takes the first balanced one)
//   - action name aliases ("finishing" parses as "finish")
//   - an unrecognized action name that matches a tool (treated as tool_call)
//   - object-valued result fields (serialized back to a JSON string)
//   - string-valued input fields (parsed to an object, empty on failure)
func ParseAction(content string) (*Action, error) {
	text := strings.TrimSpace(content)

	if m := fencedBlockRe.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}

	text = extractFirstJSONObject(text)

	var data map[string]any
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		// Distinguish "valid JSON, wrong shape" from "not JSON".
		var probe any
		if jsonErr := json.Unmarshal([]byte(text), &probe); jsonErr == nil {
			return nil, &ParseError{Reason: "expected JSON object", Content: content}
		}
		return nil, &ParseError{Reason: "invalid JSON", Content: content, Err: err}
	}

	if _, ok := data["action"]; !ok {
		return nil, &ParseError{Reason: "missing 'action' field", Content: content}
	}

	return normalizeAction(data, content)
}

// extractFirstJSONObject returns the first balanced JSON object found in
// text, tracking strings and escapes so braces inside values do not count.
// If no balanced object closes, it falls back to the span from the first
// opening brace to the last closing brace.
func extractFirstJSONObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start == -1 {
		return text
	}

	depth := 0
	inString := false
	escape := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if escape {
			escape = false
			continue
		}
		switch ch {
		case '\\':
			escape = true
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return text[start : i+1]
				}
			}
		}
	}
	if end := strings.LastIndexByte(text, '}'); end > start {
		return text[start : end+1]
	}
	return text
}

// normalizeAction maps the loose decoded object into a canonical Action.
func normalizeAction(data map[string]any, content string) (*Action, error) {
	rawAction, _ := data["action"].(string)
	name := strings.ToLower(strings.TrimSpace(rawAction))

	action := &Action{}
	if canonical, ok := actionAliases[name]; ok {
		action.Action = canonical
	} else {
		// An unrecognized action name is most likely a tool name the
		// model promoted into the discriminator slot.
		action.Action = ActionToolCall
		action.Tool = rawAction
	}

	if action.Tool == "" {
		if tool, ok := data["tool"].(string); ok {
			action.Tool = tool
		}
	}
	if reasoning, ok := data["reasoning"].(string); ok {
		action.Reasoning = reasoning
	}

	switch result := data["result"].(type) {
	case string:
		action.Result = result
	case map[string]any:
		encoded, err := json.Marshal(result)
		if err != nil {
			return nil, &ParseError{Reason: "unserializable result", Content: content, Err: err}
		}
		action.Result = string(encoded)
	}

	switch input := data["input"].(type) {
	case map[string]any:
		action.Input = input
	case string:
		var parsed map[string]any
		if err := json.Unmarshal([]byte(input), &parsed); err == nil {
			action.Input = parsed
		} else {
			action.Input = map[string]any{}
		}
	}
	if action.Action == ActionToolCall && action.Input == nil {
		action.Input = map[string]any{}
	}

	return action, nil
}
