// Package session runs multi-agent sessions. A session expands role slots
// into agent executors, schedules them as a task graph under a shared run
// and sequence stream, and exposes the read surface external observers use
// to follow live state and events.
package session

import (
	"agentrun/budget"
)

// RoleTemplate is a reusable agent role definition. Roles bundle a system
// prompt, tool set, budget profile and suggested model into a named
// configuration. Sessions reference roles by name and can override
// individual fields per slot.
type RoleTemplate struct {
	// Name is the unique role identifier, e.g. "planner" or "reviewer".
	Name string `yaml:"name" json:"name"`

	// DisplayName is the human-readable name used in task node names.
	DisplayName string `yaml:"display_name" json:"display_name"`

	// Description says what the role does. It doubles as the default
	// task description when a session does not supply one.
	Description string `yaml:"description" json:"description"`

	// SystemPrompt is the role-specific system prompt.
	SystemPrompt string `yaml:"system_prompt" json:"system_prompt"`

	// ToolNames selects tools from the orchestrator registry. Empty
	// means the role gets every registered tool.
	ToolNames []string `yaml:"tool_names,omitempty" json:"tool_names,omitempty"`

	// SuggestedModel is the recommended model identifier for this role.
	SuggestedModel string `yaml:"suggested_model,omitempty" json:"suggested_model,omitempty"`

	// Budget is the role's default budget profile.
	Budget budget.Spec `yaml:"budget" json:"budget"`

	// MaxSteps caps the agent loop for this role. Zero uses the
	// executor default.
	MaxSteps int `yaml:"max_steps,omitempty" json:"max_steps,omitempty"`
}

// DefaultRoleBudget is the budget profile applied to roles that do not
// declare one.
func DefaultRoleBudget() budget.Spec {
	return budget.Spec{
		MaxTokens:         50_000,
		MaxToolCalls:      20,
		MaxTimeSeconds:    300,
		MaxRecursionDepth: 1,
		MaxParallel:       1,
	}
}
