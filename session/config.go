package session

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"agentrun/budget"
	"agentrun/core"
)

// SlotConfig configures one agent slot in a session. A slot represents one
// or more instances of a role in the team.
type SlotConfig struct {
	// Role names a RoleTemplate registered on the orchestrator.
	Role string `yaml:"role" json:"role"`

	// Model overrides the role's suggested model identifier.
	Model string `yaml:"model,omitempty" json:"model,omitempty"`

	// Count is the number of instances of this role. Zero means one.
	Count int `yaml:"count,omitempty" json:"count,omitempty"`

	// BudgetOverride replaces the role's default budget profile.
	BudgetOverride *budget.Spec `yaml:"budget_override,omitempty" json:"budget_override,omitempty"`

	// SystemPromptOverride replaces the role's default system prompt.
	SystemPromptOverride string `yaml:"system_prompt_override,omitempty" json:"system_prompt_override,omitempty"`
}

// Config is the full configuration for a multi-agent session.
type Config struct {
	// SessionID uniquely identifies the session. Generated when empty.
	SessionID string `yaml:"session_id,omitempty" json:"session_id,omitempty"`

	// Task is the top-level objective handed to every agent. Slots whose
	// role declares a description fall back to it when Task is empty.
	Task string `yaml:"task,omitempty" json:"task,omitempty"`

	// Agents is the team configuration, one entry per role slot.
	Agents []SlotConfig `yaml:"agents" json:"agents"`

	// MaxParallel caps concurrently running agents. Zero means one.
	MaxParallel int `yaml:"max_parallel,omitempty" json:"max_parallel,omitempty"`

	// Order lists role names that must run sequentially in the given
	// order. Slots whose role is not listed run independently.
	Order []string `yaml:"order,omitempty" json:"order,omitempty"`

	// Budget, when set, adds a session-wide budget tracked across all
	// slots in addition to each slot's own profile.
	Budget *budget.Spec `yaml:"budget,omitempty" json:"budget,omitempty"`
}

// Validate checks structural consistency. Role existence is checked by the
// orchestrator, which owns the role registry.
func (c *Config) Validate() error {
	if len(c.Agents) == 0 {
		return core.NewConfigurationError("session has no agent slots")
	}
	if c.MaxParallel < 0 {
		return core.NewConfigurationError("max_parallel must not be negative")
	}
	roles := make(map[string]bool, len(c.Agents))
	for i, slot := range c.Agents {
		if slot.Role == "" {
			return core.NewConfigurationError("agent slot %d has no role", i)
		}
		if slot.Count < 0 {
			return core.NewConfigurationError("agent slot %q has negative count", slot.Role)
		}
		if slot.BudgetOverride != nil {
			if err := slot.BudgetOverride.Validate(); err != nil {
				return fmt.Errorf("agent slot %q budget override: %w", slot.Role, err)
			}
		}
		roles[slot.Role] = true
	}
	for _, name := range c.Order {
		if !roles[name] {
			return core.NewConfigurationError("order references unknown slot role %q", name)
		}
	}
	if c.Budget != nil {
		if err := c.Budget.Validate(); err != nil {
			return fmt.Errorf("session budget: %w", err)
		}
	}
	return nil
}

// LoadConfig reads and validates a session configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read session config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse session config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
