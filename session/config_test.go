package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentrun/budget"
	"agentrun/core"
)

func validConfig() *Config {
	return &Config{
		Task: "write a haiku",
		Agents: []SlotConfig{
			{Role: "planner"},
			{Role: "worker", Count: 2},
		},
		MaxParallel: 2,
		Order:       []string{"planner", "worker"},
	}
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestConfig_ValidateRejectsEmptyAgents(t *testing.T) {
	cfg := &Config{}
	var cfgErr *core.ConfigurationError
	assert.ErrorAs(t, cfg.Validate(), &cfgErr)
}

func TestConfig_ValidateRejectsMissingRole(t *testing.T) {
	cfg := validConfig()
	cfg.Agents = append(cfg.Agents, SlotConfig{})
	var cfgErr *core.ConfigurationError
	assert.ErrorAs(t, cfg.Validate(), &cfgErr)
}

func TestConfig_ValidateRejectsUnknownOrderRole(t *testing.T) {
	cfg := validConfig()
	cfg.Order = []string{"planner", "ghost"}
	var cfgErr *core.ConfigurationError
	assert.ErrorAs(t, cfg.Validate(), &cfgErr)
}

func TestConfig_ValidateChecksBudgets(t *testing.T) {
	cfg := validConfig()
	cfg.Budget = &budget.Spec{MaxTokens: -1}
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Agents[0].BudgetOverride = &budget.Spec{MaxTokens: -1}
	assert.Error(t, cfg.Validate())
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	data := `
session_id: demo
task: summarize the report
max_parallel: 2
order: [planner, writer]
agents:
  - role: planner
    model: claude-test
  - role: writer
    count: 2
    budget_override:
      max_tokens: 1000
      max_tool_calls: 5
      max_time_seconds: 30
      max_recursion_depth: 1
      max_parallel: 1
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", cfg.SessionID)
	assert.Equal(t, "summarize the report", cfg.Task)
	require.Len(t, cfg.Agents, 2)
	assert.Equal(t, "planner", cfg.Agents[0].Role)
	assert.Equal(t, 2, cfg.Agents[1].Count)
	require.NotNil(t, cfg.Agents[1].BudgetOverride)
	assert.Equal(t, int64(1000), cfg.Agents[1].BudgetOverride.MaxTokens)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte(":\n  - ["), 0o600))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
