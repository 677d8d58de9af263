package provider

import (
	"context"
	"fmt"
	"sync"
)

// Mock is a lightweight in-memory Provider useful for tests and examples.
// It replays scripted completions in order; once the script is exhausted
// the last completion repeats.
type Mock struct {
	mu       sync.Mutex
	name     string
	script   []Completion
	cursor   int
	calls    [][]Message
	failWith error
}

// NewMock constructs a Mock replaying the given raw responses, each
// costing ten tokens.
func NewMock(responses ...string) *Mock {
	m := &Mock{name: "mock"}
	for _, r := range responses {
		m.script = append(m.script, Completion{
			Content:          r,
			TokensUsed:       10,
			PromptTokens:     5,
			CompletionTokens: 5,
		})
	}
	return m
}

// NewMockWithCompletions constructs a Mock replaying fully specified
// completions, for tests that care about token accounting.
func NewMockWithCompletions(completions ...Completion) *Mock {
	return &Mock{name: "mock", script: completions}
}

// FailWith makes every subsequent call fail with err. Passing nil restores
// normal replay.
func (m *Mock) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

// Name implements Provider.
func (m *Mock) Name() string { return m.name }

// Complete implements Provider, replaying the script.
func (m *Mock) Complete(ctx context.Context, messages []Message) (*Completion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	recorded := make([]Message, len(messages))
	copy(recorded, messages)
	m.calls = append(m.calls, recorded)
	if len(m.script) == 0 {
		return nil, fmt.Errorf("mock provider has no scripted responses")
	}
	c := m.script[m.cursor]
	if m.cursor < len(m.script)-1 {
		m.cursor++
	}
	return &c, nil
}

// Calls returns the recorded message histories, one per Complete call.
func (m *Mock) Calls() [][]Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]Message, len(m.calls))
	copy(out, m.calls)
	return out
}
