// Package provider defines the language-model boundary: a synchronous
// Complete call over role-tagged messages returning content plus token
// accounting. The executor only sees success or failure for the whole
// call; retry and fallback composition live behind the interface.
package provider

import "context"

// Message is one entry of a conversation history.
type Message struct {
	Role    string `json:"role"` // system, user, or assistant
	Content string `json:"content"`
}

// Completion is the result of one provider round-trip.
type Completion struct {
	Content          string `json:"content"`
	TokensUsed       int64  `json:"tokens_used"`
	PromptTokens     int64  `json:"prompt_tokens"`
	CompletionTokens int64  `json:"completion_tokens"`
}

// Provider is the minimal interface the executor drives generation
// through.
type Provider interface {
	// Name identifies the provider for logging and event payloads.
	Name() string
	// Complete generates a completion for the message history.
	Complete(ctx context.Context, messages []Message) (*Completion, error)
}

// SystemMessage builds a system-role message.
func SystemMessage(content string) Message { return Message{Role: "system", Content: content} }

// UserMessage builds a user-role message.
func UserMessage(content string) Message { return Message{Role: "user", Content: content} }

// AssistantMessage builds an assistant-role message.
func AssistantMessage(content string) Message { return Message{Role: "assistant", Content: content} }
