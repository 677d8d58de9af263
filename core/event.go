package core

import "time"

// EventType identifies the kind of state transition an Event records.
// The set is closed; consumers may switch exhaustively over it.
type EventType string

const (
	// EventRunStarted marks the beginning of a run.
	EventRunStarted EventType = "RunStarted"
	// EventRunFinished marks the terminal event of a run; the run is
	// immutable once this is appended.
	EventRunFinished EventType = "RunFinished"
	// EventTaskStarted records a task node entering RUNNING.
	EventTaskStarted EventType = "TaskStarted"
	// EventTaskFinished records a task node reaching SUCCEEDED or FAILED.
	EventTaskFinished EventType = "TaskFinished"
	// EventToolCallStarted records the beginning of a tool invocation.
	EventToolCallStarted EventType = "ToolCallStarted"
	// EventToolCallFinished records the completion (or failure) of a tool
	// invocation. Every ToolCallStarted has a matching ToolCallFinished.
	EventToolCallFinished EventType = "ToolCallFinished"
	// EventBudgetUpdated carries the usage snapshot after a delta was applied.
	EventBudgetUpdated EventType = "BudgetUpdated"
	// EventBudgetExceeded records a tripped budget limit.
	EventBudgetExceeded EventType = "BudgetExceeded"
	// EventPolicyDecision records a permission verdict for a tool dispatch.
	EventPolicyDecision EventType = "PolicyDecision"
	// EventArtifactCreated records a new artifact persisted during a run.
	EventArtifactCreated EventType = "ArtifactCreated"
	// EventStepStarted records the beginning of one executor loop iteration.
	EventStepStarted EventType = "StepStarted"
	// EventStepFinished records the result of one executor loop iteration.
	EventStepFinished EventType = "StepFinished"
	// EventModelCallStarted records an outbound model provider call.
	EventModelCallStarted EventType = "ModelCallStarted"
	// EventModelCallFinished records the completion of a model provider call.
	EventModelCallFinished EventType = "ModelCallFinished"
)

// Event is the immutable record of something that happened during a run.
// Seq is unique and totally ordered within a run, assigned by the caller's
// SeqCounter, never by the log. After emission an Event must be treated as
// read-only; the log stores and returns it verbatim.
//
// Payload stays an open key-to-value map for forward compatibility; the
// typed constructors below provide the closed schema per event type.
type Event struct {
	RunID     string         `json:"run_id"`
	Seq       int64          `json:"seq"`
	Timestamp time.Time      `json:"timestamp"`
	Type      EventType      `json:"event_type"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// NewEvent constructs an event stamped with the current UTC time.
func NewEvent(runID string, seq int64, t EventType, payload map[string]any) Event {
	return Event{
		RunID:     runID,
		Seq:       seq,
		Timestamp: time.Now().UTC(),
		Type:      t,
		Payload:   payload,
	}
}

// NewToolCallStartedEvent records the dispatch of a named tool.
func NewToolCallStartedEvent(runID string, seq int64, toolName, sideEffect string, input map[string]any) Event {
	return NewEvent(runID, seq, EventToolCallStarted, map[string]any{
		"tool_name":   toolName,
		"side_effect": sideEffect,
		"input":       input,
	})
}

// NewToolCallFinishedEvent records the outcome of a previously started tool
// call. A non-nil err marks the call failed and copies its message.
func NewToolCallFinishedEvent(runID string, seq int64, toolName string, output map[string]any, err error) Event {
	payload := map[string]any{
		"tool_name": toolName,
		"success":   err == nil,
	}
	if err != nil {
		payload["error"] = err.Error()
	} else if output != nil {
		payload["output"] = output
	}
	return NewEvent(runID, seq, EventToolCallFinished, payload)
}

// NewPolicyDecisionEvent records an allow/deny verdict for a tool dispatch.
func NewPolicyDecisionEvent(runID string, seq int64, toolName string, allowed bool, reason string) Event {
	return NewEvent(runID, seq, EventPolicyDecision, map[string]any{
		"tool_name": toolName,
		"allowed":   allowed,
		"reason":    reason,
	})
}

// NewArtifactCreatedEvent records an artifact persisted for the run.
func NewArtifactCreatedEvent(runID string, seq int64, artifactID string, size int) Event {
	return NewEvent(runID, seq, EventArtifactCreated, map[string]any{
		"artifact_id": artifactID,
		"size_bytes":  size,
	})
}
