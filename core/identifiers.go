package core

import "github.com/google/uuid"

// NewRunID generates a unique identifier for a run. Run ids are opaque;
// ordering across runs is undefined.
func NewRunID() string { return "run-" + uuid.NewString() }

// NewTaskID generates a unique identifier for a task node.
func NewTaskID() string { return "task-" + uuid.NewString() }

// NewSessionID generates a unique identifier for a session.
func NewSessionID() string { return "session-" + uuid.NewString() }
