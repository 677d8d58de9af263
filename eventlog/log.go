// Package eventlog implements the append-only, per-run sequenced event
// store: the single source of truth for everything that happened during a
// run. The log never reorders, coalesces, deduplicates, mutates, or deletes
// an appended record; every tool call, budget update, and state transition
// is an individually retrievable record, which is what makes a run
// replayable and auditable after the fact.
//
// Sequence numbers are assigned by callers via a shared core.SeqCounter,
// not by the log; the log only preserves them.
package eventlog

import (
	"fmt"

	"agentrun/core"
)

// UnknownRunError reports a read for a run id with zero appended events.
type UnknownRunError struct {
	RunID string
}

func (e *UnknownRunError) Error() string {
	return fmt.Sprintf("unknown run %q: no events recorded", e.RunID)
}

// Log is the append-only event store contract.
//
// Read returns events with seq strictly greater than afterSeq in ascending
// seq order; pass afterSeq = -1 for the full stream from 0. A later call
// with a higher afterSeq resumes without replaying already-seen events.
type Log interface {
	Append(ev core.Event) error
	Read(runID string, afterSeq int64) ([]core.Event, error)
	// ReadByType returns the run's events of one type, ascending by seq.
	ReadByType(runID string, t core.EventType) ([]core.Event, error)
}
