package eventlog

import (
	"sort"
	"sync"

	"agentrun/core"
)

// InMemoryLog is a volatile Log implementation storing events in a process
// local map keyed by run id. It is safe for concurrent use and best suited
// for tests or single-process sessions. Returned slices are copies so
// callers cannot mutate the stored stream.
type InMemoryLog struct {
	mu     sync.RWMutex
	events map[string][]core.Event
}

// NewInMemoryLog constructs an empty in-memory event log.
func NewInMemoryLog() *InMemoryLog {
	return &InMemoryLog{events: make(map[string][]core.Event)}
}

// Append stores the event. No deduplication: appending the same event twice
// produces two retrievable records.
func (l *InMemoryLog) Append(ev core.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events[ev.RunID] = append(l.events[ev.RunID], ev)
	return nil
}

// Read returns the run's events with seq > afterSeq, ascending.
func (l *InMemoryLog) Read(runID string, afterSeq int64) ([]core.Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	stream, ok := l.events[runID]
	if !ok {
		return nil, &UnknownRunError{RunID: runID}
	}
	out := make([]core.Event, 0, len(stream))
	for _, ev := range stream {
		if ev.Seq > afterSeq {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

// ReadByType returns the run's events of the given type, ascending by seq.
func (l *InMemoryLog) ReadByType(runID string, t core.EventType) ([]core.Event, error) {
	all, err := l.Read(runID, -1)
	if err != nil {
		return nil, err
	}
	out := make([]core.Event, 0, len(all))
	for _, ev := range all {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out, nil
}
