package session

import (
	"context"
	"time"

	"agentrun/core"
)

// StreamerOptions configure a Streamer.
type StreamerOptions struct {
	// PollInterval is the delay between event log polls.
	PollInterval time.Duration

	// GracePolls is the number of consecutive empty polls after the
	// session reaches a terminal state before the stream ends. The grace
	// window lets late writes from draining goroutines through.
	GracePolls int
}

// Streamer forwards a session's events to a callback in seq order. It
// polls the orchestrator's read surface, so it observes exactly what any
// external client would.
type Streamer struct {
	opts StreamerOptions
}

// NewStreamer creates a Streamer with the given options.
func NewStreamer(optFns ...func(o *StreamerOptions)) *Streamer {
	opts := StreamerOptions{
		PollInterval: 100 * time.Millisecond,
		GracePolls:   3,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Streamer{opts: opts}
}

// Stream pushes new session events to fn until the session reaches a
// terminal state and the grace window drains, the context is cancelled, or
// fn returns an error. Each event is delivered exactly once in ascending
// seq order.
func (s *Streamer) Stream(
	ctx context.Context,
	orch *Orchestrator,
	sessionID string,
	fn func(ev core.Event) error,
) error {
	lastSeq := int64(-1)
	idlePolls := 0

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		events, err := orch.SessionEvents(sessionID, lastSeq)
		if err != nil {
			return err
		}

		if len(events) > 0 {
			idlePolls = 0
			for _, ev := range events {
				if err := fn(ev); err != nil {
					return err
				}
				if ev.Seq > lastSeq {
					lastSeq = ev.Seq
				}
			}
		} else {
			idlePolls++
		}

		state, err := orch.SessionState(sessionID)
		if err != nil {
			return err
		}
		if state.Terminal() && idlePolls >= s.opts.GracePolls {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
