package task

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"

	"agentrun/budget"
	"agentrun/core"
	"agentrun/eventlog"
	"agentrun/logging"
)

// Options holds configuration overrides passed to NewScheduler.
type Options struct {
	// MaxParallel caps the number of nodes in RUNNING state at once.
	MaxParallel int64
	// Tracker, when set, mirrors admission into the run's shared
	// current_parallel budget counter.
	Tracker *budget.Tracker
	// Logger receives scheduling diagnostics.
	Logger logging.Logger
}

// ExecutionError reports the first node that failed during a graph run.
type ExecutionError struct {
	Node *Node
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("task %q failed: %v", e.Node.Name(), e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Scheduler runs a Graph's nodes respecting dependency order under a
// concurrency cap. A node is dispatched the instant all of its
// dependencies have SUCCEEDED; a node whose dependency FAILED is
// short-circuited to FAILED without ever running. When capacity is full,
// eligible nodes queue in FIFO order by eligibility time.
type Scheduler struct {
	log         eventlog.Log
	maxParallel int64
	tracker     *budget.Tracker
	logger      logging.Logger
}

// NewScheduler constructs a Scheduler appending task lifecycle events to
// the given log.
func NewScheduler(log eventlog.Log, optFns ...func(o *Options)) *Scheduler {
	opts := Options{
		MaxParallel: 1,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxParallel < 1 {
		opts.MaxParallel = 1
	}
	return &Scheduler{
		log:         log,
		maxParallel: opts.MaxParallel,
		tracker:     opts.Tracker,
		logger:      opts.Logger,
	}
}

// Run executes the graph to completion. It validates first, dispatches
// eligible nodes up to the concurrency cap, and returns an ExecutionError
// for the first failed node (after all reachable nodes have settled), or
// ctx.Err() if the context was cancelled. In-flight nodes are never
// hard-killed: on cancellation the scheduler stops admitting and waits for
// running work to return.
func (s *Scheduler) Run(ctx context.Context, g *Graph, runID string, seq *core.SeqCounter) error {
	if err := g.Validate(); err != nil {
		return err
	}

	pending := make([]*Node, len(g.Nodes()))
	copy(pending, g.Nodes())

	sem := semaphore.NewWeighted(s.maxParallel)
	completions := make(chan *Node, len(pending))

	var (
		queue    []*Node // eligible, FIFO by eligibility time
		inflight int
		failed   []*Node
		stopped  bool
	)

	for len(pending) > 0 || inflight > 0 || len(queue) > 0 {
		if !stopped {
			pending, queue, failed = s.promote(pending, queue, failed, runID, seq)
		}

		// Admit queued nodes while capacity remains.
		for len(queue) > 0 && !stopped {
			if !sem.TryAcquire(1) {
				break
			}
			node := queue[0]
			queue = queue[1:]
			inflight++
			go s.dispatch(ctx, node, runID, seq, sem, completions)
		}

		if inflight == 0 && (stopped || (len(queue) == 0 && len(pending) == 0)) {
			break
		}

		select {
		case node := <-completions:
			inflight--
			if node.State() == StateFailed {
				failed = append(failed, node)
			}
		case <-ctx.Done():
			stopped = true
			// Drain in-flight work; nodes observe ctx themselves.
			for inflight > 0 {
				node := <-completions
				inflight--
				if node.State() == StateFailed {
					failed = append(failed, node)
				}
			}
		}
	}

	if stopped {
		return ctx.Err()
	}
	if len(failed) > 0 {
		first := failed[0]
		_, err := first.Result()
		return &ExecutionError{Node: first, Err: err}
	}
	return nil
}

// promote moves ready pending nodes onto the eligible queue and
// short-circuits blocked ones to FAILED, cascading until a fixpoint.
func (s *Scheduler) promote(pending, queue, failed []*Node, runID string, seq *core.SeqCounter) ([]*Node, []*Node, []*Node) {
	for changed := true; changed; {
		changed = false
		remaining := pending[:0]
		for _, n := range pending {
			if dep, isBlocked := n.blocked(); isBlocked {
				err := fmt.Errorf("dependency %q failed", dep.Name())
				n.finish(nil, err)
				failed = append(failed, n)
				s.emitTaskFinished(runID, seq, n)
				s.logger.Debug("task short-circuited", "task", n.Name(), "dependency", dep.Name())
				changed = true
				continue
			}
			if n.ready() {
				queue = append(queue, n)
				changed = true
				continue
			}
			remaining = append(remaining, n)
		}
		pending = remaining
	}
	return pending, queue, failed
}

func (s *Scheduler) dispatch(
	ctx context.Context,
	node *Node,
	runID string,
	seq *core.SeqCounter,
	sem *semaphore.Weighted,
	completions chan<- *Node,
) {
	// Deferred in reverse order: the semaphore slot must be released
	// before the completion is observable, or admission could stall.
	defer func() { completions <- node }()
	defer sem.Release(1)

	if s.tracker != nil {
		if err := s.tracker.EnterParallel(); err != nil {
			node.finish(nil, err)
			s.emitTaskFinished(runID, seq, node)
			return
		}
		defer func() { _ = s.tracker.ExitParallel() }()
	}

	if !node.start() {
		return
	}
	_ = s.log.Append(core.NewEvent(runID, seq.Next(), core.EventTaskStarted, map[string]any{
		"task_id":   node.ID(),
		"task_name": node.Name(),
	}))
	s.logger.Debug("task started", "task", node.Name())

	result, err := node.work(ctx)
	node.finish(result, err)
	s.emitTaskFinished(runID, seq, node)
	s.logger.Debug("task finished", "task", node.Name(), "state", string(node.State()))
}

func (s *Scheduler) emitTaskFinished(runID string, seq *core.SeqCounter, node *Node) {
	payload := map[string]any{
		"task_id":   node.ID(),
		"task_name": node.Name(),
		"state":     string(node.State()),
	}
	if _, err := node.Result(); err != nil {
		payload["error"] = err.Error()
	}
	_ = s.log.Append(core.NewEvent(runID, seq.Next(), core.EventTaskFinished, payload))
}
