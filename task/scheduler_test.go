package task

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentrun/budget"
	"agentrun/core"
	"agentrun/eventlog"
)

func TestScheduler_RunsAllNodes(t *testing.T) {
	log := eventlog.NewInMemoryLog()
	runID := core.NewRunID()
	seq := core.NewSeqCounter()

	var ran atomic.Int32
	work := func(ctx context.Context) (any, error) {
		ran.Add(1)
		return "ok", nil
	}
	a := NewNode("a", work)
	b := NewNode("b", work, a)
	c := NewNode("c", work, a)
	g := NewGraph("g", a, b, c)

	sched := NewScheduler(log, func(o *Options) { o.MaxParallel = 2 })
	require.NoError(t, sched.Run(context.Background(), g, runID, seq))

	assert.Equal(t, int32(3), ran.Load())
	for _, n := range g.Nodes() {
		assert.Equal(t, StateSucceeded, n.State())
	}

	events, err := log.ReadByType(runID, core.EventTaskFinished)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestScheduler_RespectsMaxParallel(t *testing.T) {
	log := eventlog.NewInMemoryLog()

	var running, peak atomic.Int32
	work := func(ctx context.Context) (any, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		running.Add(-1)
		return nil, nil
	}

	g := NewGraph("g")
	for i := 0; i < 6; i++ {
		g.Add(NewNode(fmt.Sprintf("n%d", i), work))
	}

	sched := NewScheduler(log, func(o *Options) { o.MaxParallel = 2 })
	require.NoError(t, sched.Run(context.Background(), g, core.NewRunID(), core.NewSeqCounter()))

	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestScheduler_DependencyOrder(t *testing.T) {
	log := eventlog.NewInMemoryLog()

	// MaxParallel defaults to 1, so appends never race.
	var order []string
	record := func(name string) Work {
		return func(ctx context.Context) (any, error) {
			order = append(order, name)
			return nil, nil
		}
	}
	a := NewNode("a", record("a"))
	b := NewNode("b", record("b"), a)
	c := NewNode("c", record("c"), b)
	g := NewGraph("g", c, a, b)

	sched := NewScheduler(log)
	require.NoError(t, sched.Run(context.Background(), g, core.NewRunID(), core.NewSeqCounter()))
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestScheduler_FailureCascades(t *testing.T) {
	log := eventlog.NewInMemoryLog()
	runID := core.NewRunID()

	boom := errors.New("boom")
	a := NewNode("a", func(ctx context.Context) (any, error) { return nil, boom })
	b := NewNode("b", func(ctx context.Context) (any, error) {
		t.Error("b must never run")
		return nil, nil
	}, a)
	c := NewNode("c", func(ctx context.Context) (any, error) { return nil, nil })
	g := NewGraph("g", a, b, c)

	sched := NewScheduler(log, func(o *Options) { o.MaxParallel = 2 })
	err := sched.Run(context.Background(), g, runID, core.NewSeqCounter())

	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, StateFailed, a.State())
	assert.Equal(t, StateFailed, b.State())
	assert.Equal(t, StateSucceeded, c.State())

	// The short-circuited node still gets a TaskFinished record.
	events, readErr := log.ReadByType(runID, core.EventTaskFinished)
	require.NoError(t, readErr)
	assert.Len(t, events, 3)
}

func TestScheduler_ContextCancellation(t *testing.T) {
	log := eventlog.NewInMemoryLog()
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	a := NewNode("a", func(ctx context.Context) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	b := NewNode("b", func(ctx context.Context) (any, error) { return nil, nil }, a)
	g := NewGraph("g", a, b)

	go func() {
		<-started
		cancel()
	}()

	sched := NewScheduler(log)
	err := sched.Run(ctx, g, core.NewRunID(), core.NewSeqCounter())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatePending, b.State())
}

func TestScheduler_MirrorsParallelismIntoTracker(t *testing.T) {
	log := eventlog.NewInMemoryLog()
	runID := core.NewRunID()
	seq := core.NewSeqCounter()
	spec := budget.Spec{
		MaxTokens:         1000,
		MaxToolCalls:      10,
		MaxTimeSeconds:    60,
		MaxRecursionDepth: 2,
		MaxParallel:       2,
	}
	tracker := budget.NewTracker(spec, log, runID, seq)

	g := NewGraph("g")
	for i := 0; i < 4; i++ {
		g.Add(NewNode(fmt.Sprintf("n%d", i), func(ctx context.Context) (any, error) {
			time.Sleep(5 * time.Millisecond)
			return nil, nil
		}))
	}

	sched := NewScheduler(log, func(o *Options) {
		o.MaxParallel = 2
		o.Tracker = tracker
	})
	require.NoError(t, sched.Run(context.Background(), g, runID, seq))
	assert.Equal(t, int64(0), tracker.Usage().CurrentParallel)
}

func TestScheduler_RejectsInvalidGraph(t *testing.T) {
	log := eventlog.NewInMemoryLog()
	a := NewNode("a", noopWork)
	b := NewNode("b", noopWork, a)
	a.dependsOn = append(a.dependsOn, b)
	g := NewGraph("g", a, b)

	sched := NewScheduler(log)
	err := sched.Run(context.Background(), g, core.NewRunID(), core.NewSeqCounter())
	var cfgErr *core.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}
