package budget

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentrun/core"
	"agentrun/eventlog"
)

func newTestTracker(t *testing.T, spec Spec) (*Tracker, eventlog.Log, string) {
	t.Helper()
	log := eventlog.NewInMemoryLog()
	runID := core.NewRunID()
	return NewTracker(spec, log, runID, core.NewSeqCounter()), log, runID
}

func TestTracker_ApplyEmitsBudgetUpdated(t *testing.T) {
	tracker, log, runID := newTestTracker(t, testSpec())

	require.NoError(t, tracker.Apply(Delta{Tokens: 10, TimeSeconds: 0.5}))
	require.NoError(t, tracker.RecordToolCall())

	usage := tracker.Usage()
	assert.Equal(t, int64(10), usage.TokensUsed)
	assert.Equal(t, int64(1), usage.ToolCallsUsed)
	assert.InDelta(t, 0.5, usage.TimeElapsedSeconds, 1e-9)

	events, err := log.ReadByType(runID, core.EventBudgetUpdated)
	require.NoError(t, err)
	require.Len(t, events, 2)
	snapshot, ok := events[1].Payload["usage"].(Usage)
	require.True(t, ok)
	assert.Equal(t, int64(1), snapshot.ToolCallsUsed)
}

func TestTracker_CheckEmitsBudgetExceededOnce(t *testing.T) {
	spec := testSpec()
	spec.MaxToolCalls = 1
	tracker, log, runID := newTestTracker(t, spec)

	require.NoError(t, tracker.Check())
	require.NoError(t, tracker.RecordToolCall())

	err := tracker.Check()
	var exceeded *ExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, LimitToolCalls, exceeded.Limit)

	events, readErr := log.ReadByType(runID, core.EventBudgetExceeded)
	require.NoError(t, readErr)
	require.Len(t, events, 1)
	assert.Equal(t, string(LimitToolCalls), events[0].Payload["limit"])
}

func TestTracker_EnterRecursionEnforcesDepth(t *testing.T) {
	spec := testSpec()
	spec.MaxRecursionDepth = 1
	tracker, _, _ := newTestTracker(t, spec)

	// Depth 1 equals the cap and trips it (limits are boundaries you may
	// not reach for cumulative-style counters).
	err := tracker.EnterRecursion()
	var exceeded *ExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, LimitRecursionDepth, exceeded.Limit)

	require.NoError(t, tracker.ExitRecursion())
	assert.Equal(t, int64(0), tracker.Usage().CurrentRecursionDepth)
}

func TestTracker_ParallelCounterNeverNegative(t *testing.T) {
	tracker, _, _ := newTestTracker(t, testSpec())
	require.NoError(t, tracker.ExitParallel())
	assert.Equal(t, int64(0), tracker.Usage().CurrentParallel)
}

func TestTracker_ConcurrentApplySerializes(t *testing.T) {
	spec := testSpec()
	spec.MaxTokens = 1_000_000
	tracker, _, _ := newTestTracker(t, spec)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				assert.NoError(t, tracker.RecordTokens(1))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(500), tracker.Usage().TokensUsed)
}

func TestTracker_EnterParallelAllowsCapThenTrips(t *testing.T) {
	spec := testSpec()
	spec.MaxParallel = 2
	tracker, _, _ := newTestTracker(t, spec)

	require.NoError(t, tracker.EnterParallel())
	require.NoError(t, tracker.EnterParallel())

	err := tracker.EnterParallel()
	var exceeded *ExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, LimitParallel, exceeded.Limit)
}
