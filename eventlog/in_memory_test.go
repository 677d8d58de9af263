package eventlog

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentrun/core"
)

// Interface compliance (compile-time assertion)
var _ Log = (*InMemoryLog)(nil)

func TestInMemoryLog_AppendAndRead(t *testing.T) {
	log := NewInMemoryLog()
	runID := core.NewRunID()

	for i := int64(0); i < 5; i++ {
		require.NoError(t, log.Append(core.NewEvent(runID, i, core.EventStepStarted, map[string]any{"step": i})))
	}

	events, err := log.Read(runID, -1)
	require.NoError(t, err)
	require.Len(t, events, 5)
	for i, ev := range events {
		assert.Equal(t, int64(i), ev.Seq)
		assert.Equal(t, runID, ev.RunID)
	}
}

func TestInMemoryLog_ReadAfterSeq(t *testing.T) {
	log := NewInMemoryLog()
	runID := core.NewRunID()
	for i := int64(0); i < 10; i++ {
		require.NoError(t, log.Append(core.NewEvent(runID, i, core.EventBudgetUpdated, nil)))
	}

	events, err := log.Read(runID, 6)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, int64(7), events[0].Seq)

	// Resuming with the last seen seq yields nothing new.
	events, err = log.Read(runID, 9)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestInMemoryLog_UnknownRun(t *testing.T) {
	log := NewInMemoryLog()
	_, err := log.Read("run-missing", -1)
	var unknown *UnknownRunError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "run-missing", unknown.RunID)
}

func TestInMemoryLog_ReadByType(t *testing.T) {
	log := NewInMemoryLog()
	runID := core.NewRunID()
	require.NoError(t, log.Append(core.NewEvent(runID, 0, core.EventRunStarted, nil)))
	require.NoError(t, log.Append(core.NewEvent(runID, 1, core.EventToolCallStarted, nil)))
	require.NoError(t, log.Append(core.NewEvent(runID, 2, core.EventToolCallStarted, nil)))
	require.NoError(t, log.Append(core.NewEvent(runID, 3, core.EventRunFinished, nil)))

	events, err := log.ReadByType(runID, core.EventToolCallStarted)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, int64(1), events[0].Seq)
	assert.Equal(t, int64(2), events[1].Seq)
}

func TestInMemoryLog_IsolationBetweenRuns(t *testing.T) {
	log := NewInMemoryLog()
	require.NoError(t, log.Append(core.NewEvent("run-a", 0, core.EventRunStarted, nil)))
	require.NoError(t, log.Append(core.NewEvent("run-b", 0, core.EventRunStarted, nil)))

	events, err := log.Read("run-a", -1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "run-a", events[0].RunID)
}

func TestInMemoryLog_ReturnsCopies(t *testing.T) {
	log := NewInMemoryLog()
	runID := core.NewRunID()
	require.NoError(t, log.Append(core.NewEvent(runID, 0, core.EventRunStarted, nil)))

	first, err := log.Read(runID, -1)
	require.NoError(t, err)
	first[0].RunID = "mutated"

	second, err := log.Read(runID, -1)
	require.NoError(t, err)
	assert.Equal(t, runID, second[0].RunID)
}

func TestInMemoryLog_ConcurrentAppendsFromOneCounter(t *testing.T) {
	log := NewInMemoryLog()
	runID := core.NewRunID()
	seq := core.NewSeqCounter()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				err := log.Append(core.NewEvent(runID, seq.Next(), core.EventBudgetUpdated, nil))
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	events, err := log.Read(runID, -1)
	require.NoError(t, err)
	require.Len(t, events, 200)
	for i, ev := range events {
		assert.Equal(t, int64(i), ev.Seq)
	}
}

func TestUnknownRunError_Message(t *testing.T) {
	err := error(&UnknownRunError{RunID: "run-x"})
	assert.Contains(t, err.Error(), "run-x")
	assert.False(t, errors.Is(err, assert.AnError))
}
