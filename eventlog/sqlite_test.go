package eventlog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentrun/core"
)

var _ Log = (*SQLiteLog)(nil)

func newTestSQLiteLog(t *testing.T) *SQLiteLog {
	t.Helper()
	log, err := NewSQLiteLog(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })
	return log
}

func TestSQLiteLog_AppendAndRead(t *testing.T) {
	log := newTestSQLiteLog(t)
	runID := core.NewRunID()

	require.NoError(t, log.Append(core.NewEvent(runID, 0, core.EventRunStarted, map[string]any{"executor": "test"})))
	require.NoError(t, log.Append(core.NewEvent(runID, 1, core.EventToolCallStarted, map[string]any{"tool_name": "echo"})))
	require.NoError(t, log.Append(core.NewEvent(runID, 2, core.EventRunFinished, nil)))

	events, err := log.Read(runID, -1)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, core.EventRunStarted, events[0].Type)
	assert.Equal(t, "test", events[0].Payload["executor"])
	assert.Equal(t, "echo", events[1].Payload["tool_name"])
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestSQLiteLog_ReadAfterSeq(t *testing.T) {
	log := newTestSQLiteLog(t)
	runID := core.NewRunID()
	for i := int64(0); i < 6; i++ {
		require.NoError(t, log.Append(core.NewEvent(runID, i, core.EventBudgetUpdated, nil)))
	}

	events, err := log.Read(runID, 3)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, int64(4), events[0].Seq)
	assert.Equal(t, int64(5), events[1].Seq)
}

func TestSQLiteLog_UnknownRun(t *testing.T) {
	log := newTestSQLiteLog(t)
	_, err := log.Read("run-missing", -1)
	var unknown *UnknownRunError
	require.ErrorAs(t, err, &unknown)
}

func TestSQLiteLog_DuplicateSeqRejected(t *testing.T) {
	log := newTestSQLiteLog(t)
	runID := core.NewRunID()
	require.NoError(t, log.Append(core.NewEvent(runID, 0, core.EventRunStarted, nil)))
	assert.Error(t, log.Append(core.NewEvent(runID, 0, core.EventRunStarted, nil)))
}

func TestSQLiteLog_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	runID := core.NewRunID()

	log, err := NewSQLiteLog(path)
	require.NoError(t, err)
	require.NoError(t, log.Append(core.NewEvent(runID, 0, core.EventRunStarted, nil)))
	require.NoError(t, log.Close())

	reopened, err := NewSQLiteLog(path)
	require.NoError(t, err)
	defer reopened.Close()

	events, err := reopened.Read(runID, -1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, core.EventRunStarted, events[0].Type)
}

func TestSQLiteLog_ReadByType(t *testing.T) {
	log := newTestSQLiteLog(t)
	runID := core.NewRunID()
	require.NoError(t, log.Append(core.NewEvent(runID, 0, core.EventRunStarted, nil)))
	require.NoError(t, log.Append(core.NewEvent(runID, 1, core.EventBudgetUpdated, nil)))
	require.NoError(t, log.Append(core.NewEvent(runID, 2, core.EventBudgetUpdated, nil)))

	events, err := log.ReadByType(runID, core.EventBudgetUpdated)
	require.NoError(t, err)
	require.Len(t, events, 2)
}
