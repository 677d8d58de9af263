package budget

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSpec() Spec {
	return Spec{
		MaxTokens:         100,
		MaxToolCalls:      5,
		MaxTimeSeconds:    60,
		MaxRecursionDepth: 2,
		MaxParallel:       3,
	}
}

func TestSpec_Validate(t *testing.T) {
	require.NoError(t, testSpec().Validate())

	bad := testSpec()
	bad.MaxTokens = 0
	assert.Error(t, bad.Validate())

	bad = testSpec()
	bad.MaxParallel = -1
	assert.Error(t, bad.Validate())
}

func TestUsage_Exceeds_WithinLimits(t *testing.T) {
	usage := Usage{TokensUsed: 50, ToolCallsUsed: 2, TimeElapsedSeconds: 10}
	_, exceeded := usage.Exceeds(testSpec())
	assert.False(t, exceeded)
}

func TestUsage_Exceeds_CumulativeTripsAtCap(t *testing.T) {
	// Reaching a cumulative cap exactly is a violation.
	usage := Usage{TokensUsed: 100}
	limit, exceeded := usage.Exceeds(testSpec())
	require.True(t, exceeded)
	assert.Equal(t, LimitTokens, limit)

	usage = Usage{ToolCallsUsed: 5}
	limit, exceeded = usage.Exceeds(testSpec())
	require.True(t, exceeded)
	assert.Equal(t, LimitToolCalls, limit)

	usage = Usage{TimeElapsedSeconds: 60}
	limit, exceeded = usage.Exceeds(testSpec())
	require.True(t, exceeded)
	assert.Equal(t, LimitTime, limit)

	usage = Usage{CurrentRecursionDepth: 2}
	limit, exceeded = usage.Exceeds(testSpec())
	require.True(t, exceeded)
	assert.Equal(t, LimitRecursionDepth, limit)
}

func TestUsage_Exceeds_ParallelMayEqualCap(t *testing.T) {
	// Parallelism is allowed to sit at the cap; only exceeding it trips.
	usage := Usage{CurrentParallel: 3}
	_, exceeded := usage.Exceeds(testSpec())
	assert.False(t, exceeded)

	usage.CurrentParallel = 4
	limit, exceeded := usage.Exceeds(testSpec())
	require.True(t, exceeded)
	assert.Equal(t, LimitParallel, limit)
}

func TestUsage_Exceeds_FirstViolationWins(t *testing.T) {
	usage := Usage{TokensUsed: 500, ToolCallsUsed: 50, TimeElapsedSeconds: 999}
	limit, exceeded := usage.Exceeds(testSpec())
	require.True(t, exceeded)
	assert.Equal(t, LimitTokens, limit)
}

func TestDelta_RejectsNegativeCumulative(t *testing.T) {
	assert.Error(t, Delta{Tokens: -1}.validate())
	assert.Error(t, Delta{ToolCalls: -1}.validate())
	assert.Error(t, Delta{TimeSeconds: -0.5}.validate())
	// Depth and parallel changes may go both ways.
	assert.NoError(t, Delta{RecursionDepthChange: -1, ParallelChange: -1}.validate())
}

func TestExceededError_Message(t *testing.T) {
	err := &ExceededError{Limit: LimitTokens, Usage: Usage{TokensUsed: 100}, Spec: testSpec()}
	assert.Contains(t, err.Error(), "max_tokens")
}
