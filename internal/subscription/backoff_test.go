package subscription

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeResubscribeWaitMsWithinBounds(t *testing.T) {
	for attempt := uint32(1); attempt <= 25; attempt++ {
		wait := ComputeResubscribeWaitMs(attempt)
		require.LessOrEqual(t, wait, uint32(624000))
	}
}

func TestComputeResubscribeWaitMsAfter20FailuresMatchesE6(t *testing.T) {
	for i := 0; i < 200; i++ {
		wait := ComputeResubscribeWaitMs(20)
		require.GreaterOrEqual(t, wait, uint32(187200))
		require.LessOrEqual(t, wait, uint32(624000))
	}
}

func TestComputeResubscribeWaitMsZeroAttemptIsZero(t *testing.T) {
	require.Equal(t, uint32(0), ComputeResubscribeWaitMs(0))
}

func TestComputeResubscribeWaitMsSaturatesAtCeiling(t *testing.T) {
	wait := ComputeResubscribeWaitMs(30)
	require.GreaterOrEqual(t, wait, uint32(187200))
	require.LessOrEqual(t, wait, uint32(624000))
}
