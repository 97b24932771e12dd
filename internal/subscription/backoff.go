package subscription

import (
	"math/rand"

	"github.com/comcast-iotdm/sbmd-matter-driver/internal/common"
)

// fibonacci returns the nth Fibonacci number (fibonacci(0)==0, fibonacci(1)==1),
// matching chip::GetFibonacciForIndex's indexing.
func fibonacci(n uint32) uint64 {
	if n == 0 {
		return 0
	}
	a, b := uint64(0), uint64(1)
	for i := uint32(1); i < n; i++ {
		a, b = b, a+b
	}
	return b
}

// ComputeResubscribeWaitMs implements CustomComputeTimeTillNextSubscription:
// the wait ceiling grows along the Fibonacci sequence (scaled by
// ResubscribeBaseMs) until it saturates at ResubscribeMaxRetryWaitMs — a
// 10m24s cap well below the Matter SDK's own ~92 minute default, so a
// device that comes back online isn't left waiting through an hour-long
// retry gap. The actual wait is then drawn uniformly from
// [ResubscribeMinPercent% of ceiling, ceiling].
func ComputeResubscribeWaitMs(attempt uint32) uint32 {
	maxWait := fibonacci(attempt) * common.ResubscribeBaseMs
	if maxWait == 0 {
		return 0
	}
	if maxWait > common.ResubscribeMaxRetryWaitMs {
		maxWait = common.ResubscribeMaxRetryWaitMs
	}

	minWait := maxWait * common.ResubscribeMinPercent / 100
	jitterRange := maxWait - minWait
	if jitterRange == 0 {
		return uint32(minWait)
	}
	return uint32(minWait) + uint32(rand.Int63n(int64(jitterRange)+1))
}
