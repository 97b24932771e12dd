// Package commissioner implements the synchronization primitives a driver
// uses to perform device work on a commissioned node: ConnectAndExecute
// bridges a synchronous driver entry point onto the Matter stack's
// asynchronous connect-then-invoke flow, and HandleRegistry tracks
// driver-owned contexts handed to the stack so a callback's access to them
// can be safely invalidated once the operation is abandoned.
package commissioner

import (
	"context"
	"time"

	"github.com/comcast-iotdm/sbmd-matter-driver/internal/matterim"
)

// Completion is a single unit of promised asynchronous work: it receives
// exactly one error (nil for success) when that work finishes, mirroring
// a std::promise<bool> in the original driver.
type Completion chan error

// NewCompletion returns a completion channel ready to receive one result.
func NewCompletion() Completion { return make(chan error, 1) }

// Fail returns a completion that has already failed, for callers that
// need to report an immediate failure without scheduling real async work
// — the same role FailOperation plays against an empty promise list.
func Fail(err error) Completion {
	c := make(chan error, 1)
	c <- err
	return c
}

// ConnectFunc establishes a session with a device and returns the
// interaction-model handle to reach it.
type ConnectFunc func(ctx context.Context) (matterim.ExchangeManager, matterim.NodeID, error)

// WorkFunc performs device interactions once connected. It may complete
// entirely synchronously (returning no completions, which ConnectAndExecute
// treats as immediate success) or hand back completions for work that
// will finish asynchronously via interaction-model callbacks.
type WorkFunc func(ctx context.Context, exch matterim.ExchangeManager, node matterim.NodeID) ([]Completion, error)

// ConnectAndExecute connects to a device and runs work against it,
// waiting for either the first failed completion or the entire set to
// succeed, whichever comes first — matching
// MatterDeviceDriver::ConnectAndExecute's documented semantics.
func ConnectAndExecute(ctx context.Context, connect ConnectFunc, work WorkFunc, timeout time.Duration) error {
	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	exch, node, err := connect(dctx)
	if err != nil {
		return err
	}

	completions, err := work(dctx, exch, node)
	if err != nil {
		return err
	}
	if len(completions) == 0 {
		return nil
	}

	results := make(chan error, len(completions))
	for _, c := range completions {
		c := c
		go func() {
			select {
			case e := <-c:
				results <- e
			case <-dctx.Done():
				results <- dctx.Err()
			}
		}()
	}

	remaining := len(completions)
	for remaining > 0 {
		select {
		case e := <-results:
			if e != nil {
				return e
			}
			remaining--
		case <-dctx.Done():
			return dctx.Err()
		}
	}
	return nil
}
