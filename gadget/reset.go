package gadget

import "sync/atomic"

// ResetCoordinator hands cancellation off between the control task and the
// bulk worker without a shared lock: the control task signals over a
// channel, the worker observes ErrInterrupted from its current transport
// call and blocks on Wait until the control task has cleared the halt
// conditions and released it. Whether the reset must also clear the PTP
// session rides along on the coordinator, so the session slot itself stays
// owned by the worker goroutine alone.
type ResetCoordinator struct {
	signal       chan struct{}
	clearSession atomic.Bool
}

// NewResetCoordinator returns a coordinator ready for one control task and
// one bulk worker.
func NewResetCoordinator() *ResetCoordinator {
	return &ResetCoordinator{signal: make(chan struct{}, 1)}
}

// Trigger is called by the control task on SET_INTERFACE(0). It wakes any
// worker blocked in Wait exactly once; a Trigger with no waiter pending is
// not lost, it is buffered for the next Wait call.
func (r *ResetCoordinator) Trigger() {
	select {
	case r.signal <- struct{}{}:
	default:
		// a reset is already pending; no need to queue a second one
	}
}

// TriggerDeviceReset is Trigger for a class-specific device reset, which
// additionally requires the worker to close the PTP session. The flag is
// sticky across coalesced triggers so a device reset is never downgraded
// to a plain one.
func (r *ResetCoordinator) TriggerDeviceReset() {
	r.clearSession.Store(true)
	r.Trigger()
}

// Wait blocks until the control task calls Trigger or TriggerDeviceReset.
// The bulk worker calls this after observing ErrInterrupted from a
// transport read or write, before retrying that same call at the same
// buffer offset. It reports whether the reset was a device reset, in
// which case the caller must clear the session from its own goroutine.
func (r *ResetCoordinator) Wait() bool {
	<-r.signal
	return r.clearSession.Swap(false)
}
