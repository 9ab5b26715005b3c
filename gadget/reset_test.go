package gadget_test

import (
	"testing"
	"time"

	"github.com/nasa-jpl/ptpgadget/gadget"
)

func TestResetCoordinatorTriggerBeforeWait(t *testing.T) {
	r := gadget.NewResetCoordinator()
	r.Trigger()

	done := make(chan struct{})
	go func() {
		r.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after a prior Trigger")
	}
}

func TestResetCoordinatorDeviceResetFlag(t *testing.T) {
	r := gadget.NewResetCoordinator()
	r.TriggerDeviceReset()
	if !r.Wait() {
		t.Fatal("Wait after TriggerDeviceReset must report a session clear")
	}
	r.Trigger()
	if r.Wait() {
		t.Fatal("plain Trigger must not report a session clear")
	}
}

func TestResetCoordinatorDeviceResetNotDowngraded(t *testing.T) {
	r := gadget.NewResetCoordinator()
	r.Trigger()
	r.TriggerDeviceReset() // coalesces with the pending trigger
	if !r.Wait() {
		t.Fatal("coalesced device reset lost its session-clear flag")
	}
}

func TestResetCoordinatorTriggerCoalesces(t *testing.T) {
	r := gadget.NewResetCoordinator()
	r.Trigger()
	r.Trigger() // must not block or queue a second signal

	r.Wait()

	done := make(chan struct{})
	go func() {
		r.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second Wait returned without a matching Trigger")
	case <-time.After(50 * time.Millisecond):
	}

	r.Trigger()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not unblock after its own Trigger")
	}
}
