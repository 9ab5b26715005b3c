package gadget

import (
	"os"
	"testing"

	"github.com/charmbracelet/log"
)

func newTestControlHandler() (*ControlHandler, *fakeTransport, *fakeWorker) {
	ft := &fakeTransport{}
	fw := &fakeWorker{}
	strs := NewStrings()
	logger := log.New(os.Stderr)
	c := NewControlHandler(ft, NewResetCoordinator(), fw, strs, logger)
	return c, ft, fw
}

func TestSetConfigurationOneStartsWorker(t *testing.T) {
	c, ft, fw := newTestControlHandler()
	req := SetupRequest{RequestType: requestTypeStandard, Request: reqSetConfiguration, Value: 1}
	c.handleSetup(req)

	if fw.starts != 1 {
		t.Errorf("worker.Start calls = %d, want 1", fw.starts)
	}
	if !c.configured {
		t.Error("configured = false, want true after SET_CONFIGURATION(1)")
	}
	if ft.acks != 1 {
		t.Errorf("acks = %d, want 1", ft.acks)
	}
}

func TestSetConfigurationZeroStopsWorker(t *testing.T) {
	c, _, fw := newTestControlHandler()
	c.handleSetup(SetupRequest{RequestType: requestTypeStandard, Request: reqSetConfiguration, Value: 1})
	c.handleSetup(SetupRequest{RequestType: requestTypeStandard, Request: reqSetConfiguration, Value: 0})

	if fw.stops != 1 {
		t.Errorf("worker.Stop calls = %d, want 1", fw.stops)
	}
	if c.configured {
		t.Error("configured = true, want false after SET_CONFIGURATION(0)")
	}
}

func TestSetConfigurationUnsupportedValueStalls(t *testing.T) {
	c, ft, _ := newTestControlHandler()
	c.handleSetup(SetupRequest{RequestType: requestTypeStandard, Request: reqSetConfiguration, Value: 2})

	if len(ft.stalls) != 1 {
		t.Fatalf("stalls = %d, want 1", len(ft.stalls))
	}
}

func TestSetInterfaceZeroTriggersResetAndClearsHalt(t *testing.T) {
	c, ft, _ := newTestControlHandler()
	req := SetupRequest{RequestType: requestTypeStandard, Request: reqSetInterface, Value: 0}
	c.handleSetup(req)

	if ft.interrupts != 1 {
		t.Errorf("Interrupt calls = %d, want 1", ft.interrupts)
	}
	if ft.clearHaltCalls != 1 {
		t.Errorf("ClearHalt calls = %d, want 1", ft.clearHaltCalls)
	}
	if ft.acks != 1 {
		t.Errorf("acks = %d, want 1", ft.acks)
	}

	select {
	case <-resetSignal(c.reset):
	default:
		t.Error("reset coordinator was not triggered")
	}
	if c.reset.clearSession.Load() {
		t.Error("SET_INTERFACE(0) must not request a session clear")
	}
}

func TestSetInterfaceNonZeroStalls(t *testing.T) {
	c, ft, _ := newTestControlHandler()
	c.handleSetup(SetupRequest{RequestType: requestTypeStandard, Request: reqSetInterface, Value: 1})
	if len(ft.stalls) != 1 {
		t.Fatalf("stalls = %d, want 1", len(ft.stalls))
	}
}

func TestGetDescriptorStringWritesDescriptor(t *testing.T) {
	c, ft, _ := newTestControlHandler()
	req := SetupRequest{RequestType: requestTypeStandard, Request: reqGetDescriptor, Value: uint16(descTypeString)<<8 | 1, Index: 0x0409}
	c.handleSetup(req)

	if len(ft.stringWrites) != 1 {
		t.Fatalf("string writes = %d, want 1", len(ft.stringWrites))
	}
	if ft.stringWrites[0].index != 1 || ft.stringWrites[0].langID != 0x0409 {
		t.Errorf("string write = %+v, want index=1 langID=0x0409", ft.stringWrites[0])
	}
}

func TestGetDescriptorNonStringStalls(t *testing.T) {
	c, ft, _ := newTestControlHandler()
	req := SetupRequest{RequestType: requestTypeStandard, Request: reqGetDescriptor, Value: uint16(descTypeDevice) << 8}
	c.handleSetup(req)
	if len(ft.stalls) != 1 {
		t.Fatalf("stalls = %d, want 1", len(ft.stalls))
	}
}

func TestDeviceResetRequestRequestsSessionClear(t *testing.T) {
	c, ft, _ := newTestControlHandler()

	req := SetupRequest{RequestType: requestTypeClass, Request: reqDeviceResetRequest}
	c.handleSetup(req)

	if ft.interrupts != 1 {
		t.Errorf("Interrupt calls = %d, want 1", ft.interrupts)
	}
	if ft.clearHaltCalls != 1 {
		t.Errorf("ClearHalt calls = %d, want 1", ft.clearHaltCalls)
	}
	if ft.acks != 1 {
		t.Errorf("acks = %d, want 1", ft.acks)
	}
	// The coordinator must be released and carry the session-clear flag
	// for the worker to act on from its own goroutine.
	if !c.reset.Wait() {
		t.Error("device reset must request a session clear through the coordinator")
	}
}

func TestGetDeviceStatusRequestWritesOKStatus(t *testing.T) {
	c, ft, _ := newTestControlHandler()
	req := SetupRequest{RequestType: requestTypeClass, Request: reqGetDeviceStatusRequest}
	c.handleSetup(req)

	if len(ft.controlWrites) != 1 {
		t.Fatalf("control writes = %d, want 1", len(ft.controlWrites))
	}
	if len(ft.controlWrites[0]) != 4 {
		t.Errorf("device status payload length = %d, want 4", len(ft.controlWrites[0]))
	}
}

func TestCancelRequestAcksWithoutDraining(t *testing.T) {
	c, ft, _ := newTestControlHandler()
	req := SetupRequest{RequestType: requestTypeClass, Request: reqCancelRequest}
	c.handleSetup(req)
	if ft.acks != 1 {
		t.Errorf("acks = %d, want 1", ft.acks)
	}
}

func TestUnknownRequestTypeStalls(t *testing.T) {
	c, ft, _ := newTestControlHandler()
	req := SetupRequest{RequestType: 0x40, Request: reqGetStatus}
	c.handleSetup(req)
	if len(ft.stalls) != 1 {
		t.Fatalf("stalls = %d, want 1", len(ft.stalls))
	}
}

func TestDisconnectStopsConfiguredWorker(t *testing.T) {
	c, _, fw := newTestControlHandler()
	c.handleSetup(SetupRequest{RequestType: requestTypeStandard, Request: reqSetConfiguration, Value: 1})
	c.handle(Event{Kind: EventDisconnect})
	if fw.stops != 1 {
		t.Errorf("worker.Stop calls = %d, want 1", fw.stops)
	}
	if c.configured {
		t.Error("configured = true after disconnect, want false")
	}
}

// resetSignal exposes the coordinator's internal channel so the test can
// assert a pending trigger without racing a second Wait call.
func resetSignal(r *ResetCoordinator) chan struct{} {
	return r.signal
}
