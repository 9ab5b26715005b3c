package gadget

import (
	"context"
	"io"
)

// fakeTransport is an in-memory Transport double shared by control_test.go
// and worker_test.go. It records every call so tests can assert on the
// sequence of Setup-request responses and endpoint lifecycle calls.
type fakeTransport struct {
	events   []Event
	eventErr error

	stringWrites   []stringWrite
	stalls         []bool
	acks           int
	controlWrites  [][]byte
	clearHaltCalls int
	closeBulkCalls int
	interrupts     int
	openBulkErr    error
	bulkOut        io.Reader
	bulkIn         io.Writer
}

type stringWrite struct {
	index  uint8
	langID uint16
}

func (f *fakeTransport) Open(dev DeviceDescriptor, fullSpeed, highSpeed ConfigDescriptor, strs *Strings) error {
	return nil
}

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) ReadEvents(ctx context.Context) ([]Event, error) {
	if f.eventErr != nil {
		return nil, f.eventErr
	}
	ev := f.events
	f.events = nil
	return ev, nil
}

func (f *fakeTransport) WriteStringDescriptor(index uint8, langID uint16) error {
	f.stringWrites = append(f.stringWrites, stringWrite{index, langID})
	return nil
}

func (f *fakeTransport) StallEndpointZero(hostToDevice bool) error {
	f.stalls = append(f.stalls, hostToDevice)
	return nil
}

func (f *fakeTransport) Ack() error {
	f.acks++
	return nil
}

func (f *fakeTransport) WriteControlData(data []byte) error {
	cp := append([]byte(nil), data...)
	f.controlWrites = append(f.controlWrites, cp)
	return nil
}

func (f *fakeTransport) OpenBulkEndpoints() (io.Reader, io.Writer, error) {
	if f.openBulkErr != nil {
		return nil, nil, f.openBulkErr
	}
	return f.bulkOut, f.bulkIn, nil
}

func (f *fakeTransport) CloseBulkEndpoints() error {
	f.closeBulkCalls++
	return nil
}

func (f *fakeTransport) Interrupt() {
	f.interrupts++
}

func (f *fakeTransport) ClearHalt() error {
	f.clearHaltCalls++
	return nil
}

// fakeWorker is a WorkerControl double recording Start/Stop calls.
type fakeWorker struct {
	starts int
	stops  int
}

func (w *fakeWorker) Start() { w.starts++ }
func (w *fakeWorker) Stop()  { w.stops++ }
