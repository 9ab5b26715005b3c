// Package gadget drives a USB gadgetfs character-device transport: the
// control handler that answers Setup requests and bus events, the bulk
// worker that reads/dispatches/writes PTP containers, and the reset
// coordinator that hands off cancellation between the two.
package gadget

import (
	"context"
	"io"

	"github.com/pkg/errors"
)

// EventKind enumerates the gadgetfs control events the control handler
// reacts to.
type EventKind int

const (
	EventNOP EventKind = iota
	EventConnect
	EventSetup
	EventDisconnect
	EventSuspend
)

// Event is one decoded gadgetfs control-endpoint event.
type Event struct {
	Kind  EventKind
	Speed int // valid for EventConnect
	Setup SetupRequest
}

// SetupRequest mirrors a USB control transfer's 8-byte Setup packet.
type SetupRequest struct {
	RequestType uint8
	Request     uint8
	Value       uint16
	Index       uint16
	Length      uint16
}

// ErrEAGAIN is returned by Transport.ReadEvents when no event is
// currently pending on the control fd; the control handler backs off and
// retries rather than treating it as fatal.
var ErrEAGAIN = errors.New("gadget: control read would block")

// ErrInterrupted is returned by Transport.BulkRead/BulkWrite when the
// reset coordinator cancels an in-flight transfer. The bulk worker treats
// this distinctly: it waits on the coordinator, then retries the same
// call with the same buffer offset.
var ErrInterrupted = errors.New("gadget: bulk transfer interrupted")

// Transport is the abstract gadgetfs collaborator. A concrete
// implementation opens /dev/gadget/<controller> for the control fd and
// /dev/gadget/<ep-name> for each endpoint, and maps ioctls/reads/writes
// onto this interface. Tests substitute an in-memory fake.
type Transport interface {
	// Open establishes the control endpoint: it writes the gadgetfs
	// descriptor blob (device descriptor plus full- and high-speed
	// configuration descriptors) that lets the kernel answer
	// GET_DESCRIPTOR(DEVICE) and GET_DESCRIPTOR(CONFIGURATION) without
	// further help, then retains strs to answer GET_DESCRIPTOR(STRING).
	Open(dev DeviceDescriptor, fullSpeed, highSpeed ConfigDescriptor, strs *Strings) error

	// Close releases the control fd. Called once, after the bulk worker
	// (if any) has been joined and its endpoints closed.
	Close() error

	// ReadEvents blocks until at least one control event is available,
	// or returns ErrEAGAIN if the control fd is non-blocking and has
	// nothing pending.
	ReadEvents(ctx context.Context) ([]Event, error)

	// WriteStringDescriptor answers a GET_DESCRIPTOR(STRING) Setup
	// request with the UTF-16LE-encoded string descriptor for index.
	WriteStringDescriptor(index uint8, langID uint16) error

	// StallEndpointZero issues a zero-length transfer in dir (opposite
	// of the requested data stage) to stall an unsupported Setup
	// request.
	StallEndpointZero(hostToDevice bool) error

	// Ack completes the status stage of a no-data Setup request (e.g.
	// SET_CONFIGURATION, SET_INTERFACE) with a zero-length transfer in
	// the expected direction, signaling success rather than a stall.
	Ack() error

	// WriteControlData answers a device-to-host Setup request carrying
	// an explicit data payload that isn't a standard string/device/
	// configuration descriptor, e.g. GET_DEVICE_STATUS_REQUEST's 4-byte
	// TLV.
	WriteControlData(data []byte) error

	// OpenBulkEndpoints opens bulk-IN, bulk-OUT, and interrupt-IN and
	// returns read/write streams for the bulk pair.
	OpenBulkEndpoints() (out io.Reader, in io.Writer, err error)

	// CloseBulkEndpoints closes the endpoints opened by
	// OpenBulkEndpoints. Called by the control task only after the bulk
	// worker has been joined.
	CloseBulkEndpoints() error

	// Interrupt delivers an asynchronous cancellation wake-up to the
	// bulk endpoints: any in-progress BulkRead/BulkWrite-style call on
	// the streams returned by OpenBulkEndpoints returns ErrInterrupted.
	// A no-op when no endpoints are open. Called by the control task as
	// the first step of the reset sequence, before ClearHalt and the
	// coordinator release.
	Interrupt()

	// ClearHalt clears a halt condition on both bulk endpoints, part of
	// the reset sequence.
	ClearHalt() error
}
