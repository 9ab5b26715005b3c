//go:build linux

package gadget

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// controllerCandidates are the /dev/gadget/<name> control-fd names this
// responder probes, in a fixed order, using the first that exists. The
// names are the usual gadgetfs UDC drivers seen on embedded Linux boards.
var controllerCandidates = []string{
	"dummy_udc", "musb-hdrc", "fsl-usb2-udc", "pxa25x_udc", "goku_udc", "at91_udc",
}

// endpointCandidates maps the logical bulk-in/bulk-out/interrupt-in roles
// this responder needs onto the ep*-{bulk,int} naming gadgetfs assigns.
var endpointCandidates = map[string][]string{
	"bulk-in":  {"ep1in-bulk", "ep1in", "ep-a"},
	"bulk-out": {"ep2out-bulk", "ep2out", "ep-b"},
	"intr-in":  {"ep3in-int", "ep3in", "ep-c"},
}

// gadgetfs ioctl numbers, linux/usb/gadgetfs.h: _IO('g', N) with no data
// stage, so value = ('g' << 8) | N.
const (
	gadgetfsIoctlFifoStatus = 0x6701
	gadgetfsIoctlFifoFlush  = 0x6702
	gadgetfsIoctlClearHalt  = 0x6703
)

// gadgetfs control-event wire tags, linux/usb/gadgetfs.h enum
// usb_gadgetfs_event_type.
const (
	gadgetfsEventNOP = iota
	gadgetfsEventConnect
	gadgetfsEventDisconnect
	gadgetfsEventSetup
	gadgetfsEventSuspend
)

// eventRecordSize matches sizeof(struct usb_gadgetfs_event): an 8-byte
// union (big enough for a packed usb_ctrlrequest) followed by a 4-byte
// type enum.
const eventRecordSize = 12

// FileTransport is the default Transport: it drives a Linux gadgetfs
// mount at /dev/gadget by opening the control and endpoint character
// devices directly, the same file-descriptor-per-endpoint model the
// kernel ABI exposes. Construct with NewFileTransport; endpoint and
// controller names are discovered by probing, not configured.
type FileTransport struct {
	gadgetDir string
	strings   *Strings

	ctrl    *os.File
	bulkIn  *epFile
	bulkOut *epFile
	intrIn  *epFile

	// wakeR/wakeW are the self-pipe Interrupt writes to and epFile polls
	// alongside its endpoint fd, the cancellation wake-up that makes a
	// blocked bulk transfer return ErrInterrupted.
	wakeR int
	wakeW int
}

// NewFileTransport returns a FileTransport rooted at gadgetDir (normally
// "/dev/gadget").
func NewFileTransport(gadgetDir string) *FileTransport {
	return &FileTransport{gadgetDir: gadgetDir, wakeR: -1, wakeW: -1}
}

// Open probes controllerCandidates for the first that exists, opens it
// read/write, and writes the gadgetfs descriptor blob: a format tag, the
// full-speed and high-speed configuration descriptors back to back, then
// the device descriptor, the order gadgetfs expects.
func (t *FileTransport) Open(dev DeviceDescriptor, fullSpeed, highSpeed ConfigDescriptor, strs *Strings) error {
	var lastErr error
	for _, name := range controllerCandidates {
		path := filepath.Join(t.gadgetDir, name)
		f, err := os.OpenFile(path, os.O_RDWR, 0)
		if err != nil {
			lastErr = err
			continue
		}
		t.ctrl = f
		break
	}
	if t.ctrl == nil {
		return errors.Wrap(lastErr, "open gadgetfs control endpoint: no candidate controller found")
	}

	var blob bytes.Buffer
	binary.Write(&blob, binary.LittleEndian, uint32(0)) // tag: little-endian descriptor format
	blob.Write(fullSpeed.Bytes())
	blob.Write(highSpeed.Bytes())
	blob.Write(dev.Bytes())
	t.strings = strs
	if _, err := t.ctrl.Write(blob.Bytes()); err != nil {
		t.ctrl.Close()
		t.ctrl = nil
		return errors.Wrap(err, "write gadgetfs descriptor blob")
	}
	return nil
}

func (t *FileTransport) Close() error {
	if t.ctrl == nil {
		return nil
	}
	err := t.ctrl.Close()
	t.ctrl = nil
	return errors.Wrap(err, "close gadgetfs control endpoint")
}

// ReadEvents reads one or more fixed-size gadgetfs event records from the
// control fd and decodes them into Event values.
func (t *FileTransport) ReadEvents(ctx context.Context) ([]Event, error) {
	buf := make([]byte, eventRecordSize*4)
	n, err := t.ctrl.Read(buf)
	if err != nil {
		if errors.Is(err, syscall.EAGAIN) {
			return nil, ErrEAGAIN
		}
		return nil, errors.Wrap(err, "read gadgetfs control events")
	}
	var events []Event
	for off := 0; off+eventRecordSize <= n; off += eventRecordSize {
		events = append(events, decodeEvent(buf[off:off+eventRecordSize]))
	}
	return events, nil
}

func decodeEvent(rec []byte) Event {
	kind := int32(binary.LittleEndian.Uint32(rec[8:12]))
	switch kind {
	case gadgetfsEventConnect:
		return Event{Kind: EventConnect, Speed: int(binary.LittleEndian.Uint32(rec[0:4]))}
	case gadgetfsEventDisconnect:
		return Event{Kind: EventDisconnect}
	case gadgetfsEventSuspend:
		return Event{Kind: EventSuspend}
	case gadgetfsEventSetup:
		return Event{Kind: EventSetup, Setup: SetupRequest{
			RequestType: rec[0],
			Request:     rec[1],
			Value:       binary.LittleEndian.Uint16(rec[2:4]),
			Index:       binary.LittleEndian.Uint16(rec[4:6]),
			Length:      binary.LittleEndian.Uint16(rec[6:8]),
		}}
	default:
		return Event{Kind: EventNOP}
	}
}

// WriteStringDescriptor answers GET_DESCRIPTOR(STRING, index) on endpoint
// zero using the string table recorded at Open.
func (t *FileTransport) WriteStringDescriptor(index uint8, langID uint16) error {
	if t.strings == nil {
		return t.StallEndpointZero(false)
	}
	desc := t.strings.Descriptor(index)
	if desc == nil {
		return t.StallEndpointZero(false)
	}
	_, err := t.ctrl.Write(desc)
	return errors.Wrap(err, "write string descriptor")
}

// StallEndpointZero issues a zero-length write/read on the control fd,
// which gadgetfs interprets as a stall of the opposite data-stage
// direction from hostToDevice.
func (t *FileTransport) StallEndpointZero(hostToDevice bool) error {
	if hostToDevice {
		_, err := t.ctrl.Write(nil)
		return errors.Wrap(err, "stall endpoint zero (host-to-device)")
	}
	_, err := t.ctrl.Read(nil)
	return errors.Wrap(err, "stall endpoint zero (device-to-host)")
}

// Ack completes a no-data Setup request's status stage with a
// zero-length read, gadgetfs's success convention (a zero-length write
// would stall it instead).
func (t *FileTransport) Ack() error {
	_, err := t.ctrl.Read(nil)
	return errors.Wrap(err, "ack control request")
}

// WriteControlData writes an explicit data-stage payload to the control
// fd for a device-to-host Setup request.
func (t *FileTransport) WriteControlData(data []byte) error {
	_, err := t.ctrl.Write(data)
	return errors.Wrap(err, "write control data stage")
}

// OpenBulkEndpoints opens the three gadgetfs endpoint files discovered by
// probing endpointCandidates, in the order the kernel assigned them at
// Open (gadgetfs binds endpoint files to descriptors by write order, but
// by the time Open returns the kernel has already created named nodes
// under t.gadgetDir matching the interface descriptor's endpoint list).
// Endpoints are opened non-blocking and wrapped in epFile so Interrupt
// can wake a blocked transfer through the self-pipe.
func (t *FileTransport) OpenBulkEndpoints() (io.Reader, io.Writer, error) {
	var pipeFds [2]int
	if err := unix.Pipe2(pipeFds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, nil, errors.Wrap(err, "create bulk interrupt pipe")
	}
	t.wakeR, t.wakeW = pipeFds[0], pipeFds[1]

	out, err := t.openEndpoint("bulk-out", unix.O_RDONLY, unix.POLLIN)
	if err != nil {
		t.closeWakePipe()
		return nil, nil, err
	}
	in, err := t.openEndpoint("bulk-in", unix.O_WRONLY, unix.POLLOUT)
	if err != nil {
		out.close()
		t.closeWakePipe()
		return nil, nil, err
	}
	intr, err := t.openEndpoint("intr-in", unix.O_WRONLY, unix.POLLOUT)
	if err != nil {
		out.close()
		in.close()
		t.closeWakePipe()
		return nil, nil, err
	}
	t.bulkOut, t.bulkIn, t.intrIn = out, in, intr
	return out, in, nil
}

func (t *FileTransport) openEndpoint(role string, flag int, events int16) (*epFile, error) {
	var lastErr error
	for _, name := range endpointCandidates[role] {
		fd, err := unix.Open(filepath.Join(t.gadgetDir, name), flag|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
		if err == nil {
			return &epFile{fd: fd, wake: t.wakeR, events: events}, nil
		}
		lastErr = err
	}
	return nil, errors.Wrapf(lastErr, "open gadgetfs endpoint for role %s: no candidate found", role)
}

// CloseBulkEndpoints closes the endpoint files and the interrupt pipe
// opened by OpenBulkEndpoints.
func (t *FileTransport) CloseBulkEndpoints() error {
	var errs []error
	for _, f := range []*epFile{t.bulkOut, t.bulkIn, t.intrIn} {
		if f == nil {
			continue
		}
		if err := f.close(); err != nil {
			errs = append(errs, err)
		}
	}
	t.bulkOut, t.bulkIn, t.intrIn = nil, nil, nil
	t.closeWakePipe()
	if len(errs) > 0 {
		return errors.Wrap(errs[0], "close gadgetfs bulk endpoints")
	}
	return nil
}

func (t *FileTransport) closeWakePipe() {
	if t.wakeR >= 0 {
		unix.Close(t.wakeR)
		t.wakeR = -1
	}
	if t.wakeW >= 0 {
		unix.Close(t.wakeW)
		t.wakeW = -1
	}
}

// Interrupt wakes any transfer blocked inside an epFile poll by making
// the self-pipe readable; the blocked call returns ErrInterrupted and
// the worker parks on the reset coordinator. A full pipe means a wake-up
// is already pending, which is just as good.
func (t *FileTransport) Interrupt() {
	if t.wakeW < 0 {
		return
	}
	_, _ = unix.Write(t.wakeW, []byte{0})
}

// ClearHalt clears the halt condition on both bulk endpoints via the
// gadgetfs GADGETFS_CLEAR_HALT ioctl, part of the reset sequence.
func (t *FileTransport) ClearHalt() error {
	if t.bulkOut != nil {
		if err := unix.IoctlSetInt(t.bulkOut.fd, gadgetfsIoctlClearHalt, 0); err != nil {
			return errors.Wrap(err, "clear halt on bulk-out")
		}
	}
	if t.bulkIn != nil {
		if err := unix.IoctlSetInt(t.bulkIn.fd, gadgetfsIoctlClearHalt, 0); err != nil {
			return errors.Wrap(err, "clear halt on bulk-in")
		}
	}
	return nil
}

// epFile is a non-blocking gadgetfs endpoint fd paired with the read end
// of the transport's interrupt pipe. Read and Write poll both fds: when
// the pipe becomes readable a wake-up byte is consumed and the call
// returns ErrInterrupted, giving the reset coordinator its cancellation
// wake-up without signals or fd churn. Partial transfers surface to the
// caller, which retries at the adjusted offset after the reset.
type epFile struct {
	fd     int
	wake   int
	events int16
}

func (e *epFile) Read(p []byte) (int, error) {
	for {
		if err := e.pollReady(); err != nil {
			return 0, err
		}
		n, err := unix.Read(e.fd, p)
		if err == unix.EAGAIN || err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, errors.Wrap(err, "read gadgetfs endpoint")
		}
		if n == 0 {
			return 0, io.EOF
		}
		return n, nil
	}
}

func (e *epFile) Write(p []byte) (int, error) {
	for {
		if err := e.pollReady(); err != nil {
			return 0, err
		}
		n, err := unix.Write(e.fd, p)
		if err == unix.EAGAIN || err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, errors.Wrap(err, "write gadgetfs endpoint")
		}
		return n, nil
	}
}

// pollReady blocks until the endpoint fd is ready for e.events or the
// interrupt pipe fires, whichever comes first.
func (e *epFile) pollReady() error {
	for {
		fds := []unix.PollFd{
			{Fd: int32(e.fd), Events: e.events},
			{Fd: int32(e.wake), Events: unix.POLLIN},
		}
		if _, err := unix.Poll(fds, -1); err != nil {
			if err == unix.EINTR {
				continue
			}
			return errors.Wrap(err, "poll gadgetfs endpoint")
		}
		// POLLNVAL means the fd was closed under us: the control task is
		// tearing the worker down, so end the transfer with a hard error
		// rather than spinning.
		if fds[0].Revents&unix.POLLNVAL != 0 || fds[1].Revents&unix.POLLNVAL != 0 {
			return errors.New("gadgetfs endpoint closed")
		}
		if fds[1].Revents&(unix.POLLIN|unix.POLLERR|unix.POLLHUP) != 0 {
			var b [1]byte
			_, _ = unix.Read(e.wake, b[:])
			return ErrInterrupted
		}
		if fds[0].Revents&(e.events|unix.POLLERR|unix.POLLHUP) != 0 {
			return nil
		}
	}
}

func (e *epFile) close() error {
	return errors.Wrap(unix.Close(e.fd), "close gadgetfs endpoint")
}
