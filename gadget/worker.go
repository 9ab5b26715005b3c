package gadget

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"

	"github.com/nasa-jpl/ptpgadget/ptpproto"
	"github.com/nasa-jpl/ptpgadget/ptpwire"
)

// bulkChunkSize bounds how many bytes a single bulk write moves at once,
// so a Data phase larger than one chunk is split across multiple writes
// whose total matches the container's declared length.
const bulkChunkSize = 16 * 1024

// maxCommandLength bounds any Command container: PTP commands carry at
// most five 32-bit parameters, so anything longer is a malformed frame,
// not a command to drain.
const maxCommandLength = ptpwire.HeaderSize + 20

// BulkWorker is the single long-running task that reads Command
// containers from the OUT endpoint, drives the dispatcher, and writes
// Data/Response containers to the IN endpoint. It
// implements WorkerControl so the control handler can start and stop it
// across USB configuration changes.
type BulkWorker struct {
	transport  Transport
	reset      *ResetCoordinator
	dispatcher *ptpproto.Dispatcher
	logger     *log.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewBulkWorker wires a BulkWorker from its collaborators.
func NewBulkWorker(transport Transport, reset *ResetCoordinator, dispatcher *ptpproto.Dispatcher, logger *log.Logger) *BulkWorker {
	return &BulkWorker{transport: transport, reset: reset, dispatcher: dispatcher, logger: logger}
}

// Start opens the bulk endpoints and spawns the read/dispatch/write
// loop. Calling Start while already running is a no-op.
func (w *BulkWorker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}
	out, in, err := w.transport.OpenBulkEndpoints()
	if err != nil {
		w.logger.Errorf("open bulk endpoints: %v", err)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})
	go func() {
		defer close(w.done)
		if err := w.runLoop(ctx, out, in); err != nil && ctx.Err() == nil {
			w.logger.Errorf("bulk worker loop stopped: %v", err)
		}
	}()
}

// Stop cancels the run loop and closes the bulk endpoints, joining the
// worker goroutine before returning. Calling Stop while not running is a
// no-op.
func (w *BulkWorker) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	done := w.done
	w.cancel = nil
	w.done = nil
	w.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	if err := w.transport.CloseBulkEndpoints(); err != nil {
		w.logger.Errorf("close bulk endpoints: %v", err)
	}
	<-done
}

// runLoop is the worker's main body: accumulate one Command container,
// dispatch it, emit its Data/Response, repeat. It returns only on a hard
// protocol error (malformed frame, length invalid for the opcode) or
// endpoint closure; the control handler treats either as "recreate the
// worker on the next configure event".
func (w *BulkWorker) runLoop(ctx context.Context, out io.Reader, in io.Writer) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		header, params, err := w.readCommand(ctx, out)
		if err != nil {
			return err
		}
		resp := w.dispatcher.Dispatch(ptpwire.OpCode(header.Code), params)
		if err := w.writeResponse(ctx, in, header, resp); err != nil {
			return err
		}
	}
}

// readCommand reads one full Command container. A declared length that is
// misaligned or outside its opcode's recognized bounds is a malformed
// frame: the transaction produces no Response and the returned
// ProtocolError ends the worker loop.
func (w *BulkWorker) readCommand(ctx context.Context, out io.Reader) (ptpwire.Header, []uint32, error) {
	hdrBuf := make([]byte, ptpwire.HeaderSize)
	if err := w.readFull(ctx, out, hdrBuf); err != nil {
		return ptpwire.Header{}, nil, err
	}
	header, err := ptpwire.DecodeHeader(hdrBuf)
	if err != nil {
		return ptpwire.Header{}, nil, errors.Wrap(err, "decode command header")
	}
	if header.Type != ptpwire.ContainerTypeCommand {
		return ptpwire.Header{}, nil, &ptpproto.ProtocolError{Reason: "expected Command container"}
	}
	if header.Length > maxCommandLength {
		return ptpwire.Header{}, nil, &ptpproto.ProtocolError{Reason: fmt.Sprintf("command length %d exceeds maximum", header.Length)}
	}

	opcode := ptpwire.OpCode(header.Code)
	if !ptpproto.ValidateLength(opcode, header.Length) {
		return ptpwire.Header{}, nil, &ptpproto.ProtocolError{Reason: fmt.Sprintf("length %d invalid for opcode 0x%04x", header.Length, uint16(opcode))}
	}

	payloadLen := header.Length - ptpwire.HeaderSize
	payload := make([]byte, payloadLen)
	if err := w.readFull(ctx, out, payload); err != nil {
		return ptpwire.Header{}, nil, err
	}
	params := make([]uint32, 0, payloadLen/4)
	for off := uint32(0); off+4 <= payloadLen; off += 4 {
		params = append(params, ptpwire.DecodeLE32(payload[off:]))
	}
	return header, params, nil
}

// writeResponse emits the Data phase (if any) followed by the Response
// container for one transaction, in that order: all Data bytes precede
// the Response header on the IN endpoint.
func (w *BulkWorker) writeResponse(ctx context.Context, in io.Writer, cmd ptpwire.Header, resp ptpproto.Response) error {
	switch {
	case resp.Stream != nil:
		defer resp.Stream.Reader.Close()
		h := ptpwire.Header{Type: ptpwire.ContainerTypeData, Code: cmd.Code, TransactionID: cmd.TransactionID}
		if err := w.writeHeader(ctx, in, h, ptpwire.HeaderSize+resp.Stream.Size); err != nil {
			return err
		}
		if err := w.writeBody(ctx, in, resp.Stream.Reader, resp.Stream.Size); err != nil {
			return err
		}

	case resp.Data != nil:
		h := ptpwire.Header{Type: ptpwire.ContainerTypeData, Code: cmd.Code, TransactionID: cmd.TransactionID}
		if err := w.writeHeader(ctx, in, h, uint32(ptpwire.HeaderSize+len(resp.Data))); err != nil {
			return err
		}
		if err := w.writeBody(ctx, in, bytes.NewReader(resp.Data), uint32(len(resp.Data))); err != nil {
			return err
		}
	}

	var paramBuf bytes.Buffer
	for _, p := range resp.Params {
		if err := ptpwire.EncodeLE32(&paramBuf, p); err != nil {
			return err
		}
	}
	rh := ptpwire.Header{Type: ptpwire.ContainerTypeResponse, Code: uint16(resp.Code), TransactionID: cmd.TransactionID}
	if err := w.writeHeader(ctx, in, rh, uint32(ptpwire.HeaderSize+paramBuf.Len())); err != nil {
		return err
	}
	if paramBuf.Len() == 0 {
		return nil
	}
	return w.writeFull(ctx, in, paramBuf.Bytes())
}

func (w *BulkWorker) writeHeader(ctx context.Context, in io.Writer, h ptpwire.Header, totalLength uint32) error {
	var buf bytes.Buffer
	if err := ptpwire.EncodeHeader(&buf, h, totalLength); err != nil {
		return err
	}
	return w.writeFull(ctx, in, buf.Bytes())
}

// writeBody streams size bytes from r to in, splitting into bulkChunkSize
// writes; the receiver reassembles one Data phase based on the header's
// declared length, so the writes' total must match it exactly.
func (w *BulkWorker) writeBody(ctx context.Context, in io.Writer, r io.Reader, size uint32) error {
	remaining := size
	chunk := make([]byte, bulkChunkSize)
	for remaining > 0 {
		n := uint32(len(chunk))
		if n > remaining {
			n = remaining
		}
		rn, err := io.ReadFull(r, chunk[:n])
		if err != nil {
			return errors.Wrap(err, "read data payload for bulk write")
		}
		if err := w.writeFull(ctx, in, chunk[:rn]); err != nil {
			return err
		}
		remaining -= uint32(rn)
	}
	return nil
}

// readFull reads exactly len(buf) bytes from r, waiting on the reset
// coordinator and retrying at the same offset whenever r reports
// ErrInterrupted, so partial transfers are neither lost nor duplicated.
func (w *BulkWorker) readFull(ctx context.Context, r io.Reader, buf []byte) error {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			if errors.Is(err, ErrInterrupted) {
				w.awaitReset()
				continue
			}
			return errors.Wrap(err, "bulk read")
		}
	}
	return nil
}

// awaitReset blocks on the reset coordinator after an interrupted
// transfer. A device reset also closes the PTP session here, so the
// session slot is only ever mutated from the worker goroutine.
func (w *BulkWorker) awaitReset() {
	if w.reset.Wait() {
		w.dispatcher.Session.Close()
	}
}

// writeFull is readFull's counterpart for the IN endpoint.
func (w *BulkWorker) writeFull(ctx context.Context, wtr io.Writer, buf []byte) error {
	total := 0
	for total < len(buf) {
		n, err := wtr.Write(buf[total:])
		total += n
		if err != nil {
			if errors.Is(err, ErrInterrupted) {
				w.awaitReset()
				continue
			}
			return errors.Wrap(err, "bulk write")
		}
	}
	return nil
}
