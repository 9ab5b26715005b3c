package gadget

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/charmbracelet/log"
	"github.com/pkg/errors"

	"github.com/nasa-jpl/ptpgadget/ptpwire"
)

// Standard USB request codes this handler answers on endpoint zero (USB
// 2.0 table 9-4).
const (
	reqGetStatus        uint8 = 0
	reqClearFeature     uint8 = 1
	reqSetFeature       uint8 = 3
	reqSetAddress       uint8 = 5
	reqGetDescriptor    uint8 = 6
	reqSetDescriptor    uint8 = 7
	reqGetConfiguration uint8 = 8
	reqSetConfiguration uint8 = 9
	reqGetInterface     uint8 = 10
	reqSetInterface     uint8 = 11
)

// PTP class-specific request codes, PIMA 15740 section 4.
const (
	reqCancelRequest          uint8 = 0x64
	reqGetExtendedEventData   uint8 = 0x65
	reqDeviceResetRequest     uint8 = 0x66
	reqGetDeviceStatusRequest uint8 = 0x67
)

const (
	requestTypeMask     uint8 = 0x60
	requestTypeStandard uint8 = 0x00
	requestTypeClass    uint8 = 0x20

	requestDirectionMask  uint8 = 0x80
	requestDirectionIn    uint8 = 0x80
)

// WorkerControl is the subset of the bulk worker lifecycle the control
// handler drives: spawning it on SET_CONFIGURATION(1), and stopping it
// on SET_CONFIGURATION(0), SUSPEND, or DISCONNECT.
type WorkerControl interface {
	Start()
	Stop()
}

// ControlHandler owns the gadget's control file descriptor: it drains
// bus events, answers Setup requests, and drives the bulk worker's
// lifecycle and the reset coordinator. It never touches the PTP session
// or object table directly; a device reset reaches the session only
// through the coordinator, from the worker's own goroutine.
type ControlHandler struct {
	transport Transport
	reset     *ResetCoordinator
	worker    WorkerControl
	strs      *Strings
	logger    *log.Logger

	configured bool
}

// NewControlHandler wires a ControlHandler from its collaborators.
func NewControlHandler(transport Transport, reset *ResetCoordinator, worker WorkerControl, strs *Strings, logger *log.Logger) *ControlHandler {
	return &ControlHandler{transport: transport, reset: reset, worker: worker, strs: strs, logger: logger}
}

// Run drains control events until ctx is cancelled or the transport
// reports an unrecoverable error. EAGAIN on the control fd backs off one
// second before retrying.
func (c *ControlHandler) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		events, err := c.readEventsBackoff(ctx)
		if err != nil {
			return errors.Wrap(err, "control handler read events")
		}
		for _, ev := range events {
			c.handle(ev)
		}
	}
}

// readEventsBackoff retries ReadEvents with a one-second constant
// back-off while the transport reports ErrEAGAIN. Any other error is
// permanent and ends the control loop.
func (c *ControlHandler) readEventsBackoff(ctx context.Context) ([]Event, error) {
	var events []Event
	op := func() error {
		e, err := c.transport.ReadEvents(ctx)
		if err != nil {
			if errors.Is(err, ErrEAGAIN) {
				return err
			}
			return backoff.Permanent(err)
		}
		events = e
		return nil
	}
	err := backoff.Retry(op, backoff.NewConstantBackOff(time.Second))
	return events, err
}

func (c *ControlHandler) handle(ev Event) {
	switch ev.Kind {
	case EventConnect:
		c.logger.Infof("gadget connect, speed=%d", ev.Speed)
	case EventSetup:
		c.handleSetup(ev.Setup)
	case EventDisconnect:
		c.logger.Info("gadget disconnect")
		c.teardown()
	case EventSuspend:
		c.logger.Info("gadget suspend")
		c.teardown()
	case EventNOP:
	}
}

// teardown stops the bulk worker and returns to the unconfigured state;
// the worker is recreated on the next SET_CONFIGURATION(1).
func (c *ControlHandler) teardown() {
	if c.configured {
		c.worker.Stop()
		c.configured = false
	}
}

func (c *ControlHandler) handleSetup(req SetupRequest) {
	switch req.RequestType & requestTypeMask {
	case requestTypeStandard:
		c.handleStandard(req)
	case requestTypeClass:
		c.handleClass(req)
	default:
		c.stall(req)
	}
}

func (c *ControlHandler) handleStandard(req SetupRequest) {
	switch req.Request {
	case reqGetDescriptor:
		descType := uint8(req.Value >> 8)
		index := uint8(req.Value)
		if descType != descTypeString {
			c.stall(req)
			return
		}
		if err := c.transport.WriteStringDescriptor(index, req.Index); err != nil {
			c.logger.Errorf("write string descriptor %d: %v", index, err)
		}

	case reqSetConfiguration:
		value := uint8(req.Value)
		switch value {
		case 1:
			c.logger.Debug("set configuration 1")
			c.worker.Start()
			c.configured = true
			c.ack(req)
		case 0:
			c.logger.Debug("set configuration 0")
			c.teardown()
			c.ack(req)
		default:
			c.stall(req)
		}

	case reqGetConfiguration:
		var v uint8
		if c.configured {
			v = 1
		}
		if err := c.transport.WriteControlData([]byte{v}); err != nil {
			c.logger.Errorf("write configuration status: %v", err)
		}

	case reqSetInterface:
		// Only alternate setting 0 is offered.
		if req.Value == 0 {
			c.resetBulk(false)
			c.ack(req)
		} else {
			c.stall(req)
		}

	case reqGetInterface:
		if err := c.transport.WriteControlData([]byte{0}); err != nil {
			c.logger.Errorf("write interface alt-setting: %v", err)
		}

	case reqGetStatus, reqClearFeature, reqSetFeature, reqSetAddress, reqSetDescriptor:
		// Unsupported at this layer; gadgetfs/the kernel UDC handles
		// SET_ADDRESS itself, and this responder advertises no optional
		// features to clear/set.
		c.stall(req)

	default:
		c.stall(req)
	}
}

func (c *ControlHandler) handleClass(req SetupRequest) {
	switch req.Request {
	case reqCancelRequest:
		// No-op at this level; a conformant host follows up with
		// DEVICE_RESET_REQUEST, which does drain.
		c.ack(req)

	case reqGetExtendedEventData:
		c.stall(req)

	case reqDeviceResetRequest:
		c.logger.Info("device reset request")
		c.resetBulk(true)
		c.ack(req)

	case reqGetDeviceStatusRequest:
		var buf [4]byte
		binary.LittleEndian.PutUint16(buf[0:2], 4) // length
		binary.LittleEndian.PutUint16(buf[2:4], uint16(ptpwire.RespOK))
		if err := c.transport.WriteControlData(buf[:]); err != nil {
			c.logger.Errorf("write device status: %v", err)
		}

	default:
		c.stall(req)
	}
}

// resetBulk runs the reset handoff: interrupt any in-flight bulk
// transfer so the worker sees ErrInterrupted, clear the endpoint halt
// conditions, then release the coordinator so the worker resumes. A
// device reset additionally tells the worker to close the PTP session.
func (c *ControlHandler) resetBulk(deviceReset bool) {
	c.transport.Interrupt()
	if err := c.transport.ClearHalt(); err != nil {
		c.logger.Errorf("clear halt during reset: %v", err)
	}
	if deviceReset {
		c.reset.TriggerDeviceReset()
	} else {
		c.reset.Trigger()
	}
}

func (c *ControlHandler) ack(req SetupRequest) {
	if err := c.transport.Ack(); err != nil {
		c.logger.Errorf("ack setup request 0x%02x: %v", req.Request, err)
	}
}

func (c *ControlHandler) stall(req SetupRequest) {
	hostToDevice := req.RequestType&requestDirectionMask != requestDirectionIn
	if err := c.transport.StallEndpointZero(hostToDevice); err != nil {
		c.logger.Errorf("stall setup request 0x%02x: %v", req.Request, err)
	}
}
