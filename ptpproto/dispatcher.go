package ptpproto

import (
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/nasa-jpl/ptpgadget/objectstore"
	"github.com/nasa-jpl/ptpgadget/ptpwire"
)

// lengthRange is the inclusive [min,max] container length PIMA 15740
// allows for one opcode's Command container, in bytes including the
// 12-byte header.
type lengthRange struct{ min, max uint32 }

var opcodeLengths = map[ptpwire.OpCode]lengthRange{
	ptpwire.OpGetDeviceInfo:    {ptpwire.HeaderSize, ptpwire.HeaderSize},
	ptpwire.OpOpenSession:      {ptpwire.HeaderSize + 4, ptpwire.HeaderSize + 4},
	ptpwire.OpCloseSession:     {ptpwire.HeaderSize, ptpwire.HeaderSize},
	ptpwire.OpGetStorageIDs:    {ptpwire.HeaderSize, ptpwire.HeaderSize},
	ptpwire.OpGetStorageInfo:   {ptpwire.HeaderSize + 4, ptpwire.HeaderSize + 4},
	ptpwire.OpGetNumObjects:    {ptpwire.HeaderSize + 4, ptpwire.HeaderSize + 12},
	ptpwire.OpGetObjectHandles: {ptpwire.HeaderSize + 4, ptpwire.HeaderSize + 12},
	ptpwire.OpGetObjectInfo:    {ptpwire.HeaderSize + 4, ptpwire.HeaderSize + 4},
	ptpwire.OpGetObject:        {ptpwire.HeaderSize + 4, ptpwire.HeaderSize + 4},
	ptpwire.OpGetThumb:         {ptpwire.HeaderSize + 4, ptpwire.HeaderSize + 4},
	ptpwire.OpDeleteObject:     {ptpwire.HeaderSize + 4, ptpwire.HeaderSize + 8},
}

// ValidateLength reports whether length is a legal Command container
// length for opcode: 4-byte aligned and within the opcode's declared
// [min,max] range. A violation is a malformed wire frame and aborts the
// bulk worker loop. An opcode absent from the table (unsupported) is
// always considered length-valid here; OPERATION_NOT_SUPPORTED is a
// dispatch-time Response, not a protocol error.
func ValidateLength(opcode ptpwire.OpCode, length uint32) bool {
	if length%4 != 0 {
		return false
	}
	r, ok := opcodeLengths[opcode]
	if !ok {
		return true
	}
	return length >= r.min && length <= r.max
}

// DataStream is a device-to-host Data phase payload too large to buffer:
// GetObject and GetThumb stream the backing file directly.
type DataStream struct {
	Reader io.ReadCloser
	Size   uint32
}

// Response is the outcome of dispatching one Command: a Response code,
// its parameters, and optionally a Data phase (either a small in-memory
// payload or a streamed file).
type Response struct {
	Code   ptpwire.ResponseCode
	Params []uint32
	Data   []byte
	Stream *DataStream
}

func okResponse(data []byte) Response {
	return Response{Code: ptpwire.RespOK, Data: data}
}

func errResponse(code ptpwire.ResponseCode, params ...uint32) Response {
	return Response{Code: code, Params: params}
}

// Dispatcher validates and executes one Command container at a time. It
// owns no endpoint state; it is driven by the bulk worker, which supplies
// already-framed Commands and consumes the resulting Response/Data.
type Dispatcher struct {
	Table   *objectstore.ObjectTable
	Storage *objectstore.StorageDescriptor
	Encoder ptpwire.Encoder
	Session *Session
	Device  DeviceInfo
	logger  *log.Logger
}

// NewDispatcher wires together the collaborators a Dispatch call needs.
func NewDispatcher(table *objectstore.ObjectTable, storage *objectstore.StorageDescriptor, enc ptpwire.Encoder, session *Session, device DeviceInfo, logger *log.Logger) *Dispatcher {
	return &Dispatcher{Table: table, Storage: storage, Encoder: enc, Session: session, Device: device, logger: logger}
}

// sessionExemptOps may run with no session open.
var sessionExemptOps = map[ptpwire.OpCode]bool{
	ptpwire.OpGetDeviceInfo: true,
	ptpwire.OpOpenSession:   true,
	ptpwire.OpCloseSession:  true,
}

// Dispatch executes one Command container. params are the 32-bit
// parameters following the header, already decoded by the caller from the
// Command container's payload. The caller is responsible for prior length
// validation via ValidateLength; a length violation is a protocol error
// that aborts the worker loop with no Response at all, so Dispatch is
// never called in that case.
func (d *Dispatcher) Dispatch(opcode ptpwire.OpCode, params []uint32) Response {
	if !sessionExemptOps[opcode] && !d.Session.IsOpen() {
		return errResponse(ptpwire.RespSessionNotOpen)
	}

	switch opcode {
	case ptpwire.OpGetDeviceInfo:
		data, err := d.Device.Serialize(d.Encoder)
		if err != nil {
			d.logger.Errorf("serialize device info: %v", err)
			return errResponse(ptpwire.RespGeneralError)
		}
		return okResponse(data)

	case ptpwire.OpOpenSession:
		sid := params[0]
		if d.Session.IsOpen() {
			return errResponse(ptpwire.RespSessionAlreadyOpen, d.Session.ID())
		}
		if sid == 0 {
			return errResponse(ptpwire.RespInvalidParameter)
		}
		d.Session.Open(sid)
		return okResponse(nil)

	case ptpwire.OpCloseSession:
		if !d.Session.IsOpen() {
			return errResponse(ptpwire.RespSessionNotOpen)
		}
		d.Session.Close()
		return okResponse(nil)

	case ptpwire.OpGetStorageIDs:
		var buf []byte
		buf = appendLE32(buf, 1)
		buf = appendLE32(buf, ptpwire.StoreID)
		return okResponse(buf)

	case ptpwire.OpGetStorageInfo:
		if params[0] != ptpwire.StoreID {
			return errResponse(ptpwire.RespInvalidStorageID)
		}
		if err := d.Storage.Refresh(d.Table.Root); err != nil {
			d.logger.Errorf("refresh storage info: %v", err)
		}
		si := StorageInfo{}
		data, err := si.Serialize(*d.Storage, d.Encoder)
		if err != nil {
			d.logger.Errorf("serialize storage info: %v", err)
			return errResponse(ptpwire.RespGeneralError)
		}
		return okResponse(data)

	case ptpwire.OpGetNumObjects:
		f := filterFromParams(params)
		n, err := d.Table.Count(f)
		if err != nil {
			return countError(err)
		}
		return Response{Code: ptpwire.RespOK, Params: []uint32{n}}

	case ptpwire.OpGetObjectHandles:
		f := filterFromParams(params)
		handles, err := d.Table.Handles(f)
		if err != nil {
			return countError(err)
		}
		var buf []byte
		buf = appendLE32(buf, uint32(len(handles)))
		for _, h := range handles {
			buf = appendLE32(buf, h)
		}
		return okResponse(buf)

	case ptpwire.OpGetObjectInfo:
		info, ok := d.Table.ObjectInfoFor(params[0])
		if !ok {
			return errResponse(ptpwire.RespInvalidObjectHandle)
		}
		data, err := info.Serialize(d.Encoder)
		if err != nil {
			d.logger.Errorf("serialize object info: %v", err)
			return errResponse(ptpwire.RespGeneralError)
		}
		return okResponse(data)

	case ptpwire.OpGetObject:
		return d.streamFile(d.Table.LookupImage(params[0]), false)

	case ptpwire.OpGetThumb:
		return d.streamFile(d.Table.LookupImage(params[0]), true)

	case ptpwire.OpDeleteObject:
		return d.deleteObject(params)

	default:
		return errResponse(ptpwire.RespOperationNotSupported)
	}
}

func countError(err error) Response {
	switch err {
	case objectstore.ErrInvalidStorageID:
		return errResponse(ptpwire.RespInvalidStorageID)
	case objectstore.ErrFormatNotSupported:
		return errResponse(ptpwire.RespSpecByFormatNotSupported)
	case objectstore.ErrInvalidObjectHandle:
		return errResponse(ptpwire.RespInvalidObjectHandle)
	case objectstore.ErrInvalidParentObject:
		return errResponse(ptpwire.RespInvalidParentObject)
	default:
		return errResponse(ptpwire.RespGeneralError)
	}
}

// filterFromParams builds a Filter from GetNumObjects/GetObjectHandles
// params, where the wire-level parameter count (not the value) signals
// whether format/association were supplied.
func filterFromParams(params []uint32) objectstore.Filter {
	f := objectstore.Filter{Storage: params[0]}
	if len(params) > 1 {
		f.HasFormat = true
		f.Format = params[1]
	}
	if len(params) > 2 {
		f.HasAssociation = true
		f.Association = params[2]
	}
	return f
}

func (d *Dispatcher) streamFile(img *objectstore.ImageObject, thumb bool) Response {
	if img == nil {
		return errResponse(ptpwire.RespInvalidObjectHandle)
	}
	path := img.Path()
	if thumb {
		path = img.ThumbPath()
	}
	f, err := os.Open(path)
	if err != nil {
		return errResponse(ptpwire.RespIncompleteTransfer)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return errResponse(ptpwire.RespIncompleteTransfer)
	}
	return Response{
		Code:   ptpwire.RespOK,
		Stream: &DataStream{Reader: f, Size: uint32(info.Size())},
	}
}

func (d *Dispatcher) deleteObject(params []uint32) Response {
	handle := params[0]
	if len(params) > 1 && params[1] != ptpwire.ParamUnused {
		return errResponse(ptpwire.RespSpecByFormatNotSupported)
	}
	if handle == ptpwire.HandleRootAssoc || handle == ptpwire.HandleModelDirAssoc {
		return errResponse(ptpwire.RespObjectWriteProtected)
	}

	var code ptpwire.ResponseCode
	if handle == ptpwire.ParamAny {
		results := d.Table.DeleteAll()
		failed := 0
		for _, r := range results {
			if r.Err != nil {
				failed++
			}
		}
		// Any failure in the batch reports PARTIAL_DELETION, even when
		// every entry failed; an empty table is a successful delete of
		// nothing.
		if failed > 0 {
			code = ptpwire.RespPartialDeletion
		} else {
			code = ptpwire.RespOK
		}
	} else {
		if !d.Table.IsValidHandle(handle) {
			return errResponse(ptpwire.RespInvalidObjectHandle)
		}
		if err := d.Table.DeleteOne(handle); err != nil {
			if err == objectstore.ErrWriteProtected {
				return errResponse(ptpwire.RespObjectWriteProtected)
			}
			return errResponse(ptpwire.RespGeneralError)
		}
		code = ptpwire.RespOK
	}

	if err := d.Storage.Refresh(d.Table.Root); err != nil {
		d.logger.Warnf("refresh free space after delete: %v", err)
	}
	return errResponse(code)
}

func appendLE32(buf []byte, v uint32) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}
