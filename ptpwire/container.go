package ptpwire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// HeaderSize is the fixed size of a PTP container header.
const HeaderSize = 12

// MalformedError is returned by DecodeHeader when the bytes handed to it
// cannot possibly be a PTP container header: too short, declaring a total
// length below the header size, or carrying an unrecognized container
// type. Length alignment is not checked here.
type MalformedError struct {
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed PTP container: %s", e.Reason)
}

// Header is the 12-byte PTP container header. Length is the total length
// of the container, header included.
type Header struct {
	Length        uint32
	Type          ContainerType
	Code          uint16
	TransactionID uint32
}

// DecodeHeader parses the first 12 bytes of buf as a container header.
// It does not validate Length against len(buf); callers accumulate bytes
// until they have Length total before treating a read as complete.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, &MalformedError{Reason: fmt.Sprintf("need %d bytes, got %d", HeaderSize, len(buf))}
	}
	h := Header{
		Length:        binary.LittleEndian.Uint32(buf[0:4]),
		Type:          ContainerType(binary.LittleEndian.Uint16(buf[4:6])),
		Code:          binary.LittleEndian.Uint16(buf[6:8]),
		TransactionID: binary.LittleEndian.Uint32(buf[8:12]),
	}
	if h.Length < HeaderSize {
		return Header{}, &MalformedError{Reason: fmt.Sprintf("declared length %d shorter than header", h.Length)}
	}
	switch h.Type {
	case ContainerTypeCommand, ContainerTypeData, ContainerTypeResponse, ContainerTypeEvent:
	default:
		return Header{}, &MalformedError{Reason: fmt.Sprintf("unknown container type %d", h.Type)}
	}
	return h, nil
}

// EncodeHeader writes h's 12 bytes to w, with Length forced to totalLength
// (the caller computes this up front so a Data container's declared length
// can equal the sum of every bulk write that follows, per the multi-write
// streaming convention in spec §9).
func EncodeHeader(w io.Writer, h Header, totalLength uint32) error {
	var buf [HeaderSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], totalLength)
	binary.LittleEndian.PutUint16(buf[4:6], uint16(h.Type))
	binary.LittleEndian.PutUint16(buf[6:8], h.Code)
	binary.LittleEndian.PutUint32(buf[8:12], h.TransactionID)
	_, err := w.Write(buf[:])
	return errors.Wrap(err, "write container header")
}

// EncodeLE16 writes v to w as two little-endian bytes.
func EncodeLE16(w io.Writer, v uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	_, err := w.Write(buf[:])
	return errors.Wrap(err, "write u16")
}

// EncodeLE32 writes v to w as four little-endian bytes.
func EncodeLE32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return errors.Wrap(err, "write u32")
}

// EncodeLE64 writes v to w as eight little-endian bytes.
func EncodeLE64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return errors.Wrap(err, "write u64")
}

// DecodeLE16 reads a little-endian uint16 from the front of buf.
func DecodeLE16(buf []byte) uint16 { return binary.LittleEndian.Uint16(buf) }

// DecodeLE32 reads a little-endian uint32 from the front of buf.
func DecodeLE32(buf []byte) uint32 { return binary.LittleEndian.Uint32(buf) }

// DecodeLE64 reads a little-endian uint64 from the front of buf.
func DecodeLE64(buf []byte) uint64 { return binary.LittleEndian.Uint64(buf) }
