package ptpwire

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
)

// maxStringBytes is the longest source string this responder will encode.
// The wire length prefix is a single byte counting 16-bit code units
// including the terminating NUL, so the source string itself must leave
// room for that NUL within a byte's range.
const maxStringBytes = 254

// ErrStringTooLong is returned when a caller asks to encode a string whose
// source byte length would overflow the single-byte UCS-2 unit count.
var ErrStringTooLong = fmt.Errorf("ptpwire: string exceeds %d source bytes", maxStringBytes)

// Encoder converts an ISO-8859-1 source string into UCS-2LE code units (no
// length prefix, no terminator). The responder's strings are filenames and
// timestamps, both within the Latin-1 repertoire PIMA 15740 devices expect.
type Encoder interface {
	Encode(s string) ([]uint16, error)
}

// Latin1Encoder is the default Encoder, backed by golang.org/x/text's
// ISO-8859-1 codec: every source byte maps 1:1 to its Unicode code point,
// so widening to a UCS-2 code unit is a zero-extend.
type Latin1Encoder struct{}

// Encode implements Encoder.
func (Latin1Encoder) Encode(s string) ([]uint16, error) {
	decoded, err := charmap.ISO8859_1.NewDecoder().String(s)
	if err != nil {
		return nil, errors.Wrap(err, "decode ISO-8859-1 source string")
	}
	out := make([]uint16, 0, len(decoded))
	for _, r := range decoded {
		out = append(out, uint16(r))
	}
	return out, nil
}

// EncodeString writes s to w as a PTP string: one length-prefix byte (code
// unit count including the terminating NUL) followed by that many UCS-2LE
// code units. It returns the number of bytes written to w. An empty string
// is written as a single zero length-prefix byte with no code units.
func EncodeString(w io.Writer, s string, enc Encoder) (int, error) {
	if s == "" {
		if err := writeByte(w, 0); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if len(s) > maxStringBytes {
		return 0, ErrStringTooLong
	}
	units, err := enc.Encode(s)
	if err != nil {
		return 0, err
	}
	count := len(units) + 1 // + terminating NUL
	if err := writeByte(w, byte(count)); err != nil {
		return 0, err
	}
	n := 1
	for _, u := range units {
		if err := EncodeLE16(w, u); err != nil {
			return n, err
		}
		n += 2
	}
	if err := EncodeLE16(w, 0); err != nil {
		return n, err
	}
	return n + 2, nil
}

func writeByte(w io.Writer, b byte) error {
	_, err := w.Write([]byte{b})
	return errors.Wrap(err, "write string length prefix")
}

// StringByteLen returns the number of wire bytes EncodeString would emit
// for s, without performing the encode, so a Data container's declared
// length can be sized up front. s is assumed to be a
// single-byte-per-character ISO-8859-1 source string, consistent with
// Latin1Encoder.
func StringByteLen(s string) int {
	if s == "" {
		return 1
	}
	return 1 + 2*(len(s)+1)
}
