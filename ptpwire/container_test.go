package ptpwire_test

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nasa-jpl/ptpgadget/ptpwire"
)

func TestDecodeHeaderOpenSession(t *testing.T) {
	// length=16, type=Command, code=0x1002, tid=1
	raw := []byte{0x10, 0x00, 0x00, 0x00, 0x01, 0x00, 0x02, 0x10, 0x01, 0x00, 0x00, 0x00}
	h, err := ptpwire.DecodeHeader(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := ptpwire.Header{
		Length:        16,
		Type:          ptpwire.ContainerTypeCommand,
		Code:          uint16(ptpwire.OpOpenSession),
		TransactionID: 1,
	}
	if diff := cmp.Diff(want, h); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeHeaderTooShort(t *testing.T) {
	_, err := ptpwire.DecodeHeader([]byte{1, 2, 3})
	if err == nil {
		t.Fatal("expected error for short buffer")
	}
}

func TestDecodeHeaderUnknownType(t *testing.T) {
	raw := []byte{0x0C, 0x00, 0x00, 0x00, 0xFF, 0xFF, 0x02, 0x10, 0x01, 0x00, 0x00, 0x00}
	_, err := ptpwire.DecodeHeader(raw)
	if err == nil {
		t.Fatal("expected error for unknown container type")
	}
}

func TestEncodeHeaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	h := ptpwire.Header{Type: ptpwire.ContainerTypeResponse, Code: uint16(ptpwire.RespOK), TransactionID: 7}
	if err := ptpwire.EncodeHeader(&buf, h, 12); err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := ptpwire.DecodeHeader(buf.Bytes())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	h.Length = 12
	if diff := cmp.Diff(h, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeLEHelpers(t *testing.T) {
	var buf bytes.Buffer
	if err := ptpwire.EncodeLE32(&buf, 0x00010001); err != nil {
		t.Fatal(err)
	}
	want := []byte{0x01, 0x00, 0x01, 0x00}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("got % x want % x", buf.Bytes(), want)
	}
}
