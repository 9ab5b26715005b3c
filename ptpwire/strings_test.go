package ptpwire_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/nasa-jpl/ptpgadget/ptpwire"
)

func TestEncodeStringEmpty(t *testing.T) {
	var buf bytes.Buffer
	n, err := ptpwire.EncodeString(&buf, "", ptpwire.Latin1Encoder{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 || !bytes.Equal(buf.Bytes(), []byte{0x00}) {
		t.Errorf("got n=%d bytes=% x, want n=1 bytes=00", n, buf.Bytes())
	}
}

func TestEncodeStringASCII(t *testing.T) {
	var buf bytes.Buffer
	n, err := ptpwire.EncodeString(&buf, "DCIM", ptpwire.Latin1Encoder{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []byte{
		0x05, // 4 chars + NUL
		'D', 0x00, 'C', 0x00, 'I', 0x00, 'M', 0x00,
		0x00, 0x00,
	}
	if n != len(want) {
		t.Errorf("got n=%d, want %d", n, len(want))
	}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("got % x want % x", buf.Bytes(), want)
	}
}

func TestEncodeStringTooLong(t *testing.T) {
	s := strings.Repeat("a", 255)
	var buf bytes.Buffer
	_, err := ptpwire.EncodeString(&buf, s, ptpwire.Latin1Encoder{})
	if err != ptpwire.ErrStringTooLong {
		t.Fatalf("got err=%v, want ErrStringTooLong", err)
	}
}

func TestEncodeStringMaxLength(t *testing.T) {
	s := strings.Repeat("a", 254)
	var buf bytes.Buffer
	_, err := ptpwire.EncodeString(&buf, s, ptpwire.Latin1Encoder{})
	if err != nil {
		t.Fatalf("unexpected error at boundary: %v", err)
	}
}

func TestStringByteLenMatchesEncodeString(t *testing.T) {
	cases := []string{"", "a", "DCIM", "100LINUX", "IMG_0001.JPG"}
	for _, s := range cases {
		var buf bytes.Buffer
		n, err := ptpwire.EncodeString(&buf, s, ptpwire.Latin1Encoder{})
		if err != nil {
			t.Fatalf("EncodeString(%q): %v", s, err)
		}
		if got := ptpwire.StringByteLen(s); got != n {
			t.Errorf("StringByteLen(%q) = %d, EncodeString wrote %d bytes", s, got, n)
		}
	}
}
