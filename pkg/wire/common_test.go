package wire

import (
	"bytes"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/davecgh/go-spew/spew"
)

// TestVarIntWire tests wire encode and decode for variable length integers at
// every discriminant boundary.
func TestVarIntWire(t *testing.T) {
	pver := ProtocolVersion
	tests := []struct {
		in  uint64
		buf []byte
	}{
		// Single byte
		{0, []byte{0x00}},
		// Max single byte
		{0xfc, []byte{0xfc}},
		// Min 2-byte
		{0xfd, []byte{0xfd, 0x0fd, 0x00}},
		// Max 2-byte
		{0xffff, []byte{0xfd, 0xff, 0xff}},
		// Min 4-byte
		{0x10000, []byte{0xfe, 0x00, 0x00, 0x01, 0x00}},
		// Max 4-byte
		{0xffffffff, []byte{0xfe, 0xff, 0xff, 0xff, 0xff}},
		// Min 8-byte
		{
			0x100000000,
			[]byte{0xff, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00},
		},
		// Max 8-byte
		{
			0xffffffffffffffff,
			[]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		},
	}
	for i, test := range tests {
		var buf bytes.Buffer
		if e := WriteVarInt(&buf, pver, test.in); e != nil {
			t.Errorf("WriteVarInt #%d error %v", i, e)
			continue
		}
		if !bytes.Equal(buf.Bytes(), test.buf) {
			t.Errorf("WriteVarInt #%d\n got: %s want: %s", i,
				spew.Sdump(buf.Bytes()), spew.Sdump(test.buf),
			)
			continue
		}
		if size := VarIntSerializeSize(test.in); size != len(test.buf) {
			t.Errorf("VarIntSerializeSize #%d got %d want %d", i, size, len(test.buf))
		}
		val, e := ReadVarInt(bytes.NewReader(test.buf), pver)
		if e != nil {
			t.Errorf("ReadVarInt #%d error %v", i, e)
			continue
		}
		if val != test.in {
			t.Errorf("ReadVarInt #%d\n got: %d want: %d", i, val, test.in)
		}
	}
}

// TestVarIntNonCanonical ensures variable length integers that are not encoded
// canonically return the expected error.
func TestVarIntNonCanonical(t *testing.T) {
	pver := ProtocolVersion
	tests := []struct {
		name string
		in   []byte
	}{
		{"0 encoded with 3 bytes", []byte{0xfd, 0x00, 0x00}},
		{"max single-byte value encoded with 3 bytes", []byte{0xfd, 0xfc, 0x00}},
		{"0 encoded with 5 bytes", []byte{0xfe, 0x00, 0x00, 0x00, 0x00}},
		{"max three-byte value encoded with 5 bytes", []byte{0xfe, 0xff, 0xff, 0x00, 0x00}},
		{"0 encoded with 9 bytes", []byte{0xff, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}},
		{"max five-byte value encoded with 9 bytes", []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x00}},
	}
	for i, test := range tests {
		_, e := ReadVarInt(bytes.NewReader(test.in), pver)
		var msgErr *MessageError
		if !errors.As(e, &msgErr) {
			t.Errorf("ReadVarInt #%d (%s) unexpected error %v", i, test.name, e)
		}
	}
}

// TestVarStringWire tests wire encode and decode for variable length strings.
func TestVarStringWire(t *testing.T) {
	pver := ProtocolVersion
	// str256 is a string that takes a 2-byte varint to encode.
	str256 := strings.Repeat("test", 64)
	tests := []struct {
		in  string
		buf []byte
	}{
		{"", []byte{0x00}},
		{"Test", append([]byte{0x04}, []byte("Test")...)},
		{str256, append([]byte{0xfd, 0x00, 0x01}, []byte(str256)...)},
	}
	for i, test := range tests {
		var buf bytes.Buffer
		if e := WriteVarString(&buf, pver, test.in); e != nil {
			t.Errorf("WriteVarString #%d error %v", i, e)
			continue
		}
		if !bytes.Equal(buf.Bytes(), test.buf) {
			t.Errorf("WriteVarString #%d\n got: %s want: %s", i,
				spew.Sdump(buf.Bytes()), spew.Sdump(test.buf),
			)
			continue
		}
		val, e := ReadVarString(bytes.NewReader(test.buf), pver)
		if e != nil {
			t.Errorf("ReadVarString #%d error %v", i, e)
			continue
		}
		if val != test.in {
			t.Errorf("ReadVarString #%d\n got: %s want: %s", i, val, test.in)
		}
	}
}

// TestVarBytesOverflow ensures byte arrays that are intentionally crafted to
// have a length greater than the allowed maximum are rejected before any
// allocation.
func TestVarBytesOverflow(t *testing.T) {
	pver := ProtocolVersion
	buf := []byte{0xff, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01}
	_, e := ReadVarBytes(bytes.NewReader(buf), pver, MaxMessagePayload, "test payload")
	var msgErr *MessageError
	if !errors.As(e, &msgErr) {
		t.Errorf("ReadVarBytes: got %v want a *MessageError", e)
	}
	// A short body is an io error rather than a message error.
	_, e = ReadVarBytes(bytes.NewReader([]byte{0x04, 0x01}), pver, 10, "test payload")
	if e != io.ErrUnexpectedEOF {
		t.Errorf("ReadVarBytes short: got %v want %v", e, io.ErrUnexpectedEOF)
	}
}

// TestRandomUint64 exercises the random nonce source and its error path.
func TestRandomUint64(t *testing.T) {
	a, e := RandomUint64()
	if e != nil {
		t.Fatalf("RandomUint64: %v", e)
	}
	b, _ := RandomUint64()
	if a == b {
		t.Errorf("two random nonces are identical: %d", a)
	}
	if _, e = randomUint64(bytes.NewReader([]byte{1, 2, 3})); e == nil {
		t.Errorf("randomUint64 of a short reader did not fail")
	}
}

func TestNetAddressWire(t *testing.T) {
	pver := ProtocolVersion
	na, e := ParseNetAddress("127.0.0.1:8333", SFNodeNetwork)
	if e != nil {
		t.Fatalf("ParseNetAddress: %v", e)
	}
	want := []byte{
		0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // SFNodeNetwork
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0xff, 0xff, 0x7f, 0x00, 0x00, 0x01, // IP 127.0.0.1
		0x20, 0x8d, // Port 8333 in big-endian
	}
	var buf bytes.Buffer
	if e = writeNetAddress(&buf, pver, na, false); e != nil {
		t.Fatalf("writeNetAddress: %v", e)
	}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("writeNetAddress\n got: %s want: %s", spew.Sdump(buf.Bytes()), spew.Sdump(want))
	}
	var got NetAddress
	if e = readNetAddress(bytes.NewReader(want), pver, &got, false); e != nil {
		t.Fatalf("readNetAddress: %v", e)
	}
	na.Timestamp = got.Timestamp
	if !reflect.DeepEqual(&got, na) {
		t.Errorf("readNetAddress\n got: %s want: %s", spew.Sdump(got), spew.Sdump(na))
	}
	if got.Key() != "127.0.0.1:8333" {
		t.Errorf("Key: got %v want 127.0.0.1:8333", got.Key())
	}
	// IPv6 is not carried by this network.
	v6 := &NetAddress{IP: []byte{0x20, 0x01, 0x0d, 0xb8, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1}}
	if e = writeNetAddress(&buf, pver, v6, false); e == nil {
		t.Errorf("writeNetAddress accepted an IPv6 address")
	}
	if _, e = ParseNetAddress("[::1]:8333", 0); e == nil {
		t.Errorf("ParseNetAddress accepted an IPv6 address")
	}
}
