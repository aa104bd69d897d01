package wire

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/nb-coin/new-bitcoin/pkg/chainhash"
)

const (
	// MaxVarIntPayload is the maximum payload size for a variable length integer.
	MaxVarIntPayload = 9
	// binaryFreeListMaxItems is the number of buffers to keep in the free list to
	// use for binary serialization and deserialization.
	binaryFreeListMaxItems = 1024
)

var (
	// littleEndian is a convenience variable since binary.LittleEndian is quite
	// long.
	littleEndian = binary.LittleEndian
	// bigEndian is a convenience variable since binary.BigEndian is quite long.
	bigEndian = binary.BigEndian
)

// binaryFreeList defines a concurrent safe free list of byte slices with a cap
// of 8 (thus it supports up to a uint64). It provides temporary buffers for
// reading and writing primitive numbers to cut the allocations of a decode.
type binaryFreeList chan []byte

// Borrow returns a byte slice from the free list with a length of 8. A new
// buffer is allocated if there are not any available on the free list.
func (l binaryFreeList) Borrow() []byte {
	var buf []byte
	select {
	case buf = <-l:
	default:
		buf = make([]byte, 8)
	}
	return buf[:8]
}

// Return puts the provided byte slice back on the free list. The buffer MUST
// have been obtained via the Borrow function and therefore have a cap of 8.
func (l binaryFreeList) Return(buf []byte) {
	select {
	case l <- buf:
	default:
	}
}

// Uint8 reads a single byte from the provided reader.
func (l binaryFreeList) Uint8(r io.Reader) (rv uint8, e error) {
	buf := l.Borrow()[:1]
	if _, e = io.ReadFull(r, buf); e == nil {
		rv = buf[0]
	}
	l.Return(buf)
	return
}

// Uint16 reads two bytes and converts them with the given byte order.
func (l binaryFreeList) Uint16(r io.Reader, byteOrder binary.ByteOrder) (rv uint16, e error) {
	buf := l.Borrow()[:2]
	if _, e = io.ReadFull(r, buf); e == nil {
		rv = byteOrder.Uint16(buf)
	}
	l.Return(buf)
	return
}

// Uint32 reads four bytes and converts them with the given byte order.
func (l binaryFreeList) Uint32(r io.Reader, byteOrder binary.ByteOrder) (rv uint32, e error) {
	buf := l.Borrow()[:4]
	if _, e = io.ReadFull(r, buf); e == nil {
		rv = byteOrder.Uint32(buf)
	}
	l.Return(buf)
	return
}

// Uint64 reads eight bytes and converts them with the given byte order.
func (l binaryFreeList) Uint64(r io.Reader, byteOrder binary.ByteOrder) (rv uint64, e error) {
	buf := l.Borrow()[:8]
	if _, e = io.ReadFull(r, buf); e == nil {
		rv = byteOrder.Uint64(buf)
	}
	l.Return(buf)
	return
}

// PutUint8 writes a single byte to the given writer.
func (l binaryFreeList) PutUint8(w io.Writer, val uint8) (e error) {
	buf := l.Borrow()[:1]
	buf[0] = val
	_, e = w.Write(buf)
	l.Return(buf)
	return
}

// PutUint16 writes val to w in the given byte order.
func (l binaryFreeList) PutUint16(w io.Writer, byteOrder binary.ByteOrder, val uint16) (e error) {
	buf := l.Borrow()[:2]
	byteOrder.PutUint16(buf, val)
	_, e = w.Write(buf)
	l.Return(buf)
	return
}

// PutUint32 writes val to w in the given byte order.
func (l binaryFreeList) PutUint32(w io.Writer, byteOrder binary.ByteOrder, val uint32) (e error) {
	buf := l.Borrow()[:4]
	byteOrder.PutUint32(buf, val)
	_, e = w.Write(buf)
	l.Return(buf)
	return
}

// PutUint64 writes val to w in the given byte order.
func (l binaryFreeList) PutUint64(w io.Writer, byteOrder binary.ByteOrder, val uint64) (e error) {
	buf := l.Borrow()[:8]
	byteOrder.PutUint64(buf, val)
	_, e = w.Write(buf)
	l.Return(buf)
	return
}

// binarySerializer provides a free list of buffers to use for serializing and
// deserializing primitive integer values to and from io.Readers and io.Writers.
var binarySerializer binaryFreeList = make(chan []byte, binaryFreeListMaxItems)

// errNonCanonicalVarInt is the common format string used for non-canonically
// encoded variable length integer errors.
var errNonCanonicalVarInt = "non-canonical varint %x - discriminant %x must " +
	"encode a value greater than %x"

// uint32Time represents a unix timestamp encoded with a uint32. It signals
// readElement how to decode a timestamp into a Go time.Time.
type uint32Time time.Time

// int64Time represents a unix timestamp encoded with an int64.
type int64Time time.Time

// readElement reads the next sequence of bytes from r using little endian
// depending on the concrete type of element pointed to.
func readElement(r io.Reader, element interface{}) (e error) {
	switch l := element.(type) {
	case *int32:
		var rv uint32
		if rv, e = binarySerializer.Uint32(r, littleEndian); e == nil {
			*l = int32(rv)
		}
		return
	case *uint32:
		*l, e = binarySerializer.Uint32(r, littleEndian)
		return
	case *int64:
		var rv uint64
		if rv, e = binarySerializer.Uint64(r, littleEndian); e == nil {
			*l = int64(rv)
		}
		return
	case *uint64:
		*l, e = binarySerializer.Uint64(r, littleEndian)
		return
	case *uint8:
		*l, e = binarySerializer.Uint8(r)
		return
	case *bool:
		var rv uint8
		if rv, e = binarySerializer.Uint8(r); e == nil {
			*l = rv != 0x00
		}
		return
	case *uint32Time:
		var rv uint32
		if rv, e = binarySerializer.Uint32(r, littleEndian); e == nil {
			*l = uint32Time(time.Unix(int64(rv), 0))
		}
		return
	case *int64Time:
		var rv uint64
		if rv, e = binarySerializer.Uint64(r, littleEndian); e == nil {
			*l = int64Time(time.Unix(int64(rv), 0))
		}
		return
	case *[4]byte:
		_, e = io.ReadFull(r, l[:])
		return
	case *[CommandSize]uint8:
		_, e = io.ReadFull(r, l[:])
		return
	case *[16]byte:
		_, e = io.ReadFull(r, l[:])
		return
	case *chainhash.Hash:
		_, e = io.ReadFull(r, l[:])
		return
	case *ServiceFlag:
		var rv uint64
		if rv, e = binarySerializer.Uint64(r, littleEndian); e == nil {
			*l = ServiceFlag(rv)
		}
		return
	case *InvType:
		var rv uint32
		if rv, e = binarySerializer.Uint32(r, littleEndian); e == nil {
			*l = InvType(rv)
		}
		return
	case *BitcoinNet:
		var rv uint32
		if rv, e = binarySerializer.Uint32(r, littleEndian); e == nil {
			*l = BitcoinNet(rv)
		}
		return
	case *RejectCode:
		var rv uint8
		if rv, e = binarySerializer.Uint8(r); e == nil {
			*l = RejectCode(rv)
		}
		return
	}
	// Fall back to the slower binary.Read if a fast path was not available above.
	return binary.Read(r, littleEndian, element)
}

// readElements reads multiple items from r. It is equivalent to multiple calls
// to readElement.
func readElements(r io.Reader, elements ...interface{}) (e error) {
	for _, element := range elements {
		if e = readElement(r, element); e != nil {
			return
		}
	}
	return
}

// writeElement writes the little endian representation of element to w.
func writeElement(w io.Writer, element interface{}) (e error) {
	switch el := element.(type) {
	case int32:
		return binarySerializer.PutUint32(w, littleEndian, uint32(el))
	case uint32:
		return binarySerializer.PutUint32(w, littleEndian, el)
	case int64:
		return binarySerializer.PutUint64(w, littleEndian, uint64(el))
	case uint64:
		return binarySerializer.PutUint64(w, littleEndian, el)
	case uint8:
		return binarySerializer.PutUint8(w, el)
	case bool:
		if el {
			return binarySerializer.PutUint8(w, 0x01)
		}
		return binarySerializer.PutUint8(w, 0x00)
	case [4]byte:
		_, e = w.Write(el[:])
		return
	case [CommandSize]uint8:
		_, e = w.Write(el[:])
		return
	case [16]byte:
		_, e = w.Write(el[:])
		return
	case *chainhash.Hash:
		_, e = w.Write(el[:])
		return
	case ServiceFlag:
		return binarySerializer.PutUint64(w, littleEndian, uint64(el))
	case InvType:
		return binarySerializer.PutUint32(w, littleEndian, uint32(el))
	case BitcoinNet:
		return binarySerializer.PutUint32(w, littleEndian, uint32(el))
	case RejectCode:
		return binarySerializer.PutUint8(w, uint8(el))
	}
	// Fall back to the slower binary.Write if a fast path was not available above.
	return binary.Write(w, littleEndian, element)
}

// writeElements writes multiple items to w. It is equivalent to multiple calls
// to writeElement.
func writeElements(w io.Writer, elements ...interface{}) (e error) {
	for _, element := range elements {
		if e = writeElement(w, element); E.Chk(e) {
			return
		}
	}
	return
}

// ReadVarInt reads a variable length integer from r and returns it as a uint64.
func ReadVarInt(r io.Reader, pver uint32) (rv uint64, e error) {
	var discriminant uint8
	if discriminant, e = binarySerializer.Uint8(r); e != nil {
		return
	}
	var min uint64
	switch discriminant {
	case 0xff:
		if rv, e = binarySerializer.Uint64(r, littleEndian); e != nil {
			return
		}
		min = 0x100000000
	case 0xfe:
		var sv uint32
		if sv, e = binarySerializer.Uint32(r, littleEndian); e != nil {
			return
		}
		rv, min = uint64(sv), 0x10000
	case 0xfd:
		var sv uint16
		if sv, e = binarySerializer.Uint16(r, littleEndian); e != nil {
			return
		}
		rv, min = uint64(sv), 0xfd
	default:
		return uint64(discriminant), nil
	}
	// The encoding is not canonical if the value could have been encoded using
	// fewer bytes.
	if rv < min {
		return 0, messageError(
			"ReadVarInt", fmt.Sprintf(errNonCanonicalVarInt, rv, discriminant, min),
		)
	}
	return
}

// WriteVarInt serializes val to w using a variable number of bytes depending on
// its value.
func WriteVarInt(w io.Writer, pver uint32, val uint64) (e error) {
	if val < 0xfd {
		return binarySerializer.PutUint8(w, uint8(val))
	}
	if val <= math.MaxUint16 {
		if e = binarySerializer.PutUint8(w, 0xfd); e != nil {
			return
		}
		return binarySerializer.PutUint16(w, littleEndian, uint16(val))
	}
	if val <= math.MaxUint32 {
		if e = binarySerializer.PutUint8(w, 0xfe); e != nil {
			return
		}
		return binarySerializer.PutUint32(w, littleEndian, uint32(val))
	}
	if e = binarySerializer.PutUint8(w, 0xff); e != nil {
		return
	}
	return binarySerializer.PutUint64(w, littleEndian, val)
}

// VarIntSerializeSize returns the number of bytes it would take to serialize
// val as a variable length integer.
func VarIntSerializeSize(val uint64) int {
	switch {
	case val < 0xfd:
		return 1
	case val <= math.MaxUint16:
		return 3
	case val <= math.MaxUint32:
		return 5
	}
	return 9
}

// readCount reads the compact size prefix of an array and checks it against
// the bounds of the field.
func readCount(r io.Reader, pver uint32, min, max uint64, fn, field string) (count uint64, e error) {
	if count, e = ReadVarInt(r, pver); e != nil {
		return
	}
	if count < min {
		return 0, messageError(
			fn, fmt.Sprintf("too few %s [count %v, min %v]", field, count, min),
		)
	}
	if count > max {
		return 0, messageError(
			fn, fmt.Sprintf("too many %s [count %v, max %v]", field, count, max),
		)
	}
	return
}

// ReadVarString reads a variable length string from r and returns it as a Go
// string. An error is returned if the length is greater than the maximum
// message payload, which protects against memory exhaustion through malformed
// messages.
func ReadVarString(r io.Reader, pver uint32) (s string, e error) {
	var b []byte
	if b, e = ReadVarBytes(r, pver, MaxMessagePayload, "variable length string"); e != nil {
		return
	}
	return string(b), nil
}

// WriteVarString serializes str to w as a variable length integer containing
// the length of the string followed by the bytes that represent the string
// itself.
func WriteVarString(w io.Writer, pver uint32, str string) (e error) {
	if e = WriteVarInt(w, pver, uint64(len(str))); e != nil {
		return
	}
	_, e = io.WriteString(w, str)
	return
}

// ReadVarBytes reads a variable length byte array. An error is returned if the
// length is greater than maxAllowed. The fieldName parameter is only used for
// the error message.
func ReadVarBytes(r io.Reader, pver uint32, maxAllowed uint32, fieldName string) (b []byte, e error) {
	var count uint64
	if count, e = ReadVarInt(r, pver); e != nil {
		return
	}
	if count > uint64(maxAllowed) {
		str := fmt.Sprintf(
			"%s is larger than the max allowed size [count %d, max %d]",
			fieldName, count, maxAllowed,
		)
		return nil, messageError("ReadVarBytes", str)
	}
	b = make([]byte, count)
	if _, e = io.ReadFull(r, b); e != nil {
		return nil, e
	}
	return
}

// WriteVarBytes serializes a variable length byte array to w as a varInt
// containing the number of bytes, followed by the bytes themselves.
func WriteVarBytes(w io.Writer, pver uint32, bytes []byte) (e error) {
	if e = WriteVarInt(w, pver, uint64(len(bytes))); e != nil {
		return
	}
	_, e = w.Write(bytes)
	return
}

// randomUint64 returns a cryptographically random uint64 value. This unexported
// version takes a reader so the error paths can be tested with a fake reader.
func randomUint64(r io.Reader) (rv uint64, e error) {
	return binarySerializer.Uint64(r, bigEndian)
}

// RandomUint64 returns a cryptographically random uint64 value.
func RandomUint64() (rv uint64, e error) {
	return randomUint64(rand.Reader)
}
