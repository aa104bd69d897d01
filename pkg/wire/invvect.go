package wire

import (
	"fmt"
	"io"

	"github.com/nb-coin/new-bitcoin/pkg/chainhash"
)

const (
	// MaxInvPerMsg is the maximum number of inventory vectors that can be in a
	// single inv, getdata or notfound message.
	MaxInvPerMsg = 50000
	// maxInvVectPayload is the maximum payload size for an inventory vector:
	// type 4 bytes + hash 32 bytes.
	maxInvVectPayload = 4 + chainhash.HashSize
)

// InvType represents the allowed types of inventory vectors. See InvVect.
type InvType uint32

// These constants define the various supported inventory vector types.
const (
	InvTypeError         InvType = 0
	InvTypeTx            InvType = 1
	InvTypeBlock         InvType = 2
	InvTypeFilteredBlock InvType = 3
)

// Map of service flags back to their constant names for pretty printing.
var ivStrings = map[InvType]string{
	InvTypeError:         "ERROR",
	InvTypeTx:            "MSG_TX",
	InvTypeBlock:         "MSG_BLOCK",
	InvTypeFilteredBlock: "MSG_FILTERED_BLOCK",
}

// String returns the InvType in human-readable form.
func (invtype InvType) String() string {
	if s, ok := ivStrings[invtype]; ok {
		return s
	}
	return fmt.Sprintf("Unknown InvType (%d)", uint32(invtype))
}

// InvVect defines a bitcoin inventory vector which is used to describe data, as
// specified by the Type field, that a peer wants, has, or does not have to
// another peer.
type InvVect struct {
	Type InvType        // Type of data
	Hash chainhash.Hash // Hash of the data
}

// NewInvVect returns a new InvVect using the provided type and hash.
func NewInvVect(typ InvType, hash *chainhash.Hash) *InvVect {
	return &InvVect{Type: typ, Hash: *hash}
}

// readInvVect reads an encoded InvVect from r depending on the protocol version.
func readInvVect(r io.Reader, pver uint32, iv *InvVect) (e error) {
	return readElements(r, &iv.Type, &iv.Hash)
}

// writeInvVect serializes an InvVect to w depending on the protocol version.
func writeInvVect(w io.Writer, pver uint32, iv *InvVect) (e error) {
	return writeElements(w, iv.Type, &iv.Hash)
}

// invList is the payload shared by inv, getdata and notfound.
type invList []*InvVect

func (l *invList) add(fn string, iv *InvVect) (e error) {
	if len(*l)+1 > MaxInvPerMsg {
		str := fmt.Sprintf("too many invvect in message [max %v]", MaxInvPerMsg)
		return messageError(fn, str)
	}
	*l = append(*l, iv)
	return
}

func (l *invList) decode(r io.Reader, pver uint32, fn string) (e error) {
	var count uint64
	if count, e = readCount(r, pver, 0, MaxInvPerMsg, fn, "invvect"); e != nil {
		return
	}
	// Create a contiguous slice of inventory vectors to deserialize into in order
	// to reduce the number of allocations.
	invList := make([]InvVect, count)
	*l = make([]*InvVect, 0, count)
	for i := range invList {
		iv := &invList[i]
		if e = readInvVect(r, pver, iv); e != nil {
			return
		}
		*l = append(*l, iv)
	}
	return
}

func (l invList) encode(w io.Writer, pver uint32, fn string) (e error) {
	count := len(l)
	if count > MaxInvPerMsg {
		str := fmt.Sprintf("too many invvect in message [%v]", count)
		return messageError(fn, str)
	}
	if e = WriteVarInt(w, pver, uint64(count)); e != nil {
		return
	}
	for _, iv := range l {
		if e = writeInvVect(w, pver, iv); e != nil {
			return
		}
	}
	return
}

func invListMaxPayload() uint32 {
	return uint32(MaxVarIntPayload + (MaxInvPerMsg * maxInvVectPayload))
}

// defaultInvListAlloc is the default size used for the backing array for an
// inventory list. The array will dynamically grow as needed, but this figure is
// intended to provide enough space for the max number of inventory vectors in a
// *typical* inventory message without needing to grow the backing array
// multiple times.
const defaultInvListAlloc = 1000
