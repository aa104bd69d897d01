package wire

import (
	"fmt"
	"io"

	"github.com/nb-coin/new-bitcoin/pkg/chainhash"
)

// MaxBlockLocatorsPerMsg is the maximum number of block locator hashes allowed
// per message.
const MaxBlockLocatorsPerMsg = 500

// blockLocator is the payload shared by getblocks and getheaders: a version,
// at least one locator hash and a stop hash.
type blockLocator struct {
	ProtocolVersion    uint32
	BlockLocatorHashes []*chainhash.Hash
	HashStop           chainhash.Hash
}

func (bl *blockLocator) addHash(fn string, hash *chainhash.Hash) (e error) {
	if len(bl.BlockLocatorHashes)+1 > MaxBlockLocatorsPerMsg {
		str := fmt.Sprintf("too many block locator hashes for message [max %v]", MaxBlockLocatorsPerMsg)
		return messageError(fn, str)
	}
	bl.BlockLocatorHashes = append(bl.BlockLocatorHashes, hash)
	return
}

func (bl *blockLocator) decode(r io.Reader, pver uint32, fn string) (e error) {
	if e = readElement(r, &bl.ProtocolVersion); e != nil {
		return
	}
	var count uint64
	if count, e = readCount(r, pver, 1, MaxBlockLocatorsPerMsg, fn, "block locator hashes"); e != nil {
		return
	}
	// Create a contiguous slice of hashes to deserialize into in order to reduce
	// the number of allocations.
	locatorHashes := make([]chainhash.Hash, count)
	bl.BlockLocatorHashes = make([]*chainhash.Hash, 0, count)
	for i := range locatorHashes {
		hash := &locatorHashes[i]
		if e = readElement(r, hash); e != nil {
			return
		}
		bl.BlockLocatorHashes = append(bl.BlockLocatorHashes, hash)
	}
	return readElement(r, &bl.HashStop)
}

func (bl *blockLocator) encode(w io.Writer, pver uint32, fn string) (e error) {
	count := len(bl.BlockLocatorHashes)
	if count < 1 || count > MaxBlockLocatorsPerMsg {
		str := fmt.Sprintf(
			"block locator hash count %v out of range [1, %v]", count, MaxBlockLocatorsPerMsg,
		)
		return messageError(fn, str)
	}
	if e = writeElement(w, bl.ProtocolVersion); E.Chk(e) {
		return
	}
	if e = WriteVarInt(w, pver, uint64(count)); E.Chk(e) {
		return
	}
	for _, hash := range bl.BlockLocatorHashes {
		if e = writeElement(w, hash); E.Chk(e) {
			return
		}
	}
	return writeElement(w, &bl.HashStop)
}

func blockLocatorMaxPayload() uint32 {
	// Protocol version 4 bytes + num hashes (varInt) + max block locator hashes +
	// hash stop.
	return 4 + MaxVarIntPayload + (MaxBlockLocatorsPerMsg * chainhash.HashSize) + chainhash.HashSize
}
