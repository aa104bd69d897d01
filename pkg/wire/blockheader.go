package wire

import (
	"bytes"
	"io"
	"time"

	"github.com/nb-coin/new-bitcoin/pkg/chainhash"
)

// BlockHeaderLen is a constant that represents the number of bytes for a block
// header: version 4 bytes + timestamp 4 bytes + bits 4 bytes + nonce 4 bytes +
// PrevBlock and MerkleRoot hashes.
const BlockHeaderLen = 80

// BlockHeader defines information about a block and is used in the bitcoin
// block (MsgBlock) and headers (MsgHeaders) messages.
type BlockHeader struct {
	// Version of the block. This is not the same as the protocol version.
	Version uint32
	// Hash of the previous block header in the block chain.
	PrevBlock chainhash.Hash
	// Merkle tree reference to hash of all transactions for the block.
	MerkleRoot chainhash.Hash
	// Time the block was created. This is, unfortunately, encoded as a uint32 on
	// the wire and therefore is limited to 2106.
	Timestamp time.Time
	// Difficulty target for the block.
	Bits uint32
	// Nonce used to generate the block.
	Nonce uint32
}

// BlockHash computes the block identifier hash for the given block header.
func (h *BlockHeader) BlockHash() chainhash.Hash {
	buf := bytes.NewBuffer(make([]byte, 0, BlockHeaderLen))
	_ = writeBlockHeader(buf, 0, h)
	return chainhash.DoubleHashH(buf.Bytes())
}

// NewBlockHeader returns a new BlockHeader using the provided version, previous
// block hash, merkle root hash, difficulty bits, and nonce used to generate the
// block with defaults for the remaining fields.
func NewBlockHeader(
	version uint32, prevHash, merkleRootHash *chainhash.Hash, bits uint32, nonce uint32,
) *BlockHeader {
	// Limit the timestamp to one second precision since the protocol doesn't
	// support better.
	return &BlockHeader{
		Version:    version,
		PrevBlock:  *prevHash,
		MerkleRoot: *merkleRootHash,
		Timestamp:  time.Unix(time.Now().Unix(), 0),
		Bits:       bits,
		Nonce:      nonce,
	}
}

// readBlockHeader reads a bitcoin block header from r.
func readBlockHeader(r io.Reader, pver uint32, bh *BlockHeader) (e error) {
	return readElements(
		r, &bh.Version, &bh.PrevBlock, &bh.MerkleRoot,
		(*uint32Time)(&bh.Timestamp), &bh.Bits, &bh.Nonce,
	)
}

// writeBlockHeader writes a bitcoin block header to w.
func writeBlockHeader(w io.Writer, pver uint32, bh *BlockHeader) (e error) {
	sec := uint32(bh.Timestamp.Unix())
	return writeElements(
		w, bh.Version, &bh.PrevBlock, &bh.MerkleRoot, sec, bh.Bits, bh.Nonce,
	)
}
