package wire

import (
	"io"

	"github.com/nb-coin/new-bitcoin/pkg/chainhash"
)

// MsgGetBlocks implements the Message interface and represents a bitcoin getblocks
// message. It is used to request a list of blocks starting after the last known hash in the slice of block locator hashes. The list is returned via an inv message (MsgInv) and is limited by a specific hash to stop at or the maximum number of blocks per message, which is currently 500.
//
// Set the HashStop field to the hash at which to stop and use AddBlockLocatorHash
// to build up the list of block locator hashes. At least one locator hash is
// required.
type MsgGetBlocks struct {
	blockLocator
}

// AddBlockLocatorHash adds a new block locator hash to the message.
func (msg *MsgGetBlocks) AddBlockLocatorHash(hash *chainhash.Hash) (e error) {
	return msg.addHash("MsgGetBlocks.AddBlockLocatorHash", hash)
}

// BtcDecode decodes r using the bitcoin protocol encoding into the receiver.
// This is part of the Message interface implementation.
func (msg *MsgGetBlocks) BtcDecode(r io.Reader, pver uint32) (e error) {
	return msg.decode(r, pver, "MsgGetBlocks.BtcDecode")
}

// BtcEncode encodes the receiver to w using the bitcoin protocol encoding. This
// is part of the Message interface implementation.
func (msg *MsgGetBlocks) BtcEncode(w io.Writer, pver uint32) (e error) {
	return msg.encode(w, pver, "MsgGetBlocks.BtcEncode")
}

// Command returns the protocol command string for the message. This is part of
// the Message interface implementation.
func (msg *MsgGetBlocks) Command() string {
	return CmdGetBlocks
}

// MaxPayloadLength returns the maximum length the payload can be for the
// receiver. This is part of the Message interface implementation.
func (msg *MsgGetBlocks) MaxPayloadLength(pver uint32) uint32 {
	return blockLocatorMaxPayload()
}

// NewMsgGetBlocks returns a new bitcoin getblocks message that conforms to the Message
// interface using the passed parameters and defaults for the remaining fields.
func NewMsgGetBlocks(hashStop *chainhash.Hash) *MsgGetBlocks {
	return &MsgGetBlocks{
		blockLocator: blockLocator{
			ProtocolVersion:    ProtocolVersion,
			BlockLocatorHashes: make([]*chainhash.Hash, 0, MaxBlockLocatorsPerMsg),
			HashStop:           *hashStop,
		},
	}
}
