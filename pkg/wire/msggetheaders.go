package wire

import (
	"io"

	"github.com/nb-coin/new-bitcoin/pkg/chainhash"
)

// MsgGetHeaders implements the Message interface and represents a bitcoin getheaders
// message. It is used to request a list of block headers for blocks starting after the last known hash in the slice of block locator hashes. The list is returned via a headers message (MsgHeaders) and is limited by a specific hash to stop at or the maximum number of block headers per message, which is currently 2000.
//
// Set the HashStop field to the hash at which to stop and use AddBlockLocatorHash
// to build up the list of block locator hashes. At least one locator hash is
// required.
type MsgGetHeaders struct {
	blockLocator
}

// AddBlockLocatorHash adds a new block locator hash to the message.
func (msg *MsgGetHeaders) AddBlockLocatorHash(hash *chainhash.Hash) (e error) {
	return msg.addHash("MsgGetHeaders.AddBlockLocatorHash", hash)
}

// BtcDecode decodes r using the bitcoin protocol encoding into the receiver.
// This is part of the Message interface implementation.
func (msg *MsgGetHeaders) BtcDecode(r io.Reader, pver uint32) (e error) {
	return msg.decode(r, pver, "MsgGetHeaders.BtcDecode")
}

// BtcEncode encodes the receiver to w using the bitcoin protocol encoding. This
// is part of the Message interface implementation.
func (msg *MsgGetHeaders) BtcEncode(w io.Writer, pver uint32) (e error) {
	return msg.encode(w, pver, "MsgGetHeaders.BtcEncode")
}

// Command returns the protocol command string for the message. This is part of
// the Message interface implementation.
func (msg *MsgGetHeaders) Command() string {
	return CmdGetHeaders
}

// MaxPayloadLength returns the maximum length the payload can be for the
// receiver. This is part of the Message interface implementation.
func (msg *MsgGetHeaders) MaxPayloadLength(pver uint32) uint32 {
	return blockLocatorMaxPayload()
}

// NewMsgGetHeaders returns a new bitcoin getheaders message that conforms to the Message
// interface using the passed parameters and defaults for the remaining fields.
func NewMsgGetHeaders(hashStop *chainhash.Hash) *MsgGetHeaders {
	return &MsgGetHeaders{
		blockLocator: blockLocator{
			ProtocolVersion:    ProtocolVersion,
			BlockLocatorHashes: make([]*chainhash.Hash, 0, MaxBlockLocatorsPerMsg),
			HashStop:           *hashStop,
		},
	}
}
