package wire

import (
	"io"
)

// nonceMaxPayload is the payload of ping and pong: an 8 byte nonce.
const nonceMaxPayload = 8

func readNonce(r io.Reader, nonce *uint64) error {
	return readElement(r, nonce)
}

func writeNonce(w io.Writer, nonce uint64) error {
	return writeElement(w, nonce)
}

// MsgPing implements the Message interface and represents a bitcoin ping
// message. It is sent by a peer that has not sent anything for a while to
// check the link is still alive. The receiver answers with a pong carrying the
// same nonce.
type MsgPing struct {
	// Unique value associated with message that is used to identify specific
	// ping message.
	Nonce uint64
}

// BtcDecode decodes r using the bitcoin protocol encoding into the receiver.
// This is part of the Message interface implementation.
func (msg *MsgPing) BtcDecode(r io.Reader, pver uint32) (e error) {
	return readNonce(r, &msg.Nonce)
}

// BtcEncode encodes the receiver to w using the bitcoin protocol encoding. This
// is part of the Message interface implementation.
func (msg *MsgPing) BtcEncode(w io.Writer, pver uint32) (e error) {
	return writeNonce(w, msg.Nonce)
}

// Command returns the protocol command string for the message. This is part of
// the Message interface implementation.
func (msg *MsgPing) Command() string {
	return CmdPing
}

// MaxPayloadLength returns the maximum length the payload can be for the
// receiver. This is part of the Message interface implementation.
func (msg *MsgPing) MaxPayloadLength(pver uint32) uint32 {
	return nonceMaxPayload
}

// NewMsgPing returns a new bitcoin ping message that conforms to the Message
// interface. See MsgPing for details.
func NewMsgPing(nonce uint64) *MsgPing {
	return &MsgPing{Nonce: nonce}
}
