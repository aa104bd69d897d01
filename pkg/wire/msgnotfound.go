package wire

import (
	"io"
)

// MsgNotFound implements the Message interface and represents a bitcoin notfound
// message. It is a response to a getdata message listing the requested items the peer does not have.
//
// Use the AddInvVect function to build up the list of inventory vectors when
// sending a notfound message to another peer.
type MsgNotFound struct {
	InvList []*InvVect
}

// AddInvVect adds an inventory vector to the message.
func (msg *MsgNotFound) AddInvVect(iv *InvVect) (e error) {
	l := invList(msg.InvList)
	if e = l.add("MsgNotFound.AddInvVect", iv); e != nil {
		return
	}
	msg.InvList = l
	return
}

// BtcDecode decodes r using the bitcoin protocol encoding into the receiver.
// This is part of the Message interface implementation.
func (msg *MsgNotFound) BtcDecode(r io.Reader, pver uint32) (e error) {
	var l invList
	if e = l.decode(r, pver, "MsgNotFound.BtcDecode"); e != nil {
		return
	}
	msg.InvList = l
	return
}

// BtcEncode encodes the receiver to w using the bitcoin protocol encoding. This
// is part of the Message interface implementation.
func (msg *MsgNotFound) BtcEncode(w io.Writer, pver uint32) (e error) {
	return invList(msg.InvList).encode(w, pver, "MsgNotFound.BtcEncode")
}

// Command returns the protocol command string for the message. This is part of
// the Message interface implementation.
func (msg *MsgNotFound) Command() string {
	return CmdNotFound
}

// MaxPayloadLength returns the maximum length the payload can be for the
// receiver. This is part of the Message interface implementation.
func (msg *MsgNotFound) MaxPayloadLength(pver uint32) uint32 {
	// Num inventory vectors (varInt) + max allowed inventory vectors.
	return invListMaxPayload()
}

// NewMsgNotFound returns a new bitcoin notfound message that conforms to the Message
// interface. See MsgNotFound for details.
func NewMsgNotFound() *MsgNotFound {
	return &MsgNotFound{
		InvList: make([]*InvVect, 0, defaultInvListAlloc),
	}
}
