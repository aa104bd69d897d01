package wire

import (
	"io"
)

// MsgInv implements the Message interface and represents a bitcoin inv
// message. It is used to advertise a peer's known data such as blocks and transactions through inventory vectors.
//
// Use the AddInvVect function to build up the list of inventory vectors when
// sending a inv message to another peer.
type MsgInv struct {
	InvList []*InvVect
}

// AddInvVect adds an inventory vector to the message.
func (msg *MsgInv) AddInvVect(iv *InvVect) (e error) {
	l := invList(msg.InvList)
	if e = l.add("MsgInv.AddInvVect", iv); e != nil {
		return
	}
	msg.InvList = l
	return
}

// BtcDecode decodes r using the bitcoin protocol encoding into the receiver.
// This is part of the Message interface implementation.
func (msg *MsgInv) BtcDecode(r io.Reader, pver uint32) (e error) {
	var l invList
	if e = l.decode(r, pver, "MsgInv.BtcDecode"); e != nil {
		return
	}
	msg.InvList = l
	return
}

// BtcEncode encodes the receiver to w using the bitcoin protocol encoding. This
// is part of the Message interface implementation.
func (msg *MsgInv) BtcEncode(w io.Writer, pver uint32) (e error) {
	return invList(msg.InvList).encode(w, pver, "MsgInv.BtcEncode")
}

// Command returns the protocol command string for the message. This is part of
// the Message interface implementation.
func (msg *MsgInv) Command() string {
	return CmdInv
}

// MaxPayloadLength returns the maximum length the payload can be for the
// receiver. This is part of the Message interface implementation.
func (msg *MsgInv) MaxPayloadLength(pver uint32) uint32 {
	// Num inventory vectors (varInt) + max allowed inventory vectors.
	return invListMaxPayload()
}

// NewMsgInv returns a new bitcoin inv message that conforms to the Message
// interface. See MsgInv for details.
func NewMsgInv() *MsgInv {
	return &MsgInv{
		InvList: make([]*InvVect, 0, defaultInvListAlloc),
	}
}
