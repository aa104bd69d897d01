package wire

import (
	"io"
)

// MsgGetData implements the Message interface and represents a bitcoin getdata
// message. It is used to request data such as blocks and transactions from another peer, typically in response to an inv message.
//
// Use the AddInvVect function to build up the list of inventory vectors when
// sending a getdata message to another peer.
type MsgGetData struct {
	InvList []*InvVect
}

// AddInvVect adds an inventory vector to the message.
func (msg *MsgGetData) AddInvVect(iv *InvVect) (e error) {
	l := invList(msg.InvList)
	if e = l.add("MsgGetData.AddInvVect", iv); e != nil {
		return
	}
	msg.InvList = l
	return
}

// BtcDecode decodes r using the bitcoin protocol encoding into the receiver.
// This is part of the Message interface implementation.
func (msg *MsgGetData) BtcDecode(r io.Reader, pver uint32) (e error) {
	var l invList
	if e = l.decode(r, pver, "MsgGetData.BtcDecode"); e != nil {
		return
	}
	msg.InvList = l
	return
}

// BtcEncode encodes the receiver to w using the bitcoin protocol encoding. This
// is part of the Message interface implementation.
func (msg *MsgGetData) BtcEncode(w io.Writer, pver uint32) (e error) {
	return invList(msg.InvList).encode(w, pver, "MsgGetData.BtcEncode")
}

// Command returns the protocol command string for the message. This is part of
// the Message interface implementation.
func (msg *MsgGetData) Command() string {
	return CmdGetData
}

// MaxPayloadLength returns the maximum length the payload can be for the
// receiver. This is part of the Message interface implementation.
func (msg *MsgGetData) MaxPayloadLength(pver uint32) uint32 {
	// Num inventory vectors (varInt) + max allowed inventory vectors.
	return invListMaxPayload()
}

// NewMsgGetData returns a new bitcoin getdata message that conforms to the Message
// interface. See MsgGetData for details.
func NewMsgGetData() *MsgGetData {
	return &MsgGetData{
		InvList: make([]*InvVect, 0, defaultInvListAlloc),
	}
}
