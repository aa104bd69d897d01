package wire

import (
	"fmt"
	"io"
)

// MaxBlockHeadersPerMsg is the maximum number of block headers that can be in a
// single bitcoin headers message.
const MaxBlockHeadersPerMsg = 2000

// MsgHeaders implements the Message interface and represents a bitcoin headers
// message. It is used to deliver block header information in response to a
// getheaders message (MsgGetHeaders). Each header is followed on the wire by a
// transaction count which is always zero.
type MsgHeaders struct {
	Headers []*BlockHeader
}

// AddBlockHeader adds a new block header to the message.
func (msg *MsgHeaders) AddBlockHeader(bh *BlockHeader) (e error) {
	if len(msg.Headers)+1 > MaxBlockHeadersPerMsg {
		str := fmt.Sprintf("too many block headers in message [max %v]", MaxBlockHeadersPerMsg)
		return messageError("MsgHeaders.AddBlockHeader", str)
	}
	msg.Headers = append(msg.Headers, bh)
	return nil
}

// BtcDecode decodes r using the bitcoin protocol encoding into the receiver.
// This is part of the Message interface implementation.
func (msg *MsgHeaders) BtcDecode(r io.Reader, pver uint32) (e error) {
	var count uint64
	if count, e = readCount(r, pver, 0, MaxBlockHeadersPerMsg, "MsgHeaders.BtcDecode", "block headers"); e != nil {
		return
	}
	// Create a contiguous slice of headers to deserialize into in order to reduce
	// the number of allocations.
	headers := make([]BlockHeader, count)
	msg.Headers = make([]*BlockHeader, 0, count)
	for i := range headers {
		bh := &headers[i]
		if e = readBlockHeader(r, pver, bh); e != nil {
			return
		}
		var txCount uint64
		if txCount, e = ReadVarInt(r, pver); e != nil {
			return
		}
		// Ensure the transaction count is zero for headers.
		if txCount > 0 {
			str := fmt.Sprintf("block headers may not contain transactions [count %v]", txCount)
			return messageError("MsgHeaders.BtcDecode", str)
		}
		msg.Headers = append(msg.Headers, bh)
	}
	return
}

// BtcEncode encodes the receiver to w using the bitcoin protocol encoding. This
// is part of the Message interface implementation.
func (msg *MsgHeaders) BtcEncode(w io.Writer, pver uint32) (e error) {
	count := len(msg.Headers)
	if count > MaxBlockHeadersPerMsg {
		str := fmt.Sprintf("too many block headers for message [count %v, max %v]", count, MaxBlockHeadersPerMsg)
		return messageError("MsgHeaders.BtcEncode", str)
	}
	if e = WriteVarInt(w, pver, uint64(count)); E.Chk(e) {
		return
	}
	for _, bh := range msg.Headers {
		if e = writeBlockHeader(w, pver, bh); E.Chk(e) {
			return
		}
		// The wire protocol encoding always includes a 0 for the number of
		// transactions on header messages.
		if e = WriteVarInt(w, pver, 0); E.Chk(e) {
			return
		}
	}
	return
}

// Command returns the protocol command string for the message. This is part of
// the Message interface implementation.
func (msg *MsgHeaders) Command() string {
	return CmdHeaders
}

// MaxPayloadLength returns the maximum length the payload can be for the
// receiver. This is part of the Message interface implementation.
func (msg *MsgHeaders) MaxPayloadLength(pver uint32) uint32 {
	// Num headers (varInt) + max allowed headers (header length + 1 byte for the
	// number of transactions which is always 0).
	return MaxVarIntPayload + ((BlockHeaderLen + 1) * MaxBlockHeadersPerMsg)
}

// NewMsgHeaders returns a new bitcoin headers message that conforms to the
// Message interface. See MsgHeaders for details.
func NewMsgHeaders() *MsgHeaders {
	return &MsgHeaders{
		Headers: make([]*BlockHeader, 0, MaxBlockHeadersPerMsg),
	}
}
