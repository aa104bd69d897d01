package wire

import (
	"fmt"
	"io"
)

// RejectCode represents a numeric value by which a remote peer indicates why a
// message was rejected.
type RejectCode uint8

// These constants define the various supported reject codes.
const (
	RejectMalformed       RejectCode = 0x01
	RejectInvalid         RejectCode = 0x10
	RejectObsolete        RejectCode = 0x11
	RejectDuplicate       RejectCode = 0x12
	RejectNonstandard     RejectCode = 0x40
	RejectDust            RejectCode = 0x41
	RejectInsufficientFee RejectCode = 0x42
	RejectCheckpoint      RejectCode = 0x43
)

// Map of reject codes back strings for pretty printing.
var rejectCodeStrings = map[RejectCode]string{
	RejectMalformed:       "REJECT_MALFORMED",
	RejectInvalid:         "REJECT_INVALID",
	RejectObsolete:        "REJECT_OBSOLETE",
	RejectDuplicate:       "REJECT_DUPLICATE",
	RejectNonstandard:     "REJECT_NONSTANDARD",
	RejectDust:            "REJECT_DUST",
	RejectInsufficientFee: "REJECT_INSUFFICIENTFEE",
	RejectCheckpoint:      "REJECT_CHECKPOINT",
}

// String returns the RejectCode in human-readable form.
func (code RejectCode) String() string {
	if s, ok := rejectCodeStrings[code]; ok {
		return s
	}
	return fmt.Sprintf("Unknown RejectCode (%d)", uint8(code))
}

// MsgReject implements the Message interface and represents a bitcoin reject
// message: the command being rejected, a code and a human readable reason.
type MsgReject struct {
	// Cmd is the command for the message which was rejected such as as CmdBlock
	// or CmdTx.
	Cmd string
	// RejectCode is a code indicating why the command was rejected.
	Code RejectCode
	// Reason is a human-readable string with specific details (over and above the
	// reject code) about why the command was rejected.
	Reason string
}

// BtcDecode decodes r using the bitcoin protocol encoding into the receiver.
// This is part of the Message interface implementation.
func (msg *MsgReject) BtcDecode(r io.Reader, pver uint32) (e error) {
	if msg.Cmd, e = ReadVarString(r, pver); e != nil {
		return
	}
	if e = readElement(r, &msg.Code); e != nil {
		return
	}
	msg.Reason, e = ReadVarString(r, pver)
	return
}

// BtcEncode encodes the receiver to w using the bitcoin protocol encoding. This
// is part of the Message interface implementation.
func (msg *MsgReject) BtcEncode(w io.Writer, pver uint32) (e error) {
	if e = WriteVarString(w, pver, msg.Cmd); E.Chk(e) {
		return
	}
	if e = writeElement(w, msg.Code); E.Chk(e) {
		return
	}
	return WriteVarString(w, pver, msg.Reason)
}

// Command returns the protocol command string for the message. This is part of
// the Message interface implementation.
func (msg *MsgReject) Command() string {
	return CmdReject
}

// MaxPayloadLength returns the maximum length the payload can be for the
// receiver. This is part of the Message interface implementation.
func (msg *MsgReject) MaxPayloadLength(pver uint32) uint32 {
	// Unfortunately the bitcoin protocol does not enforce a sane limit on the
	// length of the reason, so the max payload is the overall maximum message
	// payload.
	return MaxMessagePayload
}

// NewMsgReject returns a new bitcoin reject message that conforms to the
// Message interface. See MsgReject for details.
func NewMsgReject(command string, code RejectCode, reason string) *MsgReject {
	return &MsgReject{Cmd: command, Code: code, Reason: reason}
}

// String returns the reject message in a human readable form.
func (msg *MsgReject) String() string {
	return fmt.Sprintf("cmd %v, code %v, reason %v", msg.Cmd, msg.Code, msg.Reason)
}
