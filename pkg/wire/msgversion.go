package wire

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"
)

// MaxUserAgentLen is the maximum allowed length for the user agent field in a
// version message (MsgVersion).
const MaxUserAgentLen = 256

// DefaultUserAgent for wire in the stack
const DefaultUserAgent = "/nbcwire:0.0.1/"

// MsgVersion implements the Message interface and represents a bitcoin version
// message. Both sides send it as soon as a connection is made, the remote peer
// then answers with a verack message (MsgVerAck). This exchange must take place
// before any further communication is allowed to proceed.
type MsgVersion struct {
	// Version of the protocol the node is using.
	ProtocolVersion int32
	// Bitfield which identifies the enabled services.
	Services ServiceFlag
	// Time the message was generated. This is encoded as an int64 on the wire.
	Timestamp time.Time
	// Address of the remote peer, as the sender sees it.
	AddrYou NetAddress
	// Address of the local peer.
	AddrMe NetAddress
	// Unique value associated with message that is used to detect self
	// connections.
	Nonce uint64
	// The user agent that generated message. This is a encoded as a varString on
	// the wire. This has a max length of MaxUserAgentLen.
	UserAgent string
	// Last block seen by the generator of the version message.
	LastBlock int32
	// Don't announce transactions to peer. The wire field is the inverse, a relay
	// flag that is optional and defaults to relaying when it is absent.
	DisableRelayTx bool
}

// HasService returns whether the specified service is supported by the peer
// that generated the message.
func (msg *MsgVersion) HasService(service ServiceFlag) bool {
	return msg.Services&service == service
}

// AddService adds service as a supported service by the peer generating the
// message.
func (msg *MsgVersion) AddService(service ServiceFlag) {
	msg.Services |= service
}

// BtcDecode decodes r using the bitcoin protocol encoding into the receiver.
// The trailing relay flag is only present if bytes remain, which means r must
// be a *bytes.Buffer so the number of remaining bytes can be ascertained. This
// is part of the Message interface implementation.
func (msg *MsgVersion) BtcDecode(r io.Reader, pver uint32) (e error) {
	buf, ok := r.(*bytes.Buffer)
	if !ok {
		return fmt.Errorf("MsgVersion.BtcDecode reader is not a *bytes.Buffer")
	}
	if e = readElements(
		buf, &msg.ProtocolVersion, &msg.Services, (*int64Time)(&msg.Timestamp),
	); e != nil {
		return
	}
	if e = readNetAddress(buf, pver, &msg.AddrYou, false); e != nil {
		return
	}
	if e = readNetAddress(buf, pver, &msg.AddrMe, false); e != nil {
		return
	}
	if e = readElement(buf, &msg.Nonce); e != nil {
		return
	}
	var userAgent string
	if userAgent, e = ReadVarString(buf, pver); e != nil {
		return
	}
	if e = validateUserAgent(userAgent); e != nil {
		return
	}
	msg.UserAgent = userAgent
	if e = readElement(buf, &msg.LastBlock); e != nil {
		return
	}
	msg.DisableRelayTx = false
	if buf.Len() > 0 {
		// The buffer has at least one byte so this cannot fail.
		var relayTx bool
		_ = readElement(buf, &relayTx)
		msg.DisableRelayTx = !relayTx
	}
	return
}

// BtcEncode encodes the receiver to w using the bitcoin protocol encoding. The
// relay flag is always written. This is part of the Message interface
// implementation.
func (msg *MsgVersion) BtcEncode(w io.Writer, pver uint32) (e error) {
	if e = validateUserAgent(msg.UserAgent); E.Chk(e) {
		return
	}
	if e = writeElements(
		w, msg.ProtocolVersion, msg.Services, msg.Timestamp.Unix(),
	); E.Chk(e) {
		return
	}
	if e = writeNetAddress(w, pver, &msg.AddrYou, false); E.Chk(e) {
		return
	}
	if e = writeNetAddress(w, pver, &msg.AddrMe, false); E.Chk(e) {
		return
	}
	if e = writeElement(w, msg.Nonce); E.Chk(e) {
		return
	}
	if e = WriteVarString(w, pver, msg.UserAgent); E.Chk(e) {
		return
	}
	if e = writeElement(w, msg.LastBlock); E.Chk(e) {
		return
	}
	return writeElement(w, !msg.DisableRelayTx)
}

// Command returns the protocol command string for the message. This is part of
// the Message interface implementation.
func (msg *MsgVersion) Command() string {
	return CmdVersion
}

// MaxPayloadLength returns the maximum length the payload can be for the
// receiver. This is part of the Message interface implementation.
func (msg *MsgVersion) MaxPayloadLength(pver uint32) uint32 {
	// Protocol version 4 bytes + services 8 bytes + timestamp 8 bytes + remote
	// and local net addresses + nonce 8 bytes + length of user agent (varInt) +
	// max allowed useragent length + last block 4 bytes + relay transactions
	// flag 1 byte.
	return 33 + (maxNetAddressPayload(pver) * 2) + MaxVarIntPayload +
		MaxUserAgentLen
}

// NewMsgVersion returns a new bitcoin version message that conforms to the
// Message interface using the passed parameters and defaults for the remaining
// fields.
func NewMsgVersion(
	me *NetAddress, you *NetAddress, nonce uint64, lastBlock int32,
) *MsgVersion {
	// Limit the timestamp to one second precision since the protocol doesn't
	// support better.
	return &MsgVersion{
		ProtocolVersion: int32(ProtocolVersion),
		Services:        0,
		Timestamp:       time.Unix(time.Now().Unix(), 0),
		AddrYou:         *you,
		AddrMe:          *me,
		Nonce:           nonce,
		UserAgent:       DefaultUserAgent,
		LastBlock:       lastBlock,
		DisableRelayTx:  false,
	}
}

// validateUserAgent checks userAgent length against MaxUserAgentLen
func validateUserAgent(userAgent string) (e error) {
	if len(userAgent) > MaxUserAgentLen {
		str := fmt.Sprintf(
			"user agent too long [len %v, max %v]", len(userAgent), MaxUserAgentLen,
		)
		return messageError("MsgVersion", str)
	}
	return nil
}

// AddUserAgent adds a user agent to the user agent string for the version
// message.
func (msg *MsgVersion) AddUserAgent(name string, version string, comments ...string) (e error) {
	newUserAgent := fmt.Sprintf("%s:%s", name, version)
	if len(comments) != 0 {
		newUserAgent = fmt.Sprintf("%s(%s)", newUserAgent, strings.Join(comments, "; "))
	}
	newUserAgent = fmt.Sprintf("%s%s/", msg.UserAgent, newUserAgent)
	if e = validateUserAgent(newUserAgent); E.Chk(e) {
		return
	}
	msg.UserAgent = newUserAgent
	return
}
