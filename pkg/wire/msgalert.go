package wire

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"

	"github.com/nb-coin/new-bitcoin/pkg/chainhash"
)

const (
	// maxAlertPayload bounds the signed payload and the signature fields.
	maxAlertPayload = MaxMessagePayload
	// maxCountSetCancel is the maximum number of cancel IDs that could possibly
	// fit into a maximum size alert.
	maxCountSetCancel = (maxAlertPayload - alertFixedLen - MaxVarIntPayload - 8 - 4) / 4
	// maxCountSetSubVer is the maximum number of subversions that could possibly
	// fit into a maximum size alert.
	maxCountSetSubVer = (maxAlertPayload - alertFixedLen - MaxVarIntPayload - 8 - 4) / 1
	// alertFixedLen is the fixed block at the head of the payload: version,
	// relay until, expiration, id and cancel.
	alertFixedLen = 4 + 8 + 8 + 4 + 4
)

// ErrAlertSignature is returned by MsgAlert.Verify when the signature does not
// match the payload and key.
var ErrAlertSignature = errors.New("alert signature verification failed")

// AlertPayload is the signed content of an alert message.
type AlertPayload struct {
	// Alert format version
	Version int32
	// The timestamp beyond which nodes should stop relaying this alert
	RelayUntil int64
	// The timestamp beyond which this alert is no longer in effect and should be
	// ignored
	Expiration int64
	// A unique ID number for this alert
	ID int32
	// All alerts with an ID less than or equal to this number should cancelled,
	// deleted and not accepted in the future
	Cancel int32
	// All alert IDs contained in this set should be cancelled as above
	SetCancel []int32
	// This alert only applies to versions greater than or equal to this version.
	// Other versions should still relay it.
	MinVer int32
	// This alert only applies to versions less than or equal to this version.
	// Other versions should still relay it.
	MaxVer int32
	// If this set contains any elements, then only nodes that have their subVer
	// contained in this set are affected by the alert. Other versions should still
	// relay it.
	SetSubVer []string
	// Relative priority compared to other alerts
	Priority int32
	// A comment on the alert that is not displayed
	Comment string
	// The alert message that is displayed to the user
	StatusBar string
	// Reserved
	Reserved string
}

// Deserialize decodes the payload layout into the receiver.
func (alert *AlertPayload) Deserialize(r io.Reader, pver uint32) (e error) {
	if e = readElements(
		r, &alert.Version, &alert.RelayUntil, &alert.Expiration, &alert.ID, &alert.Cancel,
	); e != nil {
		return
	}
	var count uint64
	if count, e = readCount(r, pver, 0, maxCountSetCancel, "AlertPayload.Deserialize", "cancel ids"); e != nil {
		return
	}
	alert.SetCancel = make([]int32, count)
	for i := range alert.SetCancel {
		if e = readElement(r, &alert.SetCancel[i]); e != nil {
			return
		}
	}
	if e = readElements(r, &alert.MinVer, &alert.MaxVer); e != nil {
		return
	}
	if count, e = readCount(r, pver, 0, maxCountSetSubVer, "AlertPayload.Deserialize", "sub versions"); e != nil {
		return
	}
	alert.SetSubVer = make([]string, count)
	for i := range alert.SetSubVer {
		if alert.SetSubVer[i], e = ReadVarString(r, pver); e != nil {
			return
		}
	}
	if e = readElement(r, &alert.Priority); e != nil {
		return
	}
	if alert.Comment, e = ReadVarString(r, pver); e != nil {
		return
	}
	if alert.StatusBar, e = ReadVarString(r, pver); e != nil {
		return
	}
	alert.Reserved, e = ReadVarString(r, pver)
	return
}

// Serialize encodes the alert to w using the alert protocol encoding.
func (alert *AlertPayload) Serialize(w io.Writer, pver uint32) (e error) {
	if e = writeElements(
		w, alert.Version, alert.RelayUntil, alert.Expiration, alert.ID, alert.Cancel,
	); E.Chk(e) {
		return
	}
	if e = WriteVarInt(w, pver, uint64(len(alert.SetCancel))); E.Chk(e) {
		return
	}
	for _, c := range alert.SetCancel {
		if e = writeElement(w, c); E.Chk(e) {
			return
		}
	}
	if e = writeElements(w, alert.MinVer, alert.MaxVer); E.Chk(e) {
		return
	}
	if e = WriteVarInt(w, pver, uint64(len(alert.SetSubVer))); E.Chk(e) {
		return
	}
	for _, s := range alert.SetSubVer {
		if e = WriteVarString(w, pver, s); E.Chk(e) {
			return
		}
	}
	if e = writeElement(w, alert.Priority); E.Chk(e) {
		return
	}
	if e = WriteVarString(w, pver, alert.Comment); E.Chk(e) {
		return
	}
	if e = WriteVarString(w, pver, alert.StatusBar); E.Chk(e) {
		return
	}
	return WriteVarString(w, pver, alert.Reserved)
}

// Bytes returns the serialized payload, ready to be signed.
func (alert *AlertPayload) Bytes() (b []byte, e error) {
	var buf bytes.Buffer
	if e = alert.Serialize(&buf, ProtocolVersion); e != nil {
		return
	}
	return buf.Bytes(), nil
}

func (alert *AlertPayload) String() string {
	return fmt.Sprintf(
		"version=%d relay_until=%d expiration=%d id=%d cancel=%d set_cancel=%v min_ver=%d max_ver=%d set_sub_ver=%v priority=%d comment=%q status_bar=%q reserved=%q",
		alert.Version, alert.RelayUntil, alert.Expiration, alert.ID, alert.Cancel,
		alert.SetCancel, alert.MinVer, alert.MaxVer, alert.SetSubVer, alert.Priority,
		alert.Comment, alert.StatusBar, alert.Reserved,
	)
}

// MsgAlert implements the Message interface and represents a bitcoin alert
// message. The signed payload is carried verbatim, its fields are parsed on the
// first call to Payload and the result is kept.
type MsgAlert struct {
	// SerializedPayload is the alert payload serialized as a string so that the
	// version can change but the Alert can still be passed on by older clients.
	SerializedPayload []byte
	// Signature is the ECDSA signature of the message.
	Signature []byte

	parseOnce sync.Once
	payload   *AlertPayload
	parseErr  error
}

// Payload returns the parsed alert payload. The first call parses it, later
// calls return the same result.
func (msg *MsgAlert) Payload() (*AlertPayload, error) {
	msg.parseOnce.Do(func() {
		p := &AlertPayload{}
		if e := p.Deserialize(bytes.NewReader(msg.SerializedPayload), ProtocolVersion); e != nil {
			msg.parseErr = e
			return
		}
		msg.payload = p
	})
	return msg.payload, msg.parseErr
}

// Verify checks the signature against the double sha256 of the serialized
// payload with the given serialized secp256k1 public key.
func (msg *MsgAlert) Verify(pubKey []byte) (e error) {
	var key *btcec.PublicKey
	if key, e = btcec.ParsePubKey(pubKey); e != nil {
		return
	}
	var sig *ecdsa.Signature
	if sig, e = ecdsa.ParseDERSignature(msg.Signature); e != nil {
		return
	}
	if !sig.Verify(chainhash.DoubleHashB(msg.SerializedPayload), key) {
		return ErrAlertSignature
	}
	return
}

// BtcDecode decodes r using the bitcoin protocol encoding into the receiver.
// This is part of the Message interface implementation.
func (msg *MsgAlert) BtcDecode(r io.Reader, pver uint32) (e error) {
	if msg.SerializedPayload, e = ReadVarBytes(r, pver, maxAlertPayload, "alert serialized payload"); e != nil {
		return
	}
	msg.Signature, e = ReadVarBytes(r, pver, maxAlertPayload, "alert signature")
	return
}

// BtcEncode encodes the receiver to w using the bitcoin protocol encoding. This
// is part of the Message interface implementation.
func (msg *MsgAlert) BtcEncode(w io.Writer, pver uint32) (e error) {
	if e = WriteVarBytes(w, pver, msg.SerializedPayload); E.Chk(e) {
		return
	}
	return WriteVarBytes(w, pver, msg.Signature)
}

// Command returns the protocol command string for the message. This is part of
// the Message interface implementation.
func (msg *MsgAlert) Command() string {
	return CmdAlert
}

// MaxPayloadLength returns the maximum length the payload can be for the
// receiver. This is part of the Message interface implementation.
func (msg *MsgAlert) MaxPayloadLength(pver uint32) uint32 {
	return MaxMessagePayload
}

// NewMsgAlert returns a new bitcoin alert message that conforms to the Message
// interface. See MsgAlert for details.
func NewMsgAlert(serializedPayload []byte, signature []byte) *MsgAlert {
	return &MsgAlert{
		SerializedPayload: serializedPayload,
		Signature:         signature,
	}
}
