package wire

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/nb-coin/new-bitcoin/pkg/chainhash"
)

const (
	// TxVersion is the current latest supported transaction version.
	TxVersion = 1
	// MaxPrevOutIndex is the maximum index the index field of a previous outpoint
	// can be.
	MaxPrevOutIndex uint32 = 0xffffffff
	// MaxTxInSequenceNum is the maximum sequence number the sequence field of a
	// transaction input can be.
	MaxTxInSequenceNum uint32 = 0xffffffff
	// minTxInPayload is the minimum payload size for a transaction input:
	// PreviousOutPoint.Hash + PreviousOutPoint.Index 4 bytes + varint for
	// SignatureScript length 1 byte + Sequence 4 bytes.
	minTxInPayload = 9 + chainhash.HashSize
	// maxTxInPerMessage is the maximum number of transactions inputs that a
	// transaction which fits into a message could possibly have.
	maxTxInPerMessage = (MaxMessagePayload / minTxInPayload) + 1
	// minTxOutPayload is the minimum payload size for a transaction output:
	// Value 8 bytes + varint for PkScript length 1 byte.
	minTxOutPayload = 9
	// maxTxOutPerMessage is the maximum number of transactions outputs that a
	// transaction which fits into a message could possibly have.
	maxTxOutPerMessage = (MaxMessagePayload / minTxOutPayload) + 1
	// minTxPayload is the minimum payload size for a transaction: version 4
	// bytes + varint number of inputs 1 byte + varint number of outputs 1 byte +
	// lock time 4 bytes + min input payload + min output payload.
	minTxPayload = 10
	// maxScriptSize is the largest script accepted inside a transaction.
	maxScriptSize = 10000
)

// OutPoint defines a bitcoin data type that is used to track previous
// transaction outputs.
type OutPoint struct {
	Hash  chainhash.Hash
	Index uint32
}

// NewOutPoint returns a new bitcoin transaction outpoint point with the
// provided hash and index.
func NewOutPoint(hash *chainhash.Hash, index uint32) *OutPoint {
	return &OutPoint{Hash: *hash, Index: index}
}

// String returns the OutPoint in the human-readable form "hash:index".
func (o OutPoint) String() string {
	return o.Hash.String() + ":" + strconv.FormatUint(uint64(o.Index), 10)
}

// TxIn defines a bitcoin transaction input.
type TxIn struct {
	PreviousOutPoint OutPoint
	SignatureScript  []byte
	Sequence         uint32
}

// NewTxIn returns a new bitcoin transaction input with the provided previous
// outpoint point and signature script with a default sequence of
// MaxTxInSequenceNum.
func NewTxIn(prevOut *OutPoint, signatureScript []byte) *TxIn {
	return &TxIn{
		PreviousOutPoint: *prevOut,
		SignatureScript:  signatureScript,
		Sequence:         MaxTxInSequenceNum,
	}
}

// TxOut defines a bitcoin transaction output.
type TxOut struct {
	Value    int64
	PkScript []byte
}

// NewTxOut returns a new bitcoin transaction output with the provided
// transaction value and public key script.
func NewTxOut(value int64, pkScript []byte) *TxOut {
	return &TxOut{Value: value, PkScript: pkScript}
}

// MsgTx implements the Message interface and represents a bitcoin tx message.
// It is used to deliver transaction information in response to a getdata
// message (MsgGetData) for a given transaction. A transaction carries at least
// one input and one output.
type MsgTx struct {
	Version  uint32
	TxIn     []*TxIn
	TxOut    []*TxOut
	LockTime uint32
}

// AddTxIn adds a transaction input to the message.
func (msg *MsgTx) AddTxIn(ti *TxIn) {
	msg.TxIn = append(msg.TxIn, ti)
}

// AddTxOut adds a transaction output to the message.
func (msg *MsgTx) AddTxOut(to *TxOut) {
	msg.TxOut = append(msg.TxOut, to)
}

// TxHash generates the Hash for the transaction.
func (msg *MsgTx) TxHash() chainhash.Hash {
	buf := bytes.NewBuffer(make([]byte, 0, msg.SerializeSize()))
	_ = msg.BtcEncode(buf, 0)
	return chainhash.DoubleHashH(buf.Bytes())
}

// BtcDecode decodes r using the bitcoin protocol encoding into the receiver.
// This is part of the Message interface implementation.
func (msg *MsgTx) BtcDecode(r io.Reader, pver uint32) (e error) {
	if e = readElement(r, &msg.Version); e != nil {
		return
	}
	var count uint64
	if count, e = readCount(r, pver, 1, maxTxInPerMessage, "MsgTx.BtcDecode", "input transactions"); e != nil {
		return
	}
	// Deserialize the inputs into one contiguous slice.
	txIns := make([]TxIn, count)
	msg.TxIn = make([]*TxIn, count)
	for i := range txIns {
		ti := &txIns[i]
		msg.TxIn[i] = ti
		if e = readTxIn(r, pver, ti); e != nil {
			return
		}
	}
	if count, e = readCount(r, pver, 1, maxTxOutPerMessage, "MsgTx.BtcDecode", "output transactions"); e != nil {
		return
	}
	txOuts := make([]TxOut, count)
	msg.TxOut = make([]*TxOut, count)
	for i := range txOuts {
		to := &txOuts[i]
		msg.TxOut[i] = to
		if e = readTxOut(r, pver, to); e != nil {
			return
		}
	}
	return readElement(r, &msg.LockTime)
}

// BtcEncode encodes the receiver to w using the bitcoin protocol encoding. This
// is part of the Message interface implementation.
func (msg *MsgTx) BtcEncode(w io.Writer, pver uint32) (e error) {
	if len(msg.TxIn) == 0 || len(msg.TxOut) == 0 {
		str := fmt.Sprintf(
			"transaction needs inputs and outputs [in %d, out %d]", len(msg.TxIn), len(msg.TxOut),
		)
		return messageError("MsgTx.BtcEncode", str)
	}
	if e = writeElement(w, msg.Version); E.Chk(e) {
		return
	}
	if e = WriteVarInt(w, pver, uint64(len(msg.TxIn))); E.Chk(e) {
		return
	}
	for _, ti := range msg.TxIn {
		if e = writeTxIn(w, pver, ti); E.Chk(e) {
			return
		}
	}
	if e = WriteVarInt(w, pver, uint64(len(msg.TxOut))); E.Chk(e) {
		return
	}
	for _, to := range msg.TxOut {
		if e = writeTxOut(w, pver, to); E.Chk(e) {
			return
		}
	}
	return writeElement(w, msg.LockTime)
}

// SerializeSize returns the number of bytes it would take to serialize the
// transaction.
func (msg *MsgTx) SerializeSize() int {
	// Version 4 bytes + LockTime 4 bytes + Serialized varint size for the number
	// of transaction inputs and outputs.
	n := 8 + VarIntSerializeSize(uint64(len(msg.TxIn))) +
		VarIntSerializeSize(uint64(len(msg.TxOut)))
	for _, txIn := range msg.TxIn {
		// Outpoint Hash 32 bytes + Outpoint Index 4 bytes + Sequence 4 bytes +
		// serialized varint size for the length of SignatureScript + SignatureScript
		// bytes.
		n += 40 + VarIntSerializeSize(uint64(len(txIn.SignatureScript))) + len(txIn.SignatureScript)
	}
	for _, txOut := range msg.TxOut {
		// Value 8 bytes + serialized varint size for the length of PkScript +
		// PkScript bytes.
		n += 8 + VarIntSerializeSize(uint64(len(txOut.PkScript))) + len(txOut.PkScript)
	}
	return n
}

// Command returns the protocol command string for the message. This is part of
// the Message interface implementation.
func (msg *MsgTx) Command() string {
	return CmdTx
}

// MaxPayloadLength returns the maximum length the payload can be for the
// receiver. This is part of the Message interface implementation.
func (msg *MsgTx) MaxPayloadLength(pver uint32) uint32 {
	return MaxBlockPayload
}

// NewMsgTx returns a new bitcoin tx message that conforms to the Message
// interface. The return instance has a default version of TxVersion and there
// are no transaction inputs or outputs. Also, the lock time is set to zero to
// indicate the transaction is valid immediately as opposed to some time in
// future.
func NewMsgTx(version uint32) *MsgTx {
	return &MsgTx{
		Version: version,
		TxIn:    make([]*TxIn, 0, 1),
		TxOut:   make([]*TxOut, 0, 1),
	}
}

// readOutPoint reads the next sequence of bytes from r as an OutPoint.
func readOutPoint(r io.Reader, pver uint32, op *OutPoint) (e error) {
	if _, e = io.ReadFull(r, op.Hash[:]); e != nil {
		return
	}
	op.Index, e = binarySerializer.Uint32(r, littleEndian)
	return
}

// writeOutPoint encodes op to the bitcoin protocol encoding for an OutPoint to
// w.
func writeOutPoint(w io.Writer, pver uint32, op *OutPoint) (e error) {
	if _, e = w.Write(op.Hash[:]); e != nil {
		return
	}
	return binarySerializer.PutUint32(w, littleEndian, op.Index)
}

// readTxIn reads the next sequence of bytes from r as a transaction input
// (TxIn).
func readTxIn(r io.Reader, pver uint32, ti *TxIn) (e error) {
	if e = readOutPoint(r, pver, &ti.PreviousOutPoint); e != nil {
		return
	}
	if ti.SignatureScript, e = ReadVarBytes(r, pver, maxScriptSize, "transaction input signature script"); e != nil {
		return
	}
	return readElement(r, &ti.Sequence)
}

// writeTxIn encodes ti to the bitcoin protocol encoding for a transaction input
// (TxIn) to w.
func writeTxIn(w io.Writer, pver uint32, ti *TxIn) (e error) {
	if e = writeOutPoint(w, pver, &ti.PreviousOutPoint); e != nil {
		return
	}
	if e = WriteVarBytes(w, pver, ti.SignatureScript); e != nil {
		return
	}
	return binarySerializer.PutUint32(w, littleEndian, ti.Sequence)
}

// readTxOut reads the next sequence of bytes from r as a transaction output
// (TxOut).
func readTxOut(r io.Reader, pver uint32, to *TxOut) (e error) {
	if e = readElement(r, &to.Value); e != nil {
		return
	}
	to.PkScript, e = ReadVarBytes(r, pver, maxScriptSize, "transaction output public key script")
	return
}

// writeTxOut encodes to into the bitcoin protocol encoding for a transaction
// output (TxOut) to w.
func writeTxOut(w io.Writer, pver uint32, to *TxOut) (e error) {
	if e = binarySerializer.PutUint64(w, littleEndian, uint64(to.Value)); e != nil {
		return
	}
	return WriteVarBytes(w, pver, to.PkScript)
}
