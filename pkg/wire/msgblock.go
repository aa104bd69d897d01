package wire

import (
	"fmt"
	"io"

	"github.com/nb-coin/new-bitcoin/pkg/chainhash"
)

// defaultTransactionAlloc is the default size used for the backing array for
// transactions.
const defaultTransactionAlloc = 2048

// MaxBlockPayload is the maximum bytes a block message can be in bytes.
const MaxBlockPayload = 4000000

// maxTxPerBlock is the maximum number of transactions that could possibly fit
// into a block.
const maxTxPerBlock = (MaxBlockPayload / minTxPayload) + 1

// MsgBlock implements the Message interface and represents a bitcoin block
// message. It is used to deliver block and transaction information in response
// to a getdata message (MsgGetData) for a given block hash.
type MsgBlock struct {
	Header       BlockHeader
	Transactions []*MsgTx
}

// AddTransaction adds a transaction to the message.
func (msg *MsgBlock) AddTransaction(tx *MsgTx) {
	msg.Transactions = append(msg.Transactions, tx)
}

// ClearTransactions removes all transactions from the message.
func (msg *MsgBlock) ClearTransactions() {
	msg.Transactions = make([]*MsgTx, 0, defaultTransactionAlloc)
}

// BlockHash computes the block identifier hash for this block.
func (msg *MsgBlock) BlockHash() chainhash.Hash {
	return msg.Header.BlockHash()
}

// BtcDecode decodes r using the bitcoin protocol encoding into the receiver.
// This is part of the Message interface implementation.
func (msg *MsgBlock) BtcDecode(r io.Reader, pver uint32) (e error) {
	if e = readBlockHeader(r, pver, &msg.Header); e != nil {
		return
	}
	var txCount uint64
	// Prevent more transactions than could possibly fit into a block. It would be
	// possible to cause memory exhaustion and panics without a sane upper bound on
	// this count.
	if txCount, e = readCount(r, pver, 0, maxTxPerBlock, "MsgBlock.BtcDecode", "transactions"); e != nil {
		return
	}
	msg.Transactions = make([]*MsgTx, 0, txCount)
	for i := uint64(0); i < txCount; i++ {
		tx := MsgTx{}
		if e = tx.BtcDecode(r, pver); e != nil {
			return
		}
		msg.Transactions = append(msg.Transactions, &tx)
	}
	return
}

// BtcEncode encodes the receiver to w using the bitcoin protocol encoding. This
// is part of the Message interface implementation.
func (msg *MsgBlock) BtcEncode(w io.Writer, pver uint32) (e error) {
	if e = writeBlockHeader(w, pver, &msg.Header); E.Chk(e) {
		return
	}
	if len(msg.Transactions) > maxTxPerBlock {
		str := fmt.Sprintf("too many transactions in block [%d]", len(msg.Transactions))
		return messageError("MsgBlock.BtcEncode", str)
	}
	if e = WriteVarInt(w, pver, uint64(len(msg.Transactions))); E.Chk(e) {
		return
	}
	for _, tx := range msg.Transactions {
		if e = tx.BtcEncode(w, pver); E.Chk(e) {
			return
		}
	}
	return
}

// Command returns the protocol command string for the message. This is part of
// the Message interface implementation.
func (msg *MsgBlock) Command() string {
	return CmdBlock
}

// MaxPayloadLength returns the maximum length the payload can be for the
// receiver. This is part of the Message interface implementation.
func (msg *MsgBlock) MaxPayloadLength(pver uint32) uint32 {
	return MaxBlockPayload
}

// NewMsgBlock returns a new bitcoin block message that conforms to the Message
// interface. See MsgBlock for details.
func NewMsgBlock(blockHeader *BlockHeader) *MsgBlock {
	return &MsgBlock{
		Header:       *blockHeader,
		Transactions: make([]*MsgTx, 0, defaultTransactionAlloc),
	}
}
