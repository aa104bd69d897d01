package wire

import (
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/nb-coin/new-bitcoin/pkg/chainhash"
)

// MessageHeaderSize is the number of bytes in a bitcoin message header: network
// (magic) 4 bytes + command 12 bytes + payload length 4 bytes + checksum 4
// bytes.
const MessageHeaderSize = 24

// lengthFieldEnd is how many header bytes must be buffered before the payload
// length can be read.
const lengthFieldEnd = 20

// CommandSize is the fixed size of all commands in the common bitcoin message
// header. Shorter commands must be zero padded.
const CommandSize = 12

// MaxMessagePayload is the maximum bytes a message can be regardless of other
// individual limits imposed by messages themselves.
const MaxMessagePayload = 1024 * 1024 * 32 // 32MB

// Commands used in bitcoin message headers which describe the type of message.
const (
	CmdVersion    = "version"
	CmdVerAck     = "verack"
	CmdGetAddr    = "getaddr"
	CmdAddr       = "addr"
	CmdGetBlocks  = "getblocks"
	CmdInv        = "inv"
	CmdGetData    = "getdata"
	CmdNotFound   = "notfound"
	CmdBlock      = "block"
	CmdTx         = "tx"
	CmdGetHeaders = "getheaders"
	CmdHeaders    = "headers"
	CmdPing       = "ping"
	CmdPong       = "pong"
	CmdAlert      = "alert"
	CmdMemPool    = "mempool"
	CmdReject     = "reject"
)

// logicalNames maps the commands whose descriptive name differs from the wire
// command.
var logicalNames = map[string]string{
	CmdVerAck:     "version_ack",
	CmdAddr:       "address",
	CmdInv:        "inventory",
	CmdGetData:    "get_data",
	CmdNotFound:   "not_found",
	CmdGetBlocks:  "get_blocks",
	CmdGetHeaders: "get_headers",
	CmdTx:         "transaction",
	CmdGetAddr:    "get_address",
	CmdMemPool:    "memory_pool",
}

// LogicalName returns the descriptive name of a command, such as version_ack
// for verack.
func LogicalName(command string) string {
	if n, ok := logicalNames[command]; ok {
		return n
	}
	return command
}

// Message is an interface that describes a bitcoin message. A type that
// implements Message has complete control over the representation of its data
// and may therefore contain additional or fewer fields than those which are
// used directly in the protocol encoded message.
type Message interface {
	BtcDecode(io.Reader, uint32) error
	BtcEncode(io.Writer, uint32) error
	Command() string
	MaxPayloadLength(uint32) uint32
}

// makeEmptyMessage creates a message of the appropriate concrete type based on
// the command.
func makeEmptyMessage(command string) (Message, bool) {
	var msg Message
	switch command {
	case CmdVersion:
		msg = &MsgVersion{}
	case CmdVerAck:
		msg = &MsgVerAck{}
	case CmdGetAddr:
		msg = &MsgGetAddr{}
	case CmdAddr:
		msg = &MsgAddr{}
	case CmdGetBlocks:
		msg = &MsgGetBlocks{}
	case CmdBlock:
		msg = &MsgBlock{}
	case CmdInv:
		msg = &MsgInv{}
	case CmdGetData:
		msg = &MsgGetData{}
	case CmdNotFound:
		msg = &MsgNotFound{}
	case CmdTx:
		msg = &MsgTx{}
	case CmdPing:
		msg = &MsgPing{}
	case CmdPong:
		msg = &MsgPong{}
	case CmdGetHeaders:
		msg = &MsgGetHeaders{}
	case CmdHeaders:
		msg = &MsgHeaders{}
	case CmdAlert:
		msg = &MsgAlert{}
	case CmdMemPool:
		msg = &MsgMemPool{}
	case CmdReject:
		msg = &MsgReject{}
	default:
		return nil, false
	}
	return msg, true
}

// messageHeader defines the header structure for all bitcoin protocol messages.
type messageHeader struct {
	magic    BitcoinNet // 4 bytes
	command  string     // 12 bytes
	length   uint32     // 4 bytes
	checksum [4]byte    // 4 bytes
}

// readMessageHeader reads a bitcoin message header from r.
func readMessageHeader(r io.Reader) (hdr *messageHeader, e error) {
	var command [CommandSize]byte
	hdr = &messageHeader{}
	if e = readElements(r, &hdr.magic, &command, &hdr.length, &hdr.checksum); e != nil {
		return nil, e
	}
	// Strip trailing zeros from command string.
	hdr.command = string(bytes.TrimRight(command[:], "\x00"))
	return
}

// EncodeMessage serializes msg into a complete frame for the network net:
// magic, NUL padded command, payload length, checksum and payload.
func EncodeMessage(msg Message, pver uint32, net BitcoinNet) (frame []byte, e error) {
	cmd := msg.Command()
	if len(cmd) > CommandSize {
		str := fmt.Sprintf("command [%s] is too long [max %v]", cmd, CommandSize)
		return nil, messageError("EncodeMessage", str)
	}
	var command [CommandSize]byte
	copy(command[:], cmd)
	var bw bytes.Buffer
	if e = msg.BtcEncode(&bw, pver); e != nil {
		return
	}
	payload := bw.Bytes()
	lenp := len(payload)
	if lenp > MaxMessagePayload {
		str := fmt.Sprintf(
			"message payload is too large - encoded %d bytes, but maximum message payload is %d bytes",
			lenp, MaxMessagePayload,
		)
		return nil, messageError("EncodeMessage", str)
	}
	if mpl := msg.MaxPayloadLength(pver); uint32(lenp) > mpl {
		str := fmt.Sprintf(
			"message payload is too large - encoded %d bytes, but maximum message payload size for messages of type [%s] is %d.",
			lenp, cmd, mpl,
		)
		return nil, messageError("EncodeMessage", str)
	}
	var checksum [4]byte
	copy(checksum[:], chainhash.DoubleHashB(payload)[0:4])
	out := bytes.NewBuffer(make([]byte, 0, MessageHeaderSize+lenp))
	if e = writeElements(out, net, command, uint32(lenp), checksum); e != nil {
		return
	}
	out.Write(payload)
	return out.Bytes(), nil
}

// PeekLength returns the total length of the frame at the start of buf, header
// included, once enough of the header has arrived to read the payload length.
// The second return is false while fewer than 20 bytes are buffered.
func PeekLength(buf []byte) (uint64, bool) {
	if len(buf) < lengthFieldEnd {
		return 0, false
	}
	return MessageHeaderSize + uint64(littleEndian.Uint32(buf[16:lengthFieldEnd])), true
}

// DecodeMessage parses one complete frame. Magic and checksum are validated
// before the command is looked up, so a foreign or corrupted frame is always a
// *FormatError. A valid frame with an unregistered command is an
// *UnknownCommandError.
func DecodeMessage(frame []byte, pver uint32, net BitcoinNet) (msg Message, e error) {
	if len(frame) < MessageHeaderSize {
		return nil, &FormatError{
			Description: fmt.Sprintf("frame of %d bytes is shorter than the header", len(frame)),
		}
	}
	var hdr *messageHeader
	if hdr, e = readMessageHeader(bytes.NewReader(frame[:MessageHeaderSize])); e != nil {
		return nil, &FormatError{Description: "unreadable header", Err: e}
	}
	if hdr.magic != net {
		return nil, &FormatError{
			Description: fmt.Sprintf("message from other network [%v]", hdr.magic),
		}
	}
	payload := frame[MessageHeaderSize:]
	if uint64(hdr.length) != uint64(len(payload)) {
		return nil, &FormatError{
			Description: fmt.Sprintf(
				"payload length %d does not match header length %d", len(payload), hdr.length,
			),
		}
	}
	checksum := chainhash.DoubleHashB(payload)[0:4]
	if !bytes.Equal(checksum, hdr.checksum[:]) {
		return nil, &FormatError{
			Description: fmt.Sprintf(
				"payload checksum failed - header indicates %x, but actual checksum is %x.",
				hdr.checksum, checksum,
			),
		}
	}
	if !utf8.ValidString(hdr.command) {
		return nil, &FormatError{Description: fmt.Sprintf("invalid command %v", []byte(hdr.command))}
	}
	var ok bool
	if msg, ok = makeEmptyMessage(hdr.command); !ok {
		return nil, &UnknownCommandError{Command: hdr.command, Frame: frame}
	}
	// Only the global bound applies. Bytes after the last field are ignored,
	// the field readers cap their own allocations.
	if hdr.length > MaxMessagePayload {
		return nil, &FormatError{
			Description: fmt.Sprintf(
				"message payload is too large - header indicates %d bytes, but max message payload is %d bytes.",
				hdr.length, MaxMessagePayload,
			),
		}
	}
	// The buffer is a *bytes.Buffer so the version message can see how many
	// bytes remain for its optional trailing fields.
	if e = msg.BtcDecode(bytes.NewBuffer(payload), pver); e != nil {
		return nil, &FormatError{Description: "malformed " + hdr.command + " payload", Err: e}
	}
	return msg, nil
}
