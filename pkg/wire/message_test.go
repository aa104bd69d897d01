package wire

import (
	"bytes"
	"errors"
	"io"
	"net"
	"reflect"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"

	"github.com/nb-coin/new-bitcoin/pkg/chainhash"
)

// genesisHash is the hash of the first block of the bitcoin chain, shared by
// this network.
var genesisHash, _ = chainhash.NewHashFromStr(
	"000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f",
)

func testNetAddress(a, b, c, d byte, port uint16, ts bool) NetAddress {
	na := NetAddress{
		Services: SFNodeNetwork,
		IP:       net.IPv4(a, b, c, d).To4(),
		Port:     port,
	}
	if ts {
		na.Timestamp = time.Unix(0x495fab29, 0)
	}
	return na
}

func testTx() *MsgTx {
	tx := NewMsgTx(TxVersion)
	tx.AddTxIn(NewTxIn(NewOutPoint(genesisHash, 0), []byte{0x04, 0xff, 0xff, 0x00, 0x1d}))
	tx.AddTxOut(NewTxOut(5000000000, []byte{0x76, 0xa9, 0x14, 0x88, 0xac}))
	tx.LockTime = 7
	return tx
}

func testHeader() *BlockHeader {
	return &BlockHeader{
		Version:    1,
		PrevBlock:  *genesisHash,
		MerkleRoot: *genesisHash,
		Timestamp:  time.Unix(1231006505, 0),
		Bits:       486604799,
		Nonce:      2083236893,
	}
}

// testMessages returns one populated instance of every message variant.
func testMessages(t *testing.T) []Message {
	version := &MsgVersion{
		ProtocolVersion: int32(ProtocolVersion),
		Services:        SFNodeNetwork,
		Timestamp:       time.Unix(1700000000, 0),
		AddrYou:         testNetAddress(10, 0, 0, 2, 8333, false),
		AddrMe:          testNetAddress(10, 0, 0, 1, 8333, false),
		Nonce:           0x1234567890abcdef,
		UserAgent:       "/nbc:0.0.1(newbitcoin)/",
		LastBlock:       0,
		DisableRelayTx:  true,
	}
	addr := NewMsgAddr()
	na := testNetAddress(192, 168, 0, 1, 8333, true)
	if e := addr.AddAddress(&na); e != nil {
		t.Fatal(e)
	}
	// 253 entries forces a three byte count prefix.
	inv := NewMsgInv()
	for i := 0; i < 253; i++ {
		if e := inv.AddInvVect(NewInvVect(InvTypeTx, genesisHash)); e != nil {
			t.Fatal(e)
		}
	}
	getData := NewMsgGetData()
	_ = getData.AddInvVect(NewInvVect(InvTypeBlock, genesisHash))
	notFound := NewMsgNotFound()
	_ = notFound.AddInvVect(NewInvVect(InvTypeError, genesisHash))
	getBlocks := NewMsgGetBlocks(&chainhash.Hash{})
	_ = getBlocks.AddBlockLocatorHash(genesisHash)
	getHeaders := NewMsgGetHeaders(genesisHash)
	_ = getHeaders.AddBlockLocatorHash(genesisHash)
	_ = getHeaders.AddBlockLocatorHash(&chainhash.Hash{1})
	headers := NewMsgHeaders()
	_ = headers.AddBlockHeader(testHeader())
	block := NewMsgBlock(testHeader())
	block.AddTransaction(testTx())
	// An alert whose payload needs a five byte length prefix.
	alert := NewMsgAlert(bytes.Repeat([]byte{0xaa}, 0x10000), []byte{0x30, 0x01, 0x02})
	return []Message{
		version,
		NewMsgVerAck(),
		NewMsgGetAddr(),
		addr,
		inv,
		getData,
		notFound,
		getBlocks,
		getHeaders,
		headers,
		testTx(),
		block,
		NewMsgPing(0xdeadbeef),
		NewMsgPong(0xdeadbeef),
		alert,
		NewMsgMemPool(),
		NewMsgReject(CmdTx, RejectDuplicate, "already have it"),
	}
}

// TestMessageRoundTrip encodes every message variant into a frame and decodes it
// back.
func TestMessageRoundTrip(t *testing.T) {
	pver := ProtocolVersion
	for i, msg := range testMessages(t) {
		frame, e := EncodeMessage(msg, pver, NewBitcoinNet)
		if e != nil {
			t.Errorf("#%d %s: EncodeMessage: %v", i, msg.Command(), e)
			continue
		}
		if !bytes.Equal(frame[:4], []byte{0xf9, 0x6e, 0x62, 0x63}) {
			t.Errorf("#%d: wrong magic %x", i, frame[:4])
		}
		if n, ok := PeekLength(frame); !ok || n != uint64(len(frame)) {
			t.Errorf("#%d: PeekLength got %d,%v want %d", i, n, ok, len(frame))
		}
		got, e := DecodeMessage(frame, pver, NewBitcoinNet)
		if e != nil {
			t.Errorf("#%d %s: DecodeMessage: %v", i, msg.Command(), e)
			continue
		}
		if !reflect.DeepEqual(got, msg) {
			t.Errorf("#%d %s: mismatched message\n got: %s want: %s", i, msg.Command(),
				spew.Sdump(got), spew.Sdump(msg),
			)
		}
	}
}

// TestMessageReassembly feeds several frames through a stream one byte at a
// time and cuts them apart with PeekLength.
func TestMessageReassembly(t *testing.T) {
	pver := ProtocolVersion
	msgs := []Message{NewMsgPing(1), NewMsgVerAck(), NewMsgPong(1), NewMsgGetAddr()}
	var stream []byte
	for _, msg := range msgs {
		frame, e := EncodeMessage(msg, pver, NewBitcoinNet)
		if e != nil {
			t.Fatal(e)
		}
		stream = append(stream, frame...)
	}
	var buf []byte
	var got []Message
	for _, b := range stream {
		buf = append(buf, b)
		for {
			n, ok := PeekLength(buf)
			if !ok || uint64(len(buf)) < n {
				break
			}
			msg, e := DecodeMessage(buf[:n], pver, NewBitcoinNet)
			if e != nil {
				t.Fatalf("DecodeMessage: %v", e)
			}
			got = append(got, msg)
			buf = buf[n:]
		}
	}
	if len(buf) != 0 {
		t.Errorf("%d bytes left over", len(buf))
	}
	if !reflect.DeepEqual(got, msgs) {
		t.Errorf("reassembled\n got: %s want: %s", spew.Sdump(got), spew.Sdump(msgs))
	}
}

func TestPeekLengthShort(t *testing.T) {
	frame, _ := EncodeMessage(NewMsgPing(9), ProtocolVersion, NewBitcoinNet)
	if _, ok := PeekLength(frame[:19]); ok {
		t.Errorf("PeekLength reported a length from 19 bytes")
	}
	if n, ok := PeekLength(frame[:20]); !ok || n != 32 {
		t.Errorf("PeekLength got %d,%v want 32,true", n, ok)
	}
}

// TestDecodeMessageErrors checks the classification of bad frames.
func TestDecodeMessageErrors(t *testing.T) {
	pver := ProtocolVersion
	ping, _ := EncodeMessage(NewMsgPing(0x0102030405060708), pver, NewBitcoinNet)
	flipped := append([]byte(nil), ping...)
	flipped[len(flipped)-1] ^= 0x01
	foreign, _ := EncodeMessage(&bogusMessage{}, pver, MainNet)
	unknown, _ := EncodeMessage(&bogusMessage{}, pver, NewBitcoinNet)
	longer := append(append([]byte(nil), ping...), 0x00)
	// A version payload missing its last block field.
	version := testMessages(t)[0]
	vframe, _ := EncodeMessage(version, pver, NewBitcoinNet)
	short := reframe(vframe[MessageHeaderSize:len(vframe)-5], CmdVersion)
	tests := []struct {
		name    string
		frame   []byte
		unknown bool
	}{
		{"payload byte flipped", flipped, false},
		{"foreign magic with unknown command", foreign, false},
		{"truncated header", ping[:MessageHeaderSize-1], false},
		{"truncated payload", ping[:len(ping)-1], false},
		{"declared length shorter than frame", longer, false},
		{"truncated version fields", short, false},
		{"registered magic with unknown command", unknown, true},
	}
	for _, test := range tests {
		_, e := DecodeMessage(test.frame, pver, NewBitcoinNet)
		var fe *FormatError
		var ue *UnknownCommandError
		switch {
		case test.unknown:
			if !errors.As(e, &ue) {
				t.Errorf("%s: got %v want *UnknownCommandError", test.name, e)
				continue
			}
			if ue.Command != "bogus" || !bytes.Equal(ue.Frame, test.frame) {
				t.Errorf("%s: got command %q", test.name, ue.Command)
			}
		default:
			if !errors.As(e, &fe) {
				t.Errorf("%s: got %v want *FormatError", test.name, e)
			}
		}
	}
}

// TestVersionRelayOptional decodes a version payload without the trailing relay
// flag.
func TestVersionRelayOptional(t *testing.T) {
	pver := ProtocolVersion
	msg := testMessages(t)[0].(*MsgVersion)
	frame, e := EncodeMessage(msg, pver, NewBitcoinNet)
	if e != nil {
		t.Fatal(e)
	}
	got, e := DecodeMessage(reframe(frame[MessageHeaderSize:len(frame)-1], CmdVersion), pver, NewBitcoinNet)
	if e != nil {
		t.Fatalf("DecodeMessage: %v", e)
	}
	if got.(*MsgVersion).DisableRelayTx {
		t.Errorf("absent relay flag decoded as DisableRelayTx")
	}
}

// TestTrailingPayloadIgnored checks that bytes after the last field of a
// payload do not fail the decode, also for messages whose payload is empty.
func TestTrailingPayloadIgnored(t *testing.T) {
	pver := ProtocolVersion
	tests := []struct {
		msg      Message
		trailing []byte
	}{
		{NewMsgPing(5), []byte{0xde, 0xad}},
		{NewMsgPong(7), []byte{0x01}},
		{NewMsgVerAck(), []byte{0x01}},
		{NewMsgGetAddr(), []byte{0x01}},
		{NewMsgMemPool(), []byte{0x00, 0x00, 0x00}},
	}
	for _, test := range tests {
		frame, e := EncodeMessage(test.msg, pver, NewBitcoinNet)
		if e != nil {
			t.Fatalf("%s: EncodeMessage: %v", test.msg.Command(), e)
		}
		payload := append(append([]byte(nil), frame[MessageHeaderSize:]...), test.trailing...)
		got, e := DecodeMessage(reframe(payload, test.msg.Command()), pver, NewBitcoinNet)
		if e != nil {
			t.Errorf("%s + %d trailing bytes: %v", test.msg.Command(), len(test.trailing), e)
			continue
		}
		if !reflect.DeepEqual(got, test.msg) {
			t.Errorf("%s: got %s want %s", test.msg.Command(), spew.Sdump(got), spew.Sdump(test.msg))
		}
	}
}

// TestPayloadBitFlips flips every payload byte of a version frame in turn, each
// must fail the checksum.
func TestPayloadBitFlips(t *testing.T) {
	pver := ProtocolVersion
	frame, e := EncodeMessage(testMessages(t)[0], pver, NewBitcoinNet)
	if e != nil {
		t.Fatal(e)
	}
	for i := MessageHeaderSize; i < len(frame); i++ {
		flipped := append([]byte(nil), frame...)
		flipped[i] ^= 0x01
		_, e := DecodeMessage(flipped, pver, NewBitcoinNet)
		var fe *FormatError
		if !errors.As(e, &fe) {
			t.Errorf("payload byte %d flipped: got %v want *FormatError", i-MessageHeaderSize, e)
		}
	}
}

func TestLogicalName(t *testing.T) {
	tests := map[string]string{
		CmdVerAck:  "version_ack",
		CmdAddr:    "address",
		CmdInv:     "inventory",
		CmdTx:      "transaction",
		CmdVersion: "version",
		CmdPing:    "ping",
	}
	for cmd, want := range tests {
		if got := LogicalName(cmd); got != want {
			t.Errorf("LogicalName(%q) got %q want %q", cmd, got, want)
		}
	}
}

// reframe wraps payload in a valid header for cmd on the newbitcoin network.
func reframe(payload []byte, cmd string) []byte {
	var command [CommandSize]byte
	copy(command[:], cmd)
	var checksum [4]byte
	copy(checksum[:], chainhash.DoubleHashB(payload)[:4])
	var buf bytes.Buffer
	_ = writeElements(&buf, NewBitcoinNet, command, uint32(len(payload)), checksum)
	buf.Write(payload)
	return buf.Bytes()
}

// bogusMessage is a message with a command nobody registers.
type bogusMessage struct{}

func (msg *bogusMessage) BtcDecode(r io.Reader, pver uint32) error { return nil }
func (msg *bogusMessage) BtcEncode(w io.Writer, pver uint32) error { return nil }
func (msg *bogusMessage) Command() string                          { return "bogus" }
func (msg *bogusMessage) MaxPayloadLength(pver uint32) uint32      { return 0 }
