package wire

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// ProtocolVersion is the latest protocol version this package supports.
	ProtocolVersion uint32 = 70002
	// NodeNetworkServices is the service set this node advertises.
	NodeNetworkServices = SFNodeNetwork
)

// ServiceFlag identifies services supported by a peer.
type ServiceFlag uint64

const (
	// SFNodeNetwork is a flag used to indicate a peer is a full node.
	SFNodeNetwork ServiceFlag = 1 << iota
	// SFNodeGetUTXO is a flag used to indicate a peer supports the getutxos and
	// utxos commands (BIP0064).
	SFNodeGetUTXO
	// SFNodeBloom is a flag used to indicate a peer supports bloom filtering.
	SFNodeBloom
)

// Map of service flags back to their constant names for pretty printing.
var sfStrings = map[ServiceFlag]string{
	SFNodeNetwork: "SFNodeNetwork",
	SFNodeGetUTXO: "SFNodeGetUTXO",
	SFNodeBloom:   "SFNodeBloom",
}

// orderedSFStrings is an ordered list of service flags from highest to lowest.
var orderedSFStrings = []ServiceFlag{
	SFNodeNetwork,
	SFNodeGetUTXO,
	SFNodeBloom,
}

// String returns the ServiceFlag in human-readable form.
func (f ServiceFlag) String() string {
	if f == 0 {
		return "0x0"
	}
	s := ""
	for _, flag := range orderedSFStrings {
		if f&flag == flag {
			s += sfStrings[flag] + "|"
			f -= flag
		}
	}
	s = strings.TrimRight(s, "|")
	if f != 0 {
		s += "|0x" + strconv.FormatUint(uint64(f), 16)
	}
	s = strings.TrimLeft(s, "|")
	return s
}

// BitcoinNet represents which network a message belongs to. It is the four
// magic bytes at the start of every frame read as a little endian uint32.
type BitcoinNet uint32

const (
	// NewBitcoinNet is the magic of the newbitcoin network, bytes f9 6e 62 63.
	NewBitcoinNet BitcoinNet = 0x63626ef9
	// MainNet is the magic of the bitcoin main network, bytes f9 be b4 d9.
	MainNet BitcoinNet = 0xd9b4bef9
	// TestNet3 is the magic of the bitcoin test network (version 3).
	TestNet3 BitcoinNet = 0x0709110b
)

// bnStrings is a map of bitcoin networks back to their constant names for
// pretty printing.
var bnStrings = map[BitcoinNet]string{
	NewBitcoinNet: "NewBitcoinNet",
	MainNet:       "MainNet",
	TestNet3:      "TestNet3",
}

// String returns the BitcoinNet in human-readable form.
func (n BitcoinNet) String() string {
	if s, ok := bnStrings[n]; ok {
		return s
	}
	return fmt.Sprintf("Unknown BitcoinNet (%d)", uint32(n))
}

// Bytes returns the magic as it appears on the wire.
func (n BitcoinNet) Bytes() (b [4]byte) {
	littleEndian.PutUint32(b[:], uint32(n))
	return
}

// BitcoinNetFromBytes reads a wire magic into a BitcoinNet.
func BitcoinNetFromBytes(b [4]byte) BitcoinNet {
	return BitcoinNet(littleEndian.Uint32(b[:]))
}
