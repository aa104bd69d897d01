package chaincfg

import (
	"time"

	"github.com/nb-coin/new-bitcoin/pkg/wire"
)

// TestNet3Params defines the network parameters for the bitcoin test network
// (version 3), used to talk to a test chain with the same node.
var TestNet3Params = Params{
	Name:              "bitcoin-testnet3",
	Symbols:           []string{"TBTC"},
	Net:               wire.TestNet3,
	ProtocolVersion:   wire.ProtocolVersion,
	DefaultPort:       18333,
	DNSSeeds:          []DNSSeed{},
	GenesisVersion:    1,
	GenesisHash:       newHashFromStr("000000000933ea01ad0ee984209779baaec3ced90fa3f408719526f8d77f4943"),
	GenesisMerkleRoot: newHashFromStr("4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b"),
	GenesisTimestamp:  time.Unix(1296688602, 0), // 2011-02-02 23:16:42 UTC
	GenesisBits:       486604799,
	GenesisNonce:      414098458,
	AddrVersion:       0x6f,
	ScriptAddrVersion: 0xc4,
	AlertPubKey: mustDecodeHex(
		"04302390343f91cc401d56d68b123028bf52e5fca1939df127f63c6467cdf9c8e2" +
			"c14b61104cf817d0b780da337893ecc4aaff1309e536162dabbdb45200ca2b0a",
	),
}
