package chaincfg

import (
	"time"

	"github.com/nb-coin/new-bitcoin/pkg/wire"
)

// NewBitcoinParams defines the network parameters for the newbitcoin network.
// It shares the genesis block of bitcoin and differs by magic.
var NewBitcoinParams = Params{
	Name:            "newbitcoin",
	Symbols:         []string{"NBC"},
	Net:             wire.NewBitcoinNet,
	ProtocolVersion: wire.ProtocolVersion,
	DefaultPort:     8333,
	DNSSeeds: []DNSSeed{
		{"127.0.0.1", 20303},
	},
	GenesisVersion:    1,
	GenesisHash:       newHashFromStr("000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f"),
	GenesisMerkleRoot: newHashFromStr("4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b"),
	GenesisTimestamp:  time.Unix(1231006505, 0), // 2009-01-03 18:15:05 UTC
	GenesisBits:       486604799,                // 0x1d00ffff
	GenesisNonce:      2083236893,
	AddrVersion:       0x00,
	ScriptAddrVersion: 0x05,
	AlertPubKey: mustDecodeHex(
		"04fc9702847840aaf195de8442ebecedf5b095cdbb9bc716bda9110971b28a49e0" +
			"ead8564ff0db22209e0374782c093bb899692d524e9d6a6956e7c5ecbcd68284",
	),
}
