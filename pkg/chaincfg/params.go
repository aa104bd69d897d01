package chaincfg

import (
	"encoding/hex"
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/nb-coin/new-bitcoin/pkg/chainhash"
	"github.com/nb-coin/new-bitcoin/pkg/wire"
)

var (
	// ErrDuplicateNet describes an error where the parameters for a network could
	// not be set due to the network already being a standard network or
	// previously-registered into this package.
	ErrDuplicateNet = errors.New("duplicate network")
	// ErrUnknownCoin is returned by ByName and BySymbol for a coin that was never
	// registered.
	ErrUnknownCoin = errors.New("unknown coin")
)

// DNSSeed identifies a bootstrap host of a network. Host may be a name or an
// IPv4 literal.
type DNSSeed struct {
	Host string
	Port uint16
}

// String returns the host:port form of the seed.
func (d DNSSeed) String() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(int(d.Port)))
}

// Params defines a coin network by its wire parameters and the genesis block
// it was started from.
type Params struct {
	// Name defines a human-readable identifier for the network.
	Name string
	// Symbols lists the ticker symbols of the coin, the first is the primary.
	Symbols []string
	// Net defines the magic bytes used to identify the network.
	Net wire.BitcoinNet
	// ProtocolVersion is the version this node announces in its version message.
	ProtocolVersion uint32
	// DefaultPort defines the default peer-to-peer port for the network.
	DefaultPort uint16
	// DNSSeeds defines a list of bootstrap hosts used to discover peers.
	DNSSeeds []DNSSeed
	// Genesis block constants.
	GenesisVersion    uint32
	GenesisHash       *chainhash.Hash
	GenesisMerkleRoot *chainhash.Hash
	GenesisTimestamp  time.Time
	GenesisBits       uint32
	GenesisNonce      uint32
	// AddrVersion is the version byte of pay-to-pubkey-hash addresses.
	AddrVersion byte
	// ScriptAddrVersion is the version byte of pay-to-script-hash addresses.
	ScriptAddrVersion byte
	// AlertPubKey is the serialized secp256k1 key that signs alerts. Empty means
	// alerts are not verified.
	AlertPubKey []byte
}

// Symbol returns the primary ticker symbol.
func (p *Params) Symbol() string {
	if len(p.Symbols) == 0 {
		return ""
	}
	return p.Symbols[0]
}

// GenesisHeader rebuilds the header of the genesis block from the constants.
func (p *Params) GenesisHeader() *wire.BlockHeader {
	return &wire.BlockHeader{
		Version:    p.GenesisVersion,
		MerkleRoot: *p.GenesisMerkleRoot,
		Timestamp:  p.GenesisTimestamp,
		Bits:       p.GenesisBits,
		Nonce:      p.GenesisNonce,
	}
}

var (
	registeredNets = make(map[wire.BitcoinNet]*Params)
	byName         = make(map[string]*Params)
	bySymbol       = make(map[string]*Params)
)

// Register registers the network parameters for a coin. This may error with
// ErrDuplicateNet if the network is already registered (either due to a
// previous Register call, or the network being one of the default networks).
//
// Network parameters should be registered into this package by a main package
// as early as possible. Then, library packages may lookup networks or network
// parameters based on inputs and work regardless of the network being standard
// or not.
func Register(params *Params) (e error) {
	if _, ok := registeredNets[params.Net]; ok {
		return ErrDuplicateNet
	}
	registeredNets[params.Net] = params
	byName[strings.ToLower(params.Name)] = params
	for _, s := range params.Symbols {
		bySymbol[strings.ToUpper(s)] = params
	}
	return nil
}

// mustRegister performs the same function as Register except it panics if there
// is an error. This should only be called from package init functions.
func mustRegister(params *Params) {
	if e := Register(params); E.Chk(e) {
		panic("failed to register network: " + e.Error())
	}
}

// ByName looks up a registered coin by its name, ignoring case.
func ByName(name string) (*Params, error) {
	if p, ok := byName[strings.ToLower(name)]; ok {
		return p, nil
	}
	return nil, ErrUnknownCoin
}

// BySymbol looks up a registered coin by any of its ticker symbols.
func BySymbol(symbol string) (*Params, error) {
	if p, ok := bySymbol[strings.ToUpper(symbol)]; ok {
		return p, nil
	}
	return nil, ErrUnknownCoin
}

// newHashFromStr converts the passed big-endian hex string into a
// chainhash.Hash. It only differs from the one available in chainhash in that
// it panics on an error since it will only (and must only) be called with
// hard-coded, and therefore known good, hashes.
func newHashFromStr(hexStr string) *chainhash.Hash {
	hash, e := chainhash.NewHashFromStr(hexStr)
	if e != nil {
		panic(e)
	}
	return hash
}

// mustDecodeHex is newHashFromStr for hard-coded keys.
func mustDecodeHex(s string) []byte {
	b, e := hex.DecodeString(s)
	if e != nil {
		panic(e)
	}
	return b
}

func init() {
	// Register all default networks when the package is initialized.
	mustRegister(&NewBitcoinParams)
	mustRegister(&TestNet3Params)
}
