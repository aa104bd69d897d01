package chaincfg

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nb-coin/new-bitcoin/pkg/wire"
)

func TestNewBitcoinParams(t *testing.T) {
	p := &NewBitcoinParams
	assert.Equal(t, [4]byte{0xf9, 0x6e, 0x62, 0x63}, p.Net.Bytes())
	assert.Equal(t, "NBC", p.Symbol())
	assert.Equal(t, "127.0.0.1:20303", p.DNSSeeds[0].String())
	assert.Equal(t, uint32(70002), p.ProtocolVersion)
	// The genesis constants hash to the genesis hash.
	hash := p.GenesisHeader().BlockHash()
	assert.True(t, hash.IsEqual(p.GenesisHash), "genesis header hashes to %v", hash)
	_, e := btcec.ParsePubKey(p.AlertPubKey)
	require.NoError(t, e)
}

func TestTestNet3Genesis(t *testing.T) {
	hash := TestNet3Params.GenesisHeader().BlockHash()
	assert.True(t, hash.IsEqual(TestNet3Params.GenesisHash), "genesis header hashes to %v", hash)
}

func TestLookup(t *testing.T) {
	p, e := ByName("NewBitcoin")
	require.NoError(t, e)
	assert.Same(t, &NewBitcoinParams, p)
	p, e = BySymbol("nbc")
	require.NoError(t, e)
	assert.Same(t, &NewBitcoinParams, p)
	_, e = ByName("dogecoin")
	assert.ErrorIs(t, e, ErrUnknownCoin)
}

func TestRegisterDuplicate(t *testing.T) {
	e := Register(&Params{Name: "clone", Net: wire.NewBitcoinNet})
	assert.ErrorIs(t, e, ErrDuplicateNet)
	custom := &Params{Name: "regtest", Symbols: []string{"RNBC"}, Net: wire.BitcoinNet(0xdab5bffa)}
	require.NoError(t, Register(custom))
	p, e := BySymbol("RNBC")
	require.NoError(t, e)
	assert.Same(t, custom, p)
}
