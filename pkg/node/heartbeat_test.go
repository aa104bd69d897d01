package node

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nb-coin/new-bitcoin/pkg/addrmgr"
	"github.com/nb-coin/new-bitcoin/pkg/peer"
	"github.com/nb-coin/new-bitcoin/pkg/wire"
)

// idleNode is a node that is never started, so the loop state can be driven
// directly from the test goroutine.
func idleNode(t *testing.T, mutate func(*Config)) *Node {
	t.Helper()
	cfg := Config{SeekPeers: DefaultSeekPeers}
	if mutate != nil {
		mutate(&cfg)
	}
	n, e := New(cfg)
	require.NoError(t, e)
	// releases the dial goroutines
	t.Cleanup(n.Stop)
	return n
}

func testAddr(i int) string {
	return fmt.Sprintf("192.0.2.%d:8333", i)
}

func TestHeartbeatDialsCandidatesInOrder(t *testing.T) {
	now := time.Unix(1700000000, 0)
	n := idleNode(t, func(cfg *Config) { cfg.Clock = func() time.Time { return now } })
	for i := 1; i <= 8; i++ {
		na, e := wire.ParseNetAddress(testAddr(i), 0)
		require.NoError(t, e)
		require.True(t, n.addrBook.Add(addrmgr.FromNetAddress(na)))
	}
	n.bans.Ban("192.0.2.2", now)

	n.heartbeat(now, 0)
	var dialing []string
	for _, p := range n.state.All() {
		assert.Equal(t, peer.Dialing, p.State())
		dialing = append(dialing, p.Key())
	}
	assert.ElementsMatch(t, []string{testAddr(1), testAddr(3), testAddr(4), testAddr(5), testAddr(6)}, dialing)

	// the next beat continues where the book left off
	n.heartbeat(now.Add(HeartbeatInterval), HeartbeatInterval)
	assert.Equal(t, 7, n.state.Count())
	assert.NotNil(t, n.state.Get(testAddr(8)))
	assert.Nil(t, n.state.Get(testAddr(2)))
}

func TestHeartbeatWithoutSeeking(t *testing.T) {
	now := time.Unix(1700000000, 0)
	n := idleNode(t, func(cfg *Config) {
		cfg.SeekPeers = 0
		cfg.Clock = func() time.Time { return now }
	})
	assert.Equal(t, 0, n.cfg.SeekPeers)
	na, e := wire.ParseNetAddress(testAddr(1), 0)
	require.NoError(t, e)
	require.True(t, n.addrBook.Add(addrmgr.FromNetAddress(na)))
	n.heartbeat(now, 0)
	assert.Zero(t, n.state.Count())
}

func TestHeartbeatUsesSeedsWhenBookIsEmpty(t *testing.T) {
	n := idleNode(t, func(cfg *Config) { cfg.Bootstrap = true })
	require.NotEmpty(t, n.bootstrap)
	n.heartbeat(time.Now(), 0)
	// a single seed cannot be dialed twice in one beat
	assert.Equal(t, 1, n.state.Count())
	assert.NotNil(t, n.state.Get(n.bootstrap[0]))
}

func TestConnectRespectsMaxPeers(t *testing.T) {
	n := idleNode(t, func(cfg *Config) { cfg.MaxPeers = 2 })
	for i := 1; i <= 2; i++ {
		ok, e := n.connect(testAddr(i), false)
		require.NoError(t, e)
		require.True(t, ok)
	}
	ok, e := n.connect(testAddr(3), false)
	require.NoError(t, e)
	assert.False(t, ok)
	ok, e = n.connect(testAddr(3), true)
	require.NoError(t, e)
	assert.True(t, ok)
	ok, e = n.connect(testAddr(3), true)
	require.NoError(t, e)
	assert.False(t, ok, "already connecting")
	_, e = n.connect("192.0.2.9", true)
	assert.Error(t, e)
	assert.Equal(t, 3, n.state.Count())
}

// claim registers a peer that reports seeing us as ip.
func claim(t *testing.T, n *Node, i int, ip string) {
	na, e := wire.ParseNetAddress(testAddr(i), 0)
	require.NoError(t, e)
	p, e := peer.NewOutbound(n.peerCfg, na)
	require.NoError(t, e)
	require.True(t, n.state.Add(p))
	you := wire.NewNetAddressIPPort(net.ParseIP(ip), 8333, 0)
	me := wire.NewNetAddressIPPort(na.IP, na.Port, 0)
	nonce, e := wire.RandomUint64()
	require.NoError(t, e)
	frame, e := wire.EncodeMessage(wire.NewMsgVersion(me, you, nonce, 0), n.peerCfg.ProtocolVersion, n.peerCfg.Net)
	require.NoError(t, e)
	p.HandleRead(frame)
	require.Equal(t, ip, p.ExternalIP().String())
}

func TestExternalIPMajority(t *testing.T) {
	n := idleNode(t, nil)
	assert.Equal(t, "127.0.0.1", n.ExternalIP().String())
	claim(t, n, 1, "198.51.100.1")
	assert.Equal(t, "198.51.100.1", n.ExternalIP().String())
	claim(t, n, 2, "198.51.100.9")
	assert.Equal(t, "198.51.100.9", n.ExternalIP().String(), "ties go to the greatest address")
	claim(t, n, 3, "198.51.100.1")
	assert.Equal(t, "198.51.100.1", n.ExternalIP().String())
	claim(t, n, 4, "198.51.100.9")
	claim(t, n, 5, "198.51.100.9")
	assert.Equal(t, "198.51.100.9", n.ExternalIP().String())
}
