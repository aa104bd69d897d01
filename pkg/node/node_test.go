package node_test

import (
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/nb-coin/new-bitcoin/pkg/node"
	"github.com/nb-coin/new-bitcoin/pkg/peer"
	"github.com/nb-coin/new-bitcoin/pkg/wire"
)

const waitFor = 5 * time.Second
const pollEvery = 10 * time.Millisecond

func newNode(t *testing.T, listen bool, mutate ...func(*node.Config)) *node.Node {
	t.Helper()
	cfg := node.Config{}
	if listen {
		cfg.ListenAddr = "127.0.0.1:0"
		cfg.Listen = true
	}
	for _, m := range mutate {
		m(&cfg)
	}
	n, e := node.New(cfg)
	require.NoError(t, e)
	t.Cleanup(func() {
		n.Stop()
		n.WaitForShutdown()
	})
	return n
}

func established(t *testing.T, n *node.Node) (out []peer.Stats) {
	stats, e := n.Peers()
	require.NoError(t, e)
	for _, s := range stats {
		if s.State == peer.Established {
			out = append(out, s)
		}
	}
	return
}

func TestTwoNodeHandshakeAndPing(t *testing.T) {
	a := newNode(t, true)
	b := newNode(t, false)
	pongs := make(chan uint64, 1)
	require.NoError(t, b.Handle(wire.CmdPong, func(_ *node.Node, _ *peer.Peer, msg wire.Message) {
		pongs <- msg.(*wire.MsgPong).Nonce
	}))
	require.NoError(t, a.Start())
	require.NoError(t, b.Start())
	assert.ErrorIs(t, b.Start(), node.ErrAlreadyStarted)
	assert.ErrorIs(t, b.Handle(wire.CmdPing, nil), node.ErrAlreadyStarted)

	target := a.ListenAddr().String()
	ok, e := b.AddPeer(target, false)
	require.NoError(t, e)
	require.True(t, ok)
	ok, e = b.AddPeer(target, false)
	require.NoError(t, e)
	assert.False(t, ok, "duplicate address")

	require.Eventually(t, func() bool {
		return len(established(t, a)) == 1 && len(established(t, b)) == 1
	}, waitFor, pollEvery)
	bs := established(t, b)[0]
	assert.Equal(t, target, bs.Addr)
	assert.False(t, bs.Inbound)
	assert.True(t, established(t, a)[0].Inbound)
	assert.Equal(t, "127.0.0.1", b.ExternalIP().String())

	require.NoError(t, b.Send(target, wire.NewMsgPing(0xfeedface)))
	select {
	case nonce := <-pongs:
		assert.Equal(t, uint64(0xfeedface), nonce)
	case <-time.After(waitFor):
		t.Fatal("no pong")
	}
	assert.Greater(t, b.BytesSent(), uint64(0))
	assert.Greater(t, b.BytesReceived(), uint64(0))
	assert.ErrorIs(t, b.Send("127.0.0.1:1", wire.NewMsgPing(1)), node.ErrPeerNotFound)

	// a remembers b as a known address once the handshake completes
	known, e := a.KnownAddresses()
	require.NoError(t, e)
	inbound := established(t, a)[0].Addr
	var found bool
	for _, ka := range known {
		if ka.Key() == inbound {
			found = true
			assert.True(t, ka.HasServices)
		}
	}
	assert.True(t, found, "%s not in %v", inbound, known)

	a.Stop()
	a.WaitForShutdown()
	require.Eventually(t, func() bool {
		stats, e := b.Peers()
		return e == nil && len(stats) == 0
	}, waitFor, pollEvery)
	_, e = a.Peers()
	assert.ErrorIs(t, e, node.ErrNodeStopped)
}

func TestRemovePeer(t *testing.T) {
	a := newNode(t, true)
	b := newNode(t, false)
	require.NoError(t, a.Start())
	require.NoError(t, b.Start())
	target := a.ListenAddr().String()
	_, e := b.AddPeer(target, true)
	require.NoError(t, e)
	require.Eventually(t, func() bool { return len(established(t, a)) == 1 }, waitFor, pollEvery)
	removed, e := b.RemovePeer(target)
	require.NoError(t, e)
	assert.True(t, removed)
	require.Eventually(t, func() bool {
		stats, e := a.Peers()
		return e == nil && len(stats) == 0
	}, waitFor, pollEvery)
	removed, e = b.RemovePeer(target)
	require.NoError(t, e)
	assert.False(t, removed)
}

func TestAddrInUse(t *testing.T) {
	a := newNode(t, true)
	_, e := node.New(node.Config{ListenAddr: a.ListenAddr().String(), Listen: true})
	require.Error(t, e)
	assert.True(t, errors.Is(e, node.ErrAddrInUse), "got %v", e)
}

func TestControlCallsOnStoppedNode(t *testing.T) {
	n := newNode(t, false)
	_, e := n.Peers()
	assert.ErrorIs(t, e, node.ErrNotStarted)
	n.Stop()
	n.Stop()
	n.WaitForShutdown()
	_, e = n.AddPeer("127.0.0.1:8333", true)
	assert.ErrorIs(t, e, node.ErrNodeStopped)
	assert.ErrorIs(t, n.Start(), node.ErrNodeStopped)
}

func TestSelfConnectionIsDropped(t *testing.T) {
	a := newNode(t, true)
	require.NoError(t, a.Start())
	ok, e := a.AddPeer(a.ListenAddr().String(), true)
	require.NoError(t, e)
	require.True(t, ok)
	require.Eventually(t, func() bool {
		stats, e := a.Peers()
		return e == nil && len(stats) == 0
	}, waitFor, pollEvery)
	known, e := a.KnownAddresses()
	require.NoError(t, e)
	assert.Empty(t, known)
}

// rawPeer speaks the protocol by hand so a test can misbehave.
type rawPeer struct {
	t    *testing.T
	conn net.Conn
}

func dialRaw(t *testing.T, addr string) *rawPeer {
	conn, e := net.Dial("tcp", addr)
	require.NoError(t, e)
	t.Cleanup(func() { _ = conn.Close() })
	return &rawPeer{t: t, conn: conn}
}

func (r *rawPeer) send(msg wire.Message) {
	frame, e := wire.EncodeMessage(msg, wire.ProtocolVersion, wire.NewBitcoinNet)
	require.NoError(r.t, e)
	_, e = r.conn.Write(frame)
	require.NoError(r.t, e)
}

func (r *rawPeer) read() (wire.Message, error) {
	_ = r.conn.SetReadDeadline(time.Now().Add(waitFor))
	hdr := make([]byte, wire.MessageHeaderSize)
	if _, e := io.ReadFull(r.conn, hdr); e != nil {
		return nil, e
	}
	length, _ := wire.PeekLength(hdr)
	frame := make([]byte, length)
	copy(frame, hdr)
	if _, e := io.ReadFull(r.conn, frame[wire.MessageHeaderSize:]); e != nil {
		return nil, e
	}
	return wire.DecodeMessage(frame, wire.ProtocolVersion, wire.NewBitcoinNet)
}

// awaitPong reads until the pong for nonce arrives.
func (r *rawPeer) awaitPong(nonce uint64) {
	for {
		msg, e := r.read()
		require.NoError(r.t, e)
		if pong, ok := msg.(*wire.MsgPong); ok && pong.Nonce == nonce {
			return
		}
	}
}

// await reads until a message with command arrives and returns it.
func (r *rawPeer) await(command string) wire.Message {
	for {
		msg, e := r.read()
		require.NoError(r.t, e)
		if msg.Command() == command {
			return msg
		}
	}
}

func (r *rawPeer) version() *wire.MsgVersion {
	me := wire.NewNetAddressIPPort(net.IPv4(127, 0, 0, 1), 0, 0)
	you := wire.NewNetAddressIPPort(net.IPv4(127, 0, 0, 1), 8333, 0)
	nonce, e := wire.RandomUint64()
	require.NoError(r.t, e)
	return wire.NewMsgVersion(me, you, nonce, 0)
}

func TestBanScoreThreshold(t *testing.T) {
	fixed := time.Unix(1700000000, 0)
	a := newNode(t, true, func(cfg *node.Config) {
		cfg.Clock = func() time.Time { return fixed }
	})
	require.NoError(t, a.Start())
	r := dialRaw(t, a.ListenAddr().String())
	r.send(r.version())
	r.send(wire.NewMsgVerAck())
	for i := 0; i < 5; i++ {
		r.send(r.version())
	}
	r.send(wire.NewMsgPing(1))
	r.awaitPong(1)

	banned, e := a.IsBanned("127.0.0.1")
	require.NoError(t, e)
	assert.False(t, banned, "five penalties must not ban")
	stats := established(t, a)
	require.Len(t, stats, 1)
	assert.Equal(t, 5, stats[0].BanScore)

	r.send(r.version())
	for {
		if _, e = r.read(); e != nil {
			break
		}
	}
	assert.Error(t, e)
	require.Eventually(t, func() bool {
		banned, e := a.IsBanned("127.0.0.1")
		return e == nil && banned
	}, waitFor, pollEvery)

	// a banned address is closed before any handshake
	again := dialRaw(t, a.ListenAddr().String())
	_, e = again.read()
	assert.ErrorIs(t, e, io.EOF)
}

func TestInvalidFrameKeepsConnection(t *testing.T) {
	a := newNode(t, true)
	require.NoError(t, a.Start())
	r := dialRaw(t, a.ListenAddr().String())
	r.send(r.version())
	frame, e := wire.EncodeMessage(wire.NewMsgPing(3), wire.ProtocolVersion, wire.MainNet)
	require.NoError(t, e)
	_, e = r.conn.Write(frame)
	require.NoError(t, e)
	r.send(wire.NewMsgPing(4))
	r.awaitPong(4)
}

// manualClock is a node clock that only moves when the test says so.
type manualClock struct {
	unix *atomic.Int64
}

func newManualClock(start time.Time) *manualClock {
	return &manualClock{unix: atomic.NewInt64(start.UnixNano())}
}

func (c *manualClock) Now() time.Time { return time.Unix(0, c.unix.Load()) }

func (c *manualClock) Advance(d time.Duration) { c.unix.Add(int64(d)) }

func TestHeartbeatAsksForAddressesAndForgives(t *testing.T) {
	clock := newManualClock(time.Unix(1700000000, 0))
	a := newNode(t, true, func(cfg *node.Config) {
		cfg.Clock = clock.Now
	})
	require.NoError(t, a.Start())
	r := dialRaw(t, a.ListenAddr().String())
	r.send(r.version())
	r.send(wire.NewMsgVerAck())
	r.send(r.version())
	r.send(r.version())
	r.send(wire.NewMsgPing(1))
	r.awaitPong(1)
	stats := established(t, a)
	require.Len(t, stats, 1)
	require.Equal(t, 2, stats[0].BanScore)

	// the only established peer is asked because the book is nearly empty
	clock.Advance(node.HeartbeatInterval)
	r.await(wire.CmdGetAddr)
	require.Eventually(t, func() bool {
		stats := established(t, a)
		return len(stats) == 1 && stats[0].BanScore == 1
	}, waitFor, pollEvery)

	clock.Advance(node.HeartbeatInterval)
	r.await(wire.CmdGetAddr)
	require.Eventually(t, func() bool {
		stats := established(t, a)
		return len(stats) == 1 && stats[0].BanScore == 0
	}, waitFor, pollEvery)
}

func TestAddressGossip(t *testing.T) {
	now := time.Unix(1700000000, 0)
	a := newNode(t, true, func(cfg *node.Config) {
		cfg.Clock = func() time.Time { return now }
	})
	require.NoError(t, a.Start())
	r := dialRaw(t, a.ListenAddr().String())
	r.send(r.version())
	r.send(wire.NewMsgVerAck())

	gossip := wire.NewMsgAddr()
	require.NoError(t, gossip.AddAddresses(
		wire.NewNetAddressTimestamp(now.Add(-3*time.Hour), wire.SFNodeNetwork, net.IPv4(192, 0, 2, 3), 8333),
		wire.NewNetAddressTimestamp(now.Add(-time.Hour), wire.SFNodeNetwork, net.IPv4(192, 0, 2, 1), 8333),
		wire.NewNetAddressTimestamp(now.Add(-2*time.Hour), wire.SFNodeNetwork, net.IPv4(192, 0, 2, 2), 8333),
	))
	r.send(gossip)
	r.send(wire.NewMsgGetAddr())
	reply := r.await(wire.CmdAddr).(*wire.MsgAddr)

	// the raw peer itself was recorded at verack time and is the freshest
	require.Len(t, reply.AddrList, 4)
	assert.Equal(t, r.conn.LocalAddr().String(), reply.AddrList[0].Key())
	var keys []string
	for _, na := range reply.AddrList[1:] {
		keys = append(keys, na.Key())
	}
	assert.Equal(t, []string{"192.0.2.1:8333", "192.0.2.2:8333", "192.0.2.3:8333"}, keys)

	known, e := a.KnownAddresses()
	require.NoError(t, e)
	assert.Len(t, known, 4)
}
