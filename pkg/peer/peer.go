package peer

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/VividCortex/ewma"

	"github.com/nb-coin/new-bitcoin/pkg/log"
	"github.com/nb-coin/new-bitcoin/pkg/wire"
)

const (
	// ReadChunkSize is the largest single read handed to the owner as one event.
	ReadChunkSize = 8192
	// PingIdle is how long the send side may stay quiet before a ping is sent.
	PingIdle = 30 * time.Minute
	// PingInterval is the minimum time between two pings.
	PingInterval = 5 * time.Minute
	// StaleTimeout is how long without receiving anything before the peer is
	// dropped.
	StaleTimeout = 180 * time.Minute
	// DefaultWriteTimeout bounds a single write so the writer goroutine reports
	// back to the owner regularly.
	DefaultWriteTimeout = 5 * time.Second
	// maxFrameLength is the largest frame the receive side will buffer.
	maxFrameLength = wire.MessageHeaderSize + wire.MaxMessagePayload
)

var (
	// ErrClosed is returned when queueing to or attaching a closed peer.
	ErrClosed = errors.New("peer is closed")
	// ErrAttached is returned by Attach when the peer already has a connection.
	ErrAttached = errors.New("peer already has a connection")
)

// State is the position of a peer in the handshake.
type State int

const (
	Dialing State = iota
	AwaitingVersion
	AwaitingVerack
	Established
	Closed
)

var stateStrings = map[State]string{
	Dialing:         "dialing",
	AwaitingVersion: "awaiting version",
	AwaitingVerack:  "awaiting verack",
	Established:     "established",
	Closed:          "closed",
}

func (s State) String() string {
	if str, ok := stateStrings[s]; ok {
		return str
	}
	return fmt.Sprintf("unknown state (%d)", int(s))
}

// EventKind distinguishes the events the network goroutines send to the owner.
type EventKind int

const (
	// EventRead carries a chunk of received bytes in Data.
	EventRead EventKind = iota
	// EventReadErr reports the end of the read side, Err is io.EOF on a clean
	// close by the remote.
	EventReadErr
	// EventWritten reports a finished write of N bytes, Err is set on failure.
	EventWritten
)

// Event is sent by a peer's goroutines into Config.Inbox. The owner passes it
// back to the peer with Handle.
type Event struct {
	Peer *Peer
	Kind EventKind
	Data []byte
	N    int
	Err  error
}

// Listeners are the callbacks a peer makes into its owner. All of them run on
// the goroutine that calls the peer's methods.
type Listeners struct {
	// OnConnected is called when the first version message of the remote has
	// been captured.
	OnConnected func(p *Peer)
	// OnMessage is called for every decoded message, after the handshake
	// bookkeeping.
	OnMessage func(p *Peer, msg wire.Message)
	// OnInvalid is called with a frame that did not decode. The peer stays
	// open.
	OnInvalid func(p *Peer, frame []byte, e error)
	// OnQueued is called for every message appended to the send buffer.
	OnQueued func(p *Peer, msg wire.Message)
	// OnDisconnected is called exactly once when the peer is closed.
	OnDisconnected func(p *Peer)
}

// Config is shared by all peers of one owner.
type Config struct {
	Net             wire.BitcoinNet
	ProtocolVersion uint32
	Services        wire.ServiceFlag
	UserAgent       string
	// ListenPort is advertised in the addr_from field of the version message.
	ListenPort uint16
	// ExternalIP returns the current guess of our public address.
	ExternalIP func() net.IP
	// BestHeight returns the height announced in the version message.
	BestHeight func() int32
	// Inbox receives the events of the network goroutines. It must be drained
	// by the owner until the peer is closed.
	Inbox        chan<- Event
	Listeners    Listeners
	Clock        func() time.Time
	WriteTimeout time.Duration
}

func (cfg *Config) now() time.Time {
	if cfg.Clock != nil {
		return cfg.Clock()
	}
	return time.Now()
}

// Peer is one connection to a remote node. Apart from the two network
// goroutines, every method must be called from the single owner goroutine.
type Peer struct {
	cfg     *Config
	addr    *wire.NetAddress
	key     string
	inbound bool
	state   State
	conn    net.Conn
	quit    chan struct{}
	writeCh chan []byte
	writing bool

	recvBuf []byte
	sendBuf []byte

	bytesSent, bytesRecv   uint64
	sampleSent, sampleRecv uint64
	sendRate, recvRate     ewma.MovingAverage

	lastSend, lastRecv, lastPing time.Time

	versionNonce uint64
	versions     int
	verAckRecv   bool
	banScore     int

	// announced by the remote in its version message
	protocolVersion int32
	services        wire.ServiceFlag
	userAgent       string
	startHeight     int32
	relay           bool
	externalIP      net.IP
}

func newPeer(cfg *Config, addr *wire.NetAddress, inbound bool) (p *Peer, e error) {
	p = &Peer{
		cfg:      cfg,
		addr:     addr,
		key:      addr.Key(),
		inbound:  inbound,
		state:    Dialing,
		quit:     make(chan struct{}),
		writeCh:  make(chan []byte, 1),
		sendRate: ewma.NewMovingAverage(),
		recvRate: ewma.NewMovingAverage(),
	}
	if p.versionNonce, e = wire.RandomUint64(); E.Chk(e) {
		return nil, e
	}
	if e = p.pushVersion(); E.Chk(e) {
		return nil, e
	}
	return
}

// NewOutbound returns a peer in the Dialing state with its version message
// already queued. The owner dials addr and hands the socket to Attach.
func NewOutbound(cfg *Config, addr *wire.NetAddress) (*Peer, error) {
	return newPeer(cfg, addr, false)
}

// NewInbound wraps an accepted socket. The version message is queued at once,
// both sides announce themselves first.
func NewInbound(cfg *Config, conn net.Conn) (p *Peer, e error) {
	var na *wire.NetAddress
	if na, e = wire.ParseNetAddress(conn.RemoteAddr().String(), 0); E.Chk(e) {
		return
	}
	if p, e = newPeer(cfg, na, true); E.Chk(e) {
		return
	}
	if e = p.Attach(conn); E.Chk(e) {
		p = nil
	}
	return
}

func (p *Peer) pushVersion() error {
	ip := net.IPv4zero
	if p.cfg.ExternalIP != nil {
		if ext := p.cfg.ExternalIP(); ext != nil {
			ip = ext
		}
	}
	var height int32
	if p.cfg.BestHeight != nil {
		height = p.cfg.BestHeight()
	}
	now := p.cfg.now()
	you := wire.NewNetAddressTimestamp(now, p.cfg.Services, p.addr.IP, p.addr.Port)
	me := wire.NewNetAddressTimestamp(now, p.cfg.Services, ip, p.cfg.ListenPort)
	msg := wire.NewMsgVersion(me, you, p.versionNonce, height)
	msg.ProtocolVersion = int32(p.cfg.ProtocolVersion)
	msg.Services = p.cfg.Services
	msg.Timestamp = time.Unix(now.Unix(), 0)
	if p.cfg.UserAgent != "" {
		msg.UserAgent = p.cfg.UserAgent
	}
	msg.DisableRelayTx = true
	return p.QueueMessage(msg)
}

// Attach hands the peer its socket and starts the network goroutines.
func (p *Peer) Attach(conn net.Conn) error {
	switch {
	case p.state == Closed:
		return ErrClosed
	case p.conn != nil:
		return ErrAttached
	}
	now := p.cfg.now()
	p.conn = conn
	p.state = AwaitingVersion
	p.lastSend, p.lastRecv = now, now
	D.F("%s connected", p)
	go p.readLoop(conn)
	go p.writeLoop(conn)
	return nil
}

func (p *Peer) post(ev Event) bool {
	ev.Peer = p
	select {
	case p.cfg.Inbox <- ev:
		return true
	case <-p.quit:
		return false
	}
}

func (p *Peer) readLoop(conn net.Conn) {
	for {
		buf := make([]byte, ReadChunkSize)
		n, e := conn.Read(buf)
		if n > 0 {
			if !p.post(Event{Kind: EventRead, Data: buf[:n]}) {
				return
			}
		}
		if e != nil {
			p.post(Event{Kind: EventReadErr, Err: e})
			return
		}
	}
}

func (p *Peer) writeLoop(conn net.Conn) {
	timeout := p.cfg.WriteTimeout
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	for {
		select {
		case b := <-p.writeCh:
			var e error
			if e = conn.SetWriteDeadline(time.Now().Add(timeout)); e == nil {
				var n int
				n, e = conn.Write(b)
				// an expired deadline is a short write, the rest goes out with
				// the next flush
				if errors.Is(e, os.ErrDeadlineExceeded) {
					e = nil
				}
				if !p.post(Event{Kind: EventWritten, N: n, Err: e}) {
					return
				}
				continue
			}
			if !p.post(Event{Kind: EventWritten, Err: e}) {
				return
			}
		case <-p.quit:
			return
		}
	}
}

// Handle applies an event from Config.Inbox.
func (p *Peer) Handle(ev Event) {
	switch ev.Kind {
	case EventRead:
		p.HandleRead(ev.Data)
	case EventReadErr:
		p.HandleReadError(ev.Err)
	case EventWritten:
		p.HandleWritten(ev.N, ev.Err)
	}
}

// QueueMessage encodes msg onto the send buffer. Nothing is written until the
// next Flush.
func (p *Peer) QueueMessage(msg wire.Message) (e error) {
	if p.state == Closed {
		return ErrClosed
	}
	var frame []byte
	if frame, e = wire.EncodeMessage(msg, p.cfg.ProtocolVersion, p.cfg.Net); E.Chk(e) {
		return
	}
	D.F("sending %s to %s", wire.LogicalName(msg.Command()), p)
	T.C(func() string {
		return fmt.Sprintf(">>> %s %s %s", p, msg.Command(), messageSummary(msg))
	})
	p.sendBuf = append(p.sendBuf, frame...)
	if p.cfg.Listeners.OnQueued != nil {
		p.cfg.Listeners.OnQueued(p, msg)
	}
	return
}

// Flush hands the send buffer to the writer goroutine if it is idle.
func (p *Peer) Flush() {
	if p.state == Closed || p.conn == nil || p.writing || len(p.sendBuf) == 0 {
		return
	}
	p.writing = true
	p.writeCh <- p.sendBuf
}

// HandleWritten trims n sent bytes off the send buffer. A write error closes
// the peer.
func (p *Peer) HandleWritten(n int, e error) {
	p.writing = false
	if p.state == Closed {
		return
	}
	if n > 0 {
		p.sendBuf = p.sendBuf[n:]
		if len(p.sendBuf) == 0 {
			p.sendBuf = nil
		}
		p.bytesSent += uint64(n)
		p.sampleSent += uint64(n)
		p.lastSend = p.cfg.now()
	}
	if e != nil {
		D.F("write to %s failed: %v", p, e)
		p.Close()
	}
}

// HandleReadError closes the peer once the read side is finished.
func (p *Peer) HandleReadError(e error) {
	if p.state == Closed {
		return
	}
	if errors.Is(e, io.EOF) {
		D.F("%s closed the connection", p)
	} else {
		D.F("read from %s failed: %v", p, e)
	}
	p.Close()
}

// HandleRead appends a received chunk and processes every complete frame in
// the buffer, in order.
func (p *Peer) HandleRead(chunk []byte) {
	if p.state == Closed || len(chunk) == 0 {
		return
	}
	p.bytesRecv += uint64(len(chunk))
	p.sampleRecv += uint64(len(chunk))
	p.lastRecv = p.cfg.now()
	p.recvBuf = append(p.recvBuf, chunk...)
	for p.state != Closed {
		length, ok := wire.PeekLength(p.recvBuf)
		if !ok {
			return
		}
		if length > maxFrameLength {
			// there is no way to find the next frame boundary
			W.F("%s declared a frame of %d bytes, disconnecting", p, length)
			p.Close()
			return
		}
		if uint64(len(p.recvBuf)) < length {
			return
		}
		frame := p.recvBuf[:length]
		p.recvBuf = p.recvBuf[length:]
		if len(p.recvBuf) == 0 {
			p.recvBuf = nil
		}
		p.handleFrame(frame)
	}
}

func (p *Peer) handleFrame(frame []byte) {
	msg, e := wire.DecodeMessage(frame, p.cfg.ProtocolVersion, p.cfg.Net)
	if e != nil {
		if p.cfg.Listeners.OnInvalid != nil {
			p.cfg.Listeners.OnInvalid(p, frame, e)
		}
		return
	}
	p.dispatch(msg)
}

func (p *Peer) dispatch(msg wire.Message) {
	defer func() {
		if r := recover(); r != nil {
			E.F("panic while handling %s from %s: %v", msg.Command(), p, r)
		}
	}()
	D.F("received %s from %s", wire.LogicalName(msg.Command()), p)
	T.C(func() string {
		return fmt.Sprintf("<<< %s %s %s", p, msg.Command(), messageSummary(msg))
	})
	switch m := msg.(type) {
	case *wire.MsgVersion:
		p.versions++
		if p.versions == 1 {
			p.protocolVersion = m.ProtocolVersion
			p.services = m.Services
			p.userAgent = m.UserAgent
			p.startHeight = m.LastBlock
			p.relay = !m.DisableRelayTx
			p.externalIP = m.AddrYou.IP
			p.advance()
			if p.cfg.Listeners.OnConnected != nil {
				p.cfg.Listeners.OnConnected(p)
			}
		}
	case *wire.MsgVerAck:
		p.verAckRecv = true
		p.advance()
	}
	if p.state == Closed {
		return
	}
	if p.cfg.Listeners.OnMessage != nil {
		p.cfg.Listeners.OnMessage(p, msg)
	}
}

// advance moves the handshake state forward from what has been received.
func (p *Peer) advance() {
	if p.state == Closed || p.state == Dialing || p.versions == 0 {
		return
	}
	if p.verAckRecv {
		if p.state != Established {
			I.F("%s established, agent %s, height %d", p, p.userAgent, p.startHeight)
		}
		p.state = Established
		return
	}
	p.state = AwaitingVerack
}

// CheckTimers sends a keepalive ping to a quiet peer and drops a stale one.
func (p *Peer) CheckTimers(now time.Time) {
	if p.state == Dialing || p.state == Closed {
		return
	}
	if now.Sub(p.lastRecv) > StaleTimeout {
		I.F("%s sent nothing since %v, disconnecting", p, p.lastRecv.Format(time.RFC3339))
		p.Close()
		return
	}
	if now.Sub(p.lastSend) > PingIdle && now.Sub(p.lastPing) > PingInterval {
		nonce, e := wire.RandomUint64()
		if E.Chk(e) {
			return
		}
		if e = p.QueueMessage(wire.NewMsgPing(nonce)); E.Chk(e) {
			return
		}
		p.lastPing = now
	}
}

// Close tears the peer down. It may be called any number of times, the owner
// is notified on the first call only.
func (p *Peer) Close() {
	if p.state == Closed {
		return
	}
	p.state = Closed
	close(p.quit)
	if p.conn != nil {
		if e := p.conn.Close(); e != nil {
			D.F("closing %s: %v", p, e)
		}
	}
	p.sendBuf, p.recvBuf = nil, nil
	D.F("%s disconnected", p)
	if p.cfg.Listeners.OnDisconnected != nil {
		p.cfg.Listeners.OnDisconnected(p)
	}
}

// AddBanScore raises the misbehaviour score by penalty.
func (p *Peer) AddBanScore(penalty int) int {
	p.banScore += penalty
	return p.banScore
}

// ReduceBanScore lowers the misbehaviour score, never below zero.
func (p *Peer) ReduceBanScore(penalty int) int {
	if p.banScore -= penalty; p.banScore < 0 {
		p.banScore = 0
	}
	return p.banScore
}

func (p *Peer) BanScore() int { return p.banScore }

// SampleRates folds the bytes moved since the last call into the moving
// averages, in bytes per second.
func (p *Peer) SampleRates(elapsed time.Duration) {
	secs := elapsed.Seconds()
	if secs <= 0 {
		return
	}
	p.sendRate.Add(float64(p.sampleSent) / secs)
	p.recvRate.Add(float64(p.sampleRecv) / secs)
	p.sampleSent, p.sampleRecv = 0, 0
}

func (p *Peer) Addr() *wire.NetAddress     { return p.addr }
func (p *Peer) Key() string                { return p.key }
func (p *Peer) Inbound() bool              { return p.inbound }
func (p *Peer) State() State               { return p.state }
func (p *Peer) Established() bool          { return p.state == Established }
func (p *Peer) VersionNonce() uint64       { return p.versionNonce }
func (p *Peer) VersionsReceived() int      { return p.versions }
func (p *Peer) Services() wire.ServiceFlag { return p.services }

// ExternalIP is our address as the remote claims to see it, nil before its
// version message.
func (p *Peer) ExternalIP() net.IP { return p.externalIP }

func (p *Peer) String() string {
	return fmt.Sprintf("%s (%s)", p.key, log.DirectionString(p.inbound))
}

// Stats is a snapshot of a peer for reporting.
type Stats struct {
	Addr            string
	Inbound         bool
	State           State
	ProtocolVersion int32
	Services        wire.ServiceFlag
	UserAgent       string
	StartHeight     int32
	Relay           bool
	ExternalIP      net.IP
	BanScore        int
	BytesSent       uint64
	BytesRecv       uint64
	LastSend        time.Time
	LastRecv        time.Time
	LastPing        time.Time
	SendRate        float64
	RecvRate        float64
}

func (p *Peer) Stats() Stats {
	return Stats{
		Addr:            p.key,
		Inbound:         p.inbound,
		State:           p.state,
		ProtocolVersion: p.protocolVersion,
		Services:        p.services,
		UserAgent:       p.userAgent,
		StartHeight:     p.startHeight,
		Relay:           p.relay,
		ExternalIP:      p.externalIP,
		BanScore:        p.banScore,
		BytesSent:       p.bytesSent,
		BytesRecv:       p.bytesRecv,
		LastSend:        p.lastSend,
		LastRecv:        p.lastRecv,
		LastPing:        p.lastPing,
		SendRate:        p.sendRate.Value(),
		RecvRate:        p.recvRate.Value(),
	}
}
