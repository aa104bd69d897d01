package node

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/btcsuite/go-socks/socks"
	lru "github.com/hashicorp/golang-lru"
	"github.com/marusama/semaphore"
	"go.uber.org/atomic"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/nb-coin/new-bitcoin/pkg/addrmgr"
	"github.com/nb-coin/new-bitcoin/pkg/log"
	"github.com/nb-coin/new-bitcoin/pkg/nat"
	"github.com/nb-coin/new-bitcoin/pkg/peer"
	"github.com/nb-coin/new-bitcoin/pkg/peerdb"
	"github.com/nb-coin/new-bitcoin/pkg/wire"
)

var (
	// ErrAddrInUse is returned by New when the listen address is taken, which
	// usually means another node is already running.
	ErrAddrInUse = errors.New("address already in use")
	// ErrNodeStopped is returned by control calls once Stop has been called.
	ErrNodeStopped = errors.New("node is stopped")
	// ErrNotStarted is returned by control calls before Start.
	ErrNotStarted = errors.New("node is not started")
	// ErrAlreadyStarted is returned by a second Start and by Handle after Start.
	ErrAlreadyStarted = errors.New("node already started")
	// ErrPeerNotFound is returned by Send for an unknown address.
	ErrPeerNotFound = errors.New("no peer with that address")
)

// acceptRate and acceptBurst throttle the accept loop.
const (
	acceptRate  = 10
	acceptBurst = 25
)

type (
	addPeerMsg struct {
		addr  string
		force bool
		reply chan addPeerReply
	}
	addPeerReply struct {
		ok  bool
		err error
	}
	removePeerMsg struct {
		addr  string
		reply chan bool
	}
	getPeersMsg struct {
		reply chan []peer.Stats
	}
	sendMsg struct {
		addr  string
		msg   wire.Message
		reply chan error
	}
	knownAddressesMsg struct {
		reply chan []addrmgr.KnownAddress
	}
	isBannedMsg struct {
		ip    string
		reply chan bool
	}
	dialResult struct {
		peer *peer.Peer
		conn net.Conn
		err  error
	}
	resolveResult struct {
		addr  string
		force bool
	}
)

// Node is a peer-to-peer node. All connection state is owned by a single loop
// goroutine, the exported methods are safe for concurrent use.
type Node struct {
	cfg        Config
	listener   net.Listener
	listenAddr *net.TCPAddr
	listen     bool
	peerCfg    *peer.Config
	handlers   map[string]HandlerFunc

	inbox    chan peer.Event
	query    chan interface{}
	accepted chan net.Conn
	dialed   chan dialResult
	resolved chan resolveResult
	mapped   chan *nat.Mapping

	ctx      context.Context
	cancel   context.CancelFunc
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	started  *atomic.Bool
	group    errgroup.Group

	dialSem       semaphore.Semaphore
	acceptLimiter *rate.Limiter
	proxy         *socks.Proxy

	// loop owned
	state          *peerState
	addrBook       *addrmgr.AddrBook
	bans           *addrmgr.BanList
	db             *peerdb.DB
	sentNonces     *lru.Cache
	bootstrap      []string
	mapping        *nat.Mapping
	rand           *rand.Rand
	lastHeartbeat  time.Time
	lastRelayDecay time.Time
	lastNATRefresh time.Time
	beats          int

	metrics   *metrics
	guessedIP *atomic.String
	natIP     *atomic.String
	bytesSent *atomic.Uint64
	bytesRecv *atomic.Uint64
}

// New binds the listen address and prepares a node. Nothing runs until Start.
func New(cfg Config) (n *Node, e error) {
	cfg.normalize()
	if cfg.LogLevel != "" {
		log.SetLogLevel(cfg.LogLevel)
	}
	bind := cfg.ListenAddr
	if bind == "" {
		bind = "127.0.0.1:0"
	}
	var ln net.Listener
	if ln, e = net.Listen("tcp4", bind); e != nil {
		if isAddrInUse(e) {
			return nil, fmt.Errorf("%w: %s", ErrAddrInUse, bind)
		}
		return nil, e
	}
	closeOnErr := func() {
		if e != nil {
			_ = ln.Close()
		}
	}
	defer closeOnErr()
	n = &Node{
		cfg:           cfg,
		listenAddr:    ln.Addr().(*net.TCPAddr),
		listen:        cfg.Listen && cfg.ListenAddr != "",
		handlers:      defaultHandlers(),
		inbox:         make(chan peer.Event, 256),
		query:         make(chan interface{}),
		accepted:      make(chan net.Conn),
		dialed:        make(chan dialResult),
		resolved:      make(chan resolveResult),
		mapped:        make(chan *nat.Mapping),
		quit:          make(chan struct{}),
		done:          make(chan struct{}),
		started:       atomic.NewBool(false),
		dialSem:       semaphore.New(MaxConcurrentDials),
		acceptLimiter: rate.NewLimiter(acceptRate, acceptBurst),
		state:         newPeerState(),
		addrBook:      addrmgr.NewAddrBook(),
		bans:          addrmgr.NewBanList(),
		rand:          rand.New(rand.NewSource(time.Now().UnixNano())),
		guessedIP:     atomic.NewString(""),
		natIP:         atomic.NewString(""),
		bytesSent:     atomic.NewUint64(0),
		bytesRecv:     atomic.NewUint64(0),
	}
	n.listener = netutil.LimitListener(ln, cfg.MaxPeers+listenerSlack)
	n.guessedIP.Store(n.listenAddr.IP.String())
	n.ctx, n.cancel = context.WithCancel(context.Background())
	if n.metrics, e = newMetrics(cfg.MetricsRegisterer); e != nil {
		return nil, e
	}
	if n.sentNonces, e = lru.New(sentNonceCacheSize); e != nil {
		return nil, e
	}
	if cfg.Bootstrap {
		for _, s := range cfg.ChainParams.DNSSeeds {
			n.bootstrap = append(n.bootstrap, s.String())
		}
	}
	if cfg.Proxy != "" {
		n.proxy = &socks.Proxy{Addr: cfg.Proxy}
	}
	n.peerCfg = &peer.Config{
		Net:             cfg.ChainParams.Net,
		ProtocolVersion: cfg.ChainParams.ProtocolVersion,
		Services:        cfg.Services,
		UserAgent:       cfg.UserAgent,
		ListenPort:      uint16(n.listenAddr.Port),
		ExternalIP:      n.ExternalIP,
		BestHeight:      cfg.BlockchainHeight,
		Inbox:           n.inbox,
		Clock:           cfg.Clock,
		Listeners: peer.Listeners{
			OnConnected:    n.connected,
			OnMessage:      n.handleMessage,
			OnInvalid:      n.invalidCommand,
			OnQueued:       n.queued,
			OnDisconnected: n.disconnected,
		},
	}
	if cfg.DataDir != "" {
		if n.db, e = peerdb.Open(cfg.DataDir); e != nil {
			return nil, e
		}
		n.loadPeerDB()
	}
	I.F("%s node bound to %s, inbound %v", cfg.ChainParams.Name, n.listenAddr, n.listen)
	return n, nil
}

// Start runs the loop, the accept loop and, when enabled, the port mapping.
func (n *Node) Start() error {
	if !n.started.CAS(false, true) {
		select {
		case <-n.quit:
			return ErrNodeStopped
		default:
			return ErrAlreadyStarted
		}
	}
	D.Ln("starting node")
	n.group.Go(n.loop)
	n.group.Go(n.acceptLoop)
	if n.listen && n.cfg.NAT {
		n.group.Go(n.mapPort)
	}
	go func() {
		if e := n.group.Wait(); E.Chk(e) {
		}
		close(n.done)
	}()
	return nil
}

// Stop shuts the node down. It returns at once, WaitForShutdown blocks until
// everything is released. Calling it more than once is harmless.
func (n *Node) Stop() {
	n.stopOnce.Do(func() {
		D.Ln("stopping node")
		close(n.quit)
		// never started, there is no loop to clean up
		if n.started.CAS(false, true) {
			n.shutdown()
			close(n.done)
		}
	})
}

// WaitForShutdown blocks until the node is stopped and its resources are
// released.
func (n *Node) WaitForShutdown() {
	<-n.done
}

// ListenAddr is the bound listen address.
func (n *Node) ListenAddr() *net.TCPAddr {
	return n.listenAddr
}

// ExternalIP is the address the node announces as its own: the router's when a
// port mapping exists, otherwise the majority claim of the peers.
func (n *Node) ExternalIP() net.IP {
	if ip := n.natIP.Load(); ip != "" {
		return net.ParseIP(ip)
	}
	return net.ParseIP(n.guessedIP.Load())
}

func (n *Node) BytesSent() uint64     { return n.bytesSent.Load() }
func (n *Node) BytesReceived() uint64 { return n.bytesRecv.Load() }

// SetLogLevel changes the logging threshold of the process.
func (n *Node) SetLogLevel(level string) {
	log.SetLogLevel(level)
}

// ask hands q to the loop.
func (n *Node) ask(q interface{}) error {
	if !n.started.Load() {
		return ErrNotStarted
	}
	select {
	case n.query <- q:
		return nil
	case <-n.quit:
		return ErrNodeStopped
	}
}

// AddPeer connects to addr. Unless force is set nothing happens when the node
// is at its peer limit. A peer already connected is not added twice.
func (n *Node) AddPeer(addr string, force bool) (bool, error) {
	q := addPeerMsg{addr: addr, force: force, reply: make(chan addPeerReply, 1)}
	if e := n.ask(q); e != nil {
		return false, e
	}
	r := <-q.reply
	return r.ok, r.err
}

// RemovePeer disconnects the peer with the given ip:port.
func (n *Node) RemovePeer(addr string) (bool, error) {
	q := removePeerMsg{addr: addr, reply: make(chan bool, 1)}
	if e := n.ask(q); e != nil {
		return false, e
	}
	return <-q.reply, nil
}

// Peers returns a snapshot of every connection, ordered by address.
func (n *Node) Peers() ([]peer.Stats, error) {
	q := getPeersMsg{reply: make(chan []peer.Stats, 1)}
	if e := n.ask(q); e != nil {
		return nil, e
	}
	return <-q.reply, nil
}

// Send queues msg to the peer with the given ip:port.
func (n *Node) Send(addr string, msg wire.Message) error {
	q := sendMsg{addr: addr, msg: msg, reply: make(chan error, 1)}
	if e := n.ask(q); e != nil {
		return e
	}
	return <-q.reply
}

// KnownAddresses returns a copy of the address book.
func (n *Node) KnownAddresses() ([]addrmgr.KnownAddress, error) {
	q := knownAddressesMsg{reply: make(chan []addrmgr.KnownAddress, 1)}
	if e := n.ask(q); e != nil {
		return nil, e
	}
	return <-q.reply, nil
}

// IsBanned reports whether inbound connections from ip are refused.
func (n *Node) IsBanned(ip string) (bool, error) {
	q := isBannedMsg{ip: ip, reply: make(chan bool, 1)}
	if e := n.ask(q); e != nil {
		return false, e
	}
	return <-q.reply, nil
}

func (n *Node) handleQuery(q interface{}) {
	switch msg := q.(type) {
	case addPeerMsg:
		ok, e := n.connect(msg.addr, msg.force)
		msg.reply <- addPeerReply{ok: ok, err: e}
	case removePeerMsg:
		p := n.state.Get(msg.addr)
		if p != nil {
			p.Close()
		}
		msg.reply <- p != nil
	case getPeersMsg:
		all := n.state.All()
		stats := make([]peer.Stats, len(all))
		for i, p := range all {
			stats[i] = p.Stats()
		}
		msg.reply <- stats
	case sendMsg:
		p := n.state.Get(msg.addr)
		if p == nil {
			msg.reply <- ErrPeerNotFound
			return
		}
		msg.reply <- p.QueueMessage(msg.msg)
	case knownAddressesMsg:
		msg.reply <- n.addrBook.Snapshot()
	case isBannedMsg:
		msg.reply <- n.bans.IsBanned(msg.ip, n.cfg.Clock())
	default:
		E.F("unknown query %T", q)
	}
}

func (n *Node) loop() error {
	T.Ln("starting node loop")
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()
	for {
		select {
		case ev := <-n.inbox:
			n.handleEvent(ev)
		case q := <-n.query:
			n.handleQuery(q)
		case conn := <-n.accepted:
			n.handleAccepted(conn)
		case r := <-n.dialed:
			n.handleDialed(r)
		case r := <-n.resolved:
			if _, e := n.connect(r.addr, r.force); E.Chk(e) {
			}
		case m := <-n.mapped:
			n.handleMapped(m)
		case <-ticker.C:
		case <-n.quit:
			n.shutdown()
			T.Ln("node loop done")
			return nil
		}
		n.tick()
	}
}

// tick runs after every wakeup of the loop.
func (n *Node) tick() {
	now := n.cfg.Clock()
	for _, p := range n.state.All() {
		p.CheckTimers(now)
	}
	if n.cfg.BeginLoop != nil {
		n.cfg.BeginLoop(n)
	}
	if now.Sub(n.lastHeartbeat) >= HeartbeatInterval {
		var elapsed time.Duration
		if !n.lastHeartbeat.IsZero() {
			elapsed = now.Sub(n.lastHeartbeat)
		}
		n.lastHeartbeat = now
		n.heartbeat(now, elapsed)
	}
	for _, p := range n.state.All() {
		p.Flush()
	}
}

func (n *Node) handleEvent(ev peer.Event) {
	switch ev.Kind {
	case peer.EventRead:
		n.bytesRecv.Add(uint64(len(ev.Data)))
		n.metrics.bytes.WithLabelValues(directionIn).Add(float64(len(ev.Data)))
	case peer.EventWritten:
		n.bytesSent.Add(uint64(ev.N))
		n.metrics.bytes.WithLabelValues(directionOut).Add(float64(ev.N))
	}
	ev.Peer.Handle(ev)
}

func (n *Node) handleAccepted(conn net.Conn) {
	remote, ok := conn.RemoteAddr().(*net.TCPAddr)
	if !ok {
		_ = conn.Close()
		return
	}
	if n.bans.IsBanned(remote.IP.String(), n.cfg.Clock()) {
		D.Ln("refusing banned", remote)
		_ = conn.Close()
		return
	}
	if !n.listen {
		_ = conn.Close()
		return
	}
	if n.state.Get(addrmgr.Key(remote.IP, uint16(remote.Port))) != nil {
		_ = conn.Close()
		return
	}
	I.Ln("incoming connection from", remote)
	p, e := peer.NewInbound(n.peerCfg, conn)
	if E.Chk(e) {
		_ = conn.Close()
		return
	}
	n.sentNonces.Add(p.VersionNonce(), nil)
	n.state.Add(p)
}

func (n *Node) handleDialed(r dialResult) {
	if r.err != nil {
		I.F("connecting to %s failed: %v", r.peer.Key(), r.err)
		r.peer.Close()
		return
	}
	if e := r.peer.Attach(r.conn); e != nil {
		D.F("dropping connection to %s: %v", r.peer.Key(), e)
		_ = r.conn.Close()
	}
}

func (n *Node) handleMapped(m *nat.Mapping) {
	n.mapping = m
	n.lastNATRefresh = n.cfg.Clock()
	if ip := m.ExternalIP(); ip != nil {
		n.natIP.Store(ip.String())
		I.Ln("external address from the router is", ip)
	}
}

// shutdown runs on the loop once quit is closed.
func (n *Node) shutdown() {
	n.cancel()
	if e := n.listener.Close(); e != nil {
		D.Ln("closing listener:", e)
	}
	// saved before the peers close, closing drops their address entries
	n.persist()
	for _, p := range n.state.All() {
		p.Close()
	}
	if n.mapping != nil {
		if e := n.mapping.Close(); E.Chk(e) {
		}
		n.mapping = nil
	}
	if n.db != nil {
		if e := n.db.Close(); E.Chk(e) {
		}
		n.db = nil
	}
}

func (n *Node) loadPeerDB() {
	if list, e := n.db.LoadAddresses(); !E.Chk(e) {
		kept := n.addrBook.Load(list)
		I.F("loaded %d known %s", kept, log.PickNoun(kept, "address", "addresses"))
	}
	if bans, e := n.db.LoadBans(); !E.Chk(e) {
		n.bans.Load(bans, n.cfg.Clock())
	}
}

func (n *Node) persist() {
	if n.db == nil {
		return
	}
	if e := n.db.SaveAddresses(n.addrBook.Snapshot()); E.Chk(e) {
	}
	if e := n.db.SaveBans(n.bans.Snapshot()); E.Chk(e) {
	}
}

// PunishPeer raises the ban score of p. Past BanThreshold its IP is banned and
// the connection closed. It must be called from a handler.
func (n *Node) PunishPeer(p *peer.Peer, reason string) {
	score := p.AddBanScore(1)
	W.F("%s misbehaved (%s), ban score %d", p, reason, score)
	if score > BanThreshold {
		I.F("banning %s for %v", p.Addr().IP, addrmgr.BanDuration)
		n.bans.Ban(p.Addr().IP.String(), n.cfg.Clock())
		n.metrics.bans.Inc()
		p.Close()
	}
}

// connected re-estimates our external IP from the claims of all peers. The
// most common claim wins, ties go to the greatest address.
func (n *Node) connected(_ *peer.Peer) {
	counter := make(map[string]int)
	n.state.ForAllPeers(func(p *peer.Peer) {
		if ip := p.ExternalIP(); ip != nil {
			counter[ip.String()]++
		}
	})
	if len(counter) == 0 {
		return
	}
	claims := make([]string, 0, len(counter))
	for ip := range counter {
		claims = append(claims, ip)
	}
	sort.Slice(claims, func(i, j int) bool {
		if counter[claims[i]] != counter[claims[j]] {
			return counter[claims[i]] < counter[claims[j]]
		}
		return claims[i] < claims[j]
	})
	guess := claims[len(claims)-1]
	if guess != n.guessedIP.Load() {
		D.Ln("peers see us as", guess)
		n.guessedIP.Store(guess)
	}
}

// disconnected forgets the address of a closed peer. Only the exact ip:port is
// removed from the address book.
func (n *Node) disconnected(p *peer.Peer) {
	n.addrBook.Remove(p.Key())
	n.state.Remove(p)
}

func (n *Node) invalidCommand(p *peer.Peer, frame []byte, e error) {
	n.metrics.invalid.Inc()
	W.F("invalid command from %s (%d bytes): %v", p, len(frame), e)
}

func (n *Node) queued(_ *peer.Peer, msg wire.Message) {
	n.metrics.messages.WithLabelValues(directionOut, msg.Command()).Inc()
}
