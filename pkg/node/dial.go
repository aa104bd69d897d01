package node

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/nb-coin/new-bitcoin/pkg/nat"
	"github.com/nb-coin/new-bitcoin/pkg/peer"
	"github.com/nb-coin/new-bitcoin/pkg/wire"
)

// connect registers an outbound peer for addr and starts dialing it. A host
// name is resolved first and the connect happens when the answer comes back.
func (n *Node) connect(addr string, force bool) (ok bool, e error) {
	var host, port string
	if host, port, e = net.SplitHostPort(addr); e != nil {
		return
	}
	if net.ParseIP(host) == nil {
		n.resolve(host, port, force)
		return true, nil
	}
	var na *wire.NetAddress
	if na, e = wire.ParseNetAddress(addr, 0); e != nil {
		return
	}
	if !force && n.state.Count() >= n.cfg.MaxPeers {
		D.Ln("not connecting to", addr, "at max peers")
		return false, nil
	}
	if n.state.Get(na.Key()) != nil {
		return false, nil
	}
	var p *peer.Peer
	if p, e = peer.NewOutbound(n.peerCfg, na); e != nil {
		return
	}
	n.sentNonces.Add(p.VersionNonce(), nil)
	n.state.Add(p)
	D.Ln("connecting to", p.Key())
	n.dial(p)
	return true, nil
}

func (n *Node) dial(p *peer.Peer) {
	addr := p.Key()
	go func() {
		var conn net.Conn
		e := n.dialSem.Acquire(n.ctx, 1)
		if e == nil {
			conn, e = n.dialConn(addr)
			n.dialSem.Release(1)
		}
		select {
		case n.dialed <- dialResult{peer: p, conn: conn, err: e}:
		case <-n.quit:
			if conn != nil {
				_ = conn.Close()
			}
		}
	}()
}

func (n *Node) dialConn(addr string) (net.Conn, error) {
	if n.proxy != nil {
		return n.proxy.Dial("tcp", addr)
	}
	d := net.Dialer{Timeout: DialTimeout}
	return d.DialContext(n.ctx, "tcp4", addr)
}

func (n *Node) resolve(host, port string, force bool) {
	go func() {
		ips, e := net.DefaultResolver.LookupIPAddr(n.ctx, host)
		if e != nil {
			I.F("resolving %s failed: %v", host, e)
			return
		}
		for _, ip := range ips {
			if ip4 := ip.IP.To4(); ip4 != nil {
				select {
				case n.resolved <- resolveResult{addr: net.JoinHostPort(ip4.String(), port), force: force}:
				case <-n.quit:
				}
				return
			}
		}
		I.Ln("no IPv4 address for", host)
	}()
}

// acceptBackoff is the pause after a failed Accept.
const acceptBackoff = 100 * time.Millisecond

func (n *Node) acceptLoop() error {
	for {
		conn, e := n.listener.Accept()
		if e != nil {
			select {
			case <-n.quit:
				return nil
			default:
			}
			if errors.Is(e, net.ErrClosed) {
				return nil
			}
			E.Ln("accept:", e)
			select {
			case <-time.After(acceptBackoff):
			case <-n.quit:
				return nil
			}
			continue
		}
		if e = n.acceptLimiter.Wait(n.ctx); e != nil {
			_ = conn.Close()
			return nil
		}
		select {
		case n.accepted <- conn:
		case <-n.quit:
			_ = conn.Close()
			return nil
		}
	}
}

// mapPort forwards the listen port on the router. Failure only costs inbound
// reachability from outside.
func (n *Node) mapPort() error {
	ctx, cancel := context.WithTimeout(n.ctx, nat.DiscoverTimeout)
	gw, e := nat.Discover(ctx)
	cancel()
	if e != nil {
		W.Ln("no port mapping:", e)
		return nil
	}
	var m *nat.Mapping
	if m, e = nat.Map(n.ctx, gw, n.listenAddr.Port, n.cfg.ChainParams.Name+" peer"); e != nil {
		W.Ln("no port mapping:", e)
		return nil
	}
	select {
	case n.mapped <- m:
	case <-n.quit:
		if e = m.Close(); E.Chk(e) {
		}
	}
	return nil
}
