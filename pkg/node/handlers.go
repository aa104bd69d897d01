package node

import (
	"github.com/nb-coin/new-bitcoin/pkg/addrmgr"
	"github.com/nb-coin/new-bitcoin/pkg/peer"
	"github.com/nb-coin/new-bitcoin/pkg/wire"
)

// HandlerFunc handles one decoded message. It runs on the node loop.
type HandlerFunc func(n *Node, p *peer.Peer, msg wire.Message)

func defaultHandlers() map[string]HandlerFunc {
	return map[string]HandlerFunc{
		wire.CmdVersion: onVersion,
		wire.CmdVerAck:  onVerAck,
		wire.CmdPing:    onPing,
		wire.CmdPong:    onPong,
		wire.CmdGetAddr: onGetAddr,
		wire.CmdAddr:    onAddr,
		wire.CmdAlert:   onAlert,
		wire.CmdReject:  onReject,
	}
}

// Handle installs fn for command, replacing the default handler if any. It
// must be called before Start.
func (n *Node) Handle(command string, fn HandlerFunc) error {
	if n.started.Load() {
		return ErrAlreadyStarted
	}
	n.handlers[command] = fn
	return nil
}

func (n *Node) handleMessage(p *peer.Peer, msg wire.Message) {
	cmd := msg.Command()
	n.metrics.messages.WithLabelValues(directionIn, cmd).Inc()
	if h, ok := n.handlers[cmd]; ok {
		h(n, p, msg)
		return
	}
	E.F("no handler for %s from %s", wire.LogicalName(cmd), p)
}

// onVersion answers with verack. A repeated version is misbehaviour, one
// carrying a nonce we sent means we dialed ourselves.
func onVersion(n *Node, p *peer.Peer, msg wire.Message) {
	m := msg.(*wire.MsgVersion)
	if p.VersionsReceived() > 1 {
		n.PunishPeer(p, "duplicate version message")
		return
	}
	if n.sentNonces.Contains(m.Nonce) {
		I.Ln("disconnecting", p, "which is ourselves")
		p.Close()
		return
	}
	if e := p.QueueMessage(wire.NewMsgVerAck()); E.Chk(e) {
	}
}

// onVerAck records the address of a peer that acknowledged us. Its services
// are unknown until its version arrived.
func onVerAck(n *Node, p *peer.Peer, _ wire.Message) {
	na := p.Addr()
	n.addrBook.Add(addrmgr.KnownAddress{
		IP:          na.IP,
		Port:        na.Port,
		Timestamp:   n.cfg.Clock(),
		Services:    p.Services(),
		HasServices: p.VersionsReceived() > 0,
	})
}

func onPing(_ *Node, p *peer.Peer, msg wire.Message) {
	if e := p.QueueMessage(wire.NewMsgPong(msg.(*wire.MsgPing).Nonce)); E.Chk(e) {
	}
}

func onPong(*Node, *peer.Peer, wire.Message) {}

// onGetAddr serves the freshest known addresses.
func onGetAddr(n *Node, p *peer.Peer, _ wire.Message) {
	reply := wire.NewMsgAddr()
	if e := reply.AddAddresses(n.addrBook.AddressCache(addrmgr.AddressesPerAsk)...); E.Chk(e) {
		return
	}
	if e := p.QueueMessage(reply); E.Chk(e) {
	}
}

// onAddr merges gossiped addresses until the book is full.
func onAddr(n *Node, p *peer.Peer, msg wire.Message) {
	m := msg.(*wire.MsgAddr)
	var added int
	for _, na := range m.AddrList {
		if n.addrBook.Add(addrmgr.FromNetAddress(na)) {
			added++
		}
	}
	D.F("%d of %d addresses from %s kept", added, len(m.AddrList), p)
}

func onAlert(n *Node, p *peer.Peer, msg wire.Message) {
	m := msg.(*wire.MsgAlert)
	payload, e := m.Payload()
	if e != nil {
		W.F("unreadable alert from %s: %v", p, e)
		return
	}
	if key := n.cfg.ChainParams.AlertPubKey; len(key) > 0 {
		if e = m.Verify(key); e != nil {
			W.F("alert %d from %s: %v", payload.ID, p, e)
			return
		}
	}
	I.F("alert %d from %s: %s", payload.ID, p, payload.StatusBar)
}

func onReject(_ *Node, p *peer.Peer, msg wire.Message) {
	m := msg.(*wire.MsgReject)
	I.F("%s rejected %s: %v %s", p, m.Cmd, m.Code, m.Reason)
}
