package node

import (
	"sort"

	"github.com/nb-coin/new-bitcoin/pkg/peer"
)

// peerState indexes the live connections by ip:port. It is only touched by the
// node loop.
type peerState struct {
	peers map[string]*peer.Peer
}

func newPeerState() *peerState {
	return &peerState{peers: make(map[string]*peer.Peer)}
}

// Add registers p, it fails when its address is already present.
func (ps *peerState) Add(p *peer.Peer) bool {
	if _, ok := ps.peers[p.Key()]; ok {
		return false
	}
	ps.peers[p.Key()] = p
	return true
}

// Remove drops p if it is the peer registered under its address.
func (ps *peerState) Remove(p *peer.Peer) bool {
	if cur, ok := ps.peers[p.Key()]; ok && cur == p {
		delete(ps.peers, p.Key())
		return true
	}
	return false
}

func (ps *peerState) Get(key string) *peer.Peer {
	return ps.peers[key]
}

func (ps *peerState) Count() int {
	return len(ps.peers)
}

// All returns every peer ordered by address. The slice may be iterated while
// peers close.
func (ps *peerState) All() []*peer.Peer {
	out := make([]*peer.Peer, 0, len(ps.peers))
	for _, p := range ps.peers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// ForAllPeers is a helper function that runs closure on all peers.
func (ps *peerState) ForAllPeers(closure func(p *peer.Peer)) {
	for _, p := range ps.All() {
		closure(p)
	}
}

// Established returns the peers that finished the handshake, ordered by
// address.
func (ps *peerState) Established() (out []*peer.Peer) {
	for _, p := range ps.All() {
		if p.Established() {
			out = append(out, p)
		}
	}
	return
}
