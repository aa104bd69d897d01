package node

import (
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/nb-coin/new-bitcoin/pkg/nat"
	"github.com/nb-coin/new-bitcoin/pkg/peer"
	"github.com/nb-coin/new-bitcoin/pkg/wire"
)

// heartbeat is the periodic maintenance pass. elapsed is zero on the first
// beat.
func (n *Node) heartbeat(now time.Time, elapsed time.Duration) {
	established := n.state.Established()
	if want := n.cfg.SeekPeers - len(established); want > 0 {
		if want > MaxDialsPerBeat {
			want = MaxDialsPerBeat
		}
		connected := mapset.NewThreadUnsafeSet[string]()
		n.state.ForAllPeers(func(p *peer.Peer) {
			connected.Add(p.Key())
		})
		for i := 0; i < want; i++ {
			n.addAnyPeer(now, connected)
		}
	}
	if len(established) > 0 && n.addrBook.NeedMoreAddresses() {
		p := established[n.rand.Intn(len(established))]
		if e := p.QueueMessage(wire.NewMsgGetAddr()); E.Chk(e) {
		}
	}
	n.state.ForAllPeers(func(p *peer.Peer) {
		p.ReduceBanScore(1)
		if elapsed > 0 {
			p.SampleRates(elapsed)
		}
	})
	n.decayRelay(now)
	n.metrics.observePeers(n.state, n.addrBook.Len())
	n.beats++
	if n.beats%PersistEvery == 0 {
		n.persist()
	}
	if n.mapping != nil && now.Sub(n.lastNATRefresh) >= nat.RefreshInterval {
		n.lastNATRefresh = now
		m := n.mapping
		go func() {
			if e := m.Refresh(); e != nil {
				W.Ln("refreshing port mapping:", e)
			}
		}()
	}
}

// addAnyPeer makes one outbound attempt. A bootstrap seed is used when no
// address is known and, rarely, otherwise. connected holds the addresses
// already in use and is updated.
func (n *Node) addAnyPeer(now time.Time, connected mapset.Set[string]) {
	if len(n.bootstrap) > 0 && (n.addrBook.Len() == 0 || n.rand.Intn(SeedChance) == 0) {
		seed := n.bootstrap[n.rand.Intn(len(n.bootstrap))]
		if connected.Contains(seed) {
			return
		}
		connected.Add(seed)
		if _, e := n.connect(seed, true); E.Chk(e) {
		}
		return
	}
	for _, key := range n.addrBook.Candidates() {
		if connected.Contains(key) {
			continue
		}
		ka, ok := n.addrBook.Get(key)
		if !ok || n.bans.IsBanned(ka.IP.String(), now) {
			continue
		}
		connected.Add(key)
		if _, e := n.connect(key, false); E.Chk(e) {
		}
		return
	}
}

// decayRelay is where the per-peer relay allowance would be replenished at
// RelayDecayRate per second up to RelayCap. Relay is not throttled, so only
// the pass time is kept.
func (n *Node) decayRelay(now time.Time) {
	n.lastRelayDecay = now
}
