package node

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nb-coin/new-bitcoin/pkg/peer"
)

const (
	directionIn  = "in"
	directionOut = "out"
)

type metrics struct {
	peers          *prometheus.GaugeVec
	bytes          *prometheus.CounterVec
	messages       *prometheus.CounterVec
	invalid        prometheus.Counter
	bans           prometheus.Counter
	knownAddresses prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) (m *metrics, e error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m = &metrics{
		peers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "nbc_p2p_peers",
			Help: "Connections by handshake state.",
		}, []string{"state"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nbc_p2p_bytes_total",
			Help: "Bytes moved over peer connections.",
		}, []string{"direction"}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nbc_p2p_messages_total",
			Help: "Messages by direction and command.",
		}, []string{"direction", "command"}),
		invalid: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nbc_p2p_invalid_messages_total",
			Help: "Frames that failed to decode.",
		}),
		bans: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nbc_p2p_bans_total",
			Help: "Peers banned for misbehaviour.",
		}),
		knownAddresses: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nbc_p2p_known_addresses",
			Help: "Entries of the address book.",
		}),
	}
	for _, c := range []prometheus.Collector{
		m.peers, m.bytes, m.messages, m.invalid, m.bans, m.knownAddresses,
	} {
		if e = reg.Register(c); e != nil {
			return nil, e
		}
	}
	return
}

func (m *metrics) observePeers(ps *peerState, known int) {
	counts := map[peer.State]int{}
	ps.ForAllPeers(func(p *peer.Peer) {
		counts[p.State()]++
	})
	for _, s := range []peer.State{
		peer.Dialing, peer.AwaitingVersion, peer.AwaitingVerack, peer.Established,
	} {
		m.peers.WithLabelValues(s.String()).Set(float64(counts[s]))
	}
	m.knownAddresses.Set(float64(known))
}
