package node

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nb-coin/new-bitcoin/pkg/chaincfg"
	"github.com/nb-coin/new-bitcoin/pkg/wire"
	"github.com/nb-coin/new-bitcoin/version"
)

const (
	DefaultSeekPeers = 16
	DefaultMaxPeers  = 125
	// HeartbeatInterval is the minimum time between two maintenance passes.
	HeartbeatInterval = 10 * time.Second
	// TickInterval bounds how long the loop sleeps without any event.
	TickInterval = time.Second
	// BanThreshold is the ban score above which a peer is banned.
	BanThreshold = 5
	// MaxDialsPerBeat is the most outbound attempts one heartbeat makes.
	MaxDialsPerBeat = 5
	// SeedChance is the one-in-N chance a heartbeat dials a bootstrap seed
	// although addresses are known.
	SeedChance = 200
	// MaxConcurrentDials limits outbound connects in flight.
	MaxConcurrentDials = 8
	// DialTimeout bounds a single outbound connect.
	DialTimeout = 30 * time.Second
	// PersistEvery is how many heartbeats pass between two saves of the peer
	// database.
	PersistEvery = 10
	// RelayDecayRate and RelayCap are the parameters of the relay throttle.
	// The throttle is not enforced.
	RelayDecayRate = 10
	RelayCap       = 1000
	// listenerSlack is how many sockets above MaxPeers the listener admits so
	// banned and surplus connections can be answered by closing them.
	listenerSlack = 8
	// sentNonceCacheSize is how many of our own version nonces are remembered.
	sentNonceCacheSize = 128
)

// Config holds everything a Node is constructed from.
type Config struct {
	// ChainParams selects the coin, defaults to chaincfg.NewBitcoinParams.
	ChainParams *chaincfg.Params
	// ListenAddr is the host:port to bind. Empty binds 127.0.0.1 on an
	// ephemeral port and refuses inbound connections.
	ListenAddr string
	// Listen accepts inbound connections when ListenAddr is set.
	Listen bool
	// SeekPeers is how many established peers the heartbeat dials for. Zero
	// leaves outbound connections to AddPeer.
	SeekPeers int
	MaxPeers  int
	// Bootstrap enables dialing the seeds of ChainParams.
	Bootstrap bool
	// DataDir holds the peer database. Empty keeps everything in memory.
	DataDir   string
	UserAgent string
	Services  wire.ServiceFlag
	// Proxy is the address of a SOCKS5 proxy for outbound connections.
	Proxy string
	// NAT enables the router port mapping when listening.
	NAT      bool
	LogLevel string
	// MetricsRegisterer receives the node metrics, a private registry is used
	// when nil.
	MetricsRegisterer prometheus.Registerer
	Clock             func() time.Time
	// BeginLoop runs once per loop iteration, on the loop goroutine.
	BeginLoop func(n *Node)
	// BlockchainHeight is announced in version messages.
	BlockchainHeight func() int32
}

// DefaultConfig returns a Config with the default peer limits for params.
func DefaultConfig(params *chaincfg.Params) Config {
	return Config{
		ChainParams: params,
		Listen:      true,
		SeekPeers:   DefaultSeekPeers,
		MaxPeers:    DefaultMaxPeers,
		Bootstrap:   true,
		NAT:         true,
		DataDir:     DefaultDataDir(),
		Services:    wire.NodeNetworkServices,
		LogLevel:    "info",
	}
}

// DefaultDataDir is $HOME/.nbc, or %APPDATA%\nbc on Windows.
func DefaultDataDir() string {
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, version.AppName)
		}
	}
	home, e := os.UserHomeDir()
	if e != nil {
		return "." + version.AppName
	}
	return filepath.Join(home, "."+version.AppName)
}

func (cfg *Config) normalize() {
	if cfg.ChainParams == nil {
		cfg.ChainParams = &chaincfg.NewBitcoinParams
	}
	if cfg.SeekPeers < 0 {
		cfg.SeekPeers = 0
	}
	if cfg.MaxPeers <= 0 {
		cfg.MaxPeers = DefaultMaxPeers
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = version.UserAgent(cfg.ChainParams.Name)
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.BlockchainHeight == nil {
		cfg.BlockchainHeight = func() int32 { return 0 }
	}
}
