package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/urfave/cli/v2"

	"github.com/nb-coin/new-bitcoin/pkg/chaincfg"
	"github.com/nb-coin/new-bitcoin/pkg/node"
	"github.com/nb-coin/new-bitcoin/pkg/wire"
)

// configFileName is looked up in the data directory when --config is not given.
const configFileName = "nbcnode.toml"

// settings is the process configuration as read from the config file and the
// command line.
type settings struct {
	Coin        string   `toml:"coin"`
	DataDir     string   `toml:"datadir"`
	Listen      string   `toml:"listen"`
	Accept      bool     `toml:"accept"`
	Seek        int      `toml:"seek"`
	Max         int      `toml:"max"`
	NoBootstrap bool     `toml:"nobootstrap"`
	Connect     []string `toml:"connect"`
	LogLevel    string   `toml:"loglevel"`
	LogFile     bool     `toml:"logfile"`
	NAT         bool     `toml:"nat"`
	Proxy       string   `toml:"proxy"`
	Metrics     string   `toml:"metrics"`
}

func defaultSettings() settings {
	return settings{
		Coin:     chaincfg.NewBitcoinParams.Name,
		DataDir:  node.DefaultDataDir(),
		Accept:   true,
		NAT:      true,
		Seek:     node.DefaultSeekPeers,
		Max:      node.DefaultMaxPeers,
		LogLevel: "info",
	}
}

var (
	configFlag      = &cli.StringFlag{Name: "config", Aliases: []string{"C"}, Usage: "TOML configuration `FILE`"}
	dataDirFlag     = &cli.StringFlag{Name: "datadir", Aliases: []string{"D"}, Usage: "data directory"}
	listenFlag      = &cli.StringFlag{Name: "listen", Usage: "`host:port` to bind, the port defaults to the coin's"}
	acceptFlag      = &cli.BoolFlag{Name: "accept", Value: true, Usage: "accept inbound connections"}
	seekFlag        = &cli.IntFlag{Name: "seek", Usage: "number of established peers to look for, 0 dials only --connect"}
	maxFlag         = &cli.IntFlag{Name: "max", Usage: "maximum number of connections"}
	noBootstrapFlag = &cli.BoolFlag{Name: "nobootstrap", Usage: "do not dial the seed nodes"}
	connectFlag     = &cli.StringSliceFlag{Name: "connect", Usage: "`host:port` to connect to at start, repeatable"}
	logLevelFlag    = &cli.StringFlag{Name: "loglevel", Usage: "off, fatal, error, warn, info, debug or trace"}
	logFileFlag     = &cli.BoolFlag{Name: "logfile", Usage: "also write the log to a rotated file in the data directory"}
	natFlag         = &cli.BoolFlag{Name: "nat", Value: true, Usage: "map the listen port on the router with UPnP or NAT-PMP"}
	proxyFlag       = &cli.StringFlag{Name: "proxy", Usage: "SOCKS5 proxy `host:port` for outbound connections"}
	metricsFlag     = &cli.StringFlag{Name: "metrics", Usage: "`host:port` serving prometheus metrics"}
	coinFlag        = &cli.StringFlag{Name: "coin", Usage: "coin network name or symbol"}

	nodeFlags = []cli.Flag{
		configFlag, dataDirFlag, listenFlag, acceptFlag, seekFlag, maxFlag,
		noBootstrapFlag, connectFlag, logLevelFlag, logFileFlag, natFlag,
		proxyFlag, metricsFlag, coinFlag,
	}
)

// loadSettings builds the settings from the defaults, the config file and the
// flags, each overriding the one before.
func loadSettings(c *cli.Context) (s settings, e error) {
	s = defaultSettings()
	if c.IsSet(dataDirFlag.Name) {
		s.DataDir = c.String(dataDirFlag.Name)
	}
	path := c.String(configFlag.Name)
	explicit := path != ""
	if !explicit {
		path = filepath.Join(s.DataDir, configFileName)
	}
	if e = loadFile(path, &s); e != nil {
		if explicit || !errors.Is(e, os.ErrNotExist) {
			return
		}
		e = nil
	}
	// the command line wins over the file
	if c.IsSet(dataDirFlag.Name) {
		s.DataDir = c.String(dataDirFlag.Name)
	}
	if c.IsSet(listenFlag.Name) {
		s.Listen = c.String(listenFlag.Name)
	}
	if c.IsSet(acceptFlag.Name) {
		s.Accept = c.Bool(acceptFlag.Name)
	}
	if c.IsSet(seekFlag.Name) {
		s.Seek = c.Int(seekFlag.Name)
	}
	if c.IsSet(maxFlag.Name) {
		s.Max = c.Int(maxFlag.Name)
	}
	if c.IsSet(noBootstrapFlag.Name) {
		s.NoBootstrap = c.Bool(noBootstrapFlag.Name)
	}
	if c.IsSet(connectFlag.Name) {
		s.Connect = c.StringSlice(connectFlag.Name)
	}
	if c.IsSet(logLevelFlag.Name) {
		s.LogLevel = c.String(logLevelFlag.Name)
	}
	if c.IsSet(logFileFlag.Name) {
		s.LogFile = c.Bool(logFileFlag.Name)
	}
	if c.IsSet(natFlag.Name) {
		s.NAT = c.Bool(natFlag.Name)
	}
	if c.IsSet(proxyFlag.Name) {
		s.Proxy = c.String(proxyFlag.Name)
	}
	if c.IsSet(metricsFlag.Name) {
		s.Metrics = c.String(metricsFlag.Name)
	}
	if c.IsSet(coinFlag.Name) {
		s.Coin = c.String(coinFlag.Name)
	}
	return
}

// loadFile decodes a TOML file over s. Keys it does not know are an error so a
// misspelt option does not pass silently.
func loadFile(path string, s *settings) error {
	meta, e := toml.DecodeFile(path, s)
	if e != nil {
		return e
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("%s: unknown option %q", path, undecoded[0].String())
	}
	D.Ln("loaded configuration from", path)
	return nil
}

// params finds the coin by name first, then by ticker symbol.
func (s *settings) params() (*chaincfg.Params, error) {
	if p, e := chaincfg.ByName(s.Coin); e == nil {
		return p, nil
	}
	return chaincfg.BySymbol(s.Coin)
}

// nodeConfig translates the settings into a node configuration.
func (s *settings) nodeConfig() (cfg node.Config, e error) {
	var params *chaincfg.Params
	if params, e = s.params(); e != nil {
		return
	}
	cfg = node.DefaultConfig(params)
	cfg.DataDir = s.DataDir
	cfg.Listen = s.Accept
	cfg.ListenAddr = listenAddr(s.Listen, params.DefaultPort)
	cfg.SeekPeers = s.Seek
	cfg.MaxPeers = s.Max
	cfg.Bootstrap = !s.NoBootstrap
	cfg.Proxy = s.Proxy
	cfg.NAT = s.NAT
	cfg.LogLevel = s.LogLevel
	cfg.Services = wire.NodeNetworkServices
	return
}

// listenAddr fills in the host and port missing from addr.
func listenAddr(addr string, port uint16) string {
	if addr == "" {
		return net.JoinHostPort("0.0.0.0", strconv.Itoa(int(port)))
	}
	host, p, e := net.SplitHostPort(addr)
	if e != nil {
		// a bare host
		return net.JoinHostPort(addr, strconv.Itoa(int(port)))
	}
	if host == "" {
		host = "0.0.0.0"
	}
	if p == "" {
		p = strconv.Itoa(int(port))
	}
	return net.JoinHostPort(host, p)
}
