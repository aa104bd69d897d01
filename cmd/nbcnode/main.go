// Command nbcnode runs a newbitcoin peer-to-peer node. It keeps connections to
// the network, gossips addresses and answers pings until it receives SIGINT or
// SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/nb-coin/new-bitcoin/pkg/log"
	"github.com/nb-coin/new-bitcoin/pkg/node"
	"github.com/nb-coin/new-bitcoin/version"
)

// metricsShutdownTimeout bounds the wait for in-flight scrapes on exit.
const metricsShutdownTimeout = 5 * time.Second

func main() {
	if e := newApp().Run(os.Args); e != nil {
		fmt.Fprintln(os.Stderr, e)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "nbcnode",
		Usage:   "newbitcoin peer-to-peer node",
		Version: version.Tag,
		Flags:   nodeFlags,
		Action:  runNode,
		Commands: []*cli.Command{
			{
				Name:  "version",
				Usage: "print the build information",
				Action: func(c *cli.Context) error {
					_, e := fmt.Fprintln(c.App.Writer, version.Get())
					return e
				},
			},
		},
	}
}

func runNode(c *cli.Context) (e error) {
	var s settings
	if s, e = loadSettings(c); e != nil {
		return
	}
	log.SetLogLevel(s.LogLevel)
	if s.LogFile {
		if e = log.SetLogWriteToFile(s.DataDir, version.AppName); e != nil {
			return
		}
		defer func() {
			if e := log.CloseLogFile(); E.Chk(e) {
			}
		}()
	}
	var cfg node.Config
	if cfg, e = s.nodeConfig(); e != nil {
		return
	}
	var metricsServer *http.Server
	if s.Metrics != "" {
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		cfg.MetricsRegisterer = registry
		metricsServer = serveMetrics(s.Metrics, registry)
	}
	var n *node.Node
	if n, e = node.New(cfg); e != nil {
		if errors.Is(e, node.ErrAddrInUse) {
			return fmt.Errorf("%w, is another node running?", e)
		}
		return
	}
	if e = n.Start(); e != nil {
		return
	}
	I.F("%s %s started on %s", c.App.Name, version.Tag, n.ListenAddr())
	for _, addr := range s.Connect {
		if _, e := n.AddPeer(addr, true); E.Chk(e) {
		}
	}
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	I.Ln("shutting down")
	n.Stop()
	n.WaitForShutdown()
	if metricsServer != nil {
		sctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if e := metricsServer.Shutdown(sctx); E.Chk(e) {
		}
	}
	I.Ln("node stopped")
	return nil
}

// serveMetrics exposes registry on addr under /metrics.
func serveMetrics(addr string, registry *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		I.Ln("metrics listening on", addr)
		if e := srv.ListenAndServe(); e != nil && !errors.Is(e, http.ErrServerClosed) {
			E.Ln("metrics server:", e)
		}
	}()
	return srv
}
