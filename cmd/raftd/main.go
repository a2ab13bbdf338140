// Command raftd runs a single node of a raftkv cluster: it loads the
// node's static cluster configuration, opens its durable state, and wires
// together the consensus core, its TCP transport, and a Prometheus
// /metrics endpoint, the way bundoc-server's main.go wires a raft.Node to
// its own TCP listener and HTTP server, but expressed through cobra the way
// platform/cmd/cli does instead of the bare flag package.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/kartikbazzad/raftkv/fsm"
	"github.com/kartikbazzad/raftkv/internal/config"
	"github.com/kartikbazzad/raftkv/internal/logger"
	"github.com/kartikbazzad/raftkv/internal/metrics"
	"github.com/kartikbazzad/raftkv/raft"
	"github.com/kartikbazzad/raftkv/store"
	"github.com/kartikbazzad/raftkv/transport"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "raftd",
	Short: "raftd runs a single node of a raftkv cluster",
	RunE:  runServe,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "raftd.yaml", "path to this node's cluster config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger.Init(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	log := logger.Get().With("node_id", cfg.NodeID)

	state, err := store.OpenPersistentState(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("raftd: open state: %w", err)
	}
	defer state.Close()

	machine := fsm.New()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	tcpTransport := transport.NewTCPTransport()
	sender := transport.WithAddressMap(tcpTransport, cfg.Peers)

	nodeCfg := &raft.Config{
		ID:                  cfg.NodeID,
		Peers:               cfg.PeerIDs(),
		DataDir:             cfg.DataDir,
		ElectionMinTimeout:  cfg.ElectionMinTimeout(),
		ElectionMaxTimeout:  cfg.ElectionMaxTimeout(),
		HeartbeatInterval:   cfg.Heartbeat(),
		RPCTimeout:          cfg.RPCTimeout(),
		MaxEntriesPerAppend: 64,
		MaxAppendRetries:    3,
		AppendRetryInterval: cfg.Heartbeat(),
	}

	node := raft.NewNode(nodeCfg, state, machine, sender, log, m)
	node.Start()
	defer node.Stop()

	clientSink := raft.NewClientSink(node)
	server, err := transport.ListenTCP(cfg.ListenAddr, node, clientSink)
	if err != nil {
		return fmt.Errorf("raftd: listen: %w", err)
	}
	server.WithLogger(log)
	go func() {
		if err := server.Serve(); err != nil {
			log.Error("tcp server stopped", "error", err)
		}
	}()
	defer server.Close()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server stopped", "error", err)
			}
		}()
		defer metricsServer.Shutdown(context.Background())
	}

	log.Info("raftd started", "listen_addr", cfg.ListenAddr, "peers", cfg.PeerIDs())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")
	return nil
}
