package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bazukachain/bazuka/chain"
	"github.com/bazukachain/bazuka/config"
	"github.com/bazukachain/bazuka/kv"
	"github.com/bazukachain/bazuka/node"
	"github.com/bazukachain/bazuka/node/api"
	chainsync "github.com/bazukachain/bazuka/sync"
)

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		host       string
		port       uint16
		dbPath     string
		bootstrap  []string
		configPath string
		mine       bool
		minerBits  uint8
	)

	cmd := &cobra.Command{
		Use:   "bazuka",
		Short: "Run a bazuka node",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNode(cmd.Context(), nodeFlags{
				host:       host,
				port:       port,
				dbPath:     dbPath,
				bootstrap:  bootstrap,
				configPath: configPath,
				mine:       mine,
				minerBits:  minerBits,
			})
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "address this node listens on")
	cmd.Flags().Uint16Var(&port, "port", 3030, "port this node listens on")
	cmd.Flags().StringVar(&dbPath, "db", "", "path to the node's backing store (default <home>/.bazuka)")
	cmd.Flags().StringArrayVar(&bootstrap, "bootstrap", nil, "bootstrap peer address (host:port), repeatable")
	cmd.Flags().StringVar(&configPath, "config", "", "optional YAML config file")
	cmd.Flags().BoolVar(&mine, "mine", false, "serve the PoW puzzle/solution/webhook miner routes")
	cmd.Flags().Uint8Var(&minerBits, "miner-bits", 20, "proof-of-work difficulty (leading zero bits) when --mine is set")

	return cmd
}

type nodeFlags struct {
	host       string
	port       uint16
	dbPath     string
	bootstrap  []string
	configPath string
	mine       bool
	minerBits  uint8
}

func defaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".bazuka"), nil
}

func runNode(ctx context.Context, flags nodeFlags) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}

	log := logrus.New()
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		log.SetLevel(level)
	}

	dbPath := flags.dbPath
	if dbPath == "" {
		dbPath = cfg.Storage.DBPath
	}
	if dbPath == "" {
		dbPath, err = defaultDBPath()
		if err != nil {
			return fmt.Errorf("bazuka: resolving default db path: %w", err)
		}
	}

	durable, err := kv.OpenLevelDB(dbPath)
	if err != nil {
		return fmt.Errorf("bazuka: opening store at %s: %w", dbPath, err)
	}
	defer durable.Close()

	cached, err := kv.NewLRUStore(durable, cfg.Storage.LRUCacheEntries)
	if err != nil {
		return err
	}

	bc, err := chain.New(cached, nil, cfg.ChainParams(), log)
	if err != nil {
		return fmt.Errorf("bazuka: opening chain: %w", err)
	}

	self := node.PeerAddress{Host: flags.host, Port: flags.port}
	bootstrapPeers := make([]node.PeerAddress, 0, len(flags.bootstrap))
	for _, raw := range flags.bootstrap {
		addr, err := node.ParsePeerAddress(raw)
		if err != nil {
			return err
		}
		bootstrapPeers = append(bootstrapPeers, addr)
	}

	outgoing := node.NewOutgoingSender(0)
	registry := prometheus.NewRegistry()
	metrics := node.NewMetrics(registry)
	nodeCtx := node.NewContext(self, bootstrapPeers, bc, outgoing, metrics, log)

	if flags.mine {
		nodeCtx.SetMiner(node.NewMiner(flags.minerBits, log))
	}

	driver := chainsync.NewDriver(nodeCtx, outgoing, log)
	interval := time.Duration(cfg.Heartbeat.IntervalSeconds) * time.Second
	heartbeat := node.NewHeartbeat(nodeCtx, driver, interval, log)

	router := api.NewRouter(nodeCtx, registry)
	server := &http.Server{
		Addr:    net.JoinHostPort(flags.host, strconv.Itoa(int(flags.port))),
		Handler: router,
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return heartbeat.Run(gctx) })
	g.Go(func() error {
		log.WithField("addr", server.Addr).Info("serving HTTP API")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
