package node

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	chainsync "github.com/bazukachain/bazuka/sync"
)

// Heartbeat runs the node's two periodic background tasks — chain sync
// and peer ping — as sibling goroutines coordinated by errgroup, the
// idiomatic Go analogue this codebase reaches for wherever the source
// used try_join! (core/blockchain_synchronization.go, core/chain_fork_manager.go).
type Heartbeat struct {
	ctx      *Context
	driver   *chainsync.Driver
	interval time.Duration
	log      *logrus.Entry
}

// NewHeartbeat builds a Heartbeat ticking every interval.
func NewHeartbeat(nodeCtx *Context, driver *chainsync.Driver, interval time.Duration, log *logrus.Logger) *Heartbeat {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Heartbeat{ctx: nodeCtx, driver: driver, interval: interval, log: log.WithField("component", "heartbeat")}
}

// Run blocks until ctx is cancelled or one of its loops (sync, ping, and
// the miner's loop when a Miner is attached) returns a non-recoverable
// error. Per-tick errors (a failed sync round, a failed
// ping) are logged and swallowed — only ctx cancellation ends the loop.
func (h *Heartbeat) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return h.runSyncLoop(gctx) })
	g.Go(func() error { return h.runPingLoop(gctx) })
	if miner := h.ctx.Miner(); miner != nil {
		g.Go(func() error { return miner.Run(gctx, h.ctx) })
	}
	return g.Wait()
}

func (h *Heartbeat) runSyncLoop(ctx context.Context) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := h.driver.Tick(ctx); err != nil {
				h.log.WithField("error", err).Warn("sync tick failed")
				if h.ctx.metrics != nil {
					h.ctx.metrics.syncFailures.Inc()
				}
				continue
			}
			if h.ctx.metrics != nil {
				h.ctx.metrics.syncSuccesses.Inc()
				h.ctx.metrics.Observe(h.ctx)
			}
		}
	}
}

func (h *Heartbeat) runPingLoop(ctx context.Context) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			h.ctx.PingPeers(ctx)
		}
	}
}

// PingPeers announces this node to every known peer (punished or not —
// a ping is how a punished peer's window is allowed to lapse and get
// re-evaluated) and folds each response into the peer table and the
// clock-skew estimate.
func (c *Context) PingPeers(ctx context.Context) {
	c.mu.RLock()
	addrs := make([]PeerAddress, 0, len(c.peers))
	for _, p := range c.peers {
		addrs = append(addrs, p.Address)
	}
	self := c.self
	c.mu.RUnlock()

	stats, err := c.Stats()
	if err != nil {
		c.log.WithField("error", err).Warn("ping: reading local stats")
		return
	}
	req := PeerInfoRequest{
		Address:   self,
		Info:      PeerInfo{Height: stats.Height, Power: stats.Power},
		Timestamp: c.NetworkTimestamp(),
	}

	for _, addr := range addrs {
		resp, err := c.outgoing.PostPeerInfo(ctx, addr.String(), req)
		if err != nil {
			c.Punish(chainsync.Peer{Address: addr.String()}, "did not answer ping")
			continue
		}
		c.AddOrUpdatePeer(addr, resp.Info)
		c.recordTimestampSample(resp.Timestamp)
	}
}
