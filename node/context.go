// Package node holds the shared mutable state a running bazuka node
// serves requests from: the chain, the peer table, the mempool, and the
// outgoing HTTP client the sync driver and peer-ping loop use to talk to
// the network. A single sync.RWMutex guards all of it, matching
// spec.md §5's "one reader-writer lock over the entire NodeContext".
package node

import (
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bazukachain/bazuka/chain"
	"github.com/bazukachain/bazuka/config"
	"github.com/bazukachain/bazuka/core"
	chainsync "github.com/bazukachain/bazuka/sync"
)

// localTimestamp is a var, not a func, so tests can freeze time the same
// way chain.nowSeconds does.
var localTimestamp = func() Timestamp { return Timestamp(time.Now().Unix()) }

// Context is the node's shared state. Reads (stats, peer list, mempool
// lookups) take the read lock; writes (mempool admission, peer table
// updates) take the write lock. It must never be held across a network
// call — PingPeers and the sync driver both snapshot under a read lock,
// release it, make their HTTP calls, then take the write lock only to
// record the outcome.
type Context struct {
	mu sync.RWMutex

	self  PeerAddress
	chain chain.Blockchain

	peers   map[string]*Peer // keyed by Peer.Address.String()
	mempool map[core.Hash]mempoolEntry

	// timestampOffsetMillis is an EMA of (peer_timestamp - local_time)
	// samples gathered during peer ping, in milliseconds so the average
	// doesn't collapse to zero by integer truncation.
	timestampOffsetMillis int64

	outgoing *OutgoingSender
	miner    *Miner
	metrics  *Metrics
	log      *logrus.Entry
}

// NewContext builds a Context for a node listening at self, seeded with
// bootstrap peers, driving bc, and dispatching outbound requests through
// outgoing.
func NewContext(self PeerAddress, bootstrap []PeerAddress, bc chain.Blockchain, outgoing *OutgoingSender, metrics *Metrics, log *logrus.Logger) *Context {
	if log == nil {
		log = logrus.StandardLogger()
	}
	peers := make(map[string]*Peer, len(bootstrap))
	for _, addr := range bootstrap {
		peers[addr.String()] = &Peer{Address: addr}
	}
	return &Context{
		self:     self,
		chain:    bc,
		peers:    peers,
		mempool:  make(map[core.Hash]mempoolEntry),
		outgoing: outgoing,
		metrics:  metrics,
		log:      log.WithField("component", "node"),
	}
}

// Blockchain implements sync.ChainView.
func (c *Context) Blockchain() chain.Blockchain { return c.chain }

// Self returns this node's own advertised address.
func (c *Context) Self() PeerAddress { return c.self }

// SetMiner attaches m as this node's PoW puzzle source, enabling
// Heartbeat's miner loop and the /miner/* routes. Passing nil disables
// mining.
func (c *Context) SetMiner(m *Miner) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.miner = m
}

// Miner returns the node's attached miner, or nil if PoW is disabled.
func (c *Context) Miner() *Miner {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.miner
}

// ActivePeers implements sync.ChainView: every known peer with reported
// info that is not currently punished.
func (c *Context) ActivePeers() []chainsync.Peer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	now := c.networkTimestampLocked()
	out := make([]chainsync.Peer, 0, len(c.peers))
	for _, p := range c.peers {
		if p.Info == nil || p.IsPunished(now) {
			continue
		}
		out = append(out, chainsync.Peer{Address: p.Address.String(), Power: p.Info.Power, Height: p.Info.Height})
	}
	return out
}

// Punish implements sync.ChainView. reason is a human-readable
// description rather than a typed enum (matching the HTTP layer's own
// loosely-typed error reporting); misbehavior earns a harsher backoff
// than a simple timeout.
func (c *Context) Punish(peer chainsync.Peer, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.peers[peer.Address]
	if !ok {
		return
	}
	now := c.networkTimestampLocked()
	secs := config.MinPunish
	if strings.Contains(reason, "misbehav") || strings.Contains(reason, "invalid") {
		secs = config.MisbehaviorPunish
	}
	p.Punish(now, secs)
	c.log.WithFields(logrus.Fields{"peer": peer.Address, "reason": reason, "punished_until": p.PunishedUntil}).Warn("peer punished")
}

// AddOrUpdatePeer records a peer learned about via POST /peers or a
// successful ping response.
func (c *Context) AddOrUpdatePeer(addr PeerAddress, info PeerInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := addr.String()
	p, ok := c.peers[key]
	if !ok {
		p = &Peer{Address: addr}
		c.peers[key] = p
	}
	infoCopy := info
	p.Info = &infoCopy
}

// Peers returns a snapshot of the peer table for GET /peers.
func (c *Context) Peers() []Peer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Peer, 0, len(c.peers))
	for _, p := range c.peers {
		out = append(out, *p)
	}
	return out
}

// Stats is the payload behind GET /stats.
type Stats struct {
	Height uint64 `json:"height"`
	Power  uint64 `json:"power"`
	Peers  int    `json:"peers"`
}

func (c *Context) Stats() (Stats, error) {
	height, err := c.chain.GetHeight()
	if err != nil {
		return Stats{}, err
	}
	power, err := c.chain.GetPower()
	if err != nil {
		return Stats{}, err
	}
	c.mu.RLock()
	n := len(c.peers)
	c.mu.RUnlock()
	return Stats{Height: height, Power: power, Peers: n}, nil
}

// NetworkTimestamp returns this node's best estimate of network time:
// its local clock adjusted by the smoothed peer clock-skew offset.
func (c *Context) NetworkTimestamp() Timestamp {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.networkTimestampLocked()
}

func (c *Context) networkTimestampLocked() Timestamp {
	return Timestamp(int64(localTimestamp()) + c.timestampOffsetMillis/1000)
}

// recordTimestampSample folds one (peerTimestamp - localTime) sample
// into the smoothed clock-skew offset via an exponential moving average.
// The smoothing constant is this implementation's own choice: the source
// tracks a timestamp_offset field but never specifies how it is derived
// (spec.md §9 Open Question (c) covers only block timestamp *validation*,
// not this separate estimation problem).
const timestampSmoothing = 0.2

func (c *Context) recordTimestampSample(peerTimestamp Timestamp) {
	sampleMillis := (int64(peerTimestamp) - int64(localTimestamp())) * 1000
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timestampOffsetMillis = int64(timestampSmoothing*float64(sampleMillis) + (1-timestampSmoothing)*float64(c.timestampOffsetMillis))
}

// SubmitTransaction admits tx into the mempool iff its signature is
// valid and its sender's balance is nonzero (spec.md §4.7's mempool spam
// guard); otherwise it is silently dropped, matching the source's
// transact() handler, which always returns an empty ack regardless.
func (c *Context) SubmitTransaction(tx core.Transaction) error {
	acc, err := c.chain.GetAccount(tx.Src)
	if err != nil {
		return err
	}
	if acc.Balance == 0 || !tx.VerifySignature() {
		return nil
	}
	h, err := tx.Hash()
	if err != nil {
		return err
	}
	now := c.NetworkTimestamp()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mempool[h] = mempoolEntry{Tx: tx, Stats: TransactionStats{FirstSeen: now}}
	return nil
}

// MempoolSize reports how many transactions are currently pending.
func (c *Context) MempoolSize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.mempool)
}

// DiscardFromMempool removes txs (by hash) from the mempool, called once
// they have been committed to the chain by a drafted-and-extended block.
func (c *Context) DiscardFromMempool(hashes []core.Hash) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, h := range hashes {
		delete(c.mempool, h)
	}
}
