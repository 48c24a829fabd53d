// Package sync implements the peer-polling driver that keeps a node's
// chain in step with the heaviest peer it can see: pick the most-powerful
// peer, walk back to the common ancestor, and extend onto their chain if
// it is strictly heavier than the local one.
//
// This package depends on chain and core but never on node, to avoid the
// import cycle a direct *node.Context reference would create (node.Context
// drives this package's Driver, and the Driver needs to read node state).
// ChainView is the seam: node.Context implements it.
package sync

import (
	"context"

	"github.com/bazukachain/bazuka/chain"
	"github.com/bazukachain/bazuka/core"
)

// Peer is the subset of peer bookkeeping the sync driver needs: an
// address to fetch from and the power/height it last reported.
type Peer struct {
	Address string
	Power   uint64
	Height  uint64
}

// ChainView is the node-side seam this package consumes. Implementations
// must never block holding a write lock across a PeerClient call.
type ChainView interface {
	Blockchain() chain.Blockchain
	ActivePeers() []Peer
	// Punish records that peer misbehaved or failed to answer, so the
	// node can deprioritize or temporarily ban it.
	Punish(peer Peer, reason string)
}

// PeerClient performs the actual network calls to a peer's HTTP API. The
// node package supplies the concrete implementation (an HTTP client
// POSTing/GETting the /bincode/* routes); this package only depends on
// the interface so it stays transport-agnostic and easy to fake in tests.
type PeerClient interface {
	// GetHeaders fetches headers in [since, until); until nil means "to
	// the peer's current tip".
	GetHeaders(ctx context.Context, addr string, since uint64, until *uint64) ([]core.Header, error)
	// GetBlocks fetches full blocks in [since, until); until nil means
	// "to the peer's current tip".
	GetBlocks(ctx context.Context, addr string, since uint64, until *uint64) ([]core.Block, error)
}
