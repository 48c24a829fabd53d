package node

import (
	"github.com/bazukachain/bazuka/chain"
	"github.com/bazukachain/bazuka/core"
)

// Wire request/response shapes for the HTTP surface (spec.md §6). Routes
// under /bincode/* exchange RLP ("bincode" in the distillation's Rust
// terms, RLP here — see DESIGN.md), except /bincode/transact, which takes
// JSON; everything else exchanges JSON.

// PeerInfoRequest is the body of POST /peers: a node announcing itself to
// a peer. The response carries the same shape back (the responder's own
// address/info/timestamp), which doubles as both an ack and the data the
// pinging side needs to update its peer table and clock-skew estimate —
// the source's ack is unspecified beyond "JSON ack", so this is our own
// concrete extension of it.
type PeerInfoRequest struct {
	Address   PeerAddress `json:"address"`
	Info      PeerInfo    `json:"info"`
	Timestamp Timestamp   `json:"timestamp"`
}

type TransactRequest struct {
	Tx core.Transaction `json:"tx"`
}

type TransactResponse struct{}

type GetHeadersResponse struct {
	Headers []core.Header
}

type GetBlocksResponse struct {
	Blocks []core.Block
}

// PostBlockRequest carries a single new block plus any out-of-band
// contract state patches the sender wants applied alongside it (spec.md
// §9 Open Question (b): the caller invokes update_states explicitly).
type PostBlockRequest struct {
	Block core.Block
	Patch []chain.ContractStatePatch
}

type PostBlockResponse struct{}

type MinerPuzzleResponse struct {
	HeaderBlob []byte `json:"header_blob"`
	Target     uint8  `json:"target"`
}

type MinerSolutionRequest struct {
	Nonce uint64 `json:"nonce"`
}

type MinerSolutionResponse struct {
	Accepted bool `json:"accepted"`
}

type MinerWebhookRequest struct {
	URL string `json:"url"`
}

type MinerAckResponse struct{}
