package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/bazukachain/bazuka/core"
	"github.com/bazukachain/bazuka/node"
)

var errZeroBlockNumber = errors.New("api: block number must be nonzero")

// parseRange reads the since/until query parameters GET /bincode/headers
// and GET /bincode/blocks share. until absent means "up to the local
// tip", matching sync.PeerClient's own since/until contract.
func parseRange(r *http.Request) (since uint64, until *uint64, err error) {
	q := r.URL.Query()
	since, err = strconv.ParseUint(q.Get("since"), 10, 64)
	if err != nil {
		return 0, nil, err
	}
	if raw := q.Get("until"); raw != "" {
		u, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return 0, nil, err
		}
		until = &u
	}
	return since, until, nil
}

// countFor turns a [since, until) range (until nil meaning "to height")
// into the count GetHeaders/GetBlocks expect.
func countFor(since uint64, until *uint64, height uint64) uint64 {
	if until != nil {
		if *until <= since {
			return 0
		}
		return *until - since
	}
	if since > height {
		return 0
	}
	return height - since + 1
}

func handleGetHeaders(nodeCtx *node.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		since, until, err := parseRange(r)
		if err != nil {
			writeBincodeError(w, err)
			return
		}
		bc := nodeCtx.Blockchain()
		height, err := bc.GetHeight()
		if err != nil {
			writeBincodeError(w, err)
			return
		}
		headers, err := bc.GetHeaders(since, countFor(since, until, height))
		if err != nil {
			writeBincodeError(w, err)
			return
		}
		if err := rlp.Encode(w, &node.GetHeadersResponse{Headers: headers}); err != nil {
			writeBincodeError(w, err)
		}
	}
}

func handleGetBlocks(nodeCtx *node.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		since, until, err := parseRange(r)
		if err != nil {
			writeBincodeError(w, err)
			return
		}
		bc := nodeCtx.Blockchain()
		height, err := bc.GetHeight()
		if err != nil {
			writeBincodeError(w, err)
			return
		}
		blocks, err := bc.GetBlocks(since, countFor(since, until, height))
		if err != nil {
			writeBincodeError(w, err)
			return
		}
		if err := rlp.Encode(w, &node.GetBlocksResponse{Blocks: blocks}); err != nil {
			writeBincodeError(w, err)
		}
	}
}

// handlePostBlock serves POST /bincode/blocks: extend the chain with a
// single new tip block, then apply any accompanying contract-state
// patches (spec.md §9 Open Question (b): the caller invokes
// update_states explicitly, as two separate steps).
func handlePostBlock(nodeCtx *node.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req node.PostBlockRequest
		if err := rlp.Decode(r.Body, &req); err != nil {
			writeBincodeError(w, err)
			return
		}
		bc := nodeCtx.Blockchain()
		if req.Block.Header.Number == 0 {
			writeBincodeError(w, errZeroBlockNumber)
			return
		}
		at := req.Block.Header.Number - 1
		if err := bc.Extend(at, []core.Block{req.Block}); err != nil {
			writeBincodeError(w, err)
			return
		}
		if err := bc.UpdateStates(req.Patch); err != nil {
			writeBincodeError(w, err)
			return
		}

		hashes := make([]core.Hash, 0, len(req.Block.Body))
		for _, tx := range req.Block.Body {
			if h, err := tx.Hash(); err == nil {
				hashes = append(hashes, h)
			}
		}
		nodeCtx.DiscardFromMempool(hashes)

		if err := rlp.Encode(w, &node.PostBlockResponse{}); err != nil {
			writeBincodeError(w, err)
		}
	}
}
