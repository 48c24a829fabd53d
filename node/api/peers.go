package api

import (
	"encoding/json"
	"net/http"

	"github.com/bazukachain/bazuka/node"
)

func handleGetPeers(nodeCtx *node.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, nodeCtx.Peers())
	}
}

// handlePostPeers admits the caller's self-announcement into the peer
// table and replies with this node's own address/info/timestamp, which
// doubles as the ack (see node.PeerInfoRequest's doc comment).
func handlePostPeers(nodeCtx *node.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req node.PeerInfoRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		nodeCtx.AddOrUpdatePeer(req.Address, req.Info)

		stats, err := nodeCtx.Stats()
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, node.PeerInfoRequest{
			Address:   nodeCtx.Self(),
			Info:      node.PeerInfo{Height: stats.Height, Power: stats.Power},
			Timestamp: nodeCtx.NetworkTimestamp(),
		})
	}
}
