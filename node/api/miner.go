package api

import (
	"encoding/json"
	"net/http"

	"github.com/bazukachain/bazuka/node"
)

func handleMinerPuzzle(nodeCtx *node.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		puzzle, err := nodeCtx.Miner().Puzzle()
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, puzzle)
	}
}

func handleMinerSolution(nodeCtx *node.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req node.MinerSolutionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		accepted, err := nodeCtx.Miner().SubmitSolution(nodeCtx, req.Nonce)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, node.MinerSolutionResponse{Accepted: accepted})
	}
}

func handleMinerWebhook(nodeCtx *node.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req node.MinerWebhookRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		nodeCtx.Miner().RegisterWebhook(req.URL)
		writeJSON(w, node.MinerAckResponse{})
	}
}
