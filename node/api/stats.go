package api

import (
	"net/http"

	"github.com/bazukachain/bazuka/node"
)

func handleStats(nodeCtx *node.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := nodeCtx.Stats()
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, stats)
	}
}
