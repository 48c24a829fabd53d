package api

import (
	"encoding/json"
	"net/http"

	"github.com/bazukachain/bazuka/node"
)

// handleTransact serves POST /bincode/transact. Despite the path prefix
// this route is JSON, a quirk of the original router carried over
// verbatim (see DESIGN.md).
func handleTransact(nodeCtx *node.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req node.TransactRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := nodeCtx.SubmitTransaction(req.Tx); err != nil {
			writeError(w, err)
			return
		}
		// Always an empty ack, admitted or not (spec.md §8 scenario 6):
		// a rejected transaction is not reported as an error.
		writeJSON(w, node.TransactResponse{})
	}
}
