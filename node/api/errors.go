package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bazukachain/bazuka/chainerr"
)

// errorResponse is the JSON body returned by JSON endpoints on failure.
// bincode endpoints (spec.md §7: "bincode endpoints return empty body
// plus status") return no body at all, only the status code.
type errorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// statusFor classifies err into the HTTP status spec.md §7's propagation
// policy implies: storage failure and storage corruption are server-side
// 5xx; chain-engine violations caused by the request are 4xx; sync/transport errors reaching an HTTP handler (only
// possible via NoPeers on an operation that needs a peer) are 5xx too,
// since there is no client input to blame.
func statusFor(err error) int {
	switch {
	case errors.Is(err, chainerr.ErrKvStoreFailure):
		return http.StatusInternalServerError
	case errors.Is(err, chainerr.ErrKvStoreCorrupted):
		return http.StatusInternalServerError
	case errors.Is(err, chainerr.ErrInvalidTx),
		errors.Is(err, chainerr.ErrInvalidBlock),
		errors.Is(err, chainerr.ErrInvalidStateModel),
		errors.Is(err, chainerr.ErrInvalidState),
		errors.Is(err, chainerr.ErrStateNotGiven),
		errors.Is(err, chainerr.ErrInvalidChain):
		return http.StatusBadRequest
	case errors.Is(err, chainerr.ErrEmptyChain):
		return http.StatusConflict
	case errors.Is(err, chainerr.ErrNoPeers),
		errors.Is(err, chainerr.ErrNotListening),
		errors.Is(err, chainerr.ErrNotAnswering),
		errors.Is(err, chainerr.ErrPeerMisbehaved):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func kindFor(err error) string {
	switch {
	case errors.Is(err, chainerr.ErrKvStoreFailure):
		return "KvStoreFailure"
	case errors.Is(err, chainerr.ErrKvStoreCorrupted):
		return "KvStoreCorrupted"
	case errors.Is(err, chainerr.ErrInvalidTx):
		return "InvalidTx"
	case errors.Is(err, chainerr.ErrInvalidBlock):
		return "InvalidBlock"
	case errors.Is(err, chainerr.ErrInvalidStateModel):
		return "InvalidStateModel"
	case errors.Is(err, chainerr.ErrInvalidState):
		return "InvalidState"
	case errors.Is(err, chainerr.ErrStateNotGiven):
		return "StateNotGiven"
	case errors.Is(err, chainerr.ErrEmptyChain):
		return "EmptyChain"
	case errors.Is(err, chainerr.ErrInvalidChain):
		return "InvalidChain"
	case errors.Is(err, chainerr.ErrNoPeers):
		return "NoPeers"
	case errors.Is(err, chainerr.ErrNotListening):
		return "NotListening"
	case errors.Is(err, chainerr.ErrNotAnswering):
		return "NotAnswering"
	case errors.Is(err, chainerr.ErrPeerMisbehaved):
		return "PeerMisbehaved"
	default:
		return "Internal"
	}
}

// writeError renders err as a JSON error body with a status derived from
// its kind.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Kind: kindFor(err), Message: err.Error()})
}

// writeBincodeError writes only the status code, per spec.md §7.
func writeBincodeError(w http.ResponseWriter, err error) {
	w.WriteHeader(statusFor(err))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
