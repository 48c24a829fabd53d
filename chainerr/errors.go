// Package chainerr collects the sentinel error kinds spec.md §7 defines,
// so every layer can wrap a specific kind with errors.Is-compatible
// context instead of inventing ad-hoc error strings.
package chainerr

import "errors"

// Storage boundary.
var (
	ErrKvStoreFailure  = errors.New("kvstore failure")
	ErrKvStoreCorrupted = errors.New("kvstore data corrupted")
)

// Chain engine.
var (
	ErrInvalidTx         = errors.New("invalid transaction")
	ErrInvalidBlock      = errors.New("invalid block")
	ErrInvalidStateModel = errors.New("invalid contract state model")
	ErrInvalidState      = errors.New("invalid contract state root")
	ErrStateNotGiven     = errors.New("contract state not given")
	ErrEmptyChain        = errors.New("chain is empty")
	ErrInvalidChain      = errors.New("proposed chain is invalid or not heavier")
)

// Sync / transport.
var (
	ErrNoPeers        = errors.New("no usable peers")
	ErrNotListening   = errors.New("node is not listening")
	ErrNotAnswering   = errors.New("peer did not answer")
	ErrPeerMisbehaved = errors.New("peer misbehaved")
)
