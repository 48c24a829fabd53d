// Package chain implements the append-only, fork-tolerant ledger: genesis
// install, per-transaction application, block drafting, single-block
// rollback, and multi-block reorg, all executed atomically against a
// kv.Store via a kv.RamMirrorStore.
package chain

import "github.com/bazukachain/bazuka/core"

// MaxFutureDrift bounds how far into the future a header's timestamp may
// sit relative to the local clock before it is rejected: a header stamped
// more than this many seconds ahead of now is invalid.
const MaxFutureDrift uint32 = 120

// Params configures a chain instance.
type Params struct {
	// PoWEnabled selects whether a header's power is 2^Bits (true) or a
	// flat 1 per block (false). It must be identical across every node on
	// a given network; changing it on an existing chain invalidates all
	// previously accumulated power comparisons.
	PoWEnabled bool

	// GenesisTreasuryAmount is minted to core.Treasury in block 0.
	GenesisTreasuryAmount core.Money

	// HeaderCacheSize bounds the in-memory header-metadata cache.
	HeaderCacheSize int
}

// DefaultParams mirrors spec.md §8 scenario 1: a million-unit treasury and
// proof-of-work disabled (height alone orders power).
func DefaultParams() Params {
	return Params{
		PoWEnabled:            false,
		GenesisTreasuryAmount: 1_000_000,
		HeaderCacheSize:       4096,
	}
}
