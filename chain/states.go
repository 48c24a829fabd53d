package chain

import (
	"fmt"

	"github.com/bazukachain/bazuka/chainerr"
	"github.com/bazukachain/bazuka/core"
	"github.com/bazukachain/bazuka/kv"
	"github.com/bazukachain/bazuka/zk"
)

// ContractStatePatch is one contract's state as reported by an external
// prover/indexer resynchronizing after downtime: the model it was built
// with and the delta that, applied on top of the contract's current
// leaves, brings it to the reported height.
type ContractStatePatch struct {
	ID    core.ContractID
	Model zk.StateModel
	Delta zk.Delta
	// Height is the update counter the patch is expected to produce.
	Height uint64
}

// UpdateStates lets an operator re-synchronize one or more contracts'
// local state-manager leaves from an external, already-trusted source
// (e.g. after restoring a kv.LevelDBStore from backup) without replaying
// the full transaction history. A patch's height must equal the committed
// core.ContractAccount's height or be one above it. At the equal height the
// resulting root is compared with the committed one; one height ahead, the
// resulting root is stored as the new committed state without comparison.
// Any failure aborts the whole call, leaving every contract untouched.
func (c *KvStoreChain) UpdateStates(patches []ContractStatePatch) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	layer := kv.NewRamMirrorStore(c.store)
	for _, p := range patches {
		existing, err := getContractAccount(layer, p.ID)
		if err != nil {
			return err
		}
		alreadyApplied := existing.Height == p.Height
		if !alreadyApplied && existing.Height != p.Height-1 {
			return fmt.Errorf("%w: contract %s height %d does not align with patch height %d",
				chainerr.ErrInvalidState, p.ID, existing.Height, p.Height)
		}

		root, err := c.state.UpdateContract(layer, p.ID, p.Model, p.Delta, p.Height)
		if err != nil {
			return fmt.Errorf("%w: %v", chainerr.ErrInvalidState, err)
		}
		if alreadyApplied && root != existing.CompressedState {
			return fmt.Errorf("%w: contract %s patch root diverges from committed state", chainerr.ErrInvalidState, p.ID)
		}

		if err := layer.Update([]kv.WriteOp{putContractAccount(p.ID, core.ContractAccount{CompressedState: root, Height: p.Height})}); err != nil {
			return err
		}
	}
	return c.store.Update(layer.ToOps())
}
