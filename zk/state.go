package zk

import (
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/bazukachain/bazuka/core"
	"github.com/bazukachain/bazuka/kv"
)

// StateManager is the interface the chain engine consumes (spec.md §3,
// "State manager (external)"): apply a delta against a contract's
// committed leaves and compute its resulting root. Implementations own
// the entire "S-<id>-..." key sub-space and nothing else.
type StateManager interface {
	// UpdateContract applies delta's leaf writes to contract id and
	// records the new update-counter height. It returns the resulting
	// compressed-state root.
	UpdateContract(store kv.Store, id core.ContractID, model StateModel, delta Delta, height uint64) (core.Hash, error)
	// Root returns the compressed state currently committed for id.
	Root(store kv.Store, id core.ContractID, model StateModel) (core.Hash, error)
}

// KvStateManager is the default StateManager: leaves live under
// "S-<id>-L-<index>", the update counter under "S-<id>-HGT", and the last
// computed root (cached, not authoritative) under "S-<id>-RT". The root
// is always recomputed as a plain Merkle tree over model.LeafCount()
// leaves, each defaulting to the zero hash until written.
type KvStateManager struct{}

func leafKey(id core.ContractID, index uint64) string {
	return fmt.Sprintf("S-%s-L-%s", id, strconv.FormatUint(index, 10))
}

func heightKey(id core.ContractID) string { return fmt.Sprintf("S-%s-HGT", id) }
func rootKey(id core.ContractID) string   { return fmt.Sprintf("S-%s-RT", id) }

func (KvStateManager) UpdateContract(store kv.Store, id core.ContractID, model StateModel, delta Delta, height uint64) (core.Hash, error) {
	ops := make([]kv.WriteOp, 0, len(delta.Pairs)+2)
	for _, p := range delta.Pairs {
		if p.Index >= model.LeafCount() {
			return core.Hash{}, fmt.Errorf("zk: leaf index %d out of range for model with %d leaves", p.Index, model.LeafCount())
		}
		b, err := rlp.EncodeToBytes(p.Value)
		if err != nil {
			return core.Hash{}, err
		}
		ops = append(ops, kv.Put(leafKey(id, p.Index), b))
	}

	root, err := computeRoot(store, id, model, ops)
	if err != nil {
		return core.Hash{}, err
	}

	heightBytes, err := rlp.EncodeToBytes(height)
	if err != nil {
		return core.Hash{}, err
	}
	rootBytes, err := rlp.EncodeToBytes(root)
	if err != nil {
		return core.Hash{}, err
	}
	ops = append(ops, kv.Put(heightKey(id), heightBytes), kv.Put(rootKey(id), rootBytes))

	if err := store.Update(ops); err != nil {
		return core.Hash{}, err
	}
	return root, nil
}

func (KvStateManager) Root(store kv.Store, id core.ContractID, model StateModel) (core.Hash, error) {
	return computeRoot(store, id, model, nil)
}

// computeRoot folds model.LeafCount() leaves into a Merkle root, reading
// each from the store except for indices about to be overwritten by
// pending (not-yet-applied) ops, which are read straight out of those
// ops instead so UpdateContract can compute the post-write root before
// issuing the batch.
func computeRoot(store kv.Store, id core.ContractID, model StateModel, pending []kv.WriteOp) (core.Hash, error) {
	pendingByKey := make(map[string][]byte, len(pending))
	for _, op := range pending {
		pendingByKey[op.Key] = op.Value
	}

	n := model.LeafCount()
	leaves := make([]core.Hash, n)
	for i := uint64(0); i < n; i++ {
		key := leafKey(id, i)
		if b, ok := pendingByKey[key]; ok {
			var v core.Hash
			if err := rlp.DecodeBytes(b, &v); err != nil {
				return core.Hash{}, err
			}
			leaves[i] = v
			continue
		}
		b, ok, err := store.Get(key)
		if err != nil {
			return core.Hash{}, err
		}
		if !ok {
			continue // zero value
		}
		var v core.Hash
		if err := rlp.DecodeBytes(b, &v); err != nil {
			return core.Hash{}, err
		}
		leaves[i] = v
	}
	return core.MerkleRoot(leaves), nil
}
