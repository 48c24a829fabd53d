package chain

import (
	"fmt"

	"github.com/bazukachain/bazuka/chainerr"
	"github.com/bazukachain/bazuka/core"
	"github.com/bazukachain/bazuka/kv"
	"github.com/bazukachain/bazuka/zk"
)

// commitBlock validates and applies block against a fresh mirror layer
// over parentStore, isolating this block's writes, then stamps on the
// bookkeeping writes (header, body, hash index, height, accumulated
// power) and computes this block's rollback record against parentStore.
// It returns the block's full op set (suitable for folding into an
// enclosing workspace mirror) and its own accumulated power.
func commitBlock(parentStore kv.Store, state zk.StateManager, block core.Block, parentHeader core.Header, parentAccPower uint64, powEnabled bool, now uint32) (ops []kv.WriteOp, accPower uint64, err error) {
	layer := kv.NewRamMirrorStore(parentStore)

	if _, err := applyBlock(layer, state, block, parentHeader, now, powEnabled); err != nil {
		return nil, 0, err
	}

	power := block.Header.Power(powEnabled)
	accPower = parentAccPower + power
	hash := block.Header.Hash()

	layer.Update([]kv.WriteOp{
		putHeader(block.Header),
		putBody(block.Header.Number, block.Body),
		putHashIndex(hash, block.Header.Number),
		putHeight(block.Header.Number),
		putPower(accPower),
		putAccPower(block.Header.Number, accPower),
	})

	preRollbackOps := layer.ToOps()
	rollback, err := kv.RollbackOf(parentStore, preRollbackOps)
	if err != nil {
		return nil, 0, err
	}
	layer.Update([]kv.WriteOp{putRollback(block.Header.Number, rollback)})

	return layer.ToOps(), accPower, nil
}

// rollbackOneBlock undoes block n against workspace: applies its stored
// RLB-<n> record, then removes the header/body/hash-index/rollback/power
// bookkeeping entries n introduced.
func rollbackOneBlock(workspace *kv.RamMirrorStore, n uint64) error {
	header, ok, err := getHeader(workspace, n)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: header %d missing during rollback", chainerr.ErrKvStoreCorrupted, n)
	}
	rollbackOps, ok, err := getRollback(workspace, n)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: rollback record %d missing", chainerr.ErrKvStoreCorrupted, n)
	}

	workspace.Update(rollbackOps)
	workspace.Update([]kv.WriteOp{
		kv.Remove(headerKey(n)),
		kv.Remove(bodyKey(n)),
		kv.Remove(hashIndexKey(header.Hash())),
		kv.Remove(rollbackKey(n)),
		kv.Remove(accPowerKey(n)),
	})
	return nil
}

// rollbackTo pops blocks currentHeight down to at+1 (inclusive) from
// workspace, leaving workspace's height and power keys pointing at at.
func rollbackTo(workspace *kv.RamMirrorStore, currentHeight, at uint64) error {
	for n := currentHeight; n > at; n-- {
		if err := rollbackOneBlock(workspace, n); err != nil {
			return err
		}
	}
	atPower, err := getAccPower(workspace, at)
	if err != nil {
		return err
	}
	workspace.Update([]kv.WriteOp{putHeight(at), putPower(atPower)})
	return nil
}

// WillExtend reports whether headers, if applied on top of the block at
// height at, would produce a chain strictly heavier (by accumulated
// power) than the current tip. It performs no writes and does not inspect
// transaction bodies; a true result only means fetching and attempting
// Extend with the corresponding blocks is worthwhile, not that those
// blocks are valid.
func (c *KvStoreChain) WillExtend(at uint64, headers []core.Header) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(headers) == 0 {
		return false, nil
	}

	currentHeight, ok, err := c.readHeight()
	if err != nil {
		return false, err
	}
	if !ok {
		return false, chainerr.ErrEmptyChain
	}
	if at > currentHeight {
		return false, fmt.Errorf("%w: fork point %d is beyond tip %d", chainerr.ErrInvalidChain, at, currentHeight)
	}

	anchor, ok, err := getHeader(c.store, at)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, fmt.Errorf("%w: no header at %d", chainerr.ErrInvalidChain, at)
	}

	atPower, err := getAccPower(c.store, at)
	if err != nil {
		return false, err
	}
	currentPower, err := getAccPower(c.store, currentHeight)
	if err != nil {
		return false, err
	}

	parent := anchor
	candidatePower := atPower
	for _, h := range headers {
		if err := validateHeaderChain(h, parent, 0, c.params.PoWEnabled); err != nil {
			return false, nil
		}
		candidatePower += h.Power(c.params.PoWEnabled)
		parent = h
	}

	return candidatePower > currentPower, nil
}

// Extend rolls the chain back to height at (a no-op if at already equals
// the current tip), applies blocks in order on top of it, and commits the
// whole operation atomically: either every rollback and every new block
// succeeds and becomes visible together, or none of it does.
func (c *KvStoreChain) Extend(at uint64, blocks []core.Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(blocks) == 0 {
		return nil
	}

	currentHeight, ok, err := c.readHeight()
	if err != nil {
		return err
	}
	if !ok {
		return chainerr.ErrEmptyChain
	}
	if at > currentHeight {
		return fmt.Errorf("%w: fork point %d is beyond tip %d", chainerr.ErrInvalidChain, at, currentHeight)
	}

	workspace := kv.NewRamMirrorStore(c.store)
	if at < currentHeight {
		if err := rollbackTo(workspace, currentHeight, at); err != nil {
			return err
		}
	}

	parentHeader, ok, err := getHeader(workspace, at)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: no header at %d", chainerr.ErrInvalidChain, at)
	}
	parentAccPower, err := getAccPower(workspace, at)
	if err != nil {
		return err
	}

	now := nowSeconds()
	for i := range blocks {
		ops, accPower, err := commitBlock(workspace, c.state, blocks[i], parentHeader, parentAccPower, c.params.PoWEnabled, now)
		if err != nil {
			return err
		}
		workspace.Update(ops)
		parentHeader = blocks[i].Header
		parentAccPower = accPower
	}

	if err := c.store.Update(workspace.ToOps()); err != nil {
		return err
	}
	c.log.WithField("fork_point", at).WithField("blocks", len(blocks)).Info("chain extended")
	return nil
}

// RollbackBlock pops the single current tip block, restoring the chain to
// its previous height.
func (c *KvStoreChain) RollbackBlock() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	height, ok, err := c.readHeight()
	if err != nil {
		return err
	}
	if !ok || height == 0 {
		return chainerr.ErrEmptyChain
	}

	workspace := kv.NewRamMirrorStore(c.store)
	if err := rollbackOneBlock(workspace, height); err != nil {
		return err
	}
	atPower, err := getAccPower(workspace, height-1)
	if err != nil {
		return err
	}
	workspace.Update([]kv.WriteOp{putHeight(height - 1), putPower(atPower)})

	return c.store.Update(workspace.ToOps())
}

// DraftBlock builds a candidate block extending the current tip: it
// simulates applying txs against a throwaway mirror, one transaction at a
// time, to compute the resulting state root and body merkle root, then
// discards the mirror. A transaction that fails to apply (a stale nonce
// or an already-spent balance, typically a mempool snapshot that has
// since moved on) is dropped rather than aborting the whole draft; the
// block's body is the longest prefix of txs that applies cleanly atop
// current state. The caller (the node's miner) is responsible for
// setting Bits/Nonce and, once satisfied, committing the block via
// Extend; DraftBlock never mutates the chain itself.
func (c *KvStoreChain) DraftBlock(timestamp uint32, txs []core.Transaction, producer core.Address) (core.Block, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	height, ok, err := c.readHeight()
	if err != nil {
		return core.Block{}, err
	}
	if !ok {
		return core.Block{}, chainerr.ErrEmptyChain
	}
	parentHeader, ok, err := getHeader(c.store, height)
	if err != nil {
		return core.Block{}, err
	}
	if !ok {
		return core.Block{}, fmt.Errorf("%w: missing tip header", chainerr.ErrKvStoreCorrupted)
	}

	layer := kv.NewRamMirrorStore(c.store)
	accepted, root, err := applyLongestPrefix(layer, c.state, txs, parentHeader.StateRoot, height+1)
	if err != nil {
		return core.Block{}, err
	}

	header := core.Header{
		ParentHash: parentHeader.Hash(),
		Number:     height + 1,
		StateRoot:  root,
		Timestamp:  timestamp,
	}
	block := core.Block{Header: header, Body: accepted}
	merkle, err := block.BodyMerkleRootComputed()
	if err != nil {
		return core.Block{}, err
	}
	block.Header.BodyMerkleRoot = merkle
	return block, nil
}
