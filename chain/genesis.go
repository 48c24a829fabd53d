package chain

import (
	"github.com/bazukachain/bazuka/core"
	"github.com/bazukachain/bazuka/kv"
)

// installGenesis mints params.GenesisTreasuryAmount to core.Treasury in
// block 0. The genesis transaction carries an Unsigned signature, the only
// point in the chain's lifetime that is accepted.
func (c *KvStoreChain) installGenesis() error {
	mirror := kv.NewRamMirrorStore(c.store)

	tx := core.Transaction{
		Src:  core.Treasury,
		Data: core.TxData{Kind: core.TxRegularSend, Dst: core.Treasury, Amount: c.params.GenesisTreasuryAmount},
		Sig:  core.Signature{Unsigned: true},
	}
	body := []core.Transaction{tx}

	root, err := applyBody(mirror, c.state, body, core.ZeroHash, 0)
	if err != nil {
		return err
	}

	header := core.Header{ParentHash: core.ZeroHash, Number: 0, StateRoot: root}
	bodyMerkle, err := (core.Block{Header: header, Body: body}).BodyMerkleRootComputed()
	if err != nil {
		return err
	}
	header.BodyMerkleRoot = bodyMerkle
	hash := header.Hash()
	power := header.Power(c.params.PoWEnabled)

	mirror.Update([]kv.WriteOp{
		putHeader(header),
		putBody(0, body),
		putHashIndex(hash, 0),
		putHeight(0),
		putPower(power),
		putAccPower(0, power),
	})

	return c.store.Update(mirror.ToOps())
}
