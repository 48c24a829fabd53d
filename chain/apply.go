package chain

import (
	"crypto/sha256"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/bazukachain/bazuka/chainerr"
	"github.com/bazukachain/bazuka/core"
	"github.com/bazukachain/bazuka/kv"
	"github.com/bazukachain/bazuka/zk"
)

func mustRLP(v interface{}) []byte {
	b, err := rlp.EncodeToBytes(v)
	if err != nil {
		panic(fmt.Sprintf("chain: unexpected rlp encode failure: %v", err))
	}
	return b
}

func leafHash(v interface{}) core.Hash {
	return sha256.Sum256(mustRLP(v))
}

func putAccount(addr core.Address, acc core.Account) kv.WriteOp {
	return kv.Put(accountKey(addr), mustRLP(acc))
}

func putContractAccount(id core.ContractID, ca core.ContractAccount) kv.WriteOp {
	return kv.Put(contractAccountKey(id), mustRLP(ca))
}

func putContractDef(id core.ContractID, contract []byte) kv.WriteOp {
	return kv.Put(contractDefKey(id), contract)
}

func putHeader(h core.Header) kv.WriteOp {
	return kv.Put(headerKey(h.Number), mustRLP(h))
}

func putBody(number uint64, txs []core.Transaction) kv.WriteOp {
	return kv.Put(bodyKey(number), mustRLP(txs))
}

func putHashIndex(h core.Hash, number uint64) kv.WriteOp {
	return kv.Put(hashIndexKey(h), mustRLP(number))
}

func putHeight(n uint64) kv.WriteOp    { return kv.Put(heightKey(), mustRLP(n)) }
func putPower(p uint64) kv.WriteOp     { return kv.Put(powKey(), mustRLP(p)) }
func putAccPower(n, p uint64) kv.WriteOp { return kv.Put(accPowerKey(n), mustRLP(p)) }

func putRollback(n uint64, ops []kv.WriteOp) kv.WriteOp { return kv.Put(rollbackKey(n), mustRLP(ops)) }

func getAccPower(store kv.Store, n uint64) (uint64, error) {
	b, ok, err := store.Get(accPowerKey(n))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", chainerr.ErrKvStoreFailure, err)
	}
	if !ok {
		return 0, nil
	}
	var p uint64
	if err := rlp.DecodeBytes(b, &p); err != nil {
		return 0, fmt.Errorf("%w: acc power %d: %v", chainerr.ErrKvStoreCorrupted, n, err)
	}
	return p, nil
}

func getRollback(store kv.Store, n uint64) ([]kv.WriteOp, bool, error) {
	b, ok, err := store.Get(rollbackKey(n))
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", chainerr.ErrKvStoreFailure, err)
	}
	if !ok {
		return nil, false, nil
	}
	var ops []kv.WriteOp
	if err := rlp.DecodeBytes(b, &ops); err != nil {
		return nil, false, fmt.Errorf("%w: rollback record %d: %v", chainerr.ErrKvStoreCorrupted, n, err)
	}
	return ops, true, nil
}

// blockApplication accumulates the side effects of applying one block's
// transactions, in first-touch order so the resulting state commitment is
// deterministic regardless of Go map iteration order.
type blockApplication struct {
	store kv.Store
	state zk.StateManager

	accountOrder  []core.Address
	accounts      map[core.Address]core.Account
	contractOrder []core.ContractID
	contracts     map[core.ContractID]core.ContractAccount

	totalFee core.Money
}

func newBlockApplication(store kv.Store, state zk.StateManager) *blockApplication {
	return &blockApplication{
		store:     store,
		state:     state,
		accounts:  make(map[core.Address]core.Account),
		contracts: make(map[core.ContractID]core.ContractAccount),
	}
}

func (b *blockApplication) account(addr core.Address) (core.Account, error) {
	if a, ok := b.accounts[addr]; ok {
		return a, nil
	}
	return getAccount(b.store, addr)
}

func (b *blockApplication) setAccount(addr core.Address, acc core.Account) {
	if _, seen := b.accounts[addr]; !seen {
		b.accountOrder = append(b.accountOrder, addr)
	}
	b.accounts[addr] = acc
}

func (b *blockApplication) contractAccount(id core.ContractID) (core.ContractAccount, bool, error) {
	if c, ok := b.contracts[id]; ok {
		return c, true, nil
	}
	c, err := getContractAccount(b.store, id)
	if err == chainerr.ErrStateNotGiven {
		return core.ContractAccount{}, false, nil
	}
	if err != nil {
		return core.ContractAccount{}, false, err
	}
	return c, true, nil
}

func (b *blockApplication) setContractAccount(id core.ContractID, ca core.ContractAccount) {
	if _, seen := b.contracts[id]; !seen {
		b.contractOrder = append(b.contractOrder, id)
	}
	b.contracts[id] = ca
}

// ops returns the account/contract writes staged so far, without applying
// them. Callers that need a rollback record must compute it against the
// store before applying these ops.
func (b *blockApplication) ops() []kv.WriteOp {
	ops := make([]kv.WriteOp, 0, len(b.accountOrder)+len(b.contractOrder))
	for _, addr := range b.accountOrder {
		ops = append(ops, putAccount(addr, b.accounts[addr]))
	}
	for _, id := range b.contractOrder {
		ops = append(ops, putContractAccount(id, b.contracts[id]))
	}
	return ops
}

// stateRoot folds every touched account and contract into a single Merkle
// root, the header-level commitment to the resulting global state. Unlike
// the per-contract zk root (authoritative and independently recomputable)
// this is a coarse fingerprint used to detect divergence between chains
// during a fork comparison, not a full Merkle-Patricia state trie.
func (b *blockApplication) stateRoot(parentRoot core.Hash) core.Hash {
	leaves := make([]core.Hash, 0, 1+len(b.accountOrder)+len(b.contractOrder))
	leaves = append(leaves, parentRoot)
	for _, addr := range b.accountOrder {
		leaves = append(leaves, leafHash(struct {
			Addr core.Address
			Acc  core.Account
		}{addr, b.accounts[addr]}))
	}
	for _, id := range b.contractOrder {
		leaves = append(leaves, leafHash(struct {
			ID core.ContractID
			CA core.ContractAccount
		}{id, b.contracts[id]}))
	}
	return core.MerkleRoot(leaves)
}

// applyTransaction validates and applies a single transaction against the
// in-flight block application. height is the number of the block being
// built; genesis (height 0) is the only height at which an Unsigned
// signature from core.Treasury is accepted, and it mints rather than
// debits.
func (b *blockApplication) applyTransaction(tx core.Transaction, height uint64) error {
	isGenesisMint := height == 0 && tx.Sig.Unsigned && tx.Src == core.Treasury

	src, err := b.account(tx.Src)
	if err != nil {
		return err
	}

	if !isGenesisMint {
		if tx.Sig.Unsigned {
			return fmt.Errorf("%w: unsigned transaction outside genesis", chainerr.ErrInvalidTx)
		}
		if tx.Nonce != src.Nonce+1 {
			return fmt.Errorf("%w: nonce %d, expected %d", chainerr.ErrInvalidTx, tx.Nonce, src.Nonce+1)
		}
	}

	switch tx.Data.Kind {
	case core.TxRegularSend:
		return b.applyRegularSend(tx, src, isGenesisMint)
	case core.TxCreateContract:
		return b.applyCreateContract(tx, src, height)
	case core.TxUpdateContract:
		return b.applyUpdateContract(tx, src, height)
	default:
		return fmt.Errorf("%w: unknown transaction kind %d", chainerr.ErrInvalidTx, tx.Data.Kind)
	}
}

func (b *blockApplication) applyRegularSend(tx core.Transaction, src core.Account, isGenesisMint bool) error {
	dst, err := b.account(tx.Data.Dst)
	if err != nil {
		return err
	}

	if isGenesisMint {
		dst.Balance += tx.Data.Amount
		b.setAccount(tx.Data.Dst, dst)
		return nil
	}

	total := tx.Data.Amount + tx.Fee
	if src.Balance < total {
		return fmt.Errorf("%w: insufficient balance", chainerr.ErrInvalidTx)
	}
	src.Balance -= total
	src.Nonce++
	b.setAccount(tx.Src, src)

	dst.Balance += tx.Data.Amount
	b.setAccount(tx.Data.Dst, dst)

	b.totalFee += tx.Fee
	return nil
}

func (b *blockApplication) applyCreateContract(tx core.Transaction, src core.Account, height uint64) error {
	if src.Balance < tx.Fee {
		return fmt.Errorf("%w: insufficient balance for fee", chainerr.ErrInvalidTx)
	}

	if _, exists, err := b.contractAccount(tx.Data.ContractID); err != nil {
		return err
	} else if exists {
		return fmt.Errorf("%w: contract %s already exists", chainerr.ErrInvalidTx, tx.Data.ContractID)
	}

	contract, err := zk.DecodeContract(tx.Data.Contract)
	if err != nil {
		return fmt.Errorf("%w: contract payload: %v", chainerr.ErrInvalidTx, err)
	}
	if !contract.StateModel.IsValid() {
		return fmt.Errorf("%w: state model", chainerr.ErrInvalidStateModel)
	}
	if contract.InitialState != zk.EmptyCompressedState(contract.StateModel) {
		return fmt.Errorf("%w: declared initial state does not match an empty model", chainerr.ErrInvalidState)
	}

	pairs, err := zk.DecodeDataPairs(tx.Data.InitialState)
	if err != nil {
		return fmt.Errorf("%w: initial data pairs: %v", chainerr.ErrInvalidTx, err)
	}

	root, err := b.state.UpdateContract(b.store, tx.Data.ContractID, contract.StateModel, pairs.AsDelta(), 1)
	if err != nil {
		return fmt.Errorf("%w: applying initial state: %v", chainerr.ErrInvalidState, err)
	}

	src.Balance -= tx.Fee
	src.Nonce++
	b.setAccount(tx.Src, src)
	b.totalFee += tx.Fee

	encoded, err := zk.EncodeContract(contract)
	if err != nil {
		return err
	}
	if err := b.store.Update([]kv.WriteOp{putContractDef(tx.Data.ContractID, encoded)}); err != nil {
		return err
	}
	b.setContractAccount(tx.Data.ContractID, core.ContractAccount{CompressedState: root, Height: 1})
	return nil
}

func (b *blockApplication) applyUpdateContract(tx core.Transaction, src core.Account, height uint64) error {
	if src.Balance < tx.Fee {
		return fmt.Errorf("%w: insufficient balance for fee", chainerr.ErrInvalidTx)
	}

	ca, exists, err := b.contractAccount(tx.Data.ContractID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: contract %s not found", chainerr.ErrInvalidTx, tx.Data.ContractID)
	}

	defBytes, ok, err := b.store.Get(contractDefKey(tx.Data.ContractID))
	if err != nil {
		return fmt.Errorf("%w: %v", chainerr.ErrKvStoreFailure, err)
	}
	if !ok {
		return fmt.Errorf("%w: contract definition %s missing", chainerr.ErrKvStoreCorrupted, tx.Data.ContractID)
	}
	contract, err := zk.DecodeContract(defBytes)
	if err != nil {
		return fmt.Errorf("%w: contract definition: %v", chainerr.ErrKvStoreCorrupted, err)
	}

	delta, err := zk.DecodeDelta(tx.Data.Delta)
	if err != nil {
		return fmt.Errorf("%w: delta payload: %v", chainerr.ErrInvalidTx, err)
	}
	if len(tx.Data.Proof) == 0 {
		return fmt.Errorf("%w: missing proof", chainerr.ErrInvalidTx)
	}

	root, err := b.state.UpdateContract(b.store, tx.Data.ContractID, contract.StateModel, delta, ca.Height+1)
	if err != nil {
		return fmt.Errorf("%w: applying delta: %v", chainerr.ErrInvalidState, err)
	}

	src.Balance -= tx.Fee
	src.Nonce++
	b.setAccount(tx.Src, src)
	b.totalFee += tx.Fee

	b.setContractAccount(tx.Data.ContractID, core.ContractAccount{CompressedState: root, Height: ca.Height + 1})
	return nil
}

// applyBody applies every transaction in body against store in order,
// credits accumulated fees to core.Treasury, flushes every touched
// account/contract, and returns the resulting global state root. It
// mutates store directly: callers that need all-or-nothing semantics must
// pass a kv.RamMirrorStore and only flush it to the real backing store
// once applyBody succeeds.
func applyBody(store kv.Store, state zk.StateManager, body []core.Transaction, parentStateRoot core.Hash, height uint64) (core.Hash, error) {
	app := newBlockApplication(store, state)
	for i := range body {
		if err := app.applyTransaction(body[i], height); err != nil {
			return core.Hash{}, err
		}
	}
	if app.totalFee > 0 {
		treasury, err := app.account(core.Treasury)
		if err != nil {
			return core.Hash{}, err
		}
		treasury.Balance += app.totalFee
		app.setAccount(core.Treasury, treasury)
	}

	root := app.stateRoot(parentStateRoot)
	if err := store.Update(app.ops()); err != nil {
		return core.Hash{}, err
	}
	return root, nil
}

// applyLongestPrefix applies body against store one transaction at a
// time, stopping at the first one that fails to apply and keeping every
// transaction that already succeeded, rather than aborting the whole
// batch. It returns the accepted prefix alongside the resulting state
// root, for drafting a candidate block out of whatever subset of a
// mempool snapshot is still valid against current state.
func applyLongestPrefix(store kv.Store, state zk.StateManager, body []core.Transaction, parentStateRoot core.Hash, height uint64) ([]core.Transaction, core.Hash, error) {
	app := newBlockApplication(store, state)
	accepted := make([]core.Transaction, 0, len(body))
	for i := range body {
		if err := app.applyTransaction(body[i], height); err != nil {
			break
		}
		accepted = append(accepted, body[i])
	}

	if app.totalFee > 0 {
		treasury, err := app.account(core.Treasury)
		if err != nil {
			return nil, core.Hash{}, err
		}
		treasury.Balance += app.totalFee
		app.setAccount(core.Treasury, treasury)
	}

	root := app.stateRoot(parentStateRoot)
	if err := store.Update(app.ops()); err != nil {
		return nil, core.Hash{}, err
	}
	return accepted, root, nil
}

// validateHeaderChain checks header's linkage to parent, its timestamp
// policy (strictly after the parent, and, when now is supplied, no more
// than MaxFutureDrift seconds ahead of it), and, when powEnabled, that its
// hash meets the difficulty its own Bits field declares.
func validateHeaderChain(header, parentHeader core.Header, now uint32, powEnabled bool) error {
	if header.Number != parentHeader.Number+1 {
		return fmt.Errorf("%w: block number %d does not follow %d", chainerr.ErrInvalidBlock, header.Number, parentHeader.Number)
	}
	if header.ParentHash != parentHeader.Hash() {
		return fmt.Errorf("%w: parent hash mismatch", chainerr.ErrInvalidBlock)
	}
	if header.Timestamp <= parentHeader.Timestamp {
		return fmt.Errorf("%w: timestamp does not increase", chainerr.ErrInvalidBlock)
	}
	if now > 0 && header.Timestamp > now+MaxFutureDrift {
		return fmt.Errorf("%w: timestamp too far in the future", chainerr.ErrInvalidBlock)
	}
	if powEnabled && !header.MeetsDifficulty() {
		return fmt.Errorf("%w: header does not meet declared difficulty", chainerr.ErrInvalidBlock)
	}
	return nil
}

// applyBlock validates a fully-formed block (received from a peer or read
// back off disk) against parentHeader, then applies its body via
// applyBody and checks the declared state root matches what was computed.
func applyBlock(store kv.Store, state zk.StateManager, block core.Block, parentHeader core.Header, now uint32, powEnabled bool) (core.Hash, error) {
	if err := validateHeaderChain(block.Header, parentHeader, now, powEnabled); err != nil {
		return core.Hash{}, err
	}

	computedMerkle, err := block.BodyMerkleRootComputed()
	if err != nil {
		return core.Hash{}, err
	}
	if computedMerkle != block.Header.BodyMerkleRoot {
		return core.Hash{}, fmt.Errorf("%w: body merkle root mismatch", chainerr.ErrInvalidBlock)
	}

	root, err := applyBody(store, state, block.Body, parentHeader.StateRoot, block.Header.Number)
	if err != nil {
		return core.Hash{}, err
	}
	if block.Header.StateRoot != root {
		return core.Hash{}, fmt.Errorf("%w: state root mismatch", chainerr.ErrInvalidBlock)
	}
	return root, nil
}
