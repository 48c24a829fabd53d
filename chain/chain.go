package chain

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/sirupsen/logrus"

	"github.com/bazukachain/bazuka/chainerr"
	"github.com/bazukachain/bazuka/core"
	"github.com/bazukachain/bazuka/kv"
	"github.com/bazukachain/bazuka/zk"
)

// Blockchain is the interface the node and sync packages consume. Every
// method is safe for concurrent use; write operations (Extend,
// RollbackBlock) take an exclusive lock for their whole duration.
type Blockchain interface {
	GetHeight() (uint64, error)
	GetPower() (uint64, error)
	GetHeader(number uint64) (core.Header, bool, error)
	GetHeaders(since, count uint64) ([]core.Header, error)
	GetBlocks(since, count uint64) ([]core.Block, error)
	GetAccount(addr core.Address) (core.Account, error)
	GetContractAccount(id core.ContractID) (core.ContractAccount, error)

	// HeaderMetaByHash returns the cached projection of the header whose
	// hash is h, used by the sync driver's ancestor walk.
	HeaderMetaByHash(h core.Hash) (HeaderMeta, bool, error)

	WillExtend(at uint64, headers []core.Header) (bool, error)
	Extend(at uint64, blocks []core.Block) error
	RollbackBlock() error
	DraftBlock(timestamp uint32, txs []core.Transaction, producer core.Address) (core.Block, error)
	UpdateStates(patches []ContractStatePatch) error
}

// KvStoreChain is the default Blockchain backed by a kv.Store.
//
// mu serializes every write path (Extend, RollbackBlock, UpdateStates).
// Reads, including DraftBlock, which never commits, take the read lock; none of them perform network or disk
// I/O beyond the wrapped store, so holding it briefly never risks blocking
// on a peer.
type KvStoreChain struct {
	mu      sync.RWMutex
	store   kv.Store
	state   zk.StateManager
	headers *HeaderMetaCache
	params  Params
	log     *logrus.Entry
}

// New opens (and, if empty, installs the genesis block into) a chain over
// store. state may be nil, in which case zk.KvStateManager{} is used.
func New(store kv.Store, state zk.StateManager, params Params, log *logrus.Logger) (*KvStoreChain, error) {
	if state == nil {
		state = zk.KvStateManager{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	cache, err := NewHeaderMetaCache(params.HeaderCacheSize)
	if err != nil {
		return nil, err
	}
	c := &KvStoreChain{store: store, state: state, headers: cache, params: params, log: log.WithField("component", "chain")}

	_, ok, err := c.readHeight()
	if err != nil {
		return nil, err
	}
	if !ok {
		if err := c.installGenesis(); err != nil {
			return nil, fmt.Errorf("chain: installing genesis: %w", err)
		}
		c.log.Info("genesis block installed")
	}
	return c, nil
}

func (c *KvStoreChain) readHeight() (uint64, bool, error) {
	b, ok, err := c.store.Get(heightKey())
	if err != nil {
		return 0, false, fmt.Errorf("%w: %v", chainerr.ErrKvStoreFailure, err)
	}
	if !ok {
		return 0, false, nil
	}
	var h uint64
	if err := rlp.DecodeBytes(b, &h); err != nil {
		return 0, false, fmt.Errorf("%w: height: %v", chainerr.ErrKvStoreCorrupted, err)
	}
	return h, true, nil
}

func (c *KvStoreChain) GetHeight() (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok, err := c.readHeight()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, chainerr.ErrEmptyChain
	}
	return h, nil
}

func (c *KvStoreChain) GetPower() (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok, err := c.store.Get(powKey())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", chainerr.ErrKvStoreFailure, err)
	}
	if !ok {
		return 0, nil
	}
	var p uint64
	if err := rlp.DecodeBytes(b, &p); err != nil {
		return 0, fmt.Errorf("%w: power: %v", chainerr.ErrKvStoreCorrupted, err)
	}
	return p, nil
}

func (c *KvStoreChain) GetHeader(number uint64) (core.Header, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return getHeader(c.store, number)
}

func getHeader(store kv.Store, number uint64) (core.Header, bool, error) {
	b, ok, err := store.Get(headerKey(number))
	if err != nil {
		return core.Header{}, false, fmt.Errorf("%w: %v", chainerr.ErrKvStoreFailure, err)
	}
	if !ok {
		return core.Header{}, false, nil
	}
	var h core.Header
	if err := rlp.DecodeBytes(b, &h); err != nil {
		return core.Header{}, false, fmt.Errorf("%w: header %d: %v", chainerr.ErrKvStoreCorrupted, number, err)
	}
	return h, true, nil
}

func getBody(store kv.Store, number uint64) ([]core.Transaction, bool, error) {
	b, ok, err := store.Get(bodyKey(number))
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", chainerr.ErrKvStoreFailure, err)
	}
	if !ok {
		return nil, false, nil
	}
	var txs []core.Transaction
	if err := rlp.DecodeBytes(b, &txs); err != nil {
		return nil, false, fmt.Errorf("%w: body %d: %v", chainerr.ErrKvStoreCorrupted, number, err)
	}
	return txs, true, nil
}

// GetHeaders returns up to count consecutive headers starting at since.
func (c *KvStoreChain) GetHeaders(since, count uint64) ([]core.Header, error) {
	height, err := c.GetHeight()
	if err != nil {
		return nil, err
	}
	var out []core.Header
	for n := since; n < since+count && n <= height; n++ {
		h, ok, err := c.GetHeader(n)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		out = append(out, h)
	}
	return out, nil
}

// GetBlocks returns up to count consecutive blocks starting at since.
func (c *KvStoreChain) GetBlocks(since, count uint64) ([]core.Block, error) {
	height, err := c.GetHeight()
	if err != nil {
		return nil, err
	}
	var out []core.Block
	for n := since; n < since+count && n <= height; n++ {
		h, ok, err := c.GetHeader(n)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		body, _, err := getBody(c.store, n)
		if err != nil {
			return nil, err
		}
		out = append(out, core.Block{Header: h, Body: body})
	}
	return out, nil
}

func (c *KvStoreChain) GetAccount(addr core.Address) (core.Account, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return getAccount(c.store, addr)
}

func getAccount(store kv.Store, addr core.Address) (core.Account, error) {
	b, ok, err := store.Get(accountKey(addr))
	if err != nil {
		return core.Account{}, fmt.Errorf("%w: %v", chainerr.ErrKvStoreFailure, err)
	}
	if !ok {
		return core.Account{}, nil
	}
	var a core.Account
	if err := rlp.DecodeBytes(b, &a); err != nil {
		return core.Account{}, fmt.Errorf("%w: account %s: %v", chainerr.ErrKvStoreCorrupted, addr, err)
	}
	return a, nil
}

func (c *KvStoreChain) GetContractAccount(id core.ContractID) (core.ContractAccount, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return getContractAccount(c.store, id)
}

// HeaderMetaByHash serves the sync driver's ancestor walk: a hash-indexed,
// cached lookup of a header's number/parent/state-root without decoding
// its full body.
func (c *KvStoreChain) HeaderMetaByHash(h core.Hash) (HeaderMeta, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if m, hit := c.headers.Get(h); hit {
		return m, true, nil
	}

	b, ok, err := c.store.Get(hashIndexKey(h))
	if err != nil {
		return HeaderMeta{}, false, fmt.Errorf("%w: %v", chainerr.ErrKvStoreFailure, err)
	}
	if !ok {
		return HeaderMeta{}, false, nil
	}
	var number uint64
	if err := rlp.DecodeBytes(b, &number); err != nil {
		return HeaderMeta{}, false, fmt.Errorf("%w: hash index: %v", chainerr.ErrKvStoreCorrupted, err)
	}
	header, ok, err := getHeader(c.store, number)
	if err != nil {
		return HeaderMeta{}, false, err
	}
	if !ok {
		return HeaderMeta{}, false, nil
	}
	meta := metaOf(header)
	c.headers.Put(meta)
	return meta, true, nil
}

func getContractAccount(store kv.Store, id core.ContractID) (core.ContractAccount, error) {
	b, ok, err := store.Get(contractAccountKey(id))
	if err != nil {
		return core.ContractAccount{}, fmt.Errorf("%w: %v", chainerr.ErrKvStoreFailure, err)
	}
	if !ok {
		return core.ContractAccount{}, chainerr.ErrStateNotGiven
	}
	var a core.ContractAccount
	if err := rlp.DecodeBytes(b, &a); err != nil {
		return core.ContractAccount{}, fmt.Errorf("%w: contract account %s: %v", chainerr.ErrKvStoreCorrupted, id, err)
	}
	return a, nil
}
