package chain

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/bazukachain/bazuka/core"
)

// HeaderMeta is the small, frequently re-read projection of a header the
// sync ancestor walk and fork comparisons need, without paying for a full
// header (and its body) decode on every step.
type HeaderMeta struct {
	Hash      core.Hash
	Number    uint64
	Parent    core.Hash
	StateRoot core.Hash
}

func metaOf(h core.Header) HeaderMeta {
	return HeaderMeta{Hash: h.Hash(), Number: h.Number, Parent: h.ParentHash, StateRoot: h.StateRoot}
}

// HeaderMetaCache is a bounded, hash-keyed cache of HeaderMeta, backed by
// hashicorp/golang-lru/v2 the same way kv.LRUStore caches raw values. It is
// purely an optimization: a cache miss always falls back to a store read,
// so a fresh or evicted cache never changes behavior, only latency.
type HeaderMetaCache struct {
	cache *lru.Cache[core.Hash, HeaderMeta]
}

// NewHeaderMetaCache builds a cache holding up to capacity entries.
func NewHeaderMetaCache(capacity int) (*HeaderMetaCache, error) {
	c, err := lru.New[core.Hash, HeaderMeta](capacity)
	if err != nil {
		return nil, err
	}
	return &HeaderMetaCache{cache: c}, nil
}

func (c *HeaderMetaCache) Get(h core.Hash) (HeaderMeta, bool) { return c.cache.Get(h) }
func (c *HeaderMetaCache) Put(m HeaderMeta)                   { c.cache.Add(m.Hash, m) }
