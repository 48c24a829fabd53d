package kv

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// entry caches either a present value or an explicit "key absent" result,
// so repeated misses against the underlying store don't re-hit it.
type entry struct {
	value []byte
	ok    bool
}

// LRUStore is a fixed-capacity read-through cache wrapping any Store. On
// Get, a cache hit returns directly; a miss consults the wrapped store and
// installs the result (hit or miss) before returning. On Update, every
// touched key is evicted before the write reaches the wrapped store, so a
// read immediately following a write never observes stale cached data.
//
// The cache is accessed under a single mutex: the underlying
// hashicorp/golang-lru/v2 cache is itself safe for concurrent access, but
// the compound "check cache, then read-through and install" sequence in
// Get is not atomic unless serialized at this layer too.
type LRUStore struct {
	mu    sync.Mutex
	store Store
	cache *lru.Cache[string, entry]
}

// NewLRUStore wraps store with a read-through cache of the given
// capacity.
func NewLRUStore(store Store, capacity int) (*LRUStore, error) {
	c, err := lru.New[string, entry](capacity)
	if err != nil {
		return nil, err
	}
	return &LRUStore{store: store, cache: c}, nil
}

func (l *LRUStore) Get(key string) ([]byte, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, hit := l.cache.Get(key); hit {
		return e.value, e.ok, nil
	}
	v, ok, err := l.store.Get(key)
	if err != nil {
		return nil, false, err
	}
	l.cache.Add(key, entry{value: v, ok: ok})
	return v, ok, nil
}

func (l *LRUStore) Update(ops []WriteOp) error {
	l.mu.Lock()
	for _, op := range ops {
		l.cache.Remove(op.Key)
	}
	l.mu.Unlock()
	return l.store.Update(ops)
}
