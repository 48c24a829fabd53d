package kv

// RamMirrorStore is a stacked store wrapping any parent Store. Writes are
// recorded in an in-memory overlay and never touch the parent; reads
// consult the overlay first and fall back to the parent. Calling ToOps
// converts the overlay into a single batch the parent's Update accepts,
// making a whole sequence of operations atomic: either flush the batch to
// the parent, or drop the mirror and nothing happened.
//
// This is the primitive behind "isolated execution": draft a block or a
// reorg against a mirror, and only commit once the whole operation
// succeeds.
type RamMirrorStore struct {
	parent    Store
	overwrite map[string]*[]byte // nil pointee = tombstone
}

// NewRamMirrorStore wraps parent in a fresh, empty overlay.
func NewRamMirrorStore(parent Store) *RamMirrorStore {
	return &RamMirrorStore{parent: parent, overwrite: make(map[string]*[]byte)}
}

func (m *RamMirrorStore) Get(key string) ([]byte, bool, error) {
	if v, ok := m.overwrite[key]; ok {
		if v == nil {
			return nil, false, nil
		}
		return *v, true, nil
	}
	return m.parent.Get(key)
}

func (m *RamMirrorStore) Update(ops []WriteOp) error {
	for _, op := range ops {
		if op.Remove {
			m.overwrite[op.Key] = nil
			continue
		}
		v := op.Value
		m.overwrite[op.Key] = &v
	}
	return nil
}

// ToOps flattens the overlay into a batch suitable for the parent's
// Update. The overlay is left intact, so ToOps may be called more than
// once; callers that need rollback information should call
// RollbackOf(parent, ops) against the parent before flushing.
func (m *RamMirrorStore) ToOps() []WriteOp {
	ops := make([]WriteOp, 0, len(m.overwrite))
	for k, v := range m.overwrite {
		if v == nil {
			ops = append(ops, Remove(k))
		} else {
			ops = append(ops, Put(k, *v))
		}
	}
	return ops
}

// Parent exposes the wrapped store, mainly so callers can synthesize a
// rollback batch against it before flushing.
func (m *RamMirrorStore) Parent() Store { return m.parent }
