// Package zk specifies the interface the chain engine uses to keep each
// contract account's committed state root in sync with a sequence of
// applied deltas. Per spec.md §1 the internal proving/compression
// machinery of a real zk state manager is an external collaborator; this
// package supplies the interface plus a KV-backed default implementation
// that is sufficient to exercise CreateContract/UpdateContract, not a
// production zk-SNARK state tree.
package zk

import "github.com/bazukachain/bazuka/core"

// StateModelKind discriminates the two state-model shapes spec.md
// describes informally via the "two-scalar struct" example in §8.
type StateModelKind uint8

const (
	ScalarModel StateModelKind = iota
	StructModel
)

// StateModel describes the shape of a contract's internal state tree: a
// single scalar leaf, or a struct of nested models.
type StateModel struct {
	Kind   StateModelKind
	Fields []StateModel `rlp:"optional"`
}

// Scalar is the single-leaf model.
func Scalar() StateModel { return StateModel{Kind: ScalarModel} }

// Struct builds a model out of nested fields.
func Struct(fields ...StateModel) StateModel {
	return StateModel{Kind: StructModel, Fields: fields}
}

// IsValid enforces the minimal structural rule CreateContract checks
// before installing a contract: a Scalar carries no fields, a Struct's
// fields are themselves valid.
func (m StateModel) IsValid() bool {
	switch m.Kind {
	case ScalarModel:
		return len(m.Fields) == 0
	case StructModel:
		for _, f := range m.Fields {
			if !f.IsValid() {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// LeafCount returns how many scalar leaves this model flattens to.
func (m StateModel) LeafCount() uint64 {
	if m.Kind == ScalarModel {
		return 1
	}
	var n uint64
	for _, f := range m.Fields {
		n += f.LeafCount()
	}
	return n
}

// EmptyCompressedState computes the root of a model with every leaf at
// its zero value — the value CreateContract's declared initial state must
// equal when the caller supplies no deltas.
func EmptyCompressedState(model StateModel) core.Hash {
	leaves := make([]core.Hash, model.LeafCount())
	return core.MerkleRoot(leaves)
}
