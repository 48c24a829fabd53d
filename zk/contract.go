package zk

import (
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/bazukachain/bazuka/core"
)

// Function is a simplified stand-in for the deposit/withdraw/update
// functions a real zk contract defines. UpdateContract does not consult
// them: it only rejects an empty proof and does not check its contents.
type Function struct {
	Name string
}

// Contract is a zk-contract's immutable definition: its state shape, the
// compressed state it starts at, and the functions it exposes.
type Contract struct {
	StateModel   StateModel
	InitialState core.Hash
	Functions    []Function
}

// EncodeContract / DecodeContract let core.TxData carry a Contract as an
// opaque blob without core importing zk.
func EncodeContract(c Contract) ([]byte, error) { return rlp.EncodeToBytes(c) }

func DecodeContract(b []byte) (Contract, error) {
	var c Contract
	err := rlp.DecodeBytes(b, &c)
	return c, err
}

// DataPair is one (leaf index, scalar value) entry. Using a slice of
// pairs rather than a Go map keeps this RLP-encodable and gives
// CreateContract/UpdateContract a deterministic iteration order.
type DataPair struct {
	Index uint64
	Value core.Hash
}

// DataPairs is the initial-state payload CreateContract may supply.
type DataPairs struct {
	Pairs []DataPair
}

// AsDelta treats the initial data pairs as the first delta applied to a
// freshly created contract.
func (d DataPairs) AsDelta() Delta { return Delta{Pairs: d.Pairs} }

// Delta is a batch of leaf writes applied to a contract's state tree by
// UpdateContract.
type Delta struct {
	Pairs []DataPair
}

func EncodeDataPairs(d DataPairs) ([]byte, error) { return rlp.EncodeToBytes(d) }

func DecodeDataPairs(b []byte) (DataPairs, error) {
	var d DataPairs
	err := rlp.DecodeBytes(b, &d)
	return d, err
}

func EncodeDelta(d Delta) ([]byte, error) { return rlp.EncodeToBytes(d) }

func DecodeDelta(b []byte) (Delta, error) {
	var d Delta
	err := rlp.DecodeBytes(b, &d)
	return d, err
}
