package core

import (
	"crypto/ed25519"

	"github.com/ethereum/go-ethereum/rlp"
)

// TxKind discriminates the TxData variants spec.md §3 describes as a
// tagged union. Go has no native sum type, so — like the pack's own
// Transaction struct in core/common_structs.go — the variant fields live
// side by side in one struct, gated by Kind.
type TxKind uint8

const (
	TxRegularSend TxKind = iota
	TxCreateContract
	TxUpdateContract
)

// TxData is the per-kind payload of a Transaction. Contract-related
// fields are carried as opaque RLP blobs rather than typed zk.* values so
// that core never imports the zk package (the zk package imports core,
// not the other way around); the chain package decodes them through
// zk.DecodeContract / zk.DecodeDataPairs / zk.DecodeDelta.
type TxData struct {
	Kind TxKind

	// RegularSend
	Dst    Address
	Amount Money

	// CreateContract / UpdateContract
	ContractID ContractID

	// CreateContract only: RLP-encoded zk.Contract and zk.DataPairs.
	Contract     []byte `rlp:"optional"`
	InitialState []byte `rlp:"optional"`

	// UpdateContract only: RLP-encoded zk.Delta, plus an opaque proof
	// blob that must be non-empty; its contents are not checked.
	Delta []byte `rlp:"optional"`
	Proof []byte `rlp:"optional"`
}

// Transaction is a single chain-level operation.
type Transaction struct {
	Src   Address   `json:"src"`
	Nonce uint64    `json:"nonce"`
	Fee   Money     `json:"fee"`
	Data  TxData    `json:"data"`
	Sig   Signature `json:"sig"`
}

// SignaturePayload returns the byte sequence the signature is computed
// over: every field of the transaction except the signature itself.
func (tx *Transaction) SignaturePayload() ([]byte, error) {
	type payload struct {
		Src   Address
		Nonce uint64
		Fee   Money
		Data  TxData
	}
	return rlp.EncodeToBytes(payload{tx.Src, tx.Nonce, tx.Fee, tx.Data})
}

// Hash returns the transaction's content hash, used as its mempool and
// merkle-leaf identity.
func (tx *Transaction) Hash() (Hash, error) {
	b, err := rlp.EncodeToBytes(tx)
	if err != nil {
		return Hash{}, err
	}
	return sha256Sum(b), nil
}

// VerifySignature reports whether tx is either a legal Unsigned
// transaction (Treasury-sourced only) or carries an Ed25519 signature
// over SignaturePayload() from a key whose derived address matches Src.
func (tx *Transaction) VerifySignature() bool {
	if tx.Sig.Unsigned {
		return tx.Src == Treasury
	}
	if AddressFromPublicKey(tx.Sig.PublicKey) != tx.Src {
		return false
	}
	payload, err := tx.SignaturePayload()
	if err != nil {
		return false
	}
	return ed25519.Verify(tx.Sig.PublicKey[:], payload, tx.Sig.Bytes[:])
}
