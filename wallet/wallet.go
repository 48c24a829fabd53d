// Package wallet provides the minimal key-management and transaction
// construction a node or test harness needs to act as a transaction
// sender. The concrete signature scheme is an external-collaborator
// concern (spec.md §1); this package supplies the stdlib-backed Ed25519
// stand-in core.Transaction.VerifySignature checks against.
package wallet

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/bazukachain/bazuka/core"
)

// Wallet holds an Ed25519 key pair and the address it controls.
type Wallet struct {
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey
	Address    core.Address
}

// New generates a fresh key pair.
func New() (*Wallet, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("wallet: generating key: %w", err)
	}
	return fromKeys(pub, priv), nil
}

// FromSeed rebuilds a wallet deterministically from a 32-byte Ed25519
// seed, useful for tests and for persisting a key across restarts.
func FromSeed(seed []byte) (*Wallet, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("wallet: seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return fromKeys(priv.Public().(ed25519.PublicKey), priv), nil
}

func fromKeys(pub ed25519.PublicKey, priv ed25519.PrivateKey) *Wallet {
	var pubArr [32]byte
	copy(pubArr[:], pub)
	return &Wallet{PublicKey: pub, PrivateKey: priv, Address: core.AddressFromPublicKey(pubArr)}
}

// CreateTransaction builds and signs a transaction from this wallet's
// address. nonce must be one greater than the sender's current account
// nonce, per the chain engine's nonce check.
func (w *Wallet) CreateTransaction(nonce uint64, fee core.Money, data core.TxData) (core.Transaction, error) {
	var pubArr [32]byte
	copy(pubArr[:], w.PublicKey)

	tx := core.Transaction{
		Src:   w.Address,
		Nonce: nonce,
		Fee:   fee,
		Data:  data,
		Sig:   core.Signature{PublicKey: pubArr},
	}

	payload, err := tx.SignaturePayload()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("wallet: signing payload: %w", err)
	}
	sig := ed25519.Sign(w.PrivateKey, payload)
	copy(tx.Sig.Bytes[:], sig)
	return tx, nil
}
