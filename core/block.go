package core

import "github.com/ethereum/go-ethereum/rlp"

// Header is the block header spec.md §3 defines. Bits is the
// proof-of-work difficulty exponent (power contribution is 2^Bits); both
// Bits and Nonce are left zero when PoW is disabled.
type Header struct {
	ParentHash     Hash   `json:"parent_hash"`
	Number         uint64 `json:"number"`
	StateRoot      Hash   `json:"state_root"`
	BodyMerkleRoot Hash   `json:"body_merkle_root"`
	Timestamp      uint32 `json:"timestamp"`
	Bits           uint8  `json:"bits"`
	Nonce          uint64 `json:"nonce"`
}

// Hash is a deterministic function of every header field.
func (h Header) Hash() Hash {
	b, err := rlp.EncodeToBytes(h)
	if err != nil {
		// Header contains only fixed-width, RLP-safe fields; encoding
		// cannot fail.
		panic(err)
	}
	return sha256Sum(b)
}

// MeetsDifficulty reports whether h.Hash() has at least Bits leading
// zero bits, the proof-of-work condition spec.md §3 calls "PoW valid".
// Bits is a uint8, so the strictest target is 255 leading zero bits.
func (h Header) MeetsDifficulty() bool {
	if h.Bits == 0 {
		return true
	}
	digest := h.Hash()
	full := int(h.Bits) / 8
	for i := 0; i < full; i++ {
		if digest[i] != 0 {
			return false
		}
	}
	remainder := int(h.Bits) % 8
	if remainder == 0 {
		return true
	}
	mask := byte(0xff << (8 - remainder))
	return digest[full]&mask == 0
}

// Power returns this header's contribution to accumulated chain power:
// 2^Bits when PoW is meaningful, or 1 whenever powEnabled is false
// (whatever Bits holds), which preserves strict height-ordering of power.
func (h Header) Power(powEnabled bool) uint64 {
	if !powEnabled {
		return 1
	}
	return uint64(1) << h.Bits
}

// Block pairs a header with its ordered transaction body. The body's
// Merkle root must equal header.BodyMerkleRoot.
type Block struct {
	Header Header        `json:"header"`
	Body   []Transaction `json:"body"`
}

// BodyMerkleRootComputed hashes every transaction in Body and folds them into a
// single root via MerkleRoot.
func (b Block) BodyMerkleRootComputed() (Hash, error) {
	leaves := make([]Hash, len(b.Body))
	for i := range b.Body {
		h, err := b.Body[i].Hash()
		if err != nil {
			return Hash{}, err
		}
		leaves[i] = h
	}
	return MerkleRoot(leaves), nil
}
