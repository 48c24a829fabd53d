package core

// Signature is the tagged enum spec.md §3 requires: either Unsigned
// (legal only for Treasury-sourced transactions) or a concrete Ed25519
// signature. The concrete scheme is explicitly an external-collaborator
// concern (spec.md §1); Ed25519 is the stdlib-backed stand-in — see
// DESIGN.md for why no pack dependency was substituted here. PublicKey
// travels alongside the signature itself (rather than being looked up
// some other way) so a handler can verify a transaction against its
// claimed sender without any extra round trip; AddressFromPublicKey
// ties the two together.
type Signature struct {
	Unsigned  bool
	PublicKey [32]byte
	Bytes     [64]byte
}

// AddressFromPublicKey derives the 20-byte account address controlled by
// an Ed25519 public key: the low 20 bytes of its SHA-256 digest.
func AddressFromPublicKey(pub [32]byte) Address {
	digest := sha256Sum(pub[:])
	var a Address
	copy(a[:], digest[len(digest)-len(a):])
	return a
}
