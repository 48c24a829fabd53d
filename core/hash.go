package core

import "crypto/sha256"

func sha256Sum(b []byte) Hash {
	return Hash(sha256.Sum256(b))
}

// MerkleRoot computes a simple binary Merkle root over leaves, in chain
// order. An empty body has a zero root. No pack repo's merkle
// implementation was retrieved (go-ethereum's trie.go builds a Merkle
// Patricia *state* trie, a different data structure serving a different
// purpose, not a fit for a body-hash accumulator) — this is a small
// stdlib-only helper, grounded only in the shape original_source's
// blocks.rs expects (`Block::merkle_tree`).
func MerkleRoot(leaves []Hash) Hash {
	if len(leaves) == 0 {
		return Hash{}
	}
	level := make([]Hash, len(leaves))
	copy(level, leaves)
	for len(level) > 1 {
		next := make([]Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, hashPair(level[i], level[i+1]))
			} else {
				next = append(next, hashPair(level[i], level[i]))
			}
		}
		level = next
	}
	return level[0]
}

func hashPair(a, b Hash) Hash {
	buf := make([]byte, 0, 64)
	buf = append(buf, a[:]...)
	buf = append(buf, b[:]...)
	return sha256Sum(buf)
}
