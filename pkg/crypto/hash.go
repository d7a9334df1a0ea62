// Package crypto provides cryptographic primitives for the ledger: SHA-256
// hashing, address derivation, and Ed25519 signing.
package crypto

import (
	"crypto/sha256"

	"github.com/Klingon-tech/ledgercore/pkg/types"
)

// Hash computes a SHA-256 hash of the input data.
func Hash(data []byte) types.Hash {
	return sha256.Sum256(data)
}

// DoubleHash computes Hash(Hash(data)).
func DoubleHash(data []byte) types.Hash {
	first := Hash(data)
	return Hash(first[:])
}

// AddressFromPubKey derives an address from a raw public key.
// Address = SHA256(pubkey)[12:], the low 160 bits of the digest.
func AddressFromPubKey(pubKey []byte) types.Address {
	h := Hash(pubKey)
	var addr types.Address
	copy(addr[:], h[types.HashSize-types.AddressSize:])
	return addr
}

// HashConcat hashes the concatenation of two hashes. Used for building
// merkle trees.
func HashConcat(a, b types.Hash) types.Hash {
	var buf [64]byte
	copy(buf[:32], a[:])
	copy(buf[32:], b[:])
	return Hash(buf[:])
}
