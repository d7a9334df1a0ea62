// Package types defines core primitive types shared across the ledger.
package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
)

// HashSize is the length of an H256 hash in bytes.
const HashSize = 32

// Hash represents a 256-bit hash value: a block hash, content/merkle root,
// or a proof-of-work difficulty target.
type Hash [HashSize]byte

// IsZero returns true if the hash is all zeros.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// String returns the hex-encoded hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Bytes returns a copy of the hash as a byte slice.
func (h Hash) Bytes() []byte {
	b := make([]byte, HashSize)
	copy(b, h[:])
	return b
}

// Big interprets the hash as a big-endian unsigned integer, the
// representation proof-of-work difficulty comparisons are made in.
func (h Hash) Big() *big.Int {
	return new(big.Int).SetBytes(h[:])
}

// LessOrEqual reports whether h, read as a big-endian integer, is at most
// target — the proof-of-work admission rule.
func (h Hash) LessOrEqual(target Hash) bool {
	return h.Big().Cmp(target.Big()) <= 0
}

// MarshalJSON encodes the hash as a hex string.
func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON decodes a hex string into a hash.
func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*h = Hash{}
		return nil
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid hash hex: %w", err)
	}
	if len(decoded) != HashSize {
		return fmt.Errorf("hash must be %d bytes, got %d", HashSize, len(decoded))
	}
	copy(h[:], decoded)
	return nil
}

// HexToHash converts a hex string to a Hash.
// Returns an error if the string is not exactly 64 hex characters.
func HexToHash(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("invalid hex: %w", err)
	}
	if len(b) != HashSize {
		return Hash{}, fmt.Errorf("hash must be %d bytes, got %d", HashSize, len(b))
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}

// DifficultyFromHex parses a hex-encoded difficulty target, left-padding
// with zero bytes if the literal is shorter than 32 bytes. It accepts the
// "0x1000...0" literal style, with or without the 0x prefix.
func DifficultyFromHex(s string) (Hash, error) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("invalid difficulty hex: %w", err)
	}
	if len(b) > HashSize {
		return Hash{}, fmt.Errorf("difficulty must be at most %d bytes, got %d", HashSize, len(b))
	}
	var h Hash
	copy(h[HashSize-len(b):], b)
	return h, nil
}
