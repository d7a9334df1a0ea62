// Package block defines block types, hashing, and merkle proof
// construction/verification for the ledger.
package block

import (
	"encoding/binary"

	"github.com/Klingon-tech/ledgercore/pkg/crypto"
	"github.com/Klingon-tech/ledgercore/pkg/types"
)

// Header contains block metadata. Difficulty is carried as a full H256
// target rather than a divisor: a candidate header is admitted when its
// Hash(), read as a big-endian integer, is at most Difficulty.
type Header struct {
	ParentHash types.Hash `json:"parent_hash"`
	Nonce      uint32     `json:"nonce"`
	Difficulty types.Hash `json:"difficulty"`
	Timestamp  int64      `json:"timestamp"` // unix nanoseconds
	MerkleRoot types.Hash `json:"merkle_root"`
}

// Hash computes the block header hash.
func (h *Header) Hash() types.Hash {
	return crypto.Hash(h.SigningBytes())
}

// MeetsDifficulty reports whether this header's hash satisfies its own
// difficulty target.
func (h *Header) MeetsDifficulty() bool {
	return h.Hash().LessOrEqual(h.Difficulty)
}

// SigningBytes returns the canonical bytes hashed to produce the block hash.
// Format: parent_hash(32) | nonce(4) | difficulty(32) | timestamp(8) | merkle_root(32)
func (h *Header) SigningBytes() []byte {
	buf := make([]byte, 0, 108)
	buf = append(buf, h.ParentHash[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, h.Nonce)
	buf = append(buf, h.Difficulty[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(h.Timestamp))
	buf = append(buf, h.MerkleRoot[:]...)
	return buf
}
