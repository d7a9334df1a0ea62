package block

import (
	"github.com/Klingon-tech/ledgercore/pkg/tx"
	"github.com/Klingon-tech/ledgercore/pkg/types"
)

// Block pairs a header with its signed transactions.
type Block struct {
	Header       *Header              `json:"header"`
	Transactions []*tx.SignedTransaction `json:"transactions"`
}

// NewBlock creates a block with the given header and transactions, computing
// the header's merkle root from the transaction hashes.
func NewBlock(header *Header, txs []*tx.SignedTransaction) *Block {
	header.MerkleRoot = ComputeMerkleRoot(txHashes(txs))
	return &Block{
		Header:       header,
		Transactions: txs,
	}
}

// Hash returns the block's hash (its header's hash).
func (b *Block) Hash() types.Hash {
	return b.Header.Hash()
}

func txHashes(txs []*tx.SignedTransaction) []types.Hash {
	hashes := make([]types.Hash, len(txs))
	for i, t := range txs {
		hashes[i] = t.Hash()
	}
	return hashes
}
