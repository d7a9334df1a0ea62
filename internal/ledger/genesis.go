package ledger

import (
	"github.com/Klingon-tech/ledgercore/pkg/block"
	"github.com/Klingon-tech/ledgercore/pkg/types"
)

// GenesisFundedAddress is the zero address that the genesis snapshot
// credits with GenesisBalance. The genesis block itself carries no funding
// transaction.
var GenesisFundedAddress = types.Address{}

// GenesisBalance is the balance every known address starts with at
// genesis (the initial coin offering).
const GenesisBalance = 100

// NewGenesisBlock builds the canonical genesis block: parent-hash
// all-zero, height 0, no transactions, difficulty as given.
func NewGenesisBlock(difficulty types.Hash) *block.Block {
	header := &block.Header{
		ParentHash: types.Hash{},
		Nonce:      0,
		Difficulty: difficulty,
		Timestamp:  0,
	}
	return block.NewBlock(header, nil)
}
