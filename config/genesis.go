package config

import "github.com/Klingon-tech/ledgercore/pkg/types"

// GenesisDifficulty is the fixed proof-of-work target every block in the
// canonical chain must meet: 0x1000...0 as a big-endian 256-bit integer.
var GenesisDifficulty = types.Hash{0x10}

// DefaultWorkers is the default size of the message-processor worker
// pool absent an explicit --p2p-workers flag.
const DefaultWorkers = 4

// DefaultBlockCap is the default number of transactions a miner drains
// from the mempool per candidate block.
const DefaultBlockCap = 8

// DefaultGeneratorIntervalSeconds, in seconds, matches the reference
// transaction generator's one-second sleep between attempts.
const DefaultGeneratorIntervalSeconds = 1

// BloomExpectedItems and BloomFalsePositiveRate size the Bloom fast-path
// filter, matching the reference node's BloomFilter::new(1000, 0.03).
const (
	BloomExpectedItems      = 1000
	BloomFalsePositiveRate  = 0.03
)
