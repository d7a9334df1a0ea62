// Package ledger implements the longest-chain block store and the
// per-block account-state index derived from it.
package ledger

import (
	"errors"
	"sync"

	"github.com/Klingon-tech/ledgercore/pkg/block"
	"github.com/Klingon-tech/ledgercore/pkg/types"
)

// ErrUnknownParent is returned by Insert when the block's parent is not in
// the store — the caller should buffer the block as an orphan instead.
var ErrUnknownParent = errors.New("ledger: unknown parent block")

// ErrAlreadyExists is returned by Insert for a block hash already present.
var ErrAlreadyExists = errors.New("ledger: block already exists")

type entry struct {
	block  *block.Block
	height uint64
}

// Store is the block DAG keyed by block hash, tracking the tip of the
// longest chain. The tie-break on equal height keeps the existing tip: the
// first block accepted at a given height wins, later equal-height arrivals
// are stored but never promoted.
type Store struct {
	mu     sync.Mutex
	blocks map[types.Hash]entry
	tip    types.Hash
}

// New creates an empty store and seeds it with the given genesis block at
// height 0.
func New(genesis *block.Block) *Store {
	hash := genesis.Hash()
	s := &Store{
		blocks: map[types.Hash]entry{
			hash: {block: genesis, height: 0},
		},
		tip: hash,
	}
	return s
}

// Insert adds a block to the store. The block's parent must already be
// present; otherwise ErrUnknownParent is returned and the caller should
// buffer it in the orphan buffer. The tip advances only on strictly
// greater height than the current tip — an equal-height arrival keeps the
// existing tip (first-seen wins).
func (s *Store) Insert(b *block.Block) (height uint64, tipChanged bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash := b.Hash()
	if _, exists := s.blocks[hash]; exists {
		return 0, false, ErrAlreadyExists
	}

	parent, ok := s.blocks[b.Header.ParentHash]
	if !ok {
		return 0, false, ErrUnknownParent
	}

	height = parent.height + 1
	s.blocks[hash] = entry{block: b, height: height}

	tipHeight := s.blocks[s.tip].height
	if height > tipHeight {
		s.tip = hash
		tipChanged = true
	}
	return height, tipChanged, nil
}

// Tip returns the hash of the block at the head of the longest chain.
func (s *Store) Tip() types.Hash {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tip
}

// Height returns the height of the given block hash. ok is false if the
// hash is not in the store.
func (s *Store) Height(hash types.Hash) (height uint64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.blocks[hash]
	return e.height, ok
}

// Contains reports whether hash is present in the store.
func (s *Store) Contains(hash types.Hash) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blocks[hash]
	return ok
}

// Block returns the block for hash. ok is false if not present.
func (s *Store) Block(hash types.Hash) (*block.Block, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.blocks[hash]
	return e.block, ok
}

// LongestChain returns block hashes from genesis to the current tip,
// inclusive, in ascending height order.
func (s *Store) LongestChain() []types.Hash {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chainTo(s.tip)
}

// ChainTo returns block hashes from genesis to hash, inclusive, in
// ascending height order. Returns nil if hash is not in the store.
func (s *Store) ChainTo(hash types.Hash) []types.Hash {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chainTo(hash)
}

func (s *Store) chainTo(hash types.Hash) []types.Hash {
	if _, ok := s.blocks[hash]; !ok {
		return nil
	}
	var rev []types.Hash
	cur := hash
	for {
		e, ok := s.blocks[cur]
		if !ok {
			break
		}
		rev = append(rev, cur)
		if e.block.Header.ParentHash == cur {
			break // genesis self-parents never happen; guards pathological loops
		}
		if e.height == 0 {
			break
		}
		cur = e.block.Header.ParentHash
	}
	out := make([]types.Hash, len(rev))
	for i, h := range rev {
		out[len(rev)-1-i] = h
	}
	return out
}
