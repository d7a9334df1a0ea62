// Package mempool holds pending signed transactions awaiting block
// inclusion: an ordered FIFO queue with O(1) dedup/removal by transaction
// hash.
package mempool

import (
	"container/list"
	"sync"

	"github.com/Klingon-tech/ledgercore/pkg/crypto"
	"github.com/Klingon-tech/ledgercore/pkg/tx"
	"github.com/Klingon-tech/ledgercore/pkg/types"
)

// DefaultBlockCap is the maximum number of transactions a miner drains per
// block, matching the reference node's fixed cap.
const DefaultBlockCap = 8

// Pool is the node-local queue of pending, signature-valid, not-yet-included
// transactions.
type Pool struct {
	mu    sync.Mutex
	order *list.List // of types.Hash, oldest at Front
	index map[types.Hash]*list.Element
	txs   map[types.Hash]*tx.SignedTransaction
}

// New creates an empty mempool.
func New() *Pool {
	return &Pool{
		order: list.New(),
		index: make(map[types.Hash]*list.Element),
		txs:   make(map[types.Hash]*tx.SignedTransaction),
	}
}

// Push admits a signed transaction after verifying only its signature —
// balance and nonce are checked later, at block-validation time, since the
// sender's current state may not yet reflect the block that makes them
// valid. Duplicates (by transaction hash) are idempotent: pushing an
// already-admitted transaction is a no-op, not an error.
func (p *Pool) Push(signed *tx.SignedTransaction) error {
	if !crypto.VerifySignature(signed.Tx.SigningBytes(), signed.Signature, signed.PublicKey) {
		return tx.ErrBadSignature
	}

	hash := signed.Hash()

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.txs[hash]; exists {
		return nil
	}

	elem := p.order.PushBack(hash)
	p.index[hash] = elem
	p.txs[hash] = signed
	return nil
}

// Pop removes the transaction with the given hash, if present. Used to
// evict transactions once they're included in an accepted block.
func (p *Pool) Pop(hash types.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.popLocked(hash)
}

func (p *Pool) popLocked(hash types.Hash) {
	elem, ok := p.index[hash]
	if !ok {
		return
	}
	p.order.Remove(elem)
	delete(p.index, hash)
	delete(p.txs, hash)
}

// Get returns the transaction with the given hash, if present — used to
// answer GetTransactions requests with the exact payload a peer asked for.
func (p *Pool) Get(hash types.Hash) (*tx.SignedTransaction, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	signed, ok := p.txs[hash]
	return signed, ok
}

// Has reports whether hash is currently in the mempool.
func (p *Pool) Has(hash types.Hash) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.txs[hash]
	return ok
}

// Drain returns up to cap transactions from the head of the queue, in FIFO
// order, for inclusion in a candidate block. It leaves them in the pool;
// Evict removes them once a block containing them is accepted. It does not
// re-validate against current account state — that happens at block
// assembly/validation time.
func (p *Pool) Drain(cap int) []*tx.SignedTransaction {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []*tx.SignedTransaction
	for elem := p.order.Front(); elem != nil && len(out) < cap; {
		hash := elem.Value.(types.Hash)
		out = append(out, p.txs[hash])
		next := elem.Next()
		elem = next
	}
	return out
}

// Evict removes every transaction in hashes from the pool, called after a
// block containing them is accepted.
func (p *Pool) Evict(hashes []types.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, h := range hashes {
		p.popLocked(h)
	}
}

// Len returns the number of transactions currently queued.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.txs)
}
