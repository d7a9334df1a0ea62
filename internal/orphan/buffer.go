// Package orphan buffers blocks whose parent is not yet in the ledger
// store, keyed by parent hash, and reconnects them once the parent
// arrives.
package orphan

import (
	"sync"

	"github.com/Klingon-tech/ledgercore/pkg/block"
	"github.com/Klingon-tech/ledgercore/pkg/types"
)

// Buffer holds orphan blocks keyed by the parent hash they're waiting on.
type Buffer struct {
	mu  sync.Mutex
	buf map[types.Hash][]*block.Block
}

// New creates an empty orphan buffer.
func New() *Buffer {
	return &Buffer{buf: make(map[types.Hash][]*block.Block)}
}

// Add buffers b under its parent hash.
func (o *Buffer) Add(b *block.Block) {
	o.mu.Lock()
	defer o.mu.Unlock()
	parent := b.Header.ParentHash
	o.buf[parent] = append(o.buf[parent], b)
}

// Len returns the number of parent hashes currently being waited on.
func (o *Buffer) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.buf)
}

// PendingParents returns the set of parent hashes the buffer is currently
// waiting on — used to build GetBlocks requests.
func (o *Buffer) PendingParents() []types.Hash {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]types.Hash, 0, len(o.buf))
	for h := range o.buf {
		out = append(out, h)
	}
	return out
}

// take removes and returns the orphans buffered under parent, if any.
func (o *Buffer) take(parent types.Hash) []*block.Block {
	o.mu.Lock()
	defer o.mu.Unlock()
	blocks, ok := o.buf[parent]
	if !ok {
		return nil
	}
	delete(o.buf, parent)
	return blocks
}

// Known reports whether hash is known to the given predicate, indirection
// kept thin so Reconnect stays a pure loop over the buffer's own state.
type Known func(hash types.Hash) bool

// Reconnect repeatedly sweeps the buffer for orphans whose parent is now
// known (per isKnown) and hands each to accept, which must insert it into
// the ledger and return whether the insertion made its hash newly known
// (so further orphans chained on top of it can also be reconnected in the
// same call). It loops to a fixed point — a single pass over the buffer
// can miss orphans whose parent was itself reconnected earlier in the same
// pass, since inserting one orphan can make its children (also sitting in
// the buffer) immediately reconnectable too.
func (o *Buffer) Reconnect(isKnown Known, accept func(b *block.Block) bool) {
	for {
		reconnectedAny := false

		o.mu.Lock()
		parents := make([]types.Hash, 0, len(o.buf))
		for h := range o.buf {
			parents = append(parents, h)
		}
		o.mu.Unlock()

		for _, parent := range parents {
			if !isKnown(parent) {
				continue
			}
			for _, orphan := range o.take(parent) {
				if accept(orphan) {
					reconnectedAny = true
				}
			}
		}

		if !reconnectedAny {
			return
		}
	}
}
