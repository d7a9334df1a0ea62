package orphan

import (
	"testing"

	"github.com/Klingon-tech/ledgercore/pkg/block"
	"github.com/Klingon-tech/ledgercore/pkg/types"
)

func blockWithParent(parent types.Hash, nonce uint32) *block.Block {
	return block.NewBlock(&block.Header{ParentHash: parent, Nonce: nonce}, nil)
}

func TestBuffer_AddAndPendingParents(t *testing.T) {
	o := New()
	parent := types.Hash{0x01}
	o.Add(blockWithParent(parent, 1))

	parents := o.PendingParents()
	if len(parents) != 1 || parents[0] != parent {
		t.Errorf("PendingParents() = %v, want [%x]", parents, parent)
	}
	if o.Len() != 1 {
		t.Errorf("Len() = %d, want 1", o.Len())
	}
}

func TestBuffer_Reconnect_Simple(t *testing.T) {
	o := New()
	genesis := types.Hash{0x00}
	orphan := blockWithParent(genesis, 1)
	o.Add(orphan)

	known := map[types.Hash]bool{genesis: true}
	var accepted []*block.Block
	o.Reconnect(func(h types.Hash) bool { return known[h] }, func(b *block.Block) bool {
		accepted = append(accepted, b)
		known[b.Hash()] = true
		return true
	})

	if len(accepted) != 1 || accepted[0].Hash() != orphan.Hash() {
		t.Errorf("expected the orphan to be reconnected, got %d accepted", len(accepted))
	}
	if o.Len() != 0 {
		t.Errorf("buffer should be empty after reconnect, Len() = %d", o.Len())
	}
}

// TestBuffer_Reconnect_FixedPoint proves a single pass is not enough: a
// grandchild orphan only becomes reconnectable once its parent (also an
// orphan sitting in the buffer) is reconnected within the same call.
func TestBuffer_Reconnect_FixedPoint(t *testing.T) {
	o := New()
	genesis := types.Hash{0x00}
	child := blockWithParent(genesis, 1)
	grandchild := blockWithParent(child.Hash(), 1)

	// Insert grandchild first so a naive single pass over map keys (whose
	// iteration order is unspecified) cannot be relied on to visit child
	// before grandchild.
	o.Add(grandchild)
	o.Add(child)

	known := map[types.Hash]bool{genesis: true}
	var acceptedOrder []types.Hash
	o.Reconnect(func(h types.Hash) bool { return known[h] }, func(b *block.Block) bool {
		acceptedOrder = append(acceptedOrder, b.Hash())
		known[b.Hash()] = true
		return true
	})

	if len(acceptedOrder) != 2 {
		t.Fatalf("expected both child and grandchild reconnected, got %d", len(acceptedOrder))
	}
	if o.Len() != 0 {
		t.Errorf("buffer should be fully drained, Len() = %d", o.Len())
	}
}

func TestBuffer_Reconnect_LeavesUnknownParentsBuffered(t *testing.T) {
	o := New()
	stillMissing := types.Hash{0xaa}
	o.Add(blockWithParent(stillMissing, 1))

	o.Reconnect(func(h types.Hash) bool { return false }, func(b *block.Block) bool {
		t.Fatal("accept should never be called when no parent is known")
		return false
	})

	if o.Len() != 1 {
		t.Errorf("orphan with still-unknown parent should remain buffered, Len() = %d", o.Len())
	}
}
