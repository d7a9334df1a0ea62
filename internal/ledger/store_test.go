package ledger

import (
	"testing"

	"github.com/Klingon-tech/ledgercore/pkg/block"
	"github.com/Klingon-tech/ledgercore/pkg/crypto"
	"github.com/Klingon-tech/ledgercore/pkg/tx"
	"github.com/Klingon-tech/ledgercore/pkg/types"
)

var testDifficulty = types.Hash{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

func childBlock(parent types.Hash, nonce uint32, txs ...*tx.SignedTransaction) *block.Block {
	return block.NewBlock(&block.Header{
		ParentHash: parent,
		Nonce:      nonce,
		Difficulty: testDifficulty,
	}, txs)
}

func TestStore_GenesisTip(t *testing.T) {
	g := NewGenesisBlock(testDifficulty)
	s := New(g)

	if s.Tip() != g.Hash() {
		t.Error("a fresh store's tip should be the genesis block")
	}
	h, ok := s.Height(g.Hash())
	if !ok || h != 0 {
		t.Errorf("genesis height = (%d, %v), want (0, true)", h, ok)
	}
}

func TestStore_Insert_AdvancesTip(t *testing.T) {
	g := NewGenesisBlock(testDifficulty)
	s := New(g)

	b1 := childBlock(g.Hash(), 1)
	height, tipChanged, err := s.Insert(b1)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if height != 1 || !tipChanged {
		t.Errorf("got (height=%d, tipChanged=%v), want (1, true)", height, tipChanged)
	}
	if s.Tip() != b1.Hash() {
		t.Error("tip should advance to the new block")
	}
}

func TestStore_Insert_UnknownParent(t *testing.T) {
	g := NewGenesisBlock(testDifficulty)
	s := New(g)

	orphan := childBlock(types.Hash{0x99}, 1)
	if _, _, err := s.Insert(orphan); err != ErrUnknownParent {
		t.Errorf("expected ErrUnknownParent, got %v", err)
	}
}

func TestStore_Insert_Duplicate(t *testing.T) {
	g := NewGenesisBlock(testDifficulty)
	s := New(g)

	b1 := childBlock(g.Hash(), 1)
	if _, _, err := s.Insert(b1); err != nil {
		t.Fatalf("first Insert: %v", err)
	}
	if _, _, err := s.Insert(b1); err != ErrAlreadyExists {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestStore_TieBreak_KeepsExistingTip(t *testing.T) {
	g := NewGenesisBlock(testDifficulty)
	s := New(g)

	first := childBlock(g.Hash(), 1)
	if _, _, err := s.Insert(first); err != nil {
		t.Fatalf("Insert first: %v", err)
	}

	second := childBlock(g.Hash(), 2) // same height, different nonce
	height, tipChanged, err := s.Insert(second)
	if err != nil {
		t.Fatalf("Insert second: %v", err)
	}
	if height != 1 {
		t.Errorf("second block height = %d, want 1", height)
	}
	if tipChanged {
		t.Error("equal-height arrival should not move the tip")
	}
	if s.Tip() != first.Hash() {
		t.Error("tip should remain the first-accepted block at this height")
	}
	if !s.Contains(second.Hash()) {
		t.Error("the losing fork block should still be stored")
	}
}

func TestStore_LongestChain(t *testing.T) {
	g := NewGenesisBlock(testDifficulty)
	s := New(g)

	b1 := childBlock(g.Hash(), 1)
	s.Insert(b1)
	b2 := childBlock(b1.Hash(), 1)
	s.Insert(b2)

	chain := s.LongestChain()
	want := []types.Hash{g.Hash(), b1.Hash(), b2.Hash()}
	if len(chain) != len(want) {
		t.Fatalf("chain length = %d, want %d", len(chain), len(want))
	}
	for i := range want {
		if chain[i] != want[i] {
			t.Errorf("chain[%d] = %x, want %x", i, chain[i], want[i])
		}
	}
}

func mustSignedTx(t *testing.T, key *crypto.PrivateKey, value, nonce uint32, recipient types.Address) *tx.SignedTransaction {
	t.Helper()
	s, err := tx.Sign(key, tx.Transaction{SelfBalance: GenesisBalance, Recipient: recipient, Value: value, Nonce: nonce})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return s
}
