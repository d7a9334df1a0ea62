package block

import (
	"testing"

	"github.com/Klingon-tech/ledgercore/pkg/types"
)

func TestHeader_Hash_Deterministic(t *testing.T) {
	h := &Header{ParentHash: types.Hash{0x01}, Nonce: 7, Timestamp: 1000}
	if h.Hash() != h.Hash() {
		t.Error("Hash() should be deterministic")
	}
}

func TestHeader_Hash_SensitiveToNonce(t *testing.T) {
	h1 := &Header{ParentHash: types.Hash{0x01}, Nonce: 1}
	h2 := &Header{ParentHash: types.Hash{0x01}, Nonce: 2}
	if h1.Hash() == h2.Hash() {
		t.Error("changing the nonce should change the hash")
	}
}

func TestHeader_MeetsDifficulty(t *testing.T) {
	easy := &Header{Difficulty: types.Hash{0xff, 0xff, 0xff, 0xff}}
	for i := range easy.Difficulty[4:] {
		easy.Difficulty[4+i] = 0xff
	}
	if !easy.MeetsDifficulty() {
		t.Error("an all-0xff difficulty target should admit any hash")
	}

	hard := &Header{} // zero difficulty: nothing meets it unless hash is also zero
	if hard.MeetsDifficulty() {
		t.Error("a zero difficulty target should reject a non-zero hash")
	}
}
