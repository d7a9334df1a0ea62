package peerset

import (
	"testing"

	"github.com/Klingon-tech/ledgercore/pkg/types"
)

func TestSet_AddIsIdempotent(t *testing.T) {
	s := New()
	a := types.Address{0x01}

	if !s.Add(a) {
		t.Error("first Add should report new")
	}
	if s.Add(a) {
		t.Error("second Add of the same address should report not-new")
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestSet_MergeReturnsOnlyFresh(t *testing.T) {
	s := New()
	a, b, c := types.Address{0x01}, types.Address{0x02}, types.Address{0x03}
	s.Add(a)

	fresh := s.Merge([]types.Address{a, b, c})
	if len(fresh) != 2 {
		t.Fatalf("Merge returned %d fresh addresses, want 2", len(fresh))
	}
	if !s.Known(b) || !s.Known(c) {
		t.Error("merged addresses should be known afterward")
	}
}

func TestSet_Known(t *testing.T) {
	s := New()
	a := types.Address{0x01}
	if s.Known(a) {
		t.Error("unregistered address should not be known")
	}
	s.Add(a)
	if !s.Known(a) {
		t.Error("registered address should be known")
	}
}
