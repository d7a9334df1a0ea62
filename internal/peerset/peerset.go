// Package peerset tracks the addresses of peers this node has learned
// about via the NewPeer/Ack gossip handshake (spec.md §4.7) — the
// reference node's "init-state" map. It is deliberately separate from
// internal/ledger.StateIndex: registering a peer is a live, ungossiped-
// snapshot fact the processor and transaction generator consult directly,
// not a per-block account snapshot.
package peerset

import (
	"sync"

	"github.com/Klingon-tech/ledgercore/pkg/types"
)

// Set is the thread-safe collection of known peer addresses.
type Set struct {
	mu    sync.Mutex
	addrs map[types.Address]struct{}
}

// New creates an empty peer set.
func New() *Set {
	return &Set{addrs: make(map[types.Address]struct{})}
}

// Add registers addr if unknown. Reports whether it was newly added.
func (s *Set) Add(addr types.Address) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.addrs[addr]; ok {
		return false
	}
	s.addrs[addr] = struct{}{}
	return true
}

// Merge registers every address in addrs that isn't already known.
// Returns the subset that was newly added, for re-gossiping.
func (s *Set) Merge(addrs []types.Address) []types.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	var fresh []types.Address
	for _, a := range addrs {
		if _, ok := s.addrs[a]; !ok {
			s.addrs[a] = struct{}{}
			fresh = append(fresh, a)
		}
	}
	return fresh
}

// Known reports whether addr has been registered.
func (s *Set) Known(addr types.Address) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.addrs[addr]
	return ok
}

// Addresses returns every known peer address, in unspecified order.
func (s *Set) Addresses() []types.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Address, 0, len(s.addrs))
	for a := range s.addrs {
		out = append(out, a)
	}
	return out
}

// Len returns the number of known peers.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.addrs)
}
