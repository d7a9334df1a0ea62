package ledger

import (
	"fmt"
	"sync"

	"github.com/Klingon-tech/ledgercore/pkg/block"
	"github.com/Klingon-tech/ledgercore/pkg/tx"
	"github.com/Klingon-tech/ledgercore/pkg/types"
)

// Account is the per-address (nonce, balance) pair tracked by a snapshot.
type Account struct {
	Nonce   uint32
	Balance uint32
}

// Snapshot is the account-state index resulting from applying a block's
// transactions atop its parent's snapshot.
type Snapshot map[types.Address]Account

// Clone returns a deep copy, used as the base for deriving a child
// snapshot without mutating the parent's.
func (s Snapshot) Clone() Snapshot {
	c := make(Snapshot, len(s))
	for k, v := range s {
		c[k] = v
	}
	return c
}

// GenesisSnapshot returns the genesis snapshot: fundedAddress at
// (0, balance) and no other account.
func GenesisSnapshot(fundedAddress types.Address, balance uint32) Snapshot {
	return Snapshot{fundedAddress: {Nonce: 0, Balance: balance}}
}

// StateIndex maps block hash to the account-state snapshot that results
// from applying that block atop its parent.
type StateIndex struct {
	mu        sync.Mutex
	snapshots map[types.Hash]Snapshot
}

// NewStateIndex creates a state index seeded with the genesis block's
// snapshot.
func NewStateIndex(genesisHash types.Hash, genesis Snapshot) *StateIndex {
	return &StateIndex{
		snapshots: map[types.Hash]Snapshot{genesisHash: genesis},
	}
}

// Get returns the snapshot stored for hash.
func (si *StateIndex) Get(hash types.Hash) (Snapshot, bool) {
	si.mu.Lock()
	defer si.mu.Unlock()
	s, ok := si.snapshots[hash]
	return s, ok
}

// KnownPeer reports whether addr has been registered via the NewPeer/Ack
// gossip handshake (see internal/peerset). It lets DeriveForPeers extend
// the initial coin offering to peers discovered after genesis without
// rewriting any already-committed snapshot.
type KnownPeer func(addr types.Address) bool

// Derive computes and stores the child snapshot for b, whose parent
// snapshot must already be present. Applies each transaction in order:
// sender.balance -= value, sender.nonce = tx.nonce, recipient.balance +=
// value (recipient nonce unchanged). Senders absent from the parent
// snapshot make the block invalid; recipients absent are treated as
// (0, 0).
func (si *StateIndex) Derive(b *block.Block) (Snapshot, error) {
	return si.derive(b, nil, 0)
}

// DeriveForPeers is Derive, but a sender absent from the parent snapshot
// is treated as (0, icoBalance) rather than rejected, provided known
// reports it as a registered peer — the ongoing initial-coin-offering
// extended to every peer the gossip network has introduced, matching the
// NewPeer/Ack handling of the message processor (spec.md §4.7).
func (si *StateIndex) DeriveForPeers(b *block.Block, known KnownPeer, icoBalance uint32) (Snapshot, error) {
	return si.derive(b, known, icoBalance)
}

func (si *StateIndex) derive(b *block.Block, known KnownPeer, icoBalance uint32) (Snapshot, error) {
	parentHash := b.Header.ParentHash

	si.mu.Lock()
	parent, ok := si.snapshots[parentHash]
	si.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("ledger: no snapshot for parent %s", parentHash)
	}

	child := parent.Clone()
	for _, st := range b.Transactions {
		sender := st.Sender()
		acct, ok := child[sender]
		if !ok {
			if known == nil || !known(sender) {
				return nil, fmt.Errorf("ledger: sender %s not present in parent state", sender)
			}
			acct = Account{Nonce: 0, Balance: icoBalance}
		}
		acct.Balance -= st.Tx.Value
		acct.Nonce = st.Tx.Nonce
		child[sender] = acct

		recipient := child[st.Tx.Recipient]
		recipient.Balance += st.Tx.Value
		child[st.Tx.Recipient] = recipient
	}

	hash := b.Hash()
	si.mu.Lock()
	si.snapshots[hash] = child
	si.mu.Unlock()
	return child, nil
}

// Account looks up a single address's state within the snapshot for hash.
// Unknown addresses return the zero account and ok=false.
func (si *StateIndex) Account(hash types.Hash, addr types.Address) (Account, bool) {
	si.mu.Lock()
	defer si.mu.Unlock()
	snap, ok := si.snapshots[hash]
	if !ok {
		return Account{}, false
	}
	acct, ok := snap[addr]
	return acct, ok
}

// ValidateAgainst checks a signed transaction against the snapshot at
// hash, delegating the exact checks to tx.Validate.
func (si *StateIndex) ValidateAgainst(hash types.Hash, signed *tx.SignedTransaction, fastPath tx.FastPath) error {
	acct, _ := si.Account(hash, signed.Sender()) // unknown sender -> checked as the zero Account (nonce 0, balance 0)
	return tx.Validate(signed, tx.Account(acct), fastPath)
}

// ValidateAgainstForPeers is ValidateAgainst, but a sender absent from the
// snapshot at hash is given the (0, icoBalance) initial-coin-offering
// account when known reports it as a registered peer, matching
// DeriveForPeers.
func (si *StateIndex) ValidateAgainstForPeers(hash types.Hash, signed *tx.SignedTransaction, fastPath tx.FastPath, known KnownPeer, icoBalance uint32) error {
	acct, ok := si.Account(hash, signed.Sender())
	if !ok && known != nil && known(signed.Sender()) {
		acct = Account{Nonce: 0, Balance: icoBalance}
	}
	return tx.Validate(signed, tx.Account(acct), fastPath)
}
