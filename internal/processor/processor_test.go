package processor

import (
	"testing"

	"github.com/Klingon-tech/ledgercore/internal/bloom"
	"github.com/Klingon-tech/ledgercore/internal/ledger"
	"github.com/Klingon-tech/ledgercore/internal/mempool"
	"github.com/Klingon-tech/ledgercore/internal/orphan"
	"github.com/Klingon-tech/ledgercore/internal/p2p"
	"github.com/Klingon-tech/ledgercore/internal/peerset"
	"github.com/Klingon-tech/ledgercore/pkg/block"
	"github.com/Klingon-tech/ledgercore/pkg/crypto"
	"github.com/Klingon-tech/ledgercore/pkg/tx"
	"github.com/Klingon-tech/ledgercore/pkg/types"
)

// easyDifficulty is all-0xff: any header meets it, so tests can build
// blocks deterministically without mining.
var easyDifficulty = types.Hash{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

const icoBalance = 100

type testEnv struct {
	p         *Processor
	transport *fakeTransport
	store     *ledger.Store
	pool      *mempool.Pool
	state     *ledger.StateIndex
	witness   *ledger.WitnessMap
	orphans   *orphan.Buffer
	peers     *peerset.Set
	genesis   *block.Block
	key       *crypto.PrivateKey
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	genesis := ledger.NewGenesisBlock(easyDifficulty)
	store := ledger.New(genesis)
	state := ledger.NewStateIndex(genesis.Hash(), ledger.GenesisSnapshot(key.Address(), ledger.GenesisBalance))
	pool := mempool.New()
	witness := ledger.NewWitnessMap()
	orphans := orphan.New()
	peers := peerset.New()
	transport := newFakeTransport()

	p := New(transport, store, pool, state, witness, orphans, peers, nil, easyDifficulty, icoBalance)

	return &testEnv{
		p: p, transport: transport, store: store, pool: pool, state: state,
		witness: witness, orphans: orphans, peers: peers, genesis: genesis, key: key,
	}
}

// newTestEnvWithFastPath is identical to newTestEnv but wires a real Bloom
// filter in, so tests can exercise the NewPeer/acceptOne seeding path
// instead of always taking the fastPath == nil shortcut.
func newTestEnvWithFastPath(t *testing.T) *testEnv {
	t.Helper()
	env := newTestEnv(t)

	fast, err := bloom.NewFastPath(1000, 0.03)
	if err != nil {
		t.Fatalf("NewFastPath: %v", err)
	}
	// Mirror node.New's own self-seed, since env.key stands in for the
	// node's own genesis-funded identity in these tests.
	fast.Observe(tx.FastPathKey(env.key.Address(), 0, ledger.GenesisBalance))
	env.p = New(env.transport, env.store, env.pool, env.state, env.witness, env.orphans, env.peers, fast, easyDifficulty, icoBalance)
	return env
}

// childBlock builds a valid child of parent carrying txs, sealed against
// easyDifficulty (nonce 0 always meets an all-0xff target).
func childBlock(parentHash types.Hash, txs []*tx.SignedTransaction) *block.Block {
	header := &block.Header{
		ParentHash: parentHash,
		Nonce:      0,
		Difficulty: easyDifficulty,
		Timestamp:  1,
	}
	return block.NewBlock(header, txs)
}

func signPayment(t *testing.T, key *crypto.PrivateKey, recipient types.Address, value, nonce, selfBalance uint32) *tx.SignedTransaction {
	t.Helper()
	signed, err := tx.Sign(key, tx.Transaction{SelfBalance: selfBalance, Recipient: recipient, Value: value, Nonce: nonce})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return signed
}

func TestProcessor_Ping(t *testing.T) {
	env := newTestEnv(t)
	env.p.handle(p2p.Inbound{Msg: p2p.Ping("abc"), From: fakePeerHandle("peer1")})

	writes := env.transport.writesTo("peer1")
	if len(writes) != 1 || writes[0].Kind != p2p.KindPong || writes[0].Nonce != "abc" {
		t.Fatalf("expected a single Pong(abc) reply, got %+v", writes)
	}
}

func TestProcessor_NewPeerRegistersAndAcks(t *testing.T) {
	env := newTestEnv(t)
	addr := types.Address{0x09}
	env.p.handle(p2p.Inbound{Msg: p2p.NewPeerMsg(addr), From: fakePeerHandle("peer1")})

	if !env.peers.Known(addr) {
		t.Error("new peer should be registered")
	}
	writes := env.transport.writesTo("peer1")
	if len(writes) != 1 || writes[0].Kind != p2p.KindAck {
		t.Fatalf("expected a single Ack reply, got %+v", writes)
	}
}

func TestProcessor_AckMergesAndRebroadcastsFreshPeers(t *testing.T) {
	env := newTestEnv(t)
	a, b := types.Address{0x01}, types.Address{0x02}
	env.peers.Add(a) // already known, must not be re-broadcast

	env.p.handle(p2p.Inbound{Msg: p2p.AckMsg([]types.Address{a, b}), From: fakePeerHandle("peer1")})

	if !env.peers.Known(b) {
		t.Fatal("merged peer should be known")
	}
	if got := env.transport.broadcastCount(); got != 1 {
		t.Fatalf("expected exactly 1 re-broadcast for the single fresh peer, got %d", got)
	}
	if msg := env.transport.lastBroadcast(); msg.Kind != p2p.KindNewPeer || msg.Peer != b {
		t.Fatalf("expected NewPeer(%v) broadcast, got %+v", b, msg)
	}
}

func TestProcessor_BlocksAcceptsValidBlockAndDerivesState(t *testing.T) {
	env := newTestEnv(t)
	recipient := types.Address{0x02}
	signed := signPayment(t, env.key, recipient, 5, 1, ledger.GenesisBalance)
	env.pool.Push(signed)

	b := childBlock(env.genesis.Hash(), []*tx.SignedTransaction{signed})
	env.p.handle(p2p.Inbound{Msg: p2p.BlocksMsg([]*block.Block{b}), From: fakePeerHandle("peer1")})

	if env.store.Tip() != b.Hash() {
		t.Fatal("tip should advance to the accepted block")
	}
	if env.pool.Has(signed.Hash()) {
		t.Error("included transaction should be evicted from the mempool")
	}
	snap, ok := env.state.Get(b.Hash())
	if !ok {
		t.Fatal("accepted block must have a derived snapshot")
	}
	if got, want := snap[recipient].Balance, uint32(5); got != want {
		t.Errorf("recipient balance = %d, want %d", got, want)
	}
	if got := env.transport.broadcastsOfKind(p2p.KindNewState); len(got) != 1 {
		t.Fatalf("expected a single NewState broadcast, got %d", len(got))
	}
	if got := env.transport.broadcastsOfKind(p2p.KindNewBlockHashes); len(got) != 1 {
		t.Fatalf("expected a single NewBlockHashes broadcast for the new tip, got %d", len(got))
	}
}

// TestProcessor_FastPathSeededByNewPeerAdmitsFirstBlock proves the Bloom
// fast-path seeding fix: a peer's first transaction, included in a block
// right after that peer's NewPeer registration, must pass
// ValidateAgainstForPeers's fast-path check rather than permanently
// missing it, since handleNewPeer seeds the peer's ICO pre-state up front.
func TestProcessor_FastPathSeededByNewPeerAdmitsFirstBlock(t *testing.T) {
	env := newTestEnvWithFastPath(t)

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	addr := key.Address()

	env.p.handle(p2p.Inbound{Msg: p2p.NewPeerMsg(addr), From: fakePeerHandle("peer1")})
	if !env.peers.Known(addr) {
		t.Fatal("new peer should be registered")
	}

	signed := signPayment(t, key, types.Address{0x02}, 1, 1, icoBalance)
	b := childBlock(env.genesis.Hash(), []*tx.SignedTransaction{signed})
	env.p.handle(p2p.Inbound{Msg: p2p.BlocksMsg([]*block.Block{b}), From: fakePeerHandle("peer1")})

	if env.store.Tip() != b.Hash() {
		t.Fatal("block from newly registered peer should be accepted once the fast-path is seeded")
	}
}

// TestProcessor_FastPathSeededOnAcceptanceAdmitsFollowUpBlock proves the
// second seeding site: a transaction chained on top of an already-accepted
// one must pass the fast-path check against the pre-state acceptOne seeds
// when the first transaction was included.
func TestProcessor_FastPathSeededOnAcceptanceAdmitsFollowUpBlock(t *testing.T) {
	env := newTestEnvWithFastPath(t)

	first := signPayment(t, env.key, types.Address{0x02}, 1, 1, ledger.GenesisBalance)
	parent := childBlock(env.genesis.Hash(), []*tx.SignedTransaction{first})
	env.p.handle(p2p.Inbound{Msg: p2p.BlocksMsg([]*block.Block{parent}), From: fakePeerHandle("peer1")})
	if env.store.Tip() != parent.Hash() {
		t.Fatal("first block should be accepted")
	}

	// acceptOne seeds the fast-path with (sender, first.Tx.Nonce,
	// first.Tx.SelfBalance) — the tx's own declared fields, not a
	// recomputed post-balance — so the chained tx must declare the same
	// self-balance to hit that seeded entry.
	second := signPayment(t, env.key, types.Address{0x03}, 1, 2, ledger.GenesisBalance)
	child := childBlock(parent.Hash(), []*tx.SignedTransaction{second})
	env.p.handle(p2p.Inbound{Msg: p2p.BlocksMsg([]*block.Block{child}), From: fakePeerHandle("peer1")})

	if env.store.Tip() != child.Hash() {
		t.Fatal("follow-up block should be accepted once the prior tx's post-state is seeded")
	}
}

func TestProcessor_BlocksRejectsInvalidTransaction(t *testing.T) {
	env := newTestEnv(t)
	recipient := types.Address{0x02}
	// overspend: sender only has GenesisBalance, claim a larger value
	signed := signPayment(t, env.key, recipient, ledger.GenesisBalance+1, 1, ledger.GenesisBalance)

	b := childBlock(env.genesis.Hash(), []*tx.SignedTransaction{signed})
	env.p.handle(p2p.Inbound{Msg: p2p.BlocksMsg([]*block.Block{b}), From: fakePeerHandle("peer1")})

	if env.store.Tip() != env.genesis.Hash() {
		t.Error("invalid block must not advance the tip")
	}
}

func TestProcessor_BlocksBuffersOrphanThenReconnects(t *testing.T) {
	env := newTestEnv(t)

	signed1 := signPayment(t, env.key, types.Address{0x02}, 1, 1, ledger.GenesisBalance)
	parent := childBlock(env.genesis.Hash(), []*tx.SignedTransaction{signed1})

	signed2 := signPayment(t, env.key, types.Address{0x03}, 1, 2, ledger.GenesisBalance-1)
	child := childBlock(parent.Hash(), []*tx.SignedTransaction{signed2})

	// Deliver the child first: its parent isn't known yet, so it must be
	// buffered as an orphan rather than rejected outright.
	env.p.handle(p2p.Inbound{Msg: p2p.BlocksMsg([]*block.Block{child}), From: fakePeerHandle("peer1")})
	if env.store.Contains(child.Hash()) {
		t.Fatal("orphan child must not be inserted before its parent arrives")
	}
	if env.orphans.Len() != 1 {
		t.Fatalf("orphan buffer should hold 1 pending parent, got %d", env.orphans.Len())
	}

	// Now deliver the parent: the reconnect sweep should pull the
	// previously buffered child in behind it, in the same handle call.
	env.p.handle(p2p.Inbound{Msg: p2p.BlocksMsg([]*block.Block{parent}), From: fakePeerHandle("peer1")})

	if env.store.Tip() != child.Hash() {
		t.Fatalf("tip should advance through the reconnected child, tip=%s want=%s", env.store.Tip(), child.Hash())
	}
	if env.orphans.Len() != 0 {
		t.Error("orphan buffer should be empty after a successful reconnect")
	}
}

func TestProcessor_TransactionsAdmitsValidAndRebroadcasts(t *testing.T) {
	env := newTestEnv(t)
	signed := signPayment(t, env.key, types.Address{0x02}, 1, 1, ledger.GenesisBalance)

	env.p.handle(p2p.Inbound{Msg: p2p.TransactionsMsg([]*tx.SignedTransaction{signed}), From: fakePeerHandle("peer1")})

	if !env.pool.Has(signed.Hash()) {
		t.Fatal("valid transaction should be admitted to the mempool")
	}
	if env.transport.broadcastCount() != 1 {
		t.Fatalf("expected a single NewTransactionHashes broadcast, got %d", env.transport.broadcastCount())
	}
	if msg := env.transport.lastBroadcast(); msg.Kind != p2p.KindNewTransactionHashes || len(msg.Hashes) != 1 {
		t.Fatalf("unexpected broadcast: %+v", msg)
	}
}

func TestProcessor_GetBlocksRepliesWithKnownBlocks(t *testing.T) {
	env := newTestEnv(t)
	env.p.handle(p2p.Inbound{Msg: p2p.GetBlocksMsg([]types.Hash{env.genesis.Hash()}), From: fakePeerHandle("peer1")})

	writes := env.transport.writesTo("peer1")
	if len(writes) != 1 || writes[0].Kind != p2p.KindBlocks || len(writes[0].Blocks) != 1 {
		t.Fatalf("expected a single Blocks reply carrying the genesis block, got %+v", writes)
	}
}

func TestProcessor_GetTransactionsRepliesFromMempool(t *testing.T) {
	env := newTestEnv(t)
	signed := signPayment(t, env.key, types.Address{0x02}, 1, 1, ledger.GenesisBalance)
	if err := env.pool.Push(signed); err != nil {
		t.Fatalf("Push: %v", err)
	}

	env.p.handle(p2p.Inbound{Msg: p2p.GetTransactionsMsg([]types.Hash{signed.Hash()}), From: fakePeerHandle("peer1")})

	writes := env.transport.writesTo("peer1")
	if len(writes) != 1 || writes[0].Kind != p2p.KindTransactions || len(writes[0].Txs) != 1 {
		t.Fatalf("expected a single Transactions reply, got %+v", writes)
	}
}
