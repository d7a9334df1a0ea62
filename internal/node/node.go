// Package node wires every collaborator described by spec.md §2 into a
// runnable process: ledger, mempool, state index, witness map, orphan
// buffer, peer set, Bloom fast-path, gossip transport, message processor,
// and (for a mining node) the miner and transaction generator.
package node

import (
	"fmt"

	"github.com/Klingon-tech/ledgercore/config"
	"github.com/Klingon-tech/ledgercore/internal/bloom"
	"github.com/Klingon-tech/ledgercore/internal/generator"
	"github.com/Klingon-tech/ledgercore/internal/identity"
	"github.com/Klingon-tech/ledgercore/internal/ledger"
	klog "github.com/Klingon-tech/ledgercore/internal/log"
	"github.com/Klingon-tech/ledgercore/internal/mempool"
	"github.com/Klingon-tech/ledgercore/internal/miner"
	"github.com/Klingon-tech/ledgercore/internal/orphan"
	"github.com/Klingon-tech/ledgercore/internal/p2p"
	"github.com/Klingon-tech/ledgercore/internal/peerset"
	"github.com/Klingon-tech/ledgercore/internal/processor"
	"github.com/Klingon-tech/ledgercore/internal/storage"
	"github.com/Klingon-tech/ledgercore/pkg/tx"
	"github.com/rs/zerolog"
)

// Node is a fully-initialized ledgercore node. Mining distinguishes a
// full node (runs the miner and generator) from an archival node (only
// relays and validates); both always re-derive state locally — an
// archival node never trusts a gossiped NewState witness as ground
// truth (spec.md §9's redesign flag rejects that shortcut).
type Node struct {
	cfg    *config.Flags
	logger zerolog.Logger
	Mining bool

	db       storage.DB
	identity *identity.Identity

	ledger  *ledger.Store
	mempool *mempool.Pool
	state   *ledger.StateIndex
	witness *ledger.WitnessMap
	orphans *orphan.Buffer
	peers   *peerset.Set
	fast    tx.FastPath

	transport *p2p.GossipTransport
	proc      *processor.Processor

	m         *miner.Miner
	minerH    *miner.Handle
	g         *generator.Generator
	generH    *generator.Handle
}

// New performs every setup step (logger, identity, storage, genesis,
// core structures, transport, processor, and — if mining — miner and
// generator) but starts no background goroutines; call Start for that.
func New(cfg *config.Flags) (*Node, error) {
	// ── 1. Logger ─────────────────────────────────────────────────
	if err := klog.Init(cfg.LogLevel, cfg.LogJSON, cfg.LogFile); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logger := klog.WithComponent("node")

	// ── 2. Node identity ──────────────────────────────────────────
	id, err := identity.LoadOrCreate(cfg.DataDir, cfg.Passphrase)
	if err != nil {
		return nil, fmt.Errorf("load identity: %w", err)
	}
	logger.Info().Str("address", id.Key.Address().String()).Msg("node identity ready")

	// ── 3. Peer address-book storage ──────────────────────────────
	db, err := storage.NewBadger(cfg.DataDir + "/peers")
	if err != nil {
		return nil, fmt.Errorf("open peer store: %w", err)
	}

	// ── 4. Genesis, ledger, state ──────────────────────────────────
	genesis := ledger.NewGenesisBlock(config.GenesisDifficulty)
	store := ledger.New(genesis)
	genesisSnap := ledger.GenesisSnapshot(ledger.GenesisFundedAddress, ledger.GenesisBalance)
	state := ledger.NewStateIndex(genesis.Hash(), genesisSnap)
	logger.Info().Str("genesis", genesis.Hash().String()).Msg("genesis block created")

	// ── 5. Mempool, witness map, orphan buffer, peer set, Bloom filter ──
	pool := mempool.New()
	witness := ledger.NewWitnessMap()
	orphans := orphan.New()
	peers := peerset.New()
	// Register this node's own address as a known peer up front, matching
	// main.rs's self-registration (init_state.insert(address, (0,100)))
	// before the worker loop starts — otherwise this node's own account
	// is never "known" to DeriveForPeers/ValidateAgainstForPeers, and its
	// own transaction generator could never mint a valid first payment.
	peers.Add(id.Key.Address())
	fast, err := bloom.NewFastPath(config.BloomExpectedItems, config.BloomFalsePositiveRate)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init bloom fast-path: %w", err)
	}
	// Seed the fast-path with that same self pre-state, for the same
	// reason: the node's own first self-generated transaction never goes
	// through its own NewPeer handler to get observed.
	fast.Observe(tx.FastPathKey(id.Key.Address(), 0, ledger.GenesisBalance))

	// ── 6. Gossip transport ─────────────────────────────────────────
	transport := p2p.NewGossipTransport(p2p.Config{
		ListenAddr: cfg.ListenAddr,
		Port:       cfg.Port,
		Seeds:      cfg.SeedList(),
		NoDiscover: cfg.NoDiscover,
		DB:         db,
		DHTServer:  cfg.DHTServer,
		NetworkID:  cfg.NetworkID,
		DataDir:    cfg.DataDir,
	})

	// ── 7. Message processor ───────────────────────────────────────
	workers := cfg.Workers
	if workers <= 0 {
		workers = config.DefaultWorkers
	}
	proc := processor.New(transport, store, pool, state, witness, orphans, peers, fast,
		config.GenesisDifficulty, ledger.GenesisBalance)
	proc.Workers = workers

	n := &Node{
		cfg: cfg, logger: logger, Mining: cfg.Mine,
		db: db, identity: id,
		ledger: store, mempool: pool, state: state, witness: witness, orphans: orphans, peers: peers, fast: fast,
		transport: transport, proc: proc,
	}

	// ── 8. Miner and generator (full node only) ─────────────────────
	if cfg.Mine {
		n.m = miner.New(store, pool, state, transport, config.GenesisDifficulty, config.DefaultBlockCap)
		n.g = generator.New(id.Key, peers, store, state, pool)
	}

	return n, nil
}

// Start brings up the transport, the processor worker pool, and — for a
// mining node — the miner and generator, returning once background
// goroutines are launched (it does not block).
func (n *Node) Start() error {
	if err := n.transport.Start(); err != nil {
		return fmt.Errorf("start transport: %w", err)
	}

	n.proc.Start()
	n.logger.Info().Int("workers", n.proc.Workers).Msg("message processor started")

	if n.Mining {
		n.minerH = n.m.Start()
		n.minerH.Run(0)
		n.generH = n.g.Start()
		n.generH.Run()
		n.logger.Info().Msg("miner and transaction generator running")
	}

	return nil
}

// Stop shuts down the miner/generator, tears down the transport, and closes
// the peer-address-book database.
func (n *Node) Stop() error {
	if n.Mining {
		if n.minerH != nil {
			n.minerH.Shutdown()
		}
		if n.generH != nil {
			n.generH.Shutdown()
		}
	}
	if err := n.transport.Stop(); err != nil {
		n.logger.Warn().Err(err).Msg("transport stop failed")
	}
	return n.db.Close()
}

// Height reports the current tip height, for diagnostics.
func (n *Node) Height() uint64 {
	height, _ := n.ledger.Height(n.ledger.Tip())
	return height
}
