// Package processor implements the message processor: the concurrent
// worker pool that ingests gossip messages, maintains the canonical
// longest chain, validates transactions against per-block account state,
// resolves orphan blocks, and coordinates the shared mempool with block
// production (spec.md §4.7, ~40% of the core).
package processor

import (
	"github.com/Klingon-tech/ledgercore/internal/ledger"
	"github.com/Klingon-tech/ledgercore/internal/log"
	"github.com/Klingon-tech/ledgercore/internal/mempool"
	"github.com/Klingon-tech/ledgercore/internal/orphan"
	"github.com/Klingon-tech/ledgercore/internal/p2p"
	"github.com/Klingon-tech/ledgercore/internal/peerset"
	"github.com/Klingon-tech/ledgercore/pkg/tx"
	"github.com/Klingon-tech/ledgercore/pkg/types"
)

// DefaultWorkers is the reference worker-pool size.
const DefaultWorkers = 4

// Processor is the worker pool described by spec.md §4.7/§5: every
// worker runs the same receive loop against transport's shared inbound
// channel. The ledger, mempool, state index, witness map, and orphan
// buffer are each locked only for the duration of a single call into
// them (see handle); no lock spans a whole message.
type Processor struct {
	Workers int

	transport  p2p.Transport
	ledger     *ledger.Store
	mempool    *mempool.Pool
	state      *ledger.StateIndex
	witness    *ledger.WitnessMap
	orphans    *orphan.Buffer
	peers      *peerset.Set
	fastPath   tx.FastPath
	difficulty types.Hash
	icoBalance uint32
}

// New creates a message processor over the given collaborators.
// fastPath may be nil to skip the Bloom advisory pre-check.
func New(
	transport p2p.Transport,
	store *ledger.Store,
	pool *mempool.Pool,
	state *ledger.StateIndex,
	witness *ledger.WitnessMap,
	orphans *orphan.Buffer,
	peers *peerset.Set,
	fastPath tx.FastPath,
	difficulty types.Hash,
	icoBalance uint32,
) *Processor {
	return &Processor{
		Workers:    DefaultWorkers,
		transport:  transport,
		ledger:     store,
		mempool:    pool,
		state:      state,
		witness:    witness,
		orphans:    orphans,
		peers:      peers,
		fastPath:   fastPath,
		difficulty: difficulty,
		icoBalance: icoBalance,
	}
}

// Start launches Workers goroutines, each draining transport's shared
// inbound channel. Workers run until the channel is closed (process
// shutdown) — no drain-on-exit guarantee is made or needed.
func (p *Processor) Start() {
	workers := p.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	for i := 0; i < workers; i++ {
		id := i
		go p.workerLoop(id)
	}
}

func (p *Processor) workerLoop(id int) {
	for in := range p.transport.Inbound() {
		p.handle(in)
	}
	log.Processor.Warn().Int("worker", id).Msg("processor worker exiting: inbound channel closed")
}
