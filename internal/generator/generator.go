// Package generator implements the transaction generator (full node
// only): a periodic driver that, once at least one peer is known, picks a
// uniform-random peer and sends it a value-1 payment.
package generator

import (
	"math/rand"
	"time"

	"github.com/Klingon-tech/ledgercore/internal/ledger"
	"github.com/Klingon-tech/ledgercore/internal/log"
	"github.com/Klingon-tech/ledgercore/internal/mempool"
	"github.com/Klingon-tech/ledgercore/pkg/crypto"
	"github.com/Klingon-tech/ledgercore/pkg/tx"
	"github.com/Klingon-tech/ledgercore/pkg/types"
)

// Interval is the reference cadence: once per second.
const Interval = time.Second

type signalKind int

const (
	signalRun signalKind = iota
	signalPause
	signalExit
)

type controlSignal struct {
	kind signalKind
}

type operatingState int

const (
	statePaused operatingState = iota
	stateRunning
	stateShutDown
)

// Handle lets a caller on another goroutine drive a started Generator.
type Handle struct {
	control chan controlSignal
}

// Run starts (or resumes) the once-per-second generation loop.
func (h *Handle) Run() { h.control <- controlSignal{kind: signalRun} }

// Pause stops generation without exiting the goroutine.
func (h *Handle) Pause() { h.control <- controlSignal{kind: signalPause} }

// Shutdown tells the generator to exit at the next iteration boundary.
func (h *Handle) Shutdown() { h.control <- controlSignal{kind: signalExit} }

// PeerSet exposes the known-peer addresses the generator samples a
// recipient from; internal/processor's NewPeer/Ack handling is what keeps
// this populated.
type PeerSet interface {
	// Addresses returns every peer address currently known.
	Addresses() []types.Address
}

// Generator is the periodic payment driver. Each tick it consults the
// account-state snapshot at the current tip for its own (nonce, balance),
// builds a value-1 payment to a uniformly random peer that isn't itself,
// signs it, and pushes it to the shared mempool.
type Generator struct {
	key     *crypto.PrivateKey
	self    types.Address
	peers   PeerSet
	ledger  *ledger.Store
	state   *ledger.StateIndex
	mempool *mempool.Pool
	rng     *rand.Rand

	control chan controlSignal
	op      operatingState
}

// New creates a transaction generator signing with key, sampling
// recipients from peers, and reading account state from store/index.
func New(key *crypto.PrivateKey, peers PeerSet, store *ledger.Store, index *ledger.StateIndex, pool *mempool.Pool) *Generator {
	return &Generator{
		key:     key,
		self:    key.Address(),
		peers:   peers,
		ledger:  store,
		state:   index,
		mempool: pool,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		op:      statePaused,
	}
}

// Start launches the generator goroutine, initially paused, and returns a
// Handle to control it.
func (g *Generator) Start() *Handle {
	g.control = make(chan controlSignal, 4)
	h := &Handle{control: g.control}
	go g.loop()
	log.Generator.Info().Msg("generator initialized into paused mode")
	return h
}

func (g *Generator) loop() {
	for {
		switch g.op {
		case statePaused:
			sig, ok := <-g.control
			if !ok {
				log.Generator.Warn().Msg("generator control channel closed, exiting")
				return
			}
			g.applySignal(sig)
			continue
		case stateShutDown:
			return
		default:
			select {
			case sig := <-g.control:
				g.applySignal(sig)
			default:
			}
		}

		if g.op != stateRunning {
			continue
		}

		g.tick()
		time.Sleep(Interval)
	}
}

func (g *Generator) applySignal(sig controlSignal) {
	switch sig.kind {
	case signalExit:
		log.Generator.Info().Msg("generator shutting down")
		g.op = stateShutDown
	case signalPause:
		log.Generator.Info().Msg("generator pausing")
		g.op = statePaused
	case signalRun:
		log.Generator.Info().Msg("generator running")
		g.op = stateRunning
	}
}

// tick performs one generation attempt: skipped entirely when no peer
// other than self is known yet.
func (g *Generator) tick() {
	peer, ok := g.pickPeer()
	if !ok {
		return
	}

	tip := g.ledger.Tip()
	acct, ok := g.state.Account(tip, g.self)
	if !ok {
		// Not yet represented in the tip snapshot — nothing to spend from.
		return
	}

	payment := tx.Transaction{
		SelfBalance: acct.Balance,
		Recipient:   peer,
		Value:       1,
		Nonce:       acct.Nonce + 1,
	}
	signed, err := tx.Sign(g.key, payment)
	if err != nil {
		log.Generator.Error().Err(err).Msg("failed to sign generated transaction")
		return
	}
	if err := g.mempool.Push(signed); err != nil {
		log.Generator.Error().Err(err).Msg("failed to admit generated transaction")
		return
	}
	log.Generator.Debug().
		Str("recipient", peer.String()).
		Uint32("nonce", payment.Nonce).
		Msg("generated payment")
}

func (g *Generator) pickPeer() (types.Address, bool) {
	addrs := g.peers.Addresses()
	candidates := addrs[:0:0]
	for _, a := range addrs {
		if a != g.self {
			candidates = append(candidates, a)
		}
	}
	if len(candidates) == 0 {
		return types.Address{}, false
	}
	return candidates[g.rng.Intn(len(candidates))], true
}
