// Package miner implements block production: assembling candidate blocks
// from the head of the mempool, sealing them against a fixed
// proof-of-work target with a single random nonce per attempt, and
// broadcasting the resulting longest chain.
package miner

import (
	"crypto/rand"
	"encoding/binary"
	"time"

	"github.com/Klingon-tech/ledgercore/internal/ledger"
	"github.com/Klingon-tech/ledgercore/internal/log"
	"github.com/Klingon-tech/ledgercore/internal/mempool"
	"github.com/Klingon-tech/ledgercore/internal/p2p"
	"github.com/Klingon-tech/ledgercore/pkg/block"
	"github.com/Klingon-tech/ledgercore/pkg/types"
)

type signalKind int

const (
	signalRun signalKind = iota
	signalPause
	signalExit
)

type controlSignal struct {
	kind   signalKind
	lambda uint64 // microseconds between attempts; only meaningful for signalRun
}

// operatingState mirrors the Paused -> Running(lambda) -> ShutDown
// lifecycle a miner control channel drives.
type operatingState int

const (
	statePaused operatingState = iota
	stateRunning
	stateShutDown
)

// Handle lets a caller on another goroutine drive a started Miner.
type Handle struct {
	control chan controlSignal
}

// Run starts (or resumes) continuous mining with lambdaMicros delay
// between attempts; 0 means no delay between attempts.
func (h *Handle) Run(lambdaMicros uint64) {
	h.control <- controlSignal{kind: signalRun, lambda: lambdaMicros}
}

// Pause stops mining attempts without exiting the goroutine; the miner
// blocks on the control channel until Run or Shutdown is sent.
func (h *Handle) Pause() {
	h.control <- controlSignal{kind: signalPause}
}

// Shutdown tells the miner to exit at the next iteration boundary.
func (h *Handle) Shutdown() {
	h.control <- controlSignal{kind: signalExit}
}

// Miner is the block-production loop. It reads the tip and drains
// candidate transactions under the ledger/mempool lock order of the
// shared-resource policy, derives and stores the resulting account
// snapshot, and broadcasts the new longest chain on success.
type Miner struct {
	ledger     *ledger.Store
	mempool    *mempool.Pool
	state      *ledger.StateIndex
	transport  p2p.Transport
	difficulty types.Hash
	blockCap   int

	control chan controlSignal
	op      operatingState
	lambda  uint64
}

// New creates a miner that assembles blocks from pool against store,
// sealed to difficulty, deriving snapshots into index and broadcasting
// through transport. blockCap <= 0 uses mempool.DefaultBlockCap.
func New(store *ledger.Store, pool *mempool.Pool, index *ledger.StateIndex, transport p2p.Transport, difficulty types.Hash, blockCap int) *Miner {
	if blockCap <= 0 {
		blockCap = mempool.DefaultBlockCap
	}
	return &Miner{
		ledger:     store,
		mempool:    pool,
		state:      index,
		transport:  transport,
		difficulty: difficulty,
		blockCap:   blockCap,
		op:         statePaused,
	}
}

// Start launches the mining goroutine, initially paused, and returns a
// Handle to control it.
func (m *Miner) Start() *Handle {
	m.control = make(chan controlSignal, 4)
	h := &Handle{control: m.control}
	go m.loop()
	log.Miner.Info().Msg("miner initialized into paused mode")
	return h
}

func (m *Miner) loop() {
	for {
		switch m.op {
		case statePaused:
			sig, ok := <-m.control
			if !ok {
				log.Miner.Warn().Msg("miner control channel closed, exiting")
				return
			}
			m.applySignal(sig)
			continue
		case stateShutDown:
			return
		default: // stateRunning: poll non-blockingly
			select {
			case sig := <-m.control:
				m.applySignal(sig)
			default:
			}
		}

		if m.op != stateRunning {
			continue
		}

		m.attempt()

		if m.lambda != 0 {
			time.Sleep(time.Duration(m.lambda) * time.Microsecond)
		}
	}
}

func (m *Miner) applySignal(sig controlSignal) {
	switch sig.kind {
	case signalExit:
		log.Miner.Info().Msg("miner shutting down")
		m.op = stateShutDown
	case signalPause:
		log.Miner.Info().Msg("miner pausing")
		m.op = statePaused
	case signalRun:
		log.Miner.Info().Uint64("lambda_us", sig.lambda).Msg("miner running")
		m.op = stateRunning
		m.lambda = sig.lambda
	}
}

// attempt performs one mining step: draft, seal, and — on success —
// insert a single candidate block. It is a no-op when the mempool is
// empty or the random-nonce candidate misses the difficulty target.
func (m *Miner) attempt() {
	parent := m.ledger.Tip()
	candidateTxs := m.mempool.Drain(m.blockCap)
	if len(candidateTxs) == 0 {
		return
	}

	header := &block.Header{
		ParentHash: parent,
		Nonce:      randomNonce(),
		Difficulty: m.difficulty,
		Timestamp:  time.Now().UnixNano(),
	}
	candidate := block.NewBlock(header, candidateTxs)

	if !candidate.Header.MeetsDifficulty() {
		return
	}

	height, _, err := m.ledger.Insert(candidate)
	if err != nil {
		log.Miner.Error().Err(err).Msg("mined block failed to insert")
		return
	}
	if _, err := m.state.Derive(candidate); err != nil {
		log.Miner.Error().Err(err).Msg("failed to derive state for mined block")
		return
	}

	hashes := make([]types.Hash, len(candidateTxs))
	for i, t := range candidateTxs {
		hashes[i] = t.Hash()
	}
	m.mempool.Evict(hashes)

	log.Miner.Info().
		Uint64("height", height).
		Str("hash", candidate.Hash().String()).
		Int("txs", len(candidateTxs)).
		Msg("mined new block")

	if m.transport != nil {
		chain := m.ledger.LongestChain()
		if err := m.transport.Broadcast(p2p.NewBlockHashesMsg(chain)); err != nil {
			log.Miner.Warn().Err(err).Msg("broadcast of new block hashes failed")
		}
	}
}

func randomNonce() uint32 {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand failure here means the OS entropy source is broken;
		// fall back to the current time so mining can still make progress.
		return uint32(time.Now().UnixNano())
	}
	return binary.LittleEndian.Uint32(buf[:])
}
