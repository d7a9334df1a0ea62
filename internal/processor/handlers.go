package processor

import (
	"github.com/Klingon-tech/ledgercore/internal/ledger"
	"github.com/Klingon-tech/ledgercore/internal/log"
	"github.com/Klingon-tech/ledgercore/internal/p2p"
	"github.com/Klingon-tech/ledgercore/pkg/block"
	"github.com/Klingon-tech/ledgercore/pkg/tx"
	"github.com/Klingon-tech/ledgercore/pkg/types"
)

// handle dispatches a single inbound message to its handler, grounded on
// the reference worker loop's match over every gossip message kind
// (spec.md §4.7). Each collaborator (ledger, mempool, state index, witness
// map, orphan buffer) takes and releases its own mutex inside every call;
// a handler never holds two of those locks at once and calls into them in
// whatever order it needs, so the mutations made for one message are not
// atomic with respect to other workers.
func (p *Processor) handle(in p2p.Inbound) {
	switch in.Msg.Kind {
	case p2p.KindPing:
		p.handlePing(in)
	case p2p.KindPong:
		// liveness only; nothing to do
	case p2p.KindNewBlockHashes:
		p.handleNewBlockHashes(in)
	case p2p.KindGetBlocks:
		p.handleGetBlocks(in)
	case p2p.KindBlocks:
		p.handleBlocks(in)
	case p2p.KindNewState:
		p.handleNewState(in)
	case p2p.KindNewTransactionHashes:
		p.handleNewTransactionHashes(in)
	case p2p.KindGetTransactions:
		p.handleGetTransactions(in)
	case p2p.KindTransactions:
		p.handleTransactions(in)
	case p2p.KindNewPeer:
		p.handleNewPeer(in)
	case p2p.KindAck:
		p.handleAck(in)
	default:
		log.Processor.Warn().Uint8("kind", uint8(in.Msg.Kind)).Msg("unrecognized message kind")
	}
}

func (p *Processor) handlePing(in p2p.Inbound) {
	if err := p.transport.Write(in.From, p2p.Pong(in.Msg.Nonce)); err != nil {
		log.Processor.Warn().Err(err).Str("peer", in.From.String()).Msg("pong write failed")
	}
}

func (p *Processor) handleNewBlockHashes(in p2p.Inbound) {
	var missing []types.Hash
	for _, h := range in.Msg.Hashes {
		if !p.ledger.Contains(h) {
			missing = append(missing, h)
		}
	}
	if len(missing) == 0 {
		return
	}
	if err := p.transport.Write(in.From, p2p.GetBlocksMsg(missing)); err != nil {
		log.Processor.Warn().Err(err).Msg("get-blocks write failed")
	}
}

func (p *Processor) handleGetBlocks(in p2p.Inbound) {
	var blocks []*block.Block
	for _, h := range in.Msg.Hashes {
		if b, ok := p.ledger.Block(h); ok {
			blocks = append(blocks, b)
		}
	}
	if len(blocks) == 0 {
		return
	}
	if err := p.transport.Write(in.From, p2p.BlocksMsg(blocks)); err != nil {
		log.Processor.Warn().Err(err).Msg("blocks write failed")
	}
}

func (p *Processor) handleBlocks(in p2p.Inbound) {
	tipBefore := p.ledger.Tip()
	anyAccepted := false

	for _, b := range in.Msg.Blocks {
		if p.acceptOne(b) {
			anyAccepted = true
		}
	}

	p.orphans.Reconnect(p.ledger.Contains, p.acceptOne)

	if anyAccepted && p.ledger.Tip() != tipBefore {
		if err := p.transport.Broadcast(p2p.NewBlockHashesMsg(p.ledger.LongestChain())); err != nil {
			log.Processor.Warn().Err(err).Msg("new-block-hashes broadcast failed")
		}
	}

	if pending := p.orphans.PendingParents(); len(pending) > 0 {
		if err := p.transport.Broadcast(p2p.GetBlocksMsg(pending)); err != nil {
			log.Processor.Warn().Err(err).Msg("get-blocks request for pending orphan parents failed")
		}
	}
}

// requestParent asks the network for a block this node needs to reconnect
// an orphan, per spec's orphan-buffer rule of issuing a GetBlocks on Add.
func (p *Processor) requestParent(parent types.Hash) {
	if err := p.transport.Broadcast(p2p.GetBlocksMsg([]types.Hash{parent})); err != nil {
		log.Processor.Warn().Err(err).Msg("get-blocks request for orphan parent failed")
	}
}

// acceptOne validates and inserts a single block, buffering it as an
// orphan when its parent is unknown. A block whose parent isn't in the
// ledger can't be validated at all — there's no parent snapshot to check
// its transactions against — so an unknown parent is handled before, not
// after, validation. Reports whether the block was newly accepted into
// the ledger, so Buffer.Reconnect can keep sweeping for orphans chained
// on top of it.
func (p *Processor) acceptOne(b *block.Block) bool {
	if b.Header.Difficulty != p.difficulty {
		log.Processor.Warn().Str("block", b.Hash().String()).Msg("block difficulty differs from the chain's fixed target, dropping")
		return false
	}
	if !b.Header.MeetsDifficulty() {
		log.Processor.Warn().Str("block", b.Hash().String()).Msg("block fails difficulty target, dropping")
		return false
	}
	if !p.ledger.Contains(b.Header.ParentHash) {
		p.orphans.Add(b)
		p.requestParent(b.Header.ParentHash)
		return false
	}
	if err := p.validateAgainstParent(b); err != nil {
		log.Processor.Warn().Err(err).Str("block", b.Hash().String()).Msg("block transaction failed validation, dropping")
		return false
	}

	_, _, err := p.ledger.Insert(b)
	switch err {
	case nil:
		// fall through to state derivation below
	case ledger.ErrUnknownParent:
		p.orphans.Add(b)
		p.requestParent(b.Header.ParentHash)
		return false
	case ledger.ErrAlreadyExists:
		return false
	default:
		log.Processor.Warn().Err(err).Msg("unexpected ledger insert error")
		return false
	}

	snap, err := p.state.DeriveForPeers(b, p.peers.Known, p.icoBalance)
	if err != nil {
		log.Processor.Warn().Err(err).Str("block", b.Hash().String()).Msg("state derivation failed after insert")
		return true
	}

	hash := b.Hash()
	p.mempool.Evict(includedHashes(b))
	p.witness.Delete(hash)
	if p.fastPath != nil {
		for _, st := range b.Transactions {
			p.fastPath.Observe(tx.FastPathKey(st.Sender(), st.Tx.Nonce, st.Tx.SelfBalance))
		}
	}
	if err := p.transport.Broadcast(p2p.NewStateMsg(hash, snap)); err != nil {
		log.Processor.Warn().Err(err).Msg("new-state broadcast failed")
	}
	return true
}

func includedHashes(b *block.Block) []types.Hash {
	out := make([]types.Hash, len(b.Transactions))
	for i, st := range b.Transactions {
		out[i] = st.Hash()
	}
	return out
}

// validateAgainstParent checks every transaction in b against the fixed
// parent snapshot — not the cumulative in-block state Derive builds —
// matching the reference validation rule of checking each transaction
// against the block's stated parent state.
func (p *Processor) validateAgainstParent(b *block.Block) error {
	parent := b.Header.ParentHash
	for _, signed := range b.Transactions {
		if err := p.state.ValidateAgainstForPeers(parent, signed, p.fastPath, p.peers.Known, p.icoBalance); err != nil {
			return err
		}
	}
	return nil
}

// handleNewState records every witness, keyed by block hash. A witness for
// the current tip is never installed as ground truth — state is always
// re-derived locally (see DESIGN.md) — but it's logged as a diagnostic
// signal that the network agrees with the locally-derived tip snapshot.
func (p *Processor) handleNewState(in p2p.Inbound) {
	hash := in.Msg.State.BlockHash
	p.witness.Record(hash, in.Msg.State.Snapshot)

	if hash == p.ledger.Tip() {
		if snap, ok := p.witness.Get(hash); ok {
			log.Processor.Debug().Str("block", hash.String()).Int("accounts", len(snap)).
				Msg("witness received for current tip, kept as a hint only")
		}
	}
}

func (p *Processor) handleNewTransactionHashes(in p2p.Inbound) {
	var missing []types.Hash
	for _, h := range in.Msg.Hashes {
		if !p.mempool.Has(h) {
			missing = append(missing, h)
		}
	}
	if len(missing) == 0 {
		return
	}
	if err := p.transport.Write(in.From, p2p.GetTransactionsMsg(missing)); err != nil {
		log.Processor.Warn().Err(err).Msg("get-transactions write failed")
	}
}

func (p *Processor) handleGetTransactions(in p2p.Inbound) {
	var txs []*tx.SignedTransaction
	for _, h := range in.Msg.Hashes {
		if signed, ok := p.mempool.Get(h); ok {
			txs = append(txs, signed)
		}
	}
	if len(txs) == 0 {
		return
	}
	if err := p.transport.Write(in.From, p2p.TransactionsMsg(txs)); err != nil {
		log.Processor.Warn().Err(err).Msg("transactions write failed")
	}
}

// handleTransactions admits on signature alone: balance and nonce can't be
// checked yet against a sender's current state, because the block that
// makes a given (nonce, value) valid may not have arrived or been mined
// yet. Exact validation happens at block-validation time, against the
// block's fixed parent snapshot (validateAgainstParent).
func (p *Processor) handleTransactions(in p2p.Inbound) {
	var accepted []types.Hash

	for _, signed := range in.Msg.Txs {
		if p.mempool.Has(signed.Hash()) {
			continue
		}
		if err := p.mempool.Push(signed); err != nil {
			log.Processor.Debug().Err(err).Str("tx", signed.Hash().String()).Msg("transaction rejected at admission")
			continue
		}
		accepted = append(accepted, signed.Hash())
	}

	if len(accepted) > 0 {
		if err := p.transport.Broadcast(p2p.NewTransactionHashesMsg(accepted)); err != nil {
			log.Processor.Warn().Err(err).Msg("new-transaction-hashes broadcast failed")
		}
	}
}

func (p *Processor) handleNewPeer(in p2p.Inbound) {
	if p.peers.Add(in.Msg.Peer) && p.fastPath != nil {
		// Seed the fast-path with this peer's initial-coin-offering
		// pre-state (nonce 0, icoBalance), matching the pre-state the
		// peer's first transaction will be checked against.
		p.fastPath.Observe(tx.FastPathKey(in.Msg.Peer, 0, p.icoBalance))
	}
	if err := p.transport.Write(in.From, p2p.AckMsg(p.peers.Addresses())); err != nil {
		log.Processor.Warn().Err(err).Msg("ack write failed")
	}
}

func (p *Processor) handleAck(in p2p.Inbound) {
	fresh := p.peers.Merge(in.Msg.Peers)
	if len(fresh) == 0 {
		return
	}
	for _, addr := range fresh {
		if err := p.transport.Broadcast(p2p.NewPeerMsg(addr)); err != nil {
			log.Processor.Warn().Err(err).Msg("new-peer re-broadcast failed")
		}
	}
}
