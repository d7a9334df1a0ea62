// Package p2p implements gossip-network transport for the ledger: the
// wire message union, the Transport collaborator contract, and a
// libp2p-backed implementation.
package p2p

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/Klingon-tech/ledgercore/internal/ledger"
	"github.com/Klingon-tech/ledgercore/pkg/block"
	"github.com/Klingon-tech/ledgercore/pkg/tx"
	"github.com/Klingon-tech/ledgercore/pkg/types"
)

// Kind tags the variant carried by a Message.
type Kind uint8

const (
	KindPing Kind = iota + 1
	KindPong
	KindNewBlockHashes
	KindGetBlocks
	KindBlocks
	KindNewState
	KindNewTransactionHashes
	KindGetTransactions
	KindTransactions
	KindNewPeer
	KindAck
)

// NewStatePayload carries a witnessed block hash alongside the account
// snapshot the sender claims results from it. The receiver must treat this
// as a hint — see internal/ledger.WitnessMap.
type NewStatePayload struct {
	BlockHash types.Hash
	Snapshot  ledger.Snapshot
}

// Message is the closed set of gossip messages exchanged between peers.
// Exactly one of the typed fields is populated, selected by Kind.
type Message struct {
	Kind Kind

	Nonce string // Ping/Pong

	Hashes []types.Hash // NewBlockHashes/GetBlocks/NewTransactionHashes/GetTransactions

	Blocks []*block.Block // Blocks

	State NewStatePayload // NewState

	Txs []*tx.SignedTransaction // Transactions

	Peer types.Address // NewPeer

	Peers []types.Address // Ack
}

// Ping builds a Ping message carrying an opaque liveness nonce.
func Ping(nonce string) Message { return Message{Kind: KindPing, Nonce: nonce} }

// Pong builds the matching reply for a Ping.
func Pong(nonce string) Message { return Message{Kind: KindPong, Nonce: nonce} }

// NewBlockHashesMsg announces newly accepted block hashes.
func NewBlockHashesMsg(hashes []types.Hash) Message {
	return Message{Kind: KindNewBlockHashes, Hashes: hashes}
}

// GetBlocksMsg requests full blocks for the given hashes.
func GetBlocksMsg(hashes []types.Hash) Message {
	return Message{Kind: KindGetBlocks, Hashes: hashes}
}

// BlocksMsg carries full blocks in response to GetBlocks.
func BlocksMsg(blocks []*block.Block) Message {
	return Message{Kind: KindBlocks, Blocks: blocks}
}

// NewStateMsg advertises the state snapshot resulting from a block.
func NewStateMsg(blockHash types.Hash, snap ledger.Snapshot) Message {
	return Message{Kind: KindNewState, State: NewStatePayload{BlockHash: blockHash, Snapshot: snap}}
}

// NewTransactionHashesMsg announces newly admitted transaction hashes.
func NewTransactionHashesMsg(hashes []types.Hash) Message {
	return Message{Kind: KindNewTransactionHashes, Hashes: hashes}
}

// GetTransactionsMsg requests full transactions for the given hashes.
func GetTransactionsMsg(hashes []types.Hash) Message {
	return Message{Kind: KindGetTransactions, Hashes: hashes}
}

// TransactionsMsg carries full signed transactions in response to
// GetTransactions.
func TransactionsMsg(txs []*tx.SignedTransaction) Message {
	return Message{Kind: KindTransactions, Txs: txs}
}

// NewPeerMsg announces a newly seen peer address.
func NewPeerMsg(addr types.Address) Message {
	return Message{Kind: KindNewPeer, Peer: addr}
}

// AckMsg carries the sender's known peer set in reply to NewPeer/Ack.
func AckMsg(peers []types.Address) Message {
	return Message{Kind: KindAck, Peers: peers}
}

// Encode serializes a Message for the wire.
func Encode(m Message) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(m); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode deserializes a Message from the wire.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&m); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	return m, nil
}
