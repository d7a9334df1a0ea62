// Package tx defines transaction types and validation for the
// account-balance ledger.
package tx

import (
	"encoding/binary"

	"github.com/Klingon-tech/ledgercore/pkg/crypto"
	"github.com/Klingon-tech/ledgercore/pkg/types"
)

// Transaction is an immutable payment record. SelfBalance is the sender's
// balance snapshot at issuance time, used only as a Bloom fast-path hint —
// it is never trusted as ground truth during exact validation. Nonce is the
// sender's expected next nonce.
type Transaction struct {
	SelfBalance uint32       `json:"self_balance"`
	Recipient   types.Address `json:"recipient"`
	Value       uint32       `json:"value"`
	Nonce       uint32       `json:"nonce"`
}

// SignedTransaction pairs a Transaction with the sender's public key and
// signature over it.
type SignedTransaction struct {
	PublicKey []byte      `json:"public_key"`
	Signature []byte      `json:"signature"`
	Tx        Transaction `json:"tx"`
}

// Sender derives the sending address from the embedded public key.
func (s *SignedTransaction) Sender() types.Address {
	return crypto.AddressFromPubKey(s.PublicKey)
}

// Hash returns the transaction identity hash. The signature is excluded so
// that two signatures over the same payload dedupe to one mempool entry.
func (s *SignedTransaction) Hash() types.Hash {
	return s.Tx.Hash()
}

// Hash computes the canonical hash of the transaction body, excluding any
// signature.
func (t *Transaction) Hash() types.Hash {
	return crypto.Hash(t.SigningBytes())
}

// SigningBytes returns the canonical byte representation signed by the
// sender and hashed for transaction identity.
// Format: self_balance(4) | recipient(20) | value(4) | nonce(4)
func (t *Transaction) SigningBytes() []byte {
	buf := make([]byte, 0, 32)
	buf = binary.LittleEndian.AppendUint32(buf, t.SelfBalance)
	buf = append(buf, t.Recipient[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, t.Value)
	buf = binary.LittleEndian.AppendUint32(buf, t.Nonce)
	return buf
}

// Sign produces a SignedTransaction for t using the given key.
func Sign(key *crypto.PrivateKey, t Transaction) (*SignedTransaction, error) {
	sig, err := key.Sign(t.SigningBytes())
	if err != nil {
		return nil, err
	}
	return &SignedTransaction{
		PublicKey: key.PublicKey(),
		Signature: sig,
		Tx:        t,
	}, nil
}
