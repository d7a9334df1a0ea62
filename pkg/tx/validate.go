package tx

import (
	"errors"

	"github.com/Klingon-tech/ledgercore/pkg/crypto"
	"github.com/Klingon-tech/ledgercore/pkg/types"
)

// Validation errors.
var (
	ErrBadSignature        = errors.New("transaction: bad signature")
	ErrZeroNonce           = errors.New("transaction: nonce must not be zero")
	ErrBadNonce            = errors.New("transaction: nonce does not match expected next nonce")
	ErrInsufficientBalance = errors.New("transaction: insufficient balance")
	ErrFastPathMiss        = errors.New("transaction: bloom fast-path has no record of this sender's pre-state")
)

// Account is the (nonce, balance) pair the validation rules check a
// transaction against.
type Account struct {
	Nonce   uint32
	Balance uint32
}

// FastPath is the Bloom-filter pre-check collaborator: it records
// observations of (address, pre-nonce, self-balance) triples and answers
// whether a triple may have been seen before. A negative answer is exact
// (no false negatives); a positive answer is only advisory.
type FastPath interface {
	MaybePresent(key []byte) bool
	Observe(key []byte)
}

// FastPathKey builds the Bloom-filter membership key for (addr, preNonce,
// selfBalance), matching the "addr ∥ nonce ∥ self_balance" encoding.
func FastPathKey(addr types.Address, preNonce, selfBalance uint32) []byte {
	buf := make([]byte, 0, types.AddressSize+8)
	buf = append(buf, addr[:]...)
	buf = append(buf,
		byte(preNonce), byte(preNonce>>8), byte(preNonce>>16), byte(preNonce>>24),
		byte(selfBalance), byte(selfBalance>>8), byte(selfBalance>>16), byte(selfBalance>>24))
	return buf
}

// Validate checks a signed transaction against sender's current account
// state. fastPath may be nil to skip the advisory pre-check.
//
// Order: signature, then nonce (rejecting zero outright before the
// nonce-1 comparison a naive unsigned subtraction would underflow on),
// then balance, then (if fastPath is non-nil) the Bloom advisory check is
// consulted but never substituted for the exact checks above.
func Validate(s *SignedTransaction, sender Account, fastPath FastPath) error {
	if !crypto.VerifySignature(s.Tx.SigningBytes(), s.Signature, s.PublicKey) {
		return ErrBadSignature
	}
	if s.Tx.Nonce == 0 {
		return ErrZeroNonce
	}
	if s.Tx.Nonce != sender.Nonce+1 {
		return ErrBadNonce
	}
	if sender.Balance < s.Tx.Value {
		return ErrInsufficientBalance
	}

	if fastPath != nil {
		addr := s.Sender()
		key := FastPathKey(addr, s.Tx.Nonce-1, s.Tx.SelfBalance)
		if !fastPath.MaybePresent(key) {
			return ErrFastPathMiss
		}
		fastPath.Observe(key)
	}

	return nil
}
