package tx

import (
	"errors"
	"testing"

	"github.com/Klingon-tech/ledgercore/pkg/crypto"
	"github.com/Klingon-tech/ledgercore/pkg/types"
)

// fakeFastPath is a trivial in-memory stand-in for the Bloom filter used in
// tests that exercise the fast-path wiring without depending on
// internal/bloom.
type fakeFastPath struct {
	seen map[string]bool
}

func newFakeFastPath() *fakeFastPath { return &fakeFastPath{seen: map[string]bool{}} }

func (f *fakeFastPath) MaybePresent(key []byte) bool { return f.seen[string(key)] }
func (f *fakeFastPath) Observe(key []byte)           { f.seen[string(key)] = true }

func mustSign(t *testing.T, key *crypto.PrivateKey, payload Transaction) *SignedTransaction {
	t.Helper()
	s, err := Sign(key, payload)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return s
}

func TestValidate_Accepts(t *testing.T) {
	key, _ := crypto.GenerateKey()
	s := mustSign(t, key, Transaction{SelfBalance: 100, Recipient: types.Address{0x01}, Value: 5, Nonce: 1})

	if err := Validate(s, Account{Nonce: 0, Balance: 100}, nil); err != nil {
		t.Errorf("expected acceptance, got %v", err)
	}
}

func TestValidate_RejectsBadSignature(t *testing.T) {
	key, _ := crypto.GenerateKey()
	s := mustSign(t, key, Transaction{Recipient: types.Address{0x01}, Value: 5, Nonce: 1})
	s.Signature[0] ^= 0xff

	if err := Validate(s, Account{Nonce: 0, Balance: 100}, nil); !errors.Is(err, ErrBadSignature) {
		t.Errorf("expected ErrBadSignature, got %v", err)
	}
}

func TestValidate_RejectsZeroNonce(t *testing.T) {
	key, _ := crypto.GenerateKey()
	s := mustSign(t, key, Transaction{Recipient: types.Address{0x01}, Value: 5, Nonce: 0})

	if err := Validate(s, Account{Nonce: 0, Balance: 100}, nil); !errors.Is(err, ErrZeroNonce) {
		t.Errorf("expected ErrZeroNonce, got %v", err)
	}
}

func TestValidate_RejectsBadNonce(t *testing.T) {
	key, _ := crypto.GenerateKey()
	s := mustSign(t, key, Transaction{Recipient: types.Address{0x01}, Value: 5, Nonce: 3})

	if err := Validate(s, Account{Nonce: 0, Balance: 100}, nil); !errors.Is(err, ErrBadNonce) {
		t.Errorf("expected ErrBadNonce, got %v", err)
	}
}

func TestValidate_RejectsInsufficientBalance(t *testing.T) {
	key, _ := crypto.GenerateKey()
	s := mustSign(t, key, Transaction{Recipient: types.Address{0x01}, Value: 500, Nonce: 1})

	if err := Validate(s, Account{Nonce: 0, Balance: 100}, nil); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestValidate_FastPath_MissRejects(t *testing.T) {
	key, _ := crypto.GenerateKey()
	s := mustSign(t, key, Transaction{SelfBalance: 100, Recipient: types.Address{0x01}, Value: 5, Nonce: 1})

	fp := newFakeFastPath() // never observed this sender before
	if err := Validate(s, Account{Nonce: 0, Balance: 100}, fp); !errors.Is(err, ErrFastPathMiss) {
		t.Errorf("expected ErrFastPathMiss, got %v", err)
	}
}

func TestValidate_FastPath_HitAdmits(t *testing.T) {
	key, _ := crypto.GenerateKey()
	s := mustSign(t, key, Transaction{SelfBalance: 100, Recipient: types.Address{0x01}, Value: 5, Nonce: 1})

	fp := newFakeFastPath()
	fp.Observe(FastPathKey(key.Address(), 0, 100))

	if err := Validate(s, Account{Nonce: 0, Balance: 100}, fp); err != nil {
		t.Errorf("expected acceptance, got %v", err)
	}
}

func TestValidate_NonceCheckedBeforeFastPath(t *testing.T) {
	key, _ := crypto.GenerateKey()
	// Zero nonce should be rejected before ever consulting the fast path,
	// so an empty fast path must not matter here.
	s := mustSign(t, key, Transaction{Recipient: types.Address{0x01}, Value: 5, Nonce: 0})

	fp := newFakeFastPath()
	if err := Validate(s, Account{Nonce: 0, Balance: 100}, fp); !errors.Is(err, ErrZeroNonce) {
		t.Errorf("expected ErrZeroNonce, got %v", err)
	}
}
