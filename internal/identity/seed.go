package identity

import (
	"fmt"

	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/ed25519"

	"github.com/Klingon-tech/ledgercore/pkg/crypto"
)

// SeedFromMnemonic derives a 512-bit BIP-39 seed from a mnemonic and
// optional passphrase using PBKDF2-SHA512.
func SeedFromMnemonic(mnemonic, passphrase string) ([]byte, error) {
	if !ValidateMnemonic(mnemonic) {
		return nil, fmt.Errorf("invalid mnemonic")
	}
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
	if err != nil {
		return nil, fmt.Errorf("derive seed: %w", err)
	}
	return seed, nil
}

// KeyFromMnemonic derives the node's Ed25519 identity key from a BIP-39
// mnemonic. The 512-bit BIP-39 seed is truncated to the 32-byte Ed25519
// seed size; unlike secp256k1, Ed25519 has no standard hierarchical
// derivation path from a BIP-39 seed, so this is a direct one-key
// derivation rather than a wallet tree.
func KeyFromMnemonic(mnemonic, passphrase string) (*crypto.PrivateKey, error) {
	seed, err := SeedFromMnemonic(mnemonic, passphrase)
	if err != nil {
		return nil, err
	}
	return crypto.PrivateKeyFromSeed(seed[:ed25519.SeedSize])
}
