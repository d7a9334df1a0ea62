package identity

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Klingon-tech/ledgercore/internal/log"
	"github.com/Klingon-tech/ledgercore/pkg/crypto"
)

const mnemonicFile = "identity.mnemonic"

// Identity is the node's persistent signing keypair, derived from a
// BIP-39 mnemonic.
type Identity struct {
	Mnemonic string
	Key      *crypto.PrivateKey
}

// LoadOrCreate loads the node's mnemonic from dataDir, decrypting it with
// passphrase if it was stored encrypted, or generates and persists a new
// one if none exists. An empty passphrase stores the mnemonic in the
// clear — acceptable for local development nodes, never for a node
// exposed to untrusted operators.
func LoadOrCreate(dataDir, passphrase string) (*Identity, error) {
	path := filepath.Join(dataDir, mnemonicFile)

	data, err := os.ReadFile(path)
	if err == nil {
		mnemonic, err := decodeMnemonicFile(data, passphrase)
		if err != nil {
			return nil, fmt.Errorf("load identity: %w", err)
		}
		key, err := KeyFromMnemonic(mnemonic, "")
		if err != nil {
			return nil, fmt.Errorf("derive key: %w", err)
		}
		log.Identity.Info().Str("address", key.Address().String()).Msg("loaded existing node identity")
		return &Identity{Mnemonic: mnemonic, Key: key}, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read identity file: %w", err)
	}

	mnemonic, err := GenerateMnemonic()
	if err != nil {
		return nil, fmt.Errorf("generate mnemonic: %w", err)
	}
	key, err := KeyFromMnemonic(mnemonic, "")
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	out := encodeMnemonicFile(mnemonic, passphrase)
	if err := os.WriteFile(path, out, 0600); err != nil {
		return nil, fmt.Errorf("persist identity: %w", err)
	}

	log.Identity.Info().Str("address", key.Address().String()).Msg("generated new node identity")
	return &Identity{Mnemonic: mnemonic, Key: key}, nil
}

const encryptedMagic = "LCENC1\x00"

func encodeMnemonicFile(mnemonic, passphrase string) []byte {
	if passphrase == "" {
		return []byte(mnemonic)
	}
	enc, err := Encrypt([]byte(mnemonic), []byte(passphrase), DefaultParams())
	if err != nil {
		// Encryption failure here means entropy/AEAD construction failed —
		// fall back to plaintext rather than lose the mnemonic outright.
		log.Identity.Error().Err(err).Msg("failed to encrypt identity, storing in clear")
		return []byte(mnemonic)
	}
	return append([]byte(encryptedMagic), enc...)
}

func decodeMnemonicFile(data []byte, passphrase string) (string, error) {
	if len(data) > len(encryptedMagic) && string(data[:len(encryptedMagic)]) == encryptedMagic {
		plaintext, err := Decrypt(data[len(encryptedMagic):], []byte(passphrase))
		if err != nil {
			return "", fmt.Errorf("decrypt identity file: %w", err)
		}
		return string(plaintext), nil
	}
	return string(data), nil
}
