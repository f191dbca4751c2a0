// Package keys is the boundary to key derivation. Derivation of a key from a
// recovery phrase is done by an external Provider, this package only validates
// phrases and resolves keys which were derived earlier.
package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oasisprotocol/curve25519-voi/primitives/ed25519"
)

const MnemonicWords = 24

var (
	ErrInvalidMnemonic = errors.New("invalid mnemonic")
	ErrKeyNotFound     = errors.New("key not found in keystore")
)

// Provider - turns recovery phrase and optional password into signing key
type Provider interface {
	KeyPair(words []string, password string) (ed25519.PrivateKey, error)
}

type ProviderFunc func(words []string, password string) (ed25519.PrivateKey, error)

func (f ProviderFunc) KeyPair(words []string, password string) (ed25519.PrivateKey, error) {
	return f(words, password)
}

// ValidateMnemonic - checks phrase shape, 24 lowercase latin words
func ValidateMnemonic(words []string) error {
	if len(words) != MnemonicWords {
		return fmt.Errorf("%w: should be %d words, got %d", ErrInvalidMnemonic, MnemonicWords, len(words))
	}
	for i, w := range words {
		if w == "" {
			return fmt.Errorf("%w: word %d is empty", ErrInvalidMnemonic, i)
		}
		for _, r := range w {
			if r < 'a' || r > 'z' {
				return fmt.Errorf("%w: word %d has unexpected symbol %q", ErrInvalidMnemonic, i, r)
			}
		}
	}
	return nil
}

func FromSeed(seed []byte) (ed25519.PrivateKey, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed should be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

// Fingerprint - stable name of the key derived from phrase and password,
// it does not reveal the phrase
func Fingerprint(words []string, password string) string {
	h := sha256.New()
	h.Write([]byte(strings.Join(words, " ")))
	h.Write([]byte{0})
	h.Write([]byte(password))
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// Keystore - resolves seeds stored in Dir as <fingerprint>.seed files with hex content
type Keystore struct {
	Dir string
}

func (k Keystore) Path(words []string, password string) string {
	return filepath.Join(k.Dir, Fingerprint(words, password)+".seed")
}

func (k Keystore) KeyPair(words []string, password string) (ed25519.PrivateKey, error) {
	if err := ValidateMnemonic(words); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(k.Path(words, password))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	seed, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode key file: %w", err)
	}
	return FromSeed(seed)
}

// Static - returns the same key for any valid phrase, useful for tests and cold wallets
type Static struct {
	Key ed25519.PrivateKey
}

func (s Static) KeyPair(words []string, _ string) (ed25519.PrivateKey, error) {
	if err := ValidateMnemonic(words); err != nil {
		return nil, err
	}
	return s.Key, nil
}
