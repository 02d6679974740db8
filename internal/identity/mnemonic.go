package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip39"

	"mbhd-go/internal/mbhd"
)

// ErrInvalidMnemonic is returned for phrases that fail the BIP-39 checksum
// or contain unknown words.
var ErrInvalidMnemonic = errors.New("invalid recovery phrase")

// Bip39Converter implements mbhd.SeedConverter with an optional BIP-39
// passphrase.
type Bip39Converter struct {
	Passphrase string
}

var _ mbhd.SeedConverter = Bip39Converter{}

// ToSeed validates the phrase and returns its 64 byte seed.
func (c Bip39Converter) ToSeed(words []string) ([]byte, error) {
	mnemonic := strings.Join(strings.Fields(strings.ToLower(strings.Join(words, " "))), " ")
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, c.Passphrase)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMnemonic, err)
	}
	return seed, nil
}

// NewMnemonic generates a fresh phrase with the given entropy size in
// bits: 128 gives 12 words, 256 gives 24.
func NewMnemonic(bits int) ([]string, error) {
	entropy, err := bip39.NewEntropy(bits)
	if err != nil {
		return nil, fmt.Errorf("generating entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, fmt.Errorf("generating mnemonic: %w", err)
	}
	return strings.Fields(mnemonic), nil
}
