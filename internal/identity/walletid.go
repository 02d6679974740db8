// Package identity derives everything that ties a wallet to its seed: the
// wallet id, the BRIT wallet id, the backup key and the private keys.
package identity

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/scrypt"

	"mbhd-go/internal/encryption"
	"mbhd-go/internal/mbhd"
)

// Fixed salts keep each derived identifier deterministic per seed while
// separating the domains from one another.
var (
	walletIDSalt     = []byte{0x01}
	britWalletIDSalt = []byte{0x02, 0x62, 0x72, 0x69, 0x74}
)

// BritWalletIDLength is the size of the identifier sent to a Matcher.
const BritWalletIDLength = 20

var errEmptySeed = errors.New("seed is empty")

func stretch(seed, salt []byte, length int) ([]byte, error) {
	if len(seed) == 0 {
		return nil, errEmptySeed
	}
	p := encryption.DefaultScryptParams
	out, err := scrypt.Key(seed, salt, p.N, p.R, p.P, length)
	if err != nil {
		return nil, fmt.Errorf("stretching seed: %w", err)
	}
	return out, nil
}

// NewWalletID derives the wallet id from a seed. The same seed always
// gives the same id.
func NewWalletID(seed []byte) (mbhd.WalletID, error) {
	raw, err := stretch(seed, walletIDSalt, mbhd.WalletIDLength)
	if err != nil {
		return mbhd.WalletID{}, fmt.Errorf("deriving wallet id: %w", err)
	}
	return mbhd.NewWalletIDFromBytes(raw)
}

// BritWalletID derives the identifier a Payer presents to a Matcher. It
// cannot be linked to the wallet id without the seed.
func BritWalletID(seed []byte) (mbhd.WalletID, error) {
	raw, err := stretch(seed, britWalletIDSalt, BritWalletIDLength)
	if err != nil {
		return mbhd.WalletID{}, fmt.Errorf("deriving brit wallet id: %w", err)
	}
	return mbhd.NewWalletIDFromBytes(raw)
}

// StretchedKey hashes a wallet id into a 32 byte AES key.
func StretchedKey(id mbhd.WalletID) []byte {
	sum := sha256.Sum256(id[:])
	return sum[:]
}

// BackupKey derives the password independent key protecting zip backups
// and the escrowed password.
func BackupKey(seed []byte) ([]byte, error) {
	return BackupKeyWithSalt(seed, encryption.LegacySalt)
}

// BackupKeyWithSalt is BackupKey with an explicit salt.
func BackupKeyWithSalt(seed, salt []byte) ([]byte, error) {
	if len(seed) == 0 {
		return nil, fmt.Errorf("deriving backup key: %w", errEmptySeed)
	}
	key, err := encryption.DeriveKey(seed, salt)
	if err != nil {
		return nil, fmt.Errorf("deriving backup key: %w", err)
	}
	return key, nil
}

// SeedKeys implements mbhd.SeedKeys.
type SeedKeys struct{}

var _ mbhd.SeedKeys = SeedKeys{}

func (SeedKeys) WalletID(seed []byte) (mbhd.WalletID, error) { return NewWalletID(seed) }
func (SeedKeys) BackupKey(seed []byte) ([]byte, error)     { return BackupKey(seed) }
