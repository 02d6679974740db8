package encryption

import (
	"fmt"

	"golang.org/x/crypto/scrypt"
)

// KeyLength is the AES-256 key size produced by key stretching.
const KeyLength = 32

// LegacySalt and LegacyIV are the fixed values used by the original
// backup format. They are kept to read old files and for the
// "legacy" write format only.
var (
	LegacySalt = []byte{0x35, 0x51, 0x03, 0x80, 0x75, 0xa3, 0xb0, 0xc5}
	LegacyIV   = []byte{0xa3, 0x44, 0x39, 0x1f, 0x53, 0x83, 0x11, 0xb3, 0x29, 0x54, 0x86, 0x16, 0xc4, 0x89, 0x72, 0x3e}
)

// ScryptParams are the cost parameters for password stretching.
type ScryptParams struct {
	N int
	R int
	P int
}

// DefaultScryptParams match the parameters of existing backups.
var DefaultScryptParams = ScryptParams{N: 16384, R: 8, P: 1}

// Key stretches secret with salt into a KeyLength byte key.
func (p ScryptParams) Key(secret, salt []byte) ([]byte, error) {
	key, err := scrypt.Key(secret, salt, p.N, p.R, p.P, KeyLength)
	if err != nil {
		return nil, fmt.Errorf("stretching key: %w", err)
	}
	return key, nil
}

// DeriveKey stretches password with salt using the default parameters.
func DeriveKey(password, salt []byte) ([]byte, error) {
	return DefaultScryptParams.Key(password, salt)
}
