package mbhd

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// WalletIDLength is the number of bytes in a WalletID.
const WalletIDLength = 20

// WalletID is the seed-derived identifier of a wallet. It is rendered as five
// dash-separated groups of eight lowercase hex characters.
type WalletID [WalletIDLength]byte

var walletIDPattern = regexp.MustCompile(`^[0-9a-f]{8}(-[0-9a-f]{8}){4}$`)

// NewWalletIDFromBytes copies b into a WalletID. b must be exactly
// WalletIDLength bytes long.
func NewWalletIDFromBytes(b []byte) (WalletID, error) {
	var id WalletID
	if len(b) != WalletIDLength {
		return id, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidWalletID, len(b), WalletIDLength)
	}
	copy(id[:], b)
	return id, nil
}

// ParseWalletID parses the formatted (dashed) representation. Plain
// hex without dashes is accepted too.
func ParseWalletID(s string) (WalletID, error) {
	var id WalletID
	s = strings.ToLower(strings.TrimSpace(s))
	if strings.Contains(s, "-") && !walletIDPattern.MatchString(s) {
		return id, fmt.Errorf("%w: %q", ErrInvalidWalletID, s)
	}
	raw, err := hex.DecodeString(strings.ReplaceAll(s, "-", ""))
	if err != nil {
		return id, fmt.Errorf("%w: %q: %w", ErrInvalidWalletID, s, err)
	}
	return NewWalletIDFromBytes(raw)
}

// String returns the formatted representation, e.g.
// "66666666-77777777-88888888-99999999-aaaaaaaa".
func (id WalletID) String() string {
	h := hex.EncodeToString(id[:])
	var b strings.Builder
	for i := 0; i < len(h); i += 8 {
		if i > 0 {
			b.WriteByte('-')
		}
		b.WriteString(h[i : i+8])
	}
	return b.String()
}

// Bytes returns a copy of the raw identifier bytes.
func (id WalletID) Bytes() []byte {
	b := make([]byte, WalletIDLength)
	copy(b, id[:])
	return b
}

// IsZero reports whether the id is unset.
func (id WalletID) IsZero() bool {
	return id == WalletID{}
}

// RootName is the directory name of the wallet under the application
// data directory.
func (id WalletID) RootName() string {
	return WalletRootPrefix + id.String()
}
