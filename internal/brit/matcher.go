package brit

import (
	"bytes"
	"fmt"
	"io"

	"mbhd-go/internal/encryption"
	"mbhd-go/internal/identity"
	"mbhd-go/internal/mbhd"
)

// Decrypter reads messages sealed to the Matcher's public key, e.g. an
// unlocked *encryption.AgeDecryptionContext.
type Decrypter interface {
	Decrypt(r io.Reader, w io.Writer) error
}

// Matcher is the service side of the exchange.
type Matcher struct {
	decrypter Decrypter
	logger    mbhd.Logger
}

// NewMatcher creates a Matcher using an unlocked private key.
func NewMatcher(decrypter Decrypter, logger mbhd.Logger) *Matcher {
	if logger == nil {
		logger = mbhd.NewNopLogger()
	}
	return &Matcher{decrypter: decrypter, logger: logger}
}

// DecryptPayerRequest opens and parses a request.
func (m *Matcher) DecryptPayerRequest(encrypted []byte) (*PayerRequest, error) {
	var plaintext bytes.Buffer
	if err := m.decrypter.Decrypt(bytes.NewReader(encrypted), &plaintext); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestDecryption, err)
	}
	req, err := ParsePayerRequest(plaintext.Bytes())
	if err != nil {
		return nil, err
	}
	m.logger.Debug("payer request decrypted", "wallet", req.BritWalletID.String())
	return req, nil
}

// EncryptMatcherResponse encrypts resp for the Payer behind req.
func (m *Matcher) EncryptMatcherResponse(resp *MatcherResponse, req *PayerRequest) ([]byte, error) {
	return EncryptMatcherResponse(resp, req.BritWalletID, req.SessionKey)
}

// EncryptMatcherResponse encrypts resp with SHA-256(id) as key and the
// session key as IV.
func EncryptMatcherResponse(resp *MatcherResponse, id mbhd.WalletID, sessionKey []byte) ([]byte, error) {
	if len(sessionKey) != SessionKeyLength {
		return nil, fmt.Errorf("%w: session key is %d bytes, want %d", ErrResponseEncryption, len(sessionKey), SessionKeyLength)
	}
	out, err := encryption.EncryptCBC(resp.Serialize(), identity.StretchedKey(id), sessionKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResponseEncryption, err)
	}
	return out, nil
}
