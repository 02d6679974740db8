package brit

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"mbhd-go/internal/encryption"
	"mbhd-go/internal/identity"
	"mbhd-go/internal/mbhd"
)

// NewSessionKey returns a random session key.
func NewSessionKey() ([]byte, error) {
	key := make([]byte, SessionKeyLength)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating session key: %w", err)
	}
	return key, nil
}

// Payer is the wallet side of the exchange. It remembers the wallet id and
// session key of its latest request so the response can be decrypted.
type Payer struct {
	matcherPublicKey string
	logger           mbhd.Logger

	mu      sync.Mutex
	pending *PayerRequest
}

// NewPayer creates a Payer that encrypts to matcherPublicKey.
func NewPayer(matcherPublicKey string, logger mbhd.Logger) *Payer {
	if logger == nil {
		logger = mbhd.NewNopLogger()
	}
	return &Payer{matcherPublicKey: matcherPublicKey, logger: logger}
}

// NewPayerRequest builds a request with a fresh session key and remembers
// it for DecryptMatcherResponse.
func (p *Payer) NewPayerRequest(id mbhd.WalletID, firstTransactionDate *time.Time) (*PayerRequest, error) {
	sessionKey, err := NewSessionKey()
	if err != nil {
		return nil, err
	}
	req, err := NewPayerRequest(id, sessionKey, firstTransactionDate)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.pending = req
	p.mu.Unlock()
	return req, nil
}

// EncryptPayerRequest encrypts the request to the Matcher's public key as
// an armored blob.
func (p *Payer) EncryptPayerRequest(req *PayerRequest) ([]byte, error) {
	return EncryptPayerRequest(req, p.matcherPublicKey, p.logger)
}

// DecryptMatcherResponse decrypts a response to the latest request.
func (p *Payer) DecryptMatcherResponse(encrypted []byte) (*MatcherResponse, error) {
	p.mu.Lock()
	req := p.pending
	p.mu.Unlock()
	if req == nil {
		return nil, fmt.Errorf("%w: no request has been made", ErrResponseDecryption)
	}
	return DecryptMatcherResponse(encrypted, req.BritWalletID, req.SessionKey)
}

// EncryptPayerRequest encrypts req to matcherPublicKey.
func EncryptPayerRequest(req *PayerRequest, matcherPublicKey string, logger mbhd.Logger) ([]byte, error) {
	var out bytes.Buffer
	if err := encryption.EncryptArmored(bytes.NewReader(req.Serialize()), &out, matcherPublicKey); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestEncryption, err)
	}
	if logger != nil {
		logger.Debug("payer request encrypted", "bytes", out.Len())
	}
	return out.Bytes(), nil
}

// DecryptMatcherResponse decrypts a response with the key rebuilt from
// the wallet id and session key of the request it answers.
func DecryptMatcherResponse(encrypted []byte, id mbhd.WalletID, sessionKey []byte) (*MatcherResponse, error) {
	if len(sessionKey) != SessionKeyLength {
		return nil, fmt.Errorf("%w: session key is %d bytes, want %d", ErrResponseDecryption, len(sessionKey), SessionKeyLength)
	}
	plaintext, err := encryption.DecryptCBC(encrypted, identity.StretchedKey(id), sessionKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResponseDecryption, err)
	}
	resp, err := ParseMatcherResponse(plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResponseDecryption, err)
	}
	return resp, nil
}
