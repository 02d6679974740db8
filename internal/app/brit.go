package app

import (
	"fmt"
	"time"

	"mbhd-go/internal/brit"
	"mbhd-go/internal/encryption"
	"mbhd-go/internal/identity"
	"mbhd-go/internal/mbhd"
	"mbhd-go/internal/zero"
)

func (a *MBHDApp) matcherKeyring() *encryption.AgeKeyring {
	return encryption.NewMatcherKeyringFromConfig(a.cfg.Brit)
}

// BritKeygen creates the Matcher key pair, protecting the private key with
// passphrase, and returns the public key.
func (a *MBHDApp) BritKeygen(passphrase string) (string, error) {
	k := a.matcherKeyring()
	if k.IsConfigured() {
		return "", fmt.Errorf("matcher keys already exist at %s", a.cfg.Brit.MatcherPublicKeyPath)
	}
	if err := k.Setup(passphrase); err != nil {
		return "", fmt.Errorf("creating matcher keys: %w", err)
	}
	return k.PublicKey()
}

// BritRequest builds a Payer request for the wallet behind words and
// encrypts it to the configured Matcher public key. The returned request
// holds the session key needed to read the response.
func (a *MBHDApp) BritRequest(words []string, firstTransaction *time.Time) (*brit.PayerRequest, []byte, error) {
	publicKey, err := a.matcherKeyring().PublicKey()
	if err != nil {
		return nil, nil, fmt.Errorf("reading matcher public key: %w", err)
	}

	seed, err := identity.Bip39Converter{}.ToSeed(words)
	if err != nil {
		return nil, nil, err
	}
	defer zero.Bytes(seed)
	id, err := identity.BritWalletID(seed)
	if err != nil {
		return nil, nil, fmt.Errorf("deriving brit wallet id: %w", err)
	}

	payer := brit.NewPayer(publicKey, a.logger)
	req, err := payer.NewPayerRequest(id, firstTransaction)
	if err != nil {
		return nil, nil, err
	}
	encrypted, err := payer.EncryptPayerRequest(req)
	if err != nil {
		return nil, nil, err
	}
	return req, encrypted, nil
}

func (a *MBHDApp) matcher(passphrase string) (*brit.Matcher, error) {
	ctx, err := a.matcherKeyring().Unlock(passphrase)
	if err != nil {
		return nil, fmt.Errorf("unlocking matcher key: %w", err)
	}
	return brit.NewMatcher(ctx, a.logger), nil
}

// BritDecryptRequest opens a Payer request with the Matcher private key.
func (a *MBHDApp) BritDecryptRequest(encrypted []byte, passphrase string) (*brit.PayerRequest, error) {
	m, err := a.matcher(passphrase)
	if err != nil {
		return nil, err
	}
	return m.DecryptPayerRequest(encrypted)
}

// BritRespond answers a Payer request as the Matcher.
func (a *MBHDApp) BritRespond(encryptedRequest []byte, passphrase string, replayDate *time.Time, addresses []string) ([]byte, error) {
	m, err := a.matcher(passphrase)
	if err != nil {
		return nil, err
	}
	req, err := m.DecryptPayerRequest(encryptedRequest)
	if err != nil {
		return nil, err
	}
	resp := &brit.MatcherResponse{ReplayDate: replayDate, BitcoinAddresses: addresses}
	return m.EncryptMatcherResponse(resp, req)
}

// BritDecryptResponse reads a Matcher response with the wallet id and
// session key of the request it answers.
func (a *MBHDApp) BritDecryptResponse(encrypted []byte, rawID string, sessionKey []byte) (*brit.MatcherResponse, error) {
	id, err := mbhd.ParseWalletID(rawID)
	if err != nil {
		return nil, err
	}
	return brit.DecryptMatcherResponse(encrypted, id, sessionKey)
}
