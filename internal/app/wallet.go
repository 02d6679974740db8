package app

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"

	"mbhd-go/internal/identity"
	"mbhd-go/internal/mbhd"
	"mbhd-go/internal/zero"
)

// walletDocument is the wallet state kept by the CLI.
type walletDocument struct {
	Name       string    `toml:"name"`
	Derivation string    `toml:"derivation"`
	CreatedAt  time.Time `toml:"created_at"`
	SavedAt    time.Time `toml:"saved_at"`

	// Keys are compressed public keys in hex, by derivation index.
	Keys []string `toml:"keys"`
}

func (d *walletDocument) encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(d); err != nil {
		return nil, fmt.Errorf("encoding wallet document: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeWalletDocument(data []byte) (*walletDocument, error) {
	var d walletDocument
	if _, err := toml.Decode(string(data), &d); err != nil {
		return nil, fmt.Errorf("decoding wallet document: %w", err)
	}
	return &d, nil
}

// validateWalletDocument rejects decrypted bytes that are not a wallet
// document, so rolling recovery moves on to an older backup.
func validateWalletDocument(data []byte) error {
	d, err := decodeWalletDocument(data)
	if err != nil {
		return err
	}
	if len(d.Keys) == 0 {
		return errors.New("wallet document has no keys")
	}
	return nil
}

// DerivedKey is one key derived from a recovery phrase.
type DerivedKey struct {
	Index     uint32
	PublicKey string
	Address   string
}

// NewRecoveryPhrase generates a fresh 12 word recovery phrase.
func (a *MBHDApp) NewRecoveryPhrase() ([]string, error) {
	return identity.NewMnemonic(128)
}

// DeriveKeys derives count keys starting at index start using the
// configured derivation.
func (a *MBHDApp) DeriveKeys(words []string, start, count uint32) ([]*DerivedKey, error) {
	seed, err := identity.Bip39Converter{}.ToSeed(words)
	if err != nil {
		return nil, err
	}
	defer zero.Bytes(seed)

	d, err := identity.NewKeyDeriver(a.cfg.Keys.Derivation, seed)
	if err != nil {
		return nil, err
	}
	if z, ok := d.(interface{ Zero() }); ok {
		defer z.Zero()
	}

	keys := make([]*DerivedKey, 0, count)
	for i := start; i < start+count; i++ {
		priv, err := d.DeriveKey(i)
		if err != nil {
			return nil, err
		}
		pub := priv.PubKey().SerializeCompressed()
		priv.Zero()
		addr, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(pub), &chaincfg.MainNetParams)
		if err != nil {
			return nil, fmt.Errorf("encoding address %d: %w", i, err)
		}
		keys = append(keys, &DerivedKey{Index: i, PublicKey: hex.EncodeToString(pub), Address: addr.EncodeAddress()})
	}
	return keys, nil
}

// CreateWallet creates a wallet for the recovery phrase. The initial state
// holds the first derived key.
func (a *MBHDApp) CreateWallet(words []string, password []byte, name, notes string) (*mbhd.WalletSummary, error) {
	if err := a.persistOperation(name); err != nil {
		return nil, err
	}
	keys, err := a.DeriveKeys(words, 0, 1)
	if err != nil {
		return nil, a.op.Fail(fmt.Errorf("deriving first key: %w", err))
	}
	now := a.clock.Now().UTC()
	doc := &walletDocument{
		Name:       name,
		Derivation: a.cfg.Keys.Derivation,
		CreatedAt:  now,
		SavedAt:    now,
		Keys:       []string{keys[0].PublicKey},
	}
	data, err := doc.encode()
	if err != nil {
		return nil, a.op.Fail(err)
	}
	s, err := a.manager.CreateWallet(words, password, name, notes, data)
	return s, a.op.Fail(err)
}

// ListWallets returns the summaries of the wallets in the app data
// directory. Wallets with an unreadable summary are logged and skipped.
func (a *MBHDApp) ListWallets() ([]*mbhd.WalletSummary, error) {
	ids, err := a.manager.FindWalletDirectories()
	if err != nil {
		return nil, err
	}
	var out []*mbhd.WalletSummary
	for _, id := range ids {
		s, err := a.manager.ReadWalletSummary(id)
		if err != nil {
			a.logger.Warn("skipping wallet with unreadable summary", "wallet", id.String(), "error", err)
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// RecoverPassword returns the wallet id and password escrowed for the
// recovery phrase.
func (a *MBHDApp) RecoverPassword(words []string) (mbhd.WalletID, []byte, error) {
	return a.manager.RecoverPassword(words)
}

// SaveWallet re-saves the current wallet state, which takes a rolling
// backup and zip backups as a side effect.
func (a *MBHDApp) SaveWallet(rawID string, password []byte) error {
	id, err := a.walletID(rawID)
	if err != nil {
		return err
	}
	if err := a.persistOperation(rawID); err != nil {
		return err
	}
	state, err := a.manager.LoadWallet(id, password)
	if err != nil {
		return a.op.Fail(err)
	}
	doc, err := decodeWalletDocument(state.Data)
	if err != nil {
		return a.op.Fail(err)
	}
	doc.SavedAt = a.clock.Now().UTC()
	if state.Data, err = doc.encode(); err != nil {
		return a.op.Fail(err)
	}
	return a.op.Fail(a.manager.SaveWallet(state, password))
}

// BackupRolling takes a rolling backup of the current wallet state.
func (a *MBHDApp) BackupRolling(rawID string, password []byte) (*mbhd.BackupSummary, error) {
	id, err := a.walletID(rawID)
	if err != nil {
		return nil, err
	}
	if err := a.persistOperation(rawID); err != nil {
		return nil, err
	}
	state, err := a.manager.LoadWallet(id, password)
	if err != nil {
		return nil, a.op.Fail(err)
	}
	b, err := a.manager.CreateRollingBackup(state, password)
	return b, a.op.Fail(err)
}

// BackupLocal writes a zip backup to the wallet's zip-backup directory.
func (a *MBHDApp) BackupLocal(rawID string, password []byte) (*mbhd.BackupSummary, error) {
	id, err := a.walletID(rawID)
	if err != nil {
		return nil, err
	}
	if err := a.persistOperation(rawID); err != nil {
		return nil, err
	}
	b, err := a.manager.CreateLocalBackup(id, password)
	return b, a.op.Fail(err)
}

// BackupCloud writes a zip backup to the cloud target. It returns nil and
// no error when no usable cloud target is configured.
func (a *MBHDApp) BackupCloud(rawID string, password []byte) (*mbhd.BackupSummary, error) {
	id, err := a.walletID(rawID)
	if err != nil {
		return nil, err
	}
	if err := a.persistOperation(rawID); err != nil {
		return nil, err
	}
	b, err := a.manager.CreateCloudBackup(id, password)
	return b, a.op.Fail(err)
}

// BackupListing groups the backups of one wallet by kind, oldest first.
type BackupListing struct {
	Rolling []*mbhd.BackupSummary
	Local   []*mbhd.BackupSummary
	Cloud   []*mbhd.BackupSummary
}

// ListBackups returns every backup of the wallet.
func (a *MBHDApp) ListBackups(rawID string) (*BackupListing, error) {
	id, err := a.walletID(rawID)
	if err != nil {
		return nil, err
	}
	var l BackupListing
	if l.Rolling, err = a.manager.GetRollingBackups(id); err != nil {
		return nil, err
	}
	if l.Local, err = a.manager.GetLocalZipBackups(id); err != nil {
		return nil, err
	}
	if l.Cloud, err = a.manager.GetCloudBackups(id); err != nil {
		return nil, err
	}
	return &l, nil
}

// Thin applies the zip retention rule to the local and cloud backups and
// returns what was deleted.
func (a *MBHDApp) Thin(rawID string) ([]*mbhd.BackupSummary, error) {
	id, err := a.walletID(rawID)
	if err != nil {
		return nil, err
	}
	if err := a.persistOperation(rawID); err != nil {
		return nil, err
	}
	deleted, err := a.manager.ThinBackupDirectory(id, filepath.Join(a.manager.WalletRoot(id), mbhd.ZipBackupDirectory))
	if err != nil {
		return deleted, a.op.Fail(err)
	}
	cloud, err := a.manager.ThinCloudBackups(id)
	return append(deleted, cloud...), a.op.Fail(err)
}

// RestoreRolling loads the newest usable rolling backup. With apply set
// the recovered state replaces the wallet file.
func (a *MBHDApp) RestoreRolling(rawID string, password []byte, apply bool) (*mbhd.WalletState, error) {
	id, err := a.walletID(rawID)
	if err != nil {
		return nil, err
	}
	if err := a.persistOperation(rawID); err != nil {
		return nil, err
	}
	state, err := a.manager.LoadRollingBackup(id, password)
	if err != nil {
		return nil, a.op.Fail(err)
	}
	if apply {
		if err := a.manager.SaveWallet(state, password); err != nil {
			return nil, a.op.Fail(err)
		}
	}
	return state, nil
}

// RestoreZip restores a wallet directory from an encrypted zip archive
// using the recovery phrase.
func (a *MBHDApp) RestoreZip(archivePath string, words []string) (mbhd.WalletID, error) {
	if err := a.persistOperation(archivePath); err != nil {
		return mbhd.WalletID{}, err
	}
	id, err := a.manager.LoadZipBackup(archivePath, words)
	return id, a.op.Fail(err)
}

// walletID parses an id given on the command line, with or without the
// wallet directory prefix.
func (a *MBHDApp) walletID(raw string) (mbhd.WalletID, error) {
	return mbhd.ParseWalletID(strings.TrimPrefix(strings.TrimSpace(raw), mbhd.WalletRootPrefix))
}
