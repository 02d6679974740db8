package mbhd

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"mbhd-go/internal/zero"
)

// WalletSummary is the unencrypted descriptor kept beside the wallet file.
// The password is escrowed under the seed-derived backup key, and the
// backup key under the password, so either secret recovers the other.
type WalletSummary struct {
	WalletID           WalletID  `toml:"-"`
	Name               string    `toml:"name"`
	Notes              string    `toml:"notes"`
	CreatedAt          time.Time `toml:"created_at"`
	EncryptedPassword  string    `toml:"encrypted_password"`
	EncryptedBackupKey string    `toml:"encrypted_backup_key"`
}

// CreateWallet sets up a wallet root for the seed behind words: the
// encrypted wallet file, the summary with both escrowed secrets and a
// first rolling backup.
func (m *BackupManager) CreateWallet(words []string, password []byte, name, notes string, data []byte) (*WalletSummary, error) {
	if m.cfg.Phrases == nil || m.cfg.Keys == nil {
		return nil, errors.New("wallet creation needs a seed converter and seed keys")
	}
	seed, err := m.cfg.Phrases.ToSeed(words)
	if err != nil {
		return nil, fmt.Errorf("converting recovery phrase: %w", err)
	}
	defer zero.Bytes(seed)

	id, err := m.cfg.Keys.WalletID(seed)
	if err != nil {
		return nil, fmt.Errorf("deriving wallet id: %w", err)
	}
	backupKey, err := m.cfg.Keys.BackupKey(seed)
	if err != nil {
		return nil, fmt.Errorf("deriving backup key: %w", err)
	}
	defer zero.Bytes(backupKey)

	defer m.lock(id)()
	root := m.WalletRoot(id)
	if _, err := m.cfg.Filesystem.Stat(filepath.Join(root, WalletFileName+EncryptedFileExtension)); err == nil {
		return nil, fmt.Errorf("wallet %s already exists in %s", id, root)
	}
	if err := m.cfg.Filesystem.MkdirAll(root); err != nil {
		return nil, fmt.Errorf("%w: creating %s: %w", ErrIO, root, err)
	}

	escrowedPassword, err := m.cfg.Codec.EncryptAndVerifyWithKey(password, backupKey)
	if err != nil {
		return nil, fmt.Errorf("escrowing password: %w", err)
	}
	escrowedKey, err := m.cfg.Codec.EncryptAndVerify(backupKey, password)
	if err != nil {
		return nil, fmt.Errorf("escrowing backup key: %w", err)
	}
	summary := &WalletSummary{
		WalletID:           id,
		Name:               name,
		Notes:              notes,
		CreatedAt:          m.cfg.Clock.Now().UTC(),
		EncryptedPassword:  hex.EncodeToString(escrowedPassword),
		EncryptedBackupKey: hex.EncodeToString(escrowedKey),
	}
	if err := m.writeWalletSummary(summary); err != nil {
		return nil, err
	}

	state := &WalletState{WalletID: id, Data: data}
	if err := m.writeWalletFile(state, password); err != nil {
		return nil, err
	}
	if _, err := m.createRollingBackup(state, password); err != nil {
		m.cfg.Logger.Warn("first rolling backup failed", "wallet", id.String(), "error", err)
	}
	m.cfg.Logger.Info("wallet created", "wallet", id.String(), "root", root)
	return summary, nil
}

// SaveWallet writes the encrypted wallet file, then takes a rolling
// backup and zip backups. Backup failures are logged; only a failure to
// save the wallet itself is returned.
func (m *BackupManager) SaveWallet(state *WalletState, password []byte) error {
	if state == nil || state.WalletID.IsZero() {
		return fmt.Errorf("%w: save without wallet id", ErrInvalidWalletID)
	}
	unlock := m.lock(state.WalletID)
	err := m.writeWalletFile(state, password)
	if err == nil {
		if _, rerr := m.createRollingBackup(state, password); rerr != nil {
			m.cfg.Logger.Error("rolling backup failed", "wallet", state.WalletID.String(), "error", rerr)
		}
	}
	unlock()
	if err != nil {
		return err
	}

	if _, err := m.CreateLocalBackup(state.WalletID, password); err != nil {
		m.cfg.Logger.Error("local zip backup failed", "wallet", state.WalletID.String(), "error", err)
	}
	if _, err := m.CreateCloudBackup(state.WalletID, password); err != nil {
		m.cfg.Logger.Error("cloud zip backup failed", "wallet", state.WalletID.String(), "error", err)
	}
	return nil
}

func (m *BackupManager) writeWalletFile(state *WalletState, password []byte) error {
	plainPath := filepath.Join(m.WalletRoot(state.WalletID), WalletFileName)
	if err := m.cfg.Filesystem.WriteFile(plainPath, state.Data); err != nil {
		return fmt.Errorf("%w: writing %s: %w", ErrIO, plainPath, err)
	}
	if _, err := m.EncryptFileInPlace(plainPath, password); err != nil {
		return err
	}
	return nil
}

// LoadWallet decrypts the wallet file itself. Callers fall back to
// LoadRollingBackup when this fails.
func (m *BackupManager) LoadWallet(id WalletID, password []byte) (*WalletState, error) {
	path := filepath.Join(m.WalletRoot(id), WalletFileName+EncryptedFileExtension)
	ciphertext, err := m.cfg.Filesystem.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrWalletNotFound, path)
		}
		return nil, fmt.Errorf("%w: reading %s: %w", ErrIO, path, err)
	}
	data, err := m.cfg.Codec.Decrypt(ciphertext, password)
	if err != nil {
		return nil, fmt.Errorf("decrypting %s: %w", path, err)
	}
	return &WalletState{WalletID: id, Data: data}, nil
}

// ReadWalletSummary loads the summary file of the wallet.
func (m *BackupManager) ReadWalletSummary(id WalletID) (*WalletSummary, error) {
	path := filepath.Join(m.WalletRoot(id), WalletSummaryFileName)
	raw, err := m.cfg.Filesystem.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrWalletNotFound, path)
		}
		return nil, fmt.Errorf("%w: reading %s: %w", ErrIO, path, err)
	}
	var s WalletSummary
	if _, err := toml.Decode(string(raw), &s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	s.WalletID = id
	return &s, nil
}

func (m *BackupManager) writeWalletSummary(s *WalletSummary) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(s); err != nil {
		return fmt.Errorf("encoding wallet summary: %w", err)
	}
	path := filepath.Join(m.WalletRoot(s.WalletID), WalletSummaryFileName)
	if err := m.cfg.Filesystem.WriteFile(path, buf.Bytes()); err != nil {
		return fmt.Errorf("%w: writing %s: %w", ErrIO, path, err)
	}
	return nil
}

// BackupKeyFor unlocks the escrowed backup key of a wallet with its
// password.
func (m *BackupManager) BackupKeyFor(id WalletID, password []byte) ([]byte, error) {
	s, err := m.ReadWalletSummary(id)
	if err != nil {
		return nil, err
	}
	escrowed, err := hex.DecodeString(s.EncryptedBackupKey)
	if err != nil {
		return nil, fmt.Errorf("%w: escrowed backup key is not hex: %w", ErrDecryption, err)
	}
	key, err := m.cfg.Codec.Decrypt(escrowed, password)
	if err != nil {
		return nil, fmt.Errorf("unlocking backup key: %w", err)
	}
	return key, nil
}

// RecoverPassword returns the wallet password using nothing but the
// recovery phrase.
func (m *BackupManager) RecoverPassword(words []string) (WalletID, []byte, error) {
	if m.cfg.Phrases == nil || m.cfg.Keys == nil {
		return WalletID{}, nil, errors.New("password recovery needs a seed converter and seed keys")
	}
	seed, err := m.cfg.Phrases.ToSeed(words)
	if err != nil {
		return WalletID{}, nil, fmt.Errorf("converting recovery phrase: %w", err)
	}
	defer zero.Bytes(seed)
	id, err := m.cfg.Keys.WalletID(seed)
	if err != nil {
		return WalletID{}, nil, fmt.Errorf("deriving wallet id: %w", err)
	}
	key, err := m.cfg.Keys.BackupKey(seed)
	if err != nil {
		return id, nil, fmt.Errorf("deriving backup key: %w", err)
	}
	defer zero.Bytes(key)

	s, err := m.ReadWalletSummary(id)
	if err != nil {
		return id, nil, err
	}
	escrowed, err := hex.DecodeString(s.EncryptedPassword)
	if err != nil {
		return id, nil, fmt.Errorf("%w: escrowed password is not hex: %w", ErrDecryption, err)
	}
	password, err := m.cfg.Codec.DecryptWithKey(escrowed, key)
	if err != nil {
		return id, nil, fmt.Errorf("recovering password: %w", err)
	}
	return id, password, nil
}

// FindWalletDirectories returns the ids of the wallet roots found in the
// application data directory.
func (m *BackupManager) FindWalletDirectories() ([]WalletID, error) {
	names, err := m.cfg.Filesystem.ListSubdirectories(m.cfg.AppDataDir)
	if err != nil {
		return nil, fmt.Errorf("%w: listing %s: %w", ErrIO, m.cfg.AppDataDir, err)
	}
	var ids []WalletID
	for _, name := range names {
		if !WalletDirectoryPattern.MatchString(name) {
			continue
		}
		id, err := ParseWalletID(name[len(WalletRootPrefix):])
		if err != nil {
			m.cfg.Logger.Warn("skipping wallet directory", "name", name, "error", err)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
