package mbhd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"mbhd-go/internal/zero"
)

// CreateLocalBackup zips the wallet directory into its zip-backup
// directory, encrypted with the wallet's backup key, then thins that
// directory.
func (m *BackupManager) CreateLocalBackup(id WalletID, password []byte) (*BackupSummary, error) {
	defer m.lock(id)()
	key, err := m.BackupKeyFor(id, password)
	if err != nil {
		return nil, err
	}
	defer zero.Bytes(key)
	return m.createZipBackup(m.localStore(id), key)
}

// CreateCloudBackup does the same as CreateLocalBackup against the cloud
// target. It returns nil and no error when no cloud target is configured
// or the configured one is not usable.
func (m *BackupManager) CreateCloudBackup(id WalletID, password []byte) (*BackupSummary, error) {
	store := m.cloudStore(id)
	if store == nil {
		return nil, nil
	}
	if err := store.Target().ValidateSetup(); err != nil {
		m.cfg.Logger.Warn("cloud backup target unavailable, skipping", "target", store.Target().Name(), "error", err)
		return nil, nil
	}

	defer m.lock(id)()
	key, err := m.BackupKeyFor(id, password)
	if err != nil {
		return nil, err
	}
	defer zero.Bytes(key)
	return m.createZipBackup(store, key)
}

// CreateZipBackups writes a local zip backup and, when configured, a cloud
// one.
func (m *BackupManager) CreateZipBackups(id WalletID, password []byte) (local, cloud *BackupSummary, err error) {
	local, err = m.CreateLocalBackup(id, password)
	if err != nil {
		return nil, nil, err
	}
	cloud, err = m.CreateCloudBackup(id, password)
	if err != nil {
		return local, nil, err
	}
	return local, cloud, nil
}

func (m *BackupManager) createZipBackup(store *BackupStore, key []byte) (*BackupSummary, error) {
	id := store.walletID
	root := m.WalletRoot(id)
	if _, err := m.cfg.Filesystem.Stat(root); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrWalletNotFound, root, err)
	}
	staging := m.zipDir(id)
	if err := m.cfg.Filesystem.MkdirAll(staging); err != nil {
		return nil, fmt.Errorf("%w: creating %s: %w", ErrIO, staging, err)
	}
	if m.cfg.Archiver == nil {
		return nil, errors.New("no archiver configured")
	}

	now := m.cfg.Clock.Now()
	plainPath := filepath.Join(staging, store.Naming().PlaintextName(now))
	exclude := append([]string{"/" + ZipBackupDirectory + "/"}, m.cfg.ZipExclude...)
	if err := m.cfg.Archiver.ZipDirectory(root, plainPath, exclude); err != nil {
		return nil, fmt.Errorf("%w: zipping %s: %w", ErrIO, root, err)
	}

	var summary *BackupSummary
	err := m.sealFile(plainPath,
		func(p []byte) ([]byte, error) { return m.cfg.Codec.EncryptAndVerifyWithKey(p, key) },
		func(c []byte) error {
			var err error
			summary, err = store.Write(store.Naming().Name(now), c)
			return err
		})
	if err != nil {
		return nil, err
	}
	m.cfg.Logger.Info("zip backup created", "wallet", id.String(), "kind", string(store.Kind()), "location", summary.Location)
	m.record(summary, EventCreated, "")

	deleted, err := store.Enforce()
	if err != nil {
		m.cfg.Logger.Warn("could not thin zip backups", "wallet", id.String(), "error", err)
	}
	m.recordDeleted(deleted)
	return summary, nil
}

// GetWalletBackups lists the zip backups of the wallet found in
// directory, oldest first.
func (m *BackupManager) GetWalletBackups(id WalletID, directory string) ([]*BackupSummary, error) {
	return m.zipStore(LocalBackup, id, m.cfg.OpenDirectory(directory)).List()
}

// GetLocalZipBackups lists the zip backups in the wallet's own zip-backup
// directory.
func (m *BackupManager) GetLocalZipBackups(id WalletID) ([]*BackupSummary, error) {
	return m.localStore(id).List()
}

// GetCloudBackups lists the wallet's zip backups on the cloud target.
// Without a cloud target the list is empty.
func (m *BackupManager) GetCloudBackups(id WalletID) ([]*BackupSummary, error) {
	store := m.cloudStore(id)
	if store == nil {
		return nil, nil
	}
	return store.List()
}

// ThinBackupDirectory applies zip retention to directory and returns the
// deleted backups.
func (m *BackupManager) ThinBackupDirectory(id WalletID, directory string) ([]*BackupSummary, error) {
	defer m.lock(id)()
	deleted, err := m.zipStore(LocalBackup, id, m.cfg.OpenDirectory(directory)).Enforce()
	m.recordDeleted(deleted)
	return deleted, err
}

// ThinCloudBackups applies zip retention to the cloud target.
func (m *BackupManager) ThinCloudBackups(id WalletID) ([]*BackupSummary, error) {
	store := m.cloudStore(id)
	if store == nil {
		return nil, nil
	}
	defer m.lock(id)()
	deleted, err := store.Enforce()
	m.recordDeleted(deleted)
	return deleted, err
}

// LoadZipBackup restores the wallet directory from an encrypted zip
// archive using only the recovery phrase. The decrypted archive lives in a
// scratch directory that is securely removed whatever the outcome.
func (m *BackupManager) LoadZipBackup(archivePath string, words []string) (WalletID, error) {
	id, err := WalletIDFromZipName(filepath.Base(archivePath))
	if err != nil {
		return WalletID{}, err
	}
	if m.cfg.Phrases == nil || m.cfg.Keys == nil || m.cfg.Archiver == nil {
		return WalletID{}, errors.New("zip restore needs a seed converter, seed keys and an archiver")
	}

	seed, err := m.cfg.Phrases.ToSeed(words)
	if err != nil {
		return WalletID{}, fmt.Errorf("converting recovery phrase: %w", err)
	}
	defer zero.Bytes(seed)
	seedID, err := m.cfg.Keys.WalletID(seed)
	if err != nil {
		return WalletID{}, fmt.Errorf("deriving wallet id: %w", err)
	}
	if seedID != id {
		return WalletID{}, fmt.Errorf("%w: recovery phrase belongs to wallet %s, archive to %s", ErrDecryption, seedID, id)
	}
	key, err := m.cfg.Keys.BackupKey(seed)
	if err != nil {
		return WalletID{}, fmt.Errorf("deriving backup key: %w", err)
	}
	defer zero.Bytes(key)

	ciphertext, err := m.cfg.Filesystem.ReadFile(archivePath)
	if err != nil {
		return WalletID{}, fmt.Errorf("%w: reading %s: %w", ErrIO, archivePath, err)
	}
	plaintext, err := m.cfg.Codec.DecryptWithKey(ciphertext, key)
	if err != nil {
		return WalletID{}, fmt.Errorf("decrypting %s: %w", archivePath, err)
	}
	defer zero.Bytes(plaintext)

	defer m.lock(id)()
	if err := m.unzipOver(id, plaintext); err != nil {
		return WalletID{}, err
	}

	m.cfg.Logger.Info("wallet restored from zip backup", "wallet", id.String(), "archive", archivePath)
	m.record(&BackupSummary{WalletID: id, Kind: LocalBackup, Name: filepath.Base(archivePath), Location: archivePath}, EventRestored, "")
	return id, nil
}

func (m *BackupManager) unzipOver(id WalletID, archive []byte) error {
	scratch, err := m.cfg.Filesystem.MkdirTemp("mbhd-restore-*")
	if err != nil {
		return fmt.Errorf("%w: creating scratch directory: %w", ErrIO, err)
	}
	tmp := filepath.Join(scratch, "restore.zip")
	defer func() {
		if err := m.cfg.Filesystem.SecureDelete(tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
			m.cfg.Logger.Error("could not securely delete decrypted archive", "path", tmp, "error", err)
		}
		if err := m.cfg.Filesystem.RemoveAll(scratch); err != nil {
			m.cfg.Logger.Warn("could not remove scratch directory", "path", scratch, "error", err)
		}
	}()

	if err := m.cfg.Filesystem.WriteFile(tmp, archive); err != nil {
		return fmt.Errorf("%w: writing %s: %w", ErrIO, tmp, err)
	}
	root := m.WalletRoot(id)
	if err := m.cfg.Filesystem.MkdirAll(root); err != nil {
		return fmt.Errorf("%w: creating %s: %w", ErrIO, root, err)
	}
	if err := m.cfg.Archiver.Unzip(tmp, root); err != nil {
		return fmt.Errorf("%w: unzipping into %s: %w", ErrIO, root, err)
	}
	return nil
}
