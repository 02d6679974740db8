package mbhd

import (
	"errors"
	"fmt"
	"path/filepath"
)

// WalletState is the serialized state of one wallet.
type WalletState struct {
	WalletID WalletID
	Data     []byte
}

// CreateRollingBackup snapshots state into the wallet's rolling-backup
// directory, encrypted with password, and trims the oldest snapshots.
func (m *BackupManager) CreateRollingBackup(state *WalletState, password []byte) (*BackupSummary, error) {
	if state == nil || state.WalletID.IsZero() {
		return nil, fmt.Errorf("%w: rolling backup without wallet id", ErrInvalidWalletID)
	}
	defer m.lock(state.WalletID)()
	return m.createRollingBackup(state, password)
}

func (m *BackupManager) createRollingBackup(state *WalletState, password []byte) (*BackupSummary, error) {
	root := m.WalletRoot(state.WalletID)
	if _, err := m.cfg.Filesystem.Stat(root); err != nil {
		return nil, fmt.Errorf("%w: %w: %s: %w", ErrIO, ErrWalletNotFound, root, err)
	}
	dir := m.rollingDir(state.WalletID)
	if err := m.cfg.Filesystem.MkdirAll(dir); err != nil {
		return nil, fmt.Errorf("%w: creating %s: %w", ErrIO, dir, err)
	}

	store := m.rollingStore(state.WalletID)
	now := m.cfg.Clock.Now()
	plainPath := filepath.Join(dir, store.Naming().PlaintextName(now))
	if err := m.cfg.Filesystem.WriteFile(plainPath, state.Data); err != nil {
		return nil, fmt.Errorf("%w: writing %s: %w", ErrIO, plainPath, err)
	}

	var summary *BackupSummary
	err := m.sealFile(plainPath,
		func(p []byte) ([]byte, error) { return m.cfg.Codec.EncryptAndVerify(p, password) },
		func(c []byte) error {
			var err error
			summary, err = store.Write(store.Naming().Name(now), c)
			return err
		})
	if err != nil {
		return nil, err
	}
	m.cfg.Logger.Info("rolling backup created", "wallet", state.WalletID.String(), "location", summary.Location)
	m.record(summary, EventCreated, "")

	deleted, err := store.Enforce()
	if err != nil {
		m.cfg.Logger.Warn("could not trim rolling backups", "wallet", state.WalletID.String(), "error", err)
	}
	m.recordDeleted(deleted)
	return summary, nil
}

// GetRollingBackups lists the wallet's rolling backups, oldest first.
func (m *BackupManager) GetRollingBackups(id WalletID) ([]*BackupSummary, error) {
	return m.rollingStore(id).List()
}

// LoadRollingBackup returns the state held by the newest rolling backup
// that decrypts with password. Older backups are tried in turn; only when
// none works is ErrWalletLoad returned.
func (m *BackupManager) LoadRollingBackup(id WalletID, password []byte) (*WalletState, error) {
	store := m.rollingStore(id)
	backups, err := store.List()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWalletLoad, err)
	}
	if len(backups) == 0 {
		return nil, fmt.Errorf("%w: %w: wallet %s", ErrWalletLoad, ErrNoBackups, id)
	}

	var errs []error
	for i := len(backups) - 1; i >= 0; i-- {
		b := backups[i]
		data, err := m.openRollingBackup(store, b, password)
		if err != nil {
			m.cfg.Logger.Warn("rolling backup unusable, trying an older one", "location", b.Location, "error", err)
			m.record(b, EventFailed, err.Error())
			errs = append(errs, err)
			continue
		}
		m.cfg.Logger.Info("wallet loaded from rolling backup", "wallet", id.String(), "location", b.Location)
		m.record(b, EventLoaded, "")
		m.cfg.Notifier.BackupLoaded(id, b)
		return &WalletState{WalletID: id, Data: data}, nil
	}
	return nil, fmt.Errorf("%w: none of %d rolling backups could be read: %w", ErrWalletLoad, len(backups), errors.Join(errs...))
}

func (m *BackupManager) openRollingBackup(store *BackupStore, b *BackupSummary, password []byte) ([]byte, error) {
	ciphertext, err := store.Read(b)
	if err != nil {
		return nil, err
	}
	data, err := m.cfg.Codec.Decrypt(ciphertext, password)
	if err != nil {
		return nil, err
	}
	if m.cfg.ValidateState != nil {
		if err := m.cfg.ValidateState(data); err != nil {
			return nil, fmt.Errorf("%w: invalid wallet state: %w", ErrDecryption, err)
		}
	}
	return data, nil
}
