package mbhd

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
)

// ManagerConfig carries everything a BackupManager needs. Nothing is held
// in package state, so several managers can coexist in one process.
type ManagerConfig struct {
	// AppDataDir holds one mbhd-<walletId> directory per wallet.
	AppDataDir string
	Retention  Retention

	// ZipExclude lists extra ignore patterns for zip backups. The
	// zip-backup directory is always excluded.
	ZipExclude []string

	// Cloud is the optional second destination for zip backups.
	Cloud Target

	// OpenDirectory returns a Target over a local directory.
	OpenDirectory func(dir string) Target

	Filesystem FilesystemManager
	Codec      Codec
	Archiver   Archiver
	Keys       SeedKeys
	Phrases    SeedConverter

	Catalog  Catalog
	Notifier Notifier
	Logger   Logger
	Clock    Clock
	IDGen    IDGenerator

	// ValidateState optionally rejects decrypted wallet bytes during
	// rolling backup recovery, so the next candidate is tried.
	ValidateState func(data []byte) error
}

// BackupManager creates, lists, thins and restores the backups of the
// wallets below one application data directory.
type BackupManager struct {
	cfg   ManagerConfig
	locks sync.Map
}

// NewBackupManager validates cfg and fills in defaults for the optional
// collaborators.
func NewBackupManager(cfg ManagerConfig) (*BackupManager, error) {
	if cfg.AppDataDir == "" {
		return nil, errors.New("application data directory is required")
	}
	if cfg.Filesystem == nil || cfg.Codec == nil || cfg.OpenDirectory == nil {
		return nil, errors.New("filesystem, codec and directory opener are required")
	}
	if cfg.Retention == (Retention{}) {
		cfg.Retention = DefaultRetention()
	}
	if err := cfg.Retention.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retention: %w", err)
	}
	if cfg.Catalog == nil {
		cfg.Catalog = NopCatalog{}
	}
	if cfg.Notifier == nil {
		cfg.Notifier = NopNotifier{}
	}
	if cfg.Logger == nil {
		cfg.Logger = NewNopLogger()
	}
	if cfg.Clock == nil {
		cfg.Clock = RealClock{}
	}
	if cfg.IDGen == nil {
		cfg.IDGen = UUIDGenerator{}
	}
	return &BackupManager{cfg: cfg}, nil
}

// AppDataDir returns the directory holding the wallet roots.
func (m *BackupManager) AppDataDir() string { return m.cfg.AppDataDir }

// WalletRoot returns the directory of the wallet.
func (m *BackupManager) WalletRoot(id WalletID) string {
	return filepath.Join(m.cfg.AppDataDir, id.RootName())
}

func (m *BackupManager) rollingDir(id WalletID) string {
	return filepath.Join(m.WalletRoot(id), RollingBackupDirectory)
}

func (m *BackupManager) zipDir(id WalletID) string {
	return filepath.Join(m.WalletRoot(id), ZipBackupDirectory)
}

// lock serializes backup-producing calls for one wallet. Listing and
// thinning read then delete, so concurrent writers would race.
func (m *BackupManager) lock(id WalletID) func() {
	v, _ := m.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (m *BackupManager) rollingStore(id WalletID) *BackupStore {
	return NewBackupStore(RollingBackup, id, m.cfg.OpenDirectory(m.rollingDir(id)), RollingNaming(),
		FIFOPolicy{Max: m.cfg.Retention.RollingMax}, m.cfg.Logger)
}

func (m *BackupManager) zipStore(kind BackupKind, id WalletID, target Target) *BackupStore {
	r := m.cfg.Retention
	return NewBackupStore(kind, id, target, ZipNaming(id),
		ThinningPolicy{Max: r.ZipMax, KeepFirst: r.ZipKeepFirst, KeepLast: r.ZipKeepLast}, m.cfg.Logger)
}

func (m *BackupManager) localStore(id WalletID) *BackupStore {
	return m.zipStore(LocalBackup, id, m.cfg.OpenDirectory(m.zipDir(id)))
}

// cloudStore returns nil when no cloud target is configured.
func (m *BackupManager) cloudStore(id WalletID) *BackupStore {
	if m.cfg.Cloud == nil {
		return nil
	}
	return m.zipStore(CloudBackup, id, m.cfg.Cloud)
}

// sealFile encrypts the plaintext file at path, hands the verified
// ciphertext to store and only then securely deletes the plaintext. On any
// failure the plaintext stays where it is. Once the ciphertext is stored
// the seal has succeeded; a plaintext that cannot be deleted is logged.
func (m *BackupManager) sealFile(path string, encrypt func([]byte) ([]byte, error), store func([]byte) error) error {
	plaintext, err := m.cfg.Filesystem.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: reading %s: %w", ErrIO, path, err)
	}
	ciphertext, err := encrypt(plaintext)
	if err != nil {
		m.cfg.Logger.Error("encrypted copy failed verification, keeping plaintext", "path", path, "error", err)
		return fmt.Errorf("encrypting %s: %w", path, err)
	}
	if len(ciphertext) == 0 {
		return fmt.Errorf("%w: empty ciphertext for %s", ErrReversibility, path)
	}
	if err := store(ciphertext); err != nil {
		return err
	}
	if err := m.cfg.Filesystem.SecureDelete(path); err != nil {
		m.cfg.Logger.Error("encrypted copy stored but plaintext could not be deleted", "path", path, "error", err)
	}
	return nil
}

// EncryptFileInPlace writes <path>.aes next to the plaintext file and
// securely deletes the plaintext once the copy verifies.
func (m *BackupManager) EncryptFileInPlace(path string, password []byte) (string, error) {
	dest := path + EncryptedFileExtension
	err := m.sealFile(path,
		func(p []byte) ([]byte, error) { return m.cfg.Codec.EncryptAndVerify(p, password) },
		func(c []byte) error {
			if err := m.cfg.Filesystem.WriteFile(dest, c); err != nil {
				return fmt.Errorf("%w: writing %s: %w", ErrIO, dest, err)
			}
			return nil
		})
	if err != nil {
		return "", err
	}
	return dest, nil
}

func (m *BackupManager) record(b *BackupSummary, event, detail string) {
	e := &BackupEvent{
		ID:        m.cfg.IDGen.New(),
		WalletID:  b.WalletID.String(),
		Kind:      b.Kind,
		Event:     event,
		Name:      b.Name,
		Location:  b.Location,
		Detail:    detail,
		CreatedAt: m.cfg.Clock.Now(),
	}
	if err := m.cfg.Catalog.RecordBackupEvent(e); err != nil {
		m.cfg.Logger.Warn("could not record backup event", "event", event, "name", b.Name, "error", err)
	}
}

func (m *BackupManager) recordDeleted(deleted []*BackupSummary) {
	for _, b := range deleted {
		m.record(b, EventDeleted, "retention")
	}
}
