package testutil

import (
	"path/filepath"
	"testing"

	"mbhd-go/internal/encryption"
	"mbhd-go/internal/fs"
	"mbhd-go/internal/identity"
	"mbhd-go/internal/mbhd"
	"mbhd-go/internal/vault"
)

// Recovery phrases from the BIP39 test vectors.
var (
	TestWords      = []string{"abandon", "abandon", "abandon", "abandon", "abandon", "abandon", "abandon", "abandon", "abandon", "abandon", "abandon", "about"}
	OtherTestWords = []string{"legal", "winner", "thank", "year", "wave", "sausage", "worth", "useful", "legal", "winner", "thank", "yellow"}
)

// TestPassword is the wallet password used by the helpers.
var TestPassword = []byte("correct horse battery staple")

// TestManager bundles a BackupManager with the collaborators a test may
// want to inspect.
type TestManager struct {
	*mbhd.BackupManager
	Config   mbhd.ManagerConfig
	Clock    *StubClock
	Catalog  *RecordingCatalog
	Notifier *RecordingNotifier
	Logger   *RecordingLogger
	Cloud    *vault.MemoryTarget
}

// NewTestManager builds a manager over a temporary application data
// directory with the fast TestCodec, real zip archives, real seed
// derivation and an in-memory cloud target. opts may adjust the config
// before the manager is built.
func NewTestManager(t *testing.T, opts ...func(*mbhd.ManagerConfig)) *TestManager {
	t.Helper()

	base := t.TempDir()
	fsmgr := fs.NewOSFilesystemManager(filepath.Join(base, "tmp"))
	if err := fsmgr.MkdirAll(filepath.Join(base, "tmp")); err != nil {
		t.Fatalf("creating temp dir: %v", err)
	}

	tm := &TestManager{
		Clock:    FixedClock(),
		Catalog:  &RecordingCatalog{},
		Notifier: &RecordingNotifier{},
		Logger:   &RecordingLogger{},
		Cloud:    vault.NewMemoryTarget("cloud"),
	}
	cfg := mbhd.ManagerConfig{
		AppDataDir: filepath.Join(base, "wallets"),
		Retention:  mbhd.DefaultRetention(),
		Cloud:      tm.Cloud,
		OpenDirectory: func(dir string) mbhd.Target {
			return vault.NewFileSystemTarget("local", dir, fsmgr)
		},
		Filesystem: fsmgr,
		Codec:      encryption.NewTestCodec(),
		Archiver:   fs.NewZipArchiver(),
		Keys:       identity.SeedKeys{},
		Phrases:    identity.Bip39Converter{},
		Catalog:    tm.Catalog,
		Notifier:   tm.Notifier,
		Logger:     tm.Logger,
		Clock:      tm.Clock,
		IDGen:      NewStubIDGenerator(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	m, err := mbhd.NewBackupManager(cfg)
	if err != nil {
		t.Fatalf("NewBackupManager() error = %v", err)
	}
	tm.BackupManager = m
	tm.Config = cfg
	return tm
}

// CreateTestWallet creates a wallet from TestWords with TestPassword.
func (tm *TestManager) CreateTestWallet(t *testing.T, data []byte) mbhd.WalletID {
	t.Helper()
	s, err := tm.CreateWallet(TestWords, TestPassword, "test wallet", "", data)
	if err != nil {
		t.Fatalf("CreateWallet() error = %v", err)
	}
	return s.WalletID
}
