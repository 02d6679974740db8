package app

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mbhd-go/internal/config"
	"mbhd-go/internal/mbhd"
	"mbhd-go/internal/testutil"
)

// testConfig returns a config below a temp dir with the fast test codec,
// an in-memory catalog and an in-memory cloud target.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig(t.TempDir())
	cfg.Encryption = config.EncryptionConfig{Type: "test"}
	cfg.Database = config.DatabaseConfig{Type: "memory"}
	cfg.Cloud = config.CloudConfig{Type: "memory"}
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config, operation string) (*MBHDApp, *testutil.StubClock) {
	t.Helper()
	clock := testutil.FixedClock()
	a, err := newMBHDApp(cfg, operation, appOptions{
		loadedDelay: time.Millisecond,
		logLevel:    slog.LevelError,
		clock:       clock,
	})
	if err != nil {
		t.Fatalf("newMBHDApp() error = %v", err)
	}
	return a, clock
}

func createTestWallet(t *testing.T, a *MBHDApp) mbhd.WalletID {
	t.Helper()
	s, err := a.CreateWallet(testutil.TestWords, testutil.TestPassword, "savings", "kept offline")
	if err != nil {
		t.Fatalf("CreateWallet() error = %v", err)
	}
	return s.WalletID
}

func TestNewMBHDApp_Errors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Config)
	}{
		{"missing app data dir", func(c *config.Config) { c.AppDataDir = "" }},
		{"unknown codec", func(c *config.Config) { c.Encryption.Type = "rot13" }},
		{"unknown cloud target", func(c *config.Config) { c.Cloud.Type = "ftp" }},
		{"unknown database", func(c *config.Config) { c.Database.Type = "postgres" }},
		{"invalid retention", func(c *config.Config) { c.Retention.ZipKeepLast = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.modify(cfg)
			if _, err := NewMBHDApp(cfg, "Test"); err == nil {
				t.Error("NewMBHDApp() error = nil, want error")
			}
		})
	}
}

func TestMBHDApp_CreateWallet(t *testing.T) {
	a, _ := newTestApp(t, testConfig(t), "CreateWallet")
	defer a.Close()

	id := createTestWallet(t, a)

	wallets, err := a.ListWallets()
	if err != nil {
		t.Fatalf("ListWallets() error = %v", err)
	}
	if len(wallets) != 1 {
		t.Fatalf("len(ListWallets()) = %d, want 1", len(wallets))
	}
	if wallets[0].WalletID != id || wallets[0].Name != "savings" {
		t.Errorf("ListWallets()[0] = %s %q, want %s %q", wallets[0].WalletID, wallets[0].Name, id, "savings")
	}

	state, err := a.Manager().LoadWallet(id, testutil.TestPassword)
	if err != nil {
		t.Fatalf("LoadWallet() error = %v", err)
	}
	doc, err := decodeWalletDocument(state.Data)
	if err != nil {
		t.Fatalf("decodeWalletDocument() error = %v", err)
	}
	keys, err := a.DeriveKeys(testutil.TestWords, 0, 1)
	if err != nil {
		t.Fatalf("DeriveKeys() error = %v", err)
	}
	if len(doc.Keys) != 1 || doc.Keys[0] != keys[0].PublicKey {
		t.Errorf("wallet keys = %v, want [%s]", doc.Keys, keys[0].PublicKey)
	}

	backups, err := a.ListBackups(id.String())
	if err != nil {
		t.Fatalf("ListBackups() error = %v", err)
	}
	if len(backups.Rolling) != 1 {
		t.Errorf("len(Rolling) = %d, want 1 after creation", len(backups.Rolling))
	}

	ops, err := a.Operations(0)
	if err != nil {
		t.Fatalf("Operations() error = %v", err)
	}
	if len(ops) != 1 || ops[0].Operation != "CreateWallet" || ops[0].Parameters != "savings" {
		t.Errorf("Operations() = %+v, want one CreateWallet operation", ops)
	}
}

func TestMBHDApp_CreateWallet_InvalidPhrase(t *testing.T) {
	a, _ := newTestApp(t, testConfig(t), "CreateWallet")
	defer a.Close()

	words := append([]string{}, testutil.TestWords...)
	words[11] = "abandon"
	if _, err := a.CreateWallet(words, testutil.TestPassword, "bad", ""); err == nil {
		t.Fatal("CreateWallet() error = nil, want invalid phrase error")
	}
	if a.op.Status != StatusError {
		t.Errorf("operation status = %q, want %q", a.op.Status, StatusError)
	}
}

func TestMBHDApp_RecoverPassword(t *testing.T) {
	a, _ := newTestApp(t, testConfig(t), "RecoverPassword")
	defer a.Close()
	id := createTestWallet(t, a)

	gotID, password, err := a.RecoverPassword(testutil.TestWords)
	if err != nil {
		t.Fatalf("RecoverPassword() error = %v", err)
	}
	if gotID != id {
		t.Errorf("RecoverPassword() id = %s, want %s", gotID, id)
	}
	if string(password) != string(testutil.TestPassword) {
		t.Errorf("RecoverPassword() password = %q, want %q", password, testutil.TestPassword)
	}
}

func TestMBHDApp_SaveWallet(t *testing.T) {
	a, clock := newTestApp(t, testConfig(t), "SaveWallet")
	id := createTestWallet(t, a)

	clock.Advance(time.Hour)
	if err := a.SaveWallet(mbhd.WalletRootPrefix+id.String(), testutil.TestPassword); err != nil {
		t.Fatalf("SaveWallet() error = %v", err)
	}

	backups, err := a.ListBackups(id.String())
	if err != nil {
		t.Fatalf("ListBackups() error = %v", err)
	}
	if len(backups.Rolling) != 2 {
		t.Errorf("len(Rolling) = %d, want 2", len(backups.Rolling))
	}
	if len(backups.Local) != 1 {
		t.Errorf("len(Local) = %d, want 1", len(backups.Local))
	}
	if len(backups.Cloud) != 1 {
		t.Errorf("len(Cloud) = %d, want 1", len(backups.Cloud))
	}

	state, err := a.Manager().LoadWallet(id, testutil.TestPassword)
	if err != nil {
		t.Fatalf("LoadWallet() error = %v", err)
	}
	doc, err := decodeWalletDocument(state.Data)
	if err != nil {
		t.Fatalf("decodeWalletDocument() error = %v", err)
	}
	if want := clock.Now(); !doc.SavedAt.Equal(want) {
		t.Errorf("SavedAt = %v, want %v", doc.SavedAt, want)
	}

	events, err := a.History(id.String(), 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	var cloudCreated bool
	for _, e := range events {
		if e.Kind == mbhd.CloudBackup && e.Event == mbhd.EventCreated {
			cloudCreated = true
		}
	}
	if !cloudCreated {
		t.Errorf("History() = %d events, want a created cloud backup among them", len(events))
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	entries, err := a.cloud.List()
	if err != nil {
		t.Fatalf("cloud List() error = %v", err)
	}
	var snapshot bool
	for _, e := range entries {
		if e.Name == CatalogSnapshotName && e.Size > 0 {
			snapshot = true
		}
	}
	if !snapshot {
		t.Errorf("cloud holds no %s after Close", CatalogSnapshotName)
	}
}

func TestMBHDApp_SaveWallet_WrongPassword(t *testing.T) {
	a, _ := newTestApp(t, testConfig(t), "SaveWallet")
	defer a.Close()
	id := createTestWallet(t, a)

	err := a.SaveWallet(id.String(), []byte("wrong"))
	if !errors.Is(err, mbhd.ErrDecryption) {
		t.Fatalf("SaveWallet() error = %v, want ErrDecryption", err)
	}
	if a.op.Status != StatusError {
		t.Errorf("operation status = %q, want %q", a.op.Status, StatusError)
	}
}

func TestMBHDApp_InvalidWalletID(t *testing.T) {
	a, _ := newTestApp(t, testConfig(t), "BackupLocal")
	defer a.Close()

	if _, err := a.BackupLocal("not-a-wallet", testutil.TestPassword); !errors.Is(err, mbhd.ErrInvalidWalletID) {
		t.Errorf("BackupLocal() error = %v, want ErrInvalidWalletID", err)
	}
	if a.op.Persisted() {
		t.Error("operation persisted for an invalid wallet id")
	}
}

func TestMBHDApp_BackupRollingAndRestore(t *testing.T) {
	a, clock := newTestApp(t, testConfig(t), "RestoreRolling")
	defer a.Close()
	id := createTestWallet(t, a)

	clock.Advance(time.Minute)
	b, err := a.BackupRolling(id.String(), testutil.TestPassword)
	if err != nil {
		t.Fatalf("BackupRolling() error = %v", err)
	}
	if !b.Created.Equal(clock.Now()) {
		t.Errorf("BackupRolling() created = %v, want %v", b.Created, clock.Now())
	}

	state, err := a.RestoreRolling(id.String(), testutil.TestPassword, false)
	if err != nil {
		t.Fatalf("RestoreRolling() error = %v", err)
	}
	if err := validateWalletDocument(state.Data); err != nil {
		t.Errorf("restored state is not a wallet document: %v", err)
	}

	clock.Advance(time.Minute)
	if _, err := a.RestoreRolling(id.String(), testutil.TestPassword, true); err != nil {
		t.Fatalf("RestoreRolling(apply) error = %v", err)
	}
	backups, err := a.ListBackups(id.String())
	if err != nil {
		t.Fatalf("ListBackups() error = %v", err)
	}
	if len(backups.Rolling) != 3 {
		t.Errorf("len(Rolling) = %d, want 3 after applying the restore", len(backups.Rolling))
	}
}

func TestMBHDApp_RestoreRolling_NoBackups(t *testing.T) {
	a, _ := newTestApp(t, testConfig(t), "RestoreRolling")
	defer a.Close()

	id := mbhd.WalletID{1, 2, 3}
	_, err := a.RestoreRolling(id.String(), testutil.TestPassword, false)
	if !errors.Is(err, mbhd.ErrWalletLoad) || !errors.Is(err, mbhd.ErrNoBackups) {
		t.Errorf("RestoreRolling() error = %v, want ErrWalletLoad and ErrNoBackups", err)
	}
}

func TestMBHDApp_RestoreZip(t *testing.T) {
	a, _ := newTestApp(t, testConfig(t), "RestoreZip")
	defer a.Close()
	id := createTestWallet(t, a)

	b, err := a.BackupLocal(id.String(), testutil.TestPassword)
	if err != nil {
		t.Fatalf("BackupLocal() error = %v", err)
	}

	walletFile := filepath.Join(a.Manager().WalletRoot(id), mbhd.WalletFileName+mbhd.EncryptedFileExtension)
	if err := os.Remove(walletFile); err != nil {
		t.Fatalf("removing wallet file: %v", err)
	}

	t.Run("other phrase", func(t *testing.T) {
		if _, err := a.RestoreZip(b.Location, testutil.OtherTestWords); !errors.Is(err, mbhd.ErrDecryption) {
			t.Errorf("RestoreZip() error = %v, want ErrDecryption", err)
		}
	})

	t.Run("recovery phrase", func(t *testing.T) {
		got, err := a.RestoreZip(b.Location, testutil.TestWords)
		if err != nil {
			t.Fatalf("RestoreZip() error = %v", err)
		}
		if got != id {
			t.Errorf("RestoreZip() = %s, want %s", got, id)
		}
		if _, err := a.Manager().LoadWallet(id, testutil.TestPassword); err != nil {
			t.Errorf("LoadWallet() after restore error = %v", err)
		}
	})
}

func TestMBHDApp_Thin(t *testing.T) {
	cfg := testConfig(t)
	cfg.Retention = config.RetentionConfig{RollingMax: 4, ZipMax: 4, ZipKeepFirst: 1, ZipKeepLast: 1}
	a, clock := newTestApp(t, cfg, "Thin")
	defer a.Close()
	id := createTestWallet(t, a)

	// A store that reaches ZipMax is thinned by one, so the count settles
	// one below it.
	for i := 0; i < 6; i++ {
		clock.Advance(time.Duration(i+1) * time.Hour)
		if _, err := a.BackupLocal(id.String(), testutil.TestPassword); err != nil {
			t.Fatalf("BackupLocal() #%d error = %v", i, err)
		}
	}

	backups, err := a.ListBackups(id.String())
	if err != nil {
		t.Fatalf("ListBackups() error = %v", err)
	}
	if want := cfg.Retention.ZipMax - 1; len(backups.Local) != want {
		t.Errorf("len(Local) = %d, want %d", len(backups.Local), want)
	}

	clock.Advance(time.Hour)
	if _, err := a.BackupLocal(id.String(), testutil.TestPassword); err != nil {
		t.Fatalf("BackupLocal() error = %v", err)
	}
	deleted, err := a.Thin(id.String())
	if err != nil {
		t.Fatalf("Thin() error = %v", err)
	}
	if len(deleted) != 0 {
		t.Errorf("Thin() deleted %d backups, want 0 below the limit", len(deleted))
	}
}

func TestMBHDApp_DeriveKeys(t *testing.T) {
	for _, derivation := range []string{"offset", "bip32"} {
		t.Run(derivation, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Keys.Derivation = derivation
			a, _ := newTestApp(t, cfg, "DeriveKeys")
			defer a.Close()

			keys, err := a.DeriveKeys(testutil.TestWords, 5, 3)
			if err != nil {
				t.Fatalf("DeriveKeys() error = %v", err)
			}
			if len(keys) != 3 {
				t.Fatalf("len(DeriveKeys()) = %d, want 3", len(keys))
			}
			seen := map[string]bool{}
			for i, k := range keys {
				if k.Index != uint32(5+i) {
					t.Errorf("keys[%d].Index = %d, want %d", i, k.Index, 5+i)
				}
				if len(k.PublicKey) != 66 {
					t.Errorf("keys[%d].PublicKey has %d hex chars, want 66", i, len(k.PublicKey))
				}
				if !strings.HasPrefix(k.Address, "1") {
					t.Errorf("keys[%d].Address = %q, want a mainnet P2PKH address", i, k.Address)
				}
				seen[k.Address] = true
			}
			if len(seen) != 3 {
				t.Errorf("DeriveKeys() produced %d distinct addresses, want 3", len(seen))
			}
		})
	}
}

func TestMBHDApp_WithoutCatalog(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database = config.DatabaseConfig{}
	a, _ := newTestApp(t, cfg, "CreateWallet")

	createTestWallet(t, a)
	if _, err := a.History("", 10); err == nil {
		t.Error("History() without catalog error = nil, want error")
	}
	if err := a.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestValidateWalletDocument(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{"valid", "name = \"a\"\nkeys = [\"02ab\"]\n", false},
		{"no keys", "name = \"a\"\n", true},
		{"not toml", "\x00\x01garbage", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateWalletDocument([]byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Errorf("validateWalletDocument() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
