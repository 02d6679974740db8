package mbhd_test

import (
	"strings"
	"testing"
	"time"

	"mbhd-go/internal/mbhd"
	"mbhd-go/internal/testutil"
	"mbhd-go/internal/vault"
)

func putBackup(t *testing.T, target mbhd.Target, name, content string) {
	t.Helper()
	if err := target.Put(name, strings.NewReader(content), int64(len(content))); err != nil {
		t.Fatalf("Put(%q) error = %v", name, err)
	}
}

func TestBackupStore_List(t *testing.T) {
	target := vault.NewMemoryTarget("test")
	logger := &testutil.RecordingLogger{}
	store := mbhd.NewBackupStore(mbhd.RollingBackup, rollingWalletID, target, mbhd.RollingNaming(), mbhd.FIFOPolicy{Max: 4}, logger)

	putBackup(t, target, "mbhd-20140102000000.wallet.aes", "b")
	putBackup(t, target, "mbhd-20140101000000.wallet.aes", "a")
	putBackup(t, target, "mbhd-20140103000000.wallet.aes", "")
	putBackup(t, target, "random.txt", "ignored")

	got, err := store.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"mbhd-20140101000000.wallet.aes", "mbhd-20140102000000.wallet.aes"}
	if len(got) != len(want) {
		t.Fatalf("List() returned %d backups, want %d", len(got), len(want))
	}
	for i, name := range want {
		if got[i].Name != name {
			t.Errorf("List()[%d] = %s, want %s", i, got[i].Name, name)
		}
		if got[i].WalletID != rollingWalletID || got[i].Kind != mbhd.RollingBackup {
			t.Errorf("List()[%d] = %+v, wrong wallet or kind", i, got[i])
		}
	}
	if !got[0].Created.Equal(time.Date(2014, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Created = %v", got[0].Created)
	}
}

func TestBackupStore_EnforceLogsDeleteFailures(t *testing.T) {
	target := &testutil.FailingTarget{Target: vault.NewMemoryTarget("test"), Fail: map[string]bool{}}
	logger := &testutil.RecordingLogger{}
	store := mbhd.NewBackupStore(mbhd.RollingBackup, rollingWalletID, target, mbhd.RollingNaming(), mbhd.FIFOPolicy{Max: 1}, logger)

	putBackup(t, target, "mbhd-20140101000000.wallet.aes", "a")
	putBackup(t, target, "mbhd-20140102000000.wallet.aes", "b")

	target.Fail["delete"] = true
	deleted, err := store.Enforce()
	if err != nil {
		t.Fatalf("Enforce() error = %v", err)
	}
	if len(deleted) != 0 {
		t.Errorf("Enforce() deleted %d with failing target", len(deleted))
	}
	if !logger.Contains("ERROR", "could not delete backup") {
		t.Error("delete failure was not logged")
	}

	// A later call catches up, two at a time.
	putBackup(t, target, "mbhd-20140103000000.wallet.aes", "c")
	target.Fail["delete"] = false
	deleted, err = store.Enforce()
	if err != nil {
		t.Fatalf("Enforce() error = %v", err)
	}
	if len(deleted) != 2 {
		t.Errorf("Enforce() deleted %d, want 2", len(deleted))
	}
	remaining, _ := store.List()
	if len(remaining) != 1 || remaining[0].Name != "mbhd-20140103000000.wallet.aes" {
		t.Errorf("remaining = %v", remaining)
	}
}

func TestBackupStore_WriteAndRead(t *testing.T) {
	target := vault.NewMemoryTarget("test")
	store := mbhd.NewBackupStore(mbhd.CloudBackup, rollingWalletID, target, mbhd.ZipNaming(rollingWalletID),
		mbhd.ThinningPolicy{Max: 60, KeepFirst: 2, KeepLast: 8}, nil)

	name := mbhd.ZipNaming(rollingWalletID).Name(time.Date(2014, 1, 1, 0, 0, 0, 0, time.UTC))
	b, err := store.Write(name, []byte("sealed"))
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if b.Size != 6 || b.Location != target.Location(name) {
		t.Errorf("Write() = %+v", b)
	}
	data, err := store.Read(b)
	if err != nil || string(data) != "sealed" {
		t.Errorf("Read() = %q, %v", data, err)
	}
}
