package fs

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

func TestOSFilesystemManager_WriteReadFile(t *testing.T) {
	t.Parallel()
	m := NewOSFilesystemManager("")
	path := filepath.Join(t.TempDir(), "nested", "dir", "mbhd.wallet")

	if err := m.WriteFile(path, []byte("first")); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := m.WriteFile(path, []byte("second")); err != nil {
		t.Fatalf("WriteFile() overwrite error = %v", err)
	}

	got, err := m.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got) != "second" {
		t.Errorf("ReadFile() = %q, want %q", got, "second")
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want 1 (temp files left behind?)", len(entries))
	}
}

func TestOSFilesystemManager_ListDir(t *testing.T) {
	t.Parallel()
	m := NewOSFilesystemManager("")
	dir := t.TempDir()

	if err := os.WriteFile(filepath.Join(dir, "a.aes"), []byte("abc"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "empty"), nil, 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(dir, "a.aes"), filepath.Join(dir, "link")); err != nil {
		t.Fatal(err)
	}

	entries, err := m.ListDir(dir)
	if err != nil {
		t.Fatalf("ListDir() error = %v", err)
	}
	sizes := map[string]int64{}
	for _, e := range entries {
		sizes[e.Name] = e.Size
	}
	if len(sizes) != 2 || sizes["a.aes"] != 3 || sizes["empty"] != 0 {
		t.Errorf("ListDir() = %v, want a.aes:3 and empty:0", sizes)
	}

	missing, err := m.ListDir(filepath.Join(dir, "missing"))
	if err != nil {
		t.Fatalf("ListDir() on missing dir error = %v", err)
	}
	if len(missing) != 0 {
		t.Errorf("ListDir() on missing dir = %v, want empty", missing)
	}

	subdirs, err := m.ListSubdirectories(dir)
	if err != nil {
		t.Fatalf("ListSubdirectories() error = %v", err)
	}
	sort.Strings(subdirs)
	if strings.Join(subdirs, ",") != "sub" {
		t.Errorf("ListSubdirectories() = %v, want [sub]", subdirs)
	}
}

func TestOSFilesystemManager_SecureDelete(t *testing.T) {
	t.Parallel()
	m := NewOSFilesystemManager("")
	dir := t.TempDir()
	path := filepath.Join(dir, "secret")
	if err := os.WriteFile(path, bytes.Repeat([]byte("s"), 10000), 0600); err != nil {
		t.Fatal(err)
	}

	if err := m.SecureDelete(path); err != nil {
		t.Fatalf("SecureDelete() error = %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("file still exists after SecureDelete(): %v", err)
	}

	if err := m.SecureDelete(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("SecureDelete() on missing file error = %v, want ErrNotExist", err)
	}
	if err := m.SecureDelete(dir); err == nil {
		t.Error("SecureDelete() on a directory should fail")
	}
}

func TestOSFilesystemManager_MkdirTemp(t *testing.T) {
	t.Parallel()
	root := filepath.Join(t.TempDir(), "scratch")
	m := NewOSFilesystemManager(root)

	dir, err := m.MkdirTemp("mbhd-restore-*")
	if err != nil {
		t.Fatalf("MkdirTemp() error = %v", err)
	}
	if filepath.Dir(dir) != root {
		t.Errorf("MkdirTemp() = %s, want a directory inside %s", dir, root)
	}
	if err := m.RemoveAll(dir); err != nil {
		t.Fatalf("RemoveAll() error = %v", err)
	}
	if _, err := m.Stat(dir); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Stat() after RemoveAll() error = %v, want ErrNotExist", err)
	}
}
