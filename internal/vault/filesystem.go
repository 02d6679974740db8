package vault

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"mbhd-go/internal/mbhd"
)

// FileSystemTarget stores backups as files in a single directory: a wallet's
// rolling-backup or zip-backup directory, or a cloud-synced folder.
type FileSystemTarget struct {
	name  string
	dir   string
	fsmgr mbhd.FilesystemManager
}

// NewFileSystemTarget creates a target over dir. The directory is created
// on first write.
func NewFileSystemTarget(name, dir string, fsmgr mbhd.FilesystemManager) *FileSystemTarget {
	return &FileSystemTarget{name: name, dir: dir, fsmgr: fsmgr}
}

func (v *FileSystemTarget) Name() string { return v.name }

// Location returns the full path of name.
func (v *FileSystemTarget) Location(name string) string {
	return filepath.Join(v.dir, name)
}

// Put stores size bytes from r atomically under name.
func (v *FileSystemTarget) Put(name string, r io.Reader, size int64) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := os.MkdirAll(v.dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return v.writeFile(v.Location(name), r, size)
}

// Get writes the file called name to w.
func (v *FileSystemTarget) Get(name string, w io.Writer) error {
	if err := checkName(name); err != nil {
		return err
	}
	return v.readFile(v.Location(name), w, fmt.Sprintf("backup not found: %s", name))
}

// List returns the regular files in the directory. A missing directory is
// empty.
func (v *FileSystemTarget) List() ([]*mbhd.TargetEntry, error) {
	entries, err := v.fsmgr.ListDir(v.dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", v.dir, err)
	}
	return entries, nil
}

// Delete securely deletes the file called name.
func (v *FileSystemTarget) Delete(name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := v.fsmgr.SecureDelete(v.Location(name)); err != nil {
		return fmt.Errorf("deleting %s: %w", name, err)
	}
	return nil
}

// ValidateSetup verifies that the directory exists.
func (v *FileSystemTarget) ValidateSetup() error {
	info, err := os.Stat(v.dir)
	if err != nil {
		return fmt.Errorf("target directory not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("target path is not a directory: %s", v.dir)
	}
	return nil
}

// writeFile writes data from r to the specified path using atomic write (temp file + rename).
func (v *FileSystemTarget) writeFile(destPath string, r io.Reader, expectedSize int64) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	success = true
	return nil
}

func (v *FileSystemTarget) readFile(srcPath string, w io.Writer, notFoundMsg string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", notFoundMsg, os.ErrNotExist)
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	return nil
}

// checkName rejects names that would escape the target.
func checkName(name string) error {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		return fmt.Errorf("invalid backup name: %q", name)
	}
	return nil
}

var _ mbhd.Target = (*FileSystemTarget)(nil)
