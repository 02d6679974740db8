package fs

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"mbhd-go/internal/mbhd"
)

// tempPattern names the temporary siblings used for atomic writes.
const tempPattern = ".tmp-*"

const defaultBlockSize = 4096

// OSFilesystemManager is the real filesystem implementation of
// mbhd.FilesystemManager.
type OSFilesystemManager struct {
	tempDir string
}

// NewOSFilesystemManager creates a filesystem manager. Scratch directories
// go below tempDir, or the system default when empty.
func NewOSFilesystemManager(tempDir string) *OSFilesystemManager {
	return &OSFilesystemManager{tempDir: tempDir}
}

func (m *OSFilesystemManager) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

func (m *OSFilesystemManager) MkdirAll(path string) error {
	return os.MkdirAll(path, 0700)
}

func (m *OSFilesystemManager) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// WriteFile writes data to a temp file in the target directory, syncs it
// and renames it into place.
func (m *OSFilesystemManager) WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing data: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	tmpPath = ""
	return nil
}

// ListDir returns the regular files directly inside dir.
func (m *OSFilesystemManager) ListDir(dir string) ([]*mbhd.TargetEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading directory: %w", err)
	}

	var out []*mbhd.TargetEntry
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		out = append(out, &mbhd.TargetEntry{Name: entry.Name(), Size: info.Size()})
	}
	return out, nil
}

// ListSubdirectories returns the names of directories inside dir.
func (m *OSFilesystemManager) ListSubdirectories(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading directory: %w", err)
	}
	var out []string
	for _, entry := range entries {
		if entry.IsDir() {
			out = append(out, entry.Name())
		}
	}
	return out, nil
}

// SecureDelete overwrites a regular file with random bytes, syncs it and
// removes it.
func (m *OSFilesystemManager) SecureDelete(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("refusing to securely delete non-regular file: %s", path)
	}

	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("opening for overwrite: %w", err)
	}
	if _, err := io.CopyBuffer(f, io.LimitReader(rand.Reader, info.Size()), make([]byte, blockSize(info))); err != nil {
		f.Close()
		return fmt.Errorf("overwriting %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("removing %s: %w", path, err)
	}
	return nil
}

func (m *OSFilesystemManager) MkdirTemp(pattern string) (string, error) {
	if m.tempDir != "" {
		if err := os.MkdirAll(m.tempDir, 0700); err != nil {
			return "", fmt.Errorf("creating temp root: %w", err)
		}
	}
	return os.MkdirTemp(m.tempDir, pattern)
}

func (m *OSFilesystemManager) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

var _ mbhd.FilesystemManager = (*OSFilesystemManager)(nil)
