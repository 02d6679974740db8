package mbhd

import (
	"io/fs"
)

// FilesystemManager provides the local file operations the backup layer
// needs. It abstracts file access so tests can point it at a temp dir.
type FilesystemManager interface {
	Stat(path string) (fs.FileInfo, error)
	MkdirAll(path string) error
	ReadFile(path string) ([]byte, error)

	// WriteFile writes data atomically: it goes to a temporary sibling
	// first and is renamed into place.
	WriteFile(path string, data []byte) error

	// ListDir returns the regular files directly inside dir. A missing dir
	// yields an empty list.
	ListDir(dir string) ([]*TargetEntry, error)

	// ListSubdirectories returns the names of directories inside dir.
	ListSubdirectories(dir string) ([]string, error)

	// SecureDelete overwrites a file before removing it.
	SecureDelete(path string) error

	// MkdirTemp creates a fresh private directory for scratch files.
	MkdirTemp(pattern string) (string, error)
	RemoveAll(path string) error
}

// Archiver packs a directory tree into a zip file and unpacks it again.
type Archiver interface {
	// ZipDirectory writes srcDir into a new zip file at dest, skipping
	// entries matched by the exclude patterns.
	ZipDirectory(srcDir, dest string, exclude []string) error

	// Unzip extracts archive into destDir, overwriting existing files.
	// Entries that would land outside destDir are rejected.
	Unzip(archive, destDir string) error
}
