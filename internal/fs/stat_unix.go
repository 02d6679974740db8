//go:build unix

package fs

import (
	"io/fs"
	"syscall"
)

// blockSize returns the preferred I/O size of the file's filesystem.
func blockSize(info fs.FileInfo) int {
	if stat, ok := info.Sys().(*syscall.Stat_t); ok && stat.Blksize > 0 {
		return int(stat.Blksize)
	}
	return defaultBlockSize
}
