//go:build !unix

package fs

import "io/fs"

func blockSize(fs.FileInfo) int {
	return defaultBlockSize
}
