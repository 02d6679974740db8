package fs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"

	"mbhd-go/internal/mbhd"
)

// ZipArchiver implements mbhd.Archiver with deflate-compressed zip files.
type ZipArchiver struct{}

// NewZipArchiver creates a ZipArchiver.
func NewZipArchiver() *ZipArchiver {
	return &ZipArchiver{}
}

// ZipDirectory writes every regular file under srcDir into a new zip at dest.
// Entries matching exclude, the defaults, or srcDir/.mbhdignore are skipped;
// an ignored directory is skipped with all of its contents.
func (a *ZipArchiver) ZipDirectory(srcDir, dest string, exclude []string) error {
	extra, err := ParseIgnoreFile(filepath.Join(srcDir, IgnoreFileName))
	if err != nil {
		return err
	}
	matcher := NewIgnoreMatcher(append(append([]string{}, exclude...), extra...))

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("creating archive: %w", err)
	}
	success := false
	defer func() {
		if !success {
			out.Close()
			os.Remove(dest)
		}
	}()

	zw := zip.NewWriter(out)
	err = filepath.WalkDir(srcDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if matcher.Match(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if p == dest || d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		return addFile(zw, p, filepath.ToSlash(rel))
	})
	if err != nil {
		return fmt.Errorf("walking directory: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finishing archive: %w", err)
	}
	if err := out.Sync(); err != nil {
		return fmt.Errorf("syncing archive: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing archive: %w", err)
	}
	success = true
	return nil
}

func addFile(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("adding %s: %w", name, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("compressing %s: %w", name, err)
	}
	return nil
}

// Unzip extracts archive into destDir, replacing files that already exist.
func (a *ZipArchiver) Unzip(archive, destDir string) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer zr.Close()

	if err := os.MkdirAll(destDir, 0700); err != nil {
		return fmt.Errorf("creating %s: %w", destDir, err)
	}
	for _, zf := range zr.File {
		if err := extract(zf, destDir); err != nil {
			return err
		}
	}
	return nil
}

func extract(zf *zip.File, destDir string) error {
	name := filepath.FromSlash(zf.Name)
	if !filepath.IsLocal(name) {
		return fmt.Errorf("archive entry escapes destination: %q", zf.Name)
	}
	target := filepath.Join(destDir, name)

	if zf.FileInfo().IsDir() {
		return os.MkdirAll(target, 0700)
	}
	if !zf.Mode().IsRegular() {
		return fmt.Errorf("archive entry is not a regular file: %q", zf.Name)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0700); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(target), err)
	}

	rc, err := zf.Open()
	if err != nil {
		return fmt.Errorf("opening %s: %w", zf.Name, err)
	}
	defer rc.Close()

	tmp, err := os.CreateTemp(filepath.Dir(target), tempPattern)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := io.Copy(tmp, rc); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("extracting %s: %w", zf.Name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing %s: %w", zf.Name, err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s exists and is not a file: %w", target, err)
		}
		return fmt.Errorf("replacing %s: %w", target, err)
	}
	return nil
}

var _ mbhd.Archiver = (*ZipArchiver)(nil)
