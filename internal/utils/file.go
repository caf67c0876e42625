package utils

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultImageExtensions are the image types the trainer accepts
var DefaultImageExtensions = []string{"jpg", "jpeg", "png", "bmp", "tif", "tiff", "webp"}

// EnsureDir creates a directory if it doesn't exist.
// It reports whether the directory was created by this call.
func EnsureDir(dir string) (bool, error) {
	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return false, fmt.Errorf("%s exists and is not a directory", dir)
		}
		return false, nil
	}
	if !os.IsNotExist(err) {
		return false, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, err
	}
	return true, nil
}

// GetFileExtension returns the file extension without the dot
func GetFileExtension(filename string) string {
	ext := filepath.Ext(filename)
	if len(ext) > 0 {
		return strings.ToLower(ext[1:])
	}
	return ""
}

// Stem returns the base filename without its extension
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// HasExtension checks a filename against an allow-list of extensions.
// An empty allow-list accepts every file.
func HasExtension(filename string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := GetFileExtension(filename)
	for _, allowed := range exts {
		if ext == strings.ToLower(strings.TrimPrefix(allowed, ".")) {
			return true
		}
	}
	return false
}

// ListFiles recursively lists regular files under dir.
// With a non-empty allow-list, files not matching it and hidden entries are skipped.
// A missing dir yields an empty list.
func ListFiles(dir string, exts []string) ([]string, error) {
	var files []string

	if !DirExists(dir) {
		return files, nil
	}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if len(exts) > 0 && path != dir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type().IsRegular() && HasExtension(path, exts) {
			files = append(files, path)
		}

		return nil
	})

	return files, err
}

// CopyFile copies src to dst, replacing dst if it exists, and returns the bytes written
func CopyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", dst, err)
	}

	n, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		return n, fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}

	return n, out.Close()
}

// FileExists checks if a file exists and is not a directory
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// DirExists checks if a directory exists
func DirExists(dirname string) bool {
	info, err := os.Stat(dirname)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// FormatFileSize formats file size in human-readable format
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}

	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
