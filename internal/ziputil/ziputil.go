// Package ziputil holds the small helpers shared by every jar writer.
package ziputil

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FixedZipTime ensures byte-for-byte reproducible archives (1980-01-01 UTC).
var FixedZipTime = time.Unix(315532800, 0).UTC()

// SanitizePath normalizes ZIP entry paths (forward slashes, no drive, no leading '/'),
// and removes '.' and '..' segments without escaping the root.
func SanitizePath(p string) string {
	s := filepath.ToSlash(p)
	if len(s) > 1 && s[1] == ':' {
		s = s[2:]
	}
	s = strings.TrimLeft(s, "/")
	parts := strings.Split(s, "/")
	stack := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" || part == "." {
			continue
		}
		if part == ".." {
			if n := len(stack); n > 0 {
				stack = stack[:n-1]
			}
			continue
		}
		stack = append(stack, part)
	}
	s = strings.Join(stack, "/")
	if s == "" {
		return "entry"
	}
	return s
}

// WriteFile writes one deflated entry with the fixed timestamp.
func WriteFile(zw *zip.Writer, name string, data []byte) error {
	h := &zip.FileHeader{Name: SanitizePath(name), Method: zip.Deflate}
	h.SetMode(0o644)
	h.Modified = FixedZipTime
	w, err := zw.CreateHeader(h)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// CopyRaw copies f into zw without recompressing it, so the stored payload,
// CRC and sizes are carried over unchanged.
func CopyRaw(zw *zip.Writer, f *zip.File) error {
	r, err := f.OpenRaw()
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Name, err)
	}
	h := f.FileHeader
	w, err := zw.CreateRaw(&h)
	if err != nil {
		return fmt.Errorf("create %s: %w", f.Name, err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copy %s: %w", f.Name, err)
	}
	return nil
}

// Replace writes data, deflated, as a new version of f, keeping its name and
// modification time.
func Replace(zw *zip.Writer, f *zip.File, data []byte) error {
	h := &zip.FileHeader{
		Name:     f.Name,
		Comment:  f.Comment,
		Method:   zip.Deflate,
		Modified: f.Modified,
	}
	h.SetMode(f.Mode())
	w, err := zw.CreateHeader(h)
	if err != nil {
		return fmt.Errorf("create %s: %w", f.Name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", f.Name, err)
	}
	return nil
}

// CreateTempFile creates ".tmp-<base>-<rand>" in dir, returning its path and
// an *os.File ready for writing. Caller is responsible for closing it.
func CreateTempFile(dir, base string) (string, *os.File, error) {
	f, err := os.CreateTemp(dir, ".tmp-"+base+"-")
	if err != nil {
		return "", nil, err
	}
	return f.Name(), f, nil
}
