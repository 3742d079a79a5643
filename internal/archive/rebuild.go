package archive

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"class-patcher/internal/ziputil"
)

// Entry is one entry of a jar being rebuilt.
type Entry struct {
	f *zip.File
}

// Name is the entry name as stored in the jar.
func (e Entry) Name() string { return e.f.Name }

// IsDir reports whether the entry is a directory marker.
func (e Entry) IsDir() bool { return strings.HasSuffix(e.f.Name, "/") }

// Read returns the uncompressed entry content.
func (e Entry) Read() ([]byte, error) {
	rc, err := e.f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// EntryFunc decides the fate of one entry. Returning replace=false copies the
// entry through unchanged; otherwise data becomes its new content. A non-nil
// error stops the rebuild and is returned as is.
type EntryFunc func(e Entry) (data []byte, replace bool, err error)

// Rebuild streams every entry of the jar at src through fn into a temporary
// sibling, then renames the sibling over src. Entry order, the archive
// comment, and the raw bytes of passed-through entries are preserved. On any
// failure src is left untouched and the sibling removed.
func Rebuild(src string, fn EntryFunc) (err error) {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return &ArchiveIOError{Op: "open", Path: src, Err: err}
	}
	defer zr.Close()

	tmp, f, err := ziputil.CreateTempFile(filepath.Dir(src), filepath.Base(src))
	if err != nil {
		return &ArchiveIOError{Op: "create", Path: src, Err: err}
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	zw := zip.NewWriter(f)
	if zr.Comment != "" {
		if err := zw.SetComment(zr.Comment); err != nil {
			return &ArchiveIOError{Op: "write", Path: src, Err: err}
		}
	}
	for _, zf := range zr.File {
		data, replace, err := fn(Entry{f: zf})
		if err != nil {
			return err
		}
		if replace {
			err = ziputil.Replace(zw, zf, data)
		} else {
			err = ziputil.CopyRaw(zw, zf)
		}
		if err != nil {
			return &ArchiveIOError{Op: "write", Path: src, Err: err}
		}
	}
	if err := zw.Close(); err != nil {
		return &ArchiveIOError{Op: "finalize", Path: src, Err: err}
	}
	if err := f.Sync(); err != nil {
		return &ArchiveIOError{Op: "finalize", Path: src, Err: err}
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return &ArchiveIOError{Op: "finalize", Path: src, Err: err}
	}
	// Windows refuses to rename over a file that is still open.
	_ = zr.Close()
	if err := os.Rename(tmp, src); err != nil {
		_ = os.Remove(tmp)
		return &ArchiveIOError{Op: "replace", Path: src, Err: err}
	}
	return nil
}
