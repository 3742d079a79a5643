// Package archive writes the patch jar and rebuilds input jars in place.
//
// Both writers go through a temporary sibling file that is renamed over the
// target only once the archive is complete, so a failed build never leaves a
// truncated jar behind.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"class-patcher/internal/ziputil"
)

// ErrClosed is returned by Append after Close or Abort.
var ErrClosed = errors.New("archive: assembler closed")

// ArchiveIOError reports a failure creating, writing, reading or finalizing
// an archive.
type ArchiveIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *ArchiveIOError) Error() string {
	return fmt.Sprintf("archive %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ArchiveIOError) Unwrap() error { return e.Err }

// SanitizeName normalizes an entry name to a relative, forward-slash path.
func SanitizeName(name string) string { return ziputil.SanitizePath(name) }

// Assembler accumulates the patch jar. Entries are written in Append order
// with a fixed timestamp, so identical inputs produce identical bytes.
// An Assembler is not safe for concurrent use.
type Assembler struct {
	path   string
	tmp    string
	f      *os.File
	zw     *zip.Writer
	count  int
	closed bool
}

// NewAssembler prepares a jar at path, creating parent directories.
func NewAssembler(path string) (*Assembler, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &ArchiveIOError{Op: "create", Path: path, Err: err}
	}
	tmp, f, err := ziputil.CreateTempFile(dir, filepath.Base(path))
	if err != nil {
		return nil, &ArchiveIOError{Op: "create", Path: path, Err: err}
	}
	return &Assembler{path: path, tmp: tmp, f: f, zw: zip.NewWriter(f)}, nil
}

// Path is the final location of the jar.
func (a *Assembler) Path() string { return a.path }

// Count is the number of entries appended so far.
func (a *Assembler) Count() int { return a.count }

// Append adds one entry. Names are not de-duplicated.
func (a *Assembler) Append(name string, data []byte) error {
	if a.closed {
		return ErrClosed
	}
	if err := ziputil.WriteFile(a.zw, name, data); err != nil {
		return &ArchiveIOError{Op: "write", Path: a.path, Err: err}
	}
	a.count++
	return nil
}

// Close finalizes the jar and moves it into place. A jar without entries is
// still a valid, empty archive. Close after Close is a no-op.
func (a *Assembler) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	if err := a.zw.Close(); err != nil {
		a.discard()
		return &ArchiveIOError{Op: "finalize", Path: a.path, Err: err}
	}
	if err := a.f.Sync(); err != nil {
		a.discard()
		return &ArchiveIOError{Op: "finalize", Path: a.path, Err: err}
	}
	if err := a.f.Close(); err != nil {
		_ = os.Remove(a.tmp)
		return &ArchiveIOError{Op: "finalize", Path: a.path, Err: err}
	}
	if err := os.Rename(a.tmp, a.path); err != nil {
		_ = os.Remove(a.tmp)
		return &ArchiveIOError{Op: "finalize", Path: a.path, Err: err}
	}
	return nil
}

// Abort drops everything appended and leaves no file behind. It is safe to
// call after Close, in which case it does nothing.
func (a *Assembler) Abort() {
	if a.closed {
		return
	}
	a.closed = true
	a.discard()
}

func (a *Assembler) discard() {
	_ = a.f.Close()
	_ = os.Remove(a.tmp)
}
