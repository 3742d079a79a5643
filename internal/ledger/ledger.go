// Package ledger persists the fingerprint of every module seen by a build.
//
// The on-disk form is the plain text file written next to the patch output:
//
//	<logicalPath>:<hashHex>\n
//
// one line per module, sorted by path. A missing file means "no previous
// build"; lines that do not split into exactly two non-empty fields are
// ignored on load. Paths containing ':' are not representable.
package ledger

import (
	"bufio"
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"class-patcher/internal/textutil"
)

// FileName is the ledger file name inside a variant output directory.
const FileName = "hex.txt"

// LedgerIOError reports a ledger file that could not be read or written.
type LedgerIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *LedgerIOError) Error() string {
	return fmt.Sprintf("ledger %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *LedgerIOError) Unwrap() error { return e.Err }

// Ledger maps a module's logical path to its content hash.
type Ledger struct {
	entries map[string]string
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{entries: make(map[string]string)}
}

// Hash returns the lowercase hex MD5 of b.
func Hash(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}

// Set records hash for path, replacing any earlier value.
func (l *Ledger) Set(path, hash string) {
	l.entries[path] = hash
}

// Get returns the hash recorded for path.
func (l *Ledger) Get(path string) (string, bool) {
	if l == nil {
		return "", false
	}
	h, ok := l.entries[path]
	return h, ok
}

// Len is the number of recorded modules.
func (l *Ledger) Len() int {
	if l == nil {
		return 0
	}
	return len(l.entries)
}

// Empty reports whether the ledger records nothing. A nil ledger is empty.
func (l *Ledger) Empty() bool { return l.Len() == 0 }

// Paths returns every recorded path in sorted order.
func (l *Ledger) Paths() []string {
	if l == nil {
		return nil
	}
	out := make([]string, 0, len(l.entries))
	for p := range l.entries {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Load reads the ledger at path. A missing file yields an empty ledger and a
// nil error. Any other read failure yields an empty ledger and a
// *LedgerIOError so the caller can log it and continue.
func Load(path string) (*Ledger, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return New(), nil
		}
		return New(), &LedgerIOError{Op: "read", Path: path, Err: err}
	}
	return Parse(b), nil
}

// Parse decodes ledger text, skipping malformed lines.
func Parse(b []byte) *Ledger {
	l := New()
	sc := bufio.NewScanner(bytes.NewReader(textutil.NormalizeLF(b)))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		fields := strings.Split(sc.Text(), ":")
		if len(fields) != 2 || fields[0] == "" || fields[1] == "" {
			continue
		}
		l.entries[fields[0]] = fields[1]
	}
	return l
}

// Bytes encodes the ledger, sorted by path.
func (l *Ledger) Bytes() []byte {
	var buf bytes.Buffer
	for _, p := range l.Paths() {
		buf.WriteString(p)
		buf.WriteByte(':')
		buf.WriteString(l.entries[p])
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// Save replaces the file at path with l. The content is written to a
// temporary sibling and renamed into place so readers never observe a
// partial ledger.
func Save(l *Ledger, path string) error {
	if err := save(l, path); err != nil {
		return &LedgerIOError{Op: "write", Path: path, Err: err}
	}
	return nil
}

func save(l *Ledger, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, f, err := createTempFile(dir, filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := f.Write(l.Bytes()); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// createTempFile creates ".tmp-<base>-<rand>" in dir.
func createTempFile(dir, base string) (string, *os.File, error) {
	f, err := os.CreateTemp(dir, ".tmp-"+base+"-")
	if err != nil {
		return "", nil, err
	}
	return f.Name(), f, nil
}
