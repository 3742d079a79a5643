// Package validate performs lightweight checks of the patch artifacts before
// they leave the build. It aggregates every issue found into a single error
// so one run reports everything wrong with a patch.
package validate

import (
	"archive/zip"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"class-patcher/internal/classfile"
	"class-patcher/internal/ledger"
)

// PatchJar validates the patch jar at path:
//
//   - Every entry is a relative, forward-slash path without '..' segments.
//   - Every entry ends in ".class" and appears once.
//   - Every entry decodes as a class whose name matches the entry name.
func PatchJar(path string) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("open patch %s: %w", path, err)
	}
	defer zr.Close()

	var errs errlist
	seen := make(map[string]struct{}, len(zr.File))
	for i, f := range zr.File {
		prefix := fmt.Sprintf("entries[%d] (%s)", i, f.Name)
		checkPath(&errs, prefix, f.Name)

		if _, dup := seen[f.Name]; dup {
			errs.add("%s: duplicate entry", prefix)
			continue
		}
		seen[f.Name] = struct{}{}

		if !strings.HasSuffix(f.Name, ".class") {
			errs.add("%s: not a class file", prefix)
			continue
		}
		b, err := readEntry(f)
		if err != nil {
			errs.add("%s: %v", prefix, err)
			continue
		}
		checkClass(&errs, prefix, f.Name, b)
	}
	return errs.err()
}

// Module checks that data can be stored in the patch under path: the path
// is a relative class entry and data is the class it names.
func Module(path string, data []byte) error {
	var errs errlist
	prefix := fmt.Sprintf("module (%s)", path)
	checkPath(&errs, prefix, path)
	if !strings.HasSuffix(path, ".class") {
		errs.add("%s: not a class file", prefix)
		return errs.err()
	}
	checkClass(&errs, prefix, path, data)
	return errs.err()
}

// Ledger validates fingerprint entries. Paths must survive the line format:
// no ':' (the field separator), no line breaks, '/'-separated. Hashes must be
// 32 lowercase hex chars (md5).
func Ledger(l *ledger.Ledger) error {
	var errs errlist
	for _, p := range l.Paths() {
		prefix := fmt.Sprintf("ledger (%s)", p)
		if strings.ContainsAny(p, ":\r\n") {
			errs.add("%s: path must not contain ':' or line breaks", prefix)
		}
		checkPath(&errs, prefix, p)
		if h, _ := l.Get(p); !reHex32.MatchString(h) {
			errs.add("%s: hash must be 32 lowercase hex chars (md5), got %q", prefix, h)
		}
	}
	return errs.err()
}

// --- helpers -----------------------------------------------------------------

var reHex32 = regexp.MustCompile(`^[0-9a-f]{32}$`)

func checkPath(errs *errlist, prefix, p string) {
	switch {
	case p == "":
		errs.add("%s: path must be non-empty", prefix)
	case filepath.IsAbs(p) || strings.HasPrefix(p, "/"):
		errs.add("%s: path must be relative, got %q", prefix, p)
	case strings.Contains(p, `\`):
		errs.add("%s: path must use forward slashes ('/'), found backslash", prefix)
	case hasDotDot(p):
		errs.add("%s: path must not contain '..' segments", prefix)
	}
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// checkClass requires data to decode as the class named by entry.
func checkClass(errs *errlist, prefix, entry string, data []byte) {
	c, err := classfile.Parse(data)
	if err != nil {
		errs.add("%s: %v", prefix, err)
		return
	}
	if want := strings.TrimSuffix(entry, ".class"); c.Name() != want {
		errs.add("%s: holds class %s", prefix, c.Name())
	}
}

func hasDotDot(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}

// errlist aggregates multiple validation issues into a single error.
type errlist struct {
	msgs []string
}

func (e *errlist) add(format string, args ...any) {
	if e == nil {
		return
	}
	e.msgs = append(e.msgs, fmt.Sprintf(format, args...))
}

func (e *errlist) err() error {
	if e == nil || len(e.msgs) == 0 {
		return nil
	}
	return fmt.Errorf("%w:\n%s", ErrInvalid, strings.Join(e.msgs, "\n"))
}
