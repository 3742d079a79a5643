// Package source discovers the compiled modules a build feeds to the patcher.
//
// A build input is either a loose class file or a jar of class files. Loose
// modules are addressed by their logical path (the '/'-separated path below
// the class output root, e.g. "com/app/Foo.class"), which is also the name
// of the entry in a jar and the key in the fingerprint ledger.
package source

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	classExt = ".class"
	jarExt   = ".jar"

	// classesDir is the conventional class output directory name.
	classesDir = "classes"
)

// Unit is one build input: a *LooseModule or an *ArchiveFile.
type Unit interface {
	// Path is the absolute filesystem path of the unit.
	Path() string
	unit()
}

// LooseModule is a class file on disk.
type LooseModule struct {
	Abs     string
	Logical string
}

func (m *LooseModule) Path() string { return m.Abs }
func (*LooseModule) unit()          {}

// Read returns the current bytes of the module.
func (m *LooseModule) Read() ([]byte, error) {
	return os.ReadFile(m.Abs)
}

// Write replaces the module's bytes. The new content goes to a temporary
// sibling that is renamed over the original, keeping its permissions.
func (m *LooseModule) Write(b []byte) error {
	mode := fs.FileMode(0o644)
	if st, err := os.Stat(m.Abs); err == nil {
		mode = st.Mode().Perm()
	}
	dir := filepath.Dir(m.Abs)
	f, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(m.Abs)+"-")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Chmod(mode); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, m.Abs); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// ArchiveFile is a jar whose class entries are modules.
type ArchiveFile struct {
	Abs string
}

func (a *ArchiveFile) Path() string { return a.Abs }
func (*ArchiveFile) unit()          {}

// Collect turns build inputs into units. Class files and jars are taken as
// they are; directories are walked in lexical order and contribute every
// class file (keyed by LogicalPath) and every jar below them. Anything else
// is ignored. Inputs keep their order and a path seen twice is collected
// once.
func Collect(inputs []string) ([]Unit, error) {
	var out []Unit
	seen := make(map[string]bool)
	add := func(u Unit) {
		if seen[u.Path()] {
			return
		}
		seen[u.Path()] = true
		out = append(out, u)
	}
	for _, in := range inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			return nil, err
		}
		st, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("build input: %w", err)
		}
		if !st.IsDir() {
			if u := classify(abs, ""); u != nil {
				add(u)
			}
			continue
		}
		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || strings.HasPrefix(d.Name(), ".tmp-") {
				return nil
			}
			if u := classify(path, abs); u != nil {
				add(u)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", abs, err)
		}
	}
	return out, nil
}

func classify(abs, root string) Unit {
	switch strings.ToLower(filepath.Ext(abs)) {
	case classExt:
		return &LooseModule{Abs: abs, Logical: LogicalPath(abs, root)}
	case jarExt:
		return &ArchiveFile{Abs: abs}
	}
	return nil
}

// LogicalPath derives the logical path of a class file: whatever follows the
// last "classes" directory. Without one it is the path relative to the walk
// root, or the bare file name when there is no root either.
func LogicalPath(abs, root string) string {
	parts := strings.Split(filepath.ToSlash(abs), "/")
	if root != "" {
		if rel, err := filepath.Rel(root, abs); err == nil && !strings.HasPrefix(rel, "..") {
			parts = strings.Split(filepath.ToSlash(rel), "/")
			if p, ok := afterClasses(parts); ok {
				return p
			}
			return filepath.ToSlash(rel)
		}
	}
	if p, ok := afterClasses(parts); ok {
		return p
	}
	return parts[len(parts)-1]
}

func afterClasses(parts []string) (string, bool) {
	for i := len(parts) - 2; i >= 0; i-- {
		if parts[i] == classesDir {
			return strings.Join(parts[i+1:], "/"), true
		}
	}
	return "", false
}

// ErrUnknownUnit is returned for a Unit implementation this package did not
// produce.
var ErrUnknownUnit = errors.New("source: unknown unit kind")
