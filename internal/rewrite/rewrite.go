// Package rewrite plants a marker class reference in every constructor of a
// compiled class so the class never ends up pre-verified against its dex file.
//
// Rewriting is not idempotent: each call inserts another marker before every
// constructor return.
package rewrite

import (
	"errors"
	"fmt"

	"class-patcher/internal/classfile"
)

// DefaultMarker is the internal name of the class referenced by the inserted
// load instruction.
const DefaultMarker = "com/demo/plugin/AntiLazyLoad"

// MalformedModuleError reports a class that could not be decoded or edited.
type MalformedModuleError struct {
	Path string
	Err  error
}

func (e *MalformedModuleError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("malformed module: %v", e.Err)
	}
	return fmt.Sprintf("malformed module %s: %v", e.Path, e.Err)
}

func (e *MalformedModuleError) Unwrap() error { return e.Err }

// Result counts what a rewrite touched.
type Result struct {
	Constructors int
	Markers      int
}

// Rewriter inserts `ldc Marker` before every `return` of every `<init>`.
type Rewriter struct {
	Marker string
}

// New returns a Rewriter for marker, or DefaultMarker when marker is empty.
func New(marker string) *Rewriter {
	if marker == "" {
		marker = DefaultMarker
	}
	return &Rewriter{Marker: marker}
}

// Rewrite returns the rewritten class bytes.
func (rw *Rewriter) Rewrite(b []byte) ([]byte, error) {
	out, _, err := rw.RewriteWithStats(b)
	return out, err
}

// RewriteWithStats is Rewrite plus the number of constructors visited and
// markers inserted. A class without constructor returns is re-encoded
// unchanged.
func (rw *Rewriter) RewriteWithStats(b []byte) ([]byte, Result, error) {
	var res Result
	c, err := classfile.Parse(b)
	if err != nil {
		return nil, res, &MalformedModuleError{Err: err}
	}
	marker := rw.Marker
	if marker == "" {
		marker = DefaultMarker
	}

	var ldc []byte
	for mi := range c.Methods {
		m := &c.Methods[mi]
		if name, _ := c.MemberName(*m); name != "<init>" {
			continue
		}
		ai := c.FindAttribute(m.Attributes, "Code")
		if ai < 0 {
			continue
		}
		res.Constructors++
		code, err := classfile.ParseCode(m.Attributes[ai].Data)
		if err != nil {
			return nil, res, &MalformedModuleError{Err: err}
		}
		insns, err := classfile.Decode(code.Code)
		if err != nil {
			return nil, res, &MalformedModuleError{Err: err}
		}
		edits := make(map[int][]byte)
		for _, in := range insns {
			if in.Op != classfile.OpReturn {
				continue
			}
			if ldc == nil {
				if ldc, err = loadInsn(c.Pool, marker); err != nil {
					return nil, res, &MalformedModuleError{Err: err}
				}
			}
			edits[in.Offset] = ldc
		}
		if len(edits) == 0 {
			continue
		}
		if err := code.InsertBefore(c.Pool, edits); err != nil {
			name, desc := c.MemberName(*m)
			return nil, res, &MalformedModuleError{Err: fmt.Errorf("%s%s: %w", name, desc, err)}
		}
		m.Attributes[ai].Data = code.Bytes()
		res.Markers += len(edits)
	}
	return c.Bytes(), res, nil
}

func loadInsn(pool *classfile.ConstantPool, marker string) ([]byte, error) {
	idx, err := pool.AddClass(marker)
	if err != nil {
		return nil, err
	}
	if idx <= 0xFF {
		return []byte{classfile.OpLdc, byte(idx)}, nil
	}
	return []byte{classfile.OpLdcW, byte(idx >> 8), byte(idx)}, nil
}

// IsMalformed reports whether err came from an undecodable class.
func IsMalformed(err error) bool {
	var me *MalformedModuleError
	return errors.As(err, &me)
}
