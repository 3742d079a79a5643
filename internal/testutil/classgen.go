// Package testutil assembles class files and jars for tests.
package testutil

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"class-patcher/internal/classfile"
)

// Method describes one method body. StackMap and the table fields hold raw
// attribute bodies and are omitted when nil.
type Method struct {
	Access         uint16
	Name           string
	Desc           string
	MaxStack       uint16
	MaxLocals      uint16
	Code           []byte
	Handlers       []classfile.Handler
	StackMap       []byte
	LineNumbers    []byte
	LocalVariables []byte
}

// ClassBuilder collects a constant pool and methods for a single class.
type ClassBuilder struct {
	pool    *classfile.ConstantPool
	this    uint16
	super   uint16
	methods []classfile.Member
}

// NewClass starts a public class named name extending java/lang/Object.
func NewClass(name string) *ClassBuilder {
	b := &ClassBuilder{pool: classfile.NewConstantPool()}
	b.this = b.Class(name)
	b.super = b.Class("java/lang/Object")
	return b
}

// Pool exposes the pool being built.
func (b *ClassBuilder) Pool() *classfile.ConstantPool { return b.pool }

// Class returns the pool index of a class constant.
func (b *ClassBuilder) Class(name string) uint16 {
	return must(b.pool.AddClass(name))
}

// Utf8 returns the pool index of a Utf8 constant.
func (b *ClassBuilder) Utf8(s string) uint16 {
	return must(b.pool.AddUtf8(s))
}

// MethodRef returns the pool index of a Methodref constant.
func (b *ClassBuilder) MethodRef(owner, name, desc string) uint16 {
	return must(b.pool.AddMemberRef(classfile.TagMethodref, owner, name, desc))
}

// FieldRef returns the pool index of a Fieldref constant.
func (b *ClassBuilder) FieldRef(owner, name, desc string) uint16 {
	return must(b.pool.AddMemberRef(classfile.TagFieldref, owner, name, desc))
}

// Pad appends n distinct Utf8 constants so later constants get wide indices.
func (b *ClassBuilder) Pad(n int) *ClassBuilder {
	for i := 0; i < n; i++ {
		b.Utf8(fmt.Sprintf("pad%04d", i))
	}
	return b
}

// Method adds m to the class.
func (b *ClassBuilder) Method(m Method) *ClassBuilder {
	code := &classfile.Code{
		MaxStack:  m.MaxStack,
		MaxLocals: m.MaxLocals,
		Code:      m.Code,
		Handlers:  m.Handlers,
	}
	for _, a := range []struct {
		name string
		data []byte
	}{
		{"StackMapTable", m.StackMap},
		{"LineNumberTable", m.LineNumbers},
		{"LocalVariableTable", m.LocalVariables},
	} {
		if a.data != nil {
			code.Attributes = append(code.Attributes, classfile.Attribute{Name: b.Utf8(a.name), Data: a.data})
		}
	}
	b.methods = append(b.methods, classfile.Member{
		Access:     m.Access,
		Name:       b.Utf8(m.Name),
		Descriptor: b.Utf8(m.Desc),
		Attributes: []classfile.Attribute{{Name: b.Utf8("Code"), Data: code.Bytes()}},
	})
	return b
}

// Abstract adds a method without a Code attribute.
func (b *ClassBuilder) Abstract(name, desc string) *ClassBuilder {
	b.methods = append(b.methods, classfile.Member{Access: 0x0401, Name: b.Utf8(name), Descriptor: b.Utf8(desc)})
	return b
}

// Build returns the decoded class.
func (b *ClassBuilder) Build() *classfile.Class {
	return &classfile.Class{
		Major:   52,
		Pool:    b.pool,
		Access:  0x0021,
		This:    b.this,
		Super:   b.super,
		Methods: b.methods,
	}
}

// Bytes returns the encoded class file.
func (b *ClassBuilder) Bytes() []byte { return b.Build().Bytes() }

// Sample method bodies. Offsets in the comments are the original layout.
//
// DefaultInit:  0 aload_0; 1 invokespecial Object.<init>; 4 return
// BranchInit:   ...; 4 iload_1; 5 ifeq 9; 8 return; 9 return
// SwitchInit:   ...; 4 iload_1; 5 ifne 9; 8 return; 9 iload_1;
//               10 tableswitch {0:28 default:29}; 28 return; 29 return
// Run:          0 return
const (
	SampleDefaultInit = "<init>()V"
	SampleBranchInit  = "<init>(Z)V"
	SampleSwitchInit  = "<init>(I)V"
	SampleRun         = "run()V"
)

// Sample returns a class named name exercising the constructor shapes the
// rewriter has to handle, plus one ordinary method that must stay untouched.
func Sample(name string) *ClassBuilder {
	b := NewClass(name)
	ref := b.MethodRef("java/lang/Object", "<init>", "()V")
	hi, lo := byte(ref>>8), byte(ref)
	b.Method(Method{
		Access: 0x0001, Name: "<init>", Desc: "()V", MaxStack: 1, MaxLocals: 1,
		Code:        []byte{0x2a, 0xb7, hi, lo, 0xb1},
		LineNumbers: []byte{0x00, 0x02, 0x00, 0x00, 0x00, 0x03, 0x00, 0x04, 0x00, 0x04},
		LocalVariables: []byte{0x00, 0x01,
			0x00, 0x00, 0x00, 0x05, byte(b.Utf8("this") >> 8), byte(b.Utf8("this")),
			byte(b.Utf8("L"+name+";") >> 8), byte(b.Utf8("L"+name+";")), 0x00, 0x00},
	})
	b.Method(Method{
		Access: 0x0001, Name: "<init>", Desc: "(Z)V", MaxStack: 1, MaxLocals: 2,
		Code:     []byte{0x2a, 0xb7, hi, lo, 0x1b, 0x99, 0x00, 0x04, 0xb1, 0xb1},
		StackMap: []byte{0x00, 0x01, 0x09},
	})
	b.Method(Method{
		Access: 0x0001, Name: "<init>", Desc: "(I)V", MaxStack: 1, MaxLocals: 2,
		Code: []byte{
			0x2a, 0xb7, hi, lo, // 0
			0x1b,             // 4
			0x9a, 0x00, 0x04, // 5 ifne 9
			0xb1,             // 8
			0x1b,             // 9
			0xaa, 0x00, // 10 tableswitch, one pad byte
			0x00, 0x00, 0x00, 0x13, // default 29
			0x00, 0x00, 0x00, 0x00, // low
			0x00, 0x00, 0x00, 0x00, // high
			0x00, 0x00, 0x00, 0x12, // 0 -> 28
			0xb1, // 28
			0xb1, // 29
		},
		StackMap: []byte{0x00, 0x03, 0x09, 0x12, 0x00},
	})
	b.Method(Method{
		Access: 0x0001, Name: "run", Desc: "()V", MaxStack: 0, MaxLocals: 1,
		Code: []byte{0xb1},
	})
	return b
}

// SampleBytes is Sample(name).Bytes().
func SampleBytes(name string) []byte { return Sample(name).Bytes() }

// WriteFile writes data under dir/rel, creating parents, and returns the path.
func WriteFile(t *testing.T, dir, rel string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// Entry is one jar entry.
type Entry struct {
	Name string
	Data []byte
}

// WriteJar writes a jar holding entries in order and returns its path.
func WriteJar(t *testing.T, path string, entries ...Entry) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.Name)
		if err != nil {
			t.Fatalf("jar entry %s: %v", e.Name, err)
		}
		if _, err := w.Write(e.Data); err != nil {
			t.Fatalf("jar entry %s: %v", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close jar: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write jar: %v", err)
	}
	return path
}

// ReadJar returns the entries of the jar at path in stored order.
func ReadJar(t *testing.T, path string) []Entry {
	t.Helper()
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open jar %s: %v", path, err)
	}
	defer zr.Close()
	var out []Entry
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		var buf bytes.Buffer
		_, err = buf.ReadFrom(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		out = append(out, Entry{Name: f.Name, Data: buf.Bytes()})
	}
	return out
}

// Names returns the entry names.
func Names(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

func must(i uint16, err error) uint16 {
	if err != nil {
		panic(err)
	}
	return i
}
