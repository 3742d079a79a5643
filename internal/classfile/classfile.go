// Package classfile decodes, edits and re-encodes JVM class files.
//
// The package understands just enough of the format to insert instructions
// into method bodies while keeping the class loadable:
//   - the constant pool (lookup and append),
//   - fields, methods and attributes (kept as raw bytes unless edited),
//   - the Code attribute, its instruction stream and exception table,
//   - every offset-bearing Code sub-attribute (StackMapTable, LineNumberTable,
//     LocalVariableTable, LocalVariableTypeTable).
//
// Anything else is carried through verbatim, so Parse followed by Bytes
// reproduces the input byte-for-byte.
package classfile

import (
	"fmt"
)

// Magic is the class file signature.
const Magic uint32 = 0xCAFEBABE

// Attribute is a named attribute with its undecoded body.
type Attribute struct {
	Name uint16
	Data []byte
}

// Member is a field or method.
type Member struct {
	Access     uint16
	Name       uint16
	Descriptor uint16
	Attributes []Attribute
}

// Class is a decoded class file.
type Class struct {
	Minor      uint16
	Major      uint16
	Pool       *ConstantPool
	Access     uint16
	This       uint16
	Super      uint16
	Interfaces []uint16
	Fields     []Member
	Methods    []Member
	Attributes []Attribute
}

// Parse decodes b. Every error wraps ErrMalformed.
func Parse(b []byte) (*Class, error) {
	c, err := parse(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return c, nil
}

func parse(b []byte) (*Class, error) {
	r := newReader(b)
	if m := r.u4(); r.err == nil && m != Magic {
		return nil, fmt.Errorf("bad magic 0x%08X", m)
	}
	c := &Class{Minor: r.u2(), Major: r.u2()}
	if r.err != nil {
		return nil, r.err
	}
	pool, err := parsePool(r)
	if err != nil {
		return nil, err
	}
	c.Pool = pool
	c.Access = r.u2()
	c.This = r.u2()
	c.Super = r.u2()
	n := int(r.u2())
	for i := 0; i < n && r.err == nil; i++ {
		c.Interfaces = append(c.Interfaces, r.u2())
	}
	if r.err != nil {
		return nil, r.err
	}
	if _, err := pool.ClassName(c.This); err != nil {
		return nil, fmt.Errorf("this_class: %w", err)
	}
	if c.Fields, err = parseMembers(r, pool); err != nil {
		return nil, fmt.Errorf("fields: %w", err)
	}
	if c.Methods, err = parseMembers(r, pool); err != nil {
		return nil, fmt.Errorf("methods: %w", err)
	}
	if c.Attributes, err = parseAttributes(r); err != nil {
		return nil, fmt.Errorf("class attributes: %w", err)
	}
	if r.remaining() != 0 {
		return nil, fmt.Errorf("%d trailing bytes", r.remaining())
	}
	return c, nil
}

func parseMembers(r *reader, pool *ConstantPool) ([]Member, error) {
	n := int(r.u2())
	if r.err != nil {
		return nil, r.err
	}
	out := make([]Member, 0, n)
	for i := 0; i < n; i++ {
		m := Member{Access: r.u2(), Name: r.u2(), Descriptor: r.u2()}
		if r.err != nil {
			return nil, r.err
		}
		if _, err := pool.Utf8(m.Name); err != nil {
			return nil, fmt.Errorf("member %d name: %w", i, err)
		}
		if _, err := pool.Utf8(m.Descriptor); err != nil {
			return nil, fmt.Errorf("member %d descriptor: %w", i, err)
		}
		attrs, err := parseAttributes(r)
		if err != nil {
			return nil, fmt.Errorf("member %d: %w", i, err)
		}
		m.Attributes = attrs
		out = append(out, m)
	}
	return out, nil
}

func parseAttributes(r *reader) ([]Attribute, error) {
	n := int(r.u2())
	if r.err != nil {
		return nil, r.err
	}
	out := make([]Attribute, 0, n)
	for i := 0; i < n; i++ {
		name := r.u2()
		l := int(r.u4())
		data := r.bytes(l)
		if r.err != nil {
			return nil, r.err
		}
		out = append(out, Attribute{Name: name, Data: data})
	}
	return out, nil
}

// Bytes encodes the class.
func (c *Class) Bytes() []byte {
	b := make([]byte, 0, 1024)
	b = appendU4(b, Magic)
	b = appendU2(b, c.Minor)
	b = appendU2(b, c.Major)
	b = c.Pool.appendTo(b)
	b = appendU2(b, c.Access)
	b = appendU2(b, c.This)
	b = appendU2(b, c.Super)
	b = appendU2(b, uint16(len(c.Interfaces)))
	for _, i := range c.Interfaces {
		b = appendU2(b, i)
	}
	b = appendMembers(b, c.Fields)
	b = appendMembers(b, c.Methods)
	return appendAttributes(b, c.Attributes)
}

func appendMembers(b []byte, ms []Member) []byte {
	b = appendU2(b, uint16(len(ms)))
	for _, m := range ms {
		b = appendU2(b, m.Access)
		b = appendU2(b, m.Name)
		b = appendU2(b, m.Descriptor)
		b = appendAttributes(b, m.Attributes)
	}
	return b
}

func appendAttributes(b []byte, as []Attribute) []byte {
	b = appendU2(b, uint16(len(as)))
	for _, a := range as {
		b = appendU2(b, a.Name)
		b = appendU4(b, uint32(len(a.Data)))
		b = append(b, a.Data...)
	}
	return b
}

// Name returns the internal name of the class.
func (c *Class) Name() string {
	n, _ := c.Pool.ClassName(c.This)
	return n
}

// MemberName returns the name and descriptor of m.
func (c *Class) MemberName(m Member) (name, desc string) {
	name, _ = c.Pool.Utf8(m.Name)
	desc, _ = c.Pool.Utf8(m.Descriptor)
	return name, desc
}

// FindAttribute returns the index of the first attribute in as named name,
// or -1.
func (c *Class) FindAttribute(as []Attribute, name string) int {
	for i, a := range as {
		if n, err := c.Pool.Utf8(a.Name); err == nil && n == name {
			return i
		}
	}
	return -1
}
