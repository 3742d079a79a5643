package classfile

import (
	"encoding/binary"
	"fmt"
)

// Constant pool tags (JVMS §4.4).
const (
	TagUtf8               uint8 = 1
	TagInteger            uint8 = 3
	TagFloat              uint8 = 4
	TagLong               uint8 = 5
	TagDouble             uint8 = 6
	TagClass              uint8 = 7
	TagString             uint8 = 8
	TagFieldref           uint8 = 9
	TagMethodref          uint8 = 10
	TagInterfaceMethodref uint8 = 11
	TagNameAndType        uint8 = 12
	TagMethodHandle       uint8 = 15
	TagMethodType         uint8 = 16
	TagDynamic            uint8 = 17
	TagInvokeDynamic      uint8 = 18
	TagModule             uint8 = 19
	TagPackage            uint8 = 20
)

// Constant is one constant pool slot. Raw holds the payload that follows the
// tag byte exactly as stored. The unusable slot after a Long or Double has
// Tag 0 and no payload.
type Constant struct {
	Tag uint8
	Raw []byte
}

// ConstantPool is an indexable constant pool. Index 0 is never valid.
type ConstantPool struct {
	entries []Constant
}

// payloadSize returns the fixed payload length for a tag, or -1 for Utf8
// (length-prefixed) and -2 for an unknown tag.
func payloadSize(tag uint8) int {
	switch tag {
	case TagUtf8:
		return -1
	case TagInteger, TagFloat:
		return 4
	case TagLong, TagDouble:
		return 8
	case TagClass, TagString, TagMethodType, TagModule, TagPackage:
		return 2
	case TagFieldref, TagMethodref, TagInterfaceMethodref, TagNameAndType, TagDynamic, TagInvokeDynamic:
		return 4
	case TagMethodHandle:
		return 3
	default:
		return -2
	}
}

func parsePool(r *reader) (*ConstantPool, error) {
	count := int(r.u2())
	if r.err != nil {
		return nil, r.err
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: constant pool count is zero", ErrMalformed)
	}
	p := &ConstantPool{entries: make([]Constant, count)}
	for i := 1; i < count; i++ {
		tag := r.u1()
		var raw []byte
		switch n := payloadSize(tag); n {
		case -1:
			l := int(r.u2())
			r.off -= 2
			raw = r.bytes(2 + l)
		case -2:
			if r.err == nil {
				return nil, fmt.Errorf("%w: unknown constant tag %d at index %d", ErrMalformed, tag, i)
			}
		default:
			raw = r.bytes(n)
		}
		if r.err != nil {
			return nil, fmt.Errorf("constant %d: %w", i, r.err)
		}
		p.entries[i] = Constant{Tag: tag, Raw: raw}
		if tag == TagLong || tag == TagDouble {
			i++
			if i >= count {
				return nil, fmt.Errorf("%w: wide constant at last index %d", ErrMalformed, i-1)
			}
		}
	}
	return p, nil
}

func (p *ConstantPool) appendTo(b []byte) []byte {
	b = appendU2(b, uint16(len(p.entries)))
	for i := 1; i < len(p.entries); i++ {
		c := p.entries[i]
		if c.Tag == 0 {
			continue
		}
		b = appendU1(b, c.Tag)
		b = append(b, c.Raw...)
	}
	return b
}

// Len returns the constant_pool_count value (one more than the highest index).
func (p *ConstantPool) Len() int { return len(p.entries) }

// At returns the constant at index i.
func (p *ConstantPool) At(i uint16) (Constant, error) {
	if i == 0 || int(i) >= len(p.entries) || p.entries[i].Tag == 0 {
		return Constant{}, fmt.Errorf("%w: bad constant pool index %d", ErrMalformed, i)
	}
	return p.entries[i], nil
}

func (p *ConstantPool) tagged(i uint16, tag uint8) (Constant, error) {
	c, err := p.At(i)
	if err != nil {
		return Constant{}, err
	}
	if c.Tag != tag {
		return Constant{}, fmt.Errorf("%w: constant %d has tag %d, want %d", ErrMalformed, i, c.Tag, tag)
	}
	return c, nil
}

func u2at(b []byte, off int) uint16 { return binary.BigEndian.Uint16(b[off:]) }

// Utf8 returns the string held by a CONSTANT_Utf8 entry. Modified UTF-8 is
// returned as-is; every name this package compares against is ASCII.
func (p *ConstantPool) Utf8(i uint16) (string, error) {
	c, err := p.tagged(i, TagUtf8)
	if err != nil {
		return "", err
	}
	return string(c.Raw[2:]), nil
}

// ClassName returns the internal name referenced by a CONSTANT_Class entry.
func (p *ConstantPool) ClassName(i uint16) (string, error) {
	c, err := p.tagged(i, TagClass)
	if err != nil {
		return "", err
	}
	return p.Utf8(u2at(c.Raw, 0))
}

// NameAndType resolves a CONSTANT_NameAndType entry.
func (p *ConstantPool) NameAndType(i uint16) (name, desc string, err error) {
	c, err := p.tagged(i, TagNameAndType)
	if err != nil {
		return "", "", err
	}
	if name, err = p.Utf8(u2at(c.Raw, 0)); err != nil {
		return "", "", err
	}
	desc, err = p.Utf8(u2at(c.Raw, 2))
	return name, desc, err
}

// MemberRef resolves a field, method or interface method reference, or the
// name-and-type half of a Dynamic/InvokeDynamic entry (owner is empty then).
func (p *ConstantPool) MemberRef(i uint16) (owner, name, desc string, err error) {
	c, err := p.At(i)
	if err != nil {
		return "", "", "", err
	}
	switch c.Tag {
	case TagFieldref, TagMethodref, TagInterfaceMethodref:
		if owner, err = p.ClassName(u2at(c.Raw, 0)); err != nil {
			return "", "", "", err
		}
	case TagDynamic, TagInvokeDynamic:
	default:
		return "", "", "", fmt.Errorf("%w: constant %d (tag %d) is not a member reference", ErrMalformed, i, c.Tag)
	}
	name, desc, err = p.NameAndType(u2at(c.Raw, 2))
	return owner, name, desc, err
}

func (p *ConstantPool) add(c Constant) (uint16, error) {
	if len(p.entries) >= 0xFFFF {
		return 0, ErrPoolOverflow
	}
	p.entries = append(p.entries, c)
	return uint16(len(p.entries) - 1), nil
}

// AddUtf8 returns the index of a CONSTANT_Utf8 entry for s, appending one
// when none exists.
func (p *ConstantPool) AddUtf8(s string) (uint16, error) {
	for i := 1; i < len(p.entries); i++ {
		c := p.entries[i]
		if c.Tag == TagUtf8 && string(c.Raw[2:]) == s {
			return uint16(i), nil
		}
	}
	if len(s) > 0xFFFF {
		return 0, fmt.Errorf("%w: utf8 constant of %d bytes", ErrMalformed, len(s))
	}
	raw := appendU2(make([]byte, 0, 2+len(s)), uint16(len(s)))
	return p.add(Constant{Tag: TagUtf8, Raw: append(raw, s...)})
}

// AddClass returns the index of a CONSTANT_Class entry naming internalName,
// appending the class (and its name) when absent.
func (p *ConstantPool) AddClass(internalName string) (uint16, error) {
	for i := 1; i < len(p.entries); i++ {
		c := p.entries[i]
		if c.Tag != TagClass {
			continue
		}
		if n, err := p.Utf8(u2at(c.Raw, 0)); err == nil && n == internalName {
			return uint16(i), nil
		}
	}
	name, err := p.AddUtf8(internalName)
	if err != nil {
		return 0, err
	}
	return p.add(Constant{Tag: TagClass, Raw: appendU2(nil, name)})
}

// AddNameAndType appends a CONSTANT_NameAndType entry.
func (p *ConstantPool) AddNameAndType(name, desc string) (uint16, error) {
	n, err := p.AddUtf8(name)
	if err != nil {
		return 0, err
	}
	d, err := p.AddUtf8(desc)
	if err != nil {
		return 0, err
	}
	return p.add(Constant{Tag: TagNameAndType, Raw: appendU2(appendU2(nil, n), d)})
}

// AddMemberRef appends a field, method or interface method reference.
func (p *ConstantPool) AddMemberRef(tag uint8, owner, name, desc string) (uint16, error) {
	switch tag {
	case TagFieldref, TagMethodref, TagInterfaceMethodref:
	default:
		return 0, fmt.Errorf("%w: tag %d is not a member reference", ErrMalformed, tag)
	}
	cls, err := p.AddClass(owner)
	if err != nil {
		return 0, err
	}
	nat, err := p.AddNameAndType(name, desc)
	if err != nil {
		return 0, err
	}
	return p.add(Constant{Tag: tag, Raw: appendU2(appendU2(nil, cls), nat)})
}

// NewConstantPool returns an empty pool ready for Add* calls.
func NewConstantPool() *ConstantPool {
	return &ConstantPool{entries: make([]Constant, 1)}
}
