package classfile

import "fmt"

// MaxCodeLength is the largest method body the format allows.
const MaxCodeLength = 65535

// Handler is one exception table row. End is exclusive.
type Handler struct {
	Start     uint16
	End       uint16
	PC        uint16
	CatchType uint16
}

// Code is a decoded Code attribute.
type Code struct {
	MaxStack   uint16
	MaxLocals  uint16
	Code       []byte
	Handlers   []Handler
	Attributes []Attribute
}

// ParseCode decodes the body of a Code attribute.
func ParseCode(data []byte) (*Code, error) {
	r := newReader(data)
	c := &Code{MaxStack: r.u2(), MaxLocals: r.u2()}
	n := int(r.u4())
	if r.err == nil && (n == 0 || n > MaxCodeLength) {
		return nil, fmt.Errorf("%w: code length %d", ErrMalformed, n)
	}
	c.Code = r.bytes(n)
	h := int(r.u2())
	for i := 0; i < h && r.err == nil; i++ {
		c.Handlers = append(c.Handlers, Handler{Start: r.u2(), End: r.u2(), PC: r.u2(), CatchType: r.u2()})
	}
	if r.err != nil {
		return nil, fmt.Errorf("%w: code attribute: %w", ErrMalformed, r.err)
	}
	attrs, err := parseAttributes(r)
	if err != nil {
		return nil, fmt.Errorf("%w: code attributes: %w", ErrMalformed, err)
	}
	if r.remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes in code attribute", ErrMalformed, r.remaining())
	}
	c.Attributes = attrs
	for _, hd := range c.Handlers {
		if hd.Start >= hd.End || int(hd.End) > len(c.Code) || int(hd.PC) >= len(c.Code) {
			return nil, fmt.Errorf("%w: exception handler [%d,%d)->%d out of range", ErrMalformed, hd.Start, hd.End, hd.PC)
		}
	}
	return c, nil
}

// Bytes encodes the Code attribute body.
func (c *Code) Bytes() []byte {
	b := make([]byte, 0, 12+len(c.Code)+8*len(c.Handlers))
	b = appendU2(b, c.MaxStack)
	b = appendU2(b, c.MaxLocals)
	b = appendU4(b, uint32(len(c.Code)))
	b = append(b, c.Code...)
	b = appendU2(b, uint16(len(c.Handlers)))
	for _, h := range c.Handlers {
		b = appendU2(b, h.Start)
		b = appendU2(b, h.End)
		b = appendU2(b, h.PC)
		b = appendU2(b, h.CatchType)
	}
	return appendAttributes(b, c.Attributes)
}
