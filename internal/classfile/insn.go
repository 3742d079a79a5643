package classfile

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Instruction is one decoded instruction of a method body.
//
// Branch-carrying instructions expose absolute targets (old offsets) in
// Targets; for switches the default target comes first, followed by one target
// per case in encoding order. Operands holds every other operand byte verbatim
// (for wide instructions, the bytes after the widened opcode).
type Instruction struct {
	Offset   int
	Length   int
	Op       byte
	Wide     bool
	Operands []byte
	Targets  []int
	Low      int32   // tableswitch low bound
	Keys     []int32 // lookupswitch match keys
}

// U2 returns the first two operand bytes as an unsigned index.
func (in Instruction) U2() uint16 {
	if len(in.Operands) < 2 {
		return 0
	}
	return binary.BigEndian.Uint16(in.Operands)
}

func switchPad(pos int) int { return 3 - pos%4 }

// Decode splits code into instructions and validates every branch target
// against the instruction boundaries.
func Decode(code []byte) ([]Instruction, error) {
	var out []Instruction
	for off := 0; off < len(code); {
		in, err := decodeAt(code, off)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
		off += in.Length
	}
	starts := make(map[int]bool, len(out))
	for _, in := range out {
		starts[in.Offset] = true
	}
	for _, in := range out {
		for _, t := range in.Targets {
			if !starts[t] {
				return nil, fmt.Errorf("%w: %s at %d branches to %d, not an instruction start",
					ErrMalformed, OpName(in.Op), in.Offset, t)
			}
		}
	}
	return out, nil
}

func decodeAt(code []byte, off int) (Instruction, error) {
	op := code[off]
	info, ok := lookupOp(op)
	if !ok {
		return Instruction{}, fmt.Errorf("%w: undefined opcode 0x%02x at %d", ErrMalformed, op, off)
	}
	in := Instruction{Offset: off, Op: op}
	r := &reader{b: code, off: off + 1}
	switch {
	case op == OpWide:
		in.Wide = true
		in.Op = r.u1()
		switch {
		case in.Op == OpIinc:
			in.Operands = r.bytes(4)
		case (in.Op >= 0x15 && in.Op <= 0x19) || (in.Op >= 0x36 && in.Op <= 0x3a) || in.Op == OpRet:
			in.Operands = r.bytes(2)
		default:
			if r.err == nil {
				return Instruction{}, fmt.Errorf("%w: wide %s at %d", ErrMalformed, OpName(in.Op), off)
			}
		}
	case op == OpTableswitch:
		r.bytes(switchPad(off))
		def := int32(r.u4())
		lo, hi := int32(r.u4()), int32(r.u4())
		if r.err == nil && (hi < lo || int64(hi)-int64(lo) >= int64(len(code))) {
			return Instruction{}, fmt.Errorf("%w: tableswitch at %d has bounds %d..%d", ErrMalformed, off, lo, hi)
		}
		in.Low = lo
		in.Targets = append(in.Targets, off+int(def))
		for i := int64(lo); i <= int64(hi) && r.err == nil; i++ {
			in.Targets = append(in.Targets, off+int(int32(r.u4())))
		}
	case op == OpLookupswitch:
		r.bytes(switchPad(off))
		def := int32(r.u4())
		n := int32(r.u4())
		if r.err == nil && (n < 0 || int(n) > len(code)) {
			return Instruction{}, fmt.Errorf("%w: lookupswitch at %d has %d pairs", ErrMalformed, off, n)
		}
		in.Targets = append(in.Targets, off+int(def))
		for i := int32(0); i < n && r.err == nil; i++ {
			in.Keys = append(in.Keys, int32(r.u4()))
			in.Targets = append(in.Targets, off+int(int32(r.u4())))
		}
	case isBranch16(op):
		d := int16(r.u2())
		in.Targets = []int{off + int(d)}
	case isBranch32(op):
		d := int32(r.u4())
		in.Targets = []int{off + int(d)}
	default:
		in.Operands = r.bytes(info.operands)
	}
	if r.err != nil {
		return Instruction{}, fmt.Errorf("%w: %s at %d: %w", ErrMalformed, OpName(op), off, r.err)
	}
	in.Length = r.off - off
	return in, nil
}

// sizeAt returns the encoded length of in when placed at pos.
func (in Instruction) sizeAt(pos int) int {
	switch {
	case in.Wide:
		return 2 + len(in.Operands)
	case in.Op == OpTableswitch:
		return 1 + switchPad(pos) + 12 + 4*(len(in.Targets)-1)
	case in.Op == OpLookupswitch:
		return 1 + switchPad(pos) + 8 + 8*(len(in.Keys))
	case isBranch16(in.Op):
		return 3
	case isBranch32(in.Op):
		return 5
	default:
		return 1 + len(in.Operands)
	}
}

// encodeAt appends in, placed at pos, to b. reloc maps old targets to new
// offsets.
func (in Instruction) encodeAt(b []byte, pos int, reloc func(int) (int, error)) ([]byte, error) {
	rel := func(old int) (int, error) {
		n, err := reloc(old)
		if err != nil {
			return 0, err
		}
		return n - pos, nil
	}
	switch {
	case in.Wide:
		b = append(b, OpWide, in.Op)
		return append(b, in.Operands...), nil
	case in.Op == OpTableswitch || in.Op == OpLookupswitch:
		b = append(b, in.Op)
		for i := 0; i < switchPad(pos); i++ {
			b = append(b, 0)
		}
		d, err := rel(in.Targets[0])
		if err != nil {
			return nil, err
		}
		b = appendU4(b, uint32(int32(d)))
		if in.Op == OpTableswitch {
			b = appendU4(b, uint32(in.Low))
			b = appendU4(b, uint32(in.Low+int32(len(in.Targets)-2)))
			for _, t := range in.Targets[1:] {
				if d, err = rel(t); err != nil {
					return nil, err
				}
				b = appendU4(b, uint32(int32(d)))
			}
			return b, nil
		}
		b = appendU4(b, uint32(len(in.Keys)))
		for i, k := range in.Keys {
			if d, err = rel(in.Targets[i+1]); err != nil {
				return nil, err
			}
			b = appendU4(b, uint32(k))
			b = appendU4(b, uint32(int32(d)))
		}
		return b, nil
	case isBranch16(in.Op):
		d, err := rel(in.Targets[0])
		if err != nil {
			return nil, err
		}
		if d < math.MinInt16 || d > math.MaxInt16 {
			return nil, fmt.Errorf("%w: %s at %d needs displacement %d", ErrCodeTooLarge, OpName(in.Op), pos, d)
		}
		b = append(b, in.Op)
		return appendU2(b, uint16(int16(d))), nil
	case isBranch32(in.Op):
		d, err := rel(in.Targets[0])
		if err != nil {
			return nil, err
		}
		b = append(b, in.Op)
		return appendU4(b, uint32(int32(d))), nil
	default:
		b = append(b, in.Op)
		return append(b, in.Operands...), nil
	}
}
