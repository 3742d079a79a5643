package classfile

import "fmt"

// Verification type tags (JVMS §4.7.4).
const (
	VTop               uint8 = 0
	VInteger           uint8 = 1
	VFloat             uint8 = 2
	VDouble            uint8 = 3
	VLong              uint8 = 4
	VNull              uint8 = 5
	VUninitializedThis uint8 = 6
	VObject            uint8 = 7
	VUninitialized     uint8 = 8
)

// VType is a verification type. Index is a constant pool class index for
// VObject and the offset of the creating `new` for VUninitialized.
type VType struct {
	Tag   uint8
	Index uint16
}

// FrameKind selects the stack map frame encoding family.
type FrameKind uint8

const (
	FrameSame FrameKind = iota
	FrameSameLocals1
	FrameChop
	FrameAppend
	FrameFull
)

// Frame is one StackMapTable entry with its absolute bytecode offset.
// Chop is the number of chopped locals; Locals holds appended locals for
// FrameAppend and every local for FrameFull.
type Frame struct {
	Kind   FrameKind
	Offset int
	Chop   int
	Locals []VType
	Stack  []VType
}

// ParseStackMap decodes a StackMapTable attribute body.
func ParseStackMap(data []byte) ([]Frame, error) {
	r := newReader(data)
	n := int(r.u2())
	frames := make([]Frame, 0, n)
	prev := -1
	for i := 0; i < n && r.err == nil; i++ {
		t := r.u1()
		var f Frame
		var delta int
		switch {
		case t <= 63:
			f.Kind, delta = FrameSame, int(t)
		case t <= 127:
			f.Kind, delta = FrameSameLocals1, int(t-64)
			f.Stack = readVTypes(r, 1)
		case t <= 246:
			if r.err == nil {
				return nil, fmt.Errorf("%w: reserved frame type %d", ErrMalformed, t)
			}
		case t == 247:
			f.Kind, delta = FrameSameLocals1, int(r.u2())
			f.Stack = readVTypes(r, 1)
		case t <= 250:
			f.Kind, delta = FrameChop, int(r.u2())
			f.Chop = int(251 - t)
		case t == 251:
			f.Kind, delta = FrameSame, int(r.u2())
		case t <= 254:
			f.Kind, delta = FrameAppend, int(r.u2())
			f.Locals = readVTypes(r, int(t-251))
		default:
			f.Kind, delta = FrameFull, int(r.u2())
			f.Locals = readVTypes(r, int(r.u2()))
			f.Stack = readVTypes(r, int(r.u2()))
		}
		if prev < 0 {
			f.Offset = delta
		} else {
			f.Offset = prev + delta + 1
		}
		prev = f.Offset
		frames = append(frames, f)
	}
	if r.err != nil {
		return nil, fmt.Errorf("%w: stack map: %w", ErrMalformed, r.err)
	}
	if r.remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes in stack map", ErrMalformed, r.remaining())
	}
	return frames, nil
}

func readVTypes(r *reader, n int) []VType {
	out := make([]VType, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		v := VType{Tag: r.u1()}
		switch v.Tag {
		case VObject, VUninitialized:
			v.Index = r.u2()
		case VTop, VInteger, VFloat, VDouble, VLong, VNull, VUninitializedThis:
		default:
			if r.err == nil {
				r.err = fmt.Errorf("unknown verification type %d", v.Tag)
			}
		}
		out = append(out, v)
	}
	return out
}

// EncodeStackMap encodes frames, picking the most compact form for each
// offset delta. Offsets must be strictly increasing.
func EncodeStackMap(frames []Frame) ([]byte, error) {
	b := appendU2(nil, uint16(len(frames)))
	prev := -1
	for _, f := range frames {
		delta := f.Offset
		if prev >= 0 {
			delta = f.Offset - prev - 1
		}
		if delta < 0 || delta > 0xFFFF {
			return nil, fmt.Errorf("%w: frame at %d after %d", ErrMalformed, f.Offset, prev)
		}
		prev = f.Offset
		switch f.Kind {
		case FrameSame:
			if delta <= 63 {
				b = append(b, byte(delta))
			} else {
				b = appendU2(append(b, 251), uint16(delta))
			}
		case FrameSameLocals1:
			if delta <= 63 {
				b = append(b, byte(64+delta))
			} else {
				b = appendU2(append(b, 247), uint16(delta))
			}
			b = appendVTypes(b, f.Stack)
		case FrameChop:
			b = appendU2(append(b, byte(251-f.Chop)), uint16(delta))
		case FrameAppend:
			b = appendU2(append(b, byte(251+len(f.Locals))), uint16(delta))
			b = appendVTypes(b, f.Locals)
		case FrameFull:
			b = appendU2(append(b, 255), uint16(delta))
			b = appendVTypes(appendU2(b, uint16(len(f.Locals))), f.Locals)
			b = appendVTypes(appendU2(b, uint16(len(f.Stack))), f.Stack)
		}
	}
	return b, nil
}

func appendVTypes(b []byte, vs []VType) []byte {
	for _, v := range vs {
		b = append(b, v.Tag)
		if v.Tag == VObject || v.Tag == VUninitialized {
			b = appendU2(b, v.Index)
		}
	}
	return b
}

// relocateFrames rewrites frame offsets with reloc and Uninitialized(offset)
// types with exact, which must resolve to the `new` instruction itself.
func relocateFrames(frames []Frame, reloc, exact func(int) (int, error)) error {
	fix := func(vs []VType) error {
		for i := range vs {
			if vs[i].Tag != VUninitialized {
				continue
			}
			n, err := exact(int(vs[i].Index))
			if err != nil {
				return err
			}
			vs[i].Index = uint16(n)
		}
		return nil
	}
	for i := range frames {
		n, err := reloc(frames[i].Offset)
		if err != nil {
			return err
		}
		frames[i].Offset = n
		if err := fix(frames[i].Locals); err != nil {
			return err
		}
		if err := fix(frames[i].Stack); err != nil {
			return err
		}
	}
	return nil
}
