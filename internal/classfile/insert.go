package classfile

import (
	"fmt"
)

// Code sub-attributes whose bodies carry bytecode offsets.
const (
	attrStackMapTable          = "StackMapTable"
	attrLineNumberTable        = "LineNumberTable"
	attrLocalVariableTable     = "LocalVariableTable"
	attrLocalVariableTypeTable = "LocalVariableTypeTable"
	attrVisibleTypeAnnotations = "RuntimeVisibleTypeAnnotations"
	attrHiddenTypeAnnotations  = "RuntimeInvisibleTypeAnnotations"
)

// InsertBefore inserts instruction bytes ahead of existing instructions.
// edits maps an original instruction offset to the bytes placed in front of
// it; the inserted bytes must decode to instructions without branch targets.
//
// Anything that targeted an edited instruction (jumps, handlers, stack map
// frames, line and variable ranges) now targets the first inserted byte, so
// the new code runs on every path that reached the original instruction.
// Switch padding, every relocated structure and max_stack are recomputed.
func (c *Code) InsertBefore(pool *ConstantPool, edits map[int][]byte) error {
	if len(edits) == 0 {
		return nil
	}
	for off, ins := range edits {
		decoded, err := Decode(ins)
		if err != nil {
			return fmt.Errorf("inserted code at %d: %w", off, err)
		}
		for _, in := range decoded {
			if len(in.Targets) > 0 {
				return fmt.Errorf("%w: inserted %s at %d carries a branch", ErrMalformed, OpName(in.Op), off)
			}
		}
	}
	insns, err := Decode(c.Code)
	if err != nil {
		return err
	}

	// Layout pass: switch padding depends on the new position, so sizes are
	// resolved in order.
	boundary := make(map[int]int, len(insns)+1)
	exactPos := make(map[int]int, len(insns))
	pos := 0
	applied := 0
	for _, in := range insns {
		boundary[in.Offset] = pos
		if ins, ok := edits[in.Offset]; ok {
			pos += len(ins)
			applied++
		}
		exactPos[in.Offset] = pos
		pos += in.sizeAt(pos)
	}
	boundary[len(c.Code)] = pos
	if applied != len(edits) {
		return fmt.Errorf("%w: %d edit offsets are not instruction starts", ErrMalformed, len(edits)-applied)
	}
	if pos > MaxCodeLength {
		return fmt.Errorf("%w: %d bytes after insertion", ErrCodeTooLarge, pos)
	}
	reloc := lookupIn(boundary)
	exact := lookupIn(exactPos)

	out := make([]byte, 0, pos)
	for _, in := range insns {
		out = append(out, edits[in.Offset]...)
		if out, err = in.encodeAt(out, exactPos[in.Offset], reloc); err != nil {
			return err
		}
	}
	if len(out) != pos {
		return fmt.Errorf("%w: encoded %d bytes, laid out %d", ErrMalformed, len(out), pos)
	}

	handlers := make([]Handler, len(c.Handlers))
	for i, h := range c.Handlers {
		start, err1 := reloc(int(h.Start))
		end, err2 := reloc(int(h.End))
		pc, err3 := reloc(int(h.PC))
		if err := firstErr(err1, err2, err3); err != nil {
			return fmt.Errorf("exception handler %d: %w", i, err)
		}
		handlers[i] = Handler{Start: uint16(start), End: uint16(end), PC: uint16(pc), CatchType: h.CatchType}
	}

	attrs := make([]Attribute, 0, len(c.Attributes))
	for _, a := range c.Attributes {
		name, err := pool.Utf8(a.Name)
		if err != nil {
			return fmt.Errorf("code attribute name: %w", err)
		}
		var data []byte
		switch name {
		case attrStackMapTable:
			frames, err := ParseStackMap(a.Data)
			if err != nil {
				return err
			}
			if err := relocateFrames(frames, reloc, exact); err != nil {
				return err
			}
			if data, err = EncodeStackMap(frames); err != nil {
				return err
			}
		case attrLineNumberTable:
			data, err = relocateTable(a.Data, 4, reloc, false)
		case attrLocalVariableTable, attrLocalVariableTypeTable:
			data, err = relocateTable(a.Data, 10, reloc, true)
		case attrVisibleTypeAnnotations, attrHiddenTypeAnnotations:
			continue
		default:
			data = a.Data
		}
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		attrs = append(attrs, Attribute{Name: a.Name, Data: data})
	}

	depth, err := MaxStack(out, handlers, pool)
	if err != nil {
		return err
	}
	if depth > 0xFFFF {
		return fmt.Errorf("%w: operand stack depth %d", ErrCodeTooLarge, depth)
	}
	if uint16(depth) > c.MaxStack {
		c.MaxStack = uint16(depth)
	}
	c.Code = out
	c.Handlers = handlers
	c.Attributes = attrs
	return nil
}

func lookupIn(m map[int]int) func(int) (int, error) {
	return func(old int) (int, error) {
		n, ok := m[old]
		if !ok {
			return 0, fmt.Errorf("%w: offset %d is not an instruction boundary", ErrMalformed, old)
		}
		return n, nil
	}
}

// relocateTable rewrites a u2-counted table whose rows start with a u2
// start_pc. With ranged set, the following u2 is a length that is relocated
// through its end offset.
func relocateTable(data []byte, rowSize int, reloc func(int) (int, error), ranged bool) ([]byte, error) {
	r := newReader(data)
	n := int(r.u2())
	out := appendU2(make([]byte, 0, len(data)), uint16(n))
	for i := 0; i < n; i++ {
		row := r.bytes(rowSize)
		if r.err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, r.err)
		}
		start := int(u2at(row, 0))
		ns, err := reloc(start)
		if err != nil {
			return nil, err
		}
		out = appendU2(out, uint16(ns))
		rest := row[2:]
		if ranged {
			ne, err := reloc(start + int(u2at(row, 2)))
			if err != nil {
				return nil, err
			}
			out = appendU2(out, uint16(ne-ns))
			rest = row[4:]
		}
		out = append(out, rest...)
	}
	if r.remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformed, r.remaining())
	}
	return out, nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
