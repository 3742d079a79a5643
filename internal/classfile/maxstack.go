package classfile

import (
	"fmt"
	"strings"
)

// MaxStack computes the deepest operand stack reached by code, counting long
// and double values as two slots. Exception handlers are entered with one
// slot (the thrown reference). Unreachable instructions are ignored.
func MaxStack(code []byte, handlers []Handler, pool *ConstantPool) (int, error) {
	insns, err := Decode(code)
	if err != nil {
		return 0, err
	}
	index := make(map[int]int, len(insns))
	for i, in := range insns {
		index[in.Offset] = i
	}
	depth := make([]int, len(insns))
	for i := range depth {
		depth[i] = -1
	}
	var work []int
	visit := func(off, d int) error {
		i, ok := index[off]
		if !ok {
			return fmt.Errorf("%w: flow reaches offset %d", ErrMalformed, off)
		}
		if depth[i] >= d {
			return nil
		}
		if d > 0xFFFF {
			return fmt.Errorf("%w: operand stack grows without bound at %d", ErrMalformed, off)
		}
		depth[i] = d
		work = append(work, i)
		return nil
	}
	if err := visit(0, 0); err != nil {
		return 0, err
	}
	for _, h := range handlers {
		if err := visit(int(h.PC), 1); err != nil {
			return 0, err
		}
	}
	deepest := 0
	if len(handlers) > 0 {
		deepest = 1
	}
	for len(work) > 0 {
		i := work[len(work)-1]
		work = work[:len(work)-1]
		in := insns[i]
		pop, push, err := stackEffect(in, pool)
		if err != nil {
			return 0, err
		}
		d := depth[i] - pop
		if d < 0 {
			d = 0
		}
		d += push
		if d > deepest {
			deepest = d
		}
		for _, t := range in.Targets {
			if err := visit(t, d); err != nil {
				return 0, err
			}
		}
		// jsr pushes the return address only on the subroutine path.
		if in.Op == OpJsr || in.Op == OpJsrW {
			d -= push
		}
		if !endsBlock(in.Op) && i+1 < len(insns) {
			if err := visit(insns[i+1].Offset, d); err != nil {
				return 0, err
			}
		}
	}
	return deepest, nil
}

func stackEffect(in Instruction, pool *ConstantPool) (pop, push int, err error) {
	info, _ := lookupOp(in.Op)
	if in.Wide {
		return info.pop, info.push, nil
	}
	switch in.Op {
	case OpGetstatic, OpPutstatic, OpGetfield, OpPutfield:
		_, _, desc, err := pool.MemberRef(in.U2())
		if err != nil {
			return 0, 0, err
		}
		s := typeSlots(desc)
		switch in.Op {
		case OpGetstatic:
			return 0, s, nil
		case OpPutstatic:
			return s, 0, nil
		case OpGetfield:
			return 1, s, nil
		default:
			return 1 + s, 0, nil
		}
	case OpInvokevirt, OpInvokespec, OpInvokestatic, OpInvokeiface, OpInvokedyn:
		_, _, desc, err := pool.MemberRef(in.U2())
		if err != nil {
			return 0, 0, err
		}
		args, ret, err := methodSlots(desc)
		if err != nil {
			return 0, 0, err
		}
		if in.Op != OpInvokestatic && in.Op != OpInvokedyn {
			args++
		}
		return args, ret, nil
	case OpMultianew:
		return int(in.Operands[2]), 1, nil
	}
	return info.pop, info.push, nil
}

func typeSlots(desc string) int {
	switch {
	case desc == "V":
		return 0
	case desc == "J", desc == "D":
		return 2
	default:
		return 1
	}
}

// methodSlots returns the argument and return slot counts of a method
// descriptor such as "(IJLjava/lang/String;)V".
func methodSlots(desc string) (args, ret int, err error) {
	if !strings.HasPrefix(desc, "(") {
		return 0, 0, fmt.Errorf("%w: method descriptor %q", ErrMalformed, desc)
	}
	i := 1
	for i < len(desc) && desc[i] != ')' {
		n, err := fieldTypeLen(desc, i)
		if err != nil {
			return 0, 0, err
		}
		args += typeSlots(desc[i : i+n])
		i += n
	}
	if i >= len(desc) {
		return 0, 0, fmt.Errorf("%w: method descriptor %q", ErrMalformed, desc)
	}
	return args, typeSlots(desc[i+1:]), nil
}

// fieldTypeLen returns the length of the field type starting at desc[i].
func fieldTypeLen(desc string, i int) (int, error) {
	start := i
	for i < len(desc) && desc[i] == '[' {
		i++
	}
	if i >= len(desc) {
		return 0, fmt.Errorf("%w: descriptor %q", ErrMalformed, desc)
	}
	switch desc[i] {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		return i + 1 - start, nil
	case 'L':
		end := strings.IndexByte(desc[i:], ';')
		if end < 0 {
			return 0, fmt.Errorf("%w: descriptor %q", ErrMalformed, desc)
		}
		return i + end + 1 - start, nil
	}
	return 0, fmt.Errorf("%w: descriptor %q", ErrMalformed, desc)
}
