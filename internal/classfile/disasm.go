package classfile

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Disassemble renders a plain listing of every method body in c. Constant
// pool operands are shown resolved so listings of two versions of a class can
// be diffed even when pool indices moved.
func Disassemble(c *Class) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "class %s (version %d.%d)\n", c.Name(), c.Major, c.Minor)
	for _, m := range c.Methods {
		name, desc := c.MemberName(m)
		fmt.Fprintf(&b, "\nmethod %s%s\n", name, desc)
		i := c.FindAttribute(m.Attributes, "Code")
		if i < 0 {
			b.WriteString("  (no code)\n")
			continue
		}
		code, err := ParseCode(m.Attributes[i].Data)
		if err != nil {
			return "", fmt.Errorf("%s%s: %w", name, desc, err)
		}
		fmt.Fprintf(&b, "  stack=%d locals=%d\n", code.MaxStack, code.MaxLocals)
		insns, err := Decode(code.Code)
		if err != nil {
			return "", fmt.Errorf("%s%s: %w", name, desc, err)
		}
		for _, in := range insns {
			fmt.Fprintf(&b, "  %5d: %s\n", in.Offset, strings.TrimRight(formatInsn(c.Pool, in), " "))
		}
		for _, h := range code.Handlers {
			catch := "any"
			if h.CatchType != 0 {
				catch, _ = c.Pool.ClassName(h.CatchType)
			}
			fmt.Fprintf(&b, "  try [%d,%d) -> %d %s\n", h.Start, h.End, h.PC, catch)
		}
	}
	return b.String(), nil
}

func formatInsn(pool *ConstantPool, in Instruction) string {
	name := OpName(in.Op)
	if in.Wide {
		name = "wide " + name
	}
	switch {
	case in.Op == OpTableswitch:
		parts := make([]string, 0, len(in.Targets))
		for i, t := range in.Targets[1:] {
			parts = append(parts, fmt.Sprintf("%d:%d", int(in.Low)+i, t))
		}
		return fmt.Sprintf("%s {%s default:%d}", name, strings.Join(parts, " "), in.Targets[0])
	case in.Op == OpLookupswitch:
		parts := make([]string, 0, len(in.Keys))
		for i, k := range in.Keys {
			parts = append(parts, fmt.Sprintf("%d:%d", k, in.Targets[i+1]))
		}
		return fmt.Sprintf("%s {%s default:%d}", name, strings.Join(parts, " "), in.Targets[0])
	case len(in.Targets) == 1:
		return fmt.Sprintf("%s %d", name, in.Targets[0])
	}
	switch in.Op {
	case OpLdc:
		return name + " " + describeConstant(pool, uint16(in.Operands[0]))
	case OpLdcW, OpLdc2W, 0xbb, 0xbd, 0xc0, 0xc1, // new anewarray checkcast instanceof
		OpGetstatic, OpPutstatic, OpGetfield, OpPutfield,
		OpInvokevirt, OpInvokespec, OpInvokestatic, OpInvokeiface, OpInvokedyn, OpMultianew:
		return name + " " + describeConstant(pool, in.U2())
	case 0x10: // bipush
		return fmt.Sprintf("%s %d", name, int8(in.Operands[0]))
	case 0x11: // sipush
		return fmt.Sprintf("%s %d", name, int16(in.U2()))
	case OpIinc:
		if in.Wide {
			return fmt.Sprintf("%s %d %d", name, in.U2(), int16(binary.BigEndian.Uint16(in.Operands[2:])))
		}
		return fmt.Sprintf("%s %d %d", name, in.Operands[0], int8(in.Operands[1]))
	}
	switch len(in.Operands) {
	case 1:
		return fmt.Sprintf("%s %d", name, in.Operands[0])
	case 2:
		return fmt.Sprintf("%s %d", name, in.U2())
	}
	return name
}

func describeConstant(pool *ConstantPool, i uint16) string {
	c, err := pool.At(i)
	if err != nil {
		return fmt.Sprintf("#%d", i)
	}
	switch c.Tag {
	case TagClass:
		n, _ := pool.ClassName(i)
		return "class " + n
	case TagString:
		s, _ := pool.Utf8(u2at(c.Raw, 0))
		return fmt.Sprintf("%q", s)
	case TagInteger:
		return fmt.Sprintf("int %d", int32(binary.BigEndian.Uint32(c.Raw)))
	case TagLong:
		return fmt.Sprintf("long %d", int64(binary.BigEndian.Uint64(c.Raw)))
	case TagFieldref, TagMethodref, TagInterfaceMethodref:
		owner, name, desc, _ := pool.MemberRef(i)
		return owner + "." + name + ":" + desc
	case TagDynamic, TagInvokeDynamic:
		_, name, desc, _ := pool.MemberRef(i)
		return "dynamic " + name + ":" + desc
	}
	return fmt.Sprintf("#%d", i)
}
