package classfile

// Opcodes referenced by name elsewhere in the package.
const (
	OpNop          = 0x00
	OpLdc          = 0x12
	OpLdcW         = 0x13
	OpLdc2W        = 0x14
	OpIinc         = 0x84
	OpIfeq         = 0x99
	OpIfAcmpne     = 0xa6
	OpGoto         = 0xa7
	OpJsr          = 0xa8
	OpRet          = 0xa9
	OpTableswitch  = 0xaa
	OpLookupswitch = 0xab
	OpIreturn      = 0xac
	OpReturn       = 0xb1
	OpGetstatic    = 0xb2
	OpPutstatic    = 0xb3
	OpGetfield     = 0xb4
	OpPutfield     = 0xb5
	OpInvokevirt   = 0xb6
	OpInvokespec   = 0xb7
	OpInvokestatic = 0xb8
	OpInvokeiface  = 0xb9
	OpInvokedyn    = 0xba
	OpAthrow       = 0xbf
	OpWide         = 0xc4
	OpMultianew    = 0xc5
	OpIfnull       = 0xc6
	OpIfnonnull    = 0xc7
	OpGotoW        = 0xc8
	OpJsrW         = 0xc9
)

// opInfo describes one opcode. operands is the fixed operand length in bytes
// (-1 for switches and wide). pop/push are operand stack slots, with -1 when
// the effect depends on a descriptor.
type opInfo struct {
	name     string
	operands int
	pop      int
	push     int
}

var opTable = [...]opInfo{
	{"nop", 0, 0, 0}, {"aconst_null", 0, 0, 1},
	{"iconst_m1", 0, 0, 1}, {"iconst_0", 0, 0, 1}, {"iconst_1", 0, 0, 1}, {"iconst_2", 0, 0, 1},
	{"iconst_3", 0, 0, 1}, {"iconst_4", 0, 0, 1}, {"iconst_5", 0, 0, 1},
	{"lconst_0", 0, 0, 2}, {"lconst_1", 0, 0, 2},
	{"fconst_0", 0, 0, 1}, {"fconst_1", 0, 0, 1}, {"fconst_2", 0, 0, 1},
	{"dconst_0", 0, 0, 2}, {"dconst_1", 0, 0, 2},
	{"bipush", 1, 0, 1}, {"sipush", 2, 0, 1},
	{"ldc", 1, 0, 1}, {"ldc_w", 2, 0, 1}, {"ldc2_w", 2, 0, 2},
	{"iload", 1, 0, 1}, {"lload", 1, 0, 2}, {"fload", 1, 0, 1}, {"dload", 1, 0, 2}, {"aload", 1, 0, 1},
	{"iload_0", 0, 0, 1}, {"iload_1", 0, 0, 1}, {"iload_2", 0, 0, 1}, {"iload_3", 0, 0, 1},
	{"lload_0", 0, 0, 2}, {"lload_1", 0, 0, 2}, {"lload_2", 0, 0, 2}, {"lload_3", 0, 0, 2},
	{"fload_0", 0, 0, 1}, {"fload_1", 0, 0, 1}, {"fload_2", 0, 0, 1}, {"fload_3", 0, 0, 1},
	{"dload_0", 0, 0, 2}, {"dload_1", 0, 0, 2}, {"dload_2", 0, 0, 2}, {"dload_3", 0, 0, 2},
	{"aload_0", 0, 0, 1}, {"aload_1", 0, 0, 1}, {"aload_2", 0, 0, 1}, {"aload_3", 0, 0, 1},
	{"iaload", 0, 2, 1}, {"laload", 0, 2, 2}, {"faload", 0, 2, 1}, {"daload", 0, 2, 2},
	{"aaload", 0, 2, 1}, {"baload", 0, 2, 1}, {"caload", 0, 2, 1}, {"saload", 0, 2, 1},
	{"istore", 1, 1, 0}, {"lstore", 1, 2, 0}, {"fstore", 1, 1, 0}, {"dstore", 1, 2, 0}, {"astore", 1, 1, 0},
	{"istore_0", 0, 1, 0}, {"istore_1", 0, 1, 0}, {"istore_2", 0, 1, 0}, {"istore_3", 0, 1, 0},
	{"lstore_0", 0, 2, 0}, {"lstore_1", 0, 2, 0}, {"lstore_2", 0, 2, 0}, {"lstore_3", 0, 2, 0},
	{"fstore_0", 0, 1, 0}, {"fstore_1", 0, 1, 0}, {"fstore_2", 0, 1, 0}, {"fstore_3", 0, 1, 0},
	{"dstore_0", 0, 2, 0}, {"dstore_1", 0, 2, 0}, {"dstore_2", 0, 2, 0}, {"dstore_3", 0, 2, 0},
	{"astore_0", 0, 1, 0}, {"astore_1", 0, 1, 0}, {"astore_2", 0, 1, 0}, {"astore_3", 0, 1, 0},
	{"iastore", 0, 3, 0}, {"lastore", 0, 4, 0}, {"fastore", 0, 3, 0}, {"dastore", 0, 4, 0},
	{"aastore", 0, 3, 0}, {"bastore", 0, 3, 0}, {"castore", 0, 3, 0}, {"sastore", 0, 3, 0},
	{"pop", 0, 1, 0}, {"pop2", 0, 2, 0},
	{"dup", 0, 1, 2}, {"dup_x1", 0, 2, 3}, {"dup_x2", 0, 3, 4},
	{"dup2", 0, 2, 4}, {"dup2_x1", 0, 3, 5}, {"dup2_x2", 0, 4, 6},
	{"swap", 0, 2, 2},
	{"iadd", 0, 2, 1}, {"ladd", 0, 4, 2}, {"fadd", 0, 2, 1}, {"dadd", 0, 4, 2},
	{"isub", 0, 2, 1}, {"lsub", 0, 4, 2}, {"fsub", 0, 2, 1}, {"dsub", 0, 4, 2},
	{"imul", 0, 2, 1}, {"lmul", 0, 4, 2}, {"fmul", 0, 2, 1}, {"dmul", 0, 4, 2},
	{"idiv", 0, 2, 1}, {"ldiv", 0, 4, 2}, {"fdiv", 0, 2, 1}, {"ddiv", 0, 4, 2},
	{"irem", 0, 2, 1}, {"lrem", 0, 4, 2}, {"frem", 0, 2, 1}, {"drem", 0, 4, 2},
	{"ineg", 0, 1, 1}, {"lneg", 0, 2, 2}, {"fneg", 0, 1, 1}, {"dneg", 0, 2, 2},
	{"ishl", 0, 2, 1}, {"lshl", 0, 3, 2}, {"ishr", 0, 2, 1}, {"lshr", 0, 3, 2},
	{"iushr", 0, 2, 1}, {"lushr", 0, 3, 2},
	{"iand", 0, 2, 1}, {"land", 0, 4, 2}, {"ior", 0, 2, 1}, {"lor", 0, 4, 2},
	{"ixor", 0, 2, 1}, {"lxor", 0, 4, 2},
	{"iinc", 2, 0, 0},
	{"i2l", 0, 1, 2}, {"i2f", 0, 1, 1}, {"i2d", 0, 1, 2},
	{"l2i", 0, 2, 1}, {"l2f", 0, 2, 1}, {"l2d", 0, 2, 2},
	{"f2i", 0, 1, 1}, {"f2l", 0, 1, 2}, {"f2d", 0, 1, 2},
	{"d2i", 0, 2, 1}, {"d2l", 0, 2, 2}, {"d2f", 0, 2, 1},
	{"i2b", 0, 1, 1}, {"i2c", 0, 1, 1}, {"i2s", 0, 1, 1},
	{"lcmp", 0, 4, 1}, {"fcmpl", 0, 2, 1}, {"fcmpg", 0, 2, 1}, {"dcmpl", 0, 4, 1}, {"dcmpg", 0, 4, 1},
	{"ifeq", 2, 1, 0}, {"ifne", 2, 1, 0}, {"iflt", 2, 1, 0}, {"ifge", 2, 1, 0}, {"ifgt", 2, 1, 0}, {"ifle", 2, 1, 0},
	{"if_icmpeq", 2, 2, 0}, {"if_icmpne", 2, 2, 0}, {"if_icmplt", 2, 2, 0},
	{"if_icmpge", 2, 2, 0}, {"if_icmpgt", 2, 2, 0}, {"if_icmple", 2, 2, 0},
	{"if_acmpeq", 2, 2, 0}, {"if_acmpne", 2, 2, 0},
	{"goto", 2, 0, 0}, {"jsr", 2, 0, 1}, {"ret", 1, 0, 0},
	{"tableswitch", -1, 1, 0}, {"lookupswitch", -1, 1, 0},
	{"ireturn", 0, 1, 0}, {"lreturn", 0, 2, 0}, {"freturn", 0, 1, 0},
	{"dreturn", 0, 2, 0}, {"areturn", 0, 1, 0}, {"return", 0, 0, 0},
	{"getstatic", 2, -1, -1}, {"putstatic", 2, -1, -1}, {"getfield", 2, -1, -1}, {"putfield", 2, -1, -1},
	{"invokevirtual", 2, -1, -1}, {"invokespecial", 2, -1, -1}, {"invokestatic", 2, -1, -1},
	{"invokeinterface", 4, -1, -1}, {"invokedynamic", 4, -1, -1},
	{"new", 2, 0, 1}, {"newarray", 1, 1, 1}, {"anewarray", 2, 1, 1}, {"arraylength", 0, 1, 1},
	{"athrow", 0, 1, 0}, {"checkcast", 2, 1, 1}, {"instanceof", 2, 1, 1},
	{"monitorenter", 0, 1, 0}, {"monitorexit", 0, 1, 0},
	{"wide", -1, 0, 0}, {"multianewarray", 3, -1, 1},
	{"ifnull", 2, 1, 0}, {"ifnonnull", 2, 1, 0},
	{"goto_w", 4, 0, 0}, {"jsr_w", 4, 0, 1},
}

func lookupOp(op byte) (opInfo, bool) {
	if int(op) >= len(opTable) {
		return opInfo{}, false
	}
	return opTable[op], true
}

// OpName returns the mnemonic for op, or "op_0xNN" for undefined opcodes.
func OpName(op byte) string {
	if info, ok := lookupOp(op); ok {
		return info.name
	}
	const hex = "0123456789abcdef"
	return "op_0x" + string([]byte{hex[op>>4], hex[op&0xF]})
}

// isBranch16 reports whether op carries a signed 16-bit branch offset.
func isBranch16(op byte) bool {
	return (op >= OpIfeq && op <= OpJsr) || op == OpIfnull || op == OpIfnonnull
}

// isBranch32 reports whether op carries a signed 32-bit branch offset.
func isBranch32(op byte) bool { return op == OpGotoW || op == OpJsrW }

// endsBlock reports whether control never falls through op to the next
// instruction.
func endsBlock(op byte) bool {
	switch {
	case op >= OpIreturn && op <= OpReturn:
		return true
	case op == OpGoto, op == OpGotoW, op == OpRet, op == OpAthrow,
		op == OpTableswitch, op == OpLookupswitch:
		return true
	}
	return false
}
