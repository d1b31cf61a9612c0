package realmode

const (
	OP_PUSHF = 0x9c
	OP_POPF  = 0x9d
	OP_NOP   = 0x90
	OP_MOV   = 0xb8 // +r, imm16
	OP_INT3  = 0xcc
	OP_INT   = 0xcd
	OP_IRET  = 0xcf
	OP_JMPF  = 0xea
	OP_JMPS  = 0xeb
	OP_HLT   = 0xf4
	OP_CLC   = 0xf8
	OP_STC   = 0xf9
	OP_CLI   = 0xfa
	OP_STI   = 0xfb
)

var opNames = map[byte]string{
	OP_PUSHF: "pushf",
	OP_POPF:  "popf",
	OP_NOP:   "nop",
	OP_INT3:  "int3",
	OP_INT:   "int",
	OP_IRET:  "iret",
	OP_JMPF:  "jmp far",
	OP_JMPS:  "jmp short",
	OP_HLT:   "hlt",
	OP_CLC:   "clc",
	OP_STC:   "stc",
	OP_CLI:   "cli",
	OP_STI:   "sti",
}

func opName(op byte) string {
	if op&^7 == OP_MOV {
		return "mov"
	}
	if name, ok := opNames[op]; ok {
		return name
	}
	return "(bad)"
}
