package machine

import "fmt"

// Op represents an opcode of the virtual machine.
type Op byte

const (
	HLT Op = iota
	SET    // SET r, imm16
	MOV    // MOV rd, rs
	LDB    // LDB r, addr16
	STB    // STB r, addr16
	LDW    // LDW r, addr16
	STW    // STW r, addr16
	LDI    // LDI rd, rs : rd = Mem[rs]
	STI    // STI rd, rs : Mem[rd] = low(rs)
	ADD    // ADD rd, rs
	SUB
	AND
	ORA
	XOR
	SHL // SHL rd, rs : shift by low nibble of rs
	SHR
	INC // INC r
	DEC
	JMP // JMP addr16
	JNZ // JNZ r, addr16 : jump if r != 0
	JZR // JZR r, addr16 : jump if r == 0
	CAL // CAL addr16
	RET
	IN   // IN r, port8
	OUT  // OUT port8, r : low byte of r
	OUTW // OUTW port8, r : both bytes, high first
	NOP

	opCount
)

var opNames = [...]string{
	"HLT", "SET", "MOV", "LDB", "STB", "LDW", "STW", "LDI", "STI",
	"ADD", "SUB", "AND", "ORA", "XOR", "SHL", "SHR", "INC", "DEC",
	"JMP", "JNZ", "JZR", "CAL", "RET", "IN", "OUT", "OUTW", "NOP",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("0x%.2x", byte(o))
}

// operands reports the number of operand bytes that follow the opcode.
func (o Op) operands() int {
	switch o {
	case HLT, RET, NOP:
		return 0
	case MOV, LDI, STI, ADD, SUB, AND, ORA, XOR, SHL, SHR, INC, DEC:
		return 1
	case JMP, CAL, IN, OUT, OUTW:
		return 2
	case SET, LDB, STB, LDW, STW, JNZ, JZR:
		return 3
	}
	return 0
}
