// Package machine implements the emulated machine's CPU: a small
// 16-bit register machine with port-mapped devices. It stands in for
// the DOS machine core; its programs are flat binaries loaded at
// 0x100, in the manner of a .com executable.
package machine

import (
	"errors"
	"fmt"
)

// Machine executes programs one instruction at a time. It has four
// general registers, 64 KiB of memory and a return-address stack used
// by CAL and RET.
type Machine struct {
	Mem [1 << 16]byte
	PC  uint16
	Reg [4]uint16
	Ret Stack
	Dev Device

	halted bool
}

// Device provides access to the peripherals connected to the machine.
// The high nibble of a port number selects the device, the low nibble
// a port within it.
type Device interface {
	In(port byte) (value byte)
	Out(port, value byte)
}

// Origin is the load and entry address for programs.
const Origin = 0x100

// New returns a Machine loaded with the given program at Origin.
// Bytes beyond the addressable 64 KiB are ignored.
func New(program []byte) *Machine {
	m := &Machine{PC: Origin}
	copy(m.Mem[Origin:], program)
	return m
}

// ErrHalted is returned by Exec once the machine has executed HLT.
// A halted machine stays halted; it is not a fault.
var ErrHalted = errors.New("HLT")

// Halted reports whether the machine has executed HLT.
func (m *Machine) Halted() bool { return m.halted }

// Halt halts the machine as if it had executed HLT.
func (m *Machine) Halt() { m.halted = true }

// Exec executes the instruction at m.PC. It returns ErrHalted if the
// machine is or becomes halted, and a FaultError if the instruction
// faults. Any panic that is not a machine fault is re-raised
// unmodified.
func (m *Machine) Exec() (err error) {
	if m.halted {
		return ErrHalted
	}

	var (
		op   = Op(m.Mem[m.PC])
		opPC = m.PC
	)
	defer func() {
		if e := recover(); e != nil {
			if code, ok := e.(Fault); ok {
				err = FaultError{
					Addr:  opPC,
					Op:    op,
					Fault: code,
				}
				m.halted = true
			} else {
				panic(e)
			}
		}
	}()

	if op >= opCount {
		panic(BadOp)
	}
	m.PC += 1 + uint16(op.operands())

	// Operand accessors, relative to the opcode byte.
	reg := func(i uint16) *uint16 {
		return &m.Reg[m.Mem[opPC+i]&0x3]
	}
	pair := func() (dst, src *uint16) {
		b := m.Mem[opPC+1]
		return &m.Reg[b>>4&0x3], &m.Reg[b&0x3]
	}
	addr := func(i uint16) uint16 {
		return short(m.Mem[opPC+i], m.Mem[opPC+i+1])
	}

	switch op {
	case HLT:
		m.halted = true
		return ErrHalted
	case NOP:
	case SET:
		*reg(1) = addr(2)
	case MOV:
		dst, src := pair()
		*dst = *src
	case LDB:
		*reg(1) = uint16(m.Mem[addr(2)])
	case STB:
		m.Mem[addr(2)] = byte(*reg(1))
	case LDW:
		a := addr(2)
		*reg(1) = short(m.Mem[a], m.Mem[a+1])
	case STW:
		a := addr(2)
		v := *reg(1)
		m.Mem[a] = byte(v >> 8)
		m.Mem[a+1] = byte(v)
	case LDI:
		dst, src := pair()
		*dst = uint16(m.Mem[*src])
	case STI:
		dst, src := pair()
		m.Mem[*dst] = byte(*src)
	case ADD:
		dst, src := pair()
		*dst += *src
	case SUB:
		dst, src := pair()
		*dst -= *src
	case AND:
		dst, src := pair()
		*dst &= *src
	case ORA:
		dst, src := pair()
		*dst |= *src
	case XOR:
		dst, src := pair()
		*dst ^= *src
	case SHL:
		dst, src := pair()
		*dst <<= *src & 0xf
	case SHR:
		dst, src := pair()
		*dst >>= *src & 0xf
	case INC:
		*reg(1)++
	case DEC:
		*reg(1)--
	case JMP:
		m.PC = addr(1)
	case JNZ:
		if *reg(1) != 0 {
			m.PC = addr(2)
		}
	case JZR:
		if *reg(1) == 0 {
			m.PC = addr(2)
		}
	case CAL:
		m.Ret.push(m.PC)
		m.PC = addr(1)
	case RET:
		m.PC = m.Ret.pop()
	case IN:
		*reg(1) = uint16(m.Dev.In(m.Mem[opPC+2]))
	case OUT:
		m.Dev.Out(m.Mem[opPC+1], byte(*reg(2)))
	case OUTW:
		p, v := m.Mem[opPC+1], *reg(2)
		m.Dev.Out(p, byte(v>>8))
		m.Dev.Out(p+1, byte(v))
	}

	return nil
}

// FaultError is returned by Exec if an instruction faults. A faulted
// machine halts.
type FaultError struct {
	Fault
	Op   Op
	Addr uint16
}

func (e FaultError) Error() string {
	return fmt.Sprintf("%s executing %s at %.4x", e.Fault, e.Op, e.Addr)
}

// Fault signifies the kind of condition that faulted execution.
type Fault byte

const (
	BadOp     Fault = 0x01
	Underflow Fault = 0x02
	Overflow  Fault = 0x03
)

func (c Fault) String() string {
	if s, ok := map[Fault]string{
		BadOp:     "bad opcode",
		Underflow: "return stack underflow",
		Overflow:  "return stack overflow",
	}[c]; ok {
		return s
	}
	return fmt.Sprintf("unknown (%.2x)", byte(c))
}

func short(hi, lo byte) uint16 {
	return uint16(hi)<<8 + uint16(lo)
}
