package core

import (
	"log"
	"os"
	"time"
)

type deviceMem [16]byte

func (m *deviceMem) short(addr byte) uint16 {
	return uint16(m[addr])<<8 + uint16(m[addr+1])
}

func (m *deviceMem) setShort(addr byte, v uint16) {
	m[addr] = byte(v >> 8)
	m[addr+1] = byte(v)
}

// System is device 0x00. Writing a nonzero exit code to port 0xf ends
// the program; the machine halts and the host can read the code.
type System struct {
	mem    deviceMem
	exit   bool
	exited bool
}

func (s *System) ExitCode() int { return int(s.mem[0xf] & 0x7f) }

func (s *System) In(p byte) byte { return s.mem[p] }

func (s *System) Out(p, b byte) {
	s.mem[p] = b
	if p == 0xf && b != 0 {
		s.exit = true
		s.exited = true
	}
}

// Console is device 0x10: byte-at-a-time standard streams, plus
// nonblocking input. The stdin reader starts on the first read of the
// input port.
type Console struct {
	mem   deviceMem
	input <-chan byte
}

func (c *Console) In(p byte) byte {
	switch p {
	case 0x2:
		if c.input == nil {
			input := make(chan byte, 1)
			go readInput(input)
			c.input = input
		}
		select {
		case b := <-c.input:
			c.mem[p] = b
			return b
		default:
			return 0
		}
	}
	return c.mem[p]
}

func (c *Console) Out(p, b byte) {
	c.mem[p] = b
	switch p {
	case 0x8:
		os.Stdout.Write([]byte{b})
	case 0x9:
		os.Stderr.Write([]byte{b})
	}
}

func readInput(input chan<- byte) {
	for {
		var b [1]byte
		if _, err := os.Stdin.Read(b[:]); err != nil {
			log.Printf("reading stdin: %v", err)
			return
		}
		input <- b[0]
	}
}

// Keyboard is device 0x30. The host pushes key presses between
// frames; the program pops them from port 0x0, with port 0x1 giving
// the number still queued.
type Keyboard struct {
	mem   deviceMem
	queue []byte
}

func (k *Keyboard) push(key byte) {
	if len(k.queue) < 64 {
		k.queue = append(k.queue, key)
	}
}

func (k *Keyboard) In(p byte) byte {
	switch p {
	case 0x0:
		if len(k.queue) == 0 {
			return 0
		}
		b := k.queue[0]
		k.queue = k.queue[1:]
		return b
	case 0x1:
		return byte(len(k.queue))
	}
	return k.mem[p]
}

func (k *Keyboard) Out(p, b byte) { k.mem[p] = b }

// MouseState is the host's view of the pointer, in machine screen
// coordinates.
type MouseState struct {
	X, Y   int16
	Button [3]bool
}

// Mouse is device 0x40: X at 0x0, Y at 0x2, buttons at 0x4.
type Mouse struct {
	mem deviceMem
}

func (m *Mouse) Set(s *MouseState) {
	m.mem.setShort(0x0, uint16(s.X))
	m.mem.setShort(0x2, uint16(s.Y))
	var b byte
	if s.Button[0] {
		b |= 0x1
	}
	if s.Button[1] {
		b |= 0x2
	}
	if s.Button[2] {
		b |= 0x4
	}
	m.mem[0x4] = b
}

func (m *Mouse) In(p byte) byte { return m.mem[p] }
func (m *Mouse) Out(p, b byte)  { m.mem[p] = b }

// Clock is device 0x50: wall time, read-only.
type Clock struct{}

func (Clock) In(p byte) byte {
	t := time.Now()
	switch p {
	case 0x0:
		return byte(t.Year() >> 8)
	case 0x1:
		return byte(t.Year())
	case 0x2:
		return byte(t.Month())
	case 0x3:
		return byte(t.Day())
	case 0x4:
		return byte(t.Hour())
	case 0x5:
		return byte(t.Minute())
	case 0x6:
		return byte(t.Second())
	case 0x7:
		return byte(t.Weekday()) // Sunday is 0
	default:
		return 0
	}
}

func (Clock) Out(p, b byte) {}
