package machine

import (
	"fmt"
	"strings"
)

// Stack is the return-address stack used by CAL and RET.
type Stack struct {
	Addrs [64]uint16
	Ptr   byte
}

func (s *Stack) push(a uint16) {
	if int(s.Ptr) == len(s.Addrs) {
		panic(Overflow)
	}
	s.Addrs[s.Ptr] = a
	s.Ptr++
}

func (s *Stack) pop() uint16 {
	if s.Ptr == 0 {
		panic(Underflow)
	}
	s.Ptr--
	return s.Addrs[s.Ptr]
}

func (s Stack) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for _, a := range s.Addrs[:s.Ptr] {
		fmt.Fprintf(&b, " %.4x", a)
	}
	b.WriteString(" )")
	return b.String()
}
