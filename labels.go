package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// labels maps program addresses to names, read from the label file an
// assembler emits next to the program: one "hexaddr name" pair per
// line.
type labels []label

type label struct {
	addr uint16
	name string
}

func (l label) String() string { return fmt.Sprintf("%s (%.4x)", l.name, l.addr) }

func (ls labels) forAddr(addr uint16) (label, bool) {
	i := sort.Search(len(ls), func(i int) bool { return ls[i].addr >= addr })
	if i < len(ls) && ls[i].addr == addr {
		return ls[i], true
	}
	return label{}, false
}

// resolve interprets s as a label name or a bare hex address.
func (ls labels) resolve(s string) (label, bool) {
	for _, l := range ls {
		if l.name == s {
			return l, true
		}
	}
	if n, err := strconv.ParseUint(s, 16, 16); err == nil {
		return label{addr: uint16(n), name: s}, true
	}
	return label{}, false
}

func (ls labels) withPrefix(prefix string) (match []label) {
	for _, l := range ls {
		if strings.HasPrefix(l.name, prefix) {
			match = append(match, l)
		}
	}
	return match
}

func parseLabels(file string) (labels, error) {
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	var ls labels
	for i, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		addr, name, ok := strings.Cut(line, " ")
		n, err := strconv.ParseUint(addr, 16, 16)
		if !ok || err != nil {
			return nil, fmt.Errorf("invalid label on line %d: %q", i+1, line)
		}
		ls = append(ls, label{addr: uint16(n), name: strings.TrimSpace(name)})
	}
	sort.SliceStable(ls, func(i, j int) bool { return ls[i].addr < ls[j].addr })
	return ls, nil
}
