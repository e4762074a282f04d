package main

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/asciibeats/dosbox-core/machine"
)

// command is one debugger instruction, executed on the host thread
// between emulation steps.
type command struct {
	name, arg string
}

// debugView is the tview debugger: a log pane, a watch pane, a state
// line and a command input. Commands that touch the session go through
// the cmds channel; watches are kept here and rendered from machine
// memory after each step.
type debugView struct {
	log   *tview.TextView
	watch *tview.TextView
	state *tview.TextView
	input *tview.InputField
	cols  *tview.Flex
	rows  *tview.Flex
	app   *tview.Application

	cmds chan command

	mu      sync.Mutex
	labels  labels
	watches []watchExpr
}

type watchExpr struct {
	label
	short bool
}

func newDebugView() *debugView {
	d := &debugView{
		log: tview.NewTextView().
			SetMaxLines(1000),
		watch: tview.NewTextView().
			SetWrap(false).
			SetTextAlign(tview.AlignRight),
		state: tview.NewTextView().
			SetWrap(false),
		input: tview.NewInputField(),
		cols:  tview.NewFlex(),
		rows: tview.NewFlex().
			SetDirection(tview.FlexRow),
		app:  tview.NewApplication(),
		cmds: make(chan command, 16),
	}
	d.log.SetChangedFunc(func() { d.app.Draw() })
	d.watch.SetBackgroundColor(tcell.ColorDarkBlue)
	d.state.SetBackgroundColor(tcell.ColorDarkGrey)
	d.cols.
		AddItem(d.watch, 0, 1, false).
		AddItem(d.log, 0, 2, false)
	d.rows.
		AddItem(d.cols, 0, 1, false).
		AddItem(d.state, 3, 0, false).
		AddItem(d.input, 1, 0, true)
	d.app.SetRoot(d.rows, true)

	d.input.SetAutocompleteFunc(func(t string) (entries []string) {
		if cmd, arg, ok := strings.Cut(t, " "); ok {
			switch cmd {
			case "w", "w2", "watch", "watch2":
				for _, l := range d.getLabels().withPrefix(arg) {
					entries = append(entries, cmd+" "+l.name)
				}
			}
		}
		return
	})
	d.input.SetAutocompletedFunc(func(t string, index, src int) bool {
		if src != tview.AutocompletedNavigate {
			d.input.SetText(t)
		}
		return src == tview.AutocompletedEnter || src == tview.AutocompletedClick
	})
	d.input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		text := d.input.GetText()
		if text == "" {
			return
		}
		d.input.SetText("")
		if text == "exit" {
			d.app.Stop()
			return
		}
		cmd, arg, _ := strings.Cut(text, " ")
		switch cmd {
		case "w", "w2", "watch", "watch2":
			l, ok := d.getLabels().resolve(arg)
			if !ok {
				log.Printf("invalid address %q", arg)
				return
			}
			d.mu.Lock()
			d.watches = append(d.watches, watchExpr{label: l, short: strings.HasSuffix(cmd, "2")})
			d.mu.Unlock()
			log.Printf("watching %.4x", l.addr)
			return
		case "unwatch":
			d.mu.Lock()
			d.watches = d.watches[:0]
			d.mu.Unlock()
			log.Print("cleared watches")
			return
		}
		d.cmds <- command{name: cmd, arg: strings.TrimSpace(arg)}
	})
	return d
}

func (d *debugView) Run() error { return d.app.Run() }

func (d *debugView) getLabels() labels {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.labels
}

func (d *debugView) setLabels(ls labels) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.labels = ls
}

// loadLabels reads the label file next to the program, if there is
// one.
func (d *debugView) loadLabels(programFile string) {
	ls, err := parseLabels(programFile + ".lbl")
	if err != nil {
		return
	}
	d.setLabels(ls)
	log.Printf("debug: loaded %d labels", len(ls))
}

type stateKind int

const (
	stateRunning stateKind = iota
	statePaused
	stateHalted
)

func (d *debugView) update(k stateKind, state, watch string) {
	d.app.QueueUpdateDraw(func() {
		switch k {
		case stateRunning:
			d.state.SetTextColor(tcell.ColorBlack)
			d.state.SetBackgroundColor(tcell.ColorDarkGrey)
		case statePaused:
			d.state.SetTextColor(tcell.ColorWhite)
			d.state.SetBackgroundColor(tcell.ColorDarkBlue)
		case stateHalted:
			d.state.SetTextColor(tcell.ColorWhite)
			d.state.SetBackgroundColor(tcell.ColorDarkRed)
		}
		d.watch.SetText(watch)
		d.state.SetText(state)
	})
}

func stateMsg(ls labels, m *machine.Machine, k stateKind) string {
	var (
		op    = machine.Op(m.Mem[m.PC])
		pcSym string
	)
	if l, ok := ls.forAddr(m.PC); ok {
		pcSym = l.String()
	}
	kind := "       "
	switch k {
	case statePaused:
		kind = "[pause]"
	case stateHalted:
		kind = "[HALT!]"
	}
	return fmt.Sprintf("%.4x %-4s %s %s\nreg: %.4x %.4x %.4x %.4x\nret: %s\n",
		m.PC, op, kind, pcSym,
		m.Reg[0], m.Reg[1], m.Reg[2], m.Reg[3], m.Ret.String())
}

func (d *debugView) watchContent(m *machine.Machine) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var b strings.Builder
	for _, w := range d.watches {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s [%.4x] ", w.name, w.addr)
		if w.short {
			fmt.Fprintf(&b, "%.2x%.2x", m.Mem[w.addr], m.Mem[w.addr+1])
		} else {
			fmt.Fprintf(&b, "  %.2x", m.Mem[w.addr])
		}
	}
	return b.String()
}
