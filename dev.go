package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/howeyc/fsnotify"

	"github.com/asciibeats/dosbox-core/core"
	"github.com/asciibeats/dosbox-core/disk"
)

type devConfig struct {
	gui, debug, secure bool
	programFile        string
	images             []string
}

// devMode runs a session that outlives its program: the program file
// is watched and swapped back in whenever it changes, and with
// cfg.debug the tview debugger steers the session.
func devMode(cfg devConfig) error {
	programFile := filepath.Clean(cfg.programFile)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Watch(filepath.Dir(programFile)); err != nil {
		return err
	}

	r, host, err := newSession(programFile, cfg.images, cfg.secure)
	if err != nil {
		return err
	}
	h := &hooks{
		r:           r,
		host:        host,
		programFile: programFile,
		swap:        make(chan []byte, 1),
	}

	if cfg.debug {
		view := newDebugView()
		h.view = view
		view.loadLabels(programFile)
		log.SetPrefix("")
		log.SetOutput(view.log)
		go func() {
			if err := view.Run(); err != nil {
				log.Fatalf("debug: %v", err)
			}
			log.SetOutput(os.Stderr)
			log.SetPrefix("dosbox-core: ")
			view.cmds <- command{name: "exit"}
		}()
	}

	go h.watchProgram(watcher)

	r.Start()
	defer r.Stop()

	var code int
	if cfg.gui {
		code, err = runGUI(r, h)
	} else {
		code, err = runCLI(r, h)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("dev: exit code: %d", code)
}

// hooks is the host-side work a dev session runs between emulation
// steps: program reloads and debugger commands. Everything here
// executes on the thread that calls RunFrame.
type hooks struct {
	r           *core.Runner
	host        *settings
	view        *debugView // nil without -debug
	programFile string
	swap        chan []byte

	quit   bool
	paused bool
	steps  int

	lastState, lastWatch string
}

// watchProgram swaps the program back in when its file changes.
func (h *hooks) watchProgram(w *fsnotify.Watcher) {
	var reload <-chan time.Time
	for {
		select {
		case <-reload:
			log.Printf("dev: reload %s", filepath.Base(h.programFile))
			program, err := os.ReadFile(h.programFile)
			if err != nil {
				log.Printf("dev: %v", err)
				break
			}
			select {
			case h.swap <- program:
			default:
			}
		case ev := <-w.Event:
			if ev.Name == h.programFile && !ev.IsAttrib() {
				reload = time.After(100 * time.Millisecond)
			}
		case err := <-w.Error:
			log.Printf("dev: watcher: %v", err)
		}
	}
}

// Tick runs pending host-side work and reports whether the next
// emulation step should run.
func (h *hooks) Tick() bool {
	var cmds chan command
	if h.view != nil {
		cmds = h.view.cmds
	}
	for {
		select {
		case program := <-h.swap:
			h.r.Swap(program)
			h.paused = false
			if h.view != nil {
				h.view.loadLabels(h.programFile)
			}
		case cmd := <-cmds:
			h.exec(cmd)
		default:
			if h.steps > 0 {
				h.steps--
				return true
			}
			return !h.paused
		}
	}
}

// Quit reports whether the session should end.
func (h *hooks) Quit() bool { return h.quit }

func (h *hooks) exec(c command) {
	disks := h.r.DiskControl()
	switch c.name {
	case "exit", "q":
		h.quit = true
	case "pause", "p":
		h.paused = true
	case "cont", "c":
		h.paused = false
	case "step", "s":
		n, _ := strconv.Atoi(c.arg)
		if n < 1 {
			n = 1
		}
		h.paused = true
		h.steps = n
	case "eject":
		disks.SetEjectState(true)
	case "insert":
		disks.SetEjectState(false)
	case "disk":
		n, err := strconv.Atoi(c.arg)
		if err != nil || !disks.SetImageIndex(n) {
			log.Printf("invalid image index %q", c.arg)
		}
	case "disks":
		x, _ := disks.(disk.ExtendedControl)
		for i := 0; i < disks.NumImages(); i++ {
			cur := " "
			if i == disks.ImageIndex() {
				cur = "*"
			}
			label := ""
			if x != nil {
				label, _ = x.ImageLabel(i)
			}
			log.Printf("%s %d %s", cur, i, label)
		}
	case "add":
		disks.AddImage()
	case "replace":
		index, path, _ := strings.Cut(c.arg, " ")
		n, err := strconv.Atoi(index)
		if err != nil {
			log.Print("usage: replace <index> [path]")
			return
		}
		if !disks.ReplaceImage(n, strings.TrimSpace(path)) {
			log.Printf("replacing image %d failed", n)
		}
	case "set":
		key, value, ok := strings.Cut(c.arg, " ")
		if !ok {
			log.Print("usage: set <option> <value>")
			return
		}
		if !h.host.Set(key, value) && !h.host.Set("dosbox_"+key, value) {
			log.Printf("no option %q with value %q", key, value)
		}
	case "opts":
		for _, o := range h.host.defs {
			log.Printf("%s = %s", o.FullKey(), h.r.Options().String(o.Key))
		}
	default:
		log.Printf("unknown command %q", c.name)
	}
}

// Report pushes machine state to the debugger view after a step.
func (h *hooks) Report(f core.Frame) {
	if h.view == nil {
		return
	}
	m := h.r.Machine()
	kind := stateRunning
	if ok, _ := h.r.Exited(); ok {
		kind = stateHalted
	} else if h.paused {
		kind = statePaused
	}
	state := stateMsg(h.view.getLabels(), m, kind)
	watch := h.view.watchContent(m)
	if state == h.lastState && watch == h.lastWatch {
		return
	}
	h.lastState, h.lastWatch = state, watch
	h.view.update(kind, state, watch)
}
