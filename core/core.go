// Package core assembles the emulated machine, its devices and the
// thread switch into a runnable session, and gives the host its
// frame-by-frame entry point.
package core

import (
	"log"

	"github.com/asciibeats/dosbox-core/disk"
	"github.com/asciibeats/dosbox-core/emuthread"
	"github.com/asciibeats/dosbox-core/machine"
	"github.com/asciibeats/dosbox-core/options"
)

// Device port layout: the high nibble of a port number selects the
// device, the low nibble a register within it.
const (
	devSystem   = 0x00
	devConsole  = 0x10
	devVideo    = 0x20
	devKeyboard = 0x30
	devMouse    = 0x40
	devClock    = 0x50
	devDisk     = 0x60
)

// Runner owns one emulation session: the machine, its devices, the
// disk registry, the options registry and the emulation thread.
//
// RunFrame, Swap and Stop must all be called from the host thread, and
// only while the host owns execution; that is the whole point of the
// design, and it is why none of the session state needs locking.
type Runner struct {
	swi   *emuthread.Switcher
	m     *machine.Machine
	disks *disk.Registry
	opts  *options.Registry

	sys   System
	con   Console
	vid   Video
	key   Keyboard
	mouse Mouse
	clk   Clock
	dsk   DiskPort

	frames         int
	cyclesPerFrame int
	started        bool
}

// Option keys the runner itself consumes; the frontend defines them.
const (
	OptThreadSync     = "thread_sync"     // "spin" or "wait"
	OptCyclesPerFrame = "cycles_per_frame"
)

const defaultCyclesPerFrame = 50000

// NewRunner builds a session for the given program. If program is nil
// the machine boots from the first sector of the floppy image mounted
// in the registry.
func NewRunner(program []byte, disks *disk.Registry, opts *options.Registry) *Runner {
	r := &Runner{
		swi:            emuthread.New(),
		disks:          disks,
		opts:           opts,
		cyclesPerFrame: defaultCyclesPerFrame,
	}
	if program == nil {
		program = bootSector(disks)
	}
	r.attach(machine.New(program))
	r.dsk.disks = disks
	return r
}

func (r *Runner) attach(m *machine.Machine) {
	r.m = m
	r.dsk.m = m
	m.Dev = r
}

// bootSector loads a boot program from drive A. A machine with no
// program at all just halts at the first instruction, which is fine.
func bootSector(disks *disk.Registry) []byte {
	d := disks.Drive('A')
	if d == nil || !d.Mounted() {
		log.Print("core: no program and no boot floppy")
		return nil
	}
	buf := make([]byte, d.SectorSize())
	n := d.ReadSector(0, buf)
	log.Printf("core: booting %d bytes from drive A", n)
	return buf[:n]
}

// Start launches the emulation thread. The thread blocks until the
// first RunFrame.
func (r *Runner) Start() {
	if r.started {
		panic("core: Start called twice")
	}
	r.started = true
	r.applyOptions()
	r.swi.Start(r.run)
}

// run is the emulation side: the machine's unbroken loop. It yields to
// the host when the program presents a frame, and in any case once the
// cycle budget is spent, so a program that never draws cannot keep the
// host (or session teardown) waiting forever. It only ever exits by
// the cancellation panic unwinding out of Switch.
func (r *Runner) run() {
	cycles := 0
	for {
		if r.m.Halted() {
			r.yield(&cycles)
			continue
		}
		if err := r.m.Exec(); err != nil {
			if err != machine.ErrHalted {
				log.Printf("core: %v", err)
			}
			continue
		}
		if r.sys.exit {
			r.sys.exit = false
			r.m.Halt()
			log.Printf("core: program exited with code %d", r.sys.ExitCode())
			continue
		}
		cycles++
		if r.vid.presented || cycles >= r.cyclesPerFrame {
			r.vid.presented = false
			r.yield(&cycles)
		}
	}
}

func (r *Runner) yield(cycles *int) {
	*cycles = 0
	r.frames++
	r.swi.Switch()
}

// Input carries one frame's worth of host input.
type Input struct {
	Keys  []byte // key presses, oldest first
	Mouse MouseState
}

// Frame is what one emulation step produced. Pix is RGBA and remains
// valid until the next RunFrame call.
type Frame struct {
	Pix     []byte
	W, H    int
	Counter int
}

// RunFrame is the host polling entry point: it performs exactly one
// handoff to the emulation thread and returns once the machine has
// yielded the next frame.
func (r *Runner) RunFrame(in *Input) Frame {
	if !r.started {
		panic("core: RunFrame before Start")
	}
	if r.opts.Changed() {
		r.applyOptions()
	}
	if in != nil {
		for _, k := range in.Keys {
			r.key.push(k)
		}
		r.mouse.Set(&in.Mouse)
	}
	r.swi.Switch()
	return Frame{
		Pix:     r.vid.rgba(),
		W:       videoW,
		H:       videoH,
		Counter: r.frames,
	}
}

// Swap replaces the running program, keeping devices and disks. Used
// by dev mode when the program file changes on disk.
func (r *Runner) Swap(program []byte) {
	r.attach(machine.New(program))
	r.sys = System{}
	r.vid.clear()
	log.Print("core: program swapped")
}

// Stop tears the session down: it cancels the emulation thread, wakes
// it from whatever wait it is in, and joins it.
func (r *Runner) Stop() {
	if !r.started {
		return
	}
	r.swi.Stop()
}

// Frames returns the number of completed emulation steps.
func (r *Runner) Frames() int { return r.frames }

// Exited reports whether the program asked to exit, and its code.
func (r *Runner) Exited() (bool, int) {
	return r.sys.exited, r.sys.ExitCode()
}

// Machine exposes the machine for the debugger. Host-owned phases
// only.
func (r *Runner) Machine() *machine.Machine { return r.m }

// DiskControl returns the host-facing disk surface. Hosts that can
// display labels probe for disk.ExtendedControl with a type assertion.
func (r *Runner) DiskControl() disk.Control { return r.disks }

// MediaGeneration sums the drives' media generations. Hosts watch it
// to notice media changes, including ones they did not make.
func (r *Runner) MediaGeneration() int {
	n := 0
	for _, d := range r.disks.Drives() {
		n += d.Generation()
	}
	return n
}

// Options returns the session's options registry.
func (r *Runner) Options() *options.Registry { return r.opts }

func (r *Runner) applyOptions() {
	r.swi.UseSpinlock(r.opts.String(OptThreadSync) == "spin")
	if n := r.opts.Int(OptCyclesPerFrame); n > 0 {
		r.cyclesPerFrame = n
	}
}

// In dispatches a port read to its device.
func (r *Runner) In(p byte) byte {
	port := p & 0xf
	switch p & 0xf0 {
	case devSystem:
		return r.sys.In(port)
	case devConsole:
		return r.con.In(port)
	case devVideo:
		return r.vid.In(port)
	case devKeyboard:
		return r.key.In(port)
	case devMouse:
		return r.mouse.In(port)
	case devClock:
		return r.clk.In(port)
	case devDisk:
		return r.dsk.In(port)
	default:
		return 0 // unimplemented device
	}
}

// Out dispatches a port write to its device.
func (r *Runner) Out(p, b byte) {
	port := p & 0xf
	switch p & 0xf0 {
	case devSystem:
		r.sys.Out(port, b)
	case devConsole:
		r.con.Out(port, b)
	case devVideo:
		r.vid.Out(port, b)
	case devKeyboard:
		r.key.Out(port, b)
	case devMouse:
		r.mouse.Out(port, b)
	case devClock:
		r.clk.Out(port, b)
	case devDisk:
		r.dsk.Out(port, b)
	}
}
