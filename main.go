// Command dosbox-core runs DOS-style programs on an emulated machine
// with a frame-polling host around it: the frontend drives emulation
// one frame at a time, pages disk images in and out, and publishes the
// core's options.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime/pprof"
	"time"

	"github.com/asciibeats/dosbox-core/core"
	"github.com/asciibeats/dosbox-core/disk"
	"github.com/asciibeats/dosbox-core/options"
)

func main() {
	log.SetPrefix("dosbox-core: ")
	log.SetFlags(0)

	var (
		cliFlag    = flag.Bool("cli", false, "disable GUI features")
		devFlag    = flag.Bool("dev", false, "enable developer mode (live reload of the program)")
		debugFlag  = flag.Bool("debug", false, "enable debugger (implies -dev)")
		secureFlag = flag.Bool("secure", false, "refuse disk mount and unmount operations")

		cpuProfileFlag = flag.String("cpu_profile", "", "write CPU profile to `file`")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [-cli] <program.com | image.img> [image ...]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "       %s [-cli] <-dev | -debug> <program.com> [image ...]\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
	}

	programFile, images := "", flag.Args()
	if filepath.Ext(images[0]) == ".com" {
		programFile, images = images[0], images[1:]
	}

	if *devFlag || *debugFlag {
		if programFile == "" {
			log.Fatal("developer mode needs a program file to watch")
		}
		err := devMode(devConfig{
			gui:         !*cliFlag,
			debug:       *debugFlag,
			secure:      *secureFlag,
			programFile: programFile,
			images:      images,
		})
		if err != nil {
			log.Fatal(err)
		}
		return
	}

	var cpuProfile io.Closer
	if prof := *cpuProfileFlag; prof != "" {
		f, err := os.Create(prof)
		if err != nil {
			log.Fatalf("creating CPU profile file: %v", err)
		}
		pprof.StartCPUProfile(f)
		cpuProfile = f
	}

	code, err := run(programFile, images, !*cliFlag, *secureFlag)

	if f := cpuProfile; f != nil {
		pprof.StopCPUProfile()
		f.Close()
	}

	if err != nil {
		log.Fatal(err)
	}
	os.Exit(code)
}

func run(programFile string, images []string, guiEnabled, secure bool) (int, error) {
	r, _, err := newSession(programFile, images, secure)
	if err != nil {
		return 0, err
	}
	r.Start()
	defer r.Stop()

	if guiEnabled {
		return runGUI(r, nil)
	}
	return runCLI(r, nil)
}

// newSession assembles a runner: program, disks and options. The first
// image is mounted, the rest are registered for the host to page
// through.
func newSession(programFile string, images []string, secure bool) (*core.Runner, *settings, error) {
	var program []byte
	if programFile != "" {
		var err error
		program, err = os.ReadFile(programFile)
		if err != nil {
			return nil, nil, err
		}
	}

	disks := disk.New(secure)
	for i, img := range images {
		if i == 0 {
			if !disks.Mount(img) {
				return nil, nil, fmt.Errorf("mounting %s failed", img)
			}
			continue
		}
		disks.Append(img)
	}
	if program == nil && !disks.Drive('A').Mounted() {
		return nil, nil, fmt.Errorf("nothing to run: no program and no boot floppy")
	}

	opts := defaultOptions()
	r := core.NewRunner(program, disks, opts)
	host := newSettings()
	opts.SetHost(host)
	return r, host, nil
}

// defaultOptions declares the core options this frontend publishes.
func defaultOptions() *options.Registry {
	return options.New("dosbox_", []*options.Option{
		{
			Key:   core.OptThreadSync,
			Label: "Thread synchronization method",
			Info:  "Spinning trades CPU for lower frame latency.",
			Choices: []options.Value{
				{V: "wait", Label: "Wait"},
				{V: "spin", Label: "Spin"},
			},
			Default: "wait",
		},
		{
			Key:   core.OptCyclesPerFrame,
			Label: "Emulated cycles per frame",
			Choices: []options.Value{
				{V: 10000}, {V: 25000}, {V: 50000}, {V: 100000}, {V: 200000},
			},
			Default: 50000,
		},
		{
			Key:   "video_scale",
			Label: "Window scale factor",
			Choices: []options.Value{
				{V: 1, Label: "1x"},
				{V: 2, Label: "2x"},
				{V: 3, Label: "3x"},
				{V: 4, Label: "4x"},
			},
			Default: 2,
		},
		{
			Key:   "midi_device",
			Label: "MIDI output device",
		},
	})
}

// settings is the frontend's side of the options surface: a plain
// value store that the debugger writes into.
type settings struct {
	defs    []*options.Option
	values  map[string]any
	changed bool
	hidden  map[string]bool
}

func newSettings() *settings {
	return &settings{
		values: make(map[string]any),
		hidden: make(map[string]bool),
	}
}

func (s *settings) SetOptions(opts []*options.Option) { s.defs = opts }
func (s *settings) Value(key string) any              { return s.values[key] }

func (s *settings) Changed() bool {
	c := s.changed
	s.changed = false
	return c
}

func (s *settings) SetVisible(key string, visible bool) { s.hidden[key] = !visible }

// Set stores a host-side value, matched against the option's choices
// so core queries see a value of the declared type.
func (s *settings) Set(key, value string) bool {
	for _, o := range s.defs {
		if o.FullKey() != key {
			continue
		}
		for _, c := range o.Choices {
			if c.String() == value {
				s.values[key] = c.V
				s.changed = true
				return true
			}
		}
		return false
	}
	return false
}

// runCLI drives emulation headless at 60 frames per second. The
// console device handles stdin and stdout itself. In dev mode h runs
// host-side work between steps and the loop outlives program exits.
func runCLI(r *core.Runner, h *hooks) (int, error) {
	t := time.NewTicker(time.Second / 60)
	defer t.Stop()
	for range t.C {
		if h != nil {
			run := h.Tick()
			if h.Quit() {
				return 0, nil
			}
			if !run {
				continue
			}
		}
		f := r.RunFrame(nil)
		if h != nil {
			h.Report(f)
			continue
		}
		if ok, code := r.Exited(); ok {
			return code, nil
		}
	}
	return 0, nil
}
