package core

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/asciibeats/dosbox-core/disk"
	"github.com/asciibeats/dosbox-core/machine"
	"github.com/asciibeats/dosbox-core/options"
)

func testOptions() *options.Registry {
	return options.New("test_", []*options.Option{
		{
			Key:     OptThreadSync,
			Choices: []options.Value{{V: "wait"}, {V: "spin"}},
			Default: "wait",
		},
		{
			Key:     OptCyclesPerFrame,
			Choices: []options.Value{{V: 1000}},
			Default: 1000,
		},
	})
}

func program(code ...[]byte) []byte {
	var p []byte
	for _, c := range code {
		p = append(p, c...)
	}
	return p
}

// countProgram increments r0, stores it at 0x2000 and presents a
// frame, forever.
func countProgram() []byte {
	return program(
		[]byte{byte(machine.INC), 0x00},
		[]byte{byte(machine.STW), 0x00, 0x20, 0x00},
		[]byte{byte(machine.OUT), devVideo | 0x7, 0x00},
		[]byte{byte(machine.JMP), 0x01, 0x00},
	)
}

// exitProgram exits with the given code.
func exitProgram(code byte) []byte {
	return program(
		[]byte{byte(machine.SET), 0x00, 0x00, code},
		[]byte{byte(machine.OUT), devSystem | 0xf, 0x00},
	)
}

func counted(m *machine.Machine) int {
	return int(m.Mem[0x2000])<<8 | int(m.Mem[0x2001])
}

func TestRunFrame(t *testing.T) {
	r := NewRunner(countProgram(), disk.New(false), testOptions())
	r.Start()
	defer r.Stop()

	for i := 1; i <= 100; i++ {
		f := r.RunFrame(nil)
		if f.Counter != i {
			t.Fatalf("frame %d has counter %d", i, f.Counter)
		}
		if g := counted(r.Machine()); g != i {
			t.Fatalf("after %d frames the program counted %d", i, g)
		}
		if f.W != VideoWidth || f.H != VideoHeight {
			t.Fatalf("frame is %dx%d", f.W, f.H)
		}
	}
}

func TestRunFrameSpin(t *testing.T) {
	opts := testOptions()
	opts.Option(OptThreadSync).Default = "spin"
	r := NewRunner(countProgram(), disk.New(false), opts)
	r.Start()
	defer r.Stop()

	for i := 1; i <= 100; i++ {
		r.RunFrame(nil)
		if g := counted(r.Machine()); g != i {
			t.Fatalf("after %d frames the program counted %d", i, g)
		}
	}
}

// A program that never presents must still yield when its cycle
// budget runs out, so the host is never kept waiting.
func TestCycleBudget(t *testing.T) {
	busy := program(
		[]byte{byte(machine.INC), 0x00},
		[]byte{byte(machine.JMP), 0x01, 0x00},
	)
	r := NewRunner(busy, disk.New(false), testOptions())
	r.Start()
	defer r.Stop()

	r.RunFrame(nil)
	r.RunFrame(nil)
	if f := r.Frames(); f != 2 {
		t.Errorf("ran %d frames, want 2", f)
	}
	if g := r.Machine().Reg[0]; g == 0 {
		t.Error("busy program made no progress")
	}
}

func TestExit(t *testing.T) {
	r := NewRunner(exitProgram(5), disk.New(false), testOptions())
	r.Start()
	defer r.Stop()

	r.RunFrame(nil)
	if ok, code := r.Exited(); !ok || code != 5 {
		t.Errorf("Exited() = %v, %d; want true, 5", ok, code)
	}
	if !r.Machine().Halted() {
		t.Error("machine not halted after exit")
	}
}

func TestSwap(t *testing.T) {
	r := NewRunner(exitProgram(1), disk.New(false), testOptions())
	r.Start()
	defer r.Stop()

	r.RunFrame(nil)
	if ok, _ := r.Exited(); !ok {
		t.Fatal("program did not exit")
	}

	r.Swap(countProgram())
	if ok, _ := r.Exited(); ok {
		t.Error("exit state survived a swap")
	}
	before := r.Frames()
	r.RunFrame(nil)
	if g := counted(r.Machine()); g != 1 {
		t.Errorf("swapped program counted %d, want 1", g)
	}
	if r.Frames() != before+1 {
		t.Error("frame counter reset by swap")
	}
}

func TestKeyboard(t *testing.T) {
	// Pop a key, store it at 0x2000, present.
	prog := program(
		[]byte{byte(machine.IN), 0x00, devKeyboard | 0x0},
		[]byte{byte(machine.STB), 0x00, 0x20, 0x00},
		[]byte{byte(machine.OUT), devVideo | 0x7, 0x00},
		[]byte{byte(machine.JMP), 0x01, 0x00},
	)
	r := NewRunner(prog, disk.New(false), testOptions())
	r.Start()
	defer r.Stop()

	r.RunFrame(&Input{Keys: []byte{'x'}})
	if g := r.Machine().Mem[0x2000]; g != 'x' {
		t.Errorf("program read key %q, want %q", g, byte('x'))
	}
	r.RunFrame(nil)
	if g := r.Machine().Mem[0x2000]; g != 0 {
		t.Errorf("empty queue read key %.2x, want 00", g)
	}
}

func writeImage(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBootSector(t *testing.T) {
	sector := make([]byte, 512)
	copy(sector, countProgram())
	img := writeImage(t, "boot.img", sector)

	disks := disk.New(false)
	if !disks.Mount(img) {
		t.Fatal("mount failed")
	}
	r := NewRunner(nil, disks, testOptions())
	r.Start()
	defer r.Stop()

	r.RunFrame(nil)
	if g := counted(r.Machine()); g != 1 {
		t.Errorf("booted program counted %d, want 1", g)
	}
}

func TestDiskDevice(t *testing.T) {
	data := bytes.Repeat([]byte{0xe5}, 1024)
	img := writeImage(t, "data.img", data)

	disks := disk.New(false)
	if !disks.Mount(img) {
		t.Fatal("mount failed")
	}

	// Read sector 1 of drive A to 0x3000, store the status byte at
	// 0x2000, present.
	prog := program(
		[]byte{byte(machine.SET), 0x00, 0x00, 0x01},
		[]byte{byte(machine.OUTW), devDisk | 0x2, 0x00}, // sector 1
		[]byte{byte(machine.SET), 0x01, 0x30, 0x00},
		[]byte{byte(machine.OUTW), devDisk | 0x4, 0x01}, // dest 0x3000
		[]byte{byte(machine.SET), 0x02, 0x00, cmdRead},
		[]byte{byte(machine.OUT), devDisk | 0x1, 0x02},
		[]byte{byte(machine.IN), 0x03, devDisk | 0x6},
		[]byte{byte(machine.STB), 0x03, 0x20, 0x00},
		[]byte{byte(machine.OUT), devVideo | 0x7, 0x00},
		[]byte{byte(machine.HLT)},
	)
	r := NewRunner(prog, disks, testOptions())
	r.Start()
	defer r.Stop()

	r.RunFrame(nil)
	m := r.Machine()
	if g := m.Mem[0x2000]; g != statusOK {
		t.Fatalf("read status %.2x, want %.2x", g, statusOK)
	}
	if !bytes.Equal(m.Mem[0x3000:0x3200], data[512:1024]) {
		t.Error("sector data not copied to machine memory")
	}
}

func TestDiskDeviceNoMedia(t *testing.T) {
	prog := program(
		[]byte{byte(machine.SET), 0x00, 0x00, cmdRead},
		[]byte{byte(machine.OUT), devDisk | 0x1, 0x00},
		[]byte{byte(machine.IN), 0x01, devDisk | 0x6},
		[]byte{byte(machine.STB), 0x01, 0x20, 0x00},
		[]byte{byte(machine.OUT), devVideo | 0x7, 0x00},
		[]byte{byte(machine.HLT)},
	)
	r := NewRunner(prog, disk.New(false), testOptions())
	r.Start()
	defer r.Stop()

	r.RunFrame(nil)
	if g := r.Machine().Mem[0x2000]; g != statusNoMedia {
		t.Errorf("read status %.2x, want %.2x", g, statusNoMedia)
	}
}

func TestVideoPlot(t *testing.T) {
	// Plot color 15 at (1, 0) and present.
	prog := program(
		[]byte{byte(machine.SET), 0x00, 0x00, 0x01},
		[]byte{byte(machine.OUTW), devVideo | 0x0, 0x00}, // X = 1
		[]byte{byte(machine.SET), 0x01, 0x00, 0x0f},
		[]byte{byte(machine.OUT), devVideo | 0x4, 0x01}, // color 15
		[]byte{byte(machine.OUT), devVideo | 0x5, 0x00}, // plot
		[]byte{byte(machine.OUT), devVideo | 0x7, 0x00},
		[]byte{byte(machine.HLT)},
	)
	r := NewRunner(prog, disk.New(false), testOptions())
	r.Start()
	defer r.Stop()

	f := r.RunFrame(nil)
	px := f.Pix[4:8] // pixel (1, 0)
	if px[0] != 0xff || px[1] != 0xff || px[2] != 0xff || px[3] != 0xff {
		t.Errorf("pixel (1,0) is %v, want white", px)
	}
	if f.Pix[0] != 0x00 || f.Pix[3] != 0xff {
		t.Errorf("pixel (0,0) is %v, want black", f.Pix[:4])
	}
}

func TestMediaGeneration(t *testing.T) {
	img := writeImage(t, "one.img", make([]byte, 512))
	disks := disk.New(false)
	if !disks.Mount(img) {
		t.Fatal("mount failed")
	}
	r := NewRunner(countProgram(), disks, testOptions())
	r.Start()
	defer r.Stop()

	gen := r.MediaGeneration()
	r.DiskControl().SetEjectState(true)
	if g := r.MediaGeneration(); g <= gen {
		t.Error("media generation did not advance on eject")
	}
}
